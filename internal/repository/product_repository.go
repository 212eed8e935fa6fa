package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"solemate/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrSKUTaken        = errors.New("product with this sku already exists")
	ErrSlugTaken       = errors.New("product with this slug already exists")
)

const productColumns = `id, name, name_arabic, description, description_arabic, price, match_at_price,
	product_type, collection, quantity, sku, slug, status, created_at, updated_at`

// SimilarQuery selects products sharing a product type, either inside or outside a collection
type SimilarQuery struct {
	ProductType    domain.ProductType
	Collection     domain.Collection
	SameCollection bool
	ExcludeIDs     []uuid.UUID
	Status         domain.ProductStatus
	Limit          int
}

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ProductStatus) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	FindBySlug(ctx context.Context, slug string) (*domain.Product, error)
	FindBySKU(ctx context.Context, sku string) (*domain.Product, error)
	List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error)
	ListSimilar(ctx context.Context, q SimilarQuery) ([]*domain.Product, error)
	FindIncompleteDrafts(ctx context.Context) ([]*domain.DraftHealth, error)
	DeleteWithCleanup(ctx context.Context, id uuid.UUID) ([]string, error)
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

// Create inserts a new product row
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.Name,
		product.NameArabic,
		product.Description,
		product.DescriptionArabic,
		product.Price,
		nullDecimal(product.MatchAtPrice),
		product.ProductType,
		product.Collection,
		product.Quantity,
		product.SKU,
		product.Slug,
		product.Status,
		product.CreatedAt,
		product.UpdatedAt,
	)

	if err != nil {
		return translateProductWriteError("create", err)
	}

	return nil
}

// Update overwrites the editable fields of a product. The slug and status are left alone.
func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	query := `
		UPDATE products
		SET name = $2, name_arabic = $3, description = $4, description_arabic = $5,
		    price = $6, match_at_price = $7, product_type = $8, collection = $9,
		    quantity = $10, sku = $11, updated_at = $12
		WHERE id = $1
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.Name,
		product.NameArabic,
		product.Description,
		product.DescriptionArabic,
		product.Price,
		nullDecimal(product.MatchAtPrice),
		product.ProductType,
		product.Collection,
		product.Quantity,
		product.SKU,
		product.UpdatedAt,
	)
	if err != nil {
		return translateProductWriteError("update", err)
	}

	return expectRow(result, ErrProductNotFound)
}

// UpdateStatus moves a product through its lifecycle
func (r *productRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ProductStatus) error {
	result, err := r.db.ExecContext(ctx, `UPDATE products SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update product status: %w", err)
	}
	return expectRow(result, ErrProductNotFound)
}

// FindByID retrieves a product by ID
func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return r.findOne(ctx, "id", id)
}

// FindBySlug retrieves a product by its public slug
func (r *productRepository) FindBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	return r.findOne(ctx, "slug", slug)
}

// FindBySKU retrieves a product by SKU
func (r *productRepository) FindBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	return r.findOne(ctx, "sku", sku)
}

func (r *productRepository) findOne(ctx context.Context, column string, value any) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE ` + column + ` = $1`

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by %s: %w", column, err)
	}
	return product, nil
}

// List retrieves products matching the filter, newest first
func (r *productRepository) List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error) {
	var (
		conditions []string
		args       []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.ProductType != "" {
		add("product_type = $%d", filter.ProductType)
	}
	if filter.Collection != "" {
		add("collection = $%d", filter.Collection)
	}

	query := `SELECT ` + productColumns + ` FROM products`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	return r.queryProducts(ctx, query, args...)
}

// ListSimilar retrieves products of the same type, inside or outside the given collection.
// Rows come back in the database's natural order.
func (r *productRepository) ListSimilar(ctx context.Context, q SimilarQuery) ([]*domain.Product, error) {
	if q.Limit <= 0 {
		return []*domain.Product{}, nil
	}

	op := "="
	if !q.SameCollection {
		op = "<>"
	}

	exclude := make([]string, 0, len(q.ExcludeIDs))
	for _, id := range q.ExcludeIDs {
		exclude = append(exclude, id.String())
	}

	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE product_type = $1
		  AND collection ` + op + ` $2
		  AND NOT (id::text = ANY($3::text[]))
		  AND ($4::text = '' OR status = $4::text)
		LIMIT $5
	`

	return r.queryProducts(ctx, query, q.ProductType, q.Collection, exclude, string(q.Status), q.Limit)
}

// FindIncompleteDrafts lists draft products missing images or a size/color variant,
// the footprint a partially failed write leaves behind
func (r *productRepository) FindIncompleteDrafts(ctx context.Context) ([]*domain.DraftHealth, error) {
	query := `
		SELECT p.id, p.sku, p.slug, p.name, p.created_at,
		       (SELECT COUNT(*) FROM product_images i WHERE i.product_id = p.id),
		       (SELECT COUNT(*) FROM product_variants v WHERE v.product_id = p.id AND v.variant_type = 'size'),
		       (SELECT COUNT(*) FROM product_variants v WHERE v.product_id = p.id AND v.variant_type = 'color')
		FROM products p
		WHERE p.status = 'draft'
		ORDER BY p.created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list draft products: %w", err)
	}
	defer rows.Close()

	drafts := []*domain.DraftHealth{}
	for rows.Next() {
		d := &domain.DraftHealth{}
		if err := rows.Scan(&d.ProductID, &d.SKU, &d.Slug, &d.Name, &d.CreatedAt,
			&d.ImageCount, &d.SizeCount, &d.ColorCount); err != nil {
			return nil, fmt.Errorf("failed to scan draft product: %w", err)
		}
		if !d.Complete() {
			drafts = append(drafts, d)
		}
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating draft products: %w", err)
	}

	return drafts, nil
}

// DeleteWithCleanup calls the server-side procedure that removes the product,
// its images, variants and placements in one transaction. It returns the storage
// keys of the removed images.
func (r *productRepository) DeleteWithCleanup(ctx context.Context, id uuid.UUID) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT object_key FROM delete_product_with_cleanup($1)`, id)
	if err != nil {
		if hasCode(err, pgNoDataFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to delete product: %w", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan removed image key: %w", err)
		}
		keys = append(keys, key)
	}

	if err = rows.Err(); err != nil {
		if hasCode(err, pgNoDataFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to delete product: %w", err)
	}

	return keys, nil
}

func (r *productRepository) queryProducts(ctx context.Context, query string, args ...any) ([]*domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	product := &domain.Product{}
	var match decimal.NullDecimal

	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.NameArabic,
		&product.Description,
		&product.DescriptionArabic,
		&product.Price,
		&match,
		&product.ProductType,
		&product.Collection,
		&product.Quantity,
		&product.SKU,
		&product.Slug,
		&product.Status,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if match.Valid {
		product.MatchAtPrice = &match.Decimal
	}
	return product, nil
}

func translateProductWriteError(op string, err error) error {
	if constraint, ok := uniqueViolation(err); ok {
		switch constraint {
		case "products_sku_key":
			return ErrSKUTaken
		case "products_slug_key":
			return ErrSlugTaken
		}
	}
	return fmt.Errorf("failed to %s product: %w", op, err)
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func expectRow(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}
