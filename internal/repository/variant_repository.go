package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"solemate/internal/domain"

	"github.com/google/uuid"
)

const variantColumns = `id, product_id, variant_type, variant_value, stock_quantity, variant_sku, created_at`

// VariantRepository defines the interface for size/color variant data access
type VariantRepository interface {
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]*domain.ProductVariant, error)
	InsertBatch(ctx context.Context, variants []*domain.ProductVariant) error
	DeleteByProduct(ctx context.Context, productID uuid.UUID) (int64, error)
}

type variantRepository struct {
	db *sql.DB
}

// NewVariantRepository creates a new instance of VariantRepository
func NewVariantRepository(db *sql.DB) VariantRepository {
	return &variantRepository{db: db}
}

// ListByProduct returns a product's variants, sizes first, in insertion order
func (r *variantRepository) ListByProduct(ctx context.Context, productID uuid.UUID) ([]*domain.ProductVariant, error) {
	query := `
		SELECT ` + variantColumns + `
		FROM product_variants
		WHERE product_id = $1
		ORDER BY variant_type DESC, length(variant_sku) ASC, variant_sku ASC
	`

	rows, err := r.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list product variants: %w", err)
	}
	defer rows.Close()

	variants := []*domain.ProductVariant{}
	for rows.Next() {
		v := &domain.ProductVariant{}
		if err := rows.Scan(
			&v.ID,
			&v.ProductID,
			&v.VariantType,
			&v.VariantValue,
			&v.StockQuantity,
			&v.VariantSKU,
			&v.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan product variant: %w", err)
		}
		variants = append(variants, v)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating product variants: %w", err)
	}

	return variants, nil
}

// InsertBatch inserts all rows in a single statement
func (r *variantRepository) InsertBatch(ctx context.Context, variants []*domain.ProductVariant) error {
	if len(variants) == 0 {
		return nil
	}

	const width = 7
	placeholders := make([]string, 0, len(variants))
	args := make([]any, 0, len(variants)*width)

	for i, v := range variants {
		placeholders = append(placeholders, rowPlaceholders(i*width, width))
		args = append(args,
			v.ID,
			v.ProductID,
			v.VariantType,
			v.VariantValue,
			v.StockQuantity,
			v.VariantSKU,
			v.CreatedAt,
		)
	}

	query := `INSERT INTO product_variants (` + variantColumns + `) VALUES ` + strings.Join(placeholders, ", ")

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert product variants: %w", err)
	}

	return nil
}

// DeleteByProduct removes every variant of a product and reports how many were removed
func (r *variantRepository) DeleteByProduct(ctx context.Context, productID uuid.UUID) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM product_variants WHERE product_id = $1`, productID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete product variants: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return removed, nil
}
