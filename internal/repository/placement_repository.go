package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"solemate/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrPlacementNotFound = errors.New("placement not found")
	ErrPlacementExists   = errors.New("product is already placed in this section")
)

// PlacementRepository defines the interface for featured/sale placement data access
type PlacementRepository interface {
	Create(ctx context.Context, placement *domain.FeaturedPlacement) error
	Delete(ctx context.Context, section domain.Section, productID uuid.UUID) error
	ListBySection(ctx context.Context, section domain.Section) ([]*domain.FeaturedPlacement, error)
	ListProductsBySection(ctx context.Context, section domain.Section, status domain.ProductStatus) ([]*domain.Product, error)
	NextPosition(ctx context.Context, section domain.Section) (int, error)
}

type placementRepository struct {
	db *sql.DB
}

// NewPlacementRepository creates a new instance of PlacementRepository
func NewPlacementRepository(db *sql.DB) PlacementRepository {
	return &placementRepository{db: db}
}

// Create places a product in a section
func (r *placementRepository) Create(ctx context.Context, placement *domain.FeaturedPlacement) error {
	query := `
		INSERT INTO featured_placements (id, product_id, section, position, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		placement.ID,
		placement.ProductID,
		placement.Section,
		placement.Position,
		placement.CreatedAt,
	)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			return ErrPlacementExists
		}
		return fmt.Errorf("failed to create placement: %w", err)
	}

	return nil
}

// Delete takes a product out of a section
func (r *placementRepository) Delete(ctx context.Context, section domain.Section, productID uuid.UUID) error {
	result, err := r.db.ExecContext(
		ctx,
		`DELETE FROM featured_placements WHERE section = $1 AND product_id = $2`,
		section,
		productID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete placement: %w", err)
	}
	return expectRow(result, ErrPlacementNotFound)
}

// ListBySection returns the placements of a section ordered by position
func (r *placementRepository) ListBySection(ctx context.Context, section domain.Section) ([]*domain.FeaturedPlacement, error) {
	query := `
		SELECT id, product_id, section, position, created_at
		FROM featured_placements
		WHERE section = $1
		ORDER BY position ASC, created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, section)
	if err != nil {
		return nil, fmt.Errorf("failed to list placements: %w", err)
	}
	defer rows.Close()

	placements := []*domain.FeaturedPlacement{}
	for rows.Next() {
		p := &domain.FeaturedPlacement{}
		if err := rows.Scan(&p.ID, &p.ProductID, &p.Section, &p.Position, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan placement: %w", err)
		}
		placements = append(placements, p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating placements: %w", err)
	}

	return placements, nil
}

// ListProductsBySection joins placements to their products in placement order.
// An empty status returns products in any lifecycle state.
func (r *placementRepository) ListProductsBySection(ctx context.Context, section domain.Section, status domain.ProductStatus) ([]*domain.Product, error) {
	query := `
		SELECT p.id, p.name, p.name_arabic, p.description, p.description_arabic, p.price, p.match_at_price,
		       p.product_type, p.collection, p.quantity, p.sku, p.slug, p.status, p.created_at, p.updated_at
		FROM featured_placements fp
		JOIN products p ON p.id = fp.product_id
		WHERE fp.section = $1
		  AND ($2::text = '' OR p.status = $2::text)
		ORDER BY fp.position ASC, fp.created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, section, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list section products: %w", err)
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
		return nil, fmt.Errorf("error iterating section products: %w", err)
	}

	return products, nil
}

// NextPosition returns the position after the last placement in a section
func (r *placementRepository) NextPosition(ctx context.Context, section domain.Section) (int, error) {
	var next int
	err := r.db.QueryRowContext(
		ctx,
		`SELECT COALESCE(MAX(position) + 1, 0) FROM featured_placements WHERE section = $1`,
		section,
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("failed to compute next placement position: %w", err)
	}
	return next, nil
}
