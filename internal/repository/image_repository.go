package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"solemate/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrImageNotFound     = errors.New("product image not found")
	ErrThumbnailConflict = errors.New("product already has a thumbnail")
)

const imageColumns = `id, product_id, url, filename, original_filename, size_bytes, mime_type, position, is_thumbnail, created_at`

// ImageRepository defines the interface for product image metadata
type ImageRepository interface {
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]*domain.ProductImage, error)
	ListByProducts(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID][]*domain.ProductImage, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.ProductImage, error)
	InsertBatch(ctx context.Context, images []*domain.ProductImage) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type imageRepository struct {
	db *sql.DB
}

// NewImageRepository creates a new instance of ImageRepository
func NewImageRepository(db *sql.DB) ImageRepository {
	return &imageRepository{db: db}
}

// ListByProduct returns a product's images ordered by position
func (r *imageRepository) ListByProduct(ctx context.Context, productID uuid.UUID) ([]*domain.ProductImage, error) {
	query := `SELECT ` + imageColumns + ` FROM product_images WHERE product_id = $1 ORDER BY position ASC`

	rows, err := r.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list product images: %w", err)
	}
	defer rows.Close()

	images := []*domain.ProductImage{}
	for rows.Next() {
		image, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product image: %w", err)
		}
		images = append(images, image)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating product images: %w", err)
	}

	return images, nil
}

// ListByProducts returns images for several products keyed by product id, each ordered by position
func (r *imageRepository) ListByProducts(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID][]*domain.ProductImage, error) {
	out := make(map[uuid.UUID][]*domain.ProductImage, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}

	query := `
		SELECT ` + imageColumns + `
		FROM product_images
		WHERE product_id::text = ANY($1::text[])
		ORDER BY product_id, position ASC
	`

	rows, err := r.db.QueryContext(ctx, query, uuidStrings(productIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to list product images: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		image, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product image: %w", err)
		}
		out[image.ProductID] = append(out[image.ProductID], image)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating product images: %w", err)
	}

	return out, nil
}

// FindByID retrieves one image row
func (r *imageRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.ProductImage, error) {
	query := `SELECT ` + imageColumns + ` FROM product_images WHERE id = $1`

	image, err := scanImage(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrImageNotFound
		}
		return nil, fmt.Errorf("failed to find product image: %w", err)
	}
	return image, nil
}

// InsertBatch inserts all rows in a single statement
func (r *imageRepository) InsertBatch(ctx context.Context, images []*domain.ProductImage) error {
	if len(images) == 0 {
		return nil
	}

	const width = 10
	placeholders := make([]string, 0, len(images))
	args := make([]any, 0, len(images)*width)

	for i, img := range images {
		placeholders = append(placeholders, rowPlaceholders(i*width, width))
		args = append(args,
			img.ID,
			img.ProductID,
			img.URL,
			img.Filename,
			img.OriginalFilename,
			img.SizeBytes,
			img.MimeType,
			img.Position,
			img.IsThumbnail,
			img.CreatedAt,
		)
	}

	query := `INSERT INTO product_images (` + imageColumns + `) VALUES ` + strings.Join(placeholders, ", ")

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if constraint, ok := uniqueViolation(err); ok && constraint == "product_images_one_thumbnail" {
			return ErrThumbnailConflict
		}
		return fmt.Errorf("failed to insert product images: %w", err)
	}

	return nil
}

// Delete removes one image row
func (r *imageRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM product_images WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product image: %w", err)
	}
	return expectRow(result, ErrImageNotFound)
}

func scanImage(row rowScanner) (*domain.ProductImage, error) {
	image := &domain.ProductImage{}
	var original, mime sql.NullString

	err := row.Scan(
		&image.ID,
		&image.ProductID,
		&image.URL,
		&image.Filename,
		&original,
		&image.SizeBytes,
		&mime,
		&image.Position,
		&image.IsThumbnail,
		&image.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	image.OriginalFilename = original.String
	image.MimeType = mime.String
	return image, nil
}

// rowPlaceholders renders "($n+1, ..., $n+width)"
func rowPlaceholders(offset, width int) string {
	parts := make([]string, width)
	for j := 0; j < width; j++ {
		parts[j] = fmt.Sprintf("$%d", offset+j+1)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}
