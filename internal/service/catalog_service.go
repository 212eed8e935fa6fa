package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"solemate/internal/domain"
	"solemate/internal/repository"
	"solemate/internal/storage"
	"solemate/internal/validation"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const MsgSlugExists = "Slug already exists"

// Repositories groups the catalog data access the services need
type Repositories struct {
	Products   repository.ProductRepository
	Images     repository.ImageRepository
	Variants   repository.VariantRepository
	Placements repository.PlacementRepository
}

// ImageUpload is one file selected in the admin form
type ImageUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// CatalogService defines the admin write operations on the catalog
type CatalogService interface {
	CreateProduct(ctx context.Context, sub domain.ProductSubmission, files []ImageUpload) (*ProductDetail, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, sub domain.ProductSubmission, files []ImageUpload) (*ProductDetail, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	DeleteImage(ctx context.Context, productID, imageID uuid.UUID) error
	SetStatus(ctx context.Context, id uuid.UUID, status domain.ProductStatus) error
	AddPlacement(ctx context.Context, section domain.Section, productID uuid.UUID) (*domain.FeaturedPlacement, error)
	RemovePlacement(ctx context.Context, section domain.Section, productID uuid.UUID) error
	ListIncompleteDrafts(ctx context.Context) ([]*domain.DraftHealth, error)
}

// CatalogOption customizes a catalog service
type CatalogOption func(*catalogService)

// WithClock replaces time.Now, used for slugs, object keys and timestamps
func WithClock(now func() time.Time) CatalogOption {
	return func(s *catalogService) { s.now = now }
}

// WithKeyPrefix prepends prefix to every stored image key
func WithKeyPrefix(prefix string) CatalogOption {
	return func(s *catalogService) { s.keyPrefix = prefix }
}

// WithPlaceholder sets the thumbnail URL used for products without images
func WithPlaceholder(url string) CatalogOption {
	return func(s *catalogService) { s.placeholder = url }
}

type catalogService struct {
	products    repository.ProductRepository
	images      repository.ImageRepository
	variants    repository.VariantRepository
	placements  repository.PlacementRepository
	store       storage.ImageStore
	cache       ReadCache
	logger      *zap.Logger
	now         func() time.Time
	keyPrefix   string
	placeholder string
}

// NewCatalogService creates a new instance of CatalogService
func NewCatalogService(
	repos Repositories,
	store storage.ImageStore,
	cache ReadCache,
	logger *zap.Logger,
	opts ...CatalogOption,
) CatalogService {
	if cache == nil {
		cache = nopCache{}
	}
	s := &catalogService{
		products:   repos.Products,
		images:     repos.Images,
		variants:   repos.Variants,
		placements: repos.Placements,
		store:      store,
		cache:      cache,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateProduct validates the submission, then writes product, images and
// variants in that order. A failure after the product insert leaves a draft
// behind and returns *PartialWriteError.
func (s *catalogService) CreateProduct(ctx context.Context, sub domain.ProductSubmission, files []ImageUpload) (*ProductDetail, error) {
	sub.NewImageCount = len(files)
	sub.ExistingImageCount = 0

	fields, err := s.checkSubmission(sub)
	if err != nil {
		return nil, err
	}

	sku := sub.TrimmedSKU()
	if err := s.ensureSKUFree(ctx, sku, uuid.Nil); err != nil {
		return nil, err
	}

	now := s.now()
	product := &domain.Product{
		ID:                uuid.New(),
		Name:              strings.TrimSpace(sub.Name),
		NameArabic:        strings.TrimSpace(sub.NameArabic),
		Description:       strings.TrimSpace(sub.Description),
		DescriptionArabic: strings.TrimSpace(sub.DescriptionArabic),
		Price:             fields.Price,
		MatchAtPrice:      fields.MatchAtPrice,
		ProductType:       sub.ProductType,
		Collection:        sub.Collection,
		Quantity:          fields.Quantity,
		SKU:               sku,
		Slug:              Slugify(sub.Name, now),
		Status:            domain.StatusDraft,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	log := s.logger.With(zap.String("product_id", product.ID.String()), zap.String("sku", sku))

	if err := s.products.Create(ctx, product); err != nil {
		if conflict := conflictFrom(err); conflict != nil {
			return nil, conflict
		}
		log.Error("Failed to insert product", zap.Error(err))
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	log.Info("Product inserted", zap.String("step", "insert_product"), zap.String("slug", product.Slug))

	// every outcome from here on changed what readers see
	defer s.invalidate(ctx)

	images, err := s.uploadImages(ctx, product.ID, files, 0, true)
	if err != nil {
		return nil, s.partial(log, product.ID, StepUploadImages, err)
	}

	if err := s.images.InsertBatch(ctx, images); err != nil {
		return nil, s.partial(log, product.ID, StepInsertImages, err)
	}
	log.Info("Product images stored", zap.String("step", string(StepInsertImages)), zap.Int("count", len(images)))

	variants := buildVariants(product, sub.SizeVariants, sub.ColorVariants, now)
	if err := s.variants.InsertBatch(ctx, variants); err != nil {
		return nil, s.partial(log, product.ID, StepInsertVariants, err)
	}
	log.Info("Product variants stored", zap.String("step", string(StepInsertVariants)), zap.Int("count", len(variants)))

	return assembleDetail(product, images, variants, s.placeholder), nil
}

// UpdateProduct overwrites the product fields, appends new images after the
// existing ones and replaces every variant. Concurrent updates are last write wins.
func (s *catalogService) UpdateProduct(ctx context.Context, id uuid.UUID, sub domain.ProductSubmission, files []ImageUpload) (*ProductDetail, error) {
	current, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	existing, err := s.images.ListByProduct(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing images: %w", err)
	}

	sub.NewImageCount = len(files)
	sub.ExistingImageCount = len(existing)

	fields, err := s.checkSubmission(sub)
	if err != nil {
		return nil, err
	}

	sku := sub.TrimmedSKU()
	if err := s.ensureSKUFree(ctx, sku, id); err != nil {
		return nil, err
	}

	now := s.now()
	updated := *current
	updated.Name = strings.TrimSpace(sub.Name)
	updated.NameArabic = strings.TrimSpace(sub.NameArabic)
	updated.Description = strings.TrimSpace(sub.Description)
	updated.DescriptionArabic = strings.TrimSpace(sub.DescriptionArabic)
	updated.Price = fields.Price
	updated.MatchAtPrice = fields.MatchAtPrice
	updated.ProductType = sub.ProductType
	updated.Collection = sub.Collection
	updated.Quantity = fields.Quantity
	updated.SKU = sku
	updated.UpdatedAt = now

	log := s.logger.With(zap.String("product_id", id.String()), zap.String("sku", sku))

	if err := s.products.Update(ctx, &updated); err != nil {
		if conflict := conflictFrom(err); conflict != nil {
			return nil, conflict
		}
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, err
		}
		log.Error("Failed to update product", zap.Error(err))
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	log.Info("Product updated", zap.String("step", "update_product"))

	defer s.invalidate(ctx)

	hasThumbnail := false
	for _, img := range existing {
		if img.IsThumbnail {
			hasThumbnail = true
			break
		}
	}

	added, err := s.uploadImages(ctx, id, files, len(existing), !hasThumbnail)
	if err != nil {
		return nil, s.partial(log, id, StepUploadImages, err)
	}

	if err := s.images.InsertBatch(ctx, added); err != nil {
		return nil, s.partial(log, id, StepInsertImages, err)
	}
	if len(added) > 0 {
		log.Info("Product images appended", zap.String("step", string(StepInsertImages)), zap.Int("count", len(added)))
	}

	removed, err := s.variants.DeleteByProduct(ctx, id)
	if err != nil {
		return nil, s.partial(log, id, StepDeleteVariants, err)
	}

	variants := buildVariants(&updated, sub.SizeVariants, sub.ColorVariants, now)
	if err := s.variants.InsertBatch(ctx, variants); err != nil {
		return nil, s.partial(log, id, StepInsertVariants, err)
	}
	log.Info("Product variants replaced",
		zap.String("step", string(StepInsertVariants)),
		zap.Int64("removed", removed),
		zap.Int("inserted", len(variants)),
	)

	images := append(append([]*domain.ProductImage{}, existing...), added...)
	return assembleDetail(&updated, images, variants, s.placeholder), nil
}

// DeleteProduct removes the product and its dependents in one procedure call,
// then removes the stored image objects. Object removal failures are only logged.
func (s *catalogService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	keys, err := s.products.DeleteWithCleanup(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return err
		}
		s.logger.Error("Atomic product delete failed", zap.String("product_id", id.String()), zap.Error(err))
		return &DeleteFailure{ProductID: id, Err: err}
	}

	s.invalidate(ctx)
	s.logger.Info("Product deleted", zap.String("product_id", id.String()), zap.Int("images", len(keys)))

	if len(keys) > 0 {
		if err := s.store.Remove(ctx, keys); err != nil {
			s.logger.Warn("Failed to remove stored images of deleted product",
				zap.String("product_id", id.String()),
				zap.Strings("keys", keys),
				zap.Error(err),
			)
		}
	}

	return nil
}

// DeleteImage removes the stored object, then the metadata row. The two are not
// atomic: a failure between them leaves a row pointing at a missing object.
func (s *catalogService) DeleteImage(ctx context.Context, productID, imageID uuid.UUID) error {
	image, err := s.images.FindByID(ctx, imageID)
	if err != nil {
		return err
	}
	if image.ProductID != productID {
		return repository.ErrImageNotFound
	}

	if err := s.store.Remove(ctx, []string{image.Filename}); err != nil {
		return fmt.Errorf("failed to remove stored image: %w", err)
	}

	if err := s.images.Delete(ctx, imageID); err != nil {
		s.logger.Error("Image object removed but metadata row remains",
			zap.String("product_id", productID.String()),
			zap.String("image_id", imageID.String()),
			zap.Error(err),
		)
		return err
	}

	s.invalidate(ctx)
	s.logger.Info("Product image deleted",
		zap.String("product_id", productID.String()),
		zap.String("image_id", imageID.String()),
		zap.Bool("was_thumbnail", image.IsThumbnail),
	)
	return nil
}

// SetStatus moves a product through its lifecycle. Publishing requires at least
// one image, one size and one color.
func (s *catalogService) SetStatus(ctx context.Context, id uuid.UUID, status domain.ProductStatus) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}

	if status == domain.StatusPublished {
		if _, err := s.products.FindByID(ctx, id); err != nil {
			return err
		}

		images, err := s.images.ListByProduct(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to load images: %w", err)
		}
		variants, err := s.variants.ListByProduct(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to load variants: %w", err)
		}

		if fields := publishable(images, variants); !fields.Empty() {
			return &ValidationError{Fields: fields}
		}
	}

	if err := s.products.UpdateStatus(ctx, id, status); err != nil {
		return err
	}

	s.invalidate(ctx)
	s.logger.Info("Product status changed", zap.String("product_id", id.String()), zap.String("status", string(status)))
	return nil
}

// AddPlacement appends a product to the end of a section
func (s *catalogService) AddPlacement(ctx context.Context, section domain.Section, productID uuid.UUID) (*domain.FeaturedPlacement, error) {
	if !section.Valid() {
		return nil, ErrInvalidSection
	}

	if _, err := s.products.FindByID(ctx, productID); err != nil {
		return nil, err
	}

	position, err := s.placements.NextPosition(ctx, section)
	if err != nil {
		return nil, err
	}

	placement := &domain.FeaturedPlacement{
		ID:        uuid.New(),
		ProductID: productID,
		Section:   section,
		Position:  position,
		CreatedAt: s.now(),
	}
	if err := s.placements.Create(ctx, placement); err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	return placement, nil
}

// RemovePlacement takes a product out of a section. The product itself is untouched.
func (s *catalogService) RemovePlacement(ctx context.Context, section domain.Section, productID uuid.UUID) error {
	if !section.Valid() {
		return ErrInvalidSection
	}
	if err := s.placements.Delete(ctx, section, productID); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// ListIncompleteDrafts lists drafts a failed write left without images or variants
func (s *catalogService) ListIncompleteDrafts(ctx context.Context) ([]*domain.DraftHealth, error) {
	return s.products.FindIncompleteDrafts(ctx)
}

func (s *catalogService) checkSubmission(sub domain.ProductSubmission) (domain.ParsedFields, error) {
	if fields := validation.Validate(sub); !fields.Empty() {
		return domain.ParsedFields{}, &ValidationError{Fields: fields}
	}

	parsed, err := sub.Parse()
	if err != nil {
		return domain.ParsedFields{}, fmt.Errorf("failed to parse validated submission: %w", err)
	}
	return parsed, nil
}

// ensureSKUFree fails with a ConflictError when another product owns sku.
// self is the product being edited, uuid.Nil on create.
func (s *catalogService) ensureSKUFree(ctx context.Context, sku string, self uuid.UUID) error {
	owner, err := s.products.FindBySKU(ctx, sku)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil
		}
		return fmt.Errorf("failed to check sku: %w", err)
	}
	if owner.ID != self {
		return &ConflictError{Field: "sku", Message: validation.MsgSKUExists}
	}
	return nil
}

// uploadImages stores files in parallel and returns their rows once every
// upload finished. Positions start at offset; the first file becomes the
// thumbnail when thumbnailFirst is set.
func (s *catalogService) uploadImages(ctx context.Context, productID uuid.UUID, files []ImageUpload, offset int, thumbnailFirst bool) ([]*domain.ProductImage, error) {
	rows := make([]*domain.ProductImage, len(files))
	if len(files) == 0 {
		return rows, nil
	}

	at := s.now()
	g, gctx := errgroup.WithContext(ctx)

	for i, file := range files {
		position := offset + i
		key := storage.ObjectKey(s.keyPrefix, productID, position, at, file.Filename, file.ContentType)

		g.Go(func() error {
			url, err := s.store.Put(gctx, key, file.ContentType, file.Data)
			if err != nil {
				return fmt.Errorf("failed to upload %q: %w", file.Filename, err)
			}
			rows[i] = &domain.ProductImage{
				ID:               uuid.New(),
				ProductID:        productID,
				URL:              url,
				Filename:         key,
				OriginalFilename: file.Filename,
				SizeBytes:        int64(len(file.Data)),
				MimeType:         file.ContentType,
				Position:         position,
				IsThumbnail:      thumbnailFirst && i == 0,
				CreatedAt:        at,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.discardUploads(ctx, productID, rows)
		return nil, err
	}
	return rows, nil
}

// discardUploads removes objects of a failed batch so no row-less objects remain
func (s *catalogService) discardUploads(ctx context.Context, productID uuid.UUID, rows []*domain.ProductImage) {
	var keys []string
	for _, row := range rows {
		if row != nil {
			keys = append(keys, row.Filename)
		}
	}
	if len(keys) == 0 {
		return
	}
	if err := s.store.Remove(ctx, keys); err != nil {
		s.logger.Warn("Failed to discard uploads of failed batch",
			zap.String("product_id", productID.String()),
			zap.Strings("keys", keys),
			zap.Error(err),
		)
	}
}

func (s *catalogService) partial(log *zap.Logger, productID uuid.UUID, step WriteStep, err error) error {
	log.Error("Product left incomplete", zap.String("step", string(step)), zap.Error(err))
	return &PartialWriteError{ProductID: productID, Step: step, Err: err}
}

func (s *catalogService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(context.WithoutCancel(ctx)); err != nil {
		s.logger.Warn("Failed to invalidate catalog cache", zap.Error(err))
	}
}

// buildVariants turns form rows into variant rows with SKUs {sku}-S{n} and {sku}-C{n}
func buildVariants(product *domain.Product, sizes, colors []domain.VariantInput, at time.Time) []*domain.ProductVariant {
	out := make([]*domain.ProductVariant, 0, len(sizes)+len(colors))
	add := func(t domain.VariantType, code string, rows []domain.VariantInput) {
		for i, row := range rows {
			stock := 0
			if row.StockQuantity != nil {
				stock = *row.StockQuantity
			}
			out = append(out, &domain.ProductVariant{
				ID:            uuid.New(),
				ProductID:     product.ID,
				VariantType:   t,
				VariantValue:  strings.TrimSpace(row.Value),
				StockQuantity: stock,
				VariantSKU:    fmt.Sprintf("%s-%s%d", product.SKU, code, i+1),
				CreatedAt:     at,
			})
		}
	}
	add(domain.VariantSize, "S", sizes)
	add(domain.VariantColor, "C", colors)
	return out
}

// publishable reports what a product still lacks before it can be sold
func publishable(images []*domain.ProductImage, variants []*domain.ProductVariant) validation.FieldErrors {
	var fields validation.FieldErrors
	if len(images) == 0 {
		fields.Images = validation.MsgImagesRequired
	}
	sizes, colors := PartitionVariants(variants)
	if len(sizes) == 0 {
		fields.SizeVariants = validation.MsgSizeVariantsRequired
	}
	if len(colors) == 0 {
		fields.ColorVariants = validation.MsgColorVariantsRequired
	}
	return fields
}

func conflictFrom(err error) *ConflictError {
	switch {
	case errors.Is(err, repository.ErrSKUTaken):
		return &ConflictError{Field: "sku", Message: validation.MsgSKUExists}
	case errors.Is(err, repository.ErrSlugTaken):
		return &ConflictError{Field: "slug", Message: MsgSlugExists}
	}
	return nil
}
