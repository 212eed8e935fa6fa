package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"solemate/internal/domain"
	"solemate/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultRecommendationLimit = 8

	cacheKindProduct = "product"
	cacheKindSection = "section"
)

// ReadCache holds read projections between writes. Implementations must treat
// every failure as a miss. Get returns the cache version it read; Set files the
// value under that version so a load that raced a write is never served.
type ReadCache interface {
	Get(ctx context.Context, kind, id string, dest any) (int64, bool)
	Set(ctx context.Context, version int64, kind, id string, value any)
	Invalidate(ctx context.Context) error
}

type nopCache struct{}

func (nopCache) Get(context.Context, string, string, any) (int64, bool) { return 0, false }
func (nopCache) Set(context.Context, int64, string, string, any)        {}
func (nopCache) Invalidate(context.Context) error                       { return nil }

// ProductDetail is a product with everything the product page renders
type ProductDetail struct {
	Product      *domain.Product          `json:"product"`
	Images       []*domain.ProductImage   `json:"images"`
	Variants     []*domain.ProductVariant `json:"variants"`
	Sizes        []*domain.ProductVariant `json:"sizes"`
	Colors       []*domain.ProductVariant `json:"colors"`
	ThumbnailURL string                   `json:"thumbnail_url"`
}

// ProductSummary is a list row: the product and its resolved thumbnail
type ProductSummary struct {
	*domain.Product
	ThumbnailURL string `json:"thumbnail_url"`
}

// Thumbnail picks the image that represents a product in lists: the flagged
// thumbnail, else the lowest position, else the placeholder
func Thumbnail(images []*domain.ProductImage, placeholder string) string {
	if len(images) == 0 {
		return placeholder
	}

	ordered := make([]*domain.ProductImage, 0, len(images))
	for _, img := range images {
		if img != nil {
			ordered = append(ordered, img)
		}
	}
	if len(ordered) == 0 {
		return placeholder
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Position < ordered[j].Position })

	for _, img := range ordered {
		if img.IsThumbnail {
			return img.URL
		}
	}
	return ordered[0].URL
}

// PartitionVariants splits variants into sizes and colors, comparing types case-insensitively
func PartitionVariants(variants []*domain.ProductVariant) (sizes, colors []*domain.ProductVariant) {
	sizes = []*domain.ProductVariant{}
	colors = []*domain.ProductVariant{}
	for _, v := range variants {
		switch {
		case v == nil:
		case v.VariantType.Is(domain.VariantSize):
			sizes = append(sizes, v)
		case v.VariantType.Is(domain.VariantColor):
			colors = append(colors, v)
		}
	}
	return sizes, colors
}

// CatalogQuery assembles products for display
type CatalogQuery struct {
	products            repository.ProductRepository
	images              repository.ImageRepository
	variants            repository.VariantRepository
	placements          repository.PlacementRepository
	cache               ReadCache
	placeholder         string
	recommendationLimit int
	logger              *zap.Logger
}

// NewCatalogQuery creates the read side. A nil cache disables caching and a
// non-positive limit falls back to DefaultRecommendationLimit.
func NewCatalogQuery(
	repos Repositories,
	cache ReadCache,
	placeholder string,
	recommendationLimit int,
	logger *zap.Logger,
) *CatalogQuery {
	if cache == nil {
		cache = nopCache{}
	}
	if recommendationLimit <= 0 {
		recommendationLimit = DefaultRecommendationLimit
	}
	return &CatalogQuery{
		products:            repos.Products,
		images:              repos.Images,
		variants:            repos.Variants,
		placements:          repos.Placements,
		cache:               cache,
		placeholder:         placeholder,
		recommendationLimit: recommendationLimit,
		logger:              logger,
	}
}

// GetProductBySlug loads a product page by its public identifier
func (q *CatalogQuery) GetProductBySlug(ctx context.Context, slug string) (*ProductDetail, error) {
	var cached ProductDetail
	version, hit := q.cache.Get(ctx, cacheKindProduct, slug, &cached)
	if hit {
		return &cached, nil
	}

	product, err := q.products.FindBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	detail, err := q.detail(ctx, product)
	if err != nil {
		return nil, err
	}

	q.cache.Set(ctx, version, cacheKindProduct, slug, detail)
	return detail, nil
}

// GetProductByID loads a product with its images and variants
func (q *CatalogQuery) GetProductByID(ctx context.Context, id uuid.UUID) (*ProductDetail, error) {
	product, err := q.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return q.detail(ctx, product)
}

func (q *CatalogQuery) detail(ctx context.Context, product *domain.Product) (*ProductDetail, error) {
	images, err := q.images.ListByProduct(ctx, product.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load images: %w", err)
	}

	variants, err := q.variants.ListByProduct(ctx, product.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load variants: %w", err)
	}

	return assembleDetail(product, images, variants, q.placeholder), nil
}

func assembleDetail(product *domain.Product, images []*domain.ProductImage, variants []*domain.ProductVariant, placeholder string) *ProductDetail {
	sizes, colors := PartitionVariants(variants)
	return &ProductDetail{
		Product:      product,
		Images:       images,
		Variants:     variants,
		Sizes:        sizes,
		Colors:       colors,
		ThumbnailURL: Thumbnail(images, placeholder),
	}
}

// ListProducts returns products matching the filter with their thumbnails
func (q *CatalogQuery) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]ProductSummary, error) {
	products, err := q.products.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return q.summarize(ctx, products)
}

// Recommendations returns up to the configured number of published products of
// the same type: same collection first, then other collections. Order inside a
// tier is whatever the database returns.
func (q *CatalogQuery) Recommendations(ctx context.Context, product *domain.Product) ([]ProductSummary, error) {
	picked, err := q.products.ListSimilar(ctx, repository.SimilarQuery{
		ProductType:    product.ProductType,
		Collection:     product.Collection,
		SameCollection: true,
		ExcludeIDs:     []uuid.UUID{product.ID},
		Status:         domain.StatusPublished,
		Limit:          q.recommendationLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load same-collection recommendations: %w", err)
	}

	if missing := q.recommendationLimit - len(picked); missing > 0 {
		exclude := make([]uuid.UUID, 0, len(picked)+1)
		exclude = append(exclude, product.ID)
		for _, p := range picked {
			exclude = append(exclude, p.ID)
		}

		more, err := q.products.ListSimilar(ctx, repository.SimilarQuery{
			ProductType: product.ProductType,
			Collection:  product.Collection,
			ExcludeIDs:  exclude,
			Status:      domain.StatusPublished,
			Limit:       missing,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load recommendations: %w", err)
		}
		picked = append(picked, more...)
	}

	if len(picked) > q.recommendationLimit {
		picked = picked[:q.recommendationLimit]
	}

	return q.summarize(ctx, picked)
}

// ListSection returns the published products placed in a section, in placement order
func (q *CatalogQuery) ListSection(ctx context.Context, section domain.Section) ([]ProductSummary, error) {
	if !section.Valid() {
		return nil, ErrInvalidSection
	}

	var cached []ProductSummary
	version, hit := q.cache.Get(ctx, cacheKindSection, string(section), &cached)
	if hit {
		return cached, nil
	}

	products, err := q.placements.ListProductsBySection(ctx, section, domain.StatusPublished)
	if err != nil {
		return nil, err
	}

	summaries, err := q.summarize(ctx, products)
	if err != nil {
		return nil, err
	}

	q.cache.Set(ctx, version, cacheKindSection, string(section), summaries)
	return summaries, nil
}

func (q *CatalogQuery) summarize(ctx context.Context, products []*domain.Product) ([]ProductSummary, error) {
	summaries := make([]ProductSummary, 0, len(products))
	if len(products) == 0 {
		return summaries, nil
	}

	ids := make([]uuid.UUID, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}

	images, err := q.images.ListByProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load thumbnails: %w", err)
	}

	for _, p := range products {
		summaries = append(summaries, ProductSummary{
			Product:      p,
			ThumbnailURL: Thumbnail(images[p.ID], q.placeholder),
		})
	}
	return summaries, nil
}

// IsNotFound reports whether err means the requested catalog row does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, repository.ErrProductNotFound) ||
		errors.Is(err, repository.ErrImageNotFound) ||
		errors.Is(err, repository.ErrPlacementNotFound)
}
