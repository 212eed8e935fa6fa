package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"solemate/internal/domain"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProduct(productType domain.ProductType, collection domain.Collection) *domain.Product {
	id := uuid.New()
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &domain.Product{
		ID:                id,
		Name:              "Runner " + id.String()[:6],
		NameArabic:        "حذاء",
		Description:       "Light running shoe",
		DescriptionArabic: "حذاء جري خفيف",
		Price:             decimal.RequireFromString("49.90"),
		ProductType:       productType,
		Collection:        collection,
		Quantity:          10,
		SKU:               "SKU-" + id.String()[:12],
		Slug:              "runner-" + id.String(),
		Status:            domain.StatusDraft,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func createTestProduct(t *testing.T, productType domain.ProductType, collection domain.Collection) *domain.Product {
	t.Helper()
	p := newTestProduct(productType, collection)
	require.NoError(t, NewProductRepository(testDB).Create(context.Background(), p))
	return p
}

// Feature: catalog-admin, Property 2: Product creation preserves attributes
func TestProperty_ProductCreationPreservesAttributes(t *testing.T) {
	repo := NewProductRepository(testDB)

	properties := gopter.NewProperties(nil)

	properties.Property("creating and retrieving a product preserves all attributes", prop.ForAll(
		func(name string, cents int64, quantity int, withMatch bool) bool {
			ctx := context.Background()

			product := newTestProduct(domain.ProductTypeWomen, domain.CollectionCasual)
			product.Name = name
			product.Price = decimal.New(cents, -2)
			product.Quantity = quantity
			if withMatch {
				match := decimal.New(cents+500, -2)
				product.MatchAtPrice = &match
			}

			if err := repo.Create(ctx, product); err != nil {
				t.Logf("FAIL: Failed to create product: %v", err)
				return false
			}

			got, err := repo.FindBySKU(ctx, product.SKU)
			if err != nil {
				t.Logf("FAIL: Failed to retrieve product: %v", err)
				return false
			}

			if got.ID != product.ID || got.Name != product.Name || got.Quantity != product.Quantity {
				t.Logf("FAIL: attributes mismatch: %+v vs %+v", got, product)
				return false
			}
			if !got.Price.Equal(product.Price) {
				t.Logf("FAIL: Price mismatch. Expected %s, got %s", product.Price, got.Price)
				return false
			}
			if withMatch != (got.MatchAtPrice != nil) {
				t.Logf("FAIL: match_at_price presence mismatch")
				return false
			}
			if withMatch && !got.MatchAtPrice.Equal(*product.MatchAtPrice) {
				t.Logf("FAIL: match_at_price mismatch")
				return false
			}

			_, _ = repo.DeleteWithCleanup(ctx, product.ID)
			return true
		},
		gen.RegexMatch(`[A-Za-z0-9 ]{3,50}`),
		gen.Int64Range(1, 999999),
		gen.IntRange(0, 1000),
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestProductRepository_UniqueConstraints(t *testing.T) {
	repo := NewProductRepository(testDB)
	ctx := context.Background()

	existing := createTestProduct(t, domain.ProductTypeMen, domain.CollectionSneakers)

	sameSKU := newTestProduct(domain.ProductTypeMen, domain.CollectionSneakers)
	sameSKU.SKU = existing.SKU
	assert.ErrorIs(t, repo.Create(ctx, sameSKU), ErrSKUTaken)

	sameSlug := newTestProduct(domain.ProductTypeMen, domain.CollectionSneakers)
	sameSlug.Slug = existing.Slug
	assert.ErrorIs(t, repo.Create(ctx, sameSlug), ErrSlugTaken)

	other := createTestProduct(t, domain.ProductTypeMen, domain.CollectionSneakers)
	other.SKU = existing.SKU
	assert.ErrorIs(t, repo.Update(ctx, other), ErrSKUTaken)
}

func TestProductRepository_UpdateKeepsSlugAndStatus(t *testing.T) {
	repo := NewProductRepository(testDB)
	ctx := context.Background()

	product := createTestProduct(t, domain.ProductTypeWomen, domain.CollectionSandals)
	require.NoError(t, repo.UpdateStatus(ctx, product.ID, domain.StatusPublished))

	originalSlug := product.Slug
	product.Name = "Renamed"
	product.Slug = "ignored-slug"
	product.Status = domain.StatusDraft
	product.Price = decimal.RequireFromString("12.50")
	require.NoError(t, repo.Update(ctx, product))

	got, err := repo.FindByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, originalSlug, got.Slug)
	assert.Equal(t, domain.StatusPublished, got.Status)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("12.50")))

	bySlug, err := repo.FindBySlug(ctx, originalSlug)
	require.NoError(t, err)
	assert.Equal(t, product.ID, bySlug.ID)

	missing := newTestProduct(domain.ProductTypeMen, domain.CollectionCasual)
	assert.ErrorIs(t, repo.Update(ctx, missing), ErrProductNotFound)
	assert.ErrorIs(t, repo.UpdateStatus(ctx, missing.ID, domain.StatusArchived), ErrProductNotFound)
}

func TestProductRepository_ListFiltersNewestFirst(t *testing.T) {
	repo := NewProductRepository(testDB)
	ctx := context.Background()

	older := newTestProduct(domain.ProductTypeWomen, domain.CollectionDressShoes)
	older.CreatedAt = time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)
	require.NoError(t, repo.Create(ctx, older))
	newer := createTestProduct(t, domain.ProductTypeWomen, domain.CollectionDressShoes)

	list, err := repo.List(ctx, domain.ProductFilter{
		ProductType: domain.ProductTypeWomen,
		Collection:  domain.CollectionDressShoes,
		Status:      domain.StatusDraft,
	})
	require.NoError(t, err)

	var ids []uuid.UUID
	for _, p := range list {
		assert.Equal(t, domain.CollectionDressShoes, p.Collection)
		ids = append(ids, p.ID)
	}
	require.Contains(t, ids, older.ID)
	require.Contains(t, ids, newer.ID)

	indexOf := func(id uuid.UUID) int {
		for i, v := range ids {
			if v == id {
				return i
			}
		}
		return -1
	}
	assert.Less(t, indexOf(newer.ID), indexOf(older.ID))

	limited, err := repo.List(ctx, domain.ProductFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestProductRepository_ListSimilar(t *testing.T) {
	repo := NewProductRepository(testDB)
	ctx := context.Background()

	base := createTestProduct(t, domain.ProductTypeMen, domain.CollectionCasual)
	same := createTestProduct(t, domain.ProductTypeMen, domain.CollectionCasual)
	other := createTestProduct(t, domain.ProductTypeMen, domain.CollectionSandals)
	women := createTestProduct(t, domain.ProductTypeWomen, domain.CollectionCasual)

	inside, err := repo.ListSimilar(ctx, SimilarQuery{
		ProductType:    domain.ProductTypeMen,
		Collection:     domain.CollectionCasual,
		SameCollection: true,
		ExcludeIDs:     []uuid.UUID{base.ID},
		Limit:          100,
	})
	require.NoError(t, err)
	insideIDs := productIDs(inside)
	assert.Contains(t, insideIDs, same.ID)
	assert.NotContains(t, insideIDs, base.ID)
	assert.NotContains(t, insideIDs, other.ID)
	assert.NotContains(t, insideIDs, women.ID)

	outside, err := repo.ListSimilar(ctx, SimilarQuery{
		ProductType: domain.ProductTypeMen,
		Collection:  domain.CollectionCasual,
		ExcludeIDs:  []uuid.UUID{base.ID},
		Limit:       100,
	})
	require.NoError(t, err)
	outsideIDs := productIDs(outside)
	assert.Contains(t, outsideIDs, other.ID)
	assert.NotContains(t, outsideIDs, same.ID)

	published, err := repo.ListSimilar(ctx, SimilarQuery{
		ProductType:    domain.ProductTypeMen,
		Collection:     domain.CollectionCasual,
		SameCollection: true,
		Status:         domain.StatusPublished,
		Limit:          100,
	})
	require.NoError(t, err)
	assert.NotContains(t, productIDs(published), same.ID)

	none, err := repo.ListSimilar(ctx, SimilarQuery{ProductType: domain.ProductTypeMen, Limit: 0})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestProductRepository_FindIncompleteDrafts(t *testing.T) {
	repo := NewProductRepository(testDB)
	images := NewImageRepository(testDB)
	variants := NewVariantRepository(testDB)
	ctx := context.Background()

	bare := createTestProduct(t, domain.ProductTypeWomen, domain.CollectionSneakers)
	full := createTestProduct(t, domain.ProductTypeWomen, domain.CollectionSneakers)

	require.NoError(t, images.InsertBatch(ctx, testImages(full.ID, 1)))
	require.NoError(t, variants.InsertBatch(ctx, testVariants(full, 1, 1)))

	drafts, err := repo.FindIncompleteDrafts(ctx)
	require.NoError(t, err)

	var found *domain.DraftHealth
	for _, d := range drafts {
		assert.NotEqual(t, full.ID, d.ProductID)
		if d.ProductID == bare.ID {
			found = d
		}
	}
	require.NotNil(t, found)
	assert.Zero(t, found.ImageCount)
	assert.Zero(t, found.SizeCount)
	assert.False(t, found.Complete())
}

func TestProductRepository_DeleteWithCleanup(t *testing.T) {
	repo := NewProductRepository(testDB)
	images := NewImageRepository(testDB)
	variants := NewVariantRepository(testDB)
	placements := NewPlacementRepository(testDB)
	ctx := context.Background()

	product := createTestProduct(t, domain.ProductTypeMen, domain.CollectionDressShoes)
	imgs := testImages(product.ID, 3)
	require.NoError(t, images.InsertBatch(ctx, imgs))
	require.NoError(t, variants.InsertBatch(ctx, testVariants(product, 2, 2)))
	require.NoError(t, placements.Create(ctx, &domain.FeaturedPlacement{
		ID: uuid.New(), ProductID: product.ID, Section: domain.SectionSale, CreatedAt: time.Now(),
	}))

	keys, err := repo.DeleteWithCleanup(ctx, product.ID)
	require.NoError(t, err)

	var want []string
	for _, img := range imgs {
		want = append(want, img.Filename)
	}
	assert.ElementsMatch(t, want, keys)

	_, err = repo.FindByID(ctx, product.ID)
	assert.ErrorIs(t, err, ErrProductNotFound)

	left, err := images.ListByProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Empty(t, left)

	leftVariants, err := variants.ListByProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Empty(t, leftVariants)

	sale, err := placements.ListBySection(ctx, domain.SectionSale)
	require.NoError(t, err)
	for _, p := range sale {
		assert.NotEqual(t, product.ID, p.ProductID)
	}

	_, err = repo.DeleteWithCleanup(ctx, product.ID)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func productIDs(products []*domain.Product) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	return ids
}

func testImages(productID uuid.UUID, n int) []*domain.ProductImage {
	out := make([]*domain.ProductImage, 0, n)
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("products/%s/%d-1700000000000.jpg", productID, i)
		out = append(out, &domain.ProductImage{
			ID:               uuid.New(),
			ProductID:        productID,
			URL:              "https://cdn.example.com/" + key,
			Filename:         key,
			OriginalFilename: fmt.Sprintf("shoe-%d.jpg", i),
			SizeBytes:        1024,
			MimeType:         "image/jpeg",
			Position:         i,
			IsThumbnail:      i == 0,
			CreatedAt:        time.Now(),
		})
	}
	return out
}

func testVariants(product *domain.Product, sizes, colors int) []*domain.ProductVariant {
	var out []*domain.ProductVariant
	for i := 1; i <= sizes; i++ {
		out = append(out, &domain.ProductVariant{
			ID:            uuid.New(),
			ProductID:     product.ID,
			VariantType:   domain.VariantSize,
			VariantValue:  fmt.Sprintf("%d", 39+i),
			StockQuantity: i,
			VariantSKU:    fmt.Sprintf("%s-S%d", product.SKU, i),
			CreatedAt:     time.Now(),
		})
	}
	for i := 1; i <= colors; i++ {
		out = append(out, &domain.ProductVariant{
			ID:           uuid.New(),
			ProductID:    product.ID,
			VariantType:  domain.VariantColor,
			VariantValue: fmt.Sprintf("color-%d", i),
			VariantSKU:   fmt.Sprintf("%s-C%d", product.SKU, i),
			CreatedAt:    time.Now(),
		})
	}
	return out
}
