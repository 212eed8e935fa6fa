package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"solemate/internal/domain"
	"solemate/internal/repository"

	"github.com/google/uuid"
)

// memBackend is an in-memory stand-in for the catalog tables
type memBackend struct {
	mu         sync.Mutex
	calls      int
	products   map[uuid.UUID]*domain.Product
	order      []uuid.UUID
	images     map[uuid.UUID]*domain.ProductImage
	variants   []*domain.ProductVariant
	placements []*domain.FeaturedPlacement

	createErr         error
	insertImagesErr   error
	insertVariantsErr error
	deleteVariantsErr error
	deleteErr         error
}

func newMemBackend() *memBackend {
	return &memBackend{
		products: make(map[uuid.UUID]*domain.Product),
		images:   make(map[uuid.UUID]*domain.ProductImage),
	}
}

func (b *memBackend) repos() Repositories {
	return Repositories{
		Products:   &fakeProducts{b},
		Images:     &fakeImages{b},
		Variants:   &fakeVariants{b},
		Placements: &fakePlacements{b},
	}
}

func (b *memBackend) touch() {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
}

func (b *memBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func (b *memBackend) productImages(productID uuid.UUID) []*domain.ProductImage {
	out := []*domain.ProductImage{}
	for _, img := range b.images {
		if img.ProductID == productID {
			cp := *img
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

func (b *memBackend) productVariants(productID uuid.UUID) []*domain.ProductVariant {
	out := []*domain.ProductVariant{}
	for _, v := range b.variants {
		if v.ProductID == productID {
			cp := *v
			out = append(out, &cp)
		}
	}
	return out
}

// seed stores a product directly, bypassing the services
func (b *memBackend) seed(p *domain.Product) *domain.Product {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := *p
	b.products[p.ID] = &cp
	b.order = append(b.order, p.ID)
	return p
}

func (b *memBackend) seedImages(images ...*domain.ProductImage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, img := range images {
		cp := *img
		b.images[img.ID] = &cp
	}
}

func (b *memBackend) seedVariants(variants ...*domain.ProductVariant) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, v := range variants {
		cp := *v
		b.variants = append(b.variants, &cp)
	}
}

type fakeProducts struct{ b *memBackend }

func (f *fakeProducts) Create(ctx context.Context, product *domain.Product) error {
	f.b.touch()
	f.b.mu.Lock()
	defer f.b.mu.Unlock()
	if f.b.createErr != nil {
		return f.b.createErr
	}
	for _, p := range f.b.products {
		if p.SKU == product.SKU {
			return repository.ErrSKUTaken
		}
		if p.Slug == product.Slug {
			return repository.ErrSlugTaken
		}
	}
	cp := *product
	f.b.products[product.ID] = &cp
	f.b.order = append(f.b.order, product.ID)
	return nil
}

func (f *fakeProducts) Update(ctx context.Context, product *domain.Product) error {
	f.b.touch()
	f.b.mu.Lock()
	defer f.b.mu.Unlock()
	current, ok := f.b.products[product.ID]
	if !ok {
		return repository.ErrProductNotFound
	}
	for _, p := range f.b.products {
		if p.ID != product.ID && p.SKU == product.SKU {
			return repository.ErrSKUTaken
		}
	}
	cp := *product
	cp.Slug = current.Slug
	cp.Status = current.Status
	f.b.products[product.ID] = &cp
	return nil
}

func (f *fakeProducts) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ProductStatus) error {
	f.b.touch()
	f.b.mu.Lock()
	defer f.b.mu.Unlock()
	p, ok := f.b.products[id]
	if !ok {
		return repository.ErrProductNotFound
	}
	p.Status = status
	return nil
}

func (f *fakeProducts) find(match func(*domain.Product) bool) (*domain.Product, error) {
	f.b.touch()
	f.b.mu.Lock()
	defer f.b.mu.Unlock()
	for _, id := range f.b.order {
		if p, ok := f.b.products[id]; ok && match(p) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrProductNotFound
}

func (f *fakeProducts) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return f.find(func(p *domain.Product) bool { return p.ID == id })
}

func (f *fakeProducts) FindBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	return f.find(func(p *domain.Product) bool { return p.Slug == slug })
}

func (f *fakeProducts) FindBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	return f.find(func(p *domain.Product) bool { return p.SKU == sku })
}

func (f *fakeProducts) List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, error) {
	f.b.touch()
	f.b.mu.Lock()
	defer f.b.mu.Unlock()
	out := []*domain.Product{}
	for i := len(f.b.order) - 1; i >= 0; i-- {
		p, ok := f.b.products[f.b.order[i]]
		if !ok {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.ProductType != "" && p.ProductType != filter.ProductType {
			continue
		}
		if filter.Collection != "" && p.Collection != filter.Collection {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeProducts) ListSimilar(ctx context.Context, q repository.SimilarQuery) ([]*domain.Product, error) {
	f.b.touch()
	f.b.mu.Lock()
	defer f.b.mu.Unlock()
	excluded := make(map[uuid.UUID]bool, len(q.ExcludeIDs))
	for _, id := range q.ExcludeIDs {
		excluded[id] = true
	}
	out := []*domain.Product{}
	for _, id := range f.b.order {
		if len(out) >= q.Limit {
			break
		}
		p, ok := f.b.products[id]
		if !ok || excluded[p.ID] || p.ProductType != q.ProductType {
			continue
		}
		if (p.Collection == q.Collection) != q.SameCollection {
			continue
		}
		if q.Status != "" && p.Status != q.Status {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeProducts) FindIncompleteDrafts(ctx context.Context) ([]*domain.DraftHealth, error) {
	f.b.touch()
	f.b.mu.Lock()
	defer f.b.mu.Unlock()
	out := []*domain.DraftHealth{}
	for _, id := range f.b.order {
		p, ok := f.b.products[id]
		if !ok || p.Status != domain.StatusDraft {
			continue
		}
		d := &domain.DraftHealth{ProductID: p.ID, SKU: p.SKU, Slug: p.Slug, Name: p.Name, CreatedAt: p.CreatedAt}
		d.ImageCount = len(f.b.productImages(p.ID))
		sizes, colors := PartitionVariants(f.b.productVariants(p.ID))
		d.SizeCount, d.ColorCount = len(sizes), len(colors)
		if !d.Complete() {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeProducts) DeleteWithCleanup(ctx context.Context, id uuid.UUID) ([]string, error) {
	f.b.touch()
	f.b.mu.Lock()
	defer f.b.mu.Unlock()
	if f.b.deleteErr != nil {
		return nil, f.b.deleteErr
	}
	if _, ok := f.b.products[id]; !ok {
		return nil, repository.ErrProductNotFound
	}

	keys := []string{}
	for imgID, img := range f.b.images {
		if img.ProductID == id {
			keys = append(keys, img.Filename)
			delete(f.b.images, imgID)
		}
	}
	kept := f.b.variants[:0]
	for _, v := range f.b.variants {
		if v.ProductID != id {
			kept = append(kept, v)
		}
	}
	f.b.variants = kept
	placements := f.b.placements[:0]
	for _, p := range f.b.placements {
		if p.ProductID != id {
			placements = append(placements, p)
		}
	}
	f.b.placements = placements
	delete(f.b.products, id)
	return keys, nil
}

type fakeImages struct{ b *memBackend }

func (f *fakeImages) ListByProduct(ctx context.Context, productID uuid.UUID) ([]*domain.ProductImage, error) {
	f.b.touch()
	f.b.mu.Lock()
	defer f.b.mu.Unlock()
	return f.b.productImages(productID), nil
}

func (f *fakeImages) ListByProducts(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID][]*domain.ProductImage, error) {
	f.b.touch()
	f.b.mu.Lock()
	defer f.b.mu.Unlock()
	out := make(map[uuid.UUID][]*domain.ProductImage, len(productIDs))
	for _, id := range productIDs {
		if imgs := f.b.productImages(id); len(imgs) > 0 {
			out[id] = imgs
		}
	}
	return out, nil
}

func (f *fakeImages) FindByID(ctx context.Context, id uuid.UUID) (*domain.ProductImage, error) {
	f.b.touch()
	f.b.mu.Lock()
	defer f.b.mu.Unlock()
	img, ok := f.b.images[id]
	if !ok {
		return nil, repository.ErrImageNotFound
	}
	cp := *img
	return &cp, nil
}

func (f *fakeImages) InsertBatch(ctx context.Context, images []*domain.ProductImage) error {
	f.b.touch()
	f.b.mu.Lock()
	defer f.b.mu.Unlock()
	if f.b.insertImagesErr != nil {
		return f.b.insertImagesErr
	}
	for _, img := range images {
		if img.IsThumbnail {
			for _, existing := range f.b.images {
				if existing.ProductID == img.ProductID && existing.IsThumbnail {
					return repository.ErrThumbnailConflict
				}
			}
		}
		cp := *img
		f.b.images[img.ID] = &cp
	}
	return nil
}

func (f *fakeImages) Delete(ctx context.Context, id uuid.UUID) error {
	f.b.touch()
	f.b.mu.Lock()
	defer f.b.mu.Unlock()
	if _, ok := f.b.images[id]; !ok {
		return repository.ErrImageNotFound
	}
	delete(f.b.images, id)
	return nil
}

type fakeVariants struct{ b *memBackend }

func (f *fakeVariants) ListByProduct(ctx context.Context, productID uuid.UUID) ([]*domain.ProductVariant, error) {
	f.b.touch()
	f.b.mu.Lock()
	defer f.b.mu.Unlock()
	return f.b.productVariants(productID), nil
}

func (f *fakeVariants) InsertBatch(ctx context.Context, variants []*domain.ProductVariant) error {
	f.b.touch()
	f.b.mu.Lock()
	defer f.b.mu.Unlock()
	if f.b.insertVariantsErr != nil {
		return f.b.insertVariantsErr
	}
	for _, v := range variants {
		cp := *v
		f.b.variants = append(f.b.variants, &cp)
	}
	return nil
}

func (f *fakeVariants) DeleteByProduct(ctx context.Context, productID uuid.UUID) (int64, error) {
	f.b.touch()
	f.b.mu.Lock()
	defer f.b.mu.Unlock()
	if f.b.deleteVariantsErr != nil {
		return 0, f.b.deleteVariantsErr
	}
	kept := f.b.variants[:0]
	var removed int64
	for _, v := range f.b.variants {
		if v.ProductID == productID {
			removed++
			continue
		}
		kept = append(kept, v)
	}
	f.b.variants = kept
	return removed, nil
}

type fakePlacements struct{ b *memBackend }

func (f *fakePlacements) Create(ctx context.Context, placement *domain.FeaturedPlacement) error {
	f.b.touch()
	f.b.mu.Lock()
	defer f.b.mu.Unlock()
	for _, p := range f.b.placements {
		if p.Section == placement.Section && p.ProductID == placement.ProductID {
			return repository.ErrPlacementExists
		}
	}
	cp := *placement
	f.b.placements = append(f.b.placements, &cp)
	return nil
}

func (f *fakePlacements) Delete(ctx context.Context, section domain.Section, productID uuid.UUID) error {
	f.b.touch()
	f.b.mu.Lock()
	defer f.b.mu.Unlock()
	for i, p := range f.b.placements {
		if p.Section == section && p.ProductID == productID {
			f.b.placements = append(f.b.placements[:i], f.b.placements[i+1:]...)
			return nil
		}
	}
	return repository.ErrPlacementNotFound
}

func (f *fakePlacements) sorted(section domain.Section) []*domain.FeaturedPlacement {
	out := []*domain.FeaturedPlacement{}
	for _, p := range f.b.placements {
		if p.Section == section {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

func (f *fakePlacements) ListBySection(ctx context.Context, section domain.Section) ([]*domain.FeaturedPlacement, error) {
	f.b.touch()
	f.b.mu.Lock()
	defer f.b.mu.Unlock()
	return f.sorted(section), nil
}

func (f *fakePlacements) ListProductsBySection(ctx context.Context, section domain.Section, status domain.ProductStatus) ([]*domain.Product, error) {
	f.b.touch()
	f.b.mu.Lock()
	defer f.b.mu.Unlock()
	out := []*domain.Product{}
	for _, placement := range f.sorted(section) {
		p, ok := f.b.products[placement.ProductID]
		if !ok || (status != "" && p.Status != status) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakePlacements) NextPosition(ctx context.Context, section domain.Section) (int, error) {
	f.b.touch()
	f.b.mu.Lock()
	defer f.b.mu.Unlock()
	next := 0
	for _, p := range f.b.placements {
		if p.Section == section && p.Position >= next {
			next = p.Position + 1
		}
	}
	return next, nil
}

// fakeStore records uploads; failPut makes every Put fail
type fakeStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	puts      int
	removed   []string
	failPut   error
	failOn    string
	removeErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (s *fakeStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	if s.failPut != nil {
		return "", s.failPut
	}
	if s.failOn != "" && strings.Contains(key, s.failOn) {
		return "", errors.New("upload rejected")
	}
	s.objects[key] = data
	return "https://img.test/" + key, nil
}

func (s *fakeStore) Remove(ctx context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removeErr != nil {
		return s.removeErr
	}
	for _, k := range keys {
		delete(s.objects, k)
		s.removed = append(s.removed, k)
	}
	return nil
}

func (s *fakeStore) putCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts
}

func (s *fakeStore) objectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// countingCache counts invalidations and never hits
type countingCache struct {
	mu            sync.Mutex
	invalidations int
}

func (c *countingCache) Get(context.Context, string, string, any) (int64, bool) { return 0, false }
func (c *countingCache) Set(context.Context, int64, string, string, any)        {}
func (c *countingCache) Invalidate(context.Context) error {
	c.mu.Lock()
	c.invalidations++
	c.mu.Unlock()
	return nil
}

func (c *countingCache) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invalidations
}
