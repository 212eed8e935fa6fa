package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductType is the audience a shoe is made for
type ProductType string

const (
	ProductTypeMen   ProductType = "men"
	ProductTypeWomen ProductType = "women"
)

// Collection groups products by shoe style
type Collection string

const (
	CollectionSneakers   Collection = "sneakers"
	CollectionCasual     Collection = "casual"
	CollectionDressShoes Collection = "dress shoes"
	CollectionSandals    Collection = "sandals"
)

// ProductStatus is the lifecycle state of a product
type ProductStatus string

const (
	StatusDraft     ProductStatus = "draft"
	StatusPublished ProductStatus = "published"
	StatusArchived  ProductStatus = "archived"
)

// Valid reports whether s is a known status
func (s ProductStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusArchived:
		return true
	}
	return false
}

// VariantType distinguishes size variants from color variants
type VariantType string

const (
	VariantSize  VariantType = "size"
	VariantColor VariantType = "color"
)

// Is compares variant types case-insensitively
func (t VariantType) Is(other VariantType) bool {
	return strings.EqualFold(strings.TrimSpace(string(t)), string(other))
}

// Section is a curated storefront placement list
type Section string

const (
	SectionFeatured Section = "featured"
	SectionSale     Section = "sale"
)

// Valid reports whether s is a known section
func (s Section) Valid() bool {
	return s == SectionFeatured || s == SectionSale
}

// Product represents a shoe in the catalog
type Product struct {
	ID                uuid.UUID        `json:"id" db:"id"`
	Name              string           `json:"name" db:"name"`
	NameArabic        string           `json:"name_arabic" db:"name_arabic"`
	Description       string           `json:"description" db:"description"`
	DescriptionArabic string           `json:"description_arabic" db:"description_arabic"`
	Price             decimal.Decimal  `json:"price" db:"price"`
	MatchAtPrice      *decimal.Decimal `json:"match_at_price,omitempty" db:"match_at_price"`
	ProductType       ProductType      `json:"product_type" db:"product_type"`
	Collection        Collection       `json:"collection" db:"collection"`
	Quantity          int              `json:"quantity" db:"quantity"`
	SKU               string           `json:"sku" db:"sku"`
	Slug              string           `json:"slug" db:"slug"`
	Status            ProductStatus    `json:"status" db:"status"`
	CreatedAt         time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at" db:"updated_at"`
}

// ProductImage is an uploaded picture owned by a product
type ProductImage struct {
	ID               uuid.UUID `json:"id" db:"id"`
	ProductID        uuid.UUID `json:"product_id" db:"product_id"`
	URL              string    `json:"url" db:"url"`
	Filename         string    `json:"filename" db:"filename"`
	OriginalFilename string    `json:"original_filename" db:"original_filename"`
	SizeBytes        int64     `json:"size_bytes" db:"size_bytes"`
	MimeType         string    `json:"mime_type" db:"mime_type"`
	Position         int       `json:"position" db:"position"`
	IsThumbnail      bool      `json:"is_thumbnail" db:"is_thumbnail"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// ProductVariant is a purchasable size or color of a product.
// A variant with zero stock is sold out but still listed.
type ProductVariant struct {
	ID            uuid.UUID   `json:"id" db:"id"`
	ProductID     uuid.UUID   `json:"product_id" db:"product_id"`
	VariantType   VariantType `json:"variant_type" db:"variant_type"`
	VariantValue  string      `json:"variant_value" db:"variant_value"`
	StockQuantity int         `json:"stock_quantity" db:"stock_quantity"`
	VariantSKU    string      `json:"variant_sku" db:"variant_sku"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
}

// SoldOut reports whether the variant can no longer be purchased
func (v ProductVariant) SoldOut() bool {
	return v.StockQuantity <= 0
}

// FeaturedPlacement surfaces a product in a storefront section.
// It references the product and never owns it.
type FeaturedPlacement struct {
	ID        uuid.UUID `json:"id" db:"id"`
	ProductID uuid.UUID `json:"product_id" db:"product_id"`
	Section   Section   `json:"section" db:"section"`
	Position  int       `json:"position" db:"position"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ProductFilter narrows product listings. Zero values mean "any".
type ProductFilter struct {
	Status      ProductStatus
	ProductType ProductType
	Collection  Collection
	Limit       int
	Offset      int
}

// DraftHealth summarizes what a draft product has persisted so far.
// A create or update that failed midway leaves a draft with missing dependents.
type DraftHealth struct {
	ProductID  uuid.UUID `json:"product_id"`
	SKU        string    `json:"sku"`
	Slug       string    `json:"slug"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
	ImageCount int       `json:"image_count"`
	SizeCount  int       `json:"size_count"`
	ColorCount int       `json:"color_count"`
}

// Complete reports whether the product has everything required for sale
func (d DraftHealth) Complete() bool {
	return d.ImageCount > 0 && d.SizeCount > 0 && d.ColorCount > 0
}
