package domain

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// VariantInput is one size or color row of the admin product form.
// StockQuantity is nil when the admin left the field empty.
type VariantInput struct {
	Value         string `json:"value"`
	StockQuantity *int   `json:"stock_quantity"`
}

// ProductSubmission is the admin form payload for creating or editing a product.
// Numeric fields are kept as entered so the validator can report non-numeric input.
type ProductSubmission struct {
	Name              string         `json:"name"`
	NameArabic        string         `json:"name_arabic"`
	Description       string         `json:"description"`
	DescriptionArabic string         `json:"description_arabic"`
	Price             string         `json:"price"`
	MatchAtPrice      string         `json:"match_at_price"`
	Quantity          string         `json:"quantity"`
	SKU               string         `json:"sku"`
	ProductType       ProductType    `json:"product_type"`
	Collection        Collection     `json:"collection"`
	SizeVariants      []VariantInput `json:"size_variants"`
	ColorVariants     []VariantInput `json:"color_variants"`

	// NewImageCount and ExistingImageCount are filled by the caller from the
	// uploaded files and the persisted images; they only feed validation.
	NewImageCount      int `json:"-"`
	ExistingImageCount int `json:"-"`
}

// ParsedFields holds the numeric values of a submission that passed validation
type ParsedFields struct {
	Price        decimal.Decimal
	MatchAtPrice *decimal.Decimal
	Quantity     int
}

// Parse converts the numeric form fields. Callers validate first.
func (s ProductSubmission) Parse() (ParsedFields, error) {
	var out ParsedFields

	price, err := decimal.NewFromString(strings.TrimSpace(s.Price))
	if err != nil {
		return out, err
	}
	out.Price = price

	if m := strings.TrimSpace(s.MatchAtPrice); m != "" {
		match, err := decimal.NewFromString(m)
		if err != nil {
			return out, err
		}
		out.MatchAtPrice = &match
	}

	qty, err := strconv.Atoi(strings.TrimSpace(s.Quantity))
	if err != nil {
		return out, err
	}
	out.Quantity = qty

	return out, nil
}

// TrimmedSKU returns the SKU without surrounding whitespace
func (s ProductSubmission) TrimmedSKU() string {
	return strings.TrimSpace(s.SKU)
}
