package validation

import (
	"math"
	"strconv"
	"strings"

	"solemate/internal/domain"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("product_type", func(fl validator.FieldLevel) bool {
		switch domain.ProductType(fl.Field().String()) {
		case domain.ProductTypeMen, domain.ProductTypeWomen:
			return true
		}
		return false
	})
	_ = validate.RegisterValidation("collection", func(fl validator.FieldLevel) bool {
		switch domain.Collection(fl.Field().String()) {
		case domain.CollectionSneakers, domain.CollectionCasual, domain.CollectionDressShoes, domain.CollectionSandals:
			return true
		}
		return false
	})
}

// Messages returned to the admin form
const (
	MsgNameRequired              = "Product name is required"
	MsgNameArabicRequired        = "Arabic product name is required"
	MsgDescriptionRequired       = "Description is required"
	MsgDescriptionArabicRequired = "Arabic description is required"
	MsgPriceRequired             = "Price is required"
	MsgPriceInvalid              = "Price must be a number greater than 0"
	MsgMatchAtPriceInvalid       = "Compare-at price must be a number of at least 0"
	MsgPricePrecision            = "Price must have at most 2 decimal places and 8 digits before the point"
	MsgMatchAtPricePrecision     = "Compare-at price must have at most 2 decimal places and 8 digits before the point"
	MsgQuantityRequired          = "Quantity is required"
	MsgQuantityInvalid           = "Quantity must be a whole number of at least 0"
	MsgQuantityTooLarge          = "Quantity is too large"
	MsgSKURequired               = "SKU is required"
	MsgSKUExists                 = "SKU already exists"
	MsgProductTypeInvalid        = "Product type must be men or women"
	MsgCollectionInvalid         = "Collection must be sneakers, casual, dress shoes or sandals"
	MsgImagesRequired            = "At least one image is required"
	MsgSizeVariantsRequired      = "At least one size with a value and stock quantity is required"
	MsgColorVariantsRequired     = "At least one color with a value and stock quantity is required"
)

// Prices are stored as DECIMAL(10,2) and counts as INTEGER
const (
	priceScale = 2
	maxCount   = math.MaxInt32
)

var maxPrice = decimal.New(1, 10-priceScale)

// FieldErrors has one message slot per form field. An empty slot means the field is valid.
type FieldErrors struct {
	Name              string `json:"name,omitempty"`
	NameArabic        string `json:"name_arabic,omitempty"`
	Description       string `json:"description,omitempty"`
	DescriptionArabic string `json:"description_arabic,omitempty"`
	Price             string `json:"price,omitempty"`
	MatchAtPrice      string `json:"match_at_price,omitempty"`
	Quantity          string `json:"quantity,omitempty"`
	SKU               string `json:"sku,omitempty"`
	ProductType       string `json:"product_type,omitempty"`
	Collection        string `json:"collection,omitempty"`
	Images            string `json:"images,omitempty"`
	SizeVariants      string `json:"size_variants,omitempty"`
	ColorVariants     string `json:"color_variants,omitempty"`
}

// Empty reports whether no field has an error
func (e FieldErrors) Empty() bool {
	return e == FieldErrors{}
}

// Map returns the non-empty slots keyed by their form field name
func (e FieldErrors) Map() map[string]string {
	out := make(map[string]string)
	add := func(key, msg string) {
		if msg != "" {
			out[key] = msg
		}
	}
	add("name", e.Name)
	add("name_arabic", e.NameArabic)
	add("description", e.Description)
	add("description_arabic", e.DescriptionArabic)
	add("price", e.Price)
	add("match_at_price", e.MatchAtPrice)
	add("quantity", e.Quantity)
	add("sku", e.SKU)
	add("product_type", e.ProductType)
	add("collection", e.Collection)
	add("images", e.Images)
	add("size_variants", e.SizeVariants)
	add("color_variants", e.ColorVariants)
	return out
}

// Validate checks a product submission without touching the backend.
// Every rule runs; the result collects all failures.
func Validate(sub domain.ProductSubmission) FieldErrors {
	var errs FieldErrors

	if blank(sub.Name) {
		errs.Name = MsgNameRequired
	}
	if blank(sub.NameArabic) {
		errs.NameArabic = MsgNameArabicRequired
	}
	if blank(sub.Description) {
		errs.Description = MsgDescriptionRequired
	}
	if blank(sub.DescriptionArabic) {
		errs.DescriptionArabic = MsgDescriptionArabicRequired
	}

	if price := strings.TrimSpace(sub.Price); price == "" {
		errs.Price = MsgPriceRequired
	} else {
		errs.Price = checkPrice(price, false, MsgPriceInvalid, MsgPricePrecision)
	}

	if match := strings.TrimSpace(sub.MatchAtPrice); match != "" {
		errs.MatchAtPrice = checkPrice(match, true, MsgMatchAtPriceInvalid, MsgMatchAtPricePrecision)
	}

	switch qty := strings.TrimSpace(sub.Quantity); {
	case qty == "":
		errs.Quantity = MsgQuantityRequired
	case validate.Var(qty, "number") != nil:
		errs.Quantity = MsgQuantityInvalid
	default:
		if n, err := strconv.Atoi(qty); err != nil || n > maxCount {
			errs.Quantity = MsgQuantityTooLarge
		}
	}

	if blank(sub.SKU) {
		errs.SKU = MsgSKURequired
	}

	if validate.Var(string(sub.ProductType), "product_type") != nil {
		errs.ProductType = MsgProductTypeInvalid
	}
	if validate.Var(string(sub.Collection), "collection") != nil {
		errs.Collection = MsgCollectionInvalid
	}

	if sub.NewImageCount == 0 && sub.ExistingImageCount == 0 {
		errs.Images = MsgImagesRequired
	}

	if !variantsComplete(sub.SizeVariants) {
		errs.SizeVariants = MsgSizeVariantsRequired
	}
	if !variantsComplete(sub.ColorVariants) {
		errs.ColorVariants = MsgColorVariantsRequired
	}

	return errs
}

// variantsComplete requires a non-empty set where every row has a value and
// a defined stock between 0 and maxCount. Zero stock is a valid sold-out variant.
func variantsComplete(rows []domain.VariantInput) bool {
	if len(rows) == 0 {
		return false
	}
	for _, row := range rows {
		if blank(row.Value) || row.StockQuantity == nil || *row.StockQuantity < 0 || *row.StockQuantity > maxCount {
			return false
		}
	}
	return true
}

// checkPrice returns invalid when s is not a number in range and precision
// when it does not fit the price column
func checkPrice(s string, allowZero bool, invalid, precision string) string {
	if validate.Var(s, "numeric") != nil {
		return invalid
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return invalid
	}
	if d.IsNegative() || (!allowZero && d.IsZero()) {
		return invalid
	}
	if !d.Equal(d.Truncate(priceScale)) || d.GreaterThanOrEqual(maxPrice) {
		return precision
	}
	return ""
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
