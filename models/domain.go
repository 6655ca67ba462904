package models

import "strings"

// Domain is a lowercased, www-stripped host name. It is the identity key
// for all learning: locators, strategies, and domain memory are all keyed
// by Domain.
type Domain string

// NewDomain normalizes a raw host (or URL host component) into a Domain.
func NewDomain(host string) Domain {
	h := strings.ToLower(strings.TrimSpace(host))
	h = strings.TrimPrefix(h, "www.")
	return Domain(h)
}

func (d Domain) String() string { return string(d) }

// FieldCategory is the closed set of behavioral categories that
// SemanticFields map onto. Validation, sampling, and scoring policy all
// dispatch on category rather than on the field name itself.
type FieldCategory string

const (
	CategoryText    FieldCategory = "text"
	CategoryPrice   FieldCategory = "price"
	CategoryImage   FieldCategory = "image"
	CategoryOptions FieldCategory = "options"
	CategoryStatus  FieldCategory = "status"
)

// SemanticField is the closed enumeration of extractable product attributes.
type SemanticField string

const (
	FieldTitle         SemanticField = "title"
	FieldPrice         SemanticField = "price"
	FieldOriginalPrice SemanticField = "original_price"
	FieldImages        SemanticField = "images"
	FieldDescription   SemanticField = "description"
	FieldAvailability  SemanticField = "availability"
	FieldBrand         SemanticField = "brand"
	FieldVariants      SemanticField = "variants"
	FieldSize          SemanticField = "size"
	FieldColor         SemanticField = "color"
	FieldSKU           SemanticField = "sku"
	FieldRating        SemanticField = "rating"
)

// fieldCategories is the one place that ties a field name to its category.
// Adding a field kind never requires touching validation/sampling logic —
// only this table.
var fieldCategories = map[SemanticField]FieldCategory{
	FieldTitle:         CategoryText,
	FieldPrice:         CategoryPrice,
	FieldOriginalPrice: CategoryPrice,
	FieldImages:        CategoryImage,
	FieldDescription:   CategoryText,
	FieldAvailability:  CategoryStatus,
	FieldBrand:         CategoryText,
	FieldVariants:      CategoryOptions,
	FieldSize:          CategoryOptions,
	FieldColor:         CategoryOptions,
	FieldSKU:           CategoryText,
	FieldRating:        CategoryText,
}

// Category returns the behavioral category for a field. Unknown fields
// default to CategoryText, the least-invasive validation policy.
func (f SemanticField) Category() FieldCategory {
	if c, ok := fieldCategories[f]; ok {
		return c
	}
	return CategoryText
}

// RequiredFields are the fields a strategy must extract to be considered
// at all useful; each contributes weight 1 to quality scoring (§4.7/§8).
var RequiredFields = []SemanticField{FieldTitle, FieldPrice, FieldImages}

// OptionalFields contribute weight 0.5 to quality scoring.
var OptionalFields = []SemanticField{FieldDescription, FieldVariants, FieldBrand, FieldAvailability}
