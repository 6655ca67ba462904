package models

import "time"

// ProductImage is a single extracted image reference.
type ProductImage struct {
	Src string
	Alt string
}

// ButtonState captures the primary add-to-cart-like control's observable
// state, used both for sampling and for availability scoring.
type ButtonState struct {
	Text         string
	Disabled     bool
	AriaDisabled bool
	Classes      string
}

// PageStateSnapshot is a deterministic projection of the page at one
// instant. It exists only for comparison (diff) and is never persisted.
type PageStateSnapshot struct {
	URL              string
	Title            string
	PriceText        string
	Images           []ProductImage
	Availability     ButtonState
	SelectedVariants map[string]string // group key -> selected label/value
	CapturedAt       time.Time
}

// ChangeType is the closed set of observable deltas between two snapshots.
type ChangeType string

const (
	ChangeURL               ChangeType = "URL_CHANGE"
	ChangePrice             ChangeType = "PRICE_CHANGE"
	ChangeImage             ChangeType = "IMAGE_CHANGE"
	ChangeAvailability      ChangeType = "AVAILABILITY_CHANGE"
	ChangeVariantSelection  ChangeType = "VARIANT_SELECTION_CHANGE"
	ChangeOther             ChangeType = "OTHER"
)

// changeWeights are the per-type confidence contributions used by Diff.
var changeWeights = map[ChangeType]int{
	ChangeImage:            40,
	ChangePrice:            35,
	ChangeURL:              30,
	ChangeVariantSelection: 25,
	ChangeAvailability:     20,
	ChangeOther:            10,
}

// multiTypeBonus is added once when >=2 distinct change types are present.
const multiTypeBonus = 15

// Change is one typed delta between two snapshots.
type Change struct {
	Type   ChangeType
	Before string
	After  string
}

// Diff compares two snapshots and returns the list of observed Changes plus
// a total confidence clamped to [0,100] (§4.2).
func Diff(before, after PageStateSnapshot) ([]Change, int) {
	var changes []Change

	if before.URL != after.URL {
		changes = append(changes, Change{Type: ChangeURL, Before: before.URL, After: after.URL})
	}
	if before.PriceText != after.PriceText {
		changes = append(changes, Change{Type: ChangePrice, Before: before.PriceText, After: after.PriceText})
	}
	if !sameImages(before.Images, after.Images) {
		changes = append(changes, Change{Type: ChangeImage, Before: imagesKey(before.Images), After: imagesKey(after.Images)})
	}
	if before.Availability != after.Availability {
		changes = append(changes, Change{
			Type:   ChangeAvailability,
			Before: availabilityKey(before.Availability),
			After:  availabilityKey(after.Availability),
		})
	}
	if !sameVariants(before.SelectedVariants, after.SelectedVariants) {
		changes = append(changes, Change{Type: ChangeVariantSelection})
	}

	total := 0
	distinctTypes := make(map[ChangeType]struct{}, len(changes))
	for _, c := range changes {
		total += changeWeights[c.Type]
		distinctTypes[c.Type] = struct{}{}
	}
	if len(distinctTypes) >= 2 {
		total += multiTypeBonus
	}
	if total > 100 {
		total = 100
	}
	return changes, total
}

func sameImages(a, b []ProductImage) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func imagesKey(imgs []ProductImage) string {
	if len(imgs) == 0 {
		return ""
	}
	return imgs[0].Src
}

func availabilityKey(b ButtonState) string {
	return b.Text
}

func sameVariants(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
