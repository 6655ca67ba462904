// Package sampler implements the Page-State Sampler (C2): a single
// in-page evaluation that captures a PageStateSnapshot, and diffing
// between two snapshots to detect what kind of change occurred.
//
// Grounded on the teacher's scraper/page.go extraction step (single
// page.HTML()+document.title read) generalized to a richer structured
// capture, and on models.Diff (models/snapshot.go) for the comparison.
package sampler

import (
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/asie/browser"
	"github.com/use-agent/asie/models"
)

var priceLeafRegex = regexp.MustCompile(`[\$€£¥]\s*\d+[.,]?\d*`)

var variantContainerRegex = regexp.MustCompile(`(?i)variant|color|colour|size|option`)

// Sampler captures PageStateSnapshots from a Browser Session by parsing
// its serialized outer HTML, the same snapshot C3's candidate finder
// consumes (§4.3's implementation note).
type Sampler struct{}

func New() *Sampler { return &Sampler{} }

// Capture returns a PageStateSnapshot for the session's current page
// (§4.2).
func (s *Sampler) Capture(ctx context.Context, b browser.Browser) (models.PageStateSnapshot, error) {
	html, err := b.OuterHTML(ctx)
	if err != nil {
		return models.PageStateSnapshot{}, err
	}
	url, _ := b.URL(ctx)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return models.PageStateSnapshot{}, err
	}

	snap := models.PageStateSnapshot{
		URL:   url,
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
	}
	snap.PriceText = findPriceText(doc)
	snap.Images = findProductImages(doc, 3)
	snap.Availability = findPrimaryButtonState(doc)
	snap.SelectedVariants = findSelectedVariants(doc)

	return snap, nil
}

// Diff delegates to models.Diff; kept as a method so callers depend only
// on the sampler for both halves of the capture/diff contract.
func (s *Sampler) Diff(before, after models.PageStateSnapshot) ([]models.Change, int) {
	return models.Diff(before, after)
}

// findPriceText returns the first text match of the price pattern in a
// short leaf element, per §4.2.
func findPriceText(doc *goquery.Document) string {
	var found string
	doc.Find("span, div, p, strong, b").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if sel.Children().Length() > 0 {
			return true // not a leaf
		}
		text := strings.TrimSpace(sel.Text())
		if len(text) == 0 || len(text) > 40 {
			return true
		}
		if m := priceLeafRegex.FindString(text); m != "" {
			found = m
			return false
		}
		return true
	})
	return found
}

// findProductImages returns the src+alt of up to limit images whose class
// or src includes "product", in DOM order, per §4.2.
func findProductImages(doc *goquery.Document, limit int) []models.ProductImage {
	var images []models.ProductImage
	doc.Find("img").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		class, _ := sel.Attr("class")
		src, _ := sel.Attr("src")
		if !strings.Contains(strings.ToLower(class), "product") && !strings.Contains(strings.ToLower(src), "product") {
			return true
		}
		alt, _ := sel.Attr("alt")
		images = append(images, models.ProductImage{Src: src, Alt: alt})
		return len(images) < limit
	})
	return images
}

// addToCartTokens mirrors C3's availability heuristic tokens (§4.3).
var addToCartTokens = []string{"add to cart", "add to bag", "buy now", "add-to-cart"}

// findPrimaryButtonState finds the add-to-cart-like button, per §4.2.
func findPrimaryButtonState(doc *goquery.Document) models.ButtonState {
	var state models.ButtonState
	doc.Find("button, input[type=submit], a[role=button]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.ToLower(strings.TrimSpace(sel.Text()))
		class, _ := sel.Attr("class")
		id, _ := sel.Attr("id")
		haystack := text + " " + strings.ToLower(class) + " " + strings.ToLower(id)
		matched := false
		for _, tok := range addToCartTokens {
			if strings.Contains(haystack, tok) {
				matched = true
				break
			}
		}
		if !matched {
			return true
		}
		_, disabled := sel.Attr("disabled")
		ariaDisabled, _ := sel.Attr("aria-disabled")
		state = models.ButtonState{
			Text:         strings.TrimSpace(sel.Text()),
			Disabled:     disabled,
			AriaDisabled: ariaDisabled == "true",
			Classes:      class,
		}
		return false
	})
	return state
}

// findSelectedVariants captures the text of .selected/.active elements
// inside variant-like containers plus the values of visible selected
// form controls, per §4.2.
func findSelectedVariants(doc *goquery.Document) map[string]string {
	selected := make(map[string]string)

	doc.Find(".selected, .active").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		container := sel.Parent().Closest("[class]")
		class, _ := container.Attr("class")
		if !variantContainerRegex.MatchString(class) {
			return true
		}
		group := variantContainerRegex.FindString(strings.ToLower(class))
		selected[group] = strings.TrimSpace(sel.Text())
		return true
	})

	doc.Find("select").Each(func(_ int, sel *goquery.Selection) {
		name, _ := sel.Attr("name")
		if name == "" {
			name, _ = sel.Attr("id")
		}
		val := sel.Find("option[selected]").First()
		if val.Length() > 0 && name != "" {
			selected[name] = strings.TrimSpace(val.Text())
		}
	})

	return selected
}
