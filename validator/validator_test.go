package validator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/asie/browser"
	"github.com/use-agent/asie/models"
	"github.com/use-agent/asie/sampler"
)

func TestResult_Validated(t *testing.T) {
	tests := []struct {
		name       string
		works      bool
		confidence float64
		want       bool
	}{
		{"works and above floor", true, 0.30, true},
		{"works but below floor", true, 0.29, false},
		{"does not work", false, 0.90, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Result{Works: tt.works, Confidence: tt.confidence}
			if got := r.Validated(); got != tt.want {
				t.Errorf("Validated() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResult_ShortCircuit(t *testing.T) {
	tests := []struct {
		confidence float64
		want       bool
	}{
		{0.85, true},
		{0.86, true},
		{0.84, false},
	}
	for _, tt := range tests {
		r := Result{Confidence: tt.confidence}
		if got := r.ShortCircuit(); got != tt.want {
			t.Errorf("ShortCircuit(%v) = %v, want %v", tt.confidence, got, tt.want)
		}
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-1, 0},
		{0.5, 0.5},
		{2, 1},
	}
	for _, tt := range tests {
		if got := clamp(tt.in); got != tt.want {
			t.Errorf("clamp(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// fakeElementHandle is the minimal ElementHandle a fakeBrowser hands back:
// just the selector it was resolved from, like rodElementHandle.
type fakeElementHandle struct{ selector string }

func (h *fakeElementHandle) Selector() string { return h.selector }

// fakeBrowser simulates a page with a disabled add-to-cart button that
// only enables once its one variant group (a size dropdown) is selected,
// toggling state on SelectByIndex the way a real storefront's own JS
// would on a real "change" event.
type fakeBrowser struct {
	disabledHTML string
	enabledHTML  string
	selected     bool
}

func (b *fakeBrowser) currentHTML() string {
	if b.selected {
		return b.enabledHTML
	}
	return b.disabledHTML
}

func (b *fakeBrowser) Navigate(ctx context.Context, url string, waitUntil browser.WaitUntil, timeout time.Duration) error {
	return nil
}

func (b *fakeBrowser) Evaluate(ctx context.Context, fn string, args ...any) (any, error) {
	return nil, nil
}

func (b *fakeBrowser) Query(ctx context.Context, selector string) ([]browser.ElementHandle, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(b.currentHTML()))
	if err != nil {
		return nil, err
	}
	n := doc.Find(selector).Length()
	handles := make([]browser.ElementHandle, n)
	for i := range handles {
		handles[i] = &fakeElementHandle{selector: selector}
	}
	return handles, nil
}

func (b *fakeBrowser) Click(ctx context.Context, h browser.ElementHandle) error { return nil }
func (b *fakeBrowser) Hover(ctx context.Context, h browser.ElementHandle) error { return nil }

func (b *fakeBrowser) SelectByIndex(ctx context.Context, h browser.ElementHandle, i int) error {
	b.selected = true
	return nil
}

func (b *fakeBrowser) Type(ctx context.Context, h browser.ElementHandle, s string) error { return nil }
func (b *fakeBrowser) ScrollBy(ctx context.Context, dx, dy float64) error                { return nil }
func (b *fakeBrowser) WaitMs(ctx context.Context, ms int) error                          { return nil }

func (b *fakeBrowser) OuterHTML(ctx context.Context) (string, error) { return b.currentHTML(), nil }
func (b *fakeBrowser) URL(ctx context.Context) (string, error)       { return "https://example.test/product", nil }
func (b *fakeBrowser) DismissPopups(ctx context.Context)             {}
func (b *fakeBrowser) Close() error                                  { return nil }

const disabledAddToCartHTML = `<html><body>
<div class="variant-group">
<label>Size</label>
<select class="size-select" name="size"><option value="">Select a size</option><option value="m">M</option></select>
</div>
<button class="add-to-cart" disabled>Add to cart</button>
</body></html>`

const enabledAddToCartHTML = `<html><body>
<div class="variant-group">
<label>Size</label>
<select class="size-select" name="size"><option value="">Select a size</option><option value="m" selected>M</option></select>
</div>
<button class="add-to-cart">Add to cart</button>
</body></html>`

// TestValidator_Validate_DisabledStatusButtonPreselectsVariant covers §8
// Scenario 2: a disabled add-to-cart button that only becomes clickable
// once a variant is selected. act() must detect the disabled state, run
// the variant pre-selection flow, and retry the click.
func TestValidator_Validate_DisabledStatusButtonPreselectsVariant(t *testing.T) {
	b := &fakeBrowser{disabledHTML: disabledAddToCartHTML, enabledHTML: enabledAddToCartHTML}
	v := New(sampler.New())

	loc := models.Locator{Selector: "button.add-to-cart"}
	result, err := v.Validate(context.Background(), b, models.FieldAvailability, loc, 0.5)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !b.selected {
		t.Fatal("Validate() did not run the variant pre-selection flow before retrying the click")
	}
	if !result.Works {
		t.Fatalf("Validate() Works = false, want true: disabled button should unlock via variant pre-selection")
	}
}
