// Package validator implements the Interactive Validator (C4): it takes
// a candidate Locator, performs the minimal field-appropriate action, and
// measures whether the page actually changed in response.
//
// Grounded on the teacher's scraper/actions.go dispatch-by-type shape
// (executeSingleAction's switch over action.Type), generalized from
// fixed user-supplied actions to field-driven validation actions.
package validator

import (
	"context"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/asie/browser"
	"github.com/use-agent/asie/models"
	"github.com/use-agent/asie/sampler"
	"github.com/use-agent/asie/variant"
)

// maxElementsTried caps how many matched elements are exercised per
// field, per §4.4 step 2.
const maxElementsTried = 3

// pollInterval and maxWait implement the progressive-polling wait in
// §4.4 step 4.
const pollInterval = 150 * time.Millisecond
const maxWait = 1500 * time.Millisecond

// shortCircuitConfidence stops further validation for a field once a
// candidate reaches this final confidence (§4.4).
const shortCircuitConfidence = 0.85

// Result is the outcome of validating one locator (§4.4 step 6).
type Result struct {
	Works       bool
	Confidence  float64 // final confidence, clamped to [0,1]
	Reliability float64 // successful_elements / tested
	Changes     []models.Change
}

// Validated reports whether works && confidence >= 0.30, per §4.4.
func (r Result) Validated() bool {
	return r.Works && r.Confidence >= 0.30
}

// ShortCircuit reports whether r is good enough to stop trying more
// candidates for this field.
func (r Result) ShortCircuit() bool {
	return r.Confidence >= shortCircuitConfidence
}

// Validator exercises candidates against a live Browser Session.
type Validator struct {
	sampler *sampler.Sampler
}

func New(s *sampler.Sampler) *Validator {
	return &Validator{sampler: s}
}

// Validate runs the §4.4 contract for one candidate locator at the given
// DOM confidence (the candidate's raw scored confidence from C3).
func (v *Validator) Validate(ctx context.Context, b browser.Browser, field models.SemanticField, loc models.Locator, domConfidence float64) (Result, error) {
	before, err := v.sampler.Capture(ctx, b)
	if err != nil {
		return Result{}, err
	}

	handles, err := b.Query(ctx, loc.Selector)
	if err != nil {
		// NoMatch: caller decides whether to recordResult(false) on a
		// cached record; here we just report no interaction occurred.
		return Result{Confidence: clamp(0.6 * domConfidence)}, nil
	}
	if len(handles) > maxElementsTried {
		handles = handles[:maxElementsTried]
	}

	category := field.Category()
	tested := 0
	succeeded := 0
	var lastChanges []models.Change
	var lastScore int

	for i, h := range handles {
		tested++
		acted, err := v.act(ctx, b, category, h, i)
		if err != nil || !acted {
			continue
		}

		changes, score := v.waitForChange(ctx, b, before)
		if len(changes) > 0 {
			succeeded++
			lastChanges = changes
			if score > lastScore {
				lastScore = score
			}
		} else if category == models.CategoryText || category == models.CategoryPrice || category == models.CategoryImage {
			// No-action fields only need non-empty sampled content,
			// which act() already verified.
			succeeded++
		}
	}

	if tested == 0 {
		return Result{Confidence: clamp(0.6 * domConfidence)}, nil
	}

	works := succeeded > 0
	reliability := float64(succeeded) / float64(tested)

	var final float64
	if !works {
		final = clamp(0.6 * domConfidence)
	} else {
		interactionConfidence := float64(lastScore) // already 0-100
		final = clamp(0.4*domConfidence + 0.6*(interactionConfidence/100) + 0.1*reliability)
	}

	return Result{
		Works:       works,
		Confidence:  final,
		Reliability: reliability,
		Changes:     lastChanges,
	}, nil
}

// act performs the minimal field-appropriate action for category on h
// (§4.4 step 3). Returns false if the action could not be performed
// (e.g. element unreachable) without treating that as a hard error.
// index is h's position within the handles queried for this candidate,
// used to re-resolve the same element after a DOM-mutating retry.
func (v *Validator) act(ctx context.Context, b browser.Browser, category models.FieldCategory, h browser.ElementHandle, index int) (bool, error) {
	switch category {
	case models.CategoryOptions:
		if err := b.SelectByIndex(ctx, h, 0); err != nil {
			return false, nil
		}
		return true, nil
	case models.CategoryStatus:
		return v.clickStatus(ctx, b, h, index)
	default: // CategoryText, CategoryPrice, CategoryImage: verify non-empty only
		html, err := b.OuterHTML(ctx)
		if err != nil {
			return false, nil
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			return false, nil
		}
		el := doc.Find(h.Selector()).Eq(index)
		src, _ := el.Attr("src")
		return strings.TrimSpace(el.Text()) != "" || src != "", nil
	}
}

// clickStatus clicks a status-category element (e.g. an add-to-cart
// button). If the element is disabled and the page exposes variant
// groups, it first runs the §4.5 variant pre-selection flow — picking a
// non-placeholder option from the first selectable group — then
// re-resolves the element and retries the click (§4.4 step 3).
func (v *Validator) clickStatus(ctx context.Context, b browser.Browser, h browser.ElementHandle, index int) (bool, error) {
	if !v.isDisabled(ctx, b, h, index) {
		if err := b.Click(ctx, h); err != nil {
			return false, nil
		}
		return true, nil
	}

	if !v.preselectVariant(ctx, b) {
		return false, nil
	}

	handles, err := b.Query(ctx, h.Selector())
	if err != nil || index >= len(handles) {
		return false, nil
	}
	if err := b.Click(ctx, handles[index]); err != nil {
		return false, nil
	}
	return true, nil
}

// isDisabled checks the serialized DOM for h's disabled/aria-disabled
// state, matching sampler.findPrimaryButtonState's attribute-based idiom
// since ElementHandle exposes no live state accessor of its own.
func (v *Validator) isDisabled(ctx context.Context, b browser.Browser, h browser.ElementHandle, index int) bool {
	html, err := b.OuterHTML(ctx)
	if err != nil {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}
	sel := doc.Find(h.Selector())
	if index >= sel.Length() {
		return false
	}
	el := sel.Eq(index)
	if _, disabled := el.Attr("disabled"); disabled {
		return true
	}
	ariaDisabled, _ := el.Attr("aria-disabled")
	return ariaDisabled == "true"
}

// preselectVariant runs §4.5's pre-selection flow: build a VariantModel
// from the current page and pick the first non-disabled, non-placeholder
// option from the first group that has one. Returns whether a selection
// was made and produced an observed page update.
func (v *Validator) preselectVariant(ctx context.Context, b browser.Browser) bool {
	html, err := b.OuterHTML(ctx)
	if err != nil {
		return false
	}
	model, err := variant.BuildModel(html)
	if err != nil || len(model.Groups) == 0 {
		return false
	}

	sel := variant.NewSelector(b, v.sampler)
	for gi, group := range model.Groups {
		opt, ok := firstSelectableOption(group, model.GetOptions(gi))
		if !ok {
			continue
		}
		selected, err := sel.Select(ctx, group, opt)
		if err == nil && selected {
			return true
		}
	}
	return false
}

// firstSelectableOption picks the first non-disabled option in opts,
// skipping a dropdown's leading option when other options exist (the
// common placeholder-at-index-0 pattern, e.g. "Select a size").
func firstSelectableOption(group models.VariantGroup, opts []models.VariantOption) (models.VariantOption, bool) {
	for _, opt := range opts {
		if opt.Disabled {
			continue
		}
		if group.ControlType == models.ControlDropdown && opt.Index == 0 && len(opts) > 1 {
			continue
		}
		return opt, true
	}
	return models.VariantOption{}, false
}

// waitForChange polls up to maxWait, returning the first non-empty diff
// observed (§4.4 step 4-5).
func (v *Validator) waitForChange(ctx context.Context, b browser.Browser, before models.PageStateSnapshot) ([]models.Change, int) {
	deadline := time.Now().Add(maxWait)
	for time.Now().Before(deadline) {
		after, err := v.sampler.Capture(ctx, b)
		if err == nil {
			changes, score := v.sampler.Diff(before, after)
			if len(changes) > 0 {
				return changes, score
			}
		}
		select {
		case <-time.After(pollInterval):
		case <-ctx.Done():
			return nil, 0
		}
	}
	return nil, 0
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
