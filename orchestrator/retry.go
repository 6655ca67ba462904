package orchestrator

import (
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/asie/browser"
	"github.com/use-agent/asie/models"
)

// RetryMethod is the adaptive-retry mini-algorithm's method selection
// (§4.7): which strategy to try next for a field still missing a working
// locator, chosen by availability of evidence rather than in fixed order.
type RetryMethod string

const (
	RetryProximitySearch         RetryMethod = "proximity_search"
	RetryInteractionDiscovery    RetryMethod = "interaction_discovery"
	RetryAlternativeInteractions RetryMethod = "alternative_interactions"
)

// fieldTagHints narrows proximity search to plausible element shapes per
// field, grounded on the same per-field
// heuristics candidates/heuristics.go already uses for first-pass discovery.
var fieldTagHints = map[models.SemanticField]*regexp.Regexp{
	models.FieldPrice:        regexp.MustCompile(`(?i)price|cost|amount`),
	models.FieldImages:       regexp.MustCompile(`(?i)image|photo|gallery|thumb`),
	models.FieldAvailability: regexp.MustCompile(`(?i)stock|avail|cart|buy`),
	models.FieldBrand:        regexp.MustCompile(`(?i)brand|manufacturer|vendor`),
}

var expandToggleText = regexp.MustCompile(`(?i)show more|expand|details|read more|view more`)

// ChooseRetryMethod picks a method by evidence availability: a known
// working locator for another field gives proximity search something to
// anchor on (high priority); the page having visible expand/toggle
// affordances supports interaction discovery (medium); otherwise fall
// back to alternative interactions against whatever candidate selector
// is already known.
func ChooseRetryMethod(rawHTML string, workingLocators map[models.SemanticField]models.Locator, field models.SemanticField) RetryMethod {
	if len(workingLocators) > 0 {
		return RetryProximitySearch
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err == nil {
		found := false
		doc.Find("button, a, [role=button]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if expandToggleText.MatchString(s.Text()) {
				found = true
				return false
			}
			return true
		})
		if found {
			return RetryInteractionDiscovery
		}
	}

	return RetryAlternativeInteractions
}

// proximityWindow is the DOM-adjacency substitute for the spec's 200px
// radius: since candidate discovery runs against a serialized HTML
// snapshot rather than a live layout (§4.3's implementation note), "near"
// is approximated as shared-parent siblings within this many DOM hops
// rather than literal pixel distance.
const proximityWindow = 2

// ProximitySearch scans near each known working locator for elements
// whose tag/attribute text matches field's hints, per §4.7's proximity
// search retry method.
func ProximitySearch(rawHTML string, workingLocators map[models.SemanticField]models.Locator, field models.SemanticField) []string {
	hint, ok := fieldTagHints[field]
	if !ok {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil
	}

	var found []string
	seen := make(map[string]bool)
	for _, loc := range workingLocators {
		anchor := doc.Find(loc.Selector).First()
		if anchor.Length() == 0 {
			continue
		}
		container := anchor
		for i := 0; i < proximityWindow; i++ {
			if p := container.Parent(); p.Length() > 0 {
				container = p
			}
		}
		container.Find("*").Each(func(_ int, s *goquery.Selection) {
			attrs := attrBlob(s)
			if !hint.MatchString(attrs) && !hint.MatchString(s.Text()) {
				return
			}
			sel, ok := synthesizeFromNode(doc, s)
			if !ok || seen[sel] {
				return
			}
			seen[sel] = true
			found = append(found, sel)
		})
	}
	return found
}

func attrBlob(s *goquery.Selection) string {
	var b strings.Builder
	for _, attr := range []string{"class", "id", "data-testid", "aria-label"} {
		if v, ok := s.Attr(attr); ok {
			b.WriteString(v)
			b.WriteByte(' ')
		}
	}
	return b.String()
}

// InteractionDiscovery performs the pokes of §4.7's interaction discovery:
// click the first img element on the page (not narrowed to product
// images), click the first button/link/[role=button] control (not
// narrowed to expand/toggle/show-more text), and scroll once — then
// returns whether any poke produced an observable DOM change via
// changeCount.
func InteractionDiscovery(ctx context.Context, b browser.Browser, changeCount func() (int, error)) (bool, error) {
	before, err := changeCount()
	if err != nil {
		return false, err
	}

	pokes := []func() error{
		func() error { return clickFirstMatch(ctx, b, "img") },
		func() error { return clickFirstMatch(ctx, b, "button, a, [role=button]") },
		func() error { return b.ScrollBy(ctx, 0, 400) },
	}
	for _, poke := range pokes {
		_ = poke()
		_ = b.WaitMs(ctx, 200)
	}

	after, err := changeCount()
	if err != nil {
		return false, err
	}
	return after != before, nil
}

func clickFirstMatch(ctx context.Context, b browser.Browser, selector string) error {
	handles, err := b.Query(ctx, selector)
	if err != nil || len(handles) == 0 {
		return err
	}
	return b.Click(ctx, handles[0])
}

// AlternativeInteractions retries a candidate selector with progressively
// more forceful interaction verbs until one yields an observable change,
// per §4.7: click -> hover -> select (option index 0). There is no
// separate focus step.
func AlternativeInteractions(ctx context.Context, b browser.Browser, selector string, changeCount func() (int, error)) (bool, error) {
	handles, err := b.Query(ctx, selector)
	if err != nil || len(handles) == 0 {
		return false, err
	}
	h := handles[0]

	before, err := changeCount()
	if err != nil {
		return false, err
	}

	verbs := []func() error{
		func() error { return b.Click(ctx, h) },
		func() error { return b.Hover(ctx, h) },
		func() error { return b.SelectByIndex(ctx, h, 0) },
	}
	for _, verb := range verbs {
		if err := verb(); err != nil {
			continue
		}
		b.WaitMs(ctx, 150)
		after, err := changeCount()
		if err != nil {
			return false, err
		}
		if after != before {
			return true, nil
		}
	}
	return false, nil
}

// synthesizeFromNode builds a best-effort selector for a proximity-search
// hit by trying its id, then each of its classes, and reports false when
// none of them matches exactly one element.
func synthesizeFromNode(doc *goquery.Document, s *goquery.Selection) (string, bool) {
	if id, ok := s.Attr("id"); ok && id != "" {
		sel := "#" + id
		if doc.Find(sel).Length() == 1 {
			return sel, true
		}
	}
	if cls, ok := s.Attr("class"); ok {
		for _, c := range strings.Fields(cls) {
			sel := "." + c
			if doc.Find(sel).Length() == 1 {
				return sel, true
			}
		}
	}
	return "", false
}
