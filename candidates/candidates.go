// Package candidates implements the DOM Candidate Finder (C3): for a
// given SemanticField, scan a serialized HTML snapshot and return up to
// 5 scored selector candidates.
//
// Grounded on the teacher's cleaner/selector.go (cascadia-based selector
// validation) and cleaner/pruning.go (text/link density heuristics),
// generalized from a single-purpose content filter to per-field
// candidate scoring.
package candidates

import (
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/asie/models"
)

// Candidate is one scored selector found for a field (§4.3).
type Candidate struct {
	Selector   string
	Confidence float64
	Reason     string
	Sample     string
}

// nodeCandidate is the pre-synthesis form: a scored DOM node, before a
// selector string has been derived for it.
type nodeCandidate struct {
	node       *goquery.Selection
	confidence float64
	reason     string
	sample     string
	domOrder   int
}

// Finder scans a parsed document for per-field candidates. It never
// interacts with the page — it is a pure function of the HTML snapshot.
type Finder struct{}

func New() *Finder { return &Finder{} }

// Find returns up to 5 candidates for field, parsed from rawHTML.
func (f *Finder) Find(rawHTML string, field models.SemanticField) ([]Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, err
	}

	var raw []nodeCandidate
	switch field {
	case models.FieldTitle:
		raw = findTitle(doc)
	case models.FieldPrice, models.FieldOriginalPrice:
		raw = findPrice(doc)
	case models.FieldImages:
		raw = findImages(doc)
	case models.FieldDescription:
		raw = findDescription(doc)
	case models.FieldAvailability:
		raw = findAvailability(doc)
	default:
		raw = nil
	}

	var out []Candidate
	for _, c := range raw {
		sel, ok := synthesize(doc, c.node)
		if !ok {
			// SelectorInvalid / no unique match: drop silently (§7).
			continue
		}
		out = append(out, Candidate{
			Selector:   sel,
			Confidence: c.confidence,
			Reason:     c.reason,
			Sample:     c.sample,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return len(out[i].Selector) < len(out[j].Selector)
	})

	if len(out) > 5 {
		out = out[:5]
	}
	return out, nil
}
