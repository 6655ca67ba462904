// Package variant implements the Variant Model & Sweeper (C5): building a
// normalized model of a product's variant groups (color/size/style/etc.)
// and exhaustively sweeping their combinations to learn availability.
//
// Grounded on the teacher's engine/adaptive_pool.go handle-table style
// (flat slice + index reference instead of pointers, avoiding a cyclic
// group<->option graph) for models.VariantModel's arena, and on
// cleaner/pruning.go's structural scoring approach for the clustering
// discovery layer.
package variant

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/asie/models"
)

var labelKeywords = regexp.MustCompile(`(?i)size|color|colour|style|finish|variant|option|choose|select`)
var actionButtonText = regexp.MustCompile(`(?i)add to cart|add to bag|buy|checkout`)
var colorHint = regexp.MustCompile(`(?i)color|colour|swatch`)
var sizeHint = regexp.MustCompile(`(?i)size`)
var styleHint = regexp.MustCompile(`(?i)style|finish`)

// groupCandidate is a pre-merge discovery result.
type groupCandidate struct {
	key           models.VariantGroupKey
	controlType   models.VariantControlType
	selector      string
	containerHint string
	priority      int
	confidence    float64
	options       []models.VariantOption
}

// BuildModel runs the four discovery layers (§4.5) over a serialized HTML
// snapshot and merges their results into a models.VariantModel.
func BuildModel(rawHTML string) (*models.VariantModel, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, err
	}

	var candidates []groupCandidate
	candidates = append(candidates, labelDriven(doc)...)
	candidates = append(candidates, accessibility(doc)...)
	candidates = append(candidates, dataAttribute(doc)...)
	candidates = append(candidates, structural(doc)...)

	candidates = dedupe(candidates)
	candidates = rank(candidates)
	if len(candidates) > 10 {
		candidates = candidates[:10]
	}

	model := &models.VariantModel{}
	for _, c := range candidates {
		idx := model.AddGroup(models.VariantGroup{
			Key:           c.key,
			ControlType:   c.controlType,
			Locator:       models.Locator{Selector: c.selector, DiscoveryMethod: discoveryMethodFor(c.priority), Category: models.CategoryOptions},
			ContainerHint: c.containerHint,
			Priority:      c.priority,
			Confidence:    c.confidence,
		})
		for _, opt := range c.options {
			model.AddOption(idx, opt)
		}
	}
	return model, nil
}

func discoveryMethodFor(priority int) models.DiscoveryMethod {
	switch priority {
	case 4:
		return models.DiscoveryLabel
	case 3:
		return models.DiscoveryARIA
	case 2:
		return models.DiscoveryDataAttr
	default:
		return models.DiscoveryStructural
	}
}

// labelDriven is discovery layer 1 (priority 4, base confidence 0.9).
func labelDriven(doc *goquery.Document) []groupCandidate {
	var out []groupCandidate
	doc.Find("label, h3, h4, span, div").Each(func(_ int, s *goquery.Selection) {
		t := strings.TrimSpace(s.Text())
		if t == "" || len(t) > 40 || !labelKeywords.MatchString(t) || actionButtonText.MatchString(t) {
			return
		}
		container := s.Parent()
		interactive := gatherInteractive(container)
		if len(interactive.options) == 0 {
			return
		}
		out = append(out, groupCandidate{
			key:         keyFromText(t),
			controlType: interactive.controlType,
			selector:    interactive.selector,
			priority:    4,
			confidence:  0.9,
			options:     interactive.options,
		})
	})
	return out
}

// accessibility is discovery layer 2 (priority 3, 0.85).
func accessibility(doc *goquery.Document) []groupCandidate {
	var out []groupCandidate
	doc.Find(`[role="radiogroup"], [role="listbox"], [role="group"]`).Each(func(_ int, s *goquery.Selection) {
		ariaLabel, _ := s.Attr("aria-label")
		interactive := gatherInteractive(s)
		if len(interactive.options) == 0 {
			return
		}
		out = append(out, groupCandidate{
			key:         keyFromText(ariaLabel),
			controlType: models.ControlAriaGroup,
			selector:    interactive.selector,
			priority:    3,
			confidence:  0.85,
			options:     interactive.options,
		})
	})
	return out
}

// dataAttribute is discovery layer 3 (priority 2, 0.8).
func dataAttribute(doc *goquery.Document) []groupCandidate {
	var out []groupCandidate
	for _, attrName := range []string{"data-color", "data-size", "data-testid"} {
		doc.Find("[" + attrName + "]").Each(func(_ int, s *goquery.Selection) {
			container := s.Parent()
			interactive := gatherInteractive(container)
			if len(interactive.options) == 0 {
				return
			}
			out = append(out, groupCandidate{
				key:         keyFromAttr(attrName),
				controlType: interactive.controlType,
				selector:    interactive.selector,
				priority:    2,
				confidence:  0.8,
				options:     interactive.options,
			})
		})
	}
	return out
}

// structuralSignature clusters interactive elements by (tag, parentTag,
// grandparentTag, hasImage, isButton, siblingCount), per §4.5 layer 4.
type structuralSignature struct {
	tag, parentTag, grandparentTag string
	hasImage, isButton             bool
	siblingCount                   int
}

// structural is discovery layer 4 (priority 1, 0.7-0.9).
func structural(doc *goquery.Document) []groupCandidate {
	clusters := make(map[structuralSignature][]*goquery.Selection)
	doc.Find("button, input, a").Each(func(_ int, s *goquery.Selection) {
		parent := s.Parent()
		grandparent := parent.Parent()
		sig := structuralSignature{
			tag:             nodeTag(s),
			parentTag:       nodeTag(parent),
			grandparentTag:  nodeTag(grandparent),
			hasImage:        s.Find("img").Length() > 0,
			isButton:        nodeTag(s) == "button",
			siblingCount:    parent.Children().Length(),
		}
		clusters[sig] = append(clusters[sig], s)
	})

	var out []groupCandidate
	for sig, members := range clusters {
		if len(members) < 2 {
			continue
		}
		confidence := 0.7
		containerHint := ""
		if parent := members[0].Parent(); parent.Length() > 0 {
			class, _ := parent.Attr("class")
			id, _ := parent.Attr("id")
			containerHint = class + " " + id
			if regexp.MustCompile(`(?i)color|size|style|swatch`).MatchString(containerHint) {
				confidence = 0.9
			}
		}
		var options []models.VariantOption
		for i, m := range members {
			options = append(options, optionFromSelection(m, i))
		}
		out = append(out, groupCandidate{
			key:           keyFromSignature(sig, containerHint),
			controlType:   controlTypeFromTag(sig.tag),
			selector:      commonSelector(members),
			containerHint: containerHint,
			priority:      1,
			confidence:    confidence,
			options:       options,
		})
	}
	return out
}

// interactiveResult is what gatherInteractive returns.
type interactiveResult struct {
	controlType models.VariantControlType
	selector    string
	options     []models.VariantOption
}

// gatherInteractive finds interactive siblings/descendants of container,
// rejecting action-button text (§4.5 layer 1).
func gatherInteractive(container *goquery.Selection) interactiveResult {
	var elements []*goquery.Selection
	container.Find("select, input, button, a").Each(func(_ int, s *goquery.Selection) {
		if actionButtonText.MatchString(strings.TrimSpace(s.Text())) {
			return
		}
		elements = append(elements, s)
	})
	if len(elements) == 0 {
		return interactiveResult{}
	}
	var options []models.VariantOption
	for i, el := range elements {
		options = append(options, optionFromSelection(el, i))
	}
	return interactiveResult{
		controlType: controlTypeFromTag(nodeTag(elements[0])),
		selector:    commonSelector(elements),
		options:     options,
	}
}

func optionFromSelection(s *goquery.Selection, index int) models.VariantOption {
	label := strings.TrimSpace(s.Text())
	value, hasValue := s.Attr("value")
	if !hasValue {
		value = label
	}
	_, disabled := s.Attr("disabled")
	return models.VariantOption{Label: label, Value: value, Index: index, Disabled: disabled}
}

func nodeTag(s *goquery.Selection) string {
	if s == nil || s.Length() == 0 {
		return ""
	}
	node := s.Get(0)
	if node == nil {
		return ""
	}
	return node.Data
}

func controlTypeFromTag(tag string) models.VariantControlType {
	switch tag {
	case "select":
		return models.ControlDropdown
	case "input":
		return models.ControlRadio
	case "button":
		return models.ControlButton
	default:
		return models.ControlSwatch
	}
}

// commonSelector picks a selector describing the family of elements,
// using the first element's tag and first shared class as an
// approximation of "the selector for this group's options".
func commonSelector(elements []*goquery.Selection) string {
	if len(elements) == 0 {
		return ""
	}
	tag := nodeTag(elements[0])
	class, _ := elements[0].Attr("class")
	if classes := strings.Fields(class); len(classes) > 0 {
		return tag + "." + classes[0]
	}
	return tag
}

func keyFromText(t string) models.VariantGroupKey {
	switch {
	case colorHint.MatchString(t):
		return models.GroupKeyColor
	case sizeHint.MatchString(t):
		return models.GroupKeySize
	case styleHint.MatchString(t):
		return models.GroupKeyStyle
	default:
		return models.GroupKeyUnknown
	}
}

func keyFromAttr(attrName string) models.VariantGroupKey {
	switch attrName {
	case "data-color":
		return models.GroupKeyColor
	case "data-size":
		return models.GroupKeySize
	default:
		return models.GroupKeyUnknown
	}
}

func keyFromSignature(sig structuralSignature, containerHint string) models.VariantGroupKey {
	return keyFromText(containerHint)
}

// dedupe drops candidates sharing the same selector, keeping the
// first (highest-priority-discovered) one, per §4.5 merge rule.
func dedupe(candidates []groupCandidate) []groupCandidate {
	seen := make(map[string]bool, len(candidates))
	out := candidates[:0]
	for _, c := range candidates {
		if c.selector == "" || seen[c.selector] {
			continue
		}
		seen[c.selector] = true
		out = append(out, c)
	}
	return out
}

// rank orders by (priority, confidence, option_count) desc, per §4.5.
func rank(candidates []groupCandidate) []groupCandidate {
	out := make([]groupCandidate, len(candidates))
	copy(out, candidates)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && less(out[j], out[j-1]); j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// less reports whether a ranks before b (a should sort first).
func less(a, b groupCandidate) bool {
	if a.priority != b.priority {
		return a.priority > b.priority
	}
	if a.confidence != b.confidence {
		return a.confidence > b.confidence
	}
	return len(a.options) > len(b.options)
}
