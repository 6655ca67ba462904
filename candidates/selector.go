package candidates

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

var startsWithDigit = regexp.MustCompile(`^[0-9]`)

// cssEscape escapes characters CSS identifiers treat specially. This is a
// narrow escape sufficient for the class/id tokens real product pages
// use; it is not a full CSS.escape implementation.
func cssEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == ':' || r == '.' || r == '[' || r == ']' || r == '/' || r == '(' || r == ')':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// unique reports whether selector matches exactly one element in doc. It
// preflights selector through cascadia.Parse exactly as cleaner.
// ApplyCSSSelector does, rejecting a synthesized selector that fails to
// parse instead of letting goquery's underlying Find panic on it —
// cssEscape above is not a full CSS.escape, so malformed selectors do
// reach here in practice.
func unique(doc *goquery.Document, selector string) bool {
	if _, err := cascadia.Parse(selector); err != nil {
		return false
	}
	return doc.Find(selector).Length() == 1
}

// synthesize applies the selector synthesis rules (§4.3) in order,
// returning the first candidate selector that matches exactly one
// element in doc. sel must itself be a single-node selection.
func synthesize(doc *goquery.Document, sel *goquery.Selection) (string, bool) {
	if sel == nil || sel.Length() == 0 {
		return "", false
	}

	// Rule 1: #id if present and doesn't start with a digit.
	if id, ok := sel.Attr("id"); ok && id != "" && !startsWithDigit.MatchString(id) {
		candidate := "#" + cssEscape(id)
		if unique(doc, candidate) {
			return candidate, true
		}
	}

	// Rule 2: escaped single class, then double-class combination.
	classAttr, _ := sel.Attr("class")
	classes := strings.Fields(classAttr)
	for _, c := range classes {
		candidate := "." + cssEscape(c)
		if unique(doc, candidate) {
			return candidate, true
		}
	}
	for i := 0; i < len(classes); i++ {
		for j := i + 1; j < len(classes); j++ {
			candidate := "." + cssEscape(classes[i]) + "." + cssEscape(classes[j])
			if unique(doc, candidate) {
				return candidate, true
			}
		}
	}

	// Rule 3: first 1-2 data-* attribute predicates.
	var dataAttrs []string
	if node := sel.Get(0); node != nil {
		for _, a := range node.Attr {
			if strings.HasPrefix(a.Key, "data-") {
				dataAttrs = append(dataAttrs, fmt.Sprintf(`[%s="%s"]`, a.Key, a.Val))
			}
		}
	}
	for _, da := range dataAttrs {
		if unique(doc, da) {
			return da, true
		}
	}
	for i := 0; i < len(dataAttrs); i++ {
		for j := i + 1; j < len(dataAttrs); j++ {
			candidate := dataAttrs[i] + dataAttrs[j]
			if unique(doc, candidate) {
				return candidate, true
			}
		}
	}

	// Rule 4: ancestor path with tag + first class up to 3 levels,
	// verified unique at each step.
	path := nodeSegment(sel)
	cur := sel
	for level := 0; level < 3; level++ {
		cur = cur.Parent()
		if cur.Length() == 0 {
			break
		}
		segment := nodeSegment(cur)
		path = segment + " > " + path
		if unique(doc, path) {
			return path, true
		}
	}

	return "", false
}

// nodeSegment builds a "tag.firstClass" segment for one node.
func nodeSegment(sel *goquery.Selection) string {
	node := sel.Get(0)
	if node == nil {
		return "*"
	}
	tag := node.Data
	classAttr, _ := sel.Attr("class")
	if classes := strings.Fields(classAttr); len(classes) > 0 {
		return tag + "." + cssEscape(classes[0])
	}
	return tag
}
