package candidates

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var priceRegex = regexp.MustCompile(`[\$€£¥]\s*\d+[.,]?\d*`)

var productRegionHint = regexp.MustCompile(`(?i)product|pdp|item`)

var logoIconHint = regexp.MustCompile(`(?i)logo|icon|sprite|favicon`)

var descriptionExclude = "nav, header, footer"

var availabilityTokens = regexp.MustCompile(`(?i)add.?to.?cart|add.?to.?bag|buy.?now|in.?stock`)

// productRegion narrows the search to elements whose ancestry hints at a
// product detail region, falling back to the whole document when no such
// hint exists (most test fixtures and many real pages have none).
func productRegion(doc *goquery.Document) *goquery.Selection {
	region := doc.Find(`[class*="product"], [id*="product"], main, [class*="pdp"]`).First()
	if region.Length() > 0 {
		return region
	}
	return doc.Selection
}

// findTitle favors the first visible h1 in the product region (§4.3).
func findTitle(doc *goquery.Document) []nodeCandidate {
	var out []nodeCandidate
	region := productRegion(doc)

	h1 := region.Find("h1").First()
	if h1.Length() > 0 {
		out = append(out, nodeCandidate{node: h1, confidence: 0.9, reason: "first visible h1 in product region", sample: text(h1)})
	}

	doc.Find(`[class*="product-title"], [class*="product-name"], [itemprop="name"]`).EachWithBreak(func(i int, s *goquery.Selection) bool {
		out = append(out, nodeCandidate{node: s, confidence: 0.6, reason: "semantic title class fallback", sample: text(s), domOrder: i})
		return i < 3
	})

	return out
}

// findPrice restricts to leaf nodes matching the currency regex (§4.3).
func findPrice(doc *goquery.Document) []nodeCandidate {
	var out []nodeCandidate
	i := 0
	doc.Find("span, div, p, strong, b").Each(func(_ int, s *goquery.Selection) {
		if s.Children().Length() > 0 {
			return
		}
		t := strings.TrimSpace(s.Text())
		if t == "" || len(t) > 40 || !priceRegex.MatchString(t) {
			return
		}
		confidence := 0.5
		if fontSizeBoost(s) {
			confidence = 0.8
		}
		out = append(out, nodeCandidate{node: s, confidence: confidence, reason: "currency-pattern leaf node", sample: t, domOrder: i})
		i++
	})
	return out
}

// fontSizeBoost approximates "font size > 14" via an inline style or a
// class name hint, since a static HTML snapshot has no computed style.
func fontSizeBoost(s *goquery.Selection) bool {
	style, _ := s.Attr("style")
	if m := regexp.MustCompile(`font-size:\s*(\d+)`).FindStringSubmatch(style); m != nil {
		if size, err := strconv.Atoi(m[1]); err == nil {
			return size > 14
		}
	}
	class, _ := s.Attr("class")
	return regexp.MustCompile(`(?i)large|lg|big|xl`).MatchString(class)
}

// findImages accepts visible img with an approximated intrinsic area
// > 10000px^2 (from width/height attributes when present), excluding
// logo/icon filenames (§4.3).
func findImages(doc *goquery.Document) []nodeCandidate {
	var out []nodeCandidate
	i := 0
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		if logoIconHint.MatchString(src) {
			return
		}
		confidence := 0.5
		if hasSufficientArea(s) {
			confidence = 0.8
		}
		class, _ := s.Attr("class")
		if productRegionHint.MatchString(src) || productRegionHint.MatchString(class) {
			confidence += 0.1
		}
		out = append(out, nodeCandidate{node: s, confidence: clampConfidence(confidence), reason: "product-like image", sample: src, domOrder: i})
		i++
	})
	return out
}

func hasSufficientArea(s *goquery.Selection) bool {
	w, wErr := strconv.Atoi(attrOr(s, "width", ""))
	h, hErr := strconv.Atoi(attrOr(s, "height", ""))
	if wErr != nil || hErr != nil {
		return false
	}
	return w*h > 10000
}

func attrOr(s *goquery.Selection, name, fallback string) string {
	if v, ok := s.Attr(name); ok {
		return v
	}
	return fallback
}

// findDescription wants visible prose blocks of 100-5000 chars outside
// nav/header/footer (§4.3).
func findDescription(doc *goquery.Document) []nodeCandidate {
	var out []nodeCandidate
	i := 0
	doc.Find("p, div").Each(func(_ int, s *goquery.Selection) {
		if s.Closest(descriptionExclude).Length() > 0 {
			return
		}
		t := strings.TrimSpace(s.Text())
		n := len(t)
		if n < 100 || n > 5000 {
			return
		}
		confidence := 0.6
		class, _ := s.Attr("class")
		if regexp.MustCompile(`(?i)description|details|content`).MatchString(class) {
			confidence = 0.8
		}
		out = append(out, nodeCandidate{node: s, confidence: confidence, reason: "prose block outside chrome regions", sample: truncate(t, 80), domOrder: i})
		i++
	})
	return out
}

// findAvailability scores add-to-cart-like controls (§4.3): any control
// inside a cart form scores 0.95 whatever its text; elsewhere a control
// needs an add-to-cart-like token in its text/id/class/aria-label and
// scores 0.7.
func findAvailability(doc *goquery.Document) []nodeCandidate {
	var out []nodeCandidate
	i := 0
	doc.Find("button, input[type=submit], a[role=button]").Each(func(_ int, s *goquery.Selection) {
		t := strings.ToLower(strings.TrimSpace(s.Text()))
		class, _ := s.Attr("class")
		id, _ := s.Attr("id")
		aria, _ := s.Attr("aria-label")
		haystack := t + " " + strings.ToLower(class) + " " + strings.ToLower(id) + " " + strings.ToLower(aria)
		inCartForm := s.Closest(`form[action*="cart"]`).Length() > 0
		if !inCartForm && !availabilityTokens.MatchString(haystack) {
			return
		}
		confidence := 0.7
		if inCartForm {
			confidence = 0.95
		}
		out = append(out, nodeCandidate{node: s, confidence: confidence, reason: "add-to-cart-like control", sample: strings.TrimSpace(s.Text()), domOrder: i})
		i++
	})
	return out
}

func text(s *goquery.Selection) string {
	return truncate(strings.TrimSpace(s.Text()), 80)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func clampConfidence(c float64) float64 {
	if c > 1 {
		return 1
	}
	if c < 0 {
		return 0
	}
	return c
}
