// Package content normalizes the description field: Mozilla Readability
// extraction narrowed to a single product field, followed by Markdown
// conversion for a compact, LLM-friendly representation.
//
// Grounded on the teacher's cleaner/readability.go (ExtractContent's
// fallback-guarded extraction) and cleaner/markdown.go
// (newMarkdownConverter/ToMarkdown), narrowed from whole-document
// conversion to one field.
package content

import (
	"log/slog"
	nurl "net/url"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	readability "github.com/go-shiori/go-readability"
)

// minContentLength mirrors the teacher's readability fallback guard:
// below this length, the extraction is considered to have failed.
const minContentLength = 50

// DescriptionExtractor narrows whole-page readability extraction down to
// the description field C3/C4 already located, normalizing it to
// Markdown.
type DescriptionExtractor struct {
	conv *converter.Converter
}

func NewDescriptionExtractor() *DescriptionExtractor {
	return &DescriptionExtractor{
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
	}
}

// Extract runs readability on the candidate description block's HTML
// fragment and converts the result to Markdown. fragmentHTML is the
// outer HTML of the element C3 located for the description field, not
// the whole page — this module never runs whole-document readability.
func (d *DescriptionExtractor) Extract(fragmentHTML, sourceURL string) string {
	parsedURL, err := nurl.Parse(sourceURL)
	if err != nil {
		slog.Warn("description: invalid source URL, using raw fragment", "url", sourceURL, "error", err)
		return d.toMarkdown(fragmentHTML, sourceURL)
	}

	article, err := readability.FromReader(strings.NewReader(fragmentHTML), parsedURL)
	if err != nil {
		slog.Warn("description: readability extraction failed, using raw fragment", "error", err)
		return d.toMarkdown(fragmentHTML, sourceURL)
	}

	if len(strings.TrimSpace(article.TextContent)) < minContentLength {
		return d.toMarkdown(fragmentHTML, sourceURL)
	}

	return d.toMarkdown(article.Content, sourceURL)
}

func (d *DescriptionExtractor) toMarkdown(htmlContent, sourceURL string) string {
	domain := ""
	if u, err := nurl.Parse(sourceURL); err == nil {
		domain = u.Host
	}
	md, err := d.conv.ConvertString(htmlContent, converter.WithDomain(domain))
	if err != nil {
		return strings.TrimSpace(htmlContent)
	}
	return strings.TrimSpace(md)
}
