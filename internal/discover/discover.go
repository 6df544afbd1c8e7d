// Package discover parses listing pages into document links.
package discover

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/regwatch/regcrawl/internal/domain"
)

// linkSelectors cover the listing layouts seen in the wild: tabular
// listings, plain list items, and card-style containers.
var linkSelectors = []string{
	"table tr td a",
	"ul.doclinks li a",
	"ul.listing li a",
	"div.order-item a",
	"div.card a",
}

// documentHrefHints mark anchors that point at an order document rather
// than site chrome.
var documentHrefHints = []string{".pdf", "/order", "orders", "enforcement"}

// Links extracts document links from a listing page, resolving relative
// hrefs against base. Links appear in document order; duplicate URLs keep
// the first occurrence.
func Links(html string, base *url.URL) []domain.DocumentLink {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var links []domain.DocumentLink
	seen := make(map[string]struct{})

	collect := func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}
		if !looksLikeDocument(href) {
			return
		}

		resolved := resolve(base, href)
		if resolved == "" {
			return
		}
		if _, dup := seen[resolved]; dup {
			return
		}
		seen[resolved] = struct{}{}

		title := strings.TrimSpace(sel.Text())
		links = append(links, domain.DocumentLink{
			URL:   resolved,
			Title: title,
			Date:  DateFromText(rowText(sel)),
		})
	}

	for _, selector := range linkSelectors {
		doc.Find(selector).Each(collect)
	}
	if len(links) == 0 {
		// Fall back to scanning every anchor on the page.
		doc.Find("a").Each(collect)
	}

	return links
}

func looksLikeDocument(href string) bool {
	lower := strings.ToLower(href)
	for _, hint := range documentHrefHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

// resolve makes href absolute against base and canonicalises it so the
// same document always yields the same ledger key.
func resolve(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}

	absolute := ref
	if base != nil {
		absolute = base.ResolveReference(ref)
	}

	canonical, err := CanonicalDocumentURL(absolute.String())
	if err != nil {
		return ""
	}
	return canonical
}

// rowText widens the date search to the surrounding table row or list
// item, where listing pages usually place the order date.
func rowText(sel *goquery.Selection) string {
	if row := sel.Closest("tr"); row.Length() > 0 {
		return row.Text()
	}
	if item := sel.Closest("li"); item.Length() > 0 {
		return item.Text()
	}
	return sel.Text()
}

var (
	// No boundary anchors: table cell texts concatenate without
	// separators, so a date often abuts the surrounding text.
	numericDatePattern   = regexp.MustCompile(`(\d{1,2})[-/.](\d{1,2})[-/.](\d{4})`)
	monthNameDatePattern = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*[,.]?\s+(\d{4})\b`)
)

// DateFromText pulls the first recognisable date out of free text.
// Returns the matched text verbatim, or "" when no date is present.
func DateFromText(text string) string {
	if m := numericDatePattern.FindString(text); m != "" {
		return m
	}
	if m := monthNameDatePattern.FindString(text); m != "" {
		return m
	}
	return ""
}

var embeddedFilePattern = regexp.MustCompile(`(?i)file=([^&"'\s]+)`)

// EmbeddedDocumentURL resolves the indirection used by viewer pages that
// wrap the actual PDF in an iframe or query parameter. Returns "" when the
// page carries no embedded document.
func EmbeddedDocumentURL(html string, pageURL *url.URL) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	var found string
	doc.Find("iframe, embed, object").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		src, ok := sel.Attr("src")
		if !ok {
			src, ok = sel.Attr("data")
		}
		if !ok || strings.TrimSpace(src) == "" {
			return true
		}

		if m := embeddedFilePattern.FindStringSubmatch(src); m != nil {
			if decoded, err := url.QueryUnescape(m[1]); err == nil {
				src = decoded
			} else {
				src = m[1]
			}
		}

		found = resolve(pageURL, src)
		return false
	})

	return found
}
