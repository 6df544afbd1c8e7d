// Package pdf turns downloaded document payloads into plain text.
package pdf

import (
	"bytes"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
)

// mainContentSelectors are tried in order when falling back to HTML text
// extraction; the body is the last resort.
const mainContentSelectors = "main, #main-content, .content, article, .order-content"

// Text extracts plain text from a document payload. Corrupt or unsupported
// input yields an empty string rather than an error: downstream, an empty
// text means "processed, found nothing", which is distinct from a
// processing failure. HTML payloads fall back to DOM text extraction.
func Text(payload []byte) string {
	if len(payload) == 0 {
		return ""
	}

	if looksLikePDF(payload) {
		if text := pdfText(payload); text != "" {
			return text
		}
		return ""
	}

	return htmlText(payload)
}

func looksLikePDF(payload []byte) bool {
	return bytes.HasPrefix(payload, []byte("%PDF"))
}

// pdfText reads every page's plain text. The pdf library panics on some
// malformed cross-reference tables, so the recover is load-bearing here.
func pdfText(payload []byte) (text string) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return ""
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return ""
	}

	var sb strings.Builder
	if _, err := io.Copy(&sb, plain); err != nil {
		return ""
	}
	return sb.String()
}

func htmlText(payload []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(payload))
	if err != nil {
		return ""
	}

	if main := doc.Find(mainContentSelectors).First(); main.Length() > 0 {
		return strings.TrimSpace(main.Text())
	}

	return strings.TrimSpace(doc.Find("body").Text())
}
