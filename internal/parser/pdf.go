package parser

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ParsePDF extracts plain text from a PDF file page by page, in document
// order (§3 source_type=pdf). Pages that fail extraction are skipped rather
// than failing the whole document, since a handful of malformed pages
// should not sink an otherwise-readable file.
func ParsePDF(path string) (*Result, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("no extractable text in pdf")
	}

	title := firstLine(pages[0])
	return newResult(strings.Join(pages, "\n\n"), title), nil
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	if len(s) > 120 {
		return strings.TrimSpace(s[:120])
	}
	return strings.TrimSpace(s)
}
