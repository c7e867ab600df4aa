package convert

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/cloo-solutions/ragdocs/internal/domain"
	"github.com/ledongthuc/pdf"
)

func extractPDF(ctx context.Context, f *os.File, size int64) (*extraction, error) {
	reader, err := pdf.NewReader(f, size)
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}

	numPages := reader.NumPage()
	var blocks []domain.Block
	fonts := make(map[string]*pdf.Font)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, name := range page.Fonts() {
			if _, ok := fonts[name]; !ok {
				font := page.Font(name)
				fonts[name] = &font
			}
		}
		text, err := page.GetPlainText(fonts)
		if err != nil {
			return nil, fmt.Errorf("read PDF page %d: %w", i, err)
		}
		blocks = append(blocks, paragraphs(normalizeNewlines(collapseSpaces(text)))...)
	}

	return &extraction{blocks: blocks, pages: numPages}, nil
}

// collapseSpaces squeezes runs of spaces and tabs within each line.
func collapseSpaces(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.Join(strings.Fields(l), " ")
	}
	return strings.Join(lines, "\n")
}
