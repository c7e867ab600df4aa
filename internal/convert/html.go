package convert

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
)

func extractHTML(ctx context.Context, f *os.File, size int64) (*extraction, error) {
	raw, err := io.ReadAll(io.LimitReader(f, size))
	if err != nil {
		return nil, err
	}

	text, err := decodeText(raw)
	if err != nil {
		return nil, err
	}

	converter := md.NewConverter("", true, nil)
	markdown, err := converter.ConvertString(text)
	if err != nil {
		return nil, fmt.Errorf("convert html: %w", err)
	}
	markdown = strings.TrimSpace(normalizeNewlines(markdown))

	return &extraction{
		markdown: markdown,
		blocks:   parseMarkdown(markdown),
	}, nil
}
