// Package convert turns uploaded files into normalized markdown plus the
// structural blocks the chunker walks.
package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/cloo-solutions/ragdocs/internal/domain"
	"github.com/rs/zerolog"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrEmptyDocument     = errors.New("document has no extractable text")
	ErrInvalidEncoding   = errors.New("unsupported text encoding, expected UTF-8")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// extractor reads the file at path and returns its blocks in source order.
type extractor func(ctx context.Context, f *os.File, size int64) (*extraction, error)

type extraction struct {
	markdown string
	blocks   []domain.Block
	pages    int
}

// Converter dispatches on file extension.
type Converter struct {
	extractors map[string]extractor
	log        zerolog.Logger
}

// Option configures a Converter.
type Option func(*Converter)

// WithLogger sets the converter's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Converter) {
		c.log = log
	}
}

// WithExtensions restricts the converter to the given extensions.
func WithExtensions(exts ...string) Option {
	return func(c *Converter) {
		keep := make(map[string]extractor, len(exts))
		for _, ext := range exts {
			ext = normalizeExt(ext)
			if fn, ok := c.extractors[ext]; ok {
				keep[ext] = fn
			}
		}
		c.extractors = keep
	}
}

// New returns a converter for PDF, DOCX, HTML, markdown and plain text.
func New(opts ...Option) *Converter {
	c := &Converter{
		extractors: map[string]extractor{
			".pdf":      extractPDF,
			".docx":     extractDOCX,
			".html":     extractHTML,
			".htm":      extractHTML,
			".md":       extractMarkdown,
			".markdown": extractMarkdown,
			".txt":      extractText,
		},
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Supports reports whether files with ext can be converted.
func (c *Converter) Supports(ext string) bool {
	_, ok := c.extractors[normalizeExt(ext)]
	return ok
}

// Extensions lists the supported extensions in sorted order.
func (c *Converter) Extensions() []string {
	exts := make([]string, 0, len(c.extractors))
	for ext := range c.extractors {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Convert reads the file at path and returns its normalized form.
func (c *Converter) Convert(ctx context.Context, path string) (doc *domain.ConvertedDocument, err error) {
	ext := domain.FileExtension(path)
	fn, ok := c.extractors[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	// Third-party parsers panic on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("corrupt %s file: %v", ext, r)
		}
	}()

	out, err := fn(ctx, f, info.Size())
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	blocks := numberBlocks(out.blocks)
	if len(blocks) == 0 {
		return nil, ErrEmptyDocument
	}

	markdown := cleanText(out.markdown)
	if markdown == "" {
		markdown = renderMarkdown(blocks)
	}

	pages := out.pages
	if pages == 0 {
		pages = 1
	}

	c.log.Debug().
		Str("extension", ext).
		Int("blocks", len(blocks)).
		Int("pages", pages).
		Int("markdown_length", len(markdown)).
		Msg("document converted")

	return &domain.ConvertedDocument{
		Markdown: markdown,
		Blocks:   blocks,
		Pages:    pages,
		Metadata: map[string]string{"format": strings.TrimPrefix(ext, ".")},
	}, nil
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// numberBlocks drops empty blocks and assigns references in order.
func numberBlocks(in []domain.Block) []domain.Block {
	out := make([]domain.Block, 0, len(in))
	for _, b := range in {
		b.Text = strings.TrimSpace(cleanText(b.Text))
		if b.Text == "" {
			continue
		}
		b.Ref = domain.BlockRef(len(out))
		out = append(out, b)
	}
	return out
}

// decodeText accepts UTF-8 without NUL bytes, dropping a leading BOM.
func decodeText(raw []byte) (string, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if !utf8.Valid(raw) {
		return "", ErrInvalidEncoding
	}
	if bytes.IndexByte(raw, 0) >= 0 {
		return "", fmt.Errorf("%w: contains NUL bytes", ErrInvalidEncoding)
	}
	return string(raw), nil
}

// cleanText makes text extracted from binary formats storable: invalid
// sequences become U+FFFD and NUL bytes are dropped.
func cleanText(s string) string {
	return strings.ReplaceAll(strings.ToValidUTF8(s, "\uFFFD"), "\x00", "")
}
