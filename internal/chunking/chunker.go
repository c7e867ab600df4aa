// Package chunking splits converted documents into token-bounded chunks
// that follow the document's heading structure.
package chunking

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/cloo-solutions/ragdocs/internal/domain"
	"github.com/rs/zerolog"
	"github.com/tiktoken-go/tokenizer"
)

var (
	ErrInvalidMaxTokens = errors.New("maxTokens must be positive")
	ErrNoContent        = errors.New("document has no content to chunk")
)

const (
	DefaultTokenizer = "cl100k_base"
	Method           = "hybrid"

	blockSeparator = "\n\n"
)

// Chunker merges consecutive blocks under the same heading path until the
// token budget is reached and splits blocks that exceed it on their own.
type Chunker struct {
	codec    tokenizer.Codec
	encoding string
	log      zerolog.Logger
}

// New returns a chunker using the named tiktoken encoding.
func New(encoding string, log zerolog.Logger) (*Chunker, error) {
	if encoding == "" {
		encoding = DefaultTokenizer
	}
	codec, err := codecFor(encoding)
	if err != nil {
		log.Error().Err(err).Str("tokenizer", encoding).Msg("failed to get tokenizer")
		return nil, err
	}
	// Decode builds its reverse vocabulary on first use; do it here, before
	// the codec is shared between pipelines.
	if _, err := codec.Decode(nil); err != nil {
		return nil, err
	}
	return &Chunker{codec: codec, encoding: encoding, log: log}, nil
}

func codecFor(name string) (tokenizer.Codec, error) {
	switch strings.ToLower(name) {
	case "cl100k_base":
		return tokenizer.Get(tokenizer.Cl100kBase)
	case "o200k_base":
		return tokenizer.Get(tokenizer.O200kBase)
	case "p50k_base":
		return tokenizer.Get(tokenizer.P50kBase)
	case "r50k_base":
		return tokenizer.Get(tokenizer.R50kBase)
	default:
		return nil, fmt.Errorf("unknown tokenizer %q", name)
	}
}

// Tokenizer returns the encoding name.
func (c *Chunker) Tokenizer() string {
	return c.encoding
}

// Method returns the chunking strategy name.
func (c *Chunker) Method() string {
	return Method
}

// CountTokens returns the number of tokens in text.
func (c *Chunker) CountTokens(text string) (int, error) {
	ids, _, err := c.codec.Encode(text)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

type headingEntry struct {
	level int
	text  string
	ref   string
}

// pending is the chunk being assembled.
type pending struct {
	headings []string
	parts    []string
	refs     []string
	tokens   int
}

func (p *pending) empty() bool {
	return len(p.parts) == 0
}

// Chunk splits doc into chunks of at most maxTokens tokens (soft limit) in
// source order.
func (c *Chunker) Chunk(ctx context.Context, doc *domain.ConvertedDocument, maxTokens int) ([]domain.ChunkDraft, error) {
	if maxTokens <= 0 {
		return nil, ErrInvalidMaxTokens
	}
	if doc == nil || len(doc.Blocks) == 0 {
		return nil, ErrNoContent
	}

	sepTokens, err := c.CountTokens(blockSeparator)
	if err != nil {
		return nil, fmt.Errorf("tokenize separator: %w", err)
	}

	var (
		out     []domain.ChunkDraft
		stack   []headingEntry
		current pending
		// the innermost heading has no body block yet
		bare bool
	)

	flush := func() error {
		if current.empty() {
			return nil
		}
		draft, err := c.finish(current, maxTokens)
		if err != nil {
			return err
		}
		out = append(out, draft)
		current = pending{}
		return nil
	}

	// emitBare turns the innermost heading into its own chunk, under its
	// parent headings, so headings without a body are not lost.
	emitBare := func() error {
		h := stack[len(stack)-1]
		current = pending{headings: headingTexts(stack[:len(stack)-1]), parts: []string{h.text}, refs: []string{h.ref}}
		return flush()
	}

	for _, b := range doc.Blocks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if b.Kind == domain.BlockHeading {
			if err := flush(); err != nil {
				return nil, err
			}
			if bare && headingLevel(b) <= stack[len(stack)-1].level {
				if err := emitBare(); err != nil {
					return nil, err
				}
			}
			stack = pushHeading(stack, b)
			bare = true
			continue
		}
		bare = false

		headings := headingTexts(stack)
		n, err := c.CountTokens(b.Text)
		if err != nil {
			return nil, fmt.Errorf("tokenize block %s: %w", b.Ref, err)
		}

		if n > maxTokens {
			if err := flush(); err != nil {
				return nil, err
			}
			pieces, err := c.split(b.Text, maxTokens)
			if err != nil {
				return nil, err
			}
			for _, piece := range pieces {
				current = pending{headings: headings, parts: []string{piece}, refs: []string{b.Ref}}
				if err := flush(); err != nil {
					return nil, err
				}
			}
			continue
		}

		if !current.empty() && (!slices.Equal(current.headings, headings) || current.tokens+sepTokens+n > maxTokens) {
			if err := flush(); err != nil {
				return nil, err
			}
		}
		if current.empty() {
			current.headings = headings
		} else {
			current.tokens += sepTokens
		}
		current.parts = append(current.parts, b.Text)
		current.refs = append(current.refs, b.Ref)
		current.tokens += n
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if bare {
		if err := emitBare(); err != nil {
			return nil, err
		}
	}

	c.log.Debug().Int("chunks", len(out)).Int("max_tokens", maxTokens).Msg("document chunked")
	return out, nil
}

// finish renders a pending chunk. The heading path is prepended as context
// when it fits within the budget.
func (c *Chunker) finish(p pending, maxTokens int) (domain.ChunkDraft, error) {
	body := strings.Join(p.parts, blockSeparator)
	text := body
	if len(p.headings) > 0 {
		withContext := strings.Join(p.headings, "\n") + "\n" + body
		n, err := c.CountTokens(withContext)
		if err != nil {
			return domain.ChunkDraft{}, err
		}
		if n <= maxTokens {
			text = withContext
		}
	}

	count, err := c.CountTokens(text)
	if err != nil {
		return domain.ChunkDraft{}, err
	}

	return domain.ChunkDraft{
		Text: text,
		Metadata: domain.ChunkMetadata{
			Headings:   p.headings,
			DocItems:   p.refs,
			TokenCount: count,
		},
	}, nil
}

// split breaks text that exceeds maxTokens at whitespace, falling back to
// raw token windows for single words longer than the budget.
func (c *Chunker) split(text string, maxTokens int) ([]string, error) {
	var (
		pieces []string
		words  []string
		tokens int
	)

	emit := func() {
		if len(words) > 0 {
			pieces = append(pieces, strings.Join(words, " "))
		}
		words = nil
		tokens = 0
	}

	for _, word := range strings.Fields(text) {
		n, err := c.CountTokens(" " + word)
		if err != nil {
			return nil, err
		}
		if n > maxTokens {
			emit()
			windows, err := c.windows(word, maxTokens)
			if err != nil {
				return nil, err
			}
			pieces = append(pieces, windows...)
			continue
		}
		if tokens+n > maxTokens {
			emit()
		}
		words = append(words, word)
		tokens += n
	}
	emit()
	return pieces, nil
}

// windows cuts text into runs of at most maxTokens tokens. A token may hold
// part of a multi-byte rune, so each cut moves back (or, when a single rune
// spans more than the whole window, forward) to the nearest rune boundary.
func (c *Chunker) windows(text string, maxTokens int) ([]string, error) {
	ids, _, err := c.codec.Encode(text)
	if err != nil {
		return nil, err
	}
	var out []string
	for i := 0; i < len(ids); {
		limit := min(i+maxTokens, len(ids))
		s, end, err := c.decodeValid(ids, i, limit)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
		i = end
	}
	return out, nil
}

func (c *Chunker) decodeValid(ids []uint, start, limit int) (string, int, error) {
	for end := limit; end > start; end-- {
		s, err := c.codec.Decode(ids[start:end])
		if err != nil {
			return "", 0, err
		}
		if utf8.ValidString(s) {
			return s, end, nil
		}
	}
	for end := limit + 1; end <= len(ids); end++ {
		s, err := c.codec.Decode(ids[start:end])
		if err != nil {
			return "", 0, err
		}
		if utf8.ValidString(s) {
			return s, end, nil
		}
	}
	return "", 0, fmt.Errorf("token run at %d does not decode to valid UTF-8", start)
}

func headingLevel(b domain.Block) int {
	return max(b.Level, 1)
}

func pushHeading(stack []headingEntry, b domain.Block) []headingEntry {
	level := headingLevel(b)
	for len(stack) > 0 && stack[len(stack)-1].level >= level {
		stack = stack[:len(stack)-1]
	}
	return append(stack, headingEntry{level: level, text: b.Text, ref: b.Ref})
}

func headingTexts(stack []headingEntry) []string {
	if len(stack) == 0 {
		return nil
	}
	out := make([]string, len(stack))
	for i, h := range stack {
		out[i] = h.text
	}
	return out
}

