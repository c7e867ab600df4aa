package convert

import (
	"bufio"
	"context"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/cloo-solutions/ragdocs/internal/domain"
)

var (
	headingLine = regexp.MustCompile(`^(#{1,6})\s+(.*?)\s*#*\s*$`)
	listLine    = regexp.MustCompile(`^\s*([-*+]|\d+[.)])\s+`)
)

func extractMarkdown(ctx context.Context, f *os.File, size int64) (*extraction, error) {
	raw, err := io.ReadAll(io.LimitReader(f, size))
	if err != nil {
		return nil, err
	}
	decoded, err := decodeText(raw)
	if err != nil {
		return nil, err
	}
	text := normalizeNewlines(decoded)
	return &extraction{
		markdown: strings.TrimSpace(text),
		blocks:   parseMarkdown(text),
	}, nil
}

func extractText(ctx context.Context, f *os.File, size int64) (*extraction, error) {
	raw, err := io.ReadAll(io.LimitReader(f, size))
	if err != nil {
		return nil, err
	}
	text, err := decodeText(raw)
	if err != nil {
		return nil, err
	}
	return &extraction{blocks: paragraphs(normalizeNewlines(text))}, nil
}

// parseMarkdown splits markdown into headings, paragraphs, lists, tables and
// fenced code blocks. It is a line scanner, not a full CommonMark parser.
func parseMarkdown(text string) []domain.Block {
	var (
		blocks  []domain.Block
		current []string
		kind    domain.BlockKind
		inFence bool
	)

	flush := func() {
		if len(current) > 0 {
			blocks = append(blocks, domain.Block{Kind: kind, Text: strings.Join(current, "\n")})
		}
		current = nil
		kind = ""
	}

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t")
		trimmed := strings.TrimSpace(line)

		if inFence {
			if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
				inFence = false
				flush()
				continue
			}
			current = append(current, line)
			continue
		}

		switch {
		case strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~"):
			flush()
			inFence = true
			kind = domain.BlockCode
		case trimmed == "":
			flush()
		case headingLine.MatchString(trimmed):
			flush()
			m := headingLine.FindStringSubmatch(trimmed)
			blocks = append(blocks, domain.Block{Kind: domain.BlockHeading, Level: len(m[1]), Text: m[2]})
		case listLine.MatchString(line):
			if kind != domain.BlockList {
				flush()
				kind = domain.BlockList
			}
			current = append(current, line)
		case strings.HasPrefix(trimmed, "|"):
			if kind != domain.BlockTable {
				flush()
				kind = domain.BlockTable
			}
			current = append(current, trimmed)
		default:
			if kind != domain.BlockParagraph && kind != domain.BlockList {
				flush()
				kind = domain.BlockParagraph
			}
			current = append(current, trimmed)
		}
	}
	flush()
	return blocks
}

// paragraphs splits plain text on blank lines.
func paragraphs(text string) []domain.Block {
	var blocks []domain.Block
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		blocks = append(blocks, domain.Block{Kind: domain.BlockParagraph, Text: p})
	}
	return blocks
}

func renderMarkdown(blocks []domain.Block) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		switch b.Kind {
		case domain.BlockHeading:
			level := b.Level
			if level < 1 {
				level = 1
			}
			if level > 6 {
				level = 6
			}
			parts = append(parts, strings.Repeat("#", level)+" "+b.Text)
		case domain.BlockCode:
			parts = append(parts, "```\n"+b.Text+"\n```")
		case domain.BlockParagraph, domain.BlockList, domain.BlockTable:
			parts = append(parts, b.Text)
		default:
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
