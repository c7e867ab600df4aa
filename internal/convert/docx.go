package convert

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cloo-solutions/ragdocs/internal/domain"
)

var errNoDocumentPart = errors.New("word/document.xml not found")

func extractDOCX(ctx context.Context, f *os.File, size int64) (*extraction, error) {
	reader, err := zip.NewReader(f, size)
	if err != nil {
		return nil, fmt.Errorf("open DOCX: %w", err)
	}

	for _, zf := range reader.File {
		if zf.Name != "word/document.xml" {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			return nil, fmt.Errorf("open document.xml: %w", err)
		}
		defer rc.Close()

		blocks, err := parseWordML(ctx, rc)
		if err != nil {
			return nil, fmt.Errorf("parse document.xml: %w", err)
		}
		return &extraction{blocks: blocks}, nil
	}

	return nil, errNoDocumentPart
}

// wordParagraph accumulates one <w:p> element.
type wordParagraph struct {
	style  string
	isList bool
	text   strings.Builder
}

func (p *wordParagraph) block() domain.Block {
	text := strings.TrimSpace(p.text.String())
	if level := headingLevel(p.style); level > 0 {
		return domain.Block{Kind: domain.BlockHeading, Level: level, Text: text}
	}
	if p.isList {
		return domain.Block{Kind: domain.BlockList, Text: "- " + text}
	}
	return domain.Block{Kind: domain.BlockParagraph, Text: text}
}

// parseWordML walks WordprocessingML and emits one block per paragraph.
// Table rows become markdown table lines; consecutive list paragraphs are
// merged into one list block.
func parseWordML(ctx context.Context, r io.Reader) ([]domain.Block, error) {
	dec := xml.NewDecoder(r)

	var (
		blocks    []domain.Block
		para      *wordParagraph
		tableRows []string
		row       []string
		cell      *strings.Builder
		tblDepth  int
	)

	appendBlock := func(b domain.Block) {
		if strings.TrimSpace(strings.TrimPrefix(b.Text, "- ")) == "" {
			return
		}
		if n := len(blocks); n > 0 && b.Kind == domain.BlockList && blocks[n-1].Kind == domain.BlockList {
			blocks[n-1].Text += "\n" + b.Text
			return
		}
		blocks = append(blocks, b)
	}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				tblDepth++
			case "tr":
				row = nil
			case "tc":
				cell = &strings.Builder{}
			case "p":
				para = &wordParagraph{}
			case "pStyle":
				if para != nil {
					para.style = attr(t, "val")
				}
			case "numPr":
				if para != nil {
					para.isList = true
				}
			case "tab":
				if para != nil {
					para.text.WriteString("\t")
				}
			case "br", "cr":
				if para != nil {
					para.text.WriteString("\n")
				}
			case "t":
				var s string
				if err := dec.DecodeElement(&s, &t); err != nil {
					return nil, err
				}
				if para != nil {
					para.text.WriteString(s)
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p":
				if para == nil {
					continue
				}
				if tblDepth > 0 && cell != nil {
					if cell.Len() > 0 {
						cell.WriteString(" ")
					}
					cell.WriteString(strings.TrimSpace(para.text.String()))
				} else {
					appendBlock(para.block())
				}
				para = nil
			case "tc":
				if cell != nil {
					row = append(row, strings.ReplaceAll(cell.String(), "|", "\\|"))
				}
				cell = nil
			case "tr":
				if len(row) > 0 {
					tableRows = append(tableRows, "| "+strings.Join(row, " | ")+" |")
					if len(tableRows) == 1 {
						tableRows = append(tableRows, "|"+strings.Repeat(" --- |", len(row)))
					}
				}
			case "tbl":
				tblDepth--
				if tblDepth == 0 && len(tableRows) > 0 {
					appendBlock(domain.Block{Kind: domain.BlockTable, Text: strings.Join(tableRows, "\n")})
					tableRows = nil
				}
			}
		}
	}

	return blocks, nil
}

// headingLevel maps Word paragraph styles such as "Heading2" or "Title" to a
// markdown heading level, or 0 for body text.
func headingLevel(style string) int {
	s := strings.ToLower(strings.ReplaceAll(style, " ", ""))
	switch {
	case s == "title":
		return 1
	case s == "subtitle":
		return 2
	case strings.HasPrefix(s, "heading"):
		n, err := strconv.Atoi(strings.TrimPrefix(s, "heading"))
		if err != nil || n < 1 {
			return 0
		}
		if n > 6 {
			n = 6
		}
		return n
	}
	return 0
}

func attr(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}
