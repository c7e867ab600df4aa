package domain

import "fmt"

// BlockKind is the structural type of a converted block.
type BlockKind string

const (
	BlockHeading   BlockKind = "heading"
	BlockParagraph BlockKind = "paragraph"
	BlockList      BlockKind = "list"
	BlockCode      BlockKind = "code"
	BlockTable     BlockKind = "table"
)

// Block is one structural unit of a converted document in source order.
type Block struct {
	Ref   string
	Kind  BlockKind
	Level int
	Text  string
}

// BlockRef returns the reference of the i-th block.
func BlockRef(i int) string {
	return fmt.Sprintf("#/texts/%d", i)
}

// ConvertedDocument is the normalized form of an uploaded file.
type ConvertedDocument struct {
	Markdown string
	Blocks   []Block
	Pages    int
	Metadata map[string]string
}
