package convert

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"
	"unicode/utf8"

	"github.com/cloo-solutions/ragdocs/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func writeDOCX(t *testing.T, documentXML string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(documentXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestConverter_Supports(t *testing.T) {
	c := New()

	assert.True(t, c.Supports(".pdf"))
	assert.True(t, c.Supports("DOCX"))
	assert.True(t, c.Supports(".md"))
	assert.False(t, c.Supports(".exe"))

	restricted := New(WithExtensions(".pdf", "docx", ".xyz"))
	assert.Equal(t, []string{".docx", ".pdf"}, restricted.Extensions())
}

func TestConverter_PlainText(t *testing.T) {
	path := writeFile(t, "notes.txt", "First paragraph\nstill first.\r\n\r\nSecond paragraph.\n\n\n")

	doc, err := New().Convert(context.Background(), path)
	require.NoError(t, err)

	require.Len(t, doc.Blocks, 2)
	assert.Equal(t, "#/texts/0", doc.Blocks[0].Ref)
	assert.Equal(t, "#/texts/1", doc.Blocks[1].Ref)
	assert.Equal(t, domain.BlockParagraph, doc.Blocks[0].Kind)
	assert.Equal(t, "First paragraph\nstill first.\n\nSecond paragraph.", doc.Markdown)
	assert.Equal(t, 1, doc.Pages)
	assert.Equal(t, "txt", doc.Metadata["format"])
}

func TestConverter_Markdown(t *testing.T) {
	src := "# Guide\n\nIntro text.\n\n## Install\n\n- one\n- two\n\n```\ngo build\n```\n\n| a | b |\n|---|---|\n| 1 | 2 |\n"
	path := writeFile(t, "guide.md", src)

	doc, err := New().Convert(context.Background(), path)
	require.NoError(t, err)

	kinds := make([]domain.BlockKind, 0, len(doc.Blocks))
	for _, b := range doc.Blocks {
		kinds = append(kinds, b.Kind)
	}
	assert.Equal(t, []domain.BlockKind{
		domain.BlockHeading, domain.BlockParagraph, domain.BlockHeading,
		domain.BlockList, domain.BlockCode, domain.BlockTable,
	}, kinds)
	assert.Equal(t, 1, doc.Blocks[0].Level)
	assert.Equal(t, "Guide", doc.Blocks[0].Text)
	assert.Equal(t, 2, doc.Blocks[2].Level)
	assert.Equal(t, "- one\n- two", doc.Blocks[3].Text)
	assert.Equal(t, "go build", doc.Blocks[4].Text)
}

func TestConverter_HTML(t *testing.T) {
	path := writeFile(t, "page.html", "<html><body><h1>Title</h1><p>Hello <b>world</b>.</p></body></html>")

	doc, err := New().Convert(context.Background(), path)
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(doc.Blocks), 2)
	assert.Equal(t, domain.BlockHeading, doc.Blocks[0].Kind)
	assert.Equal(t, "Title", doc.Blocks[0].Text)
	assert.Contains(t, doc.Markdown, "**world**")
}

func TestConverter_DOCX(t *testing.T) {
	xmlDoc := `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Overview</w:t></w:r></w:p>
<w:p><w:r><w:t xml:space="preserve">Body </w:t></w:r><w:r><w:t>text.</w:t></w:r></w:p>
<w:p><w:pPr><w:numPr><w:ilvl w:val="0"/></w:numPr></w:pPr><w:r><w:t>item one</w:t></w:r></w:p>
<w:p><w:pPr><w:numPr><w:ilvl w:val="0"/></w:numPr></w:pPr><w:r><w:t>item two</w:t></w:r></w:p>
<w:tbl>
<w:tr><w:tc><w:p><w:r><w:t>h1</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>h2</w:t></w:r></w:p></w:tc></w:tr>
<w:tr><w:tc><w:p><w:r><w:t>v1</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>v2</w:t></w:r></w:p></w:tc></w:tr>
</w:tbl>
</w:body>
</w:document>`
	path := writeDOCX(t, xmlDoc)

	doc, err := New().Convert(context.Background(), path)
	require.NoError(t, err)

	require.Len(t, doc.Blocks, 4)
	assert.Equal(t, domain.Block{Ref: "#/texts/0", Kind: domain.BlockHeading, Level: 1, Text: "Overview"}, doc.Blocks[0])
	assert.Equal(t, "Body text.", doc.Blocks[1].Text)
	assert.Equal(t, "- item one\n- item two", doc.Blocks[2].Text)
	assert.Equal(t, domain.BlockTable, doc.Blocks[3].Kind)
	assert.Equal(t, "| h1 | h2 |\n| --- | --- |\n| v1 | v2 |", doc.Blocks[3].Text)
	assert.Contains(t, doc.Markdown, "# Overview\n\nBody text.")
}

func TestConverter_DOCXWithoutDocumentPart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	_, err = zw.Create("word/styles.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	_, err = New().Convert(context.Background(), path)
	assert.ErrorIs(t, err, errNoDocumentPart)
}

func TestConverter_Errors(t *testing.T) {
	c := New()
	ctx := context.Background()

	_, err := c.Convert(ctx, writeFile(t, "x.exe", "MZ"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = c.Convert(ctx, writeFile(t, "blank.txt", " \n\n \n"))
	assert.ErrorIs(t, err, ErrEmptyDocument)

	_, err = c.Convert(ctx, writeFile(t, "broken.pdf", "this is not a pdf"))
	assert.Error(t, err)

	_, err = c.Convert(ctx, writeFile(t, "broken.docx", "not a zip"))
	assert.Error(t, err)

	_, err = c.Convert(ctx, filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestConverter_RejectsNonUTF8Text(t *testing.T) {
	c := New()
	ctx := context.Background()

	for _, name := range []string{"latin1.txt", "latin1.md", "latin1.html"} {
		t.Run(name, func(t *testing.T) {
			_, err := c.Convert(ctx, writeFile(t, name, "caf\xe9 cr\xe8me br\xfbl\xe9e end"))
			assert.ErrorIs(t, err, ErrInvalidEncoding)
		})
	}

	_, err := c.Convert(ctx, writeFile(t, "nul.txt", "before\x00after"))
	assert.ErrorIs(t, err, ErrInvalidEncoding)
}

func TestConverter_StripsBOM(t *testing.T) {
	doc, err := New().Convert(context.Background(), writeFile(t, "bom.md", "\xef\xbb\xbf# Title\n\nBody"))
	require.NoError(t, err)
	assert.Equal(t, "Title", doc.Blocks[0].Text)
	assert.True(t, utf8.ValidString(doc.Markdown))
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "ab\uFFFDc", cleanText("a\x00b\xffc"))
	assert.Equal(t, "plain", cleanText("plain"))
}

func TestConverter_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Convert(ctx, writeFile(t, "a.txt", "hello"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHeadingLevel(t *testing.T) {
	assert.Equal(t, 1, headingLevel("Title"))
	assert.Equal(t, 2, headingLevel("Subtitle"))
	assert.Equal(t, 3, headingLevel("Heading3"))
	assert.Equal(t, 2, headingLevel("heading 2"))
	assert.Equal(t, 6, headingLevel("Heading9"))
	assert.Equal(t, 0, headingLevel("Normal"))
	assert.Equal(t, 0, headingLevel("HeadingX"))
}
