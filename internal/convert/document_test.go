package convert

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDocConverter() *DocumentConverter {
	// No poppler tools configured: in-process conversions only
	return NewDocumentConverter(DocumentTools{})
}

func TestDocumentConverter_PairsWithoutTools(t *testing.T) {
	c := newDocConverter()

	for _, pair := range c.Pairs() {
		assert.NotEqual(t, "pdf", pair.Input, "pdf input requires poppler tools")
	}
}

func TestDocumentConverter_PairsWithTools(t *testing.T) {
	c := NewDocumentConverter(DocumentTools{PdfToText: "pdftotext", PdfToPpm: "pdftoppm"})

	assert.Contains(t, c.Pairs(), Pair{"pdf", "txt"})
	assert.Contains(t, c.Pairs(), Pair{"pdf", "docx"})
	assert.Contains(t, c.Pairs(), Pair{"pdf", "png"})
	assert.Contains(t, c.Pairs(), Pair{"pdf", "jpg"})
}

func TestDocumentConverter_TxtToHTML(t *testing.T) {
	c := newDocConverter()
	dir := t.TempDir()

	input := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(input, []byte("first line\n\n<b>not markup</b>"), 0o644))
	output := filepath.Join(dir, "notes.html")

	err := c.Convert(context.Background(), input, output, Options{TargetFormat: "html"})
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)

	markup := string(data)
	assert.Contains(t, markup, "<p>first line</p>")
	// Text content is escaped, not interpreted
	assert.Contains(t, markup, "&lt;b&gt;not markup&lt;/b&gt;")
	assert.Contains(t, markup, "<!DOCTYPE html>")
}

func TestDocumentConverter_HTMLToTxt(t *testing.T) {
	c := newDocConverter()
	dir := t.TempDir()

	markup := `<html><head><title>skip</title><style>p{color:red}</style></head>
<body><h1>Title</h1><p>one &amp; two</p><p>three</p></body></html>`

	input := filepath.Join(dir, "page.html")
	require.NoError(t, os.WriteFile(input, []byte(markup), 0o644))
	output := filepath.Join(dir, "page.txt")

	err := c.Convert(context.Background(), input, output, Options{TargetFormat: "txt"})
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)

	text := string(data)
	assert.Contains(t, text, "Title")
	assert.Contains(t, text, "one & two")
	assert.Contains(t, text, "three")
	assert.NotContains(t, text, "<p>")
	assert.NotContains(t, text, "color:red")
}

func TestDocumentConverter_TxtToPDF(t *testing.T) {
	c := newDocConverter()
	dir := t.TempDir()

	input := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(input, []byte("hello pdf\nsecond line"), 0o644))
	output := filepath.Join(dir, "notes.pdf")

	err := c.Convert(context.Background(), input, output, Options{TargetFormat: "pdf"})
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	require.Greater(t, len(data), 4)
	assert.Equal(t, "%PDF", string(data[:4]))
}

func TestDocumentConverter_EmptyInputRejected(t *testing.T) {
	c := newDocConverter()
	dir := t.TempDir()

	input := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(input, nil, 0o644))
	output := filepath.Join(dir, "empty.pdf")

	err := c.Convert(context.Background(), input, output, Options{TargetFormat: "pdf"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input file is empty")

	_, statErr := os.Stat(output)
	assert.True(t, os.IsNotExist(statErr))
}

func TestDocumentConverter_TxtDocxRoundTrip(t *testing.T) {
	c := newDocConverter()
	dir := t.TempDir()

	original := "paragraph one\nparagraph two\nspecial <chars> & \"quotes\""

	input := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(input, []byte(original), 0o644))
	docxPath := filepath.Join(dir, "notes.docx")

	err := c.Convert(context.Background(), input, docxPath, Options{TargetFormat: "docx"})
	require.NoError(t, err)

	txtPath := filepath.Join(dir, "back.txt")
	err = c.Convert(context.Background(), docxPath, txtPath, Options{TargetFormat: "txt"})
	require.NoError(t, err)

	data, err := os.ReadFile(txtPath)
	require.NoError(t, err)
	assert.Equal(t, original, string(data))
}

func TestReadDocxText_NotADocx(t *testing.T) {
	dir := t.TempDir()

	bogus := filepath.Join(dir, "fake.docx")
	require.NoError(t, os.WriteFile(bogus, []byte("plain text, not a zip"), 0o644))

	_, err := readDocxText(bogus)
	assert.Error(t, err)
}

func TestHTMLToText_BlockBoundaries(t *testing.T) {
	text := htmlToText("<div>alpha</div><p>beta</p><br>gamma")

	assert.Contains(t, text, "alpha")
	assert.Contains(t, text, "beta")
	assert.Contains(t, text, "gamma")
	assert.NotContains(t, text, "<")
}
