package convert

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"os"
	"strings"
)

// Minimal OOXML plumbing: enough to write paragraphs of plain text into a
// valid .docx and to pull the text back out of one. Formatting is not
// preserved in either direction.

const docxContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>
`

const docxRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>
`

// writeDocx creates a .docx file with one paragraph per input line
func writeDocx(outputPath string, paragraphs []string) error {
	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create docx: %w", err)
	}

	zw := zip.NewWriter(out)

	parts := []struct {
		name    string
		content string
	}{
		{"[Content_Types].xml", docxContentTypes},
		{"_rels/.rels", docxRels},
		{"word/document.xml", docxDocumentXML(paragraphs)},
	}

	for _, part := range parts {
		w, err := zw.Create(part.name)
		if err == nil {
			_, err = io.WriteString(w, part.content)
		}
		if err != nil {
			zw.Close()
			out.Close()
			os.Remove(outputPath)
			return fmt.Errorf("failed to write docx part %s: %w", part.name, err)
		}
	}

	if err := zw.Close(); err != nil {
		out.Close()
		return fmt.Errorf("failed to finalize docx: %w", err)
	}
	return out.Close()
}

func docxDocumentXML(paragraphs []string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	b.WriteString("\n")
	b.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)

	for _, p := range paragraphs {
		b.WriteString(`<w:p><w:r><w:t xml:space="preserve">`)
		b.WriteString(html.EscapeString(strings.TrimRight(p, "\r")))
		b.WriteString(`</w:t></w:r></w:p>`)
	}

	b.WriteString(`</w:body></w:document>`)
	return b.String()
}

// readDocxText extracts the plain text of a .docx, one line per paragraph
func readDocxText(inputPath string) (string, error) {
	zr, err := zip.OpenReader(inputPath)
	if err != nil {
		return "", fmt.Errorf("failed to open docx: %w", err)
	}
	defer zr.Close()

	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", fmt.Errorf("not a docx file: missing word/document.xml")
	}

	r, err := doc.Open()
	if err != nil {
		return "", fmt.Errorf("failed to read docx document: %w", err)
	}
	defer r.Close()

	return docxTextFromXML(r)
}

func docxTextFromXML(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)

	var b strings.Builder
	inText := false

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to parse docx document: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}

	return strings.TrimRight(b.String(), "\n"), nil
}
