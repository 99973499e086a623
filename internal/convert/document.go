package convert

import (
	"archive/zip"
	"context"
	"fmt"
	"html"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/go-pdf/fpdf"
)

// DocumentTools holds the external tool paths the document family may use.
// An empty path disables the conversions that depend on that tool; there is
// no runtime probing.
type DocumentTools struct {
	PdfToText string // poppler pdftotext binary
	PdfToPpm  string // poppler pdftoppm binary
}

// DocumentConverter converts between text-based document formats. Plain
// text, HTML, and DOCX paths run in-process; PDF input requires the
// configured poppler tools.
type DocumentConverter struct {
	tools DocumentTools
	pairs []Pair
}

// NewDocumentConverter builds the document family. The reported pair set
// reflects exactly what the configured tools can serve.
func NewDocumentConverter(tools DocumentTools) *DocumentConverter {
	pairs := []Pair{
		{"txt", "pdf"}, {"txt", "html"}, {"txt", "docx"},
		{"html", "txt"}, {"html", "pdf"}, {"html", "docx"},
		{"docx", "txt"}, {"docx", "pdf"}, {"docx", "html"},
	}

	if tools.PdfToText != "" {
		pairs = append(pairs, Pair{"pdf", "txt"}, Pair{"pdf", "docx"})
	}
	if tools.PdfToPpm != "" {
		pairs = append(pairs, Pair{"pdf", "jpg"}, Pair{"pdf", "jpeg"}, Pair{"pdf", "png"})
	}

	return &DocumentConverter{tools: tools, pairs: pairs}
}

func (c *DocumentConverter) Name() string { return "document" }

func (c *DocumentConverter) Pairs() []Pair { return c.pairs }

func (c *DocumentConverter) Convert(ctx context.Context, inputPath, outputPath string, opts Options) error {
	info, err := os.Stat(inputPath)
	if err != nil {
		return fmt.Errorf("failed to stat input: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("input file is empty: %s", filepath.Base(inputPath))
	}

	inputExt := NormalizeFormat(fileExt(inputPath))
	target := NormalizeFormat(opts.TargetFormat)

	if inputExt == "pdf" {
		return c.convertFromPDF(ctx, inputPath, outputPath, target)
	}

	text, err := c.extractText(inputPath, inputExt)
	if err != nil {
		return err
	}

	switch target {
	case "txt":
		return os.WriteFile(outputPath, []byte(text), 0o644)
	case "html":
		return os.WriteFile(outputPath, []byte(textToHTML(text)), 0o644)
	case "pdf":
		return textToPDF(text, outputPath)
	case "docx":
		return writeDocx(outputPath, strings.Split(text, "\n"))
	default:
		return fmt.Errorf("no document conversion from '%s' to '%s'", inputExt, target)
	}
}

// extractText normalizes any in-process input format to plain text
func (c *DocumentConverter) extractText(inputPath, inputExt string) (string, error) {
	switch inputExt {
	case "txt":
		data, err := os.ReadFile(inputPath)
		if err != nil {
			return "", fmt.Errorf("failed to read text input: %w", err)
		}
		return string(data), nil
	case "html":
		data, err := os.ReadFile(inputPath)
		if err != nil {
			return "", fmt.Errorf("failed to read html input: %w", err)
		}
		return htmlToText(string(data)), nil
	case "docx":
		return readDocxText(inputPath)
	default:
		return "", fmt.Errorf("no text extractor for '%s'", inputExt)
	}
}

func (c *DocumentConverter) convertFromPDF(ctx context.Context, inputPath, outputPath, target string) error {
	switch target {
	case "txt":
		return c.pdfToText(ctx, inputPath, outputPath)
	case "docx":
		tmp, err := os.CreateTemp("", "pdftext-*.txt")
		if err != nil {
			return fmt.Errorf("failed to create temp file: %w", err)
		}
		tmp.Close()
		defer os.Remove(tmp.Name())

		if err := c.pdfToText(ctx, inputPath, tmp.Name()); err != nil {
			return err
		}

		data, err := os.ReadFile(tmp.Name())
		if err != nil {
			return fmt.Errorf("failed to read extracted text: %w", err)
		}
		return writeDocx(outputPath, strings.Split(string(data), "\n"))
	case "jpg", "jpeg", "png":
		// Pages are rendered individually and delivered as one ZIP
		return c.pdfToImageArchive(ctx, inputPath, outputPath, target)
	default:
		return fmt.Errorf("no document conversion from 'pdf' to '%s'", target)
	}
}

func (c *DocumentConverter) pdfToText(ctx context.Context, inputPath, outputPath string) error {
	cmd := exec.CommandContext(ctx, c.tools.PdfToText, "-layout", inputPath, outputPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("pdftotext failed: %v: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (c *DocumentConverter) pdfToImageArchive(ctx context.Context, inputPath, outputPath, target string) error {
	workDir, err := os.MkdirTemp("", "pdfpages-")
	if err != nil {
		return fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	formatFlag := "-png"
	pageExt := "png"
	if target == "jpg" || target == "jpeg" {
		formatFlag = "-jpeg"
		pageExt = "jpg"
	}

	prefix := filepath.Join(workDir, "page")
	cmd := exec.CommandContext(ctx, c.tools.PdfToPpm, formatFlag, "-r", "150", inputPath, prefix)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("pdftoppm failed: %v: %s", err, strings.TrimSpace(string(out)))
	}

	pages, err := filepath.Glob(prefix + "*." + pageExt)
	if err != nil || len(pages) == 0 {
		return fmt.Errorf("no pages rendered from %s", filepath.Base(inputPath))
	}
	sort.Strings(pages)

	return zipFiles(outputPath, pages)
}

// zipFiles packs the given files into a fresh ZIP archive
func zipFiles(outputPath string, files []string) error {
	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	zw := zip.NewWriter(out)
	for _, file := range files {
		f, err := os.Open(file)
		if err != nil {
			zw.Close()
			out.Close()
			return fmt.Errorf("failed to open %s: %w", file, err)
		}

		w, err := zw.Create(filepath.Base(file))
		if err == nil {
			_, err = io.Copy(w, f)
		}
		f.Close()
		if err != nil {
			zw.Close()
			out.Close()
			return fmt.Errorf("failed to add %s to archive: %w", file, err)
		}
	}

	if err := zw.Close(); err != nil {
		out.Close()
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	return out.Close()
}

// textToPDF renders plain text into a single-column A4 PDF
func textToPDF(text string, outputPath string) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.AddPage()

	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if line == "" {
			pdf.Ln(5)
			continue
		}
		pdf.MultiCell(0, 5, line, "", "L", false)
	}

	return pdf.OutputFileAndClose(outputPath)
}

// textToHTML wraps each text line in a paragraph inside a minimal document
func textToHTML(text string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head><meta charset=\"utf-8\"></head>\n<body>\n")

	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			b.WriteString("<br>\n")
			continue
		}
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(line))
		b.WriteString("</p>\n")
	}

	b.WriteString("</body>\n</html>\n")
	return b.String()
}

var (
	htmlBlockEndRe = regexp.MustCompile(`(?i)</(p|div|h[1-6]|li|tr)>|<br\s*/?>`)
	htmlTagRe      = regexp.MustCompile(`(?s)<[^>]*>`)
	htmlHeadRe     = regexp.MustCompile(`(?is)<(script|style|head)[^>]*>.*?</\w+>`)
	blankLinesRe   = regexp.MustCompile(`\n{3,}`)
)

// htmlToText strips markup, keeping block boundaries as line breaks
func htmlToText(markup string) string {
	text := htmlHeadRe.ReplaceAllString(markup, "")
	text = htmlBlockEndRe.ReplaceAllString(text, "\n")
	text = htmlTagRe.ReplaceAllString(text, "")
	text = html.UnescapeString(text)

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	text = blankLinesRe.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}
