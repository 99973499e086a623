// Package convert implements the converter registry and the four converter
// families (image, document, media, archive). The rest of the service treats
// converters as opaque: a conversion either succeeds and leaves a file at the
// output path, or fails with an error message.
package convert

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupportedConversion is returned when no converter handles a format pair
	ErrUnsupportedConversion = errors.New("unsupported conversion")
)

// Options carries conversion parameters beyond the file paths.
// TargetFormat is the logical output format; it can differ from the output
// path's extension when the result is packaged in a container (PDF pages
// rendered to images are delivered as a ZIP).
type Options struct {
	TargetFormat string
}

// Pair is one supported (input extension, output format) combination
type Pair struct {
	Input  string
	Output string
}

// Formats lists the input and output format tags a converter family serves
type Formats struct {
	Input  []string `json:"input"`
	Output []string `json:"output"`
}

// Converter is one converter family. Pairs is fixed at construction time:
// a family only reports conversions its configured tools can actually run.
type Converter interface {
	Name() string
	Pairs() []Pair
	Convert(ctx context.Context, inputPath, outputPath string, opts Options) error
}

// NormalizeFormat lowercases a format tag and strips a leading dot
func NormalizeFormat(format string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(format)), ".")
}

// ContainerExt returns the physical file extension a conversion produces.
// It differs from the target format only for PDF-to-image conversions, whose
// per-page images are packaged as a ZIP.
func ContainerExt(inputExt, targetFormat string) string {
	inputExt = NormalizeFormat(inputExt)
	targetFormat = NormalizeFormat(targetFormat)

	if inputExt == "pdf" {
		switch targetFormat {
		case "jpg", "jpeg", "png":
			return "zip"
		}
	}
	return targetFormat
}

// fileExt returns the file extension without the leading dot
func fileExt(path string) string {
	return strings.TrimPrefix(filepath.Ext(path), ".")
}

// product builds the full cross product of inputs and outputs, used by
// families where every decoded input can be encoded to every output
func product(inputs, outputs []string) []Pair {
	pairs := make([]Pair, 0, len(inputs)*len(outputs))
	for _, in := range inputs {
		for _, out := range outputs {
			pairs = append(pairs, Pair{Input: in, Output: out})
		}
	}
	return pairs
}
