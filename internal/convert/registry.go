package convert

import (
	"context"
	"fmt"
	"os"
	"sort"
)

// Registry dispatches conversions to converter families through a lookup
// table keyed on (input extension, target format). Adding a format is a data
// change in a family's pair list, not a new branch here.
type Registry struct {
	families []Converter
	table    map[Pair]Converter
}

// NewRegistry builds the dispatch table from the families' reported pairs.
// Registration order matters when two families claim the same pair: the
// first one wins.
func NewRegistry(families ...Converter) *Registry {
	table := make(map[Pair]Converter)
	for _, family := range families {
		for _, pair := range family.Pairs() {
			if _, taken := table[pair]; !taken {
				table[pair] = family
			}
		}
	}

	return &Registry{
		families: families,
		table:    table,
	}
}

// Supports reports whether the conversion is available and, when it is not,
// a human-readable reason
func (r *Registry) Supports(inputExt, outputExt string) (bool, string) {
	inputExt = NormalizeFormat(inputExt)
	outputExt = NormalizeFormat(outputExt)

	// RAR archives can be read but never written
	if outputExt == "rar" {
		return false, "RAR creation requires proprietary WinRAR software and is not supported"
	}

	if _, ok := r.table[Pair{Input: inputExt, Output: outputExt}]; ok {
		return true, "Conversion supported"
	}

	inputKnown := false
	outputKnown := false
	for pair := range r.table {
		if pair.Input == inputExt {
			inputKnown = true
		}
		if pair.Output == outputExt {
			outputKnown = true
		}
	}

	switch {
	case !inputKnown:
		return false, fmt.Sprintf("Input format '%s' is not supported", inputExt)
	case !outputKnown:
		return false, fmt.Sprintf("Output format '%s' is not supported", outputExt)
	default:
		return false, fmt.Sprintf("Conversion from '%s' to '%s' is not supported", inputExt, outputExt)
	}
}

// InputSupported reports whether any conversion accepts the extension
func (r *Registry) InputSupported(inputExt string) bool {
	inputExt = NormalizeFormat(inputExt)
	for pair := range r.table {
		if pair.Input == inputExt {
			return true
		}
	}
	return false
}

// Convert runs the conversion for (inputExt, opts.TargetFormat) and verifies
// the output file exists afterwards. A converter claiming success without
// producing output is treated as a failure.
func (r *Registry) Convert(ctx context.Context, inputPath, outputPath, inputExt string, opts Options) error {
	inputExt = NormalizeFormat(inputExt)
	opts.TargetFormat = NormalizeFormat(opts.TargetFormat)

	if supported, reason := r.Supports(inputExt, opts.TargetFormat); !supported {
		return fmt.Errorf("%w: %s", ErrUnsupportedConversion, reason)
	}

	if _, err := os.Stat(inputPath); err != nil {
		return fmt.Errorf("input file does not exist: %s", inputPath)
	}

	family := r.table[Pair{Input: inputExt, Output: opts.TargetFormat}]
	if err := family.Convert(ctx, inputPath, outputPath, opts); err != nil {
		return err
	}

	if _, err := os.Stat(outputPath); err != nil {
		return fmt.Errorf("conversion reported success but output file not found: %s", outputPath)
	}

	return nil
}

// ListFormats returns the input/output format sets per family, sorted for
// stable responses
func (r *Registry) ListFormats() map[string]Formats {
	result := make(map[string]Formats, len(r.families))
	for _, family := range r.families {
		inputs := make(map[string]struct{})
		outputs := make(map[string]struct{})
		for _, pair := range family.Pairs() {
			inputs[pair.Input] = struct{}{}
			outputs[pair.Output] = struct{}{}
		}

		result[family.Name()] = Formats{
			Input:  sortedKeys(inputs),
			Output: sortedKeys(outputs),
		}
	}
	return result
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
