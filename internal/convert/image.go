package convert

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"
)

// jpegQuality matches the quality the service has always produced
const jpegQuality = 90

var (
	imageInputFormats  = []string{"jpg", "jpeg", "png", "gif", "bmp", "tiff", "webp"}
	imageOutputFormats = []string{"jpg", "jpeg", "png", "gif", "bmp", "tiff"}
)

// ImageConverter converts between raster image formats in-process.
// WEBP is decode-only; the x/image package does not ship an encoder.
type ImageConverter struct {
	pairs []Pair
}

// NewImageConverter builds the image family with its full capability set
func NewImageConverter() *ImageConverter {
	return &ImageConverter{
		pairs: product(imageInputFormats, imageOutputFormats),
	}
}

func (c *ImageConverter) Name() string { return "image" }

func (c *ImageConverter) Pairs() []Pair { return c.pairs }

func (c *ImageConverter) Convert(ctx context.Context, inputPath, outputPath string, opts Options) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	in, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("failed to open image: %w", err)
	}
	defer in.Close()

	img, err := decodeImage(in, NormalizeFormat(fileExt(inputPath)))
	if err != nil {
		return fmt.Errorf("failed to decode image: %w", err)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output image: %w", err)
	}

	encodeErr := encodeImage(out, img, opts.TargetFormat)
	if cerr := out.Close(); encodeErr == nil {
		encodeErr = cerr
	}
	if encodeErr != nil {
		os.Remove(outputPath)
		return fmt.Errorf("failed to encode image as %s: %w", opts.TargetFormat, encodeErr)
	}

	return nil
}

func decodeImage(f *os.File, ext string) (image.Image, error) {
	switch ext {
	case "jpg", "jpeg":
		return jpeg.Decode(f)
	case "png":
		return png.Decode(f)
	case "gif":
		return gif.Decode(f)
	case "bmp":
		return bmp.Decode(f)
	case "tiff":
		return tiff.Decode(f)
	case "webp":
		return webp.Decode(f)
	default:
		return nil, fmt.Errorf("no decoder for '%s'", ext)
	}
}

func encodeImage(f *os.File, img image.Image, format string) error {
	switch format {
	case "jpg", "jpeg":
		// JPEG has no alpha channel, flatten onto white first
		return jpeg.Encode(f, flatten(img), &jpeg.Options{Quality: jpegQuality})
	case "png":
		return png.Encode(f, img)
	case "gif":
		return gif.Encode(f, img, nil)
	case "bmp":
		return bmp.Encode(f, img)
	case "tiff":
		return tiff.Encode(f, img, nil)
	default:
		return fmt.Errorf("no encoder for '%s'", format)
	}
}

func flatten(img image.Image) image.Image {
	bounds := img.Bounds()
	flat := image.NewRGBA(bounds)
	draw.Draw(flat, bounds, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(flat, bounds, img, bounds.Min, draw.Over)
	return flat
}
