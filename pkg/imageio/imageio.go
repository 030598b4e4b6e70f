// Package imageio decodes and encodes the images entering and leaving the
// cloaking pipeline. Decoding corrects EXIF orientation, which phone photos
// routinely carry; without the correction the face detector sees sideways
// faces and misses them.
package imageio

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/webp"
)

// Decode decodes image bytes (jpeg, png or webp) and applies the EXIF
// orientation, returning an upright image.
func Decode(data []byte) (image.Image, error) {
	img, err := decodeBytes(data)
	if err != nil {
		return nil, err
	}
	return applyOrientation(img, readOrientation(data)), nil
}

// DecodeReader decodes from an io.Reader
func DecodeReader(r io.Reader) (image.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	return Decode(data)
}

// Load reads and decodes an image file
func Load(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image file: %w", err)
	}
	return Decode(data)
}

func decodeBytes(data []byte) (image.Image, error) {
	// Standard decoders first (jpeg, png, x/image webp)
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	// Fallback: explicit WebP decode
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	return nil, fmt.Errorf("image: unknown or unsupported format")
}

// readOrientation extracts the EXIF orientation tag; 1 (upright) when the
// image carries no usable EXIF block.
func readOrientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	orient, err := tag.Int(0)
	if err != nil || orient < 1 || orient > 8 {
		return 1
	}
	return orient
}

// applyOrientation maps the eight EXIF orientation values onto the
// corresponding imaging transforms.
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	}
	return img
}

// EncodeOptions controls output encoding
type EncodeOptions struct {
	Format   string // jpg, png or webp
	Quality  int    // 1-100, jpeg and lossy webp
	Lossless bool   // webp only
}

// DefaultEncodeOptions returns jpeg output at quality 95
func DefaultEncodeOptions() EncodeOptions {
	return EncodeOptions{Format: "jpg", Quality: 95}
}

// Encode encodes an image with the given options
func Encode(img image.Image, opts EncodeOptions) ([]byte, error) {
	var buf bytes.Buffer
	switch strings.ToLower(opts.Format) {
	case "webp":
		wopts := &webp.Options{Lossless: opts.Lossless, Quality: float32(opts.Quality)}
		if err := webp.Encode(&buf, img, wopts); err != nil {
			return nil, fmt.Errorf("webp encode failed: %w", err)
		}
	case "png":
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("png encode failed: %w", err)
		}
	case "jpg", "jpeg", "":
		quality := opts.Quality
		if quality <= 0 {
			quality = 95
		}
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("jpeg encode failed: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported output format: %s", opts.Format)
	}
	return buf.Bytes(), nil
}

// Save encodes and writes an image file, picking the format from the
// extension when opts.Format is empty.
func Save(img image.Image, path string, opts EncodeOptions) error {
	if opts.Format == "" {
		opts.Format = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext(path))), ".")
	}
	data, err := Encode(img, opts)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write image file: %w", err)
	}
	return nil
}

func ext(path string) string {
	for i := len(path) - 1; i >= 0 && path[i] != '/' && path[i] != '\\'; i-- {
		if path[i] == '.' {
			return path[i:]
		}
	}
	return ""
}
