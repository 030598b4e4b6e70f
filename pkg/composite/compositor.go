// Package composite blends perturbed face crops back into the source image.
// The blend uses a feathered mask so region borders never show a hard seam,
// while every pixel outside a face region stays bit-identical to the input.
package composite

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/ivxni/VOiD/pkg/types"
)

// MinFeather is the narrowest edge ramp applied to any region, in pixels
const MinFeather = 5

// Canvas accumulates perturbed face regions over a copy of the original
// image. Regions are applied in face-localizer order; overlapping regions
// blend into the already-accumulated pixels.
type Canvas struct {
	dst    *image.NRGBA
	bounds image.Rectangle
}

// NewCanvas clones the original image into an accumulation buffer
func NewCanvas(original image.Image) *Canvas {
	dst := imaging.Clone(original)
	return &Canvas{dst: dst, bounds: dst.Bounds()}
}

// Apply blends a perturbed float crop into the canvas at the region's
// coordinates. The crop dimensions must match the (clamped) region exactly;
// a mismatch or degenerate region yields ErrMalformedRegion and leaves the
// canvas untouched.
func (c *Canvas) Apply(box types.BoundingBox, crop *types.FloatImage) error {
	if crop == nil {
		return fmt.Errorf("%w: nil crop", types.ErrMalformedRegion)
	}
	rect := box.Rect().Intersect(c.bounds)
	if rect.Empty() {
		return fmt.Errorf("%w: region %v outside image bounds", types.ErrMalformedRegion, box)
	}
	w, h := rect.Dx(), rect.Dy()
	if crop.W != w || crop.H != h {
		return fmt.Errorf("%w: crop %dx%d does not match region %dx%d",
			types.ErrMalformedRegion, crop.W, crop.H, w, h)
	}

	feather := featherWidth(w, h)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m := maskAt(x, y, w, h, feather)
			if m <= 0 {
				continue
			}

			i := (rect.Min.Y+y-c.bounds.Min.Y)*c.dst.Stride + (rect.Min.X+x-c.bounds.Min.X)*4
			baseR := float64(c.dst.Pix[i+0]) / 255.0
			baseG := float64(c.dst.Pix[i+1]) / 255.0
			baseB := float64(c.dst.Pix[i+2]) / 255.0

			pr, pg, pb := crop.At(x, y)

			// Single rounding step: the float pipeline ends here.
			c.dst.Pix[i+0] = types.Quantize(baseR*(1-m) + pr*m)
			c.dst.Pix[i+1] = types.Quantize(baseG*(1-m) + pg*m)
			c.dst.Pix[i+2] = types.Quantize(baseB*(1-m) + pb*m)
		}
	}
	return nil
}

// Image returns the accumulated result
func (c *Canvas) Image() *image.NRGBA {
	return c.dst
}

// featherWidth follows the region size: an eighth of the short side,
// never narrower than MinFeather.
func featherWidth(w, h int) int {
	min := w
	if h < min {
		min = h
	}
	feather := min / 8
	if feather < MinFeather {
		feather = MinFeather
	}
	return feather
}

// maskAt is a linear edge ramp: 0 at the region border, 1 once feather
// pixels inside. Zero at the border keeps the blend continuous with the
// untouched pixels just outside the region.
func maskAt(x, y, w, h, feather int) float64 {
	d := x
	if y < d {
		d = y
	}
	if w-1-x < d {
		d = w - 1 - x
	}
	if h-1-y < d {
		d = h - 1 - y
	}
	m := float64(d) / float64(feather)
	if m > 1 {
		return 1
	}
	return m
}
