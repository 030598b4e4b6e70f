package types

import (
	"image"
	"image/color"
)

// FloatImage is a 3-channel pixel buffer in normalized [0,1] float64 space.
// All perturbation math runs on FloatImages; conversion back to 8-bit happens
// once, with rounding, when the crop is composited.
type FloatImage struct {
	W, H int
	// Pix holds RGB triplets row by row, len W*H*3.
	Pix []float64
}

// NewFloatImage allocates a zeroed W×H float image
func NewFloatImage(w, h int) *FloatImage {
	return &FloatImage{W: w, H: h, Pix: make([]float64, w*h*3)}
}

// FloatImageFrom converts an image to normalized float space. Alpha is
// flattened against black, matching the decoder's RGBA handling.
func FloatImageFrom(img image.Image) *FloatImage {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	f := NewFloatImage(w, h)
	i := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()
			f.Pix[i+0] = float64(r>>8) / 255.0
			f.Pix[i+1] = float64(g>>8) / 255.0
			f.Pix[i+2] = float64(b>>8) / 255.0
			i += 3
		}
	}
	return f
}

// Clone returns a deep copy
func (f *FloatImage) Clone() *FloatImage {
	c := &FloatImage{W: f.W, H: f.H, Pix: make([]float64, len(f.Pix))}
	copy(c.Pix, f.Pix)
	return c
}

// At returns the RGB triplet at (x, y)
func (f *FloatImage) At(x, y int) (r, g, b float64) {
	i := (y*f.W + x) * 3
	return f.Pix[i], f.Pix[i+1], f.Pix[i+2]
}

// Set writes the RGB triplet at (x, y)
func (f *FloatImage) Set(x, y int, r, g, b float64) {
	i := (y*f.W + x) * 3
	f.Pix[i], f.Pix[i+1], f.Pix[i+2] = r, g, b
}

// Clamp01 clips every channel into [0,1] in place and returns f
func (f *FloatImage) Clamp01() *FloatImage {
	for i, v := range f.Pix {
		if v < 0 {
			f.Pix[i] = 0
		} else if v > 1 {
			f.Pix[i] = 1
		}
	}
	return f
}

// ToNRGBA converts back to 8-bit with rounding (not truncation)
func (f *FloatImage) ToNRGBA() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, f.W, f.H))
	i := 0
	for y := 0; y < f.H; y++ {
		for x := 0; x < f.W; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: Quantize(f.Pix[i+0]),
				G: Quantize(f.Pix[i+1]),
				B: Quantize(f.Pix[i+2]),
				A: 255,
			})
			i += 3
		}
	}
	return img
}

// Quantize converts a normalized channel value to 8-bit, clamping and
// rounding half up.
func Quantize(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255.0 + 0.5)
}
