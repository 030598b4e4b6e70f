// Package analysis renders a diagnostic visualization of a cloaking run:
// edges of the cloaked image tinted green, the amplified per-pixel
// perturbation through an inferno colormap inside each face region, face
// boxes and a scanline overlay. It exists to make an invisible perturbation
// inspectable; the cloaked output itself never passes through this package.
package analysis

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"math"

	"github.com/ivxni/VOiD/pkg/types"
)

// Amplification applied to the per-pixel difference before colormapping;
// cloaking perturbations sit a few levels above zero and would be invisible
// unamplified.
const Amplification = 50.0

// Render produces the analysis image for a cloaking run. The two images must
// have identical dimensions; faces outside the bounds are clamped.
func Render(original, cloaked image.Image, faces []types.FaceReport) (*image.NRGBA, error) {
	ob, cb := original.Bounds(), cloaked.Bounds()
	if ob.Dx() != cb.Dx() || ob.Dy() != cb.Dy() {
		return nil, fmt.Errorf("image dimensions differ: %dx%d vs %dx%d",
			ob.Dx(), ob.Dy(), cb.Dx(), cb.Dy())
	}
	w, h := ob.Dx(), ob.Dy()

	orig := types.FloatImageFrom(original)
	cloak := types.FloatImageFrom(cloaked)

	canvas := tintedEdges(cloak)

	// Amplified perturbation magnitude, averaged over channels.
	diff := make([]float64, w*h)
	for p := 0; p < w*h; p++ {
		var sum float64
		for c := 0; c < 3; c++ {
			sum += math.Abs(cloak.Pix[p*3+c] - orig.Pix[p*3+c])
		}
		v := sum / 3 * Amplification
		if v > 1 {
			v = 1
		}
		diff[p] = v
	}

	bounds := image.Rect(0, 0, w, h)
	for _, face := range faces {
		box := face.Box.Clamp(bounds)
		if box.Width() <= 0 || box.Height() <= 0 {
			continue
		}
		blendHeatmap(canvas, diff, box)
	}

	for _, face := range faces {
		box := face.Box.Clamp(bounds)
		if box.Width() <= 0 || box.Height() <= 0 {
			continue
		}
		drawBox(canvas, box.XMin, box.YMin, box.XMax-1, box.YMax-1, 0, 255, 148)
		drawBox(canvas, box.XMin-2, box.YMin-2, box.XMax+1, box.YMax+1, 0, 180, 100)
	}

	scanlines(canvas)
	return canvas, nil
}

// RenderJPEG renders the analysis image and encodes it as JPEG
func RenderJPEG(original, cloaked image.Image, faces []types.FaceReport) ([]byte, error) {
	img, err := Render(original, cloaked, faces)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("failed to encode analysis image: %w", err)
	}
	return buf.Bytes(), nil
}

// tintedEdges runs a 3x3 Sobel over the luminance of the cloaked image,
// normalizes the gradient magnitude and tints it green with a cyan cast.
func tintedEdges(f *types.FloatImage) *image.NRGBA {
	w, h := f.W, f.H
	gray := make([]float64, w*h)
	for p := 0; p < w*h; p++ {
		gray[p] = 0.299*f.Pix[p*3] + 0.587*f.Pix[p*3+1] + 0.114*f.Pix[p*3+2]
	}

	edges := make([]float64, w*h)
	var edgeMax float64
	at := func(x, y int) float64 {
		if x < 0 {
			x = 0
		} else if x >= w {
			x = w - 1
		}
		if y < 0 {
			y = 0
		} else if y >= h {
			y = h - 1
		}
		return gray[y*w+x]
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			gx := at(x+1, y-1) + 2*at(x+1, y) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x-1, y) - at(x-1, y+1)
			gy := at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1) -
				at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1)
			m := math.Sqrt(gx*gx + gy*gy)
			edges[y*w+x] = m
			if m > edgeMax {
				edgeMax = m
			}
		}
	}

	canvas := image.NewNRGBA(image.Rect(0, 0, w, h))
	for p := 0; p < w*h; p++ {
		e := 0.0
		if edgeMax > 0 {
			e = edges[p] / edgeMax
		}
		i := p * 4
		canvas.Pix[i+0] = types.Quantize(e * 0.05)
		canvas.Pix[i+1] = types.Quantize(e * 0.8)
		canvas.Pix[i+2] = types.Quantize(e * 0.35)
		canvas.Pix[i+3] = 255
	}
	return canvas
}

// blendHeatmap adds the colormapped difference into the canvas inside box,
// attenuated by a feathered mask so the heatmap fades out at the region edge.
func blendHeatmap(canvas *image.NRGBA, diff []float64, box types.BoundingBox) {
	w := canvas.Bounds().Dx()
	bw, bh := box.Width(), box.Height()
	feather := bw
	if bh < feather {
		feather = bh
	}
	feather /= 4
	if feather < 1 {
		feather = 1
	}

	for y := box.YMin; y < box.YMax; y++ {
		for x := box.XMin; x < box.XMax; x++ {
			d := x - box.XMin
			if y-box.YMin < d {
				d = y - box.YMin
			}
			if box.XMax-1-x < d {
				d = box.XMax - 1 - x
			}
			if box.YMax-1-y < d {
				d = box.YMax - 1 - y
			}
			m := float64(d) / float64(feather)
			if m > 1 {
				m = 1
			}
			if m <= 0 {
				continue
			}

			hr, hg, hb := inferno(diff[y*w+x])
			i := y*canvas.Stride + x*4
			canvas.Pix[i+0] = addClamp(canvas.Pix[i+0], hr*m*0.85)
			canvas.Pix[i+1] = addClamp(canvas.Pix[i+1], hg*m*0.85)
			canvas.Pix[i+2] = addClamp(canvas.Pix[i+2], hb*m*0.85)
		}
	}
}

// scanlines darkens every third row for the terminal-readout look
func scanlines(canvas *image.NRGBA) {
	b := canvas.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y += 3 {
		row := canvas.Pix[(y-b.Min.Y)*canvas.Stride : (y-b.Min.Y+1)*canvas.Stride]
		for i := 0; i < len(row); i += 4 {
			row[i+0] = uint8(float64(row[i+0]) * 0.8)
			row[i+1] = uint8(float64(row[i+1]) * 0.8)
			row[i+2] = uint8(float64(row[i+2]) * 0.8)
		}
	}
}

// drawBox draws a 1px rectangle outline, clipping to the canvas
func drawBox(canvas *image.NRGBA, x1, y1, x2, y2 int, r, g, b uint8) {
	drawHLine(canvas, x1, x2, y1, r, g, b)
	drawHLine(canvas, x1, x2, y2, r, g, b)
	drawVLine(canvas, y1, y2, x1, r, g, b)
	drawVLine(canvas, y1, y2, x2, r, g, b)
}

func drawHLine(canvas *image.NRGBA, x1, x2, y int, r, g, b uint8) {
	bounds := canvas.Bounds()
	if y < bounds.Min.Y || y >= bounds.Max.Y {
		return
	}
	for x := max(x1, bounds.Min.X); x <= min(x2, bounds.Max.X-1); x++ {
		i := (y-bounds.Min.Y)*canvas.Stride + (x-bounds.Min.X)*4
		canvas.Pix[i+0], canvas.Pix[i+1], canvas.Pix[i+2] = r, g, b
	}
}

func drawVLine(canvas *image.NRGBA, y1, y2, x int, r, g, b uint8) {
	bounds := canvas.Bounds()
	if x < bounds.Min.X || x >= bounds.Max.X {
		return
	}
	for y := max(y1, bounds.Min.Y); y <= min(y2, bounds.Max.Y-1); y++ {
		i := (y-bounds.Min.Y)*canvas.Stride + (x-bounds.Min.X)*4
		canvas.Pix[i+0], canvas.Pix[i+1], canvas.Pix[i+2] = r, g, b
	}
}

func addClamp(base uint8, add float64) uint8 {
	v := float64(base) + add
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// infernoAnchors samples the inferno colormap at nine evenly spaced stops;
// inferno() interpolates linearly between them.
var infernoAnchors = [][3]float64{
	{0, 0, 4},
	{27, 12, 65},
	{74, 12, 107},
	{120, 28, 109},
	{165, 44, 96},
	{207, 68, 70},
	{237, 105, 37},
	{251, 155, 6},
	{252, 255, 164},
}

// inferno maps t in [0,1] to an RGB color in [0,255] float space
func inferno(t float64) (r, g, b float64) {
	if t <= 0 {
		a := infernoAnchors[0]
		return a[0], a[1], a[2]
	}
	if t >= 1 {
		a := infernoAnchors[len(infernoAnchors)-1]
		return a[0], a[1], a[2]
	}
	pos := t * float64(len(infernoAnchors)-1)
	lo := int(pos)
	frac := pos - float64(lo)
	a, c := infernoAnchors[lo], infernoAnchors[lo+1]
	return a[0] + (c[0]-a[0])*frac,
		a[1] + (c[1]-a[1])*frac,
		a[2] + (c[2]-a[2])*frac
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
