package composite

import (
	"errors"
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/ivxni/VOiD/pkg/types"
)

func texturedImage(w, h int, seed int64) *image.NRGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(rng.Intn(256)),
				G: uint8(rng.Intn(256)),
				B: uint8(rng.Intn(256)),
				A: 255,
			})
		}
	}
	return img
}

// invertedCrop builds a float crop that is the channel inverse of the region,
// a worst-case perturbation for seam visibility.
func invertedCrop(src *image.NRGBA, box types.BoundingBox) *types.FloatImage {
	f := types.NewFloatImage(box.Width(), box.Height())
	for y := 0; y < box.Height(); y++ {
		for x := 0; x < box.Width(); x++ {
			c := src.NRGBAAt(box.XMin+x, box.YMin+y)
			f.Set(x, y, 1-float64(c.R)/255, 1-float64(c.G)/255, 1-float64(c.B)/255)
		}
	}
	return f
}

func TestApplyPixelLocality(t *testing.T) {
	src := texturedImage(100, 80, 1)
	box := types.BoundingBox{XMin: 20, YMin: 10, XMax: 60, YMax: 50}

	canvas := NewCanvas(src)
	if err := canvas.Apply(box, invertedCrop(src, box)); err != nil {
		t.Fatal(err)
	}
	out := canvas.Image()

	if !out.Bounds().Eq(src.Bounds()) {
		t.Fatalf("output bounds %v differ from input %v", out.Bounds(), src.Bounds())
	}

	for y := 0; y < 80; y++ {
		for x := 0; x < 100; x++ {
			inside := x >= box.XMin && x < box.XMax && y >= box.YMin && y < box.YMax
			if !inside && out.NRGBAAt(x, y) != src.NRGBAAt(x, y) {
				t.Fatalf("pixel (%d,%d) outside the region changed", x, y)
			}
		}
	}

	// Region border has mask weight zero, so it stays identical too.
	if out.NRGBAAt(box.XMin, box.YMin) != src.NRGBAAt(box.XMin, box.YMin) {
		t.Error("region corner changed despite zero feather weight")
	}

	// Deep interior carries the full perturbation.
	cx, cy := box.Center().X, box.Center().Y
	if out.NRGBAAt(cx, cy) == src.NRGBAAt(cx, cy) {
		t.Error("region center unchanged, perturbation lost")
	}
}

func TestApplyCenterFullyBlended(t *testing.T) {
	src := texturedImage(100, 100, 2)
	box := types.BoundingBox{XMin: 10, YMin: 10, XMax: 90, YMax: 90}
	crop := invertedCrop(src, box)

	canvas := NewCanvas(src)
	if err := canvas.Apply(box, crop); err != nil {
		t.Fatal(err)
	}
	out := canvas.Image()

	// Feather is minSide/8 = 10px; (40,40) in crop space is well past it.
	want := types.Quantize(1 - float64(src.NRGBAAt(50, 50).R)/255)
	if got := out.NRGBAAt(50, 50).R; got != want {
		t.Errorf("center pixel R = %d, want fully blended %d", got, want)
	}
}

func TestApplyDimensionMismatch(t *testing.T) {
	src := texturedImage(50, 50, 3)
	box := types.BoundingBox{XMin: 0, YMin: 0, XMax: 30, YMax: 30}

	canvas := NewCanvas(src)
	err := canvas.Apply(box, types.NewFloatImage(10, 10))
	if !errors.Is(err, types.ErrMalformedRegion) {
		t.Fatalf("expected ErrMalformedRegion, got %v", err)
	}

	// The failed apply must not leave partial writes.
	out := canvas.Image()
	for y := 0; y < 50; y++ {
		for x := 0; x < 50; x++ {
			if out.NRGBAAt(x, y) != src.NRGBAAt(x, y) {
				t.Fatalf("pixel (%d,%d) changed by a rejected apply", x, y)
			}
		}
	}
}

func TestApplyRejectsDegenerateRegions(t *testing.T) {
	src := texturedImage(40, 40, 4)
	canvas := NewCanvas(src)

	if err := canvas.Apply(types.BoundingBox{XMin: 100, YMin: 100, XMax: 120, YMax: 120}, types.NewFloatImage(20, 20)); !errors.Is(err, types.ErrMalformedRegion) {
		t.Errorf("out-of-bounds region: got %v", err)
	}
	if err := canvas.Apply(types.BoundingBox{XMin: 5, YMin: 5, XMax: 5, YMax: 25}, types.NewFloatImage(0, 20)); !errors.Is(err, types.ErrMalformedRegion) {
		t.Errorf("zero-width region: got %v", err)
	}
	if err := canvas.Apply(types.BoundingBox{XMin: 0, YMin: 0, XMax: 20, YMax: 20}, nil); !errors.Is(err, types.ErrMalformedRegion) {
		t.Errorf("nil crop: got %v", err)
	}
}

func TestApplyOverlappingRegions(t *testing.T) {
	src := texturedImage(100, 60, 5)
	first := types.BoundingBox{XMin: 10, YMin: 10, XMax: 50, YMax: 50}
	second := types.BoundingBox{XMin: 40, YMin: 10, XMax: 80, YMax: 50}

	canvas := NewCanvas(src)
	if err := canvas.Apply(first, invertedCrop(src, first)); err != nil {
		t.Fatal(err)
	}
	// The second crop blends over the already-perturbed overlap without error.
	if err := canvas.Apply(second, invertedCrop(src, second)); err != nil {
		t.Fatal(err)
	}

	out := canvas.Image()
	for y := 0; y < 60; y++ {
		for x := 0; x < 100; x++ {
			inside := (x >= 10 && x < 50 || x >= 40 && x < 80) && y >= 10 && y < 50
			if !inside && out.NRGBAAt(x, y) != src.NRGBAAt(x, y) {
				t.Fatalf("pixel (%d,%d) outside both regions changed", x, y)
			}
		}
	}
}

func TestFeatherWidth(t *testing.T) {
	tests := []struct {
		w, h, want int
	}{
		{200, 160, 20}, // minSide/8
		{80, 100, 10},
		{40, 40, MinFeather},  // floor kicks in
		{16, 240, MinFeather}, // short side governs
	}
	for _, tt := range tests {
		if got := featherWidth(tt.w, tt.h); got != tt.want {
			t.Errorf("featherWidth(%d,%d) = %d, want %d", tt.w, tt.h, got, tt.want)
		}
	}
}

func TestMaskAt(t *testing.T) {
	const w, h, feather = 50, 50, 5

	// Exactly zero on every border pixel.
	for i := 0; i < w; i++ {
		if m := maskAt(i, 0, w, h, feather); m != 0 {
			t.Fatalf("top border mask at x=%d is %v", i, m)
		}
		if m := maskAt(0, i, w, h, feather); m != 0 {
			t.Fatalf("left border mask at y=%d is %v", i, m)
		}
	}

	// Full weight once feather pixels inside.
	if m := maskAt(feather, feather, w, h, feather); m != 1 {
		t.Errorf("mask at feather depth = %v, want 1", m)
	}
	if m := maskAt(w/2, h/2, w, h, feather); m != 1 {
		t.Errorf("mask at center = %v, want 1", m)
	}

	// Monotone ramp in between.
	prev := -1.0
	for d := 0; d <= feather; d++ {
		m := maskAt(d, h/2, w, h, feather)
		if m < prev {
			t.Fatalf("mask not monotone at depth %d", d)
		}
		prev = m
	}
}
