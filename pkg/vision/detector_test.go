package vision

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/ivxni/VOiD/pkg/types"
)

// markedImage paints a white rectangle on black so tests can recover its
// bounding box after geometric transforms.
func markedImage(w, h int, mark types.BoundingBox) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := mark.YMin; y < mark.YMax; y++ {
		for x := mark.XMin; x < mark.XMax; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	return img
}

// boundsOfWhite scans for the bounding box of non-black pixels
func boundsOfWhite(img image.Image) types.BoundingBox {
	b := img.Bounds()
	box := types.BoundingBox{XMin: b.Max.X, YMin: b.Max.Y, XMax: 0, YMax: 0}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, _, _, _ := img.At(x, y).RGBA()
			if r > 0 {
				if x < box.XMin {
					box.XMin = x
				}
				if y < box.YMin {
					box.YMin = y
				}
				if x+1 > box.XMax {
					box.XMax = x + 1
				}
				if y+1 > box.YMax {
					box.YMax = y + 1
				}
			}
		}
	}
	return box
}

// A box found in the rotated frame must map back to the region it came from
// in the upright frame, for every rotation the detector retries.
func TestMapBoxFromRotationRoundTrip(t *testing.T) {
	const w, h = 40, 30
	mark := types.BoundingBox{XMin: 5, YMin: 8, XMax: 17, YMax: 20}
	img := markedImage(w, h, mark)

	for _, angle := range []int{0, 90, 180, 270} {
		rotated := rotateCW(img, angle)
		found := boundsOfWhite(rotated)
		back := mapBoxFromRotation(found, angle, w, h)
		if back != mark {
			t.Errorf("angle %d: mapped box %+v, want %+v (found %+v in rotated frame)",
				angle, back, mark, found)
		}
	}
}

func TestRotateCWDimensions(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 40, 30))

	for _, tt := range []struct {
		angle, w, h int
	}{
		{0, 40, 30},
		{90, 30, 40},
		{180, 40, 30},
		{270, 30, 40},
	} {
		r := rotateCW(img, tt.angle).Bounds()
		if r.Dx() != tt.w || r.Dy() != tt.h {
			t.Errorf("angle %d: got %dx%d, want %dx%d", tt.angle, r.Dx(), r.Dy(), tt.w, tt.h)
		}
	}
}

func TestPadBox(t *testing.T) {
	b := types.BoundingBox{XMin: 100, YMin: 100, XMax: 200, YMax: 140}

	padded := padBox(b, 0.25)
	want := types.BoundingBox{XMin: 75, YMin: 90, XMax: 225, YMax: 150}
	if padded != want {
		t.Errorf("padBox = %+v, want %+v", padded, want)
	}

	if padBox(b, 0) != b {
		t.Error("zero ratio must not move the box")
	}
}

func TestPadBoxClampAtEdge(t *testing.T) {
	bounds := image.Rect(0, 0, 100, 100)
	b := types.BoundingBox{XMin: 0, YMin: 0, XMax: 40, YMax: 40}

	clamped := padBox(b, 0.25).Clamp(bounds)
	want := types.BoundingBox{XMin: 0, YMin: 0, XMax: 50, YMax: 50}
	if clamped != want {
		t.Errorf("edge pad = %+v, want %+v", clamped, want)
	}
}

func TestNewRejectsEmptyCascade(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, types.ErrModelUnavailable) {
		t.Errorf("empty cascade: got %v", err)
	}
	if _, err := NewFromFile("/nonexistent/facefinder", DefaultConfig()); !errors.Is(err, types.ErrModelUnavailable) {
		t.Errorf("missing cascade file: got %v", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MinConfidence <= 0 {
		t.Error("min confidence must be positive")
	}
	if cfg.ScaleFactor <= 1.0 {
		t.Error("scale factor must grow the scan window")
	}
	if cfg.IoUThreshold <= 0 || cfg.IoUThreshold >= 1 {
		t.Error("IoU threshold out of range")
	}
	if !cfg.TryRotations {
		t.Error("rotation fallback should be on by default")
	}
}
