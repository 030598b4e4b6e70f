// Package vision locates face regions in an image using a pigo cascade
// model. The cascade file is an external pretrained artifact loaded at
// construction; detection itself is a pure in-memory operation.
package vision

import (
	"fmt"
	"image"
	"os"
	"sort"

	"github.com/disintegration/imaging"
	pigo "github.com/esimov/pigo/core"

	"github.com/ivxni/VOiD/pkg/types"
)

// Detector runs cascade face detection over full images
type Detector struct {
	classifier *pigo.Pigo
	config     DetectionConfig
}

// DetectionConfig holds configuration for face localization
type DetectionConfig struct {
	// MinConfidence is the minimum cascade quality score (pigo Q units)
	MinConfidence float64
	// MinDetectSize is the smallest face the cascade scans for, in pixels.
	// Smaller regions are numerically unstable to attack and visually
	// meaningless, so they are never reported.
	MinDetectSize int
	// MaxDetectSize caps the scan window; 0 means the image's short side
	MaxDetectSize int
	// ShiftFactor is the detection window shift per step (fraction)
	ShiftFactor float64
	// ScaleFactor is the scale increase between detection sizes
	ScaleFactor float64
	// IoUThreshold clusters overlapping detections of the same face
	IoUThreshold float64
	// PaddingRatio expands each box on every side to include the full head,
	// giving the synthesizer context beyond the tight face box
	PaddingRatio float64
	// TryRotations retries detection at 90/270/180 degrees when the upright
	// pass finds nothing, catching photos with missing EXIF orientation
	TryRotations bool
}

// DefaultConfig returns the default detection configuration
func DefaultConfig() DetectionConfig {
	return DetectionConfig{
		MinConfidence: 10.0,
		MinDetectSize: 20,
		MaxDetectSize: 0,
		ShiftFactor:   0.1,
		ScaleFactor:   1.1,
		IoUThreshold:  0.35,
		PaddingRatio:  0.25,
		TryRotations:  true,
	}
}

// New creates a Detector from raw cascade bytes with default configuration
func New(cascade []byte) (*Detector, error) {
	return NewWithConfig(cascade, DefaultConfig())
}

// NewWithConfig creates a Detector from raw cascade bytes
func NewWithConfig(cascade []byte, config DetectionConfig) (*Detector, error) {
	if len(cascade) == 0 {
		return nil, fmt.Errorf("%w: empty cascade data", types.ErrModelUnavailable)
	}
	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("%w: unpack cascade: %v", types.ErrModelUnavailable, err)
	}
	return &Detector{classifier: classifier, config: config}, nil
}

// NewFromFile loads the cascade model from disk
func NewFromFile(path string, config DetectionConfig) (*Detector, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read cascade file: %v", types.ErrModelUnavailable, err)
	}
	return NewWithConfig(data, config)
}

// Detect locates faces in an image and returns regions ordered by descending
// confidence. An empty result is valid: it means no face was found.
//
// When the upright pass finds nothing and TryRotations is set, detection is
// retried with the image rotated 90, 270 and 180 degrees clockwise and the
// boxes are mapped back to upright coordinates.
func (d *Detector) Detect(img image.Image) ([]types.FaceRegion, error) {
	if img == nil {
		return nil, fmt.Errorf("nil image")
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("invalid image dimensions %dx%d", w, h)
	}

	angles := []int{0}
	if d.config.TryRotations {
		angles = []int{0, 90, 270, 180}
	}

	for _, angle := range angles {
		regions := d.detectAt(img, angle, w, h)
		if len(regions) > 0 {
			sort.SliceStable(regions, func(i, j int) bool {
				return regions[i].Confidence > regions[j].Confidence
			})
			return regions, nil
		}
	}
	return nil, nil
}

// detectAt runs the cascade on the image rotated clockwise by angle and maps
// surviving boxes back to upright coordinates.
func (d *Detector) detectAt(img image.Image, angle, origW, origH int) []types.FaceRegion {
	rotated := rotateCW(img, angle)

	src := pigo.ImgToNRGBA(rotated)
	pixels := pigo.RgbToGrayscale(src)
	cols, rows := src.Bounds().Max.X, src.Bounds().Max.Y

	maxSize := d.config.MaxDetectSize
	if maxSize <= 0 {
		maxSize = cols
		if rows < cols {
			maxSize = rows
		}
	}

	params := pigo.CascadeParams{
		MinSize:     d.config.MinDetectSize,
		MaxSize:     maxSize,
		ShiftFactor: d.config.ShiftFactor,
		ScaleFactor: d.config.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pixels,
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := d.classifier.RunCascade(params, 0.0)
	dets = d.classifier.ClusterDetections(dets, d.config.IoUThreshold)

	imgBounds := image.Rect(0, 0, origW, origH)
	var regions []types.FaceRegion
	for _, det := range dets {
		if float64(det.Q) < d.config.MinConfidence {
			continue
		}
		half := det.Scale / 2
		box := types.BoundingBox{
			XMin: det.Col - half,
			YMin: det.Row - half,
			XMax: det.Col + half,
			YMax: det.Row + half,
		}
		box = mapBoxFromRotation(box, angle, origW, origH)
		box = padBox(box, d.config.PaddingRatio).Clamp(imgBounds)
		if box.Width() <= 0 || box.Height() <= 0 {
			continue
		}
		regions = append(regions, types.FaceRegion{
			Box:        box,
			Confidence: float64(det.Q),
			Rotation:   angle,
		})
	}
	return regions
}

// rotateCW rotates an image clockwise by 0, 90, 180 or 270 degrees
func rotateCW(img image.Image, angle int) image.Image {
	switch angle {
	case 90:
		return imaging.Rotate270(img)
	case 180:
		return imaging.Rotate180(img)
	case 270:
		return imaging.Rotate90(img)
	}
	return img
}

// mapBoxFromRotation maps a box detected in an image rotated clockwise by
// angle back to upright coordinates. origW and origH are the upright
// dimensions.
func mapBoxFromRotation(b types.BoundingBox, angle, origW, origH int) types.BoundingBox {
	switch angle {
	case 90:
		return types.BoundingBox{
			XMin: b.YMin,
			YMin: origH - b.XMax,
			XMax: b.YMax,
			YMax: origH - b.XMin,
		}
	case 180:
		return types.BoundingBox{
			XMin: origW - b.XMax,
			YMin: origH - b.YMax,
			XMax: origW - b.XMin,
			YMax: origH - b.YMin,
		}
	case 270:
		return types.BoundingBox{
			XMin: origW - b.YMax,
			YMin: b.XMin,
			XMax: origW - b.YMin,
			YMax: b.XMax,
		}
	}
	return b
}

// padBox expands a box by ratio of its own size on every side
func padBox(b types.BoundingBox, ratio float64) types.BoundingBox {
	padX := int(float64(b.Width()) * ratio)
	padY := int(float64(b.Height()) * ratio)
	return types.BoundingBox{
		XMin: b.XMin - padX,
		YMin: b.YMin - padY,
		XMax: b.XMax + padX,
		YMax: b.YMax + padY,
	}
}
