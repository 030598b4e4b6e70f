package embed

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/Kagami/go-face"
	"github.com/disintegration/imaging"

	"github.com/ivxni/VOiD/pkg/types"
)

// ExtractorConfig holds configuration for the dlib-backed extractor
type ExtractorConfig struct {
	// ModelsDir contains the dlib model files (shape predictor + resnet
	// descriptor network); these are external pretrained artifacts.
	ModelsDir string
	// InputSize is the square edge the crop is resized to before inference
	InputSize int
	// JPEGQuality used when handing the crop to the model runtime
	JPEGQuality int
	// MinCropSide rejects crops smaller than this before querying the model
	MinCropSide int
	// MinVariance rejects near-uniform crops (luminance variance in [0,1]²)
	MinVariance float64
}

// DefaultExtractorConfig returns the default extractor configuration
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		InputSize:   150,
		JPEGQuality: 95,
		MinCropSide: 16,
		MinVariance: 1e-4,
	}
}

// Extractor produces 128-D identity vectors from face crops using dlib's
// face descriptor network. Inference is deterministic for a fixed input.
type Extractor struct {
	rec    *face.Recognizer
	config ExtractorConfig
}

// NewExtractor loads the dlib models from config.ModelsDir
func NewExtractor(config ExtractorConfig) (*Extractor, error) {
	if config.ModelsDir == "" {
		return nil, fmt.Errorf("%w: models directory is required", types.ErrModelUnavailable)
	}
	if config.InputSize <= 0 {
		config.InputSize = 150
	}
	if config.JPEGQuality <= 0 {
		config.JPEGQuality = 95
	}
	rec, err := face.NewRecognizer(config.ModelsDir)
	if err != nil {
		return nil, fmt.Errorf("%w: initialize face recognizer: %v", types.ErrModelUnavailable, err)
	}
	return &Extractor{rec: rec, config: config}, nil
}

// Close releases the model runtime
func (e *Extractor) Close() {
	if e.rec != nil {
		e.rec.Close()
	}
}

// Embed returns the unit-normalized identity vector for a face crop.
// Degenerate crops yield ErrLowQualityCrop without querying the model; a
// crop in which the model finds no face yields ErrNoFace.
func (e *Extractor) Embed(crop image.Image) (Vector, error) {
	if err := validateCrop(crop, e.config.MinCropSide, e.config.MinVariance); err != nil {
		return nil, err
	}

	// The runtime expects a consistent square input; center-crop fill keeps
	// the resize deterministic across aspect ratios.
	aligned := imaging.Fill(crop, e.config.InputSize, e.config.InputSize, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, aligned, &jpeg.Options{Quality: e.config.JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode crop: %w", err)
	}

	f, err := e.rec.RecognizeSingle(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%w: descriptor inference: %v", types.ErrModelUnavailable, err)
	}
	if f == nil {
		return nil, types.ErrNoFace
	}

	v := make(Vector, len(f.Descriptor))
	for i, x := range f.Descriptor {
		v[i] = float64(x)
	}
	return v.Normalize(), nil
}

// validateCrop rejects crops the embedding model cannot produce a meaningful
// identity for: too small, extreme aspect ratio, or near-uniform color.
func validateCrop(crop image.Image, minSide int, minVariance float64) error {
	if crop == nil {
		return types.ErrLowQualityCrop
	}
	bounds := crop.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w < minSide || h < minSide {
		return fmt.Errorf("%w: crop %dx%d below minimum side %d", types.ErrLowQualityCrop, w, h, minSide)
	}
	if w > 8*h || h > 8*w {
		return fmt.Errorf("%w: extreme aspect ratio %dx%d", types.ErrLowQualityCrop, w, h)
	}
	if v := luminanceVariance(crop); v < minVariance {
		return fmt.Errorf("%w: near-uniform crop (variance %.2g)", types.ErrLowQualityCrop, v)
	}
	return nil
}

// luminanceVariance samples the crop's gray values and returns their
// variance on the [0,1] scale.
func luminanceVariance(img image.Image) float64 {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	// Sample a grid of at most ~64x64 points; enough to spot uniformity.
	stepX, stepY := w/64, h/64
	if stepX < 1 {
		stepX = 1
	}
	if stepY < 1 {
		stepY = 1
	}

	var sum, sumSq float64
	var n int
	for y := bounds.Min.Y; y < bounds.Max.Y; y += stepY {
		for x := bounds.Min.X; x < bounds.Max.X; x += stepX {
			r, g, b, _ := img.At(x, y).RGBA()
			lum := (0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)) / 255.0
			sum += lum
			sumSq += lum * lum
			n++
		}
	}
	if n == 0 {
		return 0
	}
	mean := sum / float64(n)
	return sumSq/float64(n) - mean*mean
}
