// Package voidcloak applies adversarial cloaking to faces in photos.
//
// This package perturbs detected face regions just enough to disrupt face
// recognition embedding models while staying invisible to people. The
// perturbation is bounded per pixel, confined to face regions, and tuned by
// a strength profile (subtle, standard, maximum).
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//		"log"
//		"os"
//
//		voidcloak "github.com/ivxni/VOiD"
//		"github.com/ivxni/VOiD/internal/config"
//		"github.com/ivxni/VOiD/pkg/types"
//	)
//
//	func main() {
//		cloaker, err := voidcloak.New(config.Default())
//		if err != nil {
//			log.Fatal(err)
//		}
//		defer cloaker.Close()
//
//		data, err := os.ReadFile("photo.jpg")
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		result, cloaked, err := cloaker.CloakBytes(context.Background(), data, types.StrengthStandard)
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		if err := os.WriteFile("photo_cloaked.jpg", cloaked, 0644); err != nil {
//			log.Fatal(err)
//		}
//
//		fmt.Printf("Cloaked %d/%d faces in %dms\n",
//			result.FacesCloaked, result.FacesDetected, result.ProcessingTimeMs())
//	}
//
// The package consists of five main components:
//
// 1. Vision (pkg/vision): Face localization with a pixel-intensity cascade
// 2. Embed (pkg/embed): Face identity embeddings used as the attack target
// 3. Synth (pkg/synth): Bounded adversarial perturbation synthesis
// 4. Composite (pkg/composite): Feathered blending of perturbed regions
// 5. Pipeline (pkg/pipeline): Per-face orchestration and result aggregation
//
// Features:
//
//   - Per-pixel bounded perturbation that preserves image appearance
//   - Three strength profiles trading visibility against disruption
//   - Concurrent multi-face processing with per-face status reporting
//   - EXIF orientation handling and jpg/png/webp output
//   - Optional diagnostic visualization of the applied perturbation
package voidcloak

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ivxni/VOiD/internal/config"
	"github.com/ivxni/VOiD/pkg/analysis"
	"github.com/ivxni/VOiD/pkg/embed"
	"github.com/ivxni/VOiD/pkg/imageio"
	"github.com/ivxni/VOiD/pkg/pipeline"
	"github.com/ivxni/VOiD/pkg/synth"
	"github.com/ivxni/VOiD/pkg/types"
	"github.com/ivxni/VOiD/pkg/vision"
)

// Cloaker is the top-level entry point. Safe for concurrent use once
// constructed; Close releases the embedding model.
type Cloaker struct {
	pipeline *pipeline.Pipeline
	config   *config.Config
	closer   func()
}

// New builds a Cloaker from configuration, loading the detection cascade and
// the embedding models from disk.
func New(cfg *config.Config) (*Cloaker, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	detCfg := vision.DefaultConfig()
	detCfg.MinConfidence = cfg.Detector.MinConfidence
	detCfg.MinDetectSize = cfg.Detector.MinDetectSize
	detCfg.PaddingRatio = cfg.Detector.PaddingRatio
	detCfg.TryRotations = cfg.Detector.TryRotations
	detector, err := vision.NewFromFile(cfg.Detector.CascadeFile, detCfg)
	if err != nil {
		return nil, err
	}

	extractorCfg := embed.DefaultExtractorConfig()
	extractorCfg.ModelsDir = cfg.Embedder.ModelsDir
	extractorCfg.InputSize = cfg.Embedder.InputSize
	extractorCfg.JPEGQuality = cfg.Embedder.JPEGQuality
	extractor, err := embed.NewExtractor(extractorCfg)
	if err != nil {
		return nil, err
	}

	c := newWithComponents(detector, extractor, cfg)
	c.closer = extractor.Close
	return c, nil
}

// NewWithComponents builds a Cloaker around caller-supplied detector and
// embedder implementations. Used for testing and for callers that bring
// their own models.
func NewWithComponents(detector pipeline.Detector, embedder pipeline.Embedder, cfg *config.Config) *Cloaker {
	if cfg == nil {
		cfg = config.Default()
	}
	return newWithComponents(detector, embedder, cfg)
}

func newWithComponents(detector pipeline.Detector, embedder pipeline.Embedder, cfg *config.Config) *Cloaker {
	pipeCfg := pipeline.DefaultConfig()
	pipeCfg.Workers = cfg.Pipeline.Workers
	pipeCfg.MinFaceSize = cfg.Pipeline.MinFaceSize
	pipeCfg.Synth = synth.Config{
		Seed:          cfg.Synthesis.Seed,
		ProbeRatio:    cfg.Synthesis.ProbeRatio,
		SmoothDivisor: cfg.Synthesis.SmoothDivisor,
	}
	pipeCfg.Profiles = profileOverrides(cfg.Synthesis.Profiles)

	return &Cloaker{
		pipeline: pipeline.NewWithConfig(detector, embedder, pipeCfg),
		config:   cfg,
	}
}

// Cloak runs the pipeline on a decoded image
func (c *Cloaker) Cloak(ctx context.Context, img image.Image, strength types.Strength) (*types.CloakResult, error) {
	return c.pipeline.Run(ctx, img, strength)
}

// CloakBytes decodes an image (correcting EXIF orientation), cloaks it and
// re-encodes it in the configured output format.
func (c *Cloaker) CloakBytes(ctx context.Context, data []byte, strength types.Strength) (*types.CloakResult, []byte, error) {
	img, err := imageio.Decode(data)
	if err != nil {
		return nil, nil, err
	}

	result, err := c.pipeline.Run(ctx, img, strength)
	if err != nil {
		return nil, nil, err
	}

	encoded, err := imageio.Encode(result.Image, imageio.EncodeOptions{
		Format:  c.config.Output.Format,
		Quality: c.config.Output.Quality,
	})
	if err != nil {
		return nil, nil, err
	}
	return result, encoded, nil
}

// Analyze renders the diagnostic visualization for a finished cloaking run
// as JPEG bytes. original must be the same decoded image the result came
// from.
func (c *Cloaker) Analyze(original image.Image, result *types.CloakResult) ([]byte, error) {
	return analysis.RenderJPEG(original, result.Image, result.Faces)
}

// Close releases model resources. The Cloaker must not be used afterwards.
func (c *Cloaker) Close() {
	if c.closer != nil {
		c.closer()
	}
}

// profileOverrides converts config profile entries into synthesis profiles
func profileOverrides(overrides []config.ProfileOverride) map[types.Strength]synth.Profile {
	if len(overrides) == 0 {
		return nil
	}
	profiles := synth.DefaultProfiles()
	for _, o := range overrides {
		s := types.Strength(o.Strength)
		profiles[s] = synth.Profile{
			Strength:       s,
			Epsilon:        o.Epsilon,
			Steps:          o.Steps,
			StepFactor:     o.StepFactor,
			TargetDistance: o.TargetDistance,
			TimeBudget:     time.Duration(o.TimeBudgetSec * float64(time.Second)),
		}
	}
	return profiles
}

// SetLogLevel adjusts the verbosity of the package's standard logger
func SetLogLevel(level logrus.Level) {
	logrus.SetLevel(level)
}
