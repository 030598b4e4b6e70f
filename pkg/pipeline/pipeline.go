// Package pipeline sequences the cloaking stages for one image: locate
// faces, compute a bounded adversarial perturbation per face, composite the
// perturbed crops back, and aggregate per-face outcomes into a CloakResult.
//
// Faces are independent units of work and run on a bounded worker pool; a
// failure on one face never aborts the others. Only a detector that cannot
// run at all aborts the whole request.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"
	"time"

	"github.com/corona10/goimagehash"
	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ivxni/VOiD/pkg/composite"
	"github.com/ivxni/VOiD/pkg/embed"
	"github.com/ivxni/VOiD/pkg/synth"
	"github.com/ivxni/VOiD/pkg/types"
)

// Detector locates face regions in an image (black-box model callable)
type Detector interface {
	Detect(img image.Image) ([]types.FaceRegion, error)
}

// Embedder produces identity vectors from face crops (black-box model
// callable)
type Embedder interface {
	Embed(crop image.Image) (embed.Vector, error)
}

// Config holds pipeline configuration
type Config struct {
	// Workers bounds the per-face parallelism; 0 means NumCPU. When the
	// underlying model runtime serializes on a shared accelerator the pool
	// simply queues on it.
	Workers int
	// MinFaceSize skips faces whose short side is below this many pixels;
	// they are reported as detected but not cloaked
	MinFaceSize int
	// Profiles overrides the built-in strength presets when non-nil
	Profiles map[types.Strength]synth.Profile
	// Synth configures the perturbation loop
	Synth synth.Config
	// Logger receives pipeline progress; nil uses the standard logger
	Logger *logrus.Logger
}

// DefaultConfig returns the default pipeline configuration
func DefaultConfig() Config {
	return Config{
		Workers:     runtime.NumCPU(),
		MinFaceSize: 64,
		Synth:       synth.DefaultConfig(),
	}
}

// Pipeline orchestrates the cloaking stages
type Pipeline struct {
	detector    Detector
	embedder    Embedder
	synthesizer *synth.Synthesizer
	config      Config
	log         *logrus.Entry
}

// New creates a Pipeline with default configuration
func New(detector Detector, embedder Embedder) *Pipeline {
	return NewWithConfig(detector, embedder, DefaultConfig())
}

// NewWithConfig creates a Pipeline
func NewWithConfig(detector Detector, embedder Embedder, config Config) *Pipeline {
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	if config.MinFaceSize <= 0 {
		config.MinFaceSize = 64
	}
	logger := config.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Pipeline{
		detector:    detector,
		embedder:    embedder,
		synthesizer: synth.NewWithConfig(embedder, config.Synth),
		config:      config,
		log:         logger.WithField("component", "cloak"),
	}
}

// faceOutcome carries a perturbed crop from the parallel phase to the
// sequential composite phase.
type faceOutcome struct {
	crop *types.FloatImage
}

// Run executes the full cloaking pipeline for one image.
//
// The output image always has the input's dimensions, and pixels outside
// detected face regions are bit-identical to the input. Zero detected faces
// is a successful result. Per-face failures degrade that face's status; the
// only hard failure is a detector that cannot run (ErrModelUnavailable).
func (p *Pipeline) Run(ctx context.Context, img image.Image, strength types.Strength) (*types.CloakResult, error) {
	start := time.Now()

	profile, err := p.profileFor(strength)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	regions, err := p.detector.Detect(img)
	if err != nil {
		if errors.Is(err, types.ErrModelUnavailable) {
			return nil, fmt.Errorf("face detection: %w", err)
		}
		return nil, fmt.Errorf("%w: face detection: %v", types.ErrModelUnavailable, err)
	}

	if len(regions) == 0 {
		p.log.WithFields(logrus.Fields{"width": width, "height": height}).
			Info("no faces detected, returning original image")
		return &types.CloakResult{
			Image:          img,
			Strength:       strength,
			ProcessingTime: time.Since(start),
			Width:          width,
			Height:         height,
		}, nil
	}

	p.log.WithFields(logrus.Fields{
		"faces":    len(regions),
		"width":    width,
		"height":   height,
		"strength": strength,
	}).Info("detected faces")

	reports := make([]types.FaceReport, len(regions))
	outcomes := make([]*faceOutcome, len(regions))
	for i, region := range regions {
		reports[i] = types.FaceReport{
			Index:           i,
			Box:             region.Box.Clamp(bounds),
			Confidence:      region.Confidence,
			PerceptualShift: -1,
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, profile.TimeBudget)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(p.config.Workers)

	for i := range regions {
		if reports[i].Box.MinSide() < p.config.MinFaceSize {
			reports[i].Status = types.StatusSkippedSmall
			reports[i].Reason = fmt.Sprintf("face %dx%d below minimum size %d",
				reports[i].Box.Width(), reports[i].Box.Height(), p.config.MinFaceSize)
			continue
		}
		i := i
		g.Go(func() error {
			outcomes[i] = p.processFace(gctx, img, &reports[i], profile)
			return nil
		})
	}
	// Workers never return errors; per-face outcomes live in reports.
	_ = g.Wait()

	// Composite sequentially in detection order so placement is
	// deterministic regardless of completion order.
	canvas := composite.NewCanvas(img)
	for i, outcome := range outcomes {
		if outcome == nil {
			continue
		}
		if err := canvas.Apply(reports[i].Box, outcome.crop); err != nil {
			p.log.WithField("face", i).WithError(err).Warn("compositing failed, face left unperturbed")
			reports[i].Status = types.StatusCompositeFailed
			reports[i].Reason = err.Error()
			reports[i].Distance = 0
		}
	}

	result := p.aggregate(reports, strength, canvas.Image(), width, height, start)

	p.log.WithFields(logrus.Fields{
		"faces_detected": result.FacesDetected,
		"faces_cloaked":  result.FacesCloaked,
		"avg_distance":   result.AvgDistance,
		"elapsed_ms":     result.ProcessingTimeMs(),
	}).Info("cloaking complete")

	return result, nil
}

// processFace runs baseline embedding and synthesis for one face, filling
// the report in place. Returns the perturbed crop, or nil when the face
// degraded to a non-perturbed status.
func (p *Pipeline) processFace(ctx context.Context, img image.Image, report *types.FaceReport, profile synth.Profile) *faceOutcome {
	crop := imaging.Crop(img, report.Box.Rect())

	baseline, err := p.embedder.Embed(crop)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrLowQualityCrop), errors.Is(err, types.ErrNoFace):
			report.Status = types.StatusSkippedLowQuality
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			report.Status = types.StatusTimeout
		default:
			report.Status = types.StatusFailed
		}
		report.Reason = err.Error()
		p.log.WithField("face", report.Index).WithError(err).Debug("baseline embedding unavailable")
		return nil
	}

	res, err := p.synthesizer.Synthesize(ctx, types.FloatImageFrom(crop), baseline, profile)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			report.Status = types.StatusTimeout
			report.Reason = "time budget exhausted"
		} else {
			report.Status = types.StatusFailed
			report.Reason = err.Error()
		}
		p.log.WithField("face", report.Index).WithError(err).Debug("synthesis aborted")
		return nil
	}

	report.Distance = res.Distance
	report.Iterations = res.Iterations
	if res.TargetReached {
		report.Status = types.StatusCloaked
	} else {
		report.Status = types.StatusIncomplete
		report.Reason = fmt.Sprintf("distance %.3f below target %.3f", res.Distance, profile.TargetDistance)
	}
	report.PerceptualShift = perceptualShift(crop, res.Crop)

	p.log.WithFields(logrus.Fields{
		"face":       report.Index,
		"status":     report.Status,
		"distance":   res.Distance,
		"iterations": res.Iterations,
	}).Debug("face processed")

	return &faceOutcome{crop: res.Crop}
}

// aggregate folds per-face reports into the request-level result, keyed by
// original detection index.
func (p *Pipeline) aggregate(reports []types.FaceReport, strength types.Strength, img image.Image, width, height int, start time.Time) *types.CloakResult {
	result := &types.CloakResult{
		Image:         img,
		FacesDetected: len(reports),
		Faces:         reports,
		Strength:      strength,
		Width:         width,
		Height:        height,
	}

	var sum float64
	var perturbed int
	min := 1.0
	for _, r := range reports {
		if r.Status == types.StatusCloaked {
			result.FacesCloaked++
		}
		if r.Status.Perturbed() {
			perturbed++
			sum += r.Distance
			if r.Distance < min {
				min = r.Distance
			}
		}
	}
	if perturbed > 0 {
		result.AvgDistance = sum / float64(perturbed)
		result.MinDistance = min
	}

	result.ProcessingTime = time.Since(start)
	return result
}

// profileFor resolves the strength profile from config overrides or the
// built-in presets.
func (p *Pipeline) profileFor(strength types.Strength) (synth.Profile, error) {
	if p.config.Profiles != nil {
		if profile, ok := p.config.Profiles[strength]; ok {
			return profile, nil
		}
	}
	return synth.ProfileFor(strength)
}

// perceptualShift measures how far the perturbation moved the crop in
// perceptual-hash space; small values confirm the change stays invisible.
// Returns -1 when the hash cannot be computed.
func perceptualShift(original image.Image, perturbed *types.FloatImage) int {
	h1, err := goimagehash.PerceptionHash(original)
	if err != nil {
		return -1
	}
	h2, err := goimagehash.PerceptionHash(perturbed.ToNRGBA())
	if err != nil {
		return -1
	}
	d, err := h1.Distance(h2)
	if err != nil {
		return -1
	}
	return d
}
