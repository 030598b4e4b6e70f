// Package synth computes bounded adversarial perturbations for face crops.
//
// The embedding model is only available as a black-box callable (see
// pkg/embed), so the optimization is a projected ascent with query-based
// gradient estimation: each iteration probes the model at two antithetic
// points along a smoothed noise direction, steps toward the side that
// increases embedding distance from the baseline identity, and projects the
// accumulated perturbation back into the L∞ epsilon-ball of the strength
// profile. When a probe query fails, the iteration falls back to plain
// structured-noise accumulation so a flaky model never stalls the loop.
package synth

import (
	"context"
	"fmt"
	"hash/fnv"
	"image"
	"math"
	"math/rand"

	"github.com/ivxni/VOiD/pkg/embed"
	"github.com/ivxni/VOiD/pkg/types"
)

// Embedder is the black-box identity model the synthesizer queries
type Embedder interface {
	Embed(crop image.Image) (embed.Vector, error)
}

// Config holds configuration for the synthesizer
type Config struct {
	// Seed makes runs reproducible; the per-crop stream is derived from it
	Seed int64
	// ProbeRatio sets the finite-difference probe magnitude as a fraction
	// of the profile epsilon
	ProbeRatio float64
	// SmoothDivisor scales the noise low-pass: sigma = minSide/SmoothDivisor
	SmoothDivisor float64
}

// DefaultConfig returns the default synthesizer configuration
func DefaultConfig() Config {
	return Config{
		Seed:          1,
		ProbeRatio:    0.5,
		SmoothDivisor: 32,
	}
}

// Synthesizer runs the perturbation loop. Safe for concurrent use: each
// Synthesize call derives its own RNG stream from the crop content.
type Synthesizer struct {
	embedder Embedder
	config   Config
}

// New creates a Synthesizer with default configuration
func New(embedder Embedder) *Synthesizer {
	return NewWithConfig(embedder, DefaultConfig())
}

// NewWithConfig creates a Synthesizer
func NewWithConfig(embedder Embedder, config Config) *Synthesizer {
	if config.ProbeRatio <= 0 {
		config.ProbeRatio = 0.5
	}
	if config.SmoothDivisor <= 0 {
		config.SmoothDivisor = 32
	}
	return &Synthesizer{embedder: embedder, config: config}
}

// Result is the outcome of one synthesis run
type Result struct {
	// Crop is the perturbed face crop, still in float space; quantization
	// happens at composite time.
	Crop *types.FloatImage
	// Distance is the achieved embedding distance from the baseline
	Distance float64
	// Iterations actually spent (early stop can end the loop before the
	// profile ceiling)
	Iterations int
	// TargetReached reports whether Distance met the profile target; a
	// false value means "attempted but not confidently cloaked"
	TargetReached bool
}

// Synthesize computes a bounded perturbation of crop that drives its
// embedding away from baseline, honoring the profile budget. The returned
// crop always satisfies |perturbed - original| <= profile.Epsilon per pixel.
// Cancellation via ctx returns the context error with no partial result.
func (s *Synthesizer) Synthesize(ctx context.Context, crop *types.FloatImage, baseline embed.Vector, profile Profile) (*Result, error) {
	if crop == nil || crop.W == 0 || crop.H == 0 {
		return nil, fmt.Errorf("empty crop")
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}

	eps := profile.Epsilon
	steps := profile.Steps
	stepSize := eps * profile.StepFactor / float64(steps)
	probeSigma := eps * s.config.ProbeRatio

	minSide := crop.W
	if crop.H < minSide {
		minSide = crop.H
	}
	smoothSigma := math.Max(1.0, float64(minSide)/s.config.SmoothDivisor)

	rng := rand.New(rand.NewSource(s.config.Seed ^ cropSeed(crop)))

	delta := types.NewFloatImage(crop.W, crop.H)
	lastScore := 0.0
	measured := false
	iterations := 0

	for it := 0; it < steps; it++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		probe := smoothedUnitNoise(rng, crop.W, crop.H, smoothSigma)

		dPlus, errPlus := s.score(crop, delta, probe, probeSigma, baseline)
		dMinus, errMinus := s.score(crop, delta, probe, -probeSigma, baseline)

		if errPlus != nil || errMinus != nil {
			// Probe broke the crop for the model; take a plain structured
			// noise step instead of losing the iteration.
			axpy(delta, stepSize, probe)
			clampAbs(delta, eps)
			iterations = it + 1
			continue
		}

		dir := 1.0
		if dPlus < dMinus {
			dir = -1.0
		}
		axpy(delta, stepSize*dir, probe)
		clampAbs(delta, eps)
		iterations = it + 1

		proxy := math.Max(dPlus, dMinus)
		if proxy > lastScore {
			lastScore = proxy
		}

		// Early stop: confirm with a real measurement once the probes
		// suggest the target is reached, to avoid over-perturbing.
		if proxy >= profile.TargetDistance {
			if d, err := s.score(crop, delta, nil, 0, baseline); err == nil {
				lastScore = d
				measured = true
				if d >= profile.TargetDistance {
					break
				}
			}
		}
	}

	if !measured {
		if d, err := s.score(crop, delta, nil, 0, baseline); err == nil {
			lastScore = d
		}
		// On failure keep the best probe score as the reported distance.
	}

	perturbed := crop.Clone()
	axpy(perturbed, 1.0, delta)
	perturbed.Clamp01()

	return &Result{
		Crop:          perturbed,
		Distance:      lastScore,
		Iterations:    iterations,
		TargetReached: lastScore >= profile.TargetDistance,
	}, nil
}

// score evaluates the embedding distance of crop + delta + scale*probe.
// A nil probe scores the current perturbation itself.
func (s *Synthesizer) score(crop, delta, probe *types.FloatImage, scale float64, baseline embed.Vector) (float64, error) {
	cand := crop.Clone()
	axpy(cand, 1.0, delta)
	if probe != nil {
		axpy(cand, scale, probe)
	}
	cand.Clamp01()

	v, err := s.embedder.Embed(cand.ToNRGBA())
	if err != nil {
		return 0, err
	}
	return embed.Distance(baseline, v), nil
}

// axpy adds scale*src to dst element-wise
func axpy(dst *types.FloatImage, scale float64, src *types.FloatImage) {
	for i := range dst.Pix {
		dst.Pix[i] += scale * src.Pix[i]
	}
}

// clampAbs projects every element into [-limit, limit]
func clampAbs(f *types.FloatImage, limit float64) {
	for i, v := range f.Pix {
		if v > limit {
			f.Pix[i] = limit
		} else if v < -limit {
			f.Pix[i] = -limit
		}
	}
}

// cropSeed derives a stable per-crop seed so concurrent faces get
// independent but reproducible noise streams.
func cropSeed(crop *types.FloatImage) int64 {
	h := fnv.New64a()
	var buf [8]byte
	step := len(crop.Pix)/256 + 1
	for i := 0; i < len(crop.Pix); i += step {
		bits := math.Float64bits(crop.Pix[i])
		for b := 0; b < 8; b++ {
			buf[b] = byte(bits >> (8 * b))
		}
		h.Write(buf[:])
	}
	return int64(h.Sum64())
}
