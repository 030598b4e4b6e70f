package synth

import (
	"math"
	"math/rand"

	"github.com/ivxni/VOiD/pkg/types"
)

// smoothedUnitNoise draws per-channel Gaussian noise, low-passes it with a
// separable Gaussian (sigma scaled to the crop size) and normalizes the
// result to unit RMS, so per-element step magnitudes stay on the epsilon
// scale regardless of crop size. Face feature extractors respond most to
// low and mid spatial frequencies, so smoothed probes estimate useful
// ascent directions with far fewer queries than raw white noise.
//
// imaging's blur operates on 8-bit images and would destroy the sign and
// scale of the probe, hence the float-plane filter here.
func smoothedUnitNoise(rng *rand.Rand, w, h int, sigma float64) *types.FloatImage {
	noise := types.NewFloatImage(w, h)
	for i := range noise.Pix {
		noise.Pix[i] = rng.NormFloat64()
	}
	gaussianSmooth(noise, sigma)
	unitNormalize(noise)
	return noise
}

// gaussianSmooth applies a separable Gaussian filter in place
func gaussianSmooth(f *types.FloatImage, sigma float64) {
	if sigma <= 0 {
		return
	}
	kernel := gaussianKernel(sigma)
	radius := len(kernel) / 2

	tmp := make([]float64, len(f.Pix))

	// Horizontal pass
	for y := 0; y < f.H; y++ {
		for x := 0; x < f.W; x++ {
			for c := 0; c < 3; c++ {
				var sum, wsum float64
				for k := -radius; k <= radius; k++ {
					xx := x + k
					if xx < 0 || xx >= f.W {
						continue
					}
					kw := kernel[k+radius]
					sum += kw * f.Pix[(y*f.W+xx)*3+c]
					wsum += kw
				}
				tmp[(y*f.W+x)*3+c] = sum / wsum
			}
		}
	}

	// Vertical pass
	for y := 0; y < f.H; y++ {
		for x := 0; x < f.W; x++ {
			for c := 0; c < 3; c++ {
				var sum, wsum float64
				for k := -radius; k <= radius; k++ {
					yy := y + k
					if yy < 0 || yy >= f.H {
						continue
					}
					kw := kernel[k+radius]
					sum += kw * tmp[(yy*f.W+x)*3+c]
					wsum += kw
				}
				f.Pix[(y*f.W+x)*3+c] = sum / wsum
			}
		}
	}
}

// gaussianKernel builds a normalized 1-D kernel with radius 3*sigma
func gaussianKernel(sigma float64) []float64 {
	radius := int(math.Ceil(3 * sigma))
	if radius < 1 {
		radius = 1
	}
	kernel := make([]float64, 2*radius+1)
	var sum float64
	for i := -radius; i <= radius; i++ {
		v := math.Exp(-float64(i*i) / (2 * sigma * sigma))
		kernel[i+radius] = v
		sum += v
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

// unitNormalize scales the plane to unit RMS in place
func unitNormalize(f *types.FloatImage) {
	var sum float64
	for _, v := range f.Pix {
		sum += v * v
	}
	if sum == 0 {
		return
	}
	rms := math.Sqrt(sum / float64(len(f.Pix)))
	for i := range f.Pix {
		f.Pix[i] /= rms
	}
}
