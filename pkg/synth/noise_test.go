package synth

import (
	"math"
	"math/rand"
	"testing"

	"github.com/ivxni/VOiD/pkg/types"
)

func TestGaussianKernelNormalized(t *testing.T) {
	for _, sigma := range []float64{0.5, 1.0, 2.5} {
		kernel := gaussianKernel(sigma)
		if len(kernel)%2 != 1 {
			t.Fatalf("sigma %v: kernel length %d is not odd", sigma, len(kernel))
		}
		var sum float64
		for _, v := range kernel {
			sum += v
		}
		if math.Abs(sum-1.0) > 1e-9 {
			t.Errorf("sigma %v: kernel sums to %v, want 1", sigma, sum)
		}
		// Peak at the center.
		center := len(kernel) / 2
		for i, v := range kernel {
			if v > kernel[center] {
				t.Errorf("sigma %v: kernel[%d]=%v exceeds center %v", sigma, i, v, kernel[center])
			}
		}
	}
}

func TestSmoothedUnitNoiseRMS(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	noise := smoothedUnitNoise(rng, 32, 32, 1.5)

	var sum float64
	for _, v := range noise.Pix {
		sum += v * v
	}
	rms := math.Sqrt(sum / float64(len(noise.Pix)))
	if math.Abs(rms-1.0) > 1e-9 {
		t.Errorf("noise RMS = %v, want 1", rms)
	}
}

func TestSmoothedUnitNoiseIsSmooth(t *testing.T) {
	meanGradient := func(f *types.FloatImage) float64 {
		var sum float64
		var n int
		for y := 0; y < f.H; y++ {
			for x := 1; x < f.W; x++ {
				r1, _, _ := f.At(x, y)
				r0, _, _ := f.At(x-1, y)
				sum += math.Abs(r1 - r0)
				n++
			}
		}
		return sum / float64(n)
	}

	rng := rand.New(rand.NewSource(42))
	raw := smoothedUnitNoise(rng, 64, 64, 0) // sigma 0 skips the low-pass
	smooth := smoothedUnitNoise(rng, 64, 64, 3.0)

	if g, r := meanGradient(smooth), meanGradient(raw); g >= r {
		t.Errorf("smoothed gradient %v not below raw gradient %v", g, r)
	}
}

func TestGaussianSmoothPreservesConstant(t *testing.T) {
	f := types.NewFloatImage(16, 16)
	for i := range f.Pix {
		f.Pix[i] = 0.7
	}
	gaussianSmooth(f, 2.0)
	for i, v := range f.Pix {
		if math.Abs(v-0.7) > 1e-9 {
			t.Fatalf("constant plane disturbed at %d: %v", i, v)
		}
	}
}
