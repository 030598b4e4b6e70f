package types

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundingBoxGeometry(t *testing.T) {
	b := BoundingBox{XMin: 10, YMin: 20, XMax: 110, YMax: 70}

	assert.Equal(t, 100, b.Width())
	assert.Equal(t, 50, b.Height())
	assert.Equal(t, 5000, b.Area())
	assert.Equal(t, 50, b.MinSide())
	assert.Equal(t, image.Point{X: 60, Y: 45}, b.Center())
	assert.Equal(t, image.Rect(10, 20, 110, 70), b.Rect())
}

func TestBoundingBoxClamp(t *testing.T) {
	bounds := image.Rect(0, 0, 100, 100)

	tests := []struct {
		name string
		box  BoundingBox
		want BoundingBox
	}{
		{
			name: "fully inside",
			box:  BoundingBox{XMin: 10, YMin: 10, XMax: 50, YMax: 50},
			want: BoundingBox{XMin: 10, YMin: 10, XMax: 50, YMax: 50},
		},
		{
			name: "overhangs top left",
			box:  BoundingBox{XMin: -20, YMin: -5, XMax: 30, YMax: 40},
			want: BoundingBox{XMin: 0, YMin: 0, XMax: 30, YMax: 40},
		},
		{
			name: "overhangs bottom right",
			box:  BoundingBox{XMin: 80, YMin: 90, XMax: 150, YMax: 160},
			want: BoundingBox{XMin: 80, YMin: 90, XMax: 100, YMax: 100},
		},
		{
			name: "fully outside",
			box:  BoundingBox{XMin: 200, YMin: 200, XMax: 300, YMax: 300},
			want: BoundingBox{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.box.Clamp(bounds))
		})
	}
}

func TestParseStrength(t *testing.T) {
	for _, valid := range []string{"subtle", "standard", "maximum"} {
		s, err := ParseStrength(valid)
		require.NoError(t, err)
		assert.Equal(t, Strength(valid), s)
	}

	for _, invalid := range []string{"", "SUBTLE", "extreme", "standard "} {
		_, err := ParseStrength(invalid)
		assert.Error(t, err, "strength %q should be rejected", invalid)
	}
}

func TestFaceStatusPerturbed(t *testing.T) {
	assert.True(t, StatusCloaked.Perturbed())
	assert.True(t, StatusIncomplete.Perturbed())

	for _, s := range []FaceStatus{
		StatusSkippedSmall,
		StatusSkippedLowQuality,
		StatusTimeout,
		StatusCompositeFailed,
		StatusFailed,
	} {
		assert.False(t, s.Perturbed(), "status %s must not count as perturbed", s)
	}
}

func TestProcessingTimeMs(t *testing.T) {
	r := &CloakResult{ProcessingTime: 1500e6} // 1.5s in nanoseconds
	assert.Equal(t, int64(1500), r.ProcessingTimeMs())
}
