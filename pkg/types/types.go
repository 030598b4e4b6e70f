package types

import (
	"fmt"
	"image"
	"time"
)

// BoundingBox represents a face bounding box in image pixel coordinates.
// XMax and YMax are exclusive.
type BoundingBox struct {
	XMin int `json:"x_min"`
	YMin int `json:"y_min"`
	XMax int `json:"x_max"`
	YMax int `json:"y_max"`
}

// Width returns the width of the bounding box
func (b BoundingBox) Width() int {
	return b.XMax - b.XMin
}

// Height returns the height of the bounding box
func (b BoundingBox) Height() int {
	return b.YMax - b.YMin
}

// Area returns the area of the bounding box
func (b BoundingBox) Area() int {
	return b.Width() * b.Height()
}

// Center returns the center point of the bounding box
func (b BoundingBox) Center() image.Point {
	return image.Point{X: b.XMin + b.Width()/2, Y: b.YMin + b.Height()/2}
}

// Rect converts the bounding box to an image.Rectangle
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.XMin, b.YMin, b.XMax, b.YMax)
}

// Clamp constrains the bounding box to the given image bounds
func (b BoundingBox) Clamp(bounds image.Rectangle) BoundingBox {
	r := b.Rect().Intersect(bounds)
	return BoundingBox{XMin: r.Min.X, YMin: r.Min.Y, XMax: r.Max.X, YMax: r.Max.Y}
}

// MinSide returns the shorter side of the bounding box
func (b BoundingBox) MinSide() int {
	if b.Width() < b.Height() {
		return b.Width()
	}
	return b.Height()
}

// FaceRegion is a detected face within an image. Regions are produced by the
// face localizer ordered by descending confidence and consumed by the
// embedding extractor and the perturbation synthesizer.
type FaceRegion struct {
	Box        BoundingBox   `json:"box"`
	Confidence float64       `json:"confidence"`
	Landmarks  []image.Point `json:"landmarks,omitempty"`
	// Rotation is the clockwise rotation (degrees) at which the face was
	// detected; non-zero when the rotation fallback fired.
	Rotation int `json:"rotation,omitempty"`
}

// Strength selects the cloaking strength profile
type Strength string

// Supported cloaking strength levels
const (
	StrengthSubtle   Strength = "subtle"
	StrengthStandard Strength = "standard"
	StrengthMaximum  Strength = "maximum"
)

// ParseStrength validates a strength string
func ParseStrength(s string) (Strength, error) {
	switch Strength(s) {
	case StrengthSubtle, StrengthStandard, StrengthMaximum:
		return Strength(s), nil
	}
	return "", fmt.Errorf("invalid strength %q (want subtle, standard or maximum)", s)
}

// FaceStatus describes the per-face outcome of a cloaking run
type FaceStatus string

// Per-face outcomes. Only StatusCloaked counts toward FacesCloaked; every
// other status means the face may still be recognizable.
const (
	// StatusCloaked: perturbed and the achieved embedding distance met the
	// profile target.
	StatusCloaked FaceStatus = "cloaked"
	// StatusIncomplete: perturbed, but the iteration budget ran out below the
	// target distance. The perturbation is still applied.
	StatusIncomplete FaceStatus = "incomplete"
	// StatusSkippedSmall: region below the minimum attackable size.
	StatusSkippedSmall FaceStatus = "skipped_small"
	// StatusSkippedLowQuality: the embedder rejected the crop.
	StatusSkippedLowQuality FaceStatus = "skipped_low_quality"
	// StatusTimeout: the per-image wall-clock budget expired first.
	StatusTimeout FaceStatus = "timeout"
	// StatusCompositeFailed: geometric mapping back into the image failed;
	// the face is left unperturbed.
	StatusCompositeFailed FaceStatus = "composite_failed"
	// StatusFailed: synthesis failed for this face.
	StatusFailed FaceStatus = "failed"
)

// Perturbed reports whether a face with this status carries a perturbation
// in the output image.
func (s FaceStatus) Perturbed() bool {
	return s == StatusCloaked || s == StatusIncomplete
}

// FaceReport is the per-face result, indexed by detection order
type FaceReport struct {
	Index      int         `json:"index"`
	Box        BoundingBox `json:"box"`
	Confidence float64     `json:"confidence"`
	Status     FaceStatus  `json:"status"`
	// Distance is the achieved embedding distance (1 - cosine similarity,
	// clamped to [0,1]); zero when the face was not perturbed.
	Distance   float64 `json:"distance"`
	Iterations int     `json:"iterations"`
	// PerceptualShift is the perceptual-hash Hamming distance between the
	// original and perturbed crop; -1 when unavailable.
	PerceptualShift int    `json:"perceptual_shift"`
	Reason          string `json:"reason,omitempty"`
}

// CloakResult is the aggregate outcome of one pipeline invocation.
// Immutable once returned.
type CloakResult struct {
	Image          image.Image   `json:"-"`
	FacesDetected  int           `json:"faces_detected"`
	FacesCloaked   int           `json:"faces_cloaked"`
	AvgDistance    float64       `json:"avg_distance"`
	MinDistance    float64       `json:"min_distance"`
	Faces          []FaceReport  `json:"faces"`
	Strength       Strength      `json:"strength"`
	ProcessingTime time.Duration `json:"processing_time"`
	Width          int           `json:"width"`
	Height         int           `json:"height"`
}

// ProcessingTimeMs returns the processing time in milliseconds, the unit the
// transport layer reports.
func (r *CloakResult) ProcessingTimeMs() int64 {
	return r.ProcessingTime.Milliseconds()
}
