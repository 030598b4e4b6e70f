package types

import "errors"

// Pipeline error taxonomy. Only ErrModelUnavailable aborts a whole request;
// the remaining sentinels degrade a single face to a non-cloaked status.
var (
	// ErrModelUnavailable: the detection or embedding model failed to load or
	// to run at all.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrLowQualityCrop: the crop is degenerate (too small, near-uniform) and
	// would produce a nonsensical embedding.
	ErrLowQualityCrop = errors.New("low quality crop")
	// ErrNoFace: the embedding model found no face in the crop.
	ErrNoFace = errors.New("no face in crop")
	// ErrMalformedRegion: a face region could not be mapped back into the
	// image during compositing.
	ErrMalformedRegion = errors.New("malformed face region")
)
