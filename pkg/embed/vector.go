// Package embed extracts fixed-length identity vectors from face crops.
// The embedding model is consumed as a black-box callable: it can be queried
// but exposes no gradients, which is why the perturbation synthesizer uses
// query-based gradient estimation.
package embed

import "math"

// Vector is a fixed-dimensionality identity embedding. Extractors return
// unit-normalized vectors.
type Vector []float64

// CosineSimilarity calculates the cosine similarity between two embedding
// vectors. Returns a value between -1.0 (opposite) and 1.0 (identical);
// zero for mismatched or empty vectors.
func CosineSimilarity(a, b Vector) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Distance reports embedding dissimilarity as 1 - cosine similarity,
// clamped to [0,1]. Zero means identical identity, one means fully
// disrupted.
func Distance(a, b Vector) float64 {
	d := 1.0 - CosineSimilarity(a, b)
	if d < 0 {
		return 0
	}
	if d > 1 {
		return 1
	}
	return d
}

// Normalize returns a unit-length copy of the vector
func (v Vector) Normalize() Vector {
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	if norm == 0 {
		out := make(Vector, len(v))
		copy(out, v)
		return out
	}
	norm = math.Sqrt(norm)
	out := make(Vector, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}
