package engine

import (
	"fmt"
	"math"

	"github.com/lazypower/recall/internal/errs"
)

// Cosine computes the cosine similarity between two vectors. Vectors of
// different or zero length are a shape error; a zero-magnitude vector
// yields similarity 0.
func Cosine(a, b []float64) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, errs.New("engine.Cosine", errs.CodeVectorShape, "empty embedding vector")
	}
	if len(a) != len(b) {
		return 0, errs.New("engine.Cosine", errs.CodeVectorShape,
			fmt.Sprintf("dimension mismatch: %d vs %d", len(a), len(b)))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0, nil
	}
	return dot / denom, nil
}

// normalize scales vec to unit length in place. Zero vectors are left alone.
func normalize(vec []float64) {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return
	}
	for i := range vec {
		vec[i] /= norm
	}
}

// meanVector averages a set of same-dimension vectors component-wise.
func meanVector(vecs [][]float64) ([]float64, error) {
	if len(vecs) == 0 {
		return nil, errs.New("engine.meanVector", errs.CodeVectorShape, "no vectors to average")
	}
	dim := len(vecs[0])
	mean := make([]float64, dim)
	for _, v := range vecs {
		if len(v) != dim {
			return nil, errs.New("engine.meanVector", errs.CodeVectorShape,
				fmt.Sprintf("dimension mismatch: %d vs %d", len(v), dim))
		}
		for i, x := range v {
			mean[i] += x
		}
	}
	for i := range mean {
		mean[i] /= float64(len(vecs))
	}
	return mean, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
