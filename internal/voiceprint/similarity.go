package voiceprint

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

var (
	// ErrZeroNorm is returned for an embedding whose L2 norm is zero.
	ErrZeroNorm = errors.New("embedding has zero norm")
	// ErrDimensionMismatch is returned when two embeddings differ in length.
	ErrDimensionMismatch = errors.New("embedding dimensions differ")
)

// CosineSimilarity returns dot(a,b) / (|a| * |b|).
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	if len(a) == 0 {
		return 0, ErrZeroNorm
	}
	na := floats.Norm(a, 2)
	nb := floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0, ErrZeroNorm
	}
	return floats.Dot(a, b) / (na * nb), nil
}

// MeanSimilarity averages the cosine similarity of query against every sample.
func MeanSimilarity(query []float64, samples [][]float64) (float64, error) {
	if len(samples) == 0 {
		return 0, nil
	}
	sum := 0.0
	for _, s := range samples {
		sim, err := CosineSimilarity(query, s)
		if err != nil {
			return 0, err
		}
		sum += sim
	}
	return sum / float64(len(samples)), nil
}
