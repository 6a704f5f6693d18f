// Package vector implements brute-force cosine ranking over small in-memory
// collections.
//
// Ranking is an O(n·d) scan, sized for tens to a few thousand chunks. Past
// roughly 10,000 chunks an approximate nearest-neighbour index (HNSW or
// similar) should replace TopK.
package vector

import (
	"fmt"
	"math"
	"slices"

	"github.com/custodia-labs/sercha-recall/internal/core/domain"
)

// Epsilon floors the cosine denominator so zero vectors score 0
const Epsilon = 1e-8

// Cosine returns the cosine similarity of a and b.
// Vectors of different length are rejected with ErrDimensionMismatch.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", domain.ErrDimensionMismatch, len(a), len(b))
	}

	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}

	denom := math.Sqrt(na) * math.Sqrt(nb)
	if denom < Epsilon {
		denom = Epsilon
	}
	return dot / denom, nil
}

// TopK scores every chunk against query and returns the k best, highest first.
// Equal scores keep their index order.
func TopK(query []float32, chunks []domain.EmbeddedChunk, k int) ([]domain.ScoredChunk, error) {
	if k <= 0 || len(chunks) == 0 {
		return []domain.ScoredChunk{}, nil
	}

	scored := make([]domain.ScoredChunk, len(chunks))
	for i, c := range chunks {
		score, err := Cosine(query, c.Embedding)
		if err != nil {
			return nil, fmt.Errorf("score chunk %s: %w", c.ID, err)
		}
		scored[i] = domain.ScoredChunk{Chunk: c, Score: score}
	}

	slices.SortStableFunc(scored, func(a, b domain.ScoredChunk) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})

	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}
