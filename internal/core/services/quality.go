package services

import (
	"math"

	"github.com/custodia-labs/sercha-recall/internal/core/domain"
)

// QualityScorer derives groundedness and coverage from ranked chunks
type QualityScorer struct {
	ceiling            int
	groundednessWeight float64
	coverageWeight     float64
}

// NewQualityScorer creates a scorer. Zero-valued settings take the defaults.
func NewQualityScorer(settings domain.RetrievalSettings) *QualityScorer {
	defaults := domain.DefaultRetrievalSettings()
	if settings.CoverageCeiling <= 0 {
		settings.CoverageCeiling = defaults.CoverageCeiling
	}
	if settings.GroundednessWeight == 0 && settings.CoverageWeight == 0 {
		settings.GroundednessWeight = defaults.GroundednessWeight
		settings.CoverageWeight = defaults.CoverageWeight
	}
	return &QualityScorer{
		ceiling:            settings.CoverageCeiling,
		groundednessWeight: settings.GroundednessWeight,
		coverageWeight:     settings.CoverageWeight,
	}
}

// Score computes the quality of a ranked result set.
//
//	groundedness = mean chunk score
//	coverage     = distinct section labels, capped at the ceiling
//	overall      = wg*groundedness + wc*min(1, coverage/ceiling)
//
// Every component is rounded to three decimals. An empty set scores zero.
func (q *QualityScorer) Score(ranked []domain.ScoredChunk) domain.QualityScore {
	if len(ranked) == 0 {
		return domain.QualityScore{}
	}

	var sum float64
	sections := make(map[string]struct{}, len(ranked))
	for _, r := range ranked {
		sum += r.Score
		if s := r.Chunk.Section(); s != "" {
			sections[s] = struct{}{}
		}
	}

	groundedness := sum / float64(len(ranked))
	coverage := min(len(sections), q.ceiling)
	overall := q.groundednessWeight*groundedness +
		q.coverageWeight*math.Min(1, float64(coverage)/float64(q.ceiling))

	return domain.QualityScore{
		Groundedness: roundTo(groundedness, 3),
		Coverage:     coverage,
		Overall:      roundTo(overall, 3),
	}
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
