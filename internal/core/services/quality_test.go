package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/sercha-recall/internal/core/domain"
)

func scored(section string, score float64) domain.ScoredChunk {
	meta := map[string]string{}
	if section != "" {
		meta[domain.MetaSection] = section
	}
	return domain.ScoredChunk{
		Chunk: domain.EmbeddedChunk{DocChunk: domain.DocChunk{ID: section, Meta: meta}},
		Score: score,
	}
}

func TestQualityScorer_Scenario(t *testing.T) {
	q := NewQualityScorer(domain.DefaultRetrievalSettings())

	got := q.Score([]domain.ScoredChunk{
		scored("Action", 0.9),
		scored("Result", 0.7),
	})

	assert.Equal(t, 0.8, got.Groundedness)
	assert.Equal(t, 2, got.Coverage)
	assert.Equal(t, 0.71, got.Overall)
}

func TestQualityScorer_Empty(t *testing.T) {
	q := NewQualityScorer(domain.DefaultRetrievalSettings())
	assert.Equal(t, domain.QualityScore{}, q.Score(nil))
}

func TestQualityScorer_CoverageCapped(t *testing.T) {
	q := NewQualityScorer(domain.DefaultRetrievalSettings())

	got := q.Score([]domain.ScoredChunk{
		scored("Situation", 1),
		scored("Task", 1),
		scored("Action", 1),
		scored("Result", 1),
		scored("Extra", 1),
	})

	assert.Equal(t, 4, got.Coverage)
	assert.Equal(t, 1.0, got.Overall)
}

func TestQualityScorer_DuplicateAndMissingSections(t *testing.T) {
	q := NewQualityScorer(domain.DefaultRetrievalSettings())

	got := q.Score([]domain.ScoredChunk{
		scored("Action", 0.5),
		scored("Action", 0.5),
		scored("", 0.5),
	})

	assert.Equal(t, 1, got.Coverage)
	assert.Equal(t, 0.5, got.Groundedness)
	// 0.7*0.5 + 0.3*0.25
	assert.Equal(t, 0.425, got.Overall)
}

func TestQualityScorer_Rounding(t *testing.T) {
	q := NewQualityScorer(domain.DefaultRetrievalSettings())

	got := q.Score([]domain.ScoredChunk{
		scored("Action", 0.12345),
		scored("Action", 0.12345),
	})

	assert.Equal(t, 0.123, got.Groundedness)
}

func TestQualityScorer_CustomWeights(t *testing.T) {
	q := NewQualityScorer(domain.RetrievalSettings{
		CoverageCeiling:    2,
		GroundednessWeight: 0.5,
		CoverageWeight:     0.5,
	})

	got := q.Score([]domain.ScoredChunk{scored("Task", 0.6)})

	// 0.5*0.6 + 0.5*0.5
	assert.Equal(t, 0.55, got.Overall)
}

func TestQualityScorer_Deterministic(t *testing.T) {
	q := NewQualityScorer(domain.DefaultRetrievalSettings())
	in := []domain.ScoredChunk{scored("Action", 0.83), scored("Task", 0.61), scored("Result", 0.42)}

	assert.Equal(t, q.Score(in), q.Score(in))
}
