package services

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/sercha-recall/internal/core/domain"
	"github.com/custodia-labs/sercha-recall/internal/core/ports/driven"
)

// Generation defaults for grounded answers
const (
	DefaultSystemPrompt = "You are a helpful, concise career assistant."
	DefaultTemperature  = 0.2
	DefaultMaxTokens    = 1000
)

// PromptBuilder composes grounded generation requests for a profile owner
type PromptBuilder struct {
	Owner       string
	Role        string
	System      string
	Temperature float64
	MaxTokens   int
}

// NewPromptBuilder creates a builder with default generation parameters
func NewPromptBuilder(owner, role string) *PromptBuilder {
	return &PromptBuilder{
		Owner:       owner,
		Role:        role,
		System:      DefaultSystemPrompt,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}
}

// Build renders the prompt for query grounded in ranked.
// Context blocks are numbered from 1 in rank order; the numbers match Source.Index.
func (b *PromptBuilder) Build(query string, ranked []domain.ScoredChunk) driven.GenerationRequest {
	var sb strings.Builder

	fmt.Fprintf(&sb, "You are a professional interview assistant for %s", b.Owner)
	if b.Role != "" {
		fmt.Fprintf(&sb, ", %s", b.Role)
	}
	sb.WriteString(".\n")
	sb.WriteString("Use ONLY the provided context to answer recruiter-style queries with STAR clarity.\n")
	sb.WriteString("Cite sources as [#index] when relevant.\n\n")

	sb.WriteString("Context:\n")
	for i, r := range ranked {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[#%d] Title: %s\nSection: %s\nContent: %s",
			i+1, r.Chunk.Title, r.Chunk.Section(), r.Chunk.Content)
	}

	fmt.Fprintf(&sb, "\n\nUser question: %s\n\nAnswer:", query)

	return driven.GenerationRequest{
		System:      b.System,
		Prompt:      sb.String(),
		Temperature: b.Temperature,
		MaxTokens:   b.MaxTokens,
	}
}

// Sources lists the citations for ranked, numbered as in Build
func Sources(ranked []domain.ScoredChunk) []domain.Source {
	sources := make([]domain.Source, len(ranked))
	for i, r := range ranked {
		sources[i] = domain.Source{
			ID:      r.Chunk.ID,
			Title:   r.Chunk.Title,
			Section: r.Chunk.Section(),
			Score:   roundTo(r.Score, 3),
			Index:   i + 1,
		}
	}
	return sources
}
