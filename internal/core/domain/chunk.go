package domain

import "time"

// Meta keys set on chunks derived from a profile
const (
	MetaItemID    = "item_id"
	MetaItemTitle = "item_title"
	MetaSection   = "section"
)

// DocChunk is a unit of retrievable content
type DocChunk struct {
	ID      string            `json:"id"`
	Title   string            `json:"title"`
	Content string            `json:"content"`
	Meta    map[string]string `json:"meta,omitempty"` // Opaque to retrieval, passed through for citation
}

// Section returns the chunk's section label, if any
func (c DocChunk) Section() string {
	return c.Meta[MetaSection]
}

// EmbeddingText is the display string sent to the embedding service
func (c DocChunk) EmbeddingText() string {
	section := c.Meta[MetaSection]
	if section == "" {
		return c.Title + ": " + c.Content
	}
	title := c.Meta[MetaItemTitle]
	if title == "" {
		title = c.Title
	}
	return title + " — " + section + ": " + c.Content
}

// EmbeddedChunk is a DocChunk paired with its vector
type EmbeddedChunk struct {
	DocChunk
	Embedding []float32 `json:"-"`
}

// ScoredChunk is a ranked retrieval result
type ScoredChunk struct {
	Chunk EmbeddedChunk
	Score float64
}

// Index is the immutable collection of embedded chunks built once per process.
// All embeddings share Dimensions.
type Index struct {
	Chunks     []EmbeddedChunk
	Dimensions int
	Model      string
	BuiltAt    time.Time
}

// Len returns the number of indexed chunks
func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return len(i.Chunks)
}

// IndexStatus summarises the index for status endpoints
type IndexStatus struct {
	Built      bool       `json:"built"`
	Chunks     int        `json:"chunks"`
	Dimensions int        `json:"dimensions"`
	Model      string     `json:"model,omitempty"`
	BuiltAt    *time.Time `json:"built_at,omitempty"`
}
