package domain

import (
	"time"
)

// QualityScore holds derived retrieval quality metrics
type QualityScore struct {
	Groundedness float64 `json:"groundedness"`
	Coverage     int     `json:"coverage"`
	Overall      float64 `json:"overall"`
}

// QueryRequest is an incoming question
type QueryRequest struct {
	Query    string `json:"query"`
	ClientID string `json:"-"` // Caller identity, used for throttling and logs
}

// QueryResult is the answer returned to callers
type QueryResult struct {
	Answer  string       `json:"answer"`
	Quality QualityScore `json:"quality"`
	Sources []Source     `json:"sources"`
	Meta    QueryMeta    `json:"meta"`
}

// Source cites a chunk used to ground the answer
type Source struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Section string  `json:"section,omitempty"`
	Score   float64 `json:"score"`
	Index   int     `json:"index"` // 1-based citation number used in the prompt
}

// QueryMeta describes how the answer was produced
type QueryMeta struct {
	Cached    bool  `json:"cached"`
	LatencyMs int64 `json:"latencyMs"`
}

// QueryStage names a step of query orchestration
type QueryStage string

const (
	StageValidate    QueryStage = "validate"
	StageEmbedQuery  QueryStage = "embed_query"
	StageCacheLookup QueryStage = "cache_lookup"
	StageIndex       QueryStage = "index"
	StageRank        QueryStage = "rank"
	StageGenerate    QueryStage = "generate"
	StageScore       QueryStage = "score"
	StageCacheInsert QueryStage = "cache_insert"
)

// StageError records the stage at which a query failed
type StageError struct {
	Stage QueryStage
	Err   error
}

func (e *StageError) Error() string {
	return string(e.Stage) + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error { return e.Err }

// QueryEvent is an audit record of one query, written best-effort
type QueryEvent struct {
	ID          string       `json:"id"`
	ClientID    string       `json:"client_id,omitempty"`
	Query       string       `json:"query"`
	Cached      bool         `json:"cached"`
	LatencyMs   int64        `json:"latency_ms"`
	Quality     QualityScore `json:"quality"`
	SourceCount int          `json:"source_count"`
	ErrorCode   ErrorCode    `json:"error_code,omitempty"`
	FailedStage QueryStage   `json:"failed_stage,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// QueryLogSummary aggregates recorded query events
type QueryLogSummary struct {
	Total        int64   `json:"total"`
	Cached       int64   `json:"cached"`
	Failed       int64   `json:"failed"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	AvgOverall   float64 `json:"avg_overall"`
}

// QueryHistory is the query log view served to operators
type QueryHistory struct {
	Summary QueryLogSummary `json:"summary"`
	Recent  []*QueryEvent   `json:"recent"`
}
