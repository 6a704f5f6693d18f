package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/custodia-labs/sercha-recall/internal/core/domain"
	"github.com/custodia-labs/sercha-recall/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.QueryLogStore = (*QueryLogStore)(nil)

// QueryLogStore implements driven.QueryLogStore using PostgreSQL
type QueryLogStore struct {
	db *DB
}

// NewQueryLogStore creates a new QueryLogStore
func NewQueryLogStore(db *DB) *QueryLogStore {
	return &QueryLogStore{db: db}
}

// Record inserts a query event
func (s *QueryLogStore) Record(ctx context.Context, event *domain.QueryEvent) error {
	query := `
		INSERT INTO query_events (id, client_id, query, cached, latency_ms,
								  groundedness, coverage, overall, source_count,
								  error_code, failed_stage, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.ClientID,
		event.Query,
		event.Cached,
		event.LatencyMs,
		event.Quality.Groundedness,
		event.Quality.Coverage,
		event.Quality.Overall,
		event.SourceCount,
		NullString(string(event.ErrorCode)),
		NullString(string(event.FailedStage)),
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("record query event: %w", err)
	}
	return nil
}

// Summary aggregates events created at or after since
func (s *QueryLogStore) Summary(ctx context.Context, since time.Time) (*domain.QueryLogSummary, error) {
	query := `
		SELECT COUNT(*),
			   COUNT(*) FILTER (WHERE cached),
			   COUNT(*) FILTER (WHERE error_code IS NOT NULL),
			   COALESCE(AVG(latency_ms), 0),
			   COALESCE(AVG(overall), 0)
		FROM query_events
		WHERE created_at >= $1
	`

	var summary domain.QueryLogSummary
	err := s.db.QueryRowContext(ctx, query, since).Scan(
		&summary.Total,
		&summary.Cached,
		&summary.Failed,
		&summary.AvgLatencyMs,
		&summary.AvgOverall,
	)
	if err != nil {
		return nil, fmt.Errorf("summarize query events: %w", err)
	}
	return &summary, nil
}

// Recent returns the newest events, newest first
func (s *QueryLogStore) Recent(ctx context.Context, limit int) ([]*domain.QueryEvent, error) {
	query := `
		SELECT id, client_id, query, cached, latency_ms, groundedness, coverage,
			   overall, source_count, error_code, failed_stage, created_at
		FROM query_events
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list query events: %w", err)
	}
	defer rows.Close()

	var events []*domain.QueryEvent
	for rows.Next() {
		var (
			e                      domain.QueryEvent
			errorCode, failedStage sql.NullString
		)
		if err := rows.Scan(
			&e.ID,
			&e.ClientID,
			&e.Query,
			&e.Cached,
			&e.LatencyMs,
			&e.Quality.Groundedness,
			&e.Quality.Coverage,
			&e.Quality.Overall,
			&e.SourceCount,
			&errorCode,
			&failedStage,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan query event: %w", err)
		}
		e.ErrorCode = domain.ErrorCode(errorCode.String)
		e.FailedStage = domain.QueryStage(failedStage.String)
		events = append(events, &e)
	}
	return events, rows.Err()
}
