package domain

import "time"

// CacheEntry is a generated answer remembered by the semantic cache
type CacheEntry struct {
	Query          string
	QueryEmbedding []float32
	Answer         string
	Quality        QualityScore
	CreatedAt      time.Time
}

// Age returns how old the entry is at now
func (e *CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.CreatedAt)
}

// CacheStats reports semantic cache effectiveness.
// Only successfully answered queries are counted, so Hits+Misses equals Requests
// and HitRate and AvgLatencyMs share one denominator.
type CacheStats struct {
	Entries      int     `json:"entries"`
	Capacity     int     `json:"capacity"`
	Hits         int64   `json:"hits"`
	Misses       int64   `json:"misses"`
	Requests     int64   `json:"requests"`
	HitRate      float64 `json:"hit_rate"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}
