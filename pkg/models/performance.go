package models

import "time"

// ExperienceCounts buckets responses by perceived latency.
type ExperienceCounts struct {
	Fast    int64 `json:"fast"`
	Normal  int64 `json:"normal"`
	Slow    int64 `json:"slow"`
	Timeout int64 `json:"timeout"`
}

// Total returns the number of responses across all tiers.
func (e ExperienceCounts) Total() int64 {
	return e.Fast + e.Normal + e.Slow + e.Timeout
}

// PerformanceSummary is a point-in-time view of resolver performance.
type PerformanceSummary struct {
	TotalRequests   int64            `json:"total_requests"`
	CacheHits       int64            `json:"cache_hits"`
	ExactHits       int64            `json:"exact_hits"`
	SimilarityHits  int64            `json:"similarity_hits"`
	CacheMisses     int64            `json:"cache_misses"`
	HitRate         float64          `json:"hit_rate"`
	SampleCount     int              `json:"sample_count"`
	AvgLatencyMs    float64          `json:"avg_latency_ms"`
	P50LatencyMs    float64          `json:"p50_latency_ms"`
	P95LatencyMs    float64          `json:"p95_latency_ms"`
	Experience      ExperienceCounts `json:"experience"`
	ExperienceScore float64          `json:"experience_score"`
	Errors          map[string]int64 `json:"errors"`
	TotalErrors     int64            `json:"total_errors"`
	ErrorRate       float64          `json:"error_rate"`
}

// HourlyStat aggregates responses within one clock hour.
type HourlyStat struct {
	Hour         time.Time `json:"hour"`
	Requests     int64     `json:"requests"`
	CacheHits    int64     `json:"cache_hits"`
	Errors       int64     `json:"errors"`
	AvgLatencyMs float64   `json:"avg_latency_ms"`
	HitRate      float64   `json:"hit_rate"`
}

// OperationStats aggregates timings of one named operation.
type OperationStats struct {
	Name       string    `json:"name"`
	Count      int64     `json:"count"`
	AvgMs      float64   `json:"avg_ms"`
	MinMs      float64   `json:"min_ms"`
	MaxMs      float64   `json:"max_ms"`
	SlowCount  int64     `json:"slow_count"`
	ErrorCount int64     `json:"error_count"`
	SlowRate   float64   `json:"slow_rate"`
	LastSeen   time.Time `json:"last_seen"`
}

// SlowOperation records one execution that exceeded the slow threshold.
type SlowOperation struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	DurationMs  float64   `json:"duration_ms"`
	Failed      bool      `json:"failed"`
	At          time.Time `json:"at"`
}

// QuerySummary is a point-in-time view of monitored operations.
type QuerySummary struct {
	TotalOperations int64            `json:"total_operations"`
	SlowOperations  int64            `json:"slow_operations"`
	Errors          int64            `json:"errors"`
	SlowThresholdMs float64          `json:"slow_threshold_ms"`
	Operations      []OperationStats `json:"operations"`
}

// QueryHourlyStat aggregates monitored operations within one clock hour.
type QueryHourlyStat struct {
	Hour        time.Time        `json:"hour"`
	Count       int64            `json:"count"`
	SlowCount   int64            `json:"slow_count"`
	AvgMs       float64          `json:"avg_ms"`
	ByOperation map[string]int64 `json:"by_operation"`
}
