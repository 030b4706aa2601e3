package models

import "time"

// InteractionRecord is one resolved question as kept in the journal.
type InteractionRecord struct {
	ID          int64     `json:"id"`
	RequestID   string    `json:"request_id"`
	Question    string    `json:"question"`
	Intent      string    `json:"intent"`
	Outcome     Outcome   `json:"outcome"`
	LatencyMs   int64     `json:"latency_ms"`
	AnswerChars int       `json:"answer_chars"`
	CreatedAt   time.Time `json:"created_at"`
}

// OutcomeSummary aggregates journal rows for one outcome.
type OutcomeSummary struct {
	Outcome      Outcome `json:"outcome"`
	Count        int64   `json:"count"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}
