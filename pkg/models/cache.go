package models

import "time"

// CacheEntry stores a resolved answer for a normalized question.
type CacheEntry struct {
	Key       string    `json:"key"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Intent    string    `json:"intent"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CacheStats reports cache performance metrics.
type CacheStats struct {
	Entries        int64   `json:"entries"`
	Lookups        int64   `json:"lookups"`
	ExactHits      int64   `json:"exact_hits"`
	SimilarityHits int64   `json:"similarity_hits"`
	Misses         int64   `json:"misses"`
	HitRate        float64 `json:"hit_rate"`
	StoreErrors    int64   `json:"store_errors"`
}
