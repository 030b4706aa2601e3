package models

import "time"

// Chat roles understood by the LLM gateway.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage represents a single turn in a customer conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Question is an incoming customer question after preprocessing.
type Question struct {
	Raw        string   `json:"raw"`
	Normalized string   `json:"normalized"`
	Tokens     []string `json:"tokens"`
	Intent     string   `json:"intent"`
}

// Outcome labels which tier of the pipeline produced an answer.
type Outcome string

const (
	OutcomeExactCacheHit      Outcome = "exact_cache_hit"
	OutcomeSimilarityCacheHit Outcome = "similarity_cache_hit"
	OutcomeLocalRuleHit       Outcome = "local_rule_hit"
	OutcomeNoInformation      Outcome = "no_information"
	OutcomeLLMHit             Outcome = "llm_hit"
	OutcomeLLMError           Outcome = "llm_error"
	OutcomeSystemError        Outcome = "system_error"
)

// CacheHit reports whether the outcome was served from the response cache.
func (o Outcome) CacheHit() bool {
	return o == OutcomeExactCacheHit || o == OutcomeSimilarityCacheHit
}

// HitKind distinguishes exact from similarity cache hits.
type HitKind string

const (
	HitNone       HitKind = ""
	HitExact      HitKind = "exact"
	HitSimilarity HitKind = "similarity"
)

// Resolution is the detailed result of resolving one question.
type Resolution struct {
	RequestID string        `json:"request_id"`
	Answer    string        `json:"answer"`
	Outcome   Outcome       `json:"outcome"`
	Intent    string        `json:"intent"`
	Latency   time.Duration `json:"latency"`
}
