package cache

import (
	"time"

	"github.com/shopkeeper-ai/shopkeeper/pkg/intent"
)

// DefaultTTL applies to categories without an explicit entry.
const DefaultTTL = 15 * time.Minute

// TTLTable maps intent categories to entry lifetimes.
type TTLTable struct {
	ByCategory map[intent.Category]time.Duration
	Default    time.Duration
}

// DefaultTTLs returns the stock lifetimes: prices and delivery terms change
// more often than policies, greetings practically never.
func DefaultTTLs() TTLTable {
	return TTLTable{
		ByCategory: map[intent.Category]time.Duration{
			intent.Price:    time.Hour,
			intent.Policy:   2 * time.Hour,
			intent.Delivery: 30 * time.Minute,
			intent.Greeting: 24 * time.Hour,
		},
		Default: DefaultTTL,
	}
}

// TTLsFromConfig builds a table from category-name keyed durations.
func TTLsFromConfig(byName map[string]time.Duration, fallback time.Duration) TTLTable {
	t := TTLTable{ByCategory: make(map[intent.Category]time.Duration, len(byName)), Default: fallback}
	for name, d := range byName {
		t.ByCategory[intent.Category(name)] = d
	}
	return t
}

// For returns the lifetime for category, always positive.
func (t TTLTable) For(category intent.Category) time.Duration {
	if d, ok := t.ByCategory[category]; ok && d > 0 {
		return d
	}
	if t.Default > 0 {
		return t.Default
	}
	return DefaultTTL
}
