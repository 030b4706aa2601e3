package cache

import (
	"container/list"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/shopkeeper-ai/shopkeeper/pkg/intent"
	"github.com/shopkeeper-ai/shopkeeper/pkg/models"
	"github.com/shopkeeper-ai/shopkeeper/pkg/textproc"
)

const (
	DefaultThreshold   = 80
	DefaultScanLimit   = 50
	DefaultMaxEntries  = 1000
	DefaultMaxQuestion = 1000
)

// Options configures a Cache. Zero fields take defaults.
type Options struct {
	Store      Store
	Classifier *intent.Classifier
	TTLs       TTLTable
	// Threshold is the minimum Similarity score for a fuzzy hit.
	Threshold int
	// ScanLimit bounds how many recent entries a fuzzy lookup compares against.
	ScanLimit  int
	MaxEntries int
	// MaxQuestionRunes skips caching for longer normalized questions.
	MaxQuestionRunes int
	Clock            func() time.Time
	Logger           zerolog.Logger
}

// Cache answers repeated questions from earlier resolutions. An exact index
// keyed by the hash of the normalized question lives in the Store; a
// similarity index of recent questions lives in memory and is scanned with
// Similarity when the exact lookup misses.
//
// Internal failures never escape: lookups degrade to misses and stores to
// no-ops, with a warning logged.
type Cache struct {
	store      Store
	classifier *intent.Classifier
	ttls       TTLTable
	threshold  int
	scanLimit  int
	maxEntries int
	maxRunes   int
	now        func() time.Time
	logger     zerolog.Logger

	mu      sync.Mutex
	order   *list.List               // of *indexEntry, oldest first
	entries map[string]*list.Element // key -> element in order
	recent  []*indexEntry            // newest last, at most scanLimit

	lookups        atomic.Int64
	exactHits      atomic.Int64
	similarityHits atomic.Int64
	misses         atomic.Int64
	storeErrors    atomic.Int64
}

type indexEntry struct {
	key       string
	question  string
	runes     int
	expiresAt time.Time
}

// New creates a Cache.
func New(opts Options) *Cache {
	c := &Cache{
		store:      opts.Store,
		classifier: opts.Classifier,
		ttls:       opts.TTLs,
		threshold:  opts.Threshold,
		scanLimit:  opts.ScanLimit,
		maxEntries: opts.MaxEntries,
		maxRunes:   opts.MaxQuestionRunes,
		now:        opts.Clock,
		logger:     opts.Logger,
		order:      list.New(),
		entries:    make(map[string]*list.Element),
	}
	if c.store == nil {
		c.store = NewMemoryStore(time.Minute)
	}
	if c.classifier == nil {
		c.classifier = intent.NewClassifier()
	}
	if c.ttls.ByCategory == nil && c.ttls.Default == 0 {
		c.ttls = DefaultTTLs()
	}
	if c.threshold <= 0 {
		c.threshold = DefaultThreshold
	}
	if c.scanLimit <= 0 {
		c.scanLimit = DefaultScanLimit
	}
	if c.maxEntries <= 0 {
		c.maxEntries = DefaultMaxEntries
	}
	if c.maxRunes <= 0 {
		c.maxRunes = DefaultMaxQuestion
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Key returns the exact-index key for a normalized question.
func Key(normalized string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(normalized)))
}

// Lookup returns a cached answer for question, trying the exact index first
// and then the most similar recent question at or above the threshold.
func (c *Cache) Lookup(ctx context.Context, question string) (answer string, kind models.HitKind, ok bool) {
	c.lookups.Add(1)
	defer func() {
		if r := recover(); r != nil {
			c.failure("lookup", fmt.Errorf("panic: %v", r))
			answer, kind, ok = "", models.HitNone, false
		}
		if !ok {
			c.misses.Add(1)
		}
	}()

	norm := textproc.Normalize(question)
	runes := utf8.RuneCountInString(norm)
	if norm == "" || runes > c.maxRunes {
		return "", models.HitNone, false
	}
	key := Key(norm)
	now := c.now()

	entry, err := c.store.Get(ctx, key)
	switch {
	case err == nil && now.Before(entry.ExpiresAt):
		c.exactHits.Add(1)
		return entry.Answer, models.HitExact, true
	case err == nil:
		c.forget(ctx, key)
	case !errors.Is(err, ErrNotFound):
		c.failure("lookup", err)
		return "", models.HitNone, false
	}

	best, score := c.closest(ctx, key, norm, runes, now)
	if best == "" || score < c.threshold {
		return "", models.HitNone, false
	}

	entry, err = c.store.Get(ctx, best)
	switch {
	case err == nil && now.Before(entry.ExpiresAt):
		c.similarityHits.Add(1)
		return entry.Answer, models.HitSimilarity, true
	case err == nil, errors.Is(err, ErrNotFound):
		c.forget(ctx, best)
	default:
		c.failure("lookup", err)
	}
	return "", models.HitNone, false
}

// closest scans recent entries newest first and returns the best-scoring key.
// On equal scores the entry scanned first, i.e. the newer one, is kept.
func (c *Cache) closest(ctx context.Context, self, norm string, runes int, now time.Time) (string, int) {
	candidates, expired := c.snapshotRecent(now)
	for _, key := range expired {
		c.forget(ctx, key)
	}

	best, bestScore := "", -1
	for _, cand := range candidates {
		if cand.key == self || maxSimilarity(runes, cand.runes) < c.threshold {
			continue
		}
		if score := Similarity(norm, cand.question); score > bestScore {
			best, bestScore = cand.key, score
		}
	}
	return best, bestScore
}

// snapshotRecent copies live recent entries newest first and reports expired ones.
func (c *Cache) snapshotRecent(now time.Time) ([]indexEntry, []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	live := make([]indexEntry, 0, len(c.recent))
	var expired []string
	for i := len(c.recent) - 1; i >= 0; i-- {
		e := c.recent[i]
		if !now.Before(e.expiresAt) {
			expired = append(expired, e.key)
			continue
		}
		live = append(live, *e)
	}
	return live, expired
}

// Store records answer for question. Blank answers are ignored.
func (c *Cache) Store(ctx context.Context, question, answer string) {
	defer func() {
		if r := recover(); r != nil {
			c.failure("store", fmt.Errorf("panic: %v", r))
		}
	}()

	norm := textproc.Normalize(question)
	runes := utf8.RuneCountInString(norm)
	if norm == "" || runes > c.maxRunes || textproc.Normalize(answer) == "" {
		return
	}

	category := c.classifier.Classify(norm)
	ttl := c.ttls.For(category)
	now := c.now()
	entry := models.CacheEntry{
		Key:       Key(norm),
		Question:  norm,
		Answer:    answer,
		Intent:    string(category),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	if err := c.store.Set(ctx, entry.Key, entry, ttl); err != nil {
		c.failure("store", err)
		return
	}

	for _, key := range c.index(&indexEntry{key: entry.Key, question: norm, runes: runes, expiresAt: entry.ExpiresAt}) {
		if err := c.store.Delete(ctx, key); err != nil {
			c.failure("evict", err)
		}
	}
}

// index adds e to both in-memory indexes and returns keys evicted for capacity.
func (c *Cache) index(e *indexEntry) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[e.key]; ok {
		c.order.Remove(el)
		c.removeRecentLocked(e.key)
	}
	c.entries[e.key] = c.order.PushBack(e)

	c.recent = append(c.recent, e)
	if over := len(c.recent) - c.scanLimit; over > 0 {
		clear(c.recent[:over])
		c.recent = c.recent[over:]
	}

	var evicted []string
	for c.order.Len() > c.maxEntries {
		oldest := c.order.Front()
		victim := c.order.Remove(oldest).(*indexEntry)
		delete(c.entries, victim.key)
		c.removeRecentLocked(victim.key)
		evicted = append(evicted, victim.key)
	}
	return evicted
}

// forget drops key from both indexes.
func (c *Cache) forget(ctx context.Context, key string) {
	c.mu.Lock()
	if el, ok := c.entries[key]; ok {
		c.order.Remove(el)
		delete(c.entries, key)
	}
	c.removeRecentLocked(key)
	c.mu.Unlock()

	if err := c.store.Delete(ctx, key); err != nil {
		c.failure("evict", err)
	}
}

func (c *Cache) removeRecentLocked(key string) {
	for i, e := range c.recent {
		if e.key == key {
			c.recent = append(c.recent[:i], c.recent[i+1:]...)
			return
		}
	}
}

func (c *Cache) failure(op string, err error) {
	c.storeErrors.Add(1)
	c.logger.Warn().Err(err).Str("op", op).Msg("cache degraded")
}

// Stats returns cache counters.
func (c *Cache) Stats() models.CacheStats {
	c.mu.Lock()
	entries := int64(c.order.Len())
	c.mu.Unlock()

	stats := models.CacheStats{
		Entries:        entries,
		Lookups:        c.lookups.Load(),
		ExactHits:      c.exactHits.Load(),
		SimilarityHits: c.similarityHits.Load(),
		Misses:         c.misses.Load(),
		StoreErrors:    c.storeErrors.Load(),
	}
	if stats.Lookups > 0 {
		stats.HitRate = 100 * float64(stats.ExactHits+stats.SimilarityHits) / float64(stats.Lookups)
	}
	return stats
}

// Clear removes every entry from both indexes.
func (c *Cache) Clear(ctx context.Context) {
	c.mu.Lock()
	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	c.order.Init()
	c.entries = make(map[string]*list.Element)
	c.recent = nil
	c.mu.Unlock()

	for _, key := range keys {
		if err := c.store.Delete(ctx, key); err != nil {
			c.failure("clear", err)
		}
	}
}
