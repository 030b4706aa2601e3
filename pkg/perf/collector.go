package perf

import (
	"fmt"
	"iter"
	"maps"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/shopkeeper-ai/shopkeeper/pkg/models"
)

// Latency tiers as perceived by a customer waiting for an answer.
const (
	FastLimit   = 3 * time.Second
	NormalLimit = 8 * time.Second
	SlowLimit   = 30 * time.Second
)

const (
	DefaultWindowSize = 1000
	// DefaultRetention is how long hourly buckets are kept.
	DefaultRetention = 7 * 24 * time.Hour
)

// Option configures a Collector.
type Option func(*Collector)

// WithWindowSize sets how many recent latencies feed the percentiles.
func WithWindowSize(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.window = n
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Collector) { c.logger = l }
}

// WithRegisterer mirrors counters into Prometheus metrics registered on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Collector) { c.metrics = newMetrics(reg) }
}

// sample is one response latency and when it was recorded.
type sample struct {
	at time.Time
	ms int64
}

type hourBucket struct {
	requests  int64
	cacheHits int64
	errors    int64
	latencyMs int64
}

// Collector aggregates resolver outcomes into live performance figures.
// Recording holds the lock only for counter updates; percentiles are
// computed on a copy.
type Collector struct {
	window  int
	now     func() time.Time
	logger  zerolog.Logger
	metrics *metrics

	mu         sync.Mutex
	samples    []sample // ring of the last window responses
	next       int
	requests   int64
	hits       int64
	exact      int64
	similar    int64
	latencySum int64
	tiers      models.ExperienceCounts
	errors     map[string]int64
	hourly     map[int64]*hourBucket // unix seconds of the UTC hour
}

// NewCollector creates a Collector.
func NewCollector(opts ...Option) *Collector {
	c := &Collector{
		window: DefaultWindowSize,
		now:    time.Now,
		logger: zerolog.Nop(),
		errors: make(map[string]int64),
		hourly: make(map[int64]*hourBucket),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.samples = make([]sample, 0, c.window)
	return c
}

func hourOf(t time.Time) int64 {
	return t.UTC().Truncate(time.Hour).Unix()
}

// RecordResponse records one completed resolution.
func (c *Collector) RecordResponse(latency time.Duration, cacheHit bool, kind models.HitKind) {
	if c == nil {
		return
	}
	if latency < 0 {
		latency = 0
	}
	ms := latency.Milliseconds()
	now := c.now()
	hour := hourOf(now)

	c.mu.Lock()
	if len(c.samples) < c.window {
		c.samples = append(c.samples, sample{at: now, ms: ms})
	} else {
		c.samples[c.next] = sample{at: now, ms: ms}
	}
	c.next = (c.next + 1) % c.window

	c.requests++
	c.latencySum += ms
	if cacheHit {
		c.hits++
		switch kind {
		case models.HitExact:
			c.exact++
		case models.HitSimilarity:
			c.similar++
		}
	}
	switch {
	case latency < FastLimit:
		c.tiers.Fast++
	case latency < NormalLimit:
		c.tiers.Normal++
	case latency < SlowLimit:
		c.tiers.Slow++
	default:
		c.tiers.Timeout++
	}

	b := c.bucketLocked(hour)
	b.requests++
	b.latencyMs += ms
	if cacheHit {
		b.cacheHits++
	}
	c.mu.Unlock()

	c.metrics.observe(latency, kind)
}

// RecordError records a failure of the given type.
func (c *Collector) RecordError(errorType, message string) {
	if c == nil {
		return
	}
	hour := hourOf(c.now())

	c.mu.Lock()
	c.errors[errorType]++
	c.bucketLocked(hour).errors++
	c.mu.Unlock()

	c.metrics.errored(errorType)
	c.logger.Debug().Str("type", errorType).Str("error", message).Msg("error recorded")
}

// bucketLocked returns the bucket for hour, pruning expired buckets when a new hour starts.
func (c *Collector) bucketLocked(hour int64) *hourBucket {
	if b, ok := c.hourly[hour]; ok {
		return b
	}
	cutoff := hour - int64(DefaultRetention/time.Second)
	for h := range c.hourly {
		if h <= cutoff {
			delete(c.hourly, h)
		}
	}
	b := &hourBucket{}
	c.hourly[hour] = b
	return b
}

// Summary returns a consistent snapshot of all counters and percentiles.
func (c *Collector) Summary() models.PerformanceSummary {
	c.mu.Lock()
	window := slices.Clone(c.samples)
	s := models.PerformanceSummary{
		TotalRequests:  c.requests,
		CacheHits:      c.hits,
		ExactHits:      c.exact,
		SimilarityHits: c.similar,
		CacheMisses:    c.requests - c.hits,
		Experience:     c.tiers,
		Errors:         maps.Clone(c.errors),
	}
	latencySum := c.latencySum
	c.mu.Unlock()

	samples := make([]int64, len(window))
	for i, smp := range window {
		samples[i] = smp.ms
	}
	s.SampleCount = len(samples)
	for _, n := range s.Errors {
		s.TotalErrors += n
	}
	if s.TotalRequests > 0 {
		s.HitRate = 100 * float64(s.CacheHits) / float64(s.TotalRequests)
		s.AvgLatencyMs = float64(latencySum) / float64(s.TotalRequests)
		s.ErrorRate = 100 * float64(s.TotalErrors) / float64(s.TotalRequests)
	}
	slices.Sort(samples)
	s.P50LatencyMs = percentile(samples, 50)
	s.P95LatencyMs = percentile(samples, 95)
	s.ExperienceScore = experienceScore(s.Experience)
	return s
}

// percentile interpolates linearly between the closest ranks of sorted.
func percentile(sorted []int64, p float64) float64 {
	switch len(sorted) {
	case 0:
		return 0
	case 1:
		return float64(sorted[0])
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	frac := rank - float64(lo)
	return float64(sorted[lo]) + (float64(sorted[hi])-float64(sorted[lo]))*frac
}

// experienceScore weights tiers 100/70/30/0 into a 0-100 score.
func experienceScore(e models.ExperienceCounts) float64 {
	total := e.Total()
	if total == 0 {
		return 0
	}
	return (100*float64(e.Fast) + 70*float64(e.Normal) + 30*float64(e.Slow)) / float64(total)
}

// HourlyTrend yields one stat per hour for the last hours hours, oldest
// first, with zero-filled gaps. The buckets are copied when HourlyTrend is
// called, so the sequence can be ranged over repeatedly.
func (c *Collector) HourlyTrend(hours int) iter.Seq[models.HourlyStat] {
	if hours <= 0 {
		hours = 24
	}
	end := c.now().UTC().Truncate(time.Hour)
	start := end.Add(-time.Duration(hours-1) * time.Hour)

	snapshot := make(map[int64]hourBucket, hours)
	c.mu.Lock()
	for h, b := range c.hourly {
		if h >= start.Unix() && h <= end.Unix() {
			snapshot[h] = *b
		}
	}
	c.mu.Unlock()

	return func(yield func(models.HourlyStat) bool) {
		for i := range hours {
			hour := start.Add(time.Duration(i) * time.Hour)
			b := snapshot[hour.Unix()]
			stat := models.HourlyStat{
				Hour:      hour,
				Requests:  b.requests,
				CacheHits: b.cacheHits,
				Errors:    b.errors,
			}
			if b.requests > 0 {
				stat.AvgLatencyMs = float64(b.latencyMs) / float64(b.requests)
				stat.HitRate = 100 * float64(b.cacheHits) / float64(b.requests)
			}
			if !yield(stat) {
				return
			}
		}
	}
}

// Recommendations turns the current summary into operator advice.
func (c *Collector) Recommendations() []string {
	s := c.Summary()
	if s.TotalRequests == 0 {
		return []string{"No traffic recorded yet."}
	}

	var recs []string
	if s.AvgLatencyMs > float64(NormalLimit.Milliseconds()) {
		recs = append(recs, fmt.Sprintf("Average response time is %.0fms; lengthen cache TTLs or add local rules for frequent questions.", s.AvgLatencyMs))
	}
	if s.TotalRequests >= 20 && s.HitRate < 30 {
		recs = append(recs, fmt.Sprintf("Cache hit rate is %.1f%%; consider lowering the similarity threshold or raising the scan limit.", s.HitRate))
	}
	if s.Experience.Timeout > 0 {
		recs = append(recs, fmt.Sprintf("%d responses took longer than %s; shorten the LLM timeout or add a faster provider.", s.Experience.Timeout, SlowLimit))
	}
	if s.P95LatencyMs > float64((15 * time.Second).Milliseconds()) {
		recs = append(recs, fmt.Sprintf("p95 latency is %.0fms; investigate slow LLM providers.", s.P95LatencyMs))
	}
	if s.ErrorRate > 5 {
		recs = append(recs, fmt.Sprintf("Error rate is %.1f%%; check LLM provider credentials and availability.", s.ErrorRate))
	}
	if len(recs) == 0 {
		recs = append(recs, "Performance is within targets.")
	}
	return recs
}
