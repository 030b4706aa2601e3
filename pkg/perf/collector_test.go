package perf

import (
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopkeeper-ai/shopkeeper/pkg/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestCollector(opts ...Option) (*Collector, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)}
	return NewCollector(append([]Option{WithClock(clock.Now)}, opts...)...), clock
}

func TestSummaryAggregates(t *testing.T) {
	c, _ := newTestCollector()

	c.RecordResponse(100*time.Millisecond, true, models.HitExact)
	c.RecordResponse(200*time.Millisecond, false, models.HitNone)
	c.RecordResponse(300*time.Millisecond, false, models.HitNone)
	c.RecordResponse(8000*time.Millisecond, false, models.HitNone)

	s := c.Summary()
	assert.Equal(t, int64(4), s.TotalRequests)
	assert.Equal(t, int64(1), s.CacheHits)
	assert.Equal(t, int64(1), s.ExactHits)
	assert.Equal(t, int64(3), s.CacheMisses)
	assert.InDelta(t, 25.0, s.HitRate, 0.001)
	assert.InDelta(t, 250.0, s.P50LatencyMs, 0.001)
	assert.InDelta(t, 6845.0, s.P95LatencyMs, 0.001)
	assert.InDelta(t, 2150.0, s.AvgLatencyMs, 0.001)
	assert.GreaterOrEqual(t, s.Experience.Slow, int64(1))
	assert.Equal(t, int64(3), s.Experience.Fast)
}

func TestExperienceTiers(t *testing.T) {
	c, _ := newTestCollector()

	c.RecordResponse(2999*time.Millisecond, false, models.HitNone)
	c.RecordResponse(3*time.Second, false, models.HitNone)
	c.RecordResponse(29*time.Second, false, models.HitNone)
	c.RecordResponse(30*time.Second, false, models.HitNone)

	s := c.Summary()
	assert.Equal(t, models.ExperienceCounts{Fast: 1, Normal: 1, Slow: 1, Timeout: 1}, s.Experience)
	assert.InDelta(t, 50.0, s.ExperienceScore, 0.001)
}

func TestWindowBoundsPercentiles(t *testing.T) {
	c, _ := newTestCollector(WithWindowSize(3))

	for _, ms := range []int{10000, 10000, 1, 2, 3} {
		c.RecordResponse(time.Duration(ms)*time.Millisecond, false, models.HitNone)
	}

	s := c.Summary()
	assert.Equal(t, 3, s.SampleCount)
	assert.InDelta(t, 2.0, s.P50LatencyMs, 0.001)
	assert.Equal(t, int64(5), s.TotalRequests, "counters are not windowed")
}

func TestWindowKeepsTimestampedSamples(t *testing.T) {
	c, clock := newTestCollector(WithWindowSize(2))
	start := clock.Now()

	c.RecordResponse(10*time.Millisecond, false, models.HitNone)
	clock.Advance(time.Minute)
	c.RecordResponse(20*time.Millisecond, false, models.HitNone)
	clock.Advance(time.Minute)
	c.RecordResponse(30*time.Millisecond, false, models.HitNone)

	c.mu.Lock()
	defer c.mu.Unlock()
	require.Len(t, c.samples, 2)
	assert.Equal(t, sample{at: start.Add(2 * time.Minute), ms: 30}, c.samples[0])
	assert.Equal(t, sample{at: start.Add(time.Minute), ms: 20}, c.samples[1])
}

func TestRecordError(t *testing.T) {
	c, _ := newTestCollector()

	c.RecordResponse(time.Second, false, models.HitNone)
	c.RecordError("llm_error", "timeout")
	c.RecordError("llm_error", "503")
	c.RecordError("system_error", "boom")

	s := c.Summary()
	assert.Equal(t, int64(2), s.Errors["llm_error"])
	assert.Equal(t, int64(1), s.Errors["system_error"])
	assert.Equal(t, int64(3), s.TotalErrors)
}

func TestHourlyTrendZeroFills(t *testing.T) {
	c, clock := newTestCollector()

	c.RecordResponse(100*time.Millisecond, true, models.HitExact)
	clock.Advance(2 * time.Hour)
	c.RecordResponse(300*time.Millisecond, false, models.HitNone)
	c.RecordError("llm_error", "x")

	trend := slices.Collect(c.HourlyTrend(4))
	require.Len(t, trend, 4)

	assert.Equal(t, time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC), trend[0].Hour)
	assert.Equal(t, int64(0), trend[0].Requests)
	assert.Equal(t, int64(1), trend[1].Requests)
	assert.InDelta(t, 100.0, trend[1].HitRate, 0.001)
	assert.Equal(t, int64(0), trend[2].Requests)
	assert.Equal(t, int64(1), trend[3].Requests)
	assert.Equal(t, int64(1), trend[3].Errors)
	assert.InDelta(t, 300.0, trend[3].AvgLatencyMs, 0.001)
}

func TestHourlyTrendIsRestartableSnapshot(t *testing.T) {
	c, _ := newTestCollector()
	c.RecordResponse(time.Second, false, models.HitNone)

	seq := c.HourlyTrend(2)
	c.RecordResponse(time.Second, false, models.HitNone)

	first := slices.Collect(seq)
	second := slices.Collect(seq)
	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), first[1].Requests)

	var n int
	for range seq {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestHourlyRetention(t *testing.T) {
	c, clock := newTestCollector()

	c.RecordResponse(time.Second, false, models.HitNone)
	clock.Advance(8 * 24 * time.Hour)
	c.RecordResponse(time.Second, false, models.HitNone)

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Len(t, c.hourly, 1)
}

func TestRecommendations(t *testing.T) {
	c, _ := newTestCollector()
	assert.Equal(t, []string{"No traffic recorded yet."}, c.Recommendations())

	for range 20 {
		c.RecordResponse(40*time.Second, false, models.HitNone)
	}
	c.RecordError("llm_error", "timeout")
	c.RecordError("llm_error", "timeout")

	recs := strings.Join(c.Recommendations(), "\n")
	assert.Contains(t, recs, "Average response time")
	assert.Contains(t, recs, "hit rate")
	assert.Contains(t, recs, "longer than 30s")
	assert.Contains(t, recs, "p95")
	assert.Contains(t, recs, "Error rate")

	healthy, _ := newTestCollector()
	healthy.RecordResponse(50*time.Millisecond, true, models.HitExact)
	assert.Equal(t, []string{"Performance is within targets."}, healthy.Recommendations())
}

func TestPrometheusMirror(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, _ := newTestCollector(WithRegisterer(reg))

	c.RecordResponse(time.Second, true, models.HitSimilarity)
	c.RecordResponse(time.Second, false, models.HitNone)
	c.RecordError("llm_error", "x")

	assert.InDelta(t, 1.0, testutil.ToFloat64(c.metrics.responses.WithLabelValues("similarity")), 0.001)
	assert.InDelta(t, 1.0, testutil.ToFloat64(c.metrics.responses.WithLabelValues("miss")), 0.001)
	assert.InDelta(t, 1.0, testutil.ToFloat64(c.metrics.errors.WithLabelValues("llm_error")), 0.001)
}

func TestConcurrentRecording(t *testing.T) {
	c, _ := newTestCollector(WithWindowSize(100))

	const workers, per = 20, 500
	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range per {
				c.RecordResponse(time.Duration(i)*time.Millisecond, (w+i)%2 == 0, models.HitExact)
				if i%50 == 0 {
					_ = c.Summary()
				}
			}
		}()
	}
	wg.Wait()

	s := c.Summary()
	assert.Equal(t, int64(workers*per), s.TotalRequests)
	assert.Equal(t, s.TotalRequests, s.CacheHits+s.CacheMisses)
	assert.Equal(t, 100, s.SampleCount)
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordResponse(time.Second, true, models.HitExact)
		c.RecordError("llm_error", "x")
	})
}
