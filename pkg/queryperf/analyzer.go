package queryperf

import (
	"cmp"
	"context"
	"fmt"
	"iter"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/shopkeeper-ai/shopkeeper/pkg/models"
)

const (
	DefaultSlowThreshold = time.Second
	DefaultSlowLogSize   = 100
	retention            = 7 * 24 * time.Hour
)

// Options configures an Analyzer. Zero fields take defaults.
type Options struct {
	SlowThreshold time.Duration
	SlowLogSize   int
	Clock         func() time.Time
	Logger        zerolog.Logger
}

type opStats struct {
	count    int64
	slow     int64
	errors   int64
	total    time.Duration
	min      time.Duration
	max      time.Duration
	lastSeen time.Time
}

type hourStats struct {
	count int64
	slow  int64
	total time.Duration
	byOp  map[string]int64
}

// Analyzer times named operations such as catalog searches and LLM calls
// and keeps per-operation statistics plus a bounded log of slow runs.
// A nil *Analyzer runs work without recording anything.
type Analyzer struct {
	threshold time.Duration
	now       func() time.Time
	logger    zerolog.Logger

	mu       sync.Mutex
	ops      map[string]*opStats
	slowLog  []models.SlowOperation // ring, capacity slowSize
	slowSize int
	slowNext int
	hourly   map[int64]*hourStats
}

// New creates an Analyzer.
func New(opts Options) *Analyzer {
	a := &Analyzer{
		threshold: opts.SlowThreshold,
		now:       opts.Clock,
		logger:    opts.Logger,
		slowSize:  opts.SlowLogSize,
		ops:       make(map[string]*opStats),
		hourly:    make(map[int64]*hourStats),
	}
	if a.threshold <= 0 {
		a.threshold = DefaultSlowThreshold
	}
	if a.slowSize <= 0 {
		a.slowSize = DefaultSlowLogSize
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// Monitor runs work and records its duration under name. Errors are
// returned unchanged; a panic is recorded as a failure and re-raised.
func (a *Analyzer) Monitor(ctx context.Context, name, description string, work func(context.Context) error) (err error) {
	if a == nil {
		return work(ctx)
	}

	start := a.now()
	defer func() {
		if r := recover(); r != nil {
			a.record(name, description, a.now().Sub(start), true)
			panic(r)
		}
		a.record(name, description, a.now().Sub(start), err != nil)
	}()
	return work(ctx)
}

// Observe is Monitor for work that produces a value.
func Observe[T any](a *Analyzer, ctx context.Context, name, description string, work func(context.Context) (T, error)) (T, error) {
	var out T
	err := a.Monitor(ctx, name, description, func(ctx context.Context) error {
		var err error
		out, err = work(ctx)
		return err
	})
	return out, err
}

func (a *Analyzer) record(name, description string, elapsed time.Duration, failed bool) {
	at := a.now()
	slow := elapsed > a.threshold
	hour := at.UTC().Truncate(time.Hour).Unix()

	a.mu.Lock()
	s, ok := a.ops[name]
	if !ok {
		s = &opStats{min: elapsed}
		a.ops[name] = s
	}
	s.count++
	s.total += elapsed
	s.min = min(s.min, elapsed)
	s.max = max(s.max, elapsed)
	s.lastSeen = at
	if failed {
		s.errors++
	}

	h := a.hourLocked(hour)
	h.count++
	h.total += elapsed
	h.byOp[name]++

	if slow {
		s.slow++
		h.slow++
		entry := models.SlowOperation{
			Name:        name,
			Description: description,
			DurationMs:  float64(elapsed) / float64(time.Millisecond),
			Failed:      failed,
			At:          at,
		}
		if len(a.slowLog) < a.slowSize {
			a.slowLog = append(a.slowLog, entry)
		} else {
			a.slowLog[a.slowNext] = entry
		}
		a.slowNext = (a.slowNext + 1) % a.slowSize
	}
	a.mu.Unlock()

	if slow {
		a.logger.Warn().
			Str("operation", name).
			Str("description", description).
			Dur("elapsed", elapsed).
			Bool("failed", failed).
			Msg("slow operation")
	}
}

func (a *Analyzer) hourLocked(hour int64) *hourStats {
	if h, ok := a.hourly[hour]; ok {
		return h
	}
	cutoff := hour - int64(retention/time.Second)
	for k := range a.hourly {
		if k <= cutoff {
			delete(a.hourly, k)
		}
	}
	h := &hourStats{byOp: make(map[string]int64)}
	a.hourly[hour] = h
	return h
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// Summary returns per-operation statistics sorted by name. Counters are
// copied under the lock; aggregation and sorting run on the copy.
func (a *Analyzer) Summary() models.QuerySummary {
	a.mu.Lock()
	snapshot := make(map[string]opStats, len(a.ops))
	for name, s := range a.ops {
		snapshot[name] = *s
	}
	a.mu.Unlock()

	sum := models.QuerySummary{
		SlowThresholdMs: ms(a.threshold),
		Operations:      make([]models.OperationStats, 0, len(snapshot)),
	}
	for name, s := range snapshot {
		st := models.OperationStats{
			Name:       name,
			Count:      s.count,
			MinMs:      ms(s.min),
			MaxMs:      ms(s.max),
			SlowCount:  s.slow,
			ErrorCount: s.errors,
			LastSeen:   s.lastSeen,
		}
		if s.count > 0 {
			st.AvgMs = ms(s.total) / float64(s.count)
			st.SlowRate = 100 * float64(s.slow) / float64(s.count)
		}
		sum.TotalOperations += s.count
		sum.SlowOperations += s.slow
		sum.Errors += s.errors
		sum.Operations = append(sum.Operations, st)
	}
	slices.SortFunc(sum.Operations, func(x, y models.OperationStats) int {
		return cmp.Compare(x.Name, y.Name)
	})
	return sum
}

// SlowOperations returns up to limit slow runs, newest first.
func (a *Analyzer) SlowOperations(limit int) []models.SlowOperation {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := len(a.slowLog)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]models.SlowOperation, 0, limit)
	for i := range limit {
		idx := (a.slowNext - 1 - i + 2*n) % n
		out = append(out, a.slowLog[idx])
	}
	return out
}

// Trend yields one stat per hour for the last hours hours, oldest first,
// zero-filled and copied at call time.
func (a *Analyzer) Trend(hours int) iter.Seq[models.QueryHourlyStat] {
	if hours <= 0 {
		hours = 24
	}
	end := a.now().UTC().Truncate(time.Hour)
	start := end.Add(-time.Duration(hours-1) * time.Hour)

	snapshot := make(map[int64]hourStats, hours)
	a.mu.Lock()
	for k, h := range a.hourly {
		if k >= start.Unix() && k <= end.Unix() {
			snapshot[k] = hourStats{count: h.count, slow: h.slow, total: h.total, byOp: maps.Clone(h.byOp)}
		}
	}
	a.mu.Unlock()

	return func(yield func(models.QueryHourlyStat) bool) {
		for i := range hours {
			hour := start.Add(time.Duration(i) * time.Hour)
			h := snapshot[hour.Unix()]
			stat := models.QueryHourlyStat{
				Hour:        hour,
				Count:       h.count,
				SlowCount:   h.slow,
				ByOperation: maps.Clone(h.byOp),
			}
			if stat.ByOperation == nil {
				stat.ByOperation = map[string]int64{}
			}
			if h.count > 0 {
				stat.AvgMs = ms(h.total) / float64(h.count)
			}
			if !yield(stat) {
				return
			}
		}
	}
}

// Recommendations flags operations that are often slow or failing.
func (a *Analyzer) Recommendations() []string {
	sum := a.Summary()
	if sum.TotalOperations == 0 {
		return []string{"No operations monitored yet."}
	}

	var recs []string
	for _, op := range sum.Operations {
		if op.SlowRate > 20 {
			recs = append(recs, fmt.Sprintf("%s is slow in %.0f%% of calls; cache its results or narrow its input.", op.Name, op.SlowRate))
		}
		if op.AvgMs > sum.SlowThresholdMs {
			recs = append(recs, fmt.Sprintf("%s averages %.0fms, above the %.0fms threshold.", op.Name, op.AvgMs, sum.SlowThresholdMs))
		}
		if op.ErrorCount > 0 {
			recs = append(recs, fmt.Sprintf("%s failed %d of %d times.", op.Name, op.ErrorCount, op.Count))
		}
	}
	if len(recs) == 0 {
		recs = append(recs, "All monitored operations are within the slow threshold.")
	}
	return recs
}
