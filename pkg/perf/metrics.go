package perf

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shopkeeper-ai/shopkeeper/pkg/models"
)

// metrics mirrors collector counters into Prometheus.
type metrics struct {
	responses *prometheus.CounterVec
	latency   prometheus.Histogram
	errors    *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		responses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shopkeeper",
			Name:      "responses_total",
			Help:      "Resolved questions by cache result.",
		}, []string{"cache"}),
		latency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "shopkeeper",
			Name:      "response_latency_seconds",
			Help:      "End-to-end resolution latency.",
			Buckets:   []float64{0.01, 0.05, 0.25, 1, 3, 8, 15, 30, 60},
		}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shopkeeper",
			Name:      "errors_total",
			Help:      "Resolution errors by type.",
		}, []string{"type"}),
	}
}

func (m *metrics) observe(latency time.Duration, kind models.HitKind) {
	if m == nil {
		return
	}
	label := string(kind)
	if label == "" {
		label = "miss"
	}
	m.responses.WithLabelValues(label).Inc()
	m.latency.Observe(latency.Seconds())
}

func (m *metrics) errored(errorType string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(errorType).Inc()
}
