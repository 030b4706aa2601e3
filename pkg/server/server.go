package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/shopkeeper-ai/shopkeeper/pkg/models"
	"github.com/shopkeeper-ai/shopkeeper/pkg/perf"
	"github.com/shopkeeper-ai/shopkeeper/pkg/queryperf"
)

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 5 * time.Second
	trendHours      = 24
	slowOpsLimit    = 10
)

// Resolver answers a customer question.
type Resolver interface {
	ResolveDetailed(ctx context.Context, question string, history []models.ChatMessage) models.Resolution
}

// CacheStatter reports answer cache counters.
type CacheStatter interface {
	Stats() models.CacheStats
}

// Deps wires the server. Resolver is required.
type Deps struct {
	Resolver  Resolver
	Collector *perf.Collector
	Cache     CacheStatter
	Analyzer  *queryperf.Analyzer
	// Gatherer backs /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
	Logger   zerolog.Logger
}

// Server is the shopkeeper HTTP API.
type Server struct {
	addr   string
	deps   Deps
	router chi.Router
}

// New creates a Server listening on addr.
func New(addr string, deps Deps) *Server {
	s := &Server{addr: addr, deps: deps}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/health", s.handleHealth)
	r.Post("/api/chat", s.handleChat)
	r.Route("/performance", func(r chi.Router) {
		r.Get("/stats", s.handlePerformanceStats)
		r.Get("/query-stats", s.handleQueryStats)
	})
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.deps.Logger.Info().Str("addr", s.addr).Msg("shopkeeper listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.deps.Logger.Info().Msg("shutting down")
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.deps.Logger.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	})
}

type chatRequest struct {
	Question string               `json:"question"`
	History  []models.ChatMessage `json:"history,omitempty"`
}

type chatResponse struct {
	Answer    string         `json:"answer"`
	Outcome   models.Outcome `json:"outcome"`
	Intent    string         `json:"intent"`
	LatencyMs int64          `json:"latency_ms"`
	RequestID string         `json:"request_id"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res := s.deps.Resolver.ResolveDetailed(r.Context(), req.Question, req.History)
	writeJSON(w, http.StatusOK, chatResponse{
		Answer:    res.Answer,
		Outcome:   res.Outcome,
		Intent:    res.Intent,
		LatencyMs: res.Latency.Milliseconds(),
		RequestID: res.RequestID,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type performanceStats struct {
	Summary         models.PerformanceSummary `json:"summary"`
	Cache           *models.CacheStats        `json:"cache,omitempty"`
	HourlyTrend     []models.HourlyStat       `json:"hourly_trend"`
	Recommendations []string                  `json:"recommendations"`
}

func (s *Server) handlePerformanceStats(w http.ResponseWriter, _ *http.Request) {
	c := s.deps.Collector
	if c == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "performance collection disabled")
		return
	}
	out := performanceStats{
		Summary:         c.Summary(),
		HourlyTrend:     slices.Collect(c.HourlyTrend(trendHours)),
		Recommendations: c.Recommendations(),
	}
	if s.deps.Cache != nil {
		stats := s.deps.Cache.Stats()
		out.Cache = &stats
	}
	writeJSON(w, http.StatusOK, out)
}

type queryStats struct {
	Summary         models.QuerySummary      `json:"summary"`
	SlowOperations  []models.SlowOperation   `json:"slow_operations"`
	Trend           []models.QueryHourlyStat `json:"trend"`
	Recommendations []string                 `json:"recommendations"`
}

func (s *Server) handleQueryStats(w http.ResponseWriter, _ *http.Request) {
	a := s.deps.Analyzer
	if a == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "query monitoring disabled")
		return
	}
	writeJSON(w, http.StatusOK, queryStats{
		Summary:         a.Summary(),
		SlowOperations:  a.SlowOperations(slowOpsLimit),
		Trend:           slices.Collect(a.Trend(trendHours)),
		Recommendations: a.Recommendations(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error":{"message":%q,"type":"shopkeeper_error","code":%d}}`, message, code)
}
