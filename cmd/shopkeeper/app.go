package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/shopkeeper-ai/shopkeeper/pkg/cache"
	"github.com/shopkeeper-ai/shopkeeper/pkg/config"
	"github.com/shopkeeper-ai/shopkeeper/pkg/intent"
	"github.com/shopkeeper-ai/shopkeeper/pkg/knowledge"
	"github.com/shopkeeper-ai/shopkeeper/pkg/llm"
	"github.com/shopkeeper-ai/shopkeeper/pkg/logging"
	"github.com/shopkeeper-ai/shopkeeper/pkg/perf"
	"github.com/shopkeeper-ai/shopkeeper/pkg/queryperf"
	"github.com/shopkeeper-ai/shopkeeper/pkg/resolver"
	"github.com/shopkeeper-ai/shopkeeper/pkg/tracker"
)

const redisPingTimeout = 2 * time.Second

// app holds every component built from a Config.
type app struct {
	cfg       *config.Config
	logger    zerolog.Logger
	resolver  *resolver.Resolver
	cache     *cache.Cache
	collector *perf.Collector
	analyzer  *queryperf.Analyzer
	registry  *prometheus.Registry
	journal   *tracker.SQLiteJournal

	closers []func() error
}

func loadApp(configPath string, logOut io.Writer) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return newApp(cfg, logOut)
}

// newApp builds every component from cfg. On failure, components opened so
// far are closed before the error is returned.
func newApp(cfg *config.Config, logOut io.Writer) (*app, error) {
	a := &app{
		cfg:    cfg,
		logger: logging.New(cfg.Log, logOut),
	}
	if err := a.build(); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) build() error {
	cfg := a.cfg

	store, err := openKnowledge(cfg)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, store.Close)

	classifier := intent.NewClassifier()

	if cfg.Cache.Enabled {
		if a.cache, err = a.openCache(classifier); err != nil {
			return err
		}
	}

	a.registry = prometheus.NewRegistry()
	collectorOpts := []perf.Option{
		perf.WithWindowSize(cfg.Performance.WindowSize),
		perf.WithLogger(a.logger),
	}
	if cfg.Performance.Prometheus {
		a.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		collectorOpts = append(collectorOpts, perf.WithRegisterer(a.registry))
	}
	a.collector = perf.NewCollector(collectorOpts...)

	a.analyzer = queryperf.New(queryperf.Options{
		SlowThreshold: cfg.Performance.SlowQueryThreshold,
		SlowLogSize:   cfg.Performance.SlowLogSize,
		Logger:        a.logger,
	})

	deps := resolver.Deps{
		Classifier: classifier,
		Search:     store,
		Texts:      store,
		Recorder:   a.collector,
		Analyzer:   a.analyzer,
		Logger:     a.logger,
	}
	if a.cache != nil {
		deps.Cache = a.cache
	}

	if cfg.LLM.Enabled {
		client, err := llm.FromConfig(cfg.LLM, a.logger)
		if err != nil {
			return fmt.Errorf("init llm: %w", err)
		}
		deps.Gateway = client
	}

	if cfg.Journal.Enabled {
		if a.journal, err = tracker.New(cfg.DBPath); err != nil {
			return fmt.Errorf("init journal: %w", err)
		}
		a.closers = append(a.closers, a.journal.Close)
		deps.Journal = a.journal
	}

	a.resolver, err = resolver.New(deps, resolver.Options{
		SystemPrompt: cfg.LLM.SystemPrompt,
		HistoryTurns: cfg.LLM.HistoryTurns,
		LLMTimeout:   cfg.LLM.Timeout,
	})
	return err
}

func openKnowledge(cfg *config.Config) (knowledge.Store, error) {
	switch cfg.Knowledge.Backend {
	case "sqlite":
		s, err := knowledge.OpenSQLite(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("init knowledge: %w", err)
		}
		return s, nil
	default:
		s, err := knowledge.OpenFileStore(cfg.Knowledge.Path)
		if err != nil {
			return nil, fmt.Errorf("init knowledge: %w", err)
		}
		return s, nil
	}
}

func (a *app) openCache(classifier *intent.Classifier) (*cache.Cache, error) {
	cc := a.cfg.Cache

	var store cache.Store
	switch cc.Backend {
	case "redis":
		rs, err := cache.OpenRedisStore(cc.RedisURL, cc.KeyPrefix)
		if err != nil {
			return nil, fmt.Errorf("init cache: %w", err)
		}
		a.closers = append(a.closers, rs.Close)

		ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
		defer cancel()
		if err := rs.Ping(ctx); err != nil {
			a.logger.Warn().Err(err).Msg("redis unreachable, cache lookups will miss until it recovers")
		}
		store = rs
	default:
		store = cache.NewMemoryStore(time.Minute)
	}

	return cache.New(cache.Options{
		Store:            store,
		Classifier:       classifier,
		TTLs:             cache.TTLsFromConfig(cc.TTL, cc.DefaultTTL),
		Threshold:        cc.SimilarityThreshold,
		ScanLimit:        cc.ScanLimit,
		MaxEntries:       cc.MaxEntries,
		MaxQuestionRunes: cc.MaxQuestionLength,
		Logger:           a.logger,
	}), nil
}

// Close releases components in reverse order of creation.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
