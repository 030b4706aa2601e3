package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shopkeeper-ai/shopkeeper/pkg/server"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the customer Q&A HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(configPath, os.Stderr)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			deps := server.Deps{
				Resolver:  a.resolver,
				Collector: a.collector,
				Analyzer:  a.analyzer,
				Logger:    a.logger,
			}
			if a.cache != nil {
				deps.Cache = a.cache
			}
			if a.cfg.Performance.Prometheus {
				deps.Gatherer = a.registry
			}
			srv := server.New(a.cfg.Listen, deps)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a.logger.Info().
				Str("config", configPath).
				Str("knowledge", a.cfg.Knowledge.Backend).
				Bool("cache", a.cfg.Cache.Enabled).
				Bool("llm", a.cfg.LLM.Enabled).
				Msg("starting shopkeeper")
			return srv.ListenAndServe(ctx)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}
