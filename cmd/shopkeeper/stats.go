package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/shopkeeper-ai/shopkeeper/pkg/config"
	"github.com/shopkeeper-ai/shopkeeper/pkg/tracker"
)

func newStatsCmd() *cobra.Command {
	var (
		configPath string
		since      time.Duration
		recent     int
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show resolution outcomes from the interaction journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			j, err := tracker.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer j.Close()

			ctx := context.Background()
			out := cmd.OutOrStdout()

			// Recent interactions view
			if recent > 0 {
				recs, err := j.Recent(ctx, recent)
				if err != nil {
					return err
				}
				if len(recs) == 0 {
					fmt.Fprintln(out, "No interactions recorded.")
					return nil
				}
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "TIME\tOUTCOME\tINTENT\tLATENCY\tQUESTION")
				for _, r := range recs {
					fmt.Fprintf(w, "%s\t%s\t%s\t%dms\t%s\n",
						r.CreatedAt.Local().Format("2006-01-02T15:04:05"), r.Outcome, r.Intent, r.LatencyMs, truncate(r.Question, 40))
				}
				return w.Flush()
			}

			var from time.Time
			if since > 0 {
				from = time.Now().Add(-since)
			}
			summary, err := j.Summary(ctx, from)
			if err != nil {
				return err
			}
			if len(summary) == 0 {
				fmt.Fprintln(out, "No interactions recorded.")
				return nil
			}

			var total int64
			for _, s := range summary {
				total += s.Count
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "OUTCOME\tCOUNT\tSHARE\tAVG LATENCY")
			for _, s := range summary {
				fmt.Fprintf(w, "%s\t%d\t%.1f%%\t%.0fms\n",
					s.Outcome, s.Count, 100*float64(s.Count)/float64(total), s.AvgLatencyMs)
			}
			fmt.Fprintf(w, "TOTAL\t%d\t\t\n", total)
			return w.Flush()
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().DurationVar(&since, "since", 0, "only count interactions newer than this (e.g. 24h)")
	cmd.Flags().IntVar(&recent, "recent", 0, "list the most recent N interactions instead of the summary")
	return cmd
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
