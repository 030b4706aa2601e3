package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newAskCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a single question and show how it was resolved",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(configPath, os.Stderr)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			res := a.resolver.ResolveDetailed(context.Background(), strings.Join(args, " "), nil)

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, res.Answer)
			fmt.Fprintf(out, "\noutcome: %s  intent: %s  latency: %dms\n", res.Outcome, res.Intent, res.Latency.Milliseconds())
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}
