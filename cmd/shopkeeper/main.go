package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shopkeeper-ai/shopkeeper/pkg/config"
)

var version = "dev"

func main() {
	var envFiles []string

	root := &cobra.Command{
		Use:           "shopkeeper",
		Short:         "Shopkeeper answers customer questions from the shop catalog, cache and LLM",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadEnvFiles(envFiles...)
		},
	}
	root.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "env files loaded before the config is read")

	root.AddCommand(
		newServeCmd(),
		newAskCmd(),
		newStatsCmd(),
		newKnowledgeCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func addConfigFlag(cmd *cobra.Command, path *string) {
	cmd.Flags().StringVarP(path, "config", "c", "shopkeeper.yaml", "path to config file")
}
