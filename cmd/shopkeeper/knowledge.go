package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shopkeeper-ai/shopkeeper/pkg/config"
	"github.com/shopkeeper-ai/shopkeeper/pkg/knowledge"
)

func newKnowledgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "knowledge",
		Short: "Manage the SQLite knowledge store",
	}
	cmd.AddCommand(newKnowledgeImportCmd())
	return cmd
}

func newKnowledgeImportCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "import <catalog.yaml>",
		Short: "Replace the stored catalog with a YAML catalog file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			cat, err := knowledge.LoadCatalog(args[0])
			if err != nil {
				return err
			}

			store, err := knowledge.OpenSQLite(cfg.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Import(cmd.Context(), *cat); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d products, %d policy sections, %d pickup locations into %s\n",
				len(cat.Products), len(cat.Policies), len(cat.PickupLocations), cfg.DBPath)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}
