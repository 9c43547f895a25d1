package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	svcindex "github.com/Paintersrp/annex/internal/services/index"
	"github.com/Paintersrp/annex/internal/vault"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the search index for a vault and report how many documents were indexed.",
	RunE:  runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	svc, err := svcindex.NewService(svcindex.Options{
		VaultRoot: vaultRoot,
		Settings:  appSettings,
		CachePath: cachePath,
		Logger:    appLogger,
	})
	if err != nil {
		return fmt.Errorf("annex: %w", err)
	}
	defer svc.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := svc.IndexCold(); err != nil {
		return fmt.Errorf("annex: %w", err)
	}
	if err := svc.RunBodyPassToCompletion(ctx, vault.DefaultBatchConfig()); err != nil {
		return fmt.Errorf("annex: body pass: %w", err)
	}

	stats := svc.Stats()
	fmt.Printf("indexed %d document(s) from %s\n", stats.TotalDocs, vaultRoot)
	return nil
}
