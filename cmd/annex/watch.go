package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	svcindex "github.com/Paintersrp/annex/internal/services/index"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Index a vault and keep the index up to date as files change, until interrupted.",
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	svc, err := svcindex.NewService(svcindex.Options{
		VaultRoot: vaultRoot,
		Settings:  appSettings,
		CachePath: cachePath,
		Logger:    appLogger,
	})
	if err != nil {
		return fmt.Errorf("annex: %w", err)
	}
	defer func() {
		_ = svc.Close()
		if cachePath != "" {
			if err := svc.SaveCache(cachePath); err != nil {
				fmt.Fprintln(os.Stderr, "annex: saving cache:", err)
			}
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("annex: %w", err)
	}

	stats := svc.Stats()
	fmt.Printf("watching %s (%d documents indexed, lazy body pass running in background)\n", vaultRoot, stats.TotalDocs)

	<-ctx.Done()
	fmt.Println("annex: shutting down")
	return nil
}
