package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	coreindex "github.com/Paintersrp/annex/internal/index"
	"github.com/Paintersrp/annex/internal/query"
	svcindex "github.com/Paintersrp/annex/internal/services/index"
	"github.com/Paintersrp/annex/internal/vault"
)

var (
	searchLimit  int
	searchStream bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Index a vault and run a single query against it, printing ranked results.",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "maximum number of results to print")
	searchCmd.Flags().BoolVar(&searchStream, "stream", false, "print results progressively as they are found")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
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

	parsed, parseErrs := query.ParseWithErrors(args[0], appSettings)
	for _, pe := range parseErrs {
		fmt.Printf("warning: %s (position %d)\n", pe.Message, pe.Position)
	}

	opts := coreindex.Options{Limit: searchLimit}
	if !searchStream {
		results, err := svc.Query(parsed, opts)
		if err != nil {
			return fmt.Errorf("annex: %w", err)
		}
		printResults(results)
		return nil
	}

	_, err = svc.QueryStream(parsed, opts, func(batch []coreindex.Result) {
		printResults(batch)
	})
	if err != nil {
		return fmt.Errorf("annex: %w", err)
	}
	return nil
}

func printResults(results []coreindex.Result) {
	for _, r := range results {
		fields := make([]string, 0, len(r.Spans))
		for _, s := range r.Spans {
			fields = append(fields, string(s.Field))
		}
		if len(fields) == 0 {
			fmt.Printf("%.4f  %s\n", r.Score, r.ID)
			continue
		}
		fmt.Printf("%.4f  %s  (matched: %s)\n", r.Score, r.ID, strings.Join(fields, ", "))
	}
}
