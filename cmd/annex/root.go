/*
Copyright © 2024 Ryan Painter paintersrp@gmail.com

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/annex/internal/config"
)

var (
	cfgFile   string
	vaultRoot string
	cachePath string
	verbose   bool

	appSettings config.Settings
	appLogger   *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "annex",
	Short: "A local note search engine for markdown vaults.",
	Long: `annex indexes a directory of markdown notes and answers fuzzy,
filtered, and regex-backed search queries against them.

  annex index --vault ~/notes
  annex search --vault ~/notes "project plan #headings"
  annex watch --vault ~/notes
  `,
}

// Execute runs the root command, exiting with status 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initSettings, initLogger)

	rootCmd.PersistentFlags().StringVar(&vaultRoot, "vault", ".", "root directory of the markdown vault")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML settings file (defaults built in if omitted)")
	rootCmd.PersistentFlags().StringVar(&cachePath, "cache", "", "path to the file cache used to skip unchanged files (disabled if omitted)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug-level logging")
}

func initSettings() {
	settings, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "annex: loading config:", err)
		os.Exit(1)
	}
	appSettings = settings
}

func initLogger() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	appLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
