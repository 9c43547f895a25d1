package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective settings (defaults merged with any --config file).",
	RunE:  runConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	out, err := yaml.Marshal(appSettings)
	if err != nil {
		return fmt.Errorf("annex: marshalling settings: %w", err)
	}
	fmt.Print(string(out))
	return nil
}
