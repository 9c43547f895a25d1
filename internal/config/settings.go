// Package config loads the settings that parameterize the search core:
// commands-mode detection, normalization, scorer weights, and indexer
// limits. Settings are read through viper from an optional YAML file, with
// the documented defaults applied when a key is absent.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// CommandsConfig controls commands-mode detection in the query parser.
type CommandsConfig struct {
	EnablePrefix bool   `yaml:"enable_prefix" json:"enable_prefix" mapstructure:"enable_prefix"`
	PrefixChar   string `yaml:"prefix_char"   json:"prefix_char"   mapstructure:"prefix_char"`
}

// Weights holds the per-field multipliers consumed by the scorer.
type Weights struct {
	Title    float64 `yaml:"title"    json:"title"    mapstructure:"title"`
	Headings float64 `yaml:"headings" json:"headings" mapstructure:"headings"`
	Path     float64 `yaml:"path"     json:"path"     mapstructure:"path"`
	Tags     float64 `yaml:"tags"     json:"tags"     mapstructure:"tags"`
	Symbols  float64 `yaml:"symbols"  json:"symbols"  mapstructure:"symbols"`
	Body     float64 `yaml:"body"     json:"body"     mapstructure:"body"`
	Recency  float64 `yaml:"recency"  json:"recency"  mapstructure:"recency"`
}

// SearchConfig controls normalization, regex post-filtering, and scoring.
type SearchConfig struct {
	PreserveDiacritics  bool     `yaml:"preserve_diacritics"     json:"preserve_diacritics"     mapstructure:"preserve_diacritics"`
	RegexCandidateK     int      `yaml:"regex_candidate_k"       json:"regex_candidate_k"       mapstructure:"regex_candidate_k"`
	IncludeCodeBlocks   bool     `yaml:"include_code_blocks"     json:"include_code_blocks"     mapstructure:"include_code_blocks"`
	ExcludeFolders      []string `yaml:"exclude_folders"         json:"exclude_folders"         mapstructure:"exclude_folders"`
	Weights             Weights  `yaml:"weights"                 json:"weights"                 mapstructure:"weights"`
	RecencyHalfLifeDays float64  `yaml:"recency_half_life_days"  json:"recency_half_life_days"  mapstructure:"recency_half_life_days"`
}

// IndexerConfig bounds the corpus the vault indexer is willing to hold.
type IndexerConfig struct {
	MaxBodyBytes int `yaml:"max_body_bytes" json:"max_body_bytes" mapstructure:"max_body_bytes"`
	MaxDocs      int `yaml:"max_docs"       json:"max_docs"       mapstructure:"max_docs"`
}

// Settings is the full set of options the search core recognizes (§6).
type Settings struct {
	Commands CommandsConfig `yaml:"commands" json:"commands" mapstructure:"commands"`
	Search   SearchConfig   `yaml:"search"   json:"search"   mapstructure:"search"`
	Indexer  IndexerConfig  `yaml:"indexer"  json:"indexer"  mapstructure:"indexer"`
}

// Default returns the documented defaults for every recognized option.
func Default() Settings {
	return Settings{
		Commands: CommandsConfig{
			EnablePrefix: true,
			PrefixChar:   ">",
		},
		Search: SearchConfig{
			PreserveDiacritics: true,
			RegexCandidateK:    300,
			IncludeCodeBlocks:  false,
			ExcludeFolders:     nil,
			Weights: Weights{
				Title:    4.0,
				Headings: 2.0,
				Path:     1.5,
				Tags:     1.5,
				Symbols:  1.5,
				Body:     1.0,
				Recency:  0.5,
			},
			RecencyHalfLifeDays: 30,
		},
		Indexer: IndexerConfig{
			MaxBodyBytes: 2 << 20, // 2 MiB
			MaxDocs:      50000,
		},
	}
}

// Load reads settings from the YAML file at path, falling back to defaults
// for any key the file omits or that does not exist at all. The empty
// path loads pure defaults.
func Load(path string) (Settings, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	defaults := Default()
	bindDefaults(v, defaults)

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return Settings{}, fmt.Errorf("config: reading %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return Settings{}, fmt.Errorf("config: stat %s: %w", path, err)
		}
	}

	var out Settings
	if err := v.Unmarshal(&out); err != nil {
		return Settings{}, fmt.Errorf("config: decoding settings: %w", err)
	}

	out.normalize()
	return out, nil
}

func bindDefaults(v *viper.Viper, d Settings) {
	v.SetDefault("commands.enable_prefix", d.Commands.EnablePrefix)
	v.SetDefault("commands.prefix_char", d.Commands.PrefixChar)
	v.SetDefault("search.preserve_diacritics", d.Search.PreserveDiacritics)
	v.SetDefault("search.regex_candidate_k", d.Search.RegexCandidateK)
	v.SetDefault("search.include_code_blocks", d.Search.IncludeCodeBlocks)
	v.SetDefault("search.exclude_folders", d.Search.ExcludeFolders)
	v.SetDefault("search.weights.title", d.Search.Weights.Title)
	v.SetDefault("search.weights.headings", d.Search.Weights.Headings)
	v.SetDefault("search.weights.path", d.Search.Weights.Path)
	v.SetDefault("search.weights.tags", d.Search.Weights.Tags)
	v.SetDefault("search.weights.symbols", d.Search.Weights.Symbols)
	v.SetDefault("search.weights.body", d.Search.Weights.Body)
	v.SetDefault("search.weights.recency", d.Search.Weights.Recency)
	v.SetDefault("search.recency_half_life_days", d.Search.RecencyHalfLifeDays)
	v.SetDefault("indexer.max_body_bytes", d.Indexer.MaxBodyBytes)
	v.SetDefault("indexer.max_docs", d.Indexer.MaxDocs)
}

func (s *Settings) normalize() {
	s.Commands.PrefixChar = strings.TrimSpace(s.Commands.PrefixChar)
	if s.Commands.PrefixChar == "" {
		s.Commands.PrefixChar = ">"
	}
	if s.Search.RegexCandidateK <= 0 {
		s.Search.RegexCandidateK = 300
	}
	if s.Indexer.MaxBodyBytes <= 0 {
		s.Indexer.MaxBodyBytes = 2 << 20
	}
	if s.Indexer.MaxDocs <= 0 {
		s.Indexer.MaxDocs = 50000
	}
	cleaned := make([]string, 0, len(s.Search.ExcludeFolders))
	for _, folder := range s.Search.ExcludeFolders {
		folder = filepath.ToSlash(strings.TrimSpace(folder))
		if folder != "" {
			cleaned = append(cleaned, folder)
		}
	}
	s.Search.ExcludeFolders = cleaned
}
