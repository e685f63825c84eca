// Package config loads aggregation and store settings from TOML or YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/Dicklesworthstone/quorum/internal/aggregate"
	"github.com/Dicklesworthstone/quorum/internal/store"
)

// Config is the full on-disk configuration.
type Config struct {
	Pipeline PipelineConfig `toml:"pipeline" yaml:"pipeline"`
	Store    StoreConfig    `toml:"store" yaml:"store"`
}

// PipelineConfig tunes the aggregation pipeline.
type PipelineConfig struct {
	// DedupeThreshold is the near-duplicate similarity cutoff.
	DedupeThreshold float64 `toml:"dedupe_threshold" yaml:"dedupe_threshold"`

	// VariantThreshold flags divergent responses in consensus building.
	VariantThreshold float64 `toml:"variant_threshold" yaml:"variant_threshold"`

	// InsightThreshold marks sentences as platform-unique below it.
	InsightThreshold float64 `toml:"insight_threshold" yaml:"insight_threshold"`

	// LengthTarget is short, medium, or long.
	LengthTarget string `toml:"length_target" yaml:"length_target"`

	// Weights for the four scoring heuristics.
	Weights WeightsConfig `toml:"weights" yaml:"weights"`
}

// WeightsConfig weights the scoring heuristics.
type WeightsConfig struct {
	Length       float64 `toml:"length" yaml:"length"`
	CodeQuality  float64 `toml:"code_quality" yaml:"code_quality"`
	Clarity      float64 `toml:"clarity" yaml:"clarity"`
	Completeness float64 `toml:"completeness" yaml:"completeness"`
}

// StoreConfig tunes the response store.
type StoreConfig struct {
	// Path is the sqlite file location; ~ expands to the home directory.
	Path string `toml:"path" yaml:"path"`

	// MaxVersions caps per-prompt history before eviction.
	MaxVersions int `toml:"max_versions" yaml:"max_versions"`
}

// Default returns the built-in configuration.
func Default() *Config {
	weights := aggregate.DefaultScoreWeights()
	return &Config{
		Pipeline: PipelineConfig{
			DedupeThreshold:  aggregate.DefaultDedupeConfig().Threshold,
			VariantThreshold: aggregate.DefaultConsensusConfig().VariantThreshold,
			InsightThreshold: 0.35,
			LengthTarget:     aggregate.TargetMedium.String(),
			Weights: WeightsConfig{
				Length:       weights.Length,
				CodeQuality:  weights.CodeQuality,
				Clarity:      weights.Clarity,
				Completeness: weights.Completeness,
			},
		},
		Store: StoreConfig{
			Path:        "~/.local/share/quorum/responses.db",
			MaxVersions: store.DefaultMaxVersions,
		},
	}
}

// Load reads a config file, TOML by default and YAML for .yaml/.yml
// extensions, layered over Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault reads a config file, falling back to defaults when the
// file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate rejects thresholds outside (0,1] and unknown length targets.
func (c *Config) validate() error {
	for name, v := range map[string]float64{
		"dedupe_threshold":  c.Pipeline.DedupeThreshold,
		"variant_threshold": c.Pipeline.VariantThreshold,
		"insight_threshold": c.Pipeline.InsightThreshold,
	} {
		if v <= 0 || v > 1 {
			return fmt.Errorf("%s must be in (0,1], got %v", name, v)
		}
	}
	if !aggregate.LengthTarget(c.Pipeline.LengthTarget).IsValid() {
		return fmt.Errorf("unknown length_target %q", c.Pipeline.LengthTarget)
	}
	return nil
}

// AggregateConfig converts to the pipeline configuration.
func (c *Config) AggregateConfig() aggregate.Config {
	cfg := aggregate.DefaultConfig()
	cfg.Dedupe.Threshold = c.Pipeline.DedupeThreshold
	cfg.Consensus.VariantThreshold = c.Pipeline.VariantThreshold
	cfg.InsightThreshold = c.Pipeline.InsightThreshold
	cfg.LengthTarget = aggregate.LengthTarget(c.Pipeline.LengthTarget)
	cfg.Weights = aggregate.ScoreWeights{
		Length:       c.Pipeline.Weights.Length,
		CodeQuality:  c.Pipeline.Weights.CodeQuality,
		Clarity:      c.Pipeline.Weights.Clarity,
		Completeness: c.Pipeline.Weights.Completeness,
	}
	return cfg
}

// StoreOptions converts to store open options.
func (c *Config) StoreOptions() store.Options {
	return store.Options{MaxVersions: c.Store.MaxVersions}
}

// StorePath returns the store path with a leading ~ expanded.
func (c *Config) StorePath() string {
	path := c.Store.Path
	if strings.HasPrefix(path, "~/") || path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}
	return path
}
