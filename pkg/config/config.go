// Package config loads taskroute configuration from YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/zen-systems/taskroute/pkg/schema"
	"github.com/zen-systems/taskroute/pkg/score"
)

// Config is the top-level taskroute configuration.
type Config struct {
	// RegistryPath is the YAML file the provider registry snapshot is read from.
	RegistryPath string `yaml:"registry_path"`
	// DBPath is the SQLite plan store location.
	DBPath string `yaml:"db_path"`
	// AuditDir holds per-task JSONL event logs. Empty disables the audit sink.
	AuditDir string `yaml:"audit_dir,omitempty"`
	// FallbackDepth is how many runner-up instances a plan records.
	FallbackDepth int `yaml:"fallback_depth,omitempty"`
	// Weights override the scoring formula; zero fields take defaults.
	Weights *score.Weights `yaml:"weights,omitempty"`
	// ExtraRules adds keyword triggers to the built-in extraction tables.
	ExtraRules map[schema.Tag][]string `yaml:"extra_rules,omitempty"`
	// Debug enables development logging.
	Debug bool `yaml:"debug,omitempty"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns the default configuration rooted under the user home.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	base := baseDir()
	if cfg.RegistryPath == "" {
		cfg.RegistryPath = filepath.Join(base, "registry.yaml")
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(base, "router.db")
	}
	if cfg.AuditDir == "" {
		cfg.AuditDir = filepath.Join(base, "audit")
	}
	if cfg.FallbackDepth <= 0 {
		cfg.FallbackDepth = 3
	}
	if cfg.Weights == nil {
		w := score.DefaultWeights()
		cfg.Weights = &w
	} else {
		fillWeights(cfg.Weights)
	}
}

// fillWeights replaces zero fields with their defaults so a partial weights
// block in the file does not silently zero out the rest of the formula.
func fillWeights(w *score.Weights) {
	d := score.DefaultWeights()
	if w.Base == 0 {
		w.Base = d.Base
	}
	if w.NeedMatch == 0 {
		w.NeedMatch = d.NeedMatch
	}
	if w.ContextBonus == 0 {
		w.ContextBonus = d.ContextBonus
	}
	if w.ContextPenalty == 0 {
		w.ContextPenalty = d.ContextPenalty
	}
	if w.LatencyBonus == 0 {
		w.LatencyBonus = d.LatencyBonus
	}
	if w.LocalBonus == 0 {
		w.LocalBonus = d.LocalBonus
	}
	if w.CloudPenalty == 0 {
		w.CloudPenalty = d.CloudPenalty
	}
}

func baseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".taskroute"
	}
	return filepath.Join(home, ".taskroute")
}
