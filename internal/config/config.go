package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config holds all daylog configuration.
type Config struct {
	Paths      PathsConfig      `toml:"paths"`
	Capture    CaptureConfig    `toml:"capture"`
	Narrative  NarrativeConfig  `toml:"narrative"`
	Heuristics HeuristicsConfig `toml:"heuristics"`
	Redact     RedactConfig     `toml:"redact"`
	Archive    ArchiveConfig    `toml:"archive"`
}

type PathsConfig struct {
	LogDir   string `toml:"log_dir"`
	OutDir   string `toml:"out_dir"`
	StateDir string `toml:"state_dir"`
}

type CaptureConfig struct {
	IntervalSeconds int `toml:"interval_seconds"`
}

type NarrativeConfig struct {
	HourEnabled      bool   `toml:"hour_enabled"`
	DayEnabled       bool   `toml:"day_enabled"`
	HourEnrich       bool   `toml:"hour_enrich"`
	SegmentEnabled   bool   `toml:"segment_enabled"`
	Model            string `toml:"model"`
	APIKeyEnv        string `toml:"api_key_env"`
	BaseURL          string `toml:"base_url"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
	MinActiveSeconds int    `toml:"min_active_seconds"`
	MaxHours         int    `toml:"max_hours"`
}

// HeuristicsConfig gathers the tunable thresholds of the text pipeline in one
// place so they can be adjusted and tested independently of the fold logic.
type HeuristicsConfig struct {
	MaxKeywords         int     `toml:"max_keywords"`
	MaxSnippets         int     `toml:"max_snippets"`
	CommonTextMinCount  int     `toml:"common_text_min_count"`
	CommonTextCap       int     `toml:"common_text_cap"`
	MaxClusters         int     `toml:"max_clusters"`
	SimilarityThreshold float64 `toml:"similarity_threshold"`
}

type RedactConfig struct {
	Email      bool `toml:"email"`
	Secrets    bool `toml:"secrets"`
	CreditCard bool `toml:"credit_card"`
	AuthNearby bool `toml:"auth_nearby"`
}

type ArchiveConfig struct {
	Compress bool `toml:"compress"`
}

// DefaultConfig returns config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Paths: PathsConfig{
			LogDir:   "~/daylog/logs",
			OutDir:   "~/daylog/out",
			StateDir: "~/daylog/state",
		},
		Capture: CaptureConfig{
			IntervalSeconds: 300,
		},
		Narrative: NarrativeConfig{
			HourEnabled:      true,
			DayEnabled:       true,
			HourEnrich:       true,
			SegmentEnabled:   false,
			Model:            "gpt-5-nano",
			APIKeyEnv:        "OPENAI_API_KEY",
			BaseURL:          "https://api.openai.com/v1",
			TimeoutSeconds:   180,
			MinActiveSeconds: 120,
			MaxHours:         24,
		},
		Heuristics: HeuristicsConfig{
			MaxKeywords:         8,
			MaxSnippets:         3,
			CommonTextMinCount:  2,
			CommonTextCap:       20,
			MaxClusters:         3,
			SimilarityThreshold: 0.88,
		},
		Redact: RedactConfig{
			Email:      true,
			Secrets:    true,
			CreditCard: true,
			AuthNearby: true,
		},
		Archive: ArchiveConfig{
			Compress: true,
		},
	}
}

// Load reads config from the standard path, falling back to defaults.
func Load() (Config, error) {
	cfg := DefaultConfig()

	for _, p := range configPaths() {
		if _, err := os.Stat(p); err == nil {
			if _, err := toml.DecodeFile(p, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", p, err)
			}
			break
		}
	}

	cfg.Paths.LogDir = expandHome(cfg.Paths.LogDir)
	cfg.Paths.OutDir = expandHome(cfg.Paths.OutDir)
	cfg.Paths.StateDir = expandHome(cfg.Paths.StateDir)

	if cfg.Capture.IntervalSeconds <= 0 {
		cfg.Capture.IntervalSeconds = 300
	}
	// Keep a sane lower bound to avoid too aggressive timeouts.
	if cfg.Narrative.TimeoutSeconds < 30 {
		cfg.Narrative.TimeoutSeconds = 30
	}

	return cfg, nil
}

func configPaths() []string {
	var paths []string

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, "daylog", "config.toml"))
	}

	home, _ := os.UserHomeDir()
	if home != "" {
		paths = append(paths, filepath.Join(home, ".config", "daylog", "config.toml"))
	}

	return paths
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// RunDir returns the per-run artifact directory for one (date, run-id) pair.
func (c Config) RunDir(date, runID string) string {
	return filepath.Join(c.Paths.OutDir, date, runID)
}

// LogPath returns the observation log path for a date (uncompressed form).
func (c Config) LogPath(date string) string {
	return filepath.Join(c.Paths.LogDir, date+".jsonl")
}
