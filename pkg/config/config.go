package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for canvas-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3460"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Metadata holds the Column Record Store connection settings.
	Metadata MetadataConfig `yaml:"metadata"`

	// Runner holds the workflow execution backend connection settings.
	Runner RunnerConfig `yaml:"runner"`

	// Sync holds the debounce windows for the synchronization engine.
	Sync SyncConfig `yaml:"sync"`
}

// MetadataConfig holds Column Record Store settings.
type MetadataConfig struct {
	BaseURL        string `yaml:"base_url" env:"METADATA_BASE_URL" env-default:"http://localhost:3450"`
	TimeoutSeconds int    `yaml:"timeout_seconds" env:"METADATA_TIMEOUT_SECONDS" env-default:"30"`
}

// RunnerConfig holds execution backend settings.
type RunnerConfig struct {
	BaseURL        string `yaml:"base_url" env:"RUNNER_BASE_URL" env-default:"http://localhost:3455"`
	TimeoutSeconds int    `yaml:"timeout_seconds" env:"RUNNER_TIMEOUT_SECONDS" env-default:"120"`
}

// SyncConfig holds the debounce windows used by the synchronization engine.
// Values are in milliseconds to match the UI event cadence they pace.
type SyncConfig struct {
	BoardSaveDebounceMs int `yaml:"board_save_debounce_ms" env:"BOARD_SAVE_DEBOUNCE_MS" env-default:"600"`
	GraphSaveDebounceMs int `yaml:"graph_save_debounce_ms" env:"GRAPH_SAVE_DEBOUNCE_MS" env-default:"800"`
	SelectionEchoMs     int `yaml:"selection_echo_ms" env:"SELECTION_ECHO_MS" env-default:"150"`
}

// BoardSaveDebounce returns the board save debounce window as a duration.
func (s *SyncConfig) BoardSaveDebounce() time.Duration {
	return time.Duration(s.BoardSaveDebounceMs) * time.Millisecond
}

// GraphSaveDebounce returns the per-column graph save debounce window as a duration.
func (s *SyncConfig) GraphSaveDebounce() time.Duration {
	return time.Duration(s.GraphSaveDebounceMs) * time.Millisecond
}

// SelectionEchoWindow returns the selection echo suppression window as a duration.
func (s *SyncConfig) SelectionEchoWindow() time.Duration {
	return time.Duration(s.SelectionEchoMs) * time.Millisecond
}

// Timeout returns the metadata request timeout as a duration.
func (m *MetadataConfig) Timeout() time.Duration {
	return time.Duration(m.TimeoutSeconds) * time.Second
}

// Timeout returns the runner request timeout as a duration.
func (r *RunnerConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// validate checks that the external service URLs parse and the debounce
// windows are positive.
func (c *Config) validate() error {
	if _, err := url.Parse(c.Metadata.BaseURL); err != nil {
		return fmt.Errorf("invalid metadata base URL: %w", err)
	}
	if _, err := url.Parse(c.Runner.BaseURL); err != nil {
		return fmt.Errorf("invalid runner base URL: %w", err)
	}
	if c.Sync.BoardSaveDebounceMs <= 0 || c.Sync.GraphSaveDebounceMs <= 0 || c.Sync.SelectionEchoMs <= 0 {
		return fmt.Errorf("debounce windows must be positive")
	}
	return nil
}
