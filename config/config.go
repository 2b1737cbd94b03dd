// Package config loads and validates the service configuration from
// YAML or JSON files.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	Server    ServerConfig    `json:"server" yaml:"server"`
	Bridge    BridgeConfig    `json:"bridge" yaml:"bridge"`
	Watcher   WatcherConfig   `json:"watcher" yaml:"watcher"`
	Execution ExecutionConfig `json:"execution" yaml:"execution"`
	Journal   JournalConfig   `json:"journal" yaml:"journal"`
	Defaults  DefaultsConfig  `json:"defaults" yaml:"defaults"`
}

// ServerConfig contains HTTP listener parameters
type ServerConfig struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
}

// Addr returns the host:port listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// BridgeConfig points at the venue bridge HTTP endpoint
type BridgeConfig struct {
	URL   string `json:"url" yaml:"url"`
	Token string `json:"token,omitempty" yaml:"token,omitempty"`
}

// WatcherConfig contains the TP1 automaton parameters
type WatcherConfig struct {
	PollInterval   string  `json:"poll_interval" yaml:"poll_interval"` // e.g. "500ms", "2s"
	TP1Pips        float64 `json:"tp1_pips" yaml:"tp1_pips"`
	PartialPercent float64 `json:"partial_percent" yaml:"partial_percent"`
	BEBufferPips   float64 `json:"be_buffer_pips" yaml:"be_buffer_pips"`
	MoveToBE       bool    `json:"move_to_be" yaml:"move_to_be"`
	Magic          int64   `json:"magic" yaml:"magic"`
	CommentPrefix  string  `json:"comment_prefix" yaml:"comment_prefix"`
	LockPath       string  `json:"lock_path" yaml:"lock_path"`
}

// ParsePollInterval converts the poll interval string to a duration
func (w WatcherConfig) ParsePollInterval() (time.Duration, error) {
	if w.PollInterval == "" {
		return 500 * time.Millisecond, nil
	}
	return time.ParseDuration(w.PollInterval)
}

// ExecutionConfig holds the backend half of the execution guard
type ExecutionConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// JournalConfig contains event journaling parameters
type JournalConfig struct {
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty"` // empty disables journaling
}

// DefaultsConfig holds fallback broker limits used when the venue does
// not report symbol specifications
type DefaultsConfig struct {
	MinVolume  float64 `json:"min_volume" yaml:"min_volume"`
	VolumeStep float64 `json:"volume_step" yaml:"volume_step"`
}

// LoadFromFile loads configuration from a file (YAML or JSON)
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if _, err := c.Watcher.ParsePollInterval(); err != nil {
		return fmt.Errorf("watcher.poll_interval: %w", err)
	}
	if c.Watcher.TP1Pips <= 0 {
		return fmt.Errorf("watcher.tp1_pips must be positive")
	}
	if c.Watcher.PartialPercent <= 0 || c.Watcher.PartialPercent > 100 {
		return fmt.Errorf("watcher.partial_percent must be between 0 and 100")
	}
	if c.Watcher.BEBufferPips < 0 {
		return fmt.Errorf("watcher.be_buffer_pips must not be negative")
	}
	if c.Watcher.LockPath == "" {
		return fmt.Errorf("watcher.lock_path is required")
	}
	if c.Defaults.MinVolume <= 0 {
		return fmt.Errorf("defaults.min_volume must be positive")
	}
	if c.Defaults.VolumeStep <= 0 {
		return fmt.Errorf("defaults.volume_step must be positive")
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8787,
		},
		Bridge: BridgeConfig{
			URL: "http://127.0.0.1:8765",
		},
		Watcher: WatcherConfig{
			PollInterval:   "500ms",
			TP1Pips:        30,
			PartialPercent: 50,
			BEBufferPips:   0,
			MoveToBE:       true,
			Magic:          123456,
			CommentPrefix:  "POI-Tracker",
			LockPath:       filepathDefault(),
		},
		Execution: ExecutionConfig{
			Enabled: false, // execution stays off until explicitly enabled
		},
		Journal: JournalConfig{},
		Defaults: DefaultsConfig{
			MinVolume:  0.01,
			VolumeStep: 0.01,
		},
	}
}

func filepathDefault() string {
	return os.TempDir() + string(os.PathSeparator) + "tradewatch-tp1.lock"
}
