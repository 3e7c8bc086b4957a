package service

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the full inkplayd configuration.
type Config struct {
	Listen       string `yaml:"listen"`
	DBPath       string `yaml:"db_path"`
	LogLevel     string `yaml:"log_level"` // debug | info | warn | error
	StepMs       int    `yaml:"step_ms"`   // gap-fill step for missing timestamps
	GapMs        int    `yaml:"gap_ms"`    // synthetic pause between strokes
	MaxPayloadMB int    `yaml:"max_payload_mb"`
}

// DefaultConfig returns sane defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:       ":8086",
		DBPath:       "inkplay.db",
		LogLevel:     "info",
		StepMs:       10,
		GapMs:        150,
		MaxPayloadMB: 4,
	}
}

// LoadConfig reads and parses a YAML config file. Returns DefaultConfig merged with the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.StepMs <= 0 {
		return fmt.Errorf("step_ms must be > 0")
	}
	if c.GapMs < 0 {
		return fmt.Errorf("gap_ms must be >= 0")
	}
	if c.MaxPayloadMB <= 0 {
		return fmt.Errorf("max_payload_mb must be > 0")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn or error, got %q", c.LogLevel)
	}
	return nil
}
