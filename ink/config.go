package ink

import "log/slog"

// Config configures the payload normalizer.
type Config struct {
	// MaxPayloadBytes caps string/byte payloads before JSON decoding
	// (default: 4 MB). Oversized payloads normalize to empty.
	MaxPayloadBytes int `json:"max_payload_bytes" yaml:"max_payload_bytes"`

	// DefaultColor is used when a stroke carries no usable color.
	DefaultColor string `json:"default_color" yaml:"default_color"`

	// DefaultSize is the stroke width when absent or non-finite (default: 4).
	DefaultSize float64 `json:"default_size" yaml:"default_size"`

	// Logger for debug messages about discarded payload parts.
	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.MaxPayloadBytes <= 0 {
		c.MaxPayloadBytes = 4 * 1024 * 1024
	}
	if c.DefaultColor == "" {
		c.DefaultColor = "#111827"
	}
	if c.DefaultSize <= 0 {
		c.DefaultSize = 4
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
