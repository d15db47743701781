package config

import (
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// LoggingConfig defines the log level and output format.
type LoggingConfig struct {
	// Level is a zerolog level name: trace, debug, info, warn, error.
	Level string `json:"level"`
	// Format is "json" or "console". Empty follows APP_ENV.
	Format string `json:"format"`
}

// SetDefaults applies sane defaults.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
}

// Validate checks the level and format names.
func (c LoggingConfig) Validate() error {
	if _, err := zerolog.ParseLevel(c.Level); err != nil {
		return errors.Newf("unknown level %q", c.Level)
	}
	if c.Format != "" && c.Format != "json" && c.Format != "console" {
		return errors.Newf("unknown format %q", c.Format)
	}
	return nil
}
