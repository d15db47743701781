package config

import "github.com/cockroachdb/errors"

// SentryConfig enables error reporting of calculator and dispatcher failures.
// Reporting is off while DSN is empty.
type SentryConfig struct {
	DSN              string  `json:"dsn"`
	Environment      string  `json:"environment"`
	Release          string  `json:"release"`
	ServerName       string  `json:"server_name"`
	TracesSampleRate float64 `json:"traces_sample_rate"`
}

// Enabled reports whether a DSN is configured.
func (c SentryConfig) Enabled() bool { return c.DSN != "" }

func (c SentryConfig) Validate() error {
	if c.TracesSampleRate < 0 || c.TracesSampleRate > 1 {
		return errors.Newf("traces_sample_rate %v out of [0,1]", c.TracesSampleRate)
	}
	return nil
}
