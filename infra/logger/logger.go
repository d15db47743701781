// Package logger adapts zerolog to the core Logger interface. Every
// component (dispatcher, calculators, stores, MQTT) gets its own child logger
// tagged with a "component" field.
package logger

import corelogger "github.com/kilianp07/soh/core/logger"

type Logger = corelogger.Logger

// NopLogger discards everything; tests pass it where output is irrelevant.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any)         {}
func (NopLogger) Debugw(string, map[string]any) {}
func (NopLogger) Infof(string, ...any)          {}
func (NopLogger) Warnf(string, ...any)          {}
func (NopLogger) Errorf(string, ...any)         {}

// New returns the logger of component, e.g. New("dispatcher"). Output follows
// the logging section of the service config once Configure has run; before
// that APP_ENV=dev selects the console writer.
func New(component string) Logger {
	return NewZerologLogger(component)
}
