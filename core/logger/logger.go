// Package logger defines the logging interface shared by the core packages.
// Implementations live in infra/logger.
package logger

// Logger is the leveled logger passed to services, dispatchers and
// calculators.
type Logger interface {
	Debugf(format string, args ...any)
	// Debugw logs msg with structured fields, e.g. per-iteration calculator
	// values.
	Debugw(msg string, fields map[string]any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}
