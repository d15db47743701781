package reading

import (
	"github.com/cockroachdb/errors"

	"github.com/kilianp07/soh/core/factory"
)

// DefaultSource is used when no source type is configured.
const DefaultSource = "memory"

var sourceRegistry = factory.NewRegistry[Source]()

// RegisterSource adds a reading backend identified by name.
func RegisterSource(name string, f factory.Factory[Source]) error {
	return sourceRegistry.Register(name, f)
}

// SourceTypes lists the registered backends.
func SourceTypes() []string { return sourceRegistry.Names() }

// NewSource creates the backend named by cfg.Type. Backends holding
// connections also implement io.Closer.
func NewSource(cfg factory.ModuleConfig) (Source, error) {
	if cfg.Type == "" {
		cfg.Type = DefaultSource
	}
	src, err := sourceRegistry.Create(cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "reading source %q", cfg.Type)
	}
	return src, nil
}
