package schedule

import (
	"io"

	"github.com/cockroachdb/errors"

	"github.com/kilianp07/soh/core/factory"
)

// Store is a Repository holding resources released by Close.
type Store interface {
	Repository
	io.Closer
}

// DefaultStore is used when no store type is configured.
const DefaultStore = "memory"

var storeRegistry = factory.NewRegistry[Store]()

// RegisterStore adds a repository backend identified by name.
func RegisterStore(name string, f factory.Factory[Store]) error {
	return storeRegistry.Register(name, f)
}

// StoreTypes lists the registered backends.
func StoreTypes() []string { return storeRegistry.Names() }

// NewStore creates the backend named by cfg.Type.
func NewStore(cfg factory.ModuleConfig) (Store, error) {
	if cfg.Type == "" {
		cfg.Type = DefaultStore
	}
	st, err := storeRegistry.Create(cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "schedule store %q", cfg.Type)
	}
	return st, nil
}
