package store

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/kilianp07/soh/core/factory"
	"github.com/kilianp07/soh/core/schedule"
	"github.com/kilianp07/soh/infra/store/postgres"
	"github.com/kilianp07/soh/infra/store/sqlite"
)

// ConnectTimeout bounds the initial connection of network backends.
var ConnectTimeout = 10 * time.Second

func init() {
	_ = schedule.RegisterStore("memory", func(map[string]any) (schedule.Store, error) {
		return schedule.NewMemoryRepository(), nil
	})

	_ = schedule.RegisterStore("sqlite", func(conf map[string]any) (schedule.Store, error) {
		var c struct {
			Path string `json:"path"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Path == "" {
			return nil, errors.New("sqlite store requires path")
		}
		return sqlite.Open(c.Path)
	})

	_ = schedule.RegisterStore("postgres", func(conf map[string]any) (schedule.Store, error) {
		c := postgres.Config{Migrate: true}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.DSN == "" {
			return nil, errors.New("postgres store requires dsn")
		}
		ctx, cancel := context.WithTimeout(context.Background(), ConnectTimeout)
		defer cancel()
		return postgres.Open(ctx, c)
	})
}
