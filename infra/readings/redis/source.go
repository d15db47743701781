// Package redis reads data point values from Redis hashes. Each point is a
// hash at <prefix>:<point> holding a value field and an optional ts field
// in Unix milliseconds.
package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-redis/redis/v8"

	"github.com/kilianp07/soh/core/model"
)

const (
	fieldValue = "value"
	fieldTime  = "ts"
)

// Config configures the Redis connection.
type Config struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Prefix   string `json:"prefix"`
}

// Hashes abstracts the hash commands so tests can replace Redis.
type Hashes interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HSet(ctx context.Context, key string, values map[string]string) error
	Close() error
}

// ClientHashes implements Hashes with go-redis.
type ClientHashes struct {
	client *redis.Client
}

// NewClient connects to Redis and checks the connection.
func NewClient(ctx context.Context, cfg Config) (*ClientHashes, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "ping redis %s", cfg.Addr)
	}
	return &ClientHashes{client: client}, nil
}

func (c *ClientHashes) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return c.client.HGetAll(ctx, key).Result()
}

func (c *ClientHashes) HSet(ctx context.Context, key string, values map[string]string) error {
	args := make(map[string]interface{}, len(values))
	for k, v := range values {
		args[k] = v
	}
	return c.client.HSet(ctx, key, args).Err()
}

func (c *ClientHashes) Close() error { return c.client.Close() }

// Source implements reading.Source on Redis hashes.
type Source struct {
	hashes Hashes
	prefix string
}

// NewSource reads hashes below prefix; an empty prefix defaults to "soh".
func NewSource(h Hashes, prefix string) *Source {
	if prefix == "" {
		prefix = "soh"
	}
	return &Source{hashes: h, prefix: prefix}
}

// Key returns the hash key holding point.
func (s *Source) Key(point string) string { return s.prefix + ":" + point }

func (s *Source) Latest(ctx context.Context, point string) (*model.Reading, error) {
	fields, err := s.hashes.HGetAll(ctx, s.Key(point))
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", point)
	}
	raw, ok := fields[fieldValue]
	if !ok {
		return nil, nil
	}
	r := &model.Reading{Point: point, Text: raw}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		r.Number = model.Float(f)
	}
	if ms, err := strconv.ParseInt(fields[fieldTime], 10, 64); err == nil {
		r.Time = time.UnixMilli(ms).UTC()
	}
	return r, nil
}

// Store writes a numeric value for point.
func (s *Source) Store(ctx context.Context, point string, v float64, at time.Time) error {
	err := s.hashes.HSet(ctx, s.Key(point), map[string]string{
		fieldValue: strconv.FormatFloat(v, 'f', -1, 64),
		fieldTime:  strconv.FormatInt(at.UnixMilli(), 10),
	})
	return errors.Wrapf(err, "store %s", point)
}

// Close closes the connection.
func (s *Source) Close() error { return s.hashes.Close() }
