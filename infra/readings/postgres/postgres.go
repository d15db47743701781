// Package postgres reads the latest value of data points from PostgreSQL.
package postgres

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kilianp07/soh/core/model"
	"github.com/kilianp07/soh/core/reading"
	"github.com/kilianp07/soh/infra/store/postgres"
)

// Layout selects how latest values are stored.
type Layout string

const (
	// LayoutLatestValues reads one row per point from a shared table keyed by
	// channel id.
	LayoutLatestValues Layout = "latest_values"
	// LayoutPointTables reads the newest row of a table named after the point.
	LayoutPointTables Layout = "point_tables"
)

var tableName = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// Config configures a Source.
type Config struct {
	DSN            string `json:"dsn"`
	MaxConnections int32  `json:"max_connections"`
	Layout         Layout `json:"layout"`
	// Table is the shared table of the latest_values layout.
	Table string `json:"table"`
	// Divisors scale raw values of point tables by point suffix.
	Divisors map[string]float64 `json:"divisors"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Layout == "" {
		c.Layout = LayoutLatestValues
	}
	if c.Table == "" {
		c.Table = "latest_values"
	}
	if c.Divisors == nil {
		// Point tables store current and ambient temperature in tenths.
		c.Divisors = map[string]float64{
			reading.SuffixCurrent:     10,
			reading.SuffixTemperature: 10,
		}
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.DSN == "" {
		return errors.New("postgres readings require dsn")
	}
	if c.Layout != LayoutLatestValues && c.Layout != LayoutPointTables {
		return errors.Newf("unknown readings layout %q", c.Layout)
	}
	if !tableName.MatchString(c.Table) {
		return errors.Newf("invalid table name %q", c.Table)
	}
	for suffix, d := range c.Divisors {
		if d == 0 {
			return errors.Newf("divisor for %s must not be zero", suffix)
		}
	}
	return nil
}

// Source implements reading.Source on PostgreSQL.
type Source struct {
	pool *pgxpool.Pool
	cfg  Config
}

// Open connects to the database described by cfg.
func Open(ctx context.Context, cfg Config) (*Source, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pool, err := postgres.NewPool(ctx, postgres.Config{DSN: cfg.DSN, MaxConnections: cfg.MaxConnections})
	if err != nil {
		return nil, err
	}
	return New(pool, cfg), nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool, cfg Config) *Source {
	cfg.SetDefaults()
	return &Source{pool: pool, cfg: cfg}
}

// Close releases the pool.
func (s *Source) Close() error {
	s.pool.Close()
	return nil
}

func (s *Source) Latest(ctx context.Context, point string) (*model.Reading, error) {
	if s.cfg.Layout == LayoutPointTables {
		return s.fromPointTable(ctx, point)
	}
	return s.fromLatestValues(ctx, point)
}

func (s *Source) fromLatestValues(ctx context.Context, point string) (*model.Reading, error) {
	var (
		valueType *string
		number    *float64
		text      *string
		flag      *bool
		updated   *time.Time
	)
	err := s.pool.QueryRow(ctx, `SELECT value_type, value_double, value_string, value_boolean, updated_at
        FROM `+s.cfg.Table+` WHERE channelid = $1`, point).
		Scan(&valueType, &number, &text, &flag, &updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "latest value of %s", point)
	}
	r := &model.Reading{Point: point}
	if updated != nil {
		r.Time = updated.UTC()
	}
	if text != nil {
		r.Text = *text
	}
	switch strings.ToUpper(deref(valueType)) {
	case "BOOLEAN":
		r.Bool = flag
	case "STRING", "BYTE_ARRAY":
	default:
		r.Number = number
	}
	return r, nil
}

func (s *Source) fromPointTable(ctx context.Context, point string) (*model.Reading, error) {
	if !tableName.MatchString(point) {
		return nil, errors.Newf("invalid point name %q", point)
	}
	var (
		value float64
		at    time.Time
	)
	err := s.pool.QueryRow(ctx, `SELECT v."VALUE", v.time FROM `+point+` v ORDER BY v.time DESC LIMIT 1`).
		Scan(&value, &at)
	if errors.Is(err, pgx.ErrNoRows) || undefinedTable(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "latest row of %s", point)
	}
	value /= s.divisor(point)
	return &model.Reading{Point: point, Number: model.Float(value), Time: at.UTC()}, nil
}

func (s *Source) divisor(point string) float64 {
	for suffix, d := range s.cfg.Divisors {
		if strings.HasSuffix(point, suffix) {
			return d
		}
	}
	return 1
}

// undefinedTable reports a point that was never recorded.
func undefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
