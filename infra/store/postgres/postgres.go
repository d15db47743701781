// Package postgres implements schedule.Repository on PostgreSQL through a
// pgx connection pool.
package postgres

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kilianp07/soh/core/model"
	"github.com/kilianp07/soh/core/schedule"
)

const uniqueViolation = "23505"

// Schema creates the schedule table and its indexes.
const Schema = `
CREATE TABLE IF NOT EXISTS soh_schedule (
    id BIGSERIAL PRIMARY KEY,
    str_id TEXT NOT NULL,
    current DOUBLE PRECISION NOT NULL,
    used_q DOUBLE PRECISION NOT NULL DEFAULT 0,
    soh DOUBLE PRECISION,
    soc_before DOUBLE PRECISION,
    soc_after DOUBLE PRECISION,
    state TEXT NOT NULL,
    status TEXT NOT NULL,
    start_datetime TIMESTAMPTZ NOT NULL,
    update_datetime TIMESTAMPTZ NOT NULL,
    end_datetime TIMESTAMPTZ,
    version BIGINT NOT NULL DEFAULT 1
);
CREATE UNIQUE INDEX IF NOT EXISTS soh_schedule_open_string
    ON soh_schedule(str_id) WHERE status = 'ACTIVE' AND state IN ('PENDING', 'RUNNING');
CREATE INDEX IF NOT EXISTS soh_schedule_due
    ON soh_schedule(state, status, start_datetime);`

const columns = `id, str_id, current, used_q, soh, soc_before, soc_after, state, status,
    start_datetime, update_datetime, end_datetime, version`

// Config holds the connection settings.
type Config struct {
	DSN            string `json:"dsn"`
	MaxConnections int32  `json:"max_connections"`
	// Migrate creates the schema on startup.
	Migrate bool `json:"migrate"`
}

// Store persists schedules in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewPool parses cfg, connects and pings the database.
func NewPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "parse pool config")
	}
	if cfg.MaxConnections > 0 {
		poolConfig.MaxConns = cfg.MaxConnections
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.Wrap(err, "create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping database")
	}
	return pool, nil
}

// Open connects with cfg and optionally migrates the schema.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	pool, err := NewPool(ctx, cfg)
	if err != nil {
		return nil, schedule.Persistence(err, "open postgres")
	}
	st := New(pool)
	if cfg.Migrate {
		if err := st.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return st, nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store { return &Store{pool: pool} }

// Migrate creates the table and indexes if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, Schema)
	return schedule.Persistence(err, "migrate postgres schema")
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Save(ctx context.Context, sc *model.Schedule) error {
	if sc.ID == 0 {
		return s.insert(ctx, sc)
	}
	return s.update(ctx, sc)
}

func (s *Store) insert(ctx context.Context, sc *model.Schedule) error {
	err := s.pool.QueryRow(ctx, `INSERT INTO soh_schedule
        (str_id, current, used_q, soh, soc_before, soc_after, state, status,
         start_datetime, update_datetime, end_datetime, version)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1) RETURNING id`,
		sc.StringID, sc.Current, sc.UsedCharge, sc.SoH, sc.SoCBefore, sc.SoCAfter,
		sc.State.String(), sc.Status.String(), sc.Start, sc.Updated, sc.End).Scan(&sc.ID)
	if err != nil {
		sc.ID = 0
		return classify(err, sc, "insert schedule")
	}
	sc.Version = 1
	return nil
}

func (s *Store) update(ctx context.Context, sc *model.Schedule) error {
	tag, err := s.pool.Exec(ctx, `UPDATE soh_schedule SET
        str_id = $1, current = $2, used_q = $3, soh = $4, soc_before = $5, soc_after = $6,
        state = $7, status = $8, start_datetime = $9, update_datetime = $10, end_datetime = $11,
        version = version + 1
        WHERE id = $12 AND version = $13`,
		sc.StringID, sc.Current, sc.UsedCharge, sc.SoH, sc.SoCBefore, sc.SoCAfter,
		sc.State.String(), sc.Status.String(), sc.Start, sc.Updated, sc.End,
		sc.ID, sc.Version)
	if err != nil {
		return classify(err, sc, "update schedule")
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM soh_schedule WHERE id = $1)`, sc.ID).Scan(&exists); err != nil {
			return schedule.Persistence(err, "update schedule")
		}
		if !exists {
			return schedule.Persistence(errors.Wrapf(schedule.ErrNotFound, "schedule %d", sc.ID), "update schedule")
		}
		return schedule.Stale(sc.ID, sc.Version)
	}
	sc.Version++
	return nil
}

func (s *Store) FindByID(ctx context.Context, id int64) (*model.Schedule, error) {
	res, err := s.query(ctx, "find schedule", `SELECT `+columns+` FROM soh_schedule WHERE id = $1`, id)
	if err != nil || len(res) == 0 {
		return nil, err
	}
	return &res[0], nil
}

func (s *Store) FindByString(ctx context.Context, stringID string, states []model.State, status model.Status) (*model.Schedule, error) {
	names := make([]string, len(states))
	for i, st := range states {
		names[i] = st.String()
	}
	res, err := s.query(ctx, "find schedule by string", `SELECT `+columns+` FROM soh_schedule
        WHERE str_id = $1 AND status = $2 AND state = ANY($3) ORDER BY id LIMIT 1`,
		stringID, status.String(), names)
	if err != nil || len(res) == 0 {
		return nil, err
	}
	return &res[0], nil
}

func (s *Store) FindDue(ctx context.Context, now time.Time, state model.State, status model.Status) ([]model.Schedule, error) {
	return s.query(ctx, "find due schedules", `SELECT `+columns+` FROM soh_schedule
        WHERE state = $1 AND status = $2 AND start_datetime <= $3 ORDER BY id`,
		state.String(), status.String(), now)
}

func (s *Store) FindByStatus(ctx context.Context, status model.Status) ([]model.Schedule, error) {
	return s.query(ctx, "list schedules", `SELECT `+columns+` FROM soh_schedule
        WHERE status = $1 ORDER BY id`, status.String())
}

func (s *Store) query(ctx context.Context, op, sql string, args ...any) ([]model.Schedule, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, schedule.Persistence(err, op)
	}
	res, err := pgx.CollectRows(rows, scanSchedule)
	if err != nil {
		return nil, schedule.Persistence(err, op)
	}
	return res, nil
}

func scanSchedule(row pgx.CollectableRow) (model.Schedule, error) {
	var (
		sc            model.Schedule
		state, status string
	)
	if err := row.Scan(&sc.ID, &sc.StringID, &sc.Current, &sc.UsedCharge, &sc.SoH, &sc.SoCBefore, &sc.SoCAfter,
		&state, &status, &sc.Start, &sc.Updated, &sc.End, &sc.Version); err != nil {
		return sc, err
	}
	var err error
	if sc.State, err = model.ParseState(state); err != nil {
		return sc, err
	}
	if sc.Status, err = model.ParseStatus(status); err != nil {
		return sc, err
	}
	sc.Start = sc.Start.UTC()
	sc.Updated = sc.Updated.UTC()
	if sc.End != nil {
		end := sc.End.UTC()
		sc.End = &end
	}
	return sc, nil
}

// classify maps a unique violation on the open-schedule index to ErrConflict.
func classify(err error, sc *model.Schedule, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return errors.Wrapf(schedule.ErrConflict, "string %s already has an open schedule", sc.StringID)
	}
	return schedule.Persistence(err, op)
}
