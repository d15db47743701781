// Package sqlite implements schedule.Repository on an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/kilianp07/soh/core/model"
	"github.com/kilianp07/soh/core/schedule"
)

const schema = `
CREATE TABLE IF NOT EXISTS soh_schedule (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    str_id TEXT NOT NULL,
    current REAL NOT NULL,
    used_q REAL NOT NULL DEFAULT 0,
    soh REAL,
    soc_before REAL,
    soc_after REAL,
    state TEXT NOT NULL,
    status TEXT NOT NULL,
    start_datetime INTEGER NOT NULL,
    update_datetime INTEGER NOT NULL,
    end_datetime INTEGER,
    version INTEGER NOT NULL DEFAULT 1
);
CREATE UNIQUE INDEX IF NOT EXISTS soh_schedule_open_string
    ON soh_schedule(str_id) WHERE status = 'ACTIVE' AND state IN ('PENDING', 'RUNNING');
CREATE INDEX IF NOT EXISTS soh_schedule_due
    ON soh_schedule(state, status, start_datetime);`

const columns = `id, str_id, current, used_q, soh, soc_before, soc_after, state, status,
    start_datetime, update_datetime, end_datetime, version`

// Store persists schedules in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and ensures the schema. Use
// ":memory:" for a private in-memory database.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, schedule.Persistence(err, "open sqlite")
	}
	// A single connection serializes writers and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, schedule.Persistence(err, "create sqlite schema")
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Save(ctx context.Context, sc *model.Schedule) error {
	if sc.ID == 0 {
		return s.insert(ctx, sc)
	}
	return s.update(ctx, sc)
}

func (s *Store) insert(ctx context.Context, sc *model.Schedule) error {
	row := s.db.QueryRowContext(ctx, `INSERT INTO soh_schedule
        (str_id, current, used_q, soh, soc_before, soc_after, state, status,
         start_datetime, update_datetime, end_datetime, version)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1) RETURNING id`,
		sc.StringID, sc.Current, sc.UsedCharge, sc.SoH, sc.SoCBefore, sc.SoCAfter,
		sc.State.String(), sc.Status.String(),
		unix(sc.Start), unix(sc.Updated), unixPtr(sc.End))
	var id int64
	if err := row.Scan(&id); err != nil {
		return classify(err, sc, "insert schedule")
	}
	sc.ID = id
	sc.Version = 1
	return nil
}

func (s *Store) update(ctx context.Context, sc *model.Schedule) error {
	res, err := s.db.ExecContext(ctx, `UPDATE soh_schedule SET
        str_id = ?, current = ?, used_q = ?, soh = ?, soc_before = ?, soc_after = ?,
        state = ?, status = ?, start_datetime = ?, update_datetime = ?, end_datetime = ?,
        version = version + 1
        WHERE id = ? AND version = ?`,
		sc.StringID, sc.Current, sc.UsedCharge, sc.SoH, sc.SoCBefore, sc.SoCAfter,
		sc.State.String(), sc.Status.String(),
		unix(sc.Start), unix(sc.Updated), unixPtr(sc.End),
		sc.ID, sc.Version)
	if err != nil {
		return classify(err, sc, "update schedule")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return schedule.Persistence(err, "update schedule")
	}
	if n == 0 {
		var exists int
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM soh_schedule WHERE id = ?`, sc.ID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return schedule.Persistence(errors.Wrapf(schedule.ErrNotFound, "schedule %d", sc.ID), "update schedule")
		}
		if err != nil {
			return schedule.Persistence(err, "update schedule")
		}
		return schedule.Stale(sc.ID, sc.Version)
	}
	sc.Version++
	return nil
}

func (s *Store) FindByID(ctx context.Context, id int64) (*model.Schedule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+columns+` FROM soh_schedule WHERE id = ?`, id)
	if err != nil {
		return nil, schedule.Persistence(err, "find schedule")
	}
	res, err := scanAll(rows)
	if err != nil || len(res) == 0 {
		return nil, err
	}
	return &res[0], nil
}

func (s *Store) FindByString(ctx context.Context, stringID string, states []model.State, status model.Status) (*model.Schedule, error) {
	if len(states) == 0 {
		return nil, nil
	}
	args := []any{stringID, status.String()}
	for _, st := range states {
		args = append(args, st.String())
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+columns+` FROM soh_schedule
        WHERE str_id = ? AND status = ? AND state IN (`+placeholders(len(states))+`)
        ORDER BY id LIMIT 1`, args...)
	if err != nil {
		return nil, schedule.Persistence(err, "find schedule by string")
	}
	res, err := scanAll(rows)
	if err != nil || len(res) == 0 {
		return nil, err
	}
	return &res[0], nil
}

func (s *Store) FindDue(ctx context.Context, now time.Time, state model.State, status model.Status) ([]model.Schedule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+columns+` FROM soh_schedule
        WHERE state = ? AND status = ? AND start_datetime <= ? ORDER BY id`,
		state.String(), status.String(), unix(now))
	if err != nil {
		return nil, schedule.Persistence(err, "find due schedules")
	}
	return scanAll(rows)
}

func (s *Store) FindByStatus(ctx context.Context, status model.Status) ([]model.Schedule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+columns+` FROM soh_schedule
        WHERE status = ? ORDER BY id`, status.String())
	if err != nil {
		return nil, schedule.Persistence(err, "list schedules")
	}
	return scanAll(rows)
}

func scanAll(rows *sql.Rows) ([]model.Schedule, error) {
	defer func() { _ = rows.Close() }()
	var res []model.Schedule
	for rows.Next() {
		var (
			sc            model.Schedule
			state, status string
			start, upd    int64
			end           sql.NullInt64
			soh, before   sql.NullFloat64
			after         sql.NullFloat64
		)
		if err := rows.Scan(&sc.ID, &sc.StringID, &sc.Current, &sc.UsedCharge, &soh, &before, &after,
			&state, &status, &start, &upd, &end, &sc.Version); err != nil {
			return nil, schedule.Persistence(err, "scan schedule")
		}
		var err error
		if sc.State, err = model.ParseState(state); err != nil {
			return nil, schedule.Persistence(err, "scan schedule")
		}
		if sc.Status, err = model.ParseStatus(status); err != nil {
			return nil, schedule.Persistence(err, "scan schedule")
		}
		sc.SoH = nullFloat(soh)
		sc.SoCBefore = nullFloat(before)
		sc.SoCAfter = nullFloat(after)
		sc.Start = fromUnix(start)
		sc.Updated = fromUnix(upd)
		if end.Valid {
			t := fromUnix(end.Int64)
			sc.End = &t
		}
		res = append(res, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, schedule.Persistence(err, "scan schedules")
	}
	return res, nil
}

// classify maps a unique violation on the open-schedule index to ErrConflict.
func classify(err error, sc *model.Schedule, op string) error {
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return errors.Wrapf(schedule.ErrConflict, "string %s already has an open schedule", sc.StringID)
	}
	return schedule.Persistence(err, op)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func unix(t time.Time) int64 { return t.UnixNano() }

func unixPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixNano()
}

func fromUnix(n int64) time.Time { return time.Unix(0, n).UTC() }

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return model.Float(v.Float64)
}
