package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/homeauto/cosmo-monitor/internal/logging"
	_ "modernc.org/sqlite"
)

// timeFormat is fixed-width so stored timestamps compare lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id        TEXT PRIMARY KEY,
	trigger       TEXT NOT NULL,
	status        TEXT NOT NULL,
	error         TEXT,
	session_start TEXT,
	session_end   TEXT,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS room_cleans (
	room          TEXT PRIMARY KEY,
	last_clean    TEXT NOT NULL,
	area          REAL NOT NULL,
	run_id        TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS decision_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL,
	room          TEXT NOT NULL,
	area          REAL NOT NULL,
	threshold     REAL NOT NULL,
	decision      TEXT NOT NULL,
	reason        TEXT,
	last_end      TEXT,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);
`
// #endregion schema

// #region store-struct
// Store keeps monitor runs, per-room clean records and the decision log in SQLite.
type Store struct {
	db *sql.DB
}
// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// pragmas below are per connection
	db.SetMaxOpenConns(1)
	if err := initDB(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initDB(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}
// #endregion db-accessor

// #region runs
// SaveRun inserts a run, or updates its outcome when the id already exists.
func (s *Store) SaveRun(run Run) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO runs (run_id, trigger, status, error, session_start, session_end, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET
			status = excluded.status,
			error = excluded.error,
			session_start = excluded.session_start,
			session_end = excluded.session_end`,
		run.RunID, run.Trigger, run.Status, nullIfEmpty(run.Error),
		formatTime(run.SessionStart), formatTime(run.SessionEnd),
		run.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.RunID, err)
	}
	return nil
}

// GetRun retrieves a run by id.
func (s *Store) GetRun(id string) (Run, error) {
	row := s.db.QueryRow(
		`SELECT run_id, trigger, status, error, session_start, session_end, created_at
		 FROM runs WHERE run_id = ?`, id,
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	rows, err := s.db.Query(
		`SELECT run_id, trigger, status, error, session_start, session_end, created_at
		 FROM runs ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var run Run
	var errStr, start, end sql.NullString
	var created string
	if err := row.Scan(&run.RunID, &run.Trigger, &run.Status, &errStr, &start, &end, &created); err != nil {
		return Run{}, err
	}
	run.Error = errStr.String
	var err error
	if run.SessionStart, err = parseNullTime(start); err != nil {
		return Run{}, fmt.Errorf("run %s session_start: %w", run.RunID, err)
	}
	if run.SessionEnd, err = parseNullTime(end); err != nil {
		return Run{}, fmt.Errorf("run %s session_end: %w", run.RunID, err)
	}
	if run.CreatedAt, err = parseTime(created); err != nil {
		return Run{}, fmt.Errorf("run %s created_at: %w", run.RunID, err)
	}
	return run, nil
}
// #endregion runs

// #region room-cleans
// RecordClean stores a qualifying clean for a room. An existing record is
// only replaced by a newer one.
func (s *Store) RecordClean(rc RoomClean) error {
	_, err := s.db.Exec(
		`INSERT INTO room_cleans (room, last_clean, area, run_id) VALUES (?, ?, ?, ?)
		 ON CONFLICT(room) DO UPDATE SET
			last_clean = excluded.last_clean,
			area = excluded.area,
			run_id = excluded.run_id
		 WHERE excluded.last_clean > room_cleans.last_clean`,
		rc.Room, rc.LastClean.UTC().Format(timeFormat), rc.Area, rc.RunID,
	)
	if err != nil {
		return fmt.Errorf("record clean %s: %w", rc.Room, err)
	}
	return nil
}

// LastCleans returns the latest clean of every room, ordered by room.
func (s *Store) LastCleans() ([]RoomClean, error) {
	rows, err := s.db.Query(`SELECT room, last_clean, area, run_id FROM room_cleans ORDER BY room`)
	if err != nil {
		return nil, fmt.Errorf("last cleans: %w", err)
	}
	defer rows.Close()

	var out []RoomClean
	for rows.Next() {
		var rc RoomClean
		var last string
		if err := rows.Scan(&rc.Room, &last, &rc.Area, &rc.RunID); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if rc.LastClean, err = parseTime(last); err != nil {
			return nil, fmt.Errorf("room %s last_clean: %w", rc.Room, err)
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}
// #endregion room-cleans

// #region decisions
// LogDecision appends a row to the decision log.
func (s *Store) LogDecision(entry logging.DecisionEntry) error {
	return logging.LogDecision(s.db, entry)
}

// DecisionsForRun returns the decision log rows written for a run, ordered by room.
func (s *Store) DecisionsForRun(runID string) ([]logging.DecisionEntry, error) {
	rows, err := s.db.Query(
		`SELECT run_id, room, area, threshold, decision, reason, last_end, created_at
		 FROM decision_log WHERE run_id = ? ORDER BY room, id`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("decisions for %s: %w", runID, err)
	}
	defer rows.Close()

	var out []logging.DecisionEntry
	for rows.Next() {
		var e logging.DecisionEntry
		var reason, lastEnd sql.NullString
		var created string
		if err := rows.Scan(&e.RunID, &e.Room, &e.Area, &e.Threshold, &e.Decision, &reason, &lastEnd, &created); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		e.Reason = reason.String
		if e.LastEnd, err = parseNullTime(lastEnd); err != nil {
			return nil, fmt.Errorf("decision %s/%s last_end: %w", e.RunID, e.Room, err)
		}
		if e.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("decision %s/%s created_at: %w", e.RunID, e.Room, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
// #endregion decisions

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func formatTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(timeFormat)
}

// parseTime accepts both the store's fixed-width format and RFC 3339.
func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

// parseNullTime maps NULL to the zero time.
func parseNullTime(ns sql.NullString) (time.Time, error) {
	if !ns.Valid {
		return time.Time{}, nil
	}
	return parseTime(ns.String)
}
// #endregion helpers
