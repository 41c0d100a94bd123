// Package store persists bookmarks and run history in SQLite.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"tap-appstore/internal/model"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS bookmarks (
	stream TEXT PRIMARY KEY,
	start_date TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	mode TEXT NOT NULL,
	status TEXT NOT NULL,
	attempts INTEGER NOT NULL DEFAULT 0,
	records INTEGER NOT NULL DEFAULT 0,
	started_at DATETIME NOT NULL,
	finished_at DATETIME
);
CREATE TABLE IF NOT EXISTS run_streams (
	run_id TEXT NOT NULL REFERENCES runs(id),
	stream TEXT NOT NULL,
	records INTEGER NOT NULL DEFAULT 0,
	windows_fetched INTEGER NOT NULL DEFAULT 0,
	windows_skipped INTEGER NOT NULL DEFAULT 0,
	checkpoint TEXT,
	started_at DATETIME NOT NULL,
	finished_at DATETIME,
	PRIMARY KEY (run_id, stream)
);
CREATE TABLE IF NOT EXISTS run_errors (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL REFERENCES runs(id),
	stream TEXT,
	report_date TEXT,
	error_message TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_run_errors_run ON run_errors(run_id);
`

// Store wraps the SQLite handle. It is safe for concurrent use.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path and applies the schema.
// ":memory:" gives a private in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ------------------- Bookmarks -------------------

// Bookmark is one persisted stream checkpoint.
type Bookmark struct {
	Stream    string    `json:"stream"`
	StartDate string    `json:"start_date"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SaveBookmarks upserts every bookmark of state in one transaction.
func (s *Store) SaveBookmarks(state *model.State) error {
	now := s.now().UTC()
	return s.runTx(func(tx *sql.Tx) error {
		for _, stream := range state.Streams() {
			value, ok := state.StartDate(stream)
			if !ok {
				continue
			}
			_, err := tx.Exec(`INSERT INTO bookmarks (stream, start_date, updated_at) VALUES (?, ?, ?)
				ON CONFLICT(stream) DO UPDATE SET start_date = excluded.start_date, updated_at = excluded.updated_at`,
				stream, value, now)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadState returns the stored bookmarks as a state.
func (s *Store) LoadState() (*model.State, error) {
	bookmarks, err := s.ListBookmarks()
	if err != nil {
		return nil, err
	}
	state := model.NewState()
	for _, b := range bookmarks {
		state.SetStartDate(b.Stream, b.StartDate)
	}
	return state, nil
}

// ListBookmarks returns every bookmark ordered by stream.
func (s *Store) ListBookmarks() ([]Bookmark, error) {
	rows, err := s.db.Query(`SELECT stream, start_date, updated_at FROM bookmarks ORDER BY stream`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookmarks := []Bookmark{}
	for rows.Next() {
		var b Bookmark
		if err := rows.Scan(&b.Stream, &b.StartDate, &b.UpdatedAt); err != nil {
			return nil, err
		}
		bookmarks = append(bookmarks, b)
	}
	return bookmarks, rows.Err()
}

// ------------------- Runs -------------------

// StartRun records a new running run and returns its id.
func (s *Store) StartRun(mode string) (string, error) {
	id := uuid.New().String()
	_, err := s.exec(`INSERT INTO runs (id, mode, status, started_at) VALUES (?, ?, ?, ?)`,
		id, mode, model.RunStatusRunning, s.now().UTC())
	if err != nil {
		return "", err
	}
	return id, nil
}

// FinishRun sets the final status of a run.
func (s *Store) FinishRun(id, status string, attempts int, records int64) error {
	res, err := s.exec(`UPDATE runs SET status = ?, attempts = ?, records = ?, finished_at = ? WHERE id = ?`,
		status, attempts, records, s.now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return nil
}

// SaveRunStream upserts the metrics of one stream of a run.
func (s *Store) SaveRunStream(runID string, m model.StreamMetrics) error {
	var finished sql.NullTime
	if !m.FinishedAt.IsZero() {
		finished = sql.NullTime{Time: m.FinishedAt, Valid: true}
	}
	_, err := s.exec(`INSERT INTO run_streams (run_id, stream, records, windows_fetched, windows_skipped, checkpoint, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, stream) DO UPDATE SET
			records = excluded.records,
			windows_fetched = excluded.windows_fetched,
			windows_skipped = excluded.windows_skipped,
			checkpoint = excluded.checkpoint,
			finished_at = excluded.finished_at`,
		runID, m.Stream, m.Records, m.WindowsFetched, m.WindowsSkipped, m.Checkpoint, m.StartedAt, finished)
	return err
}

// SaveRunError records a skipped window or a failed run.
func (s *Store) SaveRunError(e model.RunError) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}
	_, err := s.exec(`INSERT INTO run_errors (run_id, stream, report_date, error_message, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.RunID, e.Stream, e.ReportDate, e.Message, e.CreatedAt)
	return err
}

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(limit int) ([]model.RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`SELECT id, mode, status, attempts, records, started_at, finished_at
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []model.RunSummary{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// GetRun returns one run with its stream metrics.
func (s *Store) GetRun(id string) (*model.RunSummary, error) {
	row := s.db.QueryRow(`SELECT id, mode, status, attempts, records, started_at, finished_at FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if r.Streams, err = s.ListRunStreams(id); err != nil {
		return nil, err
	}
	return r, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*model.RunSummary, error) {
	var r model.RunSummary
	var finished sql.NullTime
	if err := sc.Scan(&r.ID, &r.Mode, &r.Status, &r.Attempts, &r.Records, &r.StartedAt, &finished); err != nil {
		return nil, err
	}
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return &r, nil
}

// ListRunStreams returns the stream metrics of a run ordered by start.
func (s *Store) ListRunStreams(runID string) ([]model.StreamMetrics, error) {
	rows, err := s.db.Query(`SELECT stream, records, windows_fetched, windows_skipped, COALESCE(checkpoint, ''), started_at, finished_at
		FROM run_streams WHERE run_id = ? ORDER BY started_at, stream`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	streams := []model.StreamMetrics{}
	for rows.Next() {
		var m model.StreamMetrics
		var finished sql.NullTime
		if err := rows.Scan(&m.Stream, &m.Records, &m.WindowsFetched, &m.WindowsSkipped, &m.Checkpoint, &m.StartedAt, &finished); err != nil {
			return nil, err
		}
		if finished.Valid {
			m.FinishedAt = finished.Time
		}
		streams = append(streams, m)
	}
	return streams, rows.Err()
}

// ListRunErrors returns the errors of a run in insertion order.
func (s *Store) ListRunErrors(runID string) ([]model.RunError, error) {
	rows, err := s.db.Query(`SELECT id, run_id, COALESCE(stream, ''), COALESCE(report_date, ''), error_message, created_at
		FROM run_errors WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	errs := []model.RunError{}
	for rows.Next() {
		var e model.RunError
		if err := rows.Scan(&e.ID, &e.RunID, &e.Stream, &e.ReportDate, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		errs = append(errs, e)
	}
	return errs, rows.Err()
}
