// Package store persists login verification runs in SQLite so failures can
// be inspected after the browser is gone.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"logincheck/internal/flow"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Outcomes stored in runs.outcome.
const (
	OutcomePass = "pass"
	OutcomeFail = "fail"
)

var (
	ErrRunNotFound = errors.New("run not found")
	ErrAmbiguousID = errors.New("run id prefix matches more than one run")
)

// RunStore records flow results.
type RunStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
	logger *zap.Logger
}

// Run is one persisted flow execution.
type Run struct {
	ID           string
	TargetURL    string
	Username     string
	Headless     bool
	Outcome      string
	ErrorKind    string
	ErrorMessage string
	FinalURL     string
	Screenshot   string
	StartedAt    time.Time
	Duration     time.Duration
	Steps        []Step // populated by Get only
}

// Passed reports whether the run succeeded.
func (r Run) Passed() bool {
	return r.Outcome == OutcomePass
}

// Step is one timed step of a run.
type Step struct {
	Seq      int
	Name     string
	Duration time.Duration
	Error    string
}

// Stats aggregates all recorded runs.
type Stats struct {
	Total         int64
	Passed        int64
	Failed        int64
	AvgDurationMs float64
	ByKind        map[string]int64 // failures per error kind
}

// Open initializes the SQLite database at the given path.
func Open(path string, logger *zap.Logger) (*RunStore, error) {
	if path == "" {
		return nil, errors.New("history database path is empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logger.Debug("Failed to set sqlite busy_timeout", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logger.Debug("Failed to set sqlite journal_mode=WAL", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		logger.Debug("Failed to enable foreign keys", zap.Error(err))
	}

	s := &RunStore{db: db, dbPath: path, logger: logger}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	logger.Debug("Run store opened", zap.String("path", path))
	return s, nil
}

func (s *RunStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		target_url TEXT NOT NULL,
		username TEXT NOT NULL,
		headless INTEGER NOT NULL DEFAULT 0,
		outcome TEXT NOT NULL,
		error_kind TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		final_url TEXT NOT NULL DEFAULT '',
		screenshot TEXT NOT NULL DEFAULT '',
		started_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_outcome ON runs(outcome);

	CREATE TABLE IF NOT EXISTS run_steps (
		run_id TEXT NOT NULL REFERENCES runs(id),
		seq INTEGER NOT NULL,
		name TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (run_id, seq)
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Path returns the database file path.
func (s *RunStore) Path() string {
	return s.dbPath
}

// Record stores res and its steps in one transaction. A result without an
// ID is assigned one.
func (s *RunStore) Record(ctx context.Context, res *flow.Result) error {
	if res == nil {
		return errors.New("nil result")
	}
	if res.ID == "" {
		res.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	outcome := OutcomeFail
	errMsg := ""
	if res.Passed() {
		outcome = OutcomePass
	} else if res.Err != nil {
		errMsg = res.Err.Error()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, target_url, username, headless, outcome, error_kind,
		                  error_message, final_url, screenshot, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ID, res.TargetURL, res.Username, res.Headless, outcome, res.ErrorKind(),
		errMsg, res.FinalURL, res.Screenshot, res.StartedAt.UnixMilli(), res.Duration().Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for i, st := range res.Steps {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO run_steps (run_id, seq, name, duration_ms, error) VALUES (?, ?, ?, ?, ?)`,
			res.ID, i, st.Name, st.Duration.Milliseconds(), st.Error); err != nil {
			return fmt.Errorf("failed to insert step %s: %w", st.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	s.logger.Debug("Recorded run",
		zap.String("run_id", res.ID),
		zap.String("outcome", outcome),
		zap.Int("steps", len(res.Steps)))
	return nil
}

const runColumns = `id, target_url, username, headless, outcome, error_kind,
	error_message, final_url, screenshot, started_at, duration_ms`

// Recent returns the newest runs first, without steps.
func (s *RunStore) Recent(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY started_at DESC, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Get returns the run whose ID is id or starts with id, with its steps.
func (s *RunStore) Get(ctx context.Context, id string) (*Run, error) {
	if id == "" {
		return nil, ErrRunNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		WHERE id = ? OR substr(id, 1, length(?)) = ?
		LIMIT 2`, id, id, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	var matches []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		matches = append(matches, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case 1:
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousID, id)
	}
	run := matches[0]

	stepRows, err := s.db.QueryContext(ctx, `
		SELECT seq, name, duration_ms, error
		FROM run_steps
		WHERE run_id = ?
		ORDER BY seq`, run.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query steps: %w", err)
	}
	defer stepRows.Close()
	for stepRows.Next() {
		var st Step
		var ms int64
		if err := stepRows.Scan(&st.Seq, &st.Name, &ms, &st.Error); err != nil {
			return nil, err
		}
		st.Duration = time.Duration(ms) * time.Millisecond
		run.Steps = append(run.Steps, st)
	}
	if err := stepRows.Err(); err != nil {
		return nil, err
	}
	return &run, nil
}

// Stats returns totals across all runs.
func (s *RunStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := &Stats{ByKind: make(map[string]int64)}
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END), 0),
		       COALESCE(AVG(duration_ms), 0)
		FROM runs`, OutcomePass).Scan(&st.Total, &st.Passed, &st.AvgDurationMs)
	if err != nil {
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}
	st.Failed = st.Total - st.Passed

	rows, err := s.db.QueryContext(ctx, `
		SELECT error_kind, COUNT(*)
		FROM runs
		WHERE outcome = ?
		GROUP BY error_kind`, OutcomeFail)
	if err != nil {
		return nil, fmt.Errorf("failed to group failures: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var kind string
		var count int64
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, err
		}
		if kind == "" {
			kind = "unclassified"
		}
		st.ByKind[kind] += count
	}
	return st, rows.Err()
}

// Prune deletes runs started before now minus olderThan and returns how
// many were removed.
func (s *RunStore) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-olderThan).UnixMilli()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM run_steps WHERE run_id IN (SELECT id FROM runs WHERE started_at < ?)`, cutoff); err != nil {
		return 0, fmt.Errorf("failed to prune steps: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	n, _ := result.RowsAffected()
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit prune: %w", err)
	}
	if n > 0 {
		s.logger.Info("Pruned old runs", zap.Int64("deleted", n), zap.Duration("older_than", olderThan))
	}
	return n, nil
}

// Close closes the database.
func (s *RunStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var r Run
	var startedMs, durationMs int64
	if err := row.Scan(&r.ID, &r.TargetURL, &r.Username, &r.Headless, &r.Outcome, &r.ErrorKind,
		&r.ErrorMessage, &r.FinalURL, &r.Screenshot, &startedMs, &durationMs); err != nil {
		return Run{}, fmt.Errorf("failed to scan run: %w", err)
	}
	r.StartedAt = time.UnixMilli(startedMs)
	r.Duration = time.Duration(durationMs) * time.Millisecond
	return r, nil
}
