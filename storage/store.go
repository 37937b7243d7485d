// Package storage keeps the history of model checking runs in SQLite.
package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"mcheck/explorer"
	"mcheck/storage/migrations"
)

var ErrNotFound = errors.New("storage: run not found")

// One stored exploration
type Run struct {
	ID        int64
	Model     string
	Strategy  string
	Reduction string
	Outcome   string
	// Empty unless a violation was found
	Violation   string
	RecordTrace string
	Stats       explorer.Stats
	StartedAt   time.Time
	Duration    time.Duration
}

// Describe the result of an exploration of model
func NewRun(model string, strategy explorer.Strategy, reduction explorer.Reduction, res *explorer.Result, startedAt time.Time, duration time.Duration) Run {
	run := Run{
		Model:       model,
		Strategy:    strategy.String(),
		Reduction:   reduction.String(),
		Outcome:     res.Outcome.String(),
		RecordTrace: res.RecordTrace().String(),
		Stats:       res.Stats,
		StartedAt:   startedAt,
		Duration:    duration,
	}
	if res.Violation != nil {
		run.Violation = res.Violation.String()
	}
	return run
}

type Store struct {
	db *sql.DB
}

// Open the database at path, creating it if needed, and apply the migrations
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("storage: path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "storage: open")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "storage: ping")
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "storage: migrate")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Store the run and return its id
func (s *Store) SaveRun(ctx context.Context, run Run) (int64, error) {
	if strings.TrimSpace(run.Model) == "" {
		return 0, errors.New("storage: run without model")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO runs (
		model, strategy, reduction, outcome, violation, record_trace,
		expanded_states, backtracks, duplicates, max_depth, depth_limit_hits,
		started_at, duration_ms
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.Model, run.Strategy, run.Reduction, run.Outcome, run.Violation, run.RecordTrace,
		run.Stats.ExpandedStates, run.Stats.Backtracks, run.Stats.Duplicates, run.Stats.MaxDepthReached, run.Stats.DepthLimitHits,
		run.StartedAt.UTC().UnixMilli(), run.Duration.Milliseconds(),
	)
	if err != nil {
		return 0, errors.Wrap(err, "storage: save run")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "storage: save run")
	}
	return id, nil
}

const runColumns = `id, model, strategy, reduction, outcome, violation, record_trace,
	expanded_states, backtracks, duplicates, max_depth, depth_limit_hits, started_at, duration_ms`

// The most recent runs first. limit < 1 returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit < 1 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "storage: list runs")
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, errors.Wrap(err, "storage: list runs")
		}
		runs = append(runs, run)
	}
	return runs, errors.Wrap(rows.Err(), "storage: list runs")
}

func (s *Store) GetRun(ctx context.Context, id int64) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, errors.Wrapf(ErrNotFound, "id %d", id)
	}
	if err != nil {
		return Run{}, errors.Wrapf(err, "storage: get run %d", id)
	}
	return run, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var run Run
	var startedAt, duration int64
	err := row.Scan(
		&run.ID, &run.Model, &run.Strategy, &run.Reduction, &run.Outcome, &run.Violation, &run.RecordTrace,
		&run.Stats.ExpandedStates, &run.Stats.Backtracks, &run.Stats.Duplicates, &run.Stats.MaxDepthReached, &run.Stats.DepthLimitHits,
		&startedAt, &duration,
	)
	if err != nil {
		return Run{}, err
	}
	run.StartedAt = time.UnixMilli(startedAt).UTC()
	run.Duration = time.Duration(duration) * time.Millisecond
	return run, nil
}
