// Package scalardb records per-epoch scalars in a SQLite database, one row
// per (run, tag, step), so loss curves of several runs can be compared.
package scalardb

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/crimson-sun/logkey/internal/model"
)

// Scalar is one recorded value.
type Scalar struct {
	Tag      string
	Step     int
	Value    float64
	WallTime time.Time
}

// Run describes a recorded training run.
type Run struct {
	ID        string
	Name      string
	StartedAt time.Time
}

// Output writes epoch metrics to a SQLite scalar log.
type Output struct {
	db      *sql.DB
	name    string
	runID   string
	mu      sync.Mutex
	started map[string]bool
}

// Open creates or opens the database at path, creating parent directories.
// name labels the runs recorded through this Output. Metrics without a run id
// are filed under a fresh id generated here.
func Open(ctx context.Context, path, name string) (*Output, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("scalardb: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("scalardb: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	o := &Output{
		db:      db,
		name:    name,
		runID:   uuid.NewString(),
		started: make(map[string]bool),
	}
	if err := o.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return o, nil
}

func (o *Output) migrate(ctx context.Context) error {
	queries := []string{`
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		started_at REAL NOT NULL
	);`, `
	CREATE TABLE IF NOT EXISTS scalars (
		run_id TEXT NOT NULL,
		tag TEXT NOT NULL,
		step INTEGER NOT NULL,
		value REAL NOT NULL,
		wall_time REAL NOT NULL,
		PRIMARY KEY (run_id, tag, step)
	);`}
	for _, q := range queries {
		if _, err := o.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("scalardb: migrate: %w", err)
		}
	}
	return nil
}

// RunID returns the id used for metrics that carry none.
func (o *Output) RunID() string { return o.runID }

// Write records m.Loss under (run, tag, epoch). Rewriting a step replaces it.
func (o *Output) Write(ctx context.Context, m model.EpochMetric) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	runID := m.RunID
	if runID == "" {
		runID = o.runID
	}
	wall := m.Timestamp
	if wall.IsZero() {
		wall = time.Now()
	}

	if !o.started[runID] {
		_, err := o.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO runs (run_id, name, started_at) VALUES (?, ?, ?)`,
			runID, o.name, unixSeconds(wall))
		if err != nil {
			return fmt.Errorf("scalardb: insert run: %w", err)
		}
		o.started[runID] = true
	}

	_, err := o.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO scalars (run_id, tag, step, value, wall_time) VALUES (?, ?, ?, ?, ?)`,
		runID, m.Tag, m.Epoch, m.Loss, unixSeconds(wall))
	if err != nil {
		return fmt.Errorf("scalardb: insert scalar: %w", err)
	}
	return nil
}

// Scalars returns the values recorded for a run and tag in step order.
func (o *Output) Scalars(ctx context.Context, runID, tag string) ([]Scalar, error) {
	rows, err := o.db.QueryContext(ctx,
		`SELECT tag, step, value, wall_time FROM scalars WHERE run_id = ? AND tag = ? ORDER BY step`,
		runID, tag)
	if err != nil {
		return nil, fmt.Errorf("scalardb: query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Scalar
	for rows.Next() {
		var s Scalar
		var wall float64
		if err := rows.Scan(&s.Tag, &s.Step, &s.Value, &wall); err != nil {
			return nil, fmt.Errorf("scalardb: scan: %w", err)
		}
		s.WallTime = fromUnixSeconds(wall)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scalardb: query: %w", err)
	}
	return out, nil
}

// Runs lists recorded runs, oldest first.
func (o *Output) Runs(ctx context.Context) ([]Run, error) {
	rows, err := o.db.QueryContext(ctx, `SELECT run_id, name, started_at FROM runs ORDER BY started_at, run_id`)
	if err != nil {
		return nil, fmt.Errorf("scalardb: query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Run
	for rows.Next() {
		var r Run
		var started float64
		if err := rows.Scan(&r.ID, &r.Name, &started); err != nil {
			return nil, fmt.Errorf("scalardb: scan: %w", err)
		}
		r.StartedAt = fromUnixSeconds(started)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scalardb: query: %w", err)
	}
	return out, nil
}

// Close closes the database.
func (o *Output) Close() error {
	if err := o.db.Close(); err != nil {
		return fmt.Errorf("scalardb: close: %w", err)
	}
	return nil
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func fromUnixSeconds(s float64) time.Time {
	sec, frac := math.Modf(s)
	return time.Unix(int64(sec), int64(frac*1e9))
}
