// Package store handles SQLite persistence of finished practice runs.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/codetype/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// ErrRunNotFound is returned when no run matches a lookup.
var ErrRunNotFound = errors.New("run not found")

// Store wraps SQLite access for run data.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY,
			run_id TEXT NOT NULL UNIQUE,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			label TEXT NOT NULL,
			prompt TEXT NOT NULL,
			snippet TEXT NOT NULL,
			chars INTEGER NOT NULL,
			rejected INTEGER NOT NULL,
			resets INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS run_char_stats (
			run_id INTEGER NOT NULL,
			char TEXT NOT NULL,
			correct INTEGER NOT NULL,
			incorrect INTEGER NOT NULL,
			latency_sum_ms INTEGER NOT NULL,
			latency_count INTEGER NOT NULL,
			PRIMARY KEY (run_id, char)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_ended_at ON runs(ended_at);`,
		`CREATE INDEX IF NOT EXISTS idx_run_char_stats_char ON run_char_stats(char);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertRun stores a finished run and its per-character stats. A run without
// a RunID gets a fresh UUID. The row id is returned.
func (s *Store) InsertRun(ctx context.Context, run model.RunStats, chars []model.CharStats) (int64, error) {
	if run.RunID == "" {
		run.RunID = uuid.NewString()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_at, ended_at, label, prompt, snippet, chars, rejected, resets, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID,
		run.StartedAt.Format(time.RFC3339Nano),
		run.EndedAt.Format(time.RFC3339Nano),
		run.Label,
		run.Prompt,
		run.Snippet,
		run.Chars,
		run.Rejected,
		run.Resets,
		run.DurationMs,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if len(chars) > 0 {
		var stmt *sql.Stmt
		stmt, err = tx.PrepareContext(ctx,
			`INSERT INTO run_char_stats (run_id, char, correct, incorrect, latency_sum_ms, latency_count)
			 VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return 0, err
		}
		defer func() {
			if cerr := stmt.Close(); cerr != nil {
				// Best-effort statement close.
				_ = cerr
			}
		}()
		for _, cs := range chars {
			if _, err = stmt.ExecContext(ctx, id, cs.Char, cs.Correct, cs.Incorrect, cs.LatencySumMs, cs.LatencyCount); err != nil {
				return 0, err
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// GetMissedChars aggregates character stats over the most recent runs.
func (s *Store) GetMissedChars(ctx context.Context, window int) ([]model.CharAggregate, error) {
	if window <= 0 {
		return nil, nil
	}
	query := `WITH recent_runs AS (
		SELECT id FROM runs
		ORDER BY ended_at DESC
		LIMIT ?
	)
	SELECT cs.char, SUM(cs.correct) AS correct, SUM(cs.incorrect) AS incorrect,
		SUM(cs.latency_sum_ms) AS latency_sum_ms, SUM(cs.latency_count) AS latency_count
	FROM run_char_stats cs
	JOIN recent_runs r ON r.id = cs.run_id
	GROUP BY cs.char`

	rows, err := s.db.QueryContext(ctx, query, window)
	if err != nil {
		return nil, err
	}
	return scanCharAggregates(rows)
}

// ListRuns returns run aggregates filtered by stats config, oldest first.
func (s *Store) ListRuns(ctx context.Context, cfg model.StatsConfig) ([]model.RunAggregate, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if cfg.Label != "" {
		clauses = append(clauses, "label = ?")
		args = append(args, cfg.Label)
	}
	if cfg.Since != nil {
		clauses = append(clauses, "ended_at >= ?")
		args = append(args, cfg.Since.Format(time.RFC3339Nano))
	}
	query := fmt.Sprintf(`SELECT id, run_id, ended_at, label, chars, rejected, resets, duration_ms
		FROM runs
		WHERE %s
		ORDER BY ended_at ASC, id ASC`, strings.Join(clauses, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var runs []model.RunAggregate
	for rows.Next() {
		var agg model.RunAggregate
		var endedAt string
		if err := rows.Scan(&agg.ID, &agg.RunID, &endedAt, &agg.Label, &agg.Chars, &agg.Rejected, &agg.Resets, &agg.DurationMs); err != nil {
			return nil, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, endedAt)
		if err != nil {
			return nil, err
		}
		agg.EndedAt = parsed
		runs = append(runs, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// GetRun loads a run by row id or by a prefix of its run id.
func (s *Store) GetRun(ctx context.Context, ref string) (model.RunStats, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return model.RunStats{}, ErrRunNotFound
	}
	const cols = `SELECT id, run_id, started_at, ended_at, label, prompt, snippet, chars, rejected, resets, duration_ms FROM runs`
	var row *sql.Row
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		row = s.db.QueryRowContext(ctx, cols+` WHERE id = ?`, id)
	} else {
		prefix := stripLikeWildcards(ref)
		if prefix == "" {
			return model.RunStats{}, ErrRunNotFound
		}
		row = s.db.QueryRowContext(ctx, cols+` WHERE run_id LIKE ? ORDER BY id DESC LIMIT 1`, prefix+"%")
	}

	var run model.RunStats
	var startedAt, endedAt string
	err := row.Scan(&run.ID, &run.RunID, &startedAt, &endedAt, &run.Label, &run.Prompt, &run.Snippet,
		&run.Chars, &run.Rejected, &run.Resets, &run.DurationMs)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RunStats{}, ErrRunNotFound
	}
	if err != nil {
		return model.RunStats{}, err
	}
	if run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return model.RunStats{}, err
	}
	if run.EndedAt, err = time.Parse(time.RFC3339Nano, endedAt); err != nil {
		return model.RunStats{}, err
	}
	return run, nil
}

// ListCharAggregatesForRuns aggregates per-character stats across runs.
func (s *Store) ListCharAggregatesForRuns(ctx context.Context, runIDs []int64) ([]model.CharAggregate, error) {
	if len(runIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(runIDs))
	args := make([]any, len(runIDs))
	for i, id := range runIDs {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf(`SELECT char, SUM(correct) AS correct, SUM(incorrect) AS incorrect,
		SUM(latency_sum_ms) AS latency_sum_ms, SUM(latency_count) AS latency_count
		FROM run_char_stats
		WHERE run_id IN (%s)
		GROUP BY char`, strings.Join(placeholders, ","))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanCharAggregates(rows)
}

func scanCharAggregates(rows *sql.Rows) ([]model.CharAggregate, error) {
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.CharAggregate
	for rows.Next() {
		var agg model.CharAggregate
		if err := rows.Scan(&agg.Char, &agg.Correct, &agg.Incorrect, &agg.LatencySumMs, &agg.LatencyCount); err != nil {
			return nil, err
		}
		result = append(result, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func stripLikeWildcards(s string) string {
	r := strings.NewReplacer("%", "", "_", "")
	return r.Replace(s)
}
