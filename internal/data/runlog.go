package data

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/taskops/telegram-bridge/internal/biz/domain"
	"github.com/taskops/telegram-bridge/internal/biz/repo"
)

// runLogRepo journals recovery runs in SQLite.
type runLogRepo struct {
	db *sql.DB
}

// NewRunLogRepo opens (creating if needed) the run journal under stateDir.
func NewRunLogRepo(stateDir string) (repo.RunLog, error) {
	dbPath := filepath.Join(stateDir, "runs.db")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			mode TEXT NOT NULL,
			exit_code INTEGER NOT NULL,
			elapsed_ms INTEGER NOT NULL,
			output_tail TEXT NOT NULL,
			killed INTEGER NOT NULL,
			started_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &runLogRepo{db: db}, nil
}

func (r *runLogRepo) Close() error {
	return r.db.Close()
}

// Record journals one completed run. A missing ID gets a generated one.
func (r *runLogRepo) Record(ctx context.Context, rec domain.RunRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	killed := 0
	if rec.Killed {
		killed = 1
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (id, mode, exit_code, elapsed_ms, output_tail, killed, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Mode, rec.ExitCode, rec.Elapsed.Milliseconds(), rec.OutputTail, killed, rec.StartedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// Recent returns the latest runs, newest first.
func (r *runLogRepo) Recent(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, mode, exit_code, elapsed_ms, output_tail, killed, started_at
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var records []domain.RunRecord
	for rows.Next() {
		var rec domain.RunRecord
		var elapsedMs, killed, startedAt int64
		if err := rows.Scan(&rec.ID, &rec.Mode, &rec.ExitCode, &elapsedMs, &rec.OutputTail, &killed, &startedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		rec.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		rec.Killed = killed != 0
		rec.StartedAt = time.Unix(startedAt, 0)
		records = append(records, rec)
	}
	return records, rows.Err()
}
