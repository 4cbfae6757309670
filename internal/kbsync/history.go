package kbsync

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Run is one recorded import or export.
type Run struct {
	ID         string
	Project    string
	Direction  string
	Mode       string
	Status     string
	StartedAt  time.Time
	FinishedAt time.Time
	Answers    int
	Questions  int
	Created    int
	Updated    int
	Dropped    int
	Error      string
}

const (
	DirectionImport = "import"
	DirectionExport = "export"

	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// History persists sync runs.
type History interface {
	Start(ctx context.Context, run *Run) error
	Finish(ctx context.Context, run *Run) error
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS kb_sync_runs (
	id          TEXT PRIMARY KEY,
	project     TEXT NOT NULL,
	direction   TEXT NOT NULL,
	mode        TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ,
	answers     INTEGER NOT NULL DEFAULT 0,
	questions   INTEGER NOT NULL DEFAULT 0,
	created     INTEGER NOT NULL DEFAULT 0,
	updated     INTEGER NOT NULL DEFAULT 0,
	dropped     INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT ''
)`

const insertRunSQL = `
INSERT INTO kb_sync_runs (id, project, direction, mode, status, started_at)
VALUES ($1, $2, $3, $4, $5, $6)`

const finishRunSQL = `
UPDATE kb_sync_runs
SET status = $2, finished_at = $3, answers = $4, questions = $5,
    created = $6, updated = $7, dropped = $8, error = $9
WHERE id = $1`

const recentRunsSQL = `
SELECT id, project, direction, mode, status, started_at, finished_at,
       answers, questions, created, updated, dropped, error
FROM kb_sync_runs
WHERE project = $1
ORDER BY started_at DESC
LIMIT $2`

// PostgresHistory stores runs in the kb_sync_runs table.
type PostgresHistory struct {
	db *sql.DB
}

func NewPostgresHistory(db *sql.DB) *PostgresHistory {
	return &PostgresHistory{db: db}
}

func (h *PostgresHistory) EnsureSchema(ctx context.Context) error {
	if _, err := h.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create kb_sync_runs: %w", err)
	}
	return nil
}

func (h *PostgresHistory) Start(ctx context.Context, run *Run) error {
	_, err := h.db.ExecContext(ctx, insertRunSQL,
		run.ID, run.Project, run.Direction, run.Mode, run.Status, run.StartedAt)
	if err != nil {
		return fmt.Errorf("insert sync run: %w", err)
	}
	return nil
}

func (h *PostgresHistory) Finish(ctx context.Context, run *Run) error {
	res, err := h.db.ExecContext(ctx, finishRunSQL,
		run.ID, run.Status, run.FinishedAt, run.Answers, run.Questions,
		run.Created, run.Updated, run.Dropped, run.Error)
	if err != nil {
		return fmt.Errorf("update sync run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update sync run: run %s not found", run.ID)
	}
	return nil
}

// Recent lists the latest runs of project, newest first.
func (h *PostgresHistory) Recent(ctx context.Context, project string, limit int) ([]Run, error) {
	rows, err := h.db.QueryContext(ctx, recentRunsSQL, project, limit)
	if err != nil {
		return nil, fmt.Errorf("query sync runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Project, &r.Direction, &r.Mode, &r.Status, &r.StartedAt, &finished,
			&r.Answers, &r.Questions, &r.Created, &r.Updated, &r.Dropped, &r.Error); err != nil {
			return nil, fmt.Errorf("scan sync run: %w", err)
		}
		if finished.Valid {
			r.FinishedAt = finished.Time
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
