package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Run is one recorded Execute call: metadata plus the terminal result of
// every task in the graph.
type Run struct {
	ID         string // assigned by the caller, conventionally a UUID
	Pipeline   string // pipeline name or path, free-form
	Workers    int
	StartedAt  time.Time
	FinishedAt time.Time
	Tasks      []TaskRecord
}

// TaskRecord is the stored form of one task's terminal result. Task keys are
// arbitrary comparable values, so rows carry a stable fingerprint alongside
// the display strings.
type TaskRecord struct {
	Fingerprint uint64
	Key         string
	Label       string
	Status      string
	Progress    float64
	Context     string
	Output      string
	Error       string
}

// RunSummary is the list view of a recorded run.
type RunSummary struct {
	ID        string
	Pipeline  string
	StartedAt time.Time
	Total     int
	Failed    int
	Skipped   int
}

// OK reports whether the recorded run had no failed or skipped tasks.
func (s RunSummary) OK() bool {
	return s.Failed == 0 && s.Skipped == 0
}

// SaveRun stores a run and its task records in one transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *Run) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, pipeline, workers, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?)
	`, run.ID, run.Pipeline, run.Workers, run.StartedAt.UTC(), run.FinishedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, task := range run.Tasks {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_tasks (run_id, fingerprint, key, label, status, progress, context, output, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, run.ID, int64(task.Fingerprint), task.Key, task.Label, task.Status, task.Progress, task.Context, task.Output, task.Error)
		if err != nil {
			return fmt.Errorf("failed to insert task record %q: %w", task.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID, including its task records.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	run := &Run{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, pipeline, workers, started_at, finished_at
		FROM runs
		WHERE id = ?
	`, runID).Scan(&run.ID, &run.Pipeline, &run.Workers, &run.StartedAt, &run.FinishedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT fingerprint, key, label, status, progress, context, output, error
		FROM run_tasks
		WHERE run_id = ?
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query task records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var task TaskRecord
		var fingerprint int64
		if err := rows.Scan(&fingerprint, &task.Key, &task.Label, &task.Status, &task.Progress, &task.Context, &task.Output, &task.Error); err != nil {
			return nil, fmt.Errorf("failed to scan task record: %w", err)
		}
		task.Fingerprint = uint64(fingerprint)
		run.Tasks = append(run.Tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task records: %w", err)
	}

	return run, nil
}

// ListRuns returns summaries of all recorded runs, most recent first.
func (s *SQLiteStore) ListRuns(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.pipeline, r.started_at,
			COUNT(t.id),
			COALESCE(SUM(CASE WHEN t.status = 'failed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN t.status = 'skipped' THEN 1 ELSE 0 END), 0)
		FROM runs r
		LEFT JOIN run_tasks t ON t.run_id = r.id
		GROUP BY r.id
		ORDER BY r.started_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var summaries []RunSummary
	for rows.Next() {
		var summary RunSummary
		if err := rows.Scan(&summary.ID, &summary.Pipeline, &summary.StartedAt, &summary.Total, &summary.Failed, &summary.Skipped); err != nil {
			return nil, fmt.Errorf("failed to scan run summary: %w", err)
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return summaries, nil
}
