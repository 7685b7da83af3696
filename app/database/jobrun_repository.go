package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

var _ JobRunRepository = (*jobRunRepository)(nil)

type jobRunRepository struct {
	db *DB
}

func NewJobRunRepository(db *DB) JobRunRepository {
	return &jobRunRepository{db: db}
}

const jobRunColumns = `id, job_name, status, started_at, completed_at, duration_ms, logs, error_message`

// CreateJobRun persists a running row before any job work happens, so a
// crashed process still leaves an audit trace for reconciliation.
func (r *jobRunRepository) CreateJobRun(ctx context.Context, jobName string) (*JobRun, error) {
	run := &JobRun{
		ID:        uuid.New().String(),
		JobName:   jobName,
		Status:    JobStatusRunning,
		StartedAt: time.Now().UTC(),
	}

	err := withBusyRetry(ctx, func(ctx context.Context) error {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO job_runs (id, job_name, status, started_at, logs, error_message)
			VALUES (?, ?, ?, ?, '[]', '')
		`, run.ID, run.JobName, run.Status, run.StartedAt)
		return err
	})

	if err != nil {
		return nil, fmt.Errorf("failed to create job run: %w", err)
	}

	return run, nil
}

func (r *jobRunRepository) CompleteJobRun(ctx context.Context, id string, status string, errorMessage string, logs []LogEntry, duration time.Duration) error {
	if logs == nil {
		logs = []LogEntry{}
	}
	logsJSON, err := json.Marshal(logs)
	if err != nil {
		return fmt.Errorf("failed to marshal job run logs: %w", err)
	}

	err = withBusyRetry(ctx, func(ctx context.Context) error {
		_, err := r.db.ExecContext(ctx, `
			UPDATE job_runs
			SET status = ?, completed_at = ?, duration_ms = ?, logs = ?, error_message = ?
			WHERE id = ?
		`, status, time.Now().UTC(), duration.Milliseconds(), string(logsJSON), errorMessage, id)
		return err
	})

	if err != nil {
		return fmt.Errorf("failed to complete job run: %w", err)
	}

	return nil
}

func (r *jobRunRepository) GetRunningJobRun(ctx context.Context, jobName string) (*JobRun, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+jobRunColumns+`
		FROM job_runs
		WHERE job_name = ? AND status = ?
		ORDER BY started_at DESC
		LIMIT 1
	`, jobName, JobStatusRunning)

	run, err := scanJobRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get running job run: %w", err)
	}
	return run, nil
}

func (r *jobRunRepository) GetLatestJobRun(ctx context.Context, jobName string) (*JobRun, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+jobRunColumns+`
		FROM job_runs
		WHERE job_name = ?
		ORDER BY started_at DESC
		LIMIT 1
	`, jobName)

	run, err := scanJobRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest job run: %w", err)
	}
	return run, nil
}

func (r *jobRunRepository) ListJobRuns(ctx context.Context, jobName string, limit int) ([]JobRun, error) {
	query := `SELECT ` + jobRunColumns + ` FROM job_runs`
	args := []any{}
	if jobName != "" {
		query += ` WHERE job_name = ?`
		args = append(args, jobName)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list job runs: %w", err)
	}
	defer rows.Close()

	var runs []JobRun
	for rows.Next() {
		run, err := scanJobRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job run row: %w", err)
		}
		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job run rows: %w", err)
	}

	return runs, nil
}

func (r *jobRunRepository) GetJobRunCountsByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*)
		FROM job_runs
		GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get job run counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan job run count: %w", err)
		}
		counts[status] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job run counts: %w", err)
	}

	return counts, nil
}

// MarkStuckJobRuns fails every running row older than the threshold. These
// rows belong to crashed or killed processes; nothing will ever complete them.
func (r *jobRunRepository) MarkStuckJobRuns(ctx context.Context, threshold time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-threshold)

	var marked int64
	err := withBusyRetry(ctx, func(ctx context.Context) error {
		res, err := r.db.ExecContext(ctx, `
			UPDATE job_runs
			SET status = ?, completed_at = ?, error_message = ?
			WHERE status = ? AND started_at < ?
		`, JobStatusFailed, time.Now().UTC(),
			fmt.Sprintf("timed out: run exceeded the %s stuck threshold", threshold),
			JobStatusRunning, cutoff)
		if err != nil {
			return err
		}
		marked, err = res.RowsAffected()
		return err
	})

	if err != nil {
		return 0, fmt.Errorf("failed to mark stuck job runs: %w", err)
	}

	return int(marked), nil
}

func scanJobRun(row rowScanner) (*JobRun, error) {
	var run JobRun
	var logsJSON string

	err := row.Scan(
		&run.ID, &run.JobName, &run.Status, &run.StartedAt, &run.CompletedAt,
		&run.DurationMs, &logsJSON, &run.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(logsJSON), &run.Logs); err != nil {
		slog.Warn("Failed to parse job run logs", "run_id", run.ID, "error", err)
		run.Logs = nil
	}

	return &run, nil
}
