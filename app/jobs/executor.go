package jobs

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/feedloop/feedloop/app/database"
)

// DefaultStuckThreshold is how long a run may stay in the running state
// before reconciliation declares it dead.
const DefaultStuckThreshold = 10 * time.Minute

// ErrAlreadyRunning reports that a job was refused because another run of
// the same job holds the single-flight guard.
var ErrAlreadyRunning = errors.New("job is already running")

// JobFunc is the body of a job. Records logged through the supplied logger
// are captured on the run record.
type JobFunc func(ctx context.Context, log *slog.Logger) error

// Executor runs named jobs with single-flight semantics, recording every
// attempt as a job run. A returned error always means the run could not be
// started or recorded; a job body failing is reported through the run's
// status, not the error.
type Executor struct {
	runRepo   database.JobRunRepository
	locks     LockProvider
	threshold time.Duration
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func NewExecutor(runRepo database.JobRunRepository, locks LockProvider, threshold time.Duration) *Executor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Executor{
		runRepo:   runRepo,
		locks:     locks,
		threshold: cmp.Or(threshold, DefaultStuckThreshold),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Execute runs the job synchronously and returns its completed run record.
func (e *Executor) Execute(name string, fn JobFunc) (*database.JobRun, error) {
	run, err := e.begin(name)
	if err != nil {
		return nil, err
	}
	return e.run(run, fn)
}

// Start begins the job and returns immediately with the run still in the
// running state; completion happens in the background.
func (e *Executor) Start(name string, fn JobFunc) (*database.JobRun, error) {
	run, err := e.begin(name)
	if err != nil {
		return nil, err
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run(run, fn)
	}()

	return run, nil
}

// ReconcileStuckRuns fails every run that has been in the running state for
// longer than the stuck threshold.
func (e *Executor) ReconcileStuckRuns() (int, error) {
	count, err := e.runRepo.MarkStuckJobRuns(e.ctx, e.threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to reconcile stuck job runs: %w", err)
	}
	if count > 0 {
		slog.Warn("Reconciled stuck job runs", "count", count)
	}
	return count, nil
}

// Stop cancels job contexts and waits for background completions.
func (e *Executor) Stop() {
	e.cancel()
	e.wg.Wait()
}

// begin takes the single-flight guard and creates the run record. A running
// record younger than the stuck threshold refuses the start; an older one is
// treated as a leftover from a dead process and reconciled instead.
func (e *Executor) begin(name string) (*database.JobRun, error) {
	ok, err := e.locks.Acquire(e.ctx, name, e.threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire job lock: %w", err)
	}
	if !ok {
		return nil, ErrAlreadyRunning
	}

	running, err := e.runRepo.GetRunningJobRun(e.ctx, name)
	if err != nil {
		e.release(name)
		return nil, fmt.Errorf("failed to check for running job: %w", err)
	}
	if running != nil {
		if time.Since(running.StartedAt) < e.threshold {
			e.release(name)
			return nil, ErrAlreadyRunning
		}
		if _, err := e.runRepo.MarkStuckJobRuns(e.ctx, e.threshold); err != nil {
			e.release(name)
			return nil, fmt.Errorf("failed to reconcile stuck job runs: %w", err)
		}
		slog.Warn("Reconciled stuck job run before start", "job", name, "run_id", running.ID)
	}

	run, err := e.runRepo.CreateJobRun(e.ctx, name)
	if err != nil {
		e.release(name)
		return nil, fmt.Errorf("failed to create job run: %w", err)
	}

	return run, nil
}

func (e *Executor) run(run *database.JobRun, fn JobFunc) (*database.JobRun, error) {
	defer e.release(run.JobName)

	handler := NewRunLogHandler(slog.Default().Handler())
	log := slog.New(handler)

	ctx, cancel := context.WithTimeout(e.ctx, e.threshold)
	defer cancel()

	start := time.Now()
	err := e.invoke(ctx, log, fn)
	duration := time.Since(start)

	status := database.JobStatusSucceeded
	errorMessage := ""
	if err != nil {
		status = database.JobStatusFailed
		errorMessage = err.Error()
		log.Error("Job failed", "job", run.JobName, "error", err)
	}

	// The completion write must survive executor shutdown.
	if completeErr := e.runRepo.CompleteJobRun(context.Background(), run.ID, status, errorMessage, handler.Entries(), duration); completeErr != nil {
		slog.Error("Failed to complete job run", "job", run.JobName, "run_id", run.ID, "error", completeErr)
		return run, fmt.Errorf("failed to complete job run: %w", completeErr)
	}

	run.Status = status
	run.ErrorMessage = errorMessage
	run.DurationMs = duration.Milliseconds()
	run.Logs = handler.Entries()

	return run, nil
}

func (e *Executor) invoke(ctx context.Context, log *slog.Logger, fn JobFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, log)
}

// release must survive executor shutdown, otherwise a lease lingers until
// its TTL expires.
func (e *Executor) release(name string) {
	if err := e.locks.Release(context.Background(), name); err != nil {
		slog.Error("Failed to release job lock", "job", name, "error", err)
	}
}
