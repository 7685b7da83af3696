package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/feedloop/feedloop/app/database"
)

// Job names as recorded in job_runs.job_name.
const (
	JobRefresh = "refresh"
	JobCleanup = "cleanup"
)

// ErrUnknownJob reports a trigger for a name no job was registered under.
var ErrUnknownJob = errors.New("unknown job")

type SchedulerOptions struct {
	Enabled bool
}

type JobStatus struct {
	Name       string
	Schedule   string
	Running    bool
	LastStatus string
	LastRunAt  *time.Time
	LastError  string
	NextRunAt  *time.Time
}

type SchedulerStatus struct {
	Enabled     bool
	Initialized bool
	Jobs        []JobStatus
}

type job struct {
	name     string
	schedule string
	fn       JobFunc
	entryID  cron.EntryID
}

// Scheduler drives registered jobs on cron schedules through the executor.
// Manual triggering stays available even when scheduling is disabled.
type Scheduler struct {
	executor *Executor
	runRepo  database.JobRunRepository
	cron     *cron.Cron
	enabled  bool

	mu          sync.Mutex
	initialized bool
	jobs        []*job
	byName      map[string]*job
}

func NewScheduler(executor *Executor, runRepo database.JobRunRepository, opts SchedulerOptions) *Scheduler {
	return &Scheduler{
		executor: executor,
		runRepo:  runRepo,
		cron:     cron.New(),
		enabled:  opts.Enabled,
		byName:   make(map[string]*job),
	}
}

// Register adds a named job. All registrations must happen before
// Initialize.
func (s *Scheduler) Register(name string, schedule string, fn JobFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j := &job{name: name, schedule: schedule, fn: fn}
	s.jobs = append(s.jobs, j)
	s.byName[name] = j
}

// Initialize reconciles leftover runs and starts the cron loop. Repeated
// calls after the first are no-ops.
func (s *Scheduler) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}

	if _, err := s.executor.ReconcileStuckRuns(); err != nil {
		return err
	}

	if !s.enabled {
		s.initialized = true
		slog.Info("Scheduled jobs disabled, manual triggering only")
		return nil
	}

	for _, j := range s.jobs {
		entryID, err := s.cron.AddFunc(j.schedule, func() { s.runJob(j) })
		if err != nil {
			return fmt.Errorf("failed to schedule job %s: %w", j.name, err)
		}
		j.entryID = entryID
		slog.Info("Job scheduled", "job", j.name, "schedule", j.schedule)
	}

	s.cron.Start()
	s.initialized = true

	return nil
}

// TriggerManually starts a job outside its schedule and returns the created
// run without waiting for completion. Works even when scheduling is
// disabled.
func (s *Scheduler) TriggerManually(name string) (*database.JobRun, error) {
	s.mu.Lock()
	j, ok := s.byName[name]
	s.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}

	return s.executor.Start(j.name, j.fn)
}

func (s *Scheduler) Status() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := SchedulerStatus{Enabled: s.enabled, Initialized: s.initialized}

	for _, j := range s.jobs {
		js := JobStatus{Name: j.name, Schedule: j.schedule}

		if run, err := s.runRepo.GetLatestJobRun(context.Background(), j.name); err != nil {
			slog.Error("Failed to get latest job run", "job", j.name, "error", err)
		} else if run != nil {
			js.Running = run.Status == database.JobStatusRunning
			js.LastStatus = run.Status
			js.LastRunAt = &run.StartedAt
			js.LastError = run.ErrorMessage
		}

		if s.enabled && s.initialized {
			if next := s.cron.Entry(j.entryID).Next; !next.IsZero() {
				js.NextRunAt = &next
			}
		}

		status.Jobs = append(status.Jobs, js)
	}

	return status
}

// Stop halts the cron loop. In-flight jobs are cancelled through the
// executor, not here.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

func (s *Scheduler) runJob(j *job) {
	_, err := s.executor.Execute(j.name, j.fn)
	if errors.Is(err, ErrAlreadyRunning) {
		slog.Warn("Job still running, skipping scheduled run", "job", j.name)
		return
	}
	if err != nil {
		slog.Error("Job execution failed", "job", j.name, "error", err)
	}
}
