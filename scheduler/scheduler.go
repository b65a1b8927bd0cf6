package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"ai-exchange/observability"
)

// ErrInvalidInterval is returned for intervals cron cannot schedule
var ErrInvalidInterval = errors.New("interval must be at least one second")

// Task is a unit of periodic work
type Task interface {
	Name() string
	Run(ctx context.Context) error
}

// TaskFunc adapts a function to a named Task
func TaskFunc(name string, fn func(ctx context.Context) error) Task {
	return funcTask{name: name, fn: fn}
}

type funcTask struct {
	name string
	fn   func(ctx context.Context) error
}

func (t funcTask) Name() string                  { return t.name }
func (t funcTask) Run(ctx context.Context) error { return t.fn(ctx) }

// Scheduler runs tasks on fixed intervals. A task never overlaps with itself:
// a tick that fires while the previous run is in flight is skipped. Panics
// in a task are recovered and logged.
type Scheduler struct {
	cron    *cron.Cron
	log     *slog.Logger
	metrics *observability.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// Handle cancels a scheduled task
type Handle struct {
	id     cron.EntryID
	name   string
	s      *Scheduler
	cancel sync.Once
}

// Cancel removes the task from the schedule. A run in flight completes.
func (h *Handle) Cancel() {
	h.cancel.Do(func() {
		h.s.cron.Remove(h.id)
		h.s.log.Info("Task cancelled", "task", h.name)
	})
}

// New creates a scheduler. A nil metrics disables run duration tracking.
func New(metrics *observability.Metrics) *Scheduler {
	log := observability.WithComponent("scheduler")
	cronLog := NewCronLogger(log)

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cron.WithChain(jobWrappers(cronLog)...), cron.WithLogger(cronLog)),
		log:     log,
		metrics: metrics,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// jobWrappers is the chain every scheduled job runs through
func jobWrappers(log cron.Logger) []cron.JobWrapper {
	return []cron.JobWrapper{
		cron.Recover(log),
		cron.SkipIfStillRunning(log),
	}
}

// Every schedules task to run once per interval after Start
func (s *Scheduler) Every(interval time.Duration, task Task) (*Handle, error) {
	if interval < time.Second {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidInterval, interval)
	}

	spec := "@every " + interval.String()
	id, err := s.cron.AddJob(spec, s.job(task))
	if err != nil {
		return nil, fmt.Errorf("failed to schedule %s: %w", task.Name(), err)
	}

	s.log.Info("Task registered", "task", task.Name(), "schedule", spec)
	return &Handle{id: id, name: task.Name(), s: s}, nil
}

// Start starts the scheduler in its own goroutine
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("Scheduler started", "tasks", len(s.cron.Entries()))
}

// Stop cancels the context of running tasks and waits for them to return.
// The scheduler cannot be restarted.
func (s *Scheduler) Stop() {
	s.once.Do(func() {
		s.cancel()
		<-s.cron.Stop().Done()
		s.log.Info("Scheduler stopped")
	})
}

// RunNow executes a task immediately, outside the schedule
func (s *Scheduler) RunNow(ctx context.Context, task Task) error {
	s.log.Debug("Running task immediately", "task", task.Name())
	return s.run(ctx, task)
}

func (s *Scheduler) job(task Task) cron.Job {
	return cron.FuncJob(func() {
		_ = s.run(s.ctx, task)
	})
}

func (s *Scheduler) run(ctx context.Context, task Task) error {
	start := time.Now()
	err := task.Run(ctx)
	duration := time.Since(start)

	if s.metrics != nil {
		s.metrics.RecordRefresh(task.Name(), duration)
	}
	if err != nil {
		s.log.Error("Task failed", "task", task.Name(), "duration", duration, "error", err)
		return err
	}
	s.log.Debug("Task completed", "task", task.Name(), "duration", duration)
	return nil
}
