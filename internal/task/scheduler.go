package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/shelfsync/internal/domain"
	"github.com/phrazzld/shelfsync/internal/store"
	"golang.org/x/sync/semaphore"
)

// ErrTaskTimeout is recorded on a task whose handler exceeded the
// configured execution budget.
var ErrTaskTimeout = errors.New("task execution timed out")

// ErrTaskInterrupted is recorded on a task whose execution was cut short by
// scheduler shutdown rather than its own timeout.
var ErrTaskInterrupted = errors.New("task execution interrupted by shutdown")

// SchedulerConfig holds configuration for the task scheduler.
type SchedulerConfig struct {
	// PollInterval is how long the loop sleeps when a poll returns no work
	// or fails. Fixed interval, not exponential.
	PollInterval time.Duration

	// MaxConcurrentTasks caps how many claimed tasks run at once.
	MaxConcurrentTasks int

	// TaskTimeout is the wall-clock budget for one handler execution.
	TaskTimeout time.Duration

	// BatchSize is the maximum number of due tasks fetched per poll.
	BatchSize int
}

// DefaultSchedulerConfig returns a SchedulerConfig with reasonable defaults.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		PollInterval:       5 * time.Second,
		MaxConcurrentTasks: 4,
		TaskTimeout:        5 * time.Minute,
		BatchSize:          10,
	}
}

// Scheduler polls the durable task store for due work, claims tasks with a
// compare-and-set transition, and executes registered handlers under
// bounded concurrency and a per-task timeout.
//
// The poll/claim loop is single-threaded; each claimed task then runs in
// its own goroutine, so completion order is unconstrained even though claim
// order follows (priority desc, scheduled_at asc).
type Scheduler struct {
	tasks    store.TaskStore
	registry *Registry
	taskCtx  *Context
	config   SchedulerConfig
	limiter  *semaphore.Weighted
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
}

// NewScheduler creates a Scheduler. Handlers must be registered before Run
// is called.
func NewScheduler(
	tasks store.TaskStore,
	taskCtx *Context,
	config SchedulerConfig,
	logger *slog.Logger,
) *Scheduler {
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}
	if config.MaxConcurrentTasks <= 0 {
		config.MaxConcurrentTasks = 1
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 10
	}

	return &Scheduler{
		tasks:    tasks,
		registry: NewRegistry(),
		taskCtx:  taskCtx,
		config:   config,
		limiter:  semaphore.NewWeighted(int64(config.MaxConcurrentTasks)),
		logger:   logger,
	}
}

// RegisterHandler adds a handler to the scheduler's registry. It returns an
// error once Run has started: the registry is immutable while running.
func (s *Scheduler) RegisterHandler(h Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("cannot register handler while scheduler is running")
	}
	return s.registry.Register(h)
}

// Run executes the poll loop until ctx is cancelled. Poll errors are logged
// and treated as an empty cycle; the loop never terminates on transient
// store failure. On return, Run waits for in-flight task goroutines.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	s.logger.Info("starting task scheduler",
		"poll_interval", s.config.PollInterval,
		"max_concurrent", s.config.MaxConcurrentTasks,
		"task_timeout", s.config.TaskTimeout)

	defer s.wg.Wait()

	for {
		count, err := s.pollAndExecute(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				s.logger.Info("task scheduler stopping")
				return ctx.Err()
			}
			s.logger.Error("error polling tasks", "error", err)
		}

		if count > 0 {
			// Work was claimed; poll again immediately in case more is due.
			continue
		}

		select {
		case <-ctx.Done():
			s.logger.Info("task scheduler stopping")
			return ctx.Err()
		case <-time.After(s.config.PollInterval):
		}
	}
}

// pollAndExecute fetches one batch of due tasks and dispatches them.
// Returns the number of tasks claimed or routed this cycle.
func (s *Scheduler) pollAndExecute(ctx context.Context) (int, error) {
	pending, err := s.tasks.GetPending(ctx, s.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch pending tasks: %w", err)
	}

	count := 0
	for _, t := range pending {
		// A task with no registered handler can never run: fail it
		// terminally without ever claiming it into the running state.
		handler, ok := s.registry.Get(t.Type)
		if !ok {
			s.failUnroutable(ctx, t)
			count++
			continue
		}

		// Blocks until a slot frees up, gating claim throughput on limiter
		// availability rather than batch size alone.
		if err := s.limiter.Acquire(ctx, 1); err != nil {
			return count, err
		}

		claimed, err := s.tasks.MarkStarted(ctx, t.ID)
		if err != nil {
			s.limiter.Release(1)
			s.logger.Error("failed to claim task", "task_id", t.ID, "error", err)
			continue
		}
		if !claimed {
			// Another worker took it between poll and claim.
			s.limiter.Release(1)
			continue
		}

		count++
		s.wg.Add(1)
		go s.execute(ctx, t, handler)
	}

	return count, nil
}

// failUnroutable marks a task with no registered handler as terminally
// failed, pending -> failed, skipping the claim and timeout machinery.
func (s *Scheduler) failUnroutable(ctx context.Context, t *domain.Task) {
	errMsg := fmt.Sprintf("no handler registered for task type %q", t.Type)
	s.logger.Warn("task has no registered handler", "task_id", t.ID, "task_type", t.Type)

	if _, err := s.tasks.MarkFailedPermanently(ctx, t.ID, errMsg); err != nil {
		s.logger.Error("failed to mark unroutable task failed",
			"task_id", t.ID, "error", err)
	}
}

// execute runs one claimed task under the configured timeout and records
// the outcome. The limiter slot is released when execution finishes,
// whatever the outcome.
func (s *Scheduler) execute(ctx context.Context, t *domain.Task, handler Handler) {
	defer s.wg.Done()
	defer s.limiter.Release(1)

	log := s.logger.With("task_id", t.ID, "task_type", t.Type, "attempt", t.Attempts+1)

	execCtx, cancel := context.WithTimeout(ctx, s.config.TaskTimeout)
	defer cancel()

	// The handler runs in its own goroutine so a handler that ignores its
	// context cannot stall the scheduler past the timeout. The timeout only
	// stops the wait; it does not guarantee the underlying work stops.
	done := make(chan error, 1)
	go func() {
		done <- handler.Execute(execCtx, s.taskCtx, t.Payload)
	}()

	var execErr error
	select {
	case execErr = <-done:
	case <-execCtx.Done():
		if ctx.Err() != nil {
			// Run's context was cancelled, not the per-task budget. The
			// attempt goes back through the retry rule so the task is
			// picked up again after restart.
			execErr = fmt.Errorf("%w: %v", ErrTaskInterrupted, context.Cause(ctx))
		} else {
			execErr = fmt.Errorf("%w after %s", ErrTaskTimeout, s.config.TaskTimeout)
		}
	}

	// Outcome writes must land even when the run context is already
	// cancelled during shutdown; a write aborted here would strand the task
	// in running, where no poll ever finds it again.
	writeCtx := context.WithoutCancel(ctx)

	if execErr == nil {
		if _, err := s.tasks.MarkCompleted(writeCtx, t.ID); err != nil {
			log.Error("failed to mark task completed", "error", err)
			return
		}
		log.Info("task completed")
		return
	}

	// Timeout counts as a failed attempt like any other error. The store
	// applies the retry rule: back to pending while attempts remain,
	// terminally failed once they are exhausted.
	log.Error("task failed", "error", execErr)
	if _, err := s.tasks.MarkFailed(writeCtx, t.ID, execErr.Error()); err != nil {
		log.Error("failed to record task failure", "error", err)
	}
}
