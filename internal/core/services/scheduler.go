package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
	"github.com/Qingzhee/rag-engine/internal/core/ports/driving"
	"github.com/Qingzhee/rag-engine/internal/logger"
)

// Ensure Scheduler implements the interface.
var _ driving.Scheduler = (*Scheduler)(nil)

// historyLimit is the number of results kept per task.
const historyLimit = 100

// TaskFunc is a unit of scheduled work. It returns the number of items
// processed.
type TaskFunc func(ctx context.Context) (int, error)

type scheduledJob struct {
	task  domain.ScheduledTask
	run   TaskFunc
	entry cron.EntryID
	busy  atomic.Bool
}

// Scheduler runs tasks on cron expressions. A task whose previous run is
// still going skips the tick.
type Scheduler struct {
	cron *cron.Cron
	now  func() time.Time

	mu      sync.Mutex
	jobs    map[string]*scheduledJob
	order   []string
	history map[string][]domain.TaskResult
	running bool
	stopCh  chan struct{}
	ctx     context.Context
}

// NewScheduler creates a scheduler accepting five-field cron expressions
// and descriptors such as "@hourly" or "@every 30m".
func NewScheduler() *Scheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Scheduler{
		cron:    cron.New(cron.WithParser(parser)),
		now:     time.Now,
		jobs:    make(map[string]*scheduledJob),
		history: make(map[string][]domain.TaskResult),
		ctx:     context.Background(),
	}
}

// AddJob registers a task. The spec is validated immediately.
func (s *Scheduler) AddJob(id, name, spec string, run TaskFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[id]; exists {
		return fmt.Errorf("%w: task %q already scheduled", domain.ErrInvalidInput, id)
	}
	if run == nil {
		return fmt.Errorf("%w: task %q has no function", domain.ErrInvalidInput, id)
	}

	j := &scheduledJob{
		task: domain.ScheduledTask{ID: id, Name: name, Spec: spec},
		run:  run,
	}
	entry, err := s.cron.AddFunc(spec, func() { s.tick(j) })
	if err != nil {
		return fmt.Errorf("%w: invalid schedule %q: %w", domain.ErrInvalidInput, spec, err)
	}
	j.entry = entry
	s.jobs[id] = j
	s.order = append(s.order, id)

	logger.Info("scheduled %s (%s)", id, spec)
	return nil
}

// Start begins the scheduler loop. This method blocks until Stop is called
// or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil // Already running
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.ctx = ctx
	stopCh := s.stopCh
	s.mu.Unlock()

	s.cron.Start()

	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()
		s.mu.Lock()
		if s.running {
			s.running = false
			close(s.stopCh)
		}
		s.mu.Unlock()
	case <-stopCh:
	}

	<-s.cron.Stop().Done()
	return err
}

// Stop gracefully shuts down the scheduler and waits for running tasks.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	return nil
}

// RunNow executes a task immediately, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, id string) (domain.TaskResult, error) {
	s.mu.Lock()
	j, ok := s.jobs[id]
	s.mu.Unlock()
	if !ok {
		return domain.TaskResult{}, fmt.Errorf("%w: task %q", domain.ErrNotFound, id)
	}
	if !j.busy.CompareAndSwap(false, true) {
		return domain.TaskResult{}, fmt.Errorf("%w: task %q is already running", domain.ErrInvalidInput, id)
	}
	defer j.busy.Store(false)

	return s.execute(ctx, j), nil
}

// Tasks returns the state of every registered task in registration order.
func (s *Scheduler) Tasks() []domain.ScheduledTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := make([]domain.ScheduledTask, 0, len(s.order))
	for _, id := range s.order {
		j := s.jobs[id]
		task := j.task
		task.NextRun = s.cron.Entry(j.entry).Next
		tasks = append(tasks, task)
	}
	return tasks
}

// History returns recent results for a task, most recent first.
func (s *Scheduler) History(id string) []domain.TaskResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := s.history[id]
	out := make([]domain.TaskResult, len(results))
	for i, r := range results {
		out[len(results)-1-i] = r
	}
	return out
}

// tick is invoked by cron.
func (s *Scheduler) tick(j *scheduledJob) {
	if !j.busy.CompareAndSwap(false, true) {
		s.mu.Lock()
		j.task.Skipped++
		s.mu.Unlock()
		logger.Info("scheduler: %s skipped: still running", j.task.ID)
		return
	}
	defer j.busy.Store(false)

	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	s.execute(ctx, j)
}

func (s *Scheduler) execute(ctx context.Context, j *scheduledJob) domain.TaskResult {
	result := domain.TaskResult{
		TaskID:    j.task.ID,
		StartedAt: s.now(),
	}
	logger.Info("scheduler: %s started", j.task.ID)

	items, err := j.run(ctx)
	result.EndedAt = s.now()
	result.ItemsProcessed = items

	s.mu.Lock()
	j.task.LastRun = result.StartedAt
	if err != nil {
		result.Error = err.Error()
		j.task.LastError = err.Error()
	} else {
		result.Success = true
		j.task.LastError = ""
		j.task.LastSuccess = result.EndedAt
	}
	history := append(s.history[j.task.ID], result)
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}
	s.history[j.task.ID] = history
	s.mu.Unlock()

	if err != nil {
		logger.Error("scheduler: %s failed after %s: %v", j.task.ID, result.Duration(), err)
	} else {
		logger.Info("scheduler: %s finished in %s (%d items)", j.task.ID, result.Duration(), items)
	}
	return result
}

// IngestTask returns a task that ingests a folder. Items processed are the
// new and updated files.
func IngestTask(ingestion driving.IngestionService, opts domain.IngestOptions) TaskFunc {
	return func(ctx context.Context) (int, error) {
		stats, err := ingestion.Ingest(ctx, opts)
		if err != nil {
			return 0, err
		}
		for _, msg := range stats.Errors {
			logger.Warn("scheduled ingest: %s", msg)
		}
		return stats.NewFiles + stats.UpdatedFiles, nil
	}
}
