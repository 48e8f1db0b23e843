package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/anjali-yatham/Medisense/pkg/logger"
	"github.com/anjali-yatham/Medisense/pkg/metrics"
)

// TaskFunc is one scheduled operation. Errors are logged and counted;
// they never stop the schedule.
type TaskFunc func(ctx context.Context) error

// Schedule yields the next fire time strictly after from.
type Schedule interface {
	Next(from time.Time) time.Time
}

// Every fires at a fixed interval.
type Every time.Duration

func (e Every) Next(from time.Time) time.Time {
	return from.Add(time.Duration(e))
}

// DailyAt fires once per day at a fixed wall-clock time.
type DailyAt struct {
	Hour   int
	Minute int
}

func (d DailyAt) Next(from time.Time) time.Time {
	next := time.Date(from.Year(), from.Month(), from.Day(), d.Hour, d.Minute, 0, 0, from.Location())
	if !next.After(from) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

type task struct {
	name     string
	schedule Schedule
	run      TaskFunc
}

// Scheduler owns a fixed set of named tasks constructed once at startup.
// Each task runs on its own timer; any task can also be fired directly
// by name, which the admin trigger endpoints and tests rely on.
type Scheduler struct {
	mu      sync.Mutex
	tasks   map[string]*task
	started bool
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func New(logger *logger.Logger, metrics *metrics.Metrics) *Scheduler {
	return &Scheduler{
		tasks:   make(map[string]*task),
		logger:  logger,
		metrics: metrics,
	}
}

// Register adds a named task. Registration after Start is a programming
// error, as is a duplicate name.
func (s *Scheduler) Register(name string, schedule Schedule, fn TaskFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("scheduler already started")
	}
	if _, exists := s.tasks[name]; exists {
		return fmt.Errorf("task %q already registered", name)
	}

	s.tasks[name] = &task{name: name, schedule: schedule, run: fn}
	return nil
}

// TaskNames lists the registered tasks in stable order.
func (s *Scheduler) TaskNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunTask fires one task immediately, with the same accounting as a
// scheduled run.
func (s *Scheduler) RunTask(ctx context.Context, name string) error {
	s.mu.Lock()
	t, ok := s.tasks[name]
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("unknown task %q", name)
	}
	return s.runOnce(ctx, t)
}

// Start launches one timer loop per task and blocks until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.started = true
	tasks := make([]*task, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, t)
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, t := range tasks {
		wg.Add(1)
		go func(t *task) {
			defer wg.Done()
			s.loop(ctx, t)
		}(t)
	}

	s.logger.Info("scheduler started", "tasks", len(tasks))
	wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, t *task) {
	for {
		next := t.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if err := s.runOnce(ctx, t); err != nil {
				s.logger.Error(err, "scheduled task failed", "task", t.name)
			}
		}
	}
}

// runOnce isolates the task: a panic or error inside one tick is logged
// and counted, never propagated to the scheduler loop.
func (s *Scheduler) runOnce(ctx context.Context, t *task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %q panicked: %v", t.name, r)
		}
		s.metrics.SchedulerTicks.WithLabelValues(t.name).Inc()
		if err != nil {
			s.metrics.SchedulerTickErrors.WithLabelValues(t.name).Inc()
		}
	}()

	s.logger.Debug("running scheduled task", "task", t.name)
	return t.run(ctx)
}
