package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"bilancio/internal/services"
)

// DueProcessor fires the recurring runs that are due at now.
type DueProcessor interface {
	ProcessDue(ctx context.Context, now time.Time) (services.ProcessResult, error)
}

// Scheduler runs a DueProcessor on a cron schedule. Passes never overlap:
// a tick that arrives while a pass is still running is skipped.
type Scheduler struct {
	cron      *cron.Cron
	schedule  cron.Schedule
	location  *time.Location
	processor DueProcessor
	timeout   time.Duration
	now       func() time.Time
	logger    *slog.Logger

	mu     sync.Mutex
	ctx    context.Context
	passes int
}

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	// Spec is a standard five-field cron expression.
	Spec     string
	Timeout  time.Duration
	Location *time.Location
	Now      func() time.Time
	Logger   *slog.Logger
}

func NewScheduler(processor DueProcessor, cfg SchedulerConfig) (*Scheduler, error) {
	if processor == nil {
		return nil, fmt.Errorf("scheduler needs a processor")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	schedule, err := cron.ParseStandard(cfg.Spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron spec %q: %w", cfg.Spec, err)
	}

	s := &Scheduler{
		schedule:  schedule,
		location:  cfg.Location,
		processor: processor,
		timeout:   cfg.Timeout,
		now:       cfg.Now,
		logger:    cfg.Logger,
		ctx:       context.Background(),
	}
	cl := cronLogger{cfg.Logger}
	s.cron = cron.New(
		cron.WithLocation(cfg.Location),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	s.cron.Schedule(schedule, cron.FuncJob(s.tick))
	return s, nil
}

// Start runs one pass immediately to catch up on missed runs, then starts
// the cron loop. Passes inherit ctx's values and stop when it is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("Initial recurring pass failed", "error", err)
	}
	s.cron.Start()

	s.logger.Info("Recurring scheduler started", "next_run", s.NextRun().Format(time.RFC3339))
}

// NextRun is the next time the cron schedule fires after the current time.
func (s *Scheduler) NextRun() time.Time {
	return s.schedule.Next(s.now().In(s.location))
}

// Stop halts the cron loop. The returned context is done once a running
// pass has finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// RunOnce performs a single pass, bounded by the scheduler timeout.
func (s *Scheduler) RunOnce(ctx context.Context) (services.ProcessResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	res, err := s.processor.ProcessDue(ctx, s.now())

	s.mu.Lock()
	s.passes++
	s.mu.Unlock()

	if err != nil {
		return res, err
	}
	s.logger.Debug("Recurring pass finished",
		"fired", res.Fired,
		"failed", res.Failed,
		"duration_ms", time.Since(start).Milliseconds())
	return res, nil
}

// Passes reports how many passes have run.
func (s *Scheduler) Passes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.passes
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("Recurring pass failed", "error", err)
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
