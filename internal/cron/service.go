package cron

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

const (
	defaultTick        = time.Minute
	defaultLockRefresh = time.Minute
)

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Tick     time.Duration

	// LockRefresh is how often a held lock is extended; keep it well under the lock TTL.
	LockRefresh time.Duration
}

// Service wakes up every tick and runs the jobs that are due.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	tick     time.Duration
	refresh  time.Duration
	now      func() time.Time

	mu      sync.Mutex
	lastRun map[string]time.Time
}

// NewService builds a cron service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	tick := params.Tick
	if tick <= 0 {
		tick = defaultTick
	}
	refresh := params.LockRefresh
	if refresh <= 0 {
		refresh = defaultLockRefresh
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		tick:     tick,
		refresh:  refresh,
		now:      time.Now,
		lastRun:  make(map[string]time.Time),
	}, nil
}

// Run starts the cron loop until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.runCycle(ctx); err != nil {
		s.logg.Error(ctx, "scheduled run failed", err)
	}
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service context canceled")
			return ctx.Err()
		case <-ticker.C:
			if err := s.runCycle(ctx); err != nil {
				s.logg.Error(ctx, "scheduled run failed", err)
			}
		}
	}
}

// RunNow executes one named job immediately under the lock, ignoring its cadence.
func (s *Service) RunNow(ctx context.Context, name string) error {
	job, ok := s.registry.Lookup(name)
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	return s.withLock(ctx, func(ctx context.Context) error {
		return s.runJob(ctx, job)
	})
}

func (s *Service) runCycle(ctx context.Context) error {
	return s.withLock(ctx, func(ctx context.Context) error {
		due := s.dueJobs()
		if len(due) == 0 {
			return nil
		}
		s.logg.Info(s.logg.WithField(ctx, "jobs", len(due)), "scheduled run starting")
		for _, job := range due {
			_ = s.runJob(ctx, job)
		}
		s.logg.Info(ctx, "scheduled run complete")
		return nil
	})
}

// withLock runs fn while holding the cron lock. fn's context is cancelled if
// the lock is lost mid-run so two workers never keep mutating stock together.
func (s *Service) withLock(ctx context.Context, fn func(context.Context) error) error {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.metrics.LockSkipped()
		s.logg.Info(ctx, "another cron instance is running; skipping this cycle")
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go s.keepLock(runCtx, cancel, done)
	defer func() {
		cancel()
		<-done
		if relErr := s.lock.Release(ctx); relErr != nil {
			s.logg.Error(ctx, "failed to release cron lock", relErr)
		}
	}()
	return fn(runCtx)
}

func (s *Service) keepLock(ctx context.Context, lost context.CancelFunc, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.refresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			held, err := s.lock.Refresh(ctx)
			if err != nil {
				if ctx.Err() == nil {
					s.logg.Error(ctx, "cron lock refresh failed", err)
				}
				continue
			}
			if !held {
				s.metrics.LockLost()
				s.logg.Warn(ctx, "cron lock lost, cancelling running jobs")
				lost()
				return
			}
		}
	}
}

func (s *Service) dueJobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var due []Job
	for _, job := range s.registry.Jobs() {
		last, ran := s.lastRun[job.Name()]
		if ran && now.Sub(last) < jobInterval(job) {
			continue
		}
		due = append(due, job)
	}
	return due
}

func (s *Service) markRun(name string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRun[name] = at
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	jobCtx := s.logg.WithJob(ctx, job.Name())
	s.logg.Info(jobCtx, "job start")
	start := s.now()
	s.markRun(job.Name(), start)
	err := job.Run(jobCtx)
	finished := s.now()
	took := finished.Sub(start)
	s.metrics.ObserveRun(job.Name(), took, err, finished)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", took.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		return err
	}
	s.logg.Info(jobCtx, "job completed")
	return nil
}
