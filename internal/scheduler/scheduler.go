// Package scheduler drives the periodic jobs. Overlapping runs of the
// same job are skipped, not queued, so a slow cycle can never pile up
// memory or hold database locks across periods.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/oceanobs/streamwatch/internal/logger"
)

// JobFunc is one job invocation. Errors are logged, never fatal; the
// job runs again on its next tick.
type JobFunc func(ctx context.Context) error

type job struct {
	name     string
	interval time.Duration
	fn       JobFunc
	running  sync.Mutex
}

// Scheduler runs registered jobs at fixed intervals until stopped.
type Scheduler struct {
	jobs []*job
	log  logger.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New creates an empty scheduler.
func New(log logger.Logger) *Scheduler {
	return &Scheduler{log: log, stopCh: make(chan struct{})}
}

// Add registers a job. Must be called before Start.
func (s *Scheduler) Add(name string, interval time.Duration, fn JobFunc) {
	s.jobs = append(s.jobs, &job{name: name, interval: interval, fn: fn})
}

// Start launches one goroutine per job. Each job also runs once
// immediately so a freshly started process classifies and delivers
// without waiting a full period.
func (s *Scheduler) Start(ctx context.Context) {
	for _, j := range s.jobs {
		s.wg.Add(1)
		go s.runLoop(ctx, j)
	}
}

func (s *Scheduler) runLoop(ctx context.Context, j *job) {
	defer s.wg.Done()
	s.runOnce(ctx, j)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx, j)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// runOnce executes the job unless a previous run is still in progress,
// in which case the tick is skipped.
func (s *Scheduler) runOnce(ctx context.Context, j *job) {
	if !j.running.TryLock() {
		s.log.Warn("skipping overlapping job run", logger.String("job", j.name))
		return
	}
	defer j.running.Unlock()

	start := time.Now()
	if err := j.fn(ctx); err != nil {
		s.log.Error("job failed",
			logger.String("job", j.name),
			logger.Duration("elapsed", time.Since(start)),
			logger.Error(err))
		return
	}
	s.log.Debug("job complete",
		logger.String("job", j.name),
		logger.Duration("elapsed", time.Since(start)))
}

// Stop signals all job loops to exit and waits for any in-progress runs.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}
