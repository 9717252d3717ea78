package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/berniemackie97/skillbound-sub002/internal/logging"
	"github.com/berniemackie97/skillbound-sub002/internal/server/monitor"
	"github.com/berniemackie97/skillbound-sub002/internal/server/retention"
)

const (
	maxRunRetries  = 3
	baseRetryDelay = 30 * time.Second
)

type jobRunner interface {
	Run(ctx context.Context, opts retention.Options) *retention.Summary
}

// Scheduler serialises job runs from the ticker and the HTTP API and
// reports every outcome to the monitor.
type Scheduler struct {
	job       jobRunner
	monitor   *monitor.JobMonitor
	log       logging.Logger
	interval  time.Duration
	batchSize int

	mu         sync.Mutex
	retryDelay time.Duration
}

func NewScheduler(job jobRunner, mon *monitor.JobMonitor, interval time.Duration, batchSize int, log logging.Logger) *Scheduler {
	return &Scheduler{
		job:        job,
		monitor:    mon,
		log:        log,
		interval:   interval,
		batchSize:  batchSize,
		retryDelay: baseRetryDelay,
	}
}

// Run performs one job run. Concurrent callers wait for the run in progress
// to finish first.
func (s *Scheduler) Run(ctx context.Context, opts retention.Options) *retention.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	if opts.BatchSize == 0 {
		opts.BatchSize = s.batchSize
	}
	sum := s.job.Run(ctx, opts)

	// dry runs say nothing about the health of the real job
	if opts.DryRun {
		return sum
	}
	switch {
	case sum.Fatal != "":
		s.monitor.RecordFailure(sum, errors.New(sum.Fatal))
	case !sum.Success():
		s.monitor.RecordFailure(sum, errors.New(sum.Errors[0]))
	default:
		s.monitor.RecordSuccess(sum)
	}
	return sum
}

// runWithRetry retries runs that aborted, backing off exponentially. Bucket
// errors are not retried: the next scheduled run picks those rows up again.
func (s *Scheduler) runWithRetry(ctx context.Context) {
	for attempt := 0; attempt <= maxRunRetries; attempt++ {
		if attempt > 0 {
			delay := s.retryDelay * time.Duration(1<<(attempt-1))
			s.log.Info(ctx, "retrying retention run", "delay", delay.String(), "attempt", attempt+1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return
			}
		}

		sum := s.Run(ctx, retention.Options{})
		if sum.Fatal == "" {
			return
		}
		if st := s.monitor.Status(); st.ConsecutiveErrors > monitor.MaxConsecutiveFailures {
			s.log.Error(ctx, "retention job keeps failing", "consecutive_errors", st.ConsecutiveErrors)
		}
	}
	s.log.Warn(ctx, "retention run failed after retries, waiting for the next tick", "attempts", maxRunRetries+1)
}

// Loop runs the job once immediately and then every interval until ctx is
// done. A non-positive interval disables scheduling.
func (s *Scheduler) Loop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	if s.interval <= 0 {
		s.log.Info(ctx, "retention scheduler disabled")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info(ctx, "retention scheduler started", "interval", s.interval.String())
	s.runWithRetry(ctx)

	for {
		select {
		case <-ticker.C:
			s.runWithRetry(ctx)
		case <-ctx.Done():
			s.log.Info(ctx, "stopping retention scheduler")
			return
		}
	}
}
