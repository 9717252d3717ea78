package server

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/berniemackie97/skillbound-sub002/internal/logging"
	"github.com/berniemackie97/skillbound-sub002/internal/server/monitor"
	"github.com/berniemackie97/skillbound-sub002/internal/server/retention"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedJob struct {
	mu      sync.Mutex
	results []*retention.Summary
	calls   []retention.Options
	running int32
	overlap bool
}

func (j *scriptedJob) Run(_ context.Context, opts retention.Options) *retention.Summary {
	if atomic.AddInt32(&j.running, 1) > 1 {
		j.overlap = true
	}
	defer atomic.AddInt32(&j.running, -1)
	time.Sleep(time.Millisecond)

	j.mu.Lock()
	defer j.mu.Unlock()
	j.calls = append(j.calls, opts)
	if len(j.results) == 0 {
		return &retention.Summary{}
	}
	sum := j.results[0]
	if len(j.results) > 1 {
		j.results = j.results[1:]
	}
	return sum
}

func (j *scriptedJob) count() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.calls)
}

func TestScheduler_RunRecordsOutcome(t *testing.T) {
	job := &scriptedJob{results: []*retention.Summary{
		{},
		{Errors: []string{"p1 hourly bucket x: archive: timeout"}},
		{Fatal: "fetch due realtime snapshots: connection reset"},
	}}
	mon := monitor.NewJobMonitor(0)
	s := NewScheduler(job, mon, 0, 500, logging.Discard())
	ctx := context.Background()

	s.Run(ctx, retention.Options{})
	assert.True(t, mon.Status().LastSuccess != "")
	assert.Zero(t, mon.Status().ConsecutiveErrors)

	s.Run(ctx, retention.Options{})
	assert.Equal(t, 1, mon.Status().ConsecutiveErrors)
	assert.Contains(t, mon.Status().LastError, "timeout")

	s.Run(ctx, retention.Options{})
	assert.Equal(t, 2, mon.Status().ConsecutiveErrors)
	assert.Contains(t, mon.Status().LastError, "connection reset")
}

func TestScheduler_DefaultsBatchSizeAndIgnoresDryRunHealth(t *testing.T) {
	job := &scriptedJob{results: []*retention.Summary{{Fatal: "boom"}}}
	mon := monitor.NewJobMonitor(0)
	s := NewScheduler(job, mon, 0, 500, logging.Discard())

	s.Run(context.Background(), retention.Options{DryRun: true})
	s.Run(context.Background(), retention.Options{BatchSize: 7, DryRun: true})

	require.Len(t, job.calls, 2)
	assert.Equal(t, 500, job.calls[0].BatchSize)
	assert.Equal(t, 7, job.calls[1].BatchSize)
	assert.Zero(t, mon.Status().ConsecutiveErrors)
}

func TestScheduler_SerialisesRuns(t *testing.T) {
	job := &scriptedJob{}
	s := NewScheduler(job, monitor.NewJobMonitor(0), 0, 0, logging.Discard())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Run(context.Background(), retention.Options{})
		}()
	}
	wg.Wait()

	assert.Equal(t, 8, job.count())
	assert.False(t, job.overlap)
}

func TestScheduler_RetriesFatalRuns(t *testing.T) {
	job := &scriptedJob{results: []*retention.Summary{{Fatal: "down"}, {Fatal: "down"}, {}}}
	s := NewScheduler(job, monitor.NewJobMonitor(0), 0, 0, logging.Discard())
	s.retryDelay = time.Millisecond

	s.runWithRetry(context.Background())

	assert.Equal(t, 3, job.count())
}

func TestScheduler_GivesUpAfterMaxRetries(t *testing.T) {
	job := &scriptedJob{results: []*retention.Summary{{Fatal: "down"}}}
	s := NewScheduler(job, monitor.NewJobMonitor(0), 0, 0, logging.Discard())
	s.retryDelay = time.Millisecond

	s.runWithRetry(context.Background())

	assert.Equal(t, maxRunRetries+1, job.count())
}

func TestScheduler_LoopDisabled(t *testing.T) {
	job := &scriptedJob{}
	s := NewScheduler(job, monitor.NewJobMonitor(0), 0, 0, logging.Discard())

	var wg sync.WaitGroup
	wg.Add(1)
	s.Loop(context.Background(), &wg)
	wg.Wait()

	assert.Zero(t, job.count())
}

func TestScheduler_LoopRunsUntilCancelled(t *testing.T) {
	job := &scriptedJob{}
	s := NewScheduler(job, monitor.NewJobMonitor(0), 5*time.Millisecond, 0, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go s.Loop(ctx, &wg)

	require.Eventually(t, func() bool { return job.count() >= 2 }, time.Second, time.Millisecond)
	cancel()
	wg.Wait()
}
