// Package monitor tracks the health of the scheduled retention job.
package monitor

import (
	"sync"
	"time"
)

// MaxConsecutiveFailures is how many failed runs in a row are tolerated
// before the job reports unhealthy.
const MaxConsecutiveFailures = 3

// JobMonitor records the outcome of every retention run. It is safe for
// concurrent use.
type JobMonitor struct {
	mu                sync.RWMutex
	staleAfter        time.Duration
	started           time.Time
	lastSuccess       time.Time
	lastAttempt       time.Time
	consecutiveErrors int
	lastError         string
	lastRun           any

	now func() time.Time
}

// NewJobMonitor returns a monitor that considers the job stale when it has
// not succeeded within staleAfter. Zero disables the staleness check.
func NewJobMonitor(staleAfter time.Duration) *JobMonitor {
	m := &JobMonitor{staleAfter: staleAfter, now: time.Now}
	m.started = m.now()
	return m
}

// RecordSuccess records a run that finished without errors. run is kept for
// the status report.
func (m *JobMonitor) RecordSuccess(run any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.lastSuccess = now
	m.lastAttempt = now
	m.consecutiveErrors = 0
	m.lastError = ""
	m.lastRun = run
}

// RecordFailure records a run that aborted or finished with errors.
func (m *JobMonitor) RecordFailure(run any, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastAttempt = m.now()
	m.consecutiveErrors++
	if err != nil {
		m.lastError = err.Error()
	}
	if run != nil {
		m.lastRun = run
	}
}

// IsHealthy reports false when the job keeps failing or has not succeeded
// within the stale window.
func (m *JobMonitor) IsHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.healthy()
}

func (m *JobMonitor) healthy() bool {
	if m.consecutiveErrors > MaxConsecutiveFailures {
		return false
	}
	if m.staleAfter <= 0 {
		return true
	}
	since := m.lastSuccess
	if since.IsZero() {
		since = m.started
	}
	return m.now().Sub(since) <= m.staleAfter
}

// Status is the health report served to operators.
type Status struct {
	Healthy           bool   `json:"healthy"`
	LastSuccess       string `json:"last_success,omitempty"`
	TimeSinceSuccess  string `json:"time_since_success,omitempty"`
	LastAttempt       string `json:"last_attempt,omitempty"`
	ConsecutiveErrors int    `json:"consecutive_errors,omitempty"`
	LastError         string `json:"last_error,omitempty"`
	LastRun           any    `json:"last_run,omitempty"`
}

func (m *JobMonitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := Status{
		Healthy: m.healthy(),
		LastRun: m.lastRun,
	}

	if !m.lastSuccess.IsZero() {
		status.LastSuccess = m.lastSuccess.Format(time.RFC3339)
		status.TimeSinceSuccess = m.now().Sub(m.lastSuccess).String()
	}
	if !m.lastAttempt.IsZero() {
		status.LastAttempt = m.lastAttempt.Format(time.RFC3339)
	}
	if m.consecutiveErrors > 0 {
		status.ConsecutiveErrors = m.consecutiveErrors
		status.LastError = m.lastError
	}
	return status
}
