// Package jobmgr runs named asynchronous jobs with cancellation, status
// callbacks, and in-memory tracking of running jobs.
//
// At most one job per name runs at a time. The music scheduler uses this to
// keep a single fetch per guild:
//
//	jm := jobmgr.NewManager(func(msg string) {
//	    log.Println("[DEBUG] job", msg)
//	})
//
//	_, err := jm.StartAsync(ctx, "fetch:1234", func(ctx context.Context) error {
//	    // download until ctx is cancelled
//	    return nil
//	})
//
//	// later...
//	_ = jm.Stop("fetch:1234")
package jobmgr

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

var (
	ErrAlreadyRunning = errors.New("job is already running")
	ErrNotRunning     = errors.New("job is not running")
)

// Job represents a running unit of work.
// Jobs are added and removed by Manager automatically.
type Job struct {
	Name   string
	Cancel context.CancelFunc
	done   chan struct{}
}

// Done is closed when the job's runner has returned.
func (j *Job) Done() <-chan struct{} { return j.done }

// StatusReporter receives lifecycle events for jobs.
// Example messages:
//
//	running:fetch:1234
//	error:fetch:1234:context canceled
//	done:fetch:1234
type StatusReporter func(string)

// Manager orchestrates starting, stopping and tracking jobs.
// It is safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	jobs     map[string]*Job
	wg       sync.WaitGroup
	Reporter StatusReporter
}

// NewManager creates a new Manager.
// The reporter callback may be nil.
func NewManager(reporter StatusReporter) *Manager {
	return &Manager{
		jobs:     make(map[string]*Job),
		Reporter: reporter,
	}
}

// StartAsync runs a job in a separate goroutine and returns immediately.
// The job's context derives from parent. If a job with the same name is
// still registered, ErrAlreadyRunning is returned.
func (m *Manager) StartAsync(parent context.Context, name string, runner func(ctx context.Context) error) (*Job, error) {
	m.mu.Lock()
	if _, exists := m.jobs[name]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRunning, name)
	}

	ctx, cancel := context.WithCancel(parent)
	job := &Job{Name: name, Cancel: cancel, done: make(chan struct{})}
	m.jobs[name] = job
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		defer close(job.done)
		defer cancel()

		m.report("running:" + name)

		err := runner(ctx)
		if err != nil {
			m.report("error:" + name + ":" + err.Error())
		} else {
			m.report("done:" + name)
		}

		m.mu.Lock()
		// Stop may already have released the name for a newer job.
		if m.jobs[name] == job {
			delete(m.jobs, name)
		}
		m.mu.Unlock()
	}()

	return job, nil
}

// Stop cancels a running job by name and frees the name immediately, so a
// new job with the same name can start while the old runner winds down.
func (m *Manager) Stop(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRunning, name)
	}

	job.Cancel()
	delete(m.jobs, name)
	return nil
}

// StopAll cancels every job and waits for all runners to return.
func (m *Manager) StopAll() {
	m.mu.Lock()
	for name, job := range m.jobs {
		job.Cancel()
		delete(m.jobs, name)
	}
	m.mu.Unlock()

	m.wg.Wait()
}

// List returns the sorted names of active jobs.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.jobs))
	for k := range m.jobs {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Status returns a human-readable summary of active jobs.
// Example:
//
//	"Running jobs: fetch:1, fetch:2"
//
// If none are running: "No jobs are running."
func (m *Manager) Status() string {
	active := m.List()
	if len(active) == 0 {
		return "No jobs are running."
	}
	return fmt.Sprintf("Running jobs: %s", strings.Join(active, ", "))
}

// report delivers lifecycle messages to the reporter if present.
func (m *Manager) report(s string) {
	if m.Reporter != nil {
		m.Reporter(s)
	}
}
