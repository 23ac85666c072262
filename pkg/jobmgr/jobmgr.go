// Package jobmgr runs named background jobs that can be cancelled by name.
//
// A job name is unique: scheduling a name that is already pending replaces
// the pending job, so the last scheduled job is the only one that can fire.
//
//	jm := jobmgr.NewManager(func(msg string) { logger.Debug(msg) })
//	jm.Debounce("idle:42", 10*time.Second, func(ctx context.Context) error {
//	    return disconnect(ctx)
//	})
//	jm.Cancel("idle:42")
package jobmgr

import (
	"context"
	"sort"
	"sync"
	"time"
)

// StatusReporter receives lifecycle messages such as "scheduled:idle:42",
// "cancelled:idle:42", "done:idle:42" or "error:idle:42:<err>".
type StatusReporter func(string)

type job struct {
	name   string
	cancel context.CancelFunc
}

// Manager tracks pending and running jobs. Safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	jobs     map[string]*job
	wg       sync.WaitGroup
	Reporter StatusReporter
}

// NewManager returns an empty Manager. reporter may be nil.
func NewManager(reporter StatusReporter) *Manager {
	return &Manager{
		jobs:     make(map[string]*job),
		Reporter: reporter,
	}
}

// Debounce schedules run to start after delay under name. A job already
// pending under the same name is cancelled first. Once run has started it
// can no longer be cancelled through the manager; run should re-validate
// whatever condition it acts on.
func (m *Manager) Debounce(name string, delay time.Duration, run func(ctx context.Context) error) {
	ctx, cancel := context.WithCancel(context.Background())
	j := &job{name: name, cancel: cancel}

	m.mu.Lock()
	if prev, ok := m.jobs[name]; ok {
		prev.cancel()
		m.report("cancelled:" + name)
	}
	m.jobs[name] = j
	m.wg.Add(1)
	m.mu.Unlock()

	m.report("scheduled:" + name)

	go func() {
		defer m.wg.Done()
		defer cancel()

		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		// Claim the slot; a concurrent Debounce or Cancel may have won.
		m.mu.Lock()
		if m.jobs[name] != j || ctx.Err() != nil {
			m.mu.Unlock()
			return
		}
		delete(m.jobs, name)
		m.mu.Unlock()

		if err := run(ctx); err != nil {
			m.report("error:" + name + ":" + err.Error())
			return
		}
		m.report("done:" + name)
	}()
}

// Cancel drops the pending job registered under name. It reports whether a
// job was pending.
func (m *Manager) Cancel(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[name]
	if !ok {
		return false
	}
	j.cancel()
	delete(m.jobs, name)
	m.report("cancelled:" + name)
	return true
}

// Pending reports whether a job is waiting under name.
func (m *Manager) Pending(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.jobs[name]
	return ok
}

// List returns the names of pending jobs, sorted.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.jobs))
	for k := range m.jobs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Shutdown cancels every pending job and waits for running ones to return.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	for name, j := range m.jobs {
		j.cancel()
		delete(m.jobs, name)
	}
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Manager) report(s string) {
	if m.Reporter != nil {
		m.Reporter(s)
	}
}
