package workflow

import (
	"context"

	"slidenotes/internal/jobs"
	"slidenotes/internal/logging"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running   bool
	LastError string
	LastJob   *jobs.Job
	Active    []string
	JobStats  map[jobs.Status]int
}

// Summary returns the latest workflow information.
func (m *Manager) Summary(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{Running: m.running, LastJob: m.lastJob.Clone()}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	for id := range m.live {
		summary.Active = append(summary.Active, id)
	}
	m.mu.RUnlock()

	list, err := m.store.List(ctx)
	if err != nil {
		m.logger.Warn("failed to read job stats", logging.Error(err))
		return summary
	}
	summary.JobStats = make(map[jobs.Status]int)
	for _, job := range list {
		summary.JobStats[job.Status]++
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastJob(job *jobs.Job) {
	m.mu.Lock()
	m.lastJob = job.Clone()
	m.mu.Unlock()
}
