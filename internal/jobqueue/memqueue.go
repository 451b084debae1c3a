package jobqueue

import (
	"context"
	"sync"
	"time"

	"github.com/zyrak/simdoc/internal/models"
)

type pendingEntry struct {
	hint      models.PendingHint
	expiresAt time.Time
}

type jobEntry struct {
	job       models.Job
	expiresAt time.Time
}

// Memory is an in-process fake of Queue for unit tests, with the same
// FIFO-plus-side-storage semantics as RedisQueue but no network dependency.
type Memory struct {
	mu       sync.Mutex
	fifo     []string
	jobs     map[string]jobEntry
	pending  map[string]pendingEntry
	notEmpty chan struct{}
}

// NewMemory creates an empty in-memory queue.
func NewMemory() *Memory {
	return &Memory{
		jobs:     make(map[string]jobEntry),
		pending:  make(map[string]pendingEntry),
		notEmpty: make(chan struct{}, 1),
	}
}

func (m *Memory) Enqueue(_ context.Context, job *models.Job) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job.JobID = newJobID()
	job.Status = models.JobPending
	m.jobs[job.JobID] = jobEntry{job: *job, expiresAt: time.Now().Add(jobTTL)}
	m.fifo = append(m.fifo, job.JobID)

	select {
	case m.notEmpty <- struct{}{}:
	default:
	}
	return job.JobID, nil
}

func (m *Memory) Dequeue(ctx context.Context, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	for {
		m.mu.Lock()
		if len(m.fifo) > 0 {
			id := m.fifo[0]
			m.fifo = m.fifo[1:]
			m.mu.Unlock()
			return id, nil
		}
		m.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", nil
		}
		wait := remaining
		if wait > 20*time.Millisecond {
			wait = 20 * time.Millisecond
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (m *Memory) GetJob(_ context.Context, jobID string) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.jobs[jobID]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, nil
	}
	job := entry.job
	return &job, nil
}

func (m *Memory) UpdateJobStatus(_ context.Context, jobID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.jobs[jobID]
	if !ok {
		return nil
	}
	entry.job.Status = status
	entry.job.UpdatedAt = time.Now().UTC()
	m.jobs[jobID] = entry
	return nil
}

func (m *Memory) DeleteJob(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, jobID)
	return nil
}

func (m *Memory) SetPendingHint(_ context.Context, articleID string, clusterID *string, etaMillis int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[articleID] = pendingEntry{
		hint:      models.PendingHint{ClusterID: clusterID, ETAMillis: etaMillis, Timestamp: time.Now().UTC()},
		expiresAt: time.Now().Add(pendingTTL),
	}
	return nil
}

func (m *Memory) GetPendingHint(_ context.Context, articleID string) (*models.PendingHint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.pending[articleID]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, nil
	}
	hint := entry.hint
	return &hint, nil
}

func (m *Memory) ClearPendingHint(_ context.Context, articleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, articleID)
	return nil
}

func (m *Memory) QueueLength(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.fifo)), nil
}

func (m *Memory) SweepExpiredJobs(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dropped := 0
	now := time.Now()
	for id, entry := range m.jobs {
		if now.After(entry.expiresAt) {
			delete(m.jobs, id)
			dropped++
		}
	}
	return dropped, nil
}

func (m *Memory) ClearAll(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fifo = nil
	m.jobs = make(map[string]jobEntry)
	m.pending = make(map[string]pendingEntry)
	return nil
}

func (m *Memory) Ping(_ context.Context) error { return nil }
