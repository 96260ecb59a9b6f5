// Package cleanup runs the background jobs that finish a project delete:
// removing the project id from every user that still lists it. Jobs are
// keyed by project id, so enqueueing twice is harmless and rerunning a job
// changes nothing.
package cleanup

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Queue holds pending cleanup jobs ordered by due time.
type Queue interface {
	Enqueue(ctx context.Context, projectID string, due time.Time) error
	Due(ctx context.Context, now time.Time, limit int) ([]string, error)
	// Claim takes a lease on the job so concurrent workers skip it.
	Claim(ctx context.Context, projectID string, lease time.Duration) (bool, error)
	Complete(ctx context.Context, projectID string) error
	// Fail records a failed attempt, releases the lease and returns the
	// attempt count so far. The job stays queued at its old due time.
	Fail(ctx context.Context, projectID string) (int, error)
	Bury(ctx context.Context, projectID string) error
	Dead(ctx context.Context) ([]string, error)
}

type MemoryQueue struct {
	mu       sync.Mutex
	due      map[string]time.Time
	attempts map[string]int
	leases   map[string]time.Time
	dead     map[string]struct{}
	now      func() time.Time
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		due:      make(map[string]time.Time),
		attempts: make(map[string]int),
		leases:   make(map[string]time.Time),
		dead:     make(map[string]struct{}),
		now:      time.Now,
	}
}

func (q *MemoryQueue) Enqueue(_ context.Context, projectID string, due time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.due[projectID] = due
	return nil
}

func (q *MemoryQueue) Due(_ context.Context, now time.Time, limit int) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	ids := make([]string, 0)
	for id, at := range q.due {
		if !at.After(now) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		return q.due[ids[i]].Before(q.due[ids[j]])
	})
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (q *MemoryQueue) Claim(_ context.Context, projectID string, lease time.Duration) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	if until, held := q.leases[projectID]; held && until.After(now) {
		return false, nil
	}
	q.leases[projectID] = now.Add(lease)
	return true, nil
}

func (q *MemoryQueue) Complete(_ context.Context, projectID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.due, projectID)
	delete(q.attempts, projectID)
	delete(q.leases, projectID)
	return nil
}

func (q *MemoryQueue) Fail(_ context.Context, projectID string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.attempts[projectID]++
	delete(q.leases, projectID)
	return q.attempts[projectID], nil
}

func (q *MemoryQueue) Bury(_ context.Context, projectID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.due, projectID)
	delete(q.attempts, projectID)
	delete(q.leases, projectID)
	q.dead[projectID] = struct{}{}
	return nil
}

func (q *MemoryQueue) Dead(context.Context) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	ids := make([]string, 0, len(q.dead))
	for id := range q.dead {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
