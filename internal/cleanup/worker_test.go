package cleanup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"taskboard/internal/store"
)

type flakyScrubber struct {
	mu       sync.Mutex
	failures int
	calls    []string
}

func (f *flakyScrubber) PullEverywhere(_ context.Context, field store.ArrayField, value string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, value)
	if f.failures > 0 {
		f.failures--
		return 0, errors.New("store offline")
	}
	return 1, nil
}

func seededStore(t *testing.T, projectID string, users int) *store.MemoryStore {
	t.Helper()
	s := store.NewMemoryStore()
	ctx := context.Background()
	for i := 0; i < users; i++ {
		now := time.Now().UTC()
		user := store.User{ID: uuid.NewString(), Email: uuid.NewString() + "@example.com", PasswordHash: "x", CreatedAt: now, UpdatedAt: now}
		if err := s.InsertUser(ctx, user); err != nil {
			t.Fatalf("insert user: %v", err)
		}
		if _, err := s.Push(ctx, store.UserProjects, user.ID, projectID, 0); err != nil {
			t.Fatalf("push project: %v", err)
		}
	}
	return s
}

func TestScheduleProjectCleanupScrubsMemberships(t *testing.T) {
	projectID := uuid.NewString()
	s := seededStore(t, projectID, 3)
	q := NewMemoryQueue()
	w := NewWorker(q, s, WorkerOptions{})

	if err := w.ScheduleProjectCleanup(context.Background(), projectID); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	w.Wait()

	refs, err := s.Referencing(context.Background(), store.UserProjects, projectID)
	if err != nil {
		t.Fatalf("referencing: %v", err)
	}
	if len(refs) != 0 {
		t.Fatalf("expected no user to list the project, got %v", refs)
	}
	due, _ := q.Due(context.Background(), time.Now().Add(time.Hour), 10)
	if len(due) != 0 {
		t.Fatalf("job should be complete, still queued: %v", due)
	}
}

func TestRunOnceRetriesWithBackoff(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	q := NewMemoryQueue()
	scrub := &flakyScrubber{failures: 1}
	w := NewWorker(q, scrub, WorkerOptions{BaseBackoff: 4 * time.Second, MaxAttempts: 3})
	w.now = func() time.Time { return now }

	_ = q.Enqueue(ctx, "p1", now)
	done, err := w.RunOnce(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if done != 1 {
		t.Fatalf("expected one processed job, got %d", done)
	}
	if due, _ := q.Due(ctx, now.Add(3*time.Second), 10); len(due) != 0 {
		t.Fatalf("retry scheduled too early: %v", due)
	}
	if due, _ := q.Due(ctx, now.Add(4*time.Second), 10); len(due) != 1 {
		t.Fatalf("retry not scheduled after backoff: %v", due)
	}

	now = now.Add(4 * time.Second)
	if _, err := w.RunOnce(ctx); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if due, _ := q.Due(ctx, now.Add(time.Hour), 10); len(due) != 0 {
		t.Fatalf("job should be complete: %v", due)
	}
	if len(scrub.calls) != 2 {
		t.Fatalf("expected two attempts, got %v", scrub.calls)
	}
}

func TestRunOnceBuriesAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	q := NewMemoryQueue()
	scrub := &flakyScrubber{failures: 100}
	w := NewWorker(q, scrub, WorkerOptions{BaseBackoff: time.Second, MaxAttempts: 2})
	w.now = func() time.Time { return now }

	_ = q.Enqueue(ctx, "p1", now)
	for i := 0; i < 2; i++ {
		if _, err := w.RunOnce(ctx); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		now = now.Add(time.Minute)
	}
	dead, _ := q.Dead(ctx)
	if len(dead) != 1 || dead[0] != "p1" {
		t.Fatalf("expected p1 to be buried, got %v", dead)
	}
}

func TestRunOnceSkipsClaimedJobs(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	scrub := &flakyScrubber{}
	w := NewWorker(q, scrub, WorkerOptions{})

	_ = q.Enqueue(ctx, "p1", time.Now().Add(-time.Second))
	if ok, _ := q.Claim(ctx, "p1", time.Minute); !ok {
		t.Fatal("expected claim")
	}
	done, err := w.RunOnce(ctx)
	if err != nil || done != 0 {
		t.Fatalf("done=%d err=%v", done, err)
	}
	if len(scrub.calls) != 0 {
		t.Fatalf("claimed job should not run, got %v", scrub.calls)
	}
}

func TestBackoffIsCapped(t *testing.T) {
	w := NewWorker(NewMemoryQueue(), &flakyScrubber{}, WorkerOptions{BaseBackoff: time.Second, MaxBackoff: 5 * time.Second})
	cases := map[int]time.Duration{1: time.Second, 2: 2 * time.Second, 3: 4 * time.Second, 4: 5 * time.Second, 10: 5 * time.Second}
	for attempts, want := range cases {
		if got := w.backoff(attempts); got != want {
			t.Errorf("backoff(%d) = %s, want %s", attempts, got, want)
		}
	}
}
