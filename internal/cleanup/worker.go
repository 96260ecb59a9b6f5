package cleanup

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"taskboard/internal/store"
)

// Scrubber is the slice of the store a worker needs.
type Scrubber interface {
	PullEverywhere(ctx context.Context, field store.ArrayField, value string) (int64, error)
}

type WorkerOptions struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	Lease       time.Duration
	BatchSize   int
}

func DefaultWorkerOptions() WorkerOptions {
	return WorkerOptions{
		MaxAttempts: 8,
		BaseBackoff: 2 * time.Second,
		MaxBackoff:  10 * time.Minute,
		Lease:       30 * time.Second,
		BatchSize:   50,
	}
}

// Worker drains the queue. It also implements board.CleanupScheduler, so a
// delete enqueues the job and kicks off an immediate attempt.
type Worker struct {
	queue Queue
	store Scrubber
	opts  WorkerOptions
	now   func() time.Time

	wg sync.WaitGroup
}

func NewWorker(queue Queue, s Scrubber, opts WorkerOptions) *Worker {
	defaults := DefaultWorkerOptions()
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaults.MaxAttempts
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = defaults.BaseBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = defaults.MaxBackoff
	}
	if opts.Lease <= 0 {
		opts.Lease = defaults.Lease
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaults.BatchSize
	}
	return &Worker{queue: queue, store: s, opts: opts, now: time.Now}
}

func (w *Worker) ScheduleProjectCleanup(ctx context.Context, projectID string) error {
	if err := w.queue.Enqueue(ctx, projectID, w.now()); err != nil {
		return err
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), w.opts.Lease)
		defer cancel()
		if _, err := w.RunOnce(ctx); err != nil {
			log.Printf("cleanup: immediate run failed project=%s: %v", projectID, err)
		}
	}()
	return nil
}

// RunOnce attempts every job that is due and returns how many it attempted.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	now := w.now()
	ids, err := w.queue.Due(ctx, now, w.opts.BatchSize)
	if err != nil {
		return 0, err
	}

	attempted := 0
	for _, id := range ids {
		claimed, err := w.queue.Claim(ctx, id, w.opts.Lease)
		if err != nil {
			return attempted, err
		}
		if !claimed {
			continue
		}
		if err := w.process(ctx, id, now); err != nil {
			return attempted, err
		}
		attempted++
	}
	return attempted, nil
}

// process returns an error only when the queue itself fails; scrub failures
// are rescheduled.
func (w *Worker) process(ctx context.Context, projectID string, now time.Time) error {
	n, scrubErr := w.store.PullEverywhere(ctx, store.UserProjects, projectID)
	if scrubErr == nil {
		if n > 0 {
			log.Printf("cleanup: project=%s removed from %d users", projectID, n)
		}
		return w.queue.Complete(ctx, projectID)
	}

	attempts, err := w.queue.Fail(ctx, projectID)
	if err != nil {
		return err
	}
	if attempts >= w.opts.MaxAttempts {
		log.Printf("cleanup: giving up project=%s after %d attempts: %v", projectID, attempts, scrubErr)
		return w.queue.Bury(ctx, projectID)
	}
	next := now.Add(w.backoff(attempts))
	log.Printf("cleanup: attempt %d failed project=%s, retry at %s: %v", attempts, projectID, next.Format(time.RFC3339), scrubErr)
	if err := w.queue.Enqueue(ctx, projectID, next); err != nil {
		return fmt.Errorf("reschedule cleanup %s: %w", projectID, err)
	}
	return nil
}

func (w *Worker) backoff(attempts int) time.Duration {
	d := w.opts.BaseBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= w.opts.MaxBackoff {
			return w.opts.MaxBackoff
		}
	}
	return d
}

// Wait blocks until every immediate run started by ScheduleProjectCleanup
// has returned.
func (w *Worker) Wait() {
	w.wg.Wait()
}
