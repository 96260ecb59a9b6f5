package cleanup

import (
	"context"
	"testing"
	"time"
)

func TestSchedulerRejectsBadSpecs(t *testing.T) {
	s := NewScheduler(time.Second)
	noop := func(context.Context) error { return nil }

	if err := s.ScheduleInterval("sweep", 500*time.Millisecond, noop); err == nil {
		t.Fatal("expected error for sub-second interval")
	}
	if err := s.Schedule("repair", "not a cron spec", noop); err == nil {
		t.Fatal("expected error for invalid spec")
	}
	if err := s.ScheduleInterval("sweep", 30*time.Second, noop); err != nil {
		t.Fatalf("interval: %v", err)
	}
	if err := s.Schedule("repair", "0 */15 * * * *", noop); err != nil {
		t.Fatalf("cron spec: %v", err)
	}
	if s.Entries() != 2 {
		t.Fatalf("expected 2 entries, got %d", s.Entries())
	}
}

func TestSchedulerRunsJobs(t *testing.T) {
	s := NewScheduler(time.Second)
	ran := make(chan struct{}, 1)
	err := s.ScheduleInterval("tick", time.Second, func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	s.Start()
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}
}
