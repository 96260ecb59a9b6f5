package cleanup

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs periodic jobs: the queue sweep and the repair pass.
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
}

func NewScheduler(timeout time.Duration) *Scheduler {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC), cron.WithSeconds()),
		timeout: timeout,
	}
}

// ScheduleInterval runs job every interval, rounded down to whole seconds.
func (s *Scheduler) ScheduleInterval(name string, interval time.Duration, job func(ctx context.Context) error) error {
	seconds := int(interval / time.Second)
	if seconds <= 0 {
		return fmt.Errorf("schedule %s: interval must be at least one second", name)
	}
	return s.Schedule(name, fmt.Sprintf("@every %ds", seconds), job)
}

// Schedule registers job under a cron spec with a seconds field, or a
// descriptor such as "@hourly".
func (s *Scheduler) Schedule(name, spec string, job func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := job(ctx); err != nil {
			log.Printf("scheduler: job=%s failed: %v", name, err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	return nil
}

func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
