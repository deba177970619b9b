package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/cwaweather/backend/internal/service"
)

// Runner is the part of the pipeline the scheduler drives
type Runner interface {
	Run(ctx context.Context, progress service.Progress) (service.RunResult, error)
}

// Scheduler periodically runs the fetch pipeline inside the server
type Scheduler struct {
	scheduler *gocron.Scheduler
	runner    Runner
	interval  time.Duration
	timeout   time.Duration
}

// New creates a new Scheduler
func New(runner Runner, interval, timeout time.Duration) *Scheduler {
	s := gocron.NewScheduler(time.Local)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		runner:    runner,
		interval:  interval,
		timeout:   timeout,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
// The first run happens immediately.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		log.Println("scheduler: no fetch interval configured; nothing to schedule")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).Do(s.runOnce)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	log.Printf("scheduler: fetching every %s", s.interval)
	return nil
}

func (s *Scheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	result, err := s.runner.Run(ctx, nil)
	if err != nil {
		log.Printf("scheduler: fetch run failed: %v", err)
		return
	}
	log.Printf("scheduler: stored batch %s (%d regions)", result.BatchID, result.Inserted)
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
