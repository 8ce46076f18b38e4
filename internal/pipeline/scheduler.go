package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/rpattn/batchctl/internal/domain"

	"github.com/robfig/cron/v3"
)

// Scheduler triggers orchestrated runs on cron schedules. Overlapping fires
// for the same package are absorbed by StartRun's mutual exclusion: the
// losing trigger logs a warning and skips.
type Scheduler struct {
	cron    *cron.Cron
	runner  *Runner
	entries map[string]cron.EntryID // package name -> cron entry
}

// NewScheduler creates a scheduler over the given runner.
func NewScheduler(runner *Runner) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		runner:  runner,
		entries: make(map[string]cron.EntryID),
	}
}

// Register adds a cron schedule for one package.
func (s *Scheduler) Register(packageName, spec string) error {
	if _, exists := s.entries[packageName]; exists {
		return fmt.Errorf("package %s already scheduled", packageName)
	}

	entryID, err := s.cron.AddFunc(spec, func() {
		ctx := context.Background()
		if _, err := s.runner.Execute(ctx, packageName); err != nil {
			if errors.Is(err, domain.ErrAlreadyRunning) {
				log.Printf("[SCHED] %s still running, trigger skipped", packageName)
				return
			}
			log.Printf("[SCHED] scheduled run for %s failed: %v", packageName, err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule package %s: %w", packageName, err)
	}

	s.entries[packageName] = entryID
	return nil
}

// Start begins firing registered schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Printf("[SCHED] scheduler started with %d schedule(s)", len(s.entries))
}

// Stop stops the scheduler and waits for in-flight jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("[SCHED] scheduler stopped")
}
