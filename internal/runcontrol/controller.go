// Package runcontrol owns the named-run lifecycle: the exclusive
// READY -> RUNNING transition, the terminal transition with final counters,
// and the log entries that bracket a run.
package runcontrol

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rpattn/batchctl/internal/domain"
	"github.com/rpattn/batchctl/internal/repository"
)

// Controller coordinates run-control state for named packages.
type Controller struct {
	runs repository.PackageRunRepository
	logs repository.RunLogRepository
}

// NewController creates a run controller.
func NewController(runs repository.PackageRunRepository, logs repository.RunLogRepository) *Controller {
	return &Controller{runs: runs, logs: logs}
}

// StartRun atomically claims the package for a new run. When another run
// holds the package it returns domain.ErrAlreadyRunning; callers retry on a
// later trigger. On success the run counters are zeroed, last_run_date is
// stamped, and a STARTED entry is appended to the run log.
func (c *Controller) StartRun(ctx context.Context, name string) (domain.PackageRun, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.PackageRun{}, fmt.Errorf("package name is required")
	}

	now := time.Now()
	run, err := c.runs.AcquireRun(ctx, name, now)
	if err != nil {
		return domain.PackageRun{}, err
	}

	_, err = c.logs.Append(ctx, domain.LogEntry{
		PackageName: name,
		StepName:    domain.StepRun,
		StartTime:   now,
		Status:      domain.StepStatusStarted,
	})
	if err != nil {
		return domain.PackageRun{}, fmt.Errorf("run started but log append failed: %w", err)
	}

	return run, nil
}

// EndRun records the terminal state of a run: final status, the three
// counters, and (only on success) last_success_date. It appends a log
// entry carrying the loaded count as records processed. EndRun does not
// verify that a matching StartRun preceded it; bracketing is the caller's
// contract.
func (c *Controller) EndRun(ctx context.Context, name string, status domain.RunStatus, counts domain.RunCounts, errorMessage *string) (domain.PackageRun, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.PackageRun{}, fmt.Errorf("package name is required")
	}
	if !status.Terminal() {
		return domain.PackageRun{}, fmt.Errorf("status %q is not a terminal run status", status)
	}

	now := time.Now()
	run, err := c.runs.FinishRun(ctx, name, status, counts, now)
	if err != nil {
		return domain.PackageRun{}, err
	}

	start := now
	if run.LastRunDate != nil {
		start = *run.LastRunDate
	}
	end := now

	logStatus := domain.StepStatusSuccess
	if status == domain.RunStatusFailed {
		logStatus = domain.StepStatusFailed
	}

	_, err = c.logs.Append(ctx, domain.LogEntry{
		PackageName:      name,
		StepName:         domain.StepRun,
		StartTime:        start,
		EndTime:          &end,
		Status:           logStatus,
		RecordsProcessed: counts.Loaded,
		ErrorMessage:     errorMessage,
	})
	if err != nil {
		return domain.PackageRun{}, fmt.Errorf("run ended but log append failed: %w", err)
	}

	return run, nil
}

// Provision creates the control record for a package if missing.
func (c *Controller) Provision(ctx context.Context, name string) (domain.PackageRun, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.PackageRun{}, fmt.Errorf("package name is required")
	}
	return c.runs.Provision(ctx, name)
}

// Status returns the control record for a package.
func (c *Controller) Status(ctx context.Context, name string) (domain.PackageRun, error) {
	return c.runs.Get(ctx, name)
}

// StatusAll returns every provisioned control record.
func (c *Controller) StatusAll(ctx context.Context) ([]domain.PackageRun, error) {
	return c.runs.List(ctx)
}
