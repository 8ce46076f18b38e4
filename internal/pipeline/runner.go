// Package pipeline orchestrates full runs: start, extract, validate, load,
// end. Extraction and loading are external collaborators reached through
// interfaces; the run brackets and the validation pass are owned here.
package pipeline

import (
	"context"
	"log"

	"github.com/rpattn/batchctl/internal/domain"
	"github.com/rpattn/batchctl/internal/notify"
	"github.com/rpattn/batchctl/internal/runcontrol"
	"github.com/rpattn/batchctl/internal/staging"
)

// Extractor pulls new records from the source system into staging. It
// returns the number of records extracted.
type Extractor interface {
	Extract(ctx context.Context, packageName string) (int, error)
}

// TargetLoader moves processed records into the target model. It returns the
// number of records loaded.
type TargetLoader interface {
	Load(ctx context.Context, packageName string, records []domain.StagingRecord) (int, error)
}

// Runner brackets one orchestrated run per call. Absent collaborators are
// skipped: without an Extractor the run validates whatever is already
// staged, without a TargetLoader the loaded count is the processed count.
type Runner struct {
	controller *runcontrol.Controller
	validator  *staging.Validator
	extractor  Extractor
	loader     TargetLoader
	notifier   notify.Notifier
}

// NewRunner creates a run orchestrator. extractor, loader, and notifier may
// be nil.
func NewRunner(controller *runcontrol.Controller, validator *staging.Validator, extractor Extractor, loader TargetLoader, notifier notify.Notifier) *Runner {
	return &Runner{
		controller: controller,
		validator:  validator,
		extractor:  extractor,
		loader:     loader,
		notifier:   notifier,
	}
}

// Execute runs the full pipeline for one package. Any mid-run fault ends the
// run as FAILED with the fault as the diagnostic and returns the original
// error; a start conflict is returned untouched for the caller to absorb.
func (r *Runner) Execute(ctx context.Context, packageName string) (domain.PackageRun, error) {
	if _, err := r.controller.StartRun(ctx, packageName); err != nil {
		return domain.PackageRun{}, err
	}

	counts := domain.RunCounts{}

	if r.extractor != nil {
		extracted, err := r.extractor.Extract(ctx, packageName)
		if err != nil {
			return r.fail(ctx, packageName, counts, err)
		}
		counts.Extracted = extracted
	}

	summary, err := r.validator.ValidateAndPartition(ctx, packageName)
	if err != nil {
		return r.fail(ctx, packageName, counts, err)
	}
	counts.Rejected = summary.Rejected
	counts.Loaded = summary.Processed
	if r.extractor == nil {
		counts.Extracted = summary.Processed + summary.Rejected
	}

	if r.loader != nil {
		records, err := r.validator.Loadable(ctx)
		if err != nil {
			return r.fail(ctx, packageName, counts, err)
		}
		loaded, err := r.loader.Load(ctx, packageName, records)
		if err != nil {
			return r.fail(ctx, packageName, counts, err)
		}
		counts.Loaded = loaded
	}

	run, err := r.controller.EndRun(ctx, packageName, domain.RunStatusSuccess, counts, nil)
	if err != nil {
		return domain.PackageRun{}, err
	}

	r.notifyFinished(ctx, run, nil)
	return run, nil
}

func (r *Runner) fail(ctx context.Context, packageName string, counts domain.RunCounts, cause error) (domain.PackageRun, error) {
	message := cause.Error()
	run, endErr := r.controller.EndRun(ctx, packageName, domain.RunStatusFailed, counts, &message)
	if endErr != nil {
		log.Printf("[RUN] failed to end run %s after fault: %v (fault: %v)", packageName, endErr, cause)
		return domain.PackageRun{}, cause
	}
	r.notifyFinished(ctx, run, &message)
	return run, cause
}

func (r *Runner) notifyFinished(ctx context.Context, run domain.PackageRun, errorMessage *string) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.RunFinished(ctx, run, errorMessage); err != nil {
		log.Printf("[RUN] notification for %s failed: %v", run.PackageName, err)
	}
}
