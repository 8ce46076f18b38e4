// Package staging validates newly staged records and atomically partitions
// them into processed and quarantined.
package staging

import (
	"context"
	"log"
	"time"

	"github.com/rpattn/batchctl/internal/domain"
	"github.com/rpattn/batchctl/internal/repository"
)

// Summary reports the outcome of one validation pass.
type Summary struct {
	Processed int `json:"processed"`
	Rejected  int `json:"rejected"`
}

// Validator applies the rejection rules to unprocessed staging records and
// commits the resulting partition as one atomic unit.
type Validator struct {
	staging repository.StagingRepository
	logs    repository.RunLogRepository
	rules   []Rule
}

// NewValidator creates a validator with the built-in rules followed by any
// caller-registered extra rules.
func NewValidator(staging repository.StagingRepository, logs repository.RunLogRepository, extra ...Rule) *Validator {
	rules := DefaultRules()
	rules = append(rules, extra...)
	return &Validator{
		staging: staging,
		logs:    logs,
		rules:   rules,
	}
}

// ValidateAndPartition snapshots all unprocessed records, applies the rules
// with first-match short-circuit, and commits quarantine inserts plus flag
// updates together. On any fault the pass rolls back entirely: no flags
// change, no quarantine entries appear, and the error must be treated as a
// run failure by the caller.
func (v *Validator) ValidateAndPartition(ctx context.Context, packageName string) (Summary, error) {
	start := time.Now()

	records, err := v.staging.ListUnprocessed(ctx)
	if err != nil {
		v.logStep(ctx, packageName, start, domain.StepStatusFailed, 0, err.Error())
		return Summary{}, err
	}

	var outcome repository.PartitionOutcome
	for _, record := range records {
		if message, rejected := firstMatch(v.rules, record); rejected {
			outcome.Rejections = append(outcome.Rejections, repository.Rejection{
				Record:  record,
				Message: message,
			})
			continue
		}
		if record.ErrorFlag {
			// Flagged on an earlier pass and no longer matching any rule;
			// leave it for quarantine triage rather than silently promoting.
			continue
		}
		outcome.ProcessedIDs = append(outcome.ProcessedIDs, record.ID)
	}

	if err := v.staging.ApplyPartition(ctx, outcome); err != nil {
		v.logStep(ctx, packageName, start, domain.StepStatusFailed, 0, err.Error())
		return Summary{}, err
	}

	summary := Summary{
		Processed: len(outcome.ProcessedIDs),
		Rejected:  len(outcome.Rejections),
	}
	v.logStep(ctx, packageName, start, domain.StepStatusSuccess, summary.Processed, "")
	return summary, nil
}

// Loadable returns the records the downstream load step may consume.
func (v *Validator) Loadable(ctx context.Context) ([]domain.StagingRecord, error) {
	return v.staging.ListLoadable(ctx)
}

func (v *Validator) logStep(ctx context.Context, packageName string, start time.Time, status domain.StepStatus, processed int, errorMessage string) {
	if v.logs == nil {
		return
	}
	end := time.Now()
	entry := domain.LogEntry{
		PackageName:      packageName,
		StepName:         domain.StepValidation,
		StartTime:        start,
		EndTime:          &end,
		Status:           status,
		RecordsProcessed: processed,
	}
	if errorMessage != "" {
		entry.ErrorMessage = &errorMessage
	}
	// The partition already committed; a lost step log must not fail the
	// pass, but the audit gap has to be visible.
	if _, err := v.logs.Append(ctx, entry); err != nil {
		log.Printf("[VALIDATE] failed to append run log entry for %s: %v", packageName, err)
	}
}
