package repository

import (
	"context"
	"time"

	"github.com/rpattn/batchctl/internal/domain"

	"github.com/google/uuid"
)

// PackageRunRepository defines the interface for run-control records.
type PackageRunRepository interface {
	// Provision creates the control record for a package if it does not
	// exist yet. Existing records are returned unchanged.
	Provision(ctx context.Context, name string) (domain.PackageRun, error)
	Get(ctx context.Context, name string) (domain.PackageRun, error)
	List(ctx context.Context) ([]domain.PackageRun, error)

	// AcquireRun performs the atomic READY/terminal -> RUNNING transition.
	// It zeroes the run counters and stamps last_run_date. Returns
	// domain.ErrAlreadyRunning when another run holds the package and
	// domain.ErrPackageNotFound when no record is provisioned.
	AcquireRun(ctx context.Context, name string, startedAt time.Time) (domain.PackageRun, error)

	// FinishRun writes the terminal status and final counters. It stamps
	// last_success_date only when status is SUCCESS. It does not verify
	// that a matching AcquireRun preceded it.
	FinishRun(ctx context.Context, name string, status domain.RunStatus, counts domain.RunCounts, endedAt time.Time) (domain.PackageRun, error)
}

// Rejection pairs a staging record with the reason it failed validation.
type Rejection struct {
	Record  domain.StagingRecord
	Message string
}

// PartitionOutcome is the staged result of one validation pass, applied as a
// single atomic unit: error flags and quarantine entries for every rejection,
// processed flags for every accepted id. Either all of it commits or none.
type PartitionOutcome struct {
	ProcessedIDs []int64
	Rejections   []Rejection
}

// StagingRepository defines the interface for staged record operations.
type StagingRepository interface {
	// InsertBatch stages newly extracted records with both flags false.
	InsertBatch(ctx context.Context, records []domain.StagingRecord) (int, error)

	// ListUnprocessed returns a consistent snapshot of records awaiting
	// validation, in identity order.
	ListUnprocessed(ctx context.Context) ([]domain.StagingRecord, error)

	// ListLoadable returns records ready for the downstream load step
	// (processed and not in error).
	ListLoadable(ctx context.Context) ([]domain.StagingRecord, error)

	// ApplyPartition commits a validation pass atomically. Quarantine
	// entries are created for rejections that do not already hold an
	// unresolved entry. Any fault rolls the whole pass back and surfaces
	// as a *domain.TransactionError.
	ApplyPartition(ctx context.Context, outcome PartitionOutcome) error
}

// QuarantineRepository stores rejected records awaiting manual resolution.
// Entries are created by StagingRepository.ApplyPartition as part of the
// validation pass; this interface covers the triage side only.
type QuarantineRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.QuarantineEntry, error)
	List(ctx context.Context, status *domain.ResolutionStatus, limit int, offset int) ([]domain.QuarantineEntry, error)

	// Resolve transitions UNRESOLVED -> RESOLVED. An already resolved
	// entry yields domain.ErrResolutionConflict.
	Resolve(ctx context.Context, id uuid.UUID, resolvedBy string) (domain.QuarantineEntry, error)
}

// RunLogRepository is the append-only run history.
type RunLogRepository interface {
	Append(ctx context.Context, entry domain.LogEntry) (domain.LogEntry, error)
	List(ctx context.Context, filter domain.LogFilter) ([]domain.LogEntry, error)
}
