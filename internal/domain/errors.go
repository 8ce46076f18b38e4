package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by the run-control and quarantine operations.
var (
	// ErrAlreadyRunning is returned by StartRun when another run holds the
	// RUNNING status for the same package. Not fatal; callers retry later.
	ErrAlreadyRunning = errors.New("package run already in progress")

	// ErrPackageNotFound is returned when no control record has been
	// provisioned for the requested package name.
	ErrPackageNotFound = errors.New("package not provisioned")

	// ErrResolutionConflict is returned when resolving a quarantine entry
	// that is already resolved. Repeated resolution is operator error and
	// must be visible, never a silent no-op.
	ErrResolutionConflict = errors.New("quarantine entry already resolved")

	// ErrEntryNotFound is returned when a quarantine entry id is unknown.
	ErrEntryNotFound = errors.New("quarantine entry not found")
)

// TransactionError wraps a storage fault that aborted the atomic partition.
// It is fatal to the current run: the orchestrator must end the run as
// FAILED with this message as the diagnostic.
type TransactionError struct {
	Step string
	Err  error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction failed during %s: %v", e.Step, e.Err)
}

func (e *TransactionError) Unwrap() error { return e.Err }

// NewTransactionError wraps err as a partition-aborting fault.
func NewTransactionError(step string, err error) *TransactionError {
	return &TransactionError{Step: step, Err: err}
}
