package domain

import (
	"time"

	"github.com/google/uuid"
)

// ResolutionStatus tracks whether an operator has dealt with a quarantined record.
type ResolutionStatus string

const (
	ResolutionStatusUnresolved ResolutionStatus = "UNRESOLVED"
	ResolutionStatusResolved   ResolutionStatus = "RESOLVED"
)

// QuarantineEntry references a rejected staging record together with the
// rejection reason. Entries are created only as a side effect of validation
// and are never deleted; resolution is the only permitted mutation.
type QuarantineEntry struct {
	ID                uuid.UUID        `json:"id"`
	StagingID         int64            `json:"staging_id"`
	TransactionNumber *string          `json:"transaction_number,omitempty"`
	ErrorMessage      string           `json:"error_message"`
	ResolutionStatus  ResolutionStatus `json:"resolution_status"`
	ResolvedBy        *string          `json:"resolved_by,omitempty"`
	ResolvedDate      *time.Time       `json:"resolved_date,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
}

// NewQuarantineEntry creates an unresolved entry for a rejected record.
func NewQuarantineEntry(record StagingRecord, errorMessage string) QuarantineEntry {
	return QuarantineEntry{
		ID:                uuid.New(),
		StagingID:         record.ID,
		TransactionNumber: record.TransactionNumber,
		ErrorMessage:      errorMessage,
		ResolutionStatus:  ResolutionStatusUnresolved,
		CreatedAt:         time.Now(),
	}
}
