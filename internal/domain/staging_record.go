package domain

import "time"

// StagingRecord is one extracted row awaiting validation. Records are written
// by the intake step with both flags false, mutated exactly once by the
// validator, and read by the downstream load step once processed.
type StagingRecord struct {
	ID                int64      `json:"id"`
	TransactionNumber *string    `json:"transaction_number,omitempty"`
	ProductCode       *string    `json:"product_code,omitempty"`
	Quantity          int        `json:"quantity"`
	UnitPrice         float64    `json:"unit_price"`
	SaleDate          *time.Time `json:"sale_date,omitempty"`
	ProcessedFlag     bool       `json:"processed_flag"`
	ErrorFlag         bool       `json:"error_flag"`
	ErrorMessage      *string    `json:"error_message,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// Processable reports whether the record may take the processed path.
// A record that has been flagged in error can never become processed; the
// pair (processed, error) is forbidden both here and by a CHECK constraint
// on the staging table.
func (r StagingRecord) Processable() bool {
	return !r.ProcessedFlag && !r.ErrorFlag
}

// Terminal reports whether the record is read-only for this pipeline stage.
func (r StagingRecord) Terminal() bool {
	return r.ProcessedFlag
}
