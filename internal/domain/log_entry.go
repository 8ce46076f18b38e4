package domain

import "time"

// StepStatus describes the outcome recorded for one step execution.
type StepStatus string

const (
	StepStatusStarted StepStatus = "STARTED"
	StepStatusSuccess StepStatus = "SUCCESS"
	StepStatusFailed  StepStatus = "FAILED"
)

// Well-known step names written by the core components.
const (
	StepRun        = "run"
	StepValidation = "staging_validation"
	StepIntake     = "staging_intake"
)

// LogEntry is one immutable row in the append-only run history.
type LogEntry struct {
	ID               int64      `json:"id"`
	PackageName      string     `json:"package_name"`
	StepName         string     `json:"step_name"`
	StartTime        time.Time  `json:"start_time"`
	EndTime          *time.Time `json:"end_time,omitempty"`
	Status           StepStatus `json:"status"`
	RecordsProcessed int        `json:"records_processed"`
	ErrorMessage     *string    `json:"error_message,omitempty"`
}

// LogFilter narrows a run-log range query.
type LogFilter struct {
	PackageName string
	From        *time.Time
	To          *time.Time
	Limit       int
	Offset      int
}
