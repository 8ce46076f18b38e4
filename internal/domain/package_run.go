package domain

import "time"

// RunStatus describes the lifecycle state of a package run.
type RunStatus string

const (
	RunStatusReady   RunStatus = "READY"
	RunStatusRunning RunStatus = "RUNNING"
	RunStatusSuccess RunStatus = "SUCCESS"
	RunStatusFailed  RunStatus = "FAILED"
)

// Valid reports whether the status is one of the known run states.
func (s RunStatus) Valid() bool {
	switch s {
	case RunStatusReady, RunStatusRunning, RunStatusSuccess, RunStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether the status may be passed to EndRun.
func (s RunStatus) Terminal() bool {
	return s == RunStatusSuccess || s == RunStatusFailed
}

// PackageRun is the control record for a named pipeline. At most one run per
// package name may hold RunStatusRunning at any instant; the repository
// enforces that transition with a compare-and-set.
type PackageRun struct {
	PackageName      string     `json:"package_name"`
	Status           RunStatus  `json:"status"`
	LastRunDate      *time.Time `json:"last_run_date,omitempty"`
	LastSuccessDate  *time.Time `json:"last_success_date,omitempty"`
	RecordsExtracted int        `json:"records_extracted"`
	RecordsLoaded    int        `json:"records_loaded"`
	RecordsRejected  int        `json:"records_rejected"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// RunCounts carries the final counters reported when a run ends.
type RunCounts struct {
	Extracted int `json:"extracted"`
	Loaded    int `json:"loaded"`
	Rejected  int `json:"rejected"`
}
