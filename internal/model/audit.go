package model

import "time"

// RunStatus is the lifecycle state of a sync run's audit entry.
type RunStatus string

// Audit entry states. An entry is created IN_PROGRESS when the run starts
// and finalized exactly once; finalized entries are never mutated again.
const (
	RunInProgress RunStatus = "IN_PROGRESS"
	RunSuccess    RunStatus = "SUCCESS"
	RunFailed     RunStatus = "FAILED"
	RunPartial    RunStatus = "PARTIAL"
)

// SyncAuditEntry is the persisted record of one engine run.
type SyncAuditEntry struct {
	StartedAt    time.Time
	CompletedAt  time.Time
	RunID        string
	SyncType     string
	SourceFile   string
	Status       RunStatus
	ErrorMessage string
	Summary      RunSummary
	ID           int64
	DryRun       bool
}

// RunSummary holds the aggregate counts for one sync run. The same counts
// are produced in dry-run and commit mode.
type RunSummary struct {
	SkipReasons        map[string]int
	Processed          int
	Added              int
	PriceChanged       int
	DescriptionFlagged int
	Reactivated        int
	Deactivated        int
	Unchanged          int
	SkippedInvalid     int
	BarcodesAdded      int
}
