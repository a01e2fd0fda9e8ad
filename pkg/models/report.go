package models

import (
	"time"
)

// TransferReport represents the results of one transfer run
type TransferReport struct {
	// Run details
	RunID    string
	DestPath string

	// Timing
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	// Statistics
	Stats Statistics

	// Files holds one outcome per batch entry, in batch order
	Files []FileOutcome

	// Cancelled is set when the run was stopped before the batch was exhausted
	Cancelled bool

	// Fault holds a recovered systemic failure, if any
	Fault string

	// Overall status
	Status RunStatus
}

// Statistics holds transfer run metrics
type Statistics struct {
	FilesTotal     int
	FilesSynced    int
	FilesErrored   int
	FilesUntouched int // Never started, or abandoned on stop

	BytesTotal  int64
	BytesCopied int64

	// AverageSpeed is bytes copied per second of wall-clock time
	AverageSpeed int64
}

// FileOutcome records what happened to one file of the batch
type FileOutcome struct {
	Name    string
	Path    string
	Size    int64
	Status  SyncStatus
	Digest  string
	Error   string
	Elapsed time.Duration
}

// RunStatus represents the overall result
type RunStatus string

const (
	// RunSuccess indicates every file was copied and verified
	RunSuccess RunStatus = "success"
	// RunPartial indicates some files failed
	RunPartial RunStatus = "partial"
	// RunFailed indicates no file was verified
	RunFailed RunStatus = "failed"
	// RunCancelled indicates the run was stopped
	RunCancelled RunStatus = "cancelled"
)

// ExitCode returns the appropriate exit code for the run status
func (s RunStatus) ExitCode() int {
	switch s {
	case RunSuccess:
		return 0
	case RunPartial:
		return 1
	case RunFailed:
		return 2
	case RunCancelled:
		return 3
	default:
		return 2
	}
}

// Finalize computes derived statistics and the overall status
func (r *TransferReport) Finalize(end time.Time) {
	r.EndTime = end
	r.Duration = end.Sub(r.StartTime)
	if secs := r.Duration.Seconds(); secs > 0 {
		r.Stats.AverageSpeed = int64(float64(r.Stats.BytesCopied) / secs)
	}

	r.Stats.FilesUntouched = r.Stats.FilesTotal - r.Stats.FilesSynced - r.Stats.FilesErrored

	switch {
	case r.Cancelled:
		r.Status = RunCancelled
	case r.Stats.FilesErrored == 0 && r.Fault == "" && r.Stats.FilesUntouched == 0:
		r.Status = RunSuccess
	case r.Stats.FilesSynced == 0:
		r.Status = RunFailed
	default:
		r.Status = RunPartial
	}
}
