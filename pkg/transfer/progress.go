package transfer

import (
	"time"

	"github.com/sdejongh/offload/pkg/models"
)

// Phase names the step a progress notification belongs to
type Phase string

const (
	// PhaseCopying is emitted once when a file starts and after every chunk
	PhaseCopying Phase = "copying"
	// PhaseVerifying is emitted when the integrity check of a file starts
	PhaseVerifying Phase = "verifying"
	// PhaseSynced is emitted when a file verified
	PhaseSynced Phase = "synced"
	// PhaseFailed is emitted when a file ended in error
	PhaseFailed Phase = "failed"
	// PhaseStopped is emitted once when a run is abandoned
	PhaseStopped Phase = "stopped"
)

// Progress is one notification sent to the presentation layer.
// Notifications are delivered on the engine goroutine, in order.
type Progress struct {
	Phase   Phase
	Message string

	// Record is the file concerned; nil for PhaseStopped
	Record *models.FileRecord
	Err    error

	FileIndex int // 1-based
	FileCount int

	FileBytes int64
	FileTotal int64

	BatchBytes int64
	BatchTotal int64

	// Throughput is batch bytes copied per second since the batch started
	Throughput float64
	// ETA is the remaining batch bytes at the current throughput; zero until known
	ETA     time.Duration
	Elapsed time.Duration
}

// Fraction returns batch completion in [0,1]
func (p Progress) Fraction() float64 {
	if p.BatchTotal <= 0 {
		return 1
	}
	return float64(p.BatchBytes) / float64(p.BatchTotal)
}

// ProgressFunc receives progress notifications
type ProgressFunc func(Progress)

// CompleteFunc receives the run report once the engine is idle again
type CompleteFunc func(*models.TransferReport)

// rates derives throughput and ETA from the batch counters
func rates(copied, total int64, elapsed time.Duration) (float64, time.Duration) {
	secs := elapsed.Seconds()
	if secs <= 0 || copied <= 0 {
		return 0, 0
	}

	throughput := float64(copied) / secs
	remaining := total - copied
	if remaining <= 0 {
		return throughput, 0
	}
	return throughput, time.Duration(float64(remaining) / throughput * float64(time.Second))
}
