package output

import (
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/cheggaaa/pb/v3"

	"github.com/sdejongh/offload/pkg/models"
	"github.com/sdejongh/offload/pkg/transfer"
)

const barTemplate pb.ProgressBarTemplate = `{{string . "prefix"}} {{counters . }} {{bar . "[" "=" ">" " " "]"}} {{percent . }} {{speed . }} {{rtime . "ETA %s"}}`

// refreshRate returns the bar redraw interval.
// Windows terminals are slow with ANSI sequences.
func refreshRate() time.Duration {
	if runtime.GOOS == "windows" {
		return 300 * time.Millisecond
	}
	return 100 * time.Millisecond
}

// BarReporter draws a single byte-based progress bar for the whole batch
type BarReporter struct {
	writer   io.Writer
	bar      *pb.ProgressBar
	failures []string
}

// NewBarReporter creates a progress bar reporter
func NewBarReporter(w io.Writer) *BarReporter {
	return &BarReporter{writer: w}
}

// Start creates and starts the bar
func (r *BarReporter) Start(batch models.Batch, destDir string) error {
	fmt.Fprintf(r.writer, "Offloading %d files (%s) to %s\n",
		len(batch), formatBytes(batch.TotalBytes()), destDir)

	r.bar = pb.New64(batch.TotalBytes()).
		SetTemplate(barTemplate).
		SetWriter(r.writer).
		SetRefreshRate(refreshRate()).
		SetMaxWidth(terminalWidth(r.writer, 120)).
		Set(pb.Bytes, true).
		Set("prefix", "")
	r.bar.Start()
	r.failures = nil
	return nil
}

// Progress moves the bar and keeps failures for the summary
func (r *BarReporter) Progress(p transfer.Progress) {
	if r.bar == nil {
		return
	}

	r.bar.SetCurrent(p.BatchBytes)
	switch p.Phase {
	case transfer.PhaseCopying, transfer.PhaseVerifying:
		r.bar.Set("prefix", fmt.Sprintf("[%d/%d]", p.FileIndex, p.FileCount))
	case transfer.PhaseFailed:
		r.failures = append(r.failures, p.Message)
	}
}

// Complete stops the bar and prints the summary
func (r *BarReporter) Complete(report *models.TransferReport) error {
	if r.bar != nil {
		r.bar.Finish()
		r.bar = nil
	}

	for _, f := range r.failures {
		fmt.Fprintf(r.writer, "✗ %s\n", f)
	}
	return WriteHumanReport(r.writer, report)
}

// Name returns the reporter name
func (r *BarReporter) Name() string {
	return "progress"
}
