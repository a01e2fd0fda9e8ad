package output

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/sdejongh/offload/pkg/models"
	"github.com/sdejongh/offload/pkg/transfer"
)

// LineReporter prints one line per file event, for logs and pipes
type LineReporter struct {
	writer io.Writer
}

// NewLineReporter creates a line-oriented reporter
func NewLineReporter(w io.Writer) *LineReporter {
	return &LineReporter{writer: w}
}

// Start prints the batch header
func (r *LineReporter) Start(batch models.Batch, destDir string) error {
	fmt.Fprintf(r.writer, "Offloading %d files (%s) to %s\n",
		len(batch), formatBytes(batch.TotalBytes()), destDir)
	return nil
}

// Progress prints file boundaries; chunk notifications are skipped
func (r *LineReporter) Progress(p transfer.Progress) {
	switch p.Phase {
	case transfer.PhaseCopying:
		if p.FileBytes == 0 {
			fmt.Fprintf(r.writer, "%s (%s)\n", p.Message, formatBytes(p.FileTotal))
		}
	case transfer.PhaseVerifying, transfer.PhaseStopped:
		fmt.Fprintln(r.writer, p.Message)
	case transfer.PhaseSynced:
		done := p.Fraction() * 100
		if p.ETA > 0 {
			fmt.Fprintf(r.writer, "✓ %s (%.0f%%, %s/s, %s left)\n", p.Message, done, formatBytes(int64(p.Throughput)), formatDuration(p.ETA))
		} else {
			fmt.Fprintf(r.writer, "✓ %s (%.0f%%)\n", p.Message, done)
		}
	case transfer.PhaseFailed:
		fmt.Fprintf(r.writer, "✗ %s\n", p.Message)
	}
}

// Complete prints the summary
func (r *LineReporter) Complete(report *models.TransferReport) error {
	return WriteHumanReport(r.writer, report)
}

// Name returns the reporter name
func (r *LineReporter) Name() string {
	return "human"
}

// QuietReporter prints failures and the final status only
type QuietReporter struct {
	writer io.Writer
}

// NewQuietReporter creates a quiet reporter
func NewQuietReporter(w io.Writer) *QuietReporter {
	return &QuietReporter{writer: w}
}

// Start does nothing
func (r *QuietReporter) Start(models.Batch, string) error {
	return nil
}

// Progress prints failures
func (r *QuietReporter) Progress(p transfer.Progress) {
	if p.Phase == transfer.PhaseFailed {
		fmt.Fprintf(r.writer, "✗ %s\n", p.Message)
	}
}

// Complete prints the run status
func (r *QuietReporter) Complete(report *models.TransferReport) error {
	_, err := fmt.Fprintf(r.writer, "Status: %s\n", report.Status)
	return err
}

// Name returns the reporter name
func (r *QuietReporter) Name() string {
	return "quiet"
}

// WriteHumanReport writes the transfer summary in human-readable form
func WriteHumanReport(w io.Writer, report *models.TransferReport) error {
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Transfer %s in %s\n", report.Status, report.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "Summary:\n")
	fmt.Fprintf(w, "  Run:            %s\n", report.RunID)
	fmt.Fprintf(w, "  Destination:    %s\n", report.DestPath)
	fmt.Fprintf(w, "  Files:\n")
	fmt.Fprintf(w, "    Total:        %d\n", report.Stats.FilesTotal)
	fmt.Fprintf(w, "    Synced:       %d\n", report.Stats.FilesSynced)
	fmt.Fprintf(w, "    Errored:      %d\n", report.Stats.FilesErrored)
	fmt.Fprintf(w, "    Untouched:    %d\n", report.Stats.FilesUntouched)
	fmt.Fprintf(w, "  Transfer:\n")
	fmt.Fprintf(w, "    Data:         %s of %s\n", formatBytes(report.Stats.BytesCopied), formatBytes(report.Stats.BytesTotal))
	if report.Stats.AverageSpeed > 0 {
		fmt.Fprintf(w, "    Average speed: %s/s\n", formatBytes(report.Stats.AverageSpeed))
	}

	if report.Fault != "" {
		fmt.Fprintf(w, "\nAborted: %s\n", report.Fault)
	}

	var failed []models.FileOutcome
	for _, f := range report.Files {
		if f.Status == models.StatusError {
			failed = append(failed, f)
		}
	}
	if len(failed) > 0 {
		fmt.Fprintf(w, "\nErrors:\n")
		for _, f := range failed {
			fmt.Fprintf(w, "  %s: %s\n", f.Name, f.Error)
		}
	}

	_, err := fmt.Fprintf(w, "\nStatus: %s\n", report.Status)
	return err
}

// formatBytes formats a byte count with SI units, e.g. "82 MB"
func formatBytes(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.Bytes(uint64(bytes))
}

// formatDuration formats an ETA or elapsed time compactly
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
