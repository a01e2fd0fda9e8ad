// Package output renders scan listings, reconciliation tables, transfer
// progress and transfer reports for the command line.
package output

import (
	"io"
	"os"

	"golang.org/x/term"

	"github.com/sdejongh/offload/pkg/models"
	"github.com/sdejongh/offload/pkg/transfer"
)

// Reporter presents a transfer run.
// Progress and Complete are called on the engine goroutine.
type Reporter interface {
	// Start is called once before the batch is handed to the engine
	Start(batch models.Batch, destDir string) error

	// Progress receives every engine notification
	Progress(p transfer.Progress)

	// Complete finalizes output and displays the summary
	Complete(report *models.TransferReport) error

	// Name returns the reporter name
	Name() string
}

// Options selects a Reporter
type Options struct {
	Format   string // "human" or "json"
	Progress bool   // draw a progress bar when writing to a terminal
	Quiet    bool   // only failures and the final status
}

// NewReporter returns the reporter matching opts for w
func NewReporter(w io.Writer, opts Options) Reporter {
	switch {
	case opts.Format == "json":
		return NewJSONReporter(w)
	case opts.Quiet:
		return NewQuietReporter(w)
	case opts.Progress && IsTerminal(w):
		return NewBarReporter(w)
	default:
		return NewLineReporter(w)
	}
}

// IsTerminal reports whether w is an interactive terminal
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// terminalWidth returns the width of w, or fallback when w is not a terminal
func terminalWidth(w io.Writer, fallback int) int {
	if f, ok := w.(*os.File); ok {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			return width
		}
	}
	return fallback
}
