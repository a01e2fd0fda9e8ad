// Package watch re-runs scan and reconciliation whenever the source or the
// destination directory changes.
package watch

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sdejongh/offload/pkg/compare"
	"github.com/sdejongh/offload/pkg/logging"
	"github.com/sdejongh/offload/pkg/models"
	"github.com/sdejongh/offload/pkg/scanner"
)

// DefaultDebounce is the quiet period after the last change before a rescan
const DefaultDebounce = 500 * time.Millisecond

// Snapshot is the result of one scan and reconciliation pass
type Snapshot struct {
	Records []*models.FileRecord
	Summary compare.Summary
	// Trigger is the change that caused this pass; empty for the initial pass
	Trigger string
	Time    time.Time
}

// Options configures a Watcher
type Options struct {
	Debounce time.Duration
	Scanner  *scanner.Scanner
	Logger   logging.Logger
}

// Watcher follows a source and a destination directory
type Watcher struct {
	source     string
	dest       string
	debounce   time.Duration
	scanner    *scanner.Scanner
	reconciler *compare.Reconciler
	logger     logging.Logger
}

// New creates a watcher for source and dest
func New(source, dest string, opts Options) *Watcher {
	logger := logging.Component(opts.Logger, "watch")

	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	s := opts.Scanner
	if s == nil {
		s = scanner.New(logger, nil)
	}

	return &Watcher{
		source:     source,
		dest:       dest,
		debounce:   debounce,
		scanner:    s,
		reconciler: compare.NewReconciler(logger),
		logger:     logger,
	}
}

// Pass scans the source and reconciles it against the destination once
func (w *Watcher) Pass(ctx context.Context, trigger string) Snapshot {
	records := w.reconciler.Reconcile(ctx, w.scanner.Scan(ctx, w.source), w.dest)
	return Snapshot{
		Records: records,
		Summary: compare.Summarize(records),
		Trigger: trigger,
		Time:    time.Now(),
	}
}

// Run delivers an initial snapshot, then one snapshot per burst of changes,
// until ctx is done. Bursts closer together than the debounce period are
// merged into one pass. A destination that cannot be watched (not mounted
// yet) is logged and the source is watched alone.
func (w *Watcher) Run(ctx context.Context, onSnapshot func(Snapshot)) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.source); err != nil {
		return fmt.Errorf("failed to watch source: %w", err)
	}
	if err := fsw.Add(w.dest); err != nil {
		w.logger.Warn(ctx, "Destination not watched", logging.Fields{"dest": w.dest, "error": err.Error()})
	}

	onSnapshot(w.Pass(ctx, ""))

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := ""

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op == fsnotify.Chmod {
				continue
			}
			w.logger.Debug(ctx, "Change detected", logging.Fields{"path": event.Name, "op": event.Op.String()})
			if pending == "" {
				pending = event.String()
			}
			timer.Reset(w.debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn(ctx, "Watch error", logging.Fields{"error": err.Error()})

		case <-timer.C:
			onSnapshot(w.Pass(ctx, pending))
			pending = ""
		}
	}
}
