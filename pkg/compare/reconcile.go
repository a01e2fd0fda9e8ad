// Package compare classifies source records against a destination directory.
//
// Reconciliation is a name and size check only. A destination file with the
// right name and size but different content is reported as synced; only a
// digest comparison (transfer.Engine.Verify) can tell the two apart.
package compare

import (
	"context"
	"errors"
	"io/fs"

	"github.com/sdejongh/offload/pkg/logging"
	"github.com/sdejongh/offload/pkg/models"
	"github.com/sdejongh/offload/pkg/storage"
)

// Index maps destination file names to their size in bytes
type Index map[string]int64

// Reconciler matches source records against a destination listing
type Reconciler struct {
	logger logging.Logger
}

// NewReconciler creates a reconciler
func NewReconciler(logger logging.Logger) *Reconciler {
	return &Reconciler{logger: logging.Component(logger, "reconcile")}
}

// Reconcile is Reconciler.Reconcile without a logger, so an unreadable
// destination silently leaves every record missing. Use NewReconciler to have
// the failure reported.
func Reconcile(ctx context.Context, records []*models.FileRecord, destDir string) []*models.FileRecord {
	return NewReconciler(nil).Reconcile(ctx, records, destDir)
}

// BuildIndex is Reconciler.BuildIndex without a logger
func BuildIndex(ctx context.Context, destDir string) Index {
	return NewReconciler(nil).BuildIndex(ctx, destDir)
}

// BuildIndex lists destDir once. Subdirectories are ignored; symlinks count
// with their target's size. Any failure yields an empty index.
func (r *Reconciler) BuildIndex(ctx context.Context, destDir string) Index {
	index := make(Index)

	volume, err := storage.NewLocal(destDir)
	if err != nil {
		r.logIndexFailure(ctx, destDir, err)
		return index
	}

	entries, err := volume.List(ctx)
	if err != nil {
		r.logIndexFailure(ctx, destDir, err)
		return index
	}

	for _, entry := range entries {
		if entry.IsRegular {
			index[entry.Name] = entry.Size
		}
	}
	return index
}

// Reconcile sets every record to synced when destDir holds a file of the same
// name and size, and to missing otherwise. The records are updated in place
// and returned.
func (r *Reconciler) Reconcile(ctx context.Context, records []*models.FileRecord, destDir string) []*models.FileRecord {
	index := r.BuildIndex(ctx, destDir)
	Apply(records, index)

	r.logger.Debug(ctx, "Reconciled records", logging.Fields{
		"dest":       destDir,
		"records":    len(records),
		"dest_files": len(index),
	})
	return records
}

// Apply classifies records against an already built index
func Apply(records []*models.FileRecord, index Index) {
	for _, rec := range records {
		if size, ok := index[rec.Name]; ok && size == rec.Size {
			rec.SetStatus(models.StatusSynced)
		} else {
			rec.SetStatus(models.StatusMissing)
		}
	}
}

func (r *Reconciler) logIndexFailure(ctx context.Context, dir string, err error) {
	if errors.Is(err, fs.ErrNotExist) {
		r.logger.Debug(ctx, "Destination does not exist", logging.Fields{"dest": dir})
		return
	}
	r.logger.Warn(ctx, "Cannot list destination", logging.Fields{
		"dest":  dir,
		"error": err.Error(),
	})
}
