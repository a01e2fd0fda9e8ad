// Package scanner lists the media files sitting directly inside a volume
// directory.
package scanner

import (
	"context"
	"errors"
	"io/fs"
	"sort"
	"strings"

	"github.com/sdejongh/offload/pkg/logging"
	"github.com/sdejongh/offload/pkg/models"
	"github.com/sdejongh/offload/pkg/storage"
)

// Scanner converts directory listings into file records
type Scanner struct {
	logger  logging.Logger
	exclude *Matcher
}

// New creates a scanner. Files whose name matches exclude never become records.
func New(logger logging.Logger, exclude *Matcher) *Scanner {
	return &Scanner{
		logger:  logging.Component(logger, "scanner"),
		exclude: exclude,
	}
}

// Scan lists dir with no exclusions. Listing failures are discarded silently;
// use New with a logger to have them reported.
func Scan(ctx context.Context, dir string) []*models.FileRecord {
	return New(nil, nil).Scan(ctx, dir)
}

// Scan returns one record per regular, non-hidden file directly inside dir,
// sorted by name, each with status missing.
//
// Listing failures never surface: a missing directory yields an empty result,
// and any other failure is logged and yields an empty result too.
func (s *Scanner) Scan(ctx context.Context, dir string) []*models.FileRecord {
	if dir == "" {
		return []*models.FileRecord{}
	}

	volume, err := storage.NewLocal(dir)
	if err != nil {
		s.logListingFailure(ctx, dir, err)
		return []*models.FileRecord{}
	}

	return s.ScanVolume(ctx, volume)
}

// ScanVolume is Scan over an already opened volume
func (s *Scanner) ScanVolume(ctx context.Context, volume storage.Backend) []*models.FileRecord {
	entries, err := volume.List(ctx)
	if err != nil {
		s.logListingFailure(ctx, volume.Root(), err)
		return []*models.FileRecord{}
	}

	records := make([]*models.FileRecord, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsRegular || strings.HasPrefix(entry.Name, ".") {
			continue
		}
		if s.exclude.Match(entry.Name) {
			s.logger.Debug(ctx, "Excluded file", logging.Fields{"name": entry.Name})
			continue
		}
		records = append(records, models.NewFileRecord(entry.Path, entry.Size, entry.ModTime))
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Name < records[j].Name
	})

	s.logger.Debug(ctx, "Scanned directory", logging.Fields{
		"dir":   volume.Root(),
		"files": len(records),
	})

	return records
}

func (s *Scanner) logListingFailure(ctx context.Context, dir string, err error) {
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Debug(ctx, "Directory does not exist", logging.Fields{"dir": dir})
		return
	}
	s.logger.Warn(ctx, "Cannot list directory", logging.Fields{
		"dir":   dir,
		"error": err.Error(),
	})
}
