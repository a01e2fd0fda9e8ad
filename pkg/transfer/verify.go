package transfer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/sdejongh/offload/pkg/models"
	"github.com/sdejongh/offload/pkg/storage"
)

var (
	// ErrSizeMismatch is returned when the destination size differs from the source record
	ErrSizeMismatch = errors.New("size mismatch")
	// ErrDigestUnavailable is returned when either side could not be hashed
	ErrDigestUnavailable = errors.New("digest unavailable")
	// ErrDigestMismatch is returned when source and destination digests differ
	ErrDigestMismatch = errors.New("digest mismatch")
	// ErrStopped is returned for a file abandoned because the run was stopped
	ErrStopped = errors.New("transfer stopped")
)

// Digester produces a content digest of the file at path
type Digester interface {
	Digest(ctx context.Context, path string) (string, error)
}

// Verify checks that destPath is a faithful copy of rec: first by size, then
// by digest. A size difference fails without reading either file.
func (e *Engine) Verify(ctx context.Context, rec *models.FileRecord, destPath string) error {
	volume, err := e.openVolume(filepath.Dir(destPath))
	if err != nil {
		return fmt.Errorf("destination unavailable: %w", err)
	}
	_, err = e.verify(ctx, rec, volume, filepath.Base(destPath))
	return err
}

// verify checks the copy named name on the dest volume
func (e *Engine) verify(ctx context.Context, rec *models.FileRecord, dest storage.Backend, name string) (string, error) {
	info, err := dest.Stat(ctx, name)
	if err != nil {
		return "", fmt.Errorf("failed to stat destination: %w", err)
	}
	if info.Size != rec.Size {
		return "", fmt.Errorf("%w: expected %d bytes, destination has %d", ErrSizeMismatch, rec.Size, info.Size)
	}

	srcDigest, err := e.digester.Digest(ctx, rec.Path)
	if err != nil {
		return "", fmt.Errorf("%w: source: %w", ErrDigestUnavailable, err)
	}

	dstDigest, err := e.digester.Digest(ctx, filepath.Join(dest.Root(), name))
	if err != nil {
		return "", fmt.Errorf("%w: destination: %w", ErrDigestUnavailable, err)
	}

	if srcDigest != dstDigest {
		return "", fmt.Errorf("%w: source %s, destination %s", ErrDigestMismatch, srcDigest, dstDigest)
	}

	return srcDigest, nil
}
