package storage

import (
	"context"
	"io"
	"os"
	"time"
)

// FileInfo represents metadata about a file
type FileInfo struct {
	Name        string
	Path        string
	Size        int64
	ModTime     time.Time
	IsDir       bool
	IsRegular   bool
	Permissions uint32
}

// Backend defines the interface for volume operations.
// A volume is a single flat directory: offload never descends into subdirectories.
type Backend interface {
	// List returns the immediate entries of the volume, symlinks resolved
	List(ctx context.Context) ([]FileInfo, error)

	// Open opens a file for reading
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// Create creates or truncates a file for writing
	Create(ctx context.Context, name string) (io.WriteCloser, error)

	// Stat returns file metadata
	Stat(ctx context.Context, name string) (*FileInfo, error)

	// SetMetadata replicates modification time and permission bits onto a closed file
	SetMetadata(ctx context.Context, name string, modTime time.Time, perm os.FileMode) error

	// Exists checks if a file exists
	Exists(ctx context.Context, name string) (bool, error)

	// Root returns the absolute directory path of the volume
	Root() string
}
