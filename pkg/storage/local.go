package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sdejongh/offload/internal/platform"
)

// Local is a filesystem-based volume
type Local struct {
	rootPath string
}

// NewLocal creates a new local volume rooted at a directory
func NewLocal(rootPath string) (*Local, error) {
	absPath, err := platform.ResolveDir(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to access path: %w", err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", absPath)
	}

	return &Local{rootPath: absPath}, nil
}

// Root returns the absolute directory path
func (l *Local) Root() string {
	return l.rootPath
}

// List returns the immediate entries of the directory.
// Symlinks are resolved to their target; dangling links are skipped.
func (l *Local) List(ctx context.Context) ([]FileInfo, error) {
	entries, err := os.ReadDir(l.rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	files := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		// Check context cancellation
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		fullPath := filepath.Join(l.rootPath, entry.Name())
		info, err := os.Stat(fullPath)
		if err != nil {
			continue
		}

		files = append(files, toFileInfo(fullPath, info))
	}

	return files, nil
}

// Open opens a file for reading
func (l *Local) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	fullPath, err := l.resolve(name)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// Create creates or truncates a file for writing
func (l *Local) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	fullPath, err := l.resolve(name)
	if err != nil {
		return nil, err
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	return file, nil
}

// Stat returns file metadata
func (l *Local) Stat(ctx context.Context, name string) (*FileInfo, error) {
	fullPath, err := l.resolve(name)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	fi := toFileInfo(fullPath, info)
	return &fi, nil
}

// SetMetadata sets modification time and permission bits.
// Must be called after the file has been closed, or the final write would
// bump the modification time again.
func (l *Local) SetMetadata(ctx context.Context, name string, modTime time.Time, perm os.FileMode) error {
	fullPath, err := l.resolve(name)
	if err != nil {
		return err
	}

	if !modTime.IsZero() {
		if err := os.Chtimes(fullPath, modTime, modTime); err != nil {
			return fmt.Errorf("failed to set modification time: %w", err)
		}
	}

	if perm != 0 {
		if err := os.Chmod(fullPath, perm); err != nil {
			return fmt.Errorf("failed to set permissions: %w", err)
		}
	}

	return nil
}

// Exists checks if a file exists
func (l *Local) Exists(ctx context.Context, name string) (bool, error) {
	fullPath, err := l.resolve(name)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(fullPath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to check existence: %w", err)
}

// resolve maps a bare file name onto the volume, refusing anything that would
// escape the directory. Only the platform's separators split a name, so a
// backslash is an ordinary character outside Windows.
func (l *Local) resolve(name string) (string, error) {
	if name == "." || filepath.Base(name) != name || !filepath.IsLocal(name) {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	return filepath.Join(l.rootPath, name), nil
}

func toFileInfo(fullPath string, info os.FileInfo) FileInfo {
	return FileInfo{
		Name:        filepath.Base(fullPath),
		Path:        fullPath,
		Size:        info.Size(),
		ModTime:     info.ModTime(),
		IsDir:       info.IsDir(),
		IsRegular:   info.Mode().IsRegular(),
		Permissions: uint32(info.Mode().Perm()),
	}
}
