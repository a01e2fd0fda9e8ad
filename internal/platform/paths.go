package platform

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizePath normalizes a directory path for the current platform.
// The path is cleaned and composed to Unicode NFC, the form operators type.
func NormalizePath(path string) string {
	normalized := filepath.Clean(norm.NFC.String(path))

	// Keep the double leading separator of a network share
	if IsUNCPath(path) && !strings.HasPrefix(normalized, `\\`) {
		normalized = `\\` + strings.TrimLeft(normalized, `\/`)
	}

	return normalized
}

// ResolveDir returns the absolute form of a volume directory path.
//
// The NFC form is preferred; when it does not exist on disk but the path as
// given does (volumes written with decomposed names), the given form is kept.
func ResolveDir(path string) (string, error) {
	if err := ValidatePath(path); err != nil {
		return "", err
	}

	candidate := NormalizePath(path)
	if _, err := os.Stat(candidate); err != nil {
		raw := filepath.Clean(path)
		if _, rawErr := os.Stat(raw); rawErr == nil {
			candidate = raw
		}
	}

	return filepath.Abs(candidate)
}

// IsUNCPath checks if a path is a UNC path (Windows network share)
func IsUNCPath(path string) bool {
	if runtime.GOOS != "windows" {
		return false
	}
	return strings.HasPrefix(path, "\\\\") || strings.HasPrefix(path, "//")
}

// ValidatePath checks if a path is valid for the current platform
func ValidatePath(path string) error {
	if path == "" {
		return &PathError{Path: path, Message: "path is empty"}
	}

	if runtime.GOOS == "windows" {
		rest := path
		if vol := filepath.VolumeName(path); vol != "" {
			rest = path[len(vol):]
		}
		for _, char := range []string{"<", ">", ":", "\"", "|", "?", "*"} {
			if strings.Contains(rest, char) {
				return &PathError{Path: path, Message: "path contains invalid character: " + char}
			}
		}
	}

	return nil
}

// PathError represents a path validation error
type PathError struct {
	Path    string
	Message string
}

func (e *PathError) Error() string {
	return "invalid path '" + e.Path + "': " + e.Message
}
