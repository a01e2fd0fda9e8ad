package platform

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestNormalizePath(t *testing.T) {
	decomposed := "Came\u0301ra"
	composed := "Cam\u00e9ra"

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Clean", "/Volumes//A001/./", "/Volumes/A001"},
		{"ComposesNFC", "/Volumes/" + decomposed, "/Volumes/" + composed},
		{"AlreadyNFC", "/Volumes/" + composed, "/Volumes/" + composed},
	}

	if runtime.GOOS == "windows" {
		t.Skip("posix separators")
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizePath(tt.input); got != tt.expected {
				t.Errorf("NormalizePath(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestResolveDir(t *testing.T) {
	t.Run("Relative", func(t *testing.T) {
		tempDir := t.TempDir()
		oldWd, _ := os.Getwd()
		if err := os.Chdir(tempDir); err != nil {
			t.Fatalf("Chdir() error = %v", err)
		}
		defer os.Chdir(oldWd)

		if err := os.Mkdir("card", 0755); err != nil {
			t.Fatalf("Mkdir() error = %v", err)
		}

		got, err := ResolveDir("card")
		if err != nil {
			t.Fatalf("ResolveDir() error = %v", err)
		}
		if !filepath.IsAbs(got) || filepath.Base(got) != "card" {
			t.Errorf("ResolveDir() = %q, want absolute path ending in card", got)
		}
	})

	t.Run("KeepsDecomposedWhenOnlyThatExists", func(t *testing.T) {
		if runtime.GOOS == "darwin" {
			t.Skip("filesystem normalises names")
		}
		decomposed := filepath.Join(t.TempDir(), "Came\u0301ra")
		if err := os.Mkdir(decomposed, 0755); err != nil {
			t.Fatalf("Mkdir() error = %v", err)
		}

		got, err := ResolveDir(decomposed)
		if err != nil {
			t.Fatalf("ResolveDir() error = %v", err)
		}
		if got != decomposed {
			t.Errorf("ResolveDir() = %q, want %q", got, decomposed)
		}
	})

	t.Run("Empty", func(t *testing.T) {
		_, err := ResolveDir("")
		var pathErr *PathError
		if !errors.As(err, &pathErr) {
			t.Errorf("ResolveDir(\"\") error = %v, want *PathError", err)
		}
	})
}

func TestNetworkSharePaths(t *testing.T) {
	share := `\\nas\rushes`

	if runtime.GOOS != "windows" {
		if IsUNCPath(share) || IsUNCPath("//nas/rushes") {
			t.Error("IsUNCPath() should be false outside windows")
		}
		if got := NormalizePath("//nas/rushes"); got != "/nas/rushes" {
			t.Errorf("NormalizePath() = %q, want %q", got, "/nas/rushes")
		}
		return
	}

	if !IsUNCPath(share) || !IsUNCPath("//nas/rushes") {
		t.Error("IsUNCPath() should recognise network shares")
	}
	for _, input := range []string{share, `\\nas\rushes\`, "//nas/rushes"} {
		if got := NormalizePath(input); got != share {
			t.Errorf("NormalizePath(%q) = %q, want %q", input, got, share)
		}
	}
}
