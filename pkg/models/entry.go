package models

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// MediaType is a coarse classification of a file used for display
type MediaType string

const (
	// MediaImage covers stills and camera raw formats
	MediaImage MediaType = "image"
	// MediaVideo covers camera and delivery video formats
	MediaVideo MediaType = "video"
	// MediaAudio covers production sound formats
	MediaAudio MediaType = "audio"
	// MediaOther is anything not recognised
	MediaOther MediaType = "other"
)

var mediaExtensions = map[string]MediaType{
	".jpg":  MediaImage,
	".jpeg": MediaImage,
	".png":  MediaImage,
	".arw":  MediaImage,
	".cr2":  MediaImage,
	".dng":  MediaImage,
	".nef":  MediaImage,
	".raf":  MediaImage,
	".mp4":  MediaVideo,
	".mov":  MediaVideo,
	".mxf":  MediaVideo,
	".avi":  MediaVideo,
	".braw": MediaVideo,
	".r3d":  MediaVideo,
	".wav":  MediaAudio,
	".mp3":  MediaAudio,
	".aac":  MediaAudio,
	".m4a":  MediaAudio,
}

// ClassifyMediaType derives the media type from the lower-cased file extension
func ClassifyMediaType(name string) MediaType {
	if t, ok := mediaExtensions[strings.ToLower(filepath.Ext(name))]; ok {
		return t
	}
	return MediaOther
}

// FileRecord represents one file on a source volume.
//
// The exported fields are fixed at scan time. The sync status and the last
// failure cause are guarded and must be accessed through the methods below:
// a transfer engine writes them from its worker goroutine while a
// presentation layer may be reading them.
type FileRecord struct {
	// ID is the stable identifier; the absolute path doubles as the key
	ID string

	// Name is the file name without directory
	Name string

	// Path is the absolute path on the filesystem
	Path string

	// Size in bytes
	Size int64

	// ModTime is the last modification time
	ModTime time.Time

	// Type is the media classification derived from the extension
	Type MediaType

	mu     sync.RWMutex
	status SyncStatus
	err    error
}

// NewFileRecord creates a record with status StatusMissing
func NewFileRecord(path string, size int64, modTime time.Time) *FileRecord {
	name := filepath.Base(path)
	return &FileRecord{
		ID:      path,
		Name:    name,
		Path:    path,
		Size:    size,
		ModTime: modTime,
		Type:    ClassifyMediaType(name),
		status:  StatusMissing,
	}
}

// Status returns the current sync status
func (r *FileRecord) Status() SyncStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// SetStatus sets the sync status and clears any recorded failure
func (r *FileRecord) SetStatus(status SyncStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = status
	r.err = nil
}

// MarkError sets StatusError and records the cause
func (r *FileRecord) MarkError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = StatusError
	r.err = err
}

// Err returns the cause of the last failure, if the record is in StatusError
func (r *FileRecord) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}

// Snapshot returns an immutable copy of the record
func (r *FileRecord) Snapshot() RecordSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap := RecordSnapshot{
		ID:      r.ID,
		Name:    r.Name,
		Path:    r.Path,
		Size:    r.Size,
		ModTime: r.ModTime,
		Type:    r.Type,
		Status:  r.status,
	}
	if r.err != nil {
		snap.Error = r.err.Error()
	}
	return snap
}

// HumanSize renders the size the way the offload panel shows it (1024-based, two decimals)
func (r *FileRecord) HumanSize() string {
	return FormatSize(r.Size)
}

// RecordSnapshot is a point-in-time copy of a FileRecord, safe to share
type RecordSnapshot struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	Path    string     `json:"path"`
	Size    int64      `json:"size"`
	ModTime time.Time  `json:"mod_time"`
	Type    MediaType  `json:"type"`
	Status  SyncStatus `json:"status"`
	Error   string     `json:"error,omitempty"`
}

// FormatSize formats a byte count as "12.00 MB" using 1024 steps
func FormatSize(size int64) string {
	value := float64(size)
	for _, unit := range []string{"B", "KB", "MB", "GB", "TB"} {
		if value < 1024 {
			return fmt.Sprintf("%.2f %s", value, unit)
		}
		value /= 1024
	}
	return fmt.Sprintf("%.2f PB", value)
}
