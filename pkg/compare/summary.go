package compare

import (
	"github.com/sdejongh/offload/pkg/models"
)

// Summary counts records by reconciliation outcome
type Summary struct {
	Total        int   `json:"total"`
	Synced       int   `json:"synced"`
	Missing      int   `json:"missing"`
	Other        int   `json:"other"`
	SyncedBytes  int64 `json:"synced_bytes"`
	MissingBytes int64 `json:"missing_bytes"`
}

// Summarize counts records by status
func Summarize(records []*models.FileRecord) Summary {
	var s Summary
	for _, rec := range records {
		s.Total++
		switch rec.Status() {
		case models.StatusSynced:
			s.Synced++
			s.SyncedBytes += rec.Size
		case models.StatusMissing:
			s.Missing++
			s.MissingBytes += rec.Size
		default:
			s.Other++
		}
	}
	return s
}

// Complete reports whether every record is synced
func (s Summary) Complete() bool {
	return s.Total == s.Synced
}
