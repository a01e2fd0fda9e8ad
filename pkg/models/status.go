package models

// SyncStatus is the state of a source file relative to a destination
type SyncStatus string

const (
	// StatusMissing indicates the file exists in the source only
	StatusMissing SyncStatus = "missing"
	// StatusSynced indicates the file exists in both with matching size
	// (and matching digest once a transfer has verified it)
	StatusSynced SyncStatus = "synced"
	// StatusTransferring indicates the file is being copied
	StatusTransferring SyncStatus = "transferring"
	// StatusVerifying indicates the copy finished and the integrity check is running
	StatusVerifying SyncStatus = "verifying"
	// StatusError indicates the copy or the verification failed
	StatusError SyncStatus = "error"
	// StatusPending is reserved for queued files; the engine never assigns it
	StatusPending SyncStatus = "pending"
)

// IsTerminal reports whether a transfer has finished with this file
func (s SyncStatus) IsTerminal() bool {
	switch s {
	case StatusSynced, StatusError:
		return true
	default:
		return false
	}
}

// Valid reports whether s is one of the known statuses
func (s SyncStatus) Valid() bool {
	switch s {
	case StatusMissing, StatusSynced, StatusTransferring, StatusVerifying, StatusError, StatusPending:
		return true
	default:
		return false
	}
}
