package domain

import "github.com/google/uuid"

// TransferStatus tracks the upload state of a single file entry.
type TransferStatus string

const (
	TransferPending   TransferStatus = "pending"
	TransferCompleted TransferStatus = "completed"
)

// FileEntry is one key in a files manifest.
type FileEntry struct {
	Key      string         `json:"key"`
	Status   TransferStatus `json:"status"`
	Size     int64          `json:"size"`
	Checksum string         `json:"checksum,omitempty"`
}

// FilesState is the per-entity files manifest: the enabled flag, the storage
// bucket backing the entries, and the entries themselves. Records and drafts
// each carry two independent instances, one for files and one for media files.
type FilesState struct {
	Enabled        bool                 `json:"enabled"`
	BucketID       *uuid.UUID           `json:"bucket_id,omitempty"`
	Locked         bool                 `json:"locked"`
	DefaultPreview *string              `json:"default_preview,omitempty"`
	Entries        map[string]FileEntry `json:"entries,omitempty"`
}

// Consistent reports whether the manifest is in a publishable state: when
// enabled, every entry must have a completed transfer.
func (f FilesState) Consistent() bool {
	if !f.Enabled {
		return true
	}
	for _, entry := range f.Entries {
		if entry.Status != TransferCompleted {
			return false
		}
	}
	return true
}

// HasEntries reports whether any file keys are attached.
func (f FilesState) HasEntries() bool {
	return len(f.Entries) > 0
}

// CloneEntries returns a deep copy of the entry map.
func (f FilesState) CloneEntries() map[string]FileEntry {
	if f.Entries == nil {
		return nil
	}
	entries := make(map[string]FileEntry, len(f.Entries))
	for k, v := range f.Entries {
		entries[k] = v
	}
	return entries
}
