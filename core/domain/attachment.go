package domain

import "time"

// Attachment is the index row for a binary attachment; the bytes themselves
// live on disk under StoragePath.
type Attachment struct {
	ID        int64 `json:"id"`
	MessageID int64 `json:"message_id"`

	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
	ContentID   string `json:"content_id,omitempty"` // for inline cid: lookup

	StoragePath string     `json:"storage_path"`
	DownloadedAt *time.Time `json:"downloaded_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// IsInline reports whether the attachment is referenced inline via cid:.
func (a *Attachment) IsInline() bool {
	return a.ContentID != ""
}
