package domain

import (
	"time"

	"github.com/google/uuid"
)

// Folder mirrors a remote IMAP mailbox as reported by LIST/LSUB, cached
// locally with its UID validity window.
type Folder struct {
	ID        int64     `json:"id"`
	AccountID uuid.UUID `json:"account_id"`

	Name      string `json:"name"` // full hierarchical path as reported by server
	Delimiter string `json:"delimiter"`
	Attrs     []string `json:"attributes"` // \Noselect, \HasChildren, \Sent, ...

	UIDValidity uint32 `json:"uidvalidity"`
	UIDNext     uint32 `json:"uidnext"`

	TotalMessages  int `json:"total_messages"`
	UnseenMessages int `json:"unseen_messages"`

	LastSync time.Time `json:"last_sync"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsSelectable reports whether this folder can be opened (not \Noselect).
func (f *Folder) IsSelectable() bool {
	for _, a := range f.Attrs {
		if a == `\Noselect` {
			return false
		}
	}
	return true
}

// HasAttr reports whether the folder carries the given IMAP attribute.
func (f *Folder) HasAttr(attr string) bool {
	for _, a := range f.Attrs {
		if a == attr {
			return true
		}
	}
	return false
}

// UIDValidityChanged reports whether a freshly observed UIDVALIDITY differs
// from the cached one, which invalidates every cached message in the folder.
func (f *Folder) UIDValidityChanged(observed uint32) bool {
	return f.UIDValidity != 0 && observed != f.UIDValidity
}
