package domain

import (
	"time"

	"github.com/google/uuid"
)

// OutboxEntry is a queued outgoing message, progressing monotonically
// through SMTP delivery and IMAP APPEND-to-Sent.
type OutboxEntry struct {
	ID        int64     `json:"id"`
	AccountID uuid.UUID `json:"account_id"`

	MessageID string   `json:"message_id"` // our generated RFC 5322 Message-ID
	To        []string `json:"to"`
	CC        []string `json:"cc,omitempty"`
	BCC       []string `json:"bcc,omitempty"`
	Subject   string   `json:"subject"`
	BodyText  string   `json:"body_text,omitempty"`
	BodyHTML  string   `json:"body_html,omitempty"`

	RawRFC5322 []byte `json:"-"` // full wire bytes, SMTP DATA payload and IMAP APPEND literal

	SMTPSent        bool `json:"smtp_sent"`
	OutboxSaved     bool `json:"outbox_saved"`
	SentFolderSaved bool `json:"sent_folder_saved"`

	RetryCount int    `json:"retry_count"`
	MaxRetries int    `json:"max_retries"`
	LastError  string `json:"last_error,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
}

// IsComplete reports whether the entry has finished both legs of delivery.
func (o *OutboxEntry) IsComplete() bool {
	return o.SMTPSent && o.SentFolderSaved
}

// CanRetry reports whether another delivery attempt is allowed.
func (o *OutboxEntry) CanRetry() bool {
	return o.RetryCount < o.MaxRetries
}

// NextState describes where the entry's state machine should go next.
// The SMTP send is never retried once accepted (risk of duplicate
// delivery); only the post-send APPEND leg is retried on failure.
func (o *OutboxEntry) NextState() string {
	switch {
	case !o.SMTPSent:
		return "send_smtp"
	case !o.SentFolderSaved:
		return "append_sent_folder"
	default:
		return "done"
	}
}
