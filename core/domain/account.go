package domain

import (
	"time"

	"github.com/google/uuid"
)

// OAuthProviderKind identifies the OAuth2 provider backing an Account, if any.
type OAuthProviderKind string

const (
	OAuthProviderNone      OAuthProviderKind = "none"
	OAuthProviderGoogle    OAuthProviderKind = "google"
	OAuthProviderMicrosoft OAuthProviderKind = "microsoft"
)

// Account is a configured mailbox: connection parameters plus credentials.
// Passwords and OAuth tokens are stored only in AEAD-encrypted form; the
// plaintext fields below exist in memory only between decrypt and use.
type Account struct {
	ID          uuid.UUID `json:"id"`
	EmailAddr   string    `json:"email_address"` // unique identity
	DisplayName string    `json:"display_name"`

	IMAPHost    string `json:"imap_host"`
	IMAPPort    int    `json:"imap_port"`
	IMAPUser    string `json:"imap_user"`
	IMAPPass    string `json:"-"` // decrypted password, never serialized
	IMAPUseTLS  bool   `json:"imap_use_tls"`

	SMTPHost        string `json:"smtp_host"`
	SMTPPort        int    `json:"smtp_port"`
	SMTPUser        string `json:"smtp_user"`
	SMTPPass        string `json:"-"`
	SMTPUseTLS      bool   `json:"smtp_use_tls"`
	SMTPUseStartTLS bool   `json:"smtp_use_starttls"`

	OAuthProvider     OAuthProviderKind `json:"oauth_provider"`
	OAuthAccessToken  string            `json:"-"` // decrypted, not serialized
	OAuthRefreshToken string            `json:"-"`
	OAuthTokenExpiry  *time.Time        `json:"oauth_token_expiry,omitempty"`

	// EncryptedIMAPPass etc. hold the AEAD ciphertext as persisted; the
	// adapter populates IMAPPass/SMTPPass/OAuth* by decrypting these on load.
	EncryptedIMAPPass        string `json:"-"`
	EncryptedSMTPPass        string `json:"-"`
	EncryptedOAuthAccess     string `json:"-"`
	EncryptedOAuthRefresh    string `json:"-"`

	IsActive      bool       `json:"is_active"`
	IsDefault     bool       `json:"is_default"`
	LastConnected *time.Time `json:"last_connected,omitempty"`
	LastError     string     `json:"last_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UsesOAuth reports whether this account authenticates via XOAUTH2 rather
// than a plain password.
func (a *Account) UsesOAuth() bool {
	return a.OAuthProvider != "" && a.OAuthProvider != OAuthProviderNone
}

// TokenNeedsRefresh reports whether the access token is expired or close
// enough to expiry that a caller should refresh before using it.
func (a *Account) TokenNeedsRefresh(skew time.Duration) bool {
	if a.OAuthTokenExpiry == nil {
		return true
	}
	return time.Now().Add(skew).After(*a.OAuthTokenExpiry)
}

// ProviderTemplate maps a domain pattern (e.g. "gmail.com") to the
// connection parameters a new Account for that domain should default to.
type ProviderTemplate struct {
	ID               int64             `json:"id"`
	DomainPattern    string            `json:"domain_pattern"`
	DisplayName      string            `json:"display_name"`
	IMAPHost         string            `json:"imap_host"`
	IMAPPort         int               `json:"imap_port"`
	IMAPUseTLS       bool              `json:"imap_use_tls"`
	SMTPHost         string            `json:"smtp_host"`
	SMTPPort         int               `json:"smtp_port"`
	SMTPUseTLS       bool              `json:"smtp_use_tls"`
	SMTPUseStartTLS  bool              `json:"smtp_use_starttls"`
	SupportsOAuth    bool              `json:"supports_oauth"`
	OAuthProvider    OAuthProviderKind `json:"oauth_provider"`
}
