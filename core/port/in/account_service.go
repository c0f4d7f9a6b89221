package in

import (
	"context"

	"github.com/google/uuid"

	"github.com/aerioncore/mailcore/core/domain"
)

// AddAccountRequest carries the fields needed to create a new Account.
// Either a password pair or an OAuth provider is supplied, never both.
type AddAccountRequest struct {
	EmailAddr   string
	DisplayName string

	IMAPHost   string
	IMAPPort   int
	IMAPUser   string
	IMAPPass   string
	IMAPUseTLS bool

	SMTPHost        string
	SMTPPort        int
	SMTPUser        string
	SMTPPass        string
	SMTPUseTLS      bool
	SMTPUseStartTLS bool

	OAuthProvider domain.OAuthProviderKind
}

// AccountService is the use-case surface for account lifecycle management.
type AccountService interface {
	ListAccounts(ctx context.Context) ([]*domain.Account, error)
	GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetDefaultAccount(ctx context.Context) (*domain.Account, error)
	// AddAccount applies ProviderTemplate defaults for fields left zero,
	// encrypts credentials before persisting, and returns the created row.
	AddAccount(ctx context.Context, req AddAccountRequest) (*domain.Account, error)
	SetDefault(ctx context.Context, id uuid.UUID) error
	// TestConnection opens and immediately closes an IMAP session to
	// validate credentials, recording the outcome on the account row.
	TestConnection(ctx context.Context, id uuid.UUID) error
	DeleteAccount(ctx context.Context, id uuid.UUID) error
}
