package in

import (
	"context"

	"github.com/google/uuid"

	"github.com/aerioncore/mailcore/core/domain"
)

// OAuthService drives the PKCE authorization-code flow (RFC 6749 + RFC
// 7636) and keeps an Account's tokens fresh.
type OAuthService interface {
	// BeginAuth generates a PKCE verifier/challenge pair, stores the
	// pending flow keyed by a fresh random state token, and returns the
	// provider's consent-screen URL.
	BeginAuth(ctx context.Context, provider domain.OAuthProviderKind, sessionID string, accountHint string) (authURL string, err error)
	// CompleteAuth consumes the state token, exchanges code for tokens,
	// resolves the account email, and creates or updates the Account.
	CompleteAuth(ctx context.Context, provider domain.OAuthProviderKind, state, code string) (*domain.Account, error)
	// GetValidToken returns a usable access token for acctID, refreshing
	// first if within the expiry skew window. Refreshes for the same
	// account are serialized (single-flight).
	GetValidToken(ctx context.Context, acctID uuid.UUID) (string, error)
}
