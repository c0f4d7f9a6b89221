package out

import (
	"context"
	"time"

	"github.com/aerioncore/mailcore/core/domain"
)

// OAuthTokens is the result of an authorization-code or refresh exchange.
type OAuthTokens struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// AuthCodeURLParams controls how the provider's consent-screen URL is built.
type AuthCodeURLParams struct {
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// OAuthExchanger performs the provider-specific legs of RFC 6749 + PKCE
// (RFC 7636): building the consent URL and exchanging a code or refresh
// token for access tokens.
type OAuthExchanger interface {
	Provider() domain.OAuthProviderKind
	AuthCodeURL(params AuthCodeURLParams) string
	ExchangeCode(ctx context.Context, code, codeVerifier string) (*OAuthTokens, error)
	Refresh(ctx context.Context, refreshToken string) (*OAuthTokens, error)
	// FetchAccountEmail resolves the mailbox address tied to accessToken,
	// via the provider's userinfo endpoint.
	FetchAccountEmail(ctx context.Context, accessToken string) (string, error)
}

// OAuthStateStore persists the one-time state token used to correlate a
// consent-screen redirect back to its PendingOAuthFlow, with a TTL.
type OAuthStateStore interface {
	Store(ctx context.Context, state string, flow *domain.PendingOAuthFlow, ttl time.Duration) error
	// Consume atomically fetches and deletes the flow (GETDEL semantics) so
	// a state token can only be redeemed once.
	Consume(ctx context.Context, state string) (*domain.PendingOAuthFlow, error)
}
