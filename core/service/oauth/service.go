// Package oauth implements core/port/in.OAuthService: the PKCE
// authorization-code flow (RFC 6749 + RFC 7636) and token refresh.
package oauth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/aerioncore/mailcore/core/domain"
	in "github.com/aerioncore/mailcore/core/port/in"
	"github.com/aerioncore/mailcore/core/port/out"
	"github.com/aerioncore/mailcore/pkg/apperr"
)

// pendingFlowTTL bounds how long an issued state token may be redeemed,
// covering the user's time on the provider's consent screen.
const pendingFlowTTL = 10 * time.Minute

// refreshSkew triggers a proactive refresh this far before actual expiry.
const refreshSkew = 5 * time.Minute

// Registry resolves the OAuthExchanger for a provider kind.
type Registry interface {
	For(provider domain.OAuthProviderKind) (out.OAuthExchanger, error)
}

// Service implements in.OAuthService.
type Service struct {
	accounts  out.AccountRepository
	states    out.OAuthStateStore
	exchanger Registry
	log       zerolog.Logger

	refreshGroup singleflight.Group
}

// New builds an OAuth Service.
func New(accounts out.AccountRepository, states out.OAuthStateStore, exchanger Registry, log zerolog.Logger) *Service {
	return &Service{accounts: accounts, states: states, exchanger: exchanger, log: log.With().Str("component", "oauth_service").Logger()}
}

var _ in.OAuthService = (*Service)(nil)

func (s *Service) BeginAuth(ctx context.Context, provider domain.OAuthProviderKind, sessionID, accountHint string) (string, error) {
	exchanger, err := s.exchanger.For(provider)
	if err != nil {
		return "", err
	}

	state, err := randomURLSafeToken(32)
	if err != nil {
		return "", fmt.Errorf("oauth: generate state: %w", err)
	}
	verifier, err := randomURLSafeToken(48)
	if err != nil {
		return "", fmt.Errorf("oauth: generate code verifier: %w", err)
	}
	challenge := s256Challenge(verifier)

	flow := &domain.PendingOAuthFlow{
		State:        state,
		CodeVerifier: verifier,
		AccountHint:  accountHint,
		IssuedAt:     time.Now(),
	}
	if err := s.states.Store(ctx, state, flow, pendingFlowTTL); err != nil {
		return "", fmt.Errorf("oauth: store pending flow: %w", err)
	}

	return exchanger.AuthCodeURL(out.AuthCodeURLParams{
		State:               state,
		CodeChallenge:       challenge,
		CodeChallengeMethod: "S256",
	}), nil
}

func (s *Service) CompleteAuth(ctx context.Context, provider domain.OAuthProviderKind, state, code string) (*domain.Account, error) {
	flow, err := s.states.Consume(ctx, state)
	if err != nil {
		return nil, apperr.StateUnknown()
	}
	if flow.Expired(pendingFlowTTL) {
		return nil, apperr.StateUnknown()
	}

	exchanger, err := s.exchanger.For(provider)
	if err != nil {
		return nil, err
	}

	tokens, err := exchanger.ExchangeCode(ctx, code, flow.CodeVerifier)
	if err != nil {
		return nil, fmt.Errorf("oauth: exchange code: %w", err)
	}

	email, err := exchanger.FetchAccountEmail(ctx, tokens.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("oauth: resolve account email: %w", err)
	}

	acct, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		acct = &domain.Account{
			EmailAddr:     email,
			DisplayName:   email,
			OAuthProvider: provider,
			IsActive:      true,
		}
	}
	acct.OAuthProvider = provider
	acct.OAuthAccessToken = tokens.AccessToken
	acct.OAuthRefreshToken = tokens.RefreshToken
	expiry := tokens.Expiry
	acct.OAuthTokenExpiry = &expiry

	if acct.ID == uuid.Nil {
		if err := s.accounts.Create(ctx, acct); err != nil {
			return nil, fmt.Errorf("oauth: create account: %w", err)
		}
	} else if err := s.accounts.Update(ctx, acct); err != nil {
		return nil, fmt.Errorf("oauth: update account: %w", err)
	}
	return acct, nil
}

// GetValidToken returns a usable access token, refreshing first when
// within refreshSkew of expiry. Concurrent callers for the same account
// collapse onto a single in-flight refresh via singleflight.
func (s *Service) GetValidToken(ctx context.Context, acctID uuid.UUID) (string, error) {
	acct, err := s.accounts.GetByID(ctx, acctID)
	if err != nil {
		return "", err
	}
	if !acct.UsesOAuth() {
		return "", fmt.Errorf("oauth: account %s does not use oauth", acctID)
	}
	if !acct.TokenNeedsRefresh(refreshSkew) {
		return acct.OAuthAccessToken, nil
	}

	result, err, _ := s.refreshGroup.Do(acctID.String(), func() (interface{}, error) {
		return s.refresh(ctx, acct)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// ForceRefresh refreshes the access token unconditionally, bypassing the
// refreshSkew check in GetValidToken. Used after an XOAUTH2 authentication
// failure, where the token on file may have been revoked early by the
// provider even though it looks unexpired.
func (s *Service) ForceRefresh(ctx context.Context, acctID uuid.UUID) (string, error) {
	acct, err := s.accounts.GetByID(ctx, acctID)
	if err != nil {
		return "", err
	}
	if !acct.UsesOAuth() {
		return "", fmt.Errorf("oauth: account %s does not use oauth", acctID)
	}

	result, err, _ := s.refreshGroup.Do(acctID.String(), func() (interface{}, error) {
		return s.refresh(ctx, acct)
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func (s *Service) refresh(ctx context.Context, acct *domain.Account) (string, error) {
	exchanger, err := s.exchanger.For(acct.OAuthProvider)
	if err != nil {
		return "", err
	}
	tokens, err := exchanger.Refresh(ctx, acct.OAuthRefreshToken)
	if err != nil {
		return "", fmt.Errorf("oauth: refresh: %w", err)
	}

	acct.OAuthAccessToken = tokens.AccessToken
	if tokens.RefreshToken != "" {
		acct.OAuthRefreshToken = tokens.RefreshToken
	}
	expiry := tokens.Expiry
	acct.OAuthTokenExpiry = &expiry

	if err := s.accounts.Update(ctx, acct); err != nil {
		return "", fmt.Errorf("oauth: persist refreshed token: %w", err)
	}
	return acct.OAuthAccessToken, nil
}

func randomURLSafeToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// s256Challenge implements the PKCE S256 transform from RFC 7636 §4.2:
// BASE64URL-ENCODE(SHA256(ASCII(code_verifier))).
func s256Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
