package oauth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aerioncore/mailcore/core/domain"
	"github.com/aerioncore/mailcore/core/port/out"
)

type fakeAccountRepo struct {
	byID    map[uuid.UUID]*domain.Account
	byEmail map[string]*domain.Account
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{byID: make(map[uuid.UUID]*domain.Account), byEmail: make(map[string]*domain.Account)}
}

func (f *fakeAccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	a, ok := f.byID[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return a, nil
}
func (f *fakeAccountRepo) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	a, ok := f.byEmail[email]
	if !ok {
		return nil, errors.New("not found")
	}
	return a, nil
}
func (f *fakeAccountRepo) GetDefault(ctx context.Context) (*domain.Account, error) { return nil, errors.New("unsupported") }
func (f *fakeAccountRepo) List(ctx context.Context) ([]*domain.Account, error)     { return nil, nil }
func (f *fakeAccountRepo) Create(ctx context.Context, acct *domain.Account) error {
	acct.ID = uuid.New()
	f.byID[acct.ID] = acct
	f.byEmail[acct.EmailAddr] = acct
	return nil
}
func (f *fakeAccountRepo) Update(ctx context.Context, acct *domain.Account) error {
	f.byID[acct.ID] = acct
	f.byEmail[acct.EmailAddr] = acct
	return nil
}
func (f *fakeAccountRepo) SetDefault(ctx context.Context, id uuid.UUID) error { return nil }
func (f *fakeAccountRepo) UpdateLastConnected(ctx context.Context, id uuid.UUID, at time.Time, lastError string) error {
	return nil
}
func (f *fakeAccountRepo) Delete(ctx context.Context, id uuid.UUID) error { return nil }

type fakeStateStore struct {
	stored map[string]*domain.PendingOAuthFlow
}

func newFakeStateStore() *fakeStateStore {
	return &fakeStateStore{stored: make(map[string]*domain.PendingOAuthFlow)}
}

func (f *fakeStateStore) Store(ctx context.Context, state string, flow *domain.PendingOAuthFlow, ttl time.Duration) error {
	f.stored[state] = flow
	return nil
}
func (f *fakeStateStore) Consume(ctx context.Context, state string) (*domain.PendingOAuthFlow, error) {
	flow, ok := f.stored[state]
	if !ok {
		return nil, errors.New("unknown state")
	}
	delete(f.stored, state)
	return flow, nil
}

type fakeExchanger struct {
	provider     domain.OAuthProviderKind
	exchangeErr  error
	refreshErr   error
	email        string
	tokens       *out.OAuthTokens
	refreshCalls int
}

func (f *fakeExchanger) Provider() domain.OAuthProviderKind { return f.provider }
func (f *fakeExchanger) AuthCodeURL(params out.AuthCodeURLParams) string {
	return "https://provider.example/authorize?state=" + params.State + "&challenge=" + params.CodeChallenge
}
func (f *fakeExchanger) ExchangeCode(ctx context.Context, code, codeVerifier string) (*out.OAuthTokens, error) {
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return f.tokens, nil
}
func (f *fakeExchanger) Refresh(ctx context.Context, refreshToken string) (*out.OAuthTokens, error) {
	f.refreshCalls++
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.tokens, nil
}
func (f *fakeExchanger) FetchAccountEmail(ctx context.Context, accessToken string) (string, error) {
	return f.email, nil
}

type fakeRegistry struct {
	exchangers map[domain.OAuthProviderKind]out.OAuthExchanger
}

func (f *fakeRegistry) For(provider domain.OAuthProviderKind) (out.OAuthExchanger, error) {
	e, ok := f.exchangers[provider]
	if !ok {
		return nil, errors.New("no exchanger registered for provider")
	}
	return e, nil
}

func TestBeginAuthStoresPendingFlowAndReturnsAuthURL(t *testing.T) {
	states := newFakeStateStore()
	registry := &fakeRegistry{exchangers: map[domain.OAuthProviderKind]out.OAuthExchanger{
		domain.OAuthProviderGoogle: &fakeExchanger{provider: domain.OAuthProviderGoogle},
	}}
	svc := New(newFakeAccountRepo(), states, registry, zerolog.Nop())

	authURL, err := svc.BeginAuth(context.Background(), domain.OAuthProviderGoogle, "sess-1", "me@gmail.com")
	if err != nil {
		t.Fatalf("BeginAuth: %v", err)
	}
	if authURL == "" {
		t.Fatal("expected a non-empty authorization URL")
	}
	if len(states.stored) != 1 {
		t.Fatalf("expected exactly one pending flow stored, got %d", len(states.stored))
	}
	for _, flow := range states.stored {
		if flow.AccountHint != "me@gmail.com" {
			t.Errorf("AccountHint = %q, want me@gmail.com", flow.AccountHint)
		}
		if flow.CodeVerifier == "" {
			t.Error("expected a PKCE code verifier to be generated")
		}
	}
}

func TestBeginAuthFailsForUnregisteredProvider(t *testing.T) {
	svc := New(newFakeAccountRepo(), newFakeStateStore(), &fakeRegistry{exchangers: map[domain.OAuthProviderKind]out.OAuthExchanger{}}, zerolog.Nop())
	_, err := svc.BeginAuth(context.Background(), domain.OAuthProviderMicrosoft, "sess-1", "")
	if err == nil {
		t.Fatal("expected an error for a provider with no registered exchanger")
	}
}

func TestCompleteAuthCreatesNewAccountOnFirstLogin(t *testing.T) {
	accounts := newFakeAccountRepo()
	states := newFakeStateStore()
	states.stored["state-1"] = &domain.PendingOAuthFlow{State: "state-1", CodeVerifier: "verifier", IssuedAt: time.Now()}
	exchanger := &fakeExchanger{
		provider: domain.OAuthProviderGoogle,
		email:    "me@gmail.com",
		tokens:   &out.OAuthTokens{AccessToken: "access-1", RefreshToken: "refresh-1", Expiry: time.Now().Add(time.Hour)},
	}
	registry := &fakeRegistry{exchangers: map[domain.OAuthProviderKind]out.OAuthExchanger{domain.OAuthProviderGoogle: exchanger}}
	svc := New(accounts, states, registry, zerolog.Nop())

	acct, err := svc.CompleteAuth(context.Background(), domain.OAuthProviderGoogle, "state-1", "auth-code")
	if err != nil {
		t.Fatalf("CompleteAuth: %v", err)
	}
	if acct.EmailAddr != "me@gmail.com" {
		t.Errorf("EmailAddr = %q, want me@gmail.com", acct.EmailAddr)
	}
	if acct.OAuthAccessToken != "access-1" || acct.OAuthRefreshToken != "refresh-1" {
		t.Errorf("expected tokens stored on the account, got %+v", acct)
	}
	if len(states.stored) != 0 {
		t.Error("expected the state to be consumed (single-use)")
	}
	if _, ok := accounts.byID[acct.ID]; !ok {
		t.Error("expected a new account to be created")
	}
}

func TestCompleteAuthUpdatesExistingAccountOnReauth(t *testing.T) {
	accounts := newFakeAccountRepo()
	existing := &domain.Account{ID: uuid.New(), EmailAddr: "me@gmail.com", OAuthProvider: domain.OAuthProviderGoogle}
	accounts.byID[existing.ID] = existing
	accounts.byEmail[existing.EmailAddr] = existing

	states := newFakeStateStore()
	states.stored["state-1"] = &domain.PendingOAuthFlow{State: "state-1", CodeVerifier: "verifier", IssuedAt: time.Now()}
	exchanger := &fakeExchanger{
		provider: domain.OAuthProviderGoogle,
		email:    "me@gmail.com",
		tokens:   &out.OAuthTokens{AccessToken: "access-2", RefreshToken: "refresh-2", Expiry: time.Now().Add(time.Hour)},
	}
	registry := &fakeRegistry{exchangers: map[domain.OAuthProviderKind]out.OAuthExchanger{domain.OAuthProviderGoogle: exchanger}}
	svc := New(accounts, states, registry, zerolog.Nop())

	acct, err := svc.CompleteAuth(context.Background(), domain.OAuthProviderGoogle, "state-1", "auth-code")
	if err != nil {
		t.Fatalf("CompleteAuth: %v", err)
	}
	if acct.ID != existing.ID {
		t.Fatal("expected the existing account to be reused, not recreated")
	}
	if acct.OAuthAccessToken != "access-2" {
		t.Errorf("OAuthAccessToken = %q, want access-2", acct.OAuthAccessToken)
	}
}

func TestCompleteAuthRejectsExpiredFlow(t *testing.T) {
	states := newFakeStateStore()
	states.stored["state-1"] = &domain.PendingOAuthFlow{State: "state-1", IssuedAt: time.Now().Add(-20 * time.Minute)}
	registry := &fakeRegistry{exchangers: map[domain.OAuthProviderKind]out.OAuthExchanger{
		domain.OAuthProviderGoogle: &fakeExchanger{provider: domain.OAuthProviderGoogle},
	}}
	svc := New(newFakeAccountRepo(), states, registry, zerolog.Nop())

	_, err := svc.CompleteAuth(context.Background(), domain.OAuthProviderGoogle, "state-1", "code")
	if err == nil {
		t.Fatal("expected an error for a flow past pendingFlowTTL")
	}
}

func TestCompleteAuthRejectsUnknownState(t *testing.T) {
	svc := New(newFakeAccountRepo(), newFakeStateStore(), &fakeRegistry{}, zerolog.Nop())
	_, err := svc.CompleteAuth(context.Background(), domain.OAuthProviderGoogle, "never-issued", "code")
	if err == nil {
		t.Fatal("expected an error for a state never stored")
	}
}

func TestGetValidTokenReturnsCachedTokenWithoutRefreshWhenFresh(t *testing.T) {
	accounts := newFakeAccountRepo()
	expiry := time.Now().Add(time.Hour)
	acct := &domain.Account{ID: uuid.New(), OAuthProvider: domain.OAuthProviderGoogle, OAuthAccessToken: "still-valid", OAuthTokenExpiry: &expiry}
	accounts.byID[acct.ID] = acct

	exchanger := &fakeExchanger{provider: domain.OAuthProviderGoogle}
	registry := &fakeRegistry{exchangers: map[domain.OAuthProviderKind]out.OAuthExchanger{domain.OAuthProviderGoogle: exchanger}}
	svc := New(accounts, newFakeStateStore(), registry, zerolog.Nop())

	token, err := svc.GetValidToken(context.Background(), acct.ID)
	if err != nil {
		t.Fatalf("GetValidToken: %v", err)
	}
	if token != "still-valid" {
		t.Errorf("token = %q, want still-valid", token)
	}
	if exchanger.refreshCalls != 0 {
		t.Error("expected no refresh when the token is not near expiry")
	}
}

func TestGetValidTokenRefreshesWhenNearExpiry(t *testing.T) {
	accounts := newFakeAccountRepo()
	expiry := time.Now().Add(time.Second)
	acct := &domain.Account{ID: uuid.New(), OAuthProvider: domain.OAuthProviderGoogle, OAuthAccessToken: "stale", OAuthRefreshToken: "refresh-token", OAuthTokenExpiry: &expiry}
	accounts.byID[acct.ID] = acct

	exchanger := &fakeExchanger{provider: domain.OAuthProviderGoogle, tokens: &out.OAuthTokens{AccessToken: "refreshed", RefreshToken: "refresh-token-2", Expiry: time.Now().Add(time.Hour)}}
	registry := &fakeRegistry{exchangers: map[domain.OAuthProviderKind]out.OAuthExchanger{domain.OAuthProviderGoogle: exchanger}}
	svc := New(accounts, newFakeStateStore(), registry, zerolog.Nop())

	token, err := svc.GetValidToken(context.Background(), acct.ID)
	if err != nil {
		t.Fatalf("GetValidToken: %v", err)
	}
	if token != "refreshed" {
		t.Errorf("token = %q, want refreshed", token)
	}
	if exchanger.refreshCalls != 1 {
		t.Errorf("refreshCalls = %d, want 1", exchanger.refreshCalls)
	}
	if acct.OAuthRefreshToken != "refresh-token-2" {
		t.Error("expected the rotated refresh token to be persisted")
	}
}

func TestGetValidTokenFailsForNonOAuthAccount(t *testing.T) {
	accounts := newFakeAccountRepo()
	acct := &domain.Account{ID: uuid.New()}
	accounts.byID[acct.ID] = acct
	svc := New(accounts, newFakeStateStore(), &fakeRegistry{}, zerolog.Nop())

	_, err := svc.GetValidToken(context.Background(), acct.ID)
	if err == nil {
		t.Fatal("expected an error for an account with no OAuth provider configured")
	}
}
