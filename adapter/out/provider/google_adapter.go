// Package provider implements out.OAuthExchanger for each supported mail
// provider, on top of golang.org/x/oauth2's generic authorization-code
// flow.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/aerioncore/mailcore/core/domain"
	"github.com/aerioncore/mailcore/core/port/out"
	"github.com/aerioncore/mailcore/pkg/httputil"
)

var googleEndpoint = oauth2.Endpoint{
	AuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
	TokenURL: "https://oauth2.googleapis.com/token",
}

const googleUserinfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

// GoogleExchanger implements out.OAuthExchanger against Google's OAuth2
// endpoints, requesting IMAP/SMTP scope via gmail.google.com.
type GoogleExchanger struct {
	config oauth2.Config
	client *http.Client
}

// NewGoogleExchanger builds an exchanger for the given OAuth2 client
// registered in the Google Cloud console.
func NewGoogleExchanger(clientID, clientSecret, redirectURL string) *GoogleExchanger {
	return &GoogleExchanger{
		config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     googleEndpoint,
			Scopes: []string{
				"https://mail.google.com/",
				"https://www.googleapis.com/auth/userinfo.email",
			},
		},
		client: httputil.NewOptimizedClient(httputil.GmailClientConfig()),
	}
}

var _ out.OAuthExchanger = (*GoogleExchanger)(nil)

func (g *GoogleExchanger) Provider() domain.OAuthProviderKind { return domain.OAuthProviderGoogle }

func (g *GoogleExchanger) AuthCodeURL(params out.AuthCodeURLParams) string {
	return g.config.AuthCodeURL(params.State,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("code_challenge", params.CodeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", params.CodeChallengeMethod),
	)
}

func (g *GoogleExchanger) ExchangeCode(ctx context.Context, code, codeVerifier string) (*out.OAuthTokens, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.client)
	tok, err := g.config.Exchange(ctx, code, oauth2.SetAuthURLParam("code_verifier", codeVerifier))
	if err != nil {
		return nil, fmt.Errorf("google: exchange code: %w", err)
	}
	return tokensFromOAuth2(tok), nil
}

func (g *GoogleExchanger) Refresh(ctx context.Context, refreshToken string) (*out.OAuthTokens, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, g.client)
	src := g.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("google: refresh token: %w", err)
	}
	return tokensFromOAuth2(tok), nil
}

func (g *GoogleExchanger) FetchAccountEmail(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, googleUserinfoURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("google: userinfo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("google: userinfo status %d: %s", resp.StatusCode, body)
	}

	var payload struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("google: decode userinfo: %w", err)
	}
	return payload.Email, nil
}

func tokensFromOAuth2(tok *oauth2.Token) *out.OAuthTokens {
	return &out.OAuthTokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
}
