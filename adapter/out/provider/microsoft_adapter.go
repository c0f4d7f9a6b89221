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

var microsoftEndpoint = oauth2.Endpoint{
	AuthURL:  "https://login.microsoftonline.com/common/oauth2/v2.0/authorize",
	TokenURL: "https://login.microsoftonline.com/common/oauth2/v2.0/token",
}

const microsoftUserinfoURL = "https://graph.microsoft.com/v1.0/me"

// MicrosoftExchanger implements out.OAuthExchanger against Microsoft
// identity platform v2, requesting IMAP/SMTP scope for Outlook/Office365.
type MicrosoftExchanger struct {
	config oauth2.Config
	client *http.Client
}

// NewMicrosoftExchanger builds an exchanger for an Azure AD app registration.
func NewMicrosoftExchanger(clientID, clientSecret, redirectURL string) *MicrosoftExchanger {
	return &MicrosoftExchanger{
		config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     microsoftEndpoint,
			Scopes: []string{
				"https://outlook.office.com/IMAP.AccessAsUser.All",
				"https://outlook.office.com/SMTP.Send",
				"offline_access",
				"User.Read",
			},
		},
		client: httputil.NewOptimizedClient(httputil.OutlookClientConfig()),
	}
}

var _ out.OAuthExchanger = (*MicrosoftExchanger)(nil)

func (m *MicrosoftExchanger) Provider() domain.OAuthProviderKind { return domain.OAuthProviderMicrosoft }

func (m *MicrosoftExchanger) AuthCodeURL(params out.AuthCodeURLParams) string {
	return m.config.AuthCodeURL(params.State,
		oauth2.SetAuthURLParam("code_challenge", params.CodeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", params.CodeChallengeMethod),
	)
}

func (m *MicrosoftExchanger) ExchangeCode(ctx context.Context, code, codeVerifier string) (*out.OAuthTokens, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.client)
	tok, err := m.config.Exchange(ctx, code, oauth2.SetAuthURLParam("code_verifier", codeVerifier))
	if err != nil {
		return nil, fmt.Errorf("microsoft: exchange code: %w", err)
	}
	return tokensFromOAuth2(tok), nil
}

func (m *MicrosoftExchanger) Refresh(ctx context.Context, refreshToken string) (*out.OAuthTokens, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.client)
	src := m.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("microsoft: refresh token: %w", err)
	}
	return tokensFromOAuth2(tok), nil
}

func (m *MicrosoftExchanger) FetchAccountEmail(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, microsoftUserinfoURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("microsoft: graph /me request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("microsoft: graph /me status %d: %s", resp.StatusCode, body)
	}

	var payload struct {
		Mail              string `json:"mail"`
		UserPrincipalName string `json:"userPrincipalName"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("microsoft: decode /me: %w", err)
	}
	if payload.Mail != "" {
		return payload.Mail, nil
	}
	return payload.UserPrincipalName, nil
}
