// Package account implements core/port/in.AccountService.
package account

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aerioncore/mailcore/core/domain"
	in "github.com/aerioncore/mailcore/core/port/in"
	"github.com/aerioncore/mailcore/core/port/out"
)

// Service implements in.AccountService.
type Service struct {
	accounts  out.AccountRepository
	templates out.ProviderTemplateRepository
	cipher    out.Cipher
	imapOpen  out.ImapSessionFactory
	log       zerolog.Logger
}

// New builds an account Service.
func New(accounts out.AccountRepository, templates out.ProviderTemplateRepository, cipher out.Cipher, imapOpen out.ImapSessionFactory, log zerolog.Logger) *Service {
	return &Service{accounts: accounts, templates: templates, cipher: cipher, imapOpen: imapOpen, log: log.With().Str("component", "account_service").Logger()}
}

var _ in.AccountService = (*Service)(nil)

func (s *Service) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	return s.accounts.List(ctx)
}

func (s *Service) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return s.accounts.GetByID(ctx, id)
}

func (s *Service) GetDefaultAccount(ctx context.Context) (*domain.Account, error) {
	return s.accounts.GetDefault(ctx)
}

func (s *Service) AddAccount(ctx context.Context, req in.AddAccountRequest) (*domain.Account, error) {
	acct := &domain.Account{
		EmailAddr:       req.EmailAddr,
		DisplayName:     req.DisplayName,
		IMAPHost:        req.IMAPHost,
		IMAPPort:        req.IMAPPort,
		IMAPUser:        req.IMAPUser,
		IMAPPass:        req.IMAPPass,
		IMAPUseTLS:      req.IMAPUseTLS,
		SMTPHost:        req.SMTPHost,
		SMTPPort:        req.SMTPPort,
		SMTPUser:        req.SMTPUser,
		SMTPPass:        req.SMTPPass,
		SMTPUseTLS:      req.SMTPUseTLS,
		SMTPUseStartTLS: req.SMTPUseStartTLS,
		OAuthProvider:   req.OAuthProvider,
		IsActive:        true,
	}

	if acct.IMAPHost == "" || acct.SMTPHost == "" {
		if err := s.applyProviderDefaults(ctx, acct); err != nil {
			return nil, err
		}
	}
	if acct.IMAPUser == "" {
		acct.IMAPUser = acct.EmailAddr
	}
	if acct.SMTPUser == "" {
		acct.SMTPUser = acct.EmailAddr
	}

	existing, err := s.accounts.List(ctx)
	if err != nil {
		return nil, err
	}
	acct.IsDefault = len(existing) == 0

	if err := s.accounts.Create(ctx, acct); err != nil {
		return nil, fmt.Errorf("account: create: %w", err)
	}
	return acct, nil
}

// applyProviderDefaults looks up the ProviderTemplate matching the
// account's email domain and fills in any connection field left zero.
func (s *Service) applyProviderDefaults(ctx context.Context, acct *domain.Account) error {
	parts := strings.SplitN(acct.EmailAddr, "@", 2)
	if len(parts) != 2 {
		return fmt.Errorf("account: invalid email address %q", acct.EmailAddr)
	}
	tmpl, err := s.templates.GetByDomain(ctx, parts[1])
	if err != nil {
		return fmt.Errorf("account: no provider template for domain %q: %w", parts[1], err)
	}

	if acct.IMAPHost == "" {
		acct.IMAPHost, acct.IMAPPort, acct.IMAPUseTLS = tmpl.IMAPHost, tmpl.IMAPPort, tmpl.IMAPUseTLS
	}
	if acct.SMTPHost == "" {
		acct.SMTPHost, acct.SMTPPort = tmpl.SMTPHost, tmpl.SMTPPort
		acct.SMTPUseTLS, acct.SMTPUseStartTLS = tmpl.SMTPUseTLS, tmpl.SMTPUseStartTLS
	}
	if acct.OAuthProvider == "" && tmpl.SupportsOAuth {
		acct.OAuthProvider = tmpl.OAuthProvider
	}
	return nil
}

func (s *Service) SetDefault(ctx context.Context, id uuid.UUID) error {
	return s.accounts.SetDefault(ctx, id)
}

func (s *Service) TestConnection(ctx context.Context, id uuid.UUID) error {
	acct, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return err
	}

	testCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	session, openErr := s.imapOpen.Open(testCtx, acct)
	now := time.Now()
	if openErr != nil {
		_ = s.accounts.UpdateLastConnected(ctx, id, now, openErr.Error())
		return fmt.Errorf("account: test connection: %w", openErr)
	}
	defer session.Close(ctx)

	return s.accounts.UpdateLastConnected(ctx, id, now, "")
}

func (s *Service) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	return s.accounts.Delete(ctx, id)
}
