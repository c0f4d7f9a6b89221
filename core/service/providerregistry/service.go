// Package providerregistry seeds and serves the well-known IMAP/SMTP
// connection templates (Gmail, Outlook/Office365, iCloud, Yahoo) that the
// account-add flow falls back on when a user supplies only an email
// address.
package providerregistry

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/aerioncore/mailcore/core/domain"
	"github.com/aerioncore/mailcore/core/port/out"
)

// wellKnown are the built-in templates seeded on startup. Additional or
// overriding templates can be added later via Upsert without a code
// change, since lookup always goes through the repository.
var wellKnown = []*domain.ProviderTemplate{
	{
		DomainPattern: "gmail.com", DisplayName: "Gmail",
		IMAPHost: "imap.gmail.com", IMAPPort: 993, IMAPUseTLS: true,
		SMTPHost: "smtp.gmail.com", SMTPPort: 465, SMTPUseTLS: true,
		SupportsOAuth: true, OAuthProvider: domain.OAuthProviderGoogle,
	},
	{
		DomainPattern: "outlook.com", DisplayName: "Outlook",
		IMAPHost: "outlook.office365.com", IMAPPort: 993, IMAPUseTLS: true,
		SMTPHost: "smtp.office365.com", SMTPPort: 587, SMTPUseStartTLS: true,
		SupportsOAuth: true, OAuthProvider: domain.OAuthProviderMicrosoft,
	},
	{
		DomainPattern: "hotmail.com", DisplayName: "Outlook",
		IMAPHost: "outlook.office365.com", IMAPPort: 993, IMAPUseTLS: true,
		SMTPHost: "smtp.office365.com", SMTPPort: 587, SMTPUseStartTLS: true,
		SupportsOAuth: true, OAuthProvider: domain.OAuthProviderMicrosoft,
	},
	{
		DomainPattern: "icloud.com", DisplayName: "iCloud Mail",
		IMAPHost: "imap.mail.me.com", IMAPPort: 993, IMAPUseTLS: true,
		SMTPHost: "smtp.mail.me.com", SMTPPort: 587, SMTPUseStartTLS: true,
	},
	{
		DomainPattern: "yahoo.com", DisplayName: "Yahoo Mail",
		IMAPHost: "imap.mail.yahoo.com", IMAPPort: 993, IMAPUseTLS: true,
		SMTPHost: "smtp.mail.yahoo.com", SMTPPort: 465, SMTPUseTLS: true,
	},
}

// Service wraps out.ProviderTemplateRepository with startup seeding.
type Service struct {
	templates out.ProviderTemplateRepository
	log       zerolog.Logger
}

// New builds a providerregistry Service.
func New(templates out.ProviderTemplateRepository, log zerolog.Logger) *Service {
	return &Service{templates: templates, log: log.With().Str("component", "provider_registry").Logger()}
}

// Seed upserts every well-known template, called once at bootstrap. It is
// idempotent: re-running it on every startup keeps the table current as
// wellKnown is edited across releases.
func (s *Service) Seed(ctx context.Context) error {
	for _, tmpl := range wellKnown {
		if err := s.templates.Upsert(ctx, tmpl); err != nil {
			return err
		}
	}
	s.log.Info().Int("count", len(wellKnown)).Msg("seeded provider templates")
	return nil
}

func (s *Service) GetByDomain(ctx context.Context, domainPattern string) (*domain.ProviderTemplate, error) {
	return s.templates.GetByDomain(ctx, domainPattern)
}

func (s *Service) List(ctx context.Context) ([]*domain.ProviderTemplate, error) {
	return s.templates.List(ctx)
}
