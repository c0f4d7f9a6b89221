// Package outbox implements core/port/in.OutboxService: the two-stage
// SMTP-send-then-IMAP-append delivery state machine (spec component C8).
package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/aerioncore/mailcore/core/domain"
	in "github.com/aerioncore/mailcore/core/port/in"
	"github.com/aerioncore/mailcore/core/port/out"
	"github.com/aerioncore/mailcore/internal/smtp"
	"github.com/aerioncore/mailcore/pkg/ratelimit"
)

const sentFolderName = "Sent"

// Service implements in.OutboxService. The SMTP leg and the IMAP-append
// leg each sit behind their own circuit breaker: a provider outage on one
// transport does not also trip sends through the other.
type Service struct {
	outboxRepo  out.OutboxRepository
	accounts    out.AccountRepository
	smtpOpen    out.SmtpSessionFactory
	imapOpen    out.ImapSessionFactory
	tokens      TokenProvider
	realtime    out.RealtimePort
	log         zerolog.Logger

	smtpBreaker   *gobreaker.CircuitBreaker
	appendBreaker *gobreaker.CircuitBreaker
	sendGuard     *ratelimit.SendProtector
}

// TokenProvider resolves a fresh OAuth access token for an account, so the
// outbox can attach it to SMTP/IMAP sessions without importing the oauth
// service package directly (avoiding an import cycle with core/service/oauth).
type TokenProvider interface {
	GetValidToken(ctx context.Context, acctID uuid.UUID) (string, error)
}

// New builds an outbox Service. sendGuard may be nil, in which case sends
// are neither rate-limited nor debounced.
func New(outboxRepo out.OutboxRepository, accounts out.AccountRepository, smtpOpen out.SmtpSessionFactory, imapOpen out.ImapSessionFactory, tokens TokenProvider, realtime out.RealtimePort, sendGuard *ratelimit.SendProtector, log zerolog.Logger) *Service {
	breakerSettings := func(name string) gobreaker.Settings {
		return gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}
	}
	return &Service{
		outboxRepo:    outboxRepo,
		accounts:      accounts,
		smtpOpen:      smtpOpen,
		imapOpen:      imapOpen,
		tokens:        tokens,
		realtime:      realtime,
		log:           log.With().Str("component", "outbox_service").Logger(),
		smtpBreaker:   gobreaker.NewCircuitBreaker(breakerSettings("smtp_send")),
		appendBreaker: gobreaker.NewCircuitBreaker(breakerSettings("imap_append")),
		sendGuard:     sendGuard,
	}
}

var _ in.OutboxService = (*Service)(nil)

func (s *Service) Enqueue(ctx context.Context, req in.SendRequest) (*domain.OutboxEntry, error) {
	acct, err := s.accounts.GetByID(ctx, req.AccountID)
	if err != nil {
		return nil, fmt.Errorf("outbox: lookup account: %w", err)
	}

	msg := &smtp.ComposeMessage{
		From:     smtp.Address{Name: acct.DisplayName, Address: acct.EmailAddr},
		To:       addressList(req.To),
		Cc:       addressList(req.CC),
		Bcc:      addressList(req.BCC),
		Subject:  req.Subject,
		TextBody: req.BodyText,
		HTMLBody: req.BodyHTML,
	}
	raw, messageID, err := msg.ToRFC5322()
	if err != nil {
		return nil, fmt.Errorf("outbox: compose message: %w", err)
	}

	entry := &domain.OutboxEntry{
		AccountID:  acct.ID,
		MessageID:  messageID,
		To:         req.To,
		CC:         req.CC,
		BCC:        req.BCC,
		Subject:    req.Subject,
		BodyText:   req.BodyText,
		BodyHTML:   req.BodyHTML,
		RawRFC5322: raw,
		MaxRetries: 5,
	}
	if err := s.outboxRepo.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("outbox: persist entry: %w", err)
	}
	return entry, nil
}

func addressList(addrs []string) []smtp.Address {
	out_ := make([]smtp.Address, len(addrs))
	for i, a := range addrs {
		out_[i] = smtp.Address{Address: a}
	}
	return out_
}

// DispatchPending drives every non-complete entry one state transition
// forward. The SMTP send is committed the moment the server accepts the
// DATA terminator and is never retried past that point, even if the
// subsequent APPEND to Sent fails — only the APPEND leg is retried.
func (s *Service) DispatchPending(ctx context.Context) (int, error) {
	entries, err := s.outboxRepo.ListPending(ctx, 50)
	if err != nil {
		return 0, err
	}

	advanced := 0
	for _, entry := range entries {
		if !entry.CanRetry() {
			continue
		}
		if err := s.advance(ctx, entry); err != nil {
			s.log.Warn().Err(err).Int64("outbox_id", entry.ID).Msg("outbox dispatch step failed")
			_ = s.outboxRepo.RecordFailure(ctx, entry.ID, err.Error())
			continue
		}
		advanced++
		s.publishProgress(entry)
	}
	return advanced, nil
}

func (s *Service) advance(ctx context.Context, entry *domain.OutboxEntry) error {
	acct, err := s.accounts.GetByID(ctx, entry.AccountID)
	if err != nil {
		return fmt.Errorf("lookup account: %w", err)
	}
	if acct.UsesOAuth() {
		token, err := s.tokens.GetValidToken(ctx, acct.ID)
		if err != nil {
			return fmt.Errorf("refresh oauth token: %w", err)
		}
		acct.OAuthAccessToken = token
	}

	switch entry.NextState() {
	case "send_smtp":
		return s.sendSMTP(ctx, acct, entry)
	case "append_sent_folder":
		return s.appendSent(ctx, acct, entry)
	default:
		return nil
	}
}

func (s *Service) sendSMTP(ctx context.Context, acct *domain.Account, entry *domain.OutboxEntry) error {
	if s.sendGuard != nil {
		key := fmt.Sprintf("%s:%d", acct.ID, entry.ID)
		result, release := s.sendGuard.Acquire(ctx, key, acct.ID.String())
		if !result.Allowed {
			return fmt.Errorf("send throttled: %s", result.Reason)
		}
		defer release()
	}

	_, err := s.smtpBreaker.Execute(func() (interface{}, error) {
		session, err := s.smtpOpen.Open(ctx, acct)
		if err != nil {
			return nil, fmt.Errorf("open smtp session: %w", err)
		}
		defer session.Close(ctx)

		recipients := append(append([]string{}, entry.To...), entry.CC...)
		recipients = append(recipients, entry.BCC...)
		if err := session.Send(ctx, acct.EmailAddr, recipients, entry.RawRFC5322); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		return err
	}
	return s.outboxRepo.MarkSMTPSent(ctx, entry.ID)
}

func (s *Service) appendSent(ctx context.Context, acct *domain.Account, entry *domain.OutboxEntry) error {
	_, err := s.appendBreaker.Execute(func() (interface{}, error) {
		session, err := s.imapOpen.Open(ctx, acct)
		if err != nil {
			return nil, fmt.Errorf("open imap session: %w", err)
		}
		defer session.Close(ctx)

		_, err = session.Append(ctx, sentFolderName, entry.RawRFC5322, []string{"\\Seen"})
		return nil, err
	})
	if err != nil {
		return err
	}
	return s.outboxRepo.MarkSentFolderSaved(ctx, entry.ID)
}

func (s *Service) publishProgress(entry *domain.OutboxEntry) {
	if s.realtime == nil {
		return
	}
	s.realtime.Publish(&domain.Event{
		Type: domain.EventOutboxProgress,
		Data: domain.OutboxProgressData{
			EntryID:   entry.ID,
			AccountID: entry.AccountID.String(),
			State:     entry.NextState(),
			Error:     entry.LastError,
		},
	})
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.OutboxEntry, error) {
	return s.outboxRepo.GetByID(ctx, id)
}

func (s *Service) ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*domain.OutboxEntry, error) {
	return s.outboxRepo.ListByAccount(ctx, accountID, limit, offset)
}

// DispatchLoop polls DispatchPending on interval until ctx is cancelled.
func (s *Service) DispatchLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.DispatchPending(ctx); err != nil {
				s.log.Warn().Err(err).Msg("outbox dispatch loop iteration failed")
			}
		}
	}
}
