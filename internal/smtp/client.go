package smtp

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/rs/zerolog"

	"github.com/aerioncore/mailcore/core/domain"
	"github.com/aerioncore/mailcore/core/port/out"
	"github.com/aerioncore/mailcore/internal/xoauth2"
)

const (
	dialTimeout = 30 * time.Second
	ioTimeout   = 2 * time.Minute
)

// Session is a single authenticated SMTP submission connection, kept open
// across at most one Send per spec C8 (the outbox never batches sends onto
// a shared connection, to keep retry semantics per-message).
type Session struct {
	conn   net.Conn
	client *smtp.Client
	log    zerolog.Logger
}

var _ out.SmtpSession = (*Session)(nil)

// Factory opens Sessions for an Account, implementing out.SmtpSessionFactory.
type Factory struct {
	log zerolog.Logger
}

var _ out.SmtpSessionFactory = (*Factory)(nil)

// NewFactory builds an SMTP session factory.
func NewFactory(log zerolog.Logger) *Factory {
	return &Factory{log: log.With().Str("component", "smtp").Logger()}
}

func (f *Factory) Open(ctx context.Context, acct *domain.Account) (out.SmtpSession, error) {
	addr := fmt.Sprintf("%s:%d", acct.SMTPHost, acct.SMTPPort)

	var conn net.Conn
	var err error
	if acct.SMTPUseTLS {
		dialer := &net.Dialer{Timeout: dialTimeout}
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: acct.SMTPHost})
	} else {
		conn, err = net.DialTimeout("tcp", addr, dialTimeout)
	}
	if err != nil {
		return nil, fmt.Errorf("smtp: dial %s: %w", addr, err)
	}
	conn.SetDeadline(time.Now().Add(ioTimeout))

	client, err := smtp.NewClient(conn, acct.SMTPHost)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("smtp: handshake: %w", err)
	}

	if !acct.SMTPUseTLS && acct.SMTPUseStartTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: acct.SMTPHost}); err != nil {
				client.Close()
				return nil, fmt.Errorf("smtp: starttls: %w", err)
			}
		}
	}

	s := &Session{conn: conn, client: client, log: f.log.With().Str("account", acct.EmailAddr).Logger()}
	if err := s.authenticate(acct); err != nil {
		client.Close()
		return nil, err
	}
	return s, nil
}

func (s *Session) authenticate(acct *domain.Account) error {
	if acct.UsesOAuth() {
		if acct.OAuthAccessToken == "" {
			return fmt.Errorf("smtp: oauth account has no access token")
		}
		auth := xoauth2.NewClient(acct.SMTPUser, acct.OAuthAccessToken)
		if err := authenticateSASL(s.client, auth); err != nil {
			return fmt.Errorf("smtp: xoauth2 auth: %w", err)
		}
		return nil
	}

	if ok, _ := s.client.Extension("AUTH"); ok {
		auth := smtp.PlainAuth("", acct.SMTPUser, acct.SMTPPass, acct.SMTPHost)
		if err := s.client.Auth(auth); err != nil {
			return fmt.Errorf("smtp: plain auth: %w", err)
		}
	}
	return nil
}

// authenticateSASL drives an emersion/go-sasl client through net/smtp's
// AUTH command, since net/smtp.Auth and sasl.Client use distinct (but
// structurally equivalent) interfaces.
func authenticateSASL(client *smtp.Client, saslClient sasl.Client) error {
	return client.Auth(saslAdapter{saslClient})
}

type saslAdapter struct {
	inner sasl.Client
}

func (a saslAdapter) Start(server *smtp.ServerInfo) (proto string, toServer []byte, err error) {
	return a.inner.Start()
}

func (a saslAdapter) Next(fromServer []byte, more bool) (toServer []byte, err error) {
	if !more {
		return nil, nil
	}
	return a.inner.Next(fromServer)
}

func (s *Session) Send(ctx context.Context, envelopeFrom string, envelopeTo []string, raw []byte) error {
	s.conn.SetDeadline(time.Now().Add(ioTimeout))

	if err := s.client.Mail(envelopeFrom); err != nil {
		return fmt.Errorf("smtp: MAIL FROM: %w", err)
	}
	for _, rcpt := range envelopeTo {
		if err := s.client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp: RCPT TO %s: %w", rcpt, err)
		}
	}

	w, err := s.client.Data()
	if err != nil {
		return fmt.Errorf("smtp: DATA: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return fmt.Errorf("smtp: writing message body: %w", err)
	}
	// Once Close() returns without error the server has accepted the
	// terminating "." and the send is committed: callers must not retry.
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp: DATA terminator rejected: %w", err)
	}
	return nil
}

func (s *Session) Close(ctx context.Context) error {
	if err := s.client.Quit(); err != nil {
		s.log.Warn().Err(err).Msg("smtp quit failed, closing socket directly")
		return s.conn.Close()
	}
	return nil
}
