package out

import (
	"context"

	"github.com/aerioncore/mailcore/core/domain"
)

// SmtpSession submits one RFC 5322 message over an authenticated SMTP
// connection (STARTTLS on 587 or implicit TLS on 465, or XOAUTH2 over
// either).
type SmtpSession interface {
	// Send submits raw (a complete RFC 5322 message, including headers) to
	// the given envelope recipients. It returns once the server has
	// accepted the DATA terminator — after this point the send MUST NOT be
	// treated as cancellable.
	Send(ctx context.Context, envelopeFrom string, envelopeTo []string, raw []byte) error
	Close(ctx context.Context) error
}

// SmtpSessionFactory opens an authenticated SMTP session for an Account.
type SmtpSessionFactory interface {
	Open(ctx context.Context, acct *domain.Account) (SmtpSession, error)
}
