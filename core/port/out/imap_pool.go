package out

import (
	"context"

	"github.com/aerioncore/mailcore/core/domain"
)

// ImapConnPool hands out pooled, authenticated IMAP sessions keyed by
// account, so callers needn't pay connection/auth cost per operation.
type ImapConnPool interface {
	Acquire(ctx context.Context, acct *domain.Account) (ImapSession, error)
	// Release returns session to the pool, or closes it when evict is
	// true (the caller observed it to be broken).
	Release(ctx context.Context, acct *domain.Account, session ImapSession, evict bool)
}
