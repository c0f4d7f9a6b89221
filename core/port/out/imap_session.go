package out

import (
	"context"

	"github.com/aerioncore/mailcore/core/domain"
)

// FetchedMessage is the wire-level result of fetching one message's
// envelope, flags and (optionally) body parts from the server.
type FetchedMessage struct {
	UID          uint32
	MessageID    string
	InReplyTo    string
	References   string
	Subject      string
	FromAddress  string
	FromName     string
	To           []string
	CC           []string
	Date         string
	InternalDate string
	Size         int64
	Flags        []string
	Headers      string
	BodyText     string
	BodyHTML     string
	Attachments  []FetchedAttachment
}

// FetchedAttachment is a MIME part discovered during a body fetch.
type FetchedAttachment struct {
	Filename    string
	ContentType string
	ContentID   string
	Data        []byte
}

// RemoteFolder is a mailbox as reported by LIST.
type RemoteFolder struct {
	Name      string
	Delimiter string
	Attrs     []string
}

// MailboxStatus is the result of a STATUS/SELECT on a folder.
type MailboxStatus struct {
	UIDValidity uint32
	UIDNext     uint32
	Messages    int
	Unseen      int
}

// ImapSession is a live, authenticated IMAP connection scoped to one
// Account. Implementations wrap a pooled *imapclient.Client.
type ImapSession interface {
	ListFolders(ctx context.Context) ([]RemoteFolder, error)
	Status(ctx context.Context, folder string) (*MailboxStatus, error)
	// FetchUIDRange fetches envelopes/flags (and bodies if withBody) for
	// uid >= fromUID in folder, ascending.
	FetchUIDRange(ctx context.Context, folder string, fromUID uint32, withBody bool) ([]FetchedMessage, error)
	FetchByUID(ctx context.Context, folder string, uids []uint32, withBody bool) ([]FetchedMessage, error)
	// Idle blocks until the server reports a mailbox change or ctx is
	// cancelled, whichever comes first.
	Idle(ctx context.Context, folder string) error
	StoreFlags(ctx context.Context, folder string, uid uint32, add, remove []string) error
	Move(ctx context.Context, srcFolder, dstFolder string, uid uint32) (newUID uint32, err error)
	BatchMove(ctx context.Context, srcFolder, dstFolder string, uids []uint32) (map[uint32]uint32, error)
	Expunge(ctx context.Context, folder string) error
	Append(ctx context.Context, folder string, raw []byte, flags []string) (uid uint32, err error)
	Close(ctx context.Context) error
}

// ImapSessionFactory opens an authenticated IMAP session for an Account,
// from a pool keyed by (account, folder) where the underlying library
// permits connection reuse.
type ImapSessionFactory interface {
	Open(ctx context.Context, acct *domain.Account) (ImapSession, error)
}
