// Package mail implements core/port/in.FolderService and in.MailService:
// read access to cached messages and the mutating IMAP operations that
// keep the cache consistent with the server.
package mail

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aerioncore/mailcore/core/domain"
	in "github.com/aerioncore/mailcore/core/port/in"
	"github.com/aerioncore/mailcore/core/port/out"
	"github.com/aerioncore/mailcore/pkg/apperr"
	"github.com/aerioncore/mailcore/pkg/cache"
)

// TokenProvider resolves a fresh OAuth access token for an account so an
// IMAP session can authenticate without this package importing
// core/service/oauth directly (avoiding an import cycle).
type TokenProvider interface {
	GetValidToken(ctx context.Context, acctID uuid.UUID) (string, error)
	ForceRefresh(ctx context.Context, acctID uuid.UUID) (string, error)
}

// ReauthNotifier publishes a reauth-required event for an account whose
// OAuth session a forced token refresh could not recover.
type ReauthNotifier interface {
	PublishReauthRequired(accountID, reason string)
}

// Service implements in.FolderService and in.MailService.
type Service struct {
	accounts    out.AccountRepository
	folders     out.FolderRepository
	messages    out.MessageRepository
	syncStates  out.SyncStateRepository
	attachments out.AttachmentRepository
	blobs       out.BlobStore
	imapPool    out.ImapConnPool
	tokens      TokenProvider
	notifier    ReauthNotifier
	listCache   *cache.MessageListCache
	log         zerolog.Logger
}

// New builds a mail Service. listCache may be nil, in which case
// ListCached always goes straight to the message repository.
func New(accounts out.AccountRepository, folders out.FolderRepository, messages out.MessageRepository, syncStates out.SyncStateRepository, attachments out.AttachmentRepository, blobs out.BlobStore, imapPool out.ImapConnPool, tokens TokenProvider, notifier ReauthNotifier, listCache *cache.MessageListCache, log zerolog.Logger) *Service {
	return &Service{
		accounts:    accounts,
		folders:     folders,
		messages:    messages,
		syncStates:  syncStates,
		attachments: attachments,
		blobs:       blobs,
		imapPool:    imapPool,
		tokens:      tokens,
		notifier:    notifier,
		listCache:   listCache,
		log:         log.With().Str("component", "mail_service").Logger(),
	}
}

// acquireSession ensures an OAuth account carries a fresh access token
// before opening an IMAP session, and on an authentication failure forces
// one refresh and retries exactly once before surfacing ReauthRequired.
func (s *Service) acquireSession(ctx context.Context, acct *domain.Account) (out.ImapSession, error) {
	if acct.UsesOAuth() && s.tokens != nil {
		token, err := s.tokens.GetValidToken(ctx, acct.ID)
		if err != nil {
			return nil, fmt.Errorf("mail: refresh oauth token: %w", err)
		}
		acct.OAuthAccessToken = token
	}

	session, err := s.imapPool.Acquire(ctx, acct)
	if err == nil {
		return session, nil
	}
	if !acct.UsesOAuth() || s.tokens == nil {
		return nil, fmt.Errorf("mail: acquire imap session: %w", err)
	}

	token, rerr := s.tokens.ForceRefresh(ctx, acct.ID)
	if rerr != nil {
		s.notifyReauth(acct, err)
		return nil, apperr.ReauthRequired(acct.ID.String())
	}
	acct.OAuthAccessToken = token

	session, err = s.imapPool.Acquire(ctx, acct)
	if err != nil {
		s.notifyReauth(acct, err)
		return nil, apperr.ReauthRequired(acct.ID.String())
	}
	return session, nil
}

func (s *Service) notifyReauth(acct *domain.Account, cause error) {
	if s.notifier == nil {
		return
	}
	s.notifier.PublishReauthRequired(acct.ID.String(), cause.Error())
}

var _ in.FolderService = (*Service)(nil)
var _ in.MailService = (*Service)(nil)

// --- FolderService ---

func (s *Service) ListFolders(ctx context.Context, accountID uuid.UUID) ([]*domain.Folder, error) {
	return s.folders.ListByAccount(ctx, accountID)
}

func (s *Service) ListFoldersHierarchical(ctx context.Context, accountID uuid.UUID) ([]*in.FolderNode, error) {
	flat, err := s.folders.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return buildFolderTree(flat), nil
}

// buildFolderTree groups folders by splitting Name on each folder's own
// Delimiter, attaching a folder under its longest already-seen ancestor
// prefix. IMAP servers may mix delimiters across namespaces, so lookups
// are keyed on the full path string, not a shared separator.
func buildFolderTree(flat []*domain.Folder) []*in.FolderNode {
	nodes := make(map[string]*in.FolderNode, len(flat))
	var roots []*in.FolderNode

	sorted := append([]*domain.Folder{}, flat...)
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i].Name) < len(sorted[j].Name) })

	for _, f := range sorted {
		node := &in.FolderNode{Folder: f}
		nodes[f.Name] = node

		parentName, ok := parentPath(f.Name, f.Delimiter)
		if ok {
			if parent, found := nodes[parentName]; found {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		roots = append(roots, node)
	}
	return roots
}

func parentPath(name, delimiter string) (string, bool) {
	if delimiter == "" {
		return "", false
	}
	idx := strings.LastIndex(name, delimiter)
	if idx <= 0 {
		return "", false
	}
	return name[:idx], true
}

func (s *Service) GetFolderStats(ctx context.Context, folderID int64) (*domain.SyncState, error) {
	return s.syncStates.GetByFolder(ctx, folderID)
}

// --- MailService ---

func (s *Service) GetByUID(ctx context.Context, folderID int64, uid uint32) (*domain.Message, error) {
	return s.messages.GetByUID(ctx, folderID, uid)
}

func (s *Service) GetByIndex(ctx context.Context, folderID int64, index int) (*domain.Message, error) {
	return s.messages.GetByIndex(ctx, folderID, index)
}

func (s *Service) CountInFolder(ctx context.Context, folderID int64) (int, error) {
	return s.messages.CountInFolder(ctx, folderID)
}

func (s *Service) ListCached(ctx context.Context, folderID int64, limit, offset int) ([]*domain.Message, error) {
	if msgs, ok := s.listCache.Get(ctx, folderID, limit, offset); ok {
		return msgs, nil
	}
	msgs, _, err := s.messages.List(ctx, &domain.MessageFilter{FolderID: &folderID, Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	s.listCache.Set(ctx, folderID, limit, offset, msgs)
	return msgs, nil
}

func (s *Service) SearchCached(ctx context.Context, query string, limit, offset int) ([]*domain.Message, error) {
	return s.messages.Search(ctx, 0, query, limit, offset)
}

// SearchRemote issues a live IMAP SEARCH by falling back to a bounded
// FetchUIDRange scan filtered client-side: go-imap/v2's SEARCH surface
// varies enough across providers (custom X-GM-RAW, charset quirks) that
// folding the match into the already-cached text gives more predictable
// results than trusting every server's SEARCH implementation equally.
func (s *Service) SearchRemote(ctx context.Context, accountID uuid.UUID, folder, query string) ([]*domain.Message, error) {
	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	session, err := s.acquireSession(ctx, acct)
	if err != nil {
		return nil, err
	}
	evict := false
	defer func() { s.imapPool.Release(ctx, acct, session, evict) }()

	fetched, err := session.FetchUIDRange(ctx, folder, 1, false)
	if err != nil {
		evict = true
		return nil, fmt.Errorf("mail: remote search fetch: %w", err)
	}

	needle := strings.ToLower(query)
	var matched []*domain.Message
	for _, fm := range fetched {
		if strings.Contains(strings.ToLower(fm.Subject), needle) || strings.Contains(strings.ToLower(fm.FromAddress), needle) {
			m := toDomainMessage(0, fm)
			matched = append(matched, m)
		}
	}
	return matched, nil
}

// FetchWithMIME fetches full bodies for uids, persists them (and any
// attachments) to the cache, and returns the hydrated messages.
func (s *Service) FetchWithMIME(ctx context.Context, accountID uuid.UUID, folder string, uids []uint32) ([]*domain.Message, error) {
	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	f, err := s.folders.GetByName(ctx, accountID, folder)
	if err != nil {
		return nil, fmt.Errorf("mail: lookup folder %q: %w", folder, err)
	}

	session, err := s.acquireSession(ctx, acct)
	if err != nil {
		return nil, err
	}
	evict := false
	defer func() { s.imapPool.Release(ctx, acct, session, evict) }()

	fetched, err := session.FetchByUID(ctx, folder, uids, true)
	if err != nil {
		evict = true
		return nil, fmt.Errorf("mail: fetch with mime: %w", err)
	}

	msgs := make([]*domain.Message, 0, len(fetched))
	for _, fm := range fetched {
		m := toDomainMessage(f.ID, fm)
		if err := s.messages.Upsert(ctx, m); err != nil {
			return nil, fmt.Errorf("mail: cache message uid=%d: %w", fm.UID, err)
		}
		if err := s.storeAttachments(ctx, m.ID, fm.Attachments); err != nil {
			s.log.Warn().Err(err).Int64("message_id", m.ID).Msg("attachment storage failed")
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (s *Service) storeAttachments(ctx context.Context, messageID int64, atts []out.FetchedAttachment) error {
	for _, a := range atts {
		path := fmt.Sprintf("%d/%s", messageID, a.Filename)
		if err := s.blobs.Write(ctx, path, a.Data); err != nil {
			return err
		}
		rec := &domain.Attachment{
			MessageID:   messageID,
			Filename:    a.Filename,
			Size:        int64(len(a.Data)),
			ContentType: a.ContentType,
			ContentID:   a.ContentID,
			StoragePath: path,
		}
		if err := s.attachments.Create(ctx, rec); err != nil {
			return err
		}
		if err := s.attachments.MarkDownloaded(ctx, rec.ID, path); err != nil {
			return err
		}
	}
	return nil
}

func toDomainMessage(folderID int64, fm out.FetchedMessage) *domain.Message {
	date, _ := time.Parse(time.RFC1123Z, fm.Date)
	internalDate, _ := time.Parse(time.RFC1123Z, fm.InternalDate)
	return &domain.Message{
		FolderID:       folderID,
		UID:            fm.UID,
		MessageID:      fm.MessageID,
		InReplyTo:      fm.InReplyTo,
		References:     fm.References,
		Subject:        fm.Subject,
		FromAddress:    fm.FromAddress,
		FromName:       fm.FromName,
		To:             fm.To,
		CC:             fm.CC,
		Date:           date,
		InternalDate:   internalDate,
		Size:           fm.Size,
		Flags:          domain.DedupeFlags(fm.Flags),
		Headers:        fm.Headers,
		BodyText:       fm.BodyText,
		BodyHTML:       fm.BodyHTML,
		HasAttachments: len(fm.Attachments) > 0,
	}
}

func (s *Service) AtomicMove(ctx context.Context, accountID uuid.UUID, srcFolder, dstFolder string, uid uint32) error {
	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	src, err := s.folders.GetByName(ctx, accountID, srcFolder)
	if err != nil {
		return fmt.Errorf("mail: lookup source folder: %w", err)
	}
	dst, err := s.folders.GetByName(ctx, accountID, dstFolder)
	if err != nil {
		return fmt.Errorf("mail: lookup destination folder: %w", err)
	}
	msg, err := s.messages.GetByUID(ctx, src.ID, uid)
	if err != nil {
		return fmt.Errorf("mail: lookup cached message: %w", err)
	}

	session, err := s.acquireSession(ctx, acct)
	if err != nil {
		return err
	}
	evict := false
	defer func() { s.imapPool.Release(ctx, acct, session, evict) }()

	newUID, err := session.Move(ctx, srcFolder, dstFolder, uid)
	if err != nil {
		evict = true
		return fmt.Errorf("mail: imap move: %w", err)
	}
	if err := s.messages.Move(ctx, msg.ID, dst.ID, newUID); err != nil {
		return err
	}
	s.listCache.InvalidateFolder(ctx, src.ID)
	s.listCache.InvalidateFolder(ctx, dst.ID)
	return nil
}

func (s *Service) AtomicBatchMove(ctx context.Context, accountID uuid.UUID, srcFolder, dstFolder string, uids []uint32) error {
	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	src, err := s.folders.GetByName(ctx, accountID, srcFolder)
	if err != nil {
		return fmt.Errorf("mail: lookup source folder: %w", err)
	}
	dst, err := s.folders.GetByName(ctx, accountID, dstFolder)
	if err != nil {
		return fmt.Errorf("mail: lookup destination folder: %w", err)
	}

	session, err := s.acquireSession(ctx, acct)
	if err != nil {
		return err
	}
	evict := false
	defer func() { s.imapPool.Release(ctx, acct, session, evict) }()

	uidMap, err := session.BatchMove(ctx, srcFolder, dstFolder, uids)
	if err != nil {
		evict = true
		return fmt.Errorf("mail: imap batch move: %w", err)
	}

	for oldUID, newUID := range uidMap {
		msg, err := s.messages.GetByUID(ctx, src.ID, oldUID)
		if err != nil {
			s.log.Warn().Err(err).Uint32("uid", oldUID).Msg("batch move: cached message not found")
			continue
		}
		if err := s.messages.Move(ctx, msg.ID, dst.ID, newUID); err != nil {
			return fmt.Errorf("mail: cache move uid=%d: %w", oldUID, err)
		}
	}
	s.listCache.InvalidateFolder(ctx, src.ID)
	s.listCache.InvalidateFolder(ctx, dst.ID)
	return nil
}

func (s *Service) MarkAsDeleted(ctx context.Context, accountID uuid.UUID, folder string, uids []uint32) error {
	return s.storeFlagsBatch(ctx, accountID, folder, uids, []string{`\Deleted`}, nil)
}

func (s *Service) UndeleteMessages(ctx context.Context, accountID uuid.UUID, folder string, uids []uint32) error {
	return s.storeFlagsBatch(ctx, accountID, folder, uids, nil, []string{`\Deleted`})
}

// DeleteMessages marks uids \Deleted and immediately expunges them: the
// spec's delete operation is a hard delete, not a move to Trash (that is
// what AtomicMove is for).
func (s *Service) DeleteMessages(ctx context.Context, accountID uuid.UUID, folder string, uids []uint32) error {
	if err := s.MarkAsDeleted(ctx, accountID, folder, uids); err != nil {
		return err
	}
	return s.Expunge(ctx, accountID, folder)
}

func (s *Service) storeFlagsBatch(ctx context.Context, accountID uuid.UUID, folder string, uids []uint32, add, remove []string) error {
	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	f, err := s.folders.GetByName(ctx, accountID, folder)
	if err != nil {
		return fmt.Errorf("mail: lookup folder: %w", err)
	}

	session, err := s.acquireSession(ctx, acct)
	if err != nil {
		return err
	}
	evict := false
	defer func() { s.imapPool.Release(ctx, acct, session, evict) }()

	for _, uid := range uids {
		if err := session.StoreFlags(ctx, folder, uid, add, remove); err != nil {
			evict = true
			return fmt.Errorf("mail: store flags uid=%d: %w", uid, err)
		}
		if msg, err := s.messages.GetByUID(ctx, f.ID, uid); err == nil {
			for _, flag := range add {
				msg.SetFlag(flag)
			}
			for _, flag := range remove {
				msg.ClearFlag(flag)
			}
			_ = s.messages.UpdateFlags(ctx, msg.ID, domain.DedupeFlags(msg.Flags))
		}
	}
	s.listCache.InvalidateFolder(ctx, f.ID)
	return nil
}

func (s *Service) Expunge(ctx context.Context, accountID uuid.UUID, folder string) error {
	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}

	session, err := s.acquireSession(ctx, acct)
	if err != nil {
		return err
	}
	evict := false
	defer func() { s.imapPool.Release(ctx, acct, session, evict) }()

	if err := session.Expunge(ctx, folder); err != nil {
		evict = true
		return fmt.Errorf("mail: imap expunge: %w", err)
	}
	if f, err := s.folders.GetByName(ctx, accountID, folder); err == nil {
		s.listCache.InvalidateFolder(ctx, f.ID)
	}
	return nil
}
