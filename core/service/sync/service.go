// Package sync implements core/port/in.SyncService: folder discovery and
// incremental/full message ingest, keyed off each folder's UIDVALIDITY and
// UID checkpoint.
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aerioncore/mailcore/core/domain"
	in "github.com/aerioncore/mailcore/core/port/in"
	"github.com/aerioncore/mailcore/core/port/out"
	"github.com/aerioncore/mailcore/internal/imap"
	"github.com/aerioncore/mailcore/pkg/apperr"
	"github.com/aerioncore/mailcore/pkg/cache"
)

// fetchBatchSize bounds how many messages are pulled per FetchUIDRange
// round trip, keeping a single sync step's memory and IMAP literal size
// bounded on large mailboxes.
const fetchBatchSize = 200

// flagRefreshWindow bounds the recency window, in UIDs back from the first
// not-yet-cached UID, over which an incremental sync re-checks flags for
// messages already in the cache, so Seen/Flagged changes made on the
// server from another client are reflected locally.
const flagRefreshWindow = 500

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

// Service implements in.SyncService.
type Service struct {
	accounts   out.AccountRepository
	folders    out.FolderRepository
	messages   out.MessageRepository
	syncStates out.SyncStateRepository
	realtime   out.RealtimePort
	pool       *imap.Pool
	tokens     TokenProvider
	notifier   ReauthNotifier
	listCache  *cache.MessageListCache
	log        zerolog.Logger
}

// New builds a sync Service. pool is the concrete connection pool rather
// than a narrower port because WatchAccount needs imap.NewWatcher, which
// takes *imap.Pool directly. listCache may be nil.
func New(accounts out.AccountRepository, folders out.FolderRepository, messages out.MessageRepository, syncStates out.SyncStateRepository, realtime out.RealtimePort, pool *imap.Pool, tokens TokenProvider, notifier ReauthNotifier, listCache *cache.MessageListCache, log zerolog.Logger) *Service {
	return &Service{
		accounts:   accounts,
		folders:    folders,
		messages:   messages,
		syncStates: syncStates,
		realtime:   realtime,
		pool:       pool,
		tokens:     tokens,
		notifier:   notifier,
		listCache:  listCache,
		log:        log.With().Str("component", "sync_service").Logger(),
	}
}

var _ in.SyncService = (*Service)(nil)

// acquireSession ensures an OAuth account carries a fresh access token
// before opening an IMAP session, and on an authentication failure forces
// one refresh and retries exactly once before surfacing ReauthRequired.
func (s *Service) acquireSession(ctx context.Context, acct *domain.Account) (out.ImapSession, error) {
	if acct.UsesOAuth() && s.tokens != nil {
		token, err := s.tokens.GetValidToken(ctx, acct.ID)
		if err != nil {
			return nil, fmt.Errorf("sync: refresh oauth token: %w", err)
		}
		acct.OAuthAccessToken = token
	}

	session, err := s.pool.Acquire(ctx, acct)
	if err == nil {
		return session, nil
	}
	if !acct.UsesOAuth() || s.tokens == nil {
		return nil, fmt.Errorf("sync: acquire imap session: %w", err)
	}

	token, rerr := s.tokens.ForceRefresh(ctx, acct.ID)
	if rerr != nil {
		s.notifyReauth(acct, err)
		return nil, apperr.ReauthRequired(acct.ID.String())
	}
	acct.OAuthAccessToken = token

	session, err = s.pool.Acquire(ctx, acct)
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

// SyncAccount lists remote folders, mirrors the local folder table to
// match (creating new folders, pruning ones absent from the listing), and
// syncs each selectable folder in turn.
func (s *Service) SyncAccount(ctx context.Context, accountID uuid.UUID) error {
	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}

	session, err := s.acquireSession(ctx, acct)
	if err != nil {
		return err
	}
	remoteFolders, err := session.ListFolders(ctx)
	if err != nil {
		s.pool.Release(ctx, acct, session, true)
		return fmt.Errorf("sync: list folders: %w", err)
	}
	s.pool.Release(ctx, acct, session, false)

	present := make([]string, 0, len(remoteFolders))
	for _, rf := range remoteFolders {
		present = append(present, rf.Name)
		if err := s.upsertFolder(ctx, accountID, rf); err != nil {
			s.log.Warn().Err(err).Str("folder", rf.Name).Msg("sync: failed to upsert folder")
		}
	}
	if err := s.folders.PruneAbsent(ctx, accountID, present); err != nil {
		s.log.Warn().Err(err).Msg("sync: prune absent folders failed")
	}

	for _, rf := range remoteFolders {
		if hasAttr(rf.Attrs, `\Noselect`) {
			continue
		}
		if err := s.SyncFolder(ctx, accountID, rf.Name); err != nil {
			s.log.Warn().Err(err).Str("folder", rf.Name).Msg("sync: folder sync failed")
		}
	}
	return nil
}

func hasAttr(attrs []string, target string) bool {
	for _, a := range attrs {
		if a == target {
			return true
		}
	}
	return false
}

func (s *Service) upsertFolder(ctx context.Context, accountID uuid.UUID, rf out.RemoteFolder) error {
	existing, err := s.folders.GetByName(ctx, accountID, rf.Name)
	if err == nil {
		existing.Delimiter = rf.Delimiter
		existing.Attrs = rf.Attrs
		return s.folders.Update(ctx, existing)
	}
	return s.folders.Create(ctx, &domain.Folder{
		AccountID: accountID,
		Name:      rf.Name,
		Delimiter: rf.Delimiter,
		Attrs:     rf.Attrs,
	})
}

// SyncFolder brings folderName up to date. A changed UIDVALIDITY
// invalidates every cached message (the server has recycled UIDs), so the
// cache is dropped and the folder re-ingested from UID 1.
func (s *Service) SyncFolder(ctx context.Context, accountID uuid.UUID, folderName string) error {
	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	folder, err := s.folders.GetByName(ctx, accountID, folderName)
	if err != nil {
		return fmt.Errorf("sync: lookup folder %q: %w", folderName, err)
	}

	if err := s.syncStates.SetStatus(ctx, folder.ID, domain.SyncStatusSyncing, ""); err != nil {
		return err
	}

	session, err := s.acquireSession(ctx, acct)
	if err != nil {
		_ = s.syncStates.SetStatus(ctx, folder.ID, domain.SyncStatusError, err.Error())
		return err
	}
	evict := false
	defer func() { s.pool.Release(ctx, acct, session, evict) }()

	status, err := session.Status(ctx, folderName)
	if err != nil {
		evict = true
		_ = s.syncStates.SetStatus(ctx, folder.ID, domain.SyncStatusError, err.Error())
		return fmt.Errorf("sync: status: %w", err)
	}

	fromUID := uint32(1)
	if folder.UIDValidityChanged(status.UIDValidity) {
		s.log.Warn().Str("folder", folderName).Uint32("old_uidvalidity", folder.UIDValidity).Uint32("new_uidvalidity", status.UIDValidity).Msg("uidvalidity changed, re-ingesting folder")
		if err := s.messages.DeleteByFolder(ctx, folder.ID); err != nil {
			_ = s.syncStates.SetStatus(ctx, folder.ID, domain.SyncStatusError, err.Error())
			return fmt.Errorf("sync: drop stale cache: %w", err)
		}
	} else {
		cached, err := s.messages.MaxUID(ctx, folder.ID)
		if err != nil {
			_ = s.syncStates.SetStatus(ctx, folder.ID, domain.SyncStatusError, err.Error())
			return err
		}
		if cached > 0 {
			fromUID = cached + 1
		}
		if err := s.refreshRecentFlags(ctx, session, folder, fromUID); err != nil {
			s.log.Warn().Err(err).Str("folder", folderName).Msg("sync: recent flag refresh failed")
		}
	}

	folder.UIDValidity = status.UIDValidity
	folder.UIDNext = status.UIDNext
	folder.TotalMessages = status.Messages
	folder.UnseenMessages = status.Unseen
	folder.LastSync = time.Now()
	if err := s.folders.Update(ctx, folder); err != nil {
		s.log.Warn().Err(err).Msg("sync: failed to persist folder metadata")
	}

	total := 0
	if fromUID <= status.UIDNext {
		total = int(status.UIDNext - fromUID)
	}

	synced := 0
	for {
		s.publishProgress(accountID, folderName, domain.SyncStatusSyncing, synced, total)

		fetched, err := session.FetchUIDRange(ctx, folderName, fromUID, false)
		if err != nil {
			evict = true
			_ = s.syncStates.SetStatus(ctx, folder.ID, domain.SyncStatusError, err.Error())
			return fmt.Errorf("sync: fetch uid range: %w", err)
		}
		if len(fetched) == 0 {
			break
		}

		batch := fetched
		if len(batch) > fetchBatchSize {
			batch = batch[:fetchBatchSize]
		}

		msgs := make([]*domain.Message, 0, len(batch))
		maxUID := fromUID
		for _, fm := range batch {
			msgs = append(msgs, toDomainMessage(folder.ID, fm))
			if fm.UID >= maxUID {
				maxUID = fm.UID + 1
			}
		}
		if err := s.messages.UpsertBatch(ctx, msgs); err != nil {
			_ = s.syncStates.SetStatus(ctx, folder.ID, domain.SyncStatusError, err.Error())
			return fmt.Errorf("sync: cache batch: %w", err)
		}
		s.listCache.InvalidateFolder(ctx, folder.ID)

		synced += len(batch)
		if err := s.syncStates.SetCheckpoint(ctx, folder.ID, maxUID-1, synced, total); err != nil {
			s.log.Warn().Err(err).Msg("sync: failed to persist checkpoint")
		}

		if len(fetched) <= fetchBatchSize {
			break
		}
		fromUID = maxUID
	}

	if err := s.syncStates.MarkIncrementalSync(ctx, folder.ID); err != nil {
		s.log.Warn().Err(err).Msg("sync: failed to record incremental sync timestamp")
	}
	if fromUID == 1 {
		if err := s.syncStates.MarkFullSync(ctx, folder.ID); err != nil {
			s.log.Warn().Err(err).Msg("sync: failed to record full sync timestamp")
		}
	}
	if err := s.syncStates.SetStatus(ctx, folder.ID, domain.SyncStatusIdle, ""); err != nil {
		return err
	}
	s.publishProgress(accountID, folderName, domain.SyncStatusIdle, synced, total)
	return nil
}

// refreshRecentFlags re-fetches FLAGS for the most recently cached UIDs in
// folder (those within flagRefreshWindow of fromUID, the first UID not yet
// ingested) and writes any change to the cache, so local Seen/Flagged state
// tracks changes another client made on the server between sync runs.
// fromUID itself and anything at or beyond it is left to the ingest loop.
func (s *Service) refreshRecentFlags(ctx context.Context, session out.ImapSession, folder *domain.Folder, fromUID uint32) error {
	if fromUID <= 1 {
		return nil
	}
	windowStart := uint32(1)
	if fromUID > flagRefreshWindow {
		windowStart = fromUID - flagRefreshWindow
	}

	fetched, err := session.FetchUIDRange(ctx, folder.Name, windowStart, false)
	if err != nil {
		return fmt.Errorf("sync: fetch flags window: %w", err)
	}

	for _, fm := range fetched {
		if fm.UID >= fromUID {
			break
		}
		msg, err := s.messages.GetByUID(ctx, folder.ID, fm.UID)
		if err != nil {
			continue
		}
		flags := domain.DedupeFlags(fm.Flags)
		if err := s.messages.UpdateFlags(ctx, msg.ID, flags); err != nil {
			s.log.Warn().Err(err).Uint32("uid", fm.UID).Msg("sync: flag refresh update failed")
		}
	}
	s.listCache.InvalidateFolder(ctx, folder.ID)
	return nil
}

func (s *Service) publishProgress(accountID uuid.UUID, folder string, status domain.SyncStatus, synced, total int) {
	if s.realtime == nil {
		return
	}
	s.realtime.Publish(&domain.Event{
		Type: domain.EventSyncProgress,
		Data: domain.SyncProgressData{
			AccountID:    accountID.String(),
			Folder:       folder,
			Status:       string(status),
			EmailsSynced: synced,
			EmailsTotal:  total,
		},
	})
}

// toDomainMessage builds the cache row for a plain (withBody=false) fetch.
// HasAttachments is left false here: the BODYSTRUCTURE stubs this ingest
// pass sees are not accompanied by any attachment_metadata row (that only
// happens in mail.Service.FetchWithMIME, which parses the MIME body and
// calls storeAttachments), and has_attachments must never claim more than
// what has actually been persisted. FetchWithMIME corrects the flag once
// the message is hydrated.
func toDomainMessage(folderID int64, fm out.FetchedMessage) *domain.Message {
	date, _ := time.Parse(time.RFC1123Z, fm.Date)
	internalDate, _ := time.Parse(time.RFC1123Z, fm.InternalDate)
	return &domain.Message{
		FolderID:     folderID,
		UID:          fm.UID,
		MessageID:    fm.MessageID,
		InReplyTo:    fm.InReplyTo,
		References:   fm.References,
		Subject:      fm.Subject,
		FromAddress:  fm.FromAddress,
		FromName:     fm.FromName,
		To:           fm.To,
		CC:           fm.CC,
		Date:         date,
		InternalDate: internalDate,
		Size:         fm.Size,
		Flags:        domain.DedupeFlags(fm.Flags),
		Headers:      fm.Headers,
	}
}

// WatchAccount runs IDLE against every selectable folder of accountID
// concurrently until ctx is cancelled, re-syncing a folder whenever its
// watcher signals unsolicited server activity.
func (s *Service) WatchAccount(ctx context.Context, accountID uuid.UUID) error {
	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}
	folders, err := s.folders.ListByAccount(ctx, accountID)
	if err != nil {
		return err
	}

	errCh := make(chan error, len(folders))
	running := 0
	for _, f := range folders {
		if f.HasAttr(`\Noselect`) {
			continue
		}
		running++
		go s.watchFolder(ctx, acct, f.Name, errCh)
	}

	for i := 0; i < running; i++ {
		if err := <-errCh; err != nil && ctx.Err() == nil {
			s.log.Warn().Err(err).Msg("sync: folder watcher exited")
		}
	}
	return ctx.Err()
}

func (s *Service) watchFolder(ctx context.Context, acct *domain.Account, folderName string, errCh chan<- error) {
	watcher := imap.NewWatcher(s.pool, acct, folderName, s.log)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-watcher.Changes():
				if err := s.SyncFolder(ctx, acct.ID, folderName); err != nil {
					s.log.Warn().Err(err).Str("folder", folderName).Msg("sync: idle-triggered sync failed")
				}
			}
		}
	}()

	errCh <- watcher.Run(ctx)
}
