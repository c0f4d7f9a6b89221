package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/aerioncore/mailcore/core/domain"
	"github.com/aerioncore/mailcore/core/port/out"
	"github.com/aerioncore/mailcore/pkg/cache"
	"github.com/rs/zerolog"
)

var errFlagTestNotFound = errors.New("not found")

type fakeFlagSession struct {
	out.ImapSession
	fetched []out.FetchedMessage
	gotFrom uint32
}

func (s *fakeFlagSession) FetchUIDRange(ctx context.Context, folder string, fromUID uint32, withBody bool) ([]out.FetchedMessage, error) {
	s.gotFrom = fromUID
	return s.fetched, nil
}

type fakeFlagMessageRepo struct {
	out.MessageRepository
	byUID     map[uint32]*domain.Message
	flagCalls []flagCall
}

type flagCall struct {
	id    int64
	flags []string
}

func (f *fakeFlagMessageRepo) GetByUID(ctx context.Context, folderID int64, uid uint32) (*domain.Message, error) {
	m, ok := f.byUID[uid]
	if !ok {
		return nil, errFlagTestNotFound
	}
	return m, nil
}

func (f *fakeFlagMessageRepo) UpdateFlags(ctx context.Context, id int64, flags []string) error {
	f.flagCalls = append(f.flagCalls, flagCall{id: id, flags: flags})
	return nil
}

func TestRefreshRecentFlagsUpdatesOnlyAlreadyCachedUIDs(t *testing.T) {
	messages := &fakeFlagMessageRepo{byUID: map[uint32]*domain.Message{
		10: {ID: 100, FolderID: 1, UID: 10},
		11: {ID: 101, FolderID: 1, UID: 11},
	}}
	session := &fakeFlagSession{fetched: []out.FetchedMessage{
		{UID: 10, Flags: []string{`\Seen`}},
		{UID: 11, Flags: []string{`\Seen`, `\Flagged`}},
		{UID: 12, Flags: []string{`\Seen`}}, // >= fromUID, belongs to the ingest pass instead
	}}
	svc := &Service{messages: messages, listCache: cache.NewMessageListCache(nil), log: zerolog.Nop()}
	folder := &domain.Folder{ID: 1, Name: "INBOX"}

	if err := svc.refreshRecentFlags(context.Background(), session, folder, 12); err != nil {
		t.Fatalf("refreshRecentFlags: %v", err)
	}
	if len(messages.flagCalls) != 2 {
		t.Fatalf("flag updates = %d, want 2 (uid 12 belongs to the ingest pass)", len(messages.flagCalls))
	}
	if messages.flagCalls[0].id != 100 || messages.flagCalls[1].id != 101 {
		t.Errorf("flag updates = %+v, want message ids 100 then 101", messages.flagCalls)
	}
}

func TestRefreshRecentFlagsSkipsOnFirstSync(t *testing.T) {
	messages := &fakeFlagMessageRepo{byUID: map[uint32]*domain.Message{}}
	session := &fakeFlagSession{}
	svc := &Service{messages: messages, listCache: cache.NewMessageListCache(nil), log: zerolog.Nop()}
	folder := &domain.Folder{ID: 1, Name: "INBOX"}

	if err := svc.refreshRecentFlags(context.Background(), session, folder, 1); err != nil {
		t.Fatalf("refreshRecentFlags: %v", err)
	}
	if len(messages.flagCalls) != 0 {
		t.Error("expected no flag refresh when fromUID is 1 (nothing cached yet)")
	}
}

func TestRefreshRecentFlagsBoundsWindowToFlagRefreshWindow(t *testing.T) {
	messages := &fakeFlagMessageRepo{byUID: map[uint32]*domain.Message{}}
	session := &fakeFlagSession{}
	svc := &Service{messages: messages, listCache: cache.NewMessageListCache(nil), log: zerolog.Nop()}
	folder := &domain.Folder{ID: 1, Name: "INBOX"}

	fromUID := uint32(10_000)
	if err := svc.refreshRecentFlags(context.Background(), session, folder, fromUID); err != nil {
		t.Fatalf("refreshRecentFlags: %v", err)
	}
	if want := fromUID - flagRefreshWindow; session.gotFrom != want {
		t.Errorf("fetch window start = %d, want %d", session.gotFrom, want)
	}
}
