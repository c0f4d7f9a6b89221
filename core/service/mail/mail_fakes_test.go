package mail

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/aerioncore/mailcore/core/domain"
	"github.com/aerioncore/mailcore/core/port/out"
)

type fakeAccountRepo struct {
	accounts map[uuid.UUID]*domain.Account
}

func newFakeAccountRepo(accts ...*domain.Account) *fakeAccountRepo {
	f := &fakeAccountRepo{accounts: make(map[uuid.UUID]*domain.Account)}
	for _, a := range accts {
		f.accounts[a.ID] = a
	}
	return f
}

func (f *fakeAccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	a, ok := f.accounts[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return a, nil
}
func (f *fakeAccountRepo) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeAccountRepo) GetDefault(ctx context.Context) (*domain.Account, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeAccountRepo) List(ctx context.Context) ([]*domain.Account, error) { return nil, nil }
func (f *fakeAccountRepo) Create(ctx context.Context, acct *domain.Account) error { return nil }
func (f *fakeAccountRepo) Update(ctx context.Context, acct *domain.Account) error { return nil }
func (f *fakeAccountRepo) SetDefault(ctx context.Context, id uuid.UUID) error     { return nil }
func (f *fakeAccountRepo) UpdateLastConnected(ctx context.Context, id uuid.UUID, at time.Time, lastError string) error {
	return nil
}
func (f *fakeAccountRepo) Delete(ctx context.Context, id uuid.UUID) error { return nil }

type fakeFolderRepo struct {
	byName map[string]*domain.Folder
}

func newFakeFolderRepo(folders ...*domain.Folder) *fakeFolderRepo {
	f := &fakeFolderRepo{byName: make(map[string]*domain.Folder)}
	for _, fo := range folders {
		f.byName[fo.Name] = fo
	}
	return f
}

func (f *fakeFolderRepo) GetByID(ctx context.Context, id int64) (*domain.Folder, error) {
	for _, fo := range f.byName {
		if fo.ID == id {
			return fo, nil
		}
	}
	return nil, errors.New("not found")
}
func (f *fakeFolderRepo) GetByName(ctx context.Context, accountID uuid.UUID, name string) (*domain.Folder, error) {
	fo, ok := f.byName[name]
	if !ok {
		return nil, errors.New("not found")
	}
	return fo, nil
}
func (f *fakeFolderRepo) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*domain.Folder, error) {
	var folders []*domain.Folder
	for _, fo := range f.byName {
		folders = append(folders, fo)
	}
	return folders, nil
}
func (f *fakeFolderRepo) Create(ctx context.Context, fo *domain.Folder) error { return nil }
func (f *fakeFolderRepo) Update(ctx context.Context, fo *domain.Folder) error { return nil }
func (f *fakeFolderRepo) UpdateCounts(ctx context.Context, id int64, total, unseen int) error {
	return nil
}
func (f *fakeFolderRepo) Delete(ctx context.Context, id int64) error { return nil }
func (f *fakeFolderRepo) PruneAbsent(ctx context.Context, accountID uuid.UUID, presentNames []string) error {
	return nil
}

type fakeMessageRepo struct {
	byUID     map[int64]map[uint32]*domain.Message
	moveCalls []moveCall
	flagCalls []flagCall
}

type moveCall struct {
	id, newFolderID int64
	newUID          uint32
}

type flagCall struct {
	id    int64
	flags []string
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{byUID: make(map[int64]map[uint32]*domain.Message)}
}

func (f *fakeMessageRepo) put(m *domain.Message) {
	if f.byUID[m.FolderID] == nil {
		f.byUID[m.FolderID] = make(map[uint32]*domain.Message)
	}
	f.byUID[m.FolderID][m.UID] = m
}

func (f *fakeMessageRepo) GetByID(ctx context.Context, id int64) (*domain.Message, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeMessageRepo) GetByUID(ctx context.Context, folderID int64, uid uint32) (*domain.Message, error) {
	m, ok := f.byUID[folderID][uid]
	if !ok {
		return nil, errors.New("not found")
	}
	return m, nil
}
func (f *fakeMessageRepo) GetByIndex(ctx context.Context, folderID int64, index int) (*domain.Message, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeMessageRepo) MaxUID(ctx context.Context, folderID int64) (uint32, error) { return 0, nil }
func (f *fakeMessageRepo) CountInFolder(ctx context.Context, folderID int64) (int, error) {
	return len(f.byUID[folderID]), nil
}
func (f *fakeMessageRepo) List(ctx context.Context, filter *domain.MessageFilter) ([]*domain.Message, int, error) {
	var msgs []*domain.Message
	if filter.FolderID != nil {
		for _, m := range f.byUID[*filter.FolderID] {
			msgs = append(msgs, m)
		}
	}
	return msgs, len(msgs), nil
}
func (f *fakeMessageRepo) Search(ctx context.Context, folderID int64, query string, limit, offset int) ([]*domain.Message, error) {
	return nil, nil
}
func (f *fakeMessageRepo) Upsert(ctx context.Context, m *domain.Message) error {
	if m.ID == 0 {
		m.ID = int64(len(f.byUID[m.FolderID]) + 1)
	}
	f.put(m)
	return nil
}
func (f *fakeMessageRepo) UpsertBatch(ctx context.Context, msgs []*domain.Message) error {
	for _, m := range msgs {
		f.put(m)
	}
	return nil
}
func (f *fakeMessageRepo) UpdateFlags(ctx context.Context, id int64, flags []string) error {
	f.flagCalls = append(f.flagCalls, flagCall{id: id, flags: flags})
	return nil
}
func (f *fakeMessageRepo) Move(ctx context.Context, id int64, newFolderID int64, newUID uint32) error {
	f.moveCalls = append(f.moveCalls, moveCall{id: id, newFolderID: newFolderID, newUID: newUID})
	return nil
}
func (f *fakeMessageRepo) DeleteByFolder(ctx context.Context, folderID int64) error { return nil }
func (f *fakeMessageRepo) Delete(ctx context.Context, id int64) error               { return nil }

type fakeSyncStateRepo struct {
	byFolder map[int64]*domain.SyncState
}

func (f *fakeSyncStateRepo) GetByFolder(ctx context.Context, folderID int64) (*domain.SyncState, error) {
	s, ok := f.byFolder[folderID]
	if !ok {
		return nil, errors.New("not found")
	}
	return s, nil
}
func (f *fakeSyncStateRepo) Upsert(ctx context.Context, s *domain.SyncState) error { return nil }
func (f *fakeSyncStateRepo) SetStatus(ctx context.Context, folderID int64, status domain.SyncStatus, errMsg string) error {
	return nil
}
func (f *fakeSyncStateRepo) SetCheckpoint(ctx context.Context, folderID int64, lastUID uint32, synced, total int) error {
	return nil
}
func (f *fakeSyncStateRepo) MarkFullSync(ctx context.Context, folderID int64) error        { return nil }
func (f *fakeSyncStateRepo) MarkIncrementalSync(ctx context.Context, folderID int64) error { return nil }

type fakeAttachmentRepo struct {
	created  []*domain.Attachment
	markedID int64
}

func (f *fakeAttachmentRepo) GetByID(ctx context.Context, id int64) (*domain.Attachment, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeAttachmentRepo) ListByMessage(ctx context.Context, messageID int64) ([]*domain.Attachment, error) {
	return nil, nil
}
func (f *fakeAttachmentRepo) Create(ctx context.Context, a *domain.Attachment) error {
	a.ID = int64(len(f.created) + 1)
	f.created = append(f.created, a)
	return nil
}
func (f *fakeAttachmentRepo) MarkDownloaded(ctx context.Context, id int64, storagePath string) error {
	f.markedID = id
	return nil
}
func (f *fakeAttachmentRepo) DeleteByMessage(ctx context.Context, messageID int64) error { return nil }
func (f *fakeAttachmentRepo) ListOrphans(ctx context.Context, limit int) ([]*domain.Attachment, error) {
	return nil, nil
}
func (f *fakeAttachmentRepo) Delete(ctx context.Context, id int64) error { return nil }

type fakeBlobStore struct {
	written map[string][]byte
}

func newFakeBlobStore() *fakeBlobStore { return &fakeBlobStore{written: make(map[string][]byte)} }

func (f *fakeBlobStore) Write(ctx context.Context, path string, data []byte) error {
	f.written[path] = data
	return nil
}
func (f *fakeBlobStore) Read(ctx context.Context, path string) ([]byte, error) {
	d, ok := f.written[path]
	if !ok {
		return nil, errors.New("not found")
	}
	return d, nil
}
func (f *fakeBlobStore) Delete(ctx context.Context, path string) error { delete(f.written, path); return nil }
func (f *fakeBlobStore) Exists(ctx context.Context, path string) (bool, error) {
	_, ok := f.written[path]
	return ok, nil
}

type fakeMailSession struct {
	fetchUIDRangeFn func(ctx context.Context, folder string, fromUID uint32, withBody bool) ([]out.FetchedMessage, error)
	fetchByUIDFn    func(ctx context.Context, folder string, uids []uint32, withBody bool) ([]out.FetchedMessage, error)
	moveFn          func(ctx context.Context, srcFolder, dstFolder string, uid uint32) (uint32, error)
	batchMoveFn     func(ctx context.Context, srcFolder, dstFolder string, uids []uint32) (map[uint32]uint32, error)
	storeFlagsFn    func(ctx context.Context, folder string, uid uint32, add, remove []string) error
	expungeFn       func(ctx context.Context, folder string) error
	closed          bool
}

func (s *fakeMailSession) ListFolders(ctx context.Context) ([]out.RemoteFolder, error) { return nil, nil }
func (s *fakeMailSession) Status(ctx context.Context, folder string) (*out.MailboxStatus, error) {
	return nil, nil
}
func (s *fakeMailSession) FetchUIDRange(ctx context.Context, folder string, fromUID uint32, withBody bool) ([]out.FetchedMessage, error) {
	if s.fetchUIDRangeFn != nil {
		return s.fetchUIDRangeFn(ctx, folder, fromUID, withBody)
	}
	return nil, nil
}
func (s *fakeMailSession) FetchByUID(ctx context.Context, folder string, uids []uint32, withBody bool) ([]out.FetchedMessage, error) {
	if s.fetchByUIDFn != nil {
		return s.fetchByUIDFn(ctx, folder, uids, withBody)
	}
	return nil, nil
}
func (s *fakeMailSession) Idle(ctx context.Context, folder string) error { return nil }
func (s *fakeMailSession) StoreFlags(ctx context.Context, folder string, uid uint32, add, remove []string) error {
	if s.storeFlagsFn != nil {
		return s.storeFlagsFn(ctx, folder, uid, add, remove)
	}
	return nil
}
func (s *fakeMailSession) Move(ctx context.Context, srcFolder, dstFolder string, uid uint32) (uint32, error) {
	if s.moveFn != nil {
		return s.moveFn(ctx, srcFolder, dstFolder, uid)
	}
	return 0, nil
}
func (s *fakeMailSession) BatchMove(ctx context.Context, srcFolder, dstFolder string, uids []uint32) (map[uint32]uint32, error) {
	if s.batchMoveFn != nil {
		return s.batchMoveFn(ctx, srcFolder, dstFolder, uids)
	}
	return nil, nil
}
func (s *fakeMailSession) Expunge(ctx context.Context, folder string) error {
	if s.expungeFn != nil {
		return s.expungeFn(ctx, folder)
	}
	return nil
}
func (s *fakeMailSession) Append(ctx context.Context, folder string, raw []byte, flags []string) (uint32, error) {
	return 0, nil
}
func (s *fakeMailSession) Close(ctx context.Context) error { s.closed = true; return nil }

type fakeMailPool struct {
	session    *fakeMailSession
	acquireErr error
	// acquireErrs, when set, is consumed one entry per Acquire call (nil =
	// success) so a test can script "first attempt fails, retry succeeds".
	acquireErrs   []error
	acquireCalls  int
	releasedEvict bool
}

func (p *fakeMailPool) Acquire(ctx context.Context, acct *domain.Account) (out.ImapSession, error) {
	p.acquireCalls++
	if len(p.acquireErrs) > 0 {
		err := p.acquireErrs[0]
		p.acquireErrs = p.acquireErrs[1:]
		if err != nil {
			return nil, err
		}
		return p.session, nil
	}
	if p.acquireErr != nil {
		return nil, p.acquireErr
	}
	return p.session, nil
}
func (p *fakeMailPool) Release(ctx context.Context, acct *domain.Account, session out.ImapSession, evict bool) {
	p.releasedEvict = evict
}

type fakeTokenProvider struct {
	token      string
	getErr     error
	forceErr   error
	getCalls   int
	forceCalls int
}

func (f *fakeTokenProvider) GetValidToken(ctx context.Context, acctID uuid.UUID) (string, error) {
	f.getCalls++
	if f.getErr != nil {
		return "", f.getErr
	}
	return f.token, nil
}

func (f *fakeTokenProvider) ForceRefresh(ctx context.Context, acctID uuid.UUID) (string, error) {
	f.forceCalls++
	if f.forceErr != nil {
		return "", f.forceErr
	}
	return f.token, nil
}

type fakeReauthNotifier struct {
	calls []string
}

func (f *fakeReauthNotifier) PublishReauthRequired(accountID, reason string) {
	f.calls = append(f.calls, accountID)
}
