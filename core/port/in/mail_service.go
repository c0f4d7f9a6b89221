package in

import (
	"context"

	"github.com/google/uuid"

	"github.com/aerioncore/mailcore/core/domain"
)

// FolderService exposes folder discovery and stats over an Account.
type FolderService interface {
	ListFolders(ctx context.Context, accountID uuid.UUID) ([]*domain.Folder, error)
	// ListFoldersHierarchical groups flat folder rows into a tree using
	// each folder's Delimiter.
	ListFoldersHierarchical(ctx context.Context, accountID uuid.UUID) ([]*FolderNode, error)
	GetFolderStats(ctx context.Context, folderID int64) (*domain.SyncState, error)
}

// FolderNode is one level of the hierarchical folder tree.
type FolderNode struct {
	Folder   *domain.Folder `json:"folder"`
	Children []*FolderNode  `json:"children,omitempty"`
}

// MailService is the use-case surface over cached messages and the
// mutating IMAP operations (move, delete, expunge).
type MailService interface {
	GetByUID(ctx context.Context, folderID int64, uid uint32) (*domain.Message, error)
	GetByIndex(ctx context.Context, folderID int64, index int) (*domain.Message, error)
	CountInFolder(ctx context.Context, folderID int64) (int, error)
	ListCached(ctx context.Context, folderID int64, limit, offset int) ([]*domain.Message, error)
	SearchCached(ctx context.Context, query string, limit, offset int) ([]*domain.Message, error)
	// SearchRemote issues a live IMAP SEARCH against folder.
	SearchRemote(ctx context.Context, accountID uuid.UUID, folder, query string) ([]*domain.Message, error)
	// FetchWithMIME fetches full bodies for the given uids, caching the
	// result, and returns the hydrated messages.
	FetchWithMIME(ctx context.Context, accountID uuid.UUID, folder string, uids []uint32) ([]*domain.Message, error)

	AtomicMove(ctx context.Context, accountID uuid.UUID, srcFolder, dstFolder string, uid uint32) error
	AtomicBatchMove(ctx context.Context, accountID uuid.UUID, srcFolder, dstFolder string, uids []uint32) error
	MarkAsDeleted(ctx context.Context, accountID uuid.UUID, folder string, uids []uint32) error
	DeleteMessages(ctx context.Context, accountID uuid.UUID, folder string, uids []uint32) error
	UndeleteMessages(ctx context.Context, accountID uuid.UUID, folder string, uids []uint32) error
	Expunge(ctx context.Context, accountID uuid.UUID, folder string) error
}
