package out

import (
	"context"

	"github.com/aerioncore/mailcore/core/domain"
)

// MessageRepository persists cached Message rows, keyed uniquely by
// (folder_id, uid).
type MessageRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Message, error)
	GetByUID(ctx context.Context, folderID int64, uid uint32) (*domain.Message, error)
	GetByIndex(ctx context.Context, folderID int64, index int) (*domain.Message, error)
	// MaxUID returns the highest UID cached for folderID, 0 if empty.
	MaxUID(ctx context.Context, folderID int64) (uint32, error)
	CountInFolder(ctx context.Context, folderID int64) (int, error)
	List(ctx context.Context, filter *domain.MessageFilter) ([]*domain.Message, int, error)
	// Search performs a cached full-text-ish scan over subject/from/body.
	Search(ctx context.Context, folderID int64, query string, limit, offset int) ([]*domain.Message, error)
	Upsert(ctx context.Context, m *domain.Message) error
	UpsertBatch(ctx context.Context, msgs []*domain.Message) error
	UpdateFlags(ctx context.Context, id int64, flags []string) error
	// Move reassigns a message to a new folder, used after a successful
	// IMAP MOVE/COPY+STORE+EXPUNGE sequence.
	Move(ctx context.Context, id int64, newFolderID int64, newUID uint32) error
	DeleteByFolder(ctx context.Context, folderID int64) error
	Delete(ctx context.Context, id int64) error
}
