package out

import (
	"context"

	"github.com/aerioncore/mailcore/core/domain"
)

// AttachmentRepository persists Attachment index rows. Binary bytes are
// managed separately by BlobStore.
type AttachmentRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Attachment, error)
	ListByMessage(ctx context.Context, messageID int64) ([]*domain.Attachment, error)
	Create(ctx context.Context, a *domain.Attachment) error
	MarkDownloaded(ctx context.Context, id int64, storagePath string) error
	DeleteByMessage(ctx context.Context, messageID int64) error
	// ListOrphans returns attachment rows whose owning message no longer
	// exists, for the periodic storage sweep.
	ListOrphans(ctx context.Context, limit int) ([]*domain.Attachment, error)
	Delete(ctx context.Context, id int64) error
}

// BlobStore manages attachment bytes on disk, addressed by StoragePath.
type BlobStore interface {
	Write(ctx context.Context, path string, data []byte) error
	Read(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
}
