package out

import (
	"context"
	"time"

	"github.com/aerioncore/mailcore/core/domain"
)

// JobRepository persists Background Job records.
type JobRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Job, error)
	List(ctx context.Context, status domain.JobStatus) ([]*domain.Job, error)
	Create(ctx context.Context, j *domain.Job) error
	SaveCheckpoint(ctx context.Context, id string, checkpoint []byte) error
	Complete(ctx context.Context, id string, result []byte) error
	Fail(ctx context.Context, id string, errMsg string) error
	Cancel(ctx context.Context, id string) error
	// ReapCompleted deletes terminal jobs older than window, relative to
	// CompletedAt.
	ReapCompleted(ctx context.Context, window time.Duration) (int, error)
}
