package in

import (
	"context"

	"github.com/aerioncore/mailcore/core/domain"
)

// JobHandler performs the work of a long-running job. It should
// periodically call checkpoint with opaque progress state so a restart can
// resume via Job.ResumeCheckpoint.
type JobHandler func(ctx context.Context, job *domain.Job, checkpoint func(state []byte) error) (result []byte, err error)

// JobService wraps long-running operations in a durable, resumable record.
type JobService interface {
	Submit(ctx context.Context, instruction string, handler JobHandler) (*domain.Job, error)
	Get(ctx context.Context, id string) (*domain.Job, error)
	List(ctx context.Context, status domain.JobStatus) ([]*domain.Job, error)
	Cancel(ctx context.Context, id string) error
}
