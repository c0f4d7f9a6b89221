// Package jobs implements core/port/in.JobService: durable, resumable
// background operations with periodic checkpointing.
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aerioncore/mailcore/core/domain"
	in "github.com/aerioncore/mailcore/core/port/in"
	"github.com/aerioncore/mailcore/core/port/out"
)

// reapWindow is how long a terminal job's row is kept before ReapCompleted
// deletes it.
const reapWindow = 72 * time.Hour

// Service implements in.JobService, running each submitted job on its own
// goroutine under a cancellable context so Cancel can interrupt it.
type Service struct {
	repo out.JobRepository
	log  zerolog.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// New builds a job Service.
func New(repo out.JobRepository, log zerolog.Logger) *Service {
	return &Service{repo: repo, log: log.With().Str("component", "job_service").Logger(), cancels: make(map[string]context.CancelFunc)}
}

var _ in.JobService = (*Service)(nil)

func (s *Service) Submit(ctx context.Context, instruction string, handler in.JobHandler) (*domain.Job, error) {
	job := &domain.Job{
		ID:          uuid.New().String(),
		Instruction: instruction,
		Status:      domain.JobRunning,
		MaxRetries:  3,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancels[job.ID] = cancel
	s.mu.Unlock()

	go s.run(runCtx, job, handler)

	return job, nil
}

func (s *Service) run(ctx context.Context, job *domain.Job, handler in.JobHandler) {
	defer func() {
		s.mu.Lock()
		delete(s.cancels, job.ID)
		s.mu.Unlock()
	}()

	checkpoint := func(state []byte) error {
		return s.repo.SaveCheckpoint(ctx, job.ID, state)
	}

	result, err := handler(ctx, job, checkpoint)
	if err != nil {
		if ctx.Err() != nil {
			s.log.Info().Str("job_id", job.ID).Msg("job cancelled")
			return
		}
		s.log.Error().Err(err).Str("job_id", job.ID).Msg("job failed")
		if failErr := s.repo.Fail(ctx, job.ID, err.Error()); failErr != nil {
			s.log.Error().Err(failErr).Str("job_id", job.ID).Msg("failed to record job failure")
		}
		return
	}

	if err := s.repo.Complete(ctx, job.ID, result); err != nil {
		s.log.Error().Err(err).Str("job_id", job.ID).Msg("failed to record job completion")
	}
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Job, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, status domain.JobStatus) ([]*domain.Job, error) {
	return s.repo.List(ctx, status)
}

func (s *Service) Cancel(ctx context.Context, id string) error {
	s.mu.Lock()
	cancel, ok := s.cancels[id]
	s.mu.Unlock()
	if ok {
		cancel()
	}
	return s.repo.Cancel(ctx, id)
}

// ReapLoop periodically deletes terminal job rows older than reapWindow,
// until ctx is cancelled.
func (s *Service) ReapLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.repo.ReapCompleted(ctx, reapWindow)
			if err != nil {
				s.log.Warn().Err(err).Msg("job reap failed")
				continue
			}
			if n > 0 {
				s.log.Info().Int("reaped", n).Msg("reaped completed jobs")
			}
		}
	}
}
