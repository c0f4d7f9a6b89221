package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/aerioncore/mailcore/core/domain"
	"github.com/aerioncore/mailcore/core/port/out"
)

// JobAdapter implements out.JobRepository against Postgres.
type JobAdapter struct {
	db *sqlx.DB
}

func NewJobAdapter(db *sqlx.DB) *JobAdapter {
	return &JobAdapter{db: db}
}

var _ out.JobRepository = (*JobAdapter)(nil)

type jobRow struct {
	ID               string       `db:"id"`
	Instruction      string       `db:"instruction"`
	Status           string       `db:"status"`
	ResumeCheckpoint []byte       `db:"resume_checkpoint"`
	RetryCount       int          `db:"retry_count"`
	MaxRetries       int          `db:"max_retries"`
	Result           []byte       `db:"result"`
	Error            string       `db:"error"`
	CreatedAt        time.Time    `db:"created_at"`
	UpdatedAt        time.Time    `db:"updated_at"`
	CompletedAt      sql.NullTime `db:"completed_at"`
}

func (r *jobRow) toEntity() *domain.Job {
	j := &domain.Job{
		ID: r.ID, Instruction: r.Instruction, Status: domain.JobStatus(r.Status),
		ResumeCheckpoint: r.ResumeCheckpoint, RetryCount: r.RetryCount, MaxRetries: r.MaxRetries,
		Result: r.Result, Error: r.Error, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
	if r.CompletedAt.Valid {
		j.CompletedAt = &r.CompletedAt.Time
	}
	return j
}

func (a *JobAdapter) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	var row jobRow
	err := a.db.GetContext(ctx, &row, `SELECT * FROM jobs WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return row.toEntity(), nil
}

func (a *JobAdapter) List(ctx context.Context, status domain.JobStatus) ([]*domain.Job, error) {
	var rows []jobRow
	var err error
	if status == "" {
		err = a.db.SelectContext(ctx, &rows, `SELECT * FROM jobs ORDER BY created_at DESC`)
	} else {
		err = a.db.SelectContext(ctx, &rows, `SELECT * FROM jobs WHERE status = $1 ORDER BY created_at DESC`, string(status))
	}
	if err != nil {
		return nil, err
	}
	jobs := make([]*domain.Job, len(rows))
	for i := range rows {
		jobs[i] = rows[i].toEntity()
	}
	return jobs, nil
}

func (a *JobAdapter) Create(ctx context.Context, j *domain.Job) error {
	row := a.db.QueryRowContext(ctx, `
		INSERT INTO jobs (id, instruction, status, max_retries) VALUES ($1,$2,$3,$4)
		RETURNING created_at, updated_at`,
		j.ID, j.Instruction, string(j.Status), j.MaxRetries)
	return row.Scan(&j.CreatedAt, &j.UpdatedAt)
}

func (a *JobAdapter) SaveCheckpoint(ctx context.Context, id string, checkpoint []byte) error {
	_, err := a.db.ExecContext(ctx, `UPDATE jobs SET resume_checkpoint = $2, updated_at = now() WHERE id = $1`, id, checkpoint)
	return err
}

func (a *JobAdapter) Complete(ctx context.Context, id string, result []byte) error {
	_, err := a.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'completed', result = $2, completed_at = now(), updated_at = now() WHERE id = $1`,
		id, result)
	return err
}

func (a *JobAdapter) Fail(ctx context.Context, id string, errMsg string) error {
	_, err := a.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'failed', error = $2, completed_at = now(), updated_at = now() WHERE id = $1`,
		id, errMsg)
	return err
}

func (a *JobAdapter) Cancel(ctx context.Context, id string) error {
	_, err := a.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'cancelled', completed_at = now(), updated_at = now() WHERE id = $1`, id)
	return err
}

func (a *JobAdapter) ReapCompleted(ctx context.Context, window time.Duration) (int, error) {
	res, err := a.db.ExecContext(ctx, `
		DELETE FROM jobs WHERE status IN ('completed','failed','cancelled') AND completed_at < $1`,
		time.Now().Add(-window))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
