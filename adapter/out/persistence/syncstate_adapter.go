package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/aerioncore/mailcore/core/domain"
	"github.com/aerioncore/mailcore/core/port/out"
)

// SyncStateAdapter implements out.SyncStateRepository against Postgres.
type SyncStateAdapter struct {
	db *sqlx.DB
}

func NewSyncStateAdapter(db *sqlx.DB) *SyncStateAdapter {
	return &SyncStateAdapter{db: db}
}

var _ out.SyncStateRepository = (*SyncStateAdapter)(nil)

type syncStateRow struct {
	FolderID            int64        `db:"folder_id"`
	LastUIDSynced       int64        `db:"last_uid_synced"`
	LastFullSync        sql.NullTime `db:"last_full_sync"`
	LastIncrementalSync sql.NullTime `db:"last_incremental_sync"`
	Status              string       `db:"sync_status"`
	ErrorMessage        string       `db:"error_message"`
	EmailsSynced        int          `db:"emails_synced"`
	EmailsTotal         int          `db:"emails_total"`
	CreatedAt           time.Time    `db:"created_at"`
	UpdatedAt           time.Time    `db:"updated_at"`
}

func (r *syncStateRow) toEntity() *domain.SyncState {
	s := &domain.SyncState{
		FolderID:      r.FolderID,
		LastUIDSynced: uint32(r.LastUIDSynced),
		Status:        domain.SyncStatus(r.Status),
		ErrorMessage:  r.ErrorMessage,
		EmailsSynced:  r.EmailsSynced,
		Total:         r.EmailsTotal,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.LastFullSync.Valid {
		s.LastFullSync = &r.LastFullSync.Time
	}
	if r.LastIncrementalSync.Valid {
		s.LastIncrementalSync = &r.LastIncrementalSync.Time
	}
	return s
}

func (a *SyncStateAdapter) GetByFolder(ctx context.Context, folderID int64) (*domain.SyncState, error) {
	var row syncStateRow
	err := a.db.GetContext(ctx, &row, `SELECT * FROM sync_state WHERE folder_id = $1`, folderID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return row.toEntity(), nil
}

func (a *SyncStateAdapter) Upsert(ctx context.Context, s *domain.SyncState) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO sync_state (folder_id, last_uid_synced, sync_status, error_message, emails_synced, emails_total)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (folder_id) DO UPDATE SET
			last_uid_synced = EXCLUDED.last_uid_synced, sync_status = EXCLUDED.sync_status,
			error_message = EXCLUDED.error_message, emails_synced = EXCLUDED.emails_synced,
			emails_total = EXCLUDED.emails_total, updated_at = now()`,
		s.FolderID, s.LastUIDSynced, string(s.Status), s.ErrorMessage, s.EmailsSynced, s.Total)
	return err
}

func (a *SyncStateAdapter) SetStatus(ctx context.Context, folderID int64, status domain.SyncStatus, errMsg string) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO sync_state (folder_id, sync_status, error_message) VALUES ($1,$2,$3)
		ON CONFLICT (folder_id) DO UPDATE SET sync_status = $2, error_message = $3, updated_at = now()`,
		folderID, string(status), errMsg)
	return err
}

func (a *SyncStateAdapter) SetCheckpoint(ctx context.Context, folderID int64, lastUID uint32, synced, total int) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO sync_state (folder_id, last_uid_synced, emails_synced, emails_total) VALUES ($1,$2,$3,$4)
		ON CONFLICT (folder_id) DO UPDATE SET
			last_uid_synced = $2, emails_synced = $3, emails_total = $4, updated_at = now()`,
		folderID, lastUID, synced, total)
	return err
}

func (a *SyncStateAdapter) MarkFullSync(ctx context.Context, folderID int64) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO sync_state (folder_id, last_full_sync, sync_status) VALUES ($1, now(), 'idle')
		ON CONFLICT (folder_id) DO UPDATE SET last_full_sync = now(), sync_status = 'idle', updated_at = now()`,
		folderID)
	return err
}

func (a *SyncStateAdapter) MarkIncrementalSync(ctx context.Context, folderID int64) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO sync_state (folder_id, last_incremental_sync, sync_status) VALUES ($1, now(), 'idle')
		ON CONFLICT (folder_id) DO UPDATE SET last_incremental_sync = now(), sync_status = 'idle', updated_at = now()`,
		folderID)
	return err
}
