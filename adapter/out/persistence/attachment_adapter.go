package persistence

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/aerioncore/mailcore/core/domain"
	"github.com/aerioncore/mailcore/core/port/out"
)

// AttachmentAdapter implements out.AttachmentRepository against Postgres.
type AttachmentAdapter struct {
	db *sqlx.DB
}

func NewAttachmentAdapter(db *sqlx.DB) *AttachmentAdapter {
	return &AttachmentAdapter{db: db}
}

var _ out.AttachmentRepository = (*AttachmentAdapter)(nil)

type attachmentRow struct {
	ID            int64        `db:"id"`
	MessageID     int64        `db:"message_id"`
	Filename      string       `db:"filename"`
	Size          int64        `db:"size"`
	ContentType   string       `db:"content_type"`
	ContentID     string       `db:"content_id"`
	StoragePath   string       `db:"storage_path"`
	DownloadedAt  sql.NullTime `db:"downloaded_at"`
	CreatedAt     time.Time    `db:"created_at"`
}

func (r *attachmentRow) toEntity() *domain.Attachment {
	a := &domain.Attachment{
		ID: r.ID, MessageID: r.MessageID, Filename: r.Filename, Size: r.Size,
		ContentType: r.ContentType, ContentID: r.ContentID, StoragePath: r.StoragePath,
		CreatedAt: r.CreatedAt,
	}
	if r.DownloadedAt.Valid {
		a.DownloadedAt = &r.DownloadedAt.Time
	}
	return a
}

func (a *AttachmentAdapter) GetByID(ctx context.Context, id int64) (*domain.Attachment, error) {
	var row attachmentRow
	err := a.db.GetContext(ctx, &row, `SELECT * FROM attachment_metadata WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return row.toEntity(), nil
}

func (a *AttachmentAdapter) ListByMessage(ctx context.Context, messageID int64) ([]*domain.Attachment, error) {
	var rows []attachmentRow
	if err := a.db.SelectContext(ctx, &rows, `SELECT * FROM attachment_metadata WHERE message_id = $1 ORDER BY id`, messageID); err != nil {
		return nil, err
	}
	out_ := make([]*domain.Attachment, len(rows))
	for i := range rows {
		out_[i] = rows[i].toEntity()
	}
	return out_, nil
}

func (a *AttachmentAdapter) Create(ctx context.Context, att *domain.Attachment) error {
	row := a.db.QueryRowContext(ctx, `
		INSERT INTO attachment_metadata (message_id, filename, size, content_type, content_id, storage_path)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (message_id, filename) DO UPDATE SET size = EXCLUDED.size
		RETURNING id, created_at`,
		att.MessageID, att.Filename, att.Size, att.ContentType, att.ContentID, att.StoragePath)
	return row.Scan(&att.ID, &att.CreatedAt)
}

func (a *AttachmentAdapter) MarkDownloaded(ctx context.Context, id int64) error {
	_, err := a.db.ExecContext(ctx, `UPDATE attachment_metadata SET downloaded_at = now() WHERE id = $1`, id)
	return err
}

func (a *AttachmentAdapter) DeleteByMessage(ctx context.Context, messageID int64) error {
	_, err := a.db.ExecContext(ctx, `DELETE FROM attachment_metadata WHERE message_id = $1`, messageID)
	return err
}

// ListOrphans returns attachments whose message row no longer exists, used
// by the storage reaper to free blob-store space.
func (a *AttachmentAdapter) ListOrphans(ctx context.Context, limit int) ([]*domain.Attachment, error) {
	var rows []attachmentRow
	err := a.db.SelectContext(ctx, &rows, `
		SELECT am.* FROM attachment_metadata am
		LEFT JOIN messages m ON m.id = am.message_id
		WHERE m.id IS NULL
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	out_ := make([]*domain.Attachment, len(rows))
	for i := range rows {
		out_[i] = rows[i].toEntity()
	}
	return out_, nil
}

func (a *AttachmentAdapter) Delete(ctx context.Context, id int64) error {
	_, err := a.db.ExecContext(ctx, `DELETE FROM attachment_metadata WHERE id = $1`, id)
	return err
}

// FilesystemBlobStore implements out.BlobStore on local disk. Callers
// address blobs by a relative path (the mail service uses
// "<messageID>/<filename>"); the store just resolves it under baseDir.
type FilesystemBlobStore struct {
	baseDir string
}

func NewFilesystemBlobStore(baseDir string) *FilesystemBlobStore {
	return &FilesystemBlobStore{baseDir: baseDir}
}

var _ out.BlobStore = (*FilesystemBlobStore)(nil)

func (s *FilesystemBlobStore) Write(ctx context.Context, path string, data []byte) error {
	full := filepath.Join(s.baseDir, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	return os.WriteFile(full, data, 0o644)
}

func (s *FilesystemBlobStore) Read(ctx context.Context, path string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.baseDir, filepath.FromSlash(path)))
}

func (s *FilesystemBlobStore) Delete(ctx context.Context, path string) error {
	return os.Remove(filepath.Join(s.baseDir, filepath.FromSlash(path)))
}

func (s *FilesystemBlobStore) Exists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(filepath.Join(s.baseDir, filepath.FromSlash(path)))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
