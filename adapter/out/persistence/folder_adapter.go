package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/aerioncore/mailcore/core/domain"
	"github.com/aerioncore/mailcore/core/port/out"
)

// FolderAdapter implements out.FolderRepository against Postgres.
type FolderAdapter struct {
	db *sqlx.DB
}

func NewFolderAdapter(db *sqlx.DB) *FolderAdapter {
	return &FolderAdapter{db: db}
}

var _ out.FolderRepository = (*FolderAdapter)(nil)

type folderRow struct {
	ID             int64          `db:"id"`
	AccountID      uuid.UUID      `db:"account_id"`
	Name           string         `db:"name"`
	Delimiter      string         `db:"delimiter"`
	Attrs          pq.StringArray `db:"attributes"`
	UIDValidity    int64          `db:"uidvalidity"`
	UIDNext        int64          `db:"uidnext"`
	TotalMessages  int            `db:"total_messages"`
	UnseenMessages int            `db:"unseen_messages"`
	LastSync       sql.NullTime   `db:"last_sync"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func (r *folderRow) toEntity() *domain.Folder {
	f := &domain.Folder{
		ID:             r.ID,
		AccountID:      r.AccountID,
		Name:           r.Name,
		Delimiter:      r.Delimiter,
		Attrs:          []string(r.Attrs),
		UIDValidity:    uint32(r.UIDValidity),
		UIDNext:        uint32(r.UIDNext),
		TotalMessages:  r.TotalMessages,
		UnseenMessages: r.UnseenMessages,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.LastSync.Valid {
		f.LastSync = r.LastSync.Time
	}
	return f
}

func (a *FolderAdapter) GetByID(ctx context.Context, id int64) (*domain.Folder, error) {
	var row folderRow
	err := a.db.GetContext(ctx, &row, `SELECT * FROM folders WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return row.toEntity(), nil
}

func (a *FolderAdapter) GetByName(ctx context.Context, accountID uuid.UUID, name string) (*domain.Folder, error) {
	var row folderRow
	err := a.db.GetContext(ctx, &row, `SELECT * FROM folders WHERE account_id = $1 AND name = $2`, accountID, name)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return row.toEntity(), nil
}

func (a *FolderAdapter) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*domain.Folder, error) {
	var rows []folderRow
	if err := a.db.SelectContext(ctx, &rows, `SELECT * FROM folders WHERE account_id = $1 ORDER BY name`, accountID); err != nil {
		return nil, err
	}
	folders := make([]*domain.Folder, len(rows))
	for i := range rows {
		folders[i] = rows[i].toEntity()
	}
	return folders, nil
}

func (a *FolderAdapter) Create(ctx context.Context, f *domain.Folder) error {
	row := a.db.QueryRowContext(ctx, `
		INSERT INTO folders (account_id, name, delimiter, attributes, uidvalidity, uidnext)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, created_at, updated_at`,
		f.AccountID, f.Name, f.Delimiter, pq.StringArray(f.Attrs), f.UIDValidity, f.UIDNext)
	return row.Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt)
}

func (a *FolderAdapter) Update(ctx context.Context, f *domain.Folder) error {
	_, err := a.db.ExecContext(ctx, `
		UPDATE folders SET delimiter=$2, attributes=$3, uidvalidity=$4, uidnext=$5, updated_at=now()
		WHERE id=$1`,
		f.ID, f.Delimiter, pq.StringArray(f.Attrs), f.UIDValidity, f.UIDNext)
	return err
}

func (a *FolderAdapter) UpdateCounts(ctx context.Context, id int64, total, unseen int) error {
	_, err := a.db.ExecContext(ctx,
		`UPDATE folders SET total_messages=$2, unseen_messages=$3, last_sync=now(), updated_at=now() WHERE id=$1`,
		id, total, unseen)
	return err
}

func (a *FolderAdapter) Delete(ctx context.Context, id int64) error {
	_, err := a.db.ExecContext(ctx, `DELETE FROM folders WHERE id = $1`, id)
	return err
}

// PruneAbsent deletes folders for accountID not present in keepNames,
// matching LIST output against the locally cached folder set.
func (a *FolderAdapter) PruneAbsent(ctx context.Context, accountID uuid.UUID, keepNames []string) error {
	_, err := a.db.ExecContext(ctx,
		`DELETE FROM folders WHERE account_id = $1 AND NOT (name = ANY($2))`,
		accountID, pq.StringArray(keepNames))
	return err
}
