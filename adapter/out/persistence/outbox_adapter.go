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

// OutboxAdapter implements out.OutboxRepository against Postgres.
type OutboxAdapter struct {
	db *sqlx.DB
}

func NewOutboxAdapter(db *sqlx.DB) *OutboxAdapter {
	return &OutboxAdapter{db: db}
}

var _ out.OutboxRepository = (*OutboxAdapter)(nil)

type outboxRow struct {
	ID              int64          `db:"id"`
	AccountID       uuid.UUID      `db:"account_id"`
	MessageID       string         `db:"message_id"`
	To              pq.StringArray `db:"to_list"`
	CC              pq.StringArray `db:"cc_list"`
	BCC             pq.StringArray `db:"bcc_list"`
	Subject         string         `db:"subject"`
	BodyText        string         `db:"body_text"`
	BodyHTML        string         `db:"body_html"`
	RawRFC5322      []byte         `db:"raw_rfc5322"`
	SMTPSent        bool           `db:"smtp_sent"`
	OutboxSaved     bool           `db:"outbox_saved"`
	SentFolderSaved bool           `db:"sent_folder_saved"`
	RetryCount      int            `db:"retry_count"`
	MaxRetries      int            `db:"max_retries"`
	LastError       string         `db:"last_error"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
	SentAt          sql.NullTime   `db:"sent_at"`
}

func (r *outboxRow) toEntity() *domain.OutboxEntry {
	e := &domain.OutboxEntry{
		ID: r.ID, AccountID: r.AccountID, MessageID: r.MessageID,
		To: []string(r.To), CC: []string(r.CC), BCC: []string(r.BCC),
		Subject: r.Subject, BodyText: r.BodyText, BodyHTML: r.BodyHTML, RawRFC5322: r.RawRFC5322,
		SMTPSent: r.SMTPSent, OutboxSaved: r.OutboxSaved, SentFolderSaved: r.SentFolderSaved,
		RetryCount: r.RetryCount, MaxRetries: r.MaxRetries, LastError: r.LastError,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
	if r.SentAt.Valid {
		e.SentAt = &r.SentAt.Time
	}
	return e
}

const outboxColumns = `id, account_id, message_id, to_list, cc_list, bcc_list, subject, body_text, body_html,
	raw_rfc5322, smtp_sent, outbox_saved, sent_folder_saved, retry_count, max_retries, last_error,
	created_at, updated_at, sent_at`

func (a *OutboxAdapter) GetByID(ctx context.Context, id int64) (*domain.OutboxEntry, error) {
	var row outboxRow
	err := a.db.GetContext(ctx, &row, `SELECT `+outboxColumns+` FROM outbox_entries WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return row.toEntity(), nil
}

func (a *OutboxAdapter) ListPending(ctx context.Context, limit int) ([]*domain.OutboxEntry, error) {
	var rows []outboxRow
	err := a.db.SelectContext(ctx, &rows,
		`SELECT `+outboxColumns+` FROM outbox_entries WHERE NOT (smtp_sent AND sent_folder_saved) ORDER BY created_at LIMIT $1`,
		limit)
	if err != nil {
		return nil, err
	}
	out_ := make([]*domain.OutboxEntry, len(rows))
	for i := range rows {
		out_[i] = rows[i].toEntity()
	}
	return out_, nil
}

func (a *OutboxAdapter) Create(ctx context.Context, e *domain.OutboxEntry) error {
	row := a.db.QueryRowContext(ctx, `
		INSERT INTO outbox_entries (account_id, message_id, to_list, cc_list, bcc_list, subject, body_text, body_html, raw_rfc5322, max_retries)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING id, created_at, updated_at`,
		e.AccountID, e.MessageID, pq.StringArray(e.To), pq.StringArray(e.CC), pq.StringArray(e.BCC),
		e.Subject, e.BodyText, e.BodyHTML, e.RawRFC5322, e.MaxRetries)
	return row.Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

func (a *OutboxAdapter) Update(ctx context.Context, e *domain.OutboxEntry) error {
	_, err := a.db.ExecContext(ctx, `
		UPDATE outbox_entries SET smtp_sent=$2, outbox_saved=$3, sent_folder_saved=$4,
			retry_count=$5, last_error=$6, updated_at=now() WHERE id=$1`,
		e.ID, e.SMTPSent, e.OutboxSaved, e.SentFolderSaved, e.RetryCount, e.LastError)
	return err
}

func (a *OutboxAdapter) MarkSMTPSent(ctx context.Context, id int64) error {
	_, err := a.db.ExecContext(ctx, `UPDATE outbox_entries SET smtp_sent = true, updated_at = now() WHERE id = $1`, id)
	return err
}

func (a *OutboxAdapter) MarkSentFolderSaved(ctx context.Context, id int64) error {
	_, err := a.db.ExecContext(ctx,
		`UPDATE outbox_entries SET sent_folder_saved = true, sent_at = now(), updated_at = now() WHERE id = $1`, id)
	return err
}

func (a *OutboxAdapter) RecordFailure(ctx context.Context, id int64, errMsg string) error {
	_, err := a.db.ExecContext(ctx, `
		UPDATE outbox_entries SET retry_count = retry_count + 1, last_error = $2, updated_at = now() WHERE id = $1`,
		id, errMsg)
	return err
}

func (a *OutboxAdapter) ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*domain.OutboxEntry, error) {
	var rows []outboxRow
	err := a.db.SelectContext(ctx, &rows,
		`SELECT `+outboxColumns+` FROM outbox_entries WHERE account_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	out_ := make([]*domain.OutboxEntry, len(rows))
	for i := range rows {
		out_[i] = rows[i].toEntity()
	}
	return out_, nil
}
