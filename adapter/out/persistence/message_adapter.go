package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/aerioncore/mailcore/core/domain"
	"github.com/aerioncore/mailcore/core/port/out"
)

// MessageAdapter implements out.MessageRepository against Postgres,
// matching against pg_trgm for the cached-search fallback path.
type MessageAdapter struct {
	db *sqlx.DB
}

func NewMessageAdapter(db *sqlx.DB) *MessageAdapter {
	return &MessageAdapter{db: db}
}

var _ out.MessageRepository = (*MessageAdapter)(nil)

type messageRow struct {
	ID             int64          `db:"id"`
	FolderID       int64          `db:"folder_id"`
	UID            int64          `db:"uid"`
	MessageID      string         `db:"message_id"`
	InReplyTo      string         `db:"in_reply_to"`
	References     string         `db:"references"`
	Subject        string         `db:"subject"`
	FromAddress    string         `db:"from_address"`
	FromName       string         `db:"from_name"`
	To             pq.StringArray `db:"to_list"`
	CC             pq.StringArray `db:"cc_list"`
	Date           sql.NullTime   `db:"msg_date"`
	InternalDate   sql.NullTime   `db:"internal_date"`
	Size           int64          `db:"size"`
	Flags          pq.StringArray `db:"flags"`
	Headers        string         `db:"headers"`
	BodyText       string         `db:"body_text"`
	BodyHTML       string         `db:"body_html"`
	HasAttachments bool           `db:"has_attachments"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func (r *messageRow) toEntity() *domain.Message {
	m := &domain.Message{
		ID:             r.ID,
		FolderID:       r.FolderID,
		UID:            uint32(r.UID),
		MessageID:      r.MessageID,
		InReplyTo:      r.InReplyTo,
		References:     r.References,
		Subject:        r.Subject,
		FromAddress:    r.FromAddress,
		FromName:       r.FromName,
		To:             []string(r.To),
		CC:             []string(r.CC),
		Size:           r.Size,
		Flags:          []string(r.Flags),
		Headers:        r.Headers,
		BodyText:       r.BodyText,
		BodyHTML:       r.BodyHTML,
		HasAttachments: r.HasAttachments,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.Date.Valid {
		m.Date = r.Date.Time
	}
	if r.InternalDate.Valid {
		m.InternalDate = r.InternalDate.Time
	}
	return m
}

const messageColumns = `id, folder_id, uid, message_id, in_reply_to, "references", subject, from_address,
	from_name, to_list, cc_list, msg_date, internal_date, size, flags, headers, body_text, body_html,
	has_attachments, created_at, updated_at`

func (a *MessageAdapter) GetByID(ctx context.Context, id int64) (*domain.Message, error) {
	var row messageRow
	err := a.db.GetContext(ctx, &row, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return row.toEntity(), nil
}

func (a *MessageAdapter) GetByUID(ctx context.Context, folderID int64, uid uint32) (*domain.Message, error) {
	var row messageRow
	err := a.db.GetContext(ctx, &row, `SELECT `+messageColumns+` FROM messages WHERE folder_id = $1 AND uid = $2`, folderID, uid)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return row.toEntity(), nil
}

// GetByIndex returns the message at zero-based position index within
// folderID, ordered by uid ascending — the "nth message" access pattern
// tools expose for conversational references ("the third email").
func (a *MessageAdapter) GetByIndex(ctx context.Context, folderID int64, index int) (*domain.Message, error) {
	var row messageRow
	err := a.db.GetContext(ctx, &row,
		`SELECT `+messageColumns+` FROM messages WHERE folder_id = $1 ORDER BY uid OFFSET $2 LIMIT 1`,
		folderID, index)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return row.toEntity(), nil
}

func (a *MessageAdapter) MaxUID(ctx context.Context, folderID int64) (uint32, error) {
	var max sql.NullInt64
	if err := a.db.GetContext(ctx, &max, `SELECT MAX(uid) FROM messages WHERE folder_id = $1`, folderID); err != nil {
		return 0, err
	}
	if !max.Valid {
		return 0, nil
	}
	return uint32(max.Int64), nil
}

func (a *MessageAdapter) CountInFolder(ctx context.Context, folderID int64) (int, error) {
	var count int
	if err := a.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM messages WHERE folder_id = $1`, folderID); err != nil {
		return 0, err
	}
	return count, nil
}

func (a *MessageAdapter) List(ctx context.Context, filter *domain.MessageFilter) ([]*domain.Message, int, error) {
	where := `WHERE ($1::bigint IS NULL OR folder_id = $1)
		AND ($2::boolean IS NULL OR has_attachments = $2)
		AND ($3::boolean IS NULL OR ($3 AND NOT ('\Seen' = ANY(flags))) OR (NOT $3 AND '\Seen' = ANY(flags)))`

	var total int
	if err := a.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM messages `+where, filter.FolderID, filter.HasAttachment, filter.Unread); err != nil {
		return nil, 0, err
	}

	var rows []messageRow
	query := `SELECT ` + messageColumns + ` FROM messages ` + where + ` ORDER BY msg_date DESC LIMIT $4 OFFSET $5`
	if err := a.db.SelectContext(ctx, &rows, query, filter.FolderID, filter.HasAttachment, filter.Unread, filter.Limit, filter.Offset); err != nil {
		return nil, 0, err
	}
	msgs := make([]*domain.Message, len(rows))
	for i := range rows {
		msgs[i] = rows[i].toEntity()
	}
	return msgs, total, nil
}

// Search scans cached messages with pg_trgm similarity on subject plus a
// substring match on from_address/body_text, for the offline-first search
// path that does not require a live IMAP SEARCH round-trip.
func (a *MessageAdapter) Search(ctx context.Context, folderID int64, query string, limit, offset int) ([]*domain.Message, error) {
	var rows []messageRow
	sqlQuery := `
		SELECT ` + messageColumns + ` FROM messages
		WHERE ($1::bigint IS NULL OR folder_id = $1)
		AND (subject ILIKE '%' || $2 || '%' OR from_address ILIKE '%' || $2 || '%' OR body_text ILIKE '%' || $2 || '%')
		ORDER BY similarity(subject, $2) DESC, msg_date DESC
		LIMIT $3 OFFSET $4`
	var folderArg *int64
	if folderID != 0 {
		folderArg = &folderID
	}
	if err := a.db.SelectContext(ctx, &rows, sqlQuery, folderArg, query, limit, offset); err != nil {
		return nil, err
	}
	msgs := make([]*domain.Message, len(rows))
	for i := range rows {
		msgs[i] = rows[i].toEntity()
	}
	return msgs, nil
}

func (a *MessageAdapter) Upsert(ctx context.Context, m *domain.Message) error {
	row := a.db.QueryRowContext(ctx, `
		INSERT INTO messages (
			folder_id, uid, message_id, in_reply_to, "references", subject, from_address, from_name,
			to_list, cc_list, msg_date, internal_date, size, flags, headers, body_text, body_html, has_attachments
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		ON CONFLICT (folder_id, uid) DO UPDATE SET
			flags = EXCLUDED.flags, headers = EXCLUDED.headers, body_text = EXCLUDED.body_text,
			body_html = EXCLUDED.body_html, has_attachments = EXCLUDED.has_attachments, updated_at = now()
		RETURNING id, created_at, updated_at`,
		m.FolderID, m.UID, m.MessageID, m.InReplyTo, m.References, m.Subject, m.FromAddress, m.FromName,
		pq.StringArray(m.To), pq.StringArray(m.CC), m.Date, m.InternalDate, m.Size,
		pq.StringArray(domain.DedupeFlags(m.Flags)), m.Headers, m.BodyText, m.BodyHTML, m.HasAttachments,
	)
	return row.Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
}

// UpsertBatch upserts msgs inside a single transaction, used by the sync
// engine's per-batch flush to bound round-trips during a full re-ingest.
func (a *MessageAdapter) UpsertBatch(ctx context.Context, msgs []*domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, m := range msgs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messages (
				folder_id, uid, message_id, in_reply_to, "references", subject, from_address, from_name,
				to_list, cc_list, msg_date, internal_date, size, flags, headers, body_text, body_html, has_attachments
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
			ON CONFLICT (folder_id, uid) DO UPDATE SET
				flags = EXCLUDED.flags, headers = EXCLUDED.headers, body_text = EXCLUDED.body_text,
				body_html = EXCLUDED.body_html, has_attachments = EXCLUDED.has_attachments, updated_at = now()`,
			m.FolderID, m.UID, m.MessageID, m.InReplyTo, m.References, m.Subject, m.FromAddress, m.FromName,
			pq.StringArray(m.To), pq.StringArray(m.CC), m.Date, m.InternalDate, m.Size,
			pq.StringArray(domain.DedupeFlags(m.Flags)), m.Headers, m.BodyText, m.BodyHTML, m.HasAttachments,
		); err != nil {
			return fmt.Errorf("upsert batch member uid=%d: %w", m.UID, err)
		}
	}
	return tx.Commit()
}

func (a *MessageAdapter) UpdateFlags(ctx context.Context, id int64, flags []string) error {
	_, err := a.db.ExecContext(ctx, `UPDATE messages SET flags = $2, updated_at = now() WHERE id = $1`,
		id, pq.StringArray(domain.DedupeFlags(flags)))
	return err
}

func (a *MessageAdapter) Move(ctx context.Context, id int64, newFolderID int64, newUID uint32) error {
	_, err := a.db.ExecContext(ctx,
		`UPDATE messages SET folder_id = $2, uid = $3, updated_at = now() WHERE id = $1`,
		id, newFolderID, newUID)
	return err
}

func (a *MessageAdapter) DeleteByFolder(ctx context.Context, folderID int64) error {
	_, err := a.db.ExecContext(ctx, `DELETE FROM messages WHERE folder_id = $1`, folderID)
	return err
}

func (a *MessageAdapter) Delete(ctx context.Context, id int64) error {
	_, err := a.db.ExecContext(ctx, `DELETE FROM messages WHERE id = $1`, id)
	return err
}
