package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/aerioncore/mailcore/core/domain"
	"github.com/aerioncore/mailcore/core/port/out"
)

// AccountAdapter implements out.AccountRepository against Postgres,
// decrypting credential columns on the way out and encrypting them on the
// way in via the shared AEAD cipher.
type AccountAdapter struct {
	db     *sqlx.DB
	cipher out.Cipher
}

// NewAccountAdapter builds an AccountAdapter. cipher decrypts/encrypts the
// *_enc columns; bootstrap wires the process-wide crypto.Encryptor here.
func NewAccountAdapter(db *sqlx.DB, cipher out.Cipher) *AccountAdapter {
	return &AccountAdapter{db: db, cipher: cipher}
}

var _ out.AccountRepository = (*AccountAdapter)(nil)

type accountRow struct {
	ID          uuid.UUID `db:"id"`
	EmailAddr   string    `db:"email_address"`
	DisplayName string    `db:"display_name"`

	IMAPHost   string `db:"imap_host"`
	IMAPPort   int    `db:"imap_port"`
	IMAPUser   string `db:"imap_user"`
	IMAPPassEnc string `db:"imap_pass_enc"`
	IMAPUseTLS bool   `db:"imap_use_tls"`

	SMTPHost        string `db:"smtp_host"`
	SMTPPort        int    `db:"smtp_port"`
	SMTPUser        string `db:"smtp_user"`
	SMTPPassEnc     string `db:"smtp_pass_enc"`
	SMTPUseTLS      bool   `db:"smtp_use_tls"`
	SMTPUseStartTLS bool   `db:"smtp_use_starttls"`

	OAuthProvider        string `db:"oauth_provider"`
	OAuthAccessTokenEnc  string `db:"oauth_access_token_enc"`
	OAuthRefreshTokenEnc string `db:"oauth_refresh_token_enc"`
	OAuthTokenExpiry     sql.NullTime `db:"oauth_token_expiry"`

	IsActive      bool         `db:"is_active"`
	IsDefault     bool         `db:"is_default"`
	LastConnected sql.NullTime `db:"last_connected"`
	LastError     string       `db:"last_error"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (a *AccountAdapter) toEntity(r *accountRow) (*domain.Account, error) {
	acct := &domain.Account{
		ID:              r.ID,
		EmailAddr:       r.EmailAddr,
		DisplayName:     r.DisplayName,
		IMAPHost:        r.IMAPHost,
		IMAPPort:        r.IMAPPort,
		IMAPUser:        r.IMAPUser,
		IMAPUseTLS:      r.IMAPUseTLS,
		SMTPHost:        r.SMTPHost,
		SMTPPort:        r.SMTPPort,
		SMTPUser:        r.SMTPUser,
		SMTPUseTLS:      r.SMTPUseTLS,
		SMTPUseStartTLS: r.SMTPUseStartTLS,
		OAuthProvider:   domain.OAuthProviderKind(r.OAuthProvider),
		IsActive:        r.IsActive,
		IsDefault:       r.IsDefault,
		LastError:       r.LastError,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,

		EncryptedIMAPPass:     r.IMAPPassEnc,
		EncryptedSMTPPass:     r.SMTPPassEnc,
		EncryptedOAuthAccess:  r.OAuthAccessTokenEnc,
		EncryptedOAuthRefresh: r.OAuthRefreshTokenEnc,
	}
	if r.LastConnected.Valid {
		acct.LastConnected = &r.LastConnected.Time
	}
	if r.OAuthTokenExpiry.Valid {
		acct.OAuthTokenExpiry = &r.OAuthTokenExpiry.Time
	}

	var err error
	if r.IMAPPassEnc != "" {
		if acct.IMAPPass, err = a.cipher.Decrypt(r.IMAPPassEnc); err != nil {
			return nil, fmt.Errorf("decrypt imap pass: %w", err)
		}
	}
	if r.SMTPPassEnc != "" {
		if acct.SMTPPass, err = a.cipher.Decrypt(r.SMTPPassEnc); err != nil {
			return nil, fmt.Errorf("decrypt smtp pass: %w", err)
		}
	}
	if r.OAuthAccessTokenEnc != "" {
		if acct.OAuthAccessToken, err = a.cipher.Decrypt(r.OAuthAccessTokenEnc); err != nil {
			return nil, fmt.Errorf("decrypt oauth access token: %w", err)
		}
	}
	if r.OAuthRefreshTokenEnc != "" {
		if acct.OAuthRefreshToken, err = a.cipher.Decrypt(r.OAuthRefreshTokenEnc); err != nil {
			return nil, fmt.Errorf("decrypt oauth refresh token: %w", err)
		}
	}
	return acct, nil
}

const accountColumns = `id, email_address, display_name, imap_host, imap_port, imap_user, imap_pass_enc,
	imap_use_tls, smtp_host, smtp_port, smtp_user, smtp_pass_enc, smtp_use_tls, smtp_use_starttls,
	oauth_provider, oauth_access_token_enc, oauth_refresh_token_enc, oauth_token_expiry,
	is_active, is_default, last_connected, last_error, created_at, updated_at`

func (a *AccountAdapter) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	var row accountRow
	err := a.db.GetContext(ctx, &row, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return a.toEntity(&row)
}

func (a *AccountAdapter) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	var row accountRow
	err := a.db.GetContext(ctx, &row, `SELECT `+accountColumns+` FROM accounts WHERE email_address = $1`, email)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return a.toEntity(&row)
}

func (a *AccountAdapter) GetDefault(ctx context.Context) (*domain.Account, error) {
	var row accountRow
	err := a.db.GetContext(ctx, &row, `SELECT `+accountColumns+` FROM accounts WHERE is_default LIMIT 1`)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return a.toEntity(&row)
}

func (a *AccountAdapter) List(ctx context.Context) ([]*domain.Account, error) {
	var rows []accountRow
	if err := a.db.SelectContext(ctx, &rows, `SELECT `+accountColumns+` FROM accounts ORDER BY created_at`); err != nil {
		return nil, err
	}
	accounts := make([]*domain.Account, 0, len(rows))
	for i := range rows {
		acct, err := a.toEntity(&rows[i])
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acct)
	}
	return accounts, nil
}

func (a *AccountAdapter) Create(ctx context.Context, acct *domain.Account) error {
	imapEnc, err := a.encryptIfSet(acct.IMAPPass)
	if err != nil {
		return err
	}
	smtpEnc, err := a.encryptIfSet(acct.SMTPPass)
	if err != nil {
		return err
	}
	accessEnc, err := a.encryptIfSet(acct.OAuthAccessToken)
	if err != nil {
		return err
	}
	refreshEnc, err := a.encryptIfSet(acct.OAuthRefreshToken)
	if err != nil {
		return err
	}

	row := a.db.QueryRowContext(ctx, `
		INSERT INTO accounts (
			email_address, display_name, imap_host, imap_port, imap_user, imap_pass_enc, imap_use_tls,
			smtp_host, smtp_port, smtp_user, smtp_pass_enc, smtp_use_tls, smtp_use_starttls,
			oauth_provider, oauth_access_token_enc, oauth_refresh_token_enc, oauth_token_expiry,
			is_active, is_default
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		RETURNING id, created_at, updated_at`,
		acct.EmailAddr, acct.DisplayName, acct.IMAPHost, acct.IMAPPort, acct.IMAPUser, imapEnc, acct.IMAPUseTLS,
		acct.SMTPHost, acct.SMTPPort, acct.SMTPUser, smtpEnc, acct.SMTPUseTLS, acct.SMTPUseStartTLS,
		string(acct.OAuthProvider), accessEnc, refreshEnc, acct.OAuthTokenExpiry,
		acct.IsActive, acct.IsDefault,
	)
	return row.Scan(&acct.ID, &acct.CreatedAt, &acct.UpdatedAt)
}

func (a *AccountAdapter) encryptIfSet(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}
	return a.cipher.Encrypt(plain)
}

func (a *AccountAdapter) Update(ctx context.Context, acct *domain.Account) error {
	imapEnc, err := a.encryptIfSet(acct.IMAPPass)
	if err != nil {
		return err
	}
	smtpEnc, err := a.encryptIfSet(acct.SMTPPass)
	if err != nil {
		return err
	}
	accessEnc, err := a.encryptIfSet(acct.OAuthAccessToken)
	if err != nil {
		return err
	}
	refreshEnc, err := a.encryptIfSet(acct.OAuthRefreshToken)
	if err != nil {
		return err
	}

	_, err = a.db.ExecContext(ctx, `
		UPDATE accounts SET
			display_name=$2, imap_host=$3, imap_port=$4, imap_user=$5, imap_pass_enc=$6, imap_use_tls=$7,
			smtp_host=$8, smtp_port=$9, smtp_user=$10, smtp_pass_enc=$11, smtp_use_tls=$12, smtp_use_starttls=$13,
			oauth_provider=$14, oauth_access_token_enc=$15, oauth_refresh_token_enc=$16, oauth_token_expiry=$17,
			is_active=$18, last_error=$19, updated_at=now()
		WHERE id=$1`,
		acct.ID, acct.DisplayName, acct.IMAPHost, acct.IMAPPort, acct.IMAPUser, imapEnc, acct.IMAPUseTLS,
		acct.SMTPHost, acct.SMTPPort, acct.SMTPUser, smtpEnc, acct.SMTPUseTLS, acct.SMTPUseStartTLS,
		string(acct.OAuthProvider), accessEnc, refreshEnc, acct.OAuthTokenExpiry,
		acct.IsActive, acct.LastError,
	)
	return err
}

func (a *AccountAdapter) SetDefault(ctx context.Context, id uuid.UUID) error {
	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE accounts SET is_default = false WHERE is_default`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE accounts SET is_default = true WHERE id = $1`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (a *AccountAdapter) UpdateLastConnected(ctx context.Context, id uuid.UUID, at time.Time, lastErr string) error {
	_, err := a.db.ExecContext(ctx,
		`UPDATE accounts SET last_connected = $2, last_error = $3, updated_at = now() WHERE id = $1`,
		id, at, lastErr)
	return err
}

func (a *AccountAdapter) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := a.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	return err
}

// ProviderTemplateAdapter implements out.ProviderTemplateRepository.
type ProviderTemplateAdapter struct {
	db *sqlx.DB
}

func NewProviderTemplateAdapter(db *sqlx.DB) *ProviderTemplateAdapter {
	return &ProviderTemplateAdapter{db: db}
}

var _ out.ProviderTemplateRepository = (*ProviderTemplateAdapter)(nil)

func (a *ProviderTemplateAdapter) GetByDomain(ctx context.Context, domainPattern string) (*domain.ProviderTemplate, error) {
	var t domain.ProviderTemplate
	err := a.db.GetContext(ctx, &t, `SELECT * FROM provider_templates WHERE domain_pattern = $1`, domainPattern)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return &t, nil
}

func (a *ProviderTemplateAdapter) List(ctx context.Context) ([]*domain.ProviderTemplate, error) {
	var rows []*domain.ProviderTemplate
	if err := a.db.SelectContext(ctx, &rows, `SELECT * FROM provider_templates ORDER BY domain_pattern`); err != nil {
		return nil, err
	}
	return rows, nil
}

func (a *ProviderTemplateAdapter) Upsert(ctx context.Context, t *domain.ProviderTemplate) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO provider_templates (
			domain_pattern, display_name, imap_host, imap_port, imap_use_tls,
			smtp_host, smtp_port, smtp_use_tls, smtp_use_starttls, supports_oauth, oauth_provider
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (domain_pattern) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			imap_host = EXCLUDED.imap_host, imap_port = EXCLUDED.imap_port, imap_use_tls = EXCLUDED.imap_use_tls,
			smtp_host = EXCLUDED.smtp_host, smtp_port = EXCLUDED.smtp_port,
			smtp_use_tls = EXCLUDED.smtp_use_tls, smtp_use_starttls = EXCLUDED.smtp_use_starttls,
			supports_oauth = EXCLUDED.supports_oauth, oauth_provider = EXCLUDED.oauth_provider`,
		t.DomainPattern, t.DisplayName, t.IMAPHost, t.IMAPPort, t.IMAPUseTLS,
		t.SMTPHost, t.SMTPPort, t.SMTPUseTLS, t.SMTPUseStartTLS, t.SupportsOAuth, string(t.OAuthProvider),
	)
	return err
}
