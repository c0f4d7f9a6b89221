// Package database holds the Postgres schema this service runs against.
package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migration is one forward-only schema step, applied in Version order.
type Migration struct {
	Version int
	SQL     string
}

var migrations = []Migration{
	{
		Version: 1,
		SQL: `
			CREATE EXTENSION IF NOT EXISTS pgcrypto;
			CREATE EXTENSION IF NOT EXISTS pg_trgm;

			CREATE TABLE provider_templates (
				id SERIAL PRIMARY KEY,
				domain_pattern TEXT NOT NULL UNIQUE,
				display_name TEXT NOT NULL,
				imap_host TEXT NOT NULL,
				imap_port INTEGER NOT NULL DEFAULT 993,
				imap_use_tls BOOLEAN NOT NULL DEFAULT true,
				smtp_host TEXT NOT NULL,
				smtp_port INTEGER NOT NULL DEFAULT 587,
				smtp_use_tls BOOLEAN NOT NULL DEFAULT false,
				smtp_use_starttls BOOLEAN NOT NULL DEFAULT true,
				supports_oauth BOOLEAN NOT NULL DEFAULT false,
				oauth_provider TEXT NOT NULL DEFAULT 'none'
			);

			CREATE TABLE accounts (
				id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
				email_address TEXT NOT NULL UNIQUE,
				display_name TEXT NOT NULL DEFAULT '',

				imap_host TEXT NOT NULL,
				imap_port INTEGER NOT NULL,
				imap_user TEXT NOT NULL,
				imap_pass_enc TEXT NOT NULL DEFAULT '',
				imap_use_tls BOOLEAN NOT NULL DEFAULT true,

				smtp_host TEXT NOT NULL,
				smtp_port INTEGER NOT NULL,
				smtp_user TEXT NOT NULL,
				smtp_pass_enc TEXT NOT NULL DEFAULT '',
				smtp_use_tls BOOLEAN NOT NULL DEFAULT false,
				smtp_use_starttls BOOLEAN NOT NULL DEFAULT true,

				oauth_provider TEXT NOT NULL DEFAULT 'none',
				oauth_access_token_enc TEXT NOT NULL DEFAULT '',
				oauth_refresh_token_enc TEXT NOT NULL DEFAULT '',
				oauth_token_expiry TIMESTAMPTZ,

				is_active BOOLEAN NOT NULL DEFAULT true,
				is_default BOOLEAN NOT NULL DEFAULT false,
				last_connected TIMESTAMPTZ,
				last_error TEXT NOT NULL DEFAULT '',

				created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
			);

			-- at most one default account
			CREATE UNIQUE INDEX idx_accounts_one_default ON accounts ((is_default)) WHERE is_default;

			CREATE TABLE folders (
				id BIGSERIAL PRIMARY KEY,
				account_id UUID NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
				name TEXT NOT NULL,
				delimiter TEXT NOT NULL DEFAULT '/',
				attributes TEXT[] NOT NULL DEFAULT '{}',

				uidvalidity BIGINT NOT NULL DEFAULT 0,
				uidnext BIGINT NOT NULL DEFAULT 0,

				total_messages INTEGER NOT NULL DEFAULT 0,
				unseen_messages INTEGER NOT NULL DEFAULT 0,
				last_sync TIMESTAMPTZ,

				created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),

				UNIQUE(account_id, name)
			);

			CREATE INDEX idx_folders_account ON folders(account_id);

			CREATE TABLE messages (
				id BIGSERIAL PRIMARY KEY,
				folder_id BIGINT NOT NULL REFERENCES folders(id) ON DELETE CASCADE,
				uid BIGINT NOT NULL,

				message_id TEXT NOT NULL DEFAULT '',
				in_reply_to TEXT NOT NULL DEFAULT '',
				"references" TEXT NOT NULL DEFAULT '',

				subject TEXT NOT NULL DEFAULT '',
				from_address TEXT NOT NULL DEFAULT '',
				from_name TEXT NOT NULL DEFAULT '',
				to_list TEXT[] NOT NULL DEFAULT '{}',
				cc_list TEXT[] NOT NULL DEFAULT '{}',
				msg_date TIMESTAMPTZ,
				internal_date TIMESTAMPTZ,

				size BIGINT NOT NULL DEFAULT 0,
				flags TEXT[] NOT NULL DEFAULT '{}',

				headers TEXT NOT NULL DEFAULT '',
				body_text TEXT NOT NULL DEFAULT '',
				body_html TEXT NOT NULL DEFAULT '',
				has_attachments BOOLEAN NOT NULL DEFAULT false,

				created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),

				UNIQUE(folder_id, uid)
			);

			CREATE INDEX idx_messages_folder ON messages(folder_id);
			CREATE INDEX idx_messages_message_id ON messages(message_id);
			CREATE INDEX idx_messages_subject_trgm ON messages USING gin (subject gin_trgm_ops);

			CREATE TABLE attachment_metadata (
				id BIGSERIAL PRIMARY KEY,
				message_id BIGINT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
				filename TEXT NOT NULL,
				size BIGINT NOT NULL DEFAULT 0,
				content_type TEXT NOT NULL DEFAULT 'application/octet-stream',
				content_id TEXT NOT NULL DEFAULT '',
				storage_path TEXT NOT NULL,
				downloaded_at TIMESTAMPTZ,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now(),

				UNIQUE(message_id, filename)
			);

			CREATE INDEX idx_attachments_message ON attachment_metadata(message_id);

			CREATE TABLE sync_state (
				folder_id BIGINT PRIMARY KEY REFERENCES folders(id) ON DELETE CASCADE,
				last_uid_synced BIGINT NOT NULL DEFAULT 0,
				last_full_sync TIMESTAMPTZ,
				last_incremental_sync TIMESTAMPTZ,
				sync_status TEXT NOT NULL DEFAULT 'idle',
				error_message TEXT NOT NULL DEFAULT '',
				emails_synced INTEGER NOT NULL DEFAULT 0,
				emails_total INTEGER NOT NULL DEFAULT 0,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
			);

			CREATE TABLE outbox_entries (
				id BIGSERIAL PRIMARY KEY,
				account_id UUID NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
				message_id TEXT NOT NULL,
				to_list TEXT[] NOT NULL DEFAULT '{}',
				cc_list TEXT[] NOT NULL DEFAULT '{}',
				bcc_list TEXT[] NOT NULL DEFAULT '{}',
				subject TEXT NOT NULL DEFAULT '',
				body_text TEXT NOT NULL DEFAULT '',
				body_html TEXT NOT NULL DEFAULT '',
				raw_rfc5322 BYTEA NOT NULL,

				smtp_sent BOOLEAN NOT NULL DEFAULT false,
				outbox_saved BOOLEAN NOT NULL DEFAULT false,
				sent_folder_saved BOOLEAN NOT NULL DEFAULT false,

				retry_count INTEGER NOT NULL DEFAULT 0,
				max_retries INTEGER NOT NULL DEFAULT 5,
				last_error TEXT NOT NULL DEFAULT '',

				created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				sent_at TIMESTAMPTZ
			);

			CREATE INDEX idx_outbox_account ON outbox_entries(account_id);
			CREATE INDEX idx_outbox_pending ON outbox_entries(created_at) WHERE NOT (smtp_sent AND sent_folder_saved);

			CREATE TABLE jobs (
				id TEXT PRIMARY KEY,
				instruction TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'running',
				resume_checkpoint JSONB,
				retry_count INTEGER NOT NULL DEFAULT 0,
				max_retries INTEGER NOT NULL DEFAULT 3,
				result JSONB,
				error TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				completed_at TIMESTAMPTZ
			);

			CREATE INDEX idx_jobs_status ON jobs(status);
		`,
	},
}

// Migrate applies every migration with Version greater than the highest
// version already recorded, each inside its own transaction.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	if err := pool.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := applyMigration(ctx, pool, m); err != nil {
			return fmt.Errorf("apply migration %d: %w", m.Version, err)
		}
	}
	return nil
}

func applyMigration(ctx context.Context, pool *pgxpool.Pool, m Migration) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, m.SQL); err != nil {
		return fmt.Errorf("migration SQL: %w", err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, m.Version); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	return tx.Commit(ctx)
}
