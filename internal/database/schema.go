package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS email_groups (
		id VARCHAR(36) PRIMARY KEY,
		user_id VARCHAR(64) NOT NULL,
		type VARCHAR(20) NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		priority INT NOT NULL,
		is_expanded BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (user_id, type)
	)`,
	`CREATE TABLE IF NOT EXISTS email_correspondence (
		id VARCHAR(36) PRIMARY KEY,
		user_id VARCHAR(64) NOT NULL,
		group_id VARCHAR(36) REFERENCES email_groups(id) ON DELETE SET NULL,
		ticket_id TEXT NOT NULL,
		conversation_id TEXT NOT NULL,
		conversation_url TEXT,
		subject TEXT NOT NULL DEFAULT '',
		from_email TEXT NOT NULL DEFAULT '',
		from_name TEXT,
		message_text TEXT NOT NULL CHECK (message_text <> ''),
		labels TEXT[],
		inbox TEXT,
		creation_date TIMESTAMPTZ NOT NULL,
		closed_date TIMESTAMPTZ,
		assignee TEXT,
		order_number TEXT,
		needs_action BOOLEAN NOT NULL DEFAULT TRUE,
		is_edited BOOLEAN NOT NULL DEFAULT FALSE,
		auto_response TEXT,
		category VARCHAR(20),
		urgency INT CHECK (urgency BETWEEN 1 AND 10),
		sentiment VARCHAR(20),
		key_issues TEXT[],
		suggested_tone TEXT,
		similarity_tags TEXT[],
		shopify_data JSONB,
		shipstation_data JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_email_correspondence_user_id ON email_correspondence(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_email_correspondence_group_id ON email_correspondence(group_id)`,
	`CREATE TABLE IF NOT EXISTS email_comments (
		id VARCHAR(36) PRIMARY KEY,
		email_id VARCHAR(36) NOT NULL REFERENCES email_correspondence(id) ON DELETE CASCADE,
		user_id VARCHAR(64) NOT NULL,
		content TEXT NOT NULL,
		is_internal BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_email_comments_email_id ON email_comments(email_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS mail_accounts (
		user_id VARCHAR(64) PRIMARY KEY,
		provider VARCHAR(20) NOT NULL,
		email_address TEXT NOT NULL DEFAULT '',
		access_token TEXT NOT NULL,
		refresh_token TEXT,
		expires_at TIMESTAMPTZ,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS audit_events (
		id BIGSERIAL PRIMARY KEY,
		user_id VARCHAR(64) NOT NULL,
		event_type VARCHAR(50) NOT NULL,
		email_id VARCHAR(36),
		metadata JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_events_user_created ON audit_events(user_id, created_at DESC)`,
}

// CreateTables creates the triage tables if they don't exist
func CreateTables(ctx context.Context, db *sqlx.DB) error {
	for _, query := range schema {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
