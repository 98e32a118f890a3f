package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrationStatements = []string{
	`DO $$ BEGIN CREATE TYPE relay_session_status AS ENUM ('running', 'completed'); EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
	`CREATE TABLE IF NOT EXISTS relay_sessions (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		input_language TEXT NOT NULL,
		target_languages TEXT[] NOT NULL DEFAULT '{}',
		started_at TIMESTAMPTZ NOT NULL,
		ended_at TIMESTAMPTZ,
		status relay_session_status NOT NULL DEFAULT 'running',
		stop_reason TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_relay_sessions_running ON relay_sessions (started_at) WHERE status = 'running'`,
	`CREATE TABLE IF NOT EXISTS relay_messages (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		session_id UUID NOT NULL REFERENCES relay_sessions(id) ON DELETE CASCADE,
		kind TEXT NOT NULL,
		content TEXT NOT NULL,
		message_index INTEGER NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		UNIQUE(session_id, message_index)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_relay_messages_session ON relay_messages (session_id, message_index)`,
}

func RunMigration(ctx context.Context, pool *pgxpool.Pool) error {
	for _, s := range migrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
