package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlCalls = `
CREATE TABLE IF NOT EXISTS calls (
    id           TEXT         PRIMARY KEY,
    guild_id     TEXT         NOT NULL DEFAULT '',
    channel_id   TEXT         NOT NULL,
    started_by   TEXT         NOT NULL DEFAULT '',
    mode         TEXT         NOT NULL,
    started_at   TIMESTAMPTZ  NOT NULL,
    ended_at     TIMESTAMPTZ,
    total_turns  INTEGER      NOT NULL DEFAULT 0,
    activations  INTEGER      NOT NULL DEFAULT 0
);
`

const ddlSessionEntries = `
CREATE TABLE IF NOT EXISTS session_entries (
    id           BIGSERIAL    PRIMARY KEY,
    session_id   TEXT         NOT NULL REFERENCES calls (id) ON DELETE CASCADE,
    speaker_id   TEXT         NOT NULL DEFAULT '',
    speaker_name TEXT         NOT NULL DEFAULT '',
    role         TEXT         NOT NULL,
    text         TEXT         NOT NULL,
    activation   BOOLEAN      NOT NULL DEFAULT false,
    timestamp    TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_session_entries_session_timestamp
    ON session_entries (session_id, timestamp);
`

// Migrate creates the archive tables if they do not exist. It is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range []struct {
		name string
		sql  string
	}{
		{"calls", ddlCalls},
		{"session_entries", ddlSessionEntries},
	} {
		if _, err := pool.Exec(ctx, stmt.sql); err != nil {
			return fmt.Errorf("postgres migrate %s: %w", stmt.name, err)
		}
	}
	return nil
}
