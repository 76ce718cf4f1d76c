// Package postgres archives huddle calls in PostgreSQL through a pgx
// connection pool. Entries are bulk-inserted with COPY.
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/huddle/pkg/memory"
)

var _ memory.Archive = (*Store)(nil)

var entryColumns = []string{"session_id", "speaker_id", "speaker_name", "role", "text", "activation", "timestamp"}

// Store is the PostgreSQL archive. All methods are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to dsn, verifies the connection and runs Migrate.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: %w", err)
	}
	return &Store{pool: pool}, nil
}

// BeginCall implements memory.Archive.
func (s *Store) BeginCall(ctx context.Context, call memory.CallRecord) error {
	const q = `
		INSERT INTO calls (id, guild_id, channel_id, started_by, mode, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := s.pool.Exec(ctx, q, call.ID, call.GuildID, call.ChannelID, call.StartedBy, call.Mode, call.StartedAt); err != nil {
		return fmt.Errorf("postgres store: begin call: %w", err)
	}
	return nil
}

// WriteEntries implements memory.Archive.
func (s *Store) WriteEntries(ctx context.Context, callID string, entries []memory.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	_, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"session_entries"},
		entryColumns,
		pgx.CopyFromSlice(len(entries), func(i int) ([]any, error) {
			e := entries[i]
			return []any{callID, e.SpeakerID, e.SpeakerName, e.Role, e.Text, e.Activation, e.Timestamp}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("postgres store: write %d entries: %w", len(entries), err)
	}
	return nil
}

// EndCall implements memory.Archive.
func (s *Store) EndCall(ctx context.Context, callID string, stats memory.CallStats) error {
	const q = `
		UPDATE calls
		SET    ended_at = $2, total_turns = $3, activations = $4
		WHERE  id = $1`
	tag, err := s.pool.Exec(ctx, q, callID, stats.EndedAt, stats.TotalTurns, stats.Activations)
	if err != nil {
		return fmt.Errorf("postgres store: end call: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres store: end call: unknown call %q", callID)
	}
	return nil
}

// Ping reports whether the database is reachable. Used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
