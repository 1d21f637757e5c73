// Package postgres persists collected matches in PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/riftwatch/rift-harvester/internal/model"
	"github.com/riftwatch/rift-harvester/internal/store"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store writes match rows into the matches table. Deduplication relies on the
// primary key: concurrent inserts of the same match id collapse into one row.
type Store struct {
	pool pgxPool
}

// New connects a pooled Postgres-backed Store.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool constructs a Store from an existing pool (primarily for testing).
func NewWithPool(pool pgxPool) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

const upsertSQL = `
	INSERT INTO matches (
		match_id, platform, queue_id, patch, game_version,
		game_creation, game_duration, winning_team, teams, participants
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (match_id) DO NOTHING;
`

// Upsert stores the match, reporting AlreadyExists when the match id is
// already present.
func (s *Store) Upsert(ctx context.Context, m *model.Match) (store.Result, error) {
	teams, err := json.Marshal([]model.Team{m.Team100, m.Team200})
	if err != nil {
		return 0, fmt.Errorf("marshal teams: %w", err)
	}
	participants, err := json.Marshal(m.Participants)
	if err != nil {
		return 0, fmt.Errorf("marshal participants: %w", err)
	}

	tag, err := s.pool.Exec(ctx, upsertSQL,
		m.MatchID,
		m.PlatformID,
		m.QueueID,
		m.PatchVersion(),
		m.GameVersion,
		m.GameDate().UTC(),
		m.GameDuration,
		m.WinningTeam().TeamID,
		teams,
		participants,
	)
	if err != nil {
		return 0, fmt.Errorf("upsert match %s: %w", m.MatchID, err)
	}
	if tag.RowsAffected() == 0 {
		return store.AlreadyExists, nil
	}
	return store.Inserted, nil
}

// Exists reports whether the match id was persisted.
func (s *Store) Exists(ctx context.Context, matchID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM matches WHERE match_id = $1);`, matchID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check match %s: %w", matchID, err)
	}
	return exists, nil
}

// Count returns the number of persisted matches.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM matches;`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count matches: %w", err)
	}
	return n, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	s.pool.Close()
}
