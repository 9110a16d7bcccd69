package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/vigil/internal/domain"
)

type Store struct {
	pool   *pgxpool.Pool
	agents *AgentRepo
}

func New(ctx context.Context, dsn string, maxConns int32) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: parse config: %w", err)
	}

	cfg.MaxConns = maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: connect: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: ping: %w", err)
	}

	return &Store{
		pool:   pool,
		agents: NewAgentRepo(pool),
	}, nil
}

// EnsureSchema creates the agents table if it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS agents (
			id            UUID PRIMARY KEY,
			name          TEXT NOT NULL,
			agent_type    TEXT NOT NULL,
			status        TEXT NOT NULL,
			current_task  TEXT NOT NULL DEFAULT '',
			error         TEXT NOT NULL DEFAULT '',
			last_activity TIMESTAMPTZ NOT NULL,
			output_tail   JSONB NOT NULL DEFAULT '[]',
			created_at    TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("postgres.Store.EnsureSchema: %w", err)
	}

	return nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Agents() domain.AgentRepository { return s.agents }
