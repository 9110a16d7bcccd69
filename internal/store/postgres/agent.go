package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gosuda/vigil/internal/domain"
)

type AgentRepo struct {
	pool *pgxpool.Pool
}

// Compile-time interface check.
var _ domain.AgentRepository = (*AgentRepo)(nil) //nolint:gochecknoglobals // compile-time check

func NewAgentRepo(pool *pgxpool.Pool) *AgentRepo {
	return &AgentRepo{pool: pool}
}

func (r *AgentRepo) Create(ctx context.Context, a *domain.Agent) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO agents (id, name, agent_type, status, current_task, error, last_activity, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.Name, a.AgentType, a.Status, a.CurrentTask, a.Error, a.LastActivity, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("agentRepo.Create: %w", err)
	}

	return nil
}

func (r *AgentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Agent, error) {
	var a domain.Agent

	err := r.pool.QueryRow(ctx,
		`SELECT id, name, agent_type, status, current_task, error, last_activity, created_at
		 FROM agents WHERE id = $1`,
		id,
	).Scan(&a.ID, &a.Name, &a.AgentType, &a.Status, &a.CurrentTask, &a.Error, &a.LastActivity, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("agentRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("agentRepo.GetByID: %w", err)
	}

	return &a, nil
}

func (r *AgentRepo) List(ctx context.Context) ([]*domain.Agent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, agent_type, status, current_task, error, last_activity, created_at
		 FROM agents ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("agentRepo.List: %w", err)
	}
	defer rows.Close()

	var agents []*domain.Agent
	for rows.Next() {
		var a domain.Agent
		if scanErr := rows.Scan(&a.ID, &a.Name, &a.AgentType, &a.Status, &a.CurrentTask, &a.Error, &a.LastActivity, &a.CreatedAt); scanErr != nil {
			return nil, fmt.Errorf("agentRepo.List: scan: %w", scanErr)
		}
		agents = append(agents, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("agentRepo.List: rows: %w", err)
	}

	return agents, nil
}

func (r *AgentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.AgentStatus, errDetail string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE agents SET status = $1, error = $2, last_activity = now() WHERE id = $3`,
		status, errDetail, id,
	)
	if err != nil {
		return fmt.Errorf("agentRepo.UpdateStatus: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("agentRepo.UpdateStatus: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *AgentRepo) SaveOutputTail(ctx context.Context, id uuid.UUID, tail []string) error {
	payload, err := json.Marshal(tail)
	if err != nil {
		return fmt.Errorf("agentRepo.SaveOutputTail: marshal: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE agents SET output_tail = $1 WHERE id = $2`,
		payload, id,
	)
	if err != nil {
		return fmt.Errorf("agentRepo.SaveOutputTail: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("agentRepo.SaveOutputTail: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *AgentRepo) LoadOutputTail(ctx context.Context, id uuid.UUID) ([]string, error) {
	var payload []byte

	err := r.pool.QueryRow(ctx,
		`SELECT output_tail FROM agents WHERE id = $1`,
		id,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("agentRepo.LoadOutputTail: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("agentRepo.LoadOutputTail: %w", err)
	}

	var tail []string
	if err := json.Unmarshal(payload, &tail); err != nil {
		return nil, fmt.Errorf("agentRepo.LoadOutputTail: unmarshal: %w", err)
	}

	return tail, nil
}

func (r *AgentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM agents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("agentRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("agentRepo.Delete: %w", domain.ErrNotFound)
	}

	return nil
}
