package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AgentStatus is the inferred lifecycle state of a terminal agent session.
type AgentStatus string

const (
	// AgentStatusIdle means no live process is attached (fresh, restored, or
	// manually stopped).
	AgentStatusIdle AgentStatus = "idle"
	// AgentStatusRunning means the agent is actively computing or input was
	// just dispatched to it.
	AgentStatusRunning AgentStatus = "running"
	// AgentStatusWaiting means the agent is blocked on a human decision.
	AgentStatusWaiting AgentStatus = "waiting"
	// AgentStatusCompleted means the agent finished its task successfully.
	AgentStatusCompleted AgentStatus = "completed"
	// AgentStatusError means the agent finished or crashed abnormally.
	AgentStatusError AgentStatus = "error"
)

// Valid reports whether s is one of the known agent statuses.
func (s AgentStatus) Valid() bool {
	switch s {
	case AgentStatusIdle, AgentStatusRunning, AgentStatusWaiting,
		AgentStatusCompleted, AgentStatusError:
		return true
	}
	return false
}

// Agent is one managed terminal agent session.
type Agent struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	AgentType   string      `json:"agent_type"` // "claude", "codex", "opencode", "aider"
	Status      AgentStatus `json:"status"`
	CurrentTask string      `json:"current_task,omitempty"`
	Error       string      `json:"error,omitempty"`

	// LastActivity is the time of the most recent output chunk or
	// status-relevant event.
	LastActivity time.Time `json:"last_activity"`

	// SuppressUntil, when in the future, disables heuristic status detection
	// for incoming output. Set on manual stop so buffered output arriving
	// just after cannot fight the user's explicit action.
	SuppressUntil time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
}

// StatusTransition records one detected status change for an agent.
// Transitions are ephemeral: they feed the notification scheduler and the
// status broadcast, and are never persisted.
type StatusTransition struct {
	AgentID  uuid.UUID   `json:"agent_id"`
	Previous AgentStatus `json:"previous"`
	Next     AgentStatus `json:"next"`
	At       time.Time   `json:"at"`
}

// AgentRepository persists agent records and their bounded output tails.
type AgentRepository interface {
	Create(ctx context.Context, a *Agent) error
	GetByID(ctx context.Context, id uuid.UUID) (*Agent, error)
	List(ctx context.Context) ([]*Agent, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status AgentStatus, errDetail string) error
	SaveOutputTail(ctx context.Context, id uuid.UUID, chunks []string) error
	LoadOutputTail(ctx context.Context, id uuid.UUID) ([]string, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
