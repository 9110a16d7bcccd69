package ws

import (
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/vigil/internal/domain"
)

// StatusEvent is the payload published on the fleet-wide status channel
// for every committed transition.
type StatusEvent struct {
	Type      string             `json:"type"` // always "status_change"
	AgentID   uuid.UUID          `json:"agent_id"`
	Previous  domain.AgentStatus `json:"previous"`
	Next      domain.AgentStatus `json:"next"`
	Timestamp time.Time          `json:"timestamp"`
}

// OutputEvent is the payload published on an agent's output channel for
// every raw chunk the process emits.
type OutputEvent struct {
	Type      string    `json:"type"` // always "output"
	AgentID   uuid.UUID `json:"agent_id"`
	Chunk     string    `json:"chunk"`
	Timestamp time.Time `json:"timestamp"`
}
