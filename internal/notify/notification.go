// Package notify converts detected agent status transitions into user-facing
// notifications: a debouncing scheduler suppresses transient flapping, and a
// notifier fans the surviving events out to configured messenger platforms.
package notify

import (
	"context"

	"github.com/google/uuid"

	"github.com/gosuda/vigil/internal/domain"
)

// Kind is the user-facing notification category.
type Kind string

const (
	KindWaiting   Kind = "waiting"
	KindCompleted Kind = "completed"
	KindError     Kind = "error"
)

// Notification is one user-facing event about an agent.
type Notification struct {
	AgentID   uuid.UUID
	AgentName string
	Kind      Kind
	Detail    string
}

// Sink delivers a notification. Implementations must be safe to call from
// the scheduler's timer callback.
type Sink interface {
	Notify(ctx context.Context, n Notification) error
}

// kindFor maps an agent status to its notification category. Idle and
// running transitions carry no user-facing category.
func kindFor(status domain.AgentStatus) (Kind, bool) {
	switch status {
	case domain.AgentStatusWaiting:
		return KindWaiting, true
	case domain.AgentStatusCompleted:
		return KindCompleted, true
	case domain.AgentStatusError:
		return KindError, true
	default:
		return "", false
	}
}
