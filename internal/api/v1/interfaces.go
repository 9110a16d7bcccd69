package v1

import (
	"context"

	"github.com/google/uuid"

	"github.com/gosuda/vigil/internal/domain"
	"github.com/gosuda/vigil/internal/runtime"
)

// AgentManager abstracts the agent registry for handler testing.
// *manager.Manager satisfies this interface.
type AgentManager interface {
	Create(ctx context.Context, name, agentType string) (*domain.Agent, error)
	Get(agentID uuid.UUID) (*domain.Agent, bool)
	List() []*domain.Agent
	Stop(ctx context.Context, agentID uuid.UUID) error
	Remove(ctx context.Context, agentID uuid.UUID) error
	SendInput(ctx context.Context, agentID uuid.UUID, text string) error
	Output(agentID uuid.UUID, n int) ([]string, error)
}

// AgentLauncher abstracts the container runtime for handler testing.
// *runtime.DockerRuntime satisfies this interface.
type AgentLauncher interface {
	Launch(ctx context.Context, opts runtime.LaunchOptions) (string, error)
	Stop(ctx context.Context, agentID uuid.UUID) error
}

// AuthService abstracts operator authentication for handler testing.
// *auth.Service satisfies this interface.
type AuthService interface {
	Login(password string) (string, error)
}
