package v1_test

import (
	"context"

	"github.com/google/uuid"

	"github.com/gosuda/vigil/internal/domain"
	"github.com/gosuda/vigil/internal/runtime"
)

// ---------------------------------------------------------------------------
// Mock AgentManager
// ---------------------------------------------------------------------------

type mockAgentManager struct {
	createFunc    func(ctx context.Context, name, agentType string) (*domain.Agent, error)
	getFunc       func(agentID uuid.UUID) (*domain.Agent, bool)
	listFunc      func() []*domain.Agent
	stopFunc      func(ctx context.Context, agentID uuid.UUID) error
	removeFunc    func(ctx context.Context, agentID uuid.UUID) error
	sendInputFunc func(ctx context.Context, agentID uuid.UUID, text string) error
	outputFunc    func(agentID uuid.UUID, n int) ([]string, error)
}

func (m *mockAgentManager) Create(ctx context.Context, name, agentType string) (*domain.Agent, error) {
	return m.createFunc(ctx, name, agentType)
}

func (m *mockAgentManager) Get(agentID uuid.UUID) (*domain.Agent, bool) {
	return m.getFunc(agentID)
}

func (m *mockAgentManager) List() []*domain.Agent {
	return m.listFunc()
}

func (m *mockAgentManager) Stop(ctx context.Context, agentID uuid.UUID) error {
	return m.stopFunc(ctx, agentID)
}

func (m *mockAgentManager) Remove(ctx context.Context, agentID uuid.UUID) error {
	return m.removeFunc(ctx, agentID)
}

func (m *mockAgentManager) SendInput(ctx context.Context, agentID uuid.UUID, text string) error {
	return m.sendInputFunc(ctx, agentID, text)
}

func (m *mockAgentManager) Output(agentID uuid.UUID, n int) ([]string, error) {
	return m.outputFunc(agentID, n)
}

// ---------------------------------------------------------------------------
// Mock AgentLauncher
// ---------------------------------------------------------------------------

type mockAgentLauncher struct {
	launchFunc func(ctx context.Context, opts runtime.LaunchOptions) (string, error)
	stopFunc   func(ctx context.Context, agentID uuid.UUID) error
}

func (m *mockAgentLauncher) Launch(ctx context.Context, opts runtime.LaunchOptions) (string, error) {
	if m.launchFunc == nil {
		return "", runtime.ErrNotLaunched
	}
	return m.launchFunc(ctx, opts)
}

func (m *mockAgentLauncher) Stop(ctx context.Context, agentID uuid.UUID) error {
	if m.stopFunc == nil {
		return runtime.ErrNotLaunched
	}
	return m.stopFunc(ctx, agentID)
}

// ---------------------------------------------------------------------------
// Mock AuthService
// ---------------------------------------------------------------------------

type mockAuthService struct {
	loginFunc func(password string) (string, error)
}

func (m *mockAuthService) Login(password string) (string, error) {
	return m.loginFunc(password)
}
