package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gosuda/vigil/internal/domain"
)

func TestAgentStatusValid(t *testing.T) {
	t.Parallel()

	valid := []domain.AgentStatus{
		domain.AgentStatusIdle,
		domain.AgentStatusRunning,
		domain.AgentStatusWaiting,
		domain.AgentStatusCompleted,
		domain.AgentStatusError,
	}
	for _, s := range valid {
		assert.True(t, s.Valid(), "status %q should be valid", s)
	}

	invalid := []domain.AgentStatus{"", "pending", "stopped", "RUNNING"}
	for _, s := range invalid {
		assert.False(t, s.Valid(), "status %q should be invalid", s)
	}
}
