package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/vigil/internal/domain"
	"github.com/gosuda/vigil/internal/manager"
	"github.com/gosuda/vigil/internal/runtime"
	"github.com/gosuda/vigil/internal/term"
)

type CreateAgentInput struct {
	Body struct {
		Name      string `json:"name" minLength:"1" maxLength:"100" doc:"Display name"`
		AgentType string `json:"agent_type" minLength:"1" maxLength:"50" doc:"Agent CLI type (claude, aider, codex)"`
	}
}

type CreateAgentOutput struct {
	Body *domain.Agent
}

type StartAgentInput struct {
	ID   uuid.UUID `path:"id" doc:"Agent ID"`
	Body struct {
		Image   string   `json:"image,omitempty" maxLength:"255" doc:"Container image; server default when empty"`
		Cmd     []string `json:"cmd,omitempty" doc:"Command to run; image default when empty"`
		WorkDir string   `json:"work_dir,omitempty" maxLength:"255" doc:"Working directory inside the container"`
	}
}

type StartAgentOutput struct {
	Body struct {
		ContainerID string `json:"container_id"`
	}
}

type GetAgentInput struct {
	ID uuid.UUID `path:"id" doc:"Agent ID"`
}

type GetAgentOutput struct {
	Body *domain.Agent
}

type ListAgentsOutput struct {
	Body []*domain.Agent
}

type StopAgentInput struct {
	ID uuid.UUID `path:"id" doc:"Agent ID"`
}

type StopAgentOutput struct {
	Body *domain.Agent
}

type RemoveAgentInput struct {
	ID uuid.UUID `path:"id" doc:"Agent ID"`
}

type SendInputInput struct {
	ID   uuid.UUID `path:"id" doc:"Agent ID"`
	Body struct {
		Text string `json:"text" maxLength:"10000" doc:"Input line forwarded to the agent process"`
	}
}

type AgentOutputInput struct {
	ID    uuid.UUID `path:"id" doc:"Agent ID"`
	Lines int       `query:"lines" minimum:"1" maximum:"1000" default:"100" doc:"Max output chunks"`
}

type AgentOutputOutput struct {
	Body struct {
		Chunks []string `json:"chunks"`
	}
}

//nolint:gocognit,funlen // route registration is one long declarative block
func RegisterAgentRoutes(api huma.API, mgr AgentManager, launcher AgentLauncher) {
	huma.Register(api, huma.Operation{
		OperationID: "create-agent",
		Method:      http.MethodPost,
		Path:        "/agents",
		Summary:     "Register a new agent",
		Tags:        []string{"Agents"},
	}, func(ctx context.Context, input *CreateAgentInput) (*CreateAgentOutput, error) {
		agent, err := mgr.Create(ctx, input.Body.Name, input.Body.AgentType)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to create agent", err)
		}

		return &CreateAgentOutput{Body: agent}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "start-agent",
		Method:      http.MethodPost,
		Path:        "/agents/{id}/start",
		Summary:     "Launch the agent's container",
		Tags:        []string{"Agents"},
	}, func(ctx context.Context, input *StartAgentInput) (*StartAgentOutput, error) {
		if _, ok := mgr.Get(input.ID); !ok {
			return nil, huma.Error404NotFound("agent not found")
		}

		containerID, err := launcher.Launch(ctx, runtime.LaunchOptions{
			AgentID: input.ID,
			Image:   input.Body.Image,
			Cmd:     input.Body.Cmd,
			WorkDir: input.Body.WorkDir,
		})
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to launch agent container", err)
		}

		out := &StartAgentOutput{}
		out.Body.ContainerID = containerID
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-agents",
		Method:      http.MethodGet,
		Path:        "/agents",
		Summary:     "List all agents with their current status",
		Tags:        []string{"Agents"},
	}, func(_ context.Context, _ *struct{}) (*ListAgentsOutput, error) {
		return &ListAgentsOutput{Body: mgr.List()}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-agent",
		Method:      http.MethodGet,
		Path:        "/agents/{id}",
		Summary:     "Get an agent by ID",
		Tags:        []string{"Agents"},
	}, func(_ context.Context, input *GetAgentInput) (*GetAgentOutput, error) {
		agent, ok := mgr.Get(input.ID)
		if !ok {
			return nil, huma.Error404NotFound("agent not found")
		}

		return &GetAgentOutput{Body: agent}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "stop-agent",
		Method:      http.MethodPost,
		Path:        "/agents/{id}/stop",
		Summary:     "Stop an agent",
		Tags:        []string{"Agents"},
	}, func(ctx context.Context, input *StopAgentInput) (*StopAgentOutput, error) {
		err := mgr.Stop(ctx, input.ID)
		if err != nil {
			if errors.Is(err, manager.ErrAgentNotFound) {
				return nil, huma.Error404NotFound("agent not found")
			}
			return nil, huma.Error500InternalServerError("failed to stop agent", err)
		}

		// No container means the agent was never launched; the forced idle
		// status is already in place.
		if stopErr := launcher.Stop(ctx, input.ID); stopErr != nil && !errors.Is(stopErr, runtime.ErrNotLaunched) {
			return nil, huma.Error500InternalServerError("failed to stop agent container", stopErr)
		}

		agent, ok := mgr.Get(input.ID)
		if !ok {
			return nil, huma.Error404NotFound("agent not found")
		}

		return &StopAgentOutput{Body: agent}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "remove-agent",
		Method:      http.MethodDelete,
		Path:        "/agents/{id}",
		Summary:     "Remove an agent",
		Tags:        []string{"Agents"},
	}, func(ctx context.Context, input *RemoveAgentInput) (*struct{}, error) {
		if stopErr := launcher.Stop(ctx, input.ID); stopErr != nil && !errors.Is(stopErr, runtime.ErrNotLaunched) {
			return nil, huma.Error500InternalServerError("failed to stop agent container", stopErr)
		}

		err := mgr.Remove(ctx, input.ID)
		if err != nil {
			if errors.Is(err, manager.ErrAgentNotFound) {
				return nil, huma.Error404NotFound("agent not found")
			}
			return nil, huma.Error500InternalServerError("failed to remove agent", err)
		}

		return nil, nil //nolint:nilnil // huma treats nil output as 204
	})

	huma.Register(api, huma.Operation{
		OperationID: "send-agent-input",
		Method:      http.MethodPost,
		Path:        "/agents/{id}/input",
		Summary:     "Send a line of input to the agent process",
		Tags:        []string{"Agents"},
	}, func(ctx context.Context, input *SendInputInput) (*struct{}, error) {
		err := mgr.SendInput(ctx, input.ID, input.Body.Text)
		if err != nil {
			if errors.Is(err, manager.ErrAgentNotFound) {
				return nil, huma.Error404NotFound("agent not found")
			}
			if errors.Is(err, manager.ErrNoInput) {
				return nil, huma.Error409Conflict("agent has no running process")
			}
			return nil, huma.Error500InternalServerError("failed to send input", err)
		}

		return nil, nil //nolint:nilnil // huma treats nil output as 204
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-agent-output",
		Method:      http.MethodGet,
		Path:        "/agents/{id}/output",
		Summary:     "Get the agent's recent terminal output, stripped of escape sequences",
		Tags:        []string{"Agents"},
	}, func(_ context.Context, input *AgentOutputInput) (*AgentOutputOutput, error) {
		chunks, err := mgr.Output(input.ID, input.Lines)
		if err != nil {
			if errors.Is(err, manager.ErrAgentNotFound) {
				return nil, huma.Error404NotFound("agent not found")
			}
			return nil, huma.Error500InternalServerError("failed to read agent output", err)
		}

		stripped := make([]string, len(chunks))
		for i, c := range chunks {
			stripped[i] = term.Strip(c)
		}

		out := &AgentOutputOutput{}
		out.Body.Chunks = stripped
		return out, nil
	})
}
