package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/vigil/internal/manager"
)

// ErrNotLaunched is returned when no container is tracked for an agent.
var ErrNotLaunched = errors.New("runtime: agent has no container") //nolint:gochecknoglobals // sentinel error

// readChunkSize is the attach-stream read buffer. One read is one output
// chunk; terminal emulators flush in bursts well under this size.
const readChunkSize = 4096

// stopTimeout is how long Docker waits before SIGKILL on stop.
const stopTimeout = 10 // seconds

// Sink receives the output, exit, and input wiring of launched agents.
// Satisfied by manager.Manager.
type Sink interface {
	HandleOutput(ctx context.Context, agentID uuid.UUID, chunk string) error
	HandleExit(ctx context.Context, agentID uuid.UUID, exitCode int) error
	AttachInput(agentID uuid.UUID, input manager.InputFunc) error
}

// LaunchOptions configures a new agent container.
type LaunchOptions struct {
	AgentID     uuid.UUID
	Image       string
	Cmd         []string
	WorkDir     string
	VolumeName  string // optional persistent workspace volume
	Environment map[string]string
}

// DockerRuntime launches agent CLIs in TTY containers and streams their
// terminal output into the sink. The TTY gives a single raw stream with the
// escape sequences the detector's stripper expects.
type DockerRuntime struct {
	client       *client.Client
	sink         Sink
	imageDefault string
	resources    Resources

	mu         sync.Mutex
	containers map[uuid.UUID]string
}

// NewDockerRuntime connects to the Docker daemon at host. The resource limit
// strings are parsed here so a bad limit fails startup, not the first launch.
func NewDockerRuntime(host, imageDefault, cpuLimit, memLimit string, sink Sink) (*DockerRuntime, error) {
	resources, err := ParseResources(cpuLimit, memLimit)
	if err != nil {
		return nil, fmt.Errorf("runtime.NewDockerRuntime: %w", err)
	}

	opts := []client.Opt{
		client.WithHost(host),
		client.WithAPIVersionNegotiation(),
	}

	c, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("runtime.NewDockerRuntime: %w", err)
	}

	return &DockerRuntime{
		client:       c,
		sink:         sink,
		imageDefault: imageDefault,
		resources:    resources,
		containers:   make(map[uuid.UUID]string),
	}, nil
}

// Launch creates and starts a TTY container for the agent, attaches to its
// stream, and wires output, exit code, and stdin back to the sink.
func (r *DockerRuntime) Launch(ctx context.Context, opts LaunchOptions) (string, error) {
	containerID, err := r.createContainer(ctx, opts)
	if err != nil {
		return "", err
	}

	attach, err := r.client.ContainerAttach(ctx, containerID, container.AttachOptions{
		Stream: true,
		Stdin:  true,
		Stdout: true,
		Stderr: true,
	})
	if err != nil {
		r.removeContainer(containerID)
		return "", fmt.Errorf("runtime.DockerRuntime.Launch: attach: %w", err)
	}

	if err := r.client.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		attach.Close()
		r.removeContainer(containerID)
		return "", fmt.Errorf("runtime.DockerRuntime.Launch: start: %w", err)
	}

	r.mu.Lock()
	r.containers[opts.AgentID] = containerID
	r.mu.Unlock()

	if err := r.sink.AttachInput(opts.AgentID, func(_ context.Context, text string) error {
		if _, writeErr := attach.Conn.Write([]byte(text + "\n")); writeErr != nil {
			return fmt.Errorf("runtime: write stdin: %w", writeErr)
		}
		return nil
	}); err != nil {
		attach.Close()
		r.removeContainer(containerID)
		return "", fmt.Errorf("runtime.DockerRuntime.Launch: %w", err)
	}

	go r.pumpOutput(opts.AgentID, attach.Reader)
	go r.waitExit(opts.AgentID, containerID, attach)

	log.Info().
		Str("agent_id", opts.AgentID.String()).
		Str("container_id", containerID).
		Msg("agent container launched")

	return containerID, nil
}

// Stop stops and removes the agent's container. Used after a manual stop.
func (r *DockerRuntime) Stop(ctx context.Context, agentID uuid.UUID) error {
	r.mu.Lock()
	containerID, ok := r.containers[agentID]
	if ok {
		delete(r.containers, agentID)
	}
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("runtime.DockerRuntime.Stop: %w", ErrNotLaunched)
	}

	timeout := stopTimeout
	if err := r.client.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &timeout}); err != nil {
		return fmt.Errorf("runtime.DockerRuntime.Stop: %w", err)
	}

	if err := r.client.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true}); err != nil {
		return fmt.Errorf("runtime.DockerRuntime.Stop: remove: %w", err)
	}

	return nil
}

// Close closes the Docker client.
func (r *DockerRuntime) Close() error {
	if err := r.client.Close(); err != nil {
		return fmt.Errorf("runtime.DockerRuntime.Close: %w", err)
	}
	return nil
}

func (r *DockerRuntime) createContainer(ctx context.Context, opts LaunchOptions) (string, error) {
	image := opts.Image
	if image == "" {
		image = r.imageDefault
	}

	env := make([]string, 0, len(opts.Environment)+1)
	env = append(env, "VIGIL_AGENT_ID="+opts.AgentID.String())
	for k, v := range opts.Environment {
		env = append(env, k+"="+v)
	}

	cfg := &container.Config{
		Image:        image,
		Env:          env,
		Cmd:          opts.Cmd,
		WorkingDir:   opts.WorkDir,
		Tty:          true,
		OpenStdin:    true,
		AttachStdin:  true,
		AttachStdout: true,
		AttachStderr: true,
	}

	hostCfg := &container.HostConfig{
		Resources: container.Resources{
			Memory:   r.resources.Memory,
			CPUQuota: r.resources.CPUQuota,
		},
	}
	if opts.VolumeName != "" {
		hostCfg.Mounts = []mount.Mount{
			{
				Type:   mount.TypeVolume,
				Source: opts.VolumeName,
				Target: opts.WorkDir,
			},
		}
	}

	name := "vigil-agent-" + opts.AgentID.String()

	resp, err := r.client.ContainerCreate(ctx, cfg, hostCfg, &network.NetworkingConfig{}, nil, name)
	if err != nil {
		return "", fmt.Errorf("runtime.DockerRuntime.Launch: create: %w", err)
	}

	return resp.ID, nil
}

// pumpOutput reads the raw TTY stream in chunks and feeds each one to the
// sink until the stream closes.
func (r *DockerRuntime) pumpOutput(agentID uuid.UUID, reader io.Reader) {
	buf := make([]byte, readChunkSize)
	for {
		n, err := reader.Read(buf)
		if n > 0 {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if outErr := r.sink.HandleOutput(ctx, agentID, string(buf[:n])); outErr != nil {
				log.Warn().Err(outErr).Str("agent_id", agentID.String()).Msg("output chunk dropped")
			}
			cancel()
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debug().Err(err).Str("agent_id", agentID.String()).Msg("output stream closed")
			}
			return
		}
	}
}

// waitExit blocks until the container exits, then reports the exit code.
func (r *DockerRuntime) waitExit(agentID uuid.UUID, containerID string, attach types.HijackedResponse) {
	defer attach.Close()

	ctx := context.Background()
	waitCh, errCh := r.client.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)

	var exitCode int
	select {
	case result := <-waitCh:
		exitCode = int(result.StatusCode)
		if result.Error != nil {
			log.Error().Str("container_id", containerID).Str("error", result.Error.Message).Msg("container wait error")
		}
	case err := <-errCh:
		// The daemon connection failed; liveness is unknowable, treat as
		// abnormal termination.
		log.Error().Err(err).Str("container_id", containerID).Msg("container wait failed")
		exitCode = -1
	}

	r.mu.Lock()
	if cur, ok := r.containers[agentID]; ok && cur == containerID {
		delete(r.containers, agentID)
	} else {
		// Stop already claimed this container; the forced-idle status stands.
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	exitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.sink.HandleExit(exitCtx, agentID, exitCode); err != nil {
		log.Warn().Err(err).Str("agent_id", agentID.String()).Msg("exit report dropped")
	}

	r.removeContainer(containerID)
}

func (r *DockerRuntime) removeContainer(containerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := r.client.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true}); err != nil {
		log.Warn().Err(err).Str("container_id", containerID).Msg("container remove failed")
	}
}
