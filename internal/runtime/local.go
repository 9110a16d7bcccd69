package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// LocalRuntime runs agent CLIs as plain host processes over pipes. Meant for
// development and tests where no Docker daemon is available; output is not a
// TTY stream, so agents that suppress spinners when unattached will lean on
// the completion and prompt patterns instead.
type LocalRuntime struct {
	sink Sink

	mu    sync.Mutex
	procs map[uuid.UUID]*exec.Cmd
}

// NewLocalRuntime creates a runtime that launches processes on the host.
func NewLocalRuntime(sink Sink) *LocalRuntime {
	return &LocalRuntime{
		sink:  sink,
		procs: make(map[uuid.UUID]*exec.Cmd),
	}
}

// Launch starts the agent process and wires output, exit code, and stdin back
// to the sink. Returns the process PID as the runtime identifier.
func (r *LocalRuntime) Launch(ctx context.Context, opts LaunchOptions) (string, error) {
	if len(opts.Cmd) == 0 {
		return "", errors.New("runtime.LocalRuntime.Launch: empty command")
	}

	cmd := exec.Command(opts.Cmd[0], opts.Cmd[1:]...) //nolint:gosec // command comes from the operator
	cmd.Dir = opts.WorkDir
	cmd.Env = append(os.Environ(), "VIGIL_AGENT_ID="+opts.AgentID.String())
	for k, v := range opts.Environment {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return "", fmt.Errorf("runtime.LocalRuntime.Launch: stdin: %w", err)
	}

	// Stdout and stderr share one pipe so chunk ordering matches what a
	// terminal would show.
	outR, outW, err := os.Pipe()
	if err != nil {
		return "", fmt.Errorf("runtime.LocalRuntime.Launch: pipe: %w", err)
	}
	cmd.Stdout = outW
	cmd.Stderr = outW

	if err := cmd.Start(); err != nil {
		_ = outR.Close()
		_ = outW.Close()
		return "", fmt.Errorf("runtime.LocalRuntime.Launch: start: %w", err)
	}
	// The child holds its own copy of the write end.
	_ = outW.Close()

	r.mu.Lock()
	r.procs[opts.AgentID] = cmd
	r.mu.Unlock()

	if err := r.sink.AttachInput(opts.AgentID, func(_ context.Context, text string) error {
		if _, writeErr := stdin.Write([]byte(text + "\n")); writeErr != nil {
			return fmt.Errorf("runtime: write stdin: %w", writeErr)
		}
		return nil
	}); err != nil {
		_ = cmd.Process.Kill()
		_ = outR.Close()
		return "", fmt.Errorf("runtime.LocalRuntime.Launch: %w", err)
	}

	go r.pumpOutput(opts.AgentID, outR)
	go r.waitExit(opts.AgentID, cmd, outR)

	log.Info().
		Str("agent_id", opts.AgentID.String()).
		Int("pid", cmd.Process.Pid).
		Msg("agent process launched")

	return strconv.Itoa(cmd.Process.Pid), nil
}

// Stop kills the agent's process. Used after a manual stop.
func (r *LocalRuntime) Stop(_ context.Context, agentID uuid.UUID) error {
	r.mu.Lock()
	cmd, ok := r.procs[agentID]
	if ok {
		delete(r.procs, agentID)
	}
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("runtime.LocalRuntime.Stop: %w", ErrNotLaunched)
	}

	if err := cmd.Process.Kill(); err != nil {
		return fmt.Errorf("runtime.LocalRuntime.Stop: %w", err)
	}
	return nil
}

// pumpOutput reads the process output in chunks and feeds each one to the
// sink until the pipe closes.
func (r *LocalRuntime) pumpOutput(agentID uuid.UUID, reader io.Reader) {
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
				log.Debug().Err(err).Str("agent_id", agentID.String()).Msg("output pipe closed")
			}
			return
		}
	}
}

// waitExit blocks until the process exits, then reports the exit code.
func (r *LocalRuntime) waitExit(agentID uuid.UUID, cmd *exec.Cmd, outR *os.File) {
	err := cmd.Wait()
	_ = outR.Close()

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			log.Error().Err(err).Str("agent_id", agentID.String()).Msg("process wait failed")
			exitCode = -1
		}
	}

	r.mu.Lock()
	if cur, ok := r.procs[agentID]; ok && cur == cmd {
		delete(r.procs, agentID)
	} else {
		// Stop already claimed this process; the forced-idle status stands.
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if reportErr := r.sink.HandleExit(ctx, agentID, exitCode); reportErr != nil {
		log.Warn().Err(reportErr).Str("agent_id", agentID.String()).Msg("exit report dropped")
	}
}
