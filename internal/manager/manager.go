package manager

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/vigil/internal/detect"
	"github.com/gosuda/vigil/internal/domain"
	"github.com/gosuda/vigil/internal/term"
)

// ErrAgentNotFound is returned when an agent ID is not registered.
var ErrAgentNotFound = errors.New("manager: agent not found") //nolint:gochecknoglobals // sentinel error

// ErrNoInput is returned when an agent has no attached input channel.
var ErrNoInput = errors.New("manager: agent has no attached input") //nolint:gochecknoglobals // sentinel error

// stopGrace is how long after a manual stop the detector stays muted, so a
// stopping process's final output bursts cannot flip the forced idle status.
const stopGrace = 3 * time.Second

// pollInterval drives the quiescence re-evaluation loop. It must be shorter
// than detect.QuietThreshold or silent completions are detected late.
const pollInterval = 1 * time.Second

// maxDetail caps the detail text carried into notifications.
const maxDetail = 160

// StatusObserver receives status transitions for debounced notification.
type StatusObserver interface {
	Observe(t domain.StatusTransition, name, detail string)
	Reset(agentID uuid.UUID, status domain.AgentStatus)
	Forget(agentID uuid.UUID)
}

// BroadcastFunc publishes a transition to live subscribers (WebSocket, pub/sub).
type BroadcastFunc func(ctx context.Context, t domain.StatusTransition)

// InputFunc forwards one line of input to a live agent process.
type InputFunc func(ctx context.Context, text string) error

// agentState is everything the manager tracks per agent.
type agentState struct {
	agent *domain.Agent
	ring  *term.Ring
	input InputFunc

	// exited is set when the process reported its exit code and cleared when
	// a new process attaches. While set, the heuristic detector is skipped:
	// there is no live process whose status could contradict the exit code.
	exited bool
}

// Manager owns the agent registry: one record and one output ring per agent.
// All mutation goes through its mutex, so detection for a given agent is
// strictly ordered by output arrival.
type Manager struct {
	mu       sync.Mutex
	agents   map[uuid.UUID]*agentState
	detector *detect.Detector
	observer StatusObserver

	repo      domain.AgentRepository
	broadcast BroadcastFunc
	now       func() time.Time
	ringSize  int
}

// Option configures optional Manager parameters.
type Option func(*Manager)

// WithRepository persists agents and output tails through repo.
func WithRepository(repo domain.AgentRepository) Option {
	return func(m *Manager) { m.repo = repo }
}

// WithBroadcast publishes every transition through fn.
func WithBroadcast(fn BroadcastFunc) Option {
	return func(m *Manager) { m.broadcast = fn }
}

// WithNow replaces the time source, for tests.
func WithNow(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithRingSize overrides the per-agent output buffer capacity.
func WithRingSize(n int) Option {
	return func(m *Manager) { m.ringSize = n }
}

// New creates a Manager classifying through detector and reporting
// transitions to observer.
func New(detector *detect.Detector, observer StatusObserver, opts ...Option) *Manager {
	m := &Manager{
		agents:   make(map[uuid.UUID]*agentState),
		detector: detector,
		observer: observer,
		now:      time.Now,
		ringSize: term.DefaultRingSize,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create registers a new agent in the idle state.
func (m *Manager) Create(ctx context.Context, name, agentType string) (*domain.Agent, error) {
	now := m.now()
	agent := &domain.Agent{
		ID:           uuid.New(),
		Name:         name,
		AgentType:    agentType,
		Status:       domain.AgentStatusIdle,
		LastActivity: now,
		CreatedAt:    now,
	}

	if m.repo != nil {
		if err := m.repo.Create(ctx, agent); err != nil {
			return nil, fmt.Errorf("manager.Manager.Create: %w", err)
		}
	}

	m.mu.Lock()
	m.agents[agent.ID] = &agentState{
		agent: agent,
		ring:  term.NewRing(m.ringSize),
	}
	m.mu.Unlock()

	log.Info().Str("agent_id", agent.ID.String()).Str("name", name).Str("type", agentType).Msg("agent created")

	snapshot := *agent
	return &snapshot, nil
}

// Restore re-registers a persisted agent after a restart. Liveness of the
// previous process is unverifiable, so the status is forced to idle and the
// saved output tail is reloaded for context.
func (m *Manager) Restore(ctx context.Context, agent *domain.Agent) error {
	restored := *agent
	restored.Status = domain.AgentStatusIdle
	restored.Error = ""
	restored.SuppressUntil = time.Time{}

	ring := term.NewRing(m.ringSize)
	if m.repo != nil {
		tail, err := m.repo.LoadOutputTail(ctx, restored.ID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("manager.Manager.Restore: load output tail: %w", err)
		}
		ring.Replace(tail)

		if restored.Status != agent.Status {
			if err := m.repo.UpdateStatus(ctx, restored.ID, restored.Status, ""); err != nil {
				return fmt.Errorf("manager.Manager.Restore: update status: %w", err)
			}
		}
	}

	m.mu.Lock()
	m.agents[restored.ID] = &agentState{agent: &restored, ring: ring}
	m.mu.Unlock()

	m.observer.Reset(restored.ID, restored.Status)

	log.Info().Str("agent_id", restored.ID.String()).Str("name", restored.Name).Msg("agent restored as idle")
	return nil
}

// AttachInput wires the input channel of a live process to the agent.
func (m *Manager) AttachInput(agentID uuid.UUID, input InputFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.agents[agentID]
	if !ok {
		return fmt.Errorf("manager.Manager.AttachInput: %w", ErrAgentNotFound)
	}
	st.input = input
	st.exited = false
	return nil
}

// HandleOutput ingests one output chunk: buffer it, classify the window, and
// apply any resulting transition. During the post-stop grace period output is
// buffered but not classified.
func (m *Manager) HandleOutput(ctx context.Context, agentID uuid.UUID, chunk string) error {
	m.mu.Lock()

	st, ok := m.agents[agentID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("manager.Manager.HandleOutput: %w", ErrAgentNotFound)
	}

	now := m.now()
	sinceActivity := now.Sub(st.agent.LastActivity)

	st.ring.Append(chunk)
	st.agent.LastActivity = now

	if now.Before(st.agent.SuppressUntil) {
		m.mu.Unlock()
		return nil
	}

	// Late-flushed output from a process that already reported its exit code
	// is buffered for display only; the exit code stays authoritative.
	if st.exited {
		m.mu.Unlock()
		return nil
	}

	win := detect.Window{
		Last:     chunk,
		Recent:   st.ring.Last(detect.RecentWindow),
		Extended: st.ring.Last(detect.ExtendedWindow),
	}
	next := m.detector.Detect(win, st.agent.Status, sinceActivity)

	t, name, detail, changed := m.transitionLocked(st, next, summarize(chunk))
	m.mu.Unlock()

	if changed {
		m.announce(ctx, t, name, detail)
	}
	return nil
}

// HandleExit records process termination. The exit code is authoritative and
// bypasses the heuristic detector entirely.
func (m *Manager) HandleExit(ctx context.Context, agentID uuid.UUID, exitCode int) error {
	m.mu.Lock()

	st, ok := m.agents[agentID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("manager.Manager.HandleExit: %w", ErrAgentNotFound)
	}

	next := domain.AgentStatusCompleted
	detail := ""
	if exitCode != 0 {
		next = domain.AgentStatusError
		detail = fmt.Sprintf("exit code %d", exitCode)
	}

	st.input = nil
	st.exited = true
	st.agent.LastActivity = m.now()

	t, name, d, changed := m.transitionLocked(st, next, detail)
	m.mu.Unlock()

	if changed {
		m.announce(ctx, t, name, d)
	}
	return nil
}

// Stop forces an agent to idle after a manual stop and mutes detection for
// the grace period. No notification is produced for a user-initiated stop.
func (m *Manager) Stop(ctx context.Context, agentID uuid.UUID) error {
	m.mu.Lock()

	st, ok := m.agents[agentID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("manager.Manager.Stop: %w", ErrAgentNotFound)
	}

	now := m.now()
	prev := st.agent.Status
	st.agent.Status = domain.AgentStatusIdle
	st.agent.Error = ""
	st.agent.SuppressUntil = now.Add(stopGrace)
	st.input = nil

	t := domain.StatusTransition{
		AgentID:  agentID,
		Previous: prev,
		Next:     domain.AgentStatusIdle,
		At:       now,
	}
	m.mu.Unlock()

	m.observer.Reset(agentID, domain.AgentStatusIdle)
	m.persistStatus(ctx, agentID, domain.AgentStatusIdle, "")
	if m.broadcast != nil && t.Previous != t.Next {
		m.broadcast(ctx, t)
	}

	log.Info().Str("agent_id", agentID.String()).Msg("agent stopped")
	return nil
}

// SendInput forwards text to the agent process and reflects the resumed
// activity immediately.
func (m *Manager) SendInput(ctx context.Context, agentID uuid.UUID, text string) error {
	m.mu.Lock()

	st, ok := m.agents[agentID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("manager.Manager.SendInput: %w", ErrAgentNotFound)
	}

	input := st.input
	if input == nil {
		m.mu.Unlock()
		return fmt.Errorf("manager.Manager.SendInput: %w", ErrNoInput)
	}

	st.agent.LastActivity = m.now()
	t, name, detail, changed := m.transitionLocked(st, domain.AgentStatusRunning, "")
	m.mu.Unlock()

	if err := input(ctx, text); err != nil {
		return fmt.Errorf("manager.Manager.SendInput: %w", err)
	}

	if changed {
		m.announce(ctx, t, name, detail)
	}
	return nil
}

// Remove deletes an agent and all its tracked state.
func (m *Manager) Remove(ctx context.Context, agentID uuid.UUID) error {
	m.mu.Lock()
	_, ok := m.agents[agentID]
	if ok {
		delete(m.agents, agentID)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("manager.Manager.Remove: %w", ErrAgentNotFound)
	}

	m.observer.Forget(agentID)

	if m.repo != nil {
		if err := m.repo.Delete(ctx, agentID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("manager.Manager.Remove: %w", err)
		}
	}

	log.Info().Str("agent_id", agentID.String()).Msg("agent removed")
	return nil
}

// Get returns a snapshot of one agent.
func (m *Manager) Get(agentID uuid.UUID) (*domain.Agent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.agents[agentID]
	if !ok {
		return nil, false
	}
	snapshot := *st.agent
	return &snapshot, true
}

// List returns snapshots of all agents ordered by creation time.
func (m *Manager) List() []*domain.Agent {
	m.mu.Lock()
	agents := make([]*domain.Agent, 0, len(m.agents))
	for _, st := range m.agents {
		snapshot := *st.agent
		agents = append(agents, &snapshot)
	}
	m.mu.Unlock()

	sort.Slice(agents, func(i, j int) bool {
		if agents[i].CreatedAt.Equal(agents[j].CreatedAt) {
			return agents[i].ID.String() < agents[j].ID.String()
		}
		return agents[i].CreatedAt.Before(agents[j].CreatedAt)
	})
	return agents
}

// Output returns up to n most recent output chunks for an agent.
func (m *Manager) Output(agentID uuid.UUID, n int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.agents[agentID]
	if !ok {
		return nil, fmt.Errorf("manager.Manager.Output: %w", ErrAgentNotFound)
	}
	return st.ring.Last(n), nil
}

// Live reports an agent's current status. Shaped for notify.LiveStatusFunc.
func (m *Manager) Live(agentID uuid.UUID) (domain.AgentStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.agents[agentID]
	if !ok {
		return "", false
	}
	return st.agent.Status, true
}

// Run drives the quiescence loop: agents that go silent at a prompt only
// transition to completed if someone re-evaluates them during the silence.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Poll(ctx)
		}
	}
}

// Poll re-runs detection for every agent without a fresh chunk. The Last
// slot is left empty so a stale spinner frame cannot pin the status to
// running after output has ceased.
func (m *Manager) Poll(ctx context.Context) {
	type result struct {
		t      domain.StatusTransition
		name   string
		detail string
	}

	m.mu.Lock()
	now := m.now()
	var results []result
	for _, st := range m.agents {
		if st.agent.Status == domain.AgentStatusIdle || now.Before(st.agent.SuppressUntil) {
			continue
		}
		// An exit code already settled this agent's status; re-running the
		// detector over the dead process's tail could only overturn it.
		if st.exited {
			continue
		}
		if st.ring.Len() == 0 {
			continue
		}

		win := detect.Window{
			Recent:   st.ring.Last(detect.RecentWindow),
			Extended: st.ring.Last(detect.ExtendedWindow),
		}
		next := m.detector.Detect(win, st.agent.Status, now.Sub(st.agent.LastActivity))

		if t, name, detail, changed := m.transitionLocked(st, next, ""); changed {
			results = append(results, result{t: t, name: name, detail: detail})
		}
	}
	m.mu.Unlock()

	for _, r := range results {
		m.announce(ctx, r.t, r.name, r.detail)
	}
}

// SaveAll persists every agent's output tail. Called on graceful shutdown.
func (m *Manager) SaveAll(ctx context.Context) error {
	if m.repo == nil {
		return nil
	}

	m.mu.Lock()
	type save struct {
		id   uuid.UUID
		tail []string
	}
	saves := make([]save, 0, len(m.agents))
	for id, st := range m.agents {
		saves = append(saves, save{id: id, tail: st.ring.All()})
	}
	m.mu.Unlock()

	var lastErr error
	for _, s := range saves {
		if err := m.repo.SaveOutputTail(ctx, s.id, s.tail); err != nil {
			log.Error().Err(err).Str("agent_id", s.id.String()).Msg("failed to save output tail")
			lastErr = fmt.Errorf("manager.Manager.SaveAll: %w", err)
		}
	}
	return lastErr
}

// transitionLocked applies a status change to the in-memory record. Caller
// holds m.mu. Side effects (persistence, broadcast, notification) happen in
// announce, outside the lock.
func (m *Manager) transitionLocked(st *agentState, next domain.AgentStatus, detail string) (domain.StatusTransition, string, string, bool) {
	prev := st.agent.Status
	if next == prev {
		return domain.StatusTransition{}, "", "", false
	}

	st.agent.Status = next
	if next == domain.AgentStatusError {
		st.agent.Error = detail
	} else {
		st.agent.Error = ""
	}

	t := domain.StatusTransition{
		AgentID:  st.agent.ID,
		Previous: prev,
		Next:     next,
		At:       m.now(),
	}
	return t, st.agent.Name, detail, true
}

// announce pushes a committed transition to persistence, live subscribers,
// and the notification pipeline.
func (m *Manager) announce(ctx context.Context, t domain.StatusTransition, name, detail string) {
	m.persistStatus(ctx, t.AgentID, t.Next, detail)

	if m.broadcast != nil {
		m.broadcast(ctx, t)
	}

	m.observer.Observe(t, name, detail)

	log.Debug().
		Str("agent_id", t.AgentID.String()).
		Str("previous", string(t.Previous)).
		Str("next", string(t.Next)).
		Msg("status transition")
}

func (m *Manager) persistStatus(ctx context.Context, agentID uuid.UUID, status domain.AgentStatus, errDetail string) {
	if m.repo == nil {
		return
	}
	if err := m.repo.UpdateStatus(ctx, agentID, status, errDetail); err != nil {
		log.Error().Err(err).Str("agent_id", agentID.String()).Msg("failed to persist agent status")
	}
}

// summarize reduces an output chunk to a short notification detail line.
func summarize(chunk string) string {
	s := strings.TrimSpace(term.Strip(chunk))
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}
	if len(s) > maxDetail {
		// Cut on a rune boundary; the window text is full of multi-byte glyphs.
		cut := maxDetail
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	return s
}
