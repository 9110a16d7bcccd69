package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/vigil/internal/domain"
)

// NotifyDelay is how long a non-running transition must hold before it
// notifies. It absorbs the waiting/completed oscillation the heuristic
// detector produces during prompt re-renders.
const NotifyDelay = 5 * time.Second

// Flags gate notification delivery per category.
type Flags struct {
	OnWaiting  bool
	OnComplete bool
	OnError    bool
}

// LiveStatusFunc reads an agent's current status at timer-fire time. The
// second return is false when the agent no longer exists.
type LiveStatusFunc func(agentID uuid.UUID) (domain.AgentStatus, bool)

// pending is the at-most-one scheduled notification per agent.
type pending struct {
	target domain.AgentStatus
	fireAt time.Time
	timer  Timer
	seq    uint64
}

// Scheduler debounces status transitions into notifications. Per agent it
// keeps the last-notified status and at most one pending timer. Transitions
// to running are reflected immediately; everything else waits NotifyDelay
// and is re-validated against the live status before firing.
type Scheduler struct {
	mu           sync.Mutex
	sink         Sink
	live         LiveStatusFunc
	flags        Flags
	clock        Clock
	delay        time.Duration
	seq          uint64
	lastNotified map[uuid.UUID]domain.AgentStatus
	pendings     map[uuid.UUID]*pending
}

// SchedulerOption configures optional Scheduler parameters.
type SchedulerOption func(*Scheduler)

// WithClock replaces the system clock, for deterministic tests.
func WithClock(c Clock) SchedulerOption {
	return func(s *Scheduler) { s.clock = c }
}

// WithDelay overrides NotifyDelay, for tests.
func WithDelay(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.delay = d }
}

// NewScheduler creates a Scheduler delivering through sink, re-validating
// fire-time status through live.
func NewScheduler(sink Sink, live LiveStatusFunc, flags Flags, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		sink:         sink,
		live:         live,
		flags:        flags,
		clock:        SystemClock(),
		delay:        NotifyDelay,
		lastNotified: make(map[uuid.UUID]domain.AgentStatus),
		pendings:     make(map[uuid.UUID]*pending),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Observe feeds one detected status transition into the debounce pipeline.
// name and detail are carried into the notification if it survives.
func (s *Scheduler) Observe(t domain.StatusTransition, name, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	last, seen := s.lastNotified[t.AgentID]

	// First status ever observed for this agent is the baseline; notifying
	// it would spam every UI subscriber on startup.
	if !seen {
		s.lastNotified[t.AgentID] = t.Next
		return
	}

	if t.Next == last {
		// The transition reversed back to the notified status; any pending
		// timer aimed elsewhere is moot.
		s.cancelLocked(t.AgentID)
		return
	}

	// Resumed activity must be reflected without lag: it supersedes any
	// stale "waiting"/"done" signal that might otherwise fire late.
	if t.Next == domain.AgentStatusRunning {
		s.cancelLocked(t.AgentID)
		s.lastNotified[t.AgentID] = domain.AgentStatusRunning
		return
	}

	// A pending timer already aimed at this status keeps its deadline.
	if p, ok := s.pendings[t.AgentID]; ok && p.target == t.Next {
		return
	}

	s.cancelLocked(t.AgentID)

	s.seq++
	seq := s.seq
	agentID := t.AgentID
	target := t.Next
	p := &pending{
		target: target,
		fireAt: s.clock.Now().Add(s.delay),
		seq:    seq,
	}
	p.timer = s.clock.AfterFunc(s.delay, func() {
		s.fire(agentID, target, name, detail, seq)
	})
	s.pendings[agentID] = p
}

// Reset cancels any pending notification and pins the ledger to status
// without notifying. Used when the user manually forces a status.
func (s *Scheduler) Reset(agentID uuid.UUID, status domain.AgentStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked(agentID)
	s.lastNotified[agentID] = status
}

// Forget drops all scheduler state for a removed agent.
func (s *Scheduler) Forget(agentID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked(agentID)
	delete(s.lastNotified, agentID)
}

// fire runs when a pending notification's delay elapses.
func (s *Scheduler) fire(agentID uuid.UUID, target domain.AgentStatus, name, detail string, seq uint64) {
	s.mu.Lock()

	p, ok := s.pendings[agentID]
	if !ok || p.seq != seq {
		// Replaced or cancelled while this callback was in flight.
		s.mu.Unlock()
		return
	}
	delete(s.pendings, agentID)

	// Re-read the live status: if the condition was transient, or the agent
	// was removed concurrently, discard silently.
	cur, alive := s.live(agentID)
	if !alive || cur != target {
		s.mu.Unlock()
		return
	}

	// Record as notified even if delivery fails below; retry storms are
	// worse than one missed popup.
	s.lastNotified[agentID] = target
	s.mu.Unlock()

	kind, notifiable := kindFor(target)
	if !notifiable || !s.enabled(kind) {
		return
	}

	n := Notification{
		AgentID:   agentID,
		AgentName: name,
		Kind:      kind,
		Detail:    detail,
	}
	if err := s.sink.Notify(context.Background(), n); err != nil {
		log.Error().Err(err).
			Str("agent_id", agentID.String()).
			Str("kind", string(kind)).
			Msg("notification delivery failed")
	}
}

func (s *Scheduler) enabled(kind Kind) bool {
	switch kind {
	case KindWaiting:
		return s.flags.OnWaiting
	case KindCompleted:
		return s.flags.OnComplete
	case KindError:
		return s.flags.OnError
	default:
		return false
	}
}

// cancelLocked stops and removes the pending notification, if any. Safe to
// call when none exists. Caller holds s.mu.
func (s *Scheduler) cancelLocked(agentID uuid.UUID) {
	if p, ok := s.pendings[agentID]; ok {
		p.timer.Stop()
		delete(s.pendings, agentID)
	}
}
