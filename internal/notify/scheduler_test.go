package notify_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/vigil/internal/domain"
	"github.com/gosuda/vigil/internal/notify"
)

// --- fakes ---

type fakeTimer struct {
	clock  *fakeClock
	fireAt time.Time
	fn     func()
	fired  bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired {
		return false
	}
	t.fired = true
	return true
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) notify.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, fireAt: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward and fires every due timer.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.fired && !t.fireAt.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.fn()
	}
}

type recordingSink struct {
	mu    sync.Mutex
	sent  []notify.Notification
	fail  error
	calls int
}

func (s *recordingSink) Notify(_ context.Context, n notify.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.fail != nil {
		return s.fail
	}
	s.sent = append(s.sent, n)
	return nil
}

func (s *recordingSink) notifications() []notify.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]notify.Notification, len(s.sent))
	copy(out, s.sent)
	return out
}

type liveTable struct {
	mu       sync.Mutex
	statuses map[uuid.UUID]domain.AgentStatus
}

func newLiveTable() *liveTable {
	return &liveTable{statuses: make(map[uuid.UUID]domain.AgentStatus)}
}

func (l *liveTable) set(id uuid.UUID, s domain.AgentStatus) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.statuses[id] = s
}

func (l *liveTable) remove(id uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.statuses, id)
}

func (l *liveTable) lookup(id uuid.UUID) (domain.AgentStatus, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.statuses[id]
	return s, ok
}

func allFlags() notify.Flags {
	return notify.Flags{OnWaiting: true, OnComplete: true, OnError: true}
}

func transition(id uuid.UUID, prev, next domain.AgentStatus, at time.Time) domain.StatusTransition {
	return domain.StatusTransition{AgentID: id, Previous: prev, Next: next, At: at}
}

// --- tests ---

func TestSchedulerFirstStatusSuppressed(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	sink := &recordingSink{}
	live := newLiveTable()
	s := notify.NewScheduler(sink, live.lookup, allFlags(), notify.WithClock(clock))

	id := uuid.New()
	live.set(id, domain.AgentStatusCompleted)
	s.Observe(transition(id, domain.AgentStatusIdle, domain.AgentStatusCompleted, clock.Now()), "fixer", "")

	clock.Advance(time.Minute)
	assert.Empty(t, sink.notifications())
}

func TestSchedulerDebounceSuppression(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	sink := &recordingSink{}
	live := newLiveTable()
	s := notify.NewScheduler(sink, live.lookup, allFlags(), notify.WithClock(clock))

	id := uuid.New()

	// Baseline.
	live.set(id, domain.AgentStatusIdle)
	s.Observe(transition(id, "", domain.AgentStatusIdle, clock.Now()), "fixer", "")

	// idle -> waiting -> completed within one second: only the final,
	// sustained status may notify.
	live.set(id, domain.AgentStatusWaiting)
	s.Observe(transition(id, domain.AgentStatusIdle, domain.AgentStatusWaiting, clock.Now()), "fixer", "")

	clock.Advance(time.Second)
	live.set(id, domain.AgentStatusCompleted)
	s.Observe(transition(id, domain.AgentStatusWaiting, domain.AgentStatusCompleted, clock.Now()), "fixer", "all tests green")

	clock.Advance(10 * time.Second)

	got := sink.notifications()
	require.Len(t, got, 1)
	assert.Equal(t, notify.KindCompleted, got[0].Kind)
	assert.Equal(t, "fixer", got[0].AgentName)
	assert.Equal(t, "all tests green", got[0].Detail)
}

func TestSchedulerRunningIsImmediate(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	sink := &recordingSink{}
	live := newLiveTable()
	s := notify.NewScheduler(sink, live.lookup, allFlags(), notify.WithClock(clock))

	id := uuid.New()
	live.set(id, domain.AgentStatusIdle)
	s.Observe(transition(id, "", domain.AgentStatusIdle, clock.Now()), "fixer", "")

	live.set(id, domain.AgentStatusWaiting)
	s.Observe(transition(id, domain.AgentStatusIdle, domain.AgentStatusWaiting, clock.Now()), "fixer", "")

	// Work resumed before the waiting notification fired: it must be
	// cancelled, with no delay on the running side.
	live.set(id, domain.AgentStatusRunning)
	s.Observe(transition(id, domain.AgentStatusWaiting, domain.AgentStatusRunning, clock.Now()), "fixer", "")

	clock.Advance(time.Minute)
	assert.Empty(t, sink.notifications())

	// The ledger moved to running, so a later sustained waiting notifies.
	live.set(id, domain.AgentStatusWaiting)
	s.Observe(transition(id, domain.AgentStatusRunning, domain.AgentStatusWaiting, clock.Now()), "fixer", "pick an option")

	clock.Advance(10 * time.Second)
	got := sink.notifications()
	require.Len(t, got, 1)
	assert.Equal(t, notify.KindWaiting, got[0].Kind)
}

func TestSchedulerReversalCancelsPending(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	sink := &recordingSink{}
	live := newLiveTable()
	s := notify.NewScheduler(sink, live.lookup, allFlags(), notify.WithClock(clock))

	id := uuid.New()
	live.set(id, domain.AgentStatusIdle)
	s.Observe(transition(id, "", domain.AgentStatusIdle, clock.Now()), "fixer", "")

	live.set(id, domain.AgentStatusWaiting)
	s.Observe(transition(id, domain.AgentStatusIdle, domain.AgentStatusWaiting, clock.Now()), "fixer", "")

	// The transition reverses back to the notified status: the pending
	// waiting timer must be cancelled outright.
	live.set(id, domain.AgentStatusIdle)
	s.Observe(transition(id, domain.AgentStatusWaiting, domain.AgentStatusIdle, clock.Now()), "fixer", "")

	// Even if the agent has genuinely re-entered waiting by the time the old
	// deadline passes, the cancelled timer must not deliver.
	live.set(id, domain.AgentStatusWaiting)
	clock.Advance(10 * time.Second)
	assert.Empty(t, sink.notifications())
}

func TestSchedulerSameTargetKeepsDeadline(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	sink := &recordingSink{}
	live := newLiveTable()
	s := notify.NewScheduler(sink, live.lookup, allFlags(), notify.WithClock(clock))

	id := uuid.New()
	live.set(id, domain.AgentStatusRunning)
	s.Observe(transition(id, "", domain.AgentStatusRunning, clock.Now()), "fixer", "")

	live.set(id, domain.AgentStatusWaiting)
	s.Observe(transition(id, domain.AgentStatusRunning, domain.AgentStatusWaiting, clock.Now()), "fixer", "")

	// Re-observing the same target must not restart the 5s timer.
	clock.Advance(3 * time.Second)
	s.Observe(transition(id, domain.AgentStatusRunning, domain.AgentStatusWaiting, clock.Now()), "fixer", "")

	clock.Advance(2 * time.Second)
	require.Len(t, sink.notifications(), 1)
}

func TestSchedulerTransientDiscardedAtFireTime(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	sink := &recordingSink{}
	live := newLiveTable()
	s := notify.NewScheduler(sink, live.lookup, allFlags(), notify.WithClock(clock))

	id := uuid.New()
	live.set(id, domain.AgentStatusRunning)
	s.Observe(transition(id, "", domain.AgentStatusRunning, clock.Now()), "fixer", "")

	live.set(id, domain.AgentStatusWaiting)
	s.Observe(transition(id, domain.AgentStatusRunning, domain.AgentStatusWaiting, clock.Now()), "fixer", "")

	// The live status moved on without a new Observe reaching the
	// scheduler; the stale pending must discard silently.
	live.set(id, domain.AgentStatusRunning)
	clock.Advance(10 * time.Second)
	assert.Empty(t, sink.notifications())
}

func TestSchedulerMissingAgentAtFireTime(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	sink := &recordingSink{}
	live := newLiveTable()
	s := notify.NewScheduler(sink, live.lookup, allFlags(), notify.WithClock(clock))

	id := uuid.New()
	live.set(id, domain.AgentStatusRunning)
	s.Observe(transition(id, "", domain.AgentStatusRunning, clock.Now()), "fixer", "")

	live.set(id, domain.AgentStatusError)
	s.Observe(transition(id, domain.AgentStatusRunning, domain.AgentStatusError, clock.Now()), "fixer", "exit code 1")

	live.remove(id)
	clock.Advance(10 * time.Second)
	assert.Empty(t, sink.notifications())
}

func TestSchedulerFlagsGateDelivery(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	sink := &recordingSink{}
	live := newLiveTable()
	flags := notify.Flags{OnWaiting: false, OnComplete: true, OnError: true}
	s := notify.NewScheduler(sink, live.lookup, flags, notify.WithClock(clock))

	id := uuid.New()
	live.set(id, domain.AgentStatusRunning)
	s.Observe(transition(id, "", domain.AgentStatusRunning, clock.Now()), "fixer", "")

	live.set(id, domain.AgentStatusWaiting)
	s.Observe(transition(id, domain.AgentStatusRunning, domain.AgentStatusWaiting, clock.Now()), "fixer", "")

	clock.Advance(10 * time.Second)
	assert.Empty(t, sink.notifications())

	// The suppressed category still updates the ledger: observing the same
	// status again schedules nothing new.
	s.Observe(transition(id, domain.AgentStatusRunning, domain.AgentStatusWaiting, clock.Now()), "fixer", "")
	clock.Advance(10 * time.Second)
	assert.Empty(t, sink.notifications())
}

func TestSchedulerSinkFailureRecordedAsNotified(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	sink := &recordingSink{fail: errors.New("telegram down")}
	live := newLiveTable()
	s := notify.NewScheduler(sink, live.lookup, allFlags(), notify.WithClock(clock))

	id := uuid.New()
	live.set(id, domain.AgentStatusRunning)
	s.Observe(transition(id, "", domain.AgentStatusRunning, clock.Now()), "fixer", "")

	live.set(id, domain.AgentStatusError)
	s.Observe(transition(id, domain.AgentStatusRunning, domain.AgentStatusError, clock.Now()), "fixer", "boom")

	clock.Advance(10 * time.Second)
	assert.Equal(t, 1, sink.calls)

	// Failure must not trigger a retry storm: the ledger recorded the
	// status as notified.
	s.Observe(transition(id, domain.AgentStatusRunning, domain.AgentStatusError, clock.Now()), "fixer", "boom")
	clock.Advance(10 * time.Second)
	assert.Equal(t, 1, sink.calls)
}

func TestSchedulerResetCancelsPending(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	sink := &recordingSink{}
	live := newLiveTable()
	s := notify.NewScheduler(sink, live.lookup, allFlags(), notify.WithClock(clock))

	id := uuid.New()
	live.set(id, domain.AgentStatusRunning)
	s.Observe(transition(id, "", domain.AgentStatusRunning, clock.Now()), "fixer", "")

	live.set(id, domain.AgentStatusWaiting)
	s.Observe(transition(id, domain.AgentStatusRunning, domain.AgentStatusWaiting, clock.Now()), "fixer", "")

	// Manual stop forces idle and must cancel the pending waiting popup.
	live.set(id, domain.AgentStatusIdle)
	s.Reset(id, domain.AgentStatusIdle)

	clock.Advance(10 * time.Second)
	assert.Empty(t, sink.notifications())
}
