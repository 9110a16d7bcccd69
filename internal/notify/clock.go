package notify

import "time"

// Timer is a cancellable scheduled callback. Stop is idempotent.
type Timer interface {
	// Stop cancels the timer. It reports false when the timer already fired
	// or was already stopped.
	Stop() bool
}

// Clock abstracts wall time and timer scheduling so the scheduler's debounce
// logic is deterministic under test.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// SystemClock returns a Clock backed by the runtime timers.
func SystemClock() Clock { return systemClock{} }
