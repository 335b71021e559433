package driven

import "time"

// Clock abstracts the time source so eviction debounce and scheduling are
// testable without real waits.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc schedules fn to run after d and returns the timer.
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a cancellable pending callback.
type Timer interface {
	// Stop cancels the timer. Reports whether the callback was prevented
	// from running.
	Stop() bool

	// Reset reschedules the timer for d from now.
	Reset(d time.Duration) bool
}

// FrameTicker invokes a callback once per animation frame. The perception
// scheduler drains its pending flag set on each invocation.
type FrameTicker interface {
	// OnFrame registers fn to run every frame until the returned cancel
	// function is called.
	OnFrame(fn func()) (cancel func())
}
