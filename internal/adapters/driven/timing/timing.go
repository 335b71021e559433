// Package timing provides the real-time implementations of the Clock and
// FrameTicker ports.
package timing

import (
	"sync"
	"time"

	"github.com/hearthvtt/hearth-cli/internal/core/ports/driven"
)

// Ensure implementations satisfy the interfaces.
var (
	_ driven.Clock       = Clock{}
	_ driven.FrameTicker = (*Ticker)(nil)
)

// Clock is the system clock.
type Clock struct{}

// Now returns the current time.
func (Clock) Now() time.Time { return time.Now() }

// AfterFunc schedules fn on the Go runtime timer wheel.
func (Clock) AfterFunc(d time.Duration, fn func()) driven.Timer {
	return time.AfterFunc(d, fn)
}

// DefaultFrameInterval approximates a canvas frame rate for a headless
// client.
const DefaultFrameInterval = 50 * time.Millisecond

// Ticker drives frame callbacks off a wall-clock interval.
type Ticker struct {
	interval time.Duration

	mu        sync.Mutex
	seq       int
	callbacks map[int]func()
	stop      chan struct{}
}

// NewTicker creates a ticker firing every interval. A non-positive interval
// uses DefaultFrameInterval.
func NewTicker(interval time.Duration) *Ticker {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &Ticker{
		interval:  interval,
		callbacks: make(map[int]func()),
	}
}

// OnFrame registers fn to run every frame until the returned cancel function
// is called. The ticker goroutine starts with the first registration.
func (t *Ticker) OnFrame(fn func()) func() {
	t.mu.Lock()
	t.seq++
	id := t.seq
	t.callbacks[id] = fn
	if t.stop == nil {
		t.stop = make(chan struct{})
		go t.run(t.stop)
	}
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.callbacks, id)
		if len(t.callbacks) == 0 && t.stop != nil {
			close(t.stop)
			t.stop = nil
		}
	}
}

func (t *Ticker) run(stop chan struct{}) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			t.mu.Lock()
			fns := make([]func(), 0, len(t.callbacks))
			for _, fn := range t.callbacks {
				fns = append(fns, fn)
			}
			t.mu.Unlock()
			for _, fn := range fns {
				fn()
			}
		}
	}
}
