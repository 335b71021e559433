package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/hearthvtt/hearth-cli/internal/core/ports/driven"
)

// Ensure Clock implements the interface.
var _ driven.Clock = (*Clock)(nil)

// Clock is a manually advanced time source for testing timer-driven
// behavior, such as compendium cache eviction, without real waits.
type Clock struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers map[int]*fakeTimer
}

// NewClock creates a clock frozen at start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start, timers: make(map[int]*fakeTimer)}
}

// Now returns the clock's current time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc schedules fn to run when the clock advances past d.
func (c *Clock) AfterFunc(d time.Duration, fn func()) driven.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &fakeTimer{clock: c, id: c.seq, at: c.now.Add(d), fn: fn}
	c.timers[t.id] = t
	return t
}

// Advance moves the clock forward, firing due timers in deadline order.
// Callbacks run outside the clock lock so they may schedule new timers.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for id, t := range c.timers {
		if !t.at.After(c.now) {
			due = append(due, t)
			delete(c.timers, id)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	c.mu.Unlock()
	for _, t := range due {
		t.fn()
	}
}

type fakeTimer struct {
	clock *Clock
	id    int
	at    time.Time
	fn    func()
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	_, pending := t.clock.timers[t.id]
	delete(t.clock.timers, t.id)
	return pending
}

func (t *fakeTimer) Reset(d time.Duration) bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	_, pending := t.clock.timers[t.id]
	t.at = t.clock.now.Add(d)
	t.clock.timers[t.id] = t
	return pending
}

// Ensure FrameTicker implements the interface.
var _ driven.FrameTicker = (*FrameTicker)(nil)

// FrameTicker is a manually pumped frame source for testing the perception
// scheduler.
type FrameTicker struct {
	mu        sync.Mutex
	callbacks map[int]func()
	seq       int
}

// NewFrameTicker creates an idle ticker; call Pump to simulate frames.
func NewFrameTicker() *FrameTicker {
	return &FrameTicker{callbacks: make(map[int]func())}
}

// OnFrame registers fn to run on every Pump.
func (f *FrameTicker) OnFrame(fn func()) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	id := f.seq
	f.callbacks[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.callbacks, id)
	}
}

// Pump simulates one animation frame.
func (f *FrameTicker) Pump() {
	f.mu.Lock()
	fns := make([]func(), 0, len(f.callbacks))
	for _, fn := range f.callbacks {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
