// Package hooks implements the named event bus of the Hearth runtime.
// Subscribers observe document lifecycle events; "pre" events may veto the
// workflow that raised them.
package hooks

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hearthvtt/hearth-cli/internal/core/domain"
	"github.com/hearthvtt/hearth-cli/internal/logger"
)

// Event carries the payload of one hook dispatch.
type Event struct {
	// Name is the hook name, e.g. "preCreateActor".
	Name string

	// Document is the affected document, when one exists.
	Document *domain.Document

	// Data is the proposed record for create events.
	Data map[string]any

	// Changes is the applied diff for update events.
	Changes map[string]any

	// Options are the request options in effect.
	Options *domain.RequestOptions

	// UserID identifies the user whose action raised the event.
	UserID string

	// Extra carries event-specific payloads outside the CRUD shape, such
	// as a shared image or a render context.
	Extra any
}

// Handler observes an event. In call-mode dispatch, returning false vetoes
// the caller's workflow; broadcast dispatch ignores the return value.
type Handler func(ev *Event) bool

type subscriber struct {
	seq     int
	handler Handler
	once    bool
}

// Bus is a named multi-subscriber event dispatcher. A zero Bus is not usable;
// construct with NewBus.
type Bus struct {
	mu   sync.Mutex
	seq  int
	subs map[string][]subscriber
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]subscriber)}
}

// On subscribes handler to the named hook and returns its subscription id.
func (b *Bus) On(name string, handler Handler) int {
	return b.register(name, handler, false)
}

// Once subscribes handler for a single dispatch.
func (b *Bus) Once(name string, handler Handler) int {
	return b.register(name, handler, true)
}

func (b *Bus) register(name string, handler Handler, once bool) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	b.subs[name] = append(b.subs[name], subscriber{seq: b.seq, handler: handler, once: once})
	return b.seq
}

// Off removes the subscription with id from the named hook.
func (b *Bus) Off(name string, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[name]
	for i, s := range subs {
		if s.seq == id {
			b.subs[name] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// Call dispatches the event in registration order and reports whether the
// workflow may proceed: any subscriber returning false vetoes. Subscriber
// panics are caught and logged; they never veto and never abort dispatch.
func (b *Bus) Call(ev *Event) bool {
	proceed := true
	for _, s := range b.snapshot(ev.Name) {
		if !b.invoke(s, ev) {
			proceed = false
		}
	}
	return proceed
}

// CallAll dispatches the event to every subscriber, ignoring return values.
func (b *Bus) CallAll(ev *Event) {
	for _, s := range b.snapshot(ev.Name) {
		b.invoke(s, ev)
	}
}

// snapshot copies the subscriber list so handlers may subscribe or
// unsubscribe during dispatch, and drops once-subscribers.
func (b *Bus) snapshot(name string) []subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[name]
	out := append([]subscriber(nil), subs...)
	remaining := subs[:0]
	for _, s := range subs {
		if !s.once {
			remaining = append(remaining, s)
		}
	}
	b.subs[name] = remaining
	sort.SliceStable(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// invoke runs one handler, converting a panic into a logged error.
func (b *Bus) invoke(s subscriber, ev *Event) (result bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("hook %s handler panicked: %v", ev.Name, r)
			result = true
		}
	}()
	return s.handler(ev)
}

// Name composes a lifecycle hook name from an action prefix and a document
// type, e.g. Name("preCreate", "Actor") == "preCreateActor".
func Name(prefix, documentType string) string {
	return fmt.Sprintf("%s%s", prefix, documentType)
}
