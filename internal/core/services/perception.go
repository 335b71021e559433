package services

import (
	"sync"
	"time"

	"github.com/hearthvtt/hearth-cli/internal/core/domain"
	"github.com/hearthvtt/hearth-cli/internal/core/ports/driven"
	"github.com/hearthvtt/hearth-cli/internal/logger"
)

// PerceptionSlot is one stage of the per-frame recomputation, run in a fixed
// order regardless of which flags are pending.
type PerceptionSlot int

// Perception slots, in execution order.
const (
	SlotInitialize PerceptionSlot = iota
	SlotOcclusion
	SlotSources
	SlotPrimary
	SlotLighting
	SlotVision
	SlotSounds
	slotCount
)

// PerceptionHandler services one slot, inspecting the flags pending for the
// frame it runs in.
type PerceptionHandler func(flags domain.PerceptionFlag)

// Perception coalesces recomputation requests between frames. Requests made
// at any rate collapse into one pending flag set; each frame drains it once,
// running slot handlers in fixed order.
type Perception struct {
	mu       sync.Mutex
	pending  domain.PerceptionFlag
	handlers [slotCount]PerceptionHandler
	cancel   func()

	// soundFade rides alongside the flag set: the longest fade requested
	// since the last frame, consumed when the sounds slot runs.
	pendingFade time.Duration
	frameFade   time.Duration
}

func newPerception(ticker driven.FrameTicker) *Perception {
	p := &Perception{}
	if ticker != nil {
		p.cancel = ticker.OnFrame(p.Tick)
	}
	return p
}

// SetHandler installs the handler for one slot, replacing any previous one.
func (p *Perception) SetHandler(slot PerceptionSlot, fn PerceptionHandler) {
	if slot < 0 || slot >= slotCount {
		return
	}
	p.mu.Lock()
	p.handlers[slot] = fn
	p.mu.Unlock()
}

// Request queues flags for the next frame. Implied flags propagate
// transitively; flags a requested initialization subsumes are cleared.
func (p *Perception) Request(flags domain.PerceptionFlag) {
	if flags == 0 {
		return
	}
	p.mu.Lock()
	p.pending = domain.PropagatePerception(p.pending, flags)
	p.mu.Unlock()
}

// RequestSoundFade queues a sound refresh carrying a fade duration.
// Coalescing keeps the longest fade requested between frames.
func (p *Perception) RequestSoundFade(d time.Duration) {
	p.mu.Lock()
	p.pending = domain.PropagatePerception(p.pending, domain.PerceptionRefreshSounds)
	if d > p.pendingFade {
		p.pendingFade = d
	}
	p.mu.Unlock()
}

// SoundFadeDuration returns the fade attached to the frame currently being
// serviced. The sounds slot handler reads it during Tick.
func (p *Perception) SoundFadeDuration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frameFade
}

// Pending returns the coalesced flag set awaiting the next frame.
func (p *Perception) Pending() domain.PerceptionFlag {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending
}

// Tick drains the pending flags and runs the slot handlers in order. A frame
// with nothing pending runs nothing. Handler panics are logged so one broken
// layer cannot stall the frame loop.
func (p *Perception) Tick() {
	p.mu.Lock()
	flags := p.pending
	p.pending = 0
	p.frameFade = p.pendingFade
	p.pendingFade = 0
	handlers := p.handlers
	p.mu.Unlock()

	if flags == 0 {
		return
	}
	for slot, fn := range handlers {
		if fn == nil {
			continue
		}
		runSlot(PerceptionSlot(slot), fn, flags)
	}
}

func runSlot(slot PerceptionSlot, fn PerceptionHandler, flags domain.PerceptionFlag) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("perception slot %d panicked: %v", slot, r)
		}
	}()
	fn(flags)
}

func (p *Perception) stop() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}
