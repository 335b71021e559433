package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hearthvtt/hearth-cli/internal/core/domain"
	"github.com/hearthvtt/hearth-cli/internal/core/hooks"
	"github.com/hearthvtt/hearth-cli/internal/core/ports/driven"
	"github.com/hearthvtt/hearth-cli/internal/logger"
)

// MacroExecutor runs Macro documents. The core has no script engine; a host
// that can evaluate macro commands injects an executor at wiring time.
type MacroExecutor interface {
	Execute(ctx context.Context, macro *domain.Document, user *domain.User) error
}

// RuntimeConfig carries the dependencies of a Runtime. Transport and Store
// are required; everything else has a sensible default.
type RuntimeConfig struct {
	// Registry defines the available document types.
	// Defaults to domain.BuiltinRegistry().
	Registry *domain.Registry

	// Transport is the replication channel. Required.
	Transport driven.SocketTransport

	// Store persists client-scope settings. Required.
	Store driven.ClientSettingStore

	// Clock is the time source. Defaults to the system clock.
	Clock driven.Clock

	// Ticker drives the perception scheduler. Optional; without it,
	// perception flags accumulate until Perception().Tick() is called.
	Ticker driven.FrameTicker

	// Hooks is the event bus. Defaults to a fresh bus.
	Hooks *hooks.Bus

	// User is the authenticated user this client acts as. Required.
	User *domain.User

	// Macros executes Macro documents. Optional.
	Macros MacroExecutor
}

// Runtime is the root context object of a connected client: it owns the type
// registry, the hook bus, the world collections, the compendium packs, the
// setting store, and the perception scheduler, and it runs the CRUD pipeline
// over the injected transport.
type Runtime struct {
	mu        sync.Mutex
	registry  *domain.Registry
	hooks     *hooks.Bus
	transport driven.SocketTransport
	clock     driven.Clock
	user      *domain.User
	macros    MacroExecutor

	collections map[string]*domain.Collection
	packs       map[string]*Pack
	settings    *Settings
	perception  *Perception

	ready bool
}

// NewRuntime wires a runtime from its dependencies. World collections are
// built for every world-scope type in the registry, each with an Updater
// bound to the pipeline.
func NewRuntime(cfg RuntimeConfig) (*Runtime, error) {
	if cfg.Transport == nil {
		return nil, fmt.Errorf("runtime requires a transport")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("runtime requires a client setting store")
	}
	if cfg.User == nil {
		return nil, fmt.Errorf("runtime requires a user")
	}
	reg := cfg.Registry
	if reg == nil {
		reg = domain.BuiltinRegistry()
	}
	bus := cfg.Hooks
	if bus == nil {
		bus = hooks.NewBus()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = systemClock{}
	}

	r := &Runtime{
		registry:    reg,
		hooks:       bus,
		transport:   cfg.Transport,
		clock:       clock,
		user:        cfg.User,
		macros:      cfg.Macros,
		collections: make(map[string]*domain.Collection),
		packs:       make(map[string]*Pack),
	}
	for _, name := range reg.WorldTypes() {
		coll := domain.NewCollection(name)
		documentType := name
		coll.Updater = func(ctx context.Context, updates []map[string]any, opts *domain.RequestOptions) error {
			_, err := r.Update(ctx, documentType, updates, opts)
			return err
		}
		r.collections[name] = coll
	}
	r.settings = newSettings(r, cfg.Store)
	r.perception = newPerception(cfg.Ticker)

	cfg.Transport.OnModifyDocument(r.handleInbound)
	cfg.Transport.OnShareImage(func(img *domain.SharedImage) {
		r.hooks.CallAll(&hooks.Event{Name: "shareImage", Extra: img})
	})
	return r, nil
}

// Registry returns the document type registry.
func (r *Runtime) Registry() *domain.Registry {
	return r.registry
}

// Hooks returns the event bus.
func (r *Runtime) Hooks() *hooks.Bus {
	return r.hooks
}

// User returns the authenticated user.
func (r *Runtime) User() *domain.User {
	return r.user
}

// Settings returns the setting store.
func (r *Runtime) Settings() *Settings {
	return r.settings
}

// Perception returns the perception scheduler.
func (r *Runtime) Perception() *Perception {
	return r.perception
}

// Collection returns the world collection for a primary document type.
func (r *Runtime) Collection(documentType string) (*domain.Collection, error) {
	coll, ok := r.collections[documentType]
	if !ok {
		return nil, fmt.Errorf("%w: no world collection for %s", domain.ErrUnknownType, documentType)
	}
	return coll, nil
}

// Ready reports whether the world is fully loaded.
func (r *Runtime) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready
}

// SetReady flips the readiness state. Transitioning to ready broadcasts the
// "ready" hook.
func (r *Runtime) SetReady(ready bool) {
	r.mu.Lock()
	was := r.ready
	r.ready = ready
	r.mu.Unlock()
	if ready && !was {
		r.hooks.CallAll(&hooks.Event{Name: "ready", UserID: r.user.ID})
	}
}

// ShareImage broadcasts an image popout to all connected peers.
func (r *Runtime) ShareImage(ctx context.Context, img *domain.SharedImage) error {
	if img == nil || img.Image == "" {
		return fmt.Errorf("shared image requires an image path")
	}
	return r.transport.ShareImage(ctx, img)
}

// ExecuteMacro runs the Macro document with id as the current user. The user
// needs observer permission on the macro.
func (r *Runtime) ExecuteMacro(ctx context.Context, id string) error {
	if r.macros == nil {
		return domain.ErrMacroExecution
	}
	coll, err := r.Collection("Macro")
	if err != nil {
		return err
	}
	macro, err := coll.GetStrict(id)
	if err != nil {
		return err
	}
	if !macro.TestUserPermission(r.user, domain.PermissionObserver) {
		return fmt.Errorf("%w: macro %s", domain.ErrPermission, id)
	}
	if err := r.macros.Execute(ctx, macro, r.user); err != nil {
		return fmt.Errorf("executing macro %s: %w", id, err)
	}
	return nil
}

// Close releases the transport, the setting store, and the frame ticker.
func (r *Runtime) Close() error {
	r.perception.stop()
	for _, p := range r.packs {
		p.stopEviction()
	}
	err := r.settings.close()
	if terr := r.transport.Close(); err == nil {
		err = terr
	}
	return err
}

// Packs lists the ids of registered compendium packs, sorted. Private packs
// are visible to the gamemaster only.
func (r *Runtime) Packs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.packs))
	for id, p := range r.packs {
		if p.private && !r.user.IsGM() {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Pack returns the registered pack with id.
func (r *Runtime) Pack(id string) (*Pack, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.packs[id]
	if !ok {
		return nil, fmt.Errorf("%w: pack %q", domain.ErrNotFound, id)
	}
	if p.private && !r.user.IsGM() {
		return nil, fmt.Errorf("%w: pack %q is private", domain.ErrPermission, id)
	}
	return p, nil
}

// handleInbound applies one replicated mutation from another client or the
// server. Errors are logged, never propagated: inbound replay has no caller.
func (r *Runtime) handleInbound(resp *domain.Response) {
	if resp == nil {
		return
	}
	if resp.Error != "" {
		logger.Warn("inbound %s %s rejected upstream: %s", resp.Request.Action, resp.Request.Type, resp.Error)
		return
	}
	r.applyModify(resp)
}

// systemClock is the default Clock when none is injected.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, fn func()) driven.Timer {
	return time.AfterFunc(d, fn)
}
