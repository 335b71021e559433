package domain

import (
	"fmt"
	"sort"
)

// EmbeddedDef names one embedded collection of a document type.
type EmbeddedDef struct {
	// Field is the source key holding the child array, e.g. "items".
	Field string

	// Type is the child document type, e.g. "Item".
	Type string
}

// LifecycleEvent carries the data a lifecycle callback may inspect.
type LifecycleEvent struct {
	// Data is the proposed record on create.
	Data map[string]any

	// Changes is the applied diff on update.
	Changes map[string]any

	// Options are the request options in effect.
	Options *RequestOptions

	// UserID identifies the user whose action produced the event.
	UserID string
}

// TypeDefinition declares a document type: its schema, embedded collections,
// migrations, and optional lifecycle capabilities. Capabilities a type does
// not need stay nil; the pipeline skips them.
type TypeDefinition struct {
	// Name is the type name, e.g. "Actor".
	Name string

	// Schema validates and cleans source data.
	Schema *Schema

	// Embedded lists the named embedded collections.
	Embedded []EmbeddedDef

	// WorldScope marks types held in a world collection.
	WorldScope bool

	// Migrate brings older-shaped data forward; it must be idempotent.
	Migrate func(data map[string]any) map[string]any

	// CanCreate is the creation permission predicate. Nil permits any user.
	CanCreate func(user *User) bool

	// PreCreate, PreUpdate, PreDelete run during the prepare phase and may
	// veto by returning false.
	PreCreate func(doc *Document, ev *LifecycleEvent) (bool, error)
	PreUpdate func(doc *Document, ev *LifecycleEvent) (bool, error)
	PreDelete func(doc *Document, ev *LifecycleEvent) (bool, error)

	// OnCreate, OnUpdate, OnDelete run after apply, before the matching
	// post hook is broadcast.
	OnCreate func(doc *Document, ev *LifecycleEvent)
	OnUpdate func(doc *Document, ev *LifecycleEvent)
	OnDelete func(doc *Document, ev *LifecycleEvent)
}

// EmbeddedField returns the source field holding children of childType, or
// false if the type embeds no such children.
func (d *TypeDefinition) EmbeddedField(childType string) (string, bool) {
	for _, e := range d.Embedded {
		if e.Type == childType {
			return e.Field, true
		}
	}
	return "", false
}

// Registry maps type names to their definitions. Construction never reaches
// for module state: the runtime owns a registry and passes it down.
type Registry struct {
	types map[string]*TypeDefinition
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]*TypeDefinition)}
}

// Register adds a definition. Re-registering a name replaces the previous
// definition, which lets a game system refine a built-in type.
func (r *Registry) Register(def *TypeDefinition) error {
	if def == nil || def.Name == "" {
		return fmt.Errorf("type definition requires a name")
	}
	if def.Schema == nil {
		return fmt.Errorf("type %s requires a schema", def.Name)
	}
	r.types[def.Name] = def
	return nil
}

// Get returns the definition for name.
func (r *Registry) Get(name string) (*TypeDefinition, error) {
	def, ok := r.types[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, name)
	}
	return def, nil
}

// MustGet returns the definition for name, panicking on unknown types.
// For use at wiring time only.
func (r *Registry) MustGet(name string) *TypeDefinition {
	def, err := r.Get(name)
	if err != nil {
		panic(err)
	}
	return def
}

// Names returns all registered type names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WorldTypes returns the names of world-scope types, sorted.
func (r *Registry) WorldTypes() []string {
	var names []string
	for name, def := range r.types {
		if def.WorldScope {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
