package domain

import (
	"context"
	"fmt"
	"sort"
)

// RenderContext describes a collection change to its observer applications.
type RenderContext struct {
	// Action is the pipeline action that caused the render: create, update,
	// or delete.
	Action string

	// DocumentType is the collection's declared type.
	DocumentType string

	// Documents are the affected documents, in pipeline order.
	Documents []*Document

	// Data carries the raw records of the change.
	Data []map[string]any
}

// Observer is an application attached to a collection; it is re-rendered on
// any change.
type Observer interface {
	Render(force bool, ctx *RenderContext)
}

// UpdateFunc dispatches a batch of update patches for a collection's
// documents. The runtime injects a pipeline-backed implementation when it
// builds its world collections.
type UpdateFunc func(ctx context.Context, updates []map[string]any, opts *RequestOptions) error

// Collection is an insertion-ordered map of documents of a single declared
// type. Documents whose source failed validation are held aside in an
// invalid set: they are reachable via GetInvalid but never via iteration.
type Collection struct {
	documentType string
	parent       *Document
	keys         []string
	byID         map[string]*Document
	invalid      map[string]*Document
	apps         []Observer

	// Updater, when set, backs UpdateAll with the CRUD pipeline.
	Updater UpdateFunc
}

// NewCollection returns an empty world-scope collection for documentType.
func NewCollection(documentType string) *Collection {
	return &Collection{
		documentType: documentType,
		byID:         make(map[string]*Document),
		invalid:      make(map[string]*Document),
	}
}

// NewEmbeddedCollection returns an empty collection whose documents are
// embedded in parent. The collection maintains each child's parent
// back-reference.
func NewEmbeddedCollection(documentType string, parent *Document) *Collection {
	c := NewCollection(documentType)
	c.parent = parent
	return c
}

// Type returns the declared document type.
func (c *Collection) Type() string {
	return c.documentType
}

// Parent returns the owning document for embedded collections, or nil.
func (c *Collection) Parent() *Document {
	return c.parent
}

// Len returns the number of valid documents.
func (c *Collection) Len() int {
	return len(c.keys)
}

// Set inserts or replaces a document. It fails if the document is not of the
// declared type or carries no id. Replacement preserves insertion order.
func (c *Collection) Set(doc *Document) error {
	if doc == nil || doc.Type() != c.documentType {
		return fmt.Errorf("%w: want %s", ErrWrongType, c.documentType)
	}
	if doc.ID() == "" {
		return fmt.Errorf("cannot install %s without an id", c.documentType)
	}
	if c.parent != nil {
		doc.parent = c.parent
	}
	id := doc.ID()
	if _, exists := c.byID[id]; !exists {
		c.keys = append(c.keys, id)
	}
	c.byID[id] = doc
	// a valid write supersedes any invalid record under the same id
	delete(c.invalid, id)
	return nil
}

// Get returns the document with id, if present and valid.
func (c *Collection) Get(id string) (*Document, bool) {
	doc, ok := c.byID[id]
	return doc, ok
}

// GetStrict returns the document with id or an error naming it.
func (c *Collection) GetStrict(id string) (*Document, error) {
	doc, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s %q", ErrNotFound, c.documentType, id)
	}
	return doc, nil
}

// Has reports whether a valid document with id exists.
func (c *Collection) Has(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// Delete removes id from the collection, valid or invalid. It reports
// whether anything was removed.
func (c *Collection) Delete(id string) bool {
	if _, ok := c.invalid[id]; ok {
		delete(c.invalid, id)
		return true
	}
	if _, ok := c.byID[id]; !ok {
		return false
	}
	delete(c.byID, id)
	for i, k := range c.keys {
		if k == id {
			c.keys = append(c.keys[:i], c.keys[i+1:]...)
			break
		}
	}
	return true
}

// Contents returns the valid documents in insertion order. Callers that need
// semantic order sort the result explicitly.
func (c *Collection) Contents() []*Document {
	out := make([]*Document, 0, len(c.keys))
	for _, id := range c.keys {
		out = append(out, c.byID[id])
	}
	return out
}

// Keys returns the valid ids in insertion order.
func (c *Collection) Keys() []string {
	return append([]string(nil), c.keys...)
}

// AllKeys returns valid and invalid ids: the full key set a deleteAll
// expands to.
func (c *Collection) AllKeys() []string {
	out := append([]string(nil), c.keys...)
	invalid := make([]string, 0, len(c.invalid))
	for id := range c.invalid {
		invalid = append(invalid, id)
	}
	sort.Strings(invalid)
	return append(out, invalid...)
}

// SetInvalid records a document whose source failed validation. The id stays
// addressable via GetInvalid but is skipped by iteration.
func (c *Collection) SetInvalid(doc *Document) {
	if doc == nil || doc.ID() == "" {
		return
	}
	if c.parent != nil {
		doc.parent = c.parent
	}
	c.invalid[doc.ID()] = doc
}

// GetInvalid returns the invalid document with id, if recorded.
func (c *Collection) GetInvalid(id string) (*Document, bool) {
	doc, ok := c.invalid[id]
	return doc, ok
}

// InvalidIDs returns the recorded invalid ids, sorted.
func (c *Collection) InvalidIDs() []string {
	out := make([]string, 0, len(c.invalid))
	for id := range c.invalid {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// RegisterApp attaches an observer to be re-rendered on changes.
func (c *Collection) RegisterApp(app Observer) {
	for _, existing := range c.apps {
		if existing == app {
			return
		}
	}
	c.apps = append(c.apps, app)
}

// UnregisterApp detaches an observer.
func (c *Collection) UnregisterApp(app Observer) {
	for i, existing := range c.apps {
		if existing == app {
			c.apps = append(c.apps[:i], c.apps[i+1:]...)
			return
		}
	}
}

// Render re-renders every attached observer with the given context.
func (c *Collection) Render(force bool, ctx *RenderContext) {
	for _, app := range c.apps {
		app.Render(force, ctx)
	}
}

// UpdateAll applies a patch to every document matching condition via the
// injected Updater. The transformation is either a static patch
// (map[string]any) or a function deriving a patch from each document.
// A nil condition matches everything.
func (c *Collection) UpdateAll(ctx context.Context, transformation any, condition func(*Document) bool, opts *RequestOptions) error {
	if c.Updater == nil {
		return fmt.Errorf("collection %s has no updater bound", c.documentType)
	}
	var updates []map[string]any
	for _, doc := range c.Contents() {
		if condition != nil && !condition(doc) {
			continue
		}
		var patch map[string]any
		switch t := transformation.(type) {
		case map[string]any:
			patch = CloneMap(t)
		case func(*Document) map[string]any:
			patch = t(doc)
		default:
			return fmt.Errorf("unsupported transformation %T", transformation)
		}
		if patch == nil {
			continue
		}
		patch["_id"] = doc.ID()
		updates = append(updates, patch)
	}
	if len(updates) == 0 {
		return nil
	}
	return c.Updater(ctx, updates, opts)
}
