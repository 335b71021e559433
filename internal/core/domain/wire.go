package domain

// Wire actions carried on the modifyDocument channel.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionGet    = "get"
)

// Request is one framed modifyDocument message. Exactly one of Data, Updates,
// IDs, or Query is populated, matching Action.
type Request struct {
	// Action is one of create, update, delete, get.
	Action string `json:"action"`

	// Type is the document type name, e.g. "Actor".
	Type string `json:"type"`

	// ParentType and ParentID address the parent for embedded operations.
	ParentType string `json:"parentType,omitempty"`
	ParentID   string `json:"parentId,omitempty"`

	// Pack addresses a compendium pack by its id.
	Pack string `json:"pack,omitempty"`

	// Data carries proposed records for create.
	Data []map[string]any `json:"data,omitempty"`

	// Updates carries patches for update; each entry includes _id.
	Updates []map[string]any `json:"updates,omitempty"`

	// IDs carries target ids for delete.
	IDs []string `json:"ids,omitempty"`

	// Query filters records for get.
	Query map[string]any `json:"query,omitempty"`

	// Options travel with the request and are replayed to every client.
	Options *RequestOptions `json:"options,omitempty"`
}

// Response is the server's reply to a Request, and also the shape of
// unsolicited inbound replication messages.
type Response struct {
	// Request echoes the originating request.
	Request Request `json:"request"`

	// Result carries authoritative post-state records for create, update,
	// and get.
	Result []map[string]any `json:"result,omitempty"`

	// Deleted carries the ids removed by a delete, in deletion order.
	Deleted []string `json:"deleted,omitempty"`

	// UserID identifies the user whose action produced this message.
	UserID string `json:"userId,omitempty"`

	// Error is set instead of Result when the server rejected the request.
	Error string `json:"error,omitempty"`
}

// RequestOptions modulate the CRUD pipeline. The zero value gives default
// behavior: diffing on, rendering on, recursive merging on.
type RequestOptions struct {
	// Temporary skips dispatch and registration; prepared documents are
	// returned but never installed.
	Temporary bool `json:"temporary,omitempty"`

	// NoDiff disables dropping of no-op update patches.
	NoDiff bool `json:"noDiff,omitempty"`

	// NoHook bypasses the veto phase for this request.
	NoHook bool `json:"noHook,omitempty"`

	// NoRender suppresses observer re-rendering in the notify phase.
	NoRender bool `json:"noRender,omitempty"`

	// NoRecursive applies update patches as shallow replacements.
	NoRecursive bool `json:"noRecursive,omitempty"`

	// DeleteAll expands the delete id list to the full key set of the
	// collection at the moment of dispatch.
	DeleteAll bool `json:"deleteAll,omitempty"`

	// KeepID preserves proposed ids on create instead of minting new ones.
	KeepID bool `json:"keepId,omitempty"`

	// AllowInvalid lets an update target a document whose source failed
	// validation, so it can be repaired.
	AllowInvalid bool `json:"allowInvalid,omitempty"`

	// Index requests index rows instead of full documents on get.
	Index bool `json:"index,omitempty"`

	// IndexFields lists the fields an index get must include.
	IndexFields []string `json:"indexFields,omitempty"`

	// Embedded is the synthetic-actor side channel: it tags a token update
	// so inbound handlers fire per-child hooks as if the children had been
	// written directly.
	Embedded *EmbeddedTag `json:"embedded,omitempty"`
}

// Clone returns a deep copy, so per-record option tweaks don't leak across a
// batch. A nil receiver yields a fresh default options value.
func (o *RequestOptions) Clone() *RequestOptions {
	if o == nil {
		return &RequestOptions{}
	}
	cp := *o
	if o.IndexFields != nil {
		cp.IndexFields = append([]string(nil), o.IndexFields...)
	}
	if o.Embedded != nil {
		cp.Embedded = o.Embedded.Clone()
	}
	return &cp
}

// EmbeddedTag describes simulated child operations riding on a parent update.
type EmbeddedTag struct {
	// Name is the embedded collection field, e.g. "items".
	Name string `json:"name"`

	// Type is the child document type, e.g. "Item".
	Type string `json:"type"`

	// Action is the simulated child action: create, update, or delete.
	Action string `json:"action"`

	// Hooks carries per-child hook payloads in input order: the child's
	// post-state for create/update, or {"_id": id} for delete.
	Hooks []map[string]any `json:"hooks"`
}

// Clone returns a deep copy of the tag.
func (t *EmbeddedTag) Clone() *EmbeddedTag {
	if t == nil {
		return nil
	}
	cp := *t
	cp.Hooks = make([]map[string]any, len(t.Hooks))
	for i, h := range t.Hooks {
		cp.Hooks[i] = CloneMap(h)
	}
	return &cp
}

// Compendium lifecycle actions carried on the manageCompendium channel.
const (
	PackActionCreate  = "create"
	PackActionDelete  = "delete"
	PackActionMigrate = "migrate"
)

// CompendiumRequest is one framed manageCompendium message.
type CompendiumRequest struct {
	Action  string         `json:"action"`
	Data    map[string]any `json:"data,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

// CompendiumResponse is the server's reply to a CompendiumRequest.
type CompendiumResponse struct {
	Request CompendiumRequest `json:"request"`
	Result  map[string]any    `json:"result,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// SharedImage is a peer-to-peer broadcast on the shareImage channel.
type SharedImage struct {
	Image   string `json:"image"`
	Title   string `json:"title,omitempty"`
	Caption string `json:"caption,omitempty"`
	UUID    string `json:"uuid,omitempty"`
}
