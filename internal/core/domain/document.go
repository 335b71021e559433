package domain

import (
	"fmt"
)

// Document is a typed record with a stable 16-character id, a validated
// source, and optionally a parent (when embedded) or a pack (when sourced
// from a compendium). The source reflects the last server-acknowledged
// state; every derived structure, including embedded collections, is
// regenerated from it.
type Document struct {
	def    *TypeDefinition
	reg    *Registry
	id     string
	source map[string]any
	parent *Document
	pack   string

	invalid  bool
	embedded map[string]*Collection
}

// ConstructOptions modulate document construction.
type ConstructOptions struct {
	// Parent marks the document as embedded in another document.
	Parent *Document

	// Pack marks the document as sourced from a compendium pack.
	Pack string
}

// NewDocument constructs a document of the named type from data. The data is
// migrated, cleaned, and validated strictly. On validation failure the
// returned document is non-nil but flagged invalid, holding the cleaned
// source, and the error describes the rejected fields.
func NewDocument(reg *Registry, typeName string, data map[string]any, opts *ConstructOptions) (*Document, error) {
	def, err := reg.Get(typeName)
	if err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &ConstructOptions{}
	}
	doc := &Document{
		def:    def,
		reg:    reg,
		parent: opts.Parent,
		pack:   opts.Pack,
	}

	migrated := doc.MigrateData(data)
	cleaned := def.Schema.Clean(migrated)
	validated, err := def.Schema.Validate(cleaned, ValidateOptions{Strict: true, DocumentType: def.Name})
	if err != nil {
		doc.source = cleaned
		doc.invalid = true
		if id, ok := cleaned["_id"].(string); ok {
			doc.id = id
		}
		doc.rebuildEmbedded()
		return doc, fmt.Errorf("constructing %s: %w", typeName, err)
	}
	doc.source = validated
	if id, ok := validated["_id"].(string); ok {
		doc.id = id
	}
	doc.rebuildEmbedded()
	return doc, nil
}

// Type returns the document type name.
func (d *Document) Type() string {
	return d.def.Name
}

// Definition returns the document's type definition.
func (d *Document) Definition() *TypeDefinition {
	return d.def
}

// ID returns the document id, empty until assigned.
func (d *Document) ID() string {
	return d.id
}

// SetID assigns the id once. The id is immutable thereafter.
func (d *Document) SetID(id string) error {
	if d.id != "" && d.id != id {
		return fmt.Errorf("%w: %s %q", ErrImmutableID, d.def.Name, d.id)
	}
	if !IsValidID(id) {
		return fmt.Errorf("invalid id %q for %s", id, d.def.Name)
	}
	d.id = id
	d.source["_id"] = id
	return nil
}

// Parent returns the owning document for embedded documents, or nil.
func (d *Document) Parent() *Document {
	return d.parent
}

// Pack returns the compendium pack id this document was sourced from, or "".
func (d *Document) Pack() string {
	return d.pack
}

// IsInvalid reports whether the source failed validation at construction and
// has not been repaired since.
func (d *Document) IsInvalid() bool {
	return d.invalid
}

// Name returns the source name field, or "".
func (d *Document) Name() string {
	name, _ := d.source["name"].(string)
	return name
}

// Get resolves a dotted path within the source.
func (d *Document) Get(path string) (any, bool) {
	return GetDotted(d.source, path)
}

// ToObject returns a deep, plain-data snapshot of the source.
func (d *Document) ToObject() map[string]any {
	return CloneMap(d.source)
}

// MigrateData brings older-shaped data forward to the current schema.
// Idempotent; types without a migration return the input unchanged.
func (d *Document) MigrateData(data map[string]any) map[string]any {
	if d.def.Migrate == nil {
		return data
	}
	return d.def.Migrate(data)
}

// Validate checks changes (or the current source when changes is nil)
// against the schema. Clean coerces before checking; Strict fails the call
// on any failure; Fallback substitutes defaults for unrecoverable fields.
func (d *Document) Validate(changes map[string]any, clean, strict, fallback bool) (map[string]any, error) {
	opts := ValidateOptions{Strict: strict, Fallback: fallback, DocumentType: d.def.Name}
	if changes == nil {
		data := d.source
		if clean {
			data = d.def.Schema.Clean(data)
		}
		return d.def.Schema.Validate(data, opts)
	}
	opts.Partial = true
	expanded := Expand(changes)
	if clean {
		expanded = d.def.Schema.CleanPartial(expanded)
	}
	return d.def.Schema.Validate(expanded, opts)
}

// UpdateSource applies changes to the source: deeply when recursive, or as a
// shallow top-level replacement otherwise. Dotted keys are expanded. Invalid
// fields fail the call and leave the source unchanged. The applied diff is
// returned.
func (d *Document) UpdateSource(changes map[string]any, recursive bool) (map[string]any, error) {
	expanded := Expand(changes)
	cleaned := d.def.Schema.CleanPartial(expanded)
	if _, err := d.def.Schema.Validate(cleaned, ValidateOptions{Partial: true, Strict: true, DocumentType: d.def.Name}); err != nil {
		return nil, err
	}
	merged := MergeObject(d.source, cleaned, recursive)
	validated, err := d.def.Schema.Validate(merged, ValidateOptions{Strict: true, DocumentType: d.def.Name})
	if err != nil {
		return nil, err
	}
	diff := DiffObject(d.source, validated)
	d.source = validated
	d.invalid = false
	d.rebuildEmbedded()
	return diff, nil
}

// ReplaceSource swaps in an authoritative post-state wholesale. When the new
// state fails validation the document is flagged invalid but the swap still
// happens: the server has already committed.
func (d *Document) ReplaceSource(state map[string]any) error {
	migrated := d.MigrateData(state)
	cleaned := d.def.Schema.Clean(migrated)
	validated, err := d.def.Schema.Validate(cleaned, ValidateOptions{Strict: true, DocumentType: d.def.Name})
	if err != nil {
		d.source = cleaned
		d.invalid = true
		d.rebuildEmbedded()
		return fmt.Errorf("replacing %s source: %w", d.def.Name, err)
	}
	d.source = validated
	d.invalid = false
	if id, ok := validated["_id"].(string); ok && d.id == "" {
		d.id = id
	}
	d.rebuildEmbedded()
	return nil
}

// Clone produces a detached document from the current source merged with
// data. The id is dropped unless keepID is set.
func (d *Document) Clone(data map[string]any, keepID bool) (*Document, error) {
	merged := d.ToObject()
	if data != nil {
		merged = MergeObject(merged, data, true)
	}
	if !keepID {
		delete(merged, "_id")
	}
	return NewDocument(d.reg, d.def.Name, merged, &ConstructOptions{Pack: d.pack})
}

// TestUserPermission reports whether user meets the given permission
// threshold, accepting a numeric level or its name. Gamemasters always
// qualify. Documents without an ownership field defer to their parent.
func (d *Document) TestUserPermission(user *User, level any) bool {
	threshold, err := ParsePermissionLevel(level)
	if err != nil {
		return false
	}
	if user.IsGM() {
		return true
	}
	if user == nil {
		return threshold == PermissionNone
	}
	ownership, ok := d.source["ownership"].(map[string]any)
	if !ok {
		if d.parent != nil {
			return d.parent.TestUserPermission(user, threshold)
		}
		return threshold == PermissionNone
	}
	held := PermissionNone
	if v, ok := ownership[user.ID]; ok {
		if n, ok := toFloat(v); ok {
			held = PermissionLevel(int(n))
		}
	} else if v, ok := ownership[DefaultOwnershipKey]; ok {
		if n, ok := toFloat(v); ok {
			held = PermissionLevel(int(n))
		}
	}
	return held >= threshold
}

// Embedded returns the named embedded collection, e.g. "items".
func (d *Document) Embedded(field string) (*Collection, bool) {
	c, ok := d.embedded[field]
	return c, ok
}

// EmbeddedByType returns the embedded collection holding children of
// childType, e.g. "Item".
func (d *Document) EmbeddedByType(childType string) (*Collection, bool) {
	field, ok := d.def.EmbeddedField(childType)
	if !ok {
		return nil, false
	}
	return d.Embedded(field)
}

// InstallEmbedded installs child into the named embedded collection and
// mirrors its source row into the parent source array, replacing any row
// with the same id. Children whose source failed validation land in the
// collection's invalid set instead of the valid map.
func (d *Document) InstallEmbedded(field string, child *Document) error {
	c, ok := d.embedded[field]
	if !ok {
		return fmt.Errorf("%s embeds no %q collection", d.def.Name, field)
	}
	if child.IsInvalid() {
		if child.ID() == "" {
			return fmt.Errorf("cannot install %s without an id", c.documentType)
		}
		c.Delete(child.ID())
		c.SetInvalid(child)
	} else if err := c.Set(child); err != nil {
		return err
	}
	rows, _ := d.source[field].([]any)
	row := any(child.ToObject())
	replaced := false
	for i, existing := range rows {
		if m, ok := existing.(map[string]any); ok && m["_id"] == child.ID() {
			rows[i] = row
			replaced = true
			break
		}
	}
	if !replaced {
		rows = append(rows, row)
	}
	d.source[field] = rows
	return nil
}

// RemoveEmbedded removes the child with id from the named embedded
// collection and from the parent source array.
func (d *Document) RemoveEmbedded(field, id string) bool {
	c, ok := d.embedded[field]
	if !ok {
		return false
	}
	removed := c.Delete(id)
	rows, _ := d.source[field].([]any)
	for i, existing := range rows {
		if m, ok := existing.(map[string]any); ok && m["_id"] == id {
			d.source[field] = append(rows[:i], rows[i+1:]...)
			removed = true
			break
		}
	}
	return removed
}

// rebuildEmbedded regenerates every embedded collection from the source
// arrays. Child rows that fail validation enter the collection's invalid
// set.
func (d *Document) rebuildEmbedded() {
	d.embedded = make(map[string]*Collection, len(d.def.Embedded))
	for _, def := range d.def.Embedded {
		c := NewEmbeddedCollection(def.Type, d)
		d.embedded[def.Field] = c
		rows, _ := d.source[def.Field].([]any)
		for _, raw := range rows {
			row, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			child, err := NewDocument(d.reg, def.Type, row, &ConstructOptions{Parent: d, Pack: d.pack})
			if err != nil {
				if child != nil && child.ID() != "" {
					c.SetInvalid(child)
				}
				continue
			}
			if child.ID() == "" {
				continue
			}
			// Set cannot fail here: the child was just constructed with
			// the collection's declared type and a verified id.
			_ = c.Set(child)
		}
	}
}
