package domain

import (
	"fmt"
	"strings"
)

// Shared field constructors. Every document carries an _id and a flags
// object; world-scope documents additionally carry ownership, folder, and
// sort.
func idField() Field {
	return Field{Name: "_id", Kind: KindID}
}

func flagsField() Field {
	return Field{Name: "flags", Kind: KindObject, Default: map[string]any{}}
}

func ownershipField() Field {
	return Field{Name: "ownership", Kind: KindObject, Default: map[string]any{DefaultOwnershipKey: 0}}
}

func folderField() Field {
	return Field{Name: "folder", Kind: KindID, Nullable: true}
}

func sortField() Field {
	return Field{Name: "sort", Kind: KindNumber, Default: 0.0}
}

func nameField() Field {
	return Field{Name: "name", Kind: KindString, Required: true, Validate: func(v any) error {
		if s, _ := v.(string); strings.TrimSpace(s) == "" {
			return fmt.Errorf("name must not be blank")
		}
		return nil
	}}
}

// migrateSystemData renames the legacy "data" field to "system". Idempotent:
// a record already carrying "system" is returned unchanged.
func migrateSystemData(data map[string]any) map[string]any {
	legacy, ok := data["data"].(map[string]any)
	if !ok {
		return data
	}
	if _, exists := data["system"]; exists {
		return data
	}
	out := CloneMap(data)
	out["system"] = legacy
	delete(out, "data")
	return out
}

// migrateEffectLabel renames the legacy "label" field to "name". Idempotent.
func migrateEffectLabel(data map[string]any) map[string]any {
	label, ok := data["label"].(string)
	if !ok {
		return data
	}
	if _, exists := data["name"]; exists {
		return data
	}
	out := CloneMap(data)
	out["name"] = label
	delete(out, "label")
	return out
}

// BuiltinRegistry returns a registry populated with the standard document
// types. A host system may refine these by re-registering.
func BuiltinRegistry() *Registry {
	r := NewRegistry()
	for _, def := range builtinDefinitions() {
		if err := r.Register(def); err != nil {
			panic(err)
		}
	}
	return r
}

func builtinDefinitions() []*TypeDefinition {
	return []*TypeDefinition{
		{
			Name:       "Actor",
			WorldScope: true,
			Migrate:    migrateSystemData,
			Schema: NewSchema(
				idField(),
				nameField(),
				Field{Name: "type", Kind: KindString, Default: "character"},
				Field{Name: "img", Kind: KindString, Default: ""},
				Field{Name: "system", Kind: KindObject, Default: map[string]any{}},
				Field{Name: "prototypeToken", Kind: KindObject, Default: map[string]any{}},
				Field{Name: "items", Kind: KindArray, Default: []any{}},
				Field{Name: "effects", Kind: KindArray, Default: []any{}},
				folderField(),
				sortField(),
				ownershipField(),
				flagsField(),
			),
			Embedded: []EmbeddedDef{
				{Field: "items", Type: "Item"},
				{Field: "effects", Type: "ActiveEffect"},
			},
		},
		{
			Name:       "Item",
			WorldScope: true,
			Migrate:    migrateSystemData,
			Schema: NewSchema(
				idField(),
				nameField(),
				Field{Name: "type", Kind: KindString, Default: "base"},
				Field{Name: "img", Kind: KindString, Default: ""},
				Field{Name: "system", Kind: KindObject, Default: map[string]any{}},
				Field{Name: "effects", Kind: KindArray, Default: []any{}},
				folderField(),
				sortField(),
				ownershipField(),
				flagsField(),
			),
			Embedded: []EmbeddedDef{
				{Field: "effects", Type: "ActiveEffect"},
			},
		},
		{
			Name:    "ActiveEffect",
			Migrate: migrateEffectLabel,
			Schema: NewSchema(
				idField(),
				nameField(),
				Field{Name: "icon", Kind: KindString, Default: ""},
				Field{Name: "changes", Kind: KindArray, Default: []any{}},
				Field{Name: "disabled", Kind: KindBool, Default: false},
				Field{Name: "duration", Kind: KindObject, Default: map[string]any{}},
				Field{Name: "transfer", Kind: KindBool, Default: true},
				Field{Name: "origin", Kind: KindString, Default: ""},
				flagsField(),
			),
		},
		{
			Name:       "Scene",
			WorldScope: true,
			Schema: NewSchema(
				idField(),
				nameField(),
				Field{Name: "active", Kind: KindBool, Default: false},
				Field{Name: "navigation", Kind: KindBool, Default: true},
				Field{Name: "background", Kind: KindObject, Default: map[string]any{}},
				Field{Name: "width", Kind: KindNumber, Default: 4000.0},
				Field{Name: "height", Kind: KindNumber, Default: 3000.0},
				Field{Name: "grid", Kind: KindObject, Default: map[string]any{}},
				Field{Name: "tokens", Kind: KindArray, Default: []any{}},
				Field{Name: "lights", Kind: KindArray, Default: []any{}},
				Field{Name: "tiles", Kind: KindArray, Default: []any{}},
				Field{Name: "drawings", Kind: KindArray, Default: []any{}},
				Field{Name: "notes", Kind: KindArray, Default: []any{}},
				Field{Name: "templates", Kind: KindArray, Default: []any{}},
				folderField(),
				sortField(),
				ownershipField(),
				flagsField(),
			),
			Embedded: []EmbeddedDef{
				{Field: "tokens", Type: "Token"},
				{Field: "lights", Type: "AmbientLight"},
				{Field: "tiles", Type: "Tile"},
				{Field: "drawings", Type: "Drawing"},
				{Field: "notes", Type: "Note"},
				{Field: "templates", Type: "MeasuredTemplate"},
			},
		},
		{
			Name: "Token",
			Schema: NewSchema(
				idField(),
				Field{Name: "name", Kind: KindString, Default: ""},
				Field{Name: "actorId", Kind: KindID, Nullable: true},
				Field{Name: "actorLink", Kind: KindBool, Default: false},
				Field{Name: "actorData", Kind: KindObject, Default: map[string]any{}},
				Field{Name: "x", Kind: KindNumber, Default: 0.0},
				Field{Name: "y", Kind: KindNumber, Default: 0.0},
				Field{Name: "width", Kind: KindNumber, Default: 1.0},
				Field{Name: "height", Kind: KindNumber, Default: 1.0},
				Field{Name: "elevation", Kind: KindNumber, Default: 0.0},
				Field{Name: "hidden", Kind: KindBool, Default: false},
				Field{Name: "sight", Kind: KindObject, Default: map[string]any{}},
				flagsField(),
			),
		},
		{
			Name: "AmbientLight",
			Schema: NewSchema(
				idField(),
				Field{Name: "x", Kind: KindNumber, Default: 0.0},
				Field{Name: "y", Kind: KindNumber, Default: 0.0},
				Field{Name: "rotation", Kind: KindNumber, Default: 0.0},
				Field{Name: "config", Kind: KindObject, Default: map[string]any{}},
				Field{Name: "hidden", Kind: KindBool, Default: false},
				flagsField(),
			),
		},
		{
			Name: "Tile",
			Schema: NewSchema(
				idField(),
				Field{Name: "texture", Kind: KindObject, Default: map[string]any{}},
				Field{Name: "x", Kind: KindNumber, Default: 0.0},
				Field{Name: "y", Kind: KindNumber, Default: 0.0},
				Field{Name: "width", Kind: KindNumber, Default: 0.0},
				Field{Name: "height", Kind: KindNumber, Default: 0.0},
				Field{Name: "occlusion", Kind: KindObject, Default: map[string]any{}},
				Field{Name: "hidden", Kind: KindBool, Default: false},
				sortField(),
				flagsField(),
			),
		},
		{
			Name: "Drawing",
			Schema: NewSchema(
				idField(),
				Field{Name: "author", Kind: KindID, Nullable: true},
				Field{Name: "shape", Kind: KindObject, Default: map[string]any{}},
				Field{Name: "x", Kind: KindNumber, Default: 0.0},
				Field{Name: "y", Kind: KindNumber, Default: 0.0},
				Field{Name: "strokeColor", Kind: KindString, Default: "#ffffff"},
				Field{Name: "fillColor", Kind: KindString, Default: ""},
				Field{Name: "hidden", Kind: KindBool, Default: false},
				sortField(),
				flagsField(),
			),
		},
		{
			Name: "Note",
			Schema: NewSchema(
				idField(),
				Field{Name: "entryId", Kind: KindID, Nullable: true},
				Field{Name: "pageId", Kind: KindID, Nullable: true},
				Field{Name: "x", Kind: KindNumber, Default: 0.0},
				Field{Name: "y", Kind: KindNumber, Default: 0.0},
				Field{Name: "iconSize", Kind: KindNumber, Default: 40.0},
				Field{Name: "text", Kind: KindString, Default: ""},
				flagsField(),
			),
		},
		{
			Name: "MeasuredTemplate",
			Schema: NewSchema(
				idField(),
				Field{Name: "t", Kind: KindString, Default: "circle", Choices: []any{"circle", "cone", "rect", "ray"}},
				Field{Name: "x", Kind: KindNumber, Default: 0.0},
				Field{Name: "y", Kind: KindNumber, Default: 0.0},
				Field{Name: "distance", Kind: KindNumber, Default: 1.0},
				Field{Name: "direction", Kind: KindNumber, Default: 0.0},
				Field{Name: "angle", Kind: KindNumber, Default: 0.0},
				Field{Name: "width", Kind: KindNumber, Default: 0.0},
				flagsField(),
			),
		},
		{
			Name:       "JournalEntry",
			WorldScope: true,
			Schema: NewSchema(
				idField(),
				nameField(),
				Field{Name: "pages", Kind: KindArray, Default: []any{}},
				folderField(),
				sortField(),
				ownershipField(),
				flagsField(),
			),
			Embedded: []EmbeddedDef{
				{Field: "pages", Type: "JournalEntryPage"},
			},
		},
		{
			Name: "JournalEntryPage",
			Schema: NewSchema(
				idField(),
				nameField(),
				Field{Name: "type", Kind: KindString, Default: "text", Choices: []any{"text", "image", "pdf", "video"}},
				Field{Name: "title", Kind: KindObject, Default: map[string]any{"show": true, "level": 1}},
				Field{Name: "text", Kind: KindObject, Default: map[string]any{}},
				Field{Name: "src", Kind: KindString, Default: ""},
				sortField(),
				flagsField(),
			),
		},
		{
			Name:       "Macro",
			WorldScope: true,
			Schema: NewSchema(
				idField(),
				nameField(),
				Field{Name: "type", Kind: KindString, Default: "chat", Choices: []any{"chat", "script"}},
				Field{Name: "author", Kind: KindID, Nullable: true},
				Field{Name: "command", Kind: KindString, Default: ""},
				Field{Name: "img", Kind: KindString, Default: ""},
				folderField(),
				sortField(),
				ownershipField(),
				flagsField(),
			),
		},
		{
			Name:       "Setting",
			WorldScope: true,
			// Settings are server-managed; only GMs write them directly.
			CanCreate: func(user *User) bool { return user.IsGM() },
			Schema: NewSchema(
				idField(),
				Field{Name: "key", Kind: KindString, Required: true, Validate: func(v any) error {
					s, _ := v.(string)
					if !strings.Contains(s, ".") {
						return fmt.Errorf("setting key must be namespaced as <namespace>.<key>")
					}
					return nil
				}},
				Field{Name: "value", Kind: KindString, Default: "null"},
			),
		},
		{
			Name:       "User",
			WorldScope: true,
			CanCreate:  func(user *User) bool { return user.IsGM() },
			Schema: NewSchema(
				idField(),
				nameField(),
				Field{Name: "role", Kind: KindNumber, Default: 1.0},
				Field{Name: "color", Kind: KindString, Default: ""},
				Field{Name: "character", Kind: KindID, Nullable: true},
				flagsField(),
			),
		},
		{
			Name:       "Folder",
			WorldScope: true,
			Schema: NewSchema(
				idField(),
				nameField(),
				Field{Name: "type", Kind: KindString, Required: true},
				Field{Name: "color", Kind: KindString, Default: ""},
				folderField(),
				sortField(),
				flagsField(),
			),
		},
	}
}
