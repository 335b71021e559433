package domain

import (
	"fmt"
	"strconv"
)

// FieldKind narrows the value space of a schema field.
type FieldKind int

// Recognised field kinds.
const (
	// KindAny accepts any plain-data value.
	KindAny FieldKind = iota

	// KindString accepts strings; numbers and booleans coerce.
	KindString

	// KindNumber accepts numeric values; numeric strings coerce.
	KindNumber

	// KindBool accepts booleans; "true"/"false" and numbers coerce.
	KindBool

	// KindObject accepts nested objects.
	KindObject

	// KindArray accepts arrays.
	KindArray

	// KindID accepts well-formed 16-character document ids.
	KindID
)

// String returns the kind name.
func (k FieldKind) String() string {
	switch k {
	case KindAny:
		return "any"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	case KindID:
		return "id"
	default:
		return fmt.Sprintf("FieldKind(%d)", int(k))
	}
}

// Field declares one schema entry: its kind, default, and constraints.
type Field struct {
	// Name is the source key.
	Name string

	// Kind narrows the accepted value space.
	Kind FieldKind

	// Default fills missing or, with fallback validation, irreparable values.
	Default any

	// Required rejects absent values during full validation.
	Required bool

	// Nullable lets an explicit null pass untouched.
	Nullable bool

	// Choices, when set, restricts the value to this list.
	Choices []any

	// Validate, when set, runs after kind checking and may reject the value.
	Validate func(v any) error
}

// ValidateOptions controls Schema.Validate.
type ValidateOptions struct {
	// Partial validates only the keys present, for update patches.
	Partial bool

	// Strict fails the call on any validation failure.
	Strict bool

	// Fallback substitutes field defaults for unrecoverable values.
	Fallback bool

	// DocumentType names the type being validated in failure messages.
	DocumentType string
}

// Schema declares the fields of a document type and implements cleaning
// (coercion) and validation (rejection). Validation is the only point where
// arbitrary values are narrowed to the type system.
type Schema struct {
	fields []Field
	byName map[string]*Field
}

// NewSchema builds a schema from the given fields, in declaration order.
func NewSchema(fields ...Field) *Schema {
	s := &Schema{fields: fields, byName: make(map[string]*Field, len(fields))}
	for i := range s.fields {
		s.byName[s.fields[i].Name] = &s.fields[i]
	}
	return s
}

// Fields returns the declared fields in order.
func (s *Schema) Fields() []Field {
	return s.fields
}

// Has reports whether the schema declares name.
func (s *Schema) Has(name string) bool {
	_, ok := s.byName[name]
	return ok
}

// Clean coerces data toward the schema: known fields are coerced to their
// declared kind, missing fields receive defaults, and undeclared keys are
// stripped. The input is not mutated.
func (s *Schema) Clean(data map[string]any) map[string]any {
	out := make(map[string]any, len(s.fields))
	for i := range s.fields {
		f := &s.fields[i]
		v, present := data[f.Name]
		if !present {
			if f.Default != nil {
				out[f.Name] = DeepClone(f.Default)
			}
			continue
		}
		if v == nil {
			out[f.Name] = nil
			continue
		}
		out[f.Name] = coerce(f.Kind, v)
	}
	return out
}

// CleanPartial coerces only the keys present in a patch; no defaults are
// filled and undeclared keys are stripped.
func (s *Schema) CleanPartial(patch map[string]any) map[string]any {
	out := make(map[string]any, len(patch))
	for name, v := range patch {
		f, ok := s.byName[name]
		if !ok {
			continue
		}
		if v == nil {
			out[name] = nil
			continue
		}
		out[name] = coerce(f.Kind, v)
	}
	return out
}

// Validate checks data against the schema and returns a verified copy.
// With Strict, the first pass collects every failure and the call fails.
// Without Strict, irreparable fields are replaced by their default when
// Fallback is set, or dropped otherwise.
func (s *Schema) Validate(data map[string]any, opts ValidateOptions) (map[string]any, error) {
	verr := &ValidationError{DocumentType: opts.DocumentType}
	out := make(map[string]any, len(data))

	for i := range s.fields {
		f := &s.fields[i]
		v, present := data[f.Name]
		if !present {
			if opts.Partial {
				continue
			}
			if f.Required {
				verr.Add(f.Name, CodeRequired, "field is required")
				if opts.Fallback && f.Default != nil {
					out[f.Name] = DeepClone(f.Default)
				}
			} else if f.Default != nil {
				out[f.Name] = DeepClone(f.Default)
			}
			continue
		}
		checked, failure := checkField(f, v)
		if failure != nil {
			verr.Failures = append(verr.Failures, *failure)
			if opts.Fallback && f.Default != nil {
				out[f.Name] = DeepClone(f.Default)
			}
			continue
		}
		out[f.Name] = checked
	}

	if opts.Strict && verr.HasFailures() {
		return nil, verr
	}
	return out, nil
}

// checkField verifies a single present value, returning the accepted value or
// a failure.
func checkField(f *Field, v any) (any, *ValidationFailure) {
	if v == nil {
		if f.Nullable {
			return nil, nil
		}
		return nil, &ValidationFailure{Path: f.Name, Code: CodeNotNullable, Reason: "null is not permitted"}
	}
	switch f.Kind {
	case KindString:
		if _, ok := v.(string); !ok {
			return nil, &ValidationFailure{Path: f.Name, Code: CodeWrongKind, Reason: fmt.Sprintf("expected string, got %T", v)}
		}
	case KindNumber:
		if _, ok := toFloat(v); !ok {
			return nil, &ValidationFailure{Path: f.Name, Code: CodeWrongKind, Reason: fmt.Sprintf("expected number, got %T", v)}
		}
	case KindBool:
		if _, ok := v.(bool); !ok {
			return nil, &ValidationFailure{Path: f.Name, Code: CodeWrongKind, Reason: fmt.Sprintf("expected bool, got %T", v)}
		}
	case KindObject:
		if _, ok := v.(map[string]any); !ok {
			return nil, &ValidationFailure{Path: f.Name, Code: CodeWrongKind, Reason: fmt.Sprintf("expected object, got %T", v)}
		}
	case KindArray:
		if _, ok := v.([]any); !ok {
			return nil, &ValidationFailure{Path: f.Name, Code: CodeWrongKind, Reason: fmt.Sprintf("expected array, got %T", v)}
		}
	case KindID:
		s, ok := v.(string)
		if !ok || !IsValidID(s) {
			return nil, &ValidationFailure{Path: f.Name, Code: CodeBadID, Reason: "expected a 16-character id"}
		}
	}
	if len(f.Choices) > 0 {
		found := false
		for _, c := range f.Choices {
			if ValueEqual(c, v) {
				found = true
				break
			}
		}
		if !found {
			return nil, &ValidationFailure{Path: f.Name, Code: CodeBadChoice, Reason: fmt.Sprintf("%v is not a permitted choice", v)}
		}
	}
	if f.Validate != nil {
		if err := f.Validate(v); err != nil {
			return nil, &ValidationFailure{Path: f.Name, Code: CodeBadValue, Reason: err.Error()}
		}
	}
	return DeepClone(v), nil
}

// coerce converts v toward kind without rejecting; validation narrows later.
func coerce(kind FieldKind, v any) any {
	switch kind {
	case KindString, KindID:
		switch t := v.(type) {
		case string:
			return t
		case bool:
			return strconv.FormatBool(t)
		default:
			if n, ok := toFloat(v); ok {
				return strconv.FormatFloat(n, 'f', -1, 64)
			}
		}
	case KindNumber:
		if n, ok := toFloat(v); ok {
			return n
		}
		if s, ok := v.(string); ok {
			if n, err := strconv.ParseFloat(s, 64); err == nil {
				return n
			}
		}
	case KindBool:
		switch t := v.(type) {
		case bool:
			return t
		case string:
			if b, err := strconv.ParseBool(t); err == nil {
				return b
			}
		default:
			if n, ok := toFloat(v); ok {
				return n != 0
			}
		}
	case KindArray:
		switch t := v.(type) {
		case []any:
			return DeepClone(t)
		case []map[string]any:
			return DeepClone(t)
		}
	case KindObject:
		if m, ok := v.(map[string]any); ok {
			return DeepClone(m)
		}
	}
	return DeepClone(v)
}
