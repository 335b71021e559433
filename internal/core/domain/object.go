package domain

import (
	"reflect"
	"strings"
)

// DeepClone returns a deep copy of a plain-data value: maps, slices, and
// scalars. Values of other kinds are returned as-is.
func DeepClone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = DeepClone(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = DeepClone(val)
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = DeepClone(val)
		}
		return out
	default:
		return v
	}
}

// CloneMap is DeepClone specialised to an object root. A nil input yields an
// empty map.
func CloneMap(obj map[string]any) map[string]any {
	if obj == nil {
		return map[string]any{}
	}
	return DeepClone(obj).(map[string]any)
}

// Flatten converts a nested object into a single level of dotted paths.
// Empty nested objects are preserved under their own path.
func Flatten(obj map[string]any) map[string]any {
	out := make(map[string]any)
	flattenInto(out, "", obj)
	return out
}

func flattenInto(out map[string]any, prefix string, obj map[string]any) {
	for k, v := range obj {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok && len(nested) > 0 {
			flattenInto(out, path, nested)
			continue
		}
		out[path] = v
	}
}

// Expand converts dotted paths back into a nested object. Values that are
// themselves objects are expanded recursively, so mixed inputs are safe.
func Expand(obj map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range obj {
		if nested, ok := v.(map[string]any); ok {
			v = Expand(nested)
		}
		setDotted(out, k, v)
	}
	return out
}

func setDotted(obj map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	cur := obj
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[part] = next
		}
		cur = next
	}
	last := parts[len(parts)-1]
	if incoming, ok := value.(map[string]any); ok {
		if existing, ok := cur[last].(map[string]any); ok {
			// Both sides are objects: merge so the outcome does not depend
			// on the order the paths were visited in.
			mergeInto(existing, incoming)
			return
		}
	}
	cur[last] = value
}

// SetDotted assigns value at a dotted path, creating intermediate objects.
func SetDotted(obj map[string]any, path string, value any) {
	setDotted(obj, path, value)
}

// GetDotted resolves a dotted path within obj.
func GetDotted(obj map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var cur any = obj
	for _, part := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// MergeObject applies changes over target and returns a new object; neither
// input is mutated. Dotted keys in changes are expanded first. When recursive
// is true nested objects are merged key by key; when false each top-level key
// in changes replaces the target value wholesale.
func MergeObject(target, changes map[string]any, recursive bool) map[string]any {
	out := CloneMap(target)
	expanded := Expand(changes)
	if !recursive {
		for k, v := range expanded {
			out[k] = DeepClone(v)
		}
		return out
	}
	mergeInto(out, expanded)
	return out
}

func mergeInto(target, changes map[string]any) {
	for k, v := range changes {
		cur, exists := target[k]
		nestedChange, changeIsObj := v.(map[string]any)
		nestedCur, curIsObj := cur.(map[string]any)
		if exists && changeIsObj && curIsObj {
			mergeInto(nestedCur, nestedChange)
			continue
		}
		target[k] = DeepClone(v)
	}
}

// DiffObject returns the entries of other that differ from base, as a nested
// object of changed leaves. Identical values are omitted; an empty result
// means the objects are equivalent.
func DiffObject(base, other map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range other {
		cur, exists := base[k]
		if !exists {
			out[k] = DeepClone(v)
			continue
		}
		nestedOther, otherIsObj := v.(map[string]any)
		nestedBase, baseIsObj := cur.(map[string]any)
		if otherIsObj && baseIsObj {
			if nested := DiffObject(nestedBase, nestedOther); len(nested) > 0 {
				out[k] = nested
			}
			continue
		}
		if !ValueEqual(cur, v) {
			out[k] = DeepClone(v)
		}
	}
	return out
}

// ValueEqual compares two plain-data values, treating all numeric types as
// equivalent when their values match. JSON decoding produces float64 while
// in-process writers use int; the diff must not see those as changes.
func ValueEqual(a, b any) bool {
	if na, ok := toFloat(a); ok {
		if nb, ok := toFloat(b); ok {
			return na == nb
		}
		return false
	}
	if am, ok := a.(map[string]any); ok {
		bm, ok := b.(map[string]any)
		if !ok || len(am) != len(bm) {
			return false
		}
		for k, av := range am {
			bv, exists := bm[k]
			if !exists || !ValueEqual(av, bv) {
				return false
			}
		}
		return true
	}
	if as, ok := a.([]any); ok {
		bs, ok := b.([]any)
		if !ok || len(as) != len(bs) {
			return false
		}
		for i := range as {
			if !ValueEqual(as[i], bs[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case float32:
		return float64(t), true
	case float64:
		return t, true
	default:
		return 0, false
	}
}
