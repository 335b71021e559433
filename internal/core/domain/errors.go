package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrUnknownType indicates an unregistered document type name.
	ErrUnknownType = errors.New("unknown document type")

	// ErrWrongType indicates a document offered to a collection of a
	// different declared type.
	ErrWrongType = errors.New("wrong document type for collection")

	// ErrDuplicateID indicates an id collision within a collection.
	ErrDuplicateID = errors.New("duplicate document id")

	// ErrImmutableID indicates an attempt to change a document id.
	ErrImmutableID = errors.New("document id is immutable")

	// ErrPermission indicates the acting user lacks the required level.
	ErrPermission = errors.New("insufficient permission")

	// ErrLocked indicates a write was attempted on a locked compendium pack.
	ErrLocked = errors.New("compendium pack is locked")

	// ErrNotReady indicates a world-scope operation before the runtime is ready.
	ErrNotReady = errors.New("runtime is not ready")

	// ErrNestedParent indicates an embedded operation whose parent is itself
	// an embedded document. Only the synthetic-actor path supports one level
	// of indirection, and it routes through the owning token.
	ErrNestedParent = errors.New("embedded documents of an embedded parent are not supported")

	// ErrUnlinkedToken indicates a synthetic-actor operation on a token that
	// is actor-linked and therefore has no override patch.
	ErrUnlinkedToken = errors.New("token is linked; no synthetic actor override exists")

	// ErrNoActor indicates a token whose base actor cannot be resolved.
	ErrNoActor = errors.New("token has no resolvable base actor")

	// ErrMacroExecution indicates macro execution was refused because no
	// executor capability is installed.
	ErrMacroExecution = errors.New("macro execution is not available")

	// ErrSettingUnregistered indicates a get/set on a setting key that was
	// never registered.
	ErrSettingUnregistered = errors.New("setting is not registered")
)

// Validation reason codes carried by ValidationFailure.
const (
	CodeRequired    = "required"
	CodeWrongKind   = "wrong-kind"
	CodeNotNullable = "not-nullable"
	CodeBadChoice   = "bad-choice"
	CodeBadValue    = "bad-value"
	CodeBadID       = "bad-id"
)

// ValidationFailure describes a single rejected field.
type ValidationFailure struct {
	// Path is the dotted field path, e.g. "prototypeToken.sight.range".
	Path string

	// Code is one of the Code* constants.
	Code string

	// Reason is a human-readable explanation.
	Reason string
}

// ValidationError reports why a proposed source or patch violates its schema.
// It carries one failure per rejected field.
type ValidationError struct {
	DocumentType string
	Failures     []ValidationFailure
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s validation failed", e.DocumentType)
	for _, f := range e.Failures {
		fmt.Fprintf(&b, "; %s [%s]: %s", f.Path, f.Code, f.Reason)
	}
	return b.String()
}

// Add appends a failure and returns the error for chaining.
func (e *ValidationError) Add(path, code, reason string) *ValidationError {
	e.Failures = append(e.Failures, ValidationFailure{Path: path, Code: code, Reason: reason})
	return e
}

// HasFailures reports whether any field was rejected.
func (e *ValidationError) HasFailures() bool {
	return len(e.Failures) > 0
}
