package graph

import (
	"errors"
	"fmt"
)

// Transient dependency failures. These are absorbed by the engines and
// converted into degraded behavior (fallback vector, fallback graph);
// they are never surfaced to external callers as hard failures.
var (
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")
	ErrStoreUnavailable     = errors.New("graph store unavailable")
)

// IsStoreUnavailable reports whether err wraps ErrStoreUnavailable.
func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// ValidationError reports malformed or missing caller input. It is always
// surfaced to the caller and never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// Validationf builds a ValidationError for the given field.
func Validationf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// NotFoundError reports an unknown node or edge identity. Surfaced to the
// caller.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// NotFound builds a NotFoundError for the given kind and id.
func NotFound(kind string, id any) error {
	return &NotFoundError{Kind: kind, ID: fmt.Sprint(id)}
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// InconsistencyError marks data that violates a referential invariant
// (orphaned edge, missing embedding). It is logged and scheduled for
// background repair, never fatal to the triggering request.
type InconsistencyError struct {
	Kind   string
	Detail string
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("data inconsistency: %s: %s", e.Kind, e.Detail)
}

// Inconsistent builds an InconsistencyError.
func Inconsistent(kind, detail string) error {
	return &InconsistencyError{Kind: kind, Detail: detail}
}
