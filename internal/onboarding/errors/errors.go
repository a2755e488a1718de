// Package errors holds the error taxonomy of the onboarding service: sentinel
// errors for business rules, store errors classified by Kind at the storage
// boundary and field-scoped validation errors.
package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound          = fmt.Errorf("not found")
	ErrInvalidInput      = fmt.Errorf("invalid input")
	ErrInvalidTransition = fmt.Errorf("invalid status transition")
	ErrUnauthenticated   = fmt.Errorf("unauthenticated")
	ErrForbidden         = fmt.Errorf("forbidden")
)

// Kind classifies a failure reported by the backing store or object storage.
type Kind int

const (
	KindUnknown Kind = iota
	// KindNotConfigured means a table, view or bucket does not exist.
	KindNotConfigured
	// KindConflict is a unique constraint violation.
	KindConflict
	// KindInvalidReference is a foreign key violation.
	KindInvalidReference
	// KindPolicyDenied is an access policy rejection.
	KindPolicyDenied
	// KindTooLarge means the payload exceeded a size limit.
	KindTooLarge
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindNotConfigured:
		return "not_configured"
	case KindConflict:
		return "conflict"
	case KindInvalidReference:
		return "invalid_reference"
	case KindPolicyDenied:
		return "policy_denied"
	case KindTooLarge:
		return "too_large"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// StoreError is a classified storage failure. The raw message of the
// underlying error is preserved.
type StoreError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrNotFound) match not-found store errors.
func (e *StoreError) Is(target error) bool {
	return e.Kind == KindNotFound && target == ErrNotFound
}

// NewStoreError wraps err with the given kind and operation name.
func NewStoreError(kind Kind, op string, err error) *StoreError {
	return &StoreError{Kind: kind, Op: op, Err: err}
}

// KindOf returns the Kind of the first StoreError in err's chain.
func KindOf(err error) Kind {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, ErrNotFound) {
		return KindNotFound
	}
	return KindUnknown
}

// IsKind reports whether err carries a StoreError of kind k.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// ValidationError maps field names to user-facing messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Unwrap makes validation errors match ErrInvalidInput.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// Add records a message for field, keeping the first message per field.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

// OrNil returns e when it holds at least one field error.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}
