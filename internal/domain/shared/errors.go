// Package shared contains common domain types, errors, and events
// used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// kind is a sentinel error that may refine a broader parent kind,
// so that errors.Is(ErrAlreadyActive, ErrInvalidStateTransition) holds.
type kind struct {
	msg    string
	parent error
}

func (k *kind) Error() string { return k.msg }
func (k *kind) Unwrap() error { return k.parent }

func newKind(msg string, parent error) error {
	return &kind{msg: msg, parent: parent}
}

// Base error kinds for errors.Is() checking.
var (
	ErrNotFound   = errors.New("entity not found")
	ErrValidation = errors.New("validation error")

	// Session state machine
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrAlreadyActive          = newKind("session already active", ErrInvalidStateTransition)
	ErrNotActive              = newKind("no open session", ErrInvalidStateTransition)
	ErrAlreadyPaused          = newKind("session already paused", ErrInvalidStateTransition)

	// Focus timer
	ErrAlreadyRunning = errors.New("already running")
	ErrNotRunning     = errors.New("not running")

	// Economy
	ErrUnknownItem       = errors.New("unknown item")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAlreadyOwned      = errors.New("item already owned")
	ErrNotOwned          = errors.New("item not owned")

	// Infrastructure
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrFeatureDisabled    = errors.New("feature disabled")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g. "study", "economy", "progression"
	Op      string // operation that failed, e.g. "Pause", "Purchase"
	Kind    error  // sentinel kind for errors.Is()
	Message string // human-readable message
	Err     error  // underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error, or the kind when there is none.
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is matches against both the kind chain and the wrapped error.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Storage wraps a persistence failure as ErrStorageUnavailable.
// Errors that already carry a domain kind pass through unchanged.
func Storage(domain, op string, err error) error {
	if err == nil {
		return nil
	}
	var de *DomainError
	if errors.As(err, &de) {
		return err
	}
	return WrapError(domain, op, ErrStorageUnavailable, "storage call failed", err)
}

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsStateError reports whether err is a deterministic session/timer state error.
func IsStateError(err error) bool {
	return errors.Is(err, ErrInvalidStateTransition) ||
		errors.Is(err, ErrAlreadyRunning) ||
		errors.Is(err, ErrNotRunning)
}

// IsStorage reports whether err originates from the persistent store.
func IsStorage(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}
