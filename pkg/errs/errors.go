// Package errs defines the engine-wide classified error type shared by every
// layer — variable store, condition evaluator, search runtime, package
// model, planner, executor, and RPC transport — so errors carry a uniform
// Kind (§7) and retry Class across package boundaries without import
// cycles back into the domain model.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error the way the wire protocol and the BA
// callbacks expect to see it. It is distinct from the HRESULT-style Code,
// which callers may still attach for cross-process reporting.
type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindTypeMismatch     Kind = "type_mismatch"
	KindInvalidArg       Kind = "invalid_arg"
	KindInvalidData      Kind = "invalid_data"
	KindAccessDenied     Kind = "access_denied"
	KindCancelled        Kind = "cancelled"
	KindRebootRequired   Kind = "reboot_required"
	KindRebootInitiated  Kind = "reboot_initiated"
	KindPipeClosed       Kind = "pipe_closed"
	KindProtocolMismatch Kind = "protocol_mismatch"
	KindPackageFailed    Kind = "package_failed"
	KindExtensionFailed  Kind = "extension_failed"
	KindEngineActive     Kind = "engine_active"
	KindInternal         Kind = "internal"
)

// Class is the retry classification layered under a Kind: two errors with
// different Kinds can still share a Class, and the executor's retry loop
// dispatches on Class, not Kind.
type Class string

const (
	ClassTransient Class = "transient"
	ClassThrottled Class = "throttled"
	ClassConflict  Class = "conflict"
	ClassPermanent Class = "permanent"
)

// defaultClass maps a Kind to the Class it carries unless overridden.
func defaultClass(k Kind) Class {
	switch k {
	case KindAccessDenied, KindCancelled:
		return ClassTransient
	case KindPipeClosed:
		return ClassTransient
	default:
		return ClassPermanent
	}
}

// Error is the engine's classified error type. Every layer — variable store,
// condition evaluator, search runtime, planner, executor, RPC transport —
// constructs and returns its own *Error rather than a bare fmt.Errorf.
type Error struct {
	Kind      Kind
	Class     Class
	Message   string
	Code      string
	Resource  string
	Operation string
	Position  int // 1-based rune offset, used by the condition evaluator
	Err       error
}

func (e *Error) Error() string {
	switch {
	case e.Resource != "" && e.Operation != "":
		return fmt.Sprintf("[%s] %s (resource=%s, op=%s): %s", e.Kind, e.Message, e.Resource, e.Operation, e.unwrapMessage())
	case e.Resource != "":
		return fmt.Sprintf("[%s] %s (resource=%s): %s", e.Kind, e.Message, e.Resource, e.unwrapMessage())
	default:
		return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Message, e.unwrapMessage())
	}
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) unwrapMessage() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New builds an *Error of the given kind with the default class for that kind.
func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Class: defaultClass(kind), Message: message, Err: err}
}

// NewNotFound, NewTypeMismatch, ... are constructors for the common error kinds.
func NewNotFound(message string) *Error      { return New(KindNotFound, message, nil) }
func NewTypeMismatch(message string) *Error  { return New(KindTypeMismatch, message, nil) }
func NewInvalidArg(message string) *Error    { return New(KindInvalidArg, message, nil) }
func NewInvalidData(message string) *Error   { return New(KindInvalidData, message, nil) }
func NewAccessDenied(message string) *Error  { return New(KindAccessDenied, message, nil) }
func NewCancelled(message string) *Error     { return New(KindCancelled, message, nil) }
func NewPipeClosed(message string) *Error    { return New(KindPipeClosed, message, nil) }
func NewProtocolMismatch(m string) *Error    { return New(KindProtocolMismatch, m, nil) }
func NewPackageFailed(m string, err error) *Error {
	return New(KindPackageFailed, m, err)
}
func NewExtensionFailed(m string, err error) *Error {
	return New(KindExtensionFailed, m, err)
}
func NewInternal(message string, err error) *Error { return New(KindInternal, message, err) }

// WithCode, WithResource, WithOperation, WithPosition, WithClass are
// chainable setters matching the engine-wide builder idiom.
func (e *Error) WithCode(code string) *Error           { e.Code = code; return e }
func (e *Error) WithResource(resource string) *Error   { e.Resource = resource; return e }
func (e *Error) WithOperation(operation string) *Error { e.Operation = operation; return e }
func (e *Error) WithPosition(pos int) *Error           { e.Position = pos; return e }
func (e *Error) WithClass(c Class) *Error              { e.Class = c; return e }

// Is* helpers let callers branch on error kind without a type assertion.
func IsKind(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}

func IsNotFound(err error) bool     { return IsKind(err, KindNotFound) }
func IsTypeMismatch(err error) bool { return IsKind(err, KindTypeMismatch) }
func IsInvalidData(err error) bool  { return IsKind(err, KindInvalidData) }
func IsCancelled(err error) bool    { return IsKind(err, KindCancelled) }

// IsRetryable reports whether the executor's retry loop should attempt the
// action again rather than failing the run outright.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == ClassTransient || e.Class == ClassThrottled || e.Class == ClassConflict
	}
	return false
}

// Well-known error codes surfaced across process boundaries in the RPC layer.
const (
	ErrCodeValidation = "VALIDATION_ERROR"
	ErrCodeInternal   = "INTERNAL_ERROR"
	ErrCodeNotImpl    = "NOT_IMPLEMENTED"
)
