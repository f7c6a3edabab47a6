package axi4bus

import (
	"errors"
	"fmt"
)

// Error represents a structured axi4bus error with context.
type Error struct {
	Op    string  // operation that failed (e.g. "SubmitWrite", "PlanBurst")
	Token uint64  // caller token, 0 if not applicable
	Code  ErrCode // high-level error category
	Msg   string  // human-readable message
	Inner error   // wrapped error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string

	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.Token != 0 {
		parts = append(parts, fmt.Sprintf("token=%d", e.Token))
	}

	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}

	if len(parts) > 0 {
		return fmt.Sprintf("axi4bus: %s (%s)", msg, parts[0])
	}
	return fmt.Sprintf("axi4bus: %s", msg)
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is supports errors.Is comparison by error code.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

// ErrCode is a closed set of error categories this engine can produce.
type ErrCode string

const (
	// Caller errors, reported synchronously on submission (spec §7).
	ErrCodeDuplicateToken ErrCode = "duplicate token"
	ErrCodeInvalidSize    ErrCode = "invalid size"
	ErrCodeEmptyRequest   ErrCode = "empty request"

	// Invariant violations, fatal to the owning engine task (spec §7).
	ErrCodeUnknownID          ErrCode = "unknown burst id"
	ErrCodeProtocolViolation  ErrCode = "protocol violation"
	ErrCodeDoubleCreditReturn ErrCode = "id returned to credit pool twice"
)

// NewError creates a new structured error.
func NewError(op string, code ErrCode, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// NewTokenError creates a structured error tied to a caller token.
func NewTokenError(op string, token uint64, code ErrCode, msg string) *Error {
	return &Error{Op: op, Token: token, Code: code, Msg: msg}
}

// WrapError wraps an existing error with axi4bus context.
func WrapError(op string, code ErrCode, inner error) *Error {
	if inner == nil {
		return nil
	}
	return &Error{Op: op, Code: code, Msg: inner.Error(), Inner: inner}
}

// IsCode reports whether err is (or wraps) an *Error with the given code.
func IsCode(err error, code ErrCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// FatalError is the error Manager.Err reports once an engine task has
// stopped (spec §7: "terminates the enclosing task"). An invariant
// violation (a double credit release, an rlast mismatch, a beat for an
// unknown ID) panics inside the task; the task boundary recovers it into an
// ordinary error, and the manager wraps that error, or any other error a
// task returned, in a FatalError with ErrCodeProtocolViolation and the
// original as Inner. Idle and WaitIdle do not report it.
type FatalError struct {
	*fatalCause
}

// fatalCause names the embedded *Error so that its Error method, rather
// than a field called Error, is promoted and FatalError satisfies error.
type fatalCause = Error

func newFatal(op string, code ErrCode, msg string) FatalError {
	return FatalError{&Error{Op: op, Code: code, Msg: msg}}
}
