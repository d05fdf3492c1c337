// Package core holds the error type shared across mechaway's engine
// packages: the typed error kinds every subsystem returns instead of bare
// strings.
package core

import "fmt"

// Kind tags an Error with the category the HTTP adapters use to pick a
// status code.
type Kind string

const (
	KindBadRequest      Kind = "bad_request"
	KindNotFound        Kind = "not_found"
	KindConflict        Kind = "conflict"
	KindCompileError    Kind = "compile_error"
	KindValidationError Kind = "validation_error"
	KindBadNode         Kind = "bad_node"
	KindTriggerMisuse   Kind = "trigger_misuse"
	KindMissingSecret   Kind = "missing_secret"
	KindScriptError     Kind = "script_error"
	KindStorageError    Kind = "storage_error"
	KindCycleError      Kind = "cycle_error"
	KindUnknownStart    Kind = "unknown_start"
	KindEmptyFlow       Kind = "empty_flow"
	KindNodeError       Kind = "node_error"
)

// Error is mechaway's single error type. Every subsystem returns one of
// these instead of ad hoc wrapped strings, so adapters can dispatch on Kind
// without string matching.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func newError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, cause: cause}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.cause.Error())
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is lets errors.Is match on Kind alone, so callers can write
// errors.Is(err, core.NotFound("")) without caring about the message.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

func BadRequest(msg string) *Error      { return newError(KindBadRequest, msg, nil) }
func NotFound(msg string) *Error        { return newError(KindNotFound, msg, nil) }
func Conflict(msg string) *Error        { return newError(KindConflict, msg, nil) }
func CompileError(msg string) *Error    { return newError(KindCompileError, msg, nil) }
func ValidationError(msg string) *Error { return newError(KindValidationError, msg, nil) }
func BadNode(msg string) *Error         { return newError(KindBadNode, msg, nil) }
func TriggerMisuse(msg string) *Error   { return newError(KindTriggerMisuse, msg, nil) }
func MissingSecret(msg string) *Error   { return newError(KindMissingSecret, msg, nil) }
func ScriptError(msg string, cause error) *Error {
	return newError(KindScriptError, msg, cause)
}
func StorageError(msg string, cause error) *Error {
	return newError(KindStorageError, msg, cause)
}
func CycleError(msg string) *Error   { return newError(KindCycleError, msg, nil) }
func UnknownStart(msg string) *Error { return newError(KindUnknownStart, msg, nil) }
func EmptyFlow(msg string) *Error    { return newError(KindEmptyFlow, msg, nil) }

// NodeError wraps a failure from a specific node so callers can recover the
// offending node id without parsing the message.
func NodeError(nodeID string, cause error) *Error {
	return &Error{
		Kind:    KindNodeError,
		Message: fmt.Sprintf("node %q failed", nodeID),
		cause:   cause,
	}
}

// Of reports the Kind of the first *Error reached by following err's
// Unwrap chain (err itself included), or "" if there is none.
func Of(err error) Kind {
	var e *Error
	if err == nil {
		return ""
	}
	if as, ok := err.(*Error); ok {
		e = as
	} else if u, ok := err.(interface{ Unwrap() error }); ok {
		return Of(u.Unwrap())
	}
	if e == nil {
		return ""
	}
	return e.Kind
}
