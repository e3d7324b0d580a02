// Package wferrors provides the error taxonomy used across the workflow
// engine. It mirrors the shape of the platform's internal/errors package
// (a code, a human message, optional wrapped detail) but the codes are the
// engine's own error-kind vocabulary instead of HTTP error codes.
package wferrors

import "fmt"

// Code is a machine-readable error kind. Unlike an HTTP-facing error code,
// Codes here describe engine-level failure categories and are tested by
// unwrapping to *EngineError (HasCode), not by comparing error strings.
type Code string

const (
	CodeInvalidArgument     Code = "invalid-argument"
	CodeNotFound            Code = "not-found"
	CodeAlreadyRegistered   Code = "already-registered"
	CodeAlreadyPrepared     Code = "already-prepared"
	CodeAlreadyDead         Code = "already-dead"
	CodeUnprepared          Code = "unprepared"
	CodeInvalidPlugin       Code = "invalid-plugin"
	CodeInvalidStatus       Code = "invalid-status"
	CodeWorkflowFinished    Code = "workflow-finished"
	CodeWorkflowUnitExists  Code = "workflow-unit-exists"
	CodeWorkflowStopped     Code = "workflow-stopped"
	CodeUnhandled           Code = "unhandled"
)

// EngineError is the concrete error type raised throughout the engine.
// The sequencer tests Code via IsInvalidArgument to choose between a
// BadRequestEnd and an ErrorEnd (spec §4.3, §7).
type EngineError struct {
	Code    Code
	Message string
	Err     error
}

func (e *EngineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// New creates an EngineError with the given code and message.
func New(code Code, message string) *EngineError {
	return &EngineError{Code: code, Message: message}
}

// Newf creates an EngineError with a formatted message.
func Newf(code Code, format string, args ...any) *EngineError {
	return &EngineError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error under the given code.
func Wrap(code Code, message string, err error) *EngineError {
	return &EngineError{Code: code, Message: message, Err: err}
}

// IsInvalidArgument reports whether err (or something it wraps) is an
// EngineError with CodeInvalidArgument. The sequencer uses this to decide
// BadRequestEnd vs ErrorEnd (spec §4.3).
func IsInvalidArgument(err error) bool {
	return HasCode(err, CodeInvalidArgument)
}

// HasCode reports whether err (or something it wraps) is an EngineError
// carrying the given code.
func HasCode(err error, code Code) bool {
	var ee *EngineError
	if ok := asEngineError(err, &ee); ok {
		return ee.Code == code
	}
	return false
}

// asEngineError walks the Unwrap chain looking for an *EngineError. It is a
// small local stand-in for errors.As so callers that only need the Code
// don't need to import errors for this one check; callers that need full
// errors.As semantics (multi-target chains) should use errors.As directly
// since EngineError implements Unwrap.
func asEngineError(err error, target **EngineError) bool {
	for err != nil {
		if ee, ok := err.(*EngineError); ok {
			*target = ee
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func InvalidArgument(message string) *EngineError {
	return New(CodeInvalidArgument, message)
}

func NotFound(kind, name string) *EngineError {
	return Newf(CodeNotFound, "%s %q not found", kind, name)
}

func AlreadyRegistered(name string) *EngineError {
	return Newf(CodeAlreadyRegistered, "plugin %q already registered", name)
}

func InvalidPlugin(message string) *EngineError {
	return New(CodeInvalidPlugin, message)
}

func WorkflowFinished() *EngineError {
	return New(CodeWorkflowFinished, "workflow run already finished")
}

func WorkflowUnitExists(name string) *EngineError {
	return Newf(CodeWorkflowUnitExists, "unit %q already exists", name)
}

func WorkflowStopped() *EngineError {
	return New(CodeWorkflowStopped, "workflow execution stopped")
}

func Unhandled(err error) *EngineError {
	return Wrap(CodeUnhandled, "unhandled error", err)
}
