package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the framework.
type ErrorCode string

const (
	// ErrConfiguration indicates an invalid static declaration: a cyclic
	// stage graph, a task referencing an undeclared predecessor, or a
	// missing agent/task definition. Detected before execution starts.
	ErrConfiguration ErrorCode = "CONFIGURATION"

	// ErrSchemaValidation indicates that raw agent output does not satisfy
	// a declared output schema's shape or bound constraints.
	ErrSchemaValidation ErrorCode = "SCHEMA_VALIDATION"

	// ErrCapability indicates a failure from an external collaborator
	// (agent reasoning or tool invocation), including timeouts.
	ErrCapability ErrorCode = "CAPABILITY"

	// ErrStageFailed wraps the first underlying error from a stage's body.
	ErrStageFailed ErrorCode = "STAGE_FAILED"
)

// Error represents a structured error with code, message, and the pipeline
// coordinates needed to locate the failure.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Stage   string    `json:"stage,omitempty"`
	Task    string    `json:"task,omitempty"`
	Item    int       `json:"item"`
	Cause   error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s]", e.Code)
	if e.Stage != "" {
		msg += fmt.Sprintf(" stage %s:", e.Stage)
	}
	if e.Task != "" {
		msg += fmt.Sprintf(" task %s:", e.Task)
	}
	if e.Item >= 0 {
		msg += fmt.Sprintf(" item %d:", e.Item)
	}
	msg += " " + e.Message
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
// Item defaults to -1, meaning "not part of a fan-out batch".
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, Item: -1}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithStage sets the stage name the error originated from.
func (e *Error) WithStage(stage string) *Error {
	e.Stage = stage
	return e
}

// WithTask sets the task name the error originated from.
func (e *Error) WithTask(task string) *Error {
	e.Task = task
	return e
}

// WithItem sets the item index within a fan-out batch.
func (e *Error) WithItem(item int) *Error {
	e.Item = item
	return e
}

// GetErrorCode extracts the error code from an error, unwrapping as needed.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code ErrorCode) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}
