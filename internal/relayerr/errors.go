// Package relayerr defines the two-kind error taxonomy shared by the
// router, adapters, and registry.
//
// Operational errors are expected failures (timeouts, missing commands,
// policy denials). They are recorded at step scope and do not by
// themselves terminate a run. Bug errors are invariant violations or
// unexpected failures; they terminate the run and re-surface to the
// caller.
package relayerr

import (
	"errors"
	"fmt"
)

// Code identifies an error category. Operational codes form a closed set;
// bug codes admit caller-defined values in addition to the two below.
type Code string

// Operational error codes.
const (
	CodeTimeout           Code = "TIMEOUT"
	CodeNonzeroExit       Code = "NONZERO_EXIT"
	CodeInvalidJSONOutput Code = "INVALID_JSON_OUTPUT"
	CodeCommandNotFound   Code = "COMMAND_NOT_FOUND"
	CodePermissionDenied  Code = "PERMISSION_DENIED"
	CodeCwdNotFound       Code = "CWD_NOT_FOUND"
	CodeCwdNotDirectory   Code = "CWD_NOT_DIRECTORY"
	CodeEnvInvalid        Code = "ENV_INVALID"
	CodeConnectionFailed  Code = "CONNECTION_FAILED"
	CodeHTTPError         Code = "HTTP_ERROR"
	CodeCapabilityMissing Code = "CAPABILITY_MISSING"
	CodeUnknownAdapter    Code = "UNKNOWN_ADAPTER"
	CodePolicyDenied      Code = "POLICY_DENIED"
	CodeMaxStepsExceeded  Code = "MAX_STEPS_EXCEEDED"
	CodeCancelled         Code = "CANCELLED"
)

// Bug error codes.
const (
	CodeBug     Code = "BUG_ERROR"
	CodeUnknown Code = "UNKNOWN_ERROR"
)

// OperationalError is an expected failure with a stable code and
// structured details. Recoverable at the step scope.
type OperationalError struct {
	Code    Code
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *OperationalError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// WithDetail returns the error with one detail field set.
// Mutates and returns the receiver for call chaining at construction.
func (e *OperationalError) WithDetail(key string, value any) *OperationalError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// NewOperational creates an operational error with the given code.
func NewOperational(code Code, message string) *OperationalError {
	return &OperationalError{Code: code, Message: message}
}

// Operationalf creates an operational error with a formatted message.
func Operationalf(code Code, format string, args ...any) *OperationalError {
	return &OperationalError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// BugError is an unexpected failure. Recorded, terminates the run, and
// re-surfaces to the caller.
type BugError struct {
	Code    Code
	Message string
	Details map[string]any
	Err     error
}

// Error implements the error interface.
func (e *BugError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As.
func (e *BugError) Unwrap() error {
	return e.Err
}

// NewBug creates a bug error with code BUG_ERROR.
func NewBug(message string) *BugError {
	return &BugError{Code: CodeBug, Message: message}
}

// WrapUnknown classifies an unrecognized error as UNKNOWN_ERROR.
// Used by the router for failures that are neither operational nor
// explicitly flagged as bugs.
func WrapUnknown(err error) *BugError {
	return &BugError{Code: CodeUnknown, Message: "unexpected error", Err: err}
}

// AsOperational extracts an OperationalError from a wrapped chain.
func AsOperational(err error) (*OperationalError, bool) {
	var oe *OperationalError
	if errors.As(err, &oe) {
		return oe, true
	}
	return nil, false
}

// AsBug extracts a BugError from a wrapped chain.
func AsBug(err error) (*BugError, bool) {
	var be *BugError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// IsOperational reports whether the error chain contains an operational error.
func IsOperational(err error) bool {
	_, ok := AsOperational(err)
	return ok
}

// IsBug reports whether the error chain contains a bug error.
func IsBug(err error) bool {
	_, ok := AsBug(err)
	return ok
}

// CodeOf returns the error code of the first classified error in the
// chain, or UNKNOWN_ERROR for unclassified errors.
func CodeOf(err error) Code {
	if oe, ok := AsOperational(err); ok {
		return oe.Code
	}
	if be, ok := AsBug(err); ok {
		return be.Code
	}
	return CodeUnknown
}

// DetailsOf returns the structured details of the first classified error
// in the chain, or nil.
func DetailsOf(err error) map[string]any {
	if oe, ok := AsOperational(err); ok {
		return oe.Details
	}
	if be, ok := AsBug(err); ok {
		return be.Details
	}
	return nil
}
