// Package dispatcher routes inbound channel messages to native backends
// through an explicit dispatch table.
package dispatcher

import (
	"errors"

	"github.com/morezero/webapps-bridge/pkg/semver"
)

// Dispatch failure codes.
const (
	CodeMalformedMessage = "MALFORMED_MESSAGE"
	CodeUnresolvedMethod = "UNRESOLVED_METHOD"
	CodeUnknownObject    = "UNKNOWN_OBJECT"
	CodeStaleObject      = "STALE_OBJECT"
	CodeBackendFailure   = "BACKEND_FAILURE"
)

// DispatchError is a structured dispatch failure. It is returned to the
// caller of Dispatch and logged, but never sent to content.
type DispatchError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Target  string `json:"target,omitempty"`
	Name    string `json:"name,omitempty"`
	Err     error  `json:"-"`
}

func (e *DispatchError) Error() string {
	return e.Code + ": " + e.Message
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// NewDispatchError creates a new DispatchError.
func NewDispatchError(code, message string, cause error) *DispatchError {
	return &DispatchError{Code: code, Message: message, Err: cause}
}

// withCall records the message target and method name the failure belongs to.
func (e *DispatchError) withCall(target, name string) *DispatchError {
	e.Target = target
	e.Name = name
	return e
}

// UnresolvedMethodError reports a method path with no table entry. URI and
// ClassName are set for object method calls.
type UnresolvedMethodError struct {
	Namespace string
	Method    string
	URI       string
	ClassName string
}

func (e *UnresolvedMethodError) Error() string {
	if e.ClassName != "" {
		return "unresolved method " + e.URI + "/" + e.ClassName + "." + e.Method
	}
	if e.Namespace == "" {
		return "unresolved method " + e.Method
	}
	return "unresolved method " + semver.BuildMethodPath(e.Namespace, e.Method)
}

// Code returns the failure code of err, or "" if err is not a DispatchError.
func Code(err error) string {
	var de *DispatchError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
