package wire

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed marks a message that failed shape validation.
var ErrMalformed = errors.New("wire:validate - malformed message")

// ValidateBindingCall checks the fields a dispatcher needs before resolving
// the call.
func ValidateBindingCall(m *BindingCall) error {
	if m == nil {
		return fmt.Errorf("%w: nil binding call", ErrMalformed)
	}
	if !strings.HasPrefix(m.Target, TargetBindingCall) {
		return fmt.Errorf("%w: unexpected target %q", ErrMalformed, m.Target)
	}
	if m.Name == "" {
		return fmt.Errorf("%w: missing name", ErrMalformed)
	}
	if m.Args == "" {
		return fmt.Errorf("%w: missing args", ErrMalformed)
	}
	return nil
}

// ValidateObjectMethodCall checks an object method call.
func ValidateObjectMethodCall(m *ObjectMethodCall) error {
	if m == nil {
		return fmt.Errorf("%w: nil object method call", ErrMalformed)
	}
	if m.Target != TargetObjectMethodCall {
		return fmt.Errorf("%w: unexpected target %q", ErrMalformed, m.Target)
	}
	switch {
	case m.Name == "":
		return fmt.Errorf("%w: missing name", ErrMalformed)
	case m.Args == "":
		return fmt.Errorf("%w: missing args", ErrMalformed)
	case m.ObjectID == "":
		return fmt.Errorf("%w: missing objectid", ErrMalformed)
	case m.APIURI == "":
		return fmt.Errorf("%w: missing api_uri", ErrMalformed)
	case m.ClassName == "":
		return fmt.Errorf("%w: missing class_name", ErrMalformed)
	}
	return nil
}

// ValidateCallbackInvocation checks a callback invocation.
func ValidateCallbackInvocation(m *CallbackInvocation) error {
	if m == nil {
		return fmt.Errorf("%w: nil callback invocation", ErrMalformed)
	}
	if m.Target != TargetCallbackInvocation {
		return fmt.Errorf("%w: unexpected target %q", ErrMalformed, m.Target)
	}
	if m.ID == "" {
		return fmt.Errorf("%w: missing id", ErrMalformed)
	}
	if m.Args == nil {
		return fmt.Errorf("%w: missing args", ErrMalformed)
	}
	return nil
}
