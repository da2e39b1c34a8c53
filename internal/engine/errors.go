package engine

import (
	"errors"
	"fmt"
)

// InvocationError wraps a failure raised by a service operation, including
// a recovered panic. Stack is set only for panics.
type InvocationError struct {
	Service  string
	Function string
	Err      error
	Stack    string
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("%s.%s: %v", e.Service, e.Function, e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// IsPanic returns true if err wraps an InvocationError built from a panic.
func IsPanic(err error) bool {
	var ie *InvocationError
	if errors.As(err, &ie) {
		return ie.Stack != ""
	}
	return false
}

// failureMessage returns the text placed after the call signature on a
// failure line: the operation's own message, followed by the stack when the
// operation panicked.
func failureMessage(err error) string {
	var ie *InvocationError
	if !errors.As(err, &ie) {
		return err.Error()
	}
	if ie.Stack == "" {
		return ie.Err.Error()
	}
	return ie.Err.Error() + "\n" + ie.Stack
}
