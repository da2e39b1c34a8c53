package registry

import (
	"errors"
	"fmt"
)

// UnauthorizedServiceError is returned by Authorize for a service name that
// is not on the allow-list. Callers treat it as fatal for the whole run.
type UnauthorizedServiceError struct {
	Service string
}

func (e *UnauthorizedServiceError) Error() string {
	return fmt.Sprintf("Unknown or unallowed service: %s", e.Service)
}

// ServiceNotFoundError is returned by Resolve for an allow-listed name that
// has no registered implementation.
type ServiceNotFoundError struct {
	Service string
}

func (e *ServiceNotFoundError) Error() string {
	return fmt.Sprintf("service %s is allowed but not registered", e.Service)
}

// UnknownFunctionError is returned when a resolved service has no operation
// under the requested name.
type UnknownFunctionError struct {
	Service  string
	Function string
}

func (e *UnknownFunctionError) Error() string {
	return fmt.Sprintf("Unknown function: %s.%s", e.Service, e.Function)
}

// IsUnauthorized returns true if err is or wraps an UnauthorizedServiceError.
func IsUnauthorized(err error) bool {
	var ue *UnauthorizedServiceError
	return errors.As(err, &ue)
}

// IsServiceNotFound returns true if err is or wraps a ServiceNotFoundError.
func IsServiceNotFound(err error) bool {
	var se *ServiceNotFoundError
	return errors.As(err, &se)
}

// IsUnknownFunction returns true if err is or wraps an UnknownFunctionError.
func IsUnknownFunction(err error) bool {
	var fe *UnknownFunctionError
	return errors.As(err, &fe)
}
