package bridge

import (
	"errors"
	"fmt"
)

// ErrLifecycleViolation is wrapped by every error caused by calling Bridge
// operations out of order.
var ErrLifecycleViolation = errors.New("bridge: lifecycle violation")

// ErrBoundaryContractViolation is the panic value raised when a completion is
// invoked twice, invoked after disposal, or resolved through a released
// context. It is never returned as an error.
var ErrBoundaryContractViolation = errors.New("bridge: boundary contract violation")

// ConfigError reports that the configuration could not be read, parsed, or
// turned into an engine. It is fatal to the Bridge that returned it.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return "bridge: config error: " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func lifecycleViolation(op string, s state) error {
	return fmt.Errorf("%w: %s called while %s", ErrLifecycleViolation, op, s)
}

func reentrantCall(op string) error {
	return fmt.Errorf("%w: %s called during Tick", ErrLifecycleViolation, op)
}

func boundaryViolation(format string, args ...any) error {
	return fmt.Errorf("%w: "+format,
		append([]any{ErrBoundaryContractViolation}, args...)...)
}
