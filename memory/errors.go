package memory

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration = errors.New("memory: configuration error")
	ErrInvalidInput  = errors.New("memory: invalid input")
	ErrBackend       = errors.New("memory: backend failure")
	ErrNotFound      = errors.New("memory: not found")
)

// ConfigError reports a required setting that is missing or unusable.
// It matches ErrConfiguration under errors.Is.
type ConfigError struct {
	Setting string
	Reason  string
}

func (e *ConfigError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("memory: %s: %s", e.Setting, e.Reason)
	}
	return fmt.Sprintf("memory: %s is required but not configured", e.Setting)
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrConfiguration
}

// Invalidf returns an ErrInvalidInput error with a formatted reason.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// BackendError wraps an underlying backend failure for operation op.
func BackendError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrBackend, op, err)
}
