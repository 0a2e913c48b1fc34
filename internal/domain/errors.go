package domain

import (
	"errors"
	"fmt"
)

// ErrCapabilityDisabled is wrapped by CapabilityDisabledError.
var ErrCapabilityDisabled = errors.New("capability not enabled")

// CapabilityDisabledError reports that a capability identifier is not configured.
type CapabilityDisabledError struct {
	Capability string // "Browser" | "Code Interpreter" | "Memory"
}

func (e *CapabilityDisabledError) Error() string {
	return e.Capability + " capability not enabled"
}

func (e *CapabilityDisabledError) Unwrap() error { return ErrCapabilityDisabled }

// NoDataError is returned when a browser task finishes without a done payload.
type NoDataError struct {
	Task string
}

func (e *NoDataError) Error() string { return "NO Data" }

// ArgumentError reports a missing or malformed tool argument.
type ArgumentError struct {
	Field  string
	Reason string
}

func (e *ArgumentError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("missing argument: %s", e.Field)
	}
	return fmt.Sprintf("invalid argument %s: %s", e.Field, e.Reason)
}

// FailureReason classifies an error for metrics labels.
func FailureReason(err error) string {
	var argErr *ArgumentError
	var noData *NoDataError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCapabilityDisabled):
		return "disabled"
	case errors.As(err, &argErr):
		return "invalid_args"
	case errors.As(err, &noData):
		return "no_data"
	default:
		return "call_failed"
	}
}
