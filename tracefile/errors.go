package tracefile

import (
	"errors"
	"fmt"
)

var (
	// ErrOpen is wrapped by every OpenError.
	ErrOpen = errors.New("tracefile: open failed")
	// ErrClosed is returned when a closed reader is used.
	ErrClosed = errors.New("tracefile: reader is closed")
	// ErrInvalidConfig is returned for negative tunables.
	ErrInvalidConfig = errors.New("tracefile: invalid config")
)

// OpenError reports a trace that could not be opened. It is recoverable:
// the caller decides whether to skip the trace or abort.
type OpenError struct {
	Name string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("tracefile: open %s: %v", e.Name, e.Err)
}

// Unwrap returns both the cause and ErrOpen.
func (e *OpenError) Unwrap() []error {
	return []error{ErrOpen, e.Err}
}
