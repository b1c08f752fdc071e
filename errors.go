package tracekit

import (
	"errors"
	"fmt"

	"github.com/hupe1980/tracekit/mempool"
	"github.com/hupe1980/tracekit/source"
	"github.com/hupe1980/tracekit/strpool"
	"github.com/hupe1980/tracekit/tracefile"
)

var (
	// ErrClosed is returned when a closed parser is used.
	ErrClosed = errors.New("tracekit: parser is closed")

	// ErrNotFound is returned when a trace does not exist in its source.
	ErrNotFound = source.ErrNotFound

	// ErrExhausted is returned when an arena or the memory limit refuses to
	// grow. The parse cannot continue.
	ErrExhausted = mempool.ErrExhausted
)

// ErrOpenTrace indicates a trace could not be opened or its stream could
// not be decoded. The parser may simply try another trace.
//
// The original underlying error can be accessed via errors.Unwrap.
type ErrOpenTrace struct {
	Name  string
	cause error
}

func (e *ErrOpenTrace) Error() string {
	return fmt.Sprintf("open trace %q: %v", e.Name, e.cause)
}

func (e *ErrOpenTrace) Unwrap() error { return e.cause }

func translateError(name string, err error) error {
	if err == nil {
		return nil
	}

	var ote *ErrOpenTrace
	if errors.As(err, &ote) {
		return err
	}
	if errors.Is(err, tracefile.ErrOpen) {
		return &ErrOpenTrace{Name: name, cause: err}
	}

	if errors.Is(err, tracefile.ErrClosed) || errors.Is(err, strpool.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}

	return err
}
