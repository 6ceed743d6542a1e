package telemetry

import (
	"errors"
	"fmt"
)

var (
	// ErrFlushed indicates the recorder no longer accepts samples.
	ErrFlushed = errors.New("recorder already flushed")
	// ErrOutOfOrder indicates a sample older than the previous one.
	ErrOutOfOrder = errors.New("sample out of order")
)

// FormatError is a malformed telemetry file.
type FormatError struct {
	Line int
	Msg  string
}

// Error implements error.
func (e *FormatError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}
