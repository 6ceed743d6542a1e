package actuator

import (
	"errors"
	"fmt"
)

// ErrInvalidHandle indicates the handle was used after the port closed.
var ErrInvalidHandle = errors.New("invalid actuator handle")

// SetupError reports where the setup sequence halted.
type SetupError struct {
	ID      byte
	Reached State
	Step    string
	Err     error
}

// Error implements error.
func (e *SetupError) Error() string {
	return fmt.Sprintf("setup actuator %d: %s failed after %s: %v", e.ID, e.Step, e.Reached, e.Err)
}

// Unwrap returns the failed transaction.
func (e *SetupError) Unwrap() error {
	return e.Err
}
