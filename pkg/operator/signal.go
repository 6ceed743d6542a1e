package operator

import (
	"go.uber.org/atomic"
)

// Signal is a stop flag shared by the control loop and the watchers.
// Once set it stays set.
type Signal struct {
	set atomic.Bool
}

// NewSignal creates an unset Signal.
func NewSignal() *Signal {
	return &Signal{}
}

// Set sets the flag. It returns true only for the call which set it.
func (s *Signal) Set() bool {
	return s.set.CompareAndSwap(false, true)
}

// IsSet tells if the flag is set.
func (s *Signal) IsSet() bool {
	return s.set.Load()
}
