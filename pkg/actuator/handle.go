package actuator

import (
	"fmt"
	"sync"

	"github.com/robotalks/currentloop/pkg/dxl"
)

// Mode is the operating mode of an actuator.
type Mode int

// Operating modes.
const (
	ModeCurrent          Mode = 0
	ModeVelocity         Mode = 1
	ModePosition         Mode = 3
	ModeExtendedPosition Mode = 4
	ModeCurrentPosition  Mode = 5
	ModePWM              Mode = 16
	// ModeUnknown means the mode hasn't been written in this session.
	ModeUnknown Mode = -1
)

func (m Mode) String() string {
	switch m {
	case ModeCurrent:
		return "current"
	case ModeVelocity:
		return "velocity"
	case ModePosition:
		return "position"
	case ModeExtendedPosition:
		return "extended-position"
	case ModeCurrentPosition:
		return "current-position"
	case ModePWM:
		return "pwm"
	case ModeUnknown:
		return "unknown"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Handle is one addressable actuator and its last known state.
// State changes only when a write through the handle succeeds.
type Handle struct {
	ID            byte
	Mode          Mode
	TorqueEnabled bool
	GoalCurrent   int16

	regs  dxl.Registers
	state State
	lock  sync.RWMutex
	valid bool
}

// NewHandle creates a handle for id on regs.
func NewHandle(regs dxl.Registers, id byte) *Handle {
	return &Handle{ID: id, Mode: ModeUnknown, regs: regs, valid: true}
}

// State returns the last setup state reached.
func (h *Handle) State() State {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return h.state
}

// Valid tells if the handle can still be used.
func (h *Handle) Valid() bool {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return h.valid
}

// Invalidate marks the handle unusable, called when the port closes.
func (h *Handle) Invalidate() {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.valid = false
}

// Read reads a register of the actuator.
func (h *Handle) Read(reg dxl.Register) (int64, error) {
	if !h.Valid() {
		return 0, ErrInvalidHandle
	}
	return h.regs.Read(h.ID, reg)
}

// Write writes a register and records its side effect.
func (h *Handle) Write(reg dxl.Register, value int64) error {
	if !h.Valid() {
		return ErrInvalidHandle
	}
	if err := h.regs.Write(h.ID, reg, value); err != nil {
		return err
	}
	h.lock.Lock()
	defer h.lock.Unlock()
	switch reg.Addr {
	case dxl.TorqueEnable.Addr:
		h.TorqueEnabled = value != 0
	case dxl.OperatingMode.Addr:
		h.Mode = Mode(value)
	case dxl.GoalCurrent.Addr:
		h.GoalCurrent = int16(value)
	}
	return nil
}

func (h *Handle) setState(s State) {
	h.lock.Lock()
	h.state = s
	h.lock.Unlock()
}

func (h *Handle) String() string {
	return fmt.Sprintf("actuator[%d]", h.ID)
}
