package actuator

import (
	"fmt"

	"github.com/golang/glog"

	"github.com/robotalks/currentloop/pkg/dxl"
)

// State is a step of the setup sequence.
type State int

// Setup states, in the only order they can be reached.
const (
	StateNone State = iota
	StateDisabled
	StateModeConfigured
	StateCurrentLimited
	StateTorqueEnabled
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StateDisabled:
		return "disabled"
	case StateModeConfigured:
		return "mode-configured"
	case StateCurrentLimited:
		return "current-limited"
	case StateTorqueEnabled:
		return "torque-enabled"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// SetupConfig configures the setup sequence.
type SetupConfig struct {
	Mode Mode
	// LimitRegister is either dxl.CurrentLimit or dxl.TorqueLimit.
	LimitRegister dxl.Register
	Limit         int64
}

// DefaultSetupConfig limits current through the current limit register.
func DefaultSetupConfig(limit int64) SetupConfig {
	return SetupConfig{Mode: ModeCurrent, LimitRegister: dxl.CurrentLimit, Limit: limit}
}

type setupStep struct {
	name  string
	reg   dxl.Register
	value int64
	reach State
}

func (c SetupConfig) steps() []setupStep {
	return []setupStep{
		{"disable torque", dxl.TorqueEnable, 0, StateDisabled},
		{"set operating mode", dxl.OperatingMode, int64(c.Mode), StateModeConfigured},
		{"clear goal current", dxl.GoalCurrent, 0, StateModeConfigured},
		{"set " + c.LimitRegister.Name, c.LimitRegister, c.Limit, StateCurrentLimited},
		{"enable torque", dxl.TorqueEnable, 1, StateTorqueEnabled},
	}
}

// Configure runs the setup sequence on h. It stops at the first failure
// and reports the last state reached.
func Configure(h *Handle, c SetupConfig) error {
	h.setState(StateNone)
	for _, step := range c.steps() {
		if err := h.Write(step.reg, step.value); err != nil {
			return &SetupError{ID: h.ID, Reached: h.State(), Step: step.name, Err: err}
		}
		h.setState(step.reach)
		glog.V(2).Infof("%s: %s, reached %s", h, step.name, step.reach)
	}
	return nil
}

// Disable turns torque off. It's allowed from any state.
func Disable(h *Handle) error {
	if err := h.Write(dxl.TorqueEnable, 0); err != nil {
		return err
	}
	h.setState(StateDisabled)
	return nil
}

// Neutral commands zero current.
func Neutral(h *Handle) error {
	return h.Write(dxl.GoalCurrent, 0)
}
