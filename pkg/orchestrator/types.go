package orchestrator

import (
	"errors"
	"fmt"
	"time"

	"github.com/robotalks/currentloop/pkg/actuator"
	"github.com/robotalks/currentloop/pkg/control"
	"github.com/robotalks/currentloop/pkg/dxl"
)

// State is the lifecycle state of a run.
type State int32

// Run states.
const (
	StateIdle State = iota
	StateSetup
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSetup:
		return "setup"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Reason tells why a run stopped.
type Reason int

// Exit reasons.
const (
	ReasonNone Reason = iota
	ReasonDurationElapsed
	ReasonStopRequested
	ReasonTransactionFailure
	ReasonSetupFailure
	ReasonCanceled
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonDurationElapsed:
		return "duration elapsed"
	case ReasonStopRequested:
		return "stop requested"
	case ReasonTransactionFailure:
		return "transaction failure"
	case ReasonSetupFailure:
		return "setup failure"
	case ReasonCanceled:
		return "canceled"
	}
	return fmt.Sprintf("reason(%d)", int(r))
}

var (
	// ErrTooManyFailures indicates consecutive failed ticks reached the limit.
	ErrTooManyFailures = errors.New("too many consecutive failed ticks")
	// ErrAlreadyRun indicates an Orchestrator is used for a second run.
	ErrAlreadyRun = errors.New("orchestrator already run")
	// ErrGoalOutOfRange indicates start plus displacement overflows the position register.
	ErrGoalOutOfRange = errors.New("goal position out of range")
)

// Actuator configures one actuator of the run.
type Actuator struct {
	ID byte
	// Displacement is the goal relative to the position read after setup.
	Displacement int32
}

// Config defines a run.
type Config struct {
	Actuators []Actuator
	Setup     actuator.SetupConfig
	Gains     control.Config
	Duration  time.Duration
	Period    time.Duration
	// MaxConsecutiveFailures stops the run after so many failed ticks in
	// a row, 0 never stops.
	MaxConsecutiveFailures int
}

// Validate checks the config.
func (c *Config) Validate() error {
	if len(c.Actuators) == 0 {
		return errors.New("no actuators")
	}
	seen := make(map[byte]bool)
	for _, a := range c.Actuators {
		if a.ID > dxl.MaxID {
			return fmt.Errorf("invalid actuator ID %d", a.ID)
		}
		if seen[a.ID] {
			return fmt.Errorf("duplicated actuator ID %d", a.ID)
		}
		seen[a.ID] = true
	}
	if c.Duration <= 0 {
		return control.ErrInvalidDuration
	}
	if c.Period <= 0 {
		return errors.New("period must be positive")
	}
	if c.MaxConsecutiveFailures < 0 {
		return errors.New("max consecutive failures must not be negative")
	}
	if r := c.Setup.LimitRegister; r != dxl.CurrentLimit && r != dxl.TorqueLimit {
		return fmt.Errorf("limit register must be %s or %s", dxl.CurrentLimit.Name, dxl.TorqueLimit.Name)
	}
	return c.Gains.Validate()
}

// IDs returns actuator IDs in order.
func (c *Config) IDs() []byte {
	ids := make([]byte, len(c.Actuators))
	for n, a := range c.Actuators {
		ids[n] = a.ID
	}
	return ids
}

// Report summarizes a run.
type Report struct {
	Reason Reason
	// Ticks counts ticks which executed the pipeline.
	Ticks int
	// Samples counts ticks which recorded a sample.
	Samples int
	// Failures counts ticks without a sample.
	Failures int
	// Err is the failure which stopped the run.
	Err error
	// FlushErr is the failure of telemetry sinks.
	FlushErr error
}
