package orchestrator

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/glog"
	"go.uber.org/atomic"

	"github.com/robotalks/currentloop/pkg/actuator"
	"github.com/robotalks/currentloop/pkg/control"
	"github.com/robotalks/currentloop/pkg/dxl"
	fx "github.com/robotalks/currentloop/pkg/framework"
	"github.com/robotalks/currentloop/pkg/operator"
	"github.com/robotalks/currentloop/pkg/telemetry"
)

// Pinger is implemented by a bus able to ping an actuator.
type Pinger interface {
	Ping(id byte) (model uint16, firmware byte, err error)
}

// Orchestrator runs one point-to-point move of a set of actuators.
type Orchestrator struct {
	Config
	Registers dxl.Registers
	// Pinger is optional, actuators are pinged before setup when present.
	Pinger   Pinger
	Signal   *operator.Signal
	Recorder *telemetry.Recorder
	Sinks    []telemetry.Sink
	Clock    clock.Clock

	state  atomic.Int32
	once   sync.Once
	report Report

	handles      []*actuator.Handle
	trajectories []control.Trajectory
	controllers  []*control.PD
	overruns     int
	failures     int
	lastErr      error
	canceled     bool
}

// New creates an Orchestrator. If regs also implements Pinger, actuators
// are pinged before setup.
func New(cfg Config, regs dxl.Registers, sig *operator.Signal) *Orchestrator {
	if sig == nil {
		sig = operator.NewSignal()
	}
	capacity := 0
	if cfg.Period > 0 {
		capacity = int(cfg.Duration/cfg.Period) + 1
	}
	o := &Orchestrator{
		Config:    cfg,
		Registers: regs,
		Signal:    sig,
		Recorder:  telemetry.NewRecorder(capacity, cfg.IDs()...),
		Clock:     clock.New(),
	}
	if p, ok := regs.(Pinger); ok {
		o.Pinger = p
	}
	return o
}

// Name implements framework.Named.
func (o *Orchestrator) Name() string {
	return "orchestrator"
}

// State returns current lifecycle state.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// Handles returns the actuator handles owned by the run.
func (o *Orchestrator) Handles() []*actuator.Handle {
	return o.handles
}

// Overruns returns the number of ticks which exceeded the period.
func (o *Orchestrator) Overruns() int {
	return o.overruns
}

// Report returns the summary of a finished run.
func (o *Orchestrator) Report() Report {
	return o.report
}

// Run implements framework.Runnable.
func (o *Orchestrator) Run(ctx context.Context) error {
	rep, err := o.Execute(ctx)
	if err != nil {
		return err
	}
	if rep.Err != nil {
		return rep.Err
	}
	return rep.FlushErr
}

// Execute runs setup, the control loop and shutdown. Shutdown and the
// telemetry flush always happen once setup has started, including when
// setup fails. Only a run which stops for duration, stop request or
// cancellation is reported without Err.
func (o *Orchestrator) Execute(ctx context.Context) (rep *Report, err error) {
	err = ErrAlreadyRun
	o.once.Do(func() {
		rep, err = &o.report, nil
		o.execute(ctx)
	})
	return
}

func (o *Orchestrator) execute(ctx context.Context) {
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	o.setState(StateSetup)
	defer o.shutdown()
	if err := o.Config.Validate(); err != nil {
		o.report.Reason, o.report.Err = ReasonSetupFailure, err
		return
	}

	if err := o.setup(); err != nil {
		glog.Errorf("setup failed: %v", err)
		o.report.Reason, o.report.Err = ReasonSetupFailure, err
		return
	}

	o.setState(StateRunning)
	loop := &fx.Loop{Period: o.Period, Clock: o.Clock}
	start := o.Clock.Now()
	o.Recorder.Start(start)
	glog.Infof("running %d actuator(s) for %v every %v", len(o.handles), o.Duration, o.Period)
	if err := loop.Run(ctx, fx.ControlFunc(o.tick)); err != nil {
		o.report.Err = err
	}
	o.overruns = loop.Overruns
}

func (o *Orchestrator) setState(s State) {
	o.state.Store(int32(s))
}

func (o *Orchestrator) setup() error {
	o.handles = make([]*actuator.Handle, len(o.Actuators))
	for n, a := range o.Actuators {
		o.handles[n] = actuator.NewHandle(o.Registers, a.ID)
	}
	o.trajectories = make([]control.Trajectory, len(o.handles))
	o.controllers = make([]*control.PD, len(o.handles))
	for n, h := range o.handles {
		if o.Pinger != nil {
			model, fw, err := o.Pinger.Ping(h.ID)
			if err != nil {
				return &actuator.SetupError{ID: h.ID, Reached: actuator.StateNone, Step: "ping", Err: err}
			}
			glog.Infof("%s: model %d firmware %d", h, model, fw)
		}
		if err := actuator.Configure(h, o.Setup); err != nil {
			return err
		}
		pos, err := h.Read(dxl.PresentPosition)
		if err != nil {
			return &actuator.SetupError{ID: h.ID, Reached: h.State(), Step: "read start position", Err: err}
		}
		goal := pos + int64(o.Actuators[n].Displacement)
		if goal < math.MinInt32 || goal > math.MaxInt32 {
			return &actuator.SetupError{ID: h.ID, Reached: h.State(), Step: "plan move",
				Err: fmt.Errorf("%w: %d%+d", ErrGoalOutOfRange, pos, o.Actuators[n].Displacement)}
		}
		start := int32(pos)
		if o.trajectories[n], err = control.NewTrajectory(start, int32(goal), o.Duration); err != nil {
			return err
		}
		o.controllers[n] = control.NewPD(o.Gains)
		glog.Infof("%s: move %d -> %d", h, start, o.trajectories[n].Goal)
	}
	return nil
}

func (o *Orchestrator) stopReason() Reason {
	if o.canceled {
		return ReasonCanceled
	}
	return ReasonStopRequested
}

func (o *Orchestrator) tick(cc *fx.ControlContext) error {
	elapsed := cc.Elapsed()
	if elapsed >= o.Duration {
		o.report.Reason = ReasonDurationElapsed
		o.Signal.Set()
		return fx.ErrStopLoop
	}
	if cc.Err() != nil && o.Signal.Set() {
		o.canceled = true
	}
	if o.Signal.IsSet() {
		o.report.Reason = o.stopReason()
		return fx.ErrStopLoop
	}

	o.report.Ticks++
	readings := make([]telemetry.Reading, len(o.handles))
	failed := false
	for n, h := range o.handles {
		r, err := o.step(n, elapsed)
		if err != nil {
			glog.Warningf("tick %d: %s: %v", cc.Tick, h, err)
			o.lastErr, failed = err, true
			continue
		}
		readings[n] = r
	}

	if failed {
		o.report.Failures++
		o.failures++
		if limit := o.MaxConsecutiveFailures; limit > 0 && o.failures >= limit {
			o.Signal.Set()
			o.report.Reason = ReasonTransactionFailure
			o.report.Err = fmt.Errorf("%w: %d in a row, last: %v", ErrTooManyFailures, o.failures, o.lastErr)
			return fx.ErrStopLoop
		}
		return nil
	}
	o.failures = 0
	if err := o.Recorder.Record(telemetry.Sample{Elapsed: elapsed.Seconds(), Readings: readings}); err != nil {
		glog.Warningf("tick %d: drop sample: %v", cc.Tick, err)
		return nil
	}
	o.report.Samples++
	return nil
}

// step runs the pipeline for one actuator: read position, compute the
// command, write it and read the resulting current.
func (o *Orchestrator) step(n int, elapsed time.Duration) (r telemetry.Reading, err error) {
	h := o.handles[n]
	pos, err := h.Read(dxl.PresentPosition)
	if err != nil {
		return r, err
	}
	target := o.trajectories[n].Target(elapsed)
	cmd := o.controllers[n].Next(float64(target), float64(pos), o.Clock.Now())
	if err = h.Write(dxl.GoalCurrent, int64(cmd)); err != nil {
		return r, err
	}
	cur, err := h.Read(dxl.PresentCurrent)
	if err != nil {
		return r, err
	}
	if glog.V(3) {
		glog.Infof("%s: t=%.3f target=%d pos=%d cmd=%d cur=%d", h, elapsed.Seconds(), target, pos, cmd, cur)
	}
	return telemetry.Reading{Position: int32(pos), Current: int16(cur)}, nil
}

// shutdown puts every owned actuator into a safe state and flushes the
// telemetry. Failures are logged and never escalated.
func (o *Orchestrator) shutdown() {
	o.setState(StateStopping)
	for _, h := range o.handles {
		if err := actuator.Neutral(h); err != nil {
			glog.Warningf("%s: clear goal current: %v", h, err)
		}
		if err := actuator.Disable(h); err != nil {
			glog.Warningf("%s: disable torque: %v", h, err)
		}
	}
	o.Recorder.SetReason(o.report.Reason.String())
	if err := o.Recorder.Flush(o.Sinks...); err != nil {
		glog.Errorf("flush telemetry: %v", err)
		o.report.FlushErr = err
	}
	o.setState(StateStopped)
	glog.Infof("stopped: %s, %d ticks, %d samples, %d failed", o.report.Reason, o.report.Ticks, o.report.Samples, o.report.Failures)
}
