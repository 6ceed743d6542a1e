package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/robotalks/currentloop/pkg/actuator"
	"github.com/robotalks/currentloop/pkg/control"
	"github.com/robotalks/currentloop/pkg/dxl"
	"github.com/robotalks/currentloop/pkg/sim"
	"github.com/robotalks/currentloop/pkg/telemetry"
)

const testPeriod = 10 * time.Millisecond

type access struct {
	write bool
	id    byte
	reg   dxl.Register
	value int64
}

// fakeRegs advances the mock clock on every position read so each tick
// takes exactly one period.
type fakeRegs struct {
	clk      *clock.Mock
	advance  time.Duration
	values   map[byte]map[uint16]int64
	log      []access
	posReads map[byte]int
	missing  map[byte]bool
	// fail injects errors, tick is negative during setup.
	fail func(a access, tick int) error
}

func newFakeRegs(ids ...byte) *fakeRegs {
	f := &fakeRegs{
		clk:      clock.NewMock(),
		advance:  testPeriod / time.Duration(len(ids)),
		values:   make(map[byte]map[uint16]int64),
		posReads: make(map[byte]int),
		missing:  make(map[byte]bool),
	}
	for _, id := range ids {
		f.values[id] = make(map[uint16]int64)
	}
	return f
}

func (f *fakeRegs) tick(id byte) int {
	return f.posReads[id] - 2
}

func (f *fakeRegs) check(a access) error {
	f.log = append(f.log, a)
	if f.fail != nil {
		return f.fail(a, f.tick(a.id))
	}
	return nil
}

func (f *fakeRegs) Ping(id byte) (uint16, byte, error) {
	if f.missing[id] {
		return 0, 0, &dxl.Error{ID: id, Comm: dxl.CommRxTimeout}
	}
	return sim.DefaultModel, sim.DefaultFirmware, nil
}

func (f *fakeRegs) Read(id byte, reg dxl.Register) (int64, error) {
	if reg.Addr == dxl.PresentPosition.Addr {
		f.posReads[id]++
		f.clk.Add(f.advance)
	}
	if err := f.check(access{id: id, reg: reg}); err != nil {
		return 0, err
	}
	if reg.Addr == dxl.PresentCurrent.Addr {
		return f.values[id][dxl.GoalCurrent.Addr], nil
	}
	return f.values[id][reg.Addr], nil
}

func (f *fakeRegs) Write(id byte, reg dxl.Register, value int64) error {
	if err := f.check(access{write: true, id: id, reg: reg, value: value}); err != nil {
		return err
	}
	f.values[id][reg.Addr] = value
	return nil
}

func (f *fakeRegs) writes(id byte, reg dxl.Register) (values []int64) {
	for _, a := range f.log {
		if a.write && a.id == id && a.reg.Addr == reg.Addr {
			values = append(values, a.value)
		}
	}
	return
}

func (f *fakeRegs) reads(id byte, reg dxl.Register) (n int) {
	for _, a := range f.log {
		if !a.write && a.id == id && a.reg.Addr == reg.Addr {
			n++
		}
	}
	return
}

type batches []*telemetry.Batch

func (b *batches) Consume(batch *telemetry.Batch) error {
	*b = append(*b, batch)
	return nil
}

func testConfig(actuators ...Actuator) Config {
	return Config{
		Actuators:              actuators,
		Setup:                  actuator.DefaultSetupConfig(sim.DefaultCurrentLimit),
		Gains:                  control.Symmetric(1, 0.1, 20),
		Duration:               100 * time.Millisecond,
		Period:                 testPeriod,
		MaxConsecutiveFailures: 5,
	}
}

func newTestOrchestrator(f *fakeRegs, cfg Config) (*Orchestrator, *batches) {
	o := New(cfg, f, nil)
	o.Clock = f.clk
	out := &batches{}
	o.Sinks = append(o.Sinks, out)
	return o, out
}

func TestRunUntilDurationElapsed(t *testing.T) {
	f := newFakeRegs(1)
	f.values[1][dxl.PresentPosition.Addr] = 100
	o, out := newTestOrchestrator(f, testConfig(Actuator{ID: 1, Displacement: 1024}))
	rep, err := o.Execute(context.Background())
	require.NoError(t, err)
	require.NoError(t, rep.Err)
	require.NoError(t, rep.FlushErr)
	require.Equal(t, ReasonDurationElapsed, rep.Reason)
	require.Equal(t, 10, rep.Ticks)
	require.Equal(t, 10, rep.Samples)
	require.Zero(t, rep.Failures)
	require.Equal(t, StateStopped, o.State())
	require.True(t, o.Signal.IsSet())

	require.Len(t, *out, 1)
	batch := (*out)[0]
	require.Equal(t, "duration elapsed", batch.Reason)
	require.Equal(t, []byte{1}, batch.IDs)
	require.Len(t, batch.Samples, 10)
	for k, s := range batch.Samples {
		require.InDelta(t, float64(k)*testPeriod.Seconds(), s.Elapsed, 1e-9)
		require.EqualValues(t, 100, s.Readings[0].Position)
	}
	require.EqualValues(t, 0, batch.Samples[0].Readings[0].Current)
	require.EqualValues(t, 20, batch.Samples[5].Readings[0].Current)

	require.Equal(t, []int64{0, 1, 0}, f.writes(1, dxl.TorqueEnable))
	require.Equal(t, []int64{0, 0, 20, 20, 20, 20, 20, 20, 20, 20, 20, 0}, f.writes(1, dxl.GoalCurrent))
	require.Equal(t, []int64{0}, f.writes(1, dxl.OperatingMode))
	require.Equal(t, []int64{sim.DefaultCurrentLimit}, f.writes(1, dxl.CurrentLimit))

	h := o.Handles()[0]
	require.False(t, h.TorqueEnabled)
	require.Equal(t, actuator.StateDisabled, h.State())
	require.Zero(t, o.Overruns())

	_, err = o.Execute(context.Background())
	require.Equal(t, ErrAlreadyRun, err)
}

func TestRunStopRequested(t *testing.T) {
	f := newFakeRegs(1)
	o, out := newTestOrchestrator(f, testConfig(Actuator{ID: 1, Displacement: 1024}))
	f.fail = func(a access, tick int) error {
		if tick == 4 && a.reg.Addr == dxl.PresentCurrent.Addr {
			o.Signal.Set()
		}
		return nil
	}
	rep, err := o.Execute(context.Background())
	require.NoError(t, err)
	require.NoError(t, rep.Err)
	require.Equal(t, ReasonStopRequested, rep.Reason)
	require.Equal(t, 5, rep.Ticks)
	require.Equal(t, 5, rep.Samples)
	require.Len(t, (*out)[0].Samples, 5)
	require.Equal(t, "stop requested", (*out)[0].Reason)
	require.Equal(t, []int64{0, 1, 0}, f.writes(1, dxl.TorqueEnable))
	gc := f.writes(1, dxl.GoalCurrent)
	require.Len(t, gc, 1+5+1)
	require.EqualValues(t, 0, gc[len(gc)-1])
}

func TestRunCanceled(t *testing.T) {
	f := newFakeRegs(1)
	o, out := newTestOrchestrator(f, testConfig(Actuator{ID: 1, Displacement: 1024}))
	ctx, cancel := context.WithCancel(context.Background())
	f.fail = func(a access, tick int) error {
		if tick == 2 && a.reg.Addr == dxl.PresentCurrent.Addr {
			cancel()
		}
		return nil
	}
	rep, err := o.Execute(ctx)
	require.NoError(t, err)
	require.NoError(t, rep.Err)
	require.Equal(t, ReasonCanceled, rep.Reason)
	require.Equal(t, 3, rep.Ticks)
	require.True(t, o.Signal.IsSet())
	require.Len(t, (*out)[0].Samples, 3)
	require.Equal(t, []int64{0, 1, 0}, f.writes(1, dxl.TorqueEnable))
}

func TestRunTickFailure(t *testing.T) {
	timeout := &dxl.Error{ID: 1, Comm: dxl.CommRxTimeout}
	tests := []struct {
		name         string
		write        bool
		reg          dxl.Register
		err          error
		currentReads int
	}{
		{"write timeout", true, dxl.GoalCurrent, timeout, 9},
		{"position corrupt", false, dxl.PresentPosition, &dxl.Error{ID: 1, Comm: dxl.CommRxCorrupt}, 9},
		{"current fault", false, dxl.PresentCurrent, &dxl.Error{ID: 1, Fault: dxl.FaultOverload | dxl.FaultInputVoltage}, 10},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			f := newFakeRegs(1)
			f.fail = func(a access, tick int) error {
				if tick == 3 && a.write == test.write && a.reg.Addr == test.reg.Addr {
					return test.err
				}
				return nil
			}
			o, out := newTestOrchestrator(f, testConfig(Actuator{ID: 1, Displacement: 1024}))
			rep, err := o.Execute(context.Background())
			require.NoError(t, err)
			require.NoError(t, rep.Err)
			require.Equal(t, ReasonDurationElapsed, rep.Reason)
			require.Equal(t, 10, rep.Ticks)
			require.Equal(t, 9, rep.Samples)
			require.Equal(t, 1, rep.Failures)
			require.Equal(t, test.currentReads, f.reads(1, dxl.PresentCurrent))
			samples := (*out)[0].Samples
			require.Len(t, samples, 9)
			for _, s := range samples {
				require.NotEqual(t, 0.03, s.Elapsed)
			}
			require.InDelta(t, 0.04, samples[3].Elapsed, 1e-9)
			require.Equal(t, []int64{0, 1, 0}, f.writes(1, dxl.TorqueEnable))
		})
	}
}

func TestRunConsecutiveFailures(t *testing.T) {
	f := newFakeRegs(1)
	f.fail = func(a access, tick int) error {
		if tick >= 2 && a.reg.Addr == dxl.PresentPosition.Addr {
			return &dxl.Error{ID: a.id, Register: a.reg, Comm: dxl.CommRxTimeout}
		}
		return nil
	}
	cfg := testConfig(Actuator{ID: 1, Displacement: 1024})
	cfg.MaxConsecutiveFailures = 3
	o, out := newTestOrchestrator(f, cfg)
	err := o.Run(context.Background())
	require.True(t, errors.Is(err, ErrTooManyFailures))
	rep := o.Report()
	require.Equal(t, ReasonTransactionFailure, rep.Reason)
	require.Equal(t, 5, rep.Ticks)
	require.Equal(t, 2, rep.Samples)
	require.Equal(t, 3, rep.Failures)
	require.True(t, o.Signal.IsSet())
	require.Len(t, (*out)[0].Samples, 2)
	require.Equal(t, "transaction failure", (*out)[0].Reason)
	require.Equal(t, []int64{0, 1, 0}, f.writes(1, dxl.TorqueEnable))
}

func TestRunFailuresResetOnSuccess(t *testing.T) {
	f := newFakeRegs(1)
	f.fail = func(a access, tick int) error {
		if tick >= 0 && tick%2 == 0 && a.reg.Addr == dxl.PresentPosition.Addr {
			return &dxl.Error{ID: a.id, Comm: dxl.CommRxTimeout}
		}
		return nil
	}
	cfg := testConfig(Actuator{ID: 1, Displacement: 1024})
	cfg.MaxConsecutiveFailures = 2
	o, _ := newTestOrchestrator(f, cfg)
	rep, err := o.Execute(context.Background())
	require.NoError(t, err)
	require.NoError(t, rep.Err)
	require.Equal(t, ReasonDurationElapsed, rep.Reason)
	require.Equal(t, 5, rep.Samples)
	require.Equal(t, 5, rep.Failures)
}

func TestRunSetupFailure(t *testing.T) {
	f := newFakeRegs(1)
	f.fail = func(a access, tick int) error {
		if a.write && a.reg.Addr == dxl.OperatingMode.Addr {
			return &dxl.Error{ID: a.id, Register: a.reg, Fault: dxl.FaultInstruction}
		}
		return nil
	}
	o, out := newTestOrchestrator(f, testConfig(Actuator{ID: 1, Displacement: 1024}))
	rep, err := o.Execute(context.Background())
	require.NoError(t, err)
	require.Equal(t, ReasonSetupFailure, rep.Reason)
	var se *actuator.SetupError
	require.True(t, errors.As(rep.Err, &se))
	require.Equal(t, actuator.StateDisabled, se.Reached)
	require.Equal(t, "set operating mode", se.Step)
	require.Equal(t, dxl.FaultInstruction, dxl.FaultOf(rep.Err))
	require.Zero(t, rep.Ticks)
	require.Equal(t, StateStopped, o.State())

	require.Len(t, *out, 1)
	require.Empty(t, (*out)[0].Samples)
	require.Equal(t, "setup failure", (*out)[0].Reason)
	require.Equal(t, []int64{0, 0}, f.writes(1, dxl.TorqueEnable))
	require.Equal(t, []int64{0}, f.writes(1, dxl.GoalCurrent))
}

func TestRunGoalOutOfRange(t *testing.T) {
	for _, tc := range []struct {
		start int64
		disp  int32
	}{
		{math.MaxInt32 - 100, 1024},
		{math.MinInt32 + 100, -1024},
	} {
		t.Run(fmt.Sprintf("%d%+d", tc.start, tc.disp), func(t *testing.T) {
			f := newFakeRegs(1)
			f.values[1][dxl.PresentPosition.Addr] = tc.start
			o, out := newTestOrchestrator(f, testConfig(Actuator{ID: 1, Displacement: tc.disp}))
			rep, err := o.Execute(context.Background())
			require.NoError(t, err)
			require.Equal(t, ReasonSetupFailure, rep.Reason)
			require.True(t, errors.Is(rep.Err, ErrGoalOutOfRange))
			var se *actuator.SetupError
			require.True(t, errors.As(rep.Err, &se))
			require.Equal(t, actuator.StateTorqueEnabled, se.Reached)
			require.Equal(t, "plan move", se.Step)
			require.Zero(t, rep.Ticks)
			require.Equal(t, []int64{0, 1, 0}, f.writes(1, dxl.TorqueEnable))
			require.Len(t, *out, 1)
		})
	}
}

func TestRunPingFailureDisablesAll(t *testing.T) {
	f := newFakeRegs(1, 2)
	f.missing[2] = true
	o, out := newTestOrchestrator(f, testConfig(Actuator{ID: 1, Displacement: 1024}, Actuator{ID: 2, Displacement: 1024}))
	rep, err := o.Execute(context.Background())
	require.NoError(t, err)
	require.Equal(t, ReasonSetupFailure, rep.Reason)
	var se *actuator.SetupError
	require.True(t, errors.As(rep.Err, &se))
	require.EqualValues(t, 2, se.ID)
	require.Equal(t, "ping", se.Step)
	require.True(t, dxl.IsTransport(rep.Err))
	require.Equal(t, []int64{0, 1, 0}, f.writes(1, dxl.TorqueEnable))
	require.Equal(t, []int64{0}, f.writes(2, dxl.TorqueEnable))
	require.Equal(t, []int64{0}, f.writes(2, dxl.GoalCurrent))
	require.Len(t, *out, 1)
	require.Equal(t, []byte{1, 2}, (*out)[0].IDs)
}

func TestRunDual(t *testing.T) {
	f := newFakeRegs(1, 2)
	f.values[2][dxl.PresentPosition.Addr] = 2048
	f.fail = func(a access, tick int) error {
		if a.id == 1 && tick == 3 && a.reg.Addr == dxl.PresentCurrent.Addr {
			return &dxl.Error{ID: 1, Comm: dxl.CommRxTimeout}
		}
		return nil
	}
	o, out := newTestOrchestrator(f, testConfig(Actuator{ID: 1, Displacement: 1024}, Actuator{ID: 2, Displacement: -1024}))
	rep, err := o.Execute(context.Background())
	require.NoError(t, err)
	require.NoError(t, rep.Err)
	require.Equal(t, 10, rep.Ticks)
	require.Equal(t, 9, rep.Samples)

	gc1, gc2 := f.writes(1, dxl.GoalCurrent), f.writes(2, dxl.GoalCurrent)
	require.Len(t, gc1, 12)
	require.Len(t, gc2, 12)
	for n := 1; n < 11; n++ {
		require.True(t, gc1[n] >= 0, fmt.Sprintf("tick %d: %d", n-1, gc1[n]))
		require.True(t, gc2[n] <= 0, fmt.Sprintf("tick %d: %d", n-1, gc2[n]))
	}
	require.EqualValues(t, -20, gc2[5])

	for _, s := range (*out)[0].Samples {
		require.Len(t, s.Readings, 2)
		require.EqualValues(t, 0, s.Readings[0].Position)
		require.EqualValues(t, 2048, s.Readings[1].Position)
	}
	require.Equal(t, []int64{0, 1, 0}, f.writes(1, dxl.TorqueEnable))
	require.Equal(t, []int64{0, 1, 0}, f.writes(2, dxl.TorqueEnable))
}

func TestRunTorqueLimitRegister(t *testing.T) {
	f := newFakeRegs(1)
	cfg := testConfig(Actuator{ID: 1, Displacement: 10})
	cfg.Setup.LimitRegister = dxl.TorqueLimit
	cfg.Setup.Limit = 500
	o, _ := newTestOrchestrator(f, cfg)
	rep, err := o.Execute(context.Background())
	require.NoError(t, err)
	require.NoError(t, rep.Err)
	require.Equal(t, []int64{500}, f.writes(1, dxl.TorqueLimit))
	require.Empty(t, f.writes(1, dxl.CurrentLimit))
}

func TestInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"no actuators", func(c *Config) { c.Actuators = nil }},
		{"duplicated", func(c *Config) { c.Actuators = append(c.Actuators, c.Actuators[0]) }},
		{"broadcast", func(c *Config) { c.Actuators[0].ID = dxl.BroadcastID }},
		{"duration", func(c *Config) { c.Duration = 0 }},
		{"period", func(c *Config) { c.Period = -time.Millisecond }},
		{"failures", func(c *Config) { c.MaxConsecutiveFailures = -1 }},
		{"limit register", func(c *Config) { c.Setup.LimitRegister = dxl.GoalCurrent }},
		{"gains", func(c *Config) { c.Gains.Min, c.Gains.Max = 10, -10 }},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := testConfig(Actuator{ID: 1})
			test.modify(&cfg)
			require.Error(t, cfg.Validate())
			f := newFakeRegs(1)
			o, out := newTestOrchestrator(f, cfg)
			rep, err := o.Execute(context.Background())
			require.NoError(t, err)
			require.Equal(t, ReasonSetupFailure, rep.Reason)
			require.Error(t, rep.Err)
			require.Empty(t, f.log)
			require.Len(t, *out, 1)
		})
	}
}

func TestRunWithSimulator(t *testing.T) {
	port, bus := sim.Open(1)
	defer port.Close()
	cfg := testConfig(Actuator{ID: 1, Displacement: 200})
	cfg.Gains = control.Symmetric(1, 0.1, 200)
	cfg.Duration = 200 * time.Millisecond
	cfg.Period = 5 * time.Millisecond
	o := New(cfg, dxl.NewClient(port), nil)
	rep, err := o.Execute(context.Background())
	require.NoError(t, err)
	require.NoError(t, rep.Err)
	require.Equal(t, ReasonDurationElapsed, rep.Reason)
	require.True(t, rep.Samples > 0)
	require.Equal(t, rep.Ticks, rep.Samples+rep.Failures)

	samples := o.Recorder.Samples()
	require.Len(t, samples, rep.Samples)
	require.True(t, samples[len(samples)-1].Readings[0].Position > samples[0].Readings[0].Position)

	a := bus.Actuator(1)
	require.EqualValues(t, 0, a.Register(dxl.TorqueEnable))
	require.EqualValues(t, 0, a.Register(dxl.GoalCurrent))
	require.EqualValues(t, actuator.ModeCurrent, a.Register(dxl.OperatingMode))
	torque := a.Writes(dxl.TorqueEnable)
	require.Equal(t, []int64{0, 1, 0}, torque)
}

// unpluggableBus drops the receive side of a simulated bus while writes
// keep succeeding, like a USB serial adapter pulled mid-run.
type unpluggableBus struct {
	*sim.Bus
	unplugged atomic.Bool
}

func (b *unpluggableBus) Write(p []byte) (int, error) {
	if b.unplugged.Load() {
		return len(p), nil
	}
	return b.Bus.Write(p)
}

func (b *unpluggableBus) unplug() {
	b.unplugged.Store(true)
	b.Bus.Close()
}

// clientRegs logs every transaction on a real client and advances the
// mock clock one period per position read.
type clientRegs struct {
	*dxl.Client
	clk      *clock.Mock
	posReads int
	onRead   func(n int)
	log      []access
	errs     []error
}

func (r *clientRegs) Read(id byte, reg dxl.Register) (int64, error) {
	if reg.Addr == dxl.PresentPosition.Addr {
		r.posReads++
		r.clk.Add(testPeriod)
		if r.onRead != nil {
			r.onRead(r.posReads)
		}
	}
	v, err := r.Client.Read(id, reg)
	r.log = append(r.log, access{id: id, reg: reg})
	r.errs = append(r.errs, err)
	return v, err
}

func (r *clientRegs) Write(id byte, reg dxl.Register, value int64) error {
	err := r.Client.Write(id, reg, value)
	r.log = append(r.log, access{write: true, id: id, reg: reg, value: value})
	r.errs = append(r.errs, err)
	return err
}

func TestRunTransportLost(t *testing.T) {
	bus := &unpluggableBus{Bus: sim.NewBus(sim.NewActuator(1, nil))}
	port := dxl.NewPort(bus)
	port.Timeout = 20 * time.Millisecond
	defer port.Close()

	regs := &clientRegs{Client: dxl.NewClient(port), clk: clock.NewMock()}
	// the first position read is the start position, tick 3 loses the bus.
	regs.onRead = func(n int) {
		if n == 5 {
			bus.unplug()
		}
	}
	cfg := testConfig(Actuator{ID: 1, Displacement: 1024})
	cfg.MaxConsecutiveFailures = 3
	o := New(cfg, regs, nil)
	o.Clock = regs.clk
	out := &batches{}
	o.Sinks = append(o.Sinks, out)

	done := make(chan error, 1)
	go func() { done <- o.Run(context.Background()) }()
	var err error
	select {
	case err = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run blocked after the transport was lost")
	}

	require.True(t, errors.Is(err, ErrTooManyFailures))
	require.Equal(t, io.EOF, port.ReadErr())
	rep := o.Report()
	require.Equal(t, ReasonTransactionFailure, rep.Reason)
	require.Equal(t, 6, rep.Ticks)
	require.Equal(t, 3, rep.Samples)
	require.Equal(t, 3, rep.Failures)
	require.Equal(t, StateStopped, o.State())

	n := len(regs.log)
	require.True(t, n >= 2)
	require.Equal(t, access{write: true, id: 1, reg: dxl.GoalCurrent, value: 0}, regs.log[n-2])
	require.Equal(t, access{write: true, id: 1, reg: dxl.TorqueEnable, value: 0}, regs.log[n-1])
	for _, err := range regs.errs[n-2:] {
		var e *dxl.Error
		require.True(t, errors.As(err, &e))
		require.Equal(t, dxl.CommRxFail, e.Comm)
	}

	require.Len(t, *out, 1)
	require.Len(t, (*out)[0].Samples, 3)
	require.Equal(t, "transaction failure", (*out)[0].Reason)
}
