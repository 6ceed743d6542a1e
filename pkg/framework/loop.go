package framework

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/glog"
)

// Loop runs a Controller at a fixed period.
type Loop struct {
	Period time.Duration
	Clock  clock.Clock

	// Overruns counts ticks which didn't finish within the period.
	Overruns int
}

// NewLoop creates a loop on the wall clock.
func NewLoop(period time.Duration) *Loop {
	return &Loop{Period: period, Clock: clock.New()}
}

// NextDeadline returns when the tick after the one scheduled at prev should
// start. If now is already past it, the schedule is rebased to now so an
// overrun doesn't delay the following ticks.
func NextDeadline(prev time.Time, period time.Duration, now time.Time) time.Time {
	next := prev.Add(period)
	if next.Before(now) {
		return now
	}
	return next
}

// Run executes controller until it returns an error.
// ErrStopLoop ends the loop without an error.
// The loop doesn't watch ctx, controller decides when to stop.
func (l *Loop) Run(ctx context.Context, controller Controller) error {
	clk := l.Clock
	if clk == nil {
		clk = clock.New()
	}
	start := clk.Now()
	deadline := start
	for tick := 0; ; tick++ {
		cc := &ControlContext{Context: ctx, Tick: tick, Start: start, Time: clk.Now()}
		if err := controller.Control(cc); err != nil {
			if err == ErrStopLoop {
				return nil
			}
			return err
		}
		now := clk.Now()
		if late := now.Sub(deadline.Add(l.Period)); late > 0 {
			l.Overruns++
			glog.V(2).Infof("tick %d overrun by %v", tick, late)
		}
		deadline = NextDeadline(deadline, l.Period, now)
		if wait := deadline.Sub(now); wait > 0 {
			clk.Sleep(wait)
		}
	}
}

// RunOrFail runs the loop and fails fatally on error.
func (l *Loop) RunOrFail(ctx context.Context, controller Controller) {
	if err := l.Run(ctx, controller); err != nil {
		glog.Fatal(err)
	}
}
