package control

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Config defines gains and output limits.
type Config struct {
	Kp float64
	Ki float64
	Kd float64
	// Output is clamped to [Min, Max].
	Min float64
	Max float64
}

// Symmetric returns gains with output limited to [-max, max].
func Symmetric(kp, kd, max float64) Config {
	return Config{Kp: kp, Kd: kd, Min: -max, Max: max}
}

// Validate checks the limits fit a signed 16-bit command.
func (c Config) Validate() error {
	if c.Min > c.Max {
		return fmt.Errorf("min %v greater than max %v", c.Min, c.Max)
	}
	if c.Min < math.MinInt16 || c.Max > math.MaxInt16 {
		return errors.New("limits exceed 16-bit current range")
	}
	for _, v := range []float64{c.Kp, c.Ki, c.Kd, c.Min, c.Max} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("gains and limits must be finite")
		}
	}
	return nil
}

// PD is a position controller producing a current command.
// The integral term stays zero unless Ki is set.
type PD struct {
	Config

	integral  float64
	prevError float64
	prevTime  time.Time
	hasPrev   bool
}

// NewPD creates a controller.
func NewPD(c Config) *PD {
	return &PD{Config: c}
}

// Reset drops the history, called at loop start.
func (c *PD) Reset() {
	c.integral, c.prevError, c.prevTime, c.hasPrev = 0, 0, time.Time{}, false
}

// Update computes the clamped command for target and present sampled at now.
// The derivative uses the actual time since the previous update and is
// zero on the first update.
func (c *PD) Update(target, present float64, now time.Time) float64 {
	e := target - present
	var derivative float64
	if c.hasPrev {
		if dt := now.Sub(c.prevTime).Seconds(); dt > 0 {
			derivative = (e - c.prevError) / dt
			if c.Ki != 0 {
				c.accumulate(e * dt)
			}
		}
	}
	c.prevError, c.prevTime, c.hasPrev = e, now, true

	out := c.Kp * e
	if c.Ki != 0 {
		out += c.Ki * c.integral
	}
	out += c.Kd * derivative
	return c.clamp(out)
}

// Next is Update truncated to the actuator current unit.
func (c *PD) Next(target, present float64, now time.Time) int16 {
	return int16(c.Update(target, present, now))
}

// accumulate keeps Ki*integral within the output limits.
func (c *PD) accumulate(v float64) {
	sum := c.integral + v
	if math.IsNaN(sum) {
		return
	}
	lo, hi := c.limits()
	lo, hi = lo/c.Ki, hi/c.Ki
	if lo > hi {
		lo, hi = hi, lo
	}
	c.integral = math.Max(lo, math.Min(hi, sum))
}

func (c *PD) limits() (float64, float64) {
	return math.Max(c.Min, math.MinInt16), math.Min(c.Max, math.MaxInt16)
}

func (c *PD) clamp(v float64) float64 {
	if math.IsNaN(v) {
		v = 0
	}
	lo, hi := c.limits()
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
