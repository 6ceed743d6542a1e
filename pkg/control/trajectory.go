package control

import (
	"errors"
	"math"
	"time"
)

// ErrInvalidDuration indicates a trajectory without positive duration.
var ErrInvalidDuration = errors.New("trajectory duration must be positive")

// Trajectory is a linear move from Start to Goal over Duration.
type Trajectory struct {
	Start    int32
	Goal     int32
	Duration time.Duration
}

// NewTrajectory creates a Trajectory.
func NewTrajectory(start, goal int32, duration time.Duration) (Trajectory, error) {
	if duration <= 0 {
		return Trajectory{}, ErrInvalidDuration
	}
	return Trajectory{Start: start, Goal: goal, Duration: duration}, nil
}

// Ratio returns t/Duration clamped to [0, 1].
func (tr Trajectory) Ratio(t time.Duration) float64 {
	if t <= 0 || tr.Duration <= 0 {
		return 0
	}
	if t >= tr.Duration {
		return 1
	}
	return float64(t) / float64(tr.Duration)
}

// TargetFloat returns the exact target at t.
func (tr Trajectory) TargetFloat(t time.Duration) float64 {
	r := tr.Ratio(t)
	if r >= 1 {
		return float64(tr.Goal)
	}
	return float64(tr.Start) + r*(float64(tr.Goal)-float64(tr.Start))
}

// Target returns the target at t, truncated toward Start so it never
// passes Goal.
func (tr Trajectory) Target(t time.Duration) int32 {
	v := tr.TargetFloat(t)
	if tr.Goal >= tr.Start {
		v = math.Min(math.Floor(v), float64(tr.Goal))
	} else {
		v = math.Max(math.Ceil(v), float64(tr.Goal))
	}
	return int32(v)
}
