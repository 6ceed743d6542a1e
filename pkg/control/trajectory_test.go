package control

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTrajectoryExample(t *testing.T) {
	tr, err := NewTrajectory(0, 1024, 3*time.Second)
	require.NoError(t, err)
	require.Equal(t, int32(512), tr.Target(1500*time.Millisecond))
	require.Equal(t, int32(0), tr.Target(0))
	require.Equal(t, int32(1024), tr.Target(3*time.Second))
	require.Equal(t, int32(1024), tr.Target(10*time.Second))
	require.Equal(t, int32(0), tr.Target(-time.Second))
}

func TestTrajectoryBounds(t *testing.T) {
	testCases := []struct {
		name        string
		start, goal int32
		duration    time.Duration
	}{
		{"forward", 0, 1024, 3 * time.Second},
		{"backward", 2048, 1024, time.Second},
		{"negative", 100, -1024, 1500 * time.Millisecond},
		{"odd", 7, 10, 7 * time.Millisecond},
		{"still", 300, 300, time.Second},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tr, err := NewTrajectory(tc.start, tc.goal, tc.duration)
			require.NoError(t, err)
			lo, hi := tc.start, tc.goal
			if lo > hi {
				lo, hi = hi, lo
			}
			prev := tr.Target(0)
			for step := time.Duration(0); step <= tc.duration; step += tc.duration / 997 {
				v := tr.Target(step)
				require.True(t, v >= lo && v <= hi, "target %d at %v out of [%d, %d]", v, step, lo, hi)
				if tc.goal >= tc.start {
					require.True(t, v >= prev)
				} else {
					require.True(t, v <= prev)
				}
				prev = v
			}
			require.Equal(t, tc.goal, tr.Target(tc.duration))
			require.Equal(t, float64(tc.goal), tr.TargetFloat(tc.duration))
		})
	}
}

func TestTrajectoryTruncatesTowardStart(t *testing.T) {
	tr, _ := NewTrajectory(0, 10, 3*time.Second)
	require.Equal(t, int32(3), tr.Target(time.Second))
	tr, _ = NewTrajectory(0, -10, 3*time.Second)
	require.Equal(t, int32(-3), tr.Target(time.Second))
}

func TestTrajectoryInvalid(t *testing.T) {
	_, err := NewTrajectory(0, 1, 0)
	require.Equal(t, ErrInvalidDuration, err)
	_, err = NewTrajectory(0, 1, -time.Second)
	require.Equal(t, ErrInvalidDuration, err)
}
