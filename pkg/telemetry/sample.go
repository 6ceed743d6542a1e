package telemetry

import "time"

// Reading is the state of one actuator at a tick.
type Reading struct {
	Position int32
	Current  int16
}

// Sample holds the readings of all actuators at a tick.
type Sample struct {
	// Elapsed is seconds since the loop started.
	Elapsed  float64
	Readings []Reading
}

func (s Sample) clone() Sample {
	s.Readings = append([]Reading(nil), s.Readings...)
	return s
}

// Batch is everything a run recorded.
type Batch struct {
	// IDs are the actuators in reading order.
	IDs     []byte
	Start   time.Time
	Samples []Sample
	// Reason tells why the run stopped.
	Reason string
}
