package telemetry

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
)

// Sink persists a recorded batch.
type Sink interface {
	Consume(*Batch) error
}

// SinkFunc is func form of Sink.
type SinkFunc func(*Batch) error

// Consume implements Sink.
func (f SinkFunc) Consume(b *Batch) error {
	return f(b)
}

// Recorder is an append-only sample buffer, flushed once.
type Recorder struct {
	ids    []byte
	start  time.Time
	reason string

	lock    sync.Mutex
	samples []Sample
	flushed bool
}

// NewRecorder creates a recorder for actuators ids with room for capacity samples.
func NewRecorder(capacity int, ids ...byte) *Recorder {
	return &Recorder{
		ids:     append([]byte(nil), ids...),
		samples: make([]Sample, 0, capacity),
	}
}

// Start sets the wall time the samples are relative to.
func (r *Recorder) Start(t time.Time) {
	r.lock.Lock()
	r.start = t
	r.lock.Unlock()
}

// SetReason records why the run stopped, passed on to sinks.
func (r *Recorder) SetReason(reason string) {
	r.lock.Lock()
	r.reason = reason
	r.lock.Unlock()
}

// Record appends a sample. Readings must match the actuators.
func (r *Recorder) Record(s Sample) error {
	if len(s.Readings) != len(r.ids) {
		return fmt.Errorf("sample has %d readings, want %d", len(s.Readings), len(r.ids))
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.flushed {
		return ErrFlushed
	}
	if n := len(r.samples); n > 0 && s.Elapsed < r.samples[n-1].Elapsed {
		return ErrOutOfOrder
	}
	r.samples = append(r.samples, s.clone())
	return nil
}

// Len returns the number of samples recorded.
func (r *Recorder) Len() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return len(r.samples)
}

// Samples returns a copy of recorded samples.
func (r *Recorder) Samples() []Sample {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.copySamples()
}

func (r *Recorder) copySamples() []Sample {
	samples := make([]Sample, len(r.samples))
	for n, s := range r.samples {
		samples[n] = s.clone()
	}
	return samples
}

// Flushed tells if Flush has been called.
func (r *Recorder) Flushed() bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.flushed
}

// Flush hands the recorded batch to every sink. Only the first call
// does anything, later calls return ErrFlushed.
// A failing sink doesn't prevent the others from running.
func (r *Recorder) Flush(sinks ...Sink) error {
	r.lock.Lock()
	if r.flushed {
		r.lock.Unlock()
		return ErrFlushed
	}
	r.flushed = true
	batch := &Batch{
		IDs:     append([]byte(nil), r.ids...),
		Start:   r.start,
		Samples: r.copySamples(),
		Reason:  r.reason,
	}
	r.lock.Unlock()

	var err error
	for _, sink := range sinks {
		err = multierr.Append(err, sink.Consume(batch))
	}
	return err
}
