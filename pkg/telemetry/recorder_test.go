package telemetry

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func sample(elapsed float64, readings ...Reading) Sample {
	return Sample{Elapsed: elapsed, Readings: readings}
}

func TestRecorder(t *testing.T) {
	r := NewRecorder(4, 1)
	require.Equal(t, 0, r.Len())
	require.NoError(t, r.Record(sample(0.01, Reading{Position: 0, Current: 0})))
	require.NoError(t, r.Record(sample(0.02, Reading{Position: 10, Current: 3})))
	require.Equal(t, 2, r.Len())

	// a zero sample counts, a skipped tick doesn't
	require.NoError(t, r.Record(sample(0.03, Reading{})))
	require.Equal(t, 3, r.Len())

	require.Equal(t, ErrOutOfOrder, r.Record(sample(0.01, Reading{})))
	require.Error(t, r.Record(sample(0.04, Reading{}, Reading{})))
	require.Equal(t, 3, r.Len())

	samples := r.Samples()
	samples[1].Readings[0].Position = 999
	require.Equal(t, int32(10), r.Samples()[1].Readings[0].Position)
}

func TestRecorderCopiesReadings(t *testing.T) {
	r := NewRecorder(1, 1, 2)
	readings := []Reading{{Position: 1}, {Position: 2}}
	require.NoError(t, r.Record(Sample{Elapsed: 0, Readings: readings}))
	readings[0].Position = 100
	require.Equal(t, int32(1), r.Samples()[0].Readings[0].Position)
}

func TestRecorderFlushOnce(t *testing.T) {
	r := NewRecorder(0, 7)
	start := time.Unix(1700000000, 0)
	r.Start(start)
	require.NoError(t, r.Record(sample(0, Reading{Position: 5, Current: -2})))

	var got []*Batch
	sink := SinkFunc(func(b *Batch) error {
		got = append(got, b)
		return nil
	})
	require.NoError(t, r.Flush(sink, sink))
	require.True(t, r.Flushed())
	require.Len(t, got, 2)
	require.Equal(t, []byte{7}, got[0].IDs)
	require.Equal(t, start, got[0].Start)
	require.Equal(t, []Sample{sample(0, Reading{Position: 5, Current: -2})}, got[0].Samples)

	require.Equal(t, ErrFlushed, r.Flush(sink))
	require.Len(t, got, 2)
	require.Equal(t, ErrFlushed, r.Record(sample(1, Reading{})))
	require.Equal(t, 1, r.Len())
}

func TestRecorderFlushErrors(t *testing.T) {
	errA, errB := errors.New("a"), errors.New("b")
	var called int
	r := NewRecorder(0, 1)
	err := r.Flush(
		SinkFunc(func(*Batch) error { called++; return errA }),
		SinkFunc(func(*Batch) error { called++; return nil }),
		SinkFunc(func(*Batch) error { called++; return errB }),
	)
	require.Equal(t, 3, called)
	require.Equal(t, []error{errA, errB}, multierr.Errors(err))
}
