package msgs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/currentloop/pkg/telemetry"
)

func TestBatchEncoding(t *testing.T) {
	batch := &telemetry.Batch{
		IDs:   []byte{1, 2},
		Start: time.Unix(1700000000, 123),
		Samples: []telemetry.Sample{
			{Elapsed: 0.01, Readings: []telemetry.Reading{{Position: 2048, Current: -20}, {Position: -1024, Current: 7}}},
			{Elapsed: 0.02, Readings: []telemetry.Reading{{Position: 2049, Current: 20}, {Position: -1023, Current: 0}}},
		},
	}
	batch.Reason = "duration elapsed"
	m := FromBatch(batch)
	m.Host = "bench"
	data, err := m.Encode()
	require.NoError(t, err)

	decoded, err := DecodeBatch(data)
	require.NoError(t, err)
	require.Equal(t, "bench", decoded.Host)
	require.Equal(t, "duration elapsed", decoded.Reason)
	got := decoded.Batch()
	require.Equal(t, batch.IDs, got.IDs)
	require.True(t, batch.Start.Equal(got.Start))
	require.Equal(t, batch.Samples, got.Samples)
	require.Equal(t, batch.Reason, got.Reason)
}

func TestDecodeGarbage(t *testing.T) {
	_, err := DecodeBatch([]byte{0xff, 0xff, 0xff})
	require.Error(t, err)
}
