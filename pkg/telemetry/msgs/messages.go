// Package msgs defines the wire format of telemetry published over MQTT.
package msgs

import (
	"time"

	"github.com/golang/protobuf/proto"

	"github.com/robotalks/currentloop/pkg/telemetry"
)

// The messages below are maintained by hand with protobuf struct tags
// so they marshal with proto.Marshal like generated code:
//
//   message Reading     { sint32 position = 1; sint32 current = 2; }
//   message Sample      { double elapsed = 1; repeated Reading readings = 2; }
//   message SampleBatch {
//     repeated uint32 ids = 1; int64 start_unix_nano = 2;
//     repeated Sample samples = 3; string host = 4; string reason = 5;
//   }

// Reading is the state of one actuator.
type Reading struct {
	Position int32 `protobuf:"zigzag32,1,opt,name=position,proto3" json:"position,omitempty"`
	Current  int32 `protobuf:"zigzag32,2,opt,name=current,proto3" json:"current,omitempty"`
}

// Reset implements proto.Message.
func (m *Reading) Reset() { *m = Reading{} }

// String implements proto.Message.
func (m *Reading) String() string { return proto.CompactTextString(m) }

// ProtoMessage implements proto.Message.
func (*Reading) ProtoMessage() {}

// Sample is the readings of all actuators at a tick.
type Sample struct {
	Elapsed  float64    `protobuf:"fixed64,1,opt,name=elapsed,proto3" json:"elapsed,omitempty"`
	Readings []*Reading `protobuf:"bytes,2,rep,name=readings,proto3" json:"readings,omitempty"`
}

// Reset implements proto.Message.
func (m *Sample) Reset() { *m = Sample{} }

// String implements proto.Message.
func (m *Sample) String() string { return proto.CompactTextString(m) }

// ProtoMessage implements proto.Message.
func (*Sample) ProtoMessage() {}

// SampleBatch is a whole run.
type SampleBatch struct {
	Ids           []uint32  `protobuf:"varint,1,rep,packed,name=ids,proto3" json:"ids,omitempty"`
	StartUnixNano int64     `protobuf:"varint,2,opt,name=start_unix_nano,json=startUnixNano,proto3" json:"start_unix_nano,omitempty"`
	Samples       []*Sample `protobuf:"bytes,3,rep,name=samples,proto3" json:"samples,omitempty"`
	Host          string    `protobuf:"bytes,4,opt,name=host,proto3" json:"host,omitempty"`
	Reason        string    `protobuf:"bytes,5,opt,name=reason,proto3" json:"reason,omitempty"`
}

// Reset implements proto.Message.
func (m *SampleBatch) Reset() { *m = SampleBatch{} }

// String implements proto.Message.
func (m *SampleBatch) String() string { return proto.CompactTextString(m) }

// ProtoMessage implements proto.Message.
func (*SampleBatch) ProtoMessage() {}

// FromBatch converts a recorded batch.
func FromBatch(b *telemetry.Batch) *SampleBatch {
	m := &SampleBatch{Samples: make([]*Sample, len(b.Samples)), Reason: b.Reason}
	for _, id := range b.IDs {
		m.Ids = append(m.Ids, uint32(id))
	}
	if !b.Start.IsZero() {
		m.StartUnixNano = b.Start.UnixNano()
	}
	for n, s := range b.Samples {
		ms := &Sample{Elapsed: s.Elapsed, Readings: make([]*Reading, len(s.Readings))}
		for i, r := range s.Readings {
			ms.Readings[i] = &Reading{Position: r.Position, Current: int32(r.Current)}
		}
		m.Samples[n] = ms
	}
	return m
}

// Batch converts back to a telemetry batch.
func (m *SampleBatch) Batch() *telemetry.Batch {
	b := &telemetry.Batch{Samples: make([]telemetry.Sample, len(m.Samples)), Reason: m.Reason}
	for _, id := range m.Ids {
		b.IDs = append(b.IDs, byte(id))
	}
	if m.StartUnixNano != 0 {
		b.Start = time.Unix(0, m.StartUnixNano)
	}
	for n, ms := range m.Samples {
		s := telemetry.Sample{Elapsed: ms.Elapsed, Readings: make([]telemetry.Reading, len(ms.Readings))}
		for i, r := range ms.Readings {
			s.Readings[i] = telemetry.Reading{Position: r.Position, Current: int16(r.Current)}
		}
		b.Samples[n] = s
	}
	return b
}

// Encode marshals the message.
func (m *SampleBatch) Encode() ([]byte, error) {
	return proto.Marshal(m)
}

// DecodeBatch unmarshals a SampleBatch.
func DecodeBatch(data []byte) (*SampleBatch, error) {
	m := &SampleBatch{}
	if err := proto.Unmarshal(data, m); err != nil {
		return nil, err
	}
	return m, nil
}
