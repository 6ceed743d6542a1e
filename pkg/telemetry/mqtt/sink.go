package mqtt

import (
	"errors"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/robotalks/currentloop/pkg/telemetry"
	"github.com/robotalks/currentloop/pkg/telemetry/msgs"
)

// ErrPublishTimeout indicates the broker didn't acknowledge in time.
var ErrPublishTimeout = errors.New("publish timeout")

// RunsTopic is where batches are published, under the host name.
const RunsTopic = "runs"

// Publisher is implemented by Queue.
type Publisher interface {
	PubWith(topic string, payload []byte, qos byte, retain bool) paho.Token
}

// Sink publishes a flushed batch as msgs.SampleBatch.
type Sink struct {
	Publisher Publisher
	Host      string
	Timeout   time.Duration
}

// Topic returns the topic relative to the queue prefix.
func (s *Sink) Topic() string {
	return s.Host + "/" + RunsTopic
}

// Consume implements telemetry.Sink.
func (s *Sink) Consume(b *telemetry.Batch) error {
	m := msgs.FromBatch(b)
	m.Host = s.Host
	data, err := m.Encode()
	if err != nil {
		return err
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	token := s.Publisher.PubWith(s.Topic(), data, 1, false)
	if !token.WaitTimeout(timeout) {
		return ErrPublishTimeout
	}
	return token.Error()
}
