package sim

import (
	"io"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/currentloop/pkg/dxl"
)

// Bus is an in-memory bus with simulated actuators attached.
// It implements io.ReadWriteCloser for dxl.NewPort.
type Bus struct {
	lock      sync.Mutex
	parser    dxl.Parser
	actuators map[byte]*Actuator

	readCh    chan []byte
	pending   []byte
	closeCh   chan struct{}
	closeOnce sync.Once
}

// NewBus creates a bus with actuators attached.
func NewBus(actuators ...*Actuator) *Bus {
	b := &Bus{
		actuators: make(map[byte]*Actuator),
		readCh:    make(chan []byte, 16),
		closeCh:   make(chan struct{}),
	}
	for _, a := range actuators {
		b.Attach(a)
	}
	return b
}

// Attach adds an actuator.
func (b *Bus) Attach(a *Actuator) {
	b.lock.Lock()
	b.actuators[a.ID] = a
	b.lock.Unlock()
}

// Actuator returns the actuator with id.
func (b *Bus) Actuator(id byte) *Actuator {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.actuators[id]
}

// Read implements io.Reader.
func (b *Bus) Read(p []byte) (int, error) {
	if len(b.pending) == 0 {
		select {
		case data := <-b.readCh:
			b.pending = data
		case <-b.closeCh:
			return 0, io.EOF
		}
	}
	n := copy(p, b.pending)
	b.pending = b.pending[n:]
	return n, nil
}

// Write implements io.Writer, the addressed actuator answers immediately.
func (b *Bus) Write(p []byte) (int, error) {
	select {
	case <-b.closeCh:
		return 0, io.ErrClosedPipe
	default:
	}
	b.lock.Lock()
	defer b.lock.Unlock()
	for _, c := range p {
		pr := b.parser.Parse(c)
		if pr.Err != nil {
			glog.V(2).Infof("sim: corrupt instruction dropped")
			continue
		}
		if pr.Packet == nil {
			continue
		}
		a := b.actuators[pr.Packet.ID]
		if a == nil {
			continue
		}
		status := a.Handle(pr.Packet)
		if status == nil {
			continue
		}
		out := status.Bytes()
		if a.corrupting() {
			out[len(out)-1] ^= 0xff
		}
		select {
		case b.readCh <- out:
		case <-b.closeCh:
			return 0, io.ErrClosedPipe
		}
	}
	return len(p), nil
}

// Close implements io.Closer.
func (b *Bus) Close() error {
	b.closeOnce.Do(func() { close(b.closeCh) })
	return nil
}

// Open creates a Port over a new bus with one actuator per id.
func Open(ids ...byte) (*dxl.Port, *Bus) {
	bus := NewBus()
	for _, id := range ids {
		bus.Attach(NewActuator(id, nil))
	}
	return dxl.NewPort(bus), bus
}
