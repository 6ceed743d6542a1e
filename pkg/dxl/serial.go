package dxl

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// DefaultBaudRate is the factory baud rate of the actuators.
const DefaultBaudRate = 57600

// Serial is a serial port carrying the bus.
type Serial struct {
	Name string

	port serial.Port
	mode serial.Mode
}

// NewSerial creates an unopened serial port.
func NewSerial(name string) *Serial {
	return &Serial{
		Name: name,
		mode: serial.Mode{
			BaudRate: DefaultBaudRate,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		},
	}
}

// Open opens the device.
func (s *Serial) Open() error {
	port, err := serial.Open(s.Name, &s.mode)
	if err != nil {
		return fmt.Errorf("open %s: %v", s.Name, err)
	}
	s.port = port
	return nil
}

// SetBaudRate changes the baud rate of an opened port.
func (s *Serial) SetBaudRate(rate int) error {
	if s.port == nil {
		return ErrPortClosed
	}
	mode := s.mode
	mode.BaudRate = rate
	if err := s.port.SetMode(&mode); err != nil {
		return fmt.Errorf("set baud rate %d on %s: %v", rate, s.Name, err)
	}
	s.mode = mode
	return nil
}

// SetReadTimeout lets Read return after d when nothing arrives.
func (s *Serial) SetReadTimeout(d time.Duration) error {
	if s.port == nil {
		return ErrPortClosed
	}
	return s.port.SetReadTimeout(d)
}

// Read implements io.Reader.
func (s *Serial) Read(p []byte) (int, error) {
	if s.port == nil {
		return 0, ErrPortClosed
	}
	return s.port.Read(p)
}

// Write implements io.Writer.
func (s *Serial) Write(p []byte) (int, error) {
	if s.port == nil {
		return 0, ErrPortClosed
	}
	return s.port.Write(p)
}

// ResetInputBuffer discards unread input.
func (s *Serial) ResetInputBuffer() error {
	if s.port == nil {
		return ErrPortClosed
	}
	return s.port.ResetInputBuffer()
}

// Close implements io.Closer.
func (s *Serial) Close() error {
	if s.port == nil {
		return nil
	}
	return s.port.Close()
}

// OpenSerial opens name at baud and wraps it in a Port.
// The serial read timeout follows the transaction timeout.
func OpenSerial(name string, baud int, timeout time.Duration) (*Port, error) {
	s := NewSerial(name)
	if err := s.Open(); err != nil {
		return nil, err
	}
	if err := s.SetBaudRate(baud); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.SetReadTimeout(timeout); err != nil {
		s.Close()
		return nil, err
	}
	port := NewPort(s)
	port.Timeout = timeout
	return port, nil
}
