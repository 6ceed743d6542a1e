package dxl

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCorrupt indicates a received packet failed length or CRC validation.
	ErrCorrupt = errors.New("corrupt packet")
	// ErrPortClosed indicates the port has been closed.
	ErrPortClosed = errors.New("port closed")
)

// CommResult is the transport level outcome of a transaction.
type CommResult int

// Transport outcomes.
const (
	CommSuccess CommResult = iota
	// CommTxFail means the instruction could not be written.
	CommTxFail
	// CommRxFail means the receiving side failed or was closed.
	CommRxFail
	// CommRxTimeout means no status arrived in time.
	CommRxTimeout
	// CommRxCorrupt means the status failed validation.
	CommRxCorrupt
	// CommNotAvailable means the transaction doesn't match the register,
	// nothing is sent.
	CommNotAvailable
)

var commResultNames = map[CommResult]string{
	CommSuccess:      "success",
	CommTxFail:       "tx failed",
	CommRxFail:       "rx failed",
	CommRxTimeout:    "rx timeout",
	CommRxCorrupt:    "rx corrupt",
	CommNotAvailable: "not available",
}

func (r CommResult) String() string {
	if s, ok := commResultNames[r]; ok {
		return s
	}
	return fmt.Sprintf("comm(%d)", int(r))
}

// Fault is the device reported error bitmask.
type Fault byte

// Fault bits, any combination may be set.
const (
	FaultInputVoltage Fault = 1 << iota
	FaultAngleLimit
	FaultOverheating
	FaultRange
	FaultChecksum
	FaultOverload
	FaultInstruction
)

var faultNames = []struct {
	bit  Fault
	name string
}{
	{FaultInputVoltage, "input voltage"},
	{FaultAngleLimit, "angle limit"},
	{FaultOverheating, "overheating"},
	{FaultRange, "range"},
	{FaultChecksum, "checksum"},
	{FaultOverload, "overload"},
	{FaultInstruction, "instruction"},
}

// Faults returns the names of all set bits.
func (f Fault) Faults() []string {
	var names []string
	for _, n := range faultNames {
		if f&n.bit != 0 {
			names = append(names, n.name)
		}
	}
	return names
}

func (f Fault) String() string {
	if f == 0 {
		return "none"
	}
	return strings.Join(f.Faults(), ",")
}

// Error is the failure of a single transaction.
type Error struct {
	ID       byte
	Register Register
	Comm     CommResult
	Fault    Fault
}

// Error implements error.
func (e *Error) Error() string {
	target := "ping"
	if e.Register.Name != "" {
		target = e.Register.String()
	}
	if e.Comm != CommSuccess {
		return fmt.Sprintf("dxl[%d] %s: %s", e.ID, target, e.Comm)
	}
	return fmt.Sprintf("dxl[%d] %s: device fault %s", e.ID, target, e.Fault)
}

// Transport tells if the failure happened on the transport.
func (e *Error) Transport() bool {
	return e.Comm != CommSuccess && e.Comm != CommNotAvailable
}

// IsTransport tells if err is a transport failure.
func IsTransport(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Transport()
}

// FaultOf extracts the device fault bits from err.
func FaultOf(err error) Fault {
	var e *Error
	if errors.As(err, &e) {
		return e.Fault
	}
	return 0
}
