package sim

import (
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/robotalks/currentloop/pkg/dxl"
)

// TableSize is the size of the simulated control table.
const TableSize = 148

// Defaults of a simulated actuator.
const (
	DefaultModel        uint16 = 1020
	DefaultFirmware     byte   = 45
	DefaultCurrentLimit        = 1193
	DefaultPosition            = 2048
)

// Access is an instruction received by an actuator.
type Access struct {
	Instruction byte
	Addr        uint16
	Data        []byte
}

// Actuator simulates a current controlled actuator.
// Present position follows a rigid body driven by present current.
type Actuator struct {
	ID    byte
	Clock clock.Clock
	// Gain is acceleration in ticks/s^2 per mA.
	Gain float64
	// Damping is the viscous friction in 1/s.
	Damping float64

	lock     sync.Mutex
	table    [TableSize]byte
	position float64
	velocity float64
	last     time.Time
	dropNext int
	fault    dxl.Fault
	corrupt  bool
	accesses []Access
}

// NewActuator creates an actuator in position mode with torque off.
func NewActuator(id byte, clk clock.Clock) *Actuator {
	if clk == nil {
		clk = clock.New()
	}
	a := &Actuator{
		ID:       id,
		Clock:    clk,
		Gain:     40,
		Damping:  8,
		position: DefaultPosition,
		last:     clk.Now(),
	}
	a.put(dxl.ModelNumber, int64(DefaultModel))
	a.put(dxl.OperatingMode, int64(3))
	a.put(dxl.CurrentLimit, DefaultCurrentLimit)
	a.put(dxl.TorqueLimit, DefaultCurrentLimit)
	a.put(dxl.PresentPosition, DefaultPosition)
	return a
}

func (a *Actuator) put(reg dxl.Register, v int64) {
	copy(a.table[reg.Addr:], reg.Encode(v))
}

func (a *Actuator) get(reg dxl.Register) int64 {
	return reg.Decode(a.table[reg.Addr : int(reg.Addr)+reg.Width])
}

// SetPosition moves the shaft, e.g. by hand.
func (a *Actuator) SetPosition(pos float64) {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.estimate()
	a.position, a.velocity = pos, 0
	a.put(dxl.PresentPosition, int64(math.Round(pos)))
}

// Register reads the simulated register directly.
func (a *Actuator) Register(reg dxl.Register) int64 {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.estimate()
	return a.get(reg)
}

// DropNext makes the next n instructions go unanswered.
func (a *Actuator) DropNext(n int) {
	a.lock.Lock()
	a.dropNext += n
	a.lock.Unlock()
}

// FaultNext reports fault in the next status.
func (a *Actuator) FaultNext(fault dxl.Fault) {
	a.lock.Lock()
	a.fault = fault
	a.lock.Unlock()
}

// CorruptNext breaks the CRC of the next status.
func (a *Actuator) CorruptNext() {
	a.lock.Lock()
	a.corrupt = true
	a.lock.Unlock()
}

// Accesses returns the instructions received so far.
func (a *Actuator) Accesses() []Access {
	a.lock.Lock()
	defer a.lock.Unlock()
	return append([]Access(nil), a.accesses...)
}

// Writes returns the values written to reg in order.
func (a *Actuator) Writes(reg dxl.Register) []int64 {
	var values []int64
	for _, acc := range a.Accesses() {
		if acc.Instruction == dxl.InstWrite && acc.Addr == reg.Addr && len(acc.Data) == reg.Width {
			values = append(values, reg.Decode(acc.Data))
		}
	}
	return values
}

// estimate advances the physics to now.
func (a *Actuator) estimate() {
	now := a.Clock.Now()
	dt := math.Min(now.Sub(a.last).Seconds(), 0.1)
	a.last = now
	var current float64
	if a.get(dxl.TorqueEnable) != 0 && a.get(dxl.OperatingMode) == 0 {
		current = float64(a.get(dxl.GoalCurrent))
	}
	a.put(dxl.PresentCurrent, int64(current))
	if dt <= 0 {
		return
	}
	a.velocity += (a.Gain*current - a.Damping*a.velocity) * dt
	a.position += a.velocity * dt
	a.put(dxl.PresentPosition, int64(math.Round(a.position)))
}

// Handle executes an instruction and returns the status to send back,
// nil when there's no answer.
func (a *Actuator) Handle(pkt *dxl.Packet) *dxl.Packet {
	a.lock.Lock()
	defer a.lock.Unlock()
	if pkt.ID != a.ID {
		return nil
	}
	acc := Access{Instruction: pkt.Instruction}
	if len(pkt.Params) >= 2 {
		acc.Addr = uint16(pkt.Params[0]) | uint16(pkt.Params[1])<<8
		acc.Data = append([]byte(nil), pkt.Params[2:]...)
	}
	a.accesses = append(a.accesses, acc)
	if a.dropNext > 0 {
		a.dropNext--
		return nil
	}

	a.estimate()
	status := &dxl.Packet{ID: a.ID, Instruction: dxl.InstStatus}
	switch pkt.Instruction {
	case dxl.InstPing:
		model := a.get(dxl.ModelNumber)
		status.Params = []byte{byte(model), byte(model >> 8), DefaultFirmware}
	case dxl.InstRead:
		status.Error, status.Params = a.read(pkt.Params)
	case dxl.InstWrite:
		status.Error = a.write(pkt.Params)
	default:
		status.Error = byte(dxl.FaultInstruction)
	}
	if a.fault != 0 {
		status.Error |= byte(a.fault)
		a.fault = 0
	}
	return status
}

func (a *Actuator) read(params []byte) (byte, []byte) {
	if len(params) != 4 {
		return byte(dxl.FaultInstruction), nil
	}
	addr := int(params[0]) | int(params[1])<<8
	size := int(params[2]) | int(params[3])<<8
	if addr+size > TableSize {
		return byte(dxl.FaultRange), nil
	}
	return 0, append([]byte(nil), a.table[addr:addr+size]...)
}

func (a *Actuator) write(params []byte) byte {
	if len(params) < 3 {
		return byte(dxl.FaultInstruction)
	}
	addr := int(params[0]) | int(params[1])<<8
	data := params[2:]
	if addr+len(data) > TableSize {
		return byte(dxl.FaultRange)
	}
	// EEPROM area is locked while torque is on.
	if addr < int(dxl.TorqueEnable.Addr) && a.get(dxl.TorqueEnable) != 0 {
		return byte(dxl.FaultInstruction)
	}
	if addr == int(dxl.GoalCurrent.Addr) && len(data) == dxl.GoalCurrent.Width {
		limit := a.get(dxl.CurrentLimit)
		if v := dxl.GoalCurrent.Decode(data); v > limit || v < -limit {
			return byte(dxl.FaultRange)
		}
	}
	copy(a.table[addr:], data)
	return 0
}

// corrupting reports and clears a pending CorruptNext.
func (a *Actuator) corrupting() bool {
	a.lock.Lock()
	defer a.lock.Unlock()
	c := a.corrupt
	a.corrupt = false
	return c
}
