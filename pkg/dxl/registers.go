package dxl

import "fmt"

// Register describes an entry in the control table.
type Register struct {
	Name   string
	Addr   uint16
	Width  int
	Signed bool
}

func (r Register) String() string {
	return fmt.Sprintf("%s(%d)", r.Name, r.Addr)
}

// Min returns the smallest value the register holds.
func (r Register) Min() int64 {
	if !r.Signed {
		return 0
	}
	return -1 << uint(r.Width*8-1)
}

// Max returns the largest value the register holds.
func (r Register) Max() int64 {
	if r.Signed {
		return 1<<uint(r.Width*8-1) - 1
	}
	return 1<<uint(r.Width*8) - 1
}

// Decode converts little-endian bytes to the register value.
func (r Register) Decode(b []byte) int64 {
	var u uint64
	for i := len(b) - 1; i >= 0; i-- {
		u = u<<8 | uint64(b[i])
	}
	if r.Signed {
		shift := uint(64 - 8*len(b))
		return int64(u<<shift) >> shift
	}
	return int64(u)
}

// Encode converts v to little-endian bytes of register width.
func (r Register) Encode(v int64) []byte {
	b := make([]byte, r.Width)
	for i := range b {
		b[i] = byte(v >> uint(8*i))
	}
	return b
}

// Control table entries (X series).
var (
	ModelNumber     = Register{Name: "model_number", Addr: 0, Width: 2}
	OperatingMode   = Register{Name: "operating_mode", Addr: 11, Width: 1}
	CurrentLimit    = Register{Name: "current_limit", Addr: 38, Width: 2}
	TorqueLimit     = Register{Name: "torque_limit", Addr: 40, Width: 2}
	TorqueEnable    = Register{Name: "torque_enable", Addr: 64, Width: 1}
	GoalCurrent     = Register{Name: "goal_current", Addr: 102, Width: 2, Signed: true}
	GoalPosition    = Register{Name: "goal_position", Addr: 116, Width: 4, Signed: true}
	PresentCurrent  = Register{Name: "present_current", Addr: 126, Width: 2, Signed: true}
	PresentPosition = Register{Name: "present_position", Addr: 132, Width: 4, Signed: true}
)

// ControlTable lists the known registers in address order.
var ControlTable = []Register{
	ModelNumber,
	OperatingMode,
	CurrentLimit,
	TorqueLimit,
	TorqueEnable,
	GoalCurrent,
	GoalPosition,
	PresentCurrent,
	PresentPosition,
}

// LookupRegister finds a register by name.
func LookupRegister(name string) (Register, bool) {
	for _, r := range ControlTable {
		if r.Name == name {
			return r, true
		}
	}
	return Register{}, false
}
