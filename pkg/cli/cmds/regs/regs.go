package regs

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/robotalks/currentloop/pkg/dxl"
)

// Pinger pings an actuator.
type Pinger interface {
	Ping(id byte) (model uint16, firmware byte, err error)
}

// Value is a register value of an actuator.
type Value struct {
	ID       byte     `json:"id"`
	Register string   `json:"register"`
	Addr     uint16   `json:"addr"`
	Value    int64    `json:"value"`
	Faults   []string `json:"faults,omitempty"`
}

func (v Value) String() string {
	s := fmt.Sprintf("[%d] %s(%d) = %d", v.ID, v.Register, v.Addr, v.Value)
	if len(v.Faults) > 0 {
		s += " faults: " + strings.Join(v.Faults, ",")
	}
	return s
}

// PingResult is the answer of a ping.
type PingResult struct {
	ID       byte   `json:"id"`
	Model    uint16 `json:"model"`
	Firmware byte   `json:"firmware"`
}

func (r PingResult) String() string {
	return fmt.Sprintf("[%d] model %d firmware %d", r.ID, r.Model, r.Firmware)
}

// Values is a list of values.
type Values []Value

func (vs Values) String() string {
	lines := make([]string, len(vs))
	for n, v := range vs {
		lines[n] = v.String()
	}
	return strings.Join(lines, "\n")
}

// Table describes the control table.
type Table []dxl.Register

func (t Table) String() string {
	lines := make([]string, len(t))
	for n, r := range t {
		sign := "unsigned"
		if r.Signed {
			sign = "signed"
		}
		lines[n] = fmt.Sprintf("%3d %-18s %d %s", r.Addr, r.Name, r.Width, sign)
	}
	return strings.Join(lines, "\n")
}

// FaultList is a decoded fault mask.
type FaultList struct {
	Mask   byte     `json:"mask"`
	Faults []string `json:"faults"`
}

func (f FaultList) String() string {
	return fmt.Sprintf("0x%02x: %s", f.Mask, dxl.Fault(f.Mask))
}

// ParseID parses an actuator ID.
func ParseID(s string) (byte, error) {
	id, err := strconv.ParseUint(s, 0, 8)
	if err != nil || id > uint64(dxl.MaxID) {
		return 0, fmt.Errorf("invalid ID %q", s)
	}
	return byte(id), nil
}

// ParseRegister finds a register by name or address.
func ParseRegister(s string) (dxl.Register, error) {
	if reg, ok := dxl.LookupRegister(s); ok {
		return reg, nil
	}
	if addr, err := strconv.ParseUint(s, 0, 16); err == nil {
		for _, reg := range dxl.ControlTable {
			if uint64(reg.Addr) == addr {
				return reg, nil
			}
		}
	}
	return dxl.Register{}, fmt.Errorf("unknown register %q", s)
}

// ParseFaults decodes a fault mask.
func ParseFaults(s string) (FaultList, error) {
	mask, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return FaultList{}, fmt.Errorf("invalid fault mask %q", s)
	}
	return FaultList{Mask: byte(mask), Faults: dxl.Fault(mask).Faults()}, nil
}

// Ping pings an actuator.
func Ping(p Pinger, id byte) (PingResult, error) {
	model, fw, err := p.Ping(id)
	return PingResult{ID: id, Model: model, Firmware: fw}, err
}

// Read reads a register. A device fault is returned in the value.
func Read(regs dxl.Registers, id byte, reg dxl.Register) (Value, error) {
	v, err := regs.Read(id, reg)
	val := Value{ID: id, Register: reg.Name, Addr: reg.Addr, Value: v}
	if f := dxl.FaultOf(err); f != 0 {
		val.Faults = f.Faults()
		return val, nil
	}
	return val, err
}

// Write writes a register.
func Write(regs dxl.Registers, id byte, reg dxl.Register, value int64) (Value, error) {
	err := regs.Write(id, reg, value)
	val := Value{ID: id, Register: reg.Name, Addr: reg.Addr, Value: value}
	if f := dxl.FaultOf(err); f != 0 {
		val.Faults = f.Faults()
		return val, nil
	}
	return val, err
}

// Dump reads all registers of the control table. It stops at the first
// transport failure.
func Dump(regs dxl.Registers, id byte) (Values, error) {
	var vs Values
	for _, reg := range dxl.ControlTable {
		v, err := Read(regs, id, reg)
		if err != nil {
			return vs, err
		}
		vs = append(vs, v)
	}
	return vs, nil
}

// ParseOnOff parses a switch argument.
func ParseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "1", "true", "enable":
		return true, nil
	case "off", "0", "false", "disable":
		return false, nil
	}
	return false, fmt.Errorf("invalid switch %q", s)
}
