package regs

import (
	"fmt"
	"strconv"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/currentloop/pkg/actuator"
	"github.com/robotalks/currentloop/pkg/cli/sh"
	"github.com/robotalks/currentloop/pkg/dxl"
)

var (
	// PingCmd pings an actuator.
	PingCmd = ishell.Cmd{
		Name:    "ping",
		Aliases: []string{"p"},
		Help:    "ID",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("ID required"))
				return
			}
			id, err := ParseID(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			res, err := Ping(sh.ClientFrom(c), id)
			if err != nil {
				c.Err(err)
				return
			}
			sh.Print(c, res)
		}),
	}

	// ReadCmd reads a register.
	ReadCmd = ishell.Cmd{
		Name:    "read",
		Aliases: []string{"r"},
		Help:    "ID REGISTER",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			id, reg, err := parseTarget(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			v, err := Read(sh.ClientFrom(c), id, reg)
			if err != nil {
				c.Err(err)
				return
			}
			sh.Print(c, v)
		}),
	}

	// WriteCmd writes a register.
	WriteCmd = ishell.Cmd{
		Name:    "write",
		Aliases: []string{"w"},
		Help:    "ID REGISTER VALUE",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			id, reg, err := parseTarget(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			if len(c.Args) < 3 {
				c.Err(fmt.Errorf("VALUE required"))
				return
			}
			value, err := strconv.ParseInt(c.Args[2], 0, 64)
			if err != nil {
				c.Err(fmt.Errorf("Invalid VALUE: %v", err))
				return
			}
			v, err := Write(sh.ClientFrom(c), id, reg, value)
			if err != nil {
				c.Err(err)
				return
			}
			sh.Print(c, v)
		}),
	}

	// TorqueCmd switches torque.
	TorqueCmd = ishell.Cmd{
		Name:    "torque",
		Aliases: []string{"t"},
		Help:    "ID on|off",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("ID and on|off required"))
				return
			}
			id, err := ParseID(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			on, err := ParseOnOff(c.Args[1])
			if err != nil {
				c.Err(err)
				return
			}
			h := actuator.NewHandle(sh.ClientFrom(c), id)
			if on {
				err = h.Write(dxl.TorqueEnable, 1)
			} else {
				err = actuator.Disable(h)
			}
			if err != nil {
				c.Err(err)
				return
			}
			c.Println("OK")
		}),
	}

	// DumpCmd reads the whole control table.
	DumpCmd = ishell.Cmd{
		Name:    "dump",
		Aliases: []string{"status"},
		Help:    "ID",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("ID required"))
				return
			}
			id, err := ParseID(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			vs, err := Dump(sh.ClientFrom(c), id)
			if err != nil {
				c.Err(err)
				return
			}
			sh.Print(c, vs)
		}),
	}

	// RegsCmd lists known registers.
	RegsCmd = ishell.Cmd{
		Name: "regs",
		Help: "",
		Func: func(c *ishell.Context) {
			sh.Print(c, Table(dxl.ControlTable))
		},
	}

	// FaultsCmd decodes a fault mask.
	FaultsCmd = ishell.Cmd{
		Name: "faults",
		Help: "MASK",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("MASK required"))
				return
			}
			f, err := ParseFaults(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			sh.Print(c, f)
		},
	}
)

func parseTarget(args []string) (byte, dxl.Register, error) {
	if len(args) < 2 {
		return 0, dxl.Register{}, fmt.Errorf("ID and REGISTER required")
	}
	id, err := ParseID(args[0])
	if err != nil {
		return 0, dxl.Register{}, err
	}
	reg, err := ParseRegister(args[1])
	return id, reg, err
}

func init() {
	sh.AddCmds(
		&PingCmd,
		&ReadCmd,
		&WriteCmd,
		&TorqueCmd,
		&DumpCmd,
		&RegsCmd,
		&FaultsCmd,
	)
}
