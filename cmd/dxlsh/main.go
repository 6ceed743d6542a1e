package main

import (
	"github.com/robotalks/currentloop/pkg/cli/sh"
	"github.com/robotalks/currentloop/pkg/env"

	_ "github.com/robotalks/currentloop/pkg/cli/cmds/regs"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags()
}

func main() {
	sh.Main()
}
