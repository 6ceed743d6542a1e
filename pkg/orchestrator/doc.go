// Package orchestrator runs the current control loop of one or more
// actuators: setup, fixed period ticks and a guaranteed shutdown.
//
// Every tick reads the present position of each actuator, computes the
// trajectory target and the PD command, writes the goal current and reads
// the present current back. A sample is recorded only when every actuator
// completed its tick.
package orchestrator
