// Package actuator tracks actuators on the bus and brings them into
// current control.
package actuator
