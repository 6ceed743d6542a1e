// Package sim simulates actuators answering on an in-memory bus.
package sim
