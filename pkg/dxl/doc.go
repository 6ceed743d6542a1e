// Package dxl provides Dynamixel Protocol 2.0 support.
package dxl

// Protocol 2.0 is spoken between a host and the actuators sharing a
// half-duplex serial bus. The host sends one instruction packet and the
// addressed actuator answers with one status packet.
//
//   FF FF FD 00 | ID | LEN_L LEN_H | INST | PARAMS... | CRC_L CRC_H
//
// LEN counts INST, PARAMS and the CRC. The CRC is CRC-16 (0x8005) over
// everything before it. A header pattern FF FF FD inside INST and PARAMS
// is escaped by appending an extra FD.
//
// A status packet carries an error byte right after INST (0x55).
