package dxl

import (
	"io"
)

// Instruction codes.
const (
	InstPing   byte = 0x01
	InstRead   byte = 0x02
	InstWrite  byte = 0x03
	InstStatus byte = 0x55
)

const (
	// MaxID is the largest addressable actuator ID.
	MaxID byte = 252
	// BroadcastID addresses all actuators.
	BroadcastID byte = 0xfe
)

// maxPacketLen bounds the LEN field of received packets.
const maxPacketLen = 1024

var header = [4]byte{0xff, 0xff, 0xfd, 0x00}

// Packet is an instruction or a status packet.
type Packet struct {
	ID          byte
	Instruction byte
	// Error is only meaningful in status packets.
	Error  byte
	Params []byte
}

// IsStatus tells if it's a status packet.
func (p *Packet) IsStatus() bool {
	return p.Instruction == InstStatus
}

func (p *Packet) body() []byte {
	b := make([]byte, 0, len(p.Params)+2)
	b = append(b, p.Instruction)
	if p.IsStatus() {
		b = append(b, p.Error)
	}
	return Stuff(append(b, p.Params...))
}

// Bytes returns encoded bytes for sending.
func (p *Packet) Bytes() []byte {
	body := p.body()
	l := len(body) + 2
	b := make([]byte, 0, len(header)+3+l)
	b = append(b, header[:]...)
	b = append(b, p.ID, byte(l), byte(l>>8))
	b = append(b, body...)
	crc := CRC16(0, b)
	return append(b, byte(crc), byte(crc>>8))
}

// WriteTo writes encoded bytes in a single Write.
func (p *Packet) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(p.Bytes())
	return int64(n), err
}

// Stuff escapes header patterns in b.
func Stuff(b []byte) []byte {
	out := make([]byte, 0, len(b)+len(b)/3)
	for i, c := range b {
		out = append(out, c)
		if c == 0xfd && i >= 2 && b[i-1] == 0xff && b[i-2] == 0xff {
			out = append(out, 0xfd)
		}
	}
	return out
}

// Unstuff reverses Stuff.
func Unstuff(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		out = append(out, b[i])
		n := len(out)
		if n >= 3 && out[n-3] == 0xff && out[n-2] == 0xff && out[n-1] == 0xfd &&
			i+1 < len(b) && b[i+1] == 0xfd {
			i++
		}
	}
	return out
}

// PingPacket builds a PING instruction.
func PingPacket(id byte) *Packet {
	return &Packet{ID: id, Instruction: InstPing}
}

// ReadPacket builds a READ instruction.
func ReadPacket(id byte, addr uint16, size uint16) *Packet {
	return &Packet{
		ID:          id,
		Instruction: InstRead,
		Params:      []byte{byte(addr), byte(addr >> 8), byte(size), byte(size >> 8)},
	}
}

// WritePacket builds a WRITE instruction.
func WritePacket(id byte, addr uint16, data []byte) *Packet {
	params := make([]byte, 2, len(data)+2)
	params[0], params[1] = byte(addr), byte(addr>>8)
	return &Packet{ID: id, Instruction: InstWrite, Params: append(params, data...)}
}
