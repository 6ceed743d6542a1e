package dxl

// Parser parses bytes received from the bus.
type Parser struct {
	state   parseState
	matched int
	raw     []byte
	remain  int
}

// ParseResult indicates the result after one parsing step.
// Both fields are nil while a packet is still incomplete.
type ParseResult struct {
	Packet *Packet
	Err    error
}

type parseState int

const (
	stateHeader parseState = iota // matching FF FF FD 00
	stateID                       // waiting for ID
	stateLenL                     // waiting for low byte of LEN
	stateLenH                     // waiting for high byte of LEN
	stateBody                     // waiting for INST..CRC
)

// Receiving indicates if it's in the middle of a packet.
func (p *Parser) Receiving() bool {
	return p.state != stateHeader || p.matched > 0
}

// Reset drops any partially received packet.
func (p *Parser) Reset() {
	p.state, p.matched, p.raw, p.remain = stateHeader, 0, nil, 0
}

// Parse consumes one byte.
func (p *Parser) Parse(b byte) (pr ParseResult) {
	switch p.state {
	case stateHeader:
		switch {
		case b == header[p.matched]:
			p.matched++
		case b == 0xff && p.matched == 2:
			// FF FF FF, the last two may still start a header.
		case b == 0xff:
			p.matched = 1
		default:
			p.matched = 0
		}
		if p.matched == len(header) {
			p.raw = append(make([]byte, 0, 16), header[:]...)
			p.state = stateID
		}
	case stateID:
		p.raw = append(p.raw, b)
		p.state = stateLenL
	case stateLenL:
		p.raw = append(p.raw, b)
		p.state = stateLenH
	case stateLenH:
		p.raw = append(p.raw, b)
		l := int(p.raw[5]) | int(b)<<8
		if l < 3 || l > maxPacketLen {
			p.Reset()
			pr.Err = ErrCorrupt
			return
		}
		p.remain = l
		p.state = stateBody
	case stateBody:
		p.raw = append(p.raw, b)
		if p.remain--; p.remain == 0 {
			return p.packetReady()
		}
	}
	return
}

func (p *Parser) packetReady() (pr ParseResult) {
	raw := p.raw
	p.Reset()
	n := len(raw)
	crc := uint16(raw[n-2]) | uint16(raw[n-1])<<8
	if CRC16(0, raw[:n-2]) != crc {
		pr.Err = ErrCorrupt
		return
	}
	body := Unstuff(raw[7 : n-2])
	pkt := &Packet{ID: raw[4], Instruction: body[0]}
	if pkt.IsStatus() {
		if len(body) < 2 {
			pr.Err = ErrCorrupt
			return
		}
		pkt.Error, pkt.Params = body[1], body[2:]
	} else {
		pkt.Params = body[1:]
	}
	pr.Packet = pkt
	return
}
