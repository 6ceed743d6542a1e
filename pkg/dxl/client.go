package dxl

// Registers provides typed access to the control table of actuators.
type Registers interface {
	Read(id byte, reg Register) (int64, error)
	Write(id byte, reg Register, value int64) error
}

// Client issues register transactions over a Port.
// It doesn't cache any device state.
type Client struct {
	port *Port
}

// NewClient creates client and wraps the port.
func NewClient(port *Port) *Client {
	return &Client{port: port}
}

// Port gets wrapped Port.
func (c *Client) Port() *Port {
	return c.port
}

func (c *Client) do(reg Register, pkt *Packet) (*Packet, error) {
	st, res := c.port.TxRx(pkt)
	if res != CommSuccess {
		return nil, &Error{ID: pkt.ID, Register: reg, Comm: res}
	}
	if st.Error != 0 {
		return st, &Error{ID: pkt.ID, Register: reg, Fault: Fault(st.Error)}
	}
	return st, nil
}

// Ping returns the model number and firmware version of an actuator.
func (c *Client) Ping(id byte) (model uint16, firmware byte, err error) {
	st, err := c.do(Register{}, PingPacket(id))
	if st != nil && len(st.Params) >= 3 {
		model, firmware = uint16(st.Params[0])|uint16(st.Params[1])<<8, st.Params[2]
	}
	return
}

func (c *Client) read(id byte, reg Register, width int) (int64, error) {
	if reg.Width != width {
		return 0, &Error{ID: id, Register: reg, Comm: CommNotAvailable}
	}
	st, err := c.do(reg, ReadPacket(id, reg.Addr, uint16(width)))
	if st == nil {
		return 0, err
	}
	if len(st.Params) != width {
		return 0, &Error{ID: id, Register: reg, Comm: CommRxCorrupt}
	}
	return reg.Decode(st.Params), err
}

func (c *Client) write(id byte, reg Register, width int, value int64) error {
	if reg.Width != width || value < reg.Min() || value > reg.Max() {
		return &Error{ID: id, Register: reg, Comm: CommNotAvailable}
	}
	_, err := c.do(reg, WritePacket(id, reg.Addr, reg.Encode(value)))
	return err
}

// Read1 reads a 1-byte register.
func (c *Client) Read1(id byte, reg Register) (int64, error) {
	return c.read(id, reg, 1)
}

// Read2 reads a 2-byte register.
func (c *Client) Read2(id byte, reg Register) (int64, error) {
	return c.read(id, reg, 2)
}

// Read4 reads a 4-byte register.
func (c *Client) Read4(id byte, reg Register) (int64, error) {
	return c.read(id, reg, 4)
}

// Write1 writes a 1-byte register.
func (c *Client) Write1(id byte, reg Register, value int64) error {
	return c.write(id, reg, 1, value)
}

// Write2 writes a 2-byte register.
func (c *Client) Write2(id byte, reg Register, value int64) error {
	return c.write(id, reg, 2, value)
}

// Write4 writes a 4-byte register.
func (c *Client) Write4(id byte, reg Register, value int64) error {
	return c.write(id, reg, 4, value)
}

// Read implements Registers using the declared register width.
// A device fault still returns the value received.
func (c *Client) Read(id byte, reg Register) (int64, error) {
	return c.read(id, reg, reg.Width)
}

// Write implements Registers using the declared register width.
func (c *Client) Write(id byte, reg Register, value int64) error {
	return c.write(id, reg, reg.Width, value)
}
