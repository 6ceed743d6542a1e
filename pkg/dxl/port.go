package dxl

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/golang/glog"
)

// DefaultTimeout bounds the wait for a status packet.
const DefaultTimeout = 20 * time.Millisecond

// Port exchanges packets over a half-duplex bus.
// One transaction runs at a time.
type Port struct {
	ReadWriter io.ReadWriter
	Timeout    time.Duration

	lock   sync.Mutex
	parser Parser

	startOnce sync.Once
	recvCh    chan []byte
	readDone  chan struct{}
	readErr   error
	closeOnce sync.Once
	doneCh    chan struct{}
}

type inputResetter interface {
	ResetInputBuffer() error
}

// NewPort creates a Port.
func NewPort(rw io.ReadWriter) *Port {
	return &Port{
		ReadWriter: rw,
		Timeout:    DefaultTimeout,
		recvCh:     make(chan []byte, 64),
		readDone:   make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Close stops receiving and closes the underlying ReadWriter if possible.
func (p *Port) Close() (err error) {
	p.closeOnce.Do(func() {
		close(p.doneCh)
		if c, ok := p.ReadWriter.(io.Closer); ok {
			err = c.Close()
		}
	})
	return
}

func (p *Port) closed() bool {
	select {
	case <-p.doneCh:
		return true
	default:
		return false
	}
}

// TxRx sends an instruction and waits for the status from the same ID.
func (p *Port) TxRx(pkt *Packet) (*Packet, CommResult) {
	p.startOnce.Do(func() { go p.readLoop() })

	p.lock.Lock()
	defer p.lock.Unlock()
	if p.closed() {
		return nil, CommTxFail
	}
	p.clearInput()
	if err := p.ReadErr(); err != nil {
		glog.V(2).Infof("dxl[%d] receiver stopped: %v", pkt.ID, err)
		return nil, CommRxFail
	}

	out := pkt.Bytes()
	glog.V(3).Infof("dxl tx % x", out)
	if _, err := p.ReadWriter.Write(out); err != nil {
		glog.V(2).Infof("dxl[%d] write error: %v", pkt.ID, err)
		return nil, CommTxFail
	}

	timer := time.NewTimer(p.timeout())
	defer timer.Stop()
	for {
		select {
		case chunk, ok := <-p.recvCh:
			if !ok {
				return nil, CommRxFail
			}
			glog.V(3).Infof("dxl rx % x", chunk)
			for _, b := range chunk {
				pr := p.parser.Parse(b)
				if pr.Err != nil {
					return nil, CommRxCorrupt
				}
				if st := pr.Packet; st != nil && st.IsStatus() && st.ID == pkt.ID {
					return st, CommSuccess
				}
			}
		case <-timer.C:
			return nil, CommRxTimeout
		case <-p.doneCh:
			return nil, CommRxFail
		}
	}
}

// ReadErr returns the error that stopped the receiver, nil while it runs.
func (p *Port) ReadErr() error {
	select {
	case <-p.readDone:
		return p.readErr
	default:
		return nil
	}
}

func (p *Port) timeout() time.Duration {
	if p.Timeout > 0 {
		return p.Timeout
	}
	return DefaultTimeout
}

// clearInput drops bytes left over from a previous transaction.
func (p *Port) clearInput() {
	p.parser.Reset()
	if r, ok := p.ReadWriter.(inputResetter); ok {
		r.ResetInputBuffer()
	}
	for {
		select {
		case _, ok := <-p.recvCh:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

func (p *Port) readLoop() {
	err := p.receive()
	if err == nil {
		err = ErrPortClosed
	}
	p.readErr = err
	close(p.readDone)
	close(p.recvCh)
}

func (p *Port) receive() error {
	buf := make([]byte, 256)
	for {
		n, err := p.ReadWriter.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case p.recvCh <- chunk:
			case <-p.doneCh:
				return nil
			}
		}
		if p.closed() {
			return nil
		}
		if err != nil && !os.IsTimeout(err) {
			if err != io.EOF {
				glog.Warningf("dxl read error: %v", err)
			}
			return err
		}
	}
}
