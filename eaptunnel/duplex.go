package eaptunnel

import (
	"net"
	"time"
)

// newDuplexPair returns two ends of an in-memory, full-duplex net.Conn,
// wrapping net.Pipe so the pair can be driven from two goroutines running
// in lockstep: one side (the EAP round handler) feeds the bytes a peer sent
// in the current round and then drains whatever the other side produced in
// response; the other side is a crypto/tls.Conn running its normal
// blocking Read/Write handshake and record loop in its own goroutine.
func newDuplexPair() (local, remote net.Conn) {
	return net.Pipe()
}

// drainTimeout bounds how long Drain waits for a read that never comes
// (the TLS side has nothing further to say this round).
const drainTimeout = 50 * time.Millisecond

// pump drives one end of a duplex pair: Feed hands the other side's
// goroutine the bytes it's waiting to Read, Drain collects whatever bytes
// the other side wrote back until no more arrive within drainTimeout.
type pump struct {
	conn net.Conn
}

func newPump(conn net.Conn) *pump {
	return &pump{conn: conn}
}

// Feed writes data to the peer goroutine, blocking until it has been read.
func (p *pump) Feed(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	_, err := p.conn.Write(data)
	return err
}

// Drain reads whatever the peer goroutine has produced so far, stopping as
// soon as a read would block for longer than drainTimeout.
func (p *pump) Drain() ([]byte, error) {
	var out []byte
	buf := make([]byte, 4096)
	for {
		p.conn.SetReadDeadline(time.Now().Add(drainTimeout))
		n, err := p.conn.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return out, nil
			}
			return out, err
		}
		if n < len(buf) {
			// Short read: the writer has nothing more queued right now.
			return out, nil
		}
	}
}

func (p *pump) Close() error {
	return p.conn.Close()
}
