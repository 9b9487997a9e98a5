package transport

import (
	"fmt"
	"net"
	"sync/atomic"
	"time"
)

// fdCounter hands out fd-like handles to every TCPConn, whether the
// node accepted it or a dialer opened it. Handles only need to be
// distinct and nonzero within a process, never allocated twice, per
// contact.Table's invariant that FD != 0 marks a live slot.
var fdCounter int64

// NewTCPConn wraps an already-open net.Conn with a fresh fd handle. The
// node's accept loop and both dialers use it.
func NewTCPConn(c net.Conn) *TCPConn {
	fd := int(atomic.AddInt64(&fdCounter, 1))
	return &TCPConn{conn: c, fd: fd}
}

// TCPConn adapts a net.Conn to the Conn interface, tracking the fd-like
// handle the contact table expects. Grounded in micr0-dev-gossip's
// plain net.Dialer/net.Conn usage (gossip.go's dialOnce/handleConn).
type TCPConn struct {
	conn net.Conn
	fd   int
}

func (c *TCPConn) FD() int { return c.fd }

func (c *TCPConn) WritePDU(frame []byte) (int, error) {
	return c.conn.Write(frame)
}

func (c *TCPConn) Close() error { return c.conn.Close() }

// Raw exposes the underlying net.Conn for callers that need to read
// from it (the discovery protocol's receive side runs outside this
// package, in the node's per-connection read loop).
func (c *TCPConn) Raw() net.Conn { return c.conn }

// TCPDialer resolves an onion_id to a network address via a caller-
// supplied registry and dials it directly over TCP. It exists for
// local multi-process demos and the test suite, where no real Tor
// SOCKS proxy is available; production use should prefer SOCKSDialer.
type TCPDialer struct {
	// Resolve maps an onion_id to a dialable host (without port). In
	// the test suite this is typically "127.0.0.1"; in a real
	// deployment without Tor it might consult a local address book.
	Resolve func(onionID string) (host string, err error)
	Timeout time.Duration
}

// Dial opens a direct TCP connection to host(onionID):port.
func (d *TCPDialer) Dial(onionID string, port int) (Conn, error) {
	host, err := d.Resolve(onionID)
	if err != nil {
		return nil, &TransportError{Op: "resolve", Err: err}
	}
	timeout := d.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, &TransportError{Op: "dial", Err: err}
	}
	return NewTCPConn(conn), nil
}
