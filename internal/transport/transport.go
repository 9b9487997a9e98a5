// Package transport defines the external adapter seams the core is
// coupled to but does not implement: dialing a remote peer, writing a
// PDU to an open connection, and closing it (spec §4.G, §6). The core
// treats the onion-routing transport as an opaque collaborator; this
// package only pins down the interface shape and ships two concrete,
// swappable implementations: SOCKSDialer (through a Tor SOCKS proxy)
// and TCPDialer (direct TCP, for tests and for local demos).
package transport

// Conn is an open connection to a remote peer, as handed to the core
// by Dialer.Dial or by an accept loop outside this package's scope.
type Conn interface {
	// FD returns the handle the contact table stores for this
	// connection. It is never 0 for an open Conn.
	FD() int

	// WritePDU writes frame, returning the number of bytes written or
	// the underlying write error. The package-level WritePDU wraps such
	// an error as a TransportError (spec §7).
	WritePDU(frame []byte) (int, error)

	// Close releases the connection. DelContact guarantees this runs
	// exactly once per evicted slot (spec §5).
	Close() error
}

// Dialer opens a new connection to a remote peer identified by its
// onion address and listening port.
type Dialer interface {
	Dial(onionID string, port int) (Conn, error)
}

// TransportError wraps a dial, write or close failure, per spec §7.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return "transport: " + e.Op + ": " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// WritePDU is a convenience used by the discovery protocol to wrap a
// Conn.WritePDU failure as a TransportError.
func WritePDU(c Conn, frame []byte) (int, error) {
	n, err := c.WritePDU(frame)
	if err != nil {
		return n, &TransportError{Op: "write", Err: err}
	}
	return n, nil
}
