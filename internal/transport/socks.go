package transport

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"
)

// socks4aCommand is the CONNECT command byte of the SOCKS4 protocol.
const socks4aCommand = 0x01

// socks4aVersion is the protocol version byte.
const socks4aVersion = 0x04

// socks4aGranted is the "request granted" status byte in a SOCKS4
// response, mirroring original_source/src/dchat_network.c's
// parse_socks_status table.
const socks4aGranted = 0x5a

// SOCKSDialer dials a remote peer by asking a local SOCKS4a proxy (a
// Tor client, by default on 127.0.0.1:9050) to CONNECT to
// "<onionID>:<port>", where onionID already carries its ".onion"
// suffix (validate.IsValidOnion requires it). This is the real substitute for the
// onion-routing transport §1 treats as an external collaborator;
// the handshake mirrors write_socks4a/read_socks4a in
// original_source/src/dchat_network.c.
type SOCKSDialer struct {
	ProxyAddr string
	Timeout   time.Duration
}

// Dial performs the SOCKS4a handshake and returns a Conn wrapping the
// resulting stream.
func (d *SOCKSDialer) Dial(onionID string, port int) (Conn, error) {
	proxyAddr := d.ProxyAddr
	if proxyAddr == "" {
		proxyAddr = "127.0.0.1:9050"
	}
	timeout := d.Timeout
	if timeout == 0 {
		timeout = 8 * time.Second
	}

	conn, err := net.DialTimeout("tcp", proxyAddr, timeout)
	if err != nil {
		return nil, &TransportError{Op: "dial-proxy", Err: err}
	}

	if err := writeSocks4a(conn, onionID, port); err != nil {
		conn.Close()
		return nil, &TransportError{Op: "socks4a-request", Err: err}
	}
	if err := readSocks4a(conn); err != nil {
		conn.Close()
		return nil, &TransportError{Op: "socks4a-response", Err: err}
	}

	return NewTCPConn(conn), nil
}

// writeSocks4a writes a SOCKS4a CONNECT request for hostname:port. The
// fake IP 0.0.0.1 plus a hostname after the null-terminated user id is
// the SOCKS4a convention for "resolve this hostname yourself" — exactly
// what a Tor client does for a .onion name it cannot resolve via DNS.
func writeSocks4a(conn net.Conn, hostname string, port int) error {
	buf := make([]byte, 0, 32+len(hostname))
	buf = append(buf, socks4aVersion, socks4aCommand)

	portBytes := make([]byte, 2)
	binary.BigEndian.PutUint16(portBytes, uint16(port))
	buf = append(buf, portBytes...)

	buf = append(buf, 0, 0, 0, 1) // fake IP 0.0.0.1
	buf = append(buf, 0)          // empty user id, null-terminated
	buf = append(buf, []byte(hostname)...)
	buf = append(buf, 0) // null-terminated hostname

	_, err := conn.Write(buf)
	return err
}

// readSocks4a reads the 8-byte SOCKS4 response and validates the
// granted status.
func readSocks4a(conn net.Conn) error {
	resp := make([]byte, 8)
	if _, err := io.ReadFull(conn, resp); err != nil {
		return err
	}
	if resp[1] != socks4aGranted {
		return fmt.Errorf("socks4a request rejected, status 0x%02x", resp[1])
	}
	return nil
}
