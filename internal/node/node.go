// Package node wires the contact table, discovery protocol, transport
// and logging sink together into a runnable peer, in accordance with
// spec §5's single-threaded cooperative model: every mutation of the
// contact table happens on the one goroutine running Run's event
// loop, never concurrently. Accept and read work happen on their own
// goroutines, but they only ever hand parsed events to that loop over
// a channel — mirroring the original's select(2) loop funneling
// accept/stdin/contact-socket readiness through pipes into a single
// th_main_loop (original_source/src/dchat.c), except here channels
// take the place of pipes and fd_set.
package node

import (
	"bufio"
	"fmt"
	"net"

	"github.com/RoPe93/DChat-Core/internal/config"
	"github.com/RoPe93/DChat-Core/internal/contact"
	"github.com/RoPe93/DChat-Core/internal/discovery"
	"github.com/RoPe93/DChat-Core/internal/logsink"
	"github.com/RoPe93/DChat-Core/internal/pdu"
	"github.com/RoPe93/DChat-Core/internal/transport"
)

// event is the union of everything that can arrive asynchronously and
// needs to be applied to the contact table on the event loop goroutine.
// Once a connection is adopted, later events reference it by fd rather
// than table index: readLoop runs for as long as the connection is
// open, and an index handed to it at adoption time can be invalidated
// by any later AddContact/DelContact/Resize on a different slot (spec
// §5's "never cache an index across a mutating call" — this applies
// just as much across goroutines as within one).
type event struct {
	kind  eventKind
	conn  *transport.TCPConn
	fd    int
	frame *pdu.PDU
	err   error
}

type eventKind int

const (
	eventAccepted eventKind = iota
	eventFrame
	eventClosed
)

// Node is a runnable DChat peer: a listening socket, a dial loop for
// the optional bootstrap contact, and the single event loop that owns
// the contact table.
type Node struct {
	cfg      config.Config
	sink     *logsink.Sink
	protocol *discovery.Protocol
	dialer   transport.Dialer

	listener net.Listener
	events   chan event
	quit     chan struct{}
}

// New builds a Node from a fully populated config, dialer and sink.
// The contact table's grow/shrink step defaults to
// contact.DefaultInitContacts when cfg.InitContacts is zero.
func New(cfg config.Config, dialer transport.Dialer, sink *logsink.Sink) *Node {
	initContacts := cfg.InitContacts
	if initContacts == 0 {
		initContacts = contact.DefaultInitContacts
	}

	n := &Node{
		cfg:    cfg,
		sink:   sink,
		dialer: dialer,
		events: make(chan event, 64),
		quit:   make(chan struct{}),
	}
	table := contact.NewTable(initContacts, initContacts, n.closeFD)
	self := contact.Contact{OnionID: cfg.OnionID, Port: cfg.ListenPort, Name: cfg.Nickname}
	n.protocol = discovery.New(self, table, dialer, sink)
	return n
}

// Protocol exposes the discovery protocol for callers (the CLI's
// /contacts, /peers) that need read access outside the event loop.
// Safe to call between Run iterations only; the CLI issues such reads
// from the same goroutine that drives Run in cmd/dchat.
func (n *Node) Protocol() *discovery.Protocol { return n.protocol }

// closeFD is the contact.Table's Closer: it looks up the live
// transport.Conn registered for fd and closes it. table.DelContact
// invokes this before Protocol.Close unregisters the fd, so the
// lookup always finds the connection it needs to close, matching the
// original's del_contact always closing cnf->cl.contact[i].fd.
func (n *Node) closeFD(fd int) error {
	conn, ok := n.protocol.ConnFor(fd)
	if !ok {
		return nil
	}
	return conn.Close()
}

// Listen opens the node's TCP listening socket. It must be called
// before Run.
func (n *Node) Listen() error {
	addr := fmt.Sprintf(":%d", n.cfg.ListenPort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("node: listen on %s: %w", addr, err)
	}
	n.listener = ln
	n.sink.Log(logsink.Info, "listening on %s (onion=%s)", addr, n.cfg.OnionID)
	return nil
}

// Dial connects to a bootstrap peer, registers the resulting connection
// as an established contact on the calling goroutine, and starts its
// read loop, which feeds frames to the event loop (spec §8 scenario
// S1's join step).
func (n *Node) Dial(onionID string, port int) error {
	conn, err := n.dialer.Dial(onionID, port)
	if err != nil {
		return err
	}
	tcp, ok := conn.(*transport.TCPConn)
	if !ok {
		return fmt.Errorf("node: dialer did not return a readable connection")
	}
	if _, err := n.protocol.AdoptDialed(tcp, onionID, port, ""); err != nil {
		tcp.Close()
		return err
	}
	go n.readLoop(tcp)
	return nil
}

// Run starts the accept loop and drains events until Stop is called.
// It must run on the goroutine that owns the contact table; no other
// goroutine may call a Protocol or Table method while Run is active.
func (n *Node) Run() {
	if n.listener != nil {
		go n.acceptLoop()
	}
	for {
		select {
		case ev := <-n.events:
			n.handle(ev)
		case <-n.quit:
			return
		}
	}
}

// Stop ends Run's loop and closes the listening socket.
func (n *Node) Stop() {
	close(n.quit)
	if n.listener != nil {
		n.listener.Close()
	}
}

func (n *Node) acceptLoop() {
	for {
		c, err := n.listener.Accept()
		if err != nil {
			select {
			case <-n.quit:
				return
			default:
				n.sink.Log(logsink.Err, "accept failed: %v", err)
				return
			}
		}
		n.acceptConn(c)
	}
}

// acceptConn wraps a freshly accepted net.Conn and hands it to the
// event loop as a new pending slot.
func (n *Node) acceptConn(c net.Conn) {
	tcp := transport.NewTCPConn(c)
	select {
	case n.events <- event{kind: eventAccepted, conn: tcp}:
	case <-n.quit:
		tcp.Close()
	}
}

// readLoop owns exactly one connection's read side: it decodes frames
// off the wire and forwards each to the event loop, never touching the
// contact table itself. Events are tagged with the connection's fd,
// not a table index — the event loop resolves fd to a current index
// when it processes the event, since the index this connection was
// adopted at may be stale by then.
func (n *Node) readLoop(tcp *transport.TCPConn) {
	fd := tcp.FD()
	r := bufio.NewReader(tcp.Raw())
	for {
		frame, err := pdu.ReadFrame(r)
		if err != nil {
			select {
			case n.events <- event{kind: eventClosed, fd: fd, err: err}:
			case <-n.quit:
			}
			return
		}
		parsed, derr := pdu.Decode(frame)
		if derr != nil {
			n.sink.Log(logsink.Warning, "dropping malformed frame from fd %d: %v", fd, derr)
			continue
		}
		select {
		case n.events <- event{kind: eventFrame, fd: fd, frame: parsed}:
		case <-n.quit:
			return
		}
	}
}

// handle applies one event to the contact table. This is the only
// place contact.Table and discovery.Protocol methods are called after
// Run starts, satisfying spec §5's single-writer requirement.
func (n *Node) handle(ev event) {
	switch ev.kind {
	case eventAccepted:
		if _, err := n.protocol.AdoptAccepted(ev.conn); err != nil {
			n.sink.Log(logsink.Err, "adopt accepted connection failed: %v", err)
			ev.conn.Close()
			return
		}
		go n.readLoop(ev.conn)

	case eventFrame:
		idx, ok := n.protocol.Table().FindByFD(ev.fd)
		if !ok {
			n.sink.Log(logsink.Warning, "frame from fd %d arrived after its slot was closed", ev.fd)
			return
		}
		n.handleFrame(idx, ev.frame)

	case eventClosed:
		n.sink.Log(logsink.Info, "connection (fd %d) closed: %v", ev.fd, ev.err)
		idx, ok := n.protocol.Table().FindByFD(ev.fd)
		if !ok {
			return
		}
		if err := n.protocol.Close(idx); err != nil {
			n.sink.Log(logsink.Warning, "closing slot %d failed: %v", idx, err)
		}
	}
}

// handleFrame applies the first-contact identity fill-in, then the
// duplicate check, then send/receive_contacts, exactly the sequence
// spec §4/§8 describes for a freshly established connection. idx is
// re-resolved by fd after CheckDuplicates' Close, since closing a slot
// can shrink and compact the table, invalidating every index handed
// out before it (spec §5).
func (n *Node) handleFrame(idx int, frame *pdu.PDU) {
	fd, err := n.fdAt(idx)
	if err != nil {
		return
	}

	if err := n.protocol.EstablishFromFirstPDU(idx, frame.Sender.OnionID, frame.Sender.Port, frame.Sender.Name); err != nil {
		n.sink.Log(logsink.Err, "establish slot %d failed: %v", idx, err)
		return
	}

	if dup, ok := n.protocol.CheckDuplicates(idx); ok {
		n.sink.Log(logsink.Info, "duplicate connection detected, dropping slot %d", dup)
		if err := n.protocol.Close(dup); err != nil {
			n.sink.Log(logsink.Warning, "dropping duplicate slot %d failed: %v", dup, err)
		}
		newIdx, ok := n.protocol.Table().FindByFD(fd)
		if !ok {
			// Our own slot was the one dropped.
			return
		}
		idx = newIdx
	}

	if _, err := n.protocol.SendContacts(idx); err != nil {
		n.sink.Log(logsink.Warning, "send_contacts to slot %d failed: %v", idx, err)
	}

	if _, err := n.protocol.ReceiveContacts(frame); err != nil {
		n.sink.Log(logsink.Warning, "receive_contacts from slot %d had partial failures: %v", idx, err)
	}
}

// fdAt returns the fd currently occupying idx, used to re-resolve the
// slot by identity after a mutation that may have moved it.
func (n *Node) fdAt(idx int) (int, error) {
	c, err := n.protocol.Table().At(idx)
	if err != nil {
		return 0, err
	}
	return c.FD, nil
}
