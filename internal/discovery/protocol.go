// Package discovery implements the send/receive half of the discover
// protocol (spec §4.D) and the duplicate-connection resolver (§4.E).
// Both operate on the same contact.Table and share the single-threaded
// cooperative model of spec §5: every exported method here must run on
// the node's event loop, never concurrently with another.
package discovery

import (
	"errors"

	"github.com/RoPe93/DChat-Core/internal/contact"
	"github.com/RoPe93/DChat-Core/internal/logsink"
	"github.com/RoPe93/DChat-Core/internal/pdu"
	"github.com/RoPe93/DChat-Core/internal/transport"
)

// ErrPartial is the "partial" sentinel spec §7 describes: returned
// alongside a still-meaningful count when at least one contact line
// failed to parse or a dial to a newly discovered peer failed. It
// never aborts the surrounding iteration.
var ErrPartial = errors.New("discovery: partial failure")

// Protocol ties a contact table, a self-descriptor, a dialer and a
// logging sink together to implement send_contacts/receive_contacts.
// A single Protocol value is owned by exactly one event loop.
type Protocol struct {
	self   contact.Contact
	table  *contact.Table
	dialer transport.Dialer
	sink   *logsink.Sink

	// conns maps a contact's FD to the live connection used to write
	// to it. The contact table only stores the integer handle; this
	// registry is what makes that handle usable.
	conns map[int]transport.Conn
}

// New builds a Protocol for the given self-descriptor, table, dialer
// and sink. self.Port must be nonzero (a self-descriptor is never a
// temporary slot).
func New(self contact.Contact, table *contact.Table, dialer transport.Dialer, sink *logsink.Sink) *Protocol {
	return &Protocol{
		self:   self,
		table:  table,
		dialer: dialer,
		sink:   sink,
		conns:  map[int]transport.Conn{},
	}
}

// Self returns the node's self-descriptor.
func (p *Protocol) Self() contact.Contact { return p.self }

// Table exposes the underlying contact table for callers that need
// direct read access (e.g. a CLI's /contacts command).
func (p *Protocol) Table() *contact.Table { return p.table }

// AdoptAccepted registers an inbound connection as a new, pending
// (identity-unknown) slot, per spec §3: an accepted socket has no
// lport until its first discover PDU arrives.
func (p *Protocol) AdoptAccepted(c transport.Conn) (int, error) {
	idx, err := p.table.AddContact(c.FD())
	if err != nil {
		return 0, err
	}
	p.conns[c.FD()] = c
	slot, _ := p.table.At(idx)
	slot.Accepted = true
	_ = p.table.Set(idx, slot)
	return idx, nil
}

// AdoptDialed registers an outbound connection whose remote identity
// is already known (because we dialed it by onion/port), establishing
// the slot immediately rather than leaving it pending.
func (p *Protocol) AdoptDialed(c transport.Conn, onionID string, port int, name string) (int, error) {
	idx, err := p.table.AddContact(c.FD())
	if err != nil {
		return 0, err
	}
	p.conns[c.FD()] = c
	slot, _ := p.table.At(idx)
	slot.OnionID = onionID
	slot.Port = port
	slot.Name = name
	slot.Accepted = false
	_ = p.table.Set(idx, slot)
	return idx, nil
}

// EstablishFromFirstPDU fills in the identity fields of a pending slot
// once its first discover PDU arrives, per spec §3's lifecycle note
// ("mutated once, on first contact"). It is a no-op if the slot is
// already established.
func (p *Protocol) EstablishFromFirstPDU(idx int, onionID string, port int, name string) error {
	slot, err := p.table.At(idx)
	if err != nil {
		return err
	}
	if slot.IsEstablished() {
		return nil
	}
	slot.OnionID = onionID
	slot.Port = port
	slot.Name = name
	return p.table.Set(idx, slot)
}

// Close evicts the slot at idx, closing its connection via the
// contact table's del_contact semantics and dropping it from the
// connection registry.
func (p *Protocol) Close(idx int) error {
	slot, err := p.table.At(idx)
	if err != nil {
		return err
	}
	fd := slot.FD
	if err := p.table.DelContact(idx); err != nil {
		return err
	}
	delete(p.conns, fd)
	return nil
}

// ConnFor resolves the live connection registered for a given fd, used
// to write to it or to close it out-of-band (the contact.Table's
// Closer callback uses this to close the socket backing a slot it is
// about to zero out).
func (p *Protocol) ConnFor(fd int) (transport.Conn, bool) {
	c, ok := p.conns[fd]
	return c, ok
}

// SendContacts builds a control/discover PDU enumerating every
// established contact except the recipient at toIndex, and writes it
// to that recipient's connection (spec §4.D). Errors serializing an
// individual contact are logged at Warning and that contact is
// skipped — non-fatal. A write failure surfaces as a TransportError;
// the caller decides whether to evict the recipient.
func (p *Protocol) SendContacts(toIndex int) (int, error) {
	recipient, err := p.table.At(toIndex)
	if err != nil {
		return 0, err
	}

	var lines []string
	for _, i := range p.table.Established() {
		if i == toIndex {
			continue
		}
		c, _ := p.table.At(i)
		line, err := pdu.ContactToString(pdu.ContactRef{OnionID: c.OnionID, Port: c.Port})
		if err != nil {
			p.sink.Log(logsink.Warning, "send_contacts: skipping unconvertible contact %q: %v", c.Name, err)
			continue
		}
		lines = append(lines, line)
	}

	frame := pdu.EncodeDiscover(pdu.Sender{OnionID: p.self.OnionID, Port: p.self.Port, Name: p.self.Name}, lines)

	conn, ok := p.ConnFor(recipient.FD)
	if !ok {
		return 0, &transport.TransportError{Op: "send_contacts", Err: errors.New("no connection registered for recipient")}
	}
	n, err := transport.WritePDU(conn, frame)
	if err != nil {
		p.sink.Log(logsink.Err, "send_contacts: write to %s failed: %v", recipient.Name, err)
		return n, err
	}
	return n, nil
}

// ReceiveContacts ingests a discover PDU's payload: for every
// "<onion> <port>\n" line, unknown peers are dialed and added to the
// table; already-known peers (including ourself) are skipped and not
// tallied. Returns the count of newly discovered peers, and
// ErrPartial if any line failed to parse or any dial failed (spec
// §4.D, §7). Receiving the same PDU twice yields newCount == 0 the
// second time, since the first call already established those peers
// (spec §8, invariant 8).
func (p *Protocol) ReceiveContacts(frame *pdu.PDU) (newCount int, err error) {
	lineBegin, lineEnd := 0, 0
	partial := false

	for lineEnd < frame.ContentLength {
		lineBegin = lineEnd
		end, slice, gerr := pdu.GetContentPart(frame, lineBegin, '\n')
		if gerr != nil {
			p.sink.Log(logsink.Err, "receive_contacts: extraction of contact line failed: %v", gerr)
			partial = true
			break
		}
		lineEnd = end

		ref, perr := pdu.StringToContact(string(slice))
		if perr != nil {
			p.sink.Log(logsink.Warning, "receive_contacts: conversion of string to contact failed: %v", perr)
			partial = true
			lineEnd++
			continue
		}

		candidate := contact.Contact{OnionID: ref.OnionID, Port: ref.Port}
		switch p.table.FindContact(p.self, candidate, 0) {
		case contact.NotFound:
			newCount++
			if derr := p.dialAndAdopt(ref); derr != nil {
				p.sink.Log(logsink.Warning, "receive_contacts: connection to new contact failed: %v", derr)
				partial = true
			}
		default:
			// known_contacts: found ourselves or an existing slot;
			// spec requires only that it be counted, which callers
			// can derive from (lines seen - newCount) if needed.
		}

		lineEnd++
	}

	if partial {
		return newCount, ErrPartial
	}
	return newCount, nil
}

// dialAndAdopt dials a newly discovered peer and registers the
// resulting connection as an established, outbound slot.
func (p *Protocol) dialAndAdopt(ref pdu.ContactRef) error {
	conn, err := p.dialer.Dial(ref.OnionID, ref.Port)
	if err != nil {
		return err
	}
	if _, err := p.AdoptDialed(conn, ref.OnionID, ref.Port, ""); err != nil {
		conn.Close()
		return err
	}
	return nil
}
