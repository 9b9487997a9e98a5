package discovery

import "github.com/RoPe93/DChat-Core/internal/contact"

// CheckDuplicates implements spec §4.E's duplicate-connection
// resolver. When two peers dial each other simultaneously both sides
// end up with two slots for the same remote — one from accepting a
// connection, one from initiating it. Exactly one must be evicted,
// and both peers must independently pick the same one so they
// converge (spec §8, invariant 7 / scenario S2).
//
// ok is false when there is nothing to resolve (contact not found, or
// found only once). When ok is true, idx is the slot CheckDuplicates
// recommends the caller pass to Close.
func (p *Protocol) CheckDuplicates(n int) (idx int, ok bool) {
	c, err := p.table.At(n)
	if err != nil {
		return 0, false
	}

	fst := p.table.FindContact(p.self, c, 0)
	if fst == contact.Self {
		// A peer advertised our own identity back to us; drop it.
		return n, true
	}
	if fst == contact.NotFound {
		return 0, false
	}

	sec := p.table.FindContact(p.self, c, fst+1)
	if sec == contact.NotFound {
		return 0, false
	}

	fstSlot, _ := p.table.At(fst)
	var acceptSlot, connectSlot int
	if fstSlot.Accepted {
		acceptSlot, connectSlot = fst, sec
	} else {
		connectSlot, acceptSlot = fst, sec
	}

	switch {
	case p.self.OnionID > c.OnionID:
		return connectSlot, true
	case p.self.OnionID < c.OnionID:
		return acceptSlot, true
	case p.self.Port > c.Port:
		return connectSlot, true
	case p.self.Port < c.Port:
		return acceptSlot, true
	default:
		// Equal identity: we connected to ourselves. Should not
		// happen in practice; fall back to dropping the accepted
		// slot, matching the original's tie-break.
		return acceptSlot, true
	}
}
