// Package validate holds the pure well-formedness predicates used by the
// rest of the core to decide whether a contact's address fields are
// wire-legal before they are serialized, parsed or compared.
package validate

import "strings"

const (
	// OnionSuffix is the fixed suffix every onion address carries.
	OnionSuffix = ".onion"

	// onionAddrLen is the canonical v2 onion address length: 16 base32
	// characters followed by ".onion" (22 bytes total).
	onionAddrLen = 16

	base32Alphabet = "abcdefghijklmnopqrstuvwxyz234567"

	// MinPort and MaxPort bound a legal TCP listening port.
	MinPort = 1
	MaxPort = 65535
)

// IsValidOnion reports whether s is a canonical v2 onion address: exactly
// 16 characters from the base32 alphabet, followed by the literal
// ".onion" suffix. The transport's actual address format is opaque to
// the core; only length and charset are enforced here.
func IsValidOnion(s string) bool {
	if !strings.HasSuffix(s, OnionSuffix) {
		return false
	}
	id := strings.TrimSuffix(s, OnionSuffix)
	if len(id) != onionAddrLen {
		return false
	}
	for _, c := range id {
		if !strings.ContainsRune(base32Alphabet, c|0x20) {
			return false
		}
	}
	return true
}

// IsValidPort reports whether p is a legal TCP port in [1, 65535].
func IsValidPort(p int) bool {
	return p >= MinPort && p <= MaxPort
}
