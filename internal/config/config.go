// Package config holds the CLI-gathered parameters for a DChat node.
// Shaped after 1ureka-roj1/internal/config/config.go's plain struct
// (a single exported Config type built once by flag parsing, no
// persistence layer — spec §3's Non-goals rule out a persistent peer
// store).
package config

import "github.com/RoPe93/DChat-Core/internal/logsink"

// Config is every parameter cmd/dchat gathers before starting the
// event loop.
type Config struct {
	// OnionID is this node's own onion address (trusted as given;
	// spec §1's Non-goals rule out any authentication of it).
	OnionID string

	// ListenPort is the TCP port this node accepts connections on.
	ListenPort int

	// Nickname is the display handle advertised in discover PDUs.
	Nickname string

	// ProxyAddr is the SOCKS4a proxy (normally a local Tor client)
	// used to dial peers, e.g. "127.0.0.1:9050". Folded in from
	// original_source/src/option.c's -a flag.
	ProxyAddr string

	// Bootstrap is an optional "<onion>:<port>" pair or dchat:// link
	// naming a peer to dial on startup, joining the mesh through it
	// (spec §8 scenario S1).
	Bootstrap string

	// MinLogLevel is the logsink's initial filter level.
	MinLogLevel logsink.Level

	// InitContacts is the contact table's grow/shrink step. Zero
	// means "use contact.DefaultInitContacts".
	InitContacts int
}
