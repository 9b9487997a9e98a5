// Package link builds and parses the shareable "dchat://" URI a node
// prints for others to bootstrap from, the analogue of
// micr0-dev-gossip's buildLink/parseLink pair (main.go).
package link

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/RoPe93/DChat-Core/internal/validate"
)

// ErrNotALink is returned by Parse when s does not start with the
// dchat:// scheme.
var ErrNotALink = errors.New("link: not a dchat:// link")

// Build renders a dchat:// URI for onionID:port carrying nick as a
// query parameter, e.g. "dchat://abc...xyz.onion:5000?nick=alice".
func Build(onionID string, port int, nick string) string {
	u := &url.URL{
		Scheme: "dchat",
		Host:   fmt.Sprintf("%s:%d", onionID, port),
	}
	if nick != "" {
		q := url.Values{}
		q.Set("nick", nick)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// Parse extracts onionID, port and nick (nick may be empty) from a
// dchat:// URI built by Build. It validates the onion id and port
// exactly as pdu.StringToContact would, since the link feeds the same
// dial path as a discovered contact.
func Parse(s string) (onionID string, port int, nick string, err error) {
	if !strings.HasPrefix(s, "dchat://") {
		return "", 0, "", ErrNotALink
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", 0, "", err
	}
	host, portStr, err := splitHostPort(u.Host)
	if err != nil {
		return "", 0, "", err
	}
	if !validate.IsValidOnion(host) {
		return "", 0, "", fmt.Errorf("link: invalid onion-id %q", host)
	}
	p, err := strconv.Atoi(portStr)
	if err != nil || !validate.IsValidPort(p) {
		return "", 0, "", fmt.Errorf("link: invalid port %q", portStr)
	}
	return host, p, u.Query().Get("nick"), nil
}

func splitHostPort(hostport string) (host, port string, err error) {
	i := strings.LastIndexByte(hostport, ':')
	if i < 0 {
		return "", "", fmt.Errorf("link: missing port in %q", hostport)
	}
	return hostport[:i], hostport[i+1:], nil
}
