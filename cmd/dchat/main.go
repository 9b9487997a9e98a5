// Command dchat runs a single DChat peer: it opens a listening socket,
// optionally dials a bootstrap contact, and drops into a REPL for
// inspecting the contact table and sharing a dchat:// link. Flag
// layout and the REPL's command set are grounded in
// micr0-dev-gossip/main.go's main()/repl()/handleCommand().
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	qrterminal "github.com/mdp/qrterminal/v3"

	"github.com/RoPe93/DChat-Core/internal/config"
	"github.com/RoPe93/DChat-Core/internal/link"
	"github.com/RoPe93/DChat-Core/internal/logsink"
	"github.com/RoPe93/DChat-Core/internal/node"
	"github.com/RoPe93/DChat-Core/internal/transport"
)

func main() {
	var (
		onionID   = flag.String("i", "", "this node's own onion-id (required)")
		listen    = flag.Int("l", 5000, "TCP port to listen on")
		nick      = flag.String("nick", "", "nickname advertised in discover PDUs")
		proxyAddr = flag.String("a", "127.0.0.1:9050", "SOCKS4a proxy address (Tor)")
		bootstrap = flag.String("peer", "", "bootstrap contact as <onion-id>:<port> or a dchat:// link")
		direct    = flag.Bool("direct", false, "dial peers over plain TCP instead of SOCKS4a (local testing only)")
		logLevel  = flag.Int("v", int(logsink.Notice), "log verbosity, 0 (emerg) to 7 (debug)")
	)
	flag.Usage = usage
	flag.Parse()

	if *onionID == "" {
		usage()
		os.Exit(1)
	}

	sink := logsink.New(logsink.Level(*logLevel), func(msg string) {
		fmt.Fprintln(os.Stderr, "fatal:", msg)
		os.Exit(1)
	})

	var dialer transport.Dialer
	if *direct {
		dialer = &transport.TCPDialer{Resolve: func(string) (string, error) { return "127.0.0.1", nil }}
	} else {
		dialer = &transport.SOCKSDialer{ProxyAddr: *proxyAddr}
	}

	cfg := config.Config{
		OnionID:     *onionID,
		ListenPort:  *listen,
		Nickname:    *nick,
		ProxyAddr:   *proxyAddr,
		Bootstrap:   *bootstrap,
		MinLogLevel: logsink.Level(*logLevel),
	}

	n := node.New(cfg, dialer, sink)
	if err := n.Listen(); err != nil {
		sink.Fatal("listen failed: %v", err)
		return
	}

	if *bootstrap != "" {
		onion, port, err := parseBootstrap(*bootstrap)
		if err != nil {
			sink.Log(logsink.Warning, "ignoring invalid -peer %q: %v", *bootstrap, err)
		} else if err := n.Dial(onion, port); err != nil {
			sink.Log(logsink.Err, "failed to dial bootstrap peer %s:%d: %v", onion, port, err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go n.Run()
	defer n.Stop()

	fmt.Printf("dchat | onion=%s port=%d nick=%q\n", cfg.OnionID, cfg.ListenPort, cfg.Nickname)
	fmt.Println("Type /help for commands.")

	done := make(chan struct{})
	go repl(n, cfg, done)

	select {
	case <-ctx.Done():
	case <-done:
	}
	fmt.Println("\nshutting down...")
}

// parseBootstrap accepts either a bare "<onion-id>:<port>" pair or a
// full dchat:// link for the -peer flag.
func parseBootstrap(s string) (onion string, port int, err error) {
	if strings.HasPrefix(s, "dchat://") {
		onion, port, _, err = link.Parse(s)
		return onion, port, err
	}
	i := strings.LastIndexByte(s, ':')
	if i < 0 {
		return "", 0, fmt.Errorf("expected <onion-id>:<port>, got %q", s)
	}
	onion = s[:i]
	port, err = strconv.Atoi(s[i+1:])
	return onion, port, err
}

// repl reads commands from stdin until EOF or /quit, then closes done.
func repl(n *node.Node, cfg config.Config, done chan struct{}) {
	defer close(done)
	in := bufio.NewReader(os.Stdin)
	for {
		fmt.Printf("[%s] > ", cfg.Nickname)
		line, err := in.ReadString('\n')
		if err != nil {
			fmt.Println()
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			fmt.Println("(this build only inspects the gossip layer; chat-message transport is out of scope)")
			continue
		}
		if handleCommand(n, cfg, line) {
			return
		}
	}
}

// handleCommand runs one REPL command; it returns true when the REPL
// should exit.
func handleCommand(n *node.Node, cfg config.Config, line string) bool {
	fields := strings.Fields(line)
	switch strings.ToLower(strings.TrimPrefix(fields[0], "/")) {
	case "help":
		fmt.Println(`Commands:
  /link       show this node's dchat:// link as a QR code
  /contacts   list every slot in the contact table
  /peers      list established peers only
  /quit       exit`)
	case "link":
		showLinkQR(cfg)
	case "contacts":
		printContacts(n)
	case "peers":
		printPeers(n)
	case "quit", "exit":
		return true
	default:
		fmt.Printf("unknown command %q, try /help\n", fields[0])
	}
	return false
}

func showLinkQR(cfg config.Config) {
	l := link.Build(cfg.OnionID, cfg.ListenPort, cfg.Nickname)
	fmt.Println("Share this link so a peer can bootstrap from you:")
	fmt.Println(l)
	qrterminal.GenerateWithConfig(l, qrterminal.Config{
		Level:     qrterminal.M,
		Writer:    os.Stdout,
		BlackChar: qrterminal.BLACK,
		WhiteChar: qrterminal.WHITE,
		QuietZone: 1,
	})
}

func printContacts(n *node.Node) {
	table := n.Protocol().Table()
	if table.Used() == 0 {
		fmt.Println("(no contacts)")
		return
	}
	for i := 0; i < table.Size(); i++ {
		c, err := table.At(i)
		if err != nil || c.IsEmpty() {
			continue
		}
		state := "pending"
		if c.IsEstablished() {
			state = "established"
		}
		fmt.Printf("  [%d] %-8s onion=%s port=%d nick=%q accepted=%v\n", i, state, c.OnionID, c.Port, c.Name, c.Accepted)
	}
}

func printPeers(n *node.Node) {
	table := n.Protocol().Table()
	established := table.Established()
	if len(established) == 0 {
		fmt.Println("(no established peers)")
		return
	}
	for _, i := range established {
		c, _ := table.At(i)
		fmt.Printf("  %s:%d (%s)\n", c.OnionID, c.Port, c.Name)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: dchat -i <onion-id> [-l port] [-nick name] [-a proxy] [-peer onion:port] [-v level]")
	flag.PrintDefaults()
}
