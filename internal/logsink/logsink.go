// Package logsink implements the severity-filtered logging sink every
// component writes through (spec §4.F). Levels mirror syslog priority
// numbers the same way original_source/src/log.c does; rendering is
// delegated to pterm's leveled printers (github.com/pterm/pterm),
// the styling library already used for this purpose in the retrieval
// pack's 1ureka-roj1/internal/util/log.go, instead of hand-rolled
// fmt.Fprintf formatting.
package logsink

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"
)

// Level mirrors the standard syslog priority numbers: lower is more
// severe. The zero value is Emerg, matching syslog's LOG_EMERG == 0.
type Level int

const (
	Emerg Level = iota
	Alert
	Crit
	Err
	Warning
	Notice
	Info
	Debug
)

var names = [...]string{"emerg", "alert", "crit", "err", "warning", "notice", "info", "debug"}

func (l Level) String() string {
	if l < Emerg || l > Debug {
		return "unknown"
	}
	return names[l]
}

// Sink is a process-wide logging target: a minimum level plus the
// pterm-backed writer. Per spec §9's "avoid module-level mutable
// state" note, Sink is an explicit value threaded through component
// constructors rather than a package-level global.
type Sink struct {
	minLevel Level
	fatal    func(string)
}

// New builds a Sink that drops messages more verbose than min. fatal,
// if non-nil, is invoked by Fatal after the message is logged
// (production code passes a func that calls os.Exit; tests pass a
// func that records the call).
func New(min Level, fatal func(string)) *Sink {
	if fatal == nil {
		fatal = func(string) {}
	}
	return &Sink{minLevel: min, fatal: fatal}
}

// SetLevel adjusts the minimum level at runtime (e.g. a -debug flag).
func (s *Sink) SetLevel(l Level) { s.minLevel = l }

// Log drops messages with level more verbose than the sink's current
// minimum; otherwise it renders via the matching pterm printer.
func (s *Sink) Log(level Level, format string, args ...interface{}) {
	if level > s.minLevel {
		return
	}
	msg := fmt.Sprintf(format, args...)
	switch {
	case level <= Err:
		pterm.Error.Println(msg)
	case level == Warning:
		pterm.Warning.Println(msg)
	case level == Notice || level == Info:
		pterm.Info.Println(msg)
	default:
		pterm.Debug.Println(msg)
	}
}

// Hex logs a hexdump of b at the given level under label, the Go
// equivalent of original_source/src/log.c's log_hex helper, used for
// wire-level tracing of raw PDU bytes.
func (s *Sink) Hex(level Level, label string, b []byte) {
	if level > s.minLevel {
		return
	}
	var sb strings.Builder
	for i, c := range b {
		if i > 0 && i%16 == 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%02x ", c)
	}
	s.Log(level, "%s (%d bytes):\n%s", label, len(b), sb.String())
}

// Fatal logs at Emerg and then invokes the configured fatal hook,
// which in production terminates the process after flushing (spec
// §4.G's ui_fatal contract). cmd/dchat calls it when the listening
// socket cannot be opened.
func (s *Sink) Fatal(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	pterm.Fatal.WithFatal(false).Println(msg)
	s.fatal(msg)
}
