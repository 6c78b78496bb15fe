// Package logx is the leveled logging surface shared by the interpreter
// and the compositor. It wraps glog with a handful of package-level
// helpers gated by a verbosity flag, rather than a logger value
// threaded through every call site.
package logx

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/golang/glog"
)

var (
	mu      sync.Mutex
	verbose bool
)

// SetVerbose toggles the -holyc_log / -temple_log style flag. Call once
// at startup from cmd/holyc or cmd/compositor.
func SetVerbose(v bool) {
	mu.Lock()
	verbose = v
	mu.Unlock()
}

// Verbose reports whether verbose (trace) logging is enabled.
func Verbose() bool {
	mu.Lock()
	defer mu.Unlock()
	return verbose
}

// Always logs unconditionally, prefixed for grepability in a terminal
// shared with HolyC program stdout.
func Always(f string, a ...interface{}) {
	var buf bytes.Buffer
	buf.WriteString("*temple*: ")
	fmt.Fprintf(&buf, f, a...)
	glog.InfoDepth(1, buf.String())
}

// Tracef logs only when verbose logging is enabled. Used in the hot
// lexer/evaluator paths where unconditional formatting would be wasteful.
func Tracef(f string, a ...interface{}) {
	if !Verbose() {
		return
	}
	Always(f, a...)
}

// Warn reports a non-fatal condition tied to a source position, in the
// same "file:line: message" shape the parser uses for errors.
func Warn(file string, line int, f string, a ...interface{}) {
	glog.WarningDepth(1, fmt.Sprintf("%s:%d: %s", file, line, fmt.Sprintf(f, a...)))
}

// SessionEvent logs a single compositor session lifecycle line (connect,
// hello, disconnect, protocol error). Kept separate from Tracef so it
// survives with -holyc_log off; compositor lifecycle is low-volume.
func SessionEvent(id uint64, f string, a ...interface{}) {
	glog.InfoDepth(1, fmt.Sprintf("session[%d]: %s", id, fmt.Sprintf(f, a...)))
}

// Flush flushes any buffered log entries; call before process exit.
func Flush() {
	glog.Flush()
}
