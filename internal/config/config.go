// Package config resolves the environment-variable configuration
// surface into a single immutable Config value up front, before
// anything else runs.
package config

import (
	"os"
	"path/filepath"
	"strconv"
)

// Config is the resolved process configuration. Both cmd/holyc and
// cmd/compositor build one of these at startup and pass it down
// explicitly; nothing below this layer reads os.Getenv directly.
type Config struct {
	// TempleRoot is the hosted, writable Temple filesystem root.
	TempleRoot string
	// TempleOSRoot is the read-only vendored TempleOS source tree.
	// Empty if unset: "::/" paths and TEMPLEOS_ROOT fallback resolution
	// are then unavailable, not an error.
	TempleOSRoot string
	// SocketPath is the compositor's Unix domain listen socket.
	SocketPath string
	// SyncPresent enables blocking PRESENT until PRESENT_ACK.
	SyncPresent bool
	// Seed is the deterministic PRNG seed for Seed()'s default, nil if
	// the caller should fall back to a random seed.
	Seed *int64
	// FixedTS, if non-nil, pins Now() and time-based blinks.
	FixedTS *int64
	// CatAutoPager controls whether `cat` auto-pages long files.
	CatAutoPager bool
	// NoFirstRunAutostart disables writing the default AutoStart.tl on
	// first run.
	NoFirstRunAutostart bool
	// AutoLinuxWS / WSTemple / WSLinux mirror the workspace-integration
	// toggles; plumbed through untouched, interpreted by the shell UI
	// (out of core scope, but the flags must round-trip through config).
	AutoLinuxWS bool
	WSTemple    bool
	WSLinux     bool
}

// FromEnviron resolves Config from the process environment, applying
// documented defaults for anything unset.
func FromEnviron() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	c := Config{
		TempleRoot:   envOr("TEMPLE_ROOT", filepath.Join(home, ".templelinux")),
		TempleOSRoot: os.Getenv("TEMPLEOS_ROOT"),
		SocketPath:   envOr("TEMPLE_SOCK", defaultSocketPath()),
		SyncPresent:  boolEnv("TEMPLE_SYNC_PRESENT", false),
		CatAutoPager: boolEnv("TEMPLE_CAT_AUTO_PAGER", true),
		NoFirstRunAutostart: boolEnv("TEMPLE_NO_FIRST_RUN_AUTOSTART", false),
		AutoLinuxWS:  boolEnv("TEMPLE_AUTO_LINUX_WS", false),
		WSTemple:     boolEnv("TEMPLE_WS_TEMPLE", false),
		WSLinux:      boolEnv("TEMPLE_WS_LINUX", false),
	}

	if s, ok := os.LookupEnv("TEMPLE_HC_SEED"); ok && s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Config{}, &Error{Var: "TEMPLE_HC_SEED", Value: s, Cause: err}
		}
		c.Seed = &v
	}
	if s, ok := os.LookupEnv("TEMPLE_HC_FIXED_TS"); ok && s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Config{}, &Error{Var: "TEMPLE_HC_FIXED_TS", Value: s, Cause: err}
		}
		c.FixedTS = &v
	}
	return c, nil
}

func defaultSocketPath() string {
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "temple.sock")
}

func envOr(name, dflt string) string {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		return v
	}
	return dflt
}

func boolEnv(name string, dflt bool) bool {
	v, ok := os.LookupEnv(name)
	if !ok {
		return dflt
	}
	return v == "1" || v == "true" || v == "yes"
}

// Error is a ConfigError: a malformed environment variable discovered
// before the VM or compositor starts.
type Error struct {
	Var   string
	Value string
	Cause error
}

func (e *Error) Error() string {
	return "config: " + e.Var + "=" + e.Value + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() error { return e.Cause }
