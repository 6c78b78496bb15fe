package config

import "testing"

func TestFromEnvironDefaults(t *testing.T) {
	t.Setenv("TEMPLE_ROOT", "")
	t.Setenv("TEMPLE_SOCK", "")
	t.Setenv("TEMPLE_HC_SEED", "")
	t.Setenv("TEMPLE_HC_FIXED_TS", "")
	t.Setenv("XDG_RUNTIME_DIR", "/tmp/xdgtest")

	c, err := FromEnviron()
	if err != nil {
		t.Fatalf("FromEnviron: %v", err)
	}
	if c.SocketPath != "/tmp/xdgtest/temple.sock" {
		t.Fatalf("got socket path %q", c.SocketPath)
	}
	if c.Seed != nil {
		t.Fatalf("expected nil Seed by default, got %v", *c.Seed)
	}
	if !c.CatAutoPager {
		t.Fatal("expected CatAutoPager default on")
	}
}

func TestFromEnvironParsesSeedAndFixedTS(t *testing.T) {
	t.Setenv("TEMPLE_HC_SEED", "42")
	t.Setenv("TEMPLE_HC_FIXED_TS", "1000")

	c, err := FromEnviron()
	if err != nil {
		t.Fatalf("FromEnviron: %v", err)
	}
	if c.Seed == nil || *c.Seed != 42 {
		t.Fatalf("got seed %v", c.Seed)
	}
	if c.FixedTS == nil || *c.FixedTS != 1000 {
		t.Fatalf("got fixed ts %v", c.FixedTS)
	}
}

func TestFromEnvironRejectsMalformedSeed(t *testing.T) {
	t.Setenv("TEMPLE_HC_SEED", "not-a-number")

	_, err := FromEnviron()
	if err == nil {
		t.Fatal("expected an error for a malformed TEMPLE_HC_SEED")
	}
	cerr, ok := err.(*Error)
	if !ok {
		t.Fatalf("got %T, want *Error", err)
	}
	if cerr.Var != "TEMPLE_HC_SEED" {
		t.Fatalf("got Var %q", cerr.Var)
	}
}

func TestBoolEnvRecognizesTruthyStrings(t *testing.T) {
	t.Setenv("TEMPLE_SYNC_PRESENT", "1")
	c, err := FromEnviron()
	if err != nil {
		t.Fatal(err)
	}
	if !c.SyncPresent {
		t.Fatal("expected SyncPresent true for \"1\"")
	}
}
