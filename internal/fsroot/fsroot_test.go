package fsroot

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestRoot(t *testing.T) *Root {
	t.Helper()
	rw := t.TempDir()
	ro := t.TempDir()
	if err := os.MkdirAll(filepath.Join(ro, "Demo"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(ro, "Demo", "x.txt"), []byte("vendored\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	r, err := New(rw, ro)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestResolveWritable(t *testing.T) {
	r := newTestRoot(t)
	host, readOnly, err := r.Resolve("/Home/x.txt")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if readOnly {
		t.Fatalf("expected writable path")
	}
	want := filepath.Join(r.Writable, "Home", "x.txt")
	if host != want {
		t.Fatalf("host = %q, want %q", host, want)
	}
}

func TestResolveTempleOSRoot(t *testing.T) {
	r := newTestRoot(t)
	host, readOnly, err := r.Resolve("::/Demo/x.txt")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !readOnly {
		t.Fatalf("expected read-only path")
	}
	want := filepath.Join(r.ReadOnly, "Demo", "x.txt")
	if host != want {
		t.Fatalf("host = %q, want %q", host, want)
	}
}

func TestFileFindFallsBackToReadOnlyRoot(t *testing.T) {
	r := newTestRoot(t)
	if _, ok := r.FileFind("/Demo/x.txt"); !ok {
		t.Fatalf("expected FileFind to fall back to TEMPLEOS_ROOT")
	}
}

func TestFileWriteRejectsReadOnly(t *testing.T) {
	r := newTestRoot(t)
	err := r.FileWrite("::/Demo/y.txt", []byte("no"))
	if err == nil {
		t.Fatalf("expected read-only write to fail")
	}
}

func TestCdStraddlesRoots(t *testing.T) {
	r := newTestRoot(t)
	if err := r.Cd("::/Demo"); err != nil {
		t.Fatalf("Cd ::/Demo: %v", err)
	}
	if r.Cwd() != "::/Demo" {
		t.Fatalf("Cwd = %q", r.Cwd())
	}
	if err := r.Cd("/Home"); err != nil {
		t.Fatalf("Cd /Home: %v", err)
	}
	if r.Cwd() != "/Home" {
		t.Fatalf("Cwd = %q", r.Cwd())
	}
}

func TestHistoryCap(t *testing.T) {
	r := newTestRoot(t)
	h, err := r.LoadHistory(2)
	if err != nil {
		t.Fatal(err)
	}
	h.Add("a")
	h.Add("b")
	h.Add("c")
	got := h.Entries()
	if len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Fatalf("Entries = %v", got)
	}
	if err := r.SaveHistory(h); err != nil {
		t.Fatal(err)
	}
	h2, err := r.LoadHistory(2)
	if err != nil {
		t.Fatal(err)
	}
	if got2 := h2.Entries(); len(got2) != 2 {
		t.Fatalf("reloaded Entries = %v", got2)
	}
}

func TestVarsRoundTrip(t *testing.T) {
	r := newTestRoot(t)
	if err := r.SaveVars(map[string]string{"B": "2", "A": "1"}); err != nil {
		t.Fatal(err)
	}
	got, err := r.LoadVars()
	if err != nil {
		t.Fatal(err)
	}
	if got["A"] != "1" || got["B"] != "2" {
		t.Fatalf("LoadVars = %v", got)
	}
}

func TestLoadAutoStartSkipsComments(t *testing.T) {
	r := newTestRoot(t)
	content := "# a comment\n// also a comment\nEd /Home/x.txt\n\nDir\n"
	if err := r.FileWrite("/Cfg/AutoStart.tl", []byte(content)); err != nil {
		t.Fatal(err)
	}
	cmds, err := r.LoadAutoStart()
	if err != nil {
		t.Fatal(err)
	}
	if len(cmds) != 2 || cmds[0] != "Ed /Home/x.txt" || cmds[1] != "Dir" {
		t.Fatalf("LoadAutoStart = %v", cmds)
	}
}
