package compositor

import (
	"net"
	"path/filepath"
	"testing"

	"github.com/templelinux/templelinux/internal/ipc"
)

func newSessionPair(t *testing.T) (*Session, *ipc.Conn, func()) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "sess.sock")
	l, err := ipc.Listen(path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	type acceptResult struct {
		c   *ipc.Conn
		err error
	}
	ch := make(chan acceptResult, 1)
	go func() {
		c, err := ipc.Accept(l)
		ch <- acceptResult{c, err}
	}()
	addr, _ := net.ResolveUnixAddr("unix", path)
	rawClient, err := net.DialUnix("unix", nil, addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	client := ipc.NewConn(rawClient)
	res := <-ch
	if res.err != nil {
		t.Fatalf("accept: %v", res.err)
	}
	sess, err := NewSession(res.c, 64, 32)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return sess, client, func() {
		sess.Close()
		client.Close()
		l.Close()
	}
}

func TestSessionHelloAckCarriesFramebufferFD(t *testing.T) {
	sess, client, done := newSessionPair(t)
	defer done()

	if err := sess.SendHelloAck(); err != nil {
		t.Fatalf("send hello_ack: %v", err)
	}
	msg, err := client.Recv()
	if err != nil {
		t.Fatalf("recv hello_ack: %v", err)
	}
	if msg.Kind != ipc.HelloAck || msg.A != 64 || msg.B != 32 {
		t.Fatalf("got %+v", msg.Header)
	}
	if msg.FD < 0 {
		t.Fatal("expected an ancillary framebuffer fd")
	}
}

func TestPaletteStackBoundedAndEmptyPopIgnored(t *testing.T) {
	sess, _, done := newSessionPair(t)
	defer done()

	sess.PopPalette() // empty pop is a no-op, not an error

	sess.Palette.Set(0, 0x11223344)
	for i := 0; i < PaletteStackCap+10; i++ {
		sess.PushPalette()
	}
	if len(sess.paletteStack) != PaletteStackCap {
		t.Fatalf("got stack depth %d, want capped at %d", len(sess.paletteStack), PaletteStackCap)
	}

	sess.Palette.Set(0, 0x99887766)
	sess.PopPalette()
	if sess.Palette[0].R != 0x11 {
		t.Fatalf("got %+v after pop, want the pushed value restored", sess.Palette[0])
	}
}

func TestRecordPresentAndAck(t *testing.T) {
	sess, client, done := newSessionPair(t)
	defer done()

	sess.RecordPresent(42)
	if err := sess.AckPresent(); err != nil {
		t.Fatalf("ack: %v", err)
	}
	msg, err := client.Recv()
	if err != nil {
		t.Fatalf("recv ack: %v", err)
	}
	if msg.Kind != ipc.PresentAck || msg.Seq != 42 {
		t.Fatalf("got %+v", msg.Header)
	}

	// A second ack with nothing pending is a no-op, not a resend.
	if err := sess.AckPresent(); err != nil {
		t.Fatalf("ack with nothing pending: %v", err)
	}
}

func TestShouldAckImmediatelyWhenUnfocused(t *testing.T) {
	sess, _, done := newSessionPair(t)
	defer done()

	if !sess.ShouldAckImmediately() {
		t.Fatal("a new session defaults to unfocused")
	}
	sess.SetFocus(true)
	if sess.ShouldAckImmediately() {
		t.Fatal("a focused session should not ack immediately")
	}
}
