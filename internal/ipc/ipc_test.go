package ipc

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func dialPair(t *testing.T) (*Conn, *Conn, func()) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.sock")
	l, err := Listen(path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	type acceptResult struct {
		c   *Conn
		err error
	}
	ch := make(chan acceptResult, 1)
	go func() {
		c, err := Accept(l)
		ch <- acceptResult{c, err}
	}()
	client, err := Dial(path)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	res := <-ch
	if res.err != nil {
		t.Fatalf("accept: %v", res.err)
	}
	return client, res.c, func() {
		client.Close()
		res.c.Close()
		l.Close()
	}
}

func TestHelloHelloAck(t *testing.T) {
	client, server, done := dialPair(t)
	defer done()

	if err := client.Send(Header{Kind: Hello}, nil); err != nil {
		t.Fatalf("send hello: %v", err)
	}
	msg, err := server.Recv()
	if err != nil {
		t.Fatalf("recv hello: %v", err)
	}
	if msg.Kind != Hello {
		t.Fatalf("got kind %v, want HELLO", msg.Kind)
	}

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	defer w.Close()

	if err := server.SendWithFD(Header{Kind: HelloAck, A: 640, B: 480}, int(w.Fd())); err != nil {
		t.Fatalf("send hello_ack: %v", err)
	}
	ack, err := client.Recv()
	if err != nil {
		t.Fatalf("recv hello_ack: %v", err)
	}
	if ack.Kind != HelloAck || ack.A != 640 || ack.B != 480 {
		t.Fatalf("got %+v", ack.Header)
	}
	if ack.FD < 0 {
		t.Fatalf("expected an ancillary fd")
	}
	os.NewFile(uintptr(ack.FD), "fb").Close()
}

func TestPresentAckRoundTrip(t *testing.T) {
	client, server, done := dialPair(t)
	defer done()

	if err := client.Send(Header{Kind: Present, Seq: 7}, nil); err != nil {
		t.Fatal(err)
	}
	msg, err := server.Recv()
	if err != nil {
		t.Fatal(err)
	}
	if msg.Kind != Present || msg.Seq != 7 {
		t.Fatalf("got %+v", msg.Header)
	}
	if err := server.Send(Header{Kind: PresentAck, Seq: msg.Seq}, nil); err != nil {
		t.Fatal(err)
	}
	ack, err := client.Recv()
	if err != nil {
		t.Fatal(err)
	}
	if ack.Kind != PresentAck || ack.Seq != 7 {
		t.Fatalf("got %+v", ack.Header)
	}
}

func TestClipboardSetPayload(t *testing.T) {
	client, server, done := dialPair(t)
	defer done()

	text := []byte("hello clipboard")
	if err := client.Send(Header{Kind: ClipboardSet, A: int32(len(text))}, text); err != nil {
		t.Fatal(err)
	}
	msg, err := server.Recv()
	if err != nil {
		t.Fatal(err)
	}
	if msg.Kind != ClipboardSet || string(msg.Payload) != "hello clipboard" {
		t.Fatalf("got %+v payload=%q", msg.Header, msg.Payload)
	}
	if int(msg.C) != len(text) {
		t.Fatalf("C=%d, want %d", msg.C, len(text))
	}
}

func TestOversizedPayloadIsProtocolError(t *testing.T) {
	client, server, done := dialPair(t)
	defer done()

	// Hand-craft a header claiming an oversized payload: Send() always
	// recomputes C from the real payload length, so a legitimate caller
	// can't produce this, only a hostile or corrupt peer.
	raw := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(raw[0:4], uint32(ClipboardSet))
	binary.LittleEndian.PutUint32(raw[16:20], MaxPayload+1)
	if _, err := client.c.Write(raw); err != nil {
		t.Fatal(err)
	}
	_, err := server.Recv()
	if err == nil {
		t.Fatal("expected a protocol error for an oversized payload")
	}
	if _, ok := err.(*ProtocolError); !ok {
		t.Fatalf("got %T, want *ProtocolError", err)
	}
}

func TestKindString(t *testing.T) {
	if Key.String() != "KEY" || Shutdown.String() != "SHUTDOWN" {
		t.Fatalf("got %q %q", Key.String(), Shutdown.String())
	}
}
