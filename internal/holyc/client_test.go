package holyc

import (
	"net"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/templelinux/templelinux/internal/ipc"
)

func TestDialCompositorHandshakeAndPresent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "holyc.sock")
	l, err := ipc.Listen(path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()

	serverDone := make(chan error, 1)
	go func() {
		conn, err := ipc.Accept(l)
		if err != nil {
			serverDone <- err
			return
		}
		defer conn.Close()
		msg, err := conn.Recv()
		if err != nil || msg.Kind != ipc.Hello {
			serverDone <- err
			return
		}
		fd, err := unix.MemfdCreate("test-fb", 0)
		if err != nil {
			serverDone <- err
			return
		}
		defer unix.Close(fd)
		if err := unix.Ftruncate(fd, 4*4); err != nil {
			serverDone <- err
			return
		}
		if err := conn.SendWithFD(ipc.Header{Kind: ipc.HelloAck, A: 4, B: 4}, fd); err != nil {
			serverDone <- err
			return
		}
		present, err := conn.Recv()
		if err != nil || present.Kind != ipc.Present {
			serverDone <- err
			return
		}
		serverDone <- conn.Send(ipc.Header{Kind: ipc.PresentAck, Seq: present.Seq}, nil)
	}()

	addr, _ := net.ResolveUnixAddr("unix", path)
	_ = addr

	disp, err := DialCompositor(path, true)
	if err != nil {
		t.Fatalf("dial compositor: %v", err)
	}
	defer disp.Close()

	if disp.w != 4 || disp.h != 4 {
		t.Fatalf("got client area %dx%d", disp.w, disp.h)
	}

	if err := disp.Present(); err != nil {
		t.Fatalf("present: %v", err)
	}
	if err := <-serverDone; err != nil {
		t.Fatalf("server side: %v", err)
	}
}

func TestIPCDisplayClearAndPutChar(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "holyc2.sock")
	l, err := ipc.Listen(path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()

	go func() {
		conn, err := ipc.Accept(l)
		if err != nil {
			return
		}
		if _, err := conn.Recv(); err != nil {
			return
		}
		fd, err := unix.MemfdCreate("test-fb2", 0)
		if err != nil {
			return
		}
		unix.Ftruncate(fd, 16*8)
		conn.SendWithFD(ipc.Header{Kind: ipc.HelloAck, A: 16, B: 8}, fd)
		unix.Close(fd)
	}()

	disp, err := DialCompositor(path, false)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer disp.Close()

	disp.PutChar(0, 0, 'A', 5, 0)
	disp.ClearOutput()
	for _, b := range disp.fb.Pix {
		if b != 0 {
			t.Fatalf("expected a fully cleared framebuffer after ClearOutput")
		}
	}
}

func TestSetGlyphOverridesPutChar(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "holyc3.sock")
	l, err := ipc.Listen(path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()

	go func() {
		conn, err := ipc.Accept(l)
		if err != nil {
			return
		}
		if _, err := conn.Recv(); err != nil {
			return
		}
		fd, err := unix.MemfdCreate("test-fb3", 0)
		if err != nil {
			return
		}
		unix.Ftruncate(fd, 8*8)
		conn.SendWithFD(ipc.Header{Kind: ipc.HelloAck, A: 8, B: 8}, fd)
		unix.Close(fd)
	}()

	disp, err := DialCompositor(path, false)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer disp.Close()

	var bits [8]byte
	bits[0] = 0xff // fully lit top row
	disp.SetGlyph('Q', bits)
	disp.PutChar(0, 0, 'Q', 7, 0)

	for x := 0; x < 8; x++ {
		if disp.fb.Pix[x] != 7 {
			t.Fatalf("pixel (%d,0): got %d, want 7 (overridden glyph row)", x, disp.fb.Pix[x])
		}
	}
}
