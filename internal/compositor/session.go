package compositor

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/templelinux/templelinux/internal/ipc"
)

// PaletteStackCap bounds the depth of a session's SettingsPush stack
//; over-pushes are dropped,
// pops of an empty stack are ignored.
const PaletteStackCap = 64

// Session is one connected client's state: its negotiated framebuffer,
// the shared memory segment backing it, its own 256-entry palette,
// and the present/ack handshake.
type Session struct {
	Conn *ipc.Conn

	ClientW, ClientH int
	FB               *Framebuffer
	shm              []byte // mmap'd view shared with the client
	shmFD            int

	Palette      Palette
	paletteStack []Palette

	mu         sync.Mutex
	pendingAck uint32
	hasPending bool
	focused    bool
	Muted      bool
	LastOna    int32
}

// NewSession allocates an anonymous shared-memory framebuffer of
// w*h bytes via memfd_create+mmap and wraps conn for message I/O.
// The caller sends HELLO_ACK with the returned fd.
func NewSession(conn *ipc.Conn, w, h int) (*Session, error) {
	size := w * h
	if size <= 0 {
		return nil, fmt.Errorf("compositor: invalid client area %dx%d", w, h)
	}
	fd, err := unix.MemfdCreate("templelinux-fb", 0)
	if err != nil {
		return nil, fmt.Errorf("compositor: memfd_create: %w", err)
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("compositor: ftruncate: %w", err)
	}
	mem, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("compositor: mmap: %w", err)
	}
	return &Session{
		Conn:    conn,
		ClientW: w,
		ClientH: h,
		FB:      &Framebuffer{W: w, H: h, Pix: mem},
		shm:     mem,
		shmFD:   fd,
		Palette: DefaultPalette(),
	}, nil
}

// Close unmaps the shared memory segment and closes the backing fd
// and socket.
func (s *Session) Close() error {
	if s.shm != nil {
		unix.Munmap(s.shm)
		s.shm = nil
	}
	if s.shmFD > 0 {
		unix.Close(s.shmFD)
	}
	return s.Conn.Close()
}

// SendHelloAck replies to the client's HELLO with its negotiated
// client-area size and the shared-memory fd.
func (s *Session) SendHelloAck() error {
	return s.Conn.SendWithFD(ipc.Header{Kind: ipc.HelloAck, A: int32(s.ClientW), B: int32(s.ClientH)}, s.shmFD)
}

// SetFocus updates whether this session's window currently has host
// focus; ShouldAckImmediately consults it to decide whether to ACK
// immediately without blitting, since an unfocused window need not
// block its client on host compositing.
func (s *Session) SetFocus(focused bool) {
	s.mu.Lock()
	s.focused = focused
	s.mu.Unlock()
}

// RecordPresent handles an inbound PRESENT(seq): records it as the
// pending seq for the next AckPresent. It returns nothing; whether the
// ACK is sent at once is decided separately by ShouldAckImmediately.
func (s *Session) RecordPresent(seq uint32) {
	s.mu.Lock()
	s.pendingAck = seq
	s.hasPending = true
	s.mu.Unlock()
}

// AckPresent sends PRESENT_ACK for the currently pending seq, if any,
// and clears the pending flag. Called by the UI loop once the frame
// has reached the host surface (or immediately, if the window is
// unfocused).
func (s *Session) AckPresent() error {
	s.mu.Lock()
	if !s.hasPending {
		s.mu.Unlock()
		return nil
	}
	seq := s.pendingAck
	s.hasPending = false
	s.mu.Unlock()
	return s.Conn.Send(ipc.Header{Kind: ipc.PresentAck, Seq: seq}, nil)
}

// ShouldAckImmediately reports whether the session's window is
// currently unfocused, in which case the compositor skips blitting
// and ACKs right away.
func (s *Session) ShouldAckImmediately() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.focused
}

// PushPalette saves the current palette onto the stack, dropping the
// push silently if the stack is already at PaletteStackCap.
func (s *Session) PushPalette() {
	if len(s.paletteStack) >= PaletteStackCap {
		return
	}
	s.paletteStack = append(s.paletteStack, s.Palette)
}

// PopPalette restores the most recently pushed palette, ignoring the
// pop if the stack is empty.
func (s *Session) PopPalette() {
	if len(s.paletteStack) == 0 {
		return
	}
	n := len(s.paletteStack) - 1
	s.Palette = s.paletteStack[n]
	s.paletteStack = s.paletteStack[:n]
}
