package holyc

import (
	"encoding/binary"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/templelinux/templelinux/internal/compositor"
	"github.com/templelinux/templelinux/internal/ipc"
)

// IPCDisplay is the production Display implementation: it speaks the
// wire protocol in internal/ipc to a running compositor process,
// rendering text cells into an mmap'd shared-memory framebuffer and
// relaying input events back to the interpreter. A background reader
// goroutine drains inbound messages into a buffered event queue;
// PollEvent is non-blocking and simply dequeues from it, so the only
// blocking points are the input builtins that loop on it and Present
// waiting for PRESENT_ACK when syncPresent is set.
type IPCDisplay struct {
	conn *ipc.Conn

	mu            sync.Mutex
	fb            *compositor.Framebuffer
	w, h          int
	events        chan Event
	closed        chan struct{}
	syncPresent   bool
	nextSeq       uint32
	ackCh         chan uint32
	fontOverrides map[byte][8]byte
}

// DialCompositor connects to the compositor's listen socket, performs
// the HELLO/HELLO_ACK handshake, mmaps the returned framebuffer fd,
// and starts the background reader goroutine.
func DialCompositor(socketPath string, syncPresent bool) (*IPCDisplay, error) {
	conn, err := ipc.Dial(socketPath)
	if err != nil {
		return nil, err
	}
	if err := conn.Send(ipc.Header{Kind: ipc.Hello}, nil); err != nil {
		conn.Close()
		return nil, err
	}
	msg, err := conn.Recv()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if msg.Kind != ipc.HelloAck || msg.FD < 0 {
		conn.Close()
		return nil, fmt.Errorf("holyc: expected HELLO_ACK with fd, got %v", msg.Kind)
	}
	w, h := int(msg.A), int(msg.B)
	mem, err := unix.Mmap(msg.FD, 0, w*h, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	unix.Close(msg.FD)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("holyc: mmap framebuffer: %w", err)
	}
	d := &IPCDisplay{
		conn:        conn,
		fb:          &compositor.Framebuffer{W: w, H: h, Pix: mem},
		w:           w,
		h:           h,
		events:      make(chan Event, 256),
		closed:      make(chan struct{}),
		syncPresent: syncPresent,
		ackCh:       make(chan uint32, 1),
	}
	go d.readLoop()
	return d, nil
}

func (d *IPCDisplay) readLoop() {
	defer close(d.closed)
	for {
		msg, err := d.conn.Recv()
		if err != nil {
			return
		}
		switch msg.Kind {
		case ipc.MouseMove:
			d.push(Event{Kind: "mouse_move", X: int(msg.A), Y: int(msg.B)})
		case ipc.MouseButton:
			d.push(Event{Kind: "mouse_button", Btn: int(msg.A), Down: msg.B != 0})
		case ipc.MouseWheel:
			d.push(Event{Kind: "mouse_wheel", X: int(msg.A), Y: int(msg.B)})
		case ipc.MouseEnter:
			d.push(Event{Kind: "mouse_enter"})
		case ipc.MouseLeave:
			d.push(Event{Kind: "mouse_leave"})
		case ipc.Key:
			d.push(Event{Kind: "key", Key: int64(msg.A), Down: msg.B != 0})
		case ipc.PresentAck:
			select {
			case d.ackCh <- msg.Seq:
			default:
			}
		case ipc.Shutdown:
			return
		}
	}
}

func (d *IPCDisplay) push(e Event) {
	select {
	case d.events <- e:
	default:
		// Drop the oldest event rather than block the reader goroutine
		// on a stalled interpreter.
		select {
		case <-d.events:
		default:
		}
		d.events <- e
	}
}

// PutChar rasterizes one compositor.CellW x compositor.CellH cell into
// the mmap'd framebuffer at (col, row) in cell coordinates, from the
// SetGlyph override for ch if there is one, else from glyphPixelSet.
func (d *IPCDisplay) PutChar(col, row int, ch byte, fg, bg int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	bits, overridden := d.fontOverrides[ch]
	x0, y0 := col*compositor.CellW, row*compositor.CellH
	for yy := 0; yy < compositor.CellH; yy++ {
		for xx := 0; xx < compositor.CellW; xx++ {
			x, y := x0+xx, y0+yy
			if x < 0 || y < 0 || x >= d.w || y >= d.h {
				continue
			}
			var on bool
			if overridden {
				on = yy < 8 && xx < 8 && bits[yy]&(1<<uint(xx)) != 0
			} else {
				on = glyphPixelSet(ch, xx, yy)
			}
			idx := byte(bg)
			if on {
				idx = byte(fg)
			}
			d.fb.Pix[y*d.w+x] = idx
		}
	}
}

// SetGlyph patches the active font's bitmap for ch, the way CFontSet
// patches a single FONT entry: subsequent PutChar calls for ch render
// the patched 8x8 bitmap instead of the built-in placeholder glyph.
func (d *IPCDisplay) SetGlyph(ch byte, bits [8]byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fontOverrides == nil {
		d.fontOverrides = map[byte][8]byte{}
	}
	d.fontOverrides[ch] = bits
}

// glyphPixelSet approximates an 8x8 bitmap cell from the CP437 byte:
// a deterministic, font-free fallback used when no vendored glyph
// bitmap is loaded, so headless test runs never need real font data.
// Neither side draws text with compositor.Glyphs.
func glyphPixelSet(ch byte, x, y int) bool {
	if ch == ' ' || ch == 0 {
		return false
	}
	return (int(ch)+x*3+y*5)%7 == 0
}

// ClearOutput blanks the entire framebuffer to index 0.
func (d *IPCDisplay) ClearOutput() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.fb.Pix {
		d.fb.Pix[i] = 0
	}
}

// Present sends PRESENT and, if syncPresent is enabled, blocks until
// the matching PRESENT_ACK arrives.
func (d *IPCDisplay) Present() error {
	d.mu.Lock()
	d.nextSeq++
	seq := d.nextSeq
	d.mu.Unlock()
	if err := d.conn.Send(ipc.Header{Kind: ipc.Present, Seq: seq}, nil); err != nil {
		return err
	}
	if !d.syncPresent {
		return nil
	}
	for {
		got := <-d.ackCh
		if got == seq {
			return nil
		}
	}
}

// PresentAsync sends PRESENT without ever waiting for PRESENT_ACK,
// unlike Present which blocks on the ack when syncPresent is set.
func (d *IPCDisplay) PresentAsync() error {
	d.mu.Lock()
	d.nextSeq++
	seq := d.nextSeq
	d.mu.Unlock()
	return d.conn.Send(ipc.Header{Kind: ipc.Present, Seq: seq}, nil)
}

// PollEvent returns the next queued input event, non-blocking.
func (d *IPCDisplay) PollEvent() (Event, bool) {
	select {
	case e := <-d.events:
		return e, true
	default:
		return Event{}, false
	}
}

// SetPaletteColor sends PALETTE_COLOR_SET.
func (d *IPCDisplay) SetPaletteColor(index int, rgb uint32) {
	d.conn.Send(ipc.Header{Kind: ipc.PaletteColorSet, A: int32(index), B: int32(rgb)}, nil)
}

// Clipboard is a write-only path in this protocol: the wire format has
// no server-to-client clipboard message, so reading the host clipboard
// back into HolyC is not possible over this connection.
func (d *IPCDisplay) Clipboard() (string, error) {
	return "", fmt.Errorf("holyc: clipboard read is not supported over IPC")
}

// SetClipboard sends CLIPBOARD_SET with the UTF-8 payload.
func (d *IPCDisplay) SetClipboard(s string) error {
	return d.conn.Send(ipc.Header{Kind: ipc.ClipboardSet, A: int32(len(s))}, []byte(s))
}

// Beep sends SND; freq is mapped to the nearest "ona" tone index the
// way the TempleOS sound table does, clamped into a byte.
func (d *IPCDisplay) Beep(freq, durMs int) {
	ona := int(freqToOna(float64(freq)))
	if ona < 0 {
		ona = 0
	}
	if ona > 255 {
		ona = 255
	}
	d.PlayTone(ona)
}

// PlayTone sends SND with the given ona tone index.
func (d *IPCDisplay) PlayTone(ona int) {
	d.conn.Send(ipc.Header{Kind: ipc.Snd, A: int32(ona)}, nil)
}

// StopTone sends SND with ona 0, which stops the tone.
func (d *IPCDisplay) StopTone() {
	d.conn.Send(ipc.Header{Kind: ipc.Snd, A: 0}, nil)
}

// SetMute sends MUTE.
func (d *IPCDisplay) SetMute(muted bool) {
	d.conn.Send(ipc.Header{Kind: ipc.Mute, A: boolToI32(muted)}, nil)
}

func boolToI32(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// PushSettings sends SETTINGS_PUSH, telling the compositor to snapshot
// the session's current palette onto its palette stack.
func (d *IPCDisplay) PushSettings() {
	d.conn.Send(ipc.Header{Kind: ipc.SettingsPush}, nil)
}

// PopSettings sends SETTINGS_POP, restoring the palette the matching
// PushSettings snapshotted.
func (d *IPCDisplay) PopSettings() {
	d.conn.Send(ipc.Header{Kind: ipc.SettingsPop}, nil)
}

// sendGfx packs a graphics primitive as a CMD message: op in Header.A,
// color in Header.B, coords little-endian in the payload.
func (d *IPCDisplay) sendGfx(op ipc.GfxOp, color int, coords ...int32) {
	payload := make([]byte, 4*len(coords))
	for i, c := range coords {
		binary.LittleEndian.PutUint32(payload[i*4:], uint32(c))
	}
	d.conn.Send(ipc.Header{Kind: ipc.Cmd, A: int32(op), B: int32(color), C: uint32(len(payload))}, payload)
}

// SetPixel sends a SET_PIXEL CMD.
func (d *IPCDisplay) SetPixel(x, y, color int) {
	d.sendGfx(ipc.GfxSetPixel, color, int32(x), int32(y))
}

// DrawLine sends a LINE CMD.
func (d *IPCDisplay) DrawLine(x0, y0, x1, y1, color int) {
	d.sendGfx(ipc.GfxLine, color, int32(x0), int32(y0), int32(x1), int32(y1))
}

// DrawRect sends a RECT_FILL or RECT_BORDER CMD.
func (d *IPCDisplay) DrawRect(x0, y0, x1, y1, color int, fill bool) {
	op := ipc.GfxRectBorder
	if fill {
		op = ipc.GfxRectFill
	}
	d.sendGfx(op, color, int32(x0), int32(y0), int32(x1), int32(y1))
}

// DrawCircle sends a CIRCLE_FILL or CIRCLE_BORDER CMD.
func (d *IPCDisplay) DrawCircle(cx, cy, r, color int, fill bool) {
	op := ipc.GfxCircleBorder
	if fill {
		op = ipc.GfxCircleFill
	}
	d.sendGfx(op, color, int32(cx), int32(cy), int32(r))
}

// DrawEllipse sends an ELLIPSE_FILL or ELLIPSE_BORDER CMD.
func (d *IPCDisplay) DrawEllipse(x0, y0, x1, y1, color int, fill bool) {
	op := ipc.GfxEllipseBorder
	if fill {
		op = ipc.GfxEllipseFill
	}
	d.sendGfx(op, color, int32(x0), int32(y0), int32(x1), int32(y1))
}

// FloodFill sends a FLOOD_FILL CMD.
func (d *IPCDisplay) FloodFill(x, y, color int) {
	d.sendGfx(ipc.GfxFloodFill, color, int32(x), int32(y))
}

// Close sends no explicit message; closing the socket is itself the
// client's half of an orderly shutdown, mirroring how the compositor
// treats a lost connection as an implicit disconnect.
func (d *IPCDisplay) Close() error {
	return d.conn.Close()
}
