package compositor

import (
	"encoding/binary"
	"net"
	"sync"

	"github.com/templelinux/templelinux/internal/ipc"
	"github.com/templelinux/templelinux/internal/logx"
)

// Compositor owns the accept loop, the window manager, and the
// per-client reader coroutines; there is no per-client writer
// coroutine or outbound queue (see Serve). All
// mutation of palette, windows, and session state happens on the UI
// loop goroutine that drains Events; reader/writer coroutines only
// produce onto or drain from channels, never touch WM/session state
// directly.
type Compositor struct {
	WM          *WM
	SyncPresent bool

	Events chan ClientEvent
	mu     sync.Mutex
	byConn map[*ipc.Conn]*Session
}

// New creates a Compositor sized to screenW x screenH.
func New(screenW, screenH int, syncPresent bool) *Compositor {
	return &Compositor{
		WM:          NewWM(screenW, screenH),
		SyncPresent: syncPresent,
		Events:      make(chan ClientEvent, 64),
		byConn:      make(map[*ipc.Conn]*Session),
	}
}

// Serve accepts connections on l until it is closed, spawning a
// reader coroutine per client. Outbound per-session traffic (MOUSE_*,
// KEY, PRESENT_ACK, SHUTDOWN, CMD) is sent by calling Session.Conn.Send
// directly from the UI loop as ordinary synchronous sends, since the
// UI loop is the only goroutine that ever writes to a given Conn.
func (c *Compositor) Serve(l *net.UnixListener) error {
	for {
		conn, err := ipc.Accept(l)
		if err != nil {
			return err
		}
		go c.acceptClient(conn)
	}
}

func (c *Compositor) acceptClient(conn *ipc.Conn) {
	msg, err := conn.Recv()
	if err != nil || msg.Kind != ipc.Hello {
		logx.Always("compositor: expected HELLO, got %v (err=%v)", msg, err)
		conn.Close()
		return
	}
	sess, err := NewSession(conn, InternalW, InternalH)
	if err != nil {
		logx.Always("compositor: new session: %v", err)
		conn.Close()
		return
	}
	if err := sess.SendHelloAck(); err != nil {
		logx.Always("compositor: hello_ack: %v", err)
		sess.Close()
		return
	}

	c.mu.Lock()
	c.byConn[conn] = sess
	c.mu.Unlock()

	win := &Window{Session: sess, Rect: Rect{X: 0, Y: 0, W: sess.ClientW, H: sess.ClientH}, TitleH: 16}
	c.WM.AddWindow(win)

	c.readLoop(sess)
}

// readLoop is the per-client reader coroutine: it parses inbound
// messages and turns them into ClientEvents for the UI loop.
func (c *Compositor) readLoop(sess *Session) {
	defer func() {
		c.mu.Lock()
		delete(c.byConn, sess.Conn)
		c.mu.Unlock()
		c.Events <- ClientEvent{Session: sess, Kind: EvDisconnect}
		sess.Close()
	}()
	for {
		msg, err := sess.Conn.Recv()
		if err != nil {
			return
		}
		switch msg.Kind {
		case ipc.Present:
			sess.RecordPresent(msg.Seq)
			c.Events <- ClientEvent{Session: sess, Kind: EvPresent, Seq: msg.Seq}
		case ipc.PaletteColorSet:
			c.Events <- ClientEvent{Session: sess, Kind: EvPaletteColorSet, Index: uint8(msg.A), PackedRGB: uint32(msg.B)}
		case ipc.ClipboardSet:
			c.Events <- ClientEvent{Session: sess, Kind: EvClipboardSet, Text: string(msg.Payload)}
		case ipc.Snd:
			c.Events <- ClientEvent{Session: sess, Kind: EvSnd, Ona: msg.A}
		case ipc.Mute:
			c.Events <- ClientEvent{Session: sess, Kind: EvMute, Mute: msg.A != 0}
		case ipc.SettingsPush:
			c.Events <- ClientEvent{Session: sess, Kind: EvSettingsPush}
		case ipc.SettingsPop:
			c.Events <- ClientEvent{Session: sess, Kind: EvSettingsPop}
		case ipc.Cmd:
			c.Events <- ClientEvent{
				Session: sess,
				Kind:    EvGfx,
				GfxOp:   ipc.GfxOp(msg.A),
				Color:   msg.B,
				Coords:  decodeI32Payload(msg.Payload),
			}
		default:
			logx.Always("compositor: unexpected client message kind %v", msg.Kind)
		}
	}
}

// ApplyClientEvent is the UI loop's handler for one ClientEvent; it is
// the only place session/palette state mutates for client-originated
// messages.
func (c *Compositor) ApplyClientEvent(ev ClientEvent) {
	switch ev.Kind {
	case EvPresent:
		if ev.Session.ShouldAckImmediately() {
			ev.Session.AckPresent()
			return
		}
		// A focused session's PRESENT stays pending until
		// Session.AckPresent is called. This package has no host blit
		// and calls neither AckPresent for that case nor SetFocus, so
		// sessions stay unfocused and every PRESENT is acked above.
	case EvPaletteColorSet:
		ev.Session.Palette.Set(ev.Index, ev.PackedRGB)
	case EvSettingsPush:
		ev.Session.PushPalette()
	case EvSettingsPop:
		ev.Session.PopPalette()
	case EvSnd:
		if !ev.Session.Muted {
			ev.Session.LastOna = ev.Ona
		}
	case EvMute:
		ev.Session.Muted = ev.Mute
	case EvGfx:
		c.applyGfx(ev)
	case EvDisconnect:
		for _, w := range c.WM.Windows {
			if w.Session == ev.Session {
				c.WM.RemoveWindow(w)
				break
			}
		}
	}
}

// Shutdown broadcasts SHUTDOWN to every connected client and closes
// their sessions.
func (c *Compositor) Shutdown() {
	c.mu.Lock()
	sessions := make([]*Session, 0, len(c.byConn))
	for _, s := range c.byConn {
		sessions = append(sessions, s)
	}
	c.mu.Unlock()
	for _, s := range sessions {
		s.Conn.Send(ipc.Header{Kind: ipc.Shutdown}, nil)
		s.Close()
	}
}

// RouteKey applies WM shortcuts first, then forwards the key to the
// focused window's client as a KEY message.
func (c *Compositor) RouteKey(keycode int, down, alt, ctrl bool) {
	if consumed, closed := c.WM.HandleKey(keycode, down, alt, ctrl); consumed {
		if closed != nil && closed.Session != nil {
			closed.Session.Conn.Send(ipc.Header{Kind: ipc.Shutdown}, nil)
		}
		return
	}
	f := c.WM.Focused()
	if f == nil || f.Session == nil {
		return
	}
	f.Session.Conn.Send(ipc.Header{Kind: ipc.Key, A: int32(keycode), B: boolToI32(down)}, nil)
}

// RouteMouseButton hit-tests and routes a mouse button edge: a press
// on a close button sends SHUTDOWN to that window's client, a press
// inside a client area sends MOUSE_BUTTON (down) to that client, and
// the release sends MOUSE_BUTTON (up) to the window that captured the
// press. No MOUSE_ENTER/MOUSE_LEAVE messages are sent on hover
// transitions.
func (c *Compositor) RouteMouseButton(x, y, button int, down bool) {
	if down {
		if closed := c.WM.MouseDown(x, y); closed != nil && closed.Session != nil {
			closed.Session.Conn.Send(ipc.Header{Kind: ipc.Shutdown}, nil)
			return
		}
		if w := c.WM.captured; w != nil && w.Session != nil {
			w.Session.Conn.Send(ipc.Header{Kind: ipc.MouseButton, A: int32(button), B: 1}, nil)
		}
		return
	}
	if w, lx, ly, ok := c.WM.MouseUp(x, y); ok && w != nil && w.Session != nil {
		w.Session.Conn.Send(ipc.Header{Kind: ipc.MouseButton, A: int32(button), B: 0}, nil)
		_ = lx
		_ = ly
	}
}

// RouteMouseMove forwards drag/capture motion as MOUSE_MOVE in the
// target window's client-local, rescaled coordinates.
func (c *Compositor) RouteMouseMove(x, y int) {
	if w, lx, ly, ok := c.WM.MouseMove(x, y); ok && w != nil && w.Session != nil {
		w.Session.Conn.Send(ipc.Header{Kind: ipc.MouseMove, A: int32(lx), B: int32(ly)}, nil)
	}
}

func boolToI32(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// decodeI32Payload unpacks a CMD payload into its little-endian int32
// coordinates, truncating any trailing partial word.
func decodeI32Payload(payload []byte) []int32 {
	n := len(payload) / 4
	out := make([]int32, n)
	for i := 0; i < n; i++ {
		out[i] = int32(binary.LittleEndian.Uint32(payload[i*4:]))
	}
	return out
}

// applyGfx dispatches a decoded CMD graphics primitive onto the
// session's framebuffer. Malformed (too few coords) messages are
// dropped rather than panicking on a hostile or desynced client.
func (c *Compositor) applyGfx(ev ClientEvent) {
	fb := ev.Session.FB
	xy := ev.Coords
	idx := byte(ev.Color)
	switch ev.GfxOp {
	case ipc.GfxSetPixel:
		if len(xy) < 2 {
			return
		}
		fb.SetPixel(int(xy[0]), int(xy[1]), idx)
	case ipc.GfxLine:
		if len(xy) < 4 {
			return
		}
		fb.DrawLine(int(xy[0]), int(xy[1]), int(xy[2]), int(xy[3]), idx)
	case ipc.GfxRectFill, ipc.GfxRectBorder:
		if len(xy) < 4 {
			return
		}
		fb.DrawRect(int(xy[0]), int(xy[1]), int(xy[2]), int(xy[3]), idx, ev.GfxOp == ipc.GfxRectFill)
	case ipc.GfxCircleFill, ipc.GfxCircleBorder:
		if len(xy) < 3 {
			return
		}
		fb.DrawCircle(int(xy[0]), int(xy[1]), int(xy[2]), idx, ev.GfxOp == ipc.GfxCircleFill)
	case ipc.GfxEllipseFill, ipc.GfxEllipseBorder:
		if len(xy) < 4 {
			return
		}
		fb.DrawEllipse(int(xy[0]), int(xy[1]), int(xy[2]), int(xy[3]), idx, ev.GfxOp == ipc.GfxEllipseFill)
	case ipc.GfxFloodFill:
		if len(xy) < 2 {
			return
		}
		fb.FloodFill(int(xy[0]), int(xy[1]), idx)
	}
}
