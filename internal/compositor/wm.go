package compositor

// Rect is an integer screen rectangle in internal-framebuffer pixels.
type Rect struct {
	X, Y, W, H int
}

func (r Rect) contains(x, y int) bool {
	return x >= r.X && y >= r.Y && x < r.X+r.W && y < r.Y+r.H
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Window is one client's on-screen presence.
type Window struct {
	Session    *Session
	Rect       Rect
	Wallpaper  bool
	Closing    bool
	TitleH     int
}

// hitTitleBar reports whether (x, y) is within this window's title
// bar strip, used for drag initiation.
func (w *Window) hitTitleBar(x, y int) bool {
	if w.TitleH <= 0 {
		return false
	}
	return Rect{w.Rect.X, w.Rect.Y, w.Rect.W, w.TitleH}.contains(x, y)
}

// hitCloseButton reports whether (x, y) is within the small close
// glyph at the right end of the title bar.
func (w *Window) hitCloseButton(x, y int) bool {
	if w.TitleH <= 0 {
		return false
	}
	btn := Rect{w.Rect.X + w.Rect.W - w.TitleH, w.Rect.Y, w.TitleH, w.TitleH}
	return btn.contains(x, y)
}

// WM is the window manager: back-to-front window order, focus, and
// input routing, kept as a single ordered slice (back to front).
type WM struct {
	Windows    []*Window
	Wallpaper  *Window
	ScreenW    int
	ScreenH    int

	captured   *Window
	dragging   *Window
	dragDX     int
	dragDY     int
}

// NewWM creates an empty window manager for a screenW x screenH host
// surface (in internal-framebuffer pixels).
func NewWM(screenW, screenH int) *WM {
	return &WM{ScreenW: screenW, ScreenH: screenH}
}

// AddWindow appends a new regular window at the front (focused).
func (wm *WM) AddWindow(w *Window) {
	if w.Wallpaper {
		wm.Wallpaper = w
		return
	}
	wm.Windows = append(wm.Windows, w)
}

// RemoveWindow drops w from the z-order (called once its session
// fully closes).
func (wm *WM) RemoveWindow(w *Window) {
	for i, x := range wm.Windows {
		if x == w {
			wm.Windows = append(wm.Windows[:i], wm.Windows[i+1:]...)
			return
		}
	}
}

// Focused returns the focused (last) window, or nil if there are none.
func (wm *WM) Focused() *Window {
	if len(wm.Windows) == 0 {
		return nil
	}
	return wm.Windows[len(wm.Windows)-1]
}

// BringToFront moves w to the end of the order, the top of the
// back-to-front z-order.
func (wm *WM) BringToFront(w *Window) {
	wm.RemoveWindow(w)
	wm.Windows = append(wm.Windows, w)
}

// AltTab rotates the z-order last->first, so the previously-focused
// window becomes the new back-most and the next one in line gains
// focus.
func (wm *WM) AltTab() {
	if len(wm.Windows) < 2 {
		return
	}
	last := wm.Windows[len(wm.Windows)-1]
	wm.Windows = append([]*Window{last}, wm.Windows[:len(wm.Windows)-1]...)
}

// HitTest walks the z-order front to back and returns the first
// window containing (x, y), or the wallpaper as a fallback, or nil if
// there are no windows at all.
func (wm *WM) HitTest(x, y int) *Window {
	for i := len(wm.Windows) - 1; i >= 0; i-- {
		if wm.Windows[i].Rect.contains(x, y) {
			return wm.Windows[i]
		}
	}
	return wm.Wallpaper
}

// MouseDown handles a press at (x, y): title-bar drag start, the
// close button, bring-to-front, or mouse capture for an in-client
// press.
func (wm *WM) MouseDown(x, y int) (closed *Window) {
	w := wm.HitTest(x, y)
	if w == nil || w == wm.Wallpaper {
		return nil
	}
	if w.hitCloseButton(x, y) {
		w.Closing = true
		return w
	}
	wm.BringToFront(w)
	if w.hitTitleBar(x, y) {
		wm.dragging = w
		wm.dragDX = x - w.Rect.X
		wm.dragDY = y - w.Rect.Y
		return nil
	}
	wm.captured = w
	return nil
}

// MouseMove updates drag position or forwards a captured-window move,
// translated into that window's client-local, framebuffer-scaled
// coordinates. ok is false when there is nothing to route the move to.
func (wm *WM) MouseMove(x, y int) (target *Window, lx, ly int, ok bool) {
	if wm.dragging != nil {
		w := wm.dragging
		w.Rect.X = clamp(x-wm.dragDX, 0, wm.ScreenW-w.Rect.W)
		w.Rect.Y = clamp(y-wm.dragDY, 0, wm.ScreenH-w.Rect.H)
		return nil, 0, 0, false
	}
	if wm.captured != nil {
		return wm.routeToClient(wm.captured, x, y)
	}
	return nil, 0, 0, false
}

// MouseUp releases any drag or capture in progress.
func (wm *WM) MouseUp(x, y int) (target *Window, lx, ly int, ok bool) {
	if wm.dragging != nil {
		wm.dragging = nil
		return nil, 0, 0, false
	}
	if wm.captured != nil {
		w := wm.captured
		wm.captured = nil
		return wm.routeToClient(w, x, y)
	}
	return nil, 0, 0, false
}

// routeToClient clamps (x, y) into w's client rect and rescales it
// linearly from internal-pixel coordinates to w's own framebuffer
// size.
func (wm *WM) routeToClient(w *Window, x, y int) (*Window, int, int, bool) {
	cx := clamp(x-w.Rect.X, 0, w.Rect.W-1)
	cy := clamp(y-w.Rect.Y, 0, w.Rect.H-1)
	if w.Session == nil || w.Rect.W == 0 || w.Rect.H == 0 {
		return w, cx, cy, true
	}
	fbw, fbh := w.Session.ClientW, w.Session.ClientH
	lx := cx * fbw / w.Rect.W
	ly := cy * fbh / w.Rect.H
	return w, lx, ly, true
}

// HandleKey applies the WM-level keyboard shortcuts:
// Alt+Tab cycles focus, Ctrl+W closes the focused window. consumed is
// true when the WM handled the key itself rather than forwarding it
// to a client.
func (wm *WM) HandleKey(keycode int, down, alt, ctrl bool) (consumed bool, closed *Window) {
	if !down {
		return false, nil
	}
	if alt && keycode == KeyTab {
		wm.AltTab()
		return true, nil
	}
	if ctrl && keycode == KeyW {
		f := wm.Focused()
		if f != nil {
			f.Closing = true
			return true, f
		}
	}
	return false, nil
}

// TempleOS key codes referenced by WM shortcuts.
const (
	KeyEscape = 27
	KeyCtrlC  = 3
	KeyTab    = 9
	KeyW      = 'W'
)
