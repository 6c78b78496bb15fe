package compositor

import (
	"strings"
	"testing"

	"github.com/sergi/go-diff/diffmatchpatch"
)

func renderRowsText(rows [][]Cell) string {
	var sb strings.Builder
	for _, row := range rows {
		for _, c := range row {
			sb.WriteByte(c.Byte)
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func TestLetterboxIntegerScale(t *testing.T) {
	lt := ComputeLetterbox(1280, 960)
	if lt.Scale != 2 {
		t.Fatalf("got scale %v, want 2", lt.Scale)
	}
	if lt.DestW != 1280 || lt.DestH != 960 {
		t.Fatalf("got dest %dx%d", lt.DestW, lt.DestH)
	}
	if lt.DestX != 0 || lt.DestY != 0 {
		t.Fatalf("expected no letterbox margin, got (%d,%d)", lt.DestX, lt.DestY)
	}
}

func TestLetterboxFractionalScale(t *testing.T) {
	lt := ComputeLetterbox(500, 500)
	// 500/640 = 0.78125, 500/480 = 1.0417: no integer scale fits, so the
	// aspect-preserving fit picks the smaller of the two, and width is
	// the binding dimension.
	if lt.DestW > 500 || lt.DestH > 500 {
		t.Fatalf("dest exceeds host: %+v", lt)
	}
	if lt.DestX < 0 || lt.DestY < 0 {
		t.Fatalf("negative letterbox margin: %+v", lt)
	}
}

func TestMapPointToInternalOutsideReturnsNotOK(t *testing.T) {
	lt := ComputeLetterbox(1280, 960)
	if _, _, ok := lt.MapPointToInternal(-1, -1); ok {
		t.Fatal("expected a point left of the dest rect to miss")
	}
	ix, iy, ok := lt.MapPointToInternal(lt.DestX, lt.DestY)
	if !ok || ix != 0 || iy != 0 {
		t.Fatalf("got (%d,%d,%v)", ix, iy, ok)
	}
}

func TestPaletteSetAndToRGBA(t *testing.T) {
	pal := DefaultPalette()
	pal.Set(5, 0xAABBCCDD)
	fb := NewFramebuffer(2, 1)
	fb.Pix[0] = 5
	rgba := fb.ToRGBA(&pal)
	if rgba[0].R != 0xAA || rgba[0].G != 0xBB || rgba[0].B != 0xCC || rgba[0].A != 0xDD {
		t.Fatalf("got %+v", rgba[0])
	}
}

func TestTerminalPutCharWrapAndScroll(t *testing.T) {
	term := NewTerminal(4, 2, 7, 0, 100)
	for _, c := range "abcdefgh" {
		term.PutChar(byte(c))
	}
	// 8 chars into a 4-wide, 2-row grid wraps twice, scrolling the
	// first row ("abcd") into scrollback.
	if len(term.Scrollback) != 1 {
		t.Fatalf("got %d scrollback rows, want 1", len(term.Scrollback))
	}
	if term.Scrollback[0][0].Byte != 'a' {
		t.Fatalf("got scrollback row %+v", term.Scrollback[0])
	}
	if term.Grid[0][0].Byte != 'e' {
		t.Fatalf("got live row %+v", term.Grid[0])
	}
}

func TestTerminalTabStop(t *testing.T) {
	term := NewTerminal(20, 2, 7, 0, 10)
	term.PutChar('a')
	term.PutChar('\t')
	if term.CursorX != 4 {
		t.Fatalf("got cursor x %d, want 4", term.CursorX)
	}
}

func TestTerminalPgUpPgDn(t *testing.T) {
	term := NewTerminal(4, 2, 7, 0, 10)
	for i := 0; i < 20; i++ {
		term.PutChar('x')
	}
	if len(term.Scrollback) == 0 {
		t.Fatal("expected scrollback to accumulate")
	}
	term.PgUp(1)
	if term.ViewOffset != 1 {
		t.Fatalf("got view offset %d", term.ViewOffset)
	}
	term.PgDn(5)
	if term.ViewOffset != 0 {
		t.Fatalf("got view offset %d, want clamped 0", term.ViewOffset)
	}
}

func TestWMBringToFrontAndAltTab(t *testing.T) {
	wm := NewWM(640, 480)
	a := &Window{Rect: Rect{0, 0, 100, 100}, TitleH: 10}
	b := &Window{Rect: Rect{50, 50, 100, 100}, TitleH: 10}
	wm.AddWindow(a)
	wm.AddWindow(b)
	if wm.Focused() != b {
		t.Fatalf("expected b focused")
	}
	wm.BringToFront(a)
	if wm.Focused() != a {
		t.Fatalf("expected a focused after bring-to-front")
	}
	wm.AltTab()
	if wm.Focused() != b {
		t.Fatalf("expected alt-tab to refocus b")
	}
}

func TestWMHitTestFrontToBack(t *testing.T) {
	wm := NewWM(640, 480)
	a := &Window{Rect: Rect{0, 0, 200, 200}}
	b := &Window{Rect: Rect{0, 0, 100, 100}}
	wm.AddWindow(a)
	wm.AddWindow(b)
	if wm.HitTest(50, 50) != b {
		t.Fatal("expected front-most overlapping window b to win")
	}
	if wm.HitTest(150, 150) != a {
		t.Fatal("expected a to catch the point outside b")
	}
}

func TestWMCloseButton(t *testing.T) {
	wm := NewWM(640, 480)
	w := &Window{Rect: Rect{0, 0, 100, 20}, TitleH: 16}
	wm.AddWindow(w)
	closed := wm.MouseDown(100-8, 5)
	if closed != w || !w.Closing {
		t.Fatalf("expected close button press to mark w closing")
	}
}

func TestTerminalScrollbackGoldenRender(t *testing.T) {
	term := NewTerminal(4, 2, 7, 0, 10)
	for _, c := range "ab\ncd\nef" {
		term.PutChar(byte(c))
	}
	got := renderRowsText(term.VisibleRows())
	want := "cd  \nef  \n"
	if got != want {
		dmp := diffmatchpatch.New()
		diffs := dmp.DiffMain(want, got, false)
		t.Fatalf("scrollback render mismatch:\n%s", dmp.DiffPrettyText(diffs))
	}
}

func TestWallpaperNeverFocused(t *testing.T) {
	wm := NewWM(640, 480)
	wp := &Window{Wallpaper: true, Rect: Rect{0, 0, 640, 480}}
	wm.AddWindow(wp)
	if wm.Focused() != nil {
		t.Fatal("wallpaper must never be focused")
	}
	if wm.HitTest(10, 10) != wp {
		t.Fatal("expected wallpaper to catch points with no regular window present")
	}
}
