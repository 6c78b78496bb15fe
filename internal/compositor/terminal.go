package compositor

import (
	"golang.org/x/image/font/basicfont"
)

// Glyphs is a stock bitmap face (basicfont.Face7x13), the closest one
// in the x/image corpus to a fixed 8-pixel-wide cell grid. Terminal
// stores cells only and does not rasterize them, and no code in this
// repository draws with Glyphs; GlyphAdvance below reports the fixed
// 8-pixel cell step (CellW).
var Glyphs = basicfont.Face7x13

// CellW and CellH are the terminal's fixed cell dimensions.
const (
	CellW = 8
	CellH = 8
)

// TabStop is the column width \t advances to the next multiple of.
const TabStop = 4

// Cell is one terminal character cell: a byte (CP437 index), and
// foreground/background palette indices.
type Cell struct {
	Byte byte
	Fg   byte
	Bg   byte
}

// Terminal is the 8x8 cell grid with scrollback. Grid
// holds the live screen (Rows x Cols cells); Scrollback holds rows pushed off the top,
// capped at ScrollbackCap. ViewOffset is how many rows the view is
// scrolled back from the bottom (0 == live bottom).
type Terminal struct {
	Cols, Rows     int
	Grid           [][]Cell
	Scrollback     [][]Cell
	ScrollbackCap  int
	ViewOffset     int
	CursorX        int
	CursorY        int
	DefaultFg      byte
	DefaultBg      byte
}

// NewTerminal allocates a cols x rows grid cleared to defaultFg/Bg.
func NewTerminal(cols, rows int, defaultFg, defaultBg byte, scrollbackCap int) *Terminal {
	t := &Terminal{
		Cols:          cols,
		Rows:          rows,
		ScrollbackCap: scrollbackCap,
		DefaultFg:     defaultFg,
		DefaultBg:     defaultBg,
	}
	t.Grid = make([][]Cell, rows)
	for i := range t.Grid {
		t.Grid[i] = t.blankRow()
	}
	return t
}

func (t *Terminal) blankRow() []Cell {
	row := make([]Cell, t.Cols)
	for i := range row {
		row[i] = Cell{Byte: ' ', Fg: t.DefaultFg, Bg: t.DefaultBg}
	}
	return row
}

// ClearOutput blanks the whole grid and resets the cursor to (0,0),
// leaving scrollback intact.
func (t *Terminal) ClearOutput() {
	for i := range t.Grid {
		t.Grid[i] = t.blankRow()
	}
	t.CursorX, t.CursorY = 0, 0
	t.ViewOffset = 0
}

// FillRow fills row y entirely with ch/fg/bg.
func (t *Terminal) FillRow(y int, ch, fg, bg byte) {
	if y < 0 || y >= t.Rows {
		return
	}
	for x := 0; x < t.Cols; x++ {
		t.Grid[y][x] = Cell{Byte: ch, Fg: fg, Bg: bg}
	}
}

// WriteAt places one cell at (x, y) without moving the cursor.
func (t *Terminal) WriteAt(x, y int, ch, fg, bg byte) {
	if x < 0 || y < 0 || x >= t.Cols || y >= t.Rows {
		return
	}
	t.Grid[y][x] = Cell{Byte: ch, Fg: fg, Bg: bg}
}

// scrollOne pushes the top row into scrollback and shifts the grid up
// by one row, appending a fresh blank row at the bottom.
func (t *Terminal) scrollOne() {
	t.Scrollback = append(t.Scrollback, t.Grid[0])
	if over := len(t.Scrollback) - t.ScrollbackCap; t.ScrollbackCap > 0 && over > 0 {
		t.Scrollback = t.Scrollback[over:]
	}
	copy(t.Grid, t.Grid[1:])
	t.Grid[t.Rows-1] = t.blankRow()
}

// PutChar writes ch at the cursor using the terminal's current
// default colors and advances the cursor: '\n' wraps to the next row
// (scrolling at the bottom), '\t' expands to the next multiple of
// TabStop columns, '\r' returns to the line's left edge. The terminal
// never parses escape sequences; colour only ever comes from explicit
// WriteAt calls.
func (t *Terminal) PutChar(ch byte) {
	switch ch {
	case '\n':
		t.CursorX = 0
		t.advanceRow()
	case '\r':
		t.CursorX = 0
	case '\t':
		t.CursorX = ((t.CursorX / TabStop) + 1) * TabStop
		if t.CursorX >= t.Cols {
			t.CursorX = 0
			t.advanceRow()
		}
	default:
		t.WriteAt(t.CursorX, t.CursorY, ch, t.DefaultFg, t.DefaultBg)
		t.CursorX++
		if t.CursorX >= t.Cols {
			t.CursorX = 0
			t.advanceRow()
		}
	}
}

func (t *Terminal) advanceRow() {
	t.CursorY++
	if t.CursorY >= t.Rows {
		t.CursorY = t.Rows - 1
		t.scrollOne()
	}
}

// PgUp scrolls the view back by n rows into scrollback, clamped.
func (t *Terminal) PgUp(n int) {
	t.ViewOffset += n
	if max := len(t.Scrollback); t.ViewOffset > max {
		t.ViewOffset = max
	}
}

// PgDn scrolls the view forward by n rows, clamped at the live bottom.
func (t *Terminal) PgDn(n int) {
	t.ViewOffset -= n
	if t.ViewOffset < 0 {
		t.ViewOffset = 0
	}
}

// ScrollViewToTop jumps the view to the oldest scrollback row.
func (t *Terminal) ScrollViewToTop() { t.ViewOffset = len(t.Scrollback) }

// ScrollViewToBottom returns the view to the live grid.
func (t *Terminal) ScrollViewToBottom() { t.ViewOffset = 0 }

// VisibleRows returns the Rows rows currently in view, composing
// scrollback and the live grid according to ViewOffset.
func (t *Terminal) VisibleRows() [][]Cell {
	if t.ViewOffset == 0 {
		return t.Grid
	}
	all := append(append([][]Cell{}, t.Scrollback...), t.Grid...)
	end := len(all) - t.ViewOffset
	start := end - t.Rows
	if start < 0 {
		start = 0
	}
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}

// GlyphAdvance is the fixed horizontal step used when rasterizing a
// cell with Glyphs, overriding the face's own (proportional) advance
// so the terminal's monospace cell grid stays intact.
func GlyphAdvance() int { return CellW }
