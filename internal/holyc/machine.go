package holyc

import (
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/templelinux/templelinux/internal/config"
	"github.com/templelinux/templelinux/internal/fsroot"
	"github.com/templelinux/templelinux/internal/logx"
)

// Display is the narrow interface the interpreter needs from whatever is
// presenting its output: a terminal-in-process for headless/test runs,
// or an IPC-backed remote compositor in production. Kept tiny and
// satisfied by a stub in tests.
type Display interface {
	PutChar(col, row int, ch byte, fg, bg int)
	ClearOutput()
	Present() error
	PresentAsync() error
	PollEvent() (Event, bool)
	SetPaletteColor(index int, rgb uint32)
	Clipboard() (string, error)
	SetClipboard(string) error
	Beep(freq, durMs int)

	SetPixel(x, y, color int)
	DrawLine(x0, y0, x1, y1, color int)
	DrawRect(x0, y0, x1, y1, color int, fill bool)
	DrawCircle(cx, cy, r, color int, fill bool)
	DrawEllipse(x0, y0, x1, y1, color int, fill bool)
	FloodFill(x, y, color int)
	SetGlyph(ch byte, bits [8]byte)

	PlayTone(ona int)
	StopTone()
	SetMute(muted bool)

	PushSettings()
	PopSettings()
}

// Event mirrors the input-event shapes delivered over the display
// connection (MOUSE_MOVE, MOUSE_BUTTON, MOUSE_WHEEL, MOUSE_ENTER/LEAVE,
// KEY).
type Event struct {
	Kind string // "key", "mouse_move", "mouse_button", "mouse_wheel", "mouse_enter", "mouse_leave"
	Key  int64
	X, Y int
	Btn  int
	Down bool
	Delta int
}

// Machine is the running HolyC virtual machine: program, heap, the
// active display/IPC session, and the bits of process configuration the
// builtins need — the single struct a whole run hangs off of.
type Machine struct {
	Program *Program
	Heap    *Heap
	FS      *fsroot.Root
	Cfg     config.Config
	Out     io.Writer
	Display Display

	Rand *rand.Rand

	currentLabel string
	callStack    []string

	scheduler *scheduler

	mainCalled bool
	globalEnv  *Env

	muted     bool
	lastOna   int
	menuStack [][]string
	docCol    int
	docRow    int
	docScroll int
}

// NewMachine constructs a Machine ready to run a parsed Program.
func NewMachine(prog *Program, fs *fsroot.Root, cfg config.Config, out io.Writer, disp Display) *Machine {
	var seed int64
	if cfg.Seed != nil {
		seed = *cfg.Seed
	} else {
		seed = time.Now().UnixNano()
	}
	m := &Machine{
		Program: prog,
		Heap:    NewHeap(),
		FS:      fs,
		Cfg:     cfg,
		Out:     out,
		Display: disp,
		Rand:    rand.New(rand.NewSource(seed)),
	}
	m.scheduler = newScheduler(m)
	return m
}

func (m *Machine) currentBins() map[uint32][]byte {
	return m.Program.Bins[m.currentLabel]
}

// Now returns the current time, pinned to Cfg.FixedTS when set via
// TEMPLE_HC_FIXED_TS.
func (m *Machine) Now() time.Time {
	if m.Cfg.FixedTS != nil {
		return time.Unix(*m.Cfg.FixedTS, 0).UTC()
	}
	return time.Now()
}

// RunProgram runs every top-level statement in order, then auto-invokes
// Main (or main) with no arguments if one was declared and not already
// called from top level.
func (m *Machine) RunProgram(env *Env) error {
	for _, s := range m.Program.TopLevel {
		if err := m.Exec(s, env); err != nil {
			if cf, ok := asControlFlow(err); ok {
				if cf.Kind == cfReturn {
					return nil
				}
				return rtErr(Span{}, "unexpected %s at top level", cf.Error())
			}
			return err
		}
	}
	if m.mainCalled {
		return nil
	}
	for _, name := range []string{"Main", "main"} {
		if fn, ok := m.Program.Functions[name]; ok {
			_, err := m.callUserFunc(fn, nil, Span{})
			return err
		}
	}
	return nil
}

// callUserFunc invokes fn with the given positional argument values,
// pushing a fresh call frame containing only parameter bindings.
func (m *Machine) callUserFunc(fn *Function, args []Value, site Span) (Value, error) {
	if fn.Name == "Main" || fn.Name == "main" {
		m.mainCalled = true
	}
	params := map[string]Value{}
	for i, name := range fn.Params {
		if i < len(args) {
			params[name] = args[i]
		} else {
			params[name] = IntVal(0)
		}
	}
	if len(m.callStack) > maxCallDepth {
		return Value{}, rtErr(site, "call stack too deep (>%d): %s", maxCallDepth, fn.Name)
	}
	m.callStack = append(m.callStack, fn.Name)
	defer func() { m.callStack = m.callStack[:len(m.callStack)-1] }()

	callEnv := m.globalEnv.PushCallFrame(params)
	err := m.Exec(fn.Body, callEnv)
	if err == nil {
		return VoidVal(), nil
	}
	if cf, ok := asControlFlow(err); ok {
		switch cf.Kind {
		case cfReturn:
			return cf.Value, nil
		case cfThrow:
			rerr := &RuntimeError{Pos: site, Msg: "uncaught throw", Stack: append([]string(nil), m.callStack...)}
			return Value{}, rerr
		}
	}
	if rerr, ok := err.(*RuntimeError); ok {
		rerr.Stack = append(rerr.Stack, fn.Name)
	}
	return Value{}, err
}

const maxCallDepth = 4096

// globalEnv is the single top-level scope shared by all function calls;
// set by Interpret before RunProgram runs.
var _ = os.Stdout // keep os imported for builtins that will use process streams

func isBuiltinName(name string) bool {
	_, ok := builtinRegistry[name]
	return ok
}

// Interpret is the top-level entry point used by cmd/holyc: preprocess,
// parse, bind enums, then run.
func Interpret(entryPath string, fs *fsroot.Root, cfg config.Config, out io.Writer, disp Display) error {
	pp := NewPreprocessor(cfg.TempleRoot, cfg.TempleOSRoot)
	segs, err := pp.Expand(entryPath)
	if err != nil {
		return err
	}
	parser, err := NewParser(segs, pp.Macros)
	if err != nil {
		return err
	}
	prog, err := parser.ParseProgram()
	if err != nil {
		return err
	}
	prog.Bins = pp.Bins

	m := NewMachine(prog, fs, cfg, out, disp)
	env := NewEnv()
	m.globalEnv = env
	logx.Tracef("holyc: parsed %d functions, %d classes", len(prog.Functions), len(prog.Classes))
	if err := m.bindEnumsAndGlobals(env); err != nil {
		return err
	}
	return m.RunProgram(env)
}
