package holyc

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// This file registers every Go-native builtin: memory, strings, math,
// random, time, graphics, input, sound, text/document, clipboard,
// filesystem, palette/settings, and process families, via a
// name->function table populated by init-time registrations.

func init() {
	registerMemoryBuiltins()
	registerStringBuiltins()
	registerMathBuiltins()
	registerRandomBuiltins()
	registerTimeBuiltins()
	registerGraphicsBuiltins()
	registerInputBuiltins()
	registerSoundBuiltins()
	registerTextBuiltins()
	registerClipboardBuiltins()
	registerFilesystemBuiltins()
	registerSettingsBuiltins()
	registerProcessBuiltins()
}

func simple(name string, min, max int, fn func(m *Machine, env *Env, args []Value, site Span) (Value, error)) {
	registerBuiltin(&BuiltinFunc{Name: name, MinArgs: min, MaxArgs: max, Fn: fn})
}

// --- Memory ---

func registerMemoryBuiltins() {
	simple("MAlloc", 1, 1, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		addr := m.Heap.Alloc(a[0].AsInt(), false)
		return PtrVal(addr, 1), nil
	})
	simple("CAlloc", 1, 1, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		addr := m.Heap.Alloc(a[0].AsInt(), true)
		return PtrVal(addr, 1), nil
	})
	simple("ACAlloc", 2, 2, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		n := a[0].AsInt()
		elemBytes := a[1].AsInt()
		arr := &SharedArray{Elems: make([]int64, n), ElemBytes: int(elemBytes)}
		return ArrayVal(arr), nil
	})
	simple("Free", 1, 1, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		return VoidVal(), nil // bump allocator, never actually reclaims
	})
	simple("MemSet", 3, 3, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		p, n, v := a[0], a[1].AsInt(), byte(a[2].AsInt())
		switch p.K {
		case KPtr:
			for i := int64(0); i < n; i++ {
				m.Heap.WriteU8(p.Addr+i, v)
			}
		case KArrayPtr:
			for i := 0; i < int(n) && p.Idx+i < p.Arr.Len(); i++ {
				p.Arr.Elems[p.Idx+i] = int64(v)
			}
		}
		return VoidVal(), nil
	})
	simple("MemSetU16", 3, 3, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		p, n, v := a[0], a[1].AsInt(), uint16(a[2].AsInt())
		switch p.K {
		case KPtr:
			for i := int64(0); i < n; i++ {
				m.Heap.WriteI64LE(p.Addr+i*2, 2, int64(v))
			}
		case KArrayPtr:
			for i := 0; i < int(n) && p.Idx+i < p.Arr.Len(); i++ {
				p.Arr.Elems[p.Idx+i] = int64(v)
			}
		}
		return VoidVal(), nil
	})
	simple("MemCpy", 3, 3, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		dst, src, n := a[0], a[1], a[2].AsInt()
		if dst.K == KPtr && src.K == KPtr {
			data := m.Heap.ReadBytes(src.Addr, n)
			m.Heap.WriteBytes(dst.Addr, data)
		}
		return VoidVal(), nil
	})
}

// --- Strings ---

func registerStringBuiltins() {
	simple("StrLen", 1, 1, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		return IntVal(int64(len(a[0].String()))), nil
	})
	simple("StrCpy", 2, 2, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		return StrVal(a[1].String()), nil
	})
	simple("StrCat", 2, 2, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		return StrVal(a[0].String() + a[1].String()), nil
	})
	simple("StrCmp", 2, 2, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		return IntVal(int64(strings.Compare(a[0].String(), a[1].String()))), nil
	})
	simple("StrFind", 2, 2, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		return IntVal(int64(strings.Index(a[1].String(), a[0].String()))), nil
	})
	simple("ToUpper", 1, 1, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		return StrVal(strings.ToUpper(a[0].String())), nil
	})
	simple("ToLower", 1, 1, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		return StrVal(strings.ToLower(a[0].String())), nil
	})
	simple("StrNew", 1, 1, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		addr := m.Heap.Alloc(a[0].AsInt()+1, true)
		return PtrVal(addr, 1), nil
	})
}

// --- Math ---

func registerMathBuiltins() {
	unary := func(name string, f func(float64) float64) {
		simple(name, 1, 1, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
			return FloatVal(f(a[0].AsFloat())), nil
		})
	}
	unary("Sqrt", math.Sqrt)
	unary("Sin", math.Sin)
	unary("Cos", math.Cos)
	unary("Tan", math.Tan)
	unary("Exp", math.Exp)
	unary("Log", math.Log)
	unary("Fabs", math.Abs)
	simple("Abs", 1, 1, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		v := a[0].AsInt()
		if v < 0 {
			v = -v
		}
		return IntVal(v), nil
	})
	simple("Sqr", 1, 1, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		if a[0].K == KFloat {
			f := a[0].AsFloat()
			return FloatVal(f * f), nil
		}
		i := a[0].AsInt()
		return IntVal(i * i), nil
	})
	simple("Min", 2, 2, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		if a[0].AsInt() < a[1].AsInt() {
			return a[0], nil
		}
		return a[1], nil
	})
	simple("Max", 2, 2, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		if a[0].AsInt() > a[1].AsInt() {
			return a[0], nil
		}
		return a[1], nil
	})
	simple("Pow", 2, 2, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		return FloatVal(math.Pow(a[0].AsFloat(), a[1].AsFloat())), nil
	})
	simple("SignI64", 1, 1, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		v := a[0].AsInt()
		switch {
		case v > 0:
			return IntVal(1), nil
		case v < 0:
			return IntVal(-1), nil
		default:
			return IntVal(0), nil
		}
	})
	simple("ClampI64", 3, 3, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		v, lo, hi := a[0].AsInt(), a[1].AsInt(), a[2].AsInt()
		switch {
		case v < lo:
			return IntVal(lo), nil
		case v > hi:
			return IntVal(hi), nil
		default:
			return IntVal(v), nil
		}
	})
	simple("ToI64", 1, 1, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		return IntVal(a[0].AsInt()), nil
	})
	simple("Noise", 1, 1, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		return FloatVal(noise1D(a[0].AsInt())), nil
	})
	simple("Arg", 2, 2, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		return FloatVal(math.Atan2(a[0].AsFloat(), a[1].AsFloat())), nil
	})
}

// noise1D is a deterministic pseudo-random value in [-1,1] for a
// given integer coordinate, built from the 64-bit MurmurHash3
// finalizer so the same seed always yields the same noise sample.
func noise1D(seed int64) float64 {
	h := uint64(seed)
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	h *= 0xc4ceb9fe1a85ec53
	h ^= h >> 33
	return float64(h%2000001)/1000000.0 - 1.0
}

// --- Random ---

func registerRandomBuiltins() {
	simple("Rand", 0, 1, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		if len(a) == 1 && a[0].AsInt() > 0 {
			return IntVal(m.Rand.Int63n(a[0].AsInt())), nil
		}
		return IntVal(m.Rand.Int63()), nil
	})
	simple("RandF64", 0, 0, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		return FloatVal(m.Rand.Float64()), nil
	})
	simple("RandU16", 0, 0, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		return IntVal(int64(uint16(m.Rand.Intn(1 << 16)))), nil
	})
	simple("RandI16", 0, 0, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		return IntVal(int64(int16(m.Rand.Intn(1 << 16)))), nil
	})
	simple("Seed", 0, 1, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		if len(a) == 1 {
			m.Rand.Seed(a[0].AsInt())
		}
		return VoidVal(), nil
	})
}

// --- Time ---

// cdateFreqHz is the tick rate of a CDate's low 32 bits (milliseconds
// within the day).
const cdateFreqHz = 1000

// packCDate packs t into TempleOS's CDate layout: the low 32 bits are
// ticks-at-cdateFreqHz since midnight UTC, the high 32 bits are
// signed days since the Unix epoch.
func packCDate(t time.Time) int64 {
	days := t.Unix() / 86400
	secOfDay := t.Unix() % 86400
	ticks := secOfDay*cdateFreqHz + int64(t.Nanosecond())/1e6
	return (days << 32) | int64(uint32(ticks))
}

// unpackCDate is packCDate's inverse, returning the represented instant
// (sub-tick precision is not preserved beyond cdateFreqHz).
func unpackCDate(v int64) time.Time {
	days := v >> 32
	ticks := int64(uint32(v))
	sec := days*86400 + ticks/cdateFreqHz
	return time.Unix(sec, 0).UTC()
}

func registerTimeBuiltins() {
	simple("Now", 0, 0, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		return IntVal(packCDate(m.Now())), nil
	})
	simple("Sleep", 1, 1, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		if m.Cfg.FixedTS == nil {
			time.Sleep(time.Duration(a[0].AsInt()) * time.Millisecond)
		}
		return VoidVal(), nil
	})
	simple("Date2Str", 1, 1, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		return StrVal(unpackCDate(a[0].AsInt()).Format("2006-01-02 15:04:05")), nil
	})
}

// --- Graphics ---

func registerGraphicsBuiltins() {
	simple("GrPlot", 3, 3, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		if m.Display != nil {
			m.Display.PutChar(int(a[0].AsInt()), int(a[1].AsInt()), ' ', int(a[2].AsInt()), int(a[2].AsInt()))
		}
		return VoidVal(), nil
	})
	simple("GrPrint", 4, 4, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		if m.Display != nil {
			s := a[2].String()
			col, row := int(a[0].AsInt()), int(a[1].AsInt())
			for i := 0; i < len(s); i++ {
				m.Display.PutChar(col+i, row, s[i], int(a[3].AsInt()), 0)
			}
		}
		return VoidVal(), nil
	})
	simple("ClearOutput", 0, 0, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		if m.Display != nil {
			m.Display.ClearOutput()
		}
		return VoidVal(), nil
	})
	simple("Refresh", 0, 0, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		if m.Display != nil {
			return VoidVal(), m.Display.Present()
		}
		return VoidVal(), nil
	})
	simple("Present", 0, 0, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		if m.Display != nil {
			return VoidVal(), m.Display.PresentAsync()
		}
		return VoidVal(), nil
	})
	simple("SetGlyph", 2, 2, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		if m.Display == nil {
			return VoidVal(), nil
		}
		var bits [8]byte
		if a[1].K == KPtr {
			copy(bits[:], m.Heap.ReadBytes(a[1].Addr, 8))
		}
		m.Display.SetGlyph(byte(a[0].AsInt()), bits)
		return VoidVal(), nil
	})
	simple("SetPixel", 3, 3, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		if m.Display != nil {
			m.Display.SetPixel(int(a[0].AsInt()), int(a[1].AsInt()), int(a[2].AsInt()))
		}
		return VoidVal(), nil
	})
	simple("FillRect", 5, 5, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		if m.Display != nil {
			m.Display.DrawRect(int(a[0].AsInt()), int(a[1].AsInt()), int(a[2].AsInt()), int(a[3].AsInt()), int(a[4].AsInt()), true)
		}
		return VoidVal(), nil
	})
	simple("GrLine", 5, 5, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		if m.Display != nil {
			m.Display.DrawLine(int(a[0].AsInt()), int(a[1].AsInt()), int(a[2].AsInt()), int(a[3].AsInt()), int(a[4].AsInt()))
		}
		return VoidVal(), nil
	})
	simple("GrLine3", 7, 7, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		// Orthographic projection: z is dropped, matching the
		// interpreter's lack of a depth-tested rasterizer.
		if m.Display != nil {
			m.Display.DrawLine(int(a[0].AsInt()), int(a[1].AsInt()), int(a[3].AsInt()), int(a[4].AsInt()), int(a[6].AsInt()))
		}
		return VoidVal(), nil
	})
	simple("GrBorder", 5, 5, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		if m.Display != nil {
			m.Display.DrawRect(int(a[0].AsInt()), int(a[1].AsInt()), int(a[2].AsInt()), int(a[3].AsInt()), int(a[4].AsInt()), false)
		}
		return VoidVal(), nil
	})
	simple("GrRect", 5, 5, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		if m.Display != nil {
			m.Display.DrawRect(int(a[0].AsInt()), int(a[1].AsInt()), int(a[2].AsInt()), int(a[3].AsInt()), int(a[4].AsInt()), true)
		}
		return VoidVal(), nil
	})
	simple("GrCircle", 4, 4, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		if m.Display != nil {
			m.Display.DrawCircle(int(a[0].AsInt()), int(a[1].AsInt()), int(a[2].AsInt()), int(a[3].AsInt()), true)
		}
		return VoidVal(), nil
	})
	simple("GrCircle3", 5, 5, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		if m.Display != nil {
			m.Display.DrawCircle(int(a[0].AsInt()), int(a[1].AsInt()), int(a[3].AsInt()), int(a[4].AsInt()), true)
		}
		return VoidVal(), nil
	})
	simple("GrEllipse", 5, 5, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		if m.Display != nil {
			m.Display.DrawEllipse(int(a[0].AsInt()), int(a[1].AsInt()), int(a[2].AsInt()), int(a[3].AsInt()), int(a[4].AsInt()), true)
		}
		return VoidVal(), nil
	})
	simple("GrFloodFill", 3, 3, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		if m.Display != nil {
			m.Display.FloodFill(int(a[0].AsInt()), int(a[1].AsInt()), int(a[2].AsInt()))
		}
		return VoidVal(), nil
	})
	simple("GrPaletteColorSet", 2, 2, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		if m.Display != nil {
			m.Display.SetPaletteColor(int(a[0].AsInt()), uint32(a[1].AsInt()))
		}
		return VoidVal(), nil
	})
	simple("Sprite3", 4, 4, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		elems, ok := m.readSpriteData(a[2])
		if !ok {
			return VoidVal(), nil
		}
		m.renderSpriteElems(int(a[0].AsInt()), int(a[1].AsInt()), elems, int(a[3].AsInt()))
		return VoidVal(), nil
	})
	simple("Sprite3YB", 4, 4, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		elems, ok := m.readSpriteData(a[2])
		if !ok {
			return IntVal(a[1].AsInt()), nil
		}
		m.renderSpriteElems(int(a[0].AsInt()), int(a[1].AsInt()), elems, int(a[3].AsInt()))
		bounds := ComputeSpriteBounds(elems)
		if bounds.Empty() {
			return IntVal(a[1].AsInt()), nil
		}
		return IntVal(a[1].AsInt() + int64(bounds.MaxY)), nil
	})
	simple("SpriteInterpolate", 7, 7, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		elemsA, ok := m.readSpriteData(a[0])
		if !ok {
			return VoidVal(), nil
		}
		elemsB, ok := m.readSpriteData(a[1])
		if !ok {
			return VoidVal(), nil
		}
		interp := interpolateSpriteElems(elemsA, elemsB, a[2].AsInt(), a[3].AsInt())
		m.renderSpriteElems(int(a[4].AsInt()), int(a[5].AsInt()), interp, int(a[6].AsInt()))
		return VoidVal(), nil
	})
	simple("DCDepthBufAlloc", 2, 2, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		w, h := a[0].AsInt(), a[1].AsInt()
		addr := m.Heap.Alloc(w*h*4, true)
		return PtrVal(addr, 4), nil
	})
	simple("D3I32Norm", 3, 3, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		if a[0].K != KPtr || a[1].K != KPtr || a[2].K != KPtr {
			return VoidVal(), nil
		}
		x := float64(int32(m.Heap.ReadI64LE(a[0].Addr, 4)))
		y := float64(int32(m.Heap.ReadI64LE(a[1].Addr, 4)))
		z := float64(int32(m.Heap.ReadI64LE(a[2].Addr, 4)))
		length := math.Sqrt(x*x + y*y + z*z)
		if length == 0 {
			return VoidVal(), nil
		}
		const fixedOne = 65536.0
		scale := fixedOne / length
		m.Heap.WriteI64LE(a[0].Addr, 4, int64(int32(x*scale)))
		m.Heap.WriteI64LE(a[1].Addr, 4, int64(int32(y*scale)))
		m.Heap.WriteI64LE(a[2].Addr, 4, int64(int32(z*scale)))
		return VoidVal(), nil
	})
}

// readSpriteData reads a bounded chunk of heap memory at a pointer
// value and parses it as a sprite element stream; ok is false for a
// non-pointer argument or a stream ParseSprite couldn't walk to
// SPT_END even after its repair pass.
func (m *Machine) readSpriteData(p Value) ([]SpriteElem, bool) {
	if p.K != KPtr {
		return nil, false
	}
	const maxSpriteBytes = 4096
	raw := m.Heap.ReadBytes(p.Addr, maxSpriteBytes)
	elems, err := ParseSprite(raw)
	if err != nil || !SpriteIsValid(elems) {
		return nil, false
	}
	return elems, true
}

// --- Input ---

// gsWithNewLine is GetStr's WITH_NEW_LINE flag bit: Enter inserts an
// embedded newline instead of accepting, Escape accepts, Shift+Escape
// cancels to an empty string.
const gsWithNewLine = 1

func registerInputBuiltins() {
	simple("GetChar", 0, 0, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		return m.pollKey(true)
	})
	simple("GetKey", 0, 0, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		return m.pollKey(false)
	})
	simple("NextKey", 0, 0, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		return m.pollKey(false)
	})
	simple("PressAKey", 0, 0, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		fmt.Fprint(m.Out, "Press a key...")
		return m.pollKey(true)
	})
	simple("GetStr", 0, 1, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		var flags int64
		if len(a) > 0 {
			flags = a[0].AsInt()
		}
		withNewLine := flags&gsWithNewLine != 0
		var sb strings.Builder
		for {
			v, err := m.pollKey(true)
			if err != nil {
				return Value{}, err
			}
			k := v.AsInt()
			switch {
			case k == 13 && withNewLine:
				sb.WriteByte('\n')
				continue
			case k == 13:
				return StrVal(sb.String()), nil
			case k == 27 && withNewLine:
				return StrVal(sb.String()), nil
			case k == 28 && withNewLine:
				return StrVal(""), nil
			}
			if k >= 32 && k < 127 {
				sb.WriteByte(byte(k))
			}
		}
	})
	simple("GetMsg", 0, 0, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		return m.pollMsg(true)
	})
	simple("ScanMsg", 0, 0, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		return m.pollMsg(false)
	})
	simple("MenuPush", 1, 1, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		entries := strings.Split(a[0].String(), "\x00")
		m.menuStack = append(m.menuStack, entries)
		return VoidVal(), nil
	})
	simple("MenuPop", 0, 0, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		if len(m.menuStack) == 0 {
			return VoidVal(), nil
		}
		m.menuStack = m.menuStack[:len(m.menuStack)-1]
		return VoidVal(), nil
	})
	simple("MenuEntryFind", 1, 1, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		if len(m.menuStack) == 0 {
			return IntVal(-1), nil
		}
		top := m.menuStack[len(m.menuStack)-1]
		text := a[0].String()
		for i, entry := range top {
			if entry == text {
				return IntVal(int64(i)), nil
			}
		}
		return IntVal(-1), nil
	})
}

// pollKey blocks (or, with wait=false, polls once) for the next KEY
// event, returning its raw keycode unchanged: any Escape/Shift+Escape
// translation belongs to the builtin that cares (GetStr), not here.
func (m *Machine) pollKey(wait bool) (Value, error) {
	if m.Display == nil {
		return IntVal(0), nil
	}
	for {
		ev, ok := m.Display.PollEvent()
		if !ok {
			if !wait {
				return IntVal(0), nil
			}
			continue
		}
		if ev.Kind != "key" {
			continue
		}
		return IntVal(ev.Key), nil
	}
}

// Message kinds packed into GetMsg/ScanMsg's return value: an 8-bit
// kind tag in the top byte, kind-specific payload in the low 56 bits.
const (
	msgKeyDown     = 1
	msgMouseMove   = 2
	msgMouseButton = 3
)

func packMsg(kind, data int64) int64 {
	return kind<<56 | (data & 0x00ffffffffffffff)
}

// pollMsg blocks (or, with wait=false, polls once) for the next input
// event of any kind, packing it the way GetMsg/ScanMsg report events.
func (m *Machine) pollMsg(wait bool) (Value, error) {
	if m.Display == nil {
		return IntVal(0), nil
	}
	for {
		ev, ok := m.Display.PollEvent()
		if !ok {
			if !wait {
				return IntVal(0), nil
			}
			continue
		}
		switch ev.Kind {
		case "key":
			return IntVal(packMsg(msgKeyDown, ev.Key)), nil
		case "mouse_move":
			return IntVal(packMsg(msgMouseMove, int64(ev.X)<<24|int64(ev.Y&0xffffff))), nil
		case "mouse_button":
			data := int64(ev.Btn)
			if ev.Down {
				data |= 1 << 8
			}
			return IntVal(packMsg(msgMouseButton, data)), nil
		default:
			if !wait {
				return IntVal(0), nil
			}
		}
	}
}

// --- Sound ---

func registerSoundBuiltins() {
	simple("Beep", 0, 2, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		freq, dur := 800, 200
		if len(a) > 0 {
			freq = int(a[0].AsInt())
		}
		if len(a) > 1 {
			dur = int(a[1].AsInt())
		}
		if m.Display != nil {
			m.Display.Beep(freq, dur)
		}
		return VoidVal(), nil
	})
	simple("Snd", 1, 1, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		ona := int(a[0].AsInt())
		m.lastOna = ona
		if m.Display != nil && !m.muted {
			m.Display.PlayTone(ona)
		}
		return VoidVal(), nil
	})
	simple("SndRst", 0, 0, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		if m.Display != nil {
			m.Display.StopTone()
		}
		return VoidVal(), nil
	})
	simple("Mute", 1, 1, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		m.muted = a[0].Truthy()
		if m.Display != nil {
			m.Display.SetMute(m.muted)
		}
		return VoidVal(), nil
	})
	simple("IsMute", 0, 0, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		return IntVal(int64(boolToI32(m.muted))), nil
	})
	simple("Ona2Freq", 1, 1, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		return FloatVal(onaToFreq(a[0].AsInt())), nil
	})
	simple("Freq2Ona", 1, 1, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		return IntVal(freqToOna(a[0].AsFloat())), nil
	})
}

// onaToFreq/freqToOna convert between TempleOS's "ona" tone index and
// Hz using equal temperament, 12 onas to the octave, ona 0 at 110Hz.
func onaToFreq(ona int64) float64 {
	return 110.0 * math.Pow(2, float64(ona)/12.0)
}

func freqToOna(freq float64) int64 {
	if freq <= 0 {
		return 0
	}
	return int64(math.Round(12 * math.Log2(freq/110.0)))
}

// --- Text / document ---

// docCols and docRows size the virtual document cursor's grid the same
// way the 640x480 8x8-cell framebuffer does (80x60 cells).
const (
	docCols = 80
	docRows = 60
)

func registerTextBuiltins() {
	simple("TextChar", 1, 1, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		m.putDocChar(byte(a[0].AsInt()))
		return VoidVal(), nil
	})
	simple("Text", 1, 1, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		s := a[0].String()
		for i := 0; i < len(s); i++ {
			m.putDocChar(s[i])
		}
		return VoidVal(), nil
	})
	simple("DocCursor", 0, 2, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		old := int64(uint32(m.docCol)) | int64(m.docRow)<<32
		if len(a) == 2 {
			m.docCol = int(a[0].AsInt())
			m.docRow = int(a[1].AsInt())
		}
		return IntVal(old), nil
	})
	simple("DocBottom", 0, 0, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		m.docCol, m.docRow = 0, docRows-1
		return VoidVal(), nil
	})
	simple("DocScroll", 1, 1, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		m.docScroll += int(a[0].AsInt())
		if m.docScroll < 0 {
			m.docScroll = 0
		}
		return VoidVal(), nil
	})
	simple("DocClear", 0, 0, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		m.docCol, m.docRow, m.docScroll = 0, 0, 0
		if m.Display != nil {
			m.Display.ClearOutput()
		}
		return VoidVal(), nil
	})
}

// putDocChar writes one character at the document cursor and advances
// it, wrapping at docCols and clamping at the last row rather than
// scrolling the backing display.
func (m *Machine) putDocChar(ch byte) {
	if ch == '\n' {
		m.docCol = 0
		m.docRow++
	} else {
		if m.Display != nil {
			m.Display.PutChar(m.docCol, m.docRow, ch, 15, 0)
		}
		m.docCol++
		if m.docCol >= docCols {
			m.docCol = 0
			m.docRow++
		}
	}
	if m.docRow >= docRows {
		m.docRow = docRows - 1
	}
}

// --- Clipboard ---

func registerClipboardBuiltins() {
	simple("ClipPut", 1, 1, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		if m.Display != nil {
			return VoidVal(), m.Display.SetClipboard(a[0].String())
		}
		return VoidVal(), nil
	})
	simple("ClipGet", 0, 0, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		if m.Display == nil {
			return StrVal(""), nil
		}
		s, err := m.Display.Clipboard()
		if err != nil {
			return Value{}, err
		}
		return StrVal(s), nil
	})
}

// --- Filesystem ---

func registerFilesystemBuiltins() {
	simple("FileRead", 1, 1, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		b, err := m.FS.FileRead(a[0].String())
		if err != nil {
			return Value{}, err
		}
		return StrVal(string(b)), nil
	})
	simple("FileWrite", 2, 2, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		return VoidVal(), m.FS.FileWrite(a[0].String(), []byte(a[1].String()))
	})
	simple("Cd", 1, 1, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		return VoidVal(), m.FS.Cd(a[0].String())
	})
	simple("DirMk", 1, 1, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		return VoidVal(), m.FS.DirMk(a[0].String())
	})
	simple("FileFind", 1, 1, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		_, ok := m.FS.FileFind(a[0].String())
		if ok {
			return IntVal(1), nil
		}
		return IntVal(0), nil
	})
}

// --- Palette / settings ---

func registerSettingsBuiltins() {
	simple("RegDft", 2, 2, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		return VoidVal(), nil
	})
	simple("RegExe", 1, 1, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		return VoidVal(), nil
	})
	simple("RegWrite", 2, 2, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		return VoidVal(), nil
	})
	simple("SettingsPush", 0, 0, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		if m.Display != nil {
			m.Display.PushSettings()
		}
		return VoidVal(), nil
	})
	simple("SettingsPop", 0, 0, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		if m.Display != nil {
			m.Display.PopSettings()
		}
		return VoidVal(), nil
	})
	simple("SetPaletteColor", 2, 2, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		if m.Display != nil {
			m.Display.SetPaletteColor(int(a[0].AsInt()), uint32(a[1].AsInt()))
		}
		return VoidVal(), nil
	})
}

// --- Process ---

func registerProcessBuiltins() {
	simple("Spawn", 1, 64, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		if a[0].K != KFuncRef {
			return Value{}, rtErr(site, "Spawn: first argument must be a function")
		}
		fn, ok := m.Program.Functions[a[0].RefName]
		if !ok {
			return Value{}, rtErr(site, "Spawn: undefined function %q", a[0].RefName)
		}
		id := m.Spawn(fn, a[1:])
		return IntVal(id), nil
	})
	simple("PutExcept", 1, 1, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		fmt.Fprintln(m.Out, a[0].String())
		return VoidVal(), nil
	})
	simple("LinuxLastErr", 0, 0, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		return StrVal(""), nil
	})
	simple("LinuxBrowse", 1, 1, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		return IntVal(0), nil
	})
	simple("LinuxOpen", 1, 1, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		return IntVal(0), nil
	})
	simple("LinuxRun", 1, 1, func(m *Machine, env *Env, a []Value, site Span) (Value, error) {
		return IntVal(0), nil
	})
}
