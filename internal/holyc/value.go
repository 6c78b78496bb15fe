package holyc

import "fmt"

// Kind tags a Value's active variant.
type Kind int

const (
	KVoid Kind = iota
	KInt
	KFloat
	KChar
	KStr
	KArray
	KArrayPtr
	KPtr
	KObj
	KVarRef
	KFuncRef
	KObjFieldRef
	KIntView
)

// SharedArray is the mutable ordered sequence backing Array and
// ArrayPtr values; arrays are shared by handle, not copied, per the
// "Cyclic references" design note.
type SharedArray struct {
	Elems     []int64 // elements stored as raw 64-bit slots regardless of ElemBytes
	ElemBytes int
}

// Len returns the element count.
func (a *SharedArray) Len() int { return len(a.Elems) }

// ByteSize is n * elem_bytes.
func (a *SharedArray) ByteSize() int { return a.Len() * a.ElemBytes }

// SharedObj is the mutable name->Value map backing Obj values; object
// field assignments share state with all references to the same object.
type SharedObj struct {
	Class  string
	Fields map[string]Value
}

// Value is a tagged union. Exactly one field is meaningful per K; a
// Value is passed by value (Go struct copy), but Array/Obj share their
// underlying storage through a pointer, so copying a value copies the
// handle, not the contents.
type Value struct {
	K Kind

	I int64   // KInt, KChar (packed), KPtr offset component folded into Addr
	F float64 // KFloat

	Str string // KStr

	Arr *SharedArray // KArray, KArrayPtr
	Idx int          // KArrayPtr: signed element index

	Addr      int64 // KPtr: absolute heap address
	ElemBytes int    // KPtr, KArrayPtr width

	Obj *SharedObj // KObj, KObjFieldRef container

	RefName string // KVarRef, KFuncRef name
	Field   string // KObjFieldRef field name (RefName unused there)

	ViewWidth  int  // KIntView: 1,2,4,8
	ViewSigned bool // KIntView
}

func VoidVal() Value                 { return Value{K: KVoid} }
func IntVal(i int64) Value           { return Value{K: KInt, I: i} }
func FloatVal(f float64) Value       { return Value{K: KFloat, F: f} }
func CharVal(i int64) Value          { return Value{K: KChar, I: i} }
func StrVal(s string) Value          { return Value{K: KStr, Str: s} }
func PtrVal(addr int64, w int) Value { return Value{K: KPtr, Addr: addr, ElemBytes: w} }
func FuncRefVal(name string) Value   { return Value{K: KFuncRef, RefName: name} }
func VarRefVal(name string) Value    { return Value{K: KVarRef, RefName: name} }

func ArrayVal(arr *SharedArray) Value { return Value{K: KArray, Arr: arr} }
func ArrayPtrVal(arr *SharedArray, idx int) Value {
	return Value{K: KArrayPtr, Arr: arr, Idx: idx, ElemBytes: arr.ElemBytes}
}
func ObjVal(o *SharedObj) Value { return Value{K: KObj, Obj: o} }
func ObjFieldRefVal(o *SharedObj, field string) Value {
	return Value{K: KObjFieldRef, Obj: o, Field: field}
}
func IntViewVal(v int64, width int, signed bool) Value {
	return Value{K: KIntView, I: v, ViewWidth: width, ViewSigned: signed}
}

// Truthy implements HolyC's "any nonzero numeric is true" rule used by
// if/while/&&/||.
func (v Value) Truthy() bool {
	switch v.K {
	case KInt, KChar:
		return v.I != 0
	case KFloat:
		return v.F != 0
	case KPtr:
		return v.Addr != 0
	case KArrayPtr:
		return true
	case KStr:
		return v.Str != ""
	case KIntView:
		return v.I != 0
	default:
		return false
	}
}

func (v Value) String() string {
	switch v.K {
	case KVoid:
		return "<void>"
	case KInt, KChar:
		return fmt.Sprintf("%d", v.I)
	case KFloat:
		return fmt.Sprintf("%g", v.F)
	case KStr:
		return v.Str
	case KPtr:
		return fmt.Sprintf("0x%x", v.Addr)
	case KArray:
		return fmt.Sprintf("<array len=%d>", v.Arr.Len())
	case KArrayPtr:
		return fmt.Sprintf("<arrayptr idx=%d>", v.Idx)
	case KObj:
		return fmt.Sprintf("<obj %s>", v.Obj.Class)
	default:
		return "<ref>"
	}
}

// AsInt converts a numeric-ish Value to int64 (used pervasively by
// evaluator arithmetic and builtins).
func (v Value) AsInt() int64 {
	switch v.K {
	case KInt, KChar, KIntView:
		return v.I
	case KFloat:
		return int64(v.F)
	case KPtr:
		return v.Addr
	case KArrayPtr:
		return int64(v.Idx)
	default:
		return 0
	}
}

// AsFloat converts a numeric-ish Value to float64.
func (v Value) AsFloat() float64 {
	switch v.K {
	case KFloat:
		return v.F
	case KInt, KChar, KIntView:
		return float64(v.I)
	default:
		return 0
	}
}

// IsNumeric reports whether v participates in numeric promotion (used to
// decide Int vs Float arithmetic semantics).
func (v Value) IsNumeric() bool {
	switch v.K {
	case KInt, KFloat, KChar, KIntView:
		return true
	default:
		return false
	}
}

// --- Heap ---

// Heap is a single process-wide byte buffer that grows on demand, with a
// contiguous bump allocator. Addresses are 64-bit integers handed out by
// MAlloc/CAlloc/ACAlloc; Free is a no-op.
type Heap struct {
	bytes []byte
	next  int64
}

// NewHeap returns an empty heap; address 0 is reserved so it can serve
// as HolyC's NULL.
func NewHeap() *Heap {
	return &Heap{bytes: make([]byte, 8), next: 8}
}

func (h *Heap) grow(to int64) {
	if int64(len(h.bytes)) >= to {
		return
	}
	nb := make([]byte, to)
	copy(nb, h.bytes)
	h.bytes = nb
}

// Alloc reserves n bytes and returns the address of the first byte.
// zeroed controls whether the returned region is guaranteed zero (it
// always is, since grow() zero-extends, but the name documents CAlloc's
// contract explicitly at call sites).
func (h *Heap) Alloc(n int64, zeroed bool) int64 {
	if n < 0 {
		n = 0
	}
	addr := h.next
	h.grow(addr + n)
	h.next += n
	return addr
}

func (h *Heap) ReadU8(a int64) byte {
	h.grow(a + 1)
	return h.bytes[a]
}

func (h *Heap) WriteU8(a int64, v byte) {
	h.grow(a + 1)
	h.bytes[a] = v
}

// ReadI64LE reads n in {1,2,4,8} bytes little-endian at a, sign-extended.
func (h *Heap) ReadI64LE(a int64, n int) int64 {
	h.grow(a + int64(n))
	var v uint64
	for i := 0; i < n; i++ {
		v |= uint64(h.bytes[a+int64(i)]) << (8 * uint(i))
	}
	shift := uint(64 - n*8)
	return int64(v<<shift) >> shift
}

// WriteI64LE writes the low n bytes of v little-endian at a.
func (h *Heap) WriteI64LE(a int64, n int, v int64) {
	h.grow(a + int64(n))
	for i := 0; i < n; i++ {
		h.bytes[a+int64(i)] = byte(v >> (8 * uint(i)))
	}
}

// ReadBytes returns a copy of n raw bytes at a (used by MemCpy-style
// builtins and pointer-cast bit reinterpretation).
func (h *Heap) ReadBytes(a int64, n int64) []byte {
	h.grow(a + n)
	out := make([]byte, n)
	copy(out, h.bytes[a:a+n])
	return out
}

// WriteBytes writes data at a.
func (h *Heap) WriteBytes(a int64, data []byte) {
	h.grow(a + int64(len(data)))
	copy(h.bytes[a:], data)
}

// SizeofType returns the byte size of a builtin type name: U0=0,
// U8/I8=1, U16/I16=2, U32/I32/F32=4, U64/I64/F64/Bool=8, class/pointer=8.
func SizeofType(name string) int64 {
	switch name {
	case "U0":
		return 0
	case "U8", "I8":
		return 1
	case "U16", "I16":
		return 2
	case "U32", "I32", "F32":
		return 4
	case "U64", "I64", "F64", "Bool":
		return 8
	default:
		return 8 // class instance or unknown: treated as pointer-width
	}
}
