package holyc

import (
	"fmt"
	"math"
)

// RuntimeError is the evaluator's error kind: a span, message, and an
// optional call-stack snapshot (populated by the executor when unwinding
// through function calls).
type RuntimeError struct {
	Pos   Span
	Msg   string
	Stack []string
}

func (e *RuntimeError) Error() string {
	if len(e.Stack) == 0 {
		return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
	}
	return fmt.Sprintf("%s: %s\n\t%s", e.Pos, e.Msg, joinStack(e.Stack))
}

func joinStack(s []string) string {
	out := s[0]
	for _, f := range s[1:] {
		out += "\n\t" + f
	}
	return out
}

func rtErr(pos Span, format string, a ...interface{}) error {
	return &RuntimeError{Pos: pos, Msg: fmt.Sprintf(format, a...)}
}

// Eval evaluates an expression against env, dispatching heap/class
// lookups through m.
func (m *Machine) Eval(e Expr, env *Env) (Value, error) {
	switch x := e.(type) {
	case *DefaultArg:
		return IntVal(0), nil
	case *IntLit:
		return IntVal(x.Value), nil
	case *FloatLit:
		return FloatVal(x.Value), nil
	case *CharLit:
		return CharVal(x.Value), nil
	case *StringLit:
		return StrVal(x.Value), nil
	case *DocBinRef:
		return m.evalDocBinRef(x, env)
	case *InitList:
		return m.evalInitList(x, env)
	case *Var:
		return m.evalVar(x, env)
	case *AddrOf:
		return m.evalAddrOf(x, env)
	case *Deref:
		return m.evalDeref(x, env)
	case *Cast:
		return m.evalCast(x, env)
	case *Member:
		return m.evalMember(x, env)
	case *Index:
		return m.evalIndex(x, env)
	case *Assign:
		return m.evalAssign(x, env)
	case *IncDec:
		return m.evalIncDec(x, env)
	case *Call:
		return m.evalCall(x, env)
	case *SizeofType:
		return IntVal(m.sizeofTypeName(x.Type, x.PtrDepth)), nil
	case *SizeofExpr:
		return m.evalSizeofExpr(x, env)
	case *Unary:
		return m.evalUnary(x, env)
	case *Ternary:
		c, err := m.Eval(x.Cond, env)
		if err != nil {
			return Value{}, err
		}
		if c.Truthy() {
			return m.Eval(x.Then, env)
		}
		return m.Eval(x.Else, env)
	case *CompareChain:
		return m.evalCompareChain(x, env)
	case *Binary:
		return m.evalBinary(x, env)
	default:
		return Value{}, rtErr(e.Span(), "unhandled expression node %T", e)
	}
}

func (m *Machine) evalDocBinRef(x *DocBinRef, env *Env) (Value, error) {
	data, ok := m.currentBins()[uint32(x.Num)]
	if !ok {
		return Value{}, rtErr(x.Span(), "no embedded binary #%d", x.Num)
	}
	if x.Size {
		return IntVal(int64(len(data))), nil
	}
	addr := m.Heap.Alloc(int64(len(data)), false)
	m.Heap.WriteBytes(addr, data)
	return PtrVal(addr, 1), nil
}

func (m *Machine) evalInitList(x *InitList, env *Env) (Value, error) {
	arr := &SharedArray{ElemBytes: 8}
	for _, el := range x.Elems {
		v, err := m.Eval(el, env)
		if err != nil {
			return Value{}, err
		}
		arr.Elems = append(arr.Elems, v.AsInt())
	}
	return ArrayVal(arr), nil
}

func (m *Machine) evalVar(x *Var, env *Env) (Value, error) {
	if v, ok := env.Get(x.Name); ok {
		return v, nil
	}
	if _, ok := m.Program.Functions[x.Name]; ok {
		return FuncRefVal(x.Name), nil
	}
	if isBuiltinName(x.Name) {
		return FuncRefVal(x.Name), nil
	}
	return Value{}, rtErr(x.Span(), "undefined identifier %q", x.Name)
}

func (m *Machine) evalAddrOf(x *AddrOf, env *Env) (Value, error) {
	switch t := x.X.(type) {
	case *Var:
		return VarRefVal(t.Name), nil
	case *Member:
		obj, field, err := m.resolveMember(t, env)
		if err != nil {
			return Value{}, err
		}
		return ObjFieldRefVal(obj, field), nil
	case *Index:
		base, idx, err := m.resolveIndexTarget(t, env)
		if err != nil {
			return Value{}, err
		}
		return ArrayPtrVal(base, idx), nil
	case *Deref:
		return m.Eval(t.X, env)
	default:
		return Value{}, rtErr(x.Span(), "cannot take address of this expression")
	}
}

func (m *Machine) evalDeref(x *Deref, env *Env) (Value, error) {
	p, err := m.Eval(x.X, env)
	if err != nil {
		return Value{}, err
	}
	return m.loadThroughPointer(p, x.Span())
}

func (m *Machine) loadThroughPointer(p Value, pos Span) (Value, error) {
	switch p.K {
	case KPtr:
		return IntVal(m.Heap.ReadI64LE(p.Addr, clampWidth(p.ElemBytes))), nil
	case KArrayPtr:
		if p.Idx < 0 || p.Idx >= p.Arr.Len() {
			return Value{}, rtErr(pos, "array index %d out of bounds (len %d)", p.Idx, p.Arr.Len())
		}
		return IntVal(p.Arr.Elems[p.Idx]), nil
	case KVarRef:
		return Value{}, rtErr(pos, "dereferencing a variable reference requires an environment; use Eval context")
	default:
		return Value{}, rtErr(pos, "cannot dereference a non-pointer value")
	}
}

func clampWidth(w int) int {
	if w <= 0 {
		return 8
	}
	return w
}

func (m *Machine) evalCast(x *Cast, env *Env) (Value, error) {
	v, err := m.Eval(x.X, env)
	if err != nil {
		return Value{}, err
	}
	if x.PtrDepth > 0 {
		switch v.K {
		case KPtr:
			return PtrVal(v.Addr, int(SizeofType(x.Type))), nil
		case KArrayPtr:
			return PtrVal(arrayPtrAddr(m.Heap, v), int(SizeofType(x.Type))), nil
		case KInt, KChar:
			return PtrVal(v.I, int(SizeofType(x.Type))), nil
		default:
			return Value{}, rtErr(x.Span(), "cannot cast this value to a pointer type")
		}
	}
	switch x.Type {
	case "F32", "F64":
		return FloatVal(v.AsFloat()), nil
	case "Bool":
		if v.Truthy() {
			return IntVal(1), nil
		}
		return IntVal(0), nil
	default:
		width := SizeofType(x.Type)
		signed := x.Type[0] == 'I'
		raw := v.AsInt()
		return IntVal(truncateSigned(raw, int(width), signed)), nil
	}
}

// arrayPtrAddr synthesizes a pseudo heap address for an array-backed
// pointer. Reusing the array's slice header identity is not possible
// in Go, so array-pointer-to-raw-pointer casts materialize the element
// into a dedicated heap region: arrays are normally shared by handle,
// but a raw-pointer cast intentionally breaks that sharing, matching
// real HolyC's "everything is just an address" model once you leave
// array-pointer land.
func arrayPtrAddr(h *Heap, v Value) int64 {
	w := clampWidth(v.Arr.ElemBytes)
	addr := h.Alloc(int64(w), false)
	if v.Idx >= 0 && v.Idx < v.Arr.Len() {
		h.WriteI64LE(addr, w, v.Arr.Elems[v.Idx])
	}
	return addr
}

func truncateSigned(v int64, width int, signed bool) int64 {
	if width <= 0 || width >= 8 {
		return v
	}
	bits := uint(width * 8)
	mask := uint64(1)<<bits - 1
	u := uint64(v) & mask
	if signed && u&(1<<(bits-1)) != 0 {
		return int64(u | ^mask)
	}
	return int64(u)
}

func (m *Machine) resolveMember(x *Member, env *Env) (*SharedObj, string, error) {
	var base Value
	var err error
	if x.Arrow {
		base, err = m.Eval(x.X, env)
	} else {
		base, err = m.Eval(x.X, env)
	}
	if err != nil {
		return nil, "", err
	}
	if base.K != KObj {
		return nil, "", rtErr(x.Span(), "member access on a non-object value")
	}
	if _, ok := base.Obj.Fields[x.Field]; !ok {
		return nil, "", rtErr(x.Span(), "class %s has no field %q", base.Obj.Class, x.Field)
	}
	return base.Obj, x.Field, nil
}

func (m *Machine) evalMember(x *Member, env *Env) (Value, error) {
	obj, field, err := m.resolveMember(x, env)
	if err != nil {
		return Value{}, err
	}
	return obj.Fields[field], nil
}

func (m *Machine) resolveIndexTarget(x *Index, env *Env) (*SharedArray, int, error) {
	base, err := m.Eval(x.X, env)
	if err != nil {
		return nil, 0, err
	}
	idxVal, err := m.Eval(x.Index, env)
	if err != nil {
		return nil, 0, err
	}
	idx := int(idxVal.AsInt())
	switch base.K {
	case KArray:
		return base.Arr, idx, nil
	case KArrayPtr:
		return base.Arr, base.Idx + idx, nil
	default:
		return nil, 0, rtErr(x.Span(), "indexing a non-array value")
	}
}

func (m *Machine) evalIndex(x *Index, env *Env) (Value, error) {
	arr, idx, err := m.resolveIndexTarget(x, env)
	if err != nil {
		return Value{}, err
	}
	if idx < 0 || idx >= arr.Len() {
		return Value{}, rtErr(x.Span(), "array index %d out of bounds (len %d)", idx, arr.Len())
	}
	return IntVal(arr.Elems[idx]), nil
}

// evalAssign implements lvalue assignment for the four lvalue shapes:
// bare name, member, index, deref.
func (m *Machine) evalAssign(x *Assign, env *Env) (Value, error) {
	rhs, err := m.Eval(x.RHS, env)
	if err != nil {
		return Value{}, err
	}
	if x.Op != "" {
		cur, err := m.Eval(x.LHS, env)
		if err != nil {
			return Value{}, err
		}
		rhs, err = m.applyBinOp(x.Op[:len(x.Op)-1], cur, rhs, x.Span())
		if err != nil {
			return Value{}, err
		}
	}
	if err := m.storeLvalue(x.LHS, rhs, env); err != nil {
		return Value{}, err
	}
	return rhs, nil
}

func (m *Machine) storeLvalue(lhs Expr, v Value, env *Env) error {
	switch t := lhs.(type) {
	case *Var:
		if err := env.Assign(t.Name, v); err != nil {
			env.Define(t.Name, v)
		}
		return nil
	case *Member:
		obj, field, err := m.resolveMember(t, env)
		if err != nil {
			return err
		}
		obj.Fields[field] = v
		return nil
	case *Index:
		arr, idx, err := m.resolveIndexTarget(t, env)
		if err != nil {
			return err
		}
		if idx < 0 || idx >= arr.Len() {
			return rtErr(t.Span(), "array index %d out of bounds (len %d)", idx, arr.Len())
		}
		arr.Elems[idx] = v.AsInt()
		return nil
	case *Deref:
		p, err := m.Eval(t.X, env)
		if err != nil {
			return err
		}
		switch p.K {
		case KPtr:
			m.Heap.WriteI64LE(p.Addr, clampWidth(p.ElemBytes), v.AsInt())
			return nil
		case KArrayPtr:
			if p.Idx < 0 || p.Idx >= p.Arr.Len() {
				return rtErr(t.Span(), "array index %d out of bounds (len %d)", p.Idx, p.Arr.Len())
			}
			p.Arr.Elems[p.Idx] = v.AsInt()
			return nil
		default:
			return rtErr(t.Span(), "cannot assign through a non-pointer value")
		}
	default:
		return rtErr(lhs.Span(), "invalid assignment target")
	}
}

func (m *Machine) evalIncDec(x *IncDec, env *Env) (Value, error) {
	target := x.X
	if target == nil {
		target = &Var{exprBase{x.Span()}, x.Name}
	}
	cur, err := m.Eval(target, env)
	if err != nil {
		return Value{}, err
	}
	delta := int64(1)
	if x.Op == "--" {
		delta = -1
	}
	var next Value
	if cur.K == KFloat {
		next = FloatVal(cur.F + float64(delta))
	} else if cur.K == KPtr {
		next = PtrVal(cur.Addr+delta*int64(clampWidth(cur.ElemBytes)), cur.ElemBytes)
	} else if cur.K == KArrayPtr {
		next = ArrayPtrVal(cur.Arr, cur.Idx+int(delta))
	} else {
		next = IntVal(cur.AsInt() + delta)
	}
	if err := m.storeLvalue(target, next, env); err != nil {
		return Value{}, err
	}
	if x.Pre {
		return next, nil
	}
	return cur, nil
}

func (m *Machine) evalSizeofExpr(x *SizeofExpr, env *Env) (Value, error) {
	v, err := m.Eval(x.X, env)
	if err != nil {
		return Value{}, err
	}
	switch v.K {
	case KArray:
		return IntVal(int64(v.Arr.ByteSize())), nil
	case KObj:
		return IntVal(int64(len(v.Obj.Fields)) * 8), nil
	case KFloat:
		return IntVal(8), nil
	default:
		return IntVal(8), nil
	}
}

func (m *Machine) sizeofTypeName(name string, ptrDepth int) int64 {
	if ptrDepth > 0 {
		return 8
	}
	if cd, ok := m.Program.Classes[name]; ok {
		return classSize(cd, m.Program)
	}
	return SizeofType(name)
}

func classSize(cd *ClassDef, prog *Program) int64 {
	var total int64
	if cd.BaseType != "" {
		if base, ok := prog.Classes[cd.BaseType]; ok {
			total += classSize(base, prog)
		} else {
			total += SizeofType(cd.BaseType)
		}
	}
	for _, f := range cd.Fields {
		if f.Pointer {
			total += 8
			continue
		}
		total += SizeofType(f.Type)
	}
	return total
}

func (m *Machine) evalUnary(x *Unary, env *Env) (Value, error) {
	v, err := m.Eval(x.X, env)
	if err != nil {
		return Value{}, err
	}
	switch x.Op {
	case "-":
		if v.K == KFloat {
			return FloatVal(-v.F), nil
		}
		return IntVal(-v.AsInt()), nil
	case "!":
		if v.Truthy() {
			return IntVal(0), nil
		}
		return IntVal(1), nil
	case "~":
		return IntVal(^v.AsInt()), nil
	default:
		return Value{}, rtErr(x.Span(), "unknown unary operator %q", x.Op)
	}
}

// evalCompareChain implements chained comparison: `a OP1 b OP2 c` is
// true iff every adjacent pair satisfies its operator, short-circuiting
// on the first false pair without evaluating the rest.
func (m *Machine) evalCompareChain(x *CompareChain, env *Env) (Value, error) {
	left, err := m.Eval(x.First, env)
	if err != nil {
		return Value{}, err
	}
	for _, pair := range x.Rest {
		right, err := m.Eval(pair.RHS, env)
		if err != nil {
			return Value{}, err
		}
		ok, err := compareOp(pair.Op, left, right)
		if err != nil {
			return Value{}, err
		}
		if !ok {
			return IntVal(0), nil
		}
		left = right
	}
	return IntVal(1), nil
}

func compareOp(op string, a, b Value) (bool, error) {
	if a.K == KFloat || b.K == KFloat {
		x, y := a.AsFloat(), b.AsFloat()
		switch op {
		case "==":
			return x == y, nil
		case "!=":
			return x != y, nil
		case "<":
			return x < y, nil
		case ">":
			return x > y, nil
		case "<=":
			return x <= y, nil
		case ">=":
			return x >= y, nil
		}
	}
	x, y := a.AsInt(), b.AsInt()
	switch op {
	case "==":
		return x == y, nil
	case "!=":
		return x != y, nil
	case "<":
		return x < y, nil
	case ">":
		return x > y, nil
	case "<=":
		return x <= y, nil
	case ">=":
		return x >= y, nil
	}
	return false, fmt.Errorf("unknown comparison operator %q", op)
}

func (m *Machine) evalBinary(x *Binary, env *Env) (Value, error) {
	if x.Op == "&&" {
		l, err := m.Eval(x.X, env)
		if err != nil {
			return Value{}, err
		}
		if !l.Truthy() {
			return IntVal(0), nil
		}
		r, err := m.Eval(x.Y, env)
		if err != nil {
			return Value{}, err
		}
		if r.Truthy() {
			return IntVal(1), nil
		}
		return IntVal(0), nil
	}
	if x.Op == "||" {
		l, err := m.Eval(x.X, env)
		if err != nil {
			return Value{}, err
		}
		if l.Truthy() {
			return IntVal(1), nil
		}
		r, err := m.Eval(x.Y, env)
		if err != nil {
			return Value{}, err
		}
		if r.Truthy() {
			return IntVal(1), nil
		}
		return IntVal(0), nil
	}
	if x.Op == "," {
		if _, err := m.Eval(x.X, env); err != nil {
			return Value{}, err
		}
		return m.Eval(x.Y, env)
	}
	l, err := m.Eval(x.X, env)
	if err != nil {
		return Value{}, err
	}
	r, err := m.Eval(x.Y, env)
	if err != nil {
		return Value{}, err
	}
	if compareOps[x.Op] {
		ok, err := compareOp(x.Op, l, r)
		if err != nil {
			return Value{}, rtErr(x.Span(), "%v", err)
		}
		if ok {
			return IntVal(1), nil
		}
		return IntVal(0), nil
	}
	return m.applyBinOp(x.Op, l, r, x.Span())
}

// applyBinOp implements numeric promotion: if either operand is Float,
// the whole operation is performed in Float.
func (m *Machine) applyBinOp(op string, l, r Value, pos Span) (Value, error) {
	if l.K == KPtr && (op == "+" || op == "-") {
		w := int64(clampWidth(l.ElemBytes))
		if op == "+" {
			return PtrVal(l.Addr+r.AsInt()*w, l.ElemBytes), nil
		}
		if r.K == KPtr {
			return IntVal((l.Addr - r.Addr) / w), nil
		}
		return PtrVal(l.Addr-r.AsInt()*w, l.ElemBytes), nil
	}
	if l.K == KArrayPtr && (op == "+" || op == "-") {
		if op == "+" {
			return ArrayPtrVal(l.Arr, l.Idx+int(r.AsInt())), nil
		}
		if r.K == KArrayPtr {
			return IntVal(int64(l.Idx - r.Idx)), nil
		}
		return ArrayPtrVal(l.Arr, l.Idx-int(r.AsInt())), nil
	}
	if op == "+" && (l.K == KStr || r.K == KStr) {
		return StrVal(l.String() + r.String()), nil
	}
	if l.K == KFloat || r.K == KFloat {
		x, y := l.AsFloat(), r.AsFloat()
		switch op {
		case "+":
			return FloatVal(x + y), nil
		case "-":
			return FloatVal(x - y), nil
		case "*":
			return FloatVal(x * y), nil
		case "/":
			if y == 0 {
				return FloatVal(math.Inf(sign(x))), nil
			}
			return FloatVal(x / y), nil
		case "%":
			return FloatVal(math.Mod(x, y)), nil
		}
		return Value{}, rtErr(pos, "operator %q not valid on floats", op)
	}
	x, y := l.AsInt(), r.AsInt()
	switch op {
	case "+":
		return IntVal(x + y), nil
	case "-":
		return IntVal(x - y), nil
	case "*":
		return IntVal(x * y), nil
	case "/":
		if y == 0 {
			return Value{}, rtErr(pos, "integer division by zero")
		}
		return IntVal(x / y), nil
	case "%":
		if y == 0 {
			return Value{}, rtErr(pos, "integer division by zero")
		}
		return IntVal(x % y), nil
	case "&":
		return IntVal(x & y), nil
	case "|":
		return IntVal(x | y), nil
	case "^":
		return IntVal(x ^ y), nil
	case "<<":
		return IntVal(x << uint(y)), nil
	case ">>":
		return IntVal(x >> uint(y)), nil
	default:
		return Value{}, rtErr(pos, "unknown binary operator %q", op)
	}
}

func sign(f float64) int {
	if f < 0 {
		return -1
	}
	return 1
}
