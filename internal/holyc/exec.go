package holyc

import "fmt"

// Exec runs a statement against env, returning a *ControlFlow (wrapped
// as an error) for any non-local jump, or a plain error for a runtime
// fault.
func (m *Machine) Exec(s Stmt, env *Env) error {
	if f := s.Span().File; f != "" {
		m.currentLabel = f
	}
	switch t := s.(type) {
	case *EmptyStmt:
		return nil
	case *BlockStmt:
		return m.execBlock(t, env)
	case *VarDeclStmt:
		return m.execVarDecl(t, env)
	case *EnumInlineStmt:
		return m.bindEnum(t.Def, env)
	case *ExprStmt:
		v, err := m.Eval(t.X, env)
		if err != nil {
			return err
		}
		_, err = m.autoInvokeIfFunc(v, t.Span())
		return err
	case *PrintStmt:
		return m.execPrint(t, env)
	case *IfStmt:
		return m.execIf(t, env)
	case *WhileStmt:
		return m.execWhile(t, env)
	case *DoWhileStmt:
		return m.execDoWhile(t, env)
	case *ForStmt:
		return m.execFor(t, env)
	case *SwitchStmt:
		return m.execSwitch(t, env)
	case *BreakStmt:
		return &ControlFlow{Kind: cfBreak}
	case *ContinueStmt:
		return &ControlFlow{Kind: cfContinue}
	case *ReturnStmt:
		if t.X == nil {
			return &ControlFlow{Kind: cfReturn, Value: VoidVal()}
		}
		v, err := m.Eval(t.X, env)
		if err != nil {
			return err
		}
		return &ControlFlow{Kind: cfReturn, Value: v}
	case *GotoStmt:
		return &ControlFlow{Kind: cfGoto, Label: t.Label}
	case *LabelStmt:
		return nil
	case *TryStmt:
		return m.execTry(t, env)
	case *ThrowStmt:
		return &ControlFlow{Kind: cfThrow}
	default:
		return rtErr(s.Span(), "unhandled statement node %T", s)
	}
}

// execBlock runs a statement list with goto-to-label support: a Goto
// control flow whose target label exists in this block's own statement
// list is caught and resumes execution from that label instead of
// propagating further up.
func (m *Machine) execBlock(b *BlockStmt, env *Env) error {
	env.Push()
	defer env.Pop()
	return m.execStmtList(b.Stmts, env)
}

func (m *Machine) execStmtList(stmts []Stmt, env *Env) error {
	i := 0
	for i < len(stmts) {
		err := m.Exec(stmts[i], env)
		if err == nil {
			i++
			continue
		}
		if cf, ok := asControlFlow(err); ok && cf.Kind == cfGoto {
			if idx, ok := findLabel(stmts, cf.Label); ok {
				i = idx
				continue
			}
		}
		return err
	}
	return nil
}

func findLabel(stmts []Stmt, label string) (int, bool) {
	for i, s := range stmts {
		if l, ok := s.(*LabelStmt); ok && l.Name == label {
			return i, true
		}
	}
	return 0, false
}

func (m *Machine) execVarDecl(t *VarDeclStmt, env *Env) error {
	for _, d := range t.Declarators {
		v, err := m.zeroOrInitValue(t.Type, d, env)
		if err != nil {
			return err
		}
		env.Define(d.Name, v)
	}
	return nil
}

func (m *Machine) zeroOrInitValue(typeName string, d Declarator, env *Env) (Value, error) {
	if len(d.Dims) > 0 {
		return m.allocArrayDeclarator(typeName, d, env)
	}
	if d.Init != nil {
		v, err := m.Eval(d.Init, env)
		if err != nil {
			return Value{}, err
		}
		if d.Pointer && v.K == KInt {
			return PtrVal(v.I, int(SizeofType(typeName))), nil
		}
		return v, nil
	}
	if d.Pointer {
		return PtrVal(0, int(SizeofType(typeName))), nil
	}
	return m.zeroValueForType(typeName)
}

func (m *Machine) zeroValueForType(typeName string) (Value, error) {
	switch typeName {
	case "F32", "F64":
		return FloatVal(0), nil
	case "U0":
		return VoidVal(), nil
	default:
		if cd, ok := m.Program.Classes[typeName]; ok {
			return ObjVal(m.zeroObject(cd)), nil
		}
		return IntVal(0), nil
	}
}

func (m *Machine) zeroObject(cd *ClassDef) *SharedObj {
	obj := &SharedObj{Class: cd.Name, Fields: map[string]Value{}}
	if cd.BaseType != "" {
		if base, ok := m.Program.Classes[cd.BaseType]; ok {
			for k, v := range m.zeroObject(base).Fields {
				obj.Fields[k] = v
			}
		}
	}
	for _, f := range cd.Fields {
		if f.Pointer {
			obj.Fields[f.Name] = PtrVal(0, int(SizeofType(f.Type)))
			continue
		}
		zv, _ := m.zeroValueForType(f.Type)
		obj.Fields[f.Name] = zv
	}
	return obj
}

// allocArrayDeclarator evaluates every []-dimension and builds a flat
// SharedArray of their product size (multi-dimensional arrays are
// flattened row-major).
func (m *Machine) allocArrayDeclarator(typeName string, d Declarator, env *Env) (Value, error) {
	n := 1
	for _, dim := range d.Dims {
		if dim == nil {
			continue
		}
		v, err := m.Eval(dim, env)
		if err != nil {
			return Value{}, err
		}
		n *= int(v.AsInt())
	}
	width := int(SizeofType(typeName))
	if d.Pointer {
		width = 8
	}
	arr := &SharedArray{Elems: make([]int64, n), ElemBytes: width}
	if d.Init != nil {
		v, err := m.Eval(d.Init, env)
		if err != nil {
			return Value{}, err
		}
		if v.K == KArray {
			copy(arr.Elems, v.Arr.Elems)
		}
	}
	return ArrayVal(arr), nil
}

func (m *Machine) execPrint(t *PrintStmt, env *Env) error {
	format, err := m.Eval(t.Format, env)
	if err != nil {
		return err
	}
	args := make([]Value, len(t.Args))
	for i, a := range t.Args {
		v, err := m.Eval(a, env)
		if err != nil {
			return err
		}
		args[i] = v
	}
	out, err := m.Sprintf(format.String(), args)
	if err != nil {
		return err
	}
	fmt.Fprint(m.Out, out)
	return nil
}

func (m *Machine) execIf(t *IfStmt, env *Env) error {
	c, err := m.Eval(t.Cond, env)
	if err != nil {
		return err
	}
	if c.Truthy() {
		return m.Exec(t.Then, env)
	}
	if t.Else != nil {
		return m.Exec(t.Else, env)
	}
	return nil
}

func (m *Machine) execWhile(t *WhileStmt, env *Env) error {
	for {
		c, err := m.Eval(t.Cond, env)
		if err != nil {
			return err
		}
		if !c.Truthy() {
			return nil
		}
		if err := m.Exec(t.Body, env); err != nil {
			if cf, ok := asControlFlow(err); ok {
				if cf.Kind == cfBreak {
					return nil
				}
				if cf.Kind == cfContinue {
					continue
				}
			}
			return err
		}
	}
}

func (m *Machine) execDoWhile(t *DoWhileStmt, env *Env) error {
	for {
		if err := m.Exec(t.Body, env); err != nil {
			if cf, ok := asControlFlow(err); ok {
				if cf.Kind == cfBreak {
					return nil
				}
				if cf.Kind != cfContinue {
					return err
				}
			} else {
				return err
			}
		}
		c, err := m.Eval(t.Cond, env)
		if err != nil {
			return err
		}
		if !c.Truthy() {
			return nil
		}
	}
}

func (m *Machine) execFor(t *ForStmt, env *Env) error {
	env.Push()
	defer env.Pop()
	if t.Init != nil {
		if err := m.Exec(t.Init, env); err != nil {
			return err
		}
	}
	for {
		if t.Cond != nil {
			c, err := m.Eval(t.Cond, env)
			if err != nil {
				return err
			}
			if !c.Truthy() {
				return nil
			}
		}
		if err := m.Exec(t.Body, env); err != nil {
			if cf, ok := asControlFlow(err); ok {
				if cf.Kind == cfBreak {
					return nil
				}
				if cf.Kind != cfContinue {
					return err
				}
			} else {
				return err
			}
		}
		if t.Post != nil {
			if _, err := m.Eval(t.Post, env); err != nil {
				return err
			}
		}
	}
}

// execSwitch implements switch semantics: case-value matching with
// fallthrough into subsequent arms, "case:" (no value) auto-
// incrementing from the previous numeric case, and start:/end:
// groups whose prefix always runs and whose nested arms are matched
// only when no outer arm matched yet.
func (m *Machine) execSwitch(t *SwitchStmt, env *Env) error {
	x, err := m.Eval(t.X, env)
	if err != nil {
		return err
	}
	matched := false
	var lastCase int64 = -1
	err = m.runSwitchArms(t.Arms, x, env, &matched, &lastCase)
	if _, ok := err.(*switchDone); ok {
		return nil
	}
	if err != nil {
		return err
	}
	if matched {
		return nil
	}
	return m.runDefaultArm(t.Arms, env)
}

// runDefaultArm runs the default arm (and everything after it) when no
// case matched: a switch with no matching case and a default arm runs
// from default to the end, under the same fallthrough rules.
func (m *Machine) runDefaultArm(arms []SwitchArm, env *Env) error {
	found := false
	return m.runDefaultArmRec(arms, env, &found)
}

func (m *Machine) runDefaultArmRec(arms []SwitchArm, env *Env, found *bool) error {
	for _, arm := range arms {
		if arm.Group {
			if *found {
				if err := m.execStmtListNoPush(arm.Prefix, env); err != nil {
					if _, ok := err.(*switchDone); ok {
						return nil
					}
					return err
				}
			}
			if err := m.runDefaultArmRec(arm.Nested, env, found); err != nil {
				return err
			}
			if *found {
				if err := m.execStmtListNoPush(arm.Suffix, env); err != nil {
					if _, ok := err.(*switchDone); ok {
						return nil
					}
					return err
				}
			}
			continue
		}
		if !*found {
			if !arm.IsDefault {
				continue
			}
			*found = true
		}
		if err := m.execArmBody(arm.Body, env); err != nil {
			if cf, ok := asControlFlow(err); ok && cf.Kind == cfBreak {
				return nil
			}
			if _, ok := err.(*switchDone); ok {
				return nil
			}
			return err
		}
	}
	return nil
}

func (m *Machine) runSwitchArms(arms []SwitchArm, x Value, env *Env, matched *bool, lastCase *int64) error {
	for _, arm := range arms {
		if arm.Group {
			if err := m.execStmtListNoPush(arm.Prefix, env); err != nil {
				return err
			}
			if err := m.runSwitchArms(arm.Nested, x, env, matched, lastCase); err != nil {
				return err
			}
			if err := m.execStmtListNoPush(arm.Suffix, env); err != nil {
				return err
			}
			continue
		}
		if !*matched {
			if arm.IsDefault {
				continue // defer default to a second pass below
			}
			var caseVal int64
			if arm.Value == nil {
				caseVal = *lastCase + 1
			} else {
				v, err := m.Eval(arm.Value, env)
				if err != nil {
					return err
				}
				caseVal = v.AsInt()
			}
			*lastCase = caseVal
			if caseVal != x.AsInt() {
				continue
			}
			*matched = true
		}
		if err := m.execArmBody(arm.Body, env); err != nil {
			if cf, ok := asControlFlow(err); ok && cf.Kind == cfBreak {
				*matched = false
				return &switchDone{}
			}
			return err
		}
	}
	return nil
}

// switchDone unwinds out of the (possibly nested) runSwitchArms
// recursion once a matched arm hits break, without escaping execSwitch
// itself as a real control-flow signal.
type switchDone struct{}

func (*switchDone) Error() string { return "switch done" }

func (m *Machine) execArmBody(stmts []Stmt, env *Env) error {
	return m.execStmtListNoPush(stmts, env)
}

func (m *Machine) execStmtListNoPush(stmts []Stmt, env *Env) error {
	if err := m.execStmtList(stmts, env); err != nil {
		return err
	}
	return nil
}

func (m *Machine) execTry(t *TryStmt, env *Env) error {
	err := m.Exec(t.Try, env)
	if err == nil {
		return nil
	}
	if cf, ok := asControlFlow(err); ok && cf.Kind == cfThrow {
		return m.Exec(t.Catch, env)
	}
	if _, ok := err.(*RuntimeError); ok {
		return m.Exec(t.Catch, env)
	}
	return err
}

func (m *Machine) bindEnumsAndGlobals(env *Env) error {
	for _, ed := range m.Program.Enums {
		if err := m.bindEnum(ed, env); err != nil {
			return err
		}
	}
	return nil
}

// bindEnum assigns each member's value into env in declaration order, so
// auto-increment can reference a just-bound sibling.
func (m *Machine) bindEnum(ed *EnumDef, env *Env) error {
	var last int64 = -1
	for _, mem := range ed.Members {
		var v int64
		if mem.Init != nil {
			val, err := m.Eval(mem.Init, env)
			if err != nil {
				return err
			}
			v = val.AsInt()
		} else {
			v = last + 1
		}
		last = v
		env.Define(mem.Name, IntVal(v))
	}
	return nil
}
