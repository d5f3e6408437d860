package mutate

import (
	"fmt"

	"github.com/chazu/modder/cil"
)

// ---------------------------------------------------------------------------
// Structural replace
// ---------------------------------------------------------------------------

// substitute returns t with every occurrence of old replaced by repl,
// looking through by-reference and array wrappers. It returns t itself when
// nothing changed.
func substitute(t, old, repl cil.TypeRef) cil.TypeRef {
	switch x := t.(type) {
	case nil:
		return nil
	case *cil.ByRefType:
		if elem := substitute(x.Elem, old, repl); elem != x.Elem {
			return cil.ByRef(elem)
		}
		return t
	case *cil.ArrayType:
		if elem := substitute(x.Elem, old, repl); elem != x.Elem {
			return cil.ArrayOf(elem)
		}
		return t
	}
	if cil.SameType(t, old) {
		return repl
	}
	return t
}

// ReplaceType rewrites every reference to old in mod so it names repl:
// field, property and event types, method return and parameter types,
// locals, and type operands. Calls to instance methods of old are sent
// through the counterpart on repl with virtual dispatch; constructors keep
// naming old. Base types and implemented interfaces are left alone so
// definitions keep their ancestry. It returns the number of references
// rewritten.
func ReplaceType(mod *cil.Module, old *cil.Type, repl *cil.Type) (int, error) {
	if cil.SameType(old, repl) {
		return 0, fmt.Errorf("%w: cannot replace %s with itself", cil.ErrConfiguration, old.FullName())
	}

	counterparts := map[*cil.Method]*cil.Method{}
	for _, m := range old.Methods {
		if m.IsStatic() || m.IsConstructor() {
			continue
		}
		if c := counterpart(m, old, repl); c != nil {
			counterparts[m] = c
		}
	}

	n := 0
	swap := func(t cil.TypeRef) cil.TypeRef {
		s := substitute(t, old, repl)
		if s != t {
			n++
		}
		return s
	}

	mod.ForEachType(func(t *cil.Type) {
		for _, f := range t.Fields {
			f.Type = swap(f.Type)
		}
		for _, p := range t.Properties {
			p.Type = swap(p.Type)
		}
		for _, e := range t.Events {
			e.Type = swap(e.Type)
		}
		for _, m := range t.Methods {
			m.ReturnType = swap(m.ReturnType)
			for _, p := range m.Parameters {
				p.Type = swap(p.Type)
			}
			if m.Body != nil {
				for _, v := range m.Body.Variables {
					v.Type = swap(v.Type)
				}
			}
		}
	})

	mod.ForEachInstruction(func(_ *cil.Method, _ int, ins *cil.Instruction) {
		switch op := ins.Operand.(type) {
		case *cil.Method:
			if c, ok := counterparts[op]; ok && (ins.OpCode == cil.Call || ins.OpCode == cil.CallVirt) {
				ins.OpCode = cil.CallVirt
				ins.Operand = c
				n++
			}
		case cil.TypeRef:
			if s := substitute(op, old, repl); s != op {
				ins.Operand = s
				n++
			}
		}
	})

	log.Infof("Replaced %s with %s in %s: %d reference(s)", old.FullName(), repl.FullName(), mod.Name, n)
	return n, nil
}

// counterpart finds the method of repl matching m by name and parameter
// types once old is read as repl.
func counterpart(m *cil.Method, old, repl *cil.Type) *cil.Method {
	for _, c := range repl.Methods {
		if c.Name != m.Name || c.IsStatic() || len(c.Parameters) != len(m.Parameters) {
			continue
		}
		match := true
		for i, p := range m.Parameters {
			a := substitute(p.Type, old, repl)
			b := substitute(c.Parameters[i].Type, old, repl)
			if !cil.SameType(a, b) {
				match = false
				break
			}
		}
		if match {
			return c
		}
	}
	return nil
}

// ReplaceField rewrites every load and store of f in mod into a call to the
// matching accessor of p. The accessors' own bodies keep their direct access.
// Taking the address of f cannot be expressed through accessors, so any such
// use fails the whole replacement before anything is changed. It returns the
// number of instructions rewritten.
func ReplaceField(mod *cil.Module, f *cil.Field, p *cil.Property) (int, error) {
	accessor := func(m *cil.Method) bool {
		return m != nil && (m == p.Getter || m == p.Setter)
	}

	var loads, stores int
	var err error
	mod.ForEachInstruction(func(mth *cil.Method, i int, ins *cil.Instruction) {
		if err != nil || ins.Operand != cil.Operand(f) || accessor(mth) {
			return
		}
		switch ins.OpCode {
		case cil.LdFld, cil.LdSFld:
			loads++
		case cil.StFld, cil.StSFld:
			stores++
		case cil.LdFldA, cil.LdSFldA:
			err = fmt.Errorf("%w: %s takes the address of %s at IL_%04d", cil.ErrConfiguration, mth.FullName(), f.FullName(), ins.Offset)
		}
	})
	switch {
	case err != nil:
		return 0, err
	case loads > 0 && p.Getter == nil:
		return 0, fmt.Errorf("%w: property %s has no getter", cil.ErrResolution, p.FullName())
	case stores > 0 && p.Setter == nil:
		return 0, fmt.Errorf("%w: property %s has no setter", cil.ErrResolution, p.FullName())
	}

	call := func(m *cil.Method) *cil.Instruction {
		if m.IsVirtual() {
			return cil.NewInstruction(cil.CallVirt, m)
		}
		return cil.NewInstruction(cil.Call, m)
	}
	n := 0
	mod.ForEachInstruction(func(mth *cil.Method, i int, ins *cil.Instruction) {
		if ins.Operand != cil.Operand(f) || accessor(mth) {
			return
		}
		switch ins.OpCode {
		case cil.LdFld, cil.LdSFld:
			mth.Body.Replace(i, call(p.Getter))
		case cil.StFld, cil.StSFld:
			mth.Body.Replace(i, call(p.Setter))
		default:
			return
		}
		n++
	})
	log.Debugf("Replaced %d access(es) of %s with %s", n, f.FullName(), p.FullName())
	return n, nil
}

// ---------------------------------------------------------------------------
// Transfer retargeting
// ---------------------------------------------------------------------------

// ReplaceTransfer moves every branch, switch and exception-region reference
// from one instruction of b to another.
func ReplaceTransfer(b *cil.Body, from, to *cil.Instruction) error {
	i, j := b.IndexOf(from), b.IndexOf(to)
	if i < 0 || j < 0 {
		return fmt.Errorf("%w: transfer endpoints must both belong to the body", cil.ErrResolution)
	}
	b.RetargetTransfers(i, j)
	return nil
}
