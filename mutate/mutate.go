// Package mutate holds the structural rewrites applied to loaded modules
// besides hooking: accessor conversion, visibility widening, virtualization,
// reference replacement and interface extraction.
//
// Every helper mutates in place. Helpers that can fail check everything
// first, so an error leaves the module as it was.
package mutate

import (
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/modder/cil"
)

var log = commonlog.GetLogger("modder.mutate")

// ---------------------------------------------------------------------------
// Accessor conversion
// ---------------------------------------------------------------------------

// FieldToProperty turns f into a property of the same name backed by f. The
// field is renamed to "<Name>k__BackingField" and made private; a public
// getter and setter are added to its type. Constant fields cannot become
// properties: FieldToProperty returns nil for them and leaves them alone.
//
// Existing accesses to f are not rewritten; see ReplaceField.
func FieldToProperty(f *cil.Field) (*cil.Property, error) {
	t := f.DeclaringType
	if t == nil {
		return nil, fmt.Errorf("%w: field %s has no declaring type", cil.ErrConfiguration, f.Name)
	}
	if f.HasConstant || f.Attributes&cil.FieldLiteral != 0 {
		log.Debugf("Skipping constant field %s", f.FullName())
		return nil, nil
	}
	name := f.Name
	if t.Property(name) != nil {
		return nil, fmt.Errorf("%w: %s already has a property named %s", cil.ErrConfiguration, t.FullName(), name)
	}

	var attrs cil.MethodAttributes = cil.MethodSpecialName | cil.MethodHideBySig
	if f.IsStatic() {
		attrs |= cil.MethodStatic
	}

	getter := cil.NewMethod("get_"+name, attrs, f.Type)
	setter := cil.NewMethod("set_"+name, attrs, cil.Void)
	value := setter.AddParameter("value", f.Type)
	t.AddMethod(getter)
	t.AddMethod(setter)

	if f.IsStatic() {
		getter.Body.Append(cil.Op(cil.LdSFld, f), cil.Op(cil.Ret))
		setter.Body.Append(cil.Op(cil.LdArg, value), cil.Op(cil.StSFld, f), cil.Op(cil.Ret))
	} else {
		getter.Body.Append(cil.Op(cil.LdArg, getter.This()), cil.Op(cil.LdFld, f), cil.Op(cil.Ret))
		setter.Body.Append(cil.Op(cil.LdArg, setter.This()), cil.Op(cil.LdArg, value), cil.Op(cil.StFld, f), cil.Op(cil.Ret))
	}

	f.Name = "<" + name + ">k__BackingField"
	f.Visibility = cil.Private
	p := t.AddProperty(&cil.Property{Name: name, Type: f.Type, Getter: getter, Setter: setter})
	log.Debugf("Converted field %s to property", p.FullName())
	return p, nil
}

// ---------------------------------------------------------------------------
// Visibility widening
// ---------------------------------------------------------------------------

// MakePublic makes t, its nested types and all their methods and fields
// public. A field sharing its name with an event of the type backs that event
// and keeps its visibility. Applying MakePublic again changes nothing.
func MakePublic(t *cil.Type) {
	t.Visibility = cil.Public
	events := map[string]bool{}
	for _, e := range t.Events {
		events[e.Name] = true
	}
	for _, m := range t.Methods {
		m.Visibility = cil.Public
	}
	for _, f := range t.Fields {
		if events[f.Name] {
			continue
		}
		f.Visibility = cil.Public
	}
	for _, n := range t.NestedTypes {
		MakePublic(n)
	}
}

// MakeModulePublic applies MakePublic to every type of m.
func MakeModulePublic(m *cil.Module) {
	for _, t := range m.Types {
		MakePublic(t)
	}
	log.Infof("Made module %s public", m.Name)
}

// ---------------------------------------------------------------------------
// Virtualization
// ---------------------------------------------------------------------------

// MakeVirtual gives every instance method of t, constructors excluded, a
// fresh virtual slot, then switches calls to those methods within t's module
// to virtual dispatch. It returns the methods it marked.
func MakeVirtual(t *cil.Type) []*cil.Method {
	changed := map[*cil.Method]bool{}
	var out []*cil.Method
	for _, m := range t.Methods {
		if m.IsStatic() || m.IsConstructor() {
			continue
		}
		m.Attributes |= cil.MethodVirtual | cil.MethodNewSlot
		changed[m] = true
		out = append(out, m)
	}
	if len(out) == 0 {
		return nil
	}

	rewritten := 0
	forEachInstruction(t, func(_ *cil.Method, _ int, ins *cil.Instruction) {
		if ins.OpCode != cil.Call {
			return
		}
		if callee, ok := ins.Operand.(*cil.Method); ok && changed[callee] {
			ins.OpCode = cil.CallVirt
			rewritten++
		}
	})
	log.Debugf("Made %d method(s) of %s virtual, rewrote %d call site(s)", len(out), t.FullName(), rewritten)
	return out
}

// forEachInstruction walks the module owning t, or t alone when it is not
// attached to one.
func forEachInstruction(t *cil.Type, fn func(mth *cil.Method, index int, ins *cil.Instruction)) {
	if t.Module != nil {
		t.Module.ForEachInstruction(fn)
		return
	}
	for _, mth := range t.Methods {
		if !mth.HasBody() {
			continue
		}
		for i, ins := range append([]*cil.Instruction(nil), mth.Body.Instructions...) {
			fn(mth, i, ins)
		}
	}
}
