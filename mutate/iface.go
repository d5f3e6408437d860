package mutate

import (
	"fmt"

	"github.com/chazu/modder/cil"
	"github.com/chazu/modder/emit"
)

// ImplementInterface extracts an interface from t and swaps it in for t
// across t's module, so callers can be handed any implementation:
//
//  1. every storable instance field becomes a property, and all accesses go
//     through the accessors;
//  2. an interface "I<Name>" is derived from the public instance members;
//  3. t declares the interface and all its instance methods become virtual;
//  4. every reference to t in the module is rewritten to the interface.
//
// Fields backing events stay fields. The interface is added next to t, as a
// sibling nested type when t is nested.
func ImplementInterface(t *cil.Type) (*cil.Type, error) {
	mod := t.Module
	if mod == nil {
		return nil, fmt.Errorf("%w: type %s belongs to no module", cil.ErrConfiguration, t.FullName())
	}
	if t.IsInterface() {
		return nil, fmt.Errorf("%w: %s is already an interface", cil.ErrConfiguration, t.FullName())
	}
	if t.IsValueType() {
		return nil, fmt.Errorf("%w: value type %s cannot be replaced by an interface", cil.ErrConfiguration, t.FullName())
	}

	fields, err := convertible(mod, t)
	if err != nil {
		return nil, err
	}

	e := &emit.Interface{Type: t}
	probe := "I" + t.Name
	if t.DeclaringType != nil {
		if t.DeclaringType.NestedType(probe) != nil {
			return nil, fmt.Errorf("%w: %s already declares %s", cil.ErrConfiguration, t.DeclaringType.FullName(), probe)
		}
	} else if mod.Type(cil.NewType(t.Namespace, probe, 0).FullName()) != nil {
		return nil, fmt.Errorf("%w: %s already holds a type named %s", cil.ErrConfiguration, mod.Name, probe)
	}

	for _, f := range fields {
		p, err := FieldToProperty(f)
		if err != nil {
			return nil, err
		}
		if _, err := ReplaceField(mod, f, p); err != nil {
			return nil, err
		}
	}

	iface, err := e.Produce()
	if err != nil {
		return nil, err
	}
	if t.DeclaringType != nil {
		t.DeclaringType.AddNestedType(iface)
	} else {
		mod.AddType(iface)
	}
	t.Interfaces = append(t.Interfaces, iface)

	MakeVirtual(t)
	if _, err := ReplaceType(mod, t, iface); err != nil {
		return nil, err
	}
	log.Infof("%s now implements %s", t.FullName(), iface.FullName())
	return iface, nil
}

// convertible lists the instance fields of t that become properties and
// checks they can all be accessed through accessors.
func convertible(mod *cil.Module, t *cil.Type) ([]*cil.Field, error) {
	events := map[string]bool{}
	for _, e := range t.Events {
		events[e.Name] = true
	}
	var fields []*cil.Field
	taken := map[*cil.Field]bool{}
	for _, f := range t.Fields {
		if f.IsStatic() || f.HasConstant || events[f.Name] {
			continue
		}
		if t.Property(f.Name) != nil {
			return nil, fmt.Errorf("%w: field %s clashes with a property of the same name", cil.ErrConfiguration, f.FullName())
		}
		fields = append(fields, f)
		taken[f] = true
	}

	var err error
	mod.ForEachInstruction(func(mth *cil.Method, _ int, ins *cil.Instruction) {
		if err != nil || ins.OpCode != cil.LdFldA {
			return
		}
		if f, ok := ins.Operand.(*cil.Field); ok && taken[f] {
			err = fmt.Errorf("%w: %s takes the address of %s", cil.ErrConfiguration, mth.FullName(), f.FullName())
		}
	})
	return fields, err
}
