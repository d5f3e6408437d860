package emit

import (
	"fmt"

	"github.com/chazu/modder/cil"
)

// Interface derives an interface from a concrete type. The interface holds
// abstract virtual copies of the type's public instance methods, constructors
// excluded, and a property for every property whose accessors were copied.
//
// Namespace and Name default to the type's namespace and "I" followed by its
// name. The interface is returned unattached.
type Interface struct {
	Type      *cil.Type
	Namespace string
	Name      string
}

const interfaceMethodAttributes = cil.MethodVirtual | cil.MethodAbstract | cil.MethodNewSlot | cil.MethodHideBySig

func (e *Interface) Produce() (*cil.Type, error) {
	if e.Type == nil {
		return nil, fmt.Errorf("%w: interface without a source type", cil.ErrConfiguration)
	}
	if e.Type.IsInterface() {
		return nil, fmt.Errorf("%w: %s is already an interface", cil.ErrConfiguration, e.Type.FullName())
	}
	ns, name := e.Namespace, e.Name
	if name == "" {
		ns, name = e.Type.Namespace, "I"+e.Type.Name
	}

	iface := cil.NewType(ns, name, cil.TypeInterface|cil.TypeAbstract)
	copied := map[*cil.Method]*cil.Method{}
	for _, m := range e.Type.Methods {
		if m.Visibility != cil.Public || m.IsStatic() || m.IsConstructor() {
			continue
		}
		c := cil.NewMethod(m.Name, interfaceMethodAttributes|(m.Attributes&cil.MethodSpecialName), m.ReturnType)
		for _, p := range m.Parameters {
			cp := c.AddParameter(p.Name, p.Type)
			cp.Attributes = p.Attributes
		}
		iface.AddMethod(c)
		copied[m] = c
	}
	for _, p := range e.Type.Properties {
		getter, setter := copied[p.Getter], copied[p.Setter]
		if getter == nil && setter == nil {
			continue
		}
		iface.AddProperty(&cil.Property{Name: p.Name, Type: p.Type, Getter: getter, Setter: setter})
	}
	log.Debugf("Interface %s: %d method(s) from %s", iface.FullName(), len(iface.Methods), e.Type.FullName())
	return iface, nil
}
