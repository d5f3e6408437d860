package cil

import "fmt"

// Visibility is the accessibility of a type or member.
type Visibility uint8

const (
	Private Visibility = iota
	FamilyAndAssembly
	Assembly
	Family
	FamilyOrAssembly
	Public
)

var visibilityNames = [...]string{
	Private:           "private",
	FamilyAndAssembly: "famandassem",
	Assembly:          "assembly",
	Family:            "family",
	FamilyOrAssembly:  "famorassem",
	Public:            "public",
}

func (v Visibility) String() string {
	if int(v) < len(visibilityNames) {
		return visibilityNames[v]
	}
	return fmt.Sprintf("visibility(%d)", v)
}

// TypeAttributes are the flags of a type definition.
type TypeAttributes uint16

const (
	TypeAbstract TypeAttributes = 1 << iota
	TypeSealed
	TypeInterface
	TypeValue
	TypePrimitive
	TypeSpecialName
)

// TypeStatic is the attribute combination of a static class.
const TypeStatic = TypeAbstract | TypeSealed

// Type is a type definition.
type Type struct {
	Namespace  string
	Name       string
	Visibility Visibility
	Attributes TypeAttributes

	BaseType   TypeRef
	Interfaces []TypeRef

	Fields      []*Field
	Methods     []*Method
	Properties  []*Property
	Events      []*Event
	NestedTypes []*Type

	DeclaringType *Type
	Module        *Module
}

// NewType creates a public type with no members.
func NewType(namespace, name string, attrs TypeAttributes) *Type {
	return &Type{
		Namespace:  namespace,
		Name:       name,
		Visibility: Public,
		Attributes: attrs,
	}
}

// FullName returns Namespace.Name, with nested types written Outer/Inner.
func (t *Type) FullName() string {
	if t.DeclaringType != nil {
		return t.DeclaringType.FullName() + "/" + t.Name
	}
	if t.Namespace == "" {
		return t.Name
	}
	return t.Namespace + "." + t.Name
}

func (t *Type) String() string { return t.FullName() }

// IsValueType reports whether the type has value semantics.
func (t *Type) IsValueType() bool { return t.Attributes&TypeValue != 0 }

// IsInterface reports whether the type is an interface.
func (t *Type) IsInterface() bool { return t.Attributes&TypeInterface != 0 }

// IsPrimitive reports whether the type is one of the predeclared types.
func (t *Type) IsPrimitive() bool { return t.Attributes&TypePrimitive != 0 }

// IsDelegate reports whether the type derives from MulticastDelegate.
func (t *Type) IsDelegate() bool {
	return t.BaseType != nil && SameType(t.BaseType, MulticastDelegate)
}

func (t *Type) Kind() OperandKind { return OperandType }
func (t *Type) isTypeRef()        {}
func (t *Type) isOperand()        {}

// ---------------------------------------------------------------------------
// Members
// ---------------------------------------------------------------------------

// AddMethod appends a method and sets its declaring type.
func (t *Type) AddMethod(m *Method) *Method {
	m.DeclaringType = t
	t.Methods = append(t.Methods, m)
	return m
}

// AddField appends a field and sets its declaring type.
func (t *Type) AddField(f *Field) *Field {
	f.DeclaringType = t
	t.Fields = append(t.Fields, f)
	return f
}

// AddProperty appends a property and sets its declaring type.
func (t *Type) AddProperty(p *Property) *Property {
	p.DeclaringType = t
	t.Properties = append(t.Properties, p)
	return p
}

// AddEvent appends an event and sets its declaring type.
func (t *Type) AddEvent(e *Event) *Event {
	e.DeclaringType = t
	t.Events = append(t.Events, e)
	return e
}

// AddNestedType appends a nested type.
func (t *Type) AddNestedType(n *Type) *Type {
	n.DeclaringType = t
	n.Namespace = ""
	n.setModule(t.Module)
	t.NestedTypes = append(t.NestedTypes, n)
	return n
}

func (t *Type) setModule(m *Module) {
	t.Module = m
	for _, n := range t.NestedTypes {
		n.setModule(m)
	}
}

// NestedType returns the nested type with the given name, or nil.
func (t *Type) NestedType(name string) *Type {
	for _, n := range t.NestedTypes {
		if n.Name == name {
			return n
		}
	}
	return nil
}

// AddOrGetNestedType returns the nested type named name, creating it with
// attrs when it does not exist yet.
func (t *Type) AddOrGetNestedType(name string, attrs TypeAttributes) *Type {
	if n := t.NestedType(name); n != nil {
		return n
	}
	n := NewType("", name, attrs)
	n.BaseType = Object
	return t.AddNestedType(n)
}

// Method returns the single method called name. Zero or several matches are
// a configuration error.
func (t *Type) Method(name string) (*Method, error) {
	var found *Method
	for _, m := range t.Methods {
		if m.Name != name {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("%w: %s has more than one method named %s", ErrConfiguration, t.FullName(), name)
		}
		found = m
	}
	if found == nil {
		return nil, fmt.Errorf("%w: method %s.%s not found", ErrResolution, t.FullName(), name)
	}
	return found, nil
}

// Field returns the field called name.
func (t *Type) Field(name string) (*Field, error) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: field %s.%s not found", ErrResolution, t.FullName(), name)
}

// Property returns the property called name, or nil.
func (t *Type) Property(name string) *Property {
	for _, p := range t.Properties {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Event returns the event called name, or nil.
func (t *Type) Event(name string) *Event {
	for _, e := range t.Events {
		if e.Name == name {
			return e
		}
	}
	return nil
}

// FindMethod returns the first method with the given name whose parameter
// types match params, or nil.
func (t *Type) FindMethod(name string, params ...TypeRef) *Method {
	for _, m := range t.Methods {
		if m.Name != name || len(m.Parameters) != len(params) {
			continue
		}
		ok := true
		for i, p := range m.Parameters {
			if !SameType(p.Type, params[i]) {
				ok = false
				break
			}
		}
		if ok {
			return m
		}
	}
	return nil
}

// HasInterface reports whether the type lists iface among its interfaces.
func (t *Type) HasInterface(iface TypeRef) bool {
	for _, i := range t.Interfaces {
		if SameType(i, iface) {
			return true
		}
	}
	return false
}
