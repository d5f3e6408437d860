package cil

// FieldAttributes are the flags of a field definition.
type FieldAttributes uint8

const (
	FieldStatic FieldAttributes = 1 << iota
	FieldInitOnly
	// FieldLiteral marks a compile-time constant. Literal fields have no
	// storage and are never converted to accessors.
	FieldLiteral
	FieldSpecialName
)

// Field is a field definition.
type Field struct {
	Name       string
	Visibility Visibility
	Attributes FieldAttributes
	Type       TypeRef

	// Constant holds the value of a literal field.
	Constant    any
	HasConstant bool

	DeclaringType *Type
}

// NewField creates a public field.
func NewField(name string, attrs FieldAttributes, typ TypeRef) *Field {
	return &Field{Name: name, Visibility: Public, Attributes: attrs, Type: typ}
}

// NewConstant creates a public literal field holding value.
func NewConstant(name string, typ TypeRef, value any) *Field {
	return &Field{
		Name:        name,
		Visibility:  Public,
		Attributes:  FieldStatic | FieldLiteral,
		Type:        typ,
		Constant:    value,
		HasConstant: true,
	}
}

func (f *Field) IsStatic() bool { return f.Attributes&FieldStatic != 0 }

// FullName returns Type.Name.
func (f *Field) FullName() string {
	if f.DeclaringType == nil {
		return f.Name
	}
	return f.DeclaringType.FullName() + "." + f.Name
}

func (f *Field) String() string { return f.Type.FullName() + " " + f.FullName() }

func (f *Field) Kind() OperandKind { return OperandField }
func (f *Field) isOperand()        {}

// Property is a get/set accessor pair.
type Property struct {
	Name   string
	Type   TypeRef
	Getter *Method
	Setter *Method

	DeclaringType *Type
}

// FullName returns Type.Name.
func (p *Property) FullName() string {
	if p.DeclaringType == nil {
		return p.Name
	}
	return p.DeclaringType.FullName() + "." + p.Name
}

// IsStatic reports whether the accessors are static.
func (p *Property) IsStatic() bool {
	switch {
	case p.Getter != nil:
		return p.Getter.IsStatic()
	case p.Setter != nil:
		return p.Setter.IsStatic()
	}
	return false
}

// Event is an add/remove accessor pair over a callback type. Events are
// usually backed by a private field of the same name.
type Event struct {
	Name   string
	Type   TypeRef
	Add    *Method
	Remove *Method

	DeclaringType *Type
}

// FullName returns Type.Name.
func (e *Event) FullName() string {
	if e.DeclaringType == nil {
		return e.Name
	}
	return e.DeclaringType.FullName() + "." + e.Name
}

// Member is the closed set of metadata elements a query can select:
// *Module, *Type, *Method, *Field, *Property and *Parameter.
type Member interface {
	FullName() string
	isMember()
}

func (*Module) isMember()    {}
func (*Type) isMember()      {}
func (*Method) isMember()    {}
func (*Field) isMember()     {}
func (*Property) isMember()  {}
func (*Parameter) isMember() {}
