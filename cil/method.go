package cil

import (
	"fmt"
	"strings"
)

// MethodAttributes are the flags of a method definition.
type MethodAttributes uint16

const (
	MethodStatic MethodAttributes = 1 << iota
	MethodVirtual
	MethodNewSlot
	MethodAbstract
	MethodFinal
	MethodHideBySig
	MethodSpecialName
	MethodRTSpecialName
	// MethodRuntime marks a method implemented by the runtime, such as the
	// Invoke method of a callback type. It has no body.
	MethodRuntime
)

// Constructor names.
const (
	CtorName  = ".ctor"
	CctorName = ".cctor"
)

// Method is a method definition.
type Method struct {
	Name       string
	Visibility Visibility
	Attributes MethodAttributes
	ReturnType TypeRef
	Parameters []*Parameter

	// Body is nil for abstract and runtime methods.
	Body *Body

	DeclaringType *Type

	this *Parameter
}

// NewMethod creates a public method with an empty body.
func NewMethod(name string, attrs MethodAttributes, ret TypeRef) *Method {
	if ret == nil {
		ret = Void
	}
	m := &Method{
		Name:       name,
		Visibility: Public,
		Attributes: attrs,
		ReturnType: ret,
	}
	if attrs&(MethodAbstract|MethodRuntime) == 0 {
		m.Body = NewBody()
	}
	return m
}

// AddParameter appends a parameter and returns it.
func (m *Method) AddParameter(name string, typ TypeRef) *Parameter {
	p := &Parameter{
		Name:   name,
		Index:  len(m.Parameters),
		Type:   typ,
		Method: m,
	}
	m.Parameters = append(m.Parameters, p)
	return p
}

// This returns the implicit receiver parameter of an instance method. Static
// methods have none.
func (m *Method) This() *Parameter {
	if m.IsStatic() {
		return nil
	}
	if m.this == nil {
		var typ TypeRef = Object
		if m.DeclaringType != nil {
			typ = m.DeclaringType
			if m.DeclaringType.IsValueType() {
				typ = ByRef(m.DeclaringType)
			}
		}
		m.this = &Parameter{Name: "this", Index: -1, Type: typ, Method: m}
	}
	return m.this
}

func (m *Method) IsStatic() bool   { return m.Attributes&MethodStatic != 0 }
func (m *Method) IsVirtual() bool  { return m.Attributes&MethodVirtual != 0 }
func (m *Method) IsAbstract() bool { return m.Attributes&MethodAbstract != 0 }
func (m *Method) HasBody() bool    { return m.Body != nil }

// IsConstructor reports whether the method is an instance or type initializer.
func (m *Method) IsConstructor() bool {
	return m.Name == CtorName || m.Name == CctorName
}

// IsGetter reports whether the method is the getter of a property.
func (m *Method) IsGetter() bool {
	return m.Attributes&MethodSpecialName != 0 && strings.HasPrefix(m.Name, "get_")
}

// IsSetter reports whether the method is the setter of a property.
func (m *Method) IsSetter() bool {
	return m.Attributes&MethodSpecialName != 0 && strings.HasPrefix(m.Name, "set_")
}

// ReturnsValue reports whether the method has a non-void return type.
func (m *Method) ReturnsValue() bool {
	return !IsVoid(m.ReturnType)
}

// FullName returns Type.Name(param types).
func (m *Method) FullName() string {
	var sb strings.Builder
	if m.DeclaringType != nil {
		sb.WriteString(m.DeclaringType.FullName())
		sb.WriteByte('.')
	}
	sb.WriteString(m.Name)
	sb.WriteByte('(')
	for i, p := range m.Parameters {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(p.Type.FullName())
	}
	sb.WriteByte(')')
	return sb.String()
}

func (m *Method) String() string {
	return fmt.Sprintf("%s %s", m.ReturnType.FullName(), m.FullName())
}

// StackPop returns how many values a call to m consumes.
func (m *Method) StackPop() int {
	n := len(m.Parameters)
	if !m.IsStatic() {
		n++
	}
	return n
}

// StackPush returns how many values a call to m produces.
func (m *Method) StackPush() int {
	if m.ReturnsValue() {
		return 1
	}
	return 0
}

func (m *Method) Kind() OperandKind { return OperandMethod }
func (m *Method) isOperand()        {}

// ParamAttributes are the flags of a parameter.
type ParamAttributes uint8

const (
	ParamIn ParamAttributes = 1 << iota
	ParamOut
	ParamOptional
)

// Parameter is a declared method parameter. Index is the zero-based position
// in the declaring method's parameter list; the receiver has index -1.
type Parameter struct {
	Name       string
	Index      int
	Type       TypeRef
	Attributes ParamAttributes
	Method     *Method
}

// IsByRef reports whether the parameter is passed by reference.
func (p *Parameter) IsByRef() bool { return IsByRef(p.Type) }

func (p *Parameter) Kind() OperandKind { return OperandParam }
func (p *Parameter) isOperand()        {}

// Variable is a local variable of a method body.
type Variable struct {
	Index int
	Name  string
	Type  TypeRef
}

func (v *Variable) String() string {
	if v.Name != "" {
		return v.Name
	}
	return fmt.Sprintf("V_%d", v.Index)
}

func (v *Variable) Kind() OperandKind { return OperandVariable }
func (v *Variable) isOperand()        {}

// NewVariable creates a local that is not yet attached to a body.
func NewVariable(name string, typ TypeRef) *Variable {
	return &Variable{Index: -1, Name: name, Type: typ}
}

// FullName returns the declaring method's full name followed by the
// parameter name.
func (p *Parameter) FullName() string {
	if p.Method == nil {
		return p.Name
	}
	return p.Method.FullName() + ":" + p.Name
}
