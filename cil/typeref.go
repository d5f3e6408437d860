package cil

// ---------------------------------------------------------------------------
// Type references
// ---------------------------------------------------------------------------

// TypeRef is a reference to a type as it appears in signatures and operands.
// The set of implementations is closed: *Type, *ByRefType and *ArrayType.
type TypeRef interface {
	// FullName returns the fully qualified name of the referenced type.
	FullName() string
	// IsValueType reports whether values of the type are copied on assignment.
	IsValueType() bool

	// Every type reference is usable as an instruction operand.
	Operand

	isTypeRef()
}

// ByRefType is a managed pointer to a value of Elem.
type ByRefType struct {
	Elem TypeRef
}

// ByRef returns a by-reference type wrapping t.
func ByRef(t TypeRef) *ByRefType {
	return &ByRefType{Elem: t}
}

func (t *ByRefType) FullName() string  { return t.Elem.FullName() + "&" }
func (t *ByRefType) IsValueType() bool { return false }
func (t *ByRefType) Kind() OperandKind { return OperandType }
func (t *ByRefType) isTypeRef()        {}
func (t *ByRefType) isOperand()        {}

// ArrayType is a single-dimensional zero-based array of Elem.
type ArrayType struct {
	Elem TypeRef
}

// ArrayOf returns an array type of t.
func ArrayOf(t TypeRef) *ArrayType {
	return &ArrayType{Elem: t}
}

func (t *ArrayType) FullName() string  { return t.Elem.FullName() + "[]" }
func (t *ArrayType) IsValueType() bool { return false }
func (t *ArrayType) Kind() OperandKind { return OperandType }
func (t *ArrayType) isTypeRef()        {}
func (t *ArrayType) isOperand()        {}

// IsByRef reports whether t is a by-reference type.
func IsByRef(t TypeRef) bool {
	_, ok := t.(*ByRefType)
	return ok
}

// IsVoid reports whether t is the void type.
func IsVoid(t TypeRef) bool {
	return t == nil || t.FullName() == Void.FullName()
}

// SameType compares two type references by full name.
func SameType(a, b TypeRef) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.FullName() == b.FullName()
}

// ---------------------------------------------------------------------------
// Predeclared types
// ---------------------------------------------------------------------------

// The predeclared types belong to no module; every loaded module shares them.
var (
	Void              = newPrimitive("Void", true)
	Boolean           = newPrimitive("Boolean", true)
	Int32             = newPrimitive("Int32", true)
	Int64             = newPrimitive("Int64", true)
	Float64           = newPrimitive("Double", true)
	IntPtr            = newPrimitive("IntPtr", true)
	String            = newPrimitive("String", false)
	Object            = newPrimitive("Object", false)
	MulticastDelegate = newPrimitive("MulticastDelegate", false)
)

// predeclared lists the predeclared types by full name.
var predeclared = map[string]*Type{}

func newPrimitive(name string, value bool) *Type {
	attrs := TypePrimitive | TypeSealed
	if value {
		attrs |= TypeValue
	}
	t := &Type{
		Namespace:  "System",
		Name:       name,
		Visibility: Public,
		Attributes: attrs,
	}
	predeclared[t.FullName()] = t
	return t
}

// Predeclared returns the predeclared type with the given full name.
func Predeclared(fullName string) (*Type, bool) {
	t, ok := predeclared[fullName]
	return t, ok
}
