package vm

import (
	"fmt"

	"github.com/chazu/modder/cil"
)

// ---------------------------------------------------------------------------
// Values
// ---------------------------------------------------------------------------

// Value is a runtime value. Integers of every width are int64, floating
// point numbers float64. Other values are bool, string, nil, *Object, *Ref,
// *Delegate and *Array.
type Value = any

// Object is an instance of a class or value type.
type Object struct {
	Type   *cil.Type
	Fields map[*cil.Field]Value
}

// NewObject allocates an instance of t with zeroed fields, base types
// included.
func NewObject(t *cil.Type) *Object {
	o := &Object{Type: t, Fields: map[*cil.Field]Value{}}
	for cur := t; cur != nil; cur = baseOf(cur) {
		for _, f := range cur.Fields {
			if !f.IsStatic() {
				o.Fields[f] = Zero(f.Type)
			}
		}
	}
	return o
}

func (o *Object) String() string { return "<" + o.Type.FullName() + ">" }

func baseOf(t *cil.Type) *cil.Type {
	base, _ := t.BaseType.(*cil.Type)
	if base == nil || base.IsPrimitive() {
		return nil
	}
	return base
}

// Ref is a managed reference to a storage location: an argument, a local, a
// field or an array element.
type Ref struct {
	load  func() Value
	store func(Value)
}

// NewRef returns a reference to a fresh cell holding v. Hosts use it to pass
// by-reference arguments.
func NewRef(v Value) *Ref {
	cell := v
	return &Ref{
		load:  func() Value { return cell },
		store: func(v Value) { cell = v },
	}
}

func (r *Ref) Load() Value    { return r.load() }
func (r *Ref) Store(v Value)  { r.store(v) }
func (r *Ref) String() string { return fmt.Sprintf("&%v", r.load()) }

func slotRef(slots []Value, i int) *Ref {
	return &Ref{
		load:  func() Value { return slots[i] },
		store: func(v Value) { slots[i] = v },
	}
}

// Delegate is an instance of a callback type bound to a host function. The
// function receives the Invoke arguments in order; by-reference parameters
// arrive as *Ref.
type Delegate struct {
	Type *cil.Type
	Fn   func(args []Value) Value
}

// NewDelegate binds fn to the callback type t.
func NewDelegate(t *cil.Type, fn func(args []Value) Value) *Delegate {
	return &Delegate{Type: t, Fn: fn}
}

// Array is a zero-based vector.
type Array struct {
	Elem  cil.TypeRef
	Elems []Value
}

// Zero returns the default value of t.
func Zero(t cil.TypeRef) Value {
	switch {
	case t == nil:
		return nil
	case cil.SameType(t, cil.Boolean):
		return false
	case cil.SameType(t, cil.Int32), cil.SameType(t, cil.Int64), cil.SameType(t, cil.IntPtr):
		return int64(0)
	case cil.SameType(t, cil.Float64):
		return float64(0)
	}
	if def, ok := t.(*cil.Type); ok && def.IsValueType() && !def.IsPrimitive() {
		return NewObject(def)
	}
	return nil
}

// Truthy reports how a branch on v goes: false, zero and nil are false.
func Truthy(v Value) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case int64:
		return x != 0
	case float64:
		return x != 0
	}
	return true
}

func boolValue(b bool) Value {
	if b {
		return int64(1)
	}
	return int64(0)
}
