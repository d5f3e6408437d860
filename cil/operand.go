package cil

import (
	"fmt"
	"strconv"
	"strings"
)

// OperandKind is the category of an instruction operand.
type OperandKind uint8

const (
	OperandNone     OperandKind = iota // no operand
	OperandInt                         // integer literal
	OperandFloat                       // floating point literal
	OperandString                      // string literal
	OperandParam                       // parameter reference
	OperandVariable                    // local variable reference
	OperandField                       // field reference
	OperandMethod                      // method reference
	OperandType                        // type reference
	OperandTarget                      // single transfer target
	OperandSwitch                      // jump table
	OperandLabel                       // unresolved forward label (descriptors only)
	OperandLabels                      // unresolved jump table (descriptors only)
)

var operandKindNames = [...]string{
	OperandNone:     "none",
	OperandInt:      "int",
	OperandFloat:    "float",
	OperandString:   "string",
	OperandParam:    "param",
	OperandVariable: "variable",
	OperandField:    "field",
	OperandMethod:   "method",
	OperandType:     "type",
	OperandTarget:   "target",
	OperandSwitch:   "switch",
	OperandLabel:    "label",
	OperandLabels:   "labels",
}

func (k OperandKind) String() string {
	if int(k) < len(operandKindNames) {
		return operandKindNames[k]
	}
	return "operand(" + strconv.Itoa(int(k)) + ")"
}

// Operand is the closed set of values an instruction may carry:
// Int, Float, Str, Target, HostTarget, JumpTable, *Label, Labels,
// *Parameter, *Variable, *Field, *Method and every TypeRef.
type Operand interface {
	Kind() OperandKind
	isOperand()
}

// Int is an integer literal operand.
type Int int64

// Float is a floating point literal operand.
type Float float64

// Str is a string literal operand.
type Str string

// Target is a transfer target addressed by instruction index.
type Target int

// HostTarget is a transfer target inside a fragment that addresses an
// instruction of the body the fragment is merged into, by its index before
// the merge.
type HostTarget int

// JumpTable is a jump table of instruction indexes.
type JumpTable []int

func (Int) Kind() OperandKind        { return OperandInt }
func (Float) Kind() OperandKind      { return OperandFloat }
func (Str) Kind() OperandKind        { return OperandString }
func (Target) Kind() OperandKind     { return OperandTarget }
func (HostTarget) Kind() OperandKind { return OperandTarget }
func (JumpTable) Kind() OperandKind  { return OperandSwitch }

func (Int) isOperand()        {}
func (Float) isOperand()      {}
func (Str) isOperand()        {}
func (Target) isOperand()     {}
func (HostTarget) isOperand() {}
func (JumpTable) isOperand()  {}

// accepts reports whether an opcode whose operand category is want can carry
// an operand of category got. Labels stand in for targets until resolution.
func accepts(want, got OperandKind) bool {
	switch {
	case want == got:
		return true
	case want == OperandTarget && got == OperandLabel:
		return true
	case want == OperandSwitch && got == OperandLabels:
		return true
	}
	return false
}

// FormatOperand renders an operand the way listings and error messages show
// it. Targets are rendered as instruction labels.
func FormatOperand(op Operand) string {
	switch v := op.(type) {
	case nil:
		return ""
	case Int:
		return strconv.FormatInt(int64(v), 10)
	case Float:
		return strconv.FormatFloat(float64(v), 'g', -1, 64)
	case Str:
		return strconv.Quote(string(v))
	case Target:
		return instrLabel(int(v))
	case HostTarget:
		return "host:" + instrLabel(int(v))
	case JumpTable:
		parts := make([]string, len(v))
		for i, t := range v {
			parts[i] = instrLabel(t)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case *Label:
		return v.String()
	case Labels:
		parts := make([]string, len(v))
		for i, l := range v {
			parts[i] = l.String()
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case *Parameter:
		return v.Name
	case *Variable:
		return v.String()
	case *Field:
		return v.FullName()
	case *Method:
		return v.FullName()
	case TypeRef:
		return v.FullName()
	}
	return fmt.Sprintf("%v", op)
}

func instrLabel(i int) string {
	return fmt.Sprintf("#%d", i)
}
