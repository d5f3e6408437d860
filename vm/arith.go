package vm

import (
	"github.com/chazu/modder/cil"
)

// ---------------------------------------------------------------------------
// Arithmetic and comparison
// ---------------------------------------------------------------------------

// arith applies a binary operator. Mixed integer and float operands are
// computed in floating point. It reports true when the operation threw.
func (i *Interpreter) arith(f *Frame, index int, op cil.OpCode, a, b Value) (Value, bool) {
	ai, aInt := a.(int64)
	bi, bInt := b.(int64)
	if aInt && bInt {
		switch op {
		case cil.Add:
			return ai + bi, false
		case cil.Sub:
			return ai - bi, false
		case cil.Mul:
			return ai * bi, false
		case cil.Div, cil.Rem:
			if bi == 0 {
				i.throw(f, index, "System.DivideByZeroException")
				return nil, true
			}
			if op == cil.Div {
				return ai / bi, false
			}
			return ai % bi, false
		case cil.And:
			return ai & bi, false
		case cil.Or:
			return ai | bi, false
		case cil.Xor:
			return ai ^ bi, false
		case cil.Shl:
			return ai << uint(bi&63), false
		case cil.Shr:
			return ai >> uint(bi&63), false
		}
	}

	af, aOK := float(a)
	bf, bOK := float(b)
	if !aOK || !bOK {
		i.fail(f, index, "%s of %T and %T", op, a, b)
	}
	switch op {
	case cil.Add:
		return af + bf, false
	case cil.Sub:
		return af - bf, false
	case cil.Mul:
		return af * bf, false
	case cil.Div:
		return af / bf, false
	}
	i.fail(f, index, "%s is not defined on floating point values", op)
	return nil, false
}

func float(v Value) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

// compare orders two numbers: negative when a < b, zero when equal, positive
// when a > b.
func (i *Interpreter) compare(f *Frame, index int, a, b Value) int {
	ai, aInt := a.(int64)
	bi, bInt := b.(int64)
	if aInt && bInt {
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		}
		return 0
	}
	af, aOK := float(a)
	bf, bOK := float(b)
	if !aOK || !bOK {
		i.fail(f, index, "cannot compare %T and %T", a, b)
	}
	switch {
	case af < bf:
		return -1
	case af > bf:
		return 1
	}
	return 0
}

// equal is identity for references and value equality for numbers, strings
// and booleans.
func equal(a, b Value) bool {
	if af, ok := float(a); ok {
		if bf, ok := float(b); ok {
			return af == bf
		}
		return false
	}
	if ab, ok := a.(bool); ok {
		return Truthy(b) == ab
	}
	return a == b
}

func (i *Interpreter) branchTaken(f *Frame, index int, op cil.OpCode, a, b Value) bool {
	switch op {
	case cil.Beq:
		return equal(a, b)
	case cil.BneUn:
		return !equal(a, b)
	}
	c := i.compare(f, index, a, b)
	switch op {
	case cil.Blt:
		return c < 0
	case cil.Bgt:
		return c > 0
	case cil.Ble:
		return c <= 0
	}
	return c >= 0
}
