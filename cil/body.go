package cil

import "fmt"

// Body is the instruction sequence of a method plus its locals and exception
// handlers. Instructions are addressed by index; every edit keeps branch,
// switch and handler references attached to the instruction they named.
type Body struct {
	Instructions []*Instruction
	Variables    []*Variable
	Handlers     []*ExceptionHandler
	InitLocals   bool
}

// NewBody creates an empty body.
func NewBody() *Body {
	return &Body{InitLocals: true}
}

// Len returns the number of instructions.
func (b *Body) Len() int { return len(b.Instructions) }

// At returns the instruction at index i.
func (b *Body) At(i int) *Instruction { return b.Instructions[i] }

// Last returns the final instruction, or nil for an empty body.
func (b *Body) Last() *Instruction {
	if len(b.Instructions) == 0 {
		return nil
	}
	return b.Instructions[len(b.Instructions)-1]
}

// IndexOf returns the index of ins, or -1.
func (b *Body) IndexOf(ins *Instruction) int {
	for i, x := range b.Instructions {
		if x == ins {
			return i
		}
	}
	return -1
}

// Emit appends a single instruction and returns it.
func (b *Body) Emit(op OpCode, operand Operand) *Instruction {
	ins := NewInstruction(op, operand)
	b.Instructions = append(b.Instructions, ins)
	return ins
}

// AddVariable declares a new local.
func (b *Body) AddVariable(name string, typ TypeRef) *Variable {
	v := &Variable{Index: len(b.Variables), Name: name, Type: typ}
	b.Variables = append(b.Variables, v)
	return v
}

// attach declares v in the body unless it is already declared.
func (b *Body) attach(v *Variable) {
	for _, x := range b.Variables {
		if x == v {
			return
		}
	}
	v.Index = len(b.Variables)
	b.Variables = append(b.Variables, v)
}

// ---------------------------------------------------------------------------
// Reference maintenance
// ---------------------------------------------------------------------------

// remap rewrites every instruction reference held by the body: branch
// targets, switch tables and handler boundaries.
func (b *Body) remap(fn func(int) int) {
	for _, ins := range b.Instructions {
		switch v := ins.Operand.(type) {
		case Target:
			ins.Operand = Target(fn(int(v)))
		case JumpTable:
			next := make(JumpTable, len(v))
			for i, t := range v {
				next[i] = fn(t)
			}
			ins.Operand = next
		}
	}
	for _, h := range b.Handlers {
		for _, p := range h.boundaries() {
			if *p >= 0 {
				*p = fn(*p)
			}
		}
	}
}

// ReferencesTo counts the branch, switch and handler references to index i.
func (b *Body) ReferencesTo(i int) int {
	n := 0
	b.remap(func(t int) int {
		if t == i {
			n++
		}
		return t
	})
	return n
}

func (b *Body) checkIndex(i int, allowEnd bool) {
	limit := len(b.Instructions)
	if !allowEnd {
		limit--
	}
	if i < 0 || i > limit {
		panic(fmt.Sprintf("cil: instruction index %d out of range [0:%d]", i, len(b.Instructions)))
	}
}

// Insert places ins at index at. References to the instruction previously at
// at, and to everything after it, follow those instructions to their new
// positions. It panics if at is out of range.
func (b *Body) Insert(at int, ins ...*Instruction) {
	b.checkIndex(at, true)
	n := len(ins)
	if n == 0 {
		return
	}
	b.remap(func(t int) int {
		if t >= at {
			return t + n
		}
		return t
	})
	b.splice(at, ins)
}

// InsertBefore places ins at index at and moves every reference to the
// instruction previously at at onto the first inserted instruction, so code
// that jumped to it now runs the inserted instructions first.
func (b *Body) InsertBefore(at int, ins ...*Instruction) {
	b.checkIndex(at, true)
	n := len(ins)
	if n == 0 {
		return
	}
	b.remap(func(t int) int {
		if t > at {
			return t + n
		}
		return t
	})
	if at < len(b.Instructions) {
		old := b.Instructions[at]
		ins[0].Offset = old.Offset
		ins[0].Seq = old.Seq
	}
	b.splice(at, ins)
}

func (b *Body) splice(at int, ins []*Instruction) {
	next := make([]*Instruction, 0, len(b.Instructions)+len(ins))
	next = append(next, b.Instructions[:at]...)
	next = append(next, ins...)
	next = append(next, b.Instructions[at:]...)
	b.Instructions = next
}

// Remove deletes the instruction at index i and returns it. References to it
// move to its successor, which also inherits its sequence point when it has
// none of its own.
func (b *Body) Remove(i int) *Instruction {
	b.checkIndex(i, false)
	old := b.Instructions[i]
	b.remap(func(t int) int {
		if t > i {
			return t - 1
		}
		return t
	})
	b.Instructions = append(b.Instructions[:i:i], b.Instructions[i+1:]...)
	if i < len(b.Instructions) && b.Instructions[i].Seq == nil {
		b.Instructions[i].Seq = old.Seq
	}
	return old
}

// Replace swaps the instruction at index i for ins and returns the old one.
// References stay on the index, so ins becomes their target; ins takes over
// the offset and sequence point of the instruction it replaces.
func (b *Body) Replace(i int, ins *Instruction) *Instruction {
	b.checkIndex(i, false)
	old := b.Instructions[i]
	ins.Offset = old.Offset
	ins.Seq = old.Seq
	b.Instructions[i] = ins
	return old
}

// RetargetTransfers moves every branch, switch and handler reference from
// index from to index to. The instruction at to takes over the offset and
// sequence point of the one at from.
func (b *Body) RetargetTransfers(from, to int) {
	b.checkIndex(from, false)
	b.checkIndex(to, false)
	if from == to {
		return
	}
	b.remap(func(t int) int {
		if t == from {
			return to
		}
		return t
	})
	src, dst := b.Instructions[from], b.Instructions[to]
	dst.Offset = src.Offset
	dst.Seq = src.Seq
}

// Merge splices a built fragment in at index at. Fragment-local targets are
// relocated, host targets are mapped to the positions their instructions
// occupy after the splice, and the fragment's locals are declared in the
// body. A fragment must only be merged once. Merge returns the index of the
// first merged instruction.
func (b *Body) Merge(f *Fragment, at int) int {
	b.checkIndex(at, true)
	for _, v := range f.Variables {
		b.attach(v)
	}
	n := len(f.Instructions)
	if n == 0 {
		return at
	}
	shift := func(t int) int {
		if t >= at {
			return t + n
		}
		return t
	}
	b.remap(shift)
	for _, ins := range f.Instructions {
		switch v := ins.Operand.(type) {
		case Target:
			ins.Operand = Target(int(v) + at)
		case HostTarget:
			ins.Operand = Target(shift(int(v)))
		case JumpTable:
			next := make(JumpTable, len(v))
			for i, t := range v {
				next[i] = t + at
			}
			ins.Operand = next
		}
	}
	b.splice(at, f.Instructions)
	return at
}

// Splice builds ds and merges the result at index at.
func (b *Body) Splice(at int, ds ...Descriptor) (*Fragment, error) {
	f, err := Build(ds...)
	if err != nil {
		return nil, err
	}
	b.Merge(f, at)
	return f, nil
}

// Append builds ds and merges the result at the end of the body.
func (b *Body) Append(ds ...Descriptor) (*Fragment, error) {
	return b.Splice(len(b.Instructions), ds...)
}

// UpdateOffsets lays the instructions out and rewrites their offsets.
func (b *Body) UpdateOffsets() {
	off := 0
	for _, ins := range b.Instructions {
		ins.Offset = off
		off += ins.Size()
	}
}

// CodeSize returns the encoded size of the body in bytes.
func (b *Body) CodeSize() int {
	size := 0
	for _, ins := range b.Instructions {
		size += ins.Size()
	}
	return size
}
