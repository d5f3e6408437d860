package cil

import "fmt"

// ---------------------------------------------------------------------------
// Instruction descriptors
// ---------------------------------------------------------------------------

// Descriptor is a compact description of instructions to build. The set of
// implementations is closed: Op, Group, Deferred, Place and Raw.
type Descriptor interface {
	isDescriptor()
}

type concrete struct {
	op       OpCode
	operands []Operand
}

// Op describes one instruction: a bare opcode, or an opcode and its operand.
// Supplying more than one operand is a descriptor error at build time.
func Op(op OpCode, operand ...Operand) Descriptor {
	return &concrete{op: op, operands: operand}
}

// Group is a nested descriptor sequence, flattened depth-first.
type Group []Descriptor

// Deferred produces descriptors when the build reaches it. It runs exactly
// once, after every descriptor before it has been built.
type Deferred func() []Descriptor

type placed struct {
	label *Label
	desc  Descriptor
}

// Place binds label to the first instruction d produces. A descriptor that
// produces nothing binds the label to whatever instruction comes next, or to
// the position just after the fragment.
func Place(label *Label, d Descriptor) Descriptor {
	return &placed{label: label, desc: d}
}

type raw []any

// Raw describes an instruction from untyped parts: an OpCode, optionally
// followed by an operand value. Go literals are converted to operands
// (integers to Int, floats to Float, strings to Str, []*Label to Labels,
// []int to JumpTable).
func Raw(parts ...any) Descriptor {
	return raw(parts)
}

func (*concrete) isDescriptor() {}
func (Group) isDescriptor()     {}
func (Deferred) isDescriptor()  {}
func (*placed) isDescriptor()   {}
func (raw) isDescriptor()       {}

// Label is a forward reference to an instruction that does not exist yet.
// Labels are plain tokens; a build binds them to indexes.
type Label struct {
	name string
}

// NewLabel creates a label. The name only shows up in listings and errors.
func NewLabel(name string) *Label {
	return &Label{name: name}
}

func (l *Label) String() string    { return "@" + l.name }
func (l *Label) Kind() OperandKind { return OperandLabel }
func (l *Label) isOperand()        {}

// Labels is a jump table of forward labels.
type Labels []*Label

func (Labels) Kind() OperandKind { return OperandLabels }
func (Labels) isOperand()        {}

// ---------------------------------------------------------------------------
// Building
// ---------------------------------------------------------------------------

// Fragment is a built instruction sequence waiting to be merged into a body.
// Target operands are fragment-local indexes; HostTarget operands address the
// host body.
type Fragment struct {
	Instructions []*Instruction
	Variables    []*Variable
}

// Len returns the number of instructions in the fragment.
func (f *Fragment) Len() int { return len(f.Instructions) }

type builder struct {
	out     []*Instruction
	vars    []*Variable
	seen    map[*Variable]bool
	bound   map[*Label]int
	pending []*Label
}

// Build flattens descriptors into a fragment: one instruction per concrete
// descriptor, in order. Labels are resolved once the whole sequence exists.
func Build(ds ...Descriptor) (*Fragment, error) {
	b := &builder{
		seen:  map[*Variable]bool{},
		bound: map[*Label]int{},
	}
	for _, d := range ds {
		if err := b.add(d); err != nil {
			return nil, err
		}
	}
	b.bindPending()
	if err := b.resolve(); err != nil {
		return nil, err
	}
	return &Fragment{Instructions: b.out, Variables: b.vars}, nil
}

// MustBuild is like Build but panics on error. It is meant for fixed
// descriptor lists known to be well formed.
func MustBuild(ds ...Descriptor) *Fragment {
	f, err := Build(ds...)
	if err != nil {
		panic(err)
	}
	return f
}

func (b *builder) fail(format string, args ...any) error {
	return &DescriptorError{Position: len(b.out), Message: fmt.Sprintf(format, args...)}
}

func (b *builder) add(d Descriptor) error {
	switch d := d.(type) {
	case nil:
		return b.fail("nil descriptor")
	case *concrete:
		if len(d.operands) > 1 {
			return b.fail("%s: descriptor has %d parts, want 1 or 2", d.op, len(d.operands)+1)
		}
		var operand Operand
		if len(d.operands) == 1 {
			operand = d.operands[0]
		}
		return b.emit(d.op, operand)
	case Group:
		for _, sub := range d {
			if err := b.add(sub); err != nil {
				return err
			}
		}
	case Deferred:
		if d == nil {
			return b.fail("nil deferred descriptor")
		}
		for _, sub := range d() {
			if err := b.add(sub); err != nil {
				return err
			}
		}
	case *placed:
		if d.label == nil {
			return b.fail("place with nil label")
		}
		if b.isBound(d.label) {
			return b.fail("label %s placed twice", d.label)
		}
		b.pending = append(b.pending, d.label)
		return b.add(d.desc)
	case raw:
		return b.addRaw(d)
	default:
		return b.fail("unsupported descriptor %T", d)
	}
	return nil
}

func (b *builder) isBound(l *Label) bool {
	if _, ok := b.bound[l]; ok {
		return true
	}
	for _, p := range b.pending {
		if p == l {
			return true
		}
	}
	return false
}

func (b *builder) addRaw(parts raw) error {
	if len(parts) == 0 || len(parts) > 2 {
		return b.fail("descriptor has %d parts, want 1 or 2", len(parts))
	}
	op, ok := parts[0].(OpCode)
	if !ok {
		return b.fail("first part must be an opcode, got %T", parts[0])
	}
	if len(parts) == 1 {
		return b.emit(op, nil)
	}
	operand, ok := operandOf(parts[1])
	if !ok {
		return b.fail("%s: no instruction constructor for operand of type %T", op, parts[1])
	}
	return b.emit(op, operand)
}

// operandOf converts a Go value into an operand.
func operandOf(v any) (Operand, bool) {
	switch v := v.(type) {
	case Operand:
		return v, true
	case int:
		return Int(v), true
	case int32:
		return Int(v), true
	case int64:
		return Int(v), true
	case bool:
		if v {
			return Int(1), true
		}
		return Int(0), true
	case float64:
		return Float(v), true
	case float32:
		return Float(v), true
	case string:
		return Str(v), true
	case []*Label:
		return Labels(v), true
	case []int:
		return JumpTable(v), true
	}
	return nil, false
}

func (b *builder) emit(op OpCode, operand Operand) error {
	if !op.Valid() {
		return b.fail("unknown opcode 0x%02x", uint16(op))
	}
	want := op.Info().Operand
	got := OperandNone
	if operand != nil {
		got = operand.Kind()
	}
	if !accepts(want, got) {
		return b.fail("%s: no instruction constructor for a %s operand (takes %s)", op, got, want)
	}
	b.bindPending()
	if v, ok := operand.(*Variable); ok && !b.seen[v] {
		b.seen[v] = true
		b.vars = append(b.vars, v)
	}
	b.out = append(b.out, NewInstruction(op, operand))
	return nil
}

// bindPending binds every label waiting for an instruction to the next index.
func (b *builder) bindPending() {
	for _, l := range b.pending {
		b.bound[l] = len(b.out)
	}
	b.pending = b.pending[:0]
}

// resolve rewrites label operands to concrete fragment-local targets.
func (b *builder) resolve() error {
	for i, ins := range b.out {
		switch v := ins.Operand.(type) {
		case *Label:
			idx, ok := b.bound[v]
			if !ok {
				return &DescriptorError{Position: i, Message: fmt.Sprintf("label %s is never placed", v)}
			}
			ins.Operand = Target(idx)
		case Labels:
			table := make(JumpTable, len(v))
			for j, l := range v {
				idx, ok := b.bound[l]
				if !ok {
					return &DescriptorError{Position: i, Message: fmt.Sprintf("label %s is never placed", l)}
				}
				table[j] = idx
			}
			ins.Operand = table
		}
	}
	return nil
}
