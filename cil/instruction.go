package cil

import "fmt"

// SequencePoint maps an instruction back to a source location.
type SequencePoint struct {
	Document    string
	StartLine   int
	StartColumn int
	EndLine     int
	EndColumn   int
}

// Instruction is an opcode plus at most one operand. Transfer targets are
// indexes into the owning body.
type Instruction struct {
	OpCode  OpCode
	Operand Operand

	// Offset is the byte offset recorded when the body was loaded or last
	// laid out.
	Offset int
	Seq    *SequencePoint
}

// NewInstruction creates an instruction. A nil operand means none.
func NewInstruction(op OpCode, operand Operand) *Instruction {
	return &Instruction{OpCode: op, Operand: operand}
}

// Size returns the encoded size of the instruction in bytes.
func (ins *Instruction) Size() int {
	if sw, ok := ins.Operand.(JumpTable); ok {
		return 5 + 4*len(sw)
	}
	return ins.OpCode.Info().Size
}

// Targets returns the transfer targets carried by the instruction.
func (ins *Instruction) Targets() []int {
	switch v := ins.Operand.(type) {
	case Target:
		return []int{int(v)}
	case JumpTable:
		return append([]int(nil), v...)
	}
	return nil
}

func (ins *Instruction) String() string {
	if ins.Operand == nil {
		return ins.OpCode.Name()
	}
	return fmt.Sprintf("%s %s", ins.OpCode.Name(), FormatOperand(ins.Operand))
}

// ExceptionHandlerKind is the kind of a protected region handler.
type ExceptionHandlerKind uint8

const (
	HandlerCatch ExceptionHandlerKind = iota
	HandlerFilter
	HandlerFinally
	HandlerFault
)

func (k ExceptionHandlerKind) String() string {
	switch k {
	case HandlerCatch:
		return "catch"
	case HandlerFilter:
		return "filter"
	case HandlerFinally:
		return "finally"
	case HandlerFault:
		return "fault"
	}
	return fmt.Sprintf("handler(%d)", k)
}

// ExceptionHandler describes a protected region and its handler. Every
// boundary is an instruction index; end boundaries are exclusive and may equal
// the body length. Absent boundaries are -1.
type ExceptionHandler struct {
	Kind         ExceptionHandlerKind
	TryStart     int
	TryEnd       int
	HandlerStart int
	HandlerEnd   int
	FilterStart  int
	CatchType    TypeRef
}

func (h *ExceptionHandler) boundaries() []*int {
	return []*int{&h.TryStart, &h.TryEnd, &h.HandlerStart, &h.HandlerEnd, &h.FilterStart}
}
