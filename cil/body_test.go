package cil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// branchyBody is:
//
//	0: ldarg x
//	1: brtrue 4
//	2: ldc.i4 0
//	3: ret
//	4: ldc.i4 1
//	5: ret
func branchyBody() (*Method, *Body) {
	m := NewMethod("F", MethodStatic, Int32)
	x := m.AddParameter("x", Boolean)
	b := m.Body
	b.Emit(LdArg, x)
	b.Emit(BrTrue, Target(4))
	b.Emit(LdcI4, Int(0))
	b.Emit(Ret, nil)
	b.Emit(LdcI4, Int(1))
	b.Emit(Ret, nil)
	return m, b
}

func TestInsertFollowsInstructions(t *testing.T) {
	_, b := branchyBody()
	target := b.At(4)

	b.Insert(2, NewInstruction(Nop, nil), NewInstruction(Nop, nil))

	require.Equal(t, 8, b.Len())
	assert.Equal(t, Target(6), b.At(1).Operand)
	assert.Same(t, target, b.At(6))
}

func TestInsertAtTargetMovesTargetAlong(t *testing.T) {
	_, b := branchyBody()
	b.Insert(4, NewInstruction(Nop, nil))
	assert.Equal(t, Target(5), b.At(1).Operand)
	assert.Equal(t, LdcI4, b.At(5).OpCode)
}

func TestInsertBeforeCapturesReferences(t *testing.T) {
	_, b := branchyBody()
	b.At(4).Seq = &SequencePoint{Document: "foo.cs", StartLine: 10}

	nop := NewInstruction(Nop, nil)
	b.InsertBefore(4, nop)

	assert.Equal(t, Target(4), b.At(1).Operand)
	assert.Same(t, nop, b.At(4))
	require.NotNil(t, nop.Seq)
	assert.Equal(t, 10, nop.Seq.StartLine)
}

func TestRemoveMovesReferencesToSuccessor(t *testing.T) {
	_, b := branchyBody()
	b.At(4).Seq = &SequencePoint{StartLine: 3}

	old := b.Remove(4)

	assert.Equal(t, LdcI4, old.OpCode)
	assert.Equal(t, Target(4), b.At(1).Operand)
	assert.Equal(t, Ret, b.At(4).OpCode)
	require.NotNil(t, b.At(4).Seq)
	assert.Equal(t, 3, b.At(4).Seq.StartLine)
}

func TestRemoveShiftsLaterReferences(t *testing.T) {
	_, b := branchyBody()
	b.Remove(2)
	assert.Equal(t, Target(3), b.At(1).Operand)
}

func TestReplaceKeepsReferences(t *testing.T) {
	_, b := branchyBody()
	b.At(4).Offset = 42
	repl := NewInstruction(LdcI4, Int(2))

	b.Replace(4, repl)

	assert.Same(t, repl, b.At(4))
	assert.Equal(t, Target(4), b.At(1).Operand)
	assert.Equal(t, 42, repl.Offset)
}

func TestRetargetTransfers(t *testing.T) {
	_, b := branchyBody()
	b.Handlers = append(b.Handlers, &ExceptionHandler{
		Kind: HandlerFinally, TryStart: 0, TryEnd: 4, HandlerStart: 4, HandlerEnd: 6, FilterStart: -1,
	})
	b.At(4).Offset = 9
	b.At(4).Seq = &SequencePoint{StartLine: 12}

	b.RetargetTransfers(4, 2)

	assert.Equal(t, Target(2), b.At(1).Operand)
	h := b.Handlers[0]
	assert.Equal(t, 2, h.TryEnd)
	assert.Equal(t, 2, h.HandlerStart)
	assert.Equal(t, 6, h.HandlerEnd)
	assert.Equal(t, -1, h.FilterStart)
	assert.Equal(t, 9, b.At(2).Offset)
	assert.Equal(t, 12, b.At(2).Seq.StartLine)
	assert.Equal(t, 0, b.ReferencesTo(4))
}

func TestHandlersShiftOnInsert(t *testing.T) {
	_, b := branchyBody()
	b.Handlers = append(b.Handlers, &ExceptionHandler{
		Kind: HandlerCatch, TryStart: 2, TryEnd: 4, HandlerStart: 4, HandlerEnd: 6, FilterStart: -1, CatchType: Object,
	})
	b.Insert(0, NewInstruction(Nop, nil))

	h := b.Handlers[0]
	assert.Equal(t, []int{3, 5, 5, 7, -1}, []int{h.TryStart, h.TryEnd, h.HandlerStart, h.HandlerEnd, h.FilterStart})
}

func TestSwitchTargetsShift(t *testing.T) {
	b := NewBody()
	b.Emit(LdcI4, Int(0))
	b.Emit(Switch, JumpTable{2, 3})
	b.Emit(Nop, nil)
	b.Emit(Ret, nil)

	b.Insert(2, NewInstruction(Nop, nil))
	assert.Equal(t, JumpTable{3, 4}, b.At(1).Operand)
}

func TestMergeRelocatesFragment(t *testing.T) {
	_, b := branchyBody()
	skip := NewLabel("skip")
	tmp := NewVariable("tmp", Int32)

	f, err := Build(
		Op(LdcI4, Int(3)),
		Op(StLoc, tmp),
		Op(Br, skip),
		Op(Nop),
		Place(skip, Op(Br, HostTarget(4))),
	)
	require.NoError(t, err)

	b.Merge(f, 0)

	require.Equal(t, 11, b.Len())
	assert.Equal(t, Target(4), b.At(2).Operand, "fragment label relocated")
	assert.Equal(t, Target(9), b.At(4).Operand, "host target follows its instruction")
	assert.Equal(t, Target(9), b.At(6).Operand, "existing host branch shifted")
	require.Len(t, b.Variables, 1)
	assert.Same(t, tmp, b.Variables[0])
	assert.Equal(t, 0, tmp.Index)
}

func TestMergeReusesDeclaredVariables(t *testing.T) {
	b := NewBody()
	v := b.AddVariable("r", Int32)
	_, err := b.Append(Op(LdcI4, Int(1)), Op(StLoc, v), Op(LdLoc, v), Op(Ret))
	require.NoError(t, err)
	assert.Len(t, b.Variables, 1)
}

func TestInsertOutOfRangePanics(t *testing.T) {
	_, b := branchyBody()
	assert.Panics(t, func() { b.Insert(7, NewInstruction(Nop, nil)) })
	assert.Panics(t, func() { b.Remove(6) })
}

func TestUpdateOffsets(t *testing.T) {
	_, b := branchyBody()
	b.UpdateOffsets()
	var offs []int
	for _, ins := range b.Instructions {
		offs = append(offs, ins.Offset)
	}
	assert.Equal(t, []int{0, 3, 8, 13, 14, 19}, offs)
	assert.Equal(t, 20, b.CodeSize())
}
