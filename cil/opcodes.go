package cil

import "fmt"

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// OpCode identifies a single bytecode operation.
type OpCode uint16

// Arguments, locals and constants
const (
	Nop    OpCode = 0x00 // no operation
	LdArg  OpCode = 0x01 // push argument (parameter)
	LdArgA OpCode = 0x02 // push address of argument
	StArg  OpCode = 0x03 // pop into argument
	LdLoc  OpCode = 0x04 // push local variable
	LdLocA OpCode = 0x05 // push address of local variable
	StLoc  OpCode = 0x06 // pop into local variable
	LdcI4  OpCode = 0x07 // push 32-bit integer literal
	LdcI8  OpCode = 0x08 // push 64-bit integer literal
	LdcR8  OpCode = 0x09 // push 64-bit float literal
	LdStr  OpCode = 0x0A // push string literal
	LdNull OpCode = 0x0B // push null reference
	Dup    OpCode = 0x0C // duplicate top of stack
	Pop    OpCode = 0x0D // discard top of stack
)

// Fields
const (
	LdFld   OpCode = 0x10 // pop object, push instance field
	LdFldA  OpCode = 0x11 // pop object, push address of instance field
	StFld   OpCode = 0x12 // pop value and object, store instance field
	LdSFld  OpCode = 0x13 // push static field
	LdSFldA OpCode = 0x14 // push address of static field
	StSFld  OpCode = 0x15 // pop into static field
)

// Calls and returns
const (
	Call     OpCode = 0x20 // call method (static dispatch)
	CallVirt OpCode = 0x21 // call method (virtual dispatch)
	NewObj   OpCode = 0x22 // allocate object and call constructor
	Ret      OpCode = 0x23 // return from method
)

// Control flow
const (
	Br         OpCode = 0x30 // unconditional branch
	BrTrue     OpCode = 0x31 // pop, branch if true / non-null / non-zero
	BrFalse    OpCode = 0x32 // pop, branch if false / null / zero
	Beq        OpCode = 0x33 // pop two, branch if equal
	BneUn      OpCode = 0x34 // pop two, branch if not equal
	Blt        OpCode = 0x35 // pop two, branch if less than
	Bgt        OpCode = 0x36 // pop two, branch if greater than
	Ble        OpCode = 0x37 // pop two, branch if less or equal
	Bge        OpCode = 0x38 // pop two, branch if greater or equal
	Switch     OpCode = 0x39 // pop index, branch through jump table
	Leave      OpCode = 0x3A // exit protected region, emptying the stack
	EndFinally OpCode = 0x3B // end of finally handler
	Throw      OpCode = 0x3C // pop and throw exception object
)

// Arithmetic, logic and comparison
const (
	Add    OpCode = 0x40
	Sub    OpCode = 0x41
	Mul    OpCode = 0x42
	Div    OpCode = 0x43
	Rem    OpCode = 0x44
	Neg    OpCode = 0x45
	And    OpCode = 0x46
	Or     OpCode = 0x47
	Xor    OpCode = 0x48
	Not    OpCode = 0x49
	Shl    OpCode = 0x4A
	Shr    OpCode = 0x4B
	Ceq    OpCode = 0x4C
	Cgt    OpCode = 0x4D
	Clt    OpCode = 0x4E
	ConvI4 OpCode = 0x4F
	ConvI8 OpCode = 0x50
	ConvR8 OpCode = 0x51
)

// Indirection, objects and arrays
const (
	LdInd     OpCode = 0x60 // pop address, push value
	StInd     OpCode = 0x61 // pop value and address, store
	InitObj   OpCode = 0x62 // pop address, zero-initialize value type
	Box       OpCode = 0x63
	UnboxAny  OpCode = 0x64
	CastClass OpCode = 0x65
	IsInst    OpCode = 0x66
	NewArr    OpCode = 0x67
	LdLen     OpCode = 0x68
	LdElem    OpCode = 0x69
	StElem    OpCode = 0x6A
	LdToken   OpCode = 0x6B
)

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// FlowControl describes how an opcode affects control flow.
type FlowControl uint8

const (
	FlowNext       FlowControl = iota // falls through to the next instruction
	FlowBranch                        // unconditional transfer
	FlowCondBranch                    // conditional transfer, may fall through
	FlowSwitch                        // jump table, may fall through
	FlowCall                          // call, falls through
	FlowReturn                        // leaves the method
	FlowThrow                         // raises an exception
	FlowEndHandler                    // ends a finally handler
)

// StackVariable marks a stack effect that depends on the operand signature.
const StackVariable = -1

// OpCodeInfo holds metadata about an opcode.
type OpCodeInfo struct {
	Name    string      // mnemonic
	Size    int         // encoded size in bytes, operand included
	Operand OperandKind // operand category accepted by the opcode
	Flow    FlowControl // control flow behavior
	Pop     int         // values popped (StackVariable = signature dependent)
	Push    int         // values pushed (StackVariable = signature dependent)
}

// opcodeTable maps opcodes to their metadata.
var opcodeTable = map[OpCode]OpCodeInfo{
	Nop:    {"nop", 1, OperandNone, FlowNext, 0, 0},
	LdArg:  {"ldarg", 3, OperandParam, FlowNext, 0, 1},
	LdArgA: {"ldarga", 3, OperandParam, FlowNext, 0, 1},
	StArg:  {"starg", 3, OperandParam, FlowNext, 1, 0},
	LdLoc:  {"ldloc", 3, OperandVariable, FlowNext, 0, 1},
	LdLocA: {"ldloca", 3, OperandVariable, FlowNext, 0, 1},
	StLoc:  {"stloc", 3, OperandVariable, FlowNext, 1, 0},
	LdcI4:  {"ldc.i4", 5, OperandInt, FlowNext, 0, 1},
	LdcI8:  {"ldc.i8", 9, OperandInt, FlowNext, 0, 1},
	LdcR8:  {"ldc.r8", 9, OperandFloat, FlowNext, 0, 1},
	LdStr:  {"ldstr", 5, OperandString, FlowNext, 0, 1},
	LdNull: {"ldnull", 1, OperandNone, FlowNext, 0, 1},
	Dup:    {"dup", 1, OperandNone, FlowNext, 1, 2},
	Pop:    {"pop", 1, OperandNone, FlowNext, 1, 0},

	LdFld:   {"ldfld", 5, OperandField, FlowNext, 1, 1},
	LdFldA:  {"ldflda", 5, OperandField, FlowNext, 1, 1},
	StFld:   {"stfld", 5, OperandField, FlowNext, 2, 0},
	LdSFld:  {"ldsfld", 5, OperandField, FlowNext, 0, 1},
	LdSFldA: {"ldsflda", 5, OperandField, FlowNext, 0, 1},
	StSFld:  {"stsfld", 5, OperandField, FlowNext, 1, 0},

	Call:     {"call", 5, OperandMethod, FlowCall, StackVariable, StackVariable},
	CallVirt: {"callvirt", 5, OperandMethod, FlowCall, StackVariable, StackVariable},
	NewObj:   {"newobj", 5, OperandMethod, FlowCall, StackVariable, 1},
	Ret:      {"ret", 1, OperandNone, FlowReturn, StackVariable, 0},

	Br:         {"br", 5, OperandTarget, FlowBranch, 0, 0},
	BrTrue:     {"brtrue", 5, OperandTarget, FlowCondBranch, 1, 0},
	BrFalse:    {"brfalse", 5, OperandTarget, FlowCondBranch, 1, 0},
	Beq:        {"beq", 5, OperandTarget, FlowCondBranch, 2, 0},
	BneUn:      {"bne.un", 5, OperandTarget, FlowCondBranch, 2, 0},
	Blt:        {"blt", 5, OperandTarget, FlowCondBranch, 2, 0},
	Bgt:        {"bgt", 5, OperandTarget, FlowCondBranch, 2, 0},
	Ble:        {"ble", 5, OperandTarget, FlowCondBranch, 2, 0},
	Bge:        {"bge", 5, OperandTarget, FlowCondBranch, 2, 0},
	Switch:     {"switch", 5, OperandSwitch, FlowSwitch, 1, 0},
	Leave:      {"leave", 5, OperandTarget, FlowBranch, 0, 0},
	EndFinally: {"endfinally", 1, OperandNone, FlowEndHandler, 0, 0},
	Throw:      {"throw", 1, OperandNone, FlowThrow, 1, 0},

	Add:    {"add", 1, OperandNone, FlowNext, 2, 1},
	Sub:    {"sub", 1, OperandNone, FlowNext, 2, 1},
	Mul:    {"mul", 1, OperandNone, FlowNext, 2, 1},
	Div:    {"div", 1, OperandNone, FlowNext, 2, 1},
	Rem:    {"rem", 1, OperandNone, FlowNext, 2, 1},
	Neg:    {"neg", 1, OperandNone, FlowNext, 1, 1},
	And:    {"and", 1, OperandNone, FlowNext, 2, 1},
	Or:     {"or", 1, OperandNone, FlowNext, 2, 1},
	Xor:    {"xor", 1, OperandNone, FlowNext, 2, 1},
	Not:    {"not", 1, OperandNone, FlowNext, 1, 1},
	Shl:    {"shl", 1, OperandNone, FlowNext, 2, 1},
	Shr:    {"shr", 1, OperandNone, FlowNext, 2, 1},
	Ceq:    {"ceq", 1, OperandNone, FlowNext, 2, 1},
	Cgt:    {"cgt", 1, OperandNone, FlowNext, 2, 1},
	Clt:    {"clt", 1, OperandNone, FlowNext, 2, 1},
	ConvI4: {"conv.i4", 1, OperandNone, FlowNext, 1, 1},
	ConvI8: {"conv.i8", 1, OperandNone, FlowNext, 1, 1},
	ConvR8: {"conv.r8", 1, OperandNone, FlowNext, 1, 1},

	LdInd:     {"ldind", 1, OperandNone, FlowNext, 1, 1},
	StInd:     {"stind", 1, OperandNone, FlowNext, 2, 0},
	InitObj:   {"initobj", 5, OperandType, FlowNext, 1, 0},
	Box:       {"box", 5, OperandType, FlowNext, 1, 1},
	UnboxAny:  {"unbox.any", 5, OperandType, FlowNext, 1, 1},
	CastClass: {"castclass", 5, OperandType, FlowNext, 1, 1},
	IsInst:    {"isinst", 5, OperandType, FlowNext, 1, 1},
	NewArr:    {"newarr", 5, OperandType, FlowNext, 1, 1},
	LdLen:     {"ldlen", 1, OperandNone, FlowNext, 1, 1},
	LdElem:    {"ldelem", 5, OperandType, FlowNext, 2, 1},
	StElem:    {"stelem", 5, OperandType, FlowNext, 3, 0},
	LdToken:   {"ldtoken", 5, OperandType, FlowNext, 0, 1},
}

// Info returns the metadata for an opcode.
func (op OpCode) Info() OpCodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpCodeInfo{Name: fmt.Sprintf("unknown_%02x", uint16(op)), Size: 1}
}

// Valid reports whether the opcode is part of the instruction set.
func (op OpCode) Valid() bool {
	_, ok := opcodeTable[op]
	return ok
}

// Name returns the mnemonic for an opcode.
func (op OpCode) Name() string {
	return op.Info().Name
}

// String implements the Stringer interface.
func (op OpCode) String() string {
	return op.Name()
}

// IsBranch reports whether the opcode carries transfer targets.
func (op OpCode) IsBranch() bool {
	switch op.Info().Flow {
	case FlowBranch, FlowCondBranch, FlowSwitch:
		return true
	}
	return false
}

// OpCodeByName returns the opcode with the given mnemonic.
func OpCodeByName(name string) (OpCode, bool) {
	for op, info := range opcodeTable {
		if info.Name == name {
			return op, true
		}
	}
	return 0, false
}
