package cil

import "fmt"

// Verify checks that the stack depth of m's body balances on every path. It
// walks control flow from the first instruction and from every handler entry,
// computing depths from the opcode table and, for calls, from the callee
// signature. Methods without a body always verify.
func Verify(m *Method) error {
	if m.Body == nil {
		return nil
	}
	v := &verifier{
		method: m,
		body:   m.Body,
		depth:  make([]int, m.Body.Len()),
	}
	for i := range v.depth {
		v.depth[i] = -1
	}
	if m.Body.Len() == 0 {
		return v.fail(-1, "empty body")
	}
	if err := v.walk(0, 0); err != nil {
		return err
	}
	for _, h := range m.Body.Handlers {
		entry := 1
		if h.Kind == HandlerFinally || h.Kind == HandlerFault {
			entry = 0
		}
		if err := v.walk(h.HandlerStart, entry); err != nil {
			return err
		}
		if h.Kind == HandlerFilter {
			if err := v.walk(h.FilterStart, 1); err != nil {
				return err
			}
		}
	}
	return nil
}

type verifier struct {
	method *Method
	body   *Body
	depth  []int // stack depth on entry, -1 when not reached yet
}

func (v *verifier) fail(index int, format string, args ...any) error {
	return &VerifyError{Method: v.method.FullName(), Index: index, Message: fmt.Sprintf(format, args...)}
}

type verifyItem struct {
	index int
	depth int
}

func (v *verifier) walk(start, depth int) error {
	work := []verifyItem{{start, depth}}
	for len(work) > 0 {
		it := work[len(work)-1]
		work = work[:len(work)-1]

		i, d := it.index, it.depth
		for {
			if i < 0 || i >= len(v.depth) {
				return v.fail(i, "control reaches index outside the body")
			}
			if v.depth[i] >= 0 {
				if v.depth[i] != d {
					return v.fail(i, "stack depth %d does not match %d from another path", d, v.depth[i])
				}
				break
			}
			v.depth[i] = d

			ins := v.body.Instructions[i]
			pop, push, err := v.effect(i, ins)
			if err != nil {
				return err
			}
			if d < pop {
				return v.fail(i, "%s pops %d value(s) from a stack of %d", ins.OpCode, pop, d)
			}
			d = d - pop + push

			info := ins.OpCode.Info()
			switch info.Flow {
			case FlowReturn:
				if d != 0 {
					return v.fail(i, "return leaves %d value(s) on the stack", d)
				}
			case FlowThrow, FlowEndHandler:
			case FlowBranch:
				if ins.OpCode == Leave {
					d = 0
				}
				for _, t := range ins.Targets() {
					work = append(work, verifyItem{t, d})
				}
			case FlowCondBranch, FlowSwitch:
				for _, t := range ins.Targets() {
					work = append(work, verifyItem{t, d})
				}
				if i+1 >= len(v.depth) {
					return v.fail(i, "control falls off the end of the body")
				}
				i++
				continue
			default:
				if i+1 >= len(v.depth) {
					return v.fail(i, "control falls off the end of the body")
				}
				i++
				continue
			}
			break
		}
	}
	return nil
}

// effect returns the values popped and pushed by the instruction at index i.
func (v *verifier) effect(i int, ins *Instruction) (pop, push int, err error) {
	info := ins.OpCode.Info()
	if !ins.OpCode.Valid() {
		return 0, 0, v.fail(i, "unknown opcode 0x%02x", uint16(ins.OpCode))
	}
	pop, push = info.Pop, info.Push
	switch ins.OpCode {
	case Call, CallVirt, NewObj:
		callee, ok := ins.Operand.(*Method)
		if !ok {
			return 0, 0, v.fail(i, "%s without a method operand", ins.OpCode)
		}
		pop = callee.StackPop()
		push = callee.StackPush()
		if ins.OpCode == NewObj {
			pop = len(callee.Parameters)
			push = 1
		}
	case Ret:
		pop = v.method.StackPush()
	}
	if ins.OpCode.IsBranch() {
		switch ins.Operand.(type) {
		case Target, JumpTable:
		default:
			return 0, 0, v.fail(i, "%s with unresolved operand %s", ins.OpCode, FormatOperand(ins.Operand))
		}
	}
	return pop, push, nil
}
