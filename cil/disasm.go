package cil

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of the method body. Offsets
// are laid out from opcode sizes; the recorded instruction offsets are not
// touched.
func Disassemble(m *Method) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("; %s\n", m))
	if m.Body == nil {
		sb.WriteString("; no body\n")
		return sb.String()
	}
	b := m.Body

	if len(b.Variables) > 0 {
		sb.WriteString("; Locals:\n")
		for _, v := range b.Variables {
			sb.WriteString(fmt.Sprintf(";   [%d] %s %s\n", v.Index, v.Type.FullName(), v))
		}
	}

	offsets := make([]int, b.Len()+1)
	off := 0
	for i, ins := range b.Instructions {
		offsets[i] = off
		off += ins.Size()
	}
	offsets[b.Len()] = off

	label := func(t int) string {
		if t < 0 || t >= len(offsets) {
			return fmt.Sprintf("IL_????(#%d)", t)
		}
		return fmt.Sprintf("IL_%04x", offsets[t])
	}

	for i, ins := range b.Instructions {
		sb.WriteString(label(i))
		sb.WriteString(": ")
		sb.WriteString(ins.OpCode.Name())
		switch v := ins.Operand.(type) {
		case nil:
		case Target:
			sb.WriteString(" " + label(int(v)))
		case JumpTable:
			parts := make([]string, len(v))
			for j, t := range v {
				parts[j] = label(t)
			}
			sb.WriteString(" (" + strings.Join(parts, ", ") + ")")
		default:
			sb.WriteString(" " + FormatOperand(v))
		}
		sb.WriteString("\n")
	}

	for _, h := range b.Handlers {
		sb.WriteString(fmt.Sprintf(".try %s to %s %s handler %s to %s",
			label(h.TryStart), label(h.TryEnd), h.Kind, label(h.HandlerStart), label(h.HandlerEnd)))
		if h.CatchType != nil {
			sb.WriteString(" " + h.CatchType.FullName())
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
