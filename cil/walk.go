package cil

// ForEachType calls fn for every type of the module in declaration order,
// each type followed by its nested types.
func (m *Module) ForEachType(fn func(*Type)) {
	for _, t := range m.Types {
		fn(t)
		t.ForEachNestedType(fn)
	}
}

// ForEachNestedType calls fn for every type nested in t, recursively.
func (t *Type) ForEachNestedType(fn func(*Type)) {
	for _, n := range t.NestedTypes {
		fn(n)
		n.ForEachNestedType(fn)
	}
}

// ForEachMethod calls fn for every method of every type in the module.
func (m *Module) ForEachMethod(fn func(*Method)) {
	m.ForEachType(func(t *Type) {
		for _, mth := range t.Methods {
			fn(mth)
		}
	})
}

// ForEachInstruction calls fn for every instruction of every method body in
// the module. The instruction list is snapshotted per method, so fn may
// replace the instruction at the reported index.
func (m *Module) ForEachInstruction(fn func(mth *Method, index int, ins *Instruction)) {
	m.ForEachMethod(func(mth *Method) {
		if mth.Body == nil {
			return
		}
		snapshot := append([]*Instruction(nil), mth.Body.Instructions...)
		for i, ins := range snapshot {
			fn(mth, i, ins)
		}
	})
}
