package cil

// ParametersMatch reports whether two methods take the same parameter types
// in the same order. Parameter names are compared unless ignoreNames is set.
func ParametersMatch(a, b *Method, ignoreNames bool) bool {
	if len(a.Parameters) != len(b.Parameters) {
		return false
	}
	for i, p := range a.Parameters {
		q := b.Parameters[i]
		if !SameType(p.Type, q.Type) {
			// A parameter of the declaring type matches the other
			// declaring type, so interface and implementation agree.
			if !(SameType(p.Type, a.DeclaringType) && SameType(q.Type, b.DeclaringType)) {
				return false
			}
		}
		if !ignoreNames && p.Name != q.Name {
			return false
		}
	}
	return true
}

// SignatureMatches reports whether two methods share name, return type,
// attributes and parameters. Attributes are ignored when either method is
// declared on an interface.
func SignatureMatches(a, b *Method) bool {
	if a.Name != b.Name {
		return false
	}
	if !SameType(a.ReturnType, b.ReturnType) {
		return false
	}
	onInterface := (a.DeclaringType != nil && a.DeclaringType.IsInterface()) ||
		(b.DeclaringType != nil && b.DeclaringType.IsInterface())
	if !onInterface && (a.Attributes != b.Attributes || a.Visibility != b.Visibility) {
		return false
	}
	return ParametersMatch(a, b, false)
}

// TypeSignatureMatches reports whether the instance methods of two types,
// accessors excluded, match pairwise in declaration order.
func TypeSignatureMatches(a, b *Type) bool {
	am := instanceMethods(a)
	bm := instanceMethods(b)
	if len(am) != len(bm) {
		return false
	}
	for i := range am {
		if !SignatureMatches(am[i], bm[i]) {
			return false
		}
	}
	return true
}

func instanceMethods(t *Type) []*Method {
	var out []*Method
	for _, m := range t.Methods {
		if m.IsStatic() || m.IsGetter() || m.IsSetter() || m.IsConstructor() {
			continue
		}
		out = append(out, m)
	}
	return out
}

// CloneSignature returns a new method with m's name, visibility, attributes,
// return type and parameters, and an empty body. The clone is not attached to
// any type.
func (m *Method) CloneSignature() *Method {
	c := &Method{
		Name:       m.Name,
		Visibility: m.Visibility,
		Attributes: m.Attributes &^ (MethodAbstract | MethodRuntime),
		ReturnType: m.ReturnType,
		Body:       NewBody(),
	}
	for _, p := range m.Parameters {
		cp := c.AddParameter(p.Name, p.Type)
		cp.Attributes = p.Attributes
	}
	return c
}

// AddReturn appends a return to m's body. Non-void methods return the
// default value of their return type through a fresh local. It returns the
// index of the first appended instruction.
func AddReturn(m *Method) int {
	b := m.Body
	first := b.Len()
	if m.ReturnsValue() {
		tmp := b.AddVariable("default_result", m.ReturnType)
		b.Emit(LdLocA, tmp)
		b.Emit(InitObj, m.ReturnType)
		b.Emit(LdLoc, tmp)
	}
	b.Emit(Ret, nil)
	return first
}
