package emit

import (
	"fmt"

	"github.com/chazu/modder/cil"
)

// RelocatedCall produces the fragment by which Caller forwards its own
// arguments to Callee: the receiver for instance methods, then every
// parameter in order, then a direct call. A returned value is discarded, so
// the fragment leaves the stack unchanged.
type RelocatedCall struct {
	Caller *cil.Method
	Callee *cil.Method
}

func (e *RelocatedCall) Produce() (*cil.Fragment, error) {
	if e.Caller == nil || e.Callee == nil {
		return nil, fmt.Errorf("%w: relocated call needs a caller and a callee", cil.ErrConfiguration)
	}
	if len(e.Caller.Parameters) != len(e.Callee.Parameters) || e.Caller.IsStatic() != e.Callee.IsStatic() {
		return nil, fmt.Errorf("%w: %s cannot forward to %s", cil.ErrConfiguration,
			e.Caller.FullName(), e.Callee.FullName())
	}

	var ds []cil.Descriptor
	if this := e.Caller.This(); this != nil {
		ds = append(ds, cil.Op(cil.LdArg, this))
	}
	for _, p := range e.Caller.Parameters {
		ds = append(ds, cil.Op(cil.LdArg, p))
	}
	ds = append(ds, cil.Op(cil.Call, e.Callee))
	if e.Callee.ReturnsValue() {
		ds = append(ds, cil.Op(cil.Pop))
	}
	return cil.Build(ds...)
}
