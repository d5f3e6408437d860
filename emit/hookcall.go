package emit

import (
	"fmt"

	"github.com/chazu/modder/cil"
)

// ContinueName names the local that holds a cancellable hook's verdict.
const ContinueName = "continue_method"

// HookCall produces the fragment that invokes the callback stored in Slot
// from inside Method.
//
// When the slot is empty the fragment pops the duplicated slot value and, if
// Cancellable, yields true ("not cancelled"). Otherwise it loads Method's
// parameters (by address for value types when ReferenceParameters is set),
// then the address of Result when one is given, and invokes the callback. A
// cancellable fragment leaves the verdict on the stack, stored through a
// "continue_method" local; a non-cancellable one leaves the stack as it found
// it.
type HookCall struct {
	Slot    *cil.Field
	Method  *cil.Method
	Options Options
	// Result is the local receiving the method's result. It is passed when
	// the callback has a result parameter.
	Result *cil.Variable
}

func (e *HookCall) Produce() (*cil.Fragment, error) {
	if e.Slot == nil || e.Method == nil {
		return nil, fmt.Errorf("%w: hook call needs a slot and a method", cil.ErrConfiguration)
	}
	invoke, err := InvokeMethod(e.Slot.Type)
	if err != nil {
		return nil, err
	}

	args := e.arguments()
	if len(args) != len(invoke.Parameters) {
		return nil, fmt.Errorf("%w: %s takes %d argument(s), hook of %s supplies %d",
			cil.ErrConfiguration, e.Slot.Type.FullName(), len(invoke.Parameters), e.Method.FullName(), len(args))
	}

	invokeLabel := cil.NewLabel("invoke")
	storeLabel := cil.NewLabel("store")

	if e.Options.Cancellable {
		if !cil.SameType(invoke.ReturnType, cil.Boolean) {
			return nil, fmt.Errorf("%w: cancellable hook %s must return %s",
				cil.ErrConfiguration, e.Slot.FullName(), cil.Boolean.FullName())
		}
		cont := cil.NewVariable(ContinueName, cil.Boolean)
		return cil.Build(
			cil.Op(cil.LdSFld, e.Slot),
			cil.Op(cil.Dup),
			cil.Op(cil.BrTrue, invokeLabel),
			cil.Op(cil.Pop),
			cil.Op(cil.LdcI4, cil.Int(1)),
			cil.Op(cil.Br, storeLabel),
			cil.Place(invokeLabel, cil.Group(args)),
			cil.Op(cil.CallVirt, invoke),
			cil.Place(storeLabel, cil.Op(cil.StLoc, cont)),
			cil.Op(cil.LdLoc, cont),
		)
	}

	endLabel := cil.NewLabel("end")
	var discard cil.Descriptor = cil.Group{}
	if invoke.ReturnsValue() {
		discard = cil.Op(cil.Pop)
	}
	return cil.Build(
		cil.Op(cil.LdSFld, e.Slot),
		cil.Op(cil.Dup),
		cil.Op(cil.BrTrue, invokeLabel),
		cil.Op(cil.Pop),
		cil.Op(cil.Br, endLabel),
		cil.Place(invokeLabel, cil.Group(args)),
		cil.Op(cil.CallVirt, invoke),
		discard,
		cil.Place(endLabel, cil.Op(cil.Nop)),
	)
}

func (e *HookCall) arguments() []cil.Descriptor {
	var args []cil.Descriptor
	for _, p := range e.Method.Parameters {
		if e.Options.ReferenceParameters && p.Type.IsValueType() {
			args = append(args, cil.Op(cil.LdArgA, p))
		} else {
			args = append(args, cil.Op(cil.LdArg, p))
		}
	}
	if e.Result != nil {
		args = append(args, cil.Op(cil.LdLocA, e.Result))
	}
	return args
}
