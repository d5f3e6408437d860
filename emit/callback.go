package emit

import (
	"fmt"
	"strings"

	"github.com/chazu/modder/cil"
)

// InvokeName is the entry point of every callback type.
const InvokeName = "Invoke"

// SigParam is one parameter of a derived callback signature.
type SigParam struct {
	Name       string
	Type       cil.TypeRef
	Attributes cil.ParamAttributes
}

// Signature is the externally visible function signature of a hook.
type Signature struct {
	Name       string
	ReturnType cil.TypeRef
	Parameters []SigParam
}

// String renders the signature as "Return Invoke(type name, ...)".
func (s *Signature) String() string {
	parts := make([]string, len(s.Parameters))
	for i, p := range s.Parameters {
		parts[i] = p.Type.FullName() + " " + p.Name
	}
	return fmt.Sprintf("%s %s(%s)", s.ReturnType.FullName(), InvokeName, strings.Join(parts, ", "))
}

// CallbackSignature derives the callback signature of a hook on Method.
//
// The callback takes Method's parameters in order. With ReferenceParameters,
// value-typed parameters become by-reference. With AlterResult on a non-void
// method, one by-reference "result" parameter of the return type is
// appended. The callback returns Boolean when Cancellable, otherwise Void.
type CallbackSignature struct {
	Prefix  string
	Method  *cil.Method
	Options Options
}

func (e *CallbackSignature) Produce() (*Signature, error) {
	if e.Method == nil {
		return nil, fmt.Errorf("%w: callback signature without a method", cil.ErrConfiguration)
	}
	sig := &Signature{
		Name:       e.Prefix + e.Method.Name,
		ReturnType: cil.Void,
	}
	for _, p := range e.Method.Parameters {
		typ := p.Type
		if e.Options.ReferenceParameters && typ.IsValueType() {
			typ = cil.ByRef(typ)
		}
		sig.Parameters = append(sig.Parameters, SigParam{Name: p.Name, Type: typ, Attributes: p.Attributes})
	}
	if e.Options.AlterResult && e.Method.ReturnsValue() {
		sig.Parameters = append(sig.Parameters, SigParam{Name: "result", Type: cil.ByRef(e.Method.ReturnType)})
	}
	if e.Options.Cancellable {
		sig.ReturnType = cil.Boolean
	}
	return sig, nil
}

// Delegate synthesizes a callback type for a signature: a public sealed type
// deriving from MulticastDelegate with a runtime-implemented constructor and
// Invoke method.
type Delegate struct {
	Signature *Signature
}

func (e *Delegate) Produce() (*cil.Type, error) {
	if e.Signature == nil || e.Signature.Name == "" {
		return nil, fmt.Errorf("%w: delegate without a name", cil.ErrConfiguration)
	}
	t := cil.NewType("", e.Signature.Name, cil.TypeSealed)
	t.BaseType = cil.MulticastDelegate

	ctor := cil.NewMethod(cil.CtorName,
		cil.MethodRuntime|cil.MethodSpecialName|cil.MethodRTSpecialName|cil.MethodHideBySig, cil.Void)
	ctor.AddParameter("object", cil.Object)
	ctor.AddParameter("method", cil.IntPtr)
	t.AddMethod(ctor)

	invoke := cil.NewMethod(InvokeName,
		cil.MethodRuntime|cil.MethodVirtual|cil.MethodNewSlot|cil.MethodHideBySig, e.Signature.ReturnType)
	for _, p := range e.Signature.Parameters {
		ip := invoke.AddParameter(p.Name, p.Type)
		ip.Attributes = p.Attributes
	}
	t.AddMethod(invoke)
	return t, nil
}

// Callback derives the signature of a hook on Method, synthesizes its callback
// type and registers it as a nested type of Container.
type Callback struct {
	Prefix    string
	Method    *cil.Method
	Options   Options
	Container *cil.Type
}

func (e *Callback) Produce() (*cil.Type, error) {
	sig, err := (&CallbackSignature{Prefix: e.Prefix, Method: e.Method, Options: e.Options}).Produce()
	if err != nil {
		return nil, err
	}
	t, err := (&Delegate{Signature: sig}).Produce()
	if err != nil {
		return nil, err
	}
	if e.Container != nil {
		e.Container.AddNestedType(t)
	}
	log.Debugf("Callback type %s: %s", t.FullName(), sig)
	return t, nil
}

// InvokeMethod returns the Invoke method of a callback type.
func InvokeMethod(callback cil.TypeRef) (*cil.Method, error) {
	t, ok := callback.(*cil.Type)
	if !ok || !t.IsDelegate() {
		return nil, fmt.Errorf("%w: %s is not a callback type", cil.ErrResolution, callback.FullName())
	}
	return t.Method(InvokeName)
}
