// Package hook rewrites methods so that externally assignable callbacks run
// around their original bodies.
//
// Hooking a method M moves its body to a renamed sibling, M+"Direct", and
// installs a redirect method under M's name and signature. The redirect
// calls the pre hook, the relocated original, then the post hook:
//
//	[pre hook]            ldsfld ModHooks.PreM ... stloc continue_method
//	[cancel branch]       brtrue call; br return
//	call:                 ldarg ...; call MDirect; stloc direct_result
//	[post hook]           ldsfld ModHooks.PostM ...
//	return:               ldloc direct_result; ret
//
// Hook slots are public static fields of a ModHooks class nested in M's
// declaring type. Their callback types live in ModHooks.ModHandlers.
package hook

import (
	"fmt"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/modder/cil"
	"github.com/chazu/modder/emit"
	"github.com/chazu/modder/query"
)

var log = commonlog.GetLogger("modder.hook")

const (
	HooksName    = "ModHooks"
	HandlersName = "ModHandlers"
	DirectSuffix = "Direct"
	ResultName   = "direct_result"
)

// Slot is a generated hook slot.
type Slot struct {
	Kind      string // "pre" or "post"
	Field     *cil.Field
	Callback  *cil.Type
	Signature *emit.Signature
}

// Hooked describes one hooked method.
type Hooked struct {
	// Redirect runs under the original name and calls the hooks.
	Redirect *cil.Method
	// Direct is the original method, renamed.
	Direct *cil.Method
	Flags  Flags
	Pre    *Slot
	Post   *Slot
	// Result holds the relocated call's value in non-void methods.
	Result *cil.Variable
}

// Slots returns the generated slots, pre first.
func (h *Hooked) Slots() []*Slot {
	var out []*Slot
	if h.Pre != nil {
		out = append(out, h.Pre)
	}
	if h.Post != nil {
		out = append(out, h.Post)
	}
	return out
}

// Apply hooks every method of res in result order. Every method is validated
// before the first one is touched, so a configuration error leaves the
// modules unchanged. Matches that are not methods are skipped.
func Apply(res *query.Result, flags Flags) ([]*Hooked, error) {
	methods := res.Methods()
	for _, m := range methods {
		if err := Validate(m, flags); err != nil {
			return nil, err
		}
	}
	if err := validateBatch(methods, flags); err != nil {
		return nil, err
	}
	if skipped := res.Len() - len(methods); skipped > 0 {
		log.Debugf("Skipping %d non-method match(es)", skipped)
	}

	out := make([]*Hooked, 0, len(methods))
	for _, m := range methods {
		h, err := apply(m, flags)
		if err != nil {
			return out, err
		}
		out = append(out, h)
	}
	return out, nil
}

// Method validates and hooks a single method.
func Method(m *cil.Method, flags Flags) (*Hooked, error) {
	if err := Validate(m, flags); err != nil {
		return nil, err
	}
	return apply(m, flags)
}

// Validate checks that m can be hooked with flags without changing anything.
func Validate(m *cil.Method, flags Flags) error {
	t := m.DeclaringType
	switch {
	case t == nil:
		return fmt.Errorf("%w: method %s has no declaring type", cil.ErrConfiguration, m.Name)
	case t.IsInterface():
		return fmt.Errorf("%w: cannot hook interface method %s", cil.ErrConfiguration, m.FullName())
	case !m.HasBody():
		return fmt.Errorf("%w: cannot hook %s, it has no body", cil.ErrConfiguration, m.FullName())
	case m.IsConstructor():
		return fmt.Errorf("%w: cannot hook constructor %s", cil.ErrConfiguration, m.FullName())
	}
	if flags.Has(Pre|Cancellable) && !flags.Has(AlterResult) && m.ReturnsValue() {
		return fmt.Errorf("%w: %s: attempt to cancel a non-void method without allowing the callback to alter the result",
			cil.ErrConfiguration, m.FullName())
	}

	for _, sib := range t.Methods {
		if sib.Name == m.Name+DirectSuffix && cil.ParametersMatch(sib, m, true) {
			return fmt.Errorf("%w: %s is already hooked", cil.ErrConfiguration, m.FullName())
		}
	}
	if hooks := t.NestedType(HooksName); hooks != nil {
		for _, kind := range []struct {
			flag Flags
			name string
		}{{Pre, "Pre"}, {Post, "Post"}} {
			if !flags.Has(kind.flag) {
				continue
			}
			if _, err := hooks.Field(kind.name + m.Name); err == nil {
				return fmt.Errorf("%w: hook slot %s.%s%s already exists", cil.ErrConfiguration,
					hooks.FullName(), kind.name, m.Name)
			}
		}
	}
	return nil
}

// validateBatch rejects a selection that names the same method twice, or
// two overloads whose slots and callback types would share a name.
func validateBatch(methods []*cil.Method, flags Flags) error {
	seen := map[*cil.Method]bool{}
	slots := map[string]*cil.Method{}
	for _, m := range methods {
		if seen[m] {
			return fmt.Errorf("%w: %s is selected more than once", cil.ErrConfiguration, m.FullName())
		}
		seen[m] = true
		if !flags.Has(Pre) && !flags.Has(Post) {
			continue
		}
		key := m.DeclaringType.FullName() + "/" + m.Name
		if other, ok := slots[key]; ok {
			return fmt.Errorf("%w: %s and %s would share hook slots %s.%s",
				cil.ErrConfiguration, other.FullName(), m.FullName(), HooksName, m.Name)
		}
		slots[key] = m
	}
	return nil
}

func apply(m *cil.Method, flags Flags) (*Hooked, error) {
	log.Infof("Hooking %s ($%s)", m.FullName(), flags)
	t := m.DeclaringType

	// The redirect takes over the original's name, signature and dispatch
	// slot; the original stops being virtual.
	redirect := m.CloneSignature()
	m.Name += DirectSuffix
	m.Attributes &^= cil.MethodVirtual | cil.MethodNewSlot
	t.AddMethod(redirect)
	rebind(t, m, redirect)

	h := &Hooked{Redirect: redirect, Direct: m, Flags: flags}
	body := redirect.Body
	body.Emit(cil.Ret, nil)

	call, err := (&emit.RelocatedCall{Caller: redirect, Callee: m}).Produce()
	if err != nil {
		return nil, err
	}
	body.Merge(call, 0)
	callEnd := call.Instructions[call.Len()-1]
	if m.ReturnsValue() {
		h.Result = body.AddVariable(ResultName, m.ReturnType)
		body.InitLocals = true
		store := cil.NewInstruction(cil.StLoc, h.Result)
		body.Replace(body.IndexOf(callEnd), store)
		callEnd = store
	}

	if flags.Has(Pre) {
		opts := flags.options()
		slot, err := newSlot(t, "Pre", redirect, opts)
		if err != nil {
			return nil, err
		}
		h.Pre = slot
		if err := splicePre(body, slot, redirect, opts, h.Result); err != nil {
			return nil, err
		}
	}

	if flags.Has(Post) {
		opts := emit.Options{AlterResult: flags.Has(AlterResult)}
		slot, err := newSlot(t, "Post", redirect, opts)
		if err != nil {
			return nil, err
		}
		h.Post = slot
		f, err := (&emit.HookCall{Slot: slot.Field, Method: redirect, Options: opts, Result: resultArg(opts, h.Result)}).Produce()
		if err != nil {
			return nil, err
		}
		body.Merge(f, body.IndexOf(callEnd)+1)
	}

	if h.Result != nil {
		// Transfers to the return, the cancel branch among them, now land on
		// the result load.
		body.InsertBefore(body.Len()-1, cil.NewInstruction(cil.LdLoc, h.Result))
	}
	body.UpdateOffsets()

	if err := cil.Verify(redirect); err != nil {
		return nil, fmt.Errorf("hooking %s: %w", m.FullName(), err)
	}
	log.Debugf("Hooked %s:\n%s", redirect.FullName(), cil.Disassemble(redirect))
	return h, nil
}

// splicePre merges the pre hook at the start of body. A cancellable hook is
// followed by a branch to the relocated call when the callback allows it, and
// to the return otherwise.
func splicePre(body *cil.Body, slot *Slot, m *cil.Method, opts emit.Options, result *cil.Variable) error {
	f, err := (&emit.HookCall{Slot: slot.Field, Method: m, Options: opts, Result: resultArg(opts, result)}).Produce()
	if err != nil {
		return err
	}
	ret := body.Len() - 1
	body.Merge(f, 0)
	if !opts.Cancellable {
		return nil
	}
	at := f.Len()
	_, err = body.Splice(at,
		cil.Op(cil.BrTrue, cil.HostTarget(at)),
		cil.Op(cil.Br, cil.HostTarget(ret+f.Len())),
	)
	return err
}

func resultArg(opts emit.Options, result *cil.Variable) *cil.Variable {
	if opts.AlterResult {
		return result
	}
	return nil
}

// newSlot creates the callback type and static slot of one hook of m.
func newSlot(t *cil.Type, kind string, m *cil.Method, opts emit.Options) (*Slot, error) {
	hooks := t.AddOrGetNestedType(HooksName, cil.TypeStatic)
	handlers := hooks.AddOrGetNestedType(HandlersName, cil.TypeStatic)

	sig, err := (&emit.CallbackSignature{Prefix: "On" + kind, Method: m, Options: opts}).Produce()
	if err != nil {
		return nil, err
	}
	cb, err := (&emit.Delegate{Signature: sig}).Produce()
	if err != nil {
		return nil, err
	}
	handlers.AddNestedType(cb)
	field := hooks.AddField(cil.NewField(kind+m.Name, cil.FieldStatic, cb))
	log.Debugf("Hook slot %s: %s", field.FullName(), sig)
	return &Slot{Kind: strings.ToLower(kind), Field: field, Callback: cb, Signature: sig}, nil
}

// rebind points call sites of old elsewhere in the module at redirect, so
// callers keep reaching the method by its original name.
func rebind(t *cil.Type, old, redirect *cil.Method) {
	visit := func(mth *cil.Method, _ int, ins *cil.Instruction) {
		if mth == redirect {
			return
		}
		switch ins.OpCode {
		case cil.Call, cil.CallVirt:
			if ins.Operand == cil.Operand(old) {
				ins.Operand = redirect
			}
		}
	}
	if t.Module != nil {
		t.Module.ForEachInstruction(visit)
		return
	}
	for _, mth := range t.Methods {
		if mth.HasBody() {
			for i, ins := range mth.Body.Instructions {
				visit(mth, i, ins)
			}
		}
	}
}

// Rebind points the call sites of the relocated original in another module
// at the redirect and returns how many it changed.
func (h *Hooked) Rebind(m *cil.Module) int {
	n := 0
	m.ForEachInstruction(func(mth *cil.Method, _ int, ins *cil.Instruction) {
		if mth == h.Redirect {
			return
		}
		if (ins.OpCode == cil.Call || ins.OpCode == cil.CallVirt) && ins.Operand == cil.Operand(h.Direct) {
			ins.Operand = h.Redirect
			n++
		}
	})
	return n
}
