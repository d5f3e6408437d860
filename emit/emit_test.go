package emit

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/modder/cil"
	"github.com/chazu/modder/cil/ciltest"
)

func opsOf(f *cil.Fragment) []cil.OpCode {
	var out []cil.OpCode
	for _, ins := range f.Instructions {
		out = append(out, ins.OpCode)
	}
	return out
}

func signature(t *testing.T, m *cil.Method, opts Options) *Signature {
	t.Helper()
	sig, err := (&CallbackSignature{Prefix: "OnPre", Method: m, Options: opts}).Produce()
	require.NoError(t, err)
	return sig
}

func TestCallbackSignature(t *testing.T) {
	foo := ciltest.Foo(ciltest.Game())
	bar := ciltest.Method(foo, "Bar")
	other := ciltest.Method(foo, "Other")
	setLabel := ciltest.Method(foo, "SetLabel")

	tests := []struct {
		name   string
		method *cil.Method
		opts   Options
		want   string
	}{
		{"plain", bar, Options{}, "System.Void Invoke(System.Int32 x)"},
		{"reference parameters", bar, Options{ReferenceParameters: true}, "System.Void Invoke(System.Int32& x)"},
		{"alter result", bar, Options{AlterResult: true}, "System.Void Invoke(System.Int32 x, System.Int32& result)"},
		{"all", bar, Options{ReferenceParameters: true, AlterResult: true, Cancellable: true},
			"System.Boolean Invoke(System.Int32& x, System.Int32& result)"},
		{"void ignores alter result", other, Options{AlterResult: true, Cancellable: true}, "System.Boolean Invoke()"},
		{"reference types stay", setLabel, Options{ReferenceParameters: true},
			"System.Void Invoke(System.String s, System.Int32& n)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := signature(t, tt.method, tt.opts)
			assert.Equal(t, "OnPre"+tt.method.Name, sig.Name)
			assert.Equal(t, tt.want, sig.String())
		})
	}

	_, err := (&CallbackSignature{}).Produce()
	assert.True(t, errors.Is(err, cil.ErrConfiguration))
}

func TestCallbackRegistersDelegate(t *testing.T) {
	mod := ciltest.Game()
	foo := ciltest.Foo(mod)
	container := foo.AddOrGetNestedType("ModHandlers", cil.TypeStatic)

	cb, err := (&Callback{
		Prefix:    "OnPre",
		Method:    ciltest.Method(foo, "Bar"),
		Options:   Options{Cancellable: true},
		Container: container,
	}).Produce()
	require.NoError(t, err)

	assert.Same(t, cb, container.NestedType("OnPreBar"))
	assert.Equal(t, "Game.Foo/ModHandlers/OnPreBar", cb.FullName())
	assert.True(t, cb.IsDelegate())
	assert.Same(t, mod, cb.Module)

	invoke, err := InvokeMethod(cb)
	require.NoError(t, err)
	assert.False(t, invoke.HasBody(), "runtime implemented")
	assert.True(t, invoke.IsVirtual())
	assert.Equal(t, cil.Boolean, invoke.ReturnType)
	require.Len(t, invoke.Parameters, 1)

	ctor, err := cb.Method(cil.CtorName)
	require.NoError(t, err)
	require.Len(t, ctor.Parameters, 2)
	assert.Equal(t, cil.IntPtr, ctor.Parameters[1].Type)

	_, err = InvokeMethod(foo)
	assert.True(t, errors.Is(err, cil.ErrResolution))
}

// hookFixture builds a callback type and static slot for a hook on m.
func hookFixture(t *testing.T, m *cil.Method, opts Options) *cil.Field {
	t.Helper()
	holder := m.DeclaringType.AddOrGetNestedType("ModHooks", cil.TypeStatic)
	cb, err := (&Callback{Prefix: "OnPre", Method: m, Options: opts, Container: holder}).Produce()
	require.NoError(t, err)
	return holder.AddField(cil.NewField("Pre"+m.Name, cil.FieldStatic, cb))
}

func TestHookCallCancellable(t *testing.T) {
	foo := ciltest.Foo(ciltest.Game())
	bar := ciltest.Method(foo, "Bar")
	opts := Options{ReferenceParameters: true, AlterResult: true, Cancellable: true}
	slot := hookFixture(t, bar, opts)
	result := cil.NewVariable("result", cil.Int32)

	f, err := (&HookCall{Slot: slot, Method: bar, Options: opts, Result: result}).Produce()
	require.NoError(t, err)
	assert.Equal(t, []cil.OpCode{
		cil.LdSFld, cil.Dup, cil.BrTrue, cil.Pop, cil.LdcI4, cil.Br,
		cil.LdArgA, cil.LdLocA, cil.CallVirt, cil.StLoc, cil.LdLoc,
	}, opsOf(f))
	assert.Equal(t, cil.Target(6), f.Instructions[2].Operand, "brtrue lands on the first argument")
	assert.Equal(t, cil.Target(9), f.Instructions[5].Operand, "null path stores the default verdict")
	assert.Same(t, result, f.Instructions[7].Operand)

	require.Len(t, f.Variables, 2)
	assert.Equal(t, ContinueName, f.Variables[1].Name)
}

func TestHookCallPlain(t *testing.T) {
	foo := ciltest.Foo(ciltest.Game())
	bar := ciltest.Method(foo, "Bar")
	slot := hookFixture(t, bar, Options{})

	f, err := (&HookCall{Slot: slot, Method: bar}).Produce()
	require.NoError(t, err)
	assert.Equal(t, []cil.OpCode{
		cil.LdSFld, cil.Dup, cil.BrTrue, cil.Pop, cil.Br, cil.LdArg, cil.CallVirt, cil.Nop,
	}, opsOf(f))
	assert.Equal(t, cil.Target(7), f.Instructions[4].Operand)

	// The fragment must leave the stack balanced on both paths.
	host := cil.NewMethod("Host", cil.MethodStatic, cil.Void)
	host.AddParameter("x", cil.Int32)
	f, err = (&HookCall{Slot: slot, Method: host}).Produce()
	require.NoError(t, err)
	host.Body.Merge(f, 0)
	host.Body.Emit(cil.Ret, nil)
	assert.NoError(t, cil.Verify(host))
}

func TestHookCallNoArguments(t *testing.T) {
	foo := ciltest.Foo(ciltest.Game())
	other := ciltest.Method(foo, "Other")
	slot := hookFixture(t, other, Options{Cancellable: true})

	f, err := (&HookCall{Slot: slot, Method: other, Options: Options{Cancellable: true}}).Produce()
	require.NoError(t, err)
	assert.Equal(t, cil.Target(6), f.Instructions[2].Operand, "invoke label binds the callvirt")
	assert.Equal(t, cil.CallVirt, f.Instructions[6].OpCode)
}

func TestHookCallMismatch(t *testing.T) {
	foo := ciltest.Foo(ciltest.Game())
	bar := ciltest.Method(foo, "Bar")
	slot := hookFixture(t, bar, Options{AlterResult: true})

	_, err := (&HookCall{Slot: slot, Method: bar}).Produce()
	assert.True(t, errors.Is(err, cil.ErrConfiguration), "result argument missing")

	_, err = (&HookCall{Slot: slot, Method: bar, Options: Options{Cancellable: true},
		Result: cil.NewVariable("r", cil.Int32)}).Produce()
	assert.True(t, errors.Is(err, cil.ErrConfiguration), "callback does not return a verdict")

	_, err = (&HookCall{Method: bar}).Produce()
	assert.True(t, errors.Is(err, cil.ErrConfiguration))
}

func TestRelocatedCall(t *testing.T) {
	foo := ciltest.Foo(ciltest.Game())
	bar := ciltest.Method(foo, "Bar")
	clone := foo.AddMethod(bar.CloneSignature())

	f, err := (&RelocatedCall{Caller: clone, Callee: bar}).Produce()
	require.NoError(t, err)
	assert.Equal(t, []cil.OpCode{cil.LdArg, cil.LdArg, cil.Call, cil.Pop}, opsOf(f))
	assert.Same(t, clone.This(), f.Instructions[0].Operand)
	assert.Same(t, clone.Parameters[0], f.Instructions[1].Operand)
	assert.Same(t, bar, f.Instructions[2].Operand)

	twice := ciltest.Method(foo, "Twice")
	f, err = (&RelocatedCall{Caller: twice.CloneSignature(), Callee: twice}).Produce()
	require.NoError(t, err)
	assert.Equal(t, []cil.OpCode{cil.LdArg, cil.Call, cil.Pop}, opsOf(f), "static methods have no receiver")

	other := ciltest.Method(foo, "Other")
	f, err = (&RelocatedCall{Caller: other.CloneSignature(), Callee: other}).Produce()
	require.NoError(t, err)
	assert.Equal(t, []cil.OpCode{cil.LdArg, cil.Call}, opsOf(f))

	_, err = (&RelocatedCall{Caller: other, Callee: bar}).Produce()
	assert.True(t, errors.Is(err, cil.ErrConfiguration))
}

func TestInterface(t *testing.T) {
	foo := ciltest.Foo(ciltest.Game())

	iface, err := (&Interface{Type: foo}).Produce()
	require.NoError(t, err)
	assert.Equal(t, "Game.IFoo", iface.FullName())
	assert.True(t, iface.IsInterface())
	assert.Nil(t, iface.Module, "returned unattached")

	var names []string
	for _, m := range iface.Methods {
		names = append(names, m.Name)
		assert.True(t, m.IsAbstract())
		assert.True(t, m.IsVirtual())
		assert.False(t, m.HasBody())
	}
	assert.Equal(t, []string{"Bar", "BarBaz", "Other", "SetLabel", "get_Count", "set_Count"}, names)

	count := iface.Property("Count")
	require.NotNil(t, count)
	assert.Equal(t, "get_Count", count.Getter.Name)
	assert.Same(t, iface, count.Getter.DeclaringType)

	named, err := (&Interface{Type: foo, Namespace: "Api", Name: "ITile"}).Produce()
	require.NoError(t, err)
	assert.Equal(t, "Api.ITile", named.FullName())

	_, err = (&Interface{Type: iface}).Produce()
	assert.True(t, errors.Is(err, cil.ErrConfiguration))
}
