package hook

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/modder/cil"
	"github.com/chazu/modder/cil/ciltest"
	"github.com/chazu/modder/image"
	"github.com/chazu/modder/query"
	"github.com/chazu/modder/vm"
)

func hookOne(t *testing.T, mod *cil.Module, pattern string, flags Flags) *Hooked {
	t.Helper()
	res, err := query.Find(pattern, []*cil.Module{mod}, nil)
	require.NoError(t, err)
	hooked, err := Apply(res, flags)
	require.NoError(t, err)
	require.Len(t, hooked, 1)
	return hooked[0]
}

func ops(b *cil.Body) []cil.OpCode {
	var out []cil.OpCode
	for _, ins := range b.Instructions {
		out = append(out, ins.OpCode)
	}
	return out
}

func TestHookEndToEnd(t *testing.T) {
	mod := ciltest.Game()
	foo := ciltest.Foo(mod)
	h := hookOne(t, mod, "Game.Foo.Bar(System.Int32)", Default)

	assert.Equal(t, "BarDirect", h.Direct.Name)
	bar := ciltest.Method(foo, "Bar")
	assert.Same(t, h.Redirect, bar)
	assert.Same(t, h.Direct, ciltest.Method(foo, "BarDirect"))

	hooks := foo.NestedType(HooksName)
	require.NotNil(t, hooks)
	assert.Equal(t, cil.TypeStatic, hooks.Attributes&cil.TypeStatic)
	pre, err := hooks.Field("PreBar")
	require.NoError(t, err)
	post, err := hooks.Field("PostBar")
	require.NoError(t, err)
	assert.True(t, pre.IsStatic())
	assert.Equal(t, cil.Public, pre.Visibility)
	assert.Same(t, h.Pre.Field, pre)
	assert.Same(t, h.Post.Field, post)

	handlers := hooks.NestedType(HandlersName)
	require.NotNil(t, handlers)
	assert.Same(t, h.Pre.Callback, handlers.NestedType("OnPreBar"))
	assert.Same(t, h.Post.Callback, handlers.NestedType("OnPostBar"))

	assert.Equal(t, "System.Boolean Invoke(System.Int32& x, System.Int32& result)", h.Pre.Signature.String())
	assert.Equal(t, "System.Void Invoke(System.Int32 x, System.Int32& result)", h.Post.Signature.String())

	require.NoError(t, cil.Verify(bar))
	assert.Equal(t, []cil.OpCode{
		// pre hook
		cil.LdSFld, cil.Dup, cil.BrTrue, cil.Pop, cil.LdcI4, cil.Br,
		cil.LdArgA, cil.LdLocA, cil.CallVirt, cil.StLoc, cil.LdLoc,
		// cancel branch
		cil.BrTrue, cil.Br,
		// relocated call
		cil.LdArg, cil.LdArg, cil.Call, cil.StLoc,
		// post hook
		cil.LdSFld, cil.Dup, cil.BrTrue, cil.Pop, cil.Br, cil.LdArg, cil.LdLocA, cil.CallVirt, cil.Nop,
		// result
		cil.LdLoc, cil.Ret,
	}, ops(bar.Body))
	assert.Equal(t, cil.Target(13), bar.Body.At(11).Operand, "continue runs the relocated call")
	assert.Equal(t, cil.Target(26), bar.Body.At(12).Operand, "cancel loads the result")
	assert.Same(t, h.Direct, bar.Body.At(15).Operand)

	interp := vm.NewInterpreter()
	obj := vm.NewObject(foo)
	direct, err := interp.Call(h.Direct, obj, 5)
	require.NoError(t, err)
	got, err := interp.Call(bar, obj, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(11), got)
	assert.Equal(t, direct, got, "no subscribers means the original result")
}

func TestPreHookCancelsWithResult(t *testing.T) {
	mod := ciltest.Game()
	foo := ciltest.Foo(mod)
	h := hookOne(t, mod, "Game.Foo.Bar(*)", Default)

	interp := vm.NewInterpreter()
	postCalled := false
	interp.SetStatic(h.Pre.Field, vm.NewDelegate(h.Pre.Callback, func(args []vm.Value) vm.Value {
		args[1].(*vm.Ref).Store(int64(99))
		return false
	}))
	interp.SetStatic(h.Post.Field, vm.NewDelegate(h.Post.Callback, func(args []vm.Value) vm.Value {
		postCalled = true
		return nil
	}))

	got, err := interp.Call(h.Redirect, vm.NewObject(foo), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(99), got)
	assert.False(t, postCalled, "cancelling skips the original and the post hook")
}

func TestPreHookRewritesArguments(t *testing.T) {
	mod := ciltest.Game()
	foo := ciltest.Foo(mod)
	h := hookOne(t, mod, "Game.Foo.Bar(*)", Default)

	interp := vm.NewInterpreter()
	interp.SetStatic(h.Pre.Field, vm.NewDelegate(h.Pre.Callback, func(args []vm.Value) vm.Value {
		args[0].(*vm.Ref).Store(int64(10))
		return true
	}))
	var seen []vm.Value
	interp.SetStatic(h.Post.Field, vm.NewDelegate(h.Post.Callback, func(args []vm.Value) vm.Value {
		seen = []vm.Value{args[0], args[1].(*vm.Ref).Load()}
		args[1].(*vm.Ref).Store(int64(-1))
		return nil
	}))

	got, err := interp.Call(h.Redirect, vm.NewObject(foo), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), got, "post hook rewrote the result")
	assert.Equal(t, []vm.Value{int64(10), int64(21)}, seen, "post hook observes the rewritten argument")
}

func TestHookVoidMethod(t *testing.T) {
	mod := ciltest.Game()
	foo := ciltest.Foo(mod)
	h := hookOne(t, mod, "Game.Foo.Other()", Default)
	assert.Nil(t, h.Result)
	assert.Equal(t, "System.Boolean Invoke()", h.Pre.Signature.String())
	assert.Equal(t, "System.Void Invoke()", h.Post.Signature.String())
	require.NoError(t, cil.Verify(h.Redirect))

	count, err := foo.Field("count")
	require.NoError(t, err)
	interp := vm.NewInterpreter()
	obj := vm.NewObject(foo)

	_, err = interp.Call(h.Redirect, obj)
	require.NoError(t, err)
	assert.Equal(t, int64(1), obj.Fields[count])

	interp.SetStatic(h.Pre.Field, vm.NewDelegate(h.Pre.Callback, func([]vm.Value) vm.Value { return false }))
	_, err = interp.Call(h.Redirect, obj)
	require.NoError(t, err)
	assert.Equal(t, int64(1), obj.Fields[count], "cancelled")
}

func TestHookStaticMethod(t *testing.T) {
	mod := ciltest.Game()
	h := hookOne(t, mod, "Game.Foo.Twice(*)", Pre|Post)
	assert.Equal(t, "System.Void Invoke(System.Int32 v)", h.Pre.Signature.String())
	require.NoError(t, cil.Verify(h.Redirect))

	got, err := vm.NewInterpreter().Call(h.Redirect, nil, 8)
	require.NoError(t, err)
	assert.Equal(t, int64(16), got)
}

func TestHookWithoutHooks(t *testing.T) {
	mod := ciltest.Game()
	foo := ciltest.Foo(mod)
	h := hookOne(t, mod, "Game.Foo.Bar(*)", None)
	assert.Empty(t, h.Slots())
	assert.Nil(t, foo.NestedType(HooksName))
	assert.Equal(t, []cil.OpCode{cil.LdArg, cil.LdArg, cil.Call, cil.StLoc, cil.LdLoc, cil.Ret}, ops(h.Redirect.Body))
}

func TestHookedMethodKeepsDispatchSlot(t *testing.T) {
	mod := ciltest.Game()
	foo := ciltest.Foo(mod)
	bar := ciltest.Method(foo, "Bar")
	bar.Attributes |= cil.MethodVirtual | cil.MethodNewSlot

	h := hookOne(t, mod, "Game.Foo.Bar(*)", Pre)
	assert.True(t, h.Redirect.IsVirtual())
	assert.False(t, h.Direct.IsVirtual())
}

func TestCallersFollowTheRedirect(t *testing.T) {
	mod := ciltest.Game()
	foo := ciltest.Foo(mod)
	bar := ciltest.Method(foo, "Bar")
	caller := foo.AddMethod(cil.NewMethod("CallsBar", 0, cil.Int32))
	_, err := caller.Body.Append(
		cil.Op(cil.LdArg, caller.This()),
		cil.Op(cil.LdcI4, cil.Int(3)),
		cil.Op(cil.Call, bar),
		cil.Op(cil.Ret),
	)
	require.NoError(t, err)

	h := hookOne(t, mod, "Game.Foo.Bar(*)", Pre|AlterResult|Cancellable)
	assert.Same(t, h.Redirect, caller.Body.At(2).Operand)

	interp := vm.NewInterpreter()
	interp.SetStatic(h.Pre.Field, vm.NewDelegate(h.Pre.Callback, func(args []vm.Value) vm.Value {
		args[1].(*vm.Ref).Store(int64(1000))
		return false
	}))
	got, err := interp.Call(caller, vm.NewObject(foo))
	require.NoError(t, err)
	assert.Equal(t, int64(1000), got)
}

func TestRebindOtherModule(t *testing.T) {
	mod := ciltest.Game()
	twice := ciltest.Method(ciltest.Foo(mod), "Twice")

	app := cil.NewModule("App", "1.0.0.0")
	main := app.AddType(cil.NewType("App", "Main", 0))
	run := main.AddMethod(cil.NewMethod("Run", cil.MethodStatic, cil.Int32))
	_, err := run.Body.Append(
		cil.Op(cil.LdcI4, cil.Int(4)),
		cil.Op(cil.Call, twice),
		cil.Op(cil.Ret),
	)
	require.NoError(t, err)

	h := hookOne(t, mod, "Game.Foo.Twice(*)", Pre)
	assert.Same(t, h.Direct, run.Body.At(1).Operand, "other modules are left alone")

	assert.Equal(t, 1, h.Rebind(app))
	assert.Same(t, h.Redirect, run.Body.At(1).Operand)
	assert.Zero(t, h.Rebind(app))

	got, err := vm.NewInterpreter().Call(run, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(8), got)
}

func TestCancelNonVoidWithoutAlterIsFatal(t *testing.T) {
	mod := ciltest.Game()
	foo := ciltest.Foo(mod)
	res, err := query.Find("Game.Foo.Other()&&Game.Foo.Bar(*)", []*cil.Module{mod}, nil)
	require.NoError(t, err)
	require.Equal(t, 2, res.Len())

	_, err = Apply(res, Pre|Cancellable)
	require.Error(t, err)
	assert.True(t, errors.Is(err, cil.ErrConfiguration))
	assert.Contains(t, err.Error(), "without allowing the callback to alter the result")

	// Nothing was touched, not even the valid first match.
	_, err = foo.Method("Other")
	assert.NoError(t, err)
	_, err = foo.Method("OtherDirect")
	assert.True(t, errors.Is(err, cil.ErrResolution))
	assert.Nil(t, foo.NestedType(HooksName))

	// Post hooks are never cancellable, so the same method hooks fine.
	h := hookOne(t, mod, "Game.Foo.Bar(*)", Post|Cancellable)
	assert.Nil(t, h.Pre)
}

// addOverload gives Game.Foo a second Bar taking a string.
func addOverload(foo *cil.Type) *cil.Method {
	bar := foo.AddMethod(cil.NewMethod("Bar", 0, cil.Int32))
	bar.AddParameter("s", cil.String)
	bar.Body.Emit(cil.LdcI4, cil.Int(0))
	bar.Body.Emit(cil.Ret, nil)
	return bar
}

func TestOverloadsAreRejectedTogether(t *testing.T) {
	mod := ciltest.Game()
	foo := ciltest.Foo(mod)
	addOverload(foo)
	methods := len(foo.Methods)

	res, err := query.Find("Game.Foo.Bar(*)", []*cil.Module{mod}, nil)
	require.NoError(t, err)
	require.Len(t, res.Methods(), 2)

	_, err = Apply(res, Default)
	require.Error(t, err)
	assert.True(t, errors.Is(err, cil.ErrConfiguration))
	assert.Contains(t, err.Error(), "share hook slots")
	assert.Len(t, foo.Methods, methods)
	assert.Nil(t, foo.NestedType(HooksName))

	// Without slots there is nothing to clash.
	hooked, err := Apply(res, None)
	require.NoError(t, err)
	assert.Len(t, hooked, 2)
}

func TestHookedOverloadRoundTrips(t *testing.T) {
	mod := ciltest.Game()
	foo := ciltest.Foo(mod)
	addOverload(foo)

	hookOne(t, mod, "Game.Foo.Bar(System.Int32)", Default)

	// The other overload would reuse PreBar and PostBar.
	res, err := query.Find("Game.Foo.Bar(System.String)", []*cil.Module{mod}, nil)
	require.NoError(t, err)
	_, err = Apply(res, Pre)
	assert.True(t, errors.Is(err, cil.ErrConfiguration))

	data, err := image.Marshal(mod)
	require.NoError(t, err)
	loaded, err := image.Unmarshal(data, nil)
	require.NoError(t, err)

	lfoo := ciltest.Foo(loaded)
	hooks := lfoo.NestedType(HooksName)
	require.NotNil(t, hooks)
	assert.Len(t, hooks.Fields, 2)

	bar := lfoo.FindMethod("Bar", cil.Int32)
	require.NotNil(t, bar)
	got, err := vm.NewInterpreter().Call(bar, vm.NewObject(lfoo), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(11), got)
}

func TestValidateRejects(t *testing.T) {
	foo := ciltest.Foo(ciltest.Game())
	ctor := ciltest.Method(foo, cil.CtorName)
	assert.True(t, errors.Is(Validate(ctor, Default), cil.ErrConfiguration))

	abstract := foo.AddMethod(cil.NewMethod("Abstract", cil.MethodAbstract|cil.MethodVirtual, cil.Void))
	assert.True(t, errors.Is(Validate(abstract, Default), cil.ErrConfiguration))

	loose := cil.NewMethod("Loose", 0, cil.Void)
	assert.True(t, errors.Is(Validate(loose, Default), cil.ErrConfiguration))
}

func TestDuplicateSelectionIsRejected(t *testing.T) {
	mod := ciltest.Game()
	foo := ciltest.Foo(mod)
	methods := len(foo.Methods)

	res, err := query.Find("Game.Foo.Bar(*)&&Game.Foo.Bar(*)", []*cil.Module{mod}, nil)
	require.NoError(t, err)
	require.Len(t, res.Methods(), 2)

	for _, flags := range []Flags{Default, None} {
		_, err = Apply(res, flags)
		require.Error(t, err)
		assert.True(t, errors.Is(err, cil.ErrConfiguration))
		assert.Contains(t, err.Error(), "selected more than once")
	}
	assert.Len(t, foo.Methods, methods)
	_, err = foo.Method("BarDirect")
	assert.True(t, errors.Is(err, cil.ErrResolution))
}

// Hooking the same method twice is not supported. The second attempt is
// rejected before anything changes instead of nesting redirects.
func TestReapplyIsRejected(t *testing.T) {
	mod := ciltest.Game()
	foo := ciltest.Foo(mod)
	h := hookOne(t, mod, "Game.Foo.Bar(*)", Default)
	before := ops(h.Redirect.Body)
	methods := len(foo.Methods)

	_, err := Method(h.Redirect, Default)
	require.Error(t, err)
	assert.True(t, errors.Is(err, cil.ErrConfiguration))
	assert.Contains(t, err.Error(), "already hooked")

	assert.Equal(t, before, ops(h.Redirect.Body))
	assert.Len(t, foo.Methods, methods)
	assert.NoError(t, cil.Verify(h.Redirect))

	// The relocated original matches "Bar*" too; hooking it as well nests a
	// second redirect, which still verifies.
	res, err := query.Find("Game.Foo.BarDirect(*)", []*cil.Module{mod}, nil)
	require.NoError(t, err)
	nested, err := Apply(res, Post)
	require.NoError(t, err)
	require.Len(t, nested, 1)
	assert.Equal(t, "BarDirectDirect", nested[0].Direct.Name)
	assert.NoError(t, cil.Verify(h.Redirect))

	got, err := vm.NewInterpreter().Call(h.Redirect, vm.NewObject(foo), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(11), got)
}

func TestApplySkipsNonMethods(t *testing.T) {
	mod := ciltest.Game()
	res, err := query.Find("Game.Foo.Bar*", []*cil.Module{mod}, nil)
	require.NoError(t, err)
	res.Matches = append(res.Matches, query.Match{Module: mod, Key: "Game.Foo", Member: ciltest.Foo(mod)})

	hooked, err := Apply(res, Pre|Post)
	require.NoError(t, err)
	assert.Len(t, hooked, 2)
	assert.Equal(t, []string{"BarDirect", "BarBazDirect"}, []string{hooked[0].Direct.Name, hooked[1].Direct.Name})
}
