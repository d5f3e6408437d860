package cil

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModuleIdentity(t *testing.T) {
	mod := NewModule("Terraria", "1.3.5.3")
	assert.Equal(t, "Terraria, Version=1.3.5.3", mod.Identity())
	assert.NotEqual(t, NewModule("Terraria", "1.3.5.3").MVID, mod.MVID)
}

func TestTypeNames(t *testing.T) {
	mod, foo := sampleModule()
	inner := foo.NestedType("Inner")
	require.NotNil(t, inner)

	assert.Equal(t, "Game.Foo", foo.FullName())
	assert.Equal(t, "Game.Foo/Inner", inner.FullName())
	assert.Same(t, mod, inner.Module)
	assert.Same(t, inner, mod.Type("Game.Foo/Inner"))
	assert.Nil(t, mod.Type("Game.Missing"))

	_, err := mod.MustType("Game.Missing")
	assert.True(t, errors.Is(err, ErrResolution))
}

func TestMethodFullName(t *testing.T) {
	_, foo := sampleModule()
	bar, err := foo.Method("Bar")
	require.NoError(t, err)
	assert.Equal(t, "Game.Foo.Bar(System.Int32)", bar.FullName())
	assert.Equal(t, "System.Int32 Game.Foo.Bar(System.Int32)", bar.String())
	assert.Equal(t, 2, bar.StackPop())
	assert.Equal(t, 1, bar.StackPush())
}

func TestTypeLookups(t *testing.T) {
	_, foo := sampleModule()

	_, err := foo.Method("Nope")
	assert.True(t, errors.Is(err, ErrResolution))

	foo.AddMethod(NewMethod("Other", MethodStatic, Void))
	_, err = foo.Method("Other")
	assert.True(t, errors.Is(err, ErrConfiguration))

	assert.NotNil(t, foo.FindMethod("Bar", Int32))
	assert.Nil(t, foo.FindMethod("Bar"))

	_, err = foo.Field("missing")
	assert.True(t, errors.Is(err, ErrResolution))
}

func TestAddOrGetNestedType(t *testing.T) {
	_, foo := sampleModule()
	a := foo.AddOrGetNestedType("ModHooks", TypeStatic)
	b := foo.AddOrGetNestedType("ModHooks", 0)
	assert.Same(t, a, b)
	assert.Equal(t, TypeStatic, a.Attributes)
	assert.Len(t, foo.NestedTypes, 2)
}

func TestThisParameter(t *testing.T) {
	_, foo := sampleModule()
	bar, _ := foo.Method("Bar")
	this := bar.This()
	require.NotNil(t, this)
	assert.Same(t, this, bar.This())
	assert.Equal(t, -1, this.Index)
	assert.Same(t, foo, this.Type)

	static := NewMethod("S", MethodStatic, Void)
	assert.Nil(t, static.This())
}

func TestWalkOrder(t *testing.T) {
	mod, foo := sampleModule()
	second := mod.AddType(NewType("Game", "Second", 0))
	deep := foo.NestedType("Inner").AddNestedType(NewType("", "Deep", 0))

	var types []string
	mod.ForEachType(func(t *Type) { types = append(types, t.FullName()) })
	assert.Equal(t, []string{"Game.Foo", "Game.Foo/Inner", "Game.Foo/Inner/Deep", "Game.Second"}, types)
	assert.Same(t, mod, deep.Module)
	assert.Same(t, mod, second.Module)

	var methods []string
	mod.ForEachMethod(func(m *Method) { methods = append(methods, m.Name) })
	assert.Equal(t, []string{"Bar", "BarBaz", "Other"}, methods)

	count := 0
	mod.ForEachInstruction(func(m *Method, i int, ins *Instruction) {
		assert.Same(t, ins, m.Body.At(i))
		count++
	})
	assert.Equal(t, 7, count)
}

func TestSignatureMatches(t *testing.T) {
	_, foo := sampleModule()
	bar, _ := foo.Method("Bar")

	clone := bar.CloneSignature()
	assert.True(t, SignatureMatches(bar, clone))
	assert.True(t, ParametersMatch(bar, clone, false))
	assert.Equal(t, 0, clone.Body.Len())
	assert.NotSame(t, bar.Parameters[0], clone.Parameters[0])

	clone.Parameters[0].Name = "y"
	assert.False(t, ParametersMatch(bar, clone, false))
	assert.True(t, ParametersMatch(bar, clone, true))

	other := NewMethod("Bar", 0, Int64)
	other.AddParameter("x", Int32)
	assert.False(t, SignatureMatches(bar, other))
}

func TestTypeSignatureMatches(t *testing.T) {
	_, foo := sampleModule()
	iface := NewType("Game", "IFoo", TypeInterface|TypeAbstract)
	for _, m := range foo.Methods {
		c := m.CloneSignature()
		c.Attributes |= MethodAbstract | MethodVirtual
		c.Body = nil
		iface.AddMethod(c)
	}
	assert.True(t, TypeSignatureMatches(iface, foo))

	iface.Methods = iface.Methods[:1]
	assert.False(t, TypeSignatureMatches(iface, foo))
}

func TestAddReturn(t *testing.T) {
	m := NewMethod("F", MethodStatic, Int32)
	first := AddReturn(m)
	assert.Equal(t, 0, first)
	assert.Equal(t, []OpCode{LdLocA, InitObj, LdLoc, Ret}, ops(m.Body))
	require.Len(t, m.Body.Variables, 1)
	assert.NoError(t, Verify(m))

	v := NewMethod("G", MethodStatic, Void)
	AddReturn(v)
	assert.Equal(t, []OpCode{Ret}, ops(v.Body))
}

func TestDisassemble(t *testing.T) {
	m, _ := branchyBody()
	out := Disassemble(m)
	assert.Contains(t, out, "IL_0000: ldarg x")
	assert.Contains(t, out, "IL_0003: brtrue IL_000e")
	assert.Contains(t, out, "IL_000e: ldc.i4 1")
	assert.Equal(t, 7, strings.Count(out, "\n"))
}
