// Package ciltest builds small in-memory modules for tests.
package ciltest

import "github.com/chazu/modder/cil"

// Game builds the module used across the test suites:
//
//	namespace Game {
//	    class Foo {
//	        int    count;
//	        const  int Max = 10;
//	        event  Changed;          // backed by private field Changed
//	        int    Count { get; set; }
//
//	        int  Bar(int x)     { return x * 2 + 1; }
//	        int  BarBaz()       { return 7; }
//	        void Other()        { count = count + 1; }
//	        static int Twice(int v) { return v + v; }
//	        void SetLabel(string s, ref int n) { n = n + 1; }
//
//	        class Inner { private void Hidden() { } }
//	    }
//	}
func Game() *cil.Module {
	mod := cil.NewModule("Game", "1.0.0.0")
	foo := mod.AddType(cil.NewType("Game", "Foo", 0))
	foo.BaseType = cil.Object

	count := foo.AddField(cil.NewField("count", 0, cil.Int32))
	count.Visibility = cil.Private
	foo.AddField(cil.NewConstant("Max", cil.Int32, int64(10)))

	changedField := foo.AddField(cil.NewField("Changed", 0, cil.Object))
	changedField.Visibility = cil.Private
	foo.AddEvent(&cil.Event{Name: "Changed", Type: cil.Object})

	ctor := foo.AddMethod(cil.NewMethod(cil.CtorName, cil.MethodSpecialName|cil.MethodRTSpecialName, cil.Void))
	ctor.Body.Emit(cil.Ret, nil)

	bar := foo.AddMethod(cil.NewMethod("Bar", 0, cil.Int32))
	x := bar.AddParameter("x", cil.Int32)
	bar.Body.Emit(cil.LdArg, x)
	bar.Body.Emit(cil.LdcI4, cil.Int(2))
	bar.Body.Emit(cil.Mul, nil)
	bar.Body.Emit(cil.LdcI4, cil.Int(1))
	bar.Body.Emit(cil.Add, nil)
	bar.Body.Emit(cil.Ret, nil)

	baz := foo.AddMethod(cil.NewMethod("BarBaz", 0, cil.Int32))
	baz.Body.Emit(cil.LdcI4, cil.Int(7))
	baz.Body.Emit(cil.Ret, nil)

	other := foo.AddMethod(cil.NewMethod("Other", 0, cil.Void))
	other.Body.Emit(cil.LdArg, other.This())
	other.Body.Emit(cil.LdArg, other.This())
	other.Body.Emit(cil.LdFld, count)
	other.Body.Emit(cil.LdcI4, cil.Int(1))
	other.Body.Emit(cil.Add, nil)
	other.Body.Emit(cil.StFld, count)
	other.Body.Emit(cil.Ret, nil)

	twice := foo.AddMethod(cil.NewMethod("Twice", cil.MethodStatic, cil.Int32))
	v := twice.AddParameter("v", cil.Int32)
	twice.Body.Emit(cil.LdArg, v)
	twice.Body.Emit(cil.LdArg, v)
	twice.Body.Emit(cil.Add, nil)
	twice.Body.Emit(cil.Ret, nil)

	setLabel := foo.AddMethod(cil.NewMethod("SetLabel", 0, cil.Void))
	setLabel.AddParameter("s", cil.String)
	n := setLabel.AddParameter("n", cil.ByRef(cil.Int32))
	setLabel.Body.Emit(cil.LdArg, n)
	setLabel.Body.Emit(cil.LdArg, n)
	setLabel.Body.Emit(cil.LdInd, nil)
	setLabel.Body.Emit(cil.LdcI4, cil.Int(1))
	setLabel.Body.Emit(cil.Add, nil)
	setLabel.Body.Emit(cil.StInd, nil)
	setLabel.Body.Emit(cil.Ret, nil)

	getCount := foo.AddMethod(cil.NewMethod("get_Count", cil.MethodSpecialName, cil.Int32))
	getCount.Body.Emit(cil.LdArg, getCount.This())
	getCount.Body.Emit(cil.LdFld, count)
	getCount.Body.Emit(cil.Ret, nil)
	setCount := foo.AddMethod(cil.NewMethod("set_Count", cil.MethodSpecialName, cil.Void))
	value := setCount.AddParameter("value", cil.Int32)
	setCount.Body.Emit(cil.LdArg, setCount.This())
	setCount.Body.Emit(cil.LdArg, value)
	setCount.Body.Emit(cil.StFld, count)
	setCount.Body.Emit(cil.Ret, nil)
	foo.AddProperty(&cil.Property{Name: "Count", Type: cil.Int32, Getter: getCount, Setter: setCount})

	inner := foo.AddNestedType(cil.NewType("", "Inner", 0))
	inner.Visibility = cil.Private
	inner.BaseType = cil.Object
	hidden := inner.AddMethod(cil.NewMethod("Hidden", 0, cil.Void))
	hidden.Visibility = cil.Private
	hidden.Body.Emit(cil.Ret, nil)

	return mod
}

// Named builds a module holding a single empty public class per type name.
// Each class gets one void method called Run.
func Named(module string, types ...string) *cil.Module {
	mod := cil.NewModule(module, "1.0.0.0")
	for _, name := range types {
		t := mod.AddType(cil.NewType(module, name, 0))
		t.BaseType = cil.Object
		run := t.AddMethod(cil.NewMethod("Run", 0, cil.Void))
		run.Body.Emit(cil.Ret, nil)
	}
	return mod
}

// Foo returns the Game.Foo type of a module built by Game.
func Foo(mod *cil.Module) *cil.Type {
	return mod.Type("Game.Foo")
}

// Method returns the named method of t and panics when it is missing.
func Method(t *cil.Type, name string) *cil.Method {
	m, err := t.Method(name)
	if err != nil {
		panic(err)
	}
	return m
}
