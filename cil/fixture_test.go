package cil

// sampleModule builds a module with:
//
//	class Game.Foo {
//	    int Bar(int x)    { return x + 1; }
//	    int BarBaz()      { return 7; }
//	    void Other()      { }
//	    class Inner { }
//	}
func sampleModule() (*Module, *Type) {
	mod := NewModule("Game", "1.0.0.0")
	foo := mod.AddType(NewType("Game", "Foo", 0))
	foo.BaseType = Object

	bar := foo.AddMethod(NewMethod("Bar", 0, Int32))
	x := bar.AddParameter("x", Int32)
	bar.Body.Emit(LdArg, x)
	bar.Body.Emit(LdcI4, Int(1))
	bar.Body.Emit(Add, nil)
	bar.Body.Emit(Ret, nil)

	baz := foo.AddMethod(NewMethod("BarBaz", 0, Int32))
	baz.Body.Emit(LdcI4, Int(7))
	baz.Body.Emit(Ret, nil)

	other := foo.AddMethod(NewMethod("Other", 0, Void))
	other.Body.Emit(Ret, nil)

	foo.AddNestedType(NewType("", "Inner", 0))
	return mod, foo
}

func ops(b *Body) []OpCode {
	out := make([]OpCode, b.Len())
	for i, ins := range b.Instructions {
		out[i] = ins.OpCode
	}
	return out
}
