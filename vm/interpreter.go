package vm

import (
	"errors"
	"fmt"

	"github.com/chazu/modder/cil"
)

// ErrRuntime is wrapped by every evaluation failure that is not a thrown
// exception.
var ErrRuntime = errors.New("runtime error")

// Error reports a malformed body or an unsupported operation met while
// executing it.
type Error struct {
	Method  *cil.Method
	Index   int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s at IL index %d: %s", e.Method.FullName(), e.Index, e.Message)
}

func (e *Error) Unwrap() error { return ErrRuntime }

// Exception is a thrown value no handler caught.
type Exception struct {
	Value  Value
	Method *cil.Method
}

func (e *Exception) Error() string {
	return fmt.Sprintf("unhandled exception %v thrown in %s", e.Value, e.Method.FullName())
}

// ---------------------------------------------------------------------------
// Frame: execution state of one method invocation
// ---------------------------------------------------------------------------

// Frame is the execution state of a single method invocation.
type Frame struct {
	Method *cil.Method
	This   Value
	Args   []Value
	Locals []Value
	IP     int // index of the next instruction

	stack   []Value
	leaving []*leave
}

// leave is a transfer out of protected regions waiting for finally handlers.
type leave struct {
	target    int
	finallies []*cil.ExceptionHandler
}

func (f *Frame) push(v Value) {
	f.stack = append(f.stack, v)
}

func (f *Frame) pop() Value {
	if len(f.stack) == 0 {
		panic(&Error{Method: f.Method, Index: f.IP - 1, Message: "stack underflow"})
	}
	v := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return v
}

func (f *Frame) popN(n int) []Value {
	if len(f.stack) < n {
		panic(&Error{Method: f.Method, Index: f.IP - 1, Message: "stack underflow"})
	}
	out := make([]Value, n)
	copy(out, f.stack[len(f.stack)-n:])
	f.stack = f.stack[:len(f.stack)-n]
	return out
}

func (f *Frame) arg(p *cil.Parameter) Value {
	if p.Index < 0 {
		return f.This
	}
	return f.Args[p.Index]
}

func (f *Frame) argRef(p *cil.Parameter) *Ref {
	if p.Index < 0 {
		return &Ref{
			load:  func() Value { return f.This },
			store: func(v Value) { f.This = v },
		}
	}
	return slotRef(f.Args, p.Index)
}

// ---------------------------------------------------------------------------
// Interpreter
// ---------------------------------------------------------------------------

// Interpreter executes method bodies against an in-memory module graph.
// Static fields live in the interpreter, so hook slots are assigned through
// SetStatic. Finally handlers run on leave; an exception unwinds straight to
// the nearest matching catch handler.
type Interpreter struct {
	Statics map[*cil.Field]Value

	// MaxDepth bounds the call depth, MaxSteps the instructions executed per
	// Call. Zero disables a bound.
	MaxDepth int
	MaxSteps int

	depth int
	steps int
}

// NewInterpreter creates an interpreter with empty statics.
func NewInterpreter() *Interpreter {
	return &Interpreter{
		Statics:  map[*cil.Field]Value{},
		MaxDepth: 256,
		MaxSteps: 1_000_000,
	}
}

// Static returns the value of a static field. Constants yield their value.
func (i *Interpreter) Static(f *cil.Field) Value {
	if f.HasConstant {
		return normalize(f.Constant)
	}
	if v, ok := i.Statics[f]; ok {
		return v
	}
	return Zero(f.Type)
}

// SetStatic assigns a static field.
func (i *Interpreter) SetStatic(f *cil.Field, v Value) {
	i.Statics[f] = v
}

// Call runs m with receiver this, ignored for static methods, and args.
func (i *Interpreter) Call(m *cil.Method, this Value, args ...Value) (result Value, err error) {
	i.steps = 0
	i.depth = 0
	defer func() {
		if r := recover(); r != nil {
			switch e := r.(type) {
			case *Error:
				err = e
			case *Exception:
				err = e
			default:
				panic(r)
			}
		}
	}()
	normalized := make([]Value, len(args))
	for n, a := range args {
		normalized[n] = normalize(a)
	}
	return i.invoke(m, this, normalized), nil
}

func (i *Interpreter) invoke(m *cil.Method, this Value, args []Value) Value {
	if d, ok := this.(*Delegate); ok && !m.HasBody() && m.Name == "Invoke" {
		ret := d.Fn(args)
		if m.ReturnsValue() {
			return normalize(ret)
		}
		return nil
	}
	if !m.HasBody() {
		panic(&Error{Method: m, Message: "method has no body"})
	}
	if len(args) != len(m.Parameters) {
		panic(&Error{Method: m, Message: fmt.Sprintf("takes %d argument(s), got %d", len(m.Parameters), len(args))})
	}

	i.depth++
	defer func() { i.depth-- }()
	if i.MaxDepth > 0 && i.depth > i.MaxDepth {
		panic(&Error{Method: m, Message: "call depth exceeded"})
	}

	f := &Frame{Method: m, This: this, Args: args}
	for _, v := range m.Body.Variables {
		f.Locals = append(f.Locals, Zero(v.Type))
	}
	return i.run(f)
}

// guarded invokes m and hands back an exception instead of unwinding, so the
// calling frame can look for a handler.
func (i *Interpreter) guarded(m *cil.Method, this Value, args []Value) (ret Value, exc *Exception) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(*Exception); ok {
				exc = e
				return
			}
			panic(r)
		}
	}()
	return i.invoke(m, this, args), nil
}

// throw raises v at index of f.
func (i *Interpreter) throw(f *Frame, index int, v Value) {
	i.raise(f, index, &Exception{Value: v, Method: f.Method})
}

// raise transfers control to the first catch handler of f protecting index,
// or unwinds the frame.
func (i *Interpreter) raise(f *Frame, index int, exc *Exception) {
	for _, h := range f.Method.Body.Handlers {
		if h.Kind != cil.HandlerCatch || index < h.TryStart || index >= h.TryEnd {
			continue
		}
		if h.CatchType != nil && !isInstance(exc.Value, h.CatchType) {
			continue
		}
		f.stack = f.stack[:0]
		f.leaving = nil
		f.push(exc.Value)
		f.IP = h.HandlerStart
		return
	}
	panic(exc)
}

func (i *Interpreter) fail(f *Frame, index int, format string, args ...any) {
	panic(&Error{Method: f.Method, Index: index, Message: fmt.Sprintf(format, args...)})
}

// ---------------------------------------------------------------------------
// Main loop
// ---------------------------------------------------------------------------

func (i *Interpreter) run(f *Frame) Value {
	body := f.Method.Body
	for {
		if f.IP < 0 || f.IP >= len(body.Instructions) {
			i.fail(f, f.IP, "execution left the body")
		}
		i.steps++
		if i.MaxSteps > 0 && i.steps > i.MaxSteps {
			i.fail(f, f.IP, "step limit exceeded")
		}

		index := f.IP
		ins := body.Instructions[index]
		f.IP++

		switch ins.OpCode {
		case cil.Nop:

		// Arguments, locals and constants
		case cil.LdArg:
			f.push(f.arg(ins.Operand.(*cil.Parameter)))
		case cil.LdArgA:
			f.push(f.argRef(ins.Operand.(*cil.Parameter)))
		case cil.StArg:
			p := ins.Operand.(*cil.Parameter)
			f.argRef(p).Store(f.pop())
		case cil.LdLoc:
			f.push(f.Locals[i.local(f, index, ins)])
		case cil.LdLocA:
			f.push(slotRef(f.Locals, i.local(f, index, ins)))
		case cil.StLoc:
			f.Locals[i.local(f, index, ins)] = f.pop()
		case cil.LdcI4, cil.LdcI8:
			f.push(int64(ins.Operand.(cil.Int)))
		case cil.LdcR8:
			f.push(float64(ins.Operand.(cil.Float)))
		case cil.LdStr:
			f.push(string(ins.Operand.(cil.Str)))
		case cil.LdNull:
			f.push(nil)
		case cil.Dup:
			v := f.pop()
			f.push(v)
			f.push(v)
		case cil.Pop:
			f.pop()

		// Fields
		case cil.LdFld:
			fld := ins.Operand.(*cil.Field)
			o := i.object(f, index, f.pop())
			f.push(o.Fields[fld])
		case cil.LdFldA:
			fld := ins.Operand.(*cil.Field)
			o := i.object(f, index, f.pop())
			f.push(&Ref{
				load:  func() Value { return o.Fields[fld] },
				store: func(v Value) { o.Fields[fld] = v },
			})
		case cil.StFld:
			fld := ins.Operand.(*cil.Field)
			v := f.pop()
			o := i.object(f, index, f.pop())
			o.Fields[fld] = v
		case cil.LdSFld:
			f.push(i.Static(ins.Operand.(*cil.Field)))
		case cil.LdSFldA:
			fld := ins.Operand.(*cil.Field)
			f.push(&Ref{
				load:  func() Value { return i.Static(fld) },
				store: func(v Value) { i.SetStatic(fld, v) },
			})
		case cil.StSFld:
			i.SetStatic(ins.Operand.(*cil.Field), f.pop())

		// Calls and returns
		case cil.Call, cil.CallVirt:
			callee := ins.Operand.(*cil.Method)
			args := f.popN(len(callee.Parameters))
			var this Value
			resolved := callee
			if !callee.IsStatic() {
				this = f.pop()
				if this == nil {
					i.throw(f, index, "System.NullReferenceException")
					continue
				}
				if ins.OpCode == cil.CallVirt {
					resolved = dispatch(callee, this)
				}
			}
			ret, exc := i.guarded(resolved, this, args)
			if exc != nil {
				i.raise(f, index, exc)
				continue
			}
			if callee.ReturnsValue() {
				f.push(ret)
			}
		case cil.NewObj:
			ctor := ins.Operand.(*cil.Method)
			args := f.popN(len(ctor.Parameters))
			t := ctor.DeclaringType
			if t == nil || t.IsDelegate() {
				i.fail(f, index, "cannot construct %s", ctor.FullName())
			}
			o := NewObject(t)
			if _, exc := i.guarded(ctor, o, args); exc != nil {
				i.raise(f, index, exc)
				continue
			}
			f.push(o)
		case cil.Ret:
			if f.Method.ReturnsValue() {
				return f.pop()
			}
			return nil

		// Control flow
		case cil.Br:
			f.IP = target(ins)
		case cil.BrTrue:
			if Truthy(f.pop()) {
				f.IP = target(ins)
			}
		case cil.BrFalse:
			if !Truthy(f.pop()) {
				f.IP = target(ins)
			}
		case cil.Beq, cil.BneUn, cil.Blt, cil.Bgt, cil.Ble, cil.Bge:
			b := f.pop()
			a := f.pop()
			if i.branchTaken(f, index, ins.OpCode, a, b) {
				f.IP = target(ins)
			}
		case cil.Switch:
			n, ok := f.pop().(int64)
			table := ins.Operand.(cil.JumpTable)
			if ok && n >= 0 && n < int64(len(table)) {
				f.IP = table[n]
			}
		case cil.Leave:
			f.stack = f.stack[:0]
			i.leave(f, index, target(ins))
		case cil.EndFinally:
			if len(f.leaving) == 0 {
				i.fail(f, index, "endfinally outside a leave")
			}
			l := f.leaving[len(f.leaving)-1]
			if len(l.finallies) > 0 {
				f.IP = l.finallies[0].HandlerStart
				l.finallies = l.finallies[1:]
			} else {
				f.leaving = f.leaving[:len(f.leaving)-1]
				f.IP = l.target
			}
		case cil.Throw:
			i.throw(f, index, f.pop())

		// Arithmetic, logic and comparison
		case cil.Add, cil.Sub, cil.Mul, cil.Div, cil.Rem, cil.And, cil.Or, cil.Xor, cil.Shl, cil.Shr:
			b := f.pop()
			a := f.pop()
			v, thrown := i.arith(f, index, ins.OpCode, a, b)
			if thrown {
				continue
			}
			f.push(v)
		case cil.Neg:
			switch x := f.pop().(type) {
			case int64:
				f.push(-x)
			case float64:
				f.push(-x)
			default:
				i.fail(f, index, "neg of %T", x)
			}
		case cil.Not:
			x, ok := f.pop().(int64)
			if !ok {
				i.fail(f, index, "not of a non-integer")
			}
			f.push(^x)
		case cil.Ceq:
			b := f.pop()
			f.push(boolValue(equal(f.pop(), b)))
		case cil.Cgt, cil.Clt:
			b := f.pop()
			a := f.pop()
			c := i.compare(f, index, a, b)
			f.push(boolValue((ins.OpCode == cil.Cgt && c > 0) || (ins.OpCode == cil.Clt && c < 0)))
		case cil.ConvI4:
			f.push(int64(int32(i.integer(f, index, f.pop()))))
		case cil.ConvI8:
			f.push(i.integer(f, index, f.pop()))
		case cil.ConvR8:
			switch x := f.pop().(type) {
			case int64:
				f.push(float64(x))
			case float64:
				f.push(x)
			default:
				i.fail(f, index, "conv.r8 of %T", x)
			}

		// Indirection, objects and arrays
		case cil.LdInd:
			f.push(i.ref(f, index, f.pop()).Load())
		case cil.StInd:
			v := f.pop()
			i.ref(f, index, f.pop()).Store(v)
		case cil.InitObj:
			i.ref(f, index, f.pop()).Store(Zero(ins.Operand.(cil.TypeRef)))
		case cil.Box, cil.UnboxAny, cil.CastClass:
			// Values carry their own representation.
		case cil.IsInst:
			v := f.pop()
			if isInstance(v, ins.Operand.(cil.TypeRef)) {
				f.push(v)
			} else {
				f.push(nil)
			}
		case cil.NewArr:
			n := i.integer(f, index, f.pop())
			if n < 0 {
				i.throw(f, index, "System.OverflowException")
				continue
			}
			elem := ins.Operand.(cil.TypeRef)
			arr := &Array{Elem: elem, Elems: make([]Value, n)}
			for k := range arr.Elems {
				arr.Elems[k] = Zero(elem)
			}
			f.push(arr)
		case cil.LdLen:
			f.push(int64(len(i.array(f, index, f.pop()).Elems)))
		case cil.LdElem:
			n := i.integer(f, index, f.pop())
			arr := i.array(f, index, f.pop())
			if n < 0 || n >= int64(len(arr.Elems)) {
				i.throw(f, index, "System.IndexOutOfRangeException")
				continue
			}
			f.push(arr.Elems[n])
		case cil.StElem:
			v := f.pop()
			n := i.integer(f, index, f.pop())
			arr := i.array(f, index, f.pop())
			if n < 0 || n >= int64(len(arr.Elems)) {
				i.throw(f, index, "System.IndexOutOfRangeException")
				continue
			}
			arr.Elems[n] = v
		case cil.LdToken:
			f.push(ins.Operand)

		default:
			i.fail(f, index, "unsupported opcode %s", ins.OpCode)
		}
	}
}

// leave moves to target, running the finally handlers of every protected
// region it exits, innermost first.
func (i *Interpreter) leave(f *Frame, index, to int) {
	var finallies []*cil.ExceptionHandler
	for _, h := range f.Method.Body.Handlers {
		if h.Kind != cil.HandlerFinally {
			continue
		}
		inside := index >= h.TryStart && index < h.TryEnd
		targetInside := to >= h.TryStart && to < h.TryEnd
		if inside && !targetInside {
			finallies = append(finallies, h)
		}
	}
	if len(finallies) == 0 {
		f.IP = to
		return
	}
	f.leaving = append(f.leaving, &leave{target: to, finallies: finallies[1:]})
	f.IP = finallies[0].HandlerStart
}

func target(ins *cil.Instruction) int {
	return int(ins.Operand.(cil.Target))
}

func (i *Interpreter) local(f *Frame, index int, ins *cil.Instruction) int {
	v := ins.Operand.(*cil.Variable)
	if v.Index < 0 || v.Index >= len(f.Locals) {
		i.fail(f, index, "local %s is not declared", v)
	}
	return v.Index
}

func (i *Interpreter) object(f *Frame, index int, v Value) *Object {
	if r, ok := v.(*Ref); ok {
		v = r.Load()
	}
	o, ok := v.(*Object)
	if !ok {
		i.fail(f, index, "field access on %T", v)
	}
	return o
}

func (i *Interpreter) ref(f *Frame, index int, v Value) *Ref {
	r, ok := v.(*Ref)
	if !ok {
		i.fail(f, index, "indirection through %T", v)
	}
	return r
}

func (i *Interpreter) array(f *Frame, index int, v Value) *Array {
	arr, ok := v.(*Array)
	if !ok {
		i.fail(f, index, "array access on %T", v)
	}
	return arr
}

func (i *Interpreter) integer(f *Frame, index int, v Value) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case float64:
		return int64(x)
	case bool:
		if x {
			return 1
		}
		return 0
	}
	i.fail(f, index, "expected an integer, found %T", v)
	return 0
}

// dispatch finds the override of callee for the runtime type of this.
func dispatch(callee *cil.Method, this Value) *cil.Method {
	o, ok := this.(*Object)
	if !ok || !callee.IsVirtual() {
		return callee
	}
	for t := o.Type; t != nil; t = baseOf(t) {
		for _, m := range t.Methods {
			if m.Name == callee.Name && m.IsVirtual() && !m.IsAbstract() && cil.ParametersMatch(m, callee, true) {
				return m
			}
		}
	}
	return callee
}

func isInstance(v Value, t cil.TypeRef) bool {
	if v == nil {
		return false
	}
	if cil.SameType(t, cil.Object) {
		return true
	}
	switch x := v.(type) {
	case *Object:
		for cur := x.Type; cur != nil; cur = baseOf(cur) {
			if cil.SameType(cur, t) || cur.HasInterface(t) {
				return true
			}
		}
	case *Delegate:
		return cil.SameType(x.Type, t) || cil.SameType(t, cil.MulticastDelegate)
	case string:
		return cil.SameType(t, cil.String)
	}
	return false
}

func normalize(v Value) Value {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case int16:
		return int64(x)
	case int8:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case float32:
		return float64(x)
	}
	return v
}
