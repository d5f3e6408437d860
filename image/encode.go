package image

import (
	"fmt"
	"io"

	"github.com/chazu/modder/cil"
)

// Encode writes m to w as a module image.
func Encode(w io.Writer, m *cil.Module) error {
	data, err := Marshal(m)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("%w: write image %s: %v", cil.ErrIO, m.Name, err)
	}
	return nil
}

// Marshal returns the image bytes of m. The encoding is deterministic: equal
// modules produce equal bytes.
func Marshal(m *cil.Module) ([]byte, error) {
	e := &encoder{module: m}
	img := moduleImage{
		Magic:      Magic,
		Format:     FormatVersion,
		Name:       m.Name,
		Version:    m.Version,
		MVID:       m.MVID,
		References: m.References,
	}
	for _, t := range m.Types {
		ti, err := e.typeDef(t)
		if err != nil {
			return nil, err
		}
		img.Types = append(img.Types, ti)
	}
	data, err := encMode.Marshal(&img)
	if err != nil {
		return nil, fmt.Errorf("image: marshal %s: %w", m.Name, err)
	}
	return data, nil
}

type encoder struct {
	module *cil.Module
}

func (e *encoder) typeRef(t cil.TypeRef) (typeRef, error) {
	switch x := t.(type) {
	case *cil.ByRefType:
		elem, err := e.typeRef(x.Elem)
		return typeRef{Kind: refByRef, Elem: &elem}, err
	case *cil.ArrayType:
		elem, err := e.typeRef(x.Elem)
		return typeRef{Kind: refArray, Elem: &elem}, err
	case *cil.Type:
		switch {
		case x.Module == e.module:
			return typeRef{Name: x.FullName()}, nil
		case x.Module != nil:
			return typeRef{Module: x.Module.Name, Name: x.FullName()}, nil
		}
		if p, ok := cil.Predeclared(x.FullName()); ok && p == x {
			return typeRef{Name: x.FullName()}, nil
		}
		return typeRef{}, fmt.Errorf("%w: type %s belongs to no module", cil.ErrResolution, x.FullName())
	}
	return typeRef{}, fmt.Errorf("%w: unsupported type reference %T", cil.ErrResolution, t)
}

func (e *encoder) optionalTypeRef(t cil.TypeRef) (*typeRef, error) {
	if t == nil {
		return nil, nil
	}
	r, err := e.typeRef(t)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (e *encoder) typeDef(t *cil.Type) (typeImage, error) {
	ti := typeImage{
		Namespace:  t.Namespace,
		Name:       t.Name,
		Visibility: uint8(t.Visibility),
		Attributes: uint16(t.Attributes),
	}
	var err error
	if ti.BaseType, err = e.optionalTypeRef(t.BaseType); err != nil {
		return ti, err
	}
	for _, i := range t.Interfaces {
		r, err := e.typeRef(i)
		if err != nil {
			return ti, err
		}
		ti.Interfaces = append(ti.Interfaces, r)
	}
	for _, f := range t.Fields {
		r, err := e.typeRef(f.Type)
		if err != nil {
			return ti, err
		}
		ti.Fields = append(ti.Fields, fieldImage{
			Name:        f.Name,
			Visibility:  uint8(f.Visibility),
			Attributes:  uint8(f.Attributes),
			Type:        r,
			HasConstant: f.HasConstant,
			Constant:    f.Constant,
		})
	}

	index := map[*cil.Method]int{}
	for i, m := range t.Methods {
		mi, err := e.method(m)
		if err != nil {
			return ti, err
		}
		ti.Methods = append(ti.Methods, mi)
		index[m] = i
	}
	indexOf := func(m *cil.Method) (int, error) {
		if m == nil {
			return -1, nil
		}
		i, ok := index[m]
		if !ok {
			return -1, fmt.Errorf("%w: accessor %s is not declared by %s", cil.ErrResolution, m.FullName(), t.FullName())
		}
		return i, nil
	}
	for _, p := range t.Properties {
		pi := propertyImage{Name: p.Name}
		if pi.Type, err = e.typeRef(p.Type); err != nil {
			return ti, err
		}
		if pi.Getter, err = indexOf(p.Getter); err != nil {
			return ti, err
		}
		if pi.Setter, err = indexOf(p.Setter); err != nil {
			return ti, err
		}
		ti.Properties = append(ti.Properties, pi)
	}
	for _, ev := range t.Events {
		ei := eventImage{Name: ev.Name}
		if ei.Type, err = e.typeRef(ev.Type); err != nil {
			return ti, err
		}
		if ei.Add, err = indexOf(ev.Add); err != nil {
			return ti, err
		}
		if ei.Remove, err = indexOf(ev.Remove); err != nil {
			return ti, err
		}
		ti.Events = append(ti.Events, ei)
	}
	for _, n := range t.NestedTypes {
		ni, err := e.typeDef(n)
		if err != nil {
			return ti, err
		}
		ti.Nested = append(ti.Nested, ni)
	}
	return ti, nil
}

func (e *encoder) method(m *cil.Method) (methodImage, error) {
	mi := methodImage{
		Name:       m.Name,
		Visibility: uint8(m.Visibility),
		Attributes: uint16(m.Attributes),
	}
	var err error
	if mi.ReturnType, err = e.typeRef(m.ReturnType); err != nil {
		return mi, err
	}
	for _, p := range m.Parameters {
		r, err := e.typeRef(p.Type)
		if err != nil {
			return mi, err
		}
		mi.Parameters = append(mi.Parameters, paramImage{Name: p.Name, Type: r, Attributes: uint8(p.Attributes)})
	}
	if m.Body == nil {
		return mi, nil
	}
	if mi.Body, err = e.body(m); err != nil {
		return mi, fmt.Errorf("%s: %w", m.FullName(), err)
	}
	return mi, nil
}

func (e *encoder) body(m *cil.Method) (*bodyImage, error) {
	b := m.Body
	bi := &bodyImage{InitLocals: b.InitLocals}
	for _, v := range b.Variables {
		r, err := e.typeRef(v.Type)
		if err != nil {
			return nil, err
		}
		bi.Variables = append(bi.Variables, paramImage{Name: v.Name, Type: r})
	}
	for i, ins := range b.Instructions {
		ii, err := e.instruction(ins)
		if err != nil {
			return nil, fmt.Errorf("instruction %d (%s): %w", i, ins, err)
		}
		bi.Instructions = append(bi.Instructions, ii)
	}
	for _, h := range b.Handlers {
		hi := handlerImage{
			Kind:         uint8(h.Kind),
			TryStart:     h.TryStart,
			TryEnd:       h.TryEnd,
			HandlerStart: h.HandlerStart,
			HandlerEnd:   h.HandlerEnd,
			FilterStart:  h.FilterStart,
		}
		var err error
		if hi.CatchType, err = e.optionalTypeRef(h.CatchType); err != nil {
			return nil, err
		}
		bi.Handlers = append(bi.Handlers, hi)
	}
	return bi, nil
}

func (e *encoder) instruction(ins *cil.Instruction) (instructionImage, error) {
	ii := instructionImage{OpCode: uint16(ins.OpCode), Offset: ins.Offset}
	if s := ins.Seq; s != nil {
		ii.Seq = &seqImage{
			Document:    s.Document,
			StartLine:   s.StartLine,
			StartColumn: s.StartColumn,
			EndLine:     s.EndLine,
			EndColumn:   s.EndColumn,
		}
	}
	if ins.Operand == nil {
		return ii, nil
	}
	ii.Kind = uint8(ins.Operand.Kind())

	switch op := ins.Operand.(type) {
	case cil.Int:
		ii.Int = int64(op)
	case cil.Float:
		ii.Float = float64(op)
	case cil.Str:
		ii.Str = string(op)
	case cil.Target:
		ii.Index = int(op)
	case cil.JumpTable:
		ii.Table = append([]int{}, op...)
	case *cil.Parameter:
		ii.Index = op.Index
	case *cil.Variable:
		ii.Index = op.Index
	case *cil.Field:
		if op.DeclaringType == nil {
			return ii, fmt.Errorf("%w: field %s has no declaring type", cil.ErrResolution, op.Name)
		}
		decl, err := e.typeRef(op.DeclaringType)
		if err != nil {
			return ii, err
		}
		ii.Member = &memberRef{Type: decl, Name: op.Name}
	case *cil.Method:
		if op.DeclaringType == nil {
			return ii, fmt.Errorf("%w: method %s has no declaring type", cil.ErrResolution, op.Name)
		}
		decl, err := e.typeRef(op.DeclaringType)
		if err != nil {
			return ii, err
		}
		ref := &memberRef{Type: decl, Name: op.Name, Params: []typeRef{}}
		for _, p := range op.Parameters {
			r, err := e.typeRef(p.Type)
			if err != nil {
				return ii, err
			}
			ref.Params = append(ref.Params, r)
		}
		ii.Member = ref
	case cil.TypeRef:
		r, err := e.typeRef(op)
		if err != nil {
			return ii, err
		}
		ii.Type = &r
	default:
		return ii, fmt.Errorf("%w: operand %s cannot be stored", cil.ErrDescriptor, op.Kind())
	}
	return ii, nil
}
