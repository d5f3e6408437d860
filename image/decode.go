package image

import (
	"bytes"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/chazu/modder/cil"
)

// Decode reads a module image from r. References to other modules are
// resolved through res, which may be nil for self-contained images.
func Decode(r io.Reader, res Resolver) (*cil.Module, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("%w: read image: %v", cil.ErrIO, err)
	}
	return Unmarshal(buf.Bytes(), res)
}

// Unmarshal decodes image bytes. Definitions are created first; signatures,
// member references and bodies are resolved in a second pass.
func Unmarshal(data []byte, res Resolver) (*cil.Module, error) {
	var img moduleImage
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("%w: unmarshal image: %v", cil.ErrIO, err)
	}
	if img.Magic != Magic {
		return nil, fmt.Errorf("%w: not a module image", cil.ErrIO)
	}
	if img.Format != FormatVersion {
		return nil, fmt.Errorf("%w: image format %d, want %d", cil.ErrIO, img.Format, FormatVersion)
	}

	m := &cil.Module{
		Name:       img.Name,
		Version:    img.Version,
		MVID:       uuid.UUID(img.MVID),
		References: img.References,
	}
	d := &decoder{module: m, resolver: res, others: map[string]*cil.Module{}}

	// Pass one: type and member shells.
	for i := range img.Types {
		m.AddType(d.shell(&img.Types[i]))
	}
	// Pass two: signatures.
	for i, t := range m.Types {
		if err := d.signatures(t, &img.Types[i]); err != nil {
			return nil, err
		}
	}
	// Pass three: bodies.
	for i, t := range m.Types {
		if err := d.bodies(t, &img.Types[i]); err != nil {
			return nil, err
		}
	}
	log.Debugf("Decoded module %s", m.Identity())
	return m, nil
}

type decoder struct {
	module   *cil.Module
	resolver Resolver
	others   map[string]*cil.Module
}

func (d *decoder) shell(ti *typeImage) *cil.Type {
	t := cil.NewType(ti.Namespace, ti.Name, cil.TypeAttributes(ti.Attributes))
	t.Visibility = cil.Visibility(ti.Visibility)
	for _, fi := range ti.Fields {
		f := cil.NewField(fi.Name, cil.FieldAttributes(fi.Attributes), nil)
		f.Visibility = cil.Visibility(fi.Visibility)
		f.HasConstant = fi.HasConstant
		f.Constant = normalizeConstant(fi.Constant)
		t.AddField(f)
	}
	for _, mi := range ti.Methods {
		m := &cil.Method{
			Name:       mi.Name,
			Visibility: cil.Visibility(mi.Visibility),
			Attributes: cil.MethodAttributes(mi.Attributes),
		}
		if mi.Body != nil {
			m.Body = cil.NewBody()
		}
		for _, pi := range mi.Parameters {
			p := m.AddParameter(pi.Name, nil)
			p.Attributes = cil.ParamAttributes(pi.Attributes)
		}
		t.AddMethod(m)
	}
	for i := range ti.Nested {
		t.AddNestedType(d.shell(&ti.Nested[i]))
	}
	return t
}

func (d *decoder) signatures(t *cil.Type, ti *typeImage) error {
	var err error
	if ti.BaseType != nil {
		if t.BaseType, err = d.typeRef(ti.BaseType); err != nil {
			return err
		}
	}
	for i := range ti.Interfaces {
		iface, err := d.typeRef(&ti.Interfaces[i])
		if err != nil {
			return err
		}
		t.Interfaces = append(t.Interfaces, iface)
	}
	for i, fi := range ti.Fields {
		if t.Fields[i].Type, err = d.typeRef(&fi.Type); err != nil {
			return err
		}
	}
	for i, mi := range ti.Methods {
		m := t.Methods[i]
		if m.ReturnType, err = d.typeRef(&mi.ReturnType); err != nil {
			return err
		}
		for j, pi := range mi.Parameters {
			if m.Parameters[j].Type, err = d.typeRef(&pi.Type); err != nil {
				return err
			}
		}
	}

	method := func(i int) (*cil.Method, error) {
		switch {
		case i < 0:
			return nil, nil
		case i >= len(t.Methods):
			return nil, fmt.Errorf("%w: accessor index %d out of range in %s", cil.ErrResolution, i, t.FullName())
		}
		return t.Methods[i], nil
	}
	for _, pi := range ti.Properties {
		p := &cil.Property{Name: pi.Name}
		if p.Type, err = d.typeRef(&pi.Type); err != nil {
			return err
		}
		if p.Getter, err = method(pi.Getter); err != nil {
			return err
		}
		if p.Setter, err = method(pi.Setter); err != nil {
			return err
		}
		t.AddProperty(p)
	}
	for _, ei := range ti.Events {
		e := &cil.Event{Name: ei.Name}
		if e.Type, err = d.typeRef(&ei.Type); err != nil {
			return err
		}
		if e.Add, err = method(ei.Add); err != nil {
			return err
		}
		if e.Remove, err = method(ei.Remove); err != nil {
			return err
		}
		t.AddEvent(e)
	}
	for i, n := range t.NestedTypes {
		if err := d.signatures(n, &ti.Nested[i]); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) bodies(t *cil.Type, ti *typeImage) error {
	for i, mi := range ti.Methods {
		if mi.Body == nil {
			continue
		}
		m := t.Methods[i]
		if err := d.body(m, mi.Body); err != nil {
			return fmt.Errorf("%s: %w", m.FullName(), err)
		}
	}
	for i, n := range t.NestedTypes {
		if err := d.bodies(n, &ti.Nested[i]); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) body(m *cil.Method, bi *bodyImage) error {
	b := m.Body
	b.InitLocals = bi.InitLocals
	for _, vi := range bi.Variables {
		typ, err := d.typeRef(&vi.Type)
		if err != nil {
			return err
		}
		b.AddVariable(vi.Name, typ)
	}
	for i := range bi.Instructions {
		ins, err := d.instruction(m, &bi.Instructions[i])
		if err != nil {
			return fmt.Errorf("instruction %d: %w", i, err)
		}
		b.Instructions = append(b.Instructions, ins)
	}
	for _, hi := range bi.Handlers {
		h := &cil.ExceptionHandler{
			Kind:         cil.ExceptionHandlerKind(hi.Kind),
			TryStart:     hi.TryStart,
			TryEnd:       hi.TryEnd,
			HandlerStart: hi.HandlerStart,
			HandlerEnd:   hi.HandlerEnd,
			FilterStart:  hi.FilterStart,
		}
		if hi.CatchType != nil {
			var err error
			if h.CatchType, err = d.typeRef(hi.CatchType); err != nil {
				return err
			}
		}
		b.Handlers = append(b.Handlers, h)
	}
	return nil
}

func (d *decoder) instruction(m *cil.Method, ii *instructionImage) (*cil.Instruction, error) {
	ins := &cil.Instruction{OpCode: cil.OpCode(ii.OpCode), Offset: ii.Offset}
	if s := ii.Seq; s != nil {
		ins.Seq = &cil.SequencePoint{
			Document:    s.Document,
			StartLine:   s.StartLine,
			StartColumn: s.StartColumn,
			EndLine:     s.EndLine,
			EndColumn:   s.EndColumn,
		}
	}

	switch cil.OperandKind(ii.Kind) {
	case cil.OperandNone:
	case cil.OperandInt:
		ins.Operand = cil.Int(ii.Int)
	case cil.OperandFloat:
		ins.Operand = cil.Float(ii.Float)
	case cil.OperandString:
		ins.Operand = cil.Str(ii.Str)
	case cil.OperandTarget:
		ins.Operand = cil.Target(ii.Index)
	case cil.OperandSwitch:
		ins.Operand = cil.JumpTable(append([]int{}, ii.Table...))
	case cil.OperandParam:
		if ii.Index == -1 {
			if m.IsStatic() {
				return nil, fmt.Errorf("%w: receiver of static method", cil.ErrResolution)
			}
			ins.Operand = m.This()
			break
		}
		if ii.Index < 0 || ii.Index >= len(m.Parameters) {
			return nil, fmt.Errorf("%w: parameter %d out of range", cil.ErrResolution, ii.Index)
		}
		ins.Operand = m.Parameters[ii.Index]
	case cil.OperandVariable:
		if ii.Index < 0 || ii.Index >= len(m.Body.Variables) {
			return nil, fmt.Errorf("%w: local %d out of range", cil.ErrResolution, ii.Index)
		}
		ins.Operand = m.Body.Variables[ii.Index]
	case cil.OperandType:
		if ii.Type == nil {
			return nil, fmt.Errorf("%w: type operand missing", cil.ErrIO)
		}
		typ, err := d.typeRef(ii.Type)
		if err != nil {
			return nil, err
		}
		ins.Operand = typ
	case cil.OperandField:
		f, err := d.field(ii.Member)
		if err != nil {
			return nil, err
		}
		ins.Operand = f
	case cil.OperandMethod:
		callee, err := d.method(ii.Member)
		if err != nil {
			return nil, err
		}
		ins.Operand = callee
	default:
		return nil, fmt.Errorf("%w: operand kind %s cannot be loaded", cil.ErrIO, cil.OperandKind(ii.Kind))
	}
	return ins, nil
}

// ---------------------------------------------------------------------------
// Symbolic resolution
// ---------------------------------------------------------------------------

func (d *decoder) typeRef(r *typeRef) (cil.TypeRef, error) {
	switch r.Kind {
	case refByRef, refArray:
		if r.Elem == nil {
			return nil, fmt.Errorf("%w: wrapped type without element", cil.ErrIO)
		}
		elem, err := d.typeRef(r.Elem)
		if err != nil {
			return nil, err
		}
		if r.Kind == refByRef {
			return cil.ByRef(elem), nil
		}
		return cil.ArrayOf(elem), nil
	case refNamed:
	default:
		return nil, fmt.Errorf("%w: unknown type reference kind %d", cil.ErrIO, r.Kind)
	}

	owner := d.module
	if r.Module == "" || r.Module == d.module.Name {
		if p, ok := cil.Predeclared(r.Name); ok {
			return p, nil
		}
	} else {
		other, err := d.other(r.Module)
		if err != nil {
			return nil, err
		}
		owner = other
	}
	t, err := owner.MustType(r.Name)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (d *decoder) other(name string) (*cil.Module, error) {
	if m, ok := d.others[name]; ok {
		return m, nil
	}
	if d.resolver == nil {
		return nil, fmt.Errorf("%w: module %s referenced by %s and no resolver given", cil.ErrResolution, name, d.module.Name)
	}
	m, err := d.resolver.Resolve(name)
	if err != nil {
		return nil, err
	}
	d.others[name] = m
	return m, nil
}

func (d *decoder) declaring(ref *memberRef) (*cil.Type, error) {
	if ref == nil {
		return nil, fmt.Errorf("%w: member operand missing", cil.ErrIO)
	}
	typ, err := d.typeRef(&ref.Type)
	if err != nil {
		return nil, err
	}
	t, ok := typ.(*cil.Type)
	if !ok {
		return nil, fmt.Errorf("%w: member %s declared on %s", cil.ErrResolution, ref.Name, typ.FullName())
	}
	return t, nil
}

func (d *decoder) field(ref *memberRef) (*cil.Field, error) {
	t, err := d.declaring(ref)
	if err != nil {
		return nil, err
	}
	return t.Field(ref.Name)
}

func (d *decoder) method(ref *memberRef) (*cil.Method, error) {
	t, err := d.declaring(ref)
	if err != nil {
		return nil, err
	}
	params := make([]cil.TypeRef, len(ref.Params))
	for i := range ref.Params {
		if params[i], err = d.typeRef(&ref.Params[i]); err != nil {
			return nil, err
		}
	}
	if m := t.FindMethod(ref.Name, params...); m != nil {
		return m, nil
	}
	return nil, fmt.Errorf("%w: method %s.%s not found", cil.ErrResolution, t.FullName(), ref.Name)
}

// normalizeConstant maps decoded CBOR scalars back onto the value kinds
// literal fields hold.
func normalizeConstant(v any) any {
	switch x := v.(type) {
	case uint64:
		return int64(x)
	case float32:
		return float64(x)
	}
	return v
}
