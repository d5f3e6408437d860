// Package image reads and writes module images: the on-disk form of a
// cil.Module. Images are canonical CBOR. Every reference to a type or member
// is symbolic (module name, type full name, member name and signature) and is
// resolved after all definitions of the image are known, so images can refer
// to each other and to themselves in any order.
package image

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("modder.image")

// Magic is the first field of every image.
const Magic = "modder-image"

// FormatVersion is bumped whenever the wire layout changes incompatibly.
const FormatVersion = 1

// Extension is the file extension of module images.
const Extension = ".mod"

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("image: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// ---------------------------------------------------------------------------
// Wire layout
// ---------------------------------------------------------------------------

type moduleImage struct {
	Magic      string      `cbor:"1,keyasint"`
	Format     uint        `cbor:"2,keyasint"`
	Name       string      `cbor:"3,keyasint"`
	Version    string      `cbor:"4,keyasint"`
	MVID       [16]byte    `cbor:"5,keyasint"`
	References []string    `cbor:"6,keyasint,omitempty"`
	Types      []typeImage `cbor:"7,keyasint,omitempty"`
}

// Type reference kinds.
const (
	refNamed uint8 = iota
	refByRef
	refArray
)

// typeRef names a type symbolically. Module is empty for predeclared types
// and types of the image itself.
type typeRef struct {
	Kind   uint8    `cbor:"1,keyasint"`
	Module string   `cbor:"2,keyasint,omitempty"`
	Name   string   `cbor:"3,keyasint,omitempty"`
	Elem   *typeRef `cbor:"4,keyasint,omitempty"`
}

type typeImage struct {
	Namespace  string          `cbor:"1,keyasint,omitempty"`
	Name       string          `cbor:"2,keyasint"`
	Visibility uint8           `cbor:"3,keyasint"`
	Attributes uint16          `cbor:"4,keyasint"`
	BaseType   *typeRef        `cbor:"5,keyasint,omitempty"`
	Interfaces []typeRef       `cbor:"6,keyasint,omitempty"`
	Fields     []fieldImage    `cbor:"7,keyasint,omitempty"`
	Methods    []methodImage   `cbor:"8,keyasint,omitempty"`
	Properties []propertyImage `cbor:"9,keyasint,omitempty"`
	Events     []eventImage    `cbor:"10,keyasint,omitempty"`
	Nested     []typeImage     `cbor:"11,keyasint,omitempty"`
}

type fieldImage struct {
	Name        string  `cbor:"1,keyasint"`
	Visibility  uint8   `cbor:"2,keyasint"`
	Attributes  uint8   `cbor:"3,keyasint"`
	Type        typeRef `cbor:"4,keyasint"`
	HasConstant bool    `cbor:"5,keyasint,omitempty"`
	Constant    any     `cbor:"6,keyasint,omitempty"`
}

type methodImage struct {
	Name       string       `cbor:"1,keyasint"`
	Visibility uint8        `cbor:"2,keyasint"`
	Attributes uint16       `cbor:"3,keyasint"`
	ReturnType typeRef      `cbor:"4,keyasint"`
	Parameters []paramImage `cbor:"5,keyasint,omitempty"`
	Body       *bodyImage   `cbor:"6,keyasint,omitempty"`
}

type paramImage struct {
	Name       string  `cbor:"1,keyasint"`
	Type       typeRef `cbor:"2,keyasint"`
	Attributes uint8   `cbor:"3,keyasint,omitempty"`
}

// Accessors are stored as indexes into the declaring type's methods, -1 for
// none.
type propertyImage struct {
	Name   string  `cbor:"1,keyasint"`
	Type   typeRef `cbor:"2,keyasint"`
	Getter int     `cbor:"3,keyasint"`
	Setter int     `cbor:"4,keyasint"`
}

type eventImage struct {
	Name   string  `cbor:"1,keyasint"`
	Type   typeRef `cbor:"2,keyasint"`
	Add    int     `cbor:"3,keyasint"`
	Remove int     `cbor:"4,keyasint"`
}

type bodyImage struct {
	InitLocals   bool               `cbor:"1,keyasint,omitempty"`
	Variables    []paramImage       `cbor:"2,keyasint,omitempty"`
	Instructions []instructionImage `cbor:"3,keyasint,omitempty"`
	Handlers     []handlerImage     `cbor:"4,keyasint,omitempty"`
}

// instructionImage carries one operand, selected by Kind (a cil.OperandKind).
// Index holds parameter (-1 for the receiver), variable and target indexes.
type instructionImage struct {
	OpCode uint16     `cbor:"1,keyasint"`
	Kind   uint8      `cbor:"2,keyasint,omitempty"`
	Int    int64      `cbor:"3,keyasint,omitempty"`
	Float  float64    `cbor:"4,keyasint,omitempty"`
	Str    string     `cbor:"5,keyasint,omitempty"`
	Index  int        `cbor:"6,keyasint,omitempty"`
	Table  []int      `cbor:"7,keyasint,omitempty"`
	Type   *typeRef   `cbor:"8,keyasint,omitempty"`
	Member *memberRef `cbor:"9,keyasint,omitempty"`
	Offset int        `cbor:"10,keyasint,omitempty"`
	Seq    *seqImage  `cbor:"11,keyasint,omitempty"`
}

// memberRef names a field or method of a declaring type. Methods are told
// apart by parameter types.
type memberRef struct {
	Type   typeRef   `cbor:"1,keyasint"`
	Name   string    `cbor:"2,keyasint"`
	Params []typeRef `cbor:"3,keyasint,omitempty"`
}

type handlerImage struct {
	Kind         uint8    `cbor:"1,keyasint"`
	TryStart     int      `cbor:"2,keyasint"`
	TryEnd       int      `cbor:"3,keyasint"`
	HandlerStart int      `cbor:"4,keyasint"`
	HandlerEnd   int      `cbor:"5,keyasint"`
	FilterStart  int      `cbor:"6,keyasint"`
	CatchType    *typeRef `cbor:"7,keyasint,omitempty"`
}

type seqImage struct {
	Document    string `cbor:"1,keyasint"`
	StartLine   int    `cbor:"2,keyasint"`
	StartColumn int    `cbor:"3,keyasint"`
	EndLine     int    `cbor:"4,keyasint"`
	EndColumn   int    `cbor:"5,keyasint"`
}
