// Package schema describes table schemas and encodes/decodes fixed-width
// attribute values inside a record buffer. It replaces the teacher's
// variable-length, nullable rowcodec with the fixed-width, non-nullable
// scheme this engine requires: every attribute occupies a constant number
// of bytes determined solely by its declared type and length.
package schema

import (
	"errors"
	"fmt"
	"math"

	"github.com/haldor-db/recordstore/internal/bx"
)

// Type is the scalar value type of an attribute. The numeric values match
// the on-disk type_code in page-0 metadata and the declaration order
// spec.md's wire format requires: INT, STRING, FLOAT, BOOL.
type Type int

const (
	TypeInt Type = iota
	TypeString
	TypeFloat
	TypeBool
)

func (t Type) String() string {
	switch t {
	case TypeInt:
		return "INT"
	case TypeString:
		return "STRING"
	case TypeFloat:
		return "FLOAT"
	case TypeBool:
		return "BOOL"
	default:
		return "UNKNOWN"
	}
}

// ParseType maps a type_code back to a Type.
func ParseType(code int) (Type, error) {
	switch code {
	case int(TypeInt), int(TypeString), int(TypeFloat), int(TypeBool):
		return Type(code), nil
	default:
		return 0, fmt.Errorf("%w: type code %d", ErrUnknownType, code)
	}
}

var (
	ErrUnknownType    = errors.New("schema: unknown type code")
	ErrWrongType      = errors.New("schema: value type does not match attribute")
	ErrStringTooLong  = errors.New("schema: string value exceeds declared attribute length")
	ErrAttrNotFound   = errors.New("schema: attribute not found")
	ErrBufferTooSmall = errors.New("schema: record buffer smaller than schema width")
)

// widthOf returns the fixed byte width of a single attribute. Length is
// only meaningful for STRING; INT/FLOAT/BOOL are always 4/4/1 bytes.
func widthOf(t Type, length int) int {
	switch t {
	case TypeInt:
		return 4
	case TypeFloat:
		return 4
	case TypeBool:
		return 1
	case TypeString:
		return length
	default:
		return 0
	}
}

// Attribute is one column of a schema.
type Attribute struct {
	Name   string
	Type   Type
	Length int // declared byte length, meaningful only for TypeString
}

// Width returns this attribute's fixed encoded width.
func (a Attribute) Width() int { return widthOf(a.Type, a.Length) }

// Schema is an ordered list of attributes plus the set of key-attribute
// indexes. Unlike the teacher's reconstruct-as-{0} stub, the key set here
// is persisted and round-trips through page-0 metadata (see internal/recordmgr).
type Schema struct {
	Attrs    []Attribute
	KeyAttrs []int
}

// New builds a schema, sorting nothing — attribute order is significant
// and fixed by the caller.
func New(attrs []Attribute, keyAttrs []int) Schema {
	return Schema{Attrs: attrs, KeyAttrs: keyAttrs}
}

// Width returns the record width R: the sum of every attribute's width.
func (s Schema) Width() int {
	total := 0
	for _, a := range s.Attrs {
		total += a.Width()
	}
	return total
}

// Offsets returns the byte offset of each attribute within a record
// buffer, computed as prefix sums of the attribute widths.
func (s Schema) Offsets() []int {
	offs := make([]int, len(s.Attrs))
	running := 0
	for i, a := range s.Attrs {
		offs[i] = running
		running += a.Width()
	}
	return offs
}

// IndexOf returns the attribute index for name, or an error.
func (s Schema) IndexOf(name string) (int, error) {
	for i, a := range s.Attrs {
		if a.Name == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q", ErrAttrNotFound, name)
}

// Value holds one attribute value of any of the four supported types.
// Exactly one field is meaningful, selected by Type.
type Value struct {
	Type   Type
	Int    int32
	Float  float32
	Bool   bool
	String string
}

// IntValue, FloatValue, BoolValue, StringValue are convenience constructors.
func IntValue(v int32) Value     { return Value{Type: TypeInt, Int: v} }
func FloatValue(v float32) Value { return Value{Type: TypeFloat, Float: v} }
func BoolValue(v bool) Value     { return Value{Type: TypeBool, Bool: v} }
func StringValue(v string) Value { return Value{Type: TypeString, String: v} }

// NewRecordBuffer allocates a zeroed buffer of exactly schema Width() bytes.
func (s Schema) NewRecordBuffer() []byte {
	return make([]byte, s.Width())
}

// SetAttr encodes value into buf at the attribute's computed offset,
// mutating buf in place. buf must be at least Schema.Width() bytes.
func (s Schema) SetAttr(buf []byte, attrIdx int, value Value) error {
	if attrIdx < 0 || attrIdx >= len(s.Attrs) {
		return fmt.Errorf("%w: index %d", ErrAttrNotFound, attrIdx)
	}
	attr := s.Attrs[attrIdx]
	if value.Type != attr.Type {
		return fmt.Errorf("%w: attribute %q is %s, got %s", ErrWrongType, attr.Name, attr.Type, value.Type)
	}

	offs := s.Offsets()
	off := offs[attrIdx]
	width := attr.Width()
	if off+width > len(buf) {
		return fmt.Errorf("%w: need %d bytes, have %d", ErrBufferTooSmall, off+width, len(buf))
	}
	window := buf[off : off+width]

	switch attr.Type {
	case TypeInt:
		bx.PutI32(window, value.Int)
	case TypeFloat:
		bx.PutU32(window, math.Float32bits(value.Float))
	case TypeBool:
		if value.Bool {
			window[0] = 1
		} else {
			window[0] = 0
		}
	case TypeString:
		raw := []byte(value.String)
		if len(raw) > width {
			return fmt.Errorf("%w: attribute %q allows %d bytes, got %d", ErrStringTooLong, attr.Name, width, len(raw))
		}
		for i := range window {
			window[i] = 0
		}
		copy(window, raw)
	}
	return nil
}

// GetAttr decodes the attribute at attrIdx out of buf.
func (s Schema) GetAttr(buf []byte, attrIdx int) (Value, error) {
	if attrIdx < 0 || attrIdx >= len(s.Attrs) {
		return Value{}, fmt.Errorf("%w: index %d", ErrAttrNotFound, attrIdx)
	}
	attr := s.Attrs[attrIdx]

	offs := s.Offsets()
	off := offs[attrIdx]
	width := attr.Width()
	if off+width > len(buf) {
		return Value{}, fmt.Errorf("%w: need %d bytes, have %d", ErrBufferTooSmall, off+width, len(buf))
	}
	window := buf[off : off+width]

	switch attr.Type {
	case TypeInt:
		return IntValue(bx.I32(window)), nil
	case TypeFloat:
		return FloatValue(math.Float32frombits(bx.U32(window))), nil
	case TypeBool:
		return BoolValue(window[0] != 0), nil
	case TypeString:
		end := 0
		for end < len(window) && window[end] != 0 {
			end++
		}
		return StringValue(string(window[:end])), nil
	default:
		return Value{}, fmt.Errorf("%w: %d", ErrUnknownType, attr.Type)
	}
}

// IsKey reports whether attrIdx is one of the schema's declared key attributes.
func (s Schema) IsKey(attrIdx int) bool {
	for _, k := range s.KeyAttrs {
		if k == attrIdx {
			return true
		}
	}
	return false
}

// RID identifies a record's location: a data page number (>= 1) and a
// slot index within that page (>= 0).
type RID struct {
	Page int64
	Slot int32
}

// Record is a fixed-width byte buffer matching some Schema, plus the RID
// it was read from or assigned on insert.
type Record struct {
	Data []byte
	RID  RID
}

// NewRecord allocates a zeroed record buffer sized for s.
func NewRecord(s Schema) *Record {
	return &Record{Data: s.NewRecordBuffer()}
}

// GetAttr decodes the attribute at attrIdx out of r's buffer under s.
func (r *Record) GetAttr(s Schema, attrIdx int) (Value, error) {
	return s.GetAttr(r.Data, attrIdx)
}

// SetAttr encodes value into r's buffer at attrIdx under s.
func (r *Record) SetAttr(s Schema, attrIdx int, value Value) error {
	return s.SetAttr(r.Data, attrIdx, value)
}
