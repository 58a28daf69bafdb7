// Package page implements the named key/value records ("pages") stored in USM chunks.
package page

import (
	"errors"
	"fmt"
	"math"
	"slices"
)

// ElementType is the storage type of one page field.
type ElementType uint8

// Field types. The value is the low nibble of the column flag byte.
const (
	Uint8 ElementType = iota
	Int8
	Uint16
	Int16
	Uint32
	Int32
	Uint64
	Int64
	Float32
	Float64
	String
	Bytes
)

var typeNames = [...]string{
	"uint8", "int8", "uint16", "int16", "uint32", "int32",
	"uint64", "int64", "float32", "float64", "string", "bytes",
}

// String returns the name of the type.
func (t ElementType) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// Valid reports whether t is a known field type.
func (t ElementType) Valid() bool {
	return t <= Bytes
}

// width returns the number of bytes the value occupies in a row or column schema.
func (t ElementType) width() int {
	switch t {
	case Uint8, Int8:
		return 1
	case Uint16, Int16:
		return 2
	case Uint32, Int32, Float32, String:
		return 4
	case Uint64, Int64, Float64, Bytes:
		return 8
	default:
		return 0
	}
}

func (t ElementType) signed() bool {
	return t == Int8 || t == Int16 || t == Int32 || t == Int64
}

// ErrNoField is returned when a page does not carry the requested field.
var ErrNoField = errors.New("page: field not found")

// Field is one typed value of a page.
type Field struct {
	Name string
	Type ElementType

	i int64
	u uint64
	f float64
	s string
	b []byte
}

// Int returns the value of a numeric field as a signed integer.
func (f Field) Int() int64 {
	switch {
	case f.Type.signed():
		return f.i
	case f.Type == Float32 || f.Type == Float64:
		return int64(f.f)
	default:
		return int64(f.u) //nolint:gosec
	}
}

// Uint returns the value of a numeric field as an unsigned integer.
func (f Field) Uint() uint64 {
	switch {
	case f.Type.signed():
		return uint64(f.i) //nolint:gosec
	case f.Type == Float32 || f.Type == Float64:
		return uint64(f.f)
	default:
		return f.u
	}
}

// Float returns the value of a numeric field as a float.
func (f Field) Float() float64 {
	switch {
	case f.Type == Float32 || f.Type == Float64:
		return f.f
	case f.Type.signed():
		return float64(f.i)
	default:
		return float64(f.u)
	}
}

// Str returns the value of a string field.
func (f Field) Str() string {
	return f.s
}

// Bytes returns the value of a binary field.
func (f Field) Bytes() []byte {
	return f.b
}

// Value returns the field value boxed in its natural Go type.
func (f Field) Value() any {
	switch f.Type {
	case Int8, Int16, Int32, Int64:
		return f.i
	case Uint8, Uint16, Uint32, Uint64:
		return f.u
	case Float32, Float64:
		return f.f
	case String:
		return f.s
	case Bytes:
		return f.b
	default:
		return nil
	}
}

func (f Field) equal(o Field) bool {
	if f.Type != o.Type {
		return false
	}
	switch f.Type {
	case String:
		return f.s == o.s
	case Bytes:
		return slices.Equal(f.b, o.b)
	case Float32, Float64:
		return math.Float64bits(f.f) == math.Float64bits(o.f)
	default:
		return f.i == o.i && f.u == o.u
	}
}

// Page is a named, ordered set of typed fields.
type Page struct {
	Name   string
	fields []Field
}

// New creates an empty page.
func New(name string) *Page {
	return &Page{Name: name}
}

func (p *Page) set(f Field) {
	for i := range p.fields {
		if p.fields[i].Name == f.Name {
			p.fields[i] = f
			return
		}
	}
	p.fields = append(p.fields, f)
}

// SetInt stores a signed integer field.
func (p *Page) SetInt(name string, typ ElementType, v int64) *Page {
	f := Field{Name: name, Type: typ}
	switch {
	case typ.signed():
		f.i = v
	case typ == Float32 || typ == Float64:
		f.f = float64(v)
	default:
		f.u = uint64(v) //nolint:gosec
	}
	p.set(f)
	return p
}

// SetUint stores an unsigned integer field.
func (p *Page) SetUint(name string, typ ElementType, v uint64) *Page {
	if typ.signed() || typ == Float32 || typ == Float64 {
		return p.SetInt(name, typ, int64(v)) //nolint:gosec
	}
	p.set(Field{Name: name, Type: typ, u: v})
	return p
}

// SetFloat stores a floating point field.
func (p *Page) SetFloat(name string, typ ElementType, v float64) *Page {
	if typ != Float32 && typ != Float64 {
		return p.SetInt(name, typ, int64(v))
	}
	p.set(Field{Name: name, Type: typ, f: v})
	return p
}

// SetString stores a string field.
func (p *Page) SetString(name, v string) *Page {
	p.set(Field{Name: name, Type: String, s: v})
	return p
}

// SetBytes stores a binary field.
func (p *Page) SetBytes(name string, v []byte) *Page {
	p.set(Field{Name: name, Type: Bytes, b: slices.Clone(v)})
	return p
}

// Get returns the field with the given name.
func (p *Page) Get(name string) (Field, bool) {
	for _, f := range p.fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Has reports whether the page carries the field.
func (p *Page) Has(name string) bool {
	_, ok := p.Get(name)
	return ok
}

// Int returns a numeric field as a signed integer.
func (p *Page) Int(name string) (int64, error) {
	f, ok := p.Get(name)
	if !ok {
		return 0, fmt.Errorf("%w: %s.%s", ErrNoField, p.Name, name)
	}
	if f.Type == String || f.Type == Bytes {
		return 0, fmt.Errorf("page: field %s.%s is %v, not numeric", p.Name, name, f.Type)
	}
	return f.Int(), nil
}

// Str returns a string field.
func (p *Page) Str(name string) (string, error) {
	f, ok := p.Get(name)
	if !ok {
		return "", fmt.Errorf("%w: %s.%s", ErrNoField, p.Name, name)
	}
	if f.Type != String {
		return "", fmt.Errorf("page: field %s.%s is %v, not string", p.Name, name, f.Type)
	}
	return f.s, nil
}

// Fields returns the fields in insertion order.
func (p *Page) Fields() []Field {
	return p.fields
}

// Len returns the number of fields.
func (p *Page) Len() int {
	return len(p.fields)
}

// Clone returns a deep copy of the page.
func (p *Page) Clone() *Page {
	c := &Page{Name: p.Name, fields: make([]Field, len(p.fields))}
	for i, f := range p.fields {
		f.b = slices.Clone(f.b)
		c.fields[i] = f
	}
	return c
}

// String implements fmt.Stringer.
func (p *Page) String() string {
	return p.Name
}
