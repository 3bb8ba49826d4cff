// Package vtree provides a generic, self-describing value tree.
//
// Replies from structured RPC surfaces (maps of arrays of variants, and so on)
// are converted into a Value so that decoders can be written against the shape
// of the data instead of a specific wire encoding.
package vtree

import (
	"fmt"
	"strings"
)

// Kind describes the type tag of a Value.
type Kind uint8

const (
	Invalid Kind = iota
	Map
	Array
	Variant
	String
	ObjectPath
	Bool
	Int
	Uint
	Double
	Bytes
)

// String converts a Kind to a string.
func (k Kind) String() string {
	switch k {
	case Map:
		return "map"
	case Array:
		return "array"
	case Variant:
		return "variant"
	case String:
		return "string"
	case ObjectPath:
		return "object-path"
	case Bool:
		return "bool"
	case Int:
		return "int"
	case Uint:
		return "uint"
	case Double:
		return "double"
	case Bytes:
		return "bytes"
	}

	return "invalid"
}

// Entry is a single key/value pair of a Map value.
type Entry struct {
	Key   Value
	Value Value
}

// Value is a node of the tree. The zero Value has kind Invalid.
type Value struct {
	kind Kind

	str string
	b   bool
	i   int64
	u   uint64
	f   float64
	raw []byte

	entries []Entry
	items   []Value
	inner   *Value
}

// NewMap returns a map value holding entries in the given order.
func NewMap(entries ...Entry) Value {
	return Value{kind: Map, entries: entries}
}

// E returns a map entry.
func E(key, value Value) Entry {
	return Entry{Key: key, Value: value}
}

// NewArray returns an array value.
func NewArray(items ...Value) Value {
	return Value{kind: Array, items: items}
}

// NewVariant returns a variant wrapping v.
func NewVariant(v Value) Value {
	return Value{kind: Variant, inner: &v}
}

// NewString returns a string value.
func NewString(s string) Value {
	return Value{kind: String, str: s}
}

// NewObjectPath returns an object path value.
func NewObjectPath(p string) Value {
	return Value{kind: ObjectPath, str: p}
}

// NewBool returns a boolean value.
func NewBool(b bool) Value {
	return Value{kind: Bool, b: b}
}

// NewInt returns a signed integer value.
func NewInt(i int64) Value {
	return Value{kind: Int, i: i}
}

// NewUint returns an unsigned integer value.
func NewUint(u uint64) Value {
	return Value{kind: Uint, u: u}
}

// NewDouble returns a floating point value.
func NewDouble(f float64) Value {
	return Value{kind: Double, f: f}
}

// NewBytes returns a byte array value.
func NewBytes(b []byte) Value {
	return Value{kind: Bytes, raw: b}
}

// Kind returns the type tag of the value.
func (v Value) Kind() Kind {
	return v.kind
}

// Entries returns the entries of a map value.
func (v Value) Entries() ([]Entry, bool) {
	return v.entries, v.kind == Map
}

// Items returns the items of an array value.
func (v Value) Items() ([]Value, bool) {
	return v.items, v.kind == Array
}

// Inner returns the value wrapped by a variant.
func (v Value) Inner() (Value, bool) {
	if v.kind != Variant || v.inner == nil {
		return Value{}, false
	}

	return *v.inner, true
}

// Text returns the contents of a string or object path value.
func (v Value) Text() (string, bool) {
	return v.str, v.kind == String || v.kind == ObjectPath
}

// Bool returns the contents of a boolean value.
func (v Value) Bool() (bool, bool) {
	return v.b, v.kind == Bool
}

// Int returns the contents of a signed integer value.
func (v Value) Int() (int64, bool) {
	return v.i, v.kind == Int
}

// Uint returns the contents of an unsigned integer value.
func (v Value) Uint() (uint64, bool) {
	return v.u, v.kind == Uint
}

// Double returns the contents of a floating point value.
func (v Value) Double() (float64, bool) {
	return v.f, v.kind == Double
}

// Bytes returns the contents of a byte array value.
func (v Value) Bytes() ([]byte, bool) {
	return v.raw, v.kind == Bytes
}

// String renders the value for diagnostics.
func (v Value) String() string {
	var sb strings.Builder
	v.render(&sb)

	return sb.String()
}

func (v Value) render(sb *strings.Builder) {
	switch v.kind {
	case Map:
		sb.WriteString("{")
		for i, e := range v.entries {
			if i > 0 {
				sb.WriteString(", ")
			}
			e.Key.render(sb)
			sb.WriteString(": ")
			e.Value.render(sb)
		}
		sb.WriteString("}")

	case Array:
		sb.WriteString("[")
		for i, item := range v.items {
			if i > 0 {
				sb.WriteString(", ")
			}
			item.render(sb)
		}
		sb.WriteString("]")

	case Variant:
		sb.WriteString("<")
		if v.inner != nil {
			v.inner.render(sb)
		}
		sb.WriteString(">")

	case String, ObjectPath:
		fmt.Fprintf(sb, "%q", v.str)

	case Bool:
		fmt.Fprintf(sb, "%t", v.b)

	case Int:
		fmt.Fprintf(sb, "%d", v.i)

	case Uint:
		fmt.Fprintf(sb, "%d", v.u)

	case Double:
		fmt.Fprintf(sb, "%g", v.f)

	case Bytes:
		fmt.Fprintf(sb, "%x", v.raw)

	default:
		sb.WriteString("invalid")
	}
}
