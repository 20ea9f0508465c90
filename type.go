package qi

import (
	"strings"
)

// Kind is the kind of a [Type].
type Kind uint8

const (
	KindVoid Kind = iota
	KindBoolean
	KindByte
	KindChar
	KindShort
	KindInt32
	KindInt64
	KindFloat32
	KindFloat64
	// KindNamed is a reference to a named object or value type, such
	// as qi.String or a registered struct.
	KindNamed
	// KindArray is a sequence of some element type.
	KindArray
	// KindFuture is an asynchronous result, possibly of unknown
	// payload type.
	KindFuture
)

var kindNames = [...]string{
	KindVoid:    "void",
	KindBoolean: "boolean",
	KindByte:    "byte",
	KindChar:    "char",
	KindShort:   "short",
	KindInt32:   "int32",
	KindInt64:   "int64",
	KindFloat32: "float32",
	KindFloat64: "float64",
	KindNamed:   "named",
	KindArray:   "array",
	KindFuture:  "future",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "invalid"
}

// A Type describes the type of a value crossing the object boundary.
//
// Types are immutable and safe to share. Two Types describe the same
// type if [Type.Equal] reports true; the == operator does not compare
// element types. The zero Type is Void.
type Type struct {
	kind Kind
	name string
	elem *Type
}

// Primitive types.
var (
	VoidType    = Type{kind: KindVoid}
	BooleanType = Type{kind: KindBoolean}
	ByteType    = Type{kind: KindByte}
	CharType    = Type{kind: KindChar}
	ShortType   = Type{kind: KindShort}
	Int32Type   = Type{kind: KindInt32}
	Int64Type   = Type{kind: KindInt64}
	Float32Type = Type{kind: KindFloat32}
	Float64Type = Type{kind: KindFloat64}
)

const (
	stringName = "qi.String"
	valueName  = "qi.Value"
	objectName = "qi.Object"
	tupleName  = "qi.Tuple"
	listName   = "qi.List"
	mapName    = "qi.Map"
	futureName = "qi.Future"
)

// Well-known named types.
var (
	// StringType is a text string.
	StringType = NamedType(stringName)
	// ValueType is a dynamically typed value.
	ValueType = NamedType(valueName)
	// ObjectType is the generic remote object, [*Object] in Go.
	ObjectType = NamedType(objectName)
	// TupleType is the generic fixed-arity record, [Tuple] in Go.
	TupleType = NamedType(tupleName)
	// ListType is the generic sequence, []any in Go.
	ListType = NamedType(listName)
	// MapType is the generic mapping, map[any]any in Go.
	MapType = NamedType(mapName)
	// UnknownFuture is a future whose payload type is not known.
	UnknownFuture = Type{kind: KindFuture}
)

// NamedType returns the Type with the given fully qualified name.
//
// The name qi.Future yields [UnknownFuture].
func NamedType(name string) Type {
	if name == futureName {
		return UnknownFuture
	}
	return Type{kind: KindNamed, name: name}
}

// ArrayOf returns the Type of a sequence of elem.
func ArrayOf(elem Type) Type {
	return Type{kind: KindArray, elem: &elem}
}

// FutureOf returns the Type of a future resolving to payload.
func FutureOf(payload Type) Type {
	return Type{kind: KindFuture, elem: &payload}
}

// Kind returns the kind of t.
func (t Type) Kind() Kind { return t.kind }

// Name returns the fully qualified name of a named type or future,
// and the empty string for every other kind.
func (t Type) Name() string {
	switch t.kind {
	case KindNamed:
		return t.name
	case KindFuture:
		return futureName
	}
	return ""
}

// Elem returns the element type of an array, or the payload of a
// future. ok is false for other kinds, and for futures whose payload
// is unknown.
func (t Type) Elem() (elem Type, ok bool) {
	if t.elem == nil {
		return Type{}, false
	}
	return *t.elem, true
}

// IsPrimitive reports whether t is one of the primitive kinds, from
// Void to Float64.
func (t Type) IsPrimitive() bool {
	return t.kind <= KindFloat64
}

// Equal reports whether t and o describe the same type.
func (t Type) Equal(o Type) bool {
	if t.kind != o.kind || t.name != o.name {
		return false
	}
	if t.elem == nil || o.elem == nil {
		return t.elem == nil && o.elem == nil
	}
	return t.elem.Equal(*o.elem)
}

// String returns the descriptor grammar encoding of t. Future
// payloads are not part of the grammar, so every future renders as
// the qi.Future named type.
func (t Type) String() string {
	var b strings.Builder
	t.render(&b)
	return b.String()
}

func (t Type) render(b *strings.Builder) {
	switch t.kind {
	case KindNamed, KindFuture:
		b.WriteByte('L')
		b.WriteString(strings.ReplaceAll(t.Name(), ".", "/"))
		b.WriteByte(';')
	case KindArray:
		b.WriteByte('[')
		t.elem.render(b)
	default:
		b.WriteByte(kindToCode[t.kind])
	}
}
