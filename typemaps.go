package qi

import (
	"reflect"

	"github.com/creachadair/mds/mapset"
)

var (
	// codeToKind maps the descriptor grammar code of a primitive type
	// to its Kind.
	codeToKind = map[byte]Kind{
		'V': KindVoid,
		'Z': KindBoolean,
		'B': KindByte,
		'C': KindChar,
		'S': KindShort,
		'I': KindInt32,
		'J': KindInt64,
		'F': KindFloat32,
		'D': KindFloat64,
	}

	// kindToCode is the inverse of codeToKind.
	kindToCode = map[Kind]byte{
		KindVoid:    'V',
		KindBoolean: 'Z',
		KindByte:    'B',
		KindChar:    'C',
		KindShort:   'S',
		KindInt32:   'I',
		KindInt64:   'J',
		KindFloat32: 'F',
		KindFloat64: 'D',
	}

	// compactCodes maps the single character codes of the compact
	// signature format to Types. Unsigned codes share the Kind of
	// their signed counterpart.
	compactCodes = map[byte]Type{
		'v': VoidType,
		'b': BooleanType,
		'c': ByteType,
		'C': ByteType,
		'w': ShortType,
		'W': CharType,
		'i': Int32Type,
		'I': Int32Type,
		'l': Int64Type,
		'L': Int64Type,
		'f': Float32Type,
		'd': Float64Type,
		's': StringType,
		'm': ValueType,
		'o': ObjectType,
		'X': ValueType,
	}

	// boxedNames maps primitive kinds to the name of their boxed,
	// nullable counterpart.
	boxedNames = map[Kind]string{
		KindVoid:    "qi.Void",
		KindBoolean: "qi.Bool",
		KindByte:    "qi.Byte",
		KindChar:    "qi.Char",
		KindShort:   "qi.Short",
		KindInt32:   "qi.Int32",
		KindInt64:   "qi.Int64",
		KindFloat32: "qi.Float32",
		KindFloat64: "qi.Float64",
	}

	// boxedKinds is the inverse of boxedNames.
	boxedKinds = func() map[string]Kind {
		ret := make(map[string]Kind, len(boxedNames))
		for k, n := range boxedNames {
			ret[n] = k
		}
		return ret
	}()

	// numericKinds is the set of primitive kinds that participate in
	// numeric widening.
	numericKinds = mapset.New(
		KindByte,
		KindShort,
		KindInt32,
		KindInt64,
		KindFloat32,
		KindFloat64,
	)

	// kindToGo maps primitive kinds to the Go type used to hold them.
	kindToGo = map[Kind]reflect.Type{
		KindBoolean: reflect.TypeFor[bool](),
		KindByte:    reflect.TypeFor[uint8](),
		KindChar:    reflect.TypeFor[uint16](),
		KindShort:   reflect.TypeFor[int16](),
		KindInt32:   reflect.TypeFor[int32](),
		KindInt64:   reflect.TypeFor[int64](),
		KindFloat32: reflect.TypeFor[float32](),
		KindFloat64: reflect.TypeFor[float64](),
	}

	// goKindToKind maps the reflect.Kinds of Go basic types to
	// primitive kinds.
	goKindToKind = map[reflect.Kind]Kind{
		reflect.Bool:    KindBoolean,
		reflect.Int8:    KindByte,
		reflect.Uint8:   KindByte,
		reflect.Uint16:  KindChar,
		reflect.Int16:   KindShort,
		reflect.Int32:   KindInt32,
		reflect.Uint32:  KindInt32,
		reflect.Int:     KindInt64,
		reflect.Uint:    KindInt64,
		reflect.Int64:   KindInt64,
		reflect.Uint64:  KindInt64,
		reflect.Uintptr: KindInt64,
		reflect.Float32: KindFloat32,
		reflect.Float64: KindFloat64,
	}
)

// primitiveKind returns the primitive kind of t, looking through
// boxed named types.
func primitiveKind(t Type) (Kind, bool) {
	if t.IsPrimitive() {
		return t.kind, true
	}
	if t.kind == KindNamed {
		k, ok := boxedKinds[t.name]
		return k, ok
	}
	return 0, false
}

// isNumeric reports whether t is a numeric primitive or boxed
// numeric.
func isNumeric(t Type) bool {
	k, ok := primitiveKind(t)
	return ok && numericKinds.Has(k)
}
