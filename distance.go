package qi

import (
	"math"
	"strconv"
)

// Distance measures how well one type or method shape matches
// another. Zero is an exact match, lower is better, and
// [Incompatible] means no match at all.
type Distance uint32

// Costs of the individual type matching rules, from best to worst
// non-exact match. Their relative magnitudes are the tie-breaking
// policy between overloads.
const (
	PrimitiveObjectCost Distance = 1
	NumericWideningCost Distance = 10
	FutureUnwrapCost    Distance = 100
	CompatibleCost      Distance = 100
	TupleStructCost     Distance = 1000
	GenericObjectCost   Distance = 100000

	Incompatible Distance = math.MaxUint32
)

// Add returns d+o, saturating at Incompatible.
func (d Distance) Add(o Distance) Distance {
	sum := uint64(d) + uint64(o)
	if sum >= uint64(Incompatible) {
		return Incompatible
	}
	return Distance(sum)
}

func (d Distance) String() string {
	if d == Incompatible {
		return "incompatible"
	}
	return strconv.FormatUint(uint64(d), 10)
}

// TypeDistance returns the distance between a declared type and a
// candidate type. The first matching rule wins:
//
//   - identical types: 0
//   - a primitive and its boxed form, of the same kind: [PrimitiveObjectCost]
//   - two different numeric types: [NumericWideningCost]
//   - a future and its payload type, when allowFutureUnwrap is set:
//     [FutureUnwrapCost]
//   - [TupleType] and a struct registered with [RegisterStruct]:
//     [TupleStructCost]
//   - [ObjectType] on either side: [GenericObjectCost]
//   - Go types assignable in either direction: [CompatibleCost]
//
// Everything else is [Incompatible].
func TypeDistance(declared, candidate Type, allowFutureUnwrap bool) Distance {
	if declared.Equal(candidate) {
		return 0
	}

	dk, dok := primitiveKind(declared)
	ck, cok := primitiveKind(candidate)
	if dok && cok && dk == ck {
		return PrimitiveObjectCost
	}
	if isNumeric(declared) && isNumeric(candidate) {
		return NumericWideningCost
	}
	if allowFutureUnwrap && (unwrapsTo(declared, candidate) || unwrapsTo(candidate, declared)) {
		return FutureUnwrapCost
	}
	if tupleOfStruct(declared, candidate) || tupleOfStruct(candidate, declared) {
		return TupleStructCost
	}
	if declared.Equal(ObjectType) || candidate.Equal(ObjectType) {
		return GenericObjectCost
	}
	if assignable(declared, candidate) {
		return CompatibleCost
	}
	return Incompatible
}

// unwrapsTo reports whether f is a future whose payload is t, or a
// future of unknown payload and t is not itself a future.
func unwrapsTo(f, t Type) bool {
	if f.kind != KindFuture || t.kind == KindFuture {
		return false
	}
	payload, ok := f.Elem()
	if !ok || payload.Equal(t) {
		return true
	}
	pk, pok := primitiveKind(payload)
	tk, tok := primitiveKind(t)
	return pok && tok && pk == tk
}

func tupleOfStruct(tuple, st Type) bool {
	return tuple.Equal(TupleType) && st.kind == KindNamed && types.isStruct(st.name)
}

// assignable reports whether values of one type can be assigned to
// the other, in either direction.
func assignable(a, b Type) bool {
	if (isList(a) && b.kind == KindArray) || (isList(b) && a.kind == KindArray) {
		return true
	}
	ga, aok := goType(a)
	gb, bok := goType(b)
	if !aok || !bok {
		return false
	}
	return ga.AssignableTo(gb) || gb.AssignableTo(ga)
}

func isList(t Type) bool {
	return t.Equal(ListType)
}
