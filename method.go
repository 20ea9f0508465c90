package qi

import (
	"slices"
	"strings"
)

// MethodDescriptor describes the shape of a method: its name, its
// return type, and its ordered parameter types.
//
// MethodDescriptors are immutable once built, and safe to share.
type MethodDescriptor struct {
	name   string
	ret    Type
	params []Type
}

// NewMethod returns a MethodDescriptor with the given shape.
func NewMethod(name string, ret Type, params ...Type) *MethodDescriptor {
	return &MethodDescriptor{name, ret, slices.Clone(params)}
}

// Name returns the method's name.
func (m *MethodDescriptor) Name() string { return m.name }

// Return returns the method's return type.
func (m *MethodDescriptor) Return() Type { return m.ret }

// NumParams returns the number of parameters of the method.
func (m *MethodDescriptor) NumParams() int { return len(m.params) }

// Param returns the type of the i-th parameter.
func (m *MethodDescriptor) Param(i int) Type { return m.params[i] }

// Params returns a copy of the method's parameter types.
func (m *MethodDescriptor) Params() []Type { return slices.Clone(m.params) }

// Signature returns the method's shape in descriptor grammar, without
// its name.
func (m *MethodDescriptor) Signature() string {
	var b strings.Builder
	b.WriteByte('(')
	for _, p := range m.params {
		p.render(&b)
	}
	b.WriteByte(')')
	m.ret.render(&b)
	return b.String()
}

func (m *MethodDescriptor) String() string {
	return m.name + m.Signature()
}

// Distance returns the distance between m, the declared shape, and a
// candidate method.
//
// Methods with different names or parameter counts are always
// [Incompatible]. Otherwise the distance is the sum of the return
// type distance, which may unwrap a future, and every parameter's
// distance.
func (m *MethodDescriptor) Distance(candidate *MethodDescriptor) Distance {
	if m.name != candidate.name || len(m.params) != len(candidate.params) {
		return Incompatible
	}
	ret := TypeDistance(m.ret, candidate.ret, true)
	for i, p := range m.params {
		if ret == Incompatible {
			break
		}
		ret = ret.Add(TypeDistance(p, candidate.params[i], false))
	}
	return ret
}

// withReturn returns a copy of m with a different return type.
func (m *MethodDescriptor) withReturn(ret Type) *MethodDescriptor {
	return &MethodDescriptor{m.name, ret, m.params}
}
