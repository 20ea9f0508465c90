package qi

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/segmentio/encoding/json"
)

// A Tuple is an ordered, fixed-length record of heterogeneous
// values. It is the generic form of structs on the wire.
//
// Tuples are immutable.
type Tuple struct {
	vals []any
}

// NewTuple returns a Tuple holding vals.
func NewTuple(vals ...any) Tuple {
	return Tuple{slices.Clone(vals)}
}

// Len returns the number of elements in t.
func (t Tuple) Len() int { return len(t.vals) }

// Get returns the i-th element of t.
func (t Tuple) Get(i int) any { return t.vals[i] }

// Values returns a copy of the elements of t.
func (t Tuple) Values() []any { return slices.Clone(t.vals) }

// Equal reports whether t and o hold deeply equal elements.
func (t Tuple) Equal(o Tuple) bool {
	return slices.EqualFunc(t.vals, o.vals, func(a, b any) bool {
		return reflect.DeepEqual(a, b)
	})
}

func (t Tuple) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, v := range t.vals {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%v", v)
	}
	b.WriteByte(')')
	return b.String()
}

// MarshalJSON encodes t as a JSON array.
func (t Tuple) MarshalJSON() ([]byte, error) {
	vals := make([]any, len(t.vals))
	for i, v := range t.vals {
		vals[i] = jsonable(v)
	}
	return json.Marshal(vals)
}
