package qi

import (
	"errors"
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type segment struct {
	From, To point
	Label    string
	Weights  []float64
	private  int
}

func TestSerialize(t *testing.T) {
	seven := int32(7)
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"scalar", int16(3), int16(3)},
		{"string", "hi", "hi"},
		{"struct", point{1, 2}, NewTuple(int32(1), int32(2))},
		{"nested struct", segment{From: point{1, 2}, To: point{3, 4}, Label: "s", Weights: []float64{0.5}, private: 9},
			NewTuple(NewTuple(int32(1), int32(2)), NewTuple(int32(3), int32(4)), "s", []any{0.5})},
		{"slice", []point{{1, 1}}, []any{NewTuple(int32(1), int32(1))}},
		{"array", [2]string{"a", "b"}, []any{"a", "b"}},
		{"nil slice", []string(nil), []any{}},
		{"map", map[string]int{"a": 1}, map[any]any{"a": 1}},
		{"pointer", &seven, int32(7)},
		{"nil pointer", (*int32)(nil), nil},
		{"tuple", NewTuple(1, "x"), NewTuple(1, "x")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DefaultSerializer.Serialize(tc.in)
			if err != nil {
				t.Fatalf("Serialize got err: %v", err)
			}
			if diff := cmp.Diff(got, tc.want); diff != "" {
				t.Errorf("wrong serialization (-got+want):\n%s", diff)
			}
		})
	}
}

func TestSerializeErrors(t *testing.T) {
	for _, in := range []any{
		func() {},
		make(chan int),
		complex(1, 2),
		[]any{1, func() {}},
		map[point]int{{1, 2}: 3},
	} {
		_, err := DefaultSerializer.Serialize(in)
		var ce ConversionError
		if !errors.As(err, &ce) {
			t.Errorf("Serialize(%T) err = %v, want ConversionError", in, err)
		}
	}
}

func TestDeserialize(t *testing.T) {
	five := int32(5)
	tests := []struct {
		name string
		in   any
		to   reflect.Type
		want any
	}{
		{"same type", int32(1), reflect.TypeFor[int32](), int32(1)},
		{"widen", int32(1), reflect.TypeFor[int64](), int64(1)},
		{"narrow exact", int64(100), reflect.TypeFor[int8](), int8(100)},
		{"float to int exact", 2.0, reflect.TypeFor[int](), 2},
		{"int to float", int64(3), reflect.TypeFor[float64](), 3.0},
		{"interface", "x", reflect.TypeFor[any](), "x"},
		{"named string", "x", reflect.TypeFor[label](), label("x")},
		{"nil pointer", nil, reflect.TypeFor[*int](), (*int)(nil)},
		{"nil slice", nil, reflect.TypeFor[[]int](), []int(nil)},
		{"boxed", int64(5), reflect.TypeFor[*int32](), &five},
		{"tuple to struct", NewTuple(int64(1), int64(2)), reflect.TypeFor[point](), point{1, 2}},
		{"list", []any{int64(1), int64(2)}, reflect.TypeFor[[]int32](), []int32{1, 2}},
		{"array", []any{"a", "b"}, reflect.TypeFor[[2]string](), [2]string{"a", "b"}},
		{"map", map[any]any{"a": int64(1)}, reflect.TypeFor[map[string]int](), map[string]int{"a": 1}},
		{"struct to tuple", point{1, 2}, reflect.TypeFor[Tuple](), NewTuple(int32(1), int32(2))},
		{"nested", []any{NewTuple(int32(1), int32(2))}, reflect.TypeFor[[]point](), []point{{1, 2}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DefaultSerializer.Deserialize(tc.in, tc.to)
			if err != nil {
				t.Fatalf("Deserialize got err: %v", err)
			}
			if diff := cmp.Diff(got, tc.want); diff != "" {
				t.Errorf("wrong deserialization (-got+want):\n%s", diff)
			}
		})
	}
}

type label string

func TestDeserializeErrors(t *testing.T) {
	tests := []struct {
		name string
		in   any
		to   reflect.Type
	}{
		{"overflow", int64(1 << 40), reflect.TypeFor[int32]()},
		{"fraction", 2.5, reflect.TypeFor[int]()},
		{"negative to unsigned", int32(-1), reflect.TypeFor[uint8]()},
		{"string to int", "42", reflect.TypeFor[int32]()},
		{"nil to int", nil, reflect.TypeFor[int]()},
		{"tuple arity", NewTuple(int64(1)), reflect.TypeFor[point]()},
		{"not a tuple", "x", reflect.TypeFor[point]()},
		{"not a list", int64(1), reflect.TypeFor[[]int]()},
		{"array length", []any{"a"}, reflect.TypeFor[[2]string]()},
		{"bad element", []any{"a"}, reflect.TypeFor[[]int]()},
		{"interface", int64(1), reflect.TypeFor[error]()},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DefaultSerializer.Deserialize(tc.in, tc.to)
			var ce ConversionError
			if !errors.As(err, &ce) {
				t.Errorf("Deserialize err = %v, want ConversionError", err)
			}
		})
	}
}

func TestSerializeRoundTrip(t *testing.T) {
	in := segment{From: point{1, 2}, To: point{-3, 4}, Label: "s", Weights: []float64{0.25, 8}}
	wire, err := DefaultSerializer.Serialize(in)
	if err != nil {
		t.Fatalf("Serialize got err: %v", err)
	}
	if err := ValidateArgs([]any{wire}); err != nil {
		t.Fatalf("serialized value is not a valid argument: %v", err)
	}
	got, err := DefaultSerializer.Deserialize(wire, reflect.TypeFor[segment]())
	if err != nil {
		t.Fatalf("Deserialize got err: %v", err)
	}
	if diff := cmp.Diff(got, in, cmp.AllowUnexported(segment{})); diff != "" {
		t.Errorf("round trip changed value (-got+want):\n%s", diff)
	}
}

func TestConvertEach(t *testing.T) {
	types := []reflect.Type{reflect.TypeFor[string](), reflect.TypeFor[int32](), reflect.TypeFor[bool](), reflect.TypeFor[float64]()}
	got, failed := convertEach(DefaultSerializer, []any{"42", "not a number", nil}, types)
	if diff := cmp.Diff(failed, []int{1}); diff != "" {
		t.Errorf("wrong failed arguments (-got+want):\n%s", diff)
	}
	want := []any{"42", "not a number", false, 0.0}
	for i, v := range got {
		if diff := cmp.Diff(v.Interface(), want[i]); diff != "" {
			t.Errorf("argument %d (-got+want):\n%s", i, diff)
		}
	}
}

type Base struct {
	Kind string
}

type annotated struct {
	*Base
	Note  string
	Cache map[string]int `qi:"-"`
}

func TestSerializeEmbedded(t *testing.T) {
	got, err := DefaultSerializer.Serialize(annotated{Note: "n", Cache: map[string]int{"x": 1}})
	if err != nil {
		t.Fatalf("Serialize got err: %v", err)
	}
	if diff := cmp.Diff(got, NewTuple("", "n")); diff != "" {
		t.Errorf("nil embedded pointer serialized wrong (-got+want):\n%s", diff)
	}

	back, err := DefaultSerializer.Deserialize(NewTuple("k", "n"), reflect.TypeFor[annotated]())
	if err != nil {
		t.Fatalf("Deserialize got err: %v", err)
	}
	want := annotated{Base: &Base{Kind: "k"}, Note: "n"}
	if diff := cmp.Diff(back, want); diff != "" {
		t.Errorf("embedded pointer not allocated (-got+want):\n%s", diff)
	}
}

func TestSerializeSelfReferential(t *testing.T) {
	loop := make([]any, 1)
	loop[0] = loop
	ring := &chain{Name: "a"}
	ring.Next = &chain{Name: "b", Next: ring}
	m := map[string]any{}
	m["self"] = m

	for _, in := range []any{loop, ring, m} {
		_, err := DefaultSerializer.Serialize(in)
		var ce ConversionError
		if !errors.As(err, &ce) {
			t.Errorf("Serialize(%T) err = %v, want ConversionError", in, err)
		}
	}

	// Shared storage that does not contain itself is fine.
	leaf := &chain{Name: "leaf"}
	got, err := DefaultSerializer.Serialize([]*chain{leaf, leaf})
	if err != nil {
		t.Fatalf("Serialize with shared pointer got err: %v", err)
	}
	want := []any{NewTuple("leaf", nil), NewTuple("leaf", nil)}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Serialize with shared pointer (-got+want):\n%s", diff)
	}
}
