package qi

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/creachadair/mds/mapset"
)

// A Serializer converts between locally typed Go values and the
// generic wire shapes understood by remote objects: scalars, [Tuple],
// []any, map[any]any and [*Object].
type Serializer interface {
	// Serialize converts v to its wire shape.
	Serialize(v any) (any, error)
	// Deserialize converts the wire value to a value of type t.
	Deserialize(wire any, t reflect.Type) (any, error)
}

// DefaultSerializer is the Serializer used by Objects that are not
// given one with [WithSerializer].
//
// It carries structs as Tuples of their exported fields, slices and
// arrays as []any, maps as map[any]any, and pointers as the value
// they point to. Numbers convert between Go numeric types as long as
// the value is preserved exactly.
var DefaultSerializer Serializer = reflectSerializer{}

type reflectSerializer struct{}

func (reflectSerializer) Serialize(v any) (any, error) {
	return serializeValue(reflect.ValueOf(v))
}

func (reflectSerializer) Deserialize(wire any, t reflect.Type) (any, error) {
	ret, err := deserializeValue(reflect.ValueOf(wire), t)
	if err != nil {
		return nil, err
	}
	return ret.Interface(), nil
}

func convErr(from reflect.Value, to string, reason string, args ...any) error {
	fs := "nil"
	if from.IsValid() {
		fs = from.Type().String()
	}
	return ConversionError{fs, to, fmt.Errorf(reason, args...)}
}

func serializeValue(v reflect.Value) (any, error) {
	return serializeIn(v, mapset.New[valueRef]())
}

// serializeIn serializes v, which is nested inside the storage listed
// in active.
func serializeIn(v reflect.Value, active mapset.Set[valueRef]) (any, error) {
	if !v.IsValid() {
		return nil, nil
	}
	switch v.Type() {
	case objectType:
		if v.IsNil() {
			return nil, nil
		}
		return v.Interface(), nil
	case tupleType:
		return v.Interface(), nil
	}

	if r, ok := refOf(v); ok {
		if active.Has(r) {
			return nil, convErr(v, "wire value", "value contains itself")
		}
		active.Add(r)
		defer active.Remove(r)
	}

	switch v.Kind() {
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			return nil, nil
		}
		return serializeIn(v.Elem(), active)
	case reflect.Struct:
		fields, err := recordFields(v.Type())
		if err != nil {
			return nil, convErr(v, "qi.Tuple", "%w", err)
		}
		vals := make([]any, len(fields))
		for i, f := range fields {
			if vals[i], err = serializeIn(f.load(v, false), active); err != nil {
				return nil, err
			}
		}
		return Tuple{vals}, nil
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			return []any{}, nil
		}
		ret := make([]any, v.Len())
		for i := range v.Len() {
			var err error
			if ret[i], err = serializeIn(v.Index(i), active); err != nil {
				return nil, err
			}
		}
		return ret, nil
	case reflect.Map:
		ret := make(map[any]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			k, err := serializeIn(iter.Key(), active)
			if err != nil {
				return nil, err
			}
			if k != nil && !reflect.TypeOf(k).Comparable() {
				return nil, convErr(iter.Key(), "map key", "serialized key of type %T is not comparable", k)
			}
			val, err := serializeIn(iter.Value(), active)
			if err != nil {
				return nil, err
			}
			ret[k] = val
		}
		return ret, nil
	case reflect.Func, reflect.Chan, reflect.UnsafePointer, reflect.Complex64, reflect.Complex128:
		return nil, convErr(v, "wire value", "%s values cannot be sent", v.Kind())
	}
	if !v.CanInterface() {
		return nil, convErr(v, "wire value", "unexported value")
	}
	return v.Interface(), nil
}

var errNilValue = errors.New("nil value")

func deserializeValue(w reflect.Value, t reflect.Type) (reflect.Value, error) {
	for w.IsValid() && w.Kind() == reflect.Interface {
		if w.IsNil() {
			w = reflect.Value{}
			break
		}
		w = w.Elem()
	}
	if !w.IsValid() {
		switch t.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Slice, reflect.Map:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, ConversionError{"nil", t.String(), errNilValue}
	}

	if w.Type().AssignableTo(t) {
		ret := reflect.New(t).Elem()
		ret.Set(w)
		return ret, nil
	}
	if t.Kind() == reflect.Interface {
		return reflect.Value{}, convErr(w, t.String(), "%s does not implement %s", w.Type(), t)
	}

	if w.Kind() == reflect.Pointer {
		if w.IsNil() {
			return deserializeValue(reflect.Value{}, t)
		}
		return deserializeValue(w.Elem(), t)
	}
	if t.Kind() == reflect.Pointer {
		elem, err := deserializeValue(w, t.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		ret := reflect.New(t.Elem())
		ret.Elem().Set(elem)
		return ret, nil
	}

	switch {
	case isNumber(w.Kind()) && isNumber(t.Kind()):
		return convertNumber(w, t)
	case w.Kind() == t.Kind() && (w.Kind() == reflect.Bool || w.Kind() == reflect.String):
		return w.Convert(t), nil
	}

	switch t.Kind() {
	case reflect.Struct:
		if t == tupleType {
			s, err := serializeValue(w)
			if err != nil {
				return reflect.Value{}, err
			}
			if tup, ok := s.(Tuple); ok {
				return reflect.ValueOf(tup), nil
			}
			return reflect.Value{}, convErr(w, t.String(), "not a record")
		}
		if w.Type() != tupleType {
			return reflect.Value{}, convErr(w, t.String(), "want a qi.Tuple")
		}
		return deserializeStruct(w.Interface().(Tuple), t)
	case reflect.Slice:
		if w.Kind() != reflect.Slice && w.Kind() != reflect.Array {
			return reflect.Value{}, convErr(w, t.String(), "not a sequence")
		}
		ret := reflect.MakeSlice(t, w.Len(), w.Len())
		for i := range w.Len() {
			elem, err := deserializeValue(w.Index(i), t.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			ret.Index(i).Set(elem)
		}
		return ret, nil
	case reflect.Array:
		if w.Kind() != reflect.Slice && w.Kind() != reflect.Array {
			return reflect.Value{}, convErr(w, t.String(), "not a sequence")
		}
		if w.Len() != t.Len() {
			return reflect.Value{}, convErr(w, t.String(), "got %d elements, want %d", w.Len(), t.Len())
		}
		ret := reflect.New(t).Elem()
		for i := range w.Len() {
			elem, err := deserializeValue(w.Index(i), t.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			ret.Index(i).Set(elem)
		}
		return ret, nil
	case reflect.Map:
		if w.Kind() != reflect.Map {
			return reflect.Value{}, convErr(w, t.String(), "not a mapping")
		}
		ret := reflect.MakeMapWithSize(t, w.Len())
		iter := w.MapRange()
		for iter.Next() {
			k, err := deserializeValue(iter.Key(), t.Key())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("map key: %w", err)
			}
			v, err := deserializeValue(iter.Value(), t.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("map value: %w", err)
			}
			ret.SetMapIndex(k, v)
		}
		return ret, nil
	}
	return reflect.Value{}, convErr(w, t.String(), "incompatible types")
}

func deserializeStruct(tup Tuple, t reflect.Type) (reflect.Value, error) {
	fields, err := recordFields(t)
	if err != nil {
		return reflect.Value{}, ConversionError{tupleName, t.String(), err}
	}
	if len(fields) != tup.Len() {
		return reflect.Value{}, ConversionError{tupleName, t.String(), fmt.Errorf("tuple has %d elements, struct has %d fields", tup.Len(), len(fields))}
	}
	ret := reflect.New(t).Elem()
	for i, f := range fields {
		v, err := deserializeValue(reflect.ValueOf(tup.vals[i]), f.typ)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("field %s: %w", f.name, err)
		}
		f.load(ret, true).Set(v)
	}
	return ret, nil
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func isSigned(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func isUnsigned(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}

// convertNumber converts w to the numeric type t, failing if the
// value does not survive the conversion exactly.
func convertNumber(w reflect.Value, t reflect.Type) (reflect.Value, error) {
	ret := w.Convert(t)
	lossy := !ret.Convert(w.Type()).Equal(w)
	switch {
	case isSigned(w.Kind()) && isUnsigned(t.Kind()):
		lossy = lossy || w.Int() < 0
	case isUnsigned(w.Kind()) && isSigned(t.Kind()):
		lossy = lossy || ret.Int() < 0
	}
	if lossy {
		return reflect.Value{}, convErr(w, t.String(), "value %v does not fit", w)
	}
	return ret, nil
}

// convertArgs deserializes every argument to its parameter type.
func convertArgs(s Serializer, args []any, types []reflect.Type) ([]reflect.Value, error) {
	if len(args) != len(types) {
		return nil, ConversionError{"arguments", "parameters", fmt.Errorf("got %d arguments, want %d", len(args), len(types))}
	}
	ret := make([]reflect.Value, len(args))
	for i, arg := range args {
		v, err := s.Deserialize(arg, types[i])
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		ret[i] = valueOf(v, types[i])
	}
	return ret, nil
}

// convertEach is the best effort fallback of convertArgs. Each
// argument is converted on its own; one that fails to convert is
// passed through as received, and missing or nil arguments become
// the zero value of their parameter type.
func convertEach(s Serializer, args []any, types []reflect.Type) (ret []reflect.Value, failed []int) {
	ret = make([]reflect.Value, len(types))
	for i, t := range types {
		if i >= len(args) || args[i] == nil {
			ret[i] = reflect.Zero(t)
			continue
		}
		v, err := s.Deserialize(args[i], t)
		if err != nil {
			ret[i] = reflect.ValueOf(args[i])
			failed = append(failed, i)
			continue
		}
		ret[i] = valueOf(v, t)
	}
	return ret, failed
}

// valueOf returns v as a reflect.Value of type t, using t's zero
// value for nil.
func valueOf(v any, t reflect.Type) reflect.Value {
	if v == nil {
		return reflect.Zero(t)
	}
	return reflect.ValueOf(v)
}
