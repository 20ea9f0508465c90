package qi

import (
	"errors"
	"fmt"
	"reflect"
)

// recordField is one element of a struct's Tuple form.
type recordField struct {
	name string
	typ  reflect.Type
	// path is the field's index within the struct, cut after every
	// hop through an embedded struct pointer.
	path [][]int
}

// load returns the field within the struct value rec.
//
// A nil embedded pointer on the way to the field yields the field's
// zero value, unless alloc is set. With alloc, nil embedded pointers
// are allocated and the returned value is settable.
func (f *recordField) load(rec reflect.Value, alloc bool) reflect.Value {
	v := rec
	for i, seg := range f.path {
		if i > 0 {
			if v.IsNil() {
				if !alloc {
					return reflect.Zero(f.typ)
				}
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.FieldByIndex(seg)
	}
	return v
}

var recordLayouts cache[reflect.Type, []*recordField]

// recordFields returns the fields of the struct type t that make up
// its Tuple form, in declaration order.
//
// Unexported fields, and fields tagged `qi:"-"`, are not part of the
// record. Embedded structs are flattened into their parent.
func recordFields(t reflect.Type) ([]*recordField, error) {
	if ret, err := recordLayouts.Get(t); err == nil {
		return ret, nil
	} else if !errors.Is(err, errNotFound) {
		return nil, err
	}

	if t.Kind() != reflect.Struct {
		err := fmt.Errorf("%s is not a struct", t)
		recordLayouts.SetErr(t, err)
		return nil, err
	}
	var ret []*recordField
	for _, field := range reflect.VisibleFields(t) {
		if field.Anonymous && isStructOrPtr(field.Type) {
			continue
		}
		if !field.IsExported() || field.Tag.Get("qi") == "-" {
			continue
		}
		ret = append(ret, &recordField{
			name: field.Name,
			typ:  field.Type,
			path: splitPath(t, field.Index),
		})
	}
	recordLayouts.Set(t, ret)
	return ret, nil
}

func isStructOrPtr(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct
}

// splitPath cuts the field index path index of struct type t after
// every hop through a struct pointer, which may be nil.
func splitPath(t reflect.Type, index []int) [][]int {
	var ret [][]int
	start := 0
	for i, n := range index {
		t = t.Field(n).Type
		if t.Kind() == reflect.Pointer && i < len(index)-1 {
			ret = append(ret, index[start:i+1])
			start = i + 1
			t = t.Elem()
		}
	}
	return append(ret, index[start:])
}
