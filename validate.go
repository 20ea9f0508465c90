package qi

import (
	"fmt"
	"reflect"

	"github.com/creachadair/mds/mapset"
	"github.com/creachadair/mds/queue"
)

// shape is the structural class of a value for validation.
type shape int

const (
	scalarShape   shape = iota
	recordShape         // Tuple or struct
	mappingShape        // map
	sequenceShape       // slice or array
)

// classify returns the shape of v, which must be valid and not an
// interface or pointer.
func classify(v reflect.Value) shape {
	switch v.Kind() {
	case reflect.Struct:
		return recordShape
	case reflect.Map:
		return mappingShape
	case reflect.Slice, reflect.Array:
		return sequenceShape
	default:
		return scalarShape
	}
}

// pending is a value awaiting validation, and where it was found.
type pending struct {
	path string
	v    reflect.Value
}

// ValidateArgs checks that no value anywhere in args is nil, looking
// inside records, mappings (both keys and values) and sequences to
// any depth. It returns a [NullArgumentError] locating the first nil
// found.
//
// Nil slices and maps are valid empty containers. ValidateArgs does
// not modify args.
func ValidateArgs(args []any) error {
	var work queue.Queue[pending]
	for i, arg := range args {
		work.Add(pending{fmt.Sprintf("args[%d]", i), reflect.ValueOf(arg)})
	}

	// Storage already queued once is not walked again, which also
	// ends the walk of values that contain themselves.
	seen := mapset.New[valueRef]()
	firstVisit := func(v reflect.Value) bool {
		r, ok := refOf(v)
		if !ok {
			return true
		}
		if seen.Has(r) {
			return false
		}
		seen.Add(r)
		return true
	}

next:
	for {
		p, ok := work.Pop()
		if !ok {
			return nil
		}
		v := p.v

		// Look through interfaces and pointers down to a concrete
		// value. *Object is opaque, and only checked for nil.
		for v.IsValid() && (v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer) {
			if v.IsNil() {
				break
			}
			if v.Type() == objectType {
				break
			}
			if v.Kind() == reflect.Pointer && !firstVisit(v) {
				continue next
			}
			v = v.Elem()
		}
		if isNil(v) {
			return NullArgumentError{p.path}
		}

		switch classify(v) {
		case recordShape:
			if v.Type() == tupleType {
				vals := v.Field(0)
				if !firstVisit(vals) {
					continue
				}
				for i := range vals.Len() {
					work.Add(pending{fmt.Sprintf("%s[%d]", p.path, i), vals.Index(i)})
				}
				continue
			}
			fields, err := recordFields(v.Type())
			if err != nil {
				return err
			}
			for _, f := range fields {
				work.Add(pending{p.path + "." + f.name, f.load(v, false)})
			}
		case mappingShape:
			if !firstVisit(v) {
				continue
			}
			iter := v.MapRange()
			for iter.Next() {
				k := iter.Key()
				kp := fmt.Sprintf("%s[%#v]", p.path, keyString(k))
				work.Add(pending{fmt.Sprintf("%s.key(%#v)", p.path, keyString(k)), k})
				work.Add(pending{kp, iter.Value()})
			}
		case sequenceShape:
			if !firstVisit(v) {
				continue
			}
			for i := range v.Len() {
				work.Add(pending{fmt.Sprintf("%s[%d]", p.path, i), v.Index(i)})
			}
		}
	}
}

// valueRef identifies the storage behind a pointer, map or slice.
type valueRef struct {
	typ reflect.Type
	ptr uintptr
	len int
}

// refOf returns the storage identity of v, if v refers to storage
// that other values can share.
func refOf(v reflect.Value) (valueRef, bool) {
	switch v.Kind() {
	case reflect.Pointer, reflect.Map:
		if v.IsNil() {
			return valueRef{}, false
		}
		return valueRef{v.Type(), v.Pointer(), 0}, true
	case reflect.Slice:
		if v.Len() == 0 {
			return valueRef{}, false
		}
		return valueRef{v.Type(), v.Pointer(), v.Len()}, true
	}
	return valueRef{}, false
}

// isNil reports whether v is a nil leaf. Nil slices and maps are
// empty, not nil.
func isNil(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return v.IsNil()
	}
	return false
}

// keyString returns a printable form of a map key for error paths.
func keyString(k reflect.Value) any {
	for k.Kind() == reflect.Interface && !k.IsNil() {
		k = k.Elem()
	}
	if !k.IsValid() || isNil(k) || !k.CanInterface() {
		return nil
	}
	return k.Interface()
}
