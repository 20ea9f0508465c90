package qi

import (
	"context"
	"errors"
	"fmt"
	"reflect"
)

var (
	contextType = reflect.TypeFor[context.Context]()
	errorType   = reflect.TypeFor[error]()
	objectType  = reflect.TypeFor[*Object]()
	tupleType   = reflect.TypeFor[Tuple]()
	futurerType = reflect.TypeFor[futurer]()
)

// futurer is implemented by every *Future[T].
type futurer interface {
	payloadType() reflect.Type
	await(context.Context) (any, error)
}

// TypeOf returns the Type describing values of the Go type t.
//
// Go integers map to the primitive of the same width, with int and
// uint mapping to Int64 and uint16 to Char. Pointers to primitives
// are the boxed named types. Strings, slices and maps map to
// [StringType], arrays and [MapType]. A *[Future] maps to a future of
// its payload. Other types map to their registered name.
func TypeOf(t reflect.Type) Type {
	if t == nil {
		return VoidType
	}
	if name, ok := types.nameOf(t); ok {
		return NamedType(name)
	}
	if t.Implements(futurerType) && t.Kind() == reflect.Pointer {
		payload := reflect.Zero(t).Interface().(futurer).payloadType()
		return FutureOf(TypeOf(payload))
	}
	if k, ok := goKindToKind[t.Kind()]; ok {
		return Type{kind: k}
	}

	switch t.Kind() {
	case reflect.String:
		return StringType
	case reflect.Slice, reflect.Array:
		return ArrayOf(TypeOf(t.Elem()))
	case reflect.Map:
		return MapType
	case reflect.Pointer:
		if k, ok := goKindToKind[t.Elem().Kind()]; ok {
			return NamedType(boxedNames[k])
		}
		return TypeOf(t.Elem())
	}
	return NamedType(types.autoName(t))
}

// TypeFor returns the Type describing values of type T.
func TypeFor[T any]() Type {
	return TypeOf(reflect.TypeFor[T]())
}

// goType returns the Go type that holds values of t. Void and futures
// have no such type.
func goType(t Type) (reflect.Type, bool) {
	switch t.kind {
	case KindVoid, KindFuture:
		return nil, false
	case KindNamed:
		return types.typeOf(t.name)
	case KindArray:
		elem, ok := goType(*t.elem)
		if !ok {
			return nil, false
		}
		return reflect.SliceOf(elem), true
	default:
		return kindToGo[t.kind], true
	}
}

// funcShape is the calling convention of a Go function used as a
// method or slot.
type funcShape struct {
	// TakesContext is whether the first Go parameter is a
	// context.Context, supplied by the caller rather than by
	// arguments.
	TakesContext bool
	// ReturnsError is whether the last Go result is an error, which
	// is reported as a failure rather than returned as a value.
	ReturnsError bool
	// In are the parameter types that receive arguments.
	In []reflect.Type
	// Out are the result types that form the return value.
	Out []reflect.Type
}

func shapeOf(ft reflect.Type) (*funcShape, error) {
	if ft.Kind() != reflect.Func {
		return nil, fmt.Errorf("%s is not a function", ft)
	}
	if ft.IsVariadic() {
		return nil, fmt.Errorf("variadic function %s is not supported", ft)
	}
	ret := &funcShape{}
	for i := range ft.NumIn() {
		in := ft.In(i)
		if i == 0 && in == contextType {
			ret.TakesContext = true
			continue
		}
		ret.In = append(ret.In, in)
	}
	for i := range ft.NumOut() {
		out := ft.Out(i)
		if i == ft.NumOut()-1 && out == errorType {
			ret.ReturnsError = true
			continue
		}
		ret.Out = append(ret.Out, out)
	}
	return ret, nil
}

// Descriptor returns the MethodDescriptor of a function with this
// shape. Functions with several results return a Tuple.
func (s *funcShape) Descriptor(name string) *MethodDescriptor {
	ret := &MethodDescriptor{name: name, params: make([]Type, len(s.In))}
	for i, in := range s.In {
		ret.params[i] = TypeOf(in)
	}
	switch len(s.Out) {
	case 0:
		ret.ret = VoidType
	case 1:
		ret.ret = TypeOf(s.Out[0])
	default:
		ret.ret = TupleType
	}
	return ret
}

// call invokes fn with args, and returns its results as a single
// value: nil for no results, the result itself for one, and a Tuple
// for several.
//
// call checks that every argument is assignable to its parameter,
// and converts a panic in fn into an error.
func (s *funcShape) call(ctx context.Context, fn reflect.Value, args []reflect.Value) (ret any, err error) {
	if len(args) != len(s.In) {
		return nil, argumentError{fmt.Sprintf("got %d arguments, want %d", len(args), len(s.In))}
	}
	in := make([]reflect.Value, 0, len(args)+1)
	if s.TakesContext {
		in = append(in, reflect.ValueOf(&ctx).Elem())
	}
	for i, arg := range args {
		if !arg.IsValid() {
			arg = reflect.Zero(s.In[i])
		}
		if !arg.Type().AssignableTo(s.In[i]) {
			return nil, argumentError{fmt.Sprintf("argument %d: cannot use %s as %s", i, arg.Type(), s.In[i])}
		}
		in = append(in, arg)
	}

	defer func() {
		if r := recover(); r != nil {
			ret, err = nil, panicError{r}
		}
	}()
	out := fn.Call(in)

	if s.ReturnsError {
		last := out[len(out)-1]
		out = out[:len(out)-1]
		if !last.IsNil() {
			return nil, last.Interface().(error)
		}
	}
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return out[0].Interface(), nil
	default:
		vals := make([]any, len(out))
		for i, o := range out {
			vals[i] = o.Interface()
		}
		return NewTuple(vals...), nil
	}
}

// argumentError is an argument that a function cannot accept.
type argumentError struct {
	reason string
}

func (e argumentError) Error() string { return e.reason }

// panicError is a recovered panic.
type panicError struct {
	Value any
}

func (e panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

func isPanic(err error) bool {
	var p panicError
	return errors.As(err, &p)
}

// MethodOf returns the MethodDescriptor of the Go function fn, named
// name.
//
// A leading context.Context parameter and a trailing error result
// are not part of the descriptor.
func MethodOf(name string, fn any) (*MethodDescriptor, error) {
	if fn == nil {
		return nil, errors.New("nil function")
	}
	shape, err := shapeOf(reflect.TypeOf(fn))
	if err != nil {
		return nil, err
	}
	return shape.Descriptor(name), nil
}
