package qi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"reflect"
	"slices"
	"sync"

	"github.com/creachadair/mds/mapset"
	"github.com/danderson/qi/transport"
	"go.uber.org/multierr"
)

// An ObjectBuilder assembles a Go value's methods, signals and
// properties into an object that can be served by a [transport.Host].
//
// Methods are advertised by compact signature, and bound to the Go
// method that best matches the signature.
type ObjectBuilder struct {
	desc    string
	methods map[string][]*boundMethod
	signals mapset.Set[string]
	props   map[string]any
	ser     Serializer
	impls   []any
}

type boundMethod struct {
	desc  *MethodDescriptor
	shape *funcShape
	fn    reflect.Value
}

// NewObjectBuilder returns an empty ObjectBuilder for an object
// described as desc.
func NewObjectBuilder(desc string) *ObjectBuilder {
	return &ObjectBuilder{
		desc:    desc,
		methods: map[string][]*boundMethod{},
		signals: mapset.New[string](),
		props:   map[string]any{},
		ser:     DefaultSerializer,
	}
}

// SetSerializer sets the Serializer used to convert incoming
// arguments and outgoing results.
func (b *ObjectBuilder) SetSerializer(s Serializer) *ObjectBuilder {
	b.ser = s
	return b
}

// AdvertiseMethod advertises the method described by the compact
// signature sig, such as "add::i(ii)", implemented by one of impl's
// exported methods.
//
// The Go method names are matched with their first letter in lower
// case, so "add::i(ii)" considers impl.Add. Among the methods with a
// matching name, the one closest to sig is bound. The same name can
// be advertised several times with different signatures.
func (b *ObjectBuilder) AdvertiseMethod(sig string, impl any) error {
	desc, err := ParseQiSignature(sig)
	if err != nil {
		return err
	}
	v := reflect.ValueOf(impl)
	if !v.IsValid() {
		return fmt.Errorf("advertising %s: nil implementation", sig)
	}

	var (
		cands  []*MethodDescriptor
		shapes []*funcShape
		fns    []reflect.Value
	)
	for i := range v.NumMethod() {
		name := lowerFirst(v.Type().Method(i).Name)
		if name != desc.name {
			continue
		}
		fn := v.Method(i)
		shape, err := shapeOf(fn.Type())
		if err != nil {
			continue
		}
		cands = append(cands, shape.Descriptor(name))
		shapes = append(shapes, shape)
		fns = append(fns, fn)
	}
	idx, err := Resolve(desc, cands)
	if err != nil {
		return fmt.Errorf("advertising %s on %T: %w", sig, impl, err)
	}
	b.methods[desc.name] = append(b.methods[desc.name], &boundMethod{desc, shapes[idx], fns[idx]})
	if _, ok := impl.(io.Closer); ok && !slices.ContainsFunc(b.impls, func(prev any) bool { return sameImpl(prev, impl) }) {
		b.impls = append(b.impls, impl)
	}
	return nil
}

// sameImpl reports whether a and b are the same implementation value.
// Values that cannot be compared are never the same.
func sameImpl(a, b any) (same bool) {
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}

// AdvertiseSignal advertises the signal described by the compact
// signature sig, such as "moved::(ii)".
func (b *ObjectBuilder) AdvertiseSignal(sig string) error {
	desc, err := ParseQiSignature(sig)
	if err != nil {
		return err
	}
	b.signals.Add(desc.name)
	return nil
}

// AdvertiseProperty advertises a property with an initial value.
// Properties cannot hold nil.
func (b *ObjectBuilder) AdvertiseProperty(name string, initial any) error {
	wire, err := b.ser.Serialize(initial)
	if err != nil {
		return fmt.Errorf("property %s: %w", name, err)
	}
	if err := ValidateArgs([]any{wire}); err != nil {
		return fmt.Errorf("property %s: %w", name, err)
	}
	b.props[name] = wire
	return nil
}

// Object starts serving the built object on host, and returns an
// Object for it.
func (b *ObjectBuilder) Object(host transport.Host, opts ...Option) *Object {
	s := &servant{
		desc:    b.desc,
		methods: maps.Clone(b.methods),
		signals: maps.Clone(b.signals),
		props:   maps.Clone(b.props),
		ser:     b.ser,
		impls:   slices.Clone(b.impls),
	}
	return NewObject(host, host.Register(s), opts...)
}

// servant serves a built object.
type servant struct {
	desc    string
	methods map[string][]*boundMethod
	signals mapset.Set[string]
	ser     Serializer
	impls   []any

	mu    sync.Mutex
	props map[string]any
}

func fault(name, format string, args ...any) error {
	return &transport.Fault{Name: name, Detail: fmt.Sprintf(format, args...)}
}

func (s *servant) Call(ctx context.Context, method string, args []any) (any, error) {
	bm, err := s.pick(method, args)
	if err != nil {
		return nil, err
	}
	if len(args) != len(bm.shape.In) {
		return nil, fault("qi.BadArguments", "%s: got %d arguments, want %d", bm.desc, len(args), len(bm.shape.In))
	}
	in, err := convertArgs(s.ser, args, bm.shape.In)
	if err != nil {
		in, _ = convertEach(s.ser, args, bm.shape.In)
	}
	ret, err := bm.shape.call(ctx, bm.fn, in)
	if err != nil {
		return nil, methodFault(bm.desc, err)
	}
	// Methods may answer with a future, bound through future
	// unwrapping. The caller gets its eventual value.
	if fut, ok := ret.(futurer); ok {
		if ret, err = fut.await(ctx); err != nil {
			return nil, methodFault(bm.desc, err)
		}
	}
	wire, err := s.ser.Serialize(ret)
	if err != nil {
		return nil, fault("qi.BadResult", "%s: %v", bm.desc, err)
	}
	return wire, nil
}

// methodFault converts the failure of a served method to the fault
// reported to the caller.
func methodFault(desc *MethodDescriptor, err error) error {
	var argErr argumentError
	if errors.As(err, &argErr) {
		return fault("qi.BadArguments", "%s: %v", desc, err)
	}
	if isPanic(err) {
		return fault("qi.Panic", "%s: %v", desc, err)
	}
	var f *transport.Fault
	if errors.As(err, &f) {
		return f
	}
	return fault("qi.MethodError", "%s: %v", desc, err)
}

// pick returns the overload of method closest to the dynamic types
// of args.
func (s *servant) pick(method string, args []any) (*boundMethod, error) {
	bms := s.methods[method]
	switch len(bms) {
	case 0:
		return nil, fault("qi.NoSuchMethod", "%s has no method %q", s.desc, method)
	case 1:
		return bms[0], nil
	}

	argTypes := make([]Type, len(args))
	for i, arg := range args {
		argTypes[i] = TypeOf(reflect.TypeOf(arg))
	}
	query := NewMethod(method, VoidType, argTypes...)
	cands := make([]*MethodDescriptor, len(bms))
	for i, bm := range bms {
		cands[i] = bm.desc.withReturn(VoidType)
	}
	idx, err := Resolve(query, cands)
	if err != nil {
		return nil, fault("qi.NoSuchMethod", "%v", err)
	}
	return bms[idx], nil
}

func (s *servant) Property(name string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.props[name]
	if !ok {
		return nil, fault("qi.NoSuchProperty", "%s has no property %q", s.desc, name)
	}
	return v, nil
}

func (s *servant) SetProperty(name string, value any) error {
	if err := ValidateArgs([]any{value}); err != nil {
		return fault("qi.BadArguments", "property %s: %v", name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.props[name]; !ok {
		return fault("qi.NoSuchProperty", "%s has no property %q", s.desc, name)
	}
	s.props[name] = value
	return nil
}

func (s *servant) HasSignal(name string) bool {
	return s.signals.Has(name)
}

func (s *servant) Describe() string {
	return s.desc
}

// Close closes every implementation value that is an io.Closer.
func (s *servant) Close() error {
	var err error
	for _, impl := range s.impls {
		err = multierr.Append(err, impl.(io.Closer).Close())
	}
	return err
}
