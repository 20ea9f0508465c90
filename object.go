package qi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"reflect"
	"runtime"

	"github.com/danderson/qi/transport"
	"go.uber.org/zap"
)

// An Object is a proxy for a remote object.
//
// Every operation is asynchronous and returns a [Future]. Objects are
// safe for concurrent use.
//
// The remote handle is released when the Object and every clone,
// in-flight request and subscription derived from it are gone, either
// through [Object.Close] or when they become unreachable.
type Object struct {
	ref  *handleRef
	hold *holder
	opts options
}

// NewObject returns an Object for the remote object h on transport t.
// The Object takes over the caller's reference to h.
func NewObject(t transport.Transport, h transport.Handle, opts ...Option) *Object {
	ref, hold := newHandleRef(t, h)
	o := &Object{
		ref:  ref,
		hold: hold,
		opts: defaultOptions(),
	}
	for _, opt := range opts {
		opt(&o.opts)
	}
	runtime.AddCleanup(o, (*holder).release, hold)
	return o
}

// Clone returns a new Object sharing o's remote handle. The handle
// stays alive until both Objects are closed.
func (o *Object) Clone() *Object {
	ret := &Object{
		ref:  o.ref,
		hold: o.ref.acquire(),
		opts: o.opts,
	}
	if ret.hold != nil {
		runtime.AddCleanup(ret, (*holder).release, ret.hold)
	}
	return ret
}

// Close releases o's claim on the remote handle. Requests and
// subscriptions already made through o keep the handle alive until
// they finish.
func (o *Object) Close() error {
	o.hold.release()
	return nil
}

// Handle returns o's remote handle.
func (o *Object) Handle() transport.Handle { return o.ref.h }

// Transport returns the Transport carrying o's requests.
func (o *Object) Transport() transport.Transport { return o.ref.t }

// Equal reports whether o and other refer to the same remote object.
func (o *Object) Equal(other *Object) bool {
	if o == nil || other == nil {
		return o == other
	}
	return o.ref.t.Compare(o.ref.h, other.ref.h) == 0
}

// Compare orders Objects by their remote handles.
func (o *Object) Compare(other *Object) int {
	return o.ref.t.Compare(o.ref.h, other.ref.h)
}

// Hash returns a hash of o's remote handle, consistent with Equal.
func (o *Object) Hash() uint64 {
	return o.ref.t.Hash(o.ref.h)
}

func (o *Object) String() string {
	return o.ref.t.Describe(o.ref.h)
}

// request issues one transport request to the object of ref, and returns a
// Future for its converted outcome. The remote handle is held until
// the request completes, and cancelling the Future cancels the
// request's context.
func request[T any](ctx context.Context, ref *handleRef, member string, conv func(any) (T, error), send func(context.Context, transport.ReplyFunc)) *Future[T] {
	hold := ref.acquire()
	if hold == nil {
		return Failed[T](RemoteCallError{ref.describe(), member, net.ErrClosed})
	}
	ctx, cancel := context.WithCancel(ctx)
	p := NewPromise[T]()
	p.OnCancel(cancel)
	send(ctx, func(v any, err error) {
		defer hold.release()
		defer cancel()
		if err != nil {
			p.Fail(RemoteCallError{ref.describe(), member, err})
			return
		}
		ret, err := conv(v)
		if err != nil {
			p.Fail(err)
			return
		}
		p.Resolve(ret)
	})
	return p.Future()
}

func asIs(v any) (any, error) { return v, nil }

func discard(any) (struct{}, error) { return struct{}{}, nil }

var errWrongType = errors.New("serializer returned a value of the wrong type")

// deserializeTo returns a conversion to T using s.
func deserializeTo[T any](s Serializer) func(any) (T, error) {
	return func(v any) (T, error) {
		var zero T
		t := reflect.TypeFor[T]()
		if v == nil && t.Kind() == reflect.Struct && t.NumField() == 0 {
			return zero, nil
		}
		ret, err := s.Deserialize(v, t)
		if err != nil {
			return zero, err
		}
		if ret == nil {
			return zero, nil
		}
		out, ok := ret.(T)
		if !ok {
			return zero, ConversionError{fmt.Sprintf("%T", ret), t.String(), errWrongType}
		}
		return out, nil
	}
}

// Call calls method on the remote object with generic arguments, and
// returns a Future for the generic result.
//
// Arguments containing a nil value anywhere fail immediately with a
// [NullArgumentError], without contacting the remote object. Failures
// of the call itself are reported as [RemoteCallError].
func (o *Object) Call(ctx context.Context, method string, args ...any) *Future[any] {
	if err := ValidateArgs(args); err != nil {
		return Failed[any](err)
	}
	return request(ctx, o.ref, method, asIs, func(ctx context.Context, reply transport.ReplyFunc) {
		o.ref.t.Call(ctx, o.ref.h, method, args, reply)
	})
}

// CallAs calls method on o, serializing typed args and deserializing
// the result to T.
func CallAs[T any](ctx context.Context, o *Object, method string, args ...any) *Future[T] {
	wire := make([]any, len(args))
	for i, arg := range args {
		w, err := o.opts.serializer.Serialize(arg)
		if err != nil {
			return Failed[T](err)
		}
		wire[i] = w
	}
	if err := ValidateArgs(wire); err != nil {
		return Failed[T](err)
	}
	return request(ctx, o.ref, method, deserializeTo[T](o.opts.serializer), func(ctx context.Context, reply transport.ReplyFunc) {
		o.ref.t.Call(ctx, o.ref.h, method, wire, reply)
	})
}

// Property reads the named property of the remote object.
func (o *Object) Property(ctx context.Context, name string) *Future[any] {
	return request(ctx, o.ref, name, asIs, func(ctx context.Context, reply transport.ReplyFunc) {
		o.ref.t.Property(ctx, o.ref.h, name, reply)
	})
}

// GetProperty reads the named property of o, deserialized to T.
func GetProperty[T any](ctx context.Context, o *Object, name string) *Future[T] {
	return request(ctx, o.ref, name, deserializeTo[T](o.opts.serializer), func(ctx context.Context, reply transport.ReplyFunc) {
		o.ref.t.Property(ctx, o.ref.h, name, reply)
	})
}

// SetProperty writes the named property of the remote object. The
// value is serialized first, and must not contain nil values.
func (o *Object) SetProperty(ctx context.Context, name string, value any) *Future[struct{}] {
	wire, err := o.opts.serializer.Serialize(value)
	if err != nil {
		return Failed[struct{}](err)
	}
	if err := ValidateArgs([]any{wire}); err != nil {
		return Failed[struct{}](err)
	}
	return request(ctx, o.ref, name, discard, func(ctx context.Context, reply transport.ReplyFunc) {
		o.ref.t.SetProperty(ctx, o.ref.h, name, wire, reply)
	})
}

// Post emits signal from the remote object to all its subscribers,
// without waiting for delivery.
//
// Each argument is serialized on its own. An argument that fails to
// serialize is sent as is rather than abandoning the post.
func (o *Object) Post(signal string, args ...any) {
	hold := o.ref.acquire()
	if hold == nil {
		o.opts.log.Debug("post on released object", zap.String("signal", signal))
		return
	}
	defer hold.release()

	wire := make([]any, len(args))
	for i, arg := range args {
		w, err := o.opts.serializer.Serialize(arg)
		if err != nil {
			o.opts.log.Debug("post argument sent unconverted",
				zap.String("signal", signal),
				zap.Int("arg", i),
				zap.Error(err))
			w = arg
		}
		wire[i] = w
	}
	o.ref.t.Post(o.ref.h, signal, wire)
}

// Connect subscribes fn to signal. fn receives the signal's generic
// arguments, on the transport's delivery goroutine.
//
// The returned Subscription is usable immediately, and delivers
// signals once its [Subscription.ID] resolves.
func (o *Object) Connect(ctx context.Context, signal string, fn func(args []any)) *Subscription {
	return o.subscribe(ctx, signal, signal, func(args []any) error {
		_, err := protect(func() (struct{}, error) {
			fn(args)
			return struct{}{}, nil
		})
		return err
	})
}

// ConnectSlot subscribes one of slots to a signal described by the
// compact signature signalSig, such as "moved::(ii)".
//
// The slot named slotName that best matches the signal's parameters
// is chosen immediately, and an error is returned if none does.
// Delivered arguments are converted to the slot's parameter types
// with o's Serializer. If that fails, each argument is converted
// separately: arguments that fail to convert are passed to the slot
// unconverted, and missing arguments become zero values. Unconverted
// arguments can mask type errors in the signal's emitter, which then
// show up as [SlotInvocationError]s.
func (o *Object) ConnectSlot(ctx context.Context, signalSig string, slots *SlotSet, slotName string) (*Subscription, error) {
	sig, err := ParseQiSignature(signalSig)
	if err != nil {
		return nil, err
	}
	sl, err := slots.resolve(NewMethod(slotName, VoidType, sig.params...))
	if err != nil {
		return nil, err
	}
	slotCtx := context.WithoutCancel(ctx)
	return o.subscribe(ctx, sig.name, slotName, func(args []any) error {
		return sl.invoke(slotCtx, o.opts, args)
	}), nil
}

// Disconnect ends sub. See [Subscription.Disconnect].
func (o *Object) Disconnect(ctx context.Context, sub *Subscription) *Future[struct{}] {
	if sub.ref != o.ref && o.ref.t.Compare(sub.ref.h, o.ref.h) != 0 {
		return Failed[struct{}](SubscriptionError{sub.signal, sub.State(), "subscription belongs to another object"})
	}
	return sub.Disconnect(ctx)
}
