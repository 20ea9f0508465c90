// Package transport defines the boundary between the qi invocation
// core and whatever carries requests to remote objects, and provides
// an in-process implementation of it.
package transport

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// Handle is an opaque, process-unique reference to a remote object.
type Handle uuid.UUID

// NewHandle returns a fresh Handle.
func NewHandle() Handle {
	return Handle(uuid.New())
}

// IsZero reports whether h is the zero Handle, which refers to no
// object.
func (h Handle) IsZero() bool {
	return h == Handle{}
}

func (h Handle) String() string {
	return uuid.UUID(h).String()
}

// SubscriberID identifies a signal subscription on a Transport.
type SubscriberID uint64

// ReplyFunc receives the outcome of an asynchronous Transport
// request. It may be called on any goroutine, and is called exactly
// once per request.
type ReplyFunc func(value any, err error)

// SignalFunc receives the arguments of a delivered signal. It is
// called synchronously on the Transport's delivery goroutine.
type SignalFunc func(args []any)

// Transport carries requests to remote objects.
//
// Request methods return immediately and report their outcome
// through the provided ReplyFunc. Canceling the request's context
// asks the Transport to stop waiting, but does not guarantee that the
// remote side abandons the work.
type Transport interface {
	// Call invokes method on the object h with the given generic
	// arguments.
	Call(ctx context.Context, h Handle, method string, args []any, reply ReplyFunc)
	// Property reads a property of h.
	Property(ctx context.Context, h Handle, name string, reply ReplyFunc)
	// SetProperty writes a property of h. The reply value is nil.
	SetProperty(ctx context.Context, h Handle, name string, value any, reply ReplyFunc)
	// Subscribe connects fn to the signal of h. The reply value is
	// the new subscription's SubscriberID.
	Subscribe(ctx context.Context, h Handle, signal string, fn SignalFunc, reply ReplyFunc)
	// Unsubscribe removes a subscription made with Subscribe. The
	// reply value is nil.
	Unsubscribe(ctx context.Context, h Handle, id SubscriberID, reply ReplyFunc)
	// Post emits signal from h to its subscribers, without waiting
	// for delivery.
	Post(h Handle, signal string, args []any)
	// Release drops the caller's reference to h. It must be called
	// exactly once per Handle obtained from the Transport.
	Release(h Handle)
	// Compare orders Handles.
	Compare(a, b Handle) int
	// Hash returns a hash of h consistent with Compare.
	Hash(h Handle) uint64
	// Describe returns a human-readable description of h.
	Describe(h Handle) string
}

// Servant is the serving side of an object hosted by a [Host].
type Servant interface {
	// Call runs method with the given generic arguments.
	Call(ctx context.Context, method string, args []any) (any, error)
	// Property returns the current value of a property.
	Property(name string) (any, error)
	// SetProperty updates a property.
	SetProperty(name string, value any) error
	// HasSignal reports whether the object emits the named signal.
	HasSignal(name string) bool
	// Describe returns a human-readable description of the object.
	Describe() string
}

// Host is a Transport that can also serve objects.
type Host interface {
	Transport
	// Register starts serving s, and returns a Handle to it. The
	// Handle carries one reference, which the caller must Release.
	Register(s Servant) Handle
}

// Fault is an error reported by the remote side of a request.
type Fault struct {
	// Name is a machine-readable error name.
	Name string
	// Detail is the human-readable explanation of what went wrong.
	Detail string
}

func (f *Fault) Error() string {
	if f.Detail == "" {
		return fmt.Sprintf("remote fault %s", f.Name)
	}
	return fmt.Sprintf("remote fault %s: %s", f.Name, f.Detail)
}

// compareHandles and hashHandle implement the default Handle ordering
// and hashing.
func compareHandles(a, b Handle) int {
	return bytes.Compare(a[:], b[:])
}

func hashHandle(h Handle) uint64 {
	return binary.BigEndian.Uint64(h[:8]) ^ binary.BigEndian.Uint64(h[8:])
}
