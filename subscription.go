package qi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/danderson/qi/transport"
	"go.uber.org/zap"
)

// SubscriptionState is the lifecycle state of a [Subscription].
type SubscriptionState int

const (
	// Connecting is the state of a Subscription waiting for the remote
	// object to accept it.
	Connecting SubscriptionState = iota
	// Connected is the state of an active Subscription. Signals are
	// only delivered in this state.
	Connected
	// Disconnecting is the state of a Subscription waiting for the
	// remote object to acknowledge its end.
	Disconnecting
	// Disconnected is the final state of a Subscription, reached
	// after a disconnect or a failed connect.
	Disconnected
)

func (s SubscriptionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Disconnecting:
		return "disconnecting"
	case Disconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("SubscriptionState(%d)", int(s))
	}
}

// A Subscription is a listener connected to a signal of a remote
// object.
//
// Listeners run on the transport's delivery goroutine, one signal at
// a time per delivery goroutine. A slow listener delays the signals
// behind it.
type Subscription struct {
	ref     *handleRef
	signal  string
	slot    string
	deliver func([]any) error
	opts    options
	id      *Future[transport.SubscriberID]

	mu               sync.Mutex
	state            SubscriptionState
	disconnectCalled bool
	hold             *holder // released on reaching Disconnected
}

func (o *Object) subscribe(ctx context.Context, signal, slot string, deliver func([]any) error) *Subscription {
	s := &Subscription{
		ref:     o.ref,
		signal:  signal,
		slot:    slot,
		deliver: deliver,
		opts:    o.opts,
		state:   Connecting,
		hold:    o.ref.acquire(),
	}
	if s.hold == nil {
		s.state = Disconnected
		s.id = Failed[transport.SubscriberID](RemoteCallError{o.String(), signal, net.ErrClosed})
		return s
	}

	id := request(ctx, o.ref, signal, toSubscriberID, func(ctx context.Context, reply transport.ReplyFunc) {
		o.ref.t.Subscribe(ctx, o.ref.h, signal, s.dispatch, reply)
	})
	s.id = settle(id, func(_ transport.SubscriberID, err error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if err != nil {
			s.opts.log.Debug("subscription failed", zap.String("signal", signal), zap.Error(err))
			s.toDisconnectedLocked()
			return
		}
		if s.state == Connecting {
			s.state = Connected
		}
	})
	return s
}

func toSubscriberID(v any) (transport.SubscriberID, error) {
	id, ok := v.(transport.SubscriberID)
	if !ok {
		return 0, ConversionError{fmt.Sprintf("%T", v), "transport.SubscriberID", errNotSubscriberID}
	}
	return id, nil
}

var errNotSubscriberID = errors.New("transport replied to subscribe without a subscriber ID")

func (s *Subscription) toDisconnectedLocked() {
	s.state = Disconnected
	s.hold.release()
}

// Signal returns the name of the subscribed signal.
func (s *Subscription) Signal() string { return s.signal }

// ID returns a Future for the subscriber ID assigned by the remote
// object. It fails if the subscription could not be made.
func (s *Subscription) ID() *Future[transport.SubscriberID] { return s.id }

// State returns the current state of s.
func (s *Subscription) State() SubscriptionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// dispatch delivers one signal to the listener, if s is connected.
func (s *Subscription) dispatch(args []any) {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	if state != Connected {
		s.opts.log.Debug("dropped signal outside connected state",
			zap.String("signal", s.signal),
			zap.Stringer("state", state))
		return
	}

	if err := s.deliver(args); err != nil {
		err = SlotInvocationError{Slot: s.slot, Signal: s.signal, Err: err}
		s.opts.log.Warn("signal listener failed", zap.Error(err))
		if s.opts.onError != nil {
			s.opts.onError(err)
		}
	}
}

// Disconnect ends the subscription, and returns a Future that
// resolves once the remote object acknowledges it.
//
// Disconnect waits for the subscription to connect first. If
// connecting failed, Disconnect fails with the same error and the
// remote object is not contacted. Disconnecting twice fails with a
// [SubscriptionError]. If the remote object refuses to disconnect,
// the subscription stays connected.
//
// Cancelling the returned Future before the subscription connects
// does not stop it from connecting, and Disconnect may be called
// again.
func (s *Subscription) Disconnect(ctx context.Context) *Future[struct{}] {
	s.mu.Lock()
	if s.disconnectCalled {
		state := s.state
		s.mu.Unlock()
		return Failed[struct{}](SubscriptionError{s.signal, state, "already disconnected"})
	}
	s.disconnectCalled = true
	s.mu.Unlock()

	ret := Compose(detached(s.id), func(id transport.SubscriberID) *Future[struct{}] {
		s.mu.Lock()
		if s.state != Connected {
			state := s.state
			s.mu.Unlock()
			return Failed[struct{}](SubscriptionError{s.signal, state, "not connected"})
		}
		s.state = Disconnecting
		s.mu.Unlock()

		ret := request(ctx, s.ref, s.signal, discard, func(ctx context.Context, reply transport.ReplyFunc) {
			s.ref.t.Unsubscribe(ctx, s.ref.h, id, reply)
		})
		return settle(ret, func(_ struct{}, err error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			if err != nil {
				s.opts.log.Debug("disconnect failed", zap.String("signal", s.signal), zap.Error(err))
				s.state = Connected
				s.disconnectCalled = false
				return
			}
			s.toDisconnectedLocked()
		})
	})
	ret.OnDone(func(_ struct{}, err error) {
		if !errors.Is(err, ErrCancelled) {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.state == Connecting || s.state == Connected {
			s.disconnectCalled = false
		}
	})
	return ret
}
