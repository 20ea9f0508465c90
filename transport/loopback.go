package transport

import (
	"context"
	"fmt"
	"io"
	"maps"
	"net"
	"sync"

	"github.com/creachadair/mds/mapset"
	"go.uber.org/multierr"
)

// Loopback is an in-process [Host]. Objects registered with it are
// served from the same process, but requests and signal deliveries
// still complete asynchronously on goroutines owned by the Loopback,
// the way a networked Transport would deliver them.
type Loopback struct {
	wg sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	objects map[Handle]*hosted
	subs    map[SubscriberID]*subscriber
	lastSub SubscriberID
}

type hosted struct {
	servant Servant
	subs    mapset.Set[SubscriberID]
}

type subscriber struct {
	handle Handle
	signal string
	fn     SignalFunc
}

// NewLoopback returns an empty Loopback.
func NewLoopback() *Loopback {
	return &Loopback{
		objects: map[Handle]*hosted{},
		subs:    map[SubscriberID]*subscriber{},
	}
}

var _ Host = (*Loopback)(nil)

// Register implements [Host].
func (l *Loopback) Register(s Servant) Handle {
	h := NewHandle()
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return Handle{}
	}
	l.objects[h] = &hosted{
		servant: s,
		subs:    mapset.New[SubscriberID](),
	}
	return h
}

// Live returns the number of registered objects that have not been
// released.
func (l *Loopback) Live() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.objects)
}

// Subscribers returns the number of active subscriptions.
func (l *Loopback) Subscribers() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subs)
}

// Close releases every hosted object and waits for in-flight requests
// and deliveries to finish. Servants that implement [io.Closer] are
// closed, and their errors are returned together.
func (l *Loopback) Close() error {
	var objs map[Handle]*hosted
	{
		l.mu.Lock()
		l.closed = true
		objs, l.objects = l.objects, map[Handle]*hosted{}
		l.subs = map[SubscriberID]*subscriber{}
		l.mu.Unlock()
	}
	l.wg.Wait()

	var err error
	for obj := range maps.Values(objs) {
		if c, ok := obj.servant.(io.Closer); ok {
			err = multierr.Append(err, c.Close())
		}
	}
	return err
}

func (l *Loopback) servant(h Handle) (Servant, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, net.ErrClosed
	}
	obj := l.objects[h]
	if obj == nil {
		return nil, &Fault{Name: "qi.UnknownObject", Detail: fmt.Sprintf("no object with handle %s", h)}
	}
	return obj.servant, nil
}

// async runs fn on a new goroutine, and reports its result through
// reply, unless ctx is done first.
func (l *Loopback) async(ctx context.Context, reply ReplyFunc, fn func() (any, error)) {
	l.mu.Lock()
	closed := l.closed
	if !closed {
		l.wg.Add(1)
	}
	l.mu.Unlock()
	if closed {
		go reply(nil, net.ErrClosed)
		return
	}

	go func() {
		defer l.wg.Done()
		if err := ctx.Err(); err != nil {
			reply(nil, err)
			return
		}
		reply(fn())
	}()
}

// Call implements [Transport].
func (l *Loopback) Call(ctx context.Context, h Handle, method string, args []any, reply ReplyFunc) {
	l.async(ctx, reply, func() (any, error) {
		s, err := l.servant(h)
		if err != nil {
			return nil, err
		}
		return s.Call(ctx, method, args)
	})
}

// Property implements [Transport].
func (l *Loopback) Property(ctx context.Context, h Handle, name string, reply ReplyFunc) {
	l.async(ctx, reply, func() (any, error) {
		s, err := l.servant(h)
		if err != nil {
			return nil, err
		}
		return s.Property(name)
	})
}

// SetProperty implements [Transport].
func (l *Loopback) SetProperty(ctx context.Context, h Handle, name string, value any, reply ReplyFunc) {
	l.async(ctx, reply, func() (any, error) {
		s, err := l.servant(h)
		if err != nil {
			return nil, err
		}
		return nil, s.SetProperty(name, value)
	})
}

// Subscribe implements [Transport].
func (l *Loopback) Subscribe(ctx context.Context, h Handle, signal string, fn SignalFunc, reply ReplyFunc) {
	l.async(ctx, reply, func() (any, error) {
		s, err := l.servant(h)
		if err != nil {
			return nil, err
		}
		if !s.HasSignal(signal) {
			return nil, &Fault{Name: "qi.UnknownSignal", Detail: fmt.Sprintf("%s has no signal %q", s.Describe(), signal)}
		}

		l.mu.Lock()
		defer l.mu.Unlock()
		obj := l.objects[h]
		if obj == nil {
			// Raced with a Release.
			return nil, &Fault{Name: "qi.UnknownObject", Detail: fmt.Sprintf("no object with handle %s", h)}
		}
		l.lastSub++
		l.subs[l.lastSub] = &subscriber{h, signal, fn}
		obj.subs.Add(l.lastSub)
		return l.lastSub, nil
	})
}

// Unsubscribe implements [Transport].
func (l *Loopback) Unsubscribe(ctx context.Context, h Handle, id SubscriberID, reply ReplyFunc) {
	l.async(ctx, reply, func() (any, error) {
		l.mu.Lock()
		defer l.mu.Unlock()
		sub := l.subs[id]
		if sub == nil || sub.handle != h {
			return nil, &Fault{Name: "qi.UnknownSubscriber", Detail: fmt.Sprintf("no subscriber %d on %s", id, h)}
		}
		delete(l.subs, id)
		if obj := l.objects[h]; obj != nil {
			delete(obj.subs, id)
		}
		return nil, nil
	})
}

// Post implements [Transport]. Each subscriber receives the signal on
// its own goroutine.
func (l *Loopback) Post(h Handle, signal string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	obj := l.objects[h]
	if l.closed || obj == nil {
		return
	}
	for id := range obj.subs {
		sub := l.subs[id]
		if sub == nil || sub.signal != signal {
			continue
		}
		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			sub.fn(args)
		}()
	}
}

// Release implements [Transport]. Releasing a Handle also drops every
// subscription on it.
func (l *Loopback) Release(h Handle) {
	l.mu.Lock()
	defer l.mu.Unlock()
	obj := l.objects[h]
	if obj == nil {
		return
	}
	for id := range obj.subs {
		delete(l.subs, id)
	}
	delete(l.objects, h)
}

// Compare implements [Transport].
func (l *Loopback) Compare(a, b Handle) int { return compareHandles(a, b) }

// Hash implements [Transport].
func (l *Loopback) Hash(h Handle) uint64 { return hashHandle(h) }

// Describe implements [Transport].
func (l *Loopback) Describe(h Handle) string {
	s, err := l.servant(h)
	if err != nil {
		return fmt.Sprintf("<released object %s>", h)
	}
	return s.Describe()
}
