// Package qitest provides an isolated in-process transport for tests.
package qitest

import (
	"context"
	"sync"
	"testing"

	"github.com/danderson/qi"
	"github.com/danderson/qi/transport"
)

// Bus is an isolated loopback transport for tests. It counts the
// requests it carries, and can be told to fail them.
type Bus struct {
	*transport.Loopback

	mu     sync.Mutex
	counts map[string]int
	fail   map[string][]error
}

// Operation names accepted by [Bus.Count] and [Bus.FailNext].
const (
	OpCall        = "call"
	OpProperty    = "property"
	OpSetProperty = "setProperty"
	OpSubscribe   = "subscribe"
	OpUnsubscribe = "unsubscribe"
	OpPost        = "post"
	OpRelease     = "release"
)

// New returns a Bus dedicated to the calling test. The bus is closed
// when the test finishes, and any error closing it fails the test.
func New(t testing.TB) *Bus {
	ret := &Bus{
		Loopback: transport.NewLoopback(),
		counts:   map[string]int{},
		fail:     map[string][]error{},
	}
	t.Cleanup(func() {
		if err := ret.Loopback.Close(); err != nil {
			t.Errorf("closing test bus: %v", err)
		}
	})
	return ret
}

// MustObject serves the object built by b on the bus, and returns a
// proxy for it. The proxy is closed when the test finishes.
func (b *Bus) MustObject(t testing.TB, ob *qi.ObjectBuilder, opts ...qi.Option) *qi.Object {
	obj := ob.Object(b, opts...)
	if obj.Handle().IsZero() {
		t.Fatal("test bus refused to register object")
	}
	t.Cleanup(func() { obj.Close() })
	return obj
}

// Count returns the number of requests of the given operation that
// the bus has received.
func (b *Bus) Count(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts[op]
}

// FailNext arranges for the next request of the given operation to
// fail with err, without reaching the hosted object.
func (b *Bus) FailNext(op string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fail[op] = append(b.fail[op], err)
}

// record counts one request, and returns the error it should fail
// with, if any.
func (b *Bus) record(op string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.counts[op]++
	errs := b.fail[op]
	if len(errs) == 0 {
		return nil
	}
	b.fail[op] = errs[1:]
	return errs[0]
}

func (b *Bus) Call(ctx context.Context, h transport.Handle, method string, args []any, reply transport.ReplyFunc) {
	if err := b.record(OpCall); err != nil {
		go reply(nil, err)
		return
	}
	b.Loopback.Call(ctx, h, method, args, reply)
}

func (b *Bus) Property(ctx context.Context, h transport.Handle, name string, reply transport.ReplyFunc) {
	if err := b.record(OpProperty); err != nil {
		go reply(nil, err)
		return
	}
	b.Loopback.Property(ctx, h, name, reply)
}

func (b *Bus) SetProperty(ctx context.Context, h transport.Handle, name string, value any, reply transport.ReplyFunc) {
	if err := b.record(OpSetProperty); err != nil {
		go reply(nil, err)
		return
	}
	b.Loopback.SetProperty(ctx, h, name, value, reply)
}

func (b *Bus) Subscribe(ctx context.Context, h transport.Handle, signal string, fn transport.SignalFunc, reply transport.ReplyFunc) {
	if err := b.record(OpSubscribe); err != nil {
		go reply(nil, err)
		return
	}
	b.Loopback.Subscribe(ctx, h, signal, fn, reply)
}

func (b *Bus) Unsubscribe(ctx context.Context, h transport.Handle, id transport.SubscriberID, reply transport.ReplyFunc) {
	if err := b.record(OpUnsubscribe); err != nil {
		go reply(nil, err)
		return
	}
	b.Loopback.Unsubscribe(ctx, h, id, reply)
}

func (b *Bus) Post(h transport.Handle, signal string, args []any) {
	b.record(OpPost)
	b.Loopback.Post(h, signal, args)
}

func (b *Bus) Release(h transport.Handle) {
	b.record(OpRelease)
	b.Loopback.Release(h)
}
