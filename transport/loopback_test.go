package transport

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type echo struct {
	props  map[string]any
	closed atomic.Bool
}

func (e *echo) Call(ctx context.Context, method string, args []any) (any, error) {
	switch method {
	case "echo":
		return args, nil
	case "block":
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return nil, &Fault{Name: "test.NoMethod", Detail: method}
}

func (e *echo) Property(name string) (any, error) { return e.props[name], nil }

func (e *echo) SetProperty(name string, value any) error {
	e.props[name] = value
	return nil
}

func (e *echo) HasSignal(name string) bool { return name == "ping" }

func (e *echo) Describe() string { return "echo" }

func (e *echo) Close() error {
	e.closed.Store(true)
	return errors.New("closed echo")
}

type result struct {
	v   any
	err error
}

// wait returns a ReplyFunc and a function that blocks for its reply.
func wait(t *testing.T) (ReplyFunc, func() (any, error)) {
	ch := make(chan result, 1)
	reply := func(v any, err error) { ch <- result{v, err} }
	return reply, func() (any, error) {
		select {
		case r := <-ch:
			return r.v, r.err
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for reply")
			return nil, nil
		}
	}
}

func TestLoopbackCall(t *testing.T) {
	l := NewLoopback()
	defer l.Close()
	h := l.Register(&echo{props: map[string]any{}})
	ctx := context.Background()

	reply, get := wait(t)
	l.Call(ctx, h, "echo", []any{1, "a"}, reply)
	v, err := get()
	if err != nil {
		t.Fatalf("echo got err: %v", err)
	}
	if diff := cmp.Diff(v, []any{1, "a"}); diff != "" {
		t.Errorf("wrong echo (-got+want):\n%s", diff)
	}

	reply, get = wait(t)
	l.Call(ctx, h, "nope", nil, reply)
	var f *Fault
	if _, err := get(); !errors.As(err, &f) || f.Name != "test.NoMethod" {
		t.Errorf("unknown method err = %v, want test.NoMethod fault", err)
	}

	reply, get = wait(t)
	l.Call(ctx, NewHandle(), "echo", nil, reply)
	if _, err := get(); !errors.As(err, &f) || f.Name != "qi.UnknownObject" {
		t.Errorf("unknown object err = %v, want qi.UnknownObject fault", err)
	}

	cctx, cancel := context.WithCancel(ctx)
	reply, get = wait(t)
	l.Call(cctx, h, "block", nil, reply)
	cancel()
	if _, err := get(); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled call err = %v, want context.Canceled", err)
	}
}

func TestLoopbackProperties(t *testing.T) {
	l := NewLoopback()
	defer l.Close()
	h := l.Register(&echo{props: map[string]any{"p": 1}})
	ctx := context.Background()

	reply, get := wait(t)
	l.SetProperty(ctx, h, "p", 2, reply)
	if _, err := get(); err != nil {
		t.Fatalf("SetProperty got err: %v", err)
	}
	reply, get = wait(t)
	l.Property(ctx, h, "p", reply)
	if v, err := get(); v != 2 || err != nil {
		t.Errorf("Property = (%v, %v), want (2, nil)", v, err)
	}
}

func TestLoopbackSignals(t *testing.T) {
	l := NewLoopback()
	defer l.Close()
	h := l.Register(&echo{})
	ctx := context.Background()

	got := make(chan []any, 1)
	reply, get := wait(t)
	l.Subscribe(ctx, h, "ping", func(args []any) { got <- args }, reply)
	v, err := get()
	if err != nil {
		t.Fatalf("Subscribe got err: %v", err)
	}
	id := v.(SubscriberID)
	if n := l.Subscribers(); n != 1 {
		t.Errorf("Subscribers = %d, want 1", n)
	}

	l.Post(h, "pong", []any{0})
	l.Post(h, "ping", []any{1})
	select {
	case args := <-got:
		if diff := cmp.Diff(args, []any{1}); diff != "" {
			t.Errorf("wrong signal args (-got+want):\n%s", diff)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("signal not delivered")
	}

	reply, get = wait(t)
	l.Subscribe(ctx, h, "pong", func([]any) {}, reply)
	var f *Fault
	if _, err := get(); !errors.As(err, &f) || f.Name != "qi.UnknownSignal" {
		t.Errorf("subscribing to unknown signal err = %v, want qi.UnknownSignal fault", err)
	}

	reply, get = wait(t)
	l.Unsubscribe(ctx, h, id, reply)
	if _, err := get(); err != nil {
		t.Fatalf("Unsubscribe got err: %v", err)
	}
	reply, get = wait(t)
	l.Unsubscribe(ctx, h, id, reply)
	if _, err := get(); !errors.As(err, &f) || f.Name != "qi.UnknownSubscriber" {
		t.Errorf("second Unsubscribe err = %v, want qi.UnknownSubscriber fault", err)
	}
	if n := l.Subscribers(); n != 0 {
		t.Errorf("Subscribers = %d, want 0", n)
	}
}

func TestLoopbackRelease(t *testing.T) {
	l := NewLoopback()
	defer l.Close()
	h := l.Register(&echo{})

	reply, get := wait(t)
	l.Subscribe(context.Background(), h, "ping", func([]any) {}, reply)
	if _, err := get(); err != nil {
		t.Fatal(err)
	}
	if got := l.Describe(h); got != "echo" {
		t.Errorf("Describe = %q, want echo", got)
	}

	l.Release(h)
	if n := l.Live(); n != 0 {
		t.Errorf("Live after release = %d, want 0", n)
	}
	if n := l.Subscribers(); n != 0 {
		t.Errorf("Subscribers after release = %d, want 0", n)
	}
	if got := l.Describe(h); got == "echo" {
		t.Error("released handle still described as its object")
	}
}

func TestLoopbackClose(t *testing.T) {
	l := NewLoopback()
	e := &echo{}
	l.Register(e)
	h := l.Register(&echo{})

	if err := l.Close(); err == nil {
		t.Error("Close did not report servant close errors")
	}
	if !e.closed.Load() {
		t.Error("Close did not close servant")
	}

	reply, get := wait(t)
	l.Call(context.Background(), h, "echo", nil, reply)
	if _, err := get(); !errors.Is(err, net.ErrClosed) {
		t.Errorf("Call after Close err = %v, want net.ErrClosed", err)
	}
	if h := l.Register(&echo{}); !h.IsZero() {
		t.Error("Register after Close returned a live handle")
	}
}

func TestHandles(t *testing.T) {
	a, b := NewHandle(), NewHandle()
	if a == b {
		t.Fatal("NewHandle returned the same handle twice")
	}
	if compareHandles(a, a) != 0 || compareHandles(a, b) != -compareHandles(b, a) {
		t.Error("compareHandles is not an ordering")
	}
	if hashHandle(a) != hashHandle(a) {
		t.Error("hashHandle is not deterministic")
	}
	if !(Handle{}).IsZero() || a.IsZero() {
		t.Error("IsZero wrong")
	}
}
