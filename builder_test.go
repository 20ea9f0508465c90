package qi_test

import (
	"context"
	"errors"
	"testing"

	"github.com/danderson/qi"
	"github.com/danderson/qi/qitest"
	"github.com/danderson/qi/transport"
	"go.uber.org/multierr"
)

func TestAdvertiseErrors(t *testing.T) {
	ob := qi.NewObjectBuilder("calculator")

	tests := []struct {
		sig  string
		impl any
		want any
	}{
		{"add::i(ii", calc{}, new(qi.MalformedSignatureError)},
		{"add::s(ss)", calc{}, new(qi.NoMatchingMethodError)},
		{"subtract::i(ii)", calc{}, new(qi.NoMatchingMethodError)},
	}
	for _, tc := range tests {
		err := ob.AdvertiseMethod(tc.sig, tc.impl)
		if !errors.As(err, tc.want) {
			t.Errorf("AdvertiseMethod(%q) err = %v, want %T", tc.sig, err, tc.want)
		}
	}
	if err := ob.AdvertiseMethod("add::i(ii)", nil); err == nil {
		t.Error("AdvertiseMethod with nil implementation succeeded")
	}
	if err := ob.AdvertiseSignal("moved:(ii)"); !errors.As(err, new(qi.MalformedSignatureError)) {
		t.Errorf("AdvertiseSignal with bad signature err = %v, want MalformedSignatureError", err)
	}
	if err := ob.AdvertiseProperty("p", nil); !errors.As(err, new(qi.NullArgumentError)) {
		t.Errorf("AdvertiseProperty(nil) err = %v, want NullArgumentError", err)
	}
	if err := ob.AdvertiseProperty("p", []any{1, nil}); !errors.As(err, new(qi.NullArgumentError)) {
		t.Errorf("AdvertiseProperty with nested nil err = %v, want NullArgumentError", err)
	}
}

// ledger records a running balance, and fails to close when told to.
type ledger struct {
	balance int64
	failure error
	closed  bool
}

func (l *ledger) Deposit(n int64) int64 {
	l.balance += n
	return l.balance
}

func (l *ledger) Close() error {
	l.closed = true
	return l.failure
}

func TestBuilderClose(t *testing.T) {
	errA, errB := errors.New("a"), errors.New("b")
	a, b := &ledger{failure: errA}, &ledger{failure: errB}

	lb := transport.NewLoopback()
	for _, l := range []*ledger{a, b} {
		ob := qi.NewObjectBuilder("ledger")
		if err := ob.AdvertiseMethod("deposit::l(l)", l); err != nil {
			t.Fatal(err)
		}
		obj := ob.Object(lb)
		got, err := qi.CallAs[int64](context.Background(), obj, "deposit", 5).Get()
		if err != nil || got != 5 {
			t.Errorf("deposit = (%d, %v), want (5, nil)", got, err)
		}
	}

	err := lb.Close()
	if !a.closed || !b.closed {
		t.Error("closing the transport did not close every implementation")
	}
	if got := multierr.Errors(err); len(got) != 2 || !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("Close err = %v, want both implementation errors", err)
	}
}

func TestBuilderSnapshot(t *testing.T) {
	ob := qi.NewObjectBuilder("calculator")
	if err := ob.AdvertiseMethod("add::i(ii)", calc{}); err != nil {
		t.Fatal(err)
	}
	lb := transport.NewLoopback()
	defer lb.Close()
	obj := ob.Object(lb)

	// Advertising after Object does not change the served object.
	if err := ob.AdvertiseMethod("greet::s(s)", calc{}); err != nil {
		t.Fatal(err)
	}
	var f *transport.Fault
	if _, err := obj.Call(context.Background(), "greet", "x").Get(); !errors.As(err, &f) || f.Name != "qi.NoSuchMethod" {
		t.Errorf("greet on earlier snapshot err = %v, want qi.NoSuchMethod fault", err)
	}
	if got := obj.String(); got != "calculator" {
		t.Errorf("String() = %q, want calculator", got)
	}
}

// asyncCalc answers with futures instead of plain values.
type asyncCalc struct{}

func (asyncCalc) Add(a, b int32) *qi.Future[int32] { return qi.Resolved(a + b) }

func (asyncCalc) Div(a, b float64) *qi.Future[float64] {
	if b == 0 {
		return qi.Failed[float64](errors.New("division by zero"))
	}
	p := qi.NewPromise[float64]()
	go p.Resolve(a / b)
	return p.Future()
}

func (asyncCalc) Greet(name string) *qi.Future[string] { return nil }

func (asyncCalc) Sub(a, b int32) *qi.Future[int32] {
	f := qi.NewPromise[int32]().Future()
	f.Cancel()
	return f
}

func TestBuilderFutureResults(t *testing.T) {
	ob := qi.NewObjectBuilder("calculator")
	for _, sig := range []string{"add::i(ii)", "div::d(dd)", "greet::s(s)", "sub::i(ii)"} {
		if err := ob.AdvertiseMethod(sig, asyncCalc{}); err != nil {
			t.Fatalf("AdvertiseMethod(%q): %v", sig, err)
		}
	}
	obj := qitest.New(t).MustObject(t, ob)
	ctx := context.Background()

	got, err := obj.Call(ctx, "add", int32(2), int32(3)).Get()
	if err != nil || got != int32(5) {
		t.Errorf("add = (%v, %v), want (5, nil)", got, err)
	}
	if sum, err := qi.CallAs[int32](ctx, obj, "add", int32(2), int32(3)).Get(); err != nil || sum != 5 {
		t.Errorf("CallAs add = (%d, %v), want (5, nil)", sum, err)
	}
	if q, err := qi.CallAs[float64](ctx, obj, "div", 1.0, 4.0).Get(); err != nil || q != 0.25 {
		t.Errorf("div = (%v, %v), want (0.25, nil)", q, err)
	}

	for _, tc := range []struct {
		method string
		args   []any
	}{
		{"div", []any{1.0, 0.0}},
		{"greet", []any{"bob"}},
		{"sub", []any{int32(2), int32(3)}},
	} {
		if _, err := obj.Call(ctx, tc.method, tc.args...).Get(); faultName(err) != "qi.MethodError" {
			t.Errorf("Call(%s) err = %v, want qi.MethodError fault", tc.method, err)
		}
	}
}

// taggedCalc is an implementation value that cannot be compared.
type taggedCalc struct {
	tags any
}

func (taggedCalc) Add(a, b int32) int32 { return a + b }

func (taggedCalc) Sub(a, b int32) int32 { return a - b }

func (taggedCalc) Close() error { return nil }

func TestAdvertiseUncomparable(t *testing.T) {
	ob := qi.NewObjectBuilder("calculator")
	impl := taggedCalc{tags: []string{"fast"}}
	for _, sig := range []string{"add::i(ii)", "sub::i(ii)"} {
		if err := ob.AdvertiseMethod(sig, impl); err != nil {
			t.Fatalf("AdvertiseMethod(%q): %v", sig, err)
		}
	}
	obj := qitest.New(t).MustObject(t, ob)
	if got, err := obj.Call(context.Background(), "add", int32(1), int32(2)).Get(); err != nil || got != int32(3) {
		t.Errorf("add = (%v, %v), want (3, nil)", got, err)
	}
}
