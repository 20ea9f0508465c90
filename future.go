package qi

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/creachadair/mds/value"
)

// FutureState is the state of a [Future].
type FutureState int

const (
	FuturePending FutureState = iota
	FutureResolved
	FutureFailed
	FutureCancelled
)

func (s FutureState) String() string {
	switch s {
	case FuturePending:
		return "pending"
	case FutureResolved:
		return "resolved"
	case FutureFailed:
		return "failed"
	case FutureCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("FutureState(%d)", int(s))
	}
}

// A Future is the eventual outcome of an asynchronous operation: a
// value of type T, an error, or cancellation.
//
// A Future leaves the pending state exactly once, and its outcome
// never changes afterwards. All methods are safe for concurrent use.
type Future[T any] struct {
	done chan struct{}

	mu       sync.Mutex
	state    FutureState
	val      T
	err      error
	waiters  []func()
	onCancel []func()
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// A Promise is the producing side of a [Future].
type Promise[T any] struct {
	f *Future[T]
}

// NewPromise returns a Promise whose Future is pending.
func NewPromise[T any]() *Promise[T] {
	return &Promise[T]{newFuture[T]()}
}

// Future returns the Future completed by p.
func (p *Promise[T]) Future() *Future[T] { return p.f }

// Resolve completes the Future with v. It reports whether the Future
// was still pending; completing an already finished Future has no
// effect.
func (p *Promise[T]) Resolve(v T) bool {
	return p.f.complete(FutureResolved, v, nil)
}

// Fail completes the Future with err. It reports whether the Future
// was still pending.
func (p *Promise[T]) Fail(err error) bool {
	if err == nil {
		err = errors.New("future failed with a nil error")
	}
	var zero T
	return p.f.complete(FutureFailed, zero, err)
}

// OnCancel arranges for fn to run if the Future is cancelled. If it
// already was, fn runs immediately.
func (p *Promise[T]) OnCancel(fn func()) {
	f := p.f
	f.mu.Lock()
	switch f.state {
	case FuturePending:
		f.onCancel = append(f.onCancel, fn)
		f.mu.Unlock()
	case FutureCancelled:
		f.mu.Unlock()
		fn()
	default:
		f.mu.Unlock()
	}
}

// Resolved returns a Future already resolved to v.
func Resolved[T any](v T) *Future[T] {
	p := NewPromise[T]()
	p.Resolve(v)
	return p.Future()
}

// Failed returns a Future that already failed with err.
func Failed[T any](err error) *Future[T] {
	p := NewPromise[T]()
	p.Fail(err)
	return p.Future()
}

func (f *Future[T]) complete(state FutureState, v T, err error) bool {
	f.mu.Lock()
	if f.state != FuturePending {
		f.mu.Unlock()
		return false
	}
	f.state, f.val, f.err = state, v, err
	waiters, hooks := f.waiters, f.onCancel
	f.waiters, f.onCancel = nil, nil
	f.mu.Unlock()

	// Continuations run before blocked Waits return, so that a caller
	// of Wait observes their effects.
	if state == FutureCancelled {
		for _, fn := range hooks {
			fn()
		}
	}
	for _, fn := range waiters {
		fn()
	}
	close(f.done)
	return true
}

// Cancel moves a pending Future to the cancelled state, and reports
// whether it did so. The operation producing the Future is asked to
// stop, but may still run to completion; its outcome is discarded.
func (f *Future[T]) Cancel() bool {
	var zero T
	return f.complete(FutureCancelled, zero, ErrCancelled)
}

// State returns the current state of f.
func (f *Future[T]) State() FutureState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Done returns a channel that is closed when f has completed and its
// continuations have run.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Wait blocks until f completes or ctx is done, and returns f's
// outcome. A cancelled Future returns [ErrCancelled].
//
// If ctx ends first, Wait returns ctx's error and f is unaffected.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	if state, v, err := f.outcome(); state != FuturePending {
		return v, err
	}
	select {
	case <-f.done:
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
	_, v, err := f.outcome()
	return v, err
}

// Get is Wait without a deadline.
func (f *Future[T]) Get() (T, error) {
	return f.Wait(context.Background())
}

// Value returns f's value if f has resolved.
func (f *Future[T]) Value() value.Maybe[T] {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != FutureResolved {
		return value.Absent[T]()
	}
	return value.Just(f.val)
}

// Err returns the error f completed with, or nil if f is pending or
// resolved.
func (f *Future[T]) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// OnDone arranges for fn to be called with f's outcome once f
// completes. If f is already complete, fn runs immediately on the
// calling goroutine; otherwise it runs on the goroutine that
// completes f.
func (f *Future[T]) OnDone(fn func(T, error)) {
	f.whenDone(func() {
		_, v, err := f.outcome()
		fn(v, err)
	})
}

func (f *Future[T]) whenDone(fn func()) {
	f.mu.Lock()
	if f.state == FuturePending {
		f.waiters = append(f.waiters, fn)
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()
	fn()
}

func (f *Future[T]) outcome() (FutureState, T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state, f.val, f.err
}

func (f *Future[T]) payloadType() reflect.Type {
	return reflect.TypeFor[T]()
}

// await waits for f on behalf of a served method that returned it,
// and returns its value. A future still pending when ctx ends is
// cancelled. Void payloads are returned as nil.
func (f *Future[T]) await(ctx context.Context) (any, error) {
	if f == nil {
		return nil, errors.New("method returned a nil future")
	}
	v, err := f.Wait(ctx)
	if err != nil {
		f.Cancel()
		return nil, err
	}
	if _, void := any(v).(struct{}); void {
		return nil, nil
	}
	return v, nil
}

// Then returns a Future resolved to fn applied to f's value.
//
// If f fails, the returned Future fails with the same error and fn
// is not called. An error or panic from fn fails the returned
// Future. Cancelling the returned Future cancels f.
func Then[T, U any](f *Future[T], fn func(T) (U, error)) *Future[U] {
	p := NewPromise[U]()
	p.OnCancel(func() { f.Cancel() })
	f.whenDone(func() {
		state, v, err := f.outcome()
		switch state {
		case FutureCancelled:
			p.f.Cancel()
		case FutureFailed:
			p.Fail(err)
		default:
			u, err := protect(func() (U, error) { return fn(v) })
			if err != nil {
				p.Fail(err)
			} else {
				p.Resolve(u)
			}
		}
	})
	return p.Future()
}

// Compose returns a Future that completes like the Future returned
// by fn, applied to f's value.
//
// If f fails, the returned Future fails with the same error and fn
// is not called. Cancelling the returned Future cancels f, or the
// Future returned by fn if f has already resolved.
func Compose[T, U any](f *Future[T], fn func(T) *Future[U]) *Future[U] {
	p := NewPromise[U]()
	p.OnCancel(func() { f.Cancel() })
	f.whenDone(func() {
		state, v, err := f.outcome()
		switch state {
		case FutureCancelled:
			p.f.Cancel()
			return
		case FutureFailed:
			p.Fail(err)
			return
		}
		inner, err := protect(func() (*Future[U], error) {
			ret := fn(v)
			if ret == nil {
				return nil, errors.New("continuation returned a nil future")
			}
			return ret, nil
		})
		if err != nil {
			p.Fail(err)
			return
		}
		p.OnCancel(func() { inner.Cancel() })
		inner.whenDone(func() {
			state, v, err := inner.outcome()
			switch state {
			case FutureResolved:
				p.Resolve(v)
			case FutureFailed:
				p.Fail(err)
			case FutureCancelled:
				p.f.Cancel()
			}
		})
	})
	return p.Future()
}

// settle returns a Future that completes like f, once fn has
// observed f's outcome. Callers of Wait on the returned Future see
// fn's effects.
func settle[T any](f *Future[T], fn func(T, error)) *Future[T] {
	p := NewPromise[T]()
	p.OnCancel(func() { f.Cancel() })
	f.whenDone(func() {
		state, v, err := f.outcome()
		fn(v, err)
		switch state {
		case FutureResolved:
			p.Resolve(v)
		case FutureFailed:
			p.Fail(err)
		case FutureCancelled:
			p.f.Cancel()
		}
	})
	return p.Future()
}

// detached returns a Future that completes like f. Cancelling it
// leaves f running.
func detached[T any](f *Future[T]) *Future[T] {
	p := NewPromise[T]()
	f.whenDone(func() {
		state, v, err := f.outcome()
		switch state {
		case FutureResolved:
			p.Resolve(v)
		case FutureFailed:
			p.Fail(err)
		case FutureCancelled:
			p.f.Cancel()
		}
	})
	return p.Future()
}

// protect calls fn, converting a panic into an error.
func protect[U any](fn func() (U, error)) (ret U, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero U
			ret, err = zero, panicError{r}
		}
	}()
	return fn()
}
