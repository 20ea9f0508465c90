package qi

import (
	"sync"
	"sync/atomic"

	"github.com/danderson/qi/transport"
)

// handleRef is the shared reference to one remote object, held by
// every Object, request and subscription derived from it.
//
// The remote handle is released exactly once, when the last holder
// lets go.
type handleRef struct {
	t    transport.Transport
	h    transport.Handle
	refs atomic.Int64
}

// holder is one claim on a handleRef. Releasing a holder more than
// once has no further effect.
type holder struct {
	ref  *handleRef
	once sync.Once
}

func newHandleRef(t transport.Transport, h transport.Handle) (*handleRef, *holder) {
	ref := &handleRef{t: t, h: h}
	ref.refs.Store(1)
	return ref, &holder{ref: ref}
}

// acquire returns a new holder on r, or nil if r has already been
// released.
func (r *handleRef) acquire() *holder {
	for {
		n := r.refs.Load()
		if n <= 0 {
			return nil
		}
		if r.refs.CompareAndSwap(n, n+1) {
			return &holder{ref: r}
		}
	}
}

func (h *holder) release() {
	if h == nil {
		return
	}
	h.once.Do(func() {
		if h.ref.refs.Add(-1) == 0 {
			h.ref.t.Release(h.ref.h)
		}
	})
}

func (r *handleRef) describe() string {
	return r.t.Describe(r.h)
}
