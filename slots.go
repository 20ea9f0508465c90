package qi

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
)

// A SlotSet is a registry of named signal listeners, used by
// [Object.ConnectSlot] to choose the listener for a signal.
//
// Several listeners may share a name, with different parameter types;
// the one closest to a signal's shape is chosen when connecting.
type SlotSet struct {
	mu    sync.RWMutex
	slots []*slot
}

// NewSlotSet returns an empty SlotSet.
func NewSlotSet() *SlotSet {
	return &SlotSet{}
}

type slot struct {
	name  string
	desc  *MethodDescriptor
	shape *funcShape
	fn    reflect.Value
}

// Add registers fn as a listener named name. fn must be a function,
// optionally taking a leading context.Context and optionally returning
// an error.
func (s *SlotSet) Add(name string, fn any) error {
	if fn == nil {
		return fmt.Errorf("slot %s: nil function", name)
	}
	v := reflect.ValueOf(fn)
	shape, err := shapeOf(v.Type())
	if err != nil {
		return fmt.Errorf("slot %s: %w", name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots = append(s.slots, &slot{name, shape.Descriptor(name), shape, v})
	return nil
}

// AddMethods registers every exported method of recv as a listener,
// named after the method with its first letter in lower case.
func (s *SlotSet) AddMethods(recv any) error {
	v := reflect.ValueOf(recv)
	if !v.IsValid() {
		return errors.New("nil receiver")
	}
	for i := range v.NumMethod() {
		m := v.Type().Method(i)
		if err := s.Add(lowerFirst(m.Name), v.Method(i).Interface()); err != nil {
			return err
		}
	}
	return nil
}

// Descriptors returns the descriptors of all registered listeners.
func (s *SlotSet) Descriptors() []*MethodDescriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ret := make([]*MethodDescriptor, len(s.slots))
	for i, sl := range s.slots {
		ret[i] = sl.desc
	}
	return ret
}

func (s *SlotSet) resolve(query *MethodDescriptor) (*slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cands := make([]*MethodDescriptor, len(s.slots))
	for i, sl := range s.slots {
		cands[i] = sl.desc
	}
	i, err := Resolve(query, cands)
	if err != nil {
		return nil, err
	}
	return s.slots[i], nil
}

// invoke calls the slot with delivered signal arguments.
func (sl *slot) invoke(ctx context.Context, opts options, args []any) error {
	in, err := convertArgs(opts.serializer, args, sl.shape.In)
	if err != nil {
		var failed []int
		in, failed = convertEach(opts.serializer, args, sl.shape.In)
		opts.log.Debug("signal arguments converted individually",
			zap.String("slot", sl.name),
			zap.Ints("unconverted", failed),
			zap.Error(err))
	}
	_, err = sl.shape.call(ctx, sl.fn, in)
	return err
}

func lowerFirst(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[n:]
}
