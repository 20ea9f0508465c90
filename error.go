package qi

import (
	"errors"
	"fmt"
	"strings"
)

// MalformedSignatureError is the error returned when a signature
// string does not follow its grammar.
type MalformedSignatureError struct {
	// Signature is the signature that failed to parse.
	Signature string
	// Reason is what is wrong with it.
	Reason error
}

func (e MalformedSignatureError) Error() string {
	return fmt.Sprintf("malformed signature %q: %s", e.Signature, e.Reason)
}

func (e MalformedSignatureError) Unwrap() error {
	return e.Reason
}

// NoMatchingMethodError is the error returned when no candidate
// method is compatible with a requested method shape.
type NoMatchingMethodError struct {
	// Method is the requested method shape.
	Method string
	// Candidates are the methods that were considered.
	Candidates []string
}

func (e NoMatchingMethodError) Error() string {
	if len(e.Candidates) == 0 {
		return fmt.Sprintf("no method matches %s, no candidates", e.Method)
	}
	return fmt.Sprintf("no method matches %s, candidates: %s", e.Method, strings.Join(e.Candidates, ", "))
}

// AmbiguousMethodError is the error returned when several candidate
// methods match a requested method shape equally well.
type AmbiguousMethodError struct {
	// Method is the requested method shape.
	Method string
	// Tied are the candidates that share the best distance.
	Tied []string
	// Distance is the tied distance.
	Distance Distance
}

func (e AmbiguousMethodError) Error() string {
	return fmt.Sprintf("ambiguous call to %s, %d candidates at distance %s: %s", e.Method, len(e.Tied), e.Distance, strings.Join(e.Tied, ", "))
}

// NullArgumentError is the error returned when a call argument
// contains a nil value, which cannot be carried to a remote object.
type NullArgumentError struct {
	// Path locates the nil value within the arguments, for example
	// args[0][2]["k"].
	Path string
}

func (e NullArgumentError) Error() string {
	return fmt.Sprintf("nil value at %s cannot be sent to a remote object", e.Path)
}

// ConversionError is the error returned when a [Serializer] cannot
// convert a value.
type ConversionError struct {
	// From is the type of the value being converted.
	From string
	// To is the requested type.
	To string
	// Reason is why the conversion failed.
	Reason error
}

func (e ConversionError) Error() string {
	return fmt.Sprintf("cannot convert %s to %s: %s", e.From, e.To, e.Reason)
}

func (e ConversionError) Unwrap() error {
	return e.Reason
}

// RemoteCallError is the error reported when a request to a remote
// object fails.
type RemoteCallError struct {
	// Object describes the remote object.
	Object string
	// Member is the method, property or signal that was requested.
	Member string
	// Err is the failure, usually a [*transport.Fault] reported by
	// the remote side.
	Err error
}

func (e RemoteCallError) Error() string {
	return fmt.Sprintf("calling %s on %s: %s", e.Member, e.Object, e.Err)
}

func (e RemoteCallError) Unwrap() error {
	return e.Err
}

// SlotInvocationError is the error reported when a local signal
// listener fails.
type SlotInvocationError struct {
	// Slot is the name of the listener.
	Slot string
	// Signal is the signal being delivered.
	Signal string
	// Err is the listener's failure: a returned error, a recovered
	// panic, or arguments the listener cannot accept.
	Err error
}

func (e SlotInvocationError) Error() string {
	return fmt.Sprintf("delivering signal %s to %s: %s", e.Signal, e.Slot, e.Err)
}

func (e SlotInvocationError) Unwrap() error {
	return e.Err
}

// SubscriptionError is the error reported when a subscription
// operation is not valid in the subscription's current state.
type SubscriptionError struct {
	// Signal is the subscription's signal.
	Signal string
	// State is the subscription's state at the time of the request.
	State SubscriptionState
	// Reason explains what was wrong.
	Reason string
}

func (e SubscriptionError) Error() string {
	return fmt.Sprintf("subscription to %s (%s): %s", e.Signal, e.State, e.Reason)
}

// ErrCancelled is the error reported by a [Future] that was
// cancelled before it resolved.
var ErrCancelled = errors.New("future cancelled")
