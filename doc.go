// Package qi calls methods, reads and writes properties, and listens
// to signals on remote objects.
//
// # Signatures
//
// Method shapes are described by compact type signatures. Two forms
// are supported: the descriptor form parsed by [ParseType] and
// [ParseMethod], such as "(I[Ljava/lang/String;)V", and the
// name-qualified form parsed by [ParseQiSignature], such as
// "add::i(ii)". Both produce a [MethodDescriptor].
//
// # Overload resolution
//
// [TypeDistance] scores how well one type matches another, and
// [MethodDescriptor.Distance] sums those scores over a method's
// return and parameter types. [Resolve] picks the candidate with the
// smallest distance, and reports ties as an [AmbiguousMethodError]
// rather than guessing.
//
// # Remote objects
//
// An [Object] is a proxy for an object reached through a
// [transport.Transport]. Every operation returns a [Future]
// immediately; call [Future.Wait] to block for the outcome. Arguments
// are checked with [ValidateArgs] before anything is sent, so a nil
// value anywhere in the arguments fails the call locally with a
// [NullArgumentError].
//
// Signals are received through [Object.Connect], which hands the
// listener generic arguments, or [Object.ConnectSlot], which picks a
// typed Go function from a [SlotSet] and converts arguments to its
// parameter types.
//
// # Serving objects
//
// An [ObjectBuilder] exposes the methods of Go values as a remote
// object on a [transport.Host], such as the in-process
// [transport.Loopback].
package qi
