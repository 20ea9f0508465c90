package qi

import (
	"go.uber.org/zap"
)

// An Option configures an [Object].
type Option func(*options)

type options struct {
	serializer Serializer
	log        *zap.Logger
	onError    func(error)
}

func defaultOptions() options {
	return options{
		serializer: DefaultSerializer,
		log:        zap.NewNop(),
	}
}

// WithSerializer sets the Serializer used to convert typed values for
// [CallAs], [GetProperty], [Object.SetProperty], [Object.Post] and
// signal delivery to slots.
func WithSerializer(s Serializer) Option {
	return func(o *options) {
		if s != nil {
			o.serializer = s
		}
	}
}

// WithLogger sets the logger for diagnostics about the Object and its
// subscriptions. By default nothing is logged.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithErrorHandler sets a function that receives listener failures
// during signal delivery, as [SlotInvocationError]s. Failures are
// logged whether or not a handler is set.
func WithErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.onError = fn
	}
}
