package pool

import (
	"context"

	"golang.org/x/time/rate"
)

// Factory produces new instances on demand. The pool never inspects argument
// values passed to NewWithArgs; they are forwarded opaquely from Obtain.
type Factory[T any] interface {
	New() T
	NewWithArgs(args ...any) T
}

// FactoryFunc adapts a plain constructor func to the Factory interface.
// NewWithArgs ignores its arguments.
type FactoryFunc[T any] func() T

// New invokes the underlying constructor.
func (f FactoryFunc[T]) New() T { return f() }

// NewWithArgs invokes the underlying constructor, discarding args.
func (f FactoryFunc[T]) NewWithArgs(...any) T { return f() }

// ThrottledFactory wraps a factory with a token-bucket limiter bounding how
// fast new instances may be constructed. An Obtain that misses the idle
// store blocks in the factory until the limiter grants a token, which guards
// against allocation storms when a hot path drains the pool faster than
// instances are returned.
type ThrottledFactory[T any] struct {
	inner   Factory[T]
	limiter *rate.Limiter
}

// Throttle wraps inner with a limiter permitting limit constructions per
// second with the given burst.
func Throttle[T any](inner Factory[T], limit rate.Limit, burst int) *ThrottledFactory[T] {
	if inner == nil {
		panic("pool: throttled factory requires an inner factory")
	}
	return &ThrottledFactory[T]{
		inner:   inner,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// New waits for a limiter token, then delegates to the inner factory.
func (t *ThrottledFactory[T]) New() T {
	_ = t.limiter.Wait(context.Background())
	return t.inner.New()
}

// NewWithArgs waits for a limiter token, then delegates to the inner factory.
func (t *ThrottledFactory[T]) NewWithArgs(args ...any) T {
	_ = t.limiter.Wait(context.Background())
	return t.inner.NewWithArgs(args...)
}

// Limiter exposes the underlying limiter for live tuning.
func (t *ThrottledFactory[T]) Limiter() *rate.Limiter { return t.limiter }
