package pool

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/coachpo/reuse/errs"
)

// WaitObtain obtains from a factory-less pool, polling with exponential
// backoff until another goroutine releases an instance or ctx ends. Pools
// with a factory never need to wait; for those WaitObtain is equivalent to a
// single Obtain call.
func WaitObtain[T any](ctx context.Context, p *Pool[T], args ...any) (T, error) {
	var zero T
	if ctx == nil {
		ctx = context.Background()
	}

	backoffCfg := backoff.NewExponentialBackOff()
	backoffCfg.InitialInterval = time.Millisecond
	backoffCfg.MaxInterval = 50 * time.Millisecond

	for {
		x, err := p.Obtain(args...)
		if err == nil {
			return x, nil
		}
		if errs.CodeOf(err) != errs.CodeConfiguration {
			return zero, err
		}

		sleep := backoffCfg.NextBackOff()
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(sleep):
		}
	}
}
