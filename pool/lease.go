package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	concpool "github.com/sourcegraph/conc/pool"
)

// ErrLeasePoolClosed is returned by Acquire, TryAcquire, and Return after
// Close.
var ErrLeasePoolClosed = errors.New("pool: lease pool closed")

// LeasePool is the blocking counterpart to Pool: instead of growing through
// a factory when empty, it owns exactly capacity instances, each held by a
// long-lived worker goroutine, and Acquire blocks until one is free. Use it
// where backpressure is preferable to allocation.
type LeasePool[T any] struct {
	name      string
	factory   func() T
	requests  chan *leaseRequest[T]
	stop      chan struct{}
	leases    sync.Map // uintptr -> *lease[T]
	workers   *concpool.Pool
	closed    atomic.Bool
	capacity  int
	waitGroup sync.WaitGroup
}

type leaseRequest[T any] struct {
	ctx    context.Context
	result chan T
}

type lease[T any] struct {
	id       uuid.UUID
	obj      T
	returnCh chan T

	mu      sync.Mutex
	settled bool
}

// send delivers the returned instance unless the lease was already settled
// by a return or a cancellation. The channel is buffered, so the send under
// the mutex never blocks.
func (l *lease[T]) send(obj T) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.settled {
		return false
	}
	l.settled = true
	l.returnCh <- obj
	return true
}

// cancel closes the return channel unless the lease was already settled.
// Serializing with send keeps close from racing an in-flight return.
func (l *lease[T]) cancel() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.settled {
		return
	}
	l.settled = true
	close(l.returnCh)
}

// NewLeasePool constructs a lease pool with capacity worker-owned instances.
func NewLeasePool[T any](name string, capacity int, factory func() T) (*LeasePool[T], error) {
	if name == "" {
		return nil, fmt.Errorf("lease pool: name must be non-empty")
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("lease pool %s: capacity must be positive", name)
	}
	if factory == nil {
		return nil, fmt.Errorf("lease pool %s: factory required", name)
	}
	lp := &LeasePool[T]{
		name:     name,
		factory:  factory,
		requests: make(chan *leaseRequest[T]),
		stop:     make(chan struct{}),
		capacity: capacity,
		workers:  concpool.New().WithMaxGoroutines(capacity),
	}
	for i := 0; i < capacity; i++ {
		lp.waitGroup.Add(1)
		lp.workers.Go(lp.worker)
	}
	return lp, nil
}

// Name returns the pool's registered name.
func (lp *LeasePool[T]) Name() string { return lp.name }

// Capacity returns the fixed number of instances the pool owns.
func (lp *LeasePool[T]) Capacity() int { return lp.capacity }

func (lp *LeasePool[T]) worker() {
	defer lp.waitGroup.Done()

	obj := lp.factory()
	if _, ok := identityKey(obj); !ok {
		panic(fmt.Sprintf("lease pool %s: factory returned a non-reference value", lp.name))
	}
	reset(obj)

	for {
		req, ok := lp.nextRequest()
		if !ok {
			return
		}
		l := lp.checkout(obj)
		if l == nil {
			continue
		}
		if !lp.deliver(req, obj) {
			lp.cancelLease(l)
			continue
		}
		ret, ok := lp.waitForReturn(l)
		if !ok {
			return
		}
		obj = ret
		reset(obj)
	}
}

func (lp *LeasePool[T]) nextRequest() (*leaseRequest[T], bool) {
	select {
	case <-lp.stop:
		return nil, false
	case req, ok := <-lp.requests:
		if !ok {
			return nil, false
		}
		return req, true
	}
}

func (lp *LeasePool[T]) deliver(req *leaseRequest[T], obj T) bool {
	if req == nil {
		return false
	}
	for {
		select {
		case <-lp.stop:
			return false
		case <-req.ctx.Done():
			return false
		case req.result <- obj:
			return true
		}
	}
}

func (lp *LeasePool[T]) checkout(obj T) *lease[T] {
	key, ok := identityKey(obj)
	if !ok {
		return nil
	}
	l := &lease[T]{
		id:       uuid.New(),
		obj:      obj,
		returnCh: make(chan T, 1),
	}
	lp.leases.Store(key, l)
	return l
}

func (lp *LeasePool[T]) cancelLease(l *lease[T]) {
	if l == nil {
		return
	}
	if key, ok := identityKey(l.obj); ok {
		lp.leases.Delete(key)
	}
	l.cancel()
}

func (lp *LeasePool[T]) waitForReturn(l *lease[T]) (T, bool) {
	for {
		select {
		case <-lp.stop:
			// Keep waiting: Close cancels outstanding leases, so the return
			// channel settles either way.
		case returned, ok := <-l.returnCh:
			if key, keyed := identityKey(l.obj); keyed {
				lp.leases.Delete(key)
			}
			if !ok {
				var zero T
				return zero, false
			}
			return returned, true
		}
	}
}

// Acquire blocks until an instance is free or ctx is done. A nil ctx uses
// the background context.
func (lp *LeasePool[T]) Acquire(ctx context.Context) (T, error) {
	var zero T
	if lp.closed.Load() {
		return zero, ErrLeasePoolClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}
	req := &leaseRequest[T]{ctx: ctx, result: make(chan T, 1)}

	select {
	case <-lp.stop:
		return zero, ErrLeasePoolClosed
	case lp.requests <- req:
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	select {
	case <-lp.stop:
		return zero, ErrLeasePoolClosed
	case obj := <-req.result:
		return obj, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// TryAcquire returns an instance only when one is immediately free.
func (lp *LeasePool[T]) TryAcquire() (T, bool, error) {
	var zero T
	if lp.closed.Load() {
		return zero, false, ErrLeasePoolClosed
	}
	req := &leaseRequest[T]{ctx: context.Background(), result: make(chan T, 1)}

	select {
	case <-lp.stop:
		return zero, false, ErrLeasePoolClosed
	case lp.requests <- req:
	default:
		return zero, false, nil
	}

	select {
	case <-lp.stop:
		return zero, false, ErrLeasePoolClosed
	case obj := <-req.result:
		return obj, true, nil
	}
}

// Return hands a leased instance back to its worker. Returning an instance
// that holds no active lease is a double return and fails. Returning after
// Close fails with ErrLeasePoolClosed; the lease was already cancelled.
func (lp *LeasePool[T]) Return(obj T) error {
	key, ok := identityKey(obj)
	if !ok {
		return fmt.Errorf("lease pool %s: returned value is not a reference", lp.name)
	}
	if lp.closed.Load() {
		return fmt.Errorf("lease pool %s: %w", lp.name, ErrLeasePoolClosed)
	}
	value, ok := lp.leases.Load(key)
	if !ok {
		return fmt.Errorf("lease pool %s: double return detected for %T", lp.name, obj)
	}
	l, ok := value.(*lease[T])
	if !ok {
		lp.leases.Delete(key)
		return fmt.Errorf("lease pool %s: invalid lease type %T", lp.name, value)
	}
	if !l.send(obj) {
		lp.leases.Delete(key)
		if lp.closed.Load() {
			return fmt.Errorf("lease pool %s: %w", lp.name, ErrLeasePoolClosed)
		}
		return fmt.Errorf("lease pool %s: double return detected for %T", lp.name, obj)
	}
	return nil
}

// ActiveLeases reports the identifiers of leases currently checked out,
// for leak diagnostics.
func (lp *LeasePool[T]) ActiveLeases() []string {
	var out []string
	lp.leases.Range(func(_, value any) bool {
		if l, ok := value.(*lease[T]); ok {
			out = append(out, l.id.String())
		}
		return true
	})
	return out
}

// Close stops the workers and cancels outstanding leases. Instances still
// checked out are abandoned, not awaited; a Return attempted after Close
// fails with ErrLeasePoolClosed. Close is idempotent.
func (lp *LeasePool[T]) Close() {
	if lp.closed.Swap(true) {
		return
	}
	close(lp.stop)
	lp.leases.Range(func(_, value any) bool {
		if l, ok := value.(*lease[T]); ok {
			l.cancel()
		}
		return true
	})
	lp.workers.Wait()
	lp.waitGroup.Wait()
}
