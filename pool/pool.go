// Package pool contains bounded object pooling primitives and helpers.
package pool

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/coachpo/reuse/errs"
)

const (
	// DefaultMaxSize bounds the idle store when no explicit ceiling is given.
	DefaultMaxSize = 32
	// DefaultCapacity sizes the initial idle store allocation.
	DefaultCapacity = 16
)

// Resettable is the optional capability a pooled instance may implement. The
// pool invokes Reset before storing an instance and before discarding it, so
// no borrower observes another borrower's residual state. Reset has no
// failure mode; a panicking Reset propagates to the releasing caller before
// anything is stored.
type Resettable interface {
	Reset()
}

// Pool hands out instances of T, accepts them back, resets their state, and
// caps how many idle instances it retains. The idle store is a LIFO stack:
// the most recently released instance is the first obtained, favouring
// cache-hot reuse. All operations are goroutine-safe.
//
// Elements must be reference values (pointers, maps, channels, or funcs):
// double-release detection relies on referential identity.
type Pool[T any] struct {
	mu      sync.Mutex
	name    string
	store   []T
	present map[uintptr]struct{}
	maxSize int
	factory Factory[T]

	created  atomic.Uint64
	retained atomic.Uint64
	rejected atomic.Uint64
	drained  atomic.Uint64

	metrics *Metrics
	debug   *debugState
}

// Option configures a pool at construction time.
type Option[T any] func(*Pool[T])

// WithMaxSize sets the ceiling on retained idle instances. Must be positive.
func WithMaxSize[T any](n int) Option[T] {
	return func(p *Pool[T]) {
		p.maxSize = n
	}
}

// WithFactory installs the strategy used to produce new instances when the
// idle store is empty.
func WithFactory[T any](f Factory[T]) Option[T] {
	return func(p *Pool[T]) {
		p.factory = f
	}
}

// WithMetrics attaches observability instruments to the pool.
func WithMetrics[T any](m *Metrics) Option[T] {
	return func(p *Pool[T]) {
		p.metrics = m
	}
}

// New constructs a pool with the provided name and options. The name appears
// in error envelopes, metrics attributes, and manager registries. New panics
// on an empty name or non-positive ceiling, mirroring construction-time
// contract violations elsewhere in the library.
func New[T any](name string, opts ...Option[T]) *Pool[T] {
	if name == "" {
		panic("pool name must be non-empty")
	}
	p := &Pool[T]{
		name:    name,
		store:   make([]T, 0, DefaultCapacity),
		present: make(map[uintptr]struct{}, DefaultCapacity),
		maxSize: DefaultMaxSize,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.maxSize <= 0 {
		panic("pool " + name + ": max size must be positive")
	}
	p.debug = newDebugState(name)
	return p
}

// Name returns the pool's registered name.
func (p *Pool[T]) Name() string { return p.name }

// Obtain returns an idle instance when one is stored, otherwise delegates to
// the factory: the argument-taking entry point when args are supplied, the
// no-argument entry point otherwise. Obtaining from an empty store with no
// factory installed is a configuration error and is surfaced immediately.
func (p *Pool[T]) Obtain(args ...any) (T, error) {
	p.mu.Lock()
	if n := len(p.store); n > 0 {
		x := p.store[n-1]
		var zero T
		p.store[n-1] = zero
		p.store = p.store[:n-1]
		if key, ok := identityKey(x); ok {
			delete(p.present, key)
		}
		p.mu.Unlock()
		p.debug.clear(x)
		p.debug.recordAcquire(x)
		p.metrics.observeObtain(obtainFromStore)
		return x, nil
	}
	factory := p.factory
	p.mu.Unlock()

	if factory == nil {
		var zero T
		return zero, errs.New(p.name, errs.CodeConfiguration,
			errs.WithOp("obtain"),
			errs.WithMessage("store empty and no factory installed"))
	}

	var x T
	if len(args) > 0 {
		x = factory.NewWithArgs(args...)
	} else {
		x = factory.New()
	}
	p.created.Add(1)
	p.debug.recordAcquire(x)
	p.metrics.observeObtain(obtainFromFactory)
	return x, nil
}

// Release resets the instance and returns it to the idle store. The boolean
// reports whether the instance was retained: a false result with a nil error
// is a capacity rejection, a normal outcome where the instance was reset but
// discarded because the store is full. Releasing a nil or non-reference
// value is an invalid-argument error; releasing an instance that is already
// idle in the store is an invalid-state error (a double release).
func (p *Pool[T]) Release(x T) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.releaseLocked(x, len(p.store))
}

// ReleaseAll applies the single-release policy to every element, using the
// batch length rather than live store occupancy as the capacity comparison
// basis. The call stops at the first element that cannot be retained and
// reports complete=false, leaving earlier elements of the batch stored: this
// is an at-least-once, non-atomic bulk operation with no rollback. A nil
// slice is an invalid-argument error.
func (p *Pool[T]) ReleaseAll(xs []T) (complete bool, err error) {
	if xs == nil {
		return false, errs.New(p.name, errs.CodeInvalidArgument,
			errs.WithOp("release_all"),
			errs.WithMessage("batch must be non-nil"))
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	basis := len(xs)
	for _, x := range xs {
		retained, err := p.releaseLocked(x, basis)
		if err != nil {
			return false, err
		}
		if !retained {
			return false, nil
		}
	}
	return true, nil
}

// releaseLocked implements the single-release policy against an explicit
// capacity comparison basis. Callers hold p.mu.
func (p *Pool[T]) releaseLocked(x T, basis int) (bool, error) {
	key, ok := identityKey(x)
	if !ok {
		return false, errs.New(p.name, errs.CodeInvalidArgument,
			errs.WithOp("release"),
			errs.WithMessage("instance must be a non-nil reference value"))
	}
	if _, dup := p.present[key]; dup {
		return false, errs.New(p.name, errs.CodeInvalidState,
			errs.WithOp("release"),
			errs.WithMessage("instance already idle in store"))
	}

	started := time.Now()
	reset(x)
	p.metrics.observeReset(started)
	p.debug.recordRelease(x)

	if basis < p.maxSize {
		p.debug.poison(x)
		p.store = append(p.store, x)
		p.present[key] = struct{}{}
		p.retained.Add(1)
		p.metrics.observeRelease(releaseRetained)
		return true, nil
	}

	p.rejected.Add(1)
	p.metrics.observeRelease(releaseRejected)
	return false, nil
}

// ResetIdle invokes the reset capability on every stored instance in place,
// without removing anything and without touching the counters. Used to
// normalize idle instances after a configuration change.
func (p *Pool[T]) ResetIdle() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, x := range p.store {
		reset(x)
	}
}

// Drain resets and removes every idle instance, leaving the store empty, and
// returns the number of instances removed. Drain is idempotent: each entry
// is reset once, removed once, and counted once.
func (p *Pool[T]) Drain() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.store)
	for i, x := range p.store {
		reset(x)
		var zero T
		p.store[i] = zero
	}
	p.store = p.store[:0]
	clear(p.present)
	p.drained.Add(uint64(n))
	return n
}

// SetMaxSize changes the idle-store ceiling. Shrinking below the current
// occupancy does not evict already-stored instances; the new ceiling is
// enforced lazily on the next Release.
func (p *Pool[T]) SetMaxSize(n int) error {
	if n <= 0 {
		return errs.New(p.name, errs.CodeInvalidArgument,
			errs.WithOp("set_max_size"),
			errs.WithMessage("max size must be positive"))
	}
	p.mu.Lock()
	p.maxSize = n
	p.mu.Unlock()
	return nil
}

// SetFactory replaces the instance factory. A nil factory is permitted and
// turns the next Obtain against an empty store into a configuration error.
func (p *Pool[T]) SetFactory(f Factory[T]) {
	p.mu.Lock()
	p.factory = f
	p.mu.Unlock()
}

// Configure replaces the ceiling and factory in one call.
func (p *Pool[T]) Configure(maxSize int, f Factory[T]) error {
	if err := p.SetMaxSize(maxSize); err != nil {
		return err
	}
	p.SetFactory(f)
	return nil
}

// MaxSize returns the configured idle-store ceiling.
func (p *Pool[T]) MaxSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxSize
}

// IdleLen returns the number of instances currently idle in the store.
func (p *Pool[T]) IdleLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.store)
}

// Factory returns the currently installed factory, which may be nil.
func (p *Pool[T]) Factory() Factory[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.factory
}

// Snapshot returns a point-in-time view of the pool's counters.
func (p *Pool[T]) Snapshot() Stats {
	p.mu.Lock()
	idle := len(p.store)
	maxSize := p.maxSize
	p.mu.Unlock()
	created := p.created.Load()
	var live uint64
	if created > uint64(idle) {
		live = created - uint64(idle)
	}
	return Stats{
		Name:     p.name,
		Idle:     idle,
		Live:     live,
		MaxSize:  maxSize,
		Created:  created,
		Retained: p.retained.Load(),
		Rejected: p.rejected.Load(),
		Drained:  p.drained.Load(),
	}
}

// activeStacks reports acquisition stacks for instances still checked out,
// available in debug builds only.
func (p *Pool[T]) activeStacks() []string {
	return p.debug.activeStacks()
}

func reset(x any) {
	if r, ok := x.(Resettable); ok {
		r.Reset()
	}
}
