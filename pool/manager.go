package pool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/coachpo/reuse/config"
	"github.com/coachpo/reuse/internal/observability"
)

var (
	// ErrPoolNotRegistered indicates the requested pool has not been registered.
	ErrPoolNotRegistered = errors.New("pool manager: pool not registered")
	// ErrManagerClosed indicates the manager is shutting down and cannot service requests.
	ErrManagerClosed = errors.New("pool manager: shutdown in progress")
)

// Draining is the non-generic surface a manager needs from a pool:
// identification, occupancy, live reconfiguration, and bulk reset/drain.
// *Pool[T] satisfies it for every T.
type Draining interface {
	Name() string
	IdleLen() int
	MaxSize() int
	SetMaxSize(int) error
	ResetIdle()
	Drain() int
	Snapshot() Stats
}

// Manager coordinates named pools, providing registry lookup, bulk drain,
// settings application, and graceful shutdown with leak reporting.
type Manager struct {
	mu           sync.RWMutex
	pools        map[string]Draining
	shutdownCh   chan struct{}
	shutdownOnce sync.Once
}

// NewManager constructs an initialized manager ready for pool registration.
func NewManager() *Manager {
	m := new(Manager)
	m.pools = make(map[string]Draining)
	m.shutdownCh = make(chan struct{})
	return m
}

// Register adds a pool to the registry under its own name.
func (m *Manager) Register(p Draining) error {
	if p == nil {
		return errors.New("pool manager: cannot register nil pool")
	}
	name := p.Name()
	if name == "" {
		return errors.New("pool manager: pool name must be non-empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	select {
	case <-m.shutdownCh:
		return ErrManagerClosed
	default:
	}

	if _, exists := m.pools[name]; exists {
		return fmt.Errorf("pool manager: pool %s already registered", name)
	}
	m.pools[name] = p
	return nil
}

// Lookup returns the registered pool with the given name.
func (m *Manager) Lookup(name string) (Draining, error) {
	m.mu.RLock()
	p, ok := m.pools[name]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotRegistered, name)
	}
	return p, nil
}

// ResetAllIdle normalizes idle instances across every registered pool.
func (m *Manager) ResetAllIdle() {
	for _, p := range m.snapshotPools() {
		p.ResetIdle()
	}
}

// DrainAll empties every registered pool and returns the total instances
// removed.
func (m *Manager) DrainAll() int {
	total := 0
	for _, p := range m.snapshotPools() {
		total += p.Drain()
	}
	return total
}

// StatsAll returns snapshots for every registered pool, ordered by name.
func (m *Manager) StatsAll() []Stats {
	pools := m.snapshotPools()
	out := make([]Stats, 0, len(pools))
	for _, p := range pools {
		out = append(out, p.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ApplySettings adjusts registered pools to the provided configuration.
// Ceilings shrink lazily: stored surplus instances are evicted on the next
// release, not here.
func (m *Manager) ApplySettings(settings []config.PoolSettings) error {
	for _, s := range settings {
		p, err := m.Lookup(s.Name)
		if err != nil {
			return err
		}
		if err := p.SetMaxSize(s.MaxSize); err != nil {
			return fmt.Errorf("pool manager: apply settings for %s: %w", s.Name, err)
		}
	}
	return nil
}

// Shutdown drains every registered pool, waiting no longer than the context
// deadline (defaulting to 5 seconds). Instances still checked out are logged
// with acquisition stacks when available.
func (m *Manager) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var cancel context.CancelFunc
	if _, ok := ctx.Deadline(); !ok {
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
	}
	if cancel != nil {
		defer cancel()
	}

	m.shutdownOnce.Do(func() {
		close(m.shutdownCh)
	})

	done := make(chan struct{})
	go func() {
		m.DrainAll()
		close(done)
	}()

	select {
	case <-done:
		m.logOutstanding()
		return nil
	case <-ctx.Done():
		m.logOutstanding()
		return fmt.Errorf("pool manager: shutdown timed out: %w", ctx.Err())
	}
}

func (m *Manager) snapshotPools() []Draining {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Draining, 0, len(m.pools))
	for _, p := range m.pools {
		out = append(out, p)
	}
	return out
}

func (m *Manager) logOutstanding() {
	for _, p := range m.snapshotPools() {
		tracker, ok := p.(interface{ activeStacks() []string })
		if !ok {
			continue
		}
		for _, stack := range tracker.activeStacks() {
			observability.Log().Error("pool manager: leak candidate",
				observability.Field{Key: "pool", Value: p.Name()},
				observability.Field{Key: "stack", Value: stack},
			)
		}
	}
}
