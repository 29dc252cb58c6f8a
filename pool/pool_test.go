package pool

import (
	"strings"
	"sync"
	"testing"

	"github.com/coachpo/reuse/errs"
)

type widget struct {
	ID   string
	Uses int
}

func (w *widget) Reset() {
	w.ID = ""
	w.Uses = 0
}

type widgetFactory struct {
	created  int
	lastArgs []any
}

func (f *widgetFactory) New() *widget {
	f.created++
	return &widget{}
}

func (f *widgetFactory) NewWithArgs(args ...any) *widget {
	f.created++
	f.lastArgs = args
	w := &widget{}
	if len(args) > 0 {
		if id, ok := args[0].(string); ok {
			w.ID = id
		}
	}
	return w
}

func newWidgetPool(t *testing.T, maxSize int) (*Pool[*widget], *widgetFactory) {
	t.Helper()
	f := &widgetFactory{}
	p := New[*widget]("widgets", WithMaxSize[*widget](maxSize), WithFactory[*widget](f))
	return p, f
}

func TestObtainCreatesOnlyWhenStoreEmpty(t *testing.T) {
	p, f := newWidgetPool(t, 4)

	a, err := p.Obtain()
	if err != nil {
		t.Fatalf("Obtain failed: %v", err)
	}
	if f.created != 1 {
		t.Fatalf("expected 1 creation, got %d", f.created)
	}

	if _, err := p.Release(a); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	b, err := p.Obtain()
	if err != nil {
		t.Fatalf("second Obtain failed: %v", err)
	}
	if b != a {
		t.Fatal("expected recycled instance from the store")
	}
	if f.created != 1 {
		t.Fatalf("store hit must not consult the factory, creations = %d", f.created)
	}

	if _, err := p.Obtain(); err != nil {
		t.Fatalf("third Obtain failed: %v", err)
	}
	if f.created != 2 {
		t.Fatalf("empty store must consult the factory, creations = %d", f.created)
	}
}

func TestObtainIsLIFO(t *testing.T) {
	p, _ := newWidgetPool(t, 4)

	a, _ := p.Obtain()
	b, _ := p.Obtain()
	if _, err := p.Release(a); err != nil {
		t.Fatalf("release a: %v", err)
	}
	if _, err := p.Release(b); err != nil {
		t.Fatalf("release b: %v", err)
	}

	first, _ := p.Obtain()
	second, _ := p.Obtain()
	if first != b || second != a {
		t.Fatal("expected most-recently-released instance first")
	}
}

func TestObtainForwardsArgs(t *testing.T) {
	p, f := newWidgetPool(t, 4)

	w, err := p.Obtain("session-9", 42)
	if err != nil {
		t.Fatalf("Obtain failed: %v", err)
	}
	if w.ID != "session-9" {
		t.Fatalf("factory did not receive args, ID = %q", w.ID)
	}
	if len(f.lastArgs) != 2 {
		t.Fatalf("expected 2 forwarded args, got %d", len(f.lastArgs))
	}
}

func TestObtainWithoutFactoryIsConfigurationError(t *testing.T) {
	p := New[*widget]("bare", WithMaxSize[*widget](2))

	_, err := p.Obtain()
	if err == nil {
		t.Fatal("expected configuration error")
	}
	if errs.CodeOf(err) != errs.CodeConfiguration {
		t.Fatalf("expected configuration code, got %q (%v)", errs.CodeOf(err), err)
	}

	// A store hit must not require a factory.
	w := &widget{}
	if _, err := p.Release(w); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	got, err := p.Obtain()
	if err != nil {
		t.Fatalf("Obtain from non-empty store failed: %v", err)
	}
	if got != w {
		t.Fatal("expected the stored instance")
	}
}

func TestReleaseNilIsInvalidArgument(t *testing.T) {
	p, _ := newWidgetPool(t, 2)

	retained, err := p.Release(nil)
	if retained {
		t.Fatal("nil instance must not be retained")
	}
	if errs.CodeOf(err) != errs.CodeInvalidArgument {
		t.Fatalf("expected invalid_argument, got %q (%v)", errs.CodeOf(err), err)
	}
}

func TestDoubleReleaseIsInvalidState(t *testing.T) {
	p, _ := newWidgetPool(t, 4)

	w, _ := p.Obtain()
	if _, err := p.Release(w); err != nil {
		t.Fatalf("first Release failed: %v", err)
	}
	retained, err := p.Release(w)
	if retained {
		t.Fatal("double release must not be retained")
	}
	if errs.CodeOf(err) != errs.CodeInvalidState {
		t.Fatalf("expected invalid_state, got %q (%v)", errs.CodeOf(err), err)
	}
	if p.IdleLen() != 1 {
		t.Fatalf("store corrupted by double release, idle = %d", p.IdleLen())
	}
}

func TestCapacityRejectionIsNotAnError(t *testing.T) {
	p, _ := newWidgetPool(t, 2)

	a, _ := p.Obtain()
	b, _ := p.Obtain()
	c := &widget{ID: "stale", Uses: 7}

	if retained, err := p.Release(a); err != nil || !retained {
		t.Fatalf("release a: retained=%v err=%v", retained, err)
	}
	if retained, err := p.Release(b); err != nil || !retained {
		t.Fatalf("release b: retained=%v err=%v", retained, err)
	}

	retained, err := p.Release(c)
	if err != nil {
		t.Fatalf("capacity rejection must not be an error: %v", err)
	}
	if retained {
		t.Fatal("store at ceiling must discard the instance")
	}
	if c.ID != "" || c.Uses != 0 {
		t.Fatal("discarded instance must still be reset")
	}
	if p.IdleLen() != 2 {
		t.Fatalf("expected exactly maxSize retained, idle = %d", p.IdleLen())
	}
}

func TestReleaseResetsBeforeReuse(t *testing.T) {
	p, _ := newWidgetPool(t, 2)

	w, _ := p.Obtain()
	w.ID = "borrower-1"
	w.Uses = 3
	if _, err := p.Release(w); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	next, _ := p.Obtain()
	if next.ID != "" || next.Uses != 0 {
		t.Fatalf("residual state leaked between borrowers: %+v", next)
	}
}

func TestReleaseAllUsesBatchLengthAsCapacityBasis(t *testing.T) {
	p, _ := newWidgetPool(t, 1)

	batch := []*widget{{}, {}, {}}
	complete, err := p.ReleaseAll(batch)
	if err != nil {
		t.Fatalf("ReleaseAll failed: %v", err)
	}
	if complete {
		t.Fatal("batch larger than ceiling must not complete")
	}
	// Batch length 3 is the comparison basis, so even the first element is
	// rejected against maxSize 1.
	if p.IdleLen() != 0 {
		t.Fatalf("expected empty store, idle = %d", p.IdleLen())
	}
	if got := p.Snapshot().Rejected; got != 1 {
		t.Fatalf("expected the call to stop at the first rejection, rejected = %d", got)
	}
}

func TestReleaseAllWithinCapacity(t *testing.T) {
	p, _ := newWidgetPool(t, 4)

	batch := []*widget{{ID: "x"}, {ID: "y"}, {ID: "z"}}
	complete, err := p.ReleaseAll(batch)
	if err != nil {
		t.Fatalf("ReleaseAll failed: %v", err)
	}
	if !complete {
		t.Fatal("batch within ceiling must complete")
	}
	if p.IdleLen() != 3 {
		t.Fatalf("expected 3 idle instances, got %d", p.IdleLen())
	}
}

func TestReleaseAllRejectsNilBatchAndNilElements(t *testing.T) {
	p, _ := newWidgetPool(t, 4)

	if _, err := p.ReleaseAll(nil); errs.CodeOf(err) != errs.CodeInvalidArgument {
		t.Fatalf("nil batch: expected invalid_argument, got %v", err)
	}

	complete, err := p.ReleaseAll([]*widget{{}, nil})
	if complete {
		t.Fatal("batch with nil element must not complete")
	}
	if errs.CodeOf(err) != errs.CodeInvalidArgument {
		t.Fatalf("nil element: expected invalid_argument, got %v", err)
	}
	// Non-atomic bulk release: the first element stays stored.
	if p.IdleLen() != 1 {
		t.Fatalf("expected earlier batch elements to remain stored, idle = %d", p.IdleLen())
	}
}

func TestReleaseAllDetectsDuplicateWithinBatch(t *testing.T) {
	p, _ := newWidgetPool(t, 4)

	w := &widget{}
	complete, err := p.ReleaseAll([]*widget{w, w})
	if complete {
		t.Fatal("duplicate batch must not complete")
	}
	if errs.CodeOf(err) != errs.CodeInvalidState {
		t.Fatalf("expected invalid_state, got %v", err)
	}
}

func TestDrainEmptiesStoreAndRoutesNextObtainThroughFactory(t *testing.T) {
	p, f := newWidgetPool(t, 4)

	a, _ := p.Obtain()
	b, _ := p.Obtain()
	_, _ = p.Release(a)
	_, _ = p.Release(b)

	if n := p.Drain(); n != 2 {
		t.Fatalf("Drain returned %d, want 2", n)
	}
	if p.IdleLen() != 0 {
		t.Fatalf("store not empty after Drain, idle = %d", p.IdleLen())
	}
	if n := p.Drain(); n != 0 {
		t.Fatalf("second Drain returned %d, want 0", n)
	}

	before := f.created
	if _, err := p.Obtain(); err != nil {
		t.Fatalf("Obtain after Drain failed: %v", err)
	}
	if f.created != before+1 {
		t.Fatal("Obtain after Drain must go through the factory")
	}

	// Drained instances must not resurface.
	w, _ := p.Obtain()
	if w == a || w == b {
		t.Fatal("drained instance resurfaced")
	}
}

func TestResetIdleNormalizesWithoutRemoval(t *testing.T) {
	p, _ := newWidgetPool(t, 4)

	w, _ := p.Obtain()
	_, _ = p.Release(w)
	// Simulate drift on an idle instance.
	w.ID = "drifted"

	p.ResetIdle()
	if p.IdleLen() != 1 {
		t.Fatalf("ResetIdle must not remove instances, idle = %d", p.IdleLen())
	}
	got, _ := p.Obtain()
	if got.ID != "" {
		t.Fatalf("idle instance not reset in place: %+v", got)
	}
}

func TestSetMaxSizeShrinksLazily(t *testing.T) {
	p, _ := newWidgetPool(t, 4)

	batch := []*widget{{}, {}, {}}
	if _, err := p.ReleaseAll(batch); err != nil {
		t.Fatalf("ReleaseAll failed: %v", err)
	}
	if err := p.SetMaxSize(1); err != nil {
		t.Fatalf("SetMaxSize failed: %v", err)
	}
	if p.IdleLen() != 3 {
		t.Fatalf("shrinking must not evict stored instances, idle = %d", p.IdleLen())
	}

	// Stored surplus drains through Obtain; the new ceiling applies on the
	// next release.
	a, _ := p.Obtain()
	_, _ = p.Obtain()
	_, _ = p.Obtain()
	if retained, err := p.Release(a); err != nil || !retained {
		t.Fatalf("release below new ceiling: retained=%v err=%v", retained, err)
	}
	retained, err := p.Release(&widget{})
	if err != nil {
		t.Fatalf("release at new ceiling errored: %v", err)
	}
	if retained {
		t.Fatal("release at new ceiling must be rejected")
	}
}

func TestSetMaxSizeRejectsNonPositive(t *testing.T) {
	p, _ := newWidgetPool(t, 2)
	if err := p.SetMaxSize(0); errs.CodeOf(err) != errs.CodeInvalidArgument {
		t.Fatalf("expected invalid_argument, got %v", err)
	}
}

func TestConfigureReplacesCeilingAndFactory(t *testing.T) {
	p, _ := newWidgetPool(t, 2)

	replacement := &widgetFactory{}
	if err := p.Configure(8, replacement); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	if p.MaxSize() != 8 {
		t.Fatalf("MaxSize = %d, want 8", p.MaxSize())
	}
	if _, err := p.Obtain(); err != nil {
		t.Fatalf("Obtain failed: %v", err)
	}
	if replacement.created != 1 {
		t.Fatal("expected replacement factory to be consulted")
	}

	p.SetFactory(nil)
	if _, err := p.Obtain(); errs.CodeOf(err) != errs.CodeConfiguration {
		t.Fatalf("nil factory must surface configuration error, got %v", err)
	}
}

func TestSnapshotCounters(t *testing.T) {
	p, _ := newWidgetPool(t, 1)

	a, _ := p.Obtain()
	_, _ = p.Release(a)
	_, _ = p.Release(&widget{}) // rejected at ceiling
	p.Drain()

	s := p.Snapshot()
	if s.Name != "widgets" {
		t.Fatalf("Name = %q", s.Name)
	}
	if s.Created != 1 || s.Retained != 1 || s.Rejected != 1 || s.Drained != 1 {
		t.Fatalf("unexpected counters: %+v", s)
	}
	if s.Idle != 0 || s.MaxSize != 1 {
		t.Fatalf("unexpected occupancy: %+v", s)
	}
}

func TestSnapshotLiveEstimate(t *testing.T) {
	p, _ := newWidgetPool(t, 4)

	a, _ := p.Obtain()
	b, _ := p.Obtain()
	if got := p.Snapshot().Live; got != 2 {
		t.Fatalf("Live = %d with two instances checked out, want 2", got)
	}

	_, _ = p.Release(a)
	if got := p.Snapshot().Live; got != 1 {
		t.Fatalf("Live = %d after one release, want 1", got)
	}

	_, _ = p.Release(b)
	if got := p.Snapshot().Live; got != 0 {
		t.Fatalf("Live = %d with all instances idle, want 0", got)
	}

	// Foreign releases can push idle past creations; the estimate floors.
	_, _ = p.Release(&widget{})
	if got := p.Snapshot().Live; got != 0 {
		t.Fatalf("Live = %d, want floor at 0", got)
	}
}

func TestEncodeStatsJSON(t *testing.T) {
	p, _ := newWidgetPool(t, 2)
	data, err := EncodeJSON(p.Snapshot())
	if err != nil {
		t.Fatalf("EncodeJSON failed: %v", err)
	}
	for _, want := range []string{`"name":"widgets"`, `"max_size":2`, `"idle":0`} {
		if !strings.Contains(string(data), want) {
			t.Fatalf("encoded stats %s missing %s", data, want)
		}
	}

	var buf strings.Builder
	if err := WriteJSON(&buf, p.Snapshot()); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	if buf.String() != string(data) {
		t.Fatal("WriteJSON and EncodeJSON disagree")
	}
}

func TestNewPanicsOnBadConstruction(t *testing.T) {
	assertPanics := func(name string, fn func()) {
		t.Helper()
		defer func() {
			if recover() == nil {
				t.Fatalf("%s: expected panic", name)
			}
		}()
		fn()
	}
	assertPanics("empty name", func() { New[*widget]("") })
	assertPanics("non-positive ceiling", func() {
		New[*widget]("bad", WithMaxSize[*widget](0))
	})
}

func TestConcurrentObtainReleaseKeepsInvariants(t *testing.T) {
	p, _ := newWidgetPool(t, 8)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				w, err := p.Obtain()
				if err != nil {
					t.Errorf("Obtain: %v", err)
					return
				}
				w.Uses++
				if _, err := p.Release(w); err != nil {
					t.Errorf("Release: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if idle := p.IdleLen(); idle > p.MaxSize() {
		t.Fatalf("idle %d exceeds ceiling %d", idle, p.MaxSize())
	}
}

func TestIdentityKey(t *testing.T) {
	if _, ok := identityKey(nil); ok {
		t.Fatal("nil must have no identity")
	}
	if _, ok := identityKey((*widget)(nil)); ok {
		t.Fatal("typed nil pointer must have no identity")
	}
	if _, ok := identityKey(widget{}); ok {
		t.Fatal("value types carry no referential identity")
	}
	w := &widget{}
	k1, ok1 := identityKey(w)
	k2, ok2 := identityKey(w)
	if !ok1 || !ok2 || k1 != k2 {
		t.Fatal("pointer identity must be stable")
	}
}
