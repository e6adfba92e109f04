package index

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrSnakeDoc/linkdeck/internal/domain"
	"github.com/MrSnakeDoc/linkdeck/internal/livelist"
	"github.com/MrSnakeDoc/linkdeck/internal/logger"
	"github.com/MrSnakeDoc/linkdeck/internal/store"
)

type nopSub struct{}

func (nopSub) Unsubscribe() {}

type stubSource struct {
	fetches atomic.Int32
}

func (s *stubSource) FetchOwned(_ context.Context, ownerID string) ([]domain.Bookmark, error) {
	s.fetches.Add(1)
	return []domain.Bookmark{{ID: "1", OwnerID: ownerID, Title: "t", URL: "https://x.example"}}, nil
}

func (s *stubSource) Subscribe(string, domain.EventHandler, domain.StatusHandler) (store.Subscription, error) {
	return nopSub{}, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestIndex() (*MemoryIndex, *stubSource, *fakeClock) {
	src := &stubSource{}
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	idx := NewMemoryIndex(func(ownerID string) *livelist.Synchronizer {
		return livelist.New(src, ownerID, logger.NewNop())
	}).WithClock(clock.Now)
	return idx, src, clock
}

func TestNewMemoryIndex(t *testing.T) {
	idx, _, _ := newTestIndex()
	if idx == nil {
		t.Fatal("NewMemoryIndex() returned nil")
	}
	if idx.Count() != 0 {
		t.Errorf("NewMemoryIndex() should start empty, got %v sessions", idx.Count())
	}
	if !idx.LastSweep().IsZero() {
		t.Errorf("LastSweep() should be zero before any sweep, got %v", idx.LastSweep())
	}
}

func TestAcquireSharesOneListPerOwner(t *testing.T) {
	idx, _, _ := newTestIndex()
	defer idx.CloseAll()

	a1, release1 := idx.Acquire("alice")
	a2, release2 := idx.Acquire("alice")
	b, release3 := idx.Acquire("bob")
	defer release1()
	defer release2()
	defer release3()

	if a1 != a2 {
		t.Error("Acquire() should return the same list for the same owner")
	}
	if a1 == b {
		t.Error("Acquire() should return different lists for different owners")
	}
	if idx.Count() != 2 {
		t.Errorf("Count() = %v, want 2", idx.Count())
	}
	if idx.Refs("alice") != 2 {
		t.Errorf("Refs(alice) = %v, want 2", idx.Refs("alice"))
	}
}

func TestAcquireStartsList(t *testing.T) {
	idx, _, _ := newTestIndex()
	defer idx.CloseAll()

	list, release := idx.Acquire("alice")
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := list.WaitReady(ctx); err != nil {
		t.Fatalf("WaitReady() error = %v", err)
	}
	if got := len(list.Snapshot().Bookmarks); got != 1 {
		t.Errorf("Snapshot() has %v bookmarks, want 1", got)
	}
}

func TestGet(t *testing.T) {
	idx, _, _ := newTestIndex()
	defer idx.CloseAll()

	if _, ok := idx.Get("alice"); ok {
		t.Error("Get() should miss before Acquire")
	}

	list, release := idx.Acquire("alice")
	release()

	got, ok := idx.Get("alice")
	if !ok || got != list {
		t.Error("Get() should return the acquired list after release")
	}
}

func TestAllOrderedByOwner(t *testing.T) {
	idx, _, _ := newTestIndex()
	defer idx.CloseAll()

	for _, owner := range []string{"carol", "alice", "bob"} {
		_, release := idx.Acquire(owner)
		release()
	}

	all := idx.All()
	if len(all) != 3 {
		t.Fatalf("All() = %v lists, want 3", len(all))
	}
	want := []string{"alice", "bob", "carol"}
	for i, list := range all {
		if list.OwnerID() != want[i] {
			t.Errorf("All()[%d] owner = %v, want %v", i, list.OwnerID(), want[i])
		}
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	idx, _, _ := newTestIndex()
	defer idx.CloseAll()

	_, release1 := idx.Acquire("alice")
	_, release2 := idx.Acquire("alice")

	release1()
	release1()
	if idx.Refs("alice") != 1 {
		t.Errorf("Refs(alice) = %v after double release, want 1", idx.Refs("alice"))
	}
	release2()
	if idx.Refs("alice") != 0 {
		t.Errorf("Refs(alice) = %v, want 0", idx.Refs("alice"))
	}
}

func TestCloseIdle(t *testing.T) {
	idx, _, clock := newTestIndex()
	defer idx.CloseAll()

	idle, releaseIdle := idx.Acquire("alice")
	releaseIdle()
	held, releaseHeld := idx.Acquire("bob")
	defer releaseHeld()

	clock.Advance(5 * time.Minute)
	if closed := idx.CloseIdle(10 * time.Minute); len(closed) != 0 {
		t.Errorf("CloseIdle() closed %v before threshold", closed)
	}

	clock.Advance(6 * time.Minute)
	closed := idx.CloseIdle(10 * time.Minute)
	if len(closed) != 1 || closed[0] != "alice" {
		t.Errorf("CloseIdle() = %v, want [alice]", closed)
	}
	if !idle.Closed() {
		t.Error("idle list should be closed")
	}
	if held.Closed() {
		t.Error("held list should stay open")
	}
	if idx.Count() != 1 {
		t.Errorf("Count() = %v, want 1", idx.Count())
	}
	if !idx.LastSweep().Equal(clock.Now()) {
		t.Errorf("LastSweep() = %v, want %v", idx.LastSweep(), clock.Now())
	}

	// a new Acquire after teardown builds a fresh list
	fresh, release := idx.Acquire("alice")
	defer release()
	if fresh == idle {
		t.Error("Acquire() after CloseIdle should build a new list")
	}
}

func TestCloseAll(t *testing.T) {
	idx, _, _ := newTestIndex()

	a, releaseA := idx.Acquire("alice")
	b, _ := idx.Acquire("bob")

	if n := idx.CloseAll(); n != 2 {
		t.Errorf("CloseAll() = %v, want 2", n)
	}
	if !a.Closed() || !b.Closed() {
		t.Error("CloseAll() should close every list")
	}
	if idx.Count() != 0 {
		t.Errorf("Count() = %v after CloseAll, want 0", idx.Count())
	}

	// releasing a torn-down session is harmless
	releaseA()
	if idx.Count() != 0 {
		t.Errorf("release after CloseAll recreated a session")
	}
}

func TestConcurrentAccess(t *testing.T) {
	idx, src, _ := newTestIndex()
	defer idx.CloseAll()

	var wg sync.WaitGroup
	lists := make(chan *livelist.Synchronizer, 100)

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			list, release := idx.Acquire("alice")
			lists <- list
			_ = idx.All()
			_ = idx.Count()
			release()
		}()
	}

	wg.Wait()
	close(lists)

	var first *livelist.Synchronizer
	for list := range lists {
		if first == nil {
			first = list
		}
		if list != first {
			t.Fatal("concurrent Acquire() built more than one list for an owner")
		}
	}
	if idx.Refs("alice") != 0 {
		t.Errorf("Refs(alice) = %v after all releases, want 0", idx.Refs("alice"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := first.WaitReady(ctx); err != nil {
		t.Fatalf("WaitReady() error = %v", err)
	}
	if n := src.fetches.Load(); n != 1 {
		t.Errorf("initial load ran %v times, want 1", n)
	}
}
