package index

import (
	"sort"
	"sync"
	"time"

	"github.com/MrSnakeDoc/linkdeck/internal/livelist"
)

// Factory builds the live list for one owner. The index starts it.
type Factory func(ownerID string) *livelist.Synchronizer

type session struct {
	list        *livelist.Synchronizer
	refs        int
	lastRelease time.Time
}

// MemoryIndex keeps one live list per active owner and shares it between
// every request and websocket of that owner.
type MemoryIndex struct {
	mu        sync.RWMutex
	sessions  map[string]*session // owner ID -> session
	factory   Factory
	lastSweep time.Time // Timestamp of last idle sweep
	now       func() time.Time
}

// NewMemoryIndex creates an empty index that builds lists with factory
func NewMemoryIndex(factory Factory) *MemoryIndex {
	return &MemoryIndex{
		sessions: make(map[string]*session),
		factory:  factory,
		now:      time.Now,
	}
}

// WithClock replaces the time source used for idle tracking
func (idx *MemoryIndex) WithClock(now func() time.Time) *MemoryIndex {
	idx.now = now
	return idx
}

// Acquire returns the owner's live list, creating and starting it on first
// use. The caller must call release exactly once when done; extra calls are ignored.
func (idx *MemoryIndex) Acquire(ownerID string) (*livelist.Synchronizer, func()) {
	idx.mu.Lock()
	s, ok := idx.sessions[ownerID]
	if !ok {
		s = &session{list: idx.factory(ownerID)}
		idx.sessions[ownerID] = s
	}
	s.refs++
	list := s.list
	idx.mu.Unlock()

	// Start is idempotent; run it outside the lock since it opens a subscription
	list.Start()

	var once sync.Once
	release := func() {
		once.Do(func() { idx.release(ownerID, list) })
	}
	return list, release
}

func (idx *MemoryIndex) release(ownerID string, list *livelist.Synchronizer) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	s, ok := idx.sessions[ownerID]
	if !ok || s.list != list {
		// session was already torn down by CloseAll
		return
	}
	if s.refs > 0 {
		s.refs--
	}
	s.lastRelease = idx.now()
}

// Get returns the owner's live list if one is active
func (idx *MemoryIndex) Get(ownerID string) (*livelist.Synchronizer, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	s, ok := idx.sessions[ownerID]
	if !ok {
		return nil, false
	}
	return s.list, true
}

// All returns every active live list, ordered by owner
func (idx *MemoryIndex) All() []*livelist.Synchronizer {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	owners := make([]string, 0, len(idx.sessions))
	for owner := range idx.sessions {
		owners = append(owners, owner)
	}
	sort.Strings(owners)

	lists := make([]*livelist.Synchronizer, 0, len(owners))
	for _, owner := range owners {
		lists = append(lists, idx.sessions[owner].list)
	}
	return lists
}

// Count returns the number of active sessions
func (idx *MemoryIndex) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return len(idx.sessions)
}

// Refs returns how many holders the owner's session currently has
func (idx *MemoryIndex) Refs(ownerID string) int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if s, ok := idx.sessions[ownerID]; ok {
		return s.refs
	}
	return 0
}

// LastSweep returns the timestamp of the last idle sweep
func (idx *MemoryIndex) LastSweep() time.Time {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.lastSweep
}

// ─────────────────────────────────────────────────────────────────
// Teardown
// ─────────────────────────────────────────────────────────────────

// CloseIdle tears down sessions nobody holds whose last release is older
// than threshold. It returns the owners that were closed.
func (idx *MemoryIndex) CloseIdle(threshold time.Duration) []string {
	idx.mu.Lock()
	now := idx.now()
	idx.lastSweep = now

	var (
		closed []string
		lists  []*livelist.Synchronizer
	)
	for owner, s := range idx.sessions {
		if s.refs > 0 || now.Sub(s.lastRelease) < threshold {
			continue
		}
		delete(idx.sessions, owner)
		closed = append(closed, owner)
		lists = append(lists, s.list)
	}
	idx.mu.Unlock()

	for _, list := range lists {
		list.Close()
	}
	sort.Strings(closed)
	return closed
}

// CloseAll tears down every session. Used on shutdown.
func (idx *MemoryIndex) CloseAll() int {
	idx.mu.Lock()
	lists := make([]*livelist.Synchronizer, 0, len(idx.sessions))
	for _, s := range idx.sessions {
		lists = append(lists, s.list)
	}
	idx.sessions = make(map[string]*session)
	idx.mu.Unlock()

	for _, list := range lists {
		list.Close()
	}
	return len(lists)
}
