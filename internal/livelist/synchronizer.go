// Package livelist keeps one owner's bookmark list in memory and consistent
// with the record store: an initial ordered load, then incremental change
// events, with a full reload whenever an event cannot be applied safely.
//
// All inputs (events, status changes, reload requests, optimistic local
// changes) go through one queue drained by a single goroutine, so exactly
// one reconciliation step is in flight at a time and a reload can never
// overwrite a newer event.
package livelist

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/MrSnakeDoc/linkdeck/internal/domain"
	"github.com/MrSnakeDoc/linkdeck/internal/logger"
	"github.com/MrSnakeDoc/linkdeck/internal/store"
)

// Source is what a synchronizer needs from the record store.
type Source interface {
	FetchOwned(ctx context.Context, ownerID string) ([]domain.Bookmark, error)
	Subscribe(ownerID string, onEvent domain.EventHandler, onStatus domain.StatusHandler) (store.Subscription, error)
}

// Snapshot is what the presentation layer sees.
type Snapshot struct {
	Bookmarks []domain.Bookmark `json:"bookmarks"`
	IsLoading bool              `json:"is_loading"`
	// LoadErr is the last failed load, cleared by the next successful one.
	LoadErr string `json:"load_error,omitempty"`
}

// ErrClosed is returned by WaitReady once the synchronizer is closed.
var ErrClosed = errors.New("live list closed")

type opKind int

const (
	opEvent opKind = iota
	opReload
)

type op struct {
	kind   opKind
	event  domain.ChangeEvent
	reason string
}

// Synchronizer owns the live list of one owner.
type Synchronizer struct {
	ownerID string
	source  Source
	logger  logger.Logger

	// state, written only by the run goroutine
	mu        sync.RWMutex
	bookmarks []domain.Bookmark
	loading   bool
	loadErr   string
	ready     chan struct{}

	// input queue
	qmu     sync.Mutex
	queue   []op
	wake    chan struct{}
	started bool

	observersMu sync.Mutex
	observers   map[int]func(Snapshot)
	nextObs     int
	notifyMu    sync.Mutex // held while observers run; Close waits on it

	closed    atomic.Bool
	ctx       context.Context
	cancel    context.CancelFunc
	sub       store.Subscription
	done      chan struct{}
	closeOnce sync.Once

	lastStatus domain.SubscriptionStatus // guarded by qmu
}

// New creates a synchronizer in the Loading state. Call Start to load.
func New(source Source, ownerID string, log logger.Logger) *Synchronizer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Synchronizer{
		ownerID:   ownerID,
		source:    source,
		logger:    log.With(logger.String("owner_id", ownerID)),
		bookmarks: []domain.Bookmark{},
		loading:   true,
		ready:     make(chan struct{}),
		wake:      make(chan struct{}, 1),
		observers: make(map[int]func(Snapshot)),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// OwnerID returns the owner this list belongs to.
func (s *Synchronizer) OwnerID() string { return s.ownerID }

// Start opens the change subscription, then runs the initial load.
// Events that arrive before the load completes are queued and applied after it.
// A subscription failure is not fatal: the list still loads and the periodic
// resync keeps it fresh.
func (s *Synchronizer) Start() {
	s.qmu.Lock()
	if s.started || s.closed.Load() {
		s.qmu.Unlock()
		return
	}
	s.started = true
	// the initial load is the first queued op, ahead of any event
	s.queue = append([]op{{kind: opReload, reason: "initial load"}}, s.queue...)
	s.qmu.Unlock()

	sub, err := s.source.Subscribe(s.ownerID, s.onEvent, s.onStatus)
	if err != nil {
		s.logger.Warn("failed to open change subscription, relying on resync",
			logger.Error(err))
	} else {
		s.mu.Lock()
		if s.closed.Load() {
			s.mu.Unlock()
			sub.Unsubscribe()
		} else {
			s.sub = sub
			s.mu.Unlock()
		}
	}

	go s.run()
	s.signal()
}

// Snapshot returns a copy of the current list and loading state.
func (s *Synchronizer) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Synchronizer) snapshotLocked() Snapshot {
	out := make([]domain.Bookmark, len(s.bookmarks))
	copy(out, s.bookmarks)
	return Snapshot{Bookmarks: out, IsLoading: s.loading, LoadErr: s.loadErr}
}

// Observe registers fn to be called with a fresh snapshot after every change.
// fn runs on the reconciliation goroutine and must not block or call Close.
func (s *Synchronizer) Observe(fn func(Snapshot)) (cancel func()) {
	s.observersMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.observersMu.Unlock()

	return func() {
		s.observersMu.Lock()
		delete(s.observers, id)
		s.observersMu.Unlock()
	}
}

// WaitReady blocks until the initial load finished or ctx is done.
// It returns ErrClosed if the list is closed first.
func (s *Synchronizer) WaitReady(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-s.ctx.Done():
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reload queues a full reload from the store. It reports false when a
// reload was already pending and this request was merged into it.
func (s *Synchronizer) Reload(reason string) bool {
	return s.enqueue(op{kind: opReload, reason: reason})
}

// ApplyLocal queues an optimistic change made by this process.
// It goes through the same rules as feed events, so the authoritative
// event arriving later is a no-op.
func (s *Synchronizer) ApplyLocal(ev domain.ChangeEvent) {
	s.enqueue(op{kind: opEvent, event: ev})
}

// Close tears the list down. After it returns no state changes and no
// observer calls happen, even if a fetch is still in flight. An observer
// call that is already running is waited for.
func (s *Synchronizer) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed.Store(true)
		sub := s.sub
		s.sub = nil
		s.mu.Unlock()

		s.cancel()
		if sub != nil {
			sub.Unsubscribe()
		}

		s.qmu.Lock()
		started := s.started
		s.queue = nil
		s.qmu.Unlock()

		if !started {
			close(s.done)
		}
		s.signal()

		// Wait out an observer call already in progress.
		s.notifyMu.Lock()
		s.notifyMu.Unlock() //nolint:staticcheck
	})
}

// Done is closed once the reconciliation goroutine exits.
func (s *Synchronizer) Done() <-chan struct{} { return s.done }

// Closed reports whether Close was called.
func (s *Synchronizer) Closed() bool { return s.closed.Load() }

// ─────────────────────────────────────────────────────────────────
// Subscription callbacks
// ─────────────────────────────────────────────────────────────────

func (s *Synchronizer) onEvent(ev domain.ChangeEvent) {
	s.enqueue(op{kind: opEvent, event: ev})
}

func (s *Synchronizer) onStatus(status domain.SubscriptionStatus, err error) {
	s.qmu.Lock()
	previous := s.lastStatus
	s.lastStatus = status
	s.qmu.Unlock()

	switch status {
	case domain.StatusErrored:
		s.logger.Warn("change subscription errored, forcing reload", logger.Error(err))
		s.Reload("subscription errored")
	case domain.StatusActive:
		// events published while disconnected are gone
		if previous == domain.StatusErrored {
			s.Reload("subscription recovered")
		}
	}
}

// ─────────────────────────────────────────────────────────────────
// Queue
// ─────────────────────────────────────────────────────────────────

func (s *Synchronizer) enqueue(o op) bool {
	if s.closed.Load() {
		return false
	}
	s.qmu.Lock()
	if o.kind == opReload && len(s.queue) > 0 && s.queue[len(s.queue)-1].kind == opReload {
		// a pending reload already covers this one
		s.qmu.Unlock()
		return false
	}
	s.queue = append(s.queue, o)
	s.qmu.Unlock()
	s.signal()
	return true
}

func (s *Synchronizer) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Synchronizer) next() (op, bool) {
	s.qmu.Lock()
	defer s.qmu.Unlock()
	if len(s.queue) == 0 {
		return op{}, false
	}
	o := s.queue[0]
	s.queue = s.queue[1:]
	return o, true
}

func (s *Synchronizer) run() {
	defer close(s.done)

	for {
		for {
			if s.closed.Load() {
				return
			}
			o, ok := s.next()
			if !ok {
				break
			}
			s.apply(o)
		}

		select {
		case <-s.wake:
		case <-s.ctx.Done():
			return
		}
	}
}

// ─────────────────────────────────────────────────────────────────
// Reconciliation
// ─────────────────────────────────────────────────────────────────

func (s *Synchronizer) apply(o op) {
	if o.kind == opReload {
		s.reload(o.reason)
		return
	}

	// Nothing incremental can be applied before the first load:
	// the initial load is always first in the queue.
	switch o.event.Kind {
	case domain.EventInsert:
		if o.event.New == nil {
			s.reload("insert without record")
			return
		}
		s.commit(func(list []domain.Bookmark) ([]domain.Bookmark, bool) {
			return insertOrdered(list, *o.event.New)
		})
	case domain.EventDelete:
		id := o.event.RecordID()
		if id == "" {
			s.reload("delete without id")
			return
		}
		s.commit(func(list []domain.Bookmark) ([]domain.Bookmark, bool) {
			return removeID(list, id)
		})
	default:
		s.reload(string(o.event.Kind) + " event")
	}
}

func (s *Synchronizer) reload(reason string) {
	s.logger.Debug("reloading live list", logger.String("reason", reason))

	bookmarks, err := s.source.FetchOwned(s.ctx, s.ownerID)

	s.mu.Lock()
	if s.closed.Load() {
		// late response after teardown
		s.mu.Unlock()
		return
	}

	wasLoading := s.loading
	if err != nil {
		s.loadErr = err.Error()
		// first load degrades to empty, later failures keep the last good list
		s.logger.Warn("failed to load bookmarks",
			logger.String("reason", reason),
			logger.Bool("initial", wasLoading),
			logger.Error(err))
	} else {
		sorted := dedupe(bookmarks)
		sort.SliceStable(sorted, func(i, j int) bool { return domain.Newer(sorted[i], sorted[j]) })
		s.bookmarks = sorted
		s.loadErr = ""
	}
	s.loading = false
	if wasLoading {
		close(s.ready)
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	// Loading -> Ready notifies even for an empty list
	s.notify(snap)
}

// commit applies fn to the list and notifies when it reports a change.
func (s *Synchronizer) commit(fn func([]domain.Bookmark) ([]domain.Bookmark, bool)) {
	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		return
	}
	next, changed := fn(s.bookmarks)
	if !changed {
		s.mu.Unlock()
		return
	}
	s.bookmarks = next
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

func (s *Synchronizer) notify(snap Snapshot) {
	if s.closed.Load() {
		return
	}
	s.observersMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.observersMu.Unlock()

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	for _, fn := range fns {
		if s.closed.Load() {
			return
		}
		fn(snap)
	}
}

// insertOrdered adds b at its position unless its id is already present.
// For a newly created row that position is the front.
func insertOrdered(list []domain.Bookmark, b domain.Bookmark) ([]domain.Bookmark, bool) {
	for _, existing := range list {
		if existing.ID == b.ID {
			return list, false
		}
	}
	i := sort.Search(len(list), func(i int) bool { return domain.Newer(b, list[i]) })
	out := make([]domain.Bookmark, 0, len(list)+1)
	out = append(out, list[:i]...)
	out = append(out, b)
	out = append(out, list[i:]...)
	return out, true
}

func removeID(list []domain.Bookmark, id string) ([]domain.Bookmark, bool) {
	for i, existing := range list {
		if existing.ID == id {
			out := make([]domain.Bookmark, 0, len(list)-1)
			out = append(out, list[:i]...)
			out = append(out, list[i+1:]...)
			return out, true
		}
	}
	return list, false
}

func dedupe(list []domain.Bookmark) []domain.Bookmark {
	seen := make(map[string]struct{}, len(list))
	out := make([]domain.Bookmark, 0, len(list))
	for _, b := range list {
		if _, ok := seen[b.ID]; ok {
			continue
		}
		seen[b.ID] = struct{}{}
		out = append(out, b)
	}
	return out
}
