package bookmarks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/linkdeck/internal/domain"
	"github.com/MrSnakeDoc/linkdeck/internal/livelist"
	"github.com/MrSnakeDoc/linkdeck/internal/logger"
	"github.com/MrSnakeDoc/linkdeck/internal/store"
)

// ─────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────

// memStore is an in-memory record store. It never publishes events so
// tests see only the optimistic path.
type memStore struct {
	mu        sync.Mutex
	records   []domain.Bookmark
	seq       int
	insertErr error
	removeErr error
	inserts   int
	removes   int
}

func (m *memStore) Insert(_ context.Context, ownerID, title, url string) (domain.Bookmark, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	if m.insertErr != nil {
		return domain.Bookmark{}, m.insertErr
	}
	m.seq++
	b := domain.Bookmark{
		ID:        string(rune('a' + m.seq - 1)),
		OwnerID:   ownerID,
		Title:     title,
		URL:       url,
		CreatedAt: time.Date(2026, 3, 1, 12, m.seq, 0, 0, time.UTC),
	}
	m.records = append([]domain.Bookmark{b}, m.records...)
	return b, nil
}

func (m *memStore) Remove(_ context.Context, ownerID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removes++
	if m.removeErr != nil {
		return m.removeErr
	}
	for i, b := range m.records {
		if b.ID == id && b.OwnerID == ownerID {
			m.records = append(m.records[:i], m.records[i+1:]...)
			return nil
		}
	}
	return domain.NewStoreError("remove", domain.ErrNotFound)
}

func (m *memStore) FetchOwned(_ context.Context, ownerID string) ([]domain.Bookmark, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Bookmark{}
	for _, b := range m.records {
		if b.OwnerID == ownerID {
			out = append(out, b)
		}
	}
	return out, nil
}

type nopSub struct{}

func (nopSub) Unsubscribe() {}

func (m *memStore) Subscribe(string, domain.EventHandler, domain.StatusHandler) (store.Subscription, error) {
	return nopSub{}, nil
}

type oneList struct {
	list *livelist.Synchronizer
}

func (o oneList) Get(ownerID string) (*livelist.Synchronizer, bool) {
	if o.list == nil || o.list.OwnerID() != ownerID {
		return nil, false
	}
	return o.list, true
}

func newTestService(t *testing.T) (*Service, *memStore, *livelist.Synchronizer) {
	t.Helper()
	st := &memStore{}
	list := livelist.New(st, "alice", logger.NewNop())
	t.Cleanup(list.Close)
	list.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, list.WaitReady(ctx))

	return NewService(st, oneList{list: list}, logger.NewNop()), st, list
}

func listIDs(list *livelist.Synchronizer) []string {
	snap := list.Snapshot()
	out := make([]string, len(snap.Bookmarks))
	for i, b := range snap.Bookmarks {
		out[i] = b.ID
	}
	return out
}

// ─────────────────────────────────────────────────────────────────
// Add
// ─────────────────────────────────────────────────────────────────

func TestAddAppliesOptimisticInsert(t *testing.T) {
	svc, _, list := newTestService(t)

	var added []domain.Bookmark
	svc.OnAdded = func(b domain.Bookmark) { added = append(added, b) }

	b, err := svc.Add(context.Background(), "alice", "  Go  ", "go.dev")
	require.NoError(t, err)
	assert.Equal(t, "Go", b.Title)
	assert.Equal(t, "https://go.dev", b.URL)
	assert.Equal(t, "alice", b.OwnerID)

	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{b.ID}, listIDs(list))
	}, 2*time.Second, 5*time.Millisecond)

	require.Len(t, added, 1)
	assert.Equal(t, b.ID, added[0].ID)
}

func TestAddRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		title string
		url   string
		field string
		msg   string
	}{
		{"empty title", "   ", "https://go.dev", "title", "Title is required"},
		{"empty url", "Go", "", "url", "URL is required"},
		{"bad url", "Go", "https://", "url", "Please enter a valid URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, st, _ := newTestService(t)

			_, err := svc.Add(context.Background(), "alice", tt.title, tt.url)
			var verr *domain.ValidationError
			require.True(t, errors.As(err, &verr), "want ValidationError, got %v", err)
			assert.Equal(t, tt.field, verr.Field)
			assert.Equal(t, tt.msg, verr.Message)
			assert.Equal(t, 0, st.inserts)
		})
	}
}

func TestAddRequiresUser(t *testing.T) {
	svc, st, _ := newTestService(t)

	_, err := svc.Add(context.Background(), "", "Go", "https://go.dev")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	assert.Equal(t, "You must be logged in to add bookmarks", err.Error())
	assert.Equal(t, 0, st.inserts)
}

func TestAddStoreFailure(t *testing.T) {
	svc, st, list := newTestService(t)
	st.insertErr = errors.New("connection refused")

	called := false
	svc.OnAdded = func(domain.Bookmark) { called = true }

	_, err := svc.Add(context.Background(), "alice", "Go", "https://go.dev")
	var se *domain.StoreError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "insert", se.Op)
	assert.False(t, called)
	assert.Empty(t, list.Snapshot().Bookmarks)
}

func TestAddWithoutActiveList(t *testing.T) {
	st := &memStore{}
	svc := NewService(st, oneList{}, logger.NewNop())

	b, err := svc.Add(context.Background(), "bob", "Go", "https://go.dev")
	require.NoError(t, err)
	assert.NotEmpty(t, b.ID)
}

// ─────────────────────────────────────────────────────────────────
// Delete
// ─────────────────────────────────────────────────────────────────

func TestDeleteRequiresConfirmation(t *testing.T) {
	svc, st, _ := newTestService(t)

	err := svc.Delete(context.Background(), "alice", "a", Confirmed(false))
	assert.ErrorIs(t, err, domain.ErrConfirmationRequired)

	err = svc.Delete(context.Background(), "alice", "a", nil)
	assert.ErrorIs(t, err, domain.ErrConfirmationRequired)
	assert.Equal(t, 0, st.removes)
}

func TestDeleteAsksConfirmerWithID(t *testing.T) {
	svc, _, _ := newTestService(t)

	var asked string
	err := svc.Delete(context.Background(), "alice", "zz", ConfirmFunc(func(_ context.Context, id string) bool {
		asked = id
		return true
	}))
	require.NoError(t, err)
	assert.Equal(t, "zz", asked)
}

func TestDeleteRemovesOptimistically(t *testing.T) {
	svc, _, list := newTestService(t)
	ctx := context.Background()

	a, err := svc.Add(ctx, "alice", "A", "https://a.example")
	require.NoError(t, err)
	b, err := svc.Add(ctx, "alice", "B", "https://b.example")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "alice", a.ID, Confirmed(true)))
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{b.ID}, listIDs(list))
	}, 2*time.Second, 5*time.Millisecond)
}

func TestDeleteMissingIsSuccess(t *testing.T) {
	svc, st, _ := newTestService(t)

	err := svc.Delete(context.Background(), "alice", "ghost", Confirmed(true))
	assert.NoError(t, err)
	assert.Equal(t, 1, st.removes)
}

func TestDeleteFailureRollsBack(t *testing.T) {
	svc, st, list := newTestService(t)
	ctx := context.Background()

	a, err := svc.Add(ctx, "alice", "A", "https://a.example")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(list.Snapshot().Bookmarks) == 1 },
		2*time.Second, 5*time.Millisecond)

	st.mu.Lock()
	st.removeErr = errors.New("timeout")
	st.mu.Unlock()

	err = svc.Delete(ctx, "alice", a.ID, Confirmed(true))
	var se *domain.StoreError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "remove", se.Op)

	// the reload after the optimistic removal restores the record
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{a.ID}, listIDs(list))
	}, 2*time.Second, 5*time.Millisecond)
}
