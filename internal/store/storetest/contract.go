// Package storetest holds the behaviour every store.Store backend must share.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/linkdeck/internal/domain"
	"github.com/MrSnakeDoc/linkdeck/internal/store"
)

// Factory builds a fresh, empty store that reads time from now.
type Factory func(t *testing.T, now func() time.Time) store.Store

// StepClock returns a clock that advances by step on every call.
func StepClock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(step)
		return current
	}
}

// Run executes the contract against the backend built by newStore.
func Run(t *testing.T, newStore Factory) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("fetch empty owner", func(t *testing.T) {
		s := newStore(t, StepClock(start, time.Second))

		got, err := s.FetchOwned(context.Background(), "nobody")
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("insert assigns id and created_at and orders newest first", func(t *testing.T) {
		s := newStore(t, StepClock(start, time.Second))
		ctx := context.Background()

		a, err := s.Insert(ctx, "alice", "A", "https://a.example")
		require.NoError(t, err)
		b, err := s.Insert(ctx, "alice", "B", "https://b.example")
		require.NoError(t, err)
		c, err := s.Insert(ctx, "alice", "C", "https://c.example")
		require.NoError(t, err)

		assert.NotEmpty(t, a.ID)
		assert.NotEqual(t, a.ID, b.ID)
		assert.Equal(t, "alice", a.OwnerID)
		assert.True(t, b.CreatedAt.After(a.CreatedAt))

		got, err := s.FetchOwned(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, []string{c.ID, b.ID, a.ID}, ids(got))
		assert.Equal(t, "https://c.example", got[0].URL)
		assert.Equal(t, "C", got[0].Title)
	})

	t.Run("owners are isolated", func(t *testing.T) {
		s := newStore(t, StepClock(start, time.Second))
		ctx := context.Background()

		mine, err := s.Insert(ctx, "alice", "Mine", "https://alice.example")
		require.NoError(t, err)
		_, err = s.Insert(ctx, "bob", "Theirs", "https://bob.example")
		require.NoError(t, err)

		got, err := s.FetchOwned(ctx, "bob")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Theirs", got[0].Title)

		err = s.Remove(ctx, "bob", mine.ID)
		assert.True(t, errors.Is(err, domain.ErrNotFound), "cross-owner remove should be not found, got %v", err)

		still, err := s.FetchOwned(ctx, "alice")
		require.NoError(t, err)
		assert.Len(t, still, 1)
	})

	t.Run("remove is idempotent from the caller view", func(t *testing.T) {
		s := newStore(t, StepClock(start, time.Second))
		ctx := context.Background()

		bm, err := s.Insert(ctx, "alice", "A", "https://a.example")
		require.NoError(t, err)

		require.NoError(t, s.Remove(ctx, "alice", bm.ID))

		err = s.Remove(ctx, "alice", bm.ID)
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
		var se *domain.StoreError
		assert.True(t, errors.As(err, &se))

		got, err := s.FetchOwned(ctx, "alice")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("subscribe delivers insert and delete events", func(t *testing.T) {
		s := newStore(t, StepClock(start, time.Second))
		ctx := context.Background()

		var (
			mu     sync.Mutex
			events []domain.ChangeEvent
			active = make(chan struct{}, 1)
		)
		sub, err := s.Subscribe("alice",
			func(ev domain.ChangeEvent) {
				mu.Lock()
				defer mu.Unlock()
				events = append(events, ev)
			},
			func(st domain.SubscriptionStatus, _ error) {
				if st == domain.StatusActive {
					select {
					case active <- struct{}{}:
					default:
					}
				}
			})
		require.NoError(t, err)
		defer sub.Unsubscribe()

		select {
		case <-active:
		case <-time.After(2 * time.Second):
			t.Fatal("subscription never became active")
		}

		bm, err := s.Insert(ctx, "alice", "A", "https://a.example")
		require.NoError(t, err)
		_, err = s.Insert(ctx, "bob", "B", "https://b.example")
		require.NoError(t, err)
		require.NoError(t, s.Remove(ctx, "alice", bm.ID))

		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(events) == 2
		}, 2*time.Second, 10*time.Millisecond)

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, domain.EventInsert, events[0].Kind)
		assert.Equal(t, bm.ID, events[0].RecordID())
		assert.Equal(t, domain.EventDelete, events[1].Kind)
		assert.Equal(t, bm.ID, events[1].RecordID())
	})
}

func ids(bookmarks []domain.Bookmark) []string {
	out := make([]string, len(bookmarks))
	for i, b := range bookmarks {
		out[i] = b.ID
	}
	return out
}
