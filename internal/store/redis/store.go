package redis

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/linkdeck/internal/domain"
	"github.com/MrSnakeDoc/linkdeck/internal/feed"
	"github.com/MrSnakeDoc/linkdeck/internal/logger"
	"github.com/MrSnakeDoc/linkdeck/internal/store"
)

// Store keeps bookmarks in Redis and publishes changes on the owner feed
type Store struct {
	client *redis.Client
	feed   *feed.Feed
	logger logger.Logger
	now    func() time.Time
}

var _ store.Store = (*Store)(nil)

// NewStore creates a new Redis store
func NewStore(client *redis.Client, f *feed.Feed, log logger.Logger) *Store {
	return &Store{
		client: client,
		feed:   f,
		logger: log,
		now:    time.Now,
	}
}

// WithClock replaces the time source used for created_at
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Subscribe opens the owner's change feed
func (s *Store) Subscribe(ownerID string, onEvent domain.EventHandler, onStatus domain.StatusHandler) (store.Subscription, error) {
	sub, err := s.feed.Subscribe(ownerID, onEvent, onStatus)
	if err != nil {
		return nil, domain.NewStoreError("subscribe", err)
	}
	return sub, nil
}

// Ping checks the connection
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Backend() string { return "redis" }

// Close is a no-op: the client is owned by the app
func (s *Store) Close() error { return nil }

// newID returns a ULID so ids sort the same way as created_at
func newID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), ulid.DefaultEntropy()).String()
}

func score(t time.Time) float64 {
	return float64(t.UnixMicro())
}
