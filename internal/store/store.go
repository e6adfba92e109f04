// Package store defines the record store contract shared by all backends.
package store

import (
	"context"

	"github.com/MrSnakeDoc/linkdeck/internal/domain"
)

// Subscription is an open change subscription.
type Subscription interface {
	// Unsubscribe releases the channel. No callback fires after it returns.
	Unsubscribe()
}

// Store is the record store client.
//
// Errors returned by every method are *domain.StoreError. Remove reports
// domain.ErrNotFound (wrapped) for ids the owner does not have.
type Store interface {
	// FetchOwned returns the owner's bookmarks, newest first.
	FetchOwned(ctx context.Context, ownerID string) ([]domain.Bookmark, error)
	// Insert creates a bookmark. The store assigns ID and CreatedAt.
	Insert(ctx context.Context, ownerID, title, url string) (domain.Bookmark, error)
	// Remove deletes a bookmark by id.
	Remove(ctx context.Context, ownerID, id string) error
	// Subscribe opens the owner's change feed.
	Subscribe(ownerID string, onEvent domain.EventHandler, onStatus domain.StatusHandler) (Subscription, error)
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
	// Backend names the implementation, e.g. "redis" or "postgres".
	Backend() string
	Close() error
}
