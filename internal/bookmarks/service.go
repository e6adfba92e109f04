// Package bookmarks holds the two user mutations: add and delete.
// Both write to the record store and keep the owner's live list in step
// without waiting for the change feed.
package bookmarks

import (
	"context"
	"errors"

	"github.com/MrSnakeDoc/linkdeck/internal/domain"
	"github.com/MrSnakeDoc/linkdeck/internal/livelist"
	"github.com/MrSnakeDoc/linkdeck/internal/logger"
)

// Writer is the part of the record store the mutations need.
type Writer interface {
	Insert(ctx context.Context, ownerID, title, url string) (domain.Bookmark, error)
	Remove(ctx context.Context, ownerID, id string) error
}

// Lists finds an owner's live list if one is active.
type Lists interface {
	Get(ownerID string) (*livelist.Synchronizer, bool)
}

// Confirmer asks the user to approve a delete.
type Confirmer interface {
	Confirm(ctx context.Context, bookmarkID string) bool
}

// ConfirmFunc adapts a plain function to Confirmer.
type ConfirmFunc func(ctx context.Context, bookmarkID string) bool

func (f ConfirmFunc) Confirm(ctx context.Context, bookmarkID string) bool { return f(ctx, bookmarkID) }

// Confirmed is a Confirmer whose answer was collected before the call,
// e.g. a ?confirm=true query parameter.
type Confirmed bool

func (c Confirmed) Confirm(context.Context, string) bool { return bool(c) }

// Service runs the mutations.
type Service struct {
	store  Writer
	lists  Lists
	logger logger.Logger

	// OnAdded runs after a successful add. Optional.
	OnAdded func(domain.Bookmark)
}

func NewService(store Writer, lists Lists, log logger.Logger) *Service {
	return &Service{
		store:  store,
		lists:  lists,
		logger: log,
	}
}

// Add validates and inserts a bookmark for ownerID.
func (s *Service) Add(ctx context.Context, ownerID, title, url string) (domain.Bookmark, error) {
	if ownerID == "" {
		return domain.Bookmark{}, domain.ErrUnauthenticated
	}

	input, err := domain.ValidateInput(title, url)
	if err != nil {
		return domain.Bookmark{}, err
	}

	bookmark, err := s.store.Insert(ctx, ownerID, input.Title, input.URL)
	if err != nil {
		s.logger.Warn("failed to add bookmark",
			logger.String("owner_id", ownerID),
			logger.Error(err))
		return domain.Bookmark{}, domain.NewStoreError("insert", err)
	}

	// the feed event for the same id is a no-op once this lands
	if list, ok := s.lists.Get(ownerID); ok {
		list.ApplyLocal(domain.ChangeEvent{Kind: domain.EventInsert, New: &bookmark})
	}

	if s.OnAdded != nil {
		s.OnAdded(bookmark)
	}

	s.logger.Debug("bookmark added",
		logger.String("owner_id", ownerID),
		logger.String("bookmark_id", bookmark.ID))
	return bookmark, nil
}

// Delete removes a bookmark after confirmation. Deleting something that is
// already gone succeeds.
func (s *Service) Delete(ctx context.Context, ownerID, id string, confirmer Confirmer) error {
	if ownerID == "" {
		return domain.ErrUnauthenticated
	}
	if confirmer == nil || !confirmer.Confirm(ctx, id) {
		return domain.ErrConfirmationRequired
	}

	list, active := s.lists.Get(ownerID)
	if active {
		list.ApplyLocal(domain.ChangeEvent{Kind: domain.EventDelete, Old: &domain.Bookmark{ID: id, OwnerID: ownerID}})
	}

	err := s.store.Remove(ctx, ownerID, id)
	switch {
	case err == nil, errors.Is(err, domain.ErrNotFound):
		return nil
	default:
		s.logger.Warn("failed to delete bookmark, rolling back live list",
			logger.String("owner_id", ownerID),
			logger.String("bookmark_id", id),
			logger.Error(err))
		if active {
			list.Reload("delete rollback")
		}
		return domain.NewStoreError("remove", err)
	}
}
