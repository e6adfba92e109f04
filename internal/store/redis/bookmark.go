package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/linkdeck/internal/domain"
	"github.com/MrSnakeDoc/linkdeck/internal/feed"
	"github.com/MrSnakeDoc/linkdeck/internal/logger"
)

// FetchOwned returns the owner's bookmarks, newest first
func (s *Store) FetchOwned(ctx context.Context, ownerID string) ([]domain.Bookmark, error) {
	ids, err := s.client.ZRevRange(ctx, OwnerIndexKey(ownerID), 0, -1).Result()
	if err != nil {
		return nil, domain.NewStoreError("fetch", fmt.Errorf("failed to get bookmark IDs: %w", err))
	}

	if len(ids) == 0 {
		return []domain.Bookmark{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = BookmarkKey(id)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, domain.NewStoreError("fetch", fmt.Errorf("failed to get bookmarks: %w", err))
	}

	bookmarks := make([]domain.Bookmark, 0, len(ids))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// Index entry without data, skip it
			s.logger.Debug("dangling bookmark index entry",
				logger.String("owner_id", ownerID),
				logger.String("bookmark_id", ids[i]))
			continue
		}

		var bookmark domain.Bookmark
		if err := json.Unmarshal([]byte(raw), &bookmark); err != nil {
			s.logger.Warn("skipping unreadable bookmark",
				logger.String("bookmark_id", ids[i]),
				logger.Error(err))
			continue
		}
		bookmarks = append(bookmarks, bookmark)
	}

	return bookmarks, nil
}

// Insert stores a new bookmark and publishes the insert event in the same transaction
func (s *Store) Insert(ctx context.Context, ownerID, title, url string) (domain.Bookmark, error) {
	if ownerID == "" {
		return domain.Bookmark{}, domain.NewStoreError("insert", errors.New("owner id is required"))
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	bookmark := domain.Bookmark{
		ID:        newID(now),
		OwnerID:   ownerID,
		Title:     title,
		URL:       url,
		CreatedAt: now,
	}

	data, err := json.Marshal(bookmark)
	if err != nil {
		return domain.Bookmark{}, domain.NewStoreError("insert", fmt.Errorf("failed to marshal bookmark: %w", err))
	}

	payload, err := feed.Encode(domain.ChangeEvent{Kind: domain.EventInsert, New: &bookmark})
	if err != nil {
		return domain.Bookmark{}, domain.NewStoreError("insert", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, BookmarkKey(bookmark.ID), data, 0)
		pipe.ZAdd(ctx, OwnerIndexKey(ownerID), redis.Z{Score: score(now), Member: bookmark.ID})
		pipe.Publish(ctx, feed.Channel(ownerID), payload)
		return nil
	})
	if err != nil {
		return domain.Bookmark{}, domain.NewStoreError("insert", fmt.Errorf("failed to save bookmark: %w", err))
	}

	return bookmark, nil
}

// Remove deletes an owner's bookmark and publishes the delete event.
// Unknown ids and ids of other owners report domain.ErrNotFound.
func (s *Store) Remove(ctx context.Context, ownerID, id string) error {
	data, err := s.client.Get(ctx, BookmarkKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.NewStoreError("remove", fmt.Errorf("%w: %s", domain.ErrNotFound, id))
		}
		return domain.NewStoreError("remove", fmt.Errorf("failed to get bookmark: %w", err))
	}

	var bookmark domain.Bookmark
	if err := json.Unmarshal(data, &bookmark); err != nil {
		return domain.NewStoreError("remove", fmt.Errorf("failed to unmarshal bookmark: %w", err))
	}
	if bookmark.OwnerID != ownerID {
		return domain.NewStoreError("remove", fmt.Errorf("%w: %s", domain.ErrNotFound, id))
	}

	payload, err := feed.Encode(domain.ChangeEvent{Kind: domain.EventDelete, Old: &bookmark})
	if err != nil {
		return domain.NewStoreError("remove", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, BookmarkKey(id))
		pipe.ZRem(ctx, OwnerIndexKey(ownerID), id)
		pipe.Publish(ctx, feed.Channel(ownerID), payload)
		return nil
	})
	if err != nil {
		return domain.NewStoreError("remove", fmt.Errorf("failed to delete bookmark: %w", err))
	}

	return nil
}
