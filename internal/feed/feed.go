// Package feed carries per-owner bookmark change events over Redis pub/sub.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/linkdeck/internal/domain"
	"github.com/MrSnakeDoc/linkdeck/internal/logger"
)

// KeyPrefixChanges is the prefix of every owner change channel.
const KeyPrefixChanges = "linkdeck:bookmarks-changes:"

const (
	DefaultRetryInterval = 500 * time.Millisecond
	DefaultMaxWait       = 10 * time.Second
)

// Channel returns the pub/sub channel for an owner.
func Channel(ownerID string) string {
	return KeyPrefixChanges + ownerID
}

// wireEvent is the JSON payload published on a change channel.
type wireEvent struct {
	Type string           `json:"type"`
	New  *domain.Bookmark `json:"new,omitempty"`
	Old  *domain.Bookmark `json:"old,omitempty"`
}

// Encode serializes a change event.
func Encode(ev domain.ChangeEvent) ([]byte, error) {
	data, err := json.Marshal(wireEvent{Type: string(ev.Kind), New: ev.New, Old: ev.Old})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal change event: %w", err)
	}
	return data, nil
}

// Decode parses a payload. Anything malformed becomes an unknown event,
// which makes subscribers fall back to a full reload.
func Decode(payload []byte) domain.ChangeEvent {
	var w wireEvent
	if err := json.Unmarshal(payload, &w); err != nil {
		return domain.ChangeEvent{Kind: domain.EventUnknown}
	}
	ev := domain.ChangeEvent{Kind: domain.ParseEventKind(w.Type), New: w.New, Old: w.Old}
	switch ev.Kind {
	case domain.EventInsert:
		if ev.New == nil || ev.New.ID == "" {
			ev.Kind = domain.EventUnknown
		}
	case domain.EventDelete:
		if ev.RecordID() == "" {
			ev.Kind = domain.EventUnknown
		}
	}
	return ev
}

// Feed publishes and subscribes to owner change channels.
type Feed struct {
	client        *redis.Client
	logger        logger.Logger
	retryInterval time.Duration
	maxWait       time.Duration
}

// New creates a feed on top of an already connected client.
func New(client *redis.Client, log logger.Logger) *Feed {
	return &Feed{
		client:        client,
		logger:        log,
		retryInterval: DefaultRetryInterval,
		maxWait:       DefaultMaxWait,
	}
}

// WithBackoff overrides the resubscribe backoff. Mostly for tests.
func (f *Feed) WithBackoff(initial, maxWait time.Duration) *Feed {
	f.retryInterval = initial
	f.maxWait = maxWait
	return f
}

// Publish sends ev to the owner's channel.
func (f *Feed) Publish(ctx context.Context, ownerID string, ev domain.ChangeEvent) error {
	payload, err := Encode(ev)
	if err != nil {
		return err
	}
	if err := f.client.Publish(ctx, Channel(ownerID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish change event: %w", err)
	}
	return nil
}
