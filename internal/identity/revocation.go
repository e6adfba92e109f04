package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const KeyPrefixRevoked = "linkdeck:revoked:"

// Revocations stores signed-out token ids until the token would have expired anyway.
type Revocations struct {
	client *redis.Client
	now    func() time.Time
}

func NewRevocations(client *redis.Client) *Revocations {
	return &Revocations{client: client, now: time.Now}
}

// Revoke blocks tokenID until the given expiry.
// A token that already expired needs no entry.
func (r *Revocations) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	if tokenID == "" {
		return errors.New("token id is required")
	}
	ttl := until.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, KeyPrefixRevoked+tokenID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (r *Revocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, KeyPrefixRevoked+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to read revocation: %w", err)
	}
	return n > 0, nil
}
