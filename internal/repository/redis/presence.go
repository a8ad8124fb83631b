package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// PresenceRepo keeps an expiring online marker per user plus a durable last-seen
// timestamp.
type PresenceRepo struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewPresenceRepo creates a presence store; ttl <= 0 uses PresenceTTL.
func NewPresenceRepo(client redis.UniversalClient, ttl time.Duration) *PresenceRepo {
	if ttl <= 0 {
		ttl = PresenceTTL
	}
	return &PresenceRepo{client: client, ttl: ttl}
}

func (r *PresenceRepo) Get(ctx context.Context, userID string) (bool, int64, error) {
	pipe := r.client.Pipeline()
	existsCmd := pipe.Exists(ctx, BuildPresenceKey(userID))
	lastSeenCmd := pipe.Get(ctx, BuildLastSeenKey(userID))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return false, 0, err
	}

	lastSeen, err := lastSeenCmd.Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, 0, err
	}
	return existsCmd.Val() > 0, lastSeen, nil
}

// MarkOnline refreshes the online marker; call it again before the TTL elapses.
func (r *PresenceRepo) MarkOnline(ctx context.Context, userID string) error {
	now := time.Now().UnixMilli()
	pipe := r.client.Pipeline()
	pipe.Set(ctx, BuildPresenceKey(userID), "1", r.ttl)
	pipe.Set(ctx, BuildLastSeenKey(userID), now, 0)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *PresenceRepo) MarkOffline(ctx context.Context, userID string) error {
	now := time.Now().UnixMilli()
	pipe := r.client.Pipeline()
	pipe.Del(ctx, BuildPresenceKey(userID))
	pipe.Set(ctx, BuildLastSeenKey(userID), now, 0)
	_, err := pipe.Exec(ctx)
	return err
}
