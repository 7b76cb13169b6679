package repository

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/samber/oops"
)

const denylistKeyPrefix = "denylist:"

// RedisDenylist stores revoked token ids as keys that expire with the token.
type RedisDenylist struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisDenylist(client *redis.Client) *RedisDenylist {
	return &RedisDenylist{client: client, now: time.Now}
}

func (d *RedisDenylist) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(d.now())
	if ttl <= 0 {
		return nil
	}
	if err := d.client.Set(ctx, denylistKeyPrefix+jti, "revoked", ttl).Err(); err != nil {
		return oops.Code("DENYLIST_REVOKE_FAILED").With("backend", "redis").Wrap(err)
	}
	return nil
}

func (d *RedisDenylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := d.client.Exists(ctx, denylistKeyPrefix+jti).Result()
	if err != nil {
		return false, oops.Code("DENYLIST_LOOKUP_FAILED").With("backend", "redis").Wrap(err)
	}
	return n > 0, nil
}
