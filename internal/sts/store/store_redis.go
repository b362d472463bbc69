package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"miw/pkg/platform/sentinel"
)

// JTIRedis is the Redis-backed replay ledger. SET NX gives the atomic
// check-and-mark; key TTLs track token expiry so the ledger cleans itself.
type JTIRedis struct {
	client *redis.Client
	prefix string
}

func NewJTIRedis(client *redis.Client) *JTIRedis {
	return &JTIRedis{client: client, prefix: "sts:jti:"}
}

func (s *JTIRedis) Register(ctx context.Context, jti string, expiresAt time.Time) error {
	if err := s.client.SetNX(ctx, s.prefix+jti, "issued", ttlFor(expiresAt)).Err(); err != nil {
		return fmt.Errorf("register jti: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (s *JTIRedis) Consume(ctx context.Context, jti string, expiresAt time.Time) error {
	ok, err := s.client.SetNX(ctx, s.prefix+jti+":used", "1", ttlFor(expiresAt)).Result()
	if err != nil {
		return fmt.Errorf("consume jti: %w: %w", sentinel.ErrUnavailable, err)
	}
	if !ok {
		return fmt.Errorf("jti %s: %w", jti, sentinel.ErrAlreadyUsed)
	}
	return nil
}

// ttlFor keeps the key alive slightly past token expiry so a clock-skewed
// replay near the boundary still hits the ledger.
func ttlFor(expiresAt time.Time) time.Duration {
	ttl := time.Until(expiresAt) + time.Minute
	if ttl < time.Minute {
		ttl = time.Minute
	}
	return ttl
}
