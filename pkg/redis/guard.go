package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Ramsey-B/fern/pkg/tracing"
)

// ErrGuardNotHeld is returned when releasing a key this guard does not own.
var ErrGuardNotHeld = errors.New("ingest guard not held")

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Guard claims a key for a fixed TTL so redelivered messages for the same
// course are skipped while the first delivery is in flight or recently done.
// Keys are owned per Guard instance.
type Guard struct {
	client    *Client
	keyPrefix string
	owner     string
	ttl       time.Duration
}

func NewGuard(client *Client, keyPrefix string, ttl time.Duration) *Guard {
	if keyPrefix == "" {
		keyPrefix = "fern:ingest:"
	}
	return &Guard{
		client:    client,
		keyPrefix: keyPrefix,
		owner:     uuid.New().String(),
		ttl:       ttl,
	}
}

// Acquire reports false when another delivery already holds key.
func (g *Guard) Acquire(ctx context.Context, key string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "redis.Guard.Acquire")
	defer span.End()

	ok, err := g.client.rdb.SetNX(ctx, g.keyPrefix+key, g.owner, g.ttl).Result()
	if err != nil {
		return false, err
	}
	if !ok {
		g.client.logger.WithContext(ctx).Debugf("Ingest guard already held: %s", g.keyPrefix+key)
	}
	return ok, nil
}

// Release deletes key if this guard still owns it.
func (g *Guard) Release(ctx context.Context, key string) error {
	ctx, span := tracing.StartSpan(ctx, "redis.Guard.Release")
	defer span.End()

	result, err := releaseScript.Run(ctx, g.client.rdb, []string{g.keyPrefix + key}, g.owner).Int64()
	if err != nil {
		return err
	}
	if result == 0 {
		return ErrGuardNotHeld
	}
	return nil
}
