package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"mollie_bridge_echo/internal/apperr"
)

const (
	sessionKeyPrefix = "checkout:session:"
	lockKeyPrefix    = "checkout:lock:"
)

// Locker serialises work on a key across processes.
type Locker interface {
	// Acquire takes the lock or returns apperr.ErrLocked when it is held.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// SessionStore holds per-customer checkout values such as the selected issuer.
type SessionStore interface {
	GetValue(ctx context.Context, sessionID, field string) (string, error)
	SetValue(ctx context.Context, sessionID, field, value string) error
}

// releaseScript deletes the lock only if this holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisCache provides checkout sessions and locks backed by Redis
type RedisCache struct {
	client     *redis.Client
	sessionTTL time.Duration
}

// NewRedisCache creates a new Redis client
func NewRedisCache(redisURL string, sessionTTL time.Duration) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	log.Info().Msg("Redis connection established")
	return &RedisCache{client: client, sessionTTL: sessionTTL}, nil
}

// GetValue reads one field of a checkout session. A missing session or field yields "".
func (c *RedisCache) GetValue(ctx context.Context, sessionID, field string) (string, error) {
	val, err := c.client.HGet(ctx, sessionKeyPrefix+sessionID, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return val, err
}

// SetValue writes one field of a checkout session and refreshes its expiry.
func (c *RedisCache) SetValue(ctx context.Context, sessionID, field, value string) error {
	key := sessionKeyPrefix + sessionID
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key, field, value)
	pipe.Expire(ctx, key, c.sessionTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// Acquire takes a SETNX lock with a random token. The returned release func
// only deletes the key while the token still matches.
func (c *RedisCache) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	lockKey := lockKeyPrefix + key

	ok, err := c.client.SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, apperr.ErrLocked
	}

	return func() {
		// The request context may already be cancelled.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, c.client, []string{lockKey}, token).Err(); err != nil {
			log.Warn().Err(err).Str("key", lockKey).Msg("failed to release lock")
		}
	}, nil
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}
