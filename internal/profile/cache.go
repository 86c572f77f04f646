package profile

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shinyyama/rental-backend/internal/inbox"
	"github.com/shinyyama/rental-backend/internal/logging"
	"go.uber.org/zap"
)

const keyPrefix = "profile:"

var ErrMiss = errors.New("cache: miss")

// Cache is a string key/value store with expiry.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

type RedisCache struct {
	client *redis.Client
}

var _ Cache = (*RedisCache)(nil)

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (r *RedisCache) Get(ctx context.Context, key string) (string, error) {
	res, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	if err != nil {
		return "", err
	}
	return res, nil
}

func (r *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// CachedResolver memoizes successful lookups. Failures are never cached so
// a placeholder is not pinned for the whole TTL.
type CachedResolver struct {
	next   inbox.ProfileLookup
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

var _ inbox.ProfileLookup = (*CachedResolver)(nil)

func NewCachedResolver(next inbox.ProfileLookup, cache Cache, ttl time.Duration, logger *zap.Logger) *CachedResolver {
	return &CachedResolver{next: next, cache: cache, ttl: ttl, logger: logging.OrNop(logger)}
}

type cachedProfile struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl"`
}

func (r *CachedResolver) Lookup(ctx context.Context, uid string) (inbox.Profile, error) {
	key := keyPrefix + uid
	raw, err := r.cache.Get(ctx, key)
	switch {
	case err == nil:
		var cp cachedProfile
		if jerr := json.Unmarshal([]byte(raw), &cp); jerr == nil {
			return inbox.Profile{UID: cp.UID, DisplayName: cp.DisplayName, AvatarURL: cp.AvatarURL}, nil
		}
		r.logger.Debug("discarding corrupt profile cache entry", zap.String("uid", uid))
	case !errors.Is(err, ErrMiss):
		r.logger.Warn("profile cache read failed", zap.String("uid", uid), zap.Error(err))
	}

	p, err := r.next.Lookup(ctx, uid)
	if err != nil {
		return inbox.Profile{}, err
	}
	data, err := json.Marshal(cachedProfile{UID: p.UID, DisplayName: p.DisplayName, AvatarURL: p.AvatarURL})
	if err == nil {
		if err := r.cache.Set(ctx, key, string(data), r.ttl); err != nil {
			r.logger.Warn("profile cache write failed", zap.String("uid", uid), zap.Error(err))
		}
	}
	return p, nil
}
