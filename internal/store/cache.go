package store

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"application-board/internal/common/logger"
	"application-board/internal/common/metrics"
	"application-board/internal/models"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "applications:"

// CacheKey is the Redis key holding a user's serialized list.
func CacheKey(userID string) string {
	return cacheKeyPrefix + userID
}

// CachedRepository serves List from Redis and drops the owner's entry on every status write.
// Cache faults are logged and bypassed, never surfaced.
type CachedRepository struct {
	next   Repository
	redis  *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedRepository(next Repository, client *redis.Client, ttl time.Duration, log logger.Logger) *CachedRepository {
	return &CachedRepository{
		next:   next,
		redis:  client,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "list-cache"}),
	}
}

func (c *CachedRepository) List(ctx context.Context, userID string) ([]models.ApplicationRecord, error) {
	key := CacheKey(userID)

	cached, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var records []models.ApplicationRecord
		if jsonErr := json.Unmarshal(cached, &records); jsonErr == nil {
			metrics.ListCacheLookups.WithLabelValues("hit").Inc()
			return records, nil
		}
		c.logger.Warn("discarding corrupt cache entry", map[string]interface{}{"key": key})
		metrics.ListCacheLookups.WithLabelValues("error").Inc()
	case stderrors.Is(err, redis.Nil):
		metrics.ListCacheLookups.WithLabelValues("miss").Inc()
	default:
		c.logger.Warn("cache read failed", map[string]interface{}{"key": key, "error": err})
		metrics.ListCacheLookups.WithLabelValues("error").Inc()
	}

	records, err := c.next.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(records)
	if err == nil {
		if err := c.redis.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.logger.Warn("cache write failed", map[string]interface{}{"key": key, "error": err})
		}
	}
	return records, nil
}

func (c *CachedRepository) UpdateStatus(ctx context.Context, applicationID string, status models.Status) (*models.ApplicationRecord, error) {
	rec, err := c.next.UpdateStatus(ctx, applicationID, status)
	if err != nil {
		return nil, err
	}
	if err := c.redis.Del(ctx, CacheKey(rec.UserID)).Err(); err != nil {
		c.logger.Warn("cache invalidation failed", map[string]interface{}{
			"userId": rec.UserID,
			"error":  err,
		})
	}
	return rec, nil
}
