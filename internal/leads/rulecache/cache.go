// Package rulecache caches active automation rule snapshots per tenant in
// redis. The scan worker reads through the cache at the start of each tenant
// scan; rule edits invalidate the tenant's key via the event bus. The engine
// therefore always evaluates against an immutable snapshot, never a cache
// entry mutating mid-scan.
package rulecache

import (
	"context"
	"encoding/json"
	"time"

	"admissions_backend/internal/leads/domain"
	"admissions_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Source loads rule snapshots from storage on cache miss.
type Source interface {
	ActiveRulesForSchool(ctx context.Context, schoolID uuid.UUID) ([]domain.Rule, error)
}

type Cache struct {
	client *redis.Client
	source Source
	ttl    time.Duration
	log    *logger.Logger
}

const keyPrefix = "leads:rules:active:"

// globalKeySuffix marks the invalidation key used when a global rule changes.
const globalKeySuffix = "*"

func New(client *redis.Client, source Source, ttl time.Duration, log *logger.Logger) *Cache {
	return &Cache{
		client: client,
		source: source,
		ttl:    ttl,
		log:    log,
	}
}

// ActiveRulesForSchool returns the tenant's active rule snapshot, reading
// through to the source on miss. Redis failures degrade to a direct source
// read; the scan must not stall on cache trouble.
func (c *Cache) ActiveRulesForSchool(ctx context.Context, schoolID uuid.UUID) ([]domain.Rule, error) {
	key := keyPrefix + schoolID.String()

	if c.client != nil {
		raw, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			var rules []domain.Rule
			if jsonErr := json.Unmarshal(raw, &rules); jsonErr == nil {
				return rules, nil
			}
			// Corrupt entry; fall through to a fresh load.
			_ = c.client.Del(ctx, key).Err()
		} else if err != redis.Nil && c.log != nil {
			c.log.Warn("rule cache read failed", "error", err, "school_id", schoolID.String())
		}
	}

	rules, err := c.source.ActiveRulesForSchool(ctx, schoolID)
	if err != nil {
		return nil, err
	}

	if c.client != nil {
		if raw, err := json.Marshal(rules); err == nil {
			if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil && c.log != nil {
				c.log.Warn("rule cache write failed", "error", err, "school_id", schoolID.String())
			}
		}
	}

	return rules, nil
}

// Invalidate drops the cached snapshot for one tenant. A nil schoolID means
// a global rule changed: every tenant snapshot contains global rules, so all
// keys under the prefix are dropped.
func (c *Cache) Invalidate(ctx context.Context, schoolID *uuid.UUID) error {
	if c.client == nil {
		return nil
	}

	if schoolID != nil {
		return c.client.Del(ctx, keyPrefix+schoolID.String()).Err()
	}

	iter := c.client.Scan(ctx, 0, keyPrefix+globalKeySuffix, 0).Iterator()
	keys := make([]string, 0)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
