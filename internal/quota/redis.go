package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"IgniteX/internal/domain/models"
	domrepo "IgniteX/internal/domain/repository"
)

// RedisRegistry is the production quota registry. One counter key per user
// per UTC day; the day suffix in the key gives lazy rollover for free and
// the TTL keeps stale counters from accumulating.
type RedisRegistry struct {
	client   *redis.Client
	tiers    domrepo.TierSource
	policies models.TierPolicies
	prefix   string
	now      func() time.Time
}

// RedisOption configures RedisRegistry.
type RedisOption func(*RedisRegistry)

// WithRedisClock overrides the time source.
func WithRedisClock(now func() time.Time) RedisOption {
	return func(r *RedisRegistry) { r.now = now }
}

// WithRedisPrefix sets the key prefix.
func WithRedisPrefix(prefix string) RedisOption {
	return func(r *RedisRegistry) { r.prefix = prefix }
}

// NewRedisRegistry creates a Redis-backed quota registry.
func NewRedisRegistry(client *redis.Client, tiers domrepo.TierSource, policies models.TierPolicies, opts ...RedisOption) *RedisRegistry {
	r := &RedisRegistry{
		client:   client,
		tiers:    tiers,
		policies: policies,
		prefix:   "ignitex",
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisRegistry) key(userID string) string {
	return fmt.Sprintf("%s:quota:%s:%s", r.prefix, userID, PeriodKey(r.now()))
}

func (r *RedisRegistry) limitOf(ctx context.Context, userID string) (models.Tier, int, error) {
	tier, err := r.tiers.TierOf(ctx, userID)
	if err != nil {
		return "", 0, fmt.Errorf("resolve tier: %w", err)
	}
	pol, ok := r.policies[tier]
	if !ok {
		return "", 0, fmt.Errorf("no policy for tier %s", tier)
	}
	return tier, pol.DailyQuota, nil
}

// Status reports the user's consumption within the current UTC day.
func (r *RedisRegistry) Status(ctx context.Context, userID string) (*models.QuotaStatus, error) {
	tier, limit, err := r.limitOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	used, err := r.client.Get(ctx, r.key(userID)).Int()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("quota get: %w", err)
	}
	return statusOf(userID, tier, limit, used), nil
}

// Consume atomically takes one unit. INCR past the limit is rolled back, so
// concurrent release attempts cannot push used beyond limit.
func (r *RedisRegistry) Consume(ctx context.Context, userID string) (bool, error) {
	_, limit, err := r.limitOf(ctx, userID)
	if err != nil {
		return false, err
	}
	key := r.key(userID)
	n, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("quota incr: %w", err)
	}
	if n == 1 {
		// 48h covers the whole period plus slack for status reads near midnight
		r.client.Expire(ctx, key, 48*time.Hour)
	}
	if int(n) > limit {
		r.client.Decr(ctx, key)
		return false, nil
	}
	return true, nil
}

// Refund returns one unit taken by Consume after a failed durable write.
func (r *RedisRegistry) Refund(ctx context.Context, userID string) error {
	key := r.key(userID)
	n, err := r.client.Decr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("quota decr: %w", err)
	}
	if n < 0 {
		// refund raced the period boundary; clamp back to zero
		r.client.Incr(ctx, key)
	}
	return nil
}

var _ domrepo.QuotaRegistry = (*RedisRegistry)(nil)
