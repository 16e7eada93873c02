package quota

import (
	"context"
	"fmt"
	"sync"
	"time"

	"IgniteX/internal/domain/models"
	domrepo "IgniteX/internal/domain/repository"
)

// MemoryRegistry is an in-process quota registry for tests and single-node
// development. Same period semantics as the Redis registry.
type MemoryRegistry struct {
	mu       sync.Mutex
	counters map[string]*dayCounter
	tiers    domrepo.TierSource
	policies models.TierPolicies
	now      func() time.Time
}

type dayCounter struct {
	periodStart time.Time
	used        int
}

// MemoryOption configures MemoryRegistry.
type MemoryOption func(*MemoryRegistry)

// WithMemoryClock overrides the time source.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(r *MemoryRegistry) { r.now = now }
}

// NewMemoryRegistry creates an in-memory quota registry.
func NewMemoryRegistry(tiers domrepo.TierSource, policies models.TierPolicies, opts ...MemoryOption) *MemoryRegistry {
	r := &MemoryRegistry{
		counters: make(map[string]*dayCounter),
		tiers:    tiers,
		policies: policies,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// counterFor returns the user's counter for the current period, resetting
// lazily when the period boundary has been crossed.
func (r *MemoryRegistry) counterFor(userID string) *dayCounter {
	start := PeriodStart(r.now())
	c, ok := r.counters[userID]
	if !ok || c.periodStart.Before(start) {
		c = &dayCounter{periodStart: start}
		r.counters[userID] = c
	}
	return c
}

func (r *MemoryRegistry) limitOf(ctx context.Context, userID string) (models.Tier, int, error) {
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

func (r *MemoryRegistry) Status(ctx context.Context, userID string) (*models.QuotaStatus, error) {
	tier, limit, err := r.limitOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	used := r.counterFor(userID).used
	r.mu.Unlock()
	return statusOf(userID, tier, limit, used), nil
}

func (r *MemoryRegistry) Consume(ctx context.Context, userID string) (bool, error) {
	_, limit, err := r.limitOf(ctx, userID)
	if err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.counterFor(userID)
	if c.used >= limit {
		return false, nil
	}
	c.used++
	return true, nil
}

func (r *MemoryRegistry) Refund(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.counterFor(userID)
	if c.used > 0 {
		c.used--
	}
	return nil
}

var _ domrepo.QuotaRegistry = (*MemoryRegistry)(nil)
