package distribution

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"IgniteX/internal/buffer"
	"IgniteX/internal/domain/models"
	domrepo "IgniteX/internal/domain/repository"
	"IgniteX/pkg/logger"
)

// Engine selects buffered candidates for a tier's recipients, enforces
// quotas, persists the distributed rows and notifies subscribers.
//
// Consumption is exclusive: candidates are popped from the buffer under its
// lock, so concurrent releases for different tiers never hand the same
// candidate out twice, and recipients within one release cycle receive
// distinct candidates in rank order. A failed durable write re-admits the
// candidate, leaving it eligible for the next cycle.
type Engine struct {
	buffer   *buffer.Buffer
	quota    domrepo.QuotaRegistry
	tiers    domrepo.TierSource
	store    domrepo.SignalStore
	notifier domrepo.Notifier
	policies models.TierPolicies
	metrics  domrepo.Metrics
	log      *logger.Logger

	attempts int
	now      func() time.Time
	newID    func() string
}

// Option configures the engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDFunc overrides distributed-signal id generation.
func WithIDFunc(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// WithPersistAttempts sets the bounded retry count for durable writes.
func WithPersistAttempts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.attempts = n
		}
	}
}

// NewEngine creates a distribution engine.
func NewEngine(
	buf *buffer.Buffer,
	quota domrepo.QuotaRegistry,
	tiers domrepo.TierSource,
	store domrepo.SignalStore,
	notifier domrepo.Notifier,
	policies models.TierPolicies,
	metrics domrepo.Metrics,
	log *logger.Logger,
	opts ...Option,
) *Engine {
	e := &Engine{
		buffer:   buf,
		quota:    quota,
		tiers:    tiers,
		store:    store,
		notifier: notifier,
		policies: policies,
		metrics:  metrics,
		log:      log,
		attempts: 3,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Release performs one distribution pass for the tier. An empty buffer is a
// no-op, not an error. The caller (scheduler) serializes releases per tier.
func (e *Engine) Release(ctx context.Context, tier models.Tier) (*models.DistributionResult, error) {
	start := e.now()
	pol, ok := e.policies[tier]
	if !ok {
		return nil, fmt.Errorf("no policy for tier %s", tier)
	}

	res := &models.DistributionResult{Tier: tier, ReleasedAt: start}

	if e.buffer.Size() == 0 {
		res.BufferEmpty = true
		e.log.Info("release: buffer empty", logger.String("tier", string(tier)))
		return res, nil
	}

	recipients, err := e.tiers.Recipients(ctx, tier)
	if err != nil {
		e.metrics.RecordError("recipients_lookup")
		return res, fmt.Errorf("recipients for %s: %w", tier, err)
	}
	res.Recipients = len(recipients)

	for _, userID := range recipients {
		granted, err := e.quota.Consume(ctx, userID)
		if err != nil {
			e.metrics.RecordError("quota_consume")
			e.log.Warn("quota consume failed",
				logger.String("user_id", userID), logger.Error(err))
			continue
		}
		if !granted {
			res.SkippedQuota++
			e.metrics.RecordQuotaDenied(string(tier))
			continue
		}

		// pop only after the quota grant so a denied recipient never
		// touches the buffer; a concurrent release for another tier may
		// have drained it in the meantime
		top, ok := e.buffer.Take()
		if !ok {
			if rerr := e.quota.Refund(ctx, userID); rerr != nil {
				e.log.Error("quota refund failed",
					logger.String("user_id", userID), logger.Error(rerr))
			}
			res.BufferEmpty = res.Distributed == 0
			break
		}

		ds := e.buildSignal(&top, userID, tier, pol)
		if err := e.persist(ctx, ds); err != nil {
			// quota back, candidate back in the buffer for the next cycle
			e.buffer.Admit(top)
			if rerr := e.quota.Refund(ctx, userID); rerr != nil {
				e.log.Error("quota refund failed",
					logger.String("user_id", userID), logger.Error(rerr))
			}
			e.metrics.RecordError("persist")
			return res, fmt.Errorf("persist signal for %s: %w", userID, err)
		}

		res.Distributed++
		res.Signals = append(res.Signals, ds)
		e.metrics.RecordDistributed(string(tier))

		if e.notifier != nil {
			if err := e.notifier.NotifyDistributed(ctx, ds); err != nil {
				// delivery to live subscribers is best effort; the row is durable
				e.metrics.RecordError("notify")
				e.log.Warn("notify failed", logger.String("signal_id", ds.SignalID), logger.Error(err))
			}
		}
	}

	e.metrics.RecordLatency("release", time.Since(start).Seconds())
	e.log.Info("release complete",
		logger.String("tier", string(tier)),
		logger.Int("recipients", res.Recipients),
		logger.Int("distributed", res.Distributed),
		logger.Int("skipped_quota", res.SkippedQuota),
	)
	return res, nil
}

func (e *Engine) buildSignal(top *models.BufferedSignal, userID string, tier models.Tier, pol models.TierPolicy) *models.DistributedSignal {
	now := e.now()
	return &models.DistributedSignal{
		ID:           e.newID(),
		UserID:       userID,
		SignalID:     top.ID,
		Symbol:       top.Symbol,
		SignalType:   top.Direction,
		Confidence:   top.RawConfidence,
		QualityScore: top.FinalQualityScore,
		EntryPrice:   top.EntryPrice,
		TakeProfits:  top.TakeProfits,
		StopLoss:     top.StopLoss,
		Tier:         tier,
		CreatedAt:    now,
		ExpiresAt:    now.Add(pol.SignalTTL),
	}
}

// persist retries transient failures; (user_id, signal_id) dedups on the
// storage side, so a retried write never creates a second logical row.
func (e *Engine) persist(ctx context.Context, s *models.DistributedSignal) error {
	var err error
	for i := 1; i <= e.attempts; i++ {
		err = e.store.Insert(ctx, s)
		if err == nil {
			return nil
		}
		select {
		case <-time.After(time.Duration(i) * 50 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
