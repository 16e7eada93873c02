package repository

import (
	"context"
	"errors"
	"time"

	"IgniteX/internal/domain/models"
)

// ErrMalformedCandidate is returned by ingress for structurally invalid input.
var ErrMalformedCandidate = errors.New("malformed candidate")

// SignalStore persists and queries distributed signal rows.
type SignalStore interface {
	Init(ctx context.Context) error // ensure tables, health checks
	Insert(ctx context.Context, s *models.DistributedSignal) error
	// LastDistributedAt returns the timestamp of the latest signal released
	// for the tier, or the zero time if none exists.
	LastDistributedAt(ctx context.Context, tier models.Tier) (time.Time, error)
	// CountDistributedSince counts distinct release drops for the tier since t.
	CountDistributedSince(ctx context.Context, tier models.Tier, since time.Time) (int, error)
	ListByUser(ctx context.Context, userID string, activeOnly bool, from, to time.Time, limit int) ([]*models.DistributedSignal, error)
	Health(ctx context.Context) error
	Close() error
}

// QuotaRegistry tracks per-user, per-day consumption. Consume must be a
// compare-and-increment, safe under concurrent release attempts.
type QuotaRegistry interface {
	Status(ctx context.Context, userID string) (*models.QuotaStatus, error)
	// Consume atomically takes one unit of quota. Returns false without
	// incrementing when the user is already at the limit.
	Consume(ctx context.Context, userID string) (bool, error)
	// Refund returns one unit taken by Consume, used when the paired
	// durable write fails.
	Refund(ctx context.Context, userID string) error
}

// TierSource is the read-only view of the subscription store.
type TierSource interface {
	TierOf(ctx context.Context, userID string) (models.Tier, error)
	Recipients(ctx context.Context, tier models.Tier) ([]string, error)
}

// Notifier pushes freshly distributed signals to subscribers.
type Notifier interface {
	NotifyDistributed(ctx context.Context, s *models.DistributedSignal) error
}

// Metrics records pipeline observability counters.
type Metrics interface {
	RecordCandidate(strategy string)
	RecordMalformed()
	RecordGateReject(stage string)
	RecordBuffered()
	RecordBufferSize(n int)
	RecordDistributed(tier string)
	RecordQuotaDenied(tier string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
