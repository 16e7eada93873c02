package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"IgniteX/internal/buffer"
	"IgniteX/internal/domain/models"
	domrepo "IgniteX/internal/domain/repository"
	"IgniteX/internal/quota"
	"IgniteX/pkg/logger"
)

// Releaser triggers one distribution pass for a tier.
type Releaser interface {
	Release(ctx context.Context, tier models.Tier) (*models.DistributionResult, error)
}

// Scheduler drives per-tier releases on a wall-clock cadence, independent of
// any client connection. The next drop time is derived from the timestamp of
// the last distributed signal (persisted state), so a restarted process
// neither double-fires nor skips a drop. After long downtime at most one
// catch-up release fires per tick instead of bursting missed intervals.
type Scheduler struct {
	tick     time.Duration
	maxAge   time.Duration // buffered-candidate staleness limit
	policies models.TierPolicies

	engine  Releaser
	store   domrepo.SignalStore
	buf     *buffer.Buffer
	metrics domrepo.Metrics
	log     *logger.Logger
	now     func() time.Time

	mu      sync.Mutex // lifecycle state
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	tiers map[models.Tier]*tierState
}

// tierState serializes releases for one tier: a forced drop and a
// timer-triggered release can never run concurrently.
type tierState struct {
	mu     sync.Mutex
	anchor time.Time // last release attempt, or persisted last-signal time
}

// Option configures the scheduler.
type Option func(*Scheduler)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithTick overrides the heartbeat interval.
func WithTick(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.tick = d
		}
	}
}

// New creates a scheduler covering every tier in policies.
func New(
	engine Releaser,
	store domrepo.SignalStore,
	buf *buffer.Buffer,
	policies models.TierPolicies,
	maxAge time.Duration,
	metrics domrepo.Metrics,
	log *logger.Logger,
	opts ...Option,
) *Scheduler {
	s := &Scheduler{
		tick:     time.Second,
		maxAge:   maxAge,
		policies: policies,
		engine:   engine,
		store:    store,
		buf:      buf,
		metrics:  metrics,
		log:      log,
		now:      time.Now,
		tiers:    make(map[models.Tier]*tierState, len(policies)),
	}
	for tier := range policies {
		s.tiers[tier] = &tierState{}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads per-tier anchors from the persisted last-signal timestamps and
// begins the tick loop. Starting an already running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	now := s.now()
	for tier, ts := range s.tiers {
		last, err := s.store.LastDistributedAt(ctx, tier)
		if err != nil {
			s.log.Warn("load last-signal timestamp failed",
				logger.String("tier", string(tier)), logger.Error(err))
			last = time.Time{}
		}
		ts.mu.Lock()
		if last.IsZero() {
			// no history: first drop one full interval after start
			ts.anchor = now
		} else {
			ts.anchor = last
		}
		ts.mu.Unlock()
	}

	go s.run(ctx)
	s.log.Info("scheduler started", logger.Duration("tick", s.tick))
	return nil
}

// Stop halts the tick loop and waits for it to exit. In-flight releases
// finish; persisted state keeps the next process honest.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	done := s.doneCh
	s.mu.Unlock()

	<-done
	s.log.Info("scheduler stopped")
}

// IsRunning reports whether the tick loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.TickOnce(ctx)
		}
	}
}

// TickOnce runs one heartbeat: evict stale candidates, then release every
// tier whose interval has elapsed. Idempotent between due times; exported
// for tests.
func (s *Scheduler) TickOnce(ctx context.Context) {
	if n := s.buf.EvictExpired(s.maxAge); n > 0 {
		s.log.Info("evicted stale candidates", logger.Int("count", n))
	}
	for tier := range s.tiers {
		s.releaseIfDue(ctx, tier)
	}
}

func (s *Scheduler) releaseIfDue(ctx context.Context, tier models.Tier) {
	ts := s.tiers[tier]
	pol := s.policies[tier]

	ts.mu.Lock()
	defer ts.mu.Unlock()

	now := s.now()
	if now.Before(ts.anchor.Add(pol.DropInterval)) {
		return
	}
	s.release(ctx, tier, ts)
}

// release runs one pass with ts.mu held. The anchor always advances to the
// attempt time: an empty buffer still opens a fresh window so a tier does
// not rapid-fire once signals finally arrive.
func (s *Scheduler) release(ctx context.Context, tier models.Tier, ts *tierState) {
	now := s.now()
	res, err := s.engine.Release(ctx, tier)
	ts.anchor = now
	if err != nil {
		s.metrics.RecordError("release")
		s.log.Error("release failed", logger.String("tier", string(tier)), logger.Error(err))
		return
	}
	if res.BufferEmpty {
		s.log.Debug("release skipped: buffer empty", logger.String("tier", string(tier)))
	}
}

// ForceDrop bypasses the timer and triggers an immediate release for the
// tier. Serialized against timer-triggered releases via the per-tier lock.
func (s *Scheduler) ForceDrop(ctx context.Context, tier models.Tier) (*models.DistributionResult, error) {
	ts, ok := s.tiers[tier]
	if !ok {
		return nil, fmt.Errorf("unknown tier: %s", tier)
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()

	now := s.now()
	res, err := s.engine.Release(ctx, tier)
	ts.anchor = now
	if err != nil {
		return nil, err
	}
	s.log.Info("forced drop", logger.String("tier", string(tier)), logger.Int("distributed", res.Distributed))
	return res, nil
}

// NextDropIn returns the time remaining until the tier's next drop window.
func (s *Scheduler) NextDropIn(tier models.Tier) time.Duration {
	ts, ok := s.tiers[tier]
	if !ok {
		return 0
	}
	ts.mu.Lock()
	anchor := ts.anchor
	ts.mu.Unlock()
	pol := s.policies[tier]
	d := anchor.Add(pol.DropInterval).Sub(s.now())
	if d < 0 {
		return 0
	}
	return d
}

// Stats returns the per-tier operational snapshot.
func (s *Scheduler) Stats(ctx context.Context) []models.TierStats {
	running := s.IsRunning()
	now := s.now()
	out := make([]models.TierStats, 0, len(models.AllTiers))
	for _, tier := range models.AllTiers {
		if _, ok := s.tiers[tier]; !ok {
			continue
		}
		drops, err := s.store.CountDistributedSince(ctx, tier, quota.PeriodStart(now))
		if err != nil {
			s.log.Warn("drops-today query failed", logger.String("tier", string(tier)), logger.Error(err))
		}
		out = append(out, models.TierStats{
			Tier:              tier,
			IsRunning:         running,
			BufferSize:        s.buf.Size(),
			NextDropInMinutes: s.NextDropIn(tier).Minutes(),
			DropsToday:        drops,
			TopSignals:        s.buf.PeekTop(3),
		})
	}
	return out
}
