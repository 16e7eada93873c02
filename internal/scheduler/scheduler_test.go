package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"IgniteX/internal/buffer"
	"IgniteX/internal/domain/models"
	"IgniteX/pkg/logger"
)

type nopMetrics struct{}

func (nopMetrics) RecordCandidate(string)        {}
func (nopMetrics) RecordMalformed()              {}
func (nopMetrics) RecordGateReject(string)       {}
func (nopMetrics) RecordBuffered()               {}
func (nopMetrics) RecordBufferSize(int)          {}
func (nopMetrics) RecordDistributed(string)      {}
func (nopMetrics) RecordQuotaDenied(string)      {}
func (nopMetrics) RecordError(string)            {}
func (nopMetrics) RecordLatency(string, float64) {}

type countingReleaser struct {
	mu       sync.Mutex
	releases map[models.Tier]int
}

func newCountingReleaser() *countingReleaser {
	return &countingReleaser{releases: make(map[models.Tier]int)}
}

func (r *countingReleaser) Release(_ context.Context, tier models.Tier) (*models.DistributionResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releases[tier]++
	return &models.DistributionResult{Tier: tier, ReleasedAt: time.Now()}, nil
}

func (r *countingReleaser) count(tier models.Tier) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.releases[tier]
}

type anchorStore struct {
	last map[models.Tier]time.Time
}

func (s *anchorStore) Init(context.Context) error { return nil }
func (s *anchorStore) Insert(context.Context, *models.DistributedSignal) error {
	return nil
}
func (s *anchorStore) LastDistributedAt(_ context.Context, tier models.Tier) (time.Time, error) {
	return s.last[tier], nil
}
func (s *anchorStore) CountDistributedSince(context.Context, models.Tier, time.Time) (int, error) {
	return 0, nil
}
func (s *anchorStore) ListByUser(context.Context, string, bool, time.Time, time.Time, int) ([]*models.DistributedSignal, error) {
	return nil, nil
}
func (s *anchorStore) Health(context.Context) error { return nil }
func (s *anchorStore) Close() error                 { return nil }

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func testPolicies() models.TierPolicies {
	return models.TierPolicies{
		models.TierFree: {DropInterval: 8 * time.Hour, DailyQuota: 3, SignalTTL: 24 * time.Hour},
		models.TierPro:  {DropInterval: 96 * time.Minute, DailyQuota: 15, SignalTTL: 24 * time.Hour},
		models.TierMax:  {DropInterval: 48 * time.Minute, DailyQuota: 30, SignalTTL: 12 * time.Hour},
	}
}

func newTestScheduler(t *testing.T, clock *fakeClock, rel Releaser, store *anchorStore) *Scheduler {
	t.Helper()
	buf := buffer.New(10, nopMetrics{})
	// large tick keeps the background loop quiet; tests drive TickOnce
	return New(rel, store, buf, testPolicies(), 6*time.Hour, nopMetrics{}, testLogger(t),
		WithClock(clock.Now),
		WithTick(time.Hour),
	)
}

func TestFirstDropWaitsFullIntervalWithoutHistory(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	rel := newCountingReleaser()
	s := newTestScheduler(t, clock, rel, &anchorStore{last: map[models.Tier]time.Time{}})

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()

	// just before the FREE interval elapses
	clock.Advance(8*time.Hour - time.Second)
	s.TickOnce(ctx)
	if n := rel.count(models.TierFree); n != 0 {
		t.Fatalf("expected no FREE release before interval, got %d", n)
	}

	clock.Advance(time.Second)
	s.TickOnce(ctx)
	if n := rel.count(models.TierFree); n != 1 {
		t.Fatalf("expected 1 FREE release at interval, got %d", n)
	}
}

func TestAnchorLoadedFromPersistedState(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: now}
	rel := newCountingReleaser()
	store := &anchorStore{last: map[models.Tier]time.Time{
		// PRO dropped 90m ago; interval is 96m, so 6m remain
		models.TierPro: now.Add(-90 * time.Minute),
	}}
	s := newTestScheduler(t, clock, rel, store)

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()

	s.TickOnce(ctx)
	if n := rel.count(models.TierPro); n != 0 {
		t.Fatalf("expected no PRO release 90m after last drop, got %d", n)
	}

	clock.Advance(6 * time.Minute)
	s.TickOnce(ctx)
	if n := rel.count(models.TierPro); n != 1 {
		t.Fatalf("expected PRO release at 96m, got %d", n)
	}
}

func TestSingleCatchUpAfterDowntime(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: now}
	rel := newCountingReleaser()
	store := &anchorStore{last: map[models.Tier]time.Time{
		// three full MAX intervals missed while the process was down
		models.TierMax: now.Add(-3 * 48 * time.Minute),
	}}
	s := newTestScheduler(t, clock, rel, store)

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()

	s.TickOnce(ctx)
	if n := rel.count(models.TierMax); n != 1 {
		t.Fatalf("expected exactly one catch-up release, got %d", n)
	}

	// window restarts from the catch-up, not from the stale anchor
	s.TickOnce(ctx)
	if n := rel.count(models.TierMax); n != 1 {
		t.Fatalf("expected no burst of missed releases, got %d", n)
	}

	clock.Advance(48 * time.Minute)
	s.TickOnce(ctx)
	if n := rel.count(models.TierMax); n != 2 {
		t.Fatalf("expected next release one interval later, got %d", n)
	}
}

func TestTickIdempotentBetweenDueTimes(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	rel := newCountingReleaser()
	s := newTestScheduler(t, clock, rel, &anchorStore{last: map[models.Tier]time.Time{}})

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()

	clock.Advance(48 * time.Minute)
	for i := 0; i < 5; i++ {
		s.TickOnce(ctx)
	}
	if n := rel.count(models.TierMax); n != 1 {
		t.Fatalf("expected 1 MAX release across repeated ticks, got %d", n)
	}
}

func TestForceDropResetsWindow(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	rel := newCountingReleaser()
	s := newTestScheduler(t, clock, rel, &anchorStore{last: map[models.Tier]time.Time{}})

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()

	clock.Advance(40 * time.Minute)
	res, err := s.ForceDrop(ctx, models.TierMax)
	if err != nil {
		t.Fatalf("force drop: %v", err)
	}
	if res.Tier != models.TierMax {
		t.Fatalf("unexpected result tier %s", res.Tier)
	}
	if n := rel.count(models.TierMax); n != 1 {
		t.Fatalf("expected forced release, got %d", n)
	}

	// 8 more minutes reach the original 48m mark, but the window restarted
	clock.Advance(8 * time.Minute)
	s.TickOnce(ctx)
	if n := rel.count(models.TierMax); n != 1 {
		t.Fatalf("expected no release inside the reset window, got %d", n)
	}

	clock.Advance(48 * time.Minute)
	s.TickOnce(ctx)
	if n := rel.count(models.TierMax); n != 2 {
		t.Fatalf("expected release one full interval after forced drop, got %d", n)
	}
}

type slowReleaser struct {
	mu        sync.Mutex
	delay     time.Duration
	active    int
	maxActive int
	total     int
}

func (r *slowReleaser) Release(_ context.Context, tier models.Tier) (*models.DistributionResult, error) {
	r.mu.Lock()
	r.active++
	if r.active > r.maxActive {
		r.maxActive = r.active
	}
	r.mu.Unlock()

	time.Sleep(r.delay)

	r.mu.Lock()
	r.active--
	r.total++
	r.mu.Unlock()
	return &models.DistributionResult{Tier: tier, ReleasedAt: time.Now()}, nil
}

func TestForceDropAndTimerReleaseNeverOverlap(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	rel := &slowReleaser{delay: 50 * time.Millisecond}
	s := newTestScheduler(t, clock, rel, &anchorStore{last: map[models.Tier]time.Time{}})

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()

	// MAX is due; drive the timer path and a manual drop at the same time
	clock.Advance(48 * time.Minute)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.TickOnce(ctx)
	}()
	go func() {
		defer wg.Done()
		if _, err := s.ForceDrop(ctx, models.TierMax); err != nil {
			t.Errorf("force drop: %v", err)
		}
	}()
	wg.Wait()

	rel.mu.Lock()
	maxActive, total := rel.maxActive, rel.total
	rel.mu.Unlock()
	if maxActive != 1 {
		t.Fatalf("releases overlapped: max concurrency %d", maxActive)
	}
	if total < 1 || total > 2 {
		t.Fatalf("expected 1 or 2 serialized releases, got %d", total)
	}
}

func TestForceDropUnknownTier(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	s := newTestScheduler(t, clock, newCountingReleaser(), &anchorStore{last: map[models.Tier]time.Time{}})

	if _, err := s.ForceDrop(context.Background(), models.Tier("GOLD")); err == nil {
		t.Fatalf("expected error for unknown tier")
	}
}

func TestNextDropIn(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	rel := newCountingReleaser()
	s := newTestScheduler(t, clock, rel, &anchorStore{last: map[models.Tier]time.Time{}})

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()

	if d := s.NextDropIn(models.TierMax); d != 48*time.Minute {
		t.Fatalf("expected 48m, got %v", d)
	}
	clock.Advance(20 * time.Minute)
	if d := s.NextDropIn(models.TierMax); d != 28*time.Minute {
		t.Fatalf("expected 28m, got %v", d)
	}
	clock.Advance(time.Hour)
	if d := s.NextDropIn(models.TierMax); d != 0 {
		t.Fatalf("expected overdue drop to report 0, got %v", d)
	}
}
