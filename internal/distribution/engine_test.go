package distribution

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"IgniteX/internal/buffer"
	"IgniteX/internal/domain/models"
	"IgniteX/internal/quota"
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

type fakeTiers struct {
	tier       models.Tier
	recipients []string
}

func (f fakeTiers) TierOf(context.Context, string) (models.Tier, error) {
	return f.tier, nil
}

func (f fakeTiers) Recipients(context.Context, models.Tier) ([]string, error) {
	return f.recipients, nil
}

type fakeStore struct {
	inserted []*models.DistributedSignal
	failLeft int
}

func (f *fakeStore) Init(context.Context) error { return nil }

func (f *fakeStore) Insert(_ context.Context, s *models.DistributedSignal) error {
	if f.failLeft != 0 {
		if f.failLeft > 0 {
			f.failLeft--
		}
		return errors.New("clickhouse unavailable")
	}
	f.inserted = append(f.inserted, s)
	return nil
}

func (f *fakeStore) LastDistributedAt(context.Context, models.Tier) (time.Time, error) {
	return time.Time{}, nil
}

func (f *fakeStore) CountDistributedSince(context.Context, models.Tier, time.Time) (int, error) {
	return len(f.inserted), nil
}

func (f *fakeStore) ListByUser(context.Context, string, bool, time.Time, time.Time, int) ([]*models.DistributedSignal, error) {
	return nil, nil
}

func (f *fakeStore) Health(context.Context) error { return nil }
func (f *fakeStore) Close() error                 { return nil }

type recordingNotifier struct {
	notified []*models.DistributedSignal
}

func (r *recordingNotifier) NotifyDistributed(_ context.Context, s *models.DistributedSignal) error {
	r.notified = append(r.notified, s)
	return nil
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

func buffered(id string, score float64) models.BufferedSignal {
	return models.BufferedSignal{
		SignalCandidate: models.SignalCandidate{
			ID:            id,
			Symbol:        "BTCUSDT",
			Direction:     models.DirectionLong,
			RawConfidence: score,
		},
		FinalQualityScore: score,
		BufferedAt:        time.Now(),
	}
}

func newTestEngine(t *testing.T, buf *buffer.Buffer, tiers fakeTiers, store *fakeStore, notifier *recordingNotifier, opts ...Option) *Engine {
	t.Helper()
	q := quota.NewMemoryRegistry(tiers, testPolicies())
	return NewEngine(buf, q, tiers, store, notifier, testPolicies(), nopMetrics{}, testLogger(t), opts...)
}

func TestReleaseDistributesTopRanked(t *testing.T) {
	buf := buffer.New(10, nopMetrics{})
	buf.Admit(buffered("s91", 91))
	buf.Admit(buffered("s77", 77))
	buf.Admit(buffered("s63", 63))

	store := &fakeStore{}
	notifier := &recordingNotifier{}
	e := newTestEngine(t, buf, fakeTiers{tier: models.TierPro, recipients: []string{"u1"}}, store, notifier)

	res, err := e.Release(context.Background(), models.TierPro)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if res.Distributed != 1 {
		t.Fatalf("expected 1 distributed, got %d", res.Distributed)
	}
	if len(store.inserted) != 1 || store.inserted[0].SignalID != "s91" {
		t.Fatalf("expected s91 persisted, got %+v", store.inserted)
	}
	if buf.Size() != 2 {
		t.Fatalf("expected 2 remaining, got %d", buf.Size())
	}
	top, _ := buf.Top()
	if top.ID != "s77" {
		t.Fatalf("expected s77 next, got %s", top.ID)
	}
	if len(notifier.notified) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifier.notified))
	}
}

func TestReleaseEmptyBufferIsNoop(t *testing.T) {
	buf := buffer.New(10, nopMetrics{})
	store := &fakeStore{}
	e := newTestEngine(t, buf, fakeTiers{tier: models.TierPro, recipients: []string{"u1"}}, store, &recordingNotifier{})

	res, err := e.Release(context.Background(), models.TierPro)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if !res.BufferEmpty {
		t.Fatalf("expected BufferEmpty")
	}
	if len(store.inserted) != 0 {
		t.Fatalf("expected no inserts, got %d", len(store.inserted))
	}
}

func TestReleaseDistinctCandidatesPerRecipient(t *testing.T) {
	buf := buffer.New(10, nopMetrics{})
	buf.Admit(buffered("s91", 91))
	buf.Admit(buffered("s77", 77))

	store := &fakeStore{}
	e := newTestEngine(t, buf, fakeTiers{tier: models.TierPro, recipients: []string{"u1", "u2"}}, store, &recordingNotifier{})

	res, err := e.Release(context.Background(), models.TierPro)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if res.Distributed != 2 {
		t.Fatalf("expected 2 distributed, got %d", res.Distributed)
	}
	if store.inserted[0].SignalID == store.inserted[1].SignalID {
		t.Fatalf("recipients received the same candidate: %s", store.inserted[0].SignalID)
	}
	if store.inserted[0].SignalID != "s91" || store.inserted[1].SignalID != "s77" {
		t.Fatalf("expected rank order s91, s77; got %s, %s",
			store.inserted[0].SignalID, store.inserted[1].SignalID)
	}
}

func TestReleaseSkipsExhaustedQuota(t *testing.T) {
	buf := buffer.New(10, nopMetrics{})
	buf.Admit(buffered("s91", 91))

	tiers := fakeTiers{tier: models.TierFree, recipients: []string{"u1"}}
	store := &fakeStore{}
	q := quota.NewMemoryRegistry(tiers, testPolicies())
	e := NewEngine(buf, q, tiers, store, &recordingNotifier{}, testPolicies(), nopMetrics{}, testLogger(t))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if ok, _ := q.Consume(ctx, "u1"); !ok {
			t.Fatalf("setup consume %d denied", i)
		}
	}

	res, err := e.Release(ctx, models.TierFree)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if res.SkippedQuota != 1 || res.Distributed != 0 {
		t.Fatalf("expected quota skip, got %+v", res)
	}
	if buf.Size() != 1 {
		t.Fatalf("candidate should stay buffered, size %d", buf.Size())
	}
}

func TestPersistFailureKeepsCandidateAndRefundsQuota(t *testing.T) {
	buf := buffer.New(10, nopMetrics{})
	buf.Admit(buffered("s91", 91))

	tiers := fakeTiers{tier: models.TierPro, recipients: []string{"u1"}}
	store := &fakeStore{failLeft: -1} // every attempt fails
	q := quota.NewMemoryRegistry(tiers, testPolicies())
	e := NewEngine(buf, q, tiers, store, &recordingNotifier{}, testPolicies(), nopMetrics{}, testLogger(t),
		WithPersistAttempts(2))

	ctx := context.Background()
	if _, err := e.Release(ctx, models.TierPro); err == nil {
		t.Fatalf("expected persist error")
	}
	if buf.Size() != 1 {
		t.Fatalf("candidate must stay buffered after failed persist, size %d", buf.Size())
	}
	st, _ := q.Status(ctx, "u1")
	if st.Used != 0 {
		t.Fatalf("expected quota refunded, used %d", st.Used)
	}
}

func TestPersistRetriesTransientFailure(t *testing.T) {
	buf := buffer.New(10, nopMetrics{})
	buf.Admit(buffered("s91", 91))

	store := &fakeStore{failLeft: 1} // first attempt fails, second succeeds
	e := newTestEngine(t, buf, fakeTiers{tier: models.TierPro, recipients: []string{"u1"}}, store, &recordingNotifier{},
		WithPersistAttempts(3))

	res, err := e.Release(context.Background(), models.TierPro)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if res.Distributed != 1 || len(store.inserted) != 1 {
		t.Fatalf("expected successful retry, got %+v", res)
	}
}

type multiTiers struct {
	byUser map[string]models.Tier
	recips map[models.Tier][]string
}

func (m multiTiers) TierOf(_ context.Context, userID string) (models.Tier, error) {
	return m.byUser[userID], nil
}

func (m multiTiers) Recipients(_ context.Context, tier models.Tier) ([]string, error) {
	return m.recips[tier], nil
}

type slowStore struct {
	mu       sync.Mutex
	delay    time.Duration
	inserted []*models.DistributedSignal
}

func (s *slowStore) Init(context.Context) error { return nil }

func (s *slowStore) Insert(_ context.Context, ds *models.DistributedSignal) error {
	time.Sleep(s.delay)
	s.mu.Lock()
	s.inserted = append(s.inserted, ds)
	s.mu.Unlock()
	return nil
}

func (s *slowStore) LastDistributedAt(context.Context, models.Tier) (time.Time, error) {
	return time.Time{}, nil
}

func (s *slowStore) CountDistributedSince(context.Context, models.Tier, time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inserted), nil
}

func (s *slowStore) ListByUser(context.Context, string, bool, time.Time, time.Time, int) ([]*models.DistributedSignal, error) {
	return nil, nil
}

func (s *slowStore) Health(context.Context) error { return nil }
func (s *slowStore) Close() error                 { return nil }

func TestConcurrentCrossTierReleaseConsumesOnce(t *testing.T) {
	buf := buffer.New(10, nopMetrics{})
	buf.Admit(buffered("s91", 91))

	tiers := multiTiers{
		byUser: map[string]models.Tier{"free-u": models.TierFree, "pro-u": models.TierPro},
		recips: map[models.Tier][]string{
			models.TierFree: {"free-u"},
			models.TierPro:  {"pro-u"},
		},
	}
	store := &slowStore{delay: 50 * time.Millisecond}
	q := quota.NewMemoryRegistry(tiers, testPolicies())
	e := NewEngine(buf, q, tiers, store, &recordingNotifier{}, testPolicies(), nopMetrics{}, testLogger(t))

	var wg sync.WaitGroup
	for _, tier := range []models.Tier{models.TierFree, models.TierPro} {
		wg.Add(1)
		go func(tr models.Tier) {
			defer wg.Done()
			if _, err := e.Release(context.Background(), tr); err != nil {
				t.Errorf("release %s: %v", tr, err)
			}
		}(tier)
	}
	wg.Wait()

	store.mu.Lock()
	inserted := len(store.inserted)
	store.mu.Unlock()
	if inserted != 1 {
		t.Fatalf("candidate distributed %d times across tiers, want 1", inserted)
	}
	if buf.Size() != 0 {
		t.Fatalf("expected consumed candidate removed, size %d", buf.Size())
	}
}

func TestSignalTTLFollowsTierPolicy(t *testing.T) {
	buf := buffer.New(10, nopMetrics{})
	buf.Admit(buffered("s91", 91))

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{}
	e := newTestEngine(t, buf, fakeTiers{tier: models.TierMax, recipients: []string{"u1"}}, store, &recordingNotifier{},
		WithClock(func() time.Time { return now }))

	if _, err := e.Release(context.Background(), models.TierMax); err != nil {
		t.Fatalf("release: %v", err)
	}
	got := store.inserted[0]
	if want := now.Add(12 * time.Hour); !got.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, got.ExpiresAt)
	}
	if !got.Active(now.Add(11 * time.Hour)) {
		t.Fatalf("signal should be active before expiry")
	}
	if got.Active(now.Add(13 * time.Hour)) {
		t.Fatalf("signal should be inactive after expiry")
	}
}
