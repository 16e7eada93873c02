package quota

import (
	"context"
	"sync"
	"testing"
	"time"

	"IgniteX/internal/domain/models"
)

type staticTiers struct {
	tier models.Tier
}

func (s staticTiers) TierOf(context.Context, string) (models.Tier, error) {
	return s.tier, nil
}

func (s staticTiers) Recipients(context.Context, models.Tier) ([]string, error) {
	return nil, nil
}

func testPolicies() models.TierPolicies {
	return models.TierPolicies{
		models.TierFree: {DropInterval: 8 * time.Hour, DailyQuota: 3, SignalTTL: 24 * time.Hour},
		models.TierPro:  {DropInterval: 96 * time.Minute, DailyQuota: 15, SignalTTL: 24 * time.Hour},
		models.TierMax:  {DropInterval: 48 * time.Minute, DailyQuota: 30, SignalTTL: 12 * time.Hour},
	}
}

func TestConsumeUpToLimit(t *testing.T) {
	r := NewMemoryRegistry(staticTiers{models.TierFree}, testPolicies())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := r.Consume(ctx, "u1")
		if err != nil {
			t.Fatalf("consume %d: %v", i, err)
		}
		if !ok {
			t.Fatalf("consume %d: expected grant", i)
		}
	}

	ok, err := r.Consume(ctx, "u1")
	if err != nil {
		t.Fatalf("consume over limit: %v", err)
	}
	if ok {
		t.Fatalf("expected denial at limit")
	}

	st, err := r.Status(ctx, "u1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.Used != 3 || st.Remaining != 0 {
		t.Fatalf("unexpected status: %+v", st)
	}
}

func TestRefundRestoresQuota(t *testing.T) {
	r := NewMemoryRegistry(staticTiers{models.TierFree}, testPolicies())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		r.Consume(ctx, "u1")
	}
	if err := r.Refund(ctx, "u1"); err != nil {
		t.Fatalf("refund: %v", err)
	}

	ok, err := r.Consume(ctx, "u1")
	if err != nil || !ok {
		t.Fatalf("expected grant after refund, ok=%v err=%v", ok, err)
	}
}

func TestRefundNeverGoesNegative(t *testing.T) {
	r := NewMemoryRegistry(staticTiers{models.TierFree}, testPolicies())
	ctx := context.Background()

	if err := r.Refund(ctx, "u1"); err != nil {
		t.Fatalf("refund: %v", err)
	}
	st, err := r.Status(ctx, "u1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.Used != 0 {
		t.Fatalf("expected used 0, got %d", st.Used)
	}
}

func TestPeriodRollover(t *testing.T) {
	now := time.Date(2025, 3, 10, 23, 50, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	r := NewMemoryRegistry(staticTiers{models.TierFree}, testPolicies(), WithMemoryClock(clock))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		r.Consume(ctx, "u1")
	}
	if ok, _ := r.Consume(ctx, "u1"); ok {
		t.Fatalf("expected denial before midnight")
	}

	mu.Lock()
	now = now.Add(20 * time.Minute) // crosses UTC midnight
	mu.Unlock()

	ok, err := r.Consume(ctx, "u1")
	if err != nil || !ok {
		t.Fatalf("expected fresh quota after rollover, ok=%v err=%v", ok, err)
	}
	st, _ := r.Status(ctx, "u1")
	if st.Used != 1 {
		t.Fatalf("expected used 1 in new period, got %d", st.Used)
	}
}

func TestConcurrentConsume(t *testing.T) {
	r := NewMemoryRegistry(staticTiers{models.TierMax}, testPolicies())
	ctx := context.Background()

	var wg sync.WaitGroup
	granted := make(chan bool, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := r.Consume(ctx, "u1")
			if err != nil {
				t.Errorf("consume: %v", err)
				return
			}
			granted <- ok
		}()
	}
	wg.Wait()
	close(granted)

	var n int
	for ok := range granted {
		if ok {
			n++
		}
	}
	if n != 30 {
		t.Fatalf("expected exactly 30 grants, got %d", n)
	}
}

func TestPeriodKey(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	ts := time.Date(2025, 3, 10, 22, 0, 0, 0, est) // 03:00Z next day
	if got := PeriodKey(ts); got != "20250311" {
		t.Fatalf("expected 20250311, got %s", got)
	}
}

func TestPeriodStart(t *testing.T) {
	ts := time.Date(2025, 3, 10, 17, 42, 9, 0, time.UTC)
	want := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	if got := PeriodStart(ts); !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
