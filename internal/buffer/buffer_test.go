package buffer

import (
	"testing"
	"time"

	"IgniteX/internal/domain/models"
)

type nopMetrics struct{}

func (nopMetrics) RecordCandidate(string)          {}
func (nopMetrics) RecordMalformed()                {}
func (nopMetrics) RecordGateReject(string)         {}
func (nopMetrics) RecordBuffered()                 {}
func (nopMetrics) RecordBufferSize(int)            {}
func (nopMetrics) RecordDistributed(string)        {}
func (nopMetrics) RecordQuotaDenied(string)        {}
func (nopMetrics) RecordError(string)              {}
func (nopMetrics) RecordLatency(string, float64)   {}

func sig(id string, score float64, at time.Time) models.BufferedSignal {
	return models.BufferedSignal{
		SignalCandidate:   models.SignalCandidate{ID: id, Symbol: "BTCUSDT"},
		FinalQualityScore: score,
		BufferedAt:        at,
	}
}

func TestAdmitWithinCapacity(t *testing.T) {
	b := New(3, nopMetrics{})
	now := time.Now()

	res, ev := b.Admit(sig("a", 80, now))
	if res != Admitted || ev != nil {
		t.Fatalf("expected Admitted, got %v evicted=%v", res, ev)
	}
	if b.Size() != 1 {
		t.Fatalf("expected size 1, got %d", b.Size())
	}
}

func TestTopIsHighestScore(t *testing.T) {
	b := New(5, nopMetrics{})
	now := time.Now()
	b.Admit(sig("a", 63, now))
	b.Admit(sig("b", 91, now))
	b.Admit(sig("c", 77, now))

	top, ok := b.Top()
	if !ok || top.ID != "b" {
		t.Fatalf("expected top b, got %+v ok=%v", top, ok)
	}
}

func TestFullBufferEvictsWorst(t *testing.T) {
	b := New(2, nopMetrics{})
	now := time.Now()
	b.Admit(sig("low", 40, now))
	b.Admit(sig("high", 90, now))

	res, ev := b.Admit(sig("mid", 70, now))
	if res != AdmittedEvicted {
		t.Fatalf("expected AdmittedEvicted, got %v", res)
	}
	if ev == nil || ev.ID != "low" {
		t.Fatalf("expected low evicted, got %+v", ev)
	}
	if b.Size() != 2 {
		t.Fatalf("capacity invariant broken: size %d", b.Size())
	}
}

func TestFullBufferOutranked(t *testing.T) {
	b := New(2, nopMetrics{})
	now := time.Now()
	b.Admit(sig("a", 80, now))
	b.Admit(sig("b", 90, now))

	res, ev := b.Admit(sig("weak", 50, now))
	if res != Outranked || ev != nil {
		t.Fatalf("expected Outranked, got %v evicted=%v", res, ev)
	}
	if b.Size() != 2 {
		t.Fatalf("expected size 2, got %d", b.Size())
	}
	if _, ok := b.Top(); !ok {
		t.Fatalf("expected non-empty buffer")
	}
}

func TestDuplicateAdmit(t *testing.T) {
	b := New(5, nopMetrics{})
	now := time.Now()
	b.Admit(sig("a", 80, now))

	res, _ := b.Admit(sig("a", 95, now))
	if res != Duplicate {
		t.Fatalf("expected Duplicate, got %v", res)
	}
	if b.Size() != 1 {
		t.Fatalf("expected size 1, got %d", b.Size())
	}
}

func TestTieBreakEarlierFirst(t *testing.T) {
	b := New(5, nopMetrics{})
	now := time.Now()
	b.Admit(sig("late", 85, now.Add(time.Minute)))
	b.Admit(sig("early", 85, now))

	top := b.PeekTop(2)
	if len(top) != 2 {
		t.Fatalf("expected 2 signals, got %d", len(top))
	}
	if top[0].ID != "early" || top[1].ID != "late" {
		t.Fatalf("expected early before late, got %s, %s", top[0].ID, top[1].ID)
	}
}

func TestTakePopsInRankOrder(t *testing.T) {
	b := New(5, nopMetrics{})
	now := time.Now()
	b.Admit(sig("c", 63, now))
	b.Admit(sig("a", 91, now))
	b.Admit(sig("b", 77, now))

	for _, want := range []string{"a", "b", "c"} {
		got, ok := b.Take()
		if !ok || got.ID != want {
			t.Fatalf("expected take %s, got %+v ok=%v", want, got, ok)
		}
	}
	if _, ok := b.Take(); ok {
		t.Fatalf("expected empty buffer after draining")
	}
	if b.Size() != 0 {
		t.Fatalf("expected size 0, got %d", b.Size())
	}
}

func TestTakenSignalCanBeReadmitted(t *testing.T) {
	b := New(5, nopMetrics{})
	now := time.Now()
	b.Admit(sig("a", 91, now))

	got, ok := b.Take()
	if !ok {
		t.Fatalf("expected take to succeed")
	}
	res, _ := b.Admit(got)
	if res != Admitted {
		t.Fatalf("expected re-admission after take, got %v", res)
	}
	top, _ := b.Top()
	if top.ID != "a" || !top.BufferedAt.Equal(got.BufferedAt) {
		t.Fatalf("expected rank preserved on re-admit, got %+v", top)
	}
}

func TestRemove(t *testing.T) {
	b := New(5, nopMetrics{})
	now := time.Now()
	b.Admit(sig("a", 80, now))

	if !b.Remove("a") {
		t.Fatalf("expected removal of present signal")
	}
	if b.Remove("a") {
		t.Fatalf("expected second removal to report absent")
	}
	if b.Size() != 0 {
		t.Fatalf("expected empty buffer, got %d", b.Size())
	}
}

func TestEvictExpired(t *testing.T) {
	now := time.Now()
	b := New(5, nopMetrics{}, WithClock(func() time.Time { return now }))
	b.Admit(sig("stale", 90, now.Add(-7*time.Hour)))
	b.Admit(sig("fresh", 60, now.Add(-time.Minute)))

	n := b.EvictExpired(6 * time.Hour)
	if n != 1 {
		t.Fatalf("expected 1 evicted, got %d", n)
	}
	top, ok := b.Top()
	if !ok || top.ID != "fresh" {
		t.Fatalf("expected fresh to survive, got %+v", top)
	}
}

func TestPeekTopRankOrder(t *testing.T) {
	b := New(5, nopMetrics{})
	now := time.Now()
	b.Admit(sig("c", 63, now))
	b.Admit(sig("a", 91, now))
	b.Admit(sig("b", 77, now))

	top := b.PeekTop(3)
	want := []string{"a", "b", "c"}
	for i, id := range want {
		if top[i].ID != id {
			t.Fatalf("rank %d: expected %s, got %s", i, id, top[i].ID)
		}
	}
}
