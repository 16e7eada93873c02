package middleware

import (
	"context"
	"sync"
	"testing"
	"time"

	"IgniteX/internal/domain/models"
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

type countingProc struct {
	mu        sync.Mutex
	submitted int
}

func (p *countingProc) Submit(context.Context, *models.RawCandidate) (*models.GateOutcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.submitted++
	return &models.GateOutcome{Passed: true}, nil
}

func (p *countingProc) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.submitted
}

func raw(strategy string) *models.RawCandidate {
	return &models.RawCandidate{
		Symbol:         "BTCUSDT",
		Direction:      "LONG",
		Confidence:     70,
		SourceStrategy: strategy,
	}
}

func TestProcessWithinRateSubmitsInline(t *testing.T) {
	proc := &countingProc{}
	p := NewIngestPipeline(proc, nopMetrics{}, WithMaxRPS(100))

	out, err := p.Process(context.Background(), raw("momentum_v2"))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if out == nil || !out.Passed {
		t.Fatalf("expected inline outcome, got %+v", out)
	}
	if proc.count() != 1 {
		t.Fatalf("expected 1 submit, got %d", proc.count())
	}
}

func TestOverRateCandidatesQueuedAndDrained(t *testing.T) {
	proc := &countingProc{}
	// burst capacity equals the rate, so 4 rapid arrivals at 2 rps queue 2
	p := NewIngestPipeline(proc, nopMetrics{}, WithMaxRPS(2), WithBufferSize(10))

	ctx := context.Background()
	queued := 0
	for i := 0; i < 4; i++ {
		out, err := p.Process(ctx, raw("burst_strategy"))
		if err != nil {
			t.Fatalf("process %d: %v", i, err)
		}
		if out == nil {
			queued++
		}
	}
	if queued == 0 {
		t.Fatalf("expected burst to exceed the rate and queue candidates")
	}

	p.Start(ctx)
	defer p.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for proc.count() < 4 {
		if time.Now().After(deadline) {
			t.Fatalf("drain incomplete: %d of 4 submitted", proc.count())
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestFullQueueDropsCandidate(t *testing.T) {
	proc := &countingProc{}
	p := NewIngestPipeline(proc, nopMetrics{}, WithMaxRPS(1), WithBufferSize(1))

	ctx := context.Background()
	// first passes inline, second fills the queue, third overflows
	for i := 0; i < 3; i++ {
		if _, err := p.Process(ctx, raw("flood_strategy")); err != nil {
			t.Fatalf("process %d: %v", i, err)
		}
	}
	if len(p.bufCh) != 1 {
		t.Fatalf("expected queue capped at 1, got %d", len(p.bufCh))
	}
	if proc.count() != 1 {
		t.Fatalf("expected only the in-rate candidate submitted, got %d", proc.count())
	}
}
