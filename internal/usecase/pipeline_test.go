package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"IgniteX/internal/buffer"
	"IgniteX/internal/domain/models"
	domrepo "IgniteX/internal/domain/repository"
	"IgniteX/internal/gate"
	"IgniteX/internal/ingress"
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

type staticRegimes struct{}

func (staticRegimes) CurrentRegime(context.Context) (models.Regime, error) {
	return models.Regime{State: models.RegimeTrending, Confidence: 0.9, DetectedAt: time.Now()}, nil
}

type staticWinRates struct{}

func (staticWinRates) WinRate(context.Context, string) (float64, error) {
	return 58, nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func newTestPipeline(t *testing.T) (*SignalPipeline, *buffer.Buffer) {
	t.Helper()
	th := gate.NewThresholdStore(gate.Thresholds{
		MinRawConfidence: 50,
		Quality:          60,
		MLProbability:    0.40,
		WinRate:          45,
	})
	chain := gate.NewChain(th, staticRegimes{}, staticWinRates{}, nil, nil, nopMetrics{}, testLogger(t))
	buf := buffer.New(10, nopMetrics{})
	ing := ingress.New(nopMetrics{})
	return NewSignalPipeline(ing, chain, buf, nopMetrics{}, testLogger(t)), buf
}

func raw(confidence, mlProb float64) *models.RawCandidate {
	return &models.RawCandidate{
		Symbol:         "ETHUSDT",
		Direction:      "SHORT",
		Confidence:     confidence,
		SourceStrategy: "momentum_v2",
		Features:       map[string]float64{gate.FeatureMLProbability: mlProb},
		EntryPrice:     3200,
		StopLoss:       3300,
	}
}

func TestSubmitBuffersPassedCandidate(t *testing.T) {
	p, buf := newTestPipeline(t)

	out, err := p.Submit(context.Background(), raw(82, 0.65))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !out.Passed {
		t.Fatalf("expected pass, rejected at %+v", out.RejectedAt())
	}
	if buf.Size() != 1 {
		t.Fatalf("expected buffered candidate, size %d", buf.Size())
	}
	top, _ := buf.Top()
	if top.FinalQualityScore != out.QualityScore {
		t.Fatalf("buffered score %v != outcome score %v", top.FinalQualityScore, out.QualityScore)
	}
}

func TestSubmitRejectedCandidateNotBuffered(t *testing.T) {
	p, buf := newTestPipeline(t)

	out, err := p.Submit(context.Background(), raw(82, 0.10))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if out.Passed {
		t.Fatalf("expected gate reject")
	}
	if buf.Size() != 0 {
		t.Fatalf("rejected candidate must not be buffered, size %d", buf.Size())
	}
}

func TestSubmitMalformedReturnsError(t *testing.T) {
	p, buf := newTestPipeline(t)

	bad := raw(82, 0.65)
	bad.Direction = "UP"
	if _, err := p.Submit(context.Background(), bad); !errors.Is(err, domrepo.ErrMalformedCandidate) {
		t.Fatalf("expected ErrMalformedCandidate, got %v", err)
	}
	if buf.Size() != 0 {
		t.Fatalf("malformed candidate must not be buffered, size %d", buf.Size())
	}
}
