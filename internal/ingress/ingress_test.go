package ingress

import (
	"errors"
	"testing"
	"time"

	"IgniteX/internal/domain/models"
	domrepo "IgniteX/internal/domain/repository"
)

type countingMetrics struct {
	candidates int
	malformed  int
}

func (m *countingMetrics) RecordCandidate(string)        { m.candidates++ }
func (m *countingMetrics) RecordMalformed()              { m.malformed++ }
func (m *countingMetrics) RecordGateReject(string)       {}
func (m *countingMetrics) RecordBuffered()               {}
func (m *countingMetrics) RecordBufferSize(int)          {}
func (m *countingMetrics) RecordDistributed(string)      {}
func (m *countingMetrics) RecordQuotaDenied(string)      {}
func (m *countingMetrics) RecordError(string)            {}
func (m *countingMetrics) RecordLatency(string, float64) {}

func validRaw() *models.RawCandidate {
	return &models.RawCandidate{
		Symbol:         "BTCUSDT",
		Direction:      "LONG",
		Confidence:     72,
		SourceStrategy: "momentum_v2",
		Features:       map[string]float64{"volume_profile": 80},
		EntryPrice:     64250,
		TakeProfits:    []float64{65000, 66000},
		StopLoss:       63500,
	}
}

func TestNormalizeValidCandidate(t *testing.T) {
	m := &countingMetrics{}
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	i := New(m,
		WithClock(func() time.Time { return now }),
		WithIDFunc(func() string { return "cand-1" }),
	)

	c, err := i.Normalize(validRaw())
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if c.ID != "cand-1" {
		t.Fatalf("expected assigned id, got %q", c.ID)
	}
	if !c.DetectedAt.Equal(now) {
		t.Fatalf("expected detection time %v, got %v", now, c.DetectedAt)
	}
	if c.Direction != models.DirectionLong {
		t.Fatalf("expected LONG, got %s", c.Direction)
	}
	if m.candidates != 1 || m.malformed != 0 {
		t.Fatalf("unexpected metrics: %+v", m)
	}
}

func TestNormalizeCopiesFeatures(t *testing.T) {
	i := New(&countingMetrics{})
	raw := validRaw()

	c, err := i.Normalize(raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	raw.Features["volume_profile"] = 0
	raw.TakeProfits[0] = 0
	if c.Features["volume_profile"] != 80 {
		t.Fatalf("features aliased to raw input")
	}
	if c.TakeProfits[0] != 65000 {
		t.Fatalf("take profits aliased to raw input")
	}
}

func TestNormalizeRejectsMissingSymbol(t *testing.T) {
	m := &countingMetrics{}
	i := New(m)
	raw := validRaw()
	raw.Symbol = ""

	if _, err := i.Normalize(raw); !errors.Is(err, domrepo.ErrMalformedCandidate) {
		t.Fatalf("expected ErrMalformedCandidate, got %v", err)
	}
	if m.malformed != 1 {
		t.Fatalf("expected malformed count 1, got %d", m.malformed)
	}
}

func TestNormalizeRejectsBadDirection(t *testing.T) {
	i := New(&countingMetrics{})
	raw := validRaw()
	raw.Direction = "SIDEWAYS"

	if _, err := i.Normalize(raw); !errors.Is(err, domrepo.ErrMalformedCandidate) {
		t.Fatalf("expected ErrMalformedCandidate, got %v", err)
	}
}

func TestNormalizeRejectsConfidenceOutOfRange(t *testing.T) {
	i := New(&countingMetrics{})
	raw := validRaw()
	raw.Confidence = 140

	if _, err := i.Normalize(raw); !errors.Is(err, domrepo.ErrMalformedCandidate) {
		t.Fatalf("expected ErrMalformedCandidate, got %v", err)
	}
}

func TestNormalizeRejectsNil(t *testing.T) {
	i := New(&countingMetrics{})
	if _, err := i.Normalize(nil); !errors.Is(err, domrepo.ErrMalformedCandidate) {
		t.Fatalf("expected ErrMalformedCandidate, got %v", err)
	}
}
