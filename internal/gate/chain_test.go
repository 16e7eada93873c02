package gate

import (
	"context"
	"errors"
	"testing"
	"time"

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

type fakeRegimes struct {
	state string
	err   error
}

func (f fakeRegimes) CurrentRegime(context.Context) (models.Regime, error) {
	if f.err != nil {
		return models.Regime{}, f.err
	}
	return models.Regime{State: f.state, Confidence: 0.9, DetectedAt: time.Now()}, nil
}

type fakeWinRates struct {
	rates map[string]float64
	err   error
}

func (f fakeWinRates) WinRate(_ context.Context, strategy string) (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.rates[strategy], nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func defaultThresholds() Thresholds {
	return Thresholds{
		MinRawConfidence: 50,
		Quality:          60,
		MLProbability:    0.40,
		WinRate:          45,
	}
}

func candidate(confidence, mlProb float64, strategy string) *models.SignalCandidate {
	return &models.SignalCandidate{
		ID:             "cand-1",
		Symbol:         "BTCUSDT",
		Direction:      models.DirectionLong,
		RawConfidence:  confidence,
		SourceStrategy: strategy,
		DetectedAt:     time.Now(),
		Features: map[string]float64{
			"volume_profile":     80,
			"pattern_confluence": 75,
			FeatureMLProbability: mlProb,
		},
	}
}

func newTestChain(t *testing.T, th Thresholds, regimes fakeRegimes, winRates fakeWinRates) *Chain {
	t.Helper()
	return NewChain(
		NewThresholdStore(th),
		regimes,
		winRates,
		nil,
		map[string]float64{"volume_profile": 1, "pattern_confluence": 1},
		nopMetrics{},
		testLogger(t),
	)
}

func TestChainPassesQualifiedCandidate(t *testing.T) {
	c := newTestChain(t, defaultThresholds(),
		fakeRegimes{state: models.RegimeTrending},
		fakeWinRates{rates: map[string]float64{"momentum_v2": 58}},
	)

	out := c.Evaluate(context.Background(), candidate(82, 0.65, "momentum_v2"))
	if !out.Passed {
		t.Fatalf("expected pass, rejected at %+v", out.RejectedAt())
	}
	if len(out.Verdicts) != 4 {
		t.Fatalf("expected 4 verdicts, got %d", len(out.Verdicts))
	}
	if out.QualityScore <= 0 {
		t.Fatalf("expected composite quality score, got %v", out.QualityScore)
	}
	if out.MLProbability != 0.65 {
		t.Fatalf("expected ml probability 0.65, got %v", out.MLProbability)
	}
}

func TestChainShortCircuitsAtPlausibility(t *testing.T) {
	c := newTestChain(t, defaultThresholds(),
		fakeRegimes{state: models.RegimeTrending},
		fakeWinRates{rates: map[string]float64{"momentum_v2": 58}},
	)

	out := c.Evaluate(context.Background(), candidate(30, 0.65, "momentum_v2"))
	if out.Passed {
		t.Fatalf("expected reject")
	}
	if len(out.Verdicts) != 1 {
		t.Fatalf("expected short-circuit after stage 1, got %d verdicts", len(out.Verdicts))
	}
	rej := out.RejectedAt()
	if rej == nil || rej.Stage != models.StagePlausibility {
		t.Fatalf("expected plausibility reject, got %+v", rej)
	}
}

func TestQualityGateRejectsBelowThreshold(t *testing.T) {
	c := newTestChain(t, defaultThresholds(),
		fakeRegimes{state: models.RegimeTrending},
		fakeWinRates{rates: map[string]float64{"momentum_v2": 58}},
	)

	cand := candidate(55, 0.65, "momentum_v2")
	cand.Features["volume_profile"] = 20
	cand.Features["pattern_confluence"] = 20

	out := c.Evaluate(context.Background(), cand)
	rej := out.RejectedAt()
	if rej == nil || rej.Stage != models.StageQuality {
		t.Fatalf("expected quality reject, got %+v", rej)
	}
}

func TestRegimeGateBlocksTrendStrategyInRangebound(t *testing.T) {
	c := newTestChain(t, defaultThresholds(),
		fakeRegimes{state: models.RegimeRangebound},
		fakeWinRates{rates: map[string]float64{"breakout_v1": 58}},
	)

	out := c.Evaluate(context.Background(), candidate(82, 0.65, "breakout_v1"))
	rej := out.RejectedAt()
	if rej == nil || rej.Stage != models.StageRegime {
		t.Fatalf("expected regime reject, got %+v", rej)
	}
}

func TestRegimeGateAllowsRangeStrategyInRangebound(t *testing.T) {
	c := newTestChain(t, defaultThresholds(),
		fakeRegimes{state: models.RegimeRangebound},
		fakeWinRates{rates: map[string]float64{"meanrev_v3": 58}},
	)

	out := c.Evaluate(context.Background(), candidate(82, 0.65, "meanrev_v3"))
	if !out.Passed {
		t.Fatalf("expected pass, rejected at %+v", out.RejectedAt())
	}
}

func TestRegimeGateFailsOpenOnError(t *testing.T) {
	c := newTestChain(t, defaultThresholds(),
		fakeRegimes{err: errors.New("regime service down")},
		fakeWinRates{rates: map[string]float64{"breakout_v1": 58}},
	)

	out := c.Evaluate(context.Background(), candidate(82, 0.65, "breakout_v1"))
	if !out.Passed {
		t.Fatalf("expected fail-open pass, rejected at %+v", out.RejectedAt())
	}
}

func TestMLGateRejectsLowProbability(t *testing.T) {
	c := newTestChain(t, defaultThresholds(),
		fakeRegimes{state: models.RegimeTrending},
		fakeWinRates{rates: map[string]float64{"momentum_v2": 58}},
	)

	out := c.Evaluate(context.Background(), candidate(82, 0.30, "momentum_v2"))
	rej := out.RejectedAt()
	if rej == nil || rej.Stage != models.StageMLWinRate {
		t.Fatalf("expected ml_winrate reject, got %+v", rej)
	}
}

func TestMLGateFailsClosedWhenWinRateUnavailable(t *testing.T) {
	c := newTestChain(t, defaultThresholds(),
		fakeRegimes{state: models.RegimeTrending},
		fakeWinRates{err: errors.New("tracker down")},
	)

	out := c.Evaluate(context.Background(), candidate(82, 0.65, "momentum_v2"))
	rej := out.RejectedAt()
	if rej == nil || rej.Stage != models.StageMLWinRate {
		t.Fatalf("expected fail-closed reject, got %+v", rej)
	}
}

func TestThresholdUpdateTakesEffect(t *testing.T) {
	c := newTestChain(t, defaultThresholds(),
		fakeRegimes{state: models.RegimeTrending},
		fakeWinRates{rates: map[string]float64{"momentum_v2": 58}},
	)

	cand := candidate(82, 0.30, "momentum_v2")
	if out := c.Evaluate(context.Background(), cand); out.Passed {
		t.Fatalf("expected reject at ml threshold 0.40")
	}

	ml := 0.25
	next := c.SetThresholds(nil, &ml, nil)
	if next.MLProbability != 0.25 {
		t.Fatalf("expected updated threshold 0.25, got %v", next.MLProbability)
	}
	if next.Quality != 60 {
		t.Fatalf("expected untouched quality threshold, got %v", next.Quality)
	}

	if out := c.Evaluate(context.Background(), cand); !out.Passed {
		t.Fatalf("expected pass after lowering threshold, rejected at %+v", out.RejectedAt())
	}
}
