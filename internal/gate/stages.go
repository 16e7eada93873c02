package gate

import (
	"context"
	"fmt"
	"strings"

	"IgniteX/internal/domain/models"
	domsvc "IgniteX/internal/domain/service"
)

// Gate is a single pass/reject quality filter stage. Gates receive prior
// verdicts but never mutate the candidate.
type Gate interface {
	Stage() models.GateStage
	Evaluate(ctx context.Context, c *models.SignalCandidate, prior []models.GateVerdict) models.GateVerdict
}

// FeatureMLProbability is the feature key detectors use to attach the model
// output probability (0-1).
const FeatureMLProbability = "ml_probability"

// --- Stage 1: pattern plausibility ---

type PlausibilityGate struct {
	thresholds       *ThresholdStore
	requiredFeatures []string
}

func NewPlausibilityGate(thresholds *ThresholdStore, requiredFeatures []string) *PlausibilityGate {
	return &PlausibilityGate{thresholds: thresholds, requiredFeatures: requiredFeatures}
}

func (g *PlausibilityGate) Stage() models.GateStage { return models.StagePlausibility }

func (g *PlausibilityGate) Evaluate(_ context.Context, c *models.SignalCandidate, _ []models.GateVerdict) models.GateVerdict {
	th := g.thresholds.Get()
	v := models.GateVerdict{Stage: g.Stage(), Score: c.RawConfidence}
	if c.RawConfidence < th.MinRawConfidence {
		v.Reason = fmt.Sprintf("raw confidence %.1f below floor %.1f", c.RawConfidence, th.MinRawConfidence)
		return v
	}
	for _, f := range g.requiredFeatures {
		if _, ok := c.Features[f]; !ok {
			v.Reason = "missing feature: " + f
			return v
		}
	}
	v.Passed = true
	return v
}

// --- Stage 2: quality scoring ---

// QualityGate computes a composite score from the raw confidence and
// weighted features, then compares against the quality threshold.
// Weighted features are expected on a 0-100 scale.
type QualityGate struct {
	thresholds *ThresholdStore
	weights    map[string]float64
}

func NewQualityGate(thresholds *ThresholdStore, weights map[string]float64) *QualityGate {
	return &QualityGate{thresholds: thresholds, weights: weights}
}

func (g *QualityGate) Stage() models.GateStage { return models.StageQuality }

func (g *QualityGate) Evaluate(_ context.Context, c *models.SignalCandidate, _ []models.GateVerdict) models.GateVerdict {
	th := g.thresholds.Get()
	score := g.composite(c)
	v := models.GateVerdict{Stage: g.Stage(), Score: score}
	if score < th.Quality {
		v.Reason = fmt.Sprintf("quality score %.1f below threshold %.1f", score, th.Quality)
		return v
	}
	v.Passed = true
	return v
}

func (g *QualityGate) composite(c *models.SignalCandidate) float64 {
	if len(g.weights) == 0 {
		return c.RawConfidence
	}
	var sum, wsum float64
	for name, w := range g.weights {
		val, ok := c.Features[name]
		if !ok || w <= 0 {
			continue
		}
		sum += w * clamp(val, 0, 100)
		wsum += w
	}
	if wsum == 0 {
		return c.RawConfidence
	}
	// raw confidence and feature composite carry equal weight
	return 0.5*c.RawConfidence + 0.5*(sum/wsum)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// --- Stage 3: regime filter ---

// RegimeGate rejects candidates whose strategy class contradicts the
// currently detected market regime. When the regime source is unavailable
// the gate fails open: availability is preferred over strictness, the
// final ML gate still applies.
type RegimeGate struct {
	regimes domsvc.RegimeSource
}

func NewRegimeGate(regimes domsvc.RegimeSource) *RegimeGate {
	return &RegimeGate{regimes: regimes}
}

func (g *RegimeGate) Stage() models.GateStage { return models.StageRegime }

func (g *RegimeGate) Evaluate(ctx context.Context, c *models.SignalCandidate, _ []models.GateVerdict) models.GateVerdict {
	v := models.GateVerdict{Stage: g.Stage(), Score: 100}
	regime, err := g.regimes.CurrentRegime(ctx)
	if err != nil {
		v.Passed = true
		v.Reason = "regime unavailable, fail open"
		return v
	}
	v.Score = regime.Confidence * 100
	class := strategyClass(c.SourceStrategy)
	switch {
	case regime.State == models.RegimeRangebound && class == classTrend:
		v.Reason = fmt.Sprintf("trend strategy %s during rangebound regime", c.SourceStrategy)
	case regime.State == models.RegimeTrending && class == classRange:
		v.Reason = fmt.Sprintf("range strategy %s during trending regime", c.SourceStrategy)
	default:
		v.Passed = true
	}
	return v
}

type strategyKind int

const (
	classAny strategyKind = iota
	classTrend
	classRange
)

func strategyClass(name string) strategyKind {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "breakout"), strings.Contains(n, "momentum"), strings.Contains(n, "trend"):
		return classTrend
	case strings.Contains(n, "meanrev"), strings.Contains(n, "reversion"), strings.Contains(n, "range"):
		return classRange
	}
	return classAny
}

// --- Stage 4: ML probability / strategy win rate ---

// MLWinRateGate is the final and strictest stage: the model probability and
// the strategy's historical win rate must both clear their thresholds.
type MLWinRateGate struct {
	thresholds *ThresholdStore
	winRates   domsvc.WinRateSource
}

func NewMLWinRateGate(thresholds *ThresholdStore, winRates domsvc.WinRateSource) *MLWinRateGate {
	return &MLWinRateGate{thresholds: thresholds, winRates: winRates}
}

func (g *MLWinRateGate) Stage() models.GateStage { return models.StageMLWinRate }

func (g *MLWinRateGate) Evaluate(ctx context.Context, c *models.SignalCandidate, _ []models.GateVerdict) models.GateVerdict {
	th := g.thresholds.Get()
	mlProb := c.Features[FeatureMLProbability]
	v := models.GateVerdict{Stage: g.Stage(), Score: mlProb}
	if mlProb < th.MLProbability {
		v.Reason = fmt.Sprintf("ml probability %.2f below threshold %.2f", mlProb, th.MLProbability)
		return v
	}
	winRate, err := g.winRates.WinRate(ctx, c.SourceStrategy)
	if err != nil {
		// no track record available counts as not meeting the bar
		v.Reason = fmt.Sprintf("win rate unavailable for %s: %v", c.SourceStrategy, err)
		return v
	}
	if winRate < th.WinRate {
		v.Reason = fmt.Sprintf("strategy %s win rate %.1f%% below threshold %.1f%%", c.SourceStrategy, winRate, th.WinRate)
		return v
	}
	v.Passed = true
	return v
}
