package gate

import (
	"context"
	"time"

	"IgniteX/internal/domain/models"
	domrepo "IgniteX/internal/domain/repository"
	domsvc "IgniteX/internal/domain/service"
	"IgniteX/pkg/logger"
)

// Chain runs candidates through the fixed gate sequence, stopping at the
// first reject. Rejection is a normal outcome, not an error: the reason is
// kept on the verdict for metrics and tuning feedback only.
type Chain struct {
	gates      []Gate
	thresholds *ThresholdStore
	metrics    domrepo.Metrics
	log        *logger.Logger
}

// NewChain builds the production four-stage chain.
func NewChain(
	thresholds *ThresholdStore,
	regimes domsvc.RegimeSource,
	winRates domsvc.WinRateSource,
	requiredFeatures []string,
	featureWeights map[string]float64,
	metrics domrepo.Metrics,
	log *logger.Logger,
) *Chain {
	return &Chain{
		gates: []Gate{
			NewPlausibilityGate(thresholds, requiredFeatures),
			NewQualityGate(thresholds, featureWeights),
			NewRegimeGate(regimes),
			NewMLWinRateGate(thresholds, winRates),
		},
		thresholds: thresholds,
		metrics:    metrics,
		log:        log,
	}
}

// Thresholds returns the current runtime threshold snapshot.
func (c *Chain) Thresholds() Thresholds {
	return c.thresholds.Get()
}

// SetThresholds swaps in new values for the provided fields.
func (c *Chain) SetThresholds(quality, mlProbability, winRate *float64) Thresholds {
	next := c.thresholds.Update(quality, mlProbability, winRate)
	c.log.Info("gate thresholds updated",
		logger.Any("quality", next.Quality),
		logger.Any("ml_probability", next.MLProbability),
		logger.Any("win_rate", next.WinRate),
	)
	return next
}

// Evaluate runs the candidate through all stages in order, short-circuiting
// at the first reject.
func (c *Chain) Evaluate(ctx context.Context, cand *models.SignalCandidate) *models.GateOutcome {
	start := time.Now()
	out := &models.GateOutcome{Candidate: cand, Verdicts: make([]models.GateVerdict, 0, len(c.gates))}

	for _, g := range c.gates {
		v := g.Evaluate(ctx, cand, out.Verdicts)
		out.Verdicts = append(out.Verdicts, v)
		switch g.Stage() {
		case models.StageQuality:
			out.QualityScore = v.Score
		case models.StageMLWinRate:
			out.MLProbability = v.Score
		}
		if !v.Passed {
			c.metrics.RecordGateReject(v.Stage.String())
			c.log.Debug("candidate rejected",
				logger.String("candidate_id", cand.ID),
				logger.String("symbol", cand.Symbol),
				logger.String("stage", v.Stage.String()),
				logger.String("reason", v.Reason),
			)
			c.metrics.RecordLatency("gate_chain", time.Since(start).Seconds())
			return out
		}
	}

	out.Passed = true
	c.metrics.RecordLatency("gate_chain", time.Since(start).Seconds())
	return out
}
