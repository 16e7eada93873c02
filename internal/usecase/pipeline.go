package usecase

import (
	"context"
	"time"

	"IgniteX/internal/buffer"
	"IgniteX/internal/domain/models"
	domrepo "IgniteX/internal/domain/repository"
	"IgniteX/internal/gate"
	"IgniteX/internal/ingress"
	"IgniteX/pkg/logger"
)

// SignalPipeline runs the ingest funnel: normalize, gate, buffer.
// Gate rejects and buffer outranking are normal outcomes carried in the
// returned GateOutcome; only malformed input yields an error.
type SignalPipeline struct {
	ingress *ingress.Ingress
	chain   *gate.Chain
	buf     *buffer.Buffer
	metrics domrepo.Metrics
	log     *logger.Logger
	now     func() time.Time
}

// NewSignalPipeline wires the in-memory funnel stages.
func NewSignalPipeline(
	ing *ingress.Ingress,
	chain *gate.Chain,
	buf *buffer.Buffer,
	metrics domrepo.Metrics,
	log *logger.Logger,
) *SignalPipeline {
	return &SignalPipeline{
		ingress: ing,
		chain:   chain,
		buf:     buf,
		metrics: metrics,
		log:     log,
		now:     time.Now,
	}
}

// Submit pushes one raw candidate through the funnel.
func (p *SignalPipeline) Submit(ctx context.Context, raw *models.RawCandidate) (*models.GateOutcome, error) {
	cand, err := p.ingress.Normalize(raw)
	if err != nil {
		return nil, err
	}

	out := p.chain.Evaluate(ctx, cand)
	if !out.Passed {
		return out, nil
	}

	sig := models.BufferedSignal{
		SignalCandidate:   *cand,
		FinalQualityScore: out.QualityScore,
		MLProbability:     out.MLProbability,
		BufferedAt:        p.now(),
	}
	res, evicted := p.buf.Admit(sig)
	switch res {
	case buffer.Outranked:
		p.log.Debug("candidate outranked at buffer",
			logger.String("candidate_id", cand.ID),
			logger.String("symbol", cand.Symbol),
		)
	case buffer.AdmittedEvicted:
		p.log.Debug("buffer eviction on admit",
			logger.String("admitted", cand.ID),
			logger.String("evicted", evicted.ID),
		)
	}
	return out, nil
}

// Chain exposes the gate chain for the operational threshold surface.
func (p *SignalPipeline) Chain() *gate.Chain { return p.chain }
