package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"IgniteX/internal/domain/models"
	domrepo "IgniteX/internal/domain/repository"
	"IgniteX/internal/service/ratelimit"
)

// Proc is the minimal downstream the pipeline needs (the gate funnel).
type Proc interface {
	Submit(ctx context.Context, raw *models.RawCandidate) (*models.GateOutcome, error)
}

// IngestPipeline sits between the candidate sources (Kafka, HTTP) and the
// gate funnel. It throttles noisy detectors per strategy: candidates over
// the allowed rate are queued and replayed at that rate by a background
// drain instead of being dropped outright.
type IngestPipeline struct {
	proc    Proc
	metrics domrepo.Metrics
	limiter *ratelimit.Limiter
	maxRPS  float64
	bufSize int
	bufCh   chan *models.RawCandidate
	stopCh  chan struct{}
	started bool
	mu      sync.Mutex
}

// PipelineOption configures the pipeline.
type PipelineOption func(*IngestPipeline)

// WithMaxRPS sets the max candidates per second per strategy.
func WithMaxRPS(n float64) PipelineOption {
	return func(p *IngestPipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the burst queue size.
func WithBufferSize(n int) PipelineOption {
	return func(p *IngestPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// NewIngestPipeline creates a new pipeline.
func NewIngestPipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *IngestPipeline {
	p := &IngestPipeline{
		proc:    proc,
		metrics: metrics,
		limiter: ratelimit.New(),
		maxRPS:  20,
		bufSize: 1000,
		stopCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.RawCandidate, p.bufSize)
	return p
}

// Start launches the background drain of queued candidates.
func (p *IngestPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		for {
			select {
			case <-p.stopCh:
				return
			case raw := <-p.bufCh:
				if raw == nil {
					continue
				}
				for !p.limiter.Allow(raw.SourceStrategy, p.maxRPS, p.maxRPS) {
					select {
					case <-p.stopCh:
						return
					case <-time.After(50 * time.Millisecond):
					}
				}
				if _, err := p.proc.Submit(ctx, raw); err != nil {
					p.metrics.RecordError("pipeline_flush")
				}
			}
		}
	}()
}

// Stop stops the background drain.
func (p *IngestPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process forwards a candidate downstream within the per-strategy rate.
// Over-rate candidates are queued for paced replay and yield a nil outcome;
// a full queue drops the candidate. Malformed-candidate errors from the
// inline path propagate to the caller.
func (p *IngestPipeline) Process(ctx context.Context, raw *models.RawCandidate) (*models.GateOutcome, error) {
	if raw == nil {
		return nil, fmt.Errorf("candidate nil")
	}
	if !p.limiter.Allow(raw.SourceStrategy, p.maxRPS, p.maxRPS) {
		select {
		case p.bufCh <- raw:
			p.metrics.RecordError("pipeline_throttle")
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return nil, nil
	}
	return p.proc.Submit(ctx, raw)
}
