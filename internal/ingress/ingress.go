package ingress

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"IgniteX/internal/domain/models"
	domrepo "IgniteX/internal/domain/repository"
)

// Ingress normalizes raw detector output into canonical candidates.
// Structurally invalid input is surfaced as a typed rejection wrapping
// ErrMalformedCandidate so callers can count rejection rates; nothing is
// silently dropped.
type Ingress struct {
	validate *validator.Validate
	metrics  domrepo.Metrics
	now      func() time.Time
	newID    func() string
}

// Option configures Ingress.
type Option func(*Ingress)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(i *Ingress) { i.now = now }
}

// WithIDFunc overrides candidate id generation.
func WithIDFunc(fn func() string) Option {
	return func(i *Ingress) { i.newID = fn }
}

// New creates an ingress stage.
func New(metrics domrepo.Metrics, opts ...Option) *Ingress {
	i := &Ingress{
		validate: validator.New(),
		metrics:  metrics,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Normalize validates the raw candidate and assigns id and detection time.
func (i *Ingress) Normalize(raw *models.RawCandidate) (*models.SignalCandidate, error) {
	if raw == nil {
		i.metrics.RecordMalformed()
		return nil, fmt.Errorf("%w: nil candidate", domrepo.ErrMalformedCandidate)
	}
	if err := i.validate.Struct(raw); err != nil {
		i.metrics.RecordMalformed()
		return nil, fmt.Errorf("%w: %v", domrepo.ErrMalformedCandidate, err)
	}

	features := make(map[string]float64, len(raw.Features))
	for k, v := range raw.Features {
		features[k] = v
	}

	c := &models.SignalCandidate{
		ID:             i.newID(),
		Symbol:         raw.Symbol,
		Direction:      models.Direction(raw.Direction),
		RawConfidence:  raw.Confidence,
		SourceStrategy: raw.SourceStrategy,
		DetectedAt:     i.now(),
		Features:       features,
		EntryPrice:     raw.EntryPrice,
		TakeProfits:    append([]float64(nil), raw.TakeProfits...),
		StopLoss:       raw.StopLoss,
	}
	i.metrics.RecordCandidate(c.SourceStrategy)
	return c, nil
}
