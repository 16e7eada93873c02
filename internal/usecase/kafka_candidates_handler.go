package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"IgniteX/internal/domain/models"
	domrepo "IgniteX/internal/domain/repository"
	mid "IgniteX/internal/middleware"
	pkgkafka "IgniteX/pkg/kafka"
)

// KafkaCandidatesHandler consumes raw candidates from the detectors' topic
// and feeds them into the ingest pipeline.
type KafkaCandidatesHandler struct {
	topic   string
	pipe    *mid.IngestPipeline
	metrics domrepo.Metrics
}

func NewKafkaCandidatesHandler(topic string, pipe *mid.IngestPipeline, metrics domrepo.Metrics) *KafkaCandidatesHandler {
	return &KafkaCandidatesHandler{topic: topic, pipe: pipe, metrics: metrics}
}

func (h *KafkaCandidatesHandler) Topic() string { return h.topic }

func (h *KafkaCandidatesHandler) Handle(ctx context.Context, b []byte) error {
	var raw models.RawCandidate
	if err := json.Unmarshal(b, &raw); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}

	start := time.Now()
	_, err := h.pipe.Process(ctx, &raw)
	h.metrics.RecordLatency("candidate_ingest", time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, domrepo.ErrMalformedCandidate) {
			// counted by ingress; not retryable, do not DLQ-loop it
			return nil
		}
		h.metrics.RecordError("consumer_process")
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaCandidatesHandler)(nil)
