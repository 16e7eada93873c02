package repository

import (
	"context"

	pkgkafka "IgniteX/pkg/kafka"
	"IgniteX/pkg/logger"
)

// KafkaLogSink publishes aggregated error logs to a Kafka topic. Plugged
// into the logger's collector so repeated errors ship as one batched event.
type KafkaLogSink struct {
	producer *pkgkafka.Producer
}

// NewKafkaLogSink creates the log sink.
func NewKafkaLogSink(producer *pkgkafka.Producer) *KafkaLogSink {
	return &KafkaLogSink{producer: producer}
}

func (s *KafkaLogSink) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return s.producer.Publish(ctx, topic, nil, payload)
}

var _ logger.Publisher = (*KafkaLogSink)(nil)
