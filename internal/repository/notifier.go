package repository

import (
	"context"

	"IgniteX/internal/domain/models"
	"IgniteX/internal/domain/repository"
	pkgkafka "IgniteX/pkg/kafka"
	"IgniteX/pkg/logger"
	"IgniteX/pkg/queue"
)

// KafkaSignalEvents publishes distributed-signal events to the events topic
// for downstream consumers (analytics, mobile push workers).
type KafkaSignalEvents struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaSignalEvents creates the Kafka notifier.
func NewKafkaSignalEvents(producer *pkgkafka.Producer, topic string) *KafkaSignalEvents {
	return &KafkaSignalEvents{producer: producer, topic: topic}
}

func (n *KafkaSignalEvents) NotifyDistributed(ctx context.Context, s *models.DistributedSignal) error {
	// keyed by user so one recipient's events stay ordered per partition
	return n.producer.Publish(ctx, n.topic, []byte(s.UserID), s)
}

var _ repository.Notifier = (*KafkaSignalEvents)(nil)

// FanoutNotifier forwards each event to every underlying notifier, keeping
// going past individual failures and returning the first error.
type FanoutNotifier struct {
	targets []repository.Notifier
}

// NewFanoutNotifier composes notifiers; nil entries are ignored.
func NewFanoutNotifier(targets ...repository.Notifier) *FanoutNotifier {
	filtered := make([]repository.Notifier, 0, len(targets))
	for _, t := range targets {
		if t != nil {
			filtered = append(filtered, t)
		}
	}
	return &FanoutNotifier{targets: filtered}
}

func (n *FanoutNotifier) NotifyDistributed(ctx context.Context, s *models.DistributedSignal) error {
	var first error
	for _, t := range n.targets {
		if err := t.NotifyDistributed(ctx, s); err != nil && first == nil {
			first = err
		}
	}
	return first
}

var _ repository.Notifier = (*FanoutNotifier)(nil)

// EventRedeliverType is the queue message type for deferred event publishes.
const EventRedeliverType = "signal.event.redeliver"

// SignalEventRedeliverJob re-publishes distributed-signal events that failed
// their first Kafka publish. Consumed from the Redis queue.
type SignalEventRedeliverJob struct {
	events *KafkaSignalEvents
}

// NewSignalEventRedeliverJob creates the redelivery job.
func NewSignalEventRedeliverJob(events *KafkaSignalEvents) *SignalEventRedeliverJob {
	return &SignalEventRedeliverJob{events: events}
}

func (j *SignalEventRedeliverJob) Name() string { return "signal_event_redeliver" }
func (j *SignalEventRedeliverJob) Type() string { return EventRedeliverType }

func (j *SignalEventRedeliverJob) Handle(ctx context.Context, payload interface{}) error {
	s, err := queue.ParsePayload[models.DistributedSignal](payload)
	if err != nil {
		return err
	}
	return j.events.NotifyDistributed(ctx, s)
}

var _ queue.Job = (*SignalEventRedeliverJob)(nil)

// QueueBackedNotifier tries the direct notifier first and parks the event on
// the Redis queue when the publish fails. Redelivery keeps the distribution
// path from blocking on a flaky broker.
type QueueBackedNotifier struct {
	direct repository.Notifier
	q      queue.QueueService
	log    *logger.Logger
}

// NewQueueBackedNotifier wraps direct with queue-based redelivery.
func NewQueueBackedNotifier(direct repository.Notifier, q queue.QueueService, log *logger.Logger) *QueueBackedNotifier {
	return &QueueBackedNotifier{direct: direct, q: q, log: log}
}

func (n *QueueBackedNotifier) NotifyDistributed(ctx context.Context, s *models.DistributedSignal) error {
	err := n.direct.NotifyDistributed(ctx, s)
	if err == nil {
		return nil
	}
	if n.q == nil {
		return err
	}
	if qerr := n.q.PublishMessage(ctx, EventRedeliverType, s); qerr != nil {
		n.log.Error("event redeliver enqueue failed",
			logger.String("signal_id", s.SignalID),
			logger.Error(qerr),
		)
		return err
	}
	n.log.Warn("event publish deferred to redeliver queue",
		logger.String("signal_id", s.SignalID),
		logger.Error(err),
	)
	return nil
}

var _ repository.Notifier = (*QueueBackedNotifier)(nil)
