package di

import (
	"context"
	"fmt"
	"time"

	"IgniteX/internal/buffer"
	"IgniteX/internal/distribution"
	"IgniteX/internal/domain/models"
	domrepo "IgniteX/internal/domain/repository"
	domsvc "IgniteX/internal/domain/service"
	"IgniteX/internal/gate"
	"IgniteX/internal/handler/api"
	"IgniteX/internal/hub"
	"IgniteX/internal/ingress"
	mid "IgniteX/internal/middleware"
	"IgniteX/internal/quota"
	internalrepo "IgniteX/internal/repository"
	"IgniteX/internal/scheduler"
	"IgniteX/internal/services/collab"
	"IgniteX/internal/usecase"
	"IgniteX/pkg/cache"
	pkgch "IgniteX/pkg/clickhouse"
	"IgniteX/pkg/config"
	xhttp "IgniteX/pkg/http"
	pkgkafka "IgniteX/pkg/kafka"
	"IgniteX/pkg/logger"
	"IgniteX/pkg/metrics"
	"IgniteX/pkg/queue"
	"IgniteX/pkg/server"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client and initializes the
// signal schema. user_signals is a ReplacingMergeTree keyed on
// (user_id, signal_id) so retried inserts of the same delivery collapse to
// one row.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db := cfg.ClickHouse.Database
	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + db,
		`CREATE TABLE IF NOT EXISTS ` + db + `.user_signals (
			id String,
			user_id String,
			signal_id String,
			symbol String,
			signal_type LowCardinality(String),
			confidence Float64,
			quality_score Float64,
			entry_price Float64,
			take_profits Array(Float64),
			stop_loss Float64,
			tier LowCardinality(String),
			created_at DateTime64(3),
			expires_at DateTime64(3),
			viewed UInt8,
			clicked UInt8
		) ENGINE=ReplacingMergeTree ORDER BY (user_id, signal_id)`,
	}); err != nil {
		_ = client.Close() // cannot log here (DI layer no logger); propagate error
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideSignalStore creates the durable ClickHouse signal store.
func ProvideSignalStore(chClient *pkgch.Client, cfg *config.Config) domrepo.SignalStore {
	return internalrepo.NewClickHouseSignalStore(chClient.DB(), cfg.ClickHouse.Database+".user_signals")
}

// ProvideRedisCache creates the shared Redis cache client.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideLayeredCache wraps the Redis cache with an in-process L1.
func ProvideLayeredCache(rc *cache.RedisCache) cache.Service {
	return cache.NewLayeredCache(rc)
}

// ProvideTierPolicies converts the YAML tier table into domain policies.
func ProvideTierPolicies(cfg *config.Config) (models.TierPolicies, error) {
	policies := make(models.TierPolicies, len(cfg.Tiers))
	for name, t := range cfg.Tiers {
		tier, err := models.ParseTier(name)
		if err != nil {
			return nil, err
		}
		policies[tier] = models.TierPolicy{
			DropInterval: t.DropInterval,
			DailyQuota:   t.DailyQuota,
			SignalTTL:    t.SignalTTL,
		}
	}
	if err := policies.Validate(); err != nil {
		return nil, fmt.Errorf("tier policies: %w", err)
	}
	return policies, nil
}

// ProvideTierSource creates the Redis-backed subscription lookup.
func ProvideTierSource(rc *cache.RedisCache, cfg *config.Config) domrepo.TierSource {
	return internalrepo.NewRedisTierSource(rc.Client(), cfg.Redis.Prefix)
}

// ProvideQuotaRegistry creates the Redis-backed quota counters.
func ProvideQuotaRegistry(rc *cache.RedisCache, tiers domrepo.TierSource, policies models.TierPolicies, cfg *config.Config) domrepo.QuotaRegistry {
	return quota.NewRedisRegistry(rc.Client(), tiers, policies,
		quota.WithRedisPrefix(cfg.Redis.Prefix),
	)
}

// ProvideThresholdStore seeds the runtime gate thresholds from config.
func ProvideThresholdStore(cfg *config.Config) *gate.ThresholdStore {
	return gate.NewThresholdStore(gate.Thresholds{
		MinRawConfidence: cfg.Pipeline.Gates.MinRawConfidence,
		Quality:          cfg.Pipeline.Gates.Quality,
		MLProbability:    cfg.Pipeline.Gates.MLProbability,
		WinRate:          cfg.Pipeline.Gates.WinRate,
	})
}

// ProvideRegimeSource creates the HTTP regime detector client.
func ProvideRegimeSource(cfg *config.Config) domsvc.RegimeSource {
	return collab.NewHTTPRegimeDetector(
		cfg.Collaborators.RegimeURL,
		cfg.Collaborators.Timeout,
		cfg.Collaborators.CacheTTL.Regime,
	)
}

// ProvideWinRateSource creates the HTTP performance tracker client.
func ProvideWinRateSource(cfg *config.Config, c cache.Service) domsvc.WinRateSource {
	return collab.NewHTTPPerformanceTracker(
		cfg.Collaborators.PerformanceURL,
		cfg.Collaborators.Timeout,
		cfg.Collaborators.CacheTTL.WinRate,
		c,
	)
}

// ProvideGateChain builds the four-stage quality gate chain.
func ProvideGateChain(
	thresholds *gate.ThresholdStore,
	regimes domsvc.RegimeSource,
	winRates domsvc.WinRateSource,
	m domrepo.Metrics,
	l *logger.Logger,
	cfg *config.Config,
) *gate.Chain {
	return gate.NewChain(
		thresholds,
		regimes,
		winRates,
		cfg.Pipeline.Gates.RequiredFeatures,
		cfg.Pipeline.Gates.FeatureWeights,
		m,
		l,
	)
}

// ProvideBuffer creates the rank-ordered candidate buffer.
func ProvideBuffer(cfg *config.Config, m domrepo.Metrics) *buffer.Buffer {
	return buffer.New(cfg.Pipeline.BufferCapacity, m)
}

// ProvideIngress creates the candidate validation stage.
func ProvideIngress(m domrepo.Metrics) *ingress.Ingress {
	return ingress.New(m)
}

// ProvideSignalPipeline wires ingress, gates and buffer into the funnel.
func ProvideSignalPipeline(
	ing *ingress.Ingress,
	chain *gate.Chain,
	buf *buffer.Buffer,
	m domrepo.Metrics,
	l *logger.Logger,
) *usecase.SignalPipeline {
	return usecase.NewSignalPipeline(ing, chain, buf, m, l)
}

// ProvideIngestPipeline wraps the funnel with throttling and retry buffering.
func ProvideIngestPipeline(pipe *usecase.SignalPipeline, m domrepo.Metrics, cfg *config.Config) *mid.IngestPipeline {
	return mid.NewIngestPipeline(pipe, m,
		mid.WithMaxRPS(cfg.Pipeline.MaxRPS),
		mid.WithBufferSize(cfg.Pipeline.IngestBuffer),
	)
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideCandidatesHandler registers the handler for the candidates topic.
func ProvideCandidatesHandler(ingest *mid.IngestPipeline, m domrepo.Metrics, cfg *config.Config) pkgkafka.MessageHandler {
	return usecase.NewKafkaCandidatesHandler(cfg.Kafka.CandidatesTopic, ingest, m)
}

// ProvideHub creates the websocket fan-out hub.
func ProvideHub(l *logger.Logger) *hub.Hub {
	return hub.New(l)
}

// ProvideSignalEvents creates the Kafka events-topic notifier.
func ProvideSignalEvents(producer *pkgkafka.Producer, cfg *config.Config) *internalrepo.KafkaSignalEvents {
	return internalrepo.NewKafkaSignalEvents(producer, cfg.Kafka.EventsTopic)
}

// ProvideRedisQueue creates the Redis-backed redelivery queue with the
// signal-event job registered.
func ProvideRedisQueue(l *logger.Logger, rc *cache.RedisCache, events *internalrepo.KafkaSignalEvents, cfg *config.Config) *queue.RedisQueue {
	qcfg := &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		QueueSize:  cfg.Queue.Size,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}
	q := queue.NewRedisQueue(l, qcfg, rc.Client(), queue.ModeProducerConsumer,
		queue.WithKeyPrefix(cfg.Redis.Prefix+":queue"),
	)
	q.RegisterJob(internalrepo.NewSignalEventRedeliverJob(events))
	return q
}

// ProvideNotifier fans distribution events out to websocket subscribers and
// the Kafka events topic, parking failed publishes on the redelivery queue.
func ProvideNotifier(h *hub.Hub, events *internalrepo.KafkaSignalEvents, q *queue.RedisQueue, l *logger.Logger) domrepo.Notifier {
	return internalrepo.NewFanoutNotifier(h, internalrepo.NewQueueBackedNotifier(events, q, l))
}

// ProvideEngine creates the distribution engine.
func ProvideEngine(
	buf *buffer.Buffer,
	q domrepo.QuotaRegistry,
	tiers domrepo.TierSource,
	store domrepo.SignalStore,
	notifier domrepo.Notifier,
	policies models.TierPolicies,
	m domrepo.Metrics,
	l *logger.Logger,
) *distribution.Engine {
	return distribution.NewEngine(buf, q, tiers, store, notifier, policies, m, l)
}

// ProvideScheduler creates the per-tier drop scheduler.
func ProvideScheduler(
	engine *distribution.Engine,
	store domrepo.SignalStore,
	buf *buffer.Buffer,
	policies models.TierPolicies,
	m domrepo.Metrics,
	l *logger.Logger,
	cfg *config.Config,
) *scheduler.Scheduler {
	return scheduler.New(engine, store, buf, policies, cfg.Pipeline.MaxCandidateAge, m, l,
		scheduler.WithTick(cfg.Scheduler.Tick),
	)
}

// ProvideOpsHandler creates the operational HTTP handler.
func ProvideOpsHandler(
	l *logger.Logger,
	pipe *usecase.SignalPipeline,
	ingest *mid.IngestPipeline,
	sched *scheduler.Scheduler,
	q domrepo.QuotaRegistry,
	h *hub.Hub,
) *api.OpsEchoHandler {
	return api.NewOpsEchoHandler(l, pipe, ingest, sched, q, h)
}

// ProvideSignalsHandler creates the persisted-signal read handler.
func ProvideSignalsHandler(l *logger.Logger, store domrepo.SignalStore) *api.SignalsEchoHandler {
	return api.NewSignalsEchoHandler(l, store)
}

// ProvideHTTPHandler composes all route handlers into one registration unit.
func ProvideHTTPHandler(ops *api.OpsEchoHandler, signals *api.SignalsEchoHandler) xhttp.Handler {
	return xhttp.Handlers{ops, signals}
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	ingest *mid.IngestPipeline,
	sched *scheduler.Scheduler,
	h *hub.Hub,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	producer *pkgkafka.Producer,
	q *queue.RedisQueue,
	chClient *pkgch.Client,
	httpHandler xhttp.Handler,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	if cfg.Kafka.LogsTopic != "" {
		l.AddCollector(&logger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.LogsTopic,
			Publisher:      internalrepo.NewKafkaLogSink(producer),
		})
	}
	return server.New(cfg, l, ingest, sched, h, consumer, kh, producer, q, chClient, httpHandler)
}
