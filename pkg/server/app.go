package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"IgniteX/internal/hub"
	"IgniteX/internal/middleware"
	"IgniteX/internal/scheduler"
	pkgch "IgniteX/pkg/clickhouse"
	"IgniteX/pkg/config"
	xhttp "IgniteX/pkg/http"
	pkgkafka "IgniteX/pkg/kafka"
	applogger "IgniteX/pkg/logger"
	"IgniteX/pkg/queue"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	logger      *applogger.Logger
	ingest      *middleware.IngestPipeline
	sched       *scheduler.Scheduler
	hub         *hub.Hub
	consumer    *pkgkafka.Consumer
	kh          pkgkafka.MessageHandler
	producer    *pkgkafka.Producer
	queue       *queue.RedisQueue
	chClient    *pkgch.Client
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	logger *applogger.Logger,
	ingest *middleware.IngestPipeline,
	sched *scheduler.Scheduler,
	h *hub.Hub,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	producer *pkgkafka.Producer,
	q *queue.RedisQueue,
	chClient *pkgch.Client,
	httpHandler xhttp.Handler,
) *App {
	return &App{
		cfg:         cfg,
		logger:      logger,
		ingest:      ingest,
		sched:       sched,
		hub:         h,
		consumer:    consumer,
		kh:          kh,
		producer:    producer,
		queue:       q,
		chClient:    chClient,
		httpHandler: httpHandler,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := a.logger

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	// Start the redelivery queue before anything can enqueue to it
	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			l.Error("redis queue start error", applogger.Error(err))
			return err
		}
		a.queue.StartRetryProcessor()
		l.Info("redis queue started")
	}

	// Start ingest pipeline retry loop
	a.ingest.Start(ctx)
	l.Info("ingest pipeline started")

	// Start consumer if configured
	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	// Start the drop scheduler
	if err := a.sched.Start(ctx); err != nil {
		l.Error("scheduler start error", applogger.Error(err))
		return err
	}
	l.Info("drop scheduler started")

	// Start HTTP server
	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	l := a.logger
	l.Info("shutting down...")

	// Stop accepting new candidates first
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	a.ingest.Stop()

	// Stop the scheduler so no release runs against closing clients
	a.sched.Stop()

	// Shutdown HTTP server
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		l.Error("http shutdown error", applogger.Error(err))
	}

	// Disconnect websocket subscribers
	if a.hub != nil {
		a.hub.Close()
	}

	// Drain the redelivery queue workers
	if a.queue != nil {
		if err := a.queue.Stop(shutdownCtx); err != nil {
			l.Warn("redis queue stop error", applogger.Error(err))
		}
	}

	// Flush any aggregated logs before the producer closes
	l.RemoveCollector()

	// Close infrastructure clients
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			l.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	l.Info("shutdown complete")
	return nil
}
