package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	mid "FinSignal/internal/middleware"
	"FinSignal/internal/usecase"
	pkgcache "FinSignal/pkg/cache"
	pkgch "FinSignal/pkg/clickhouse"
	"FinSignal/pkg/config"
	xhttp "FinSignal/pkg/http"
	pkgkafka "FinSignal/pkg/kafka"
	applogger "FinSignal/pkg/logger"
	"FinSignal/pkg/queue"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	logger      *applogger.Logger
	pipe        *mid.ReadingsPipeline
	collector   *usecase.ReadingsCollector
	consumer    *pkgkafka.Consumer
	kh          pkgkafka.MessageHandler
	notifyQueue *queue.RedisQueue
	chClient    *pkgch.Client
	redisCache  *pkgcache.RedisCache
	dispatcher  *usecase.SignalDispatcher
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
}

// New creates a new App instance with all dependencies. Collector, consumer,
// handler, notify queue and redis may be nil depending on the configured
// backends.
func New(
	cfg *config.Config,
	logger *applogger.Logger,
	pipe *mid.ReadingsPipeline,
	collector *usecase.ReadingsCollector,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	notifyQueue *queue.RedisQueue,
	chClient *pkgch.Client,
	redisCache *pkgcache.RedisCache,
	dispatcher *usecase.SignalDispatcher,
) *App {
	return &App{
		cfg:         cfg,
		logger:      logger,
		pipe:        pipe,
		collector:   collector,
		consumer:    consumer,
		kh:          kh,
		notifyQueue: notifyQueue,
		chClient:    chClient,
		redisCache:  redisCache,
		dispatcher:  dispatcher,
	}
}

// SetHTTPHandler allows DI to inject an HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := a.logger

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithRequestLogging(l, time.Second),
	)

	// Pipeline flushing runs regardless of intake backend. Start is
	// idempotent, so the collector calling it again is harmless.
	if a.pipe != nil {
		a.pipe.Start(ctx)
	}

	// Start feed collector if configured
	if a.collector != nil {
		go func() {
			if err := a.collector.Start(ctx); err != nil {
				l.Error("collector error", applogger.Error(err))
			}
		}()
		l.Info("feed collector started", applogger.Strings("instruments", a.cfg.Intake.Instruments))
	}

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

	// Start webhook queue workers if configured. Start launches the retry
	// processor on its own.
	if a.notifyQueue != nil {
		if err := a.notifyQueue.Start(); err != nil {
			l.Error("notify queue start error", applogger.Error(err))
			return err
		}
	}

	// Start HTTP server
	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}
	l.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

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

	// Stop intake first so nothing new enters the pipeline
	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			l.Warn("collector stop error", applogger.Error(err))
		}
	} else if a.pipe != nil {
		a.pipe.Stop()
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	// Shutdown HTTP server
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		l.Error("http shutdown error", applogger.Error(err))
	}

	// Drain webhook workers
	if a.notifyQueue != nil {
		if err := a.notifyQueue.Stop(shutdownCtx); err != nil {
			l.Warn("notify queue stop error", applogger.Error(err))
		}
	}

	// Close dispatcher resources (notifier, storage)
	if a.dispatcher != nil {
		a.dispatcher.Close()
	}

	// Close infrastructure clients
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	if a.redisCache != nil {
		if err := a.redisCache.Close(); err != nil {
			l.Warn("redis close error", applogger.Error(err))
		}
	}

	l.Info("shutdown complete")
	return nil
}
