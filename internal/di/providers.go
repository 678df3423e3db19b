package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"FinSignal/internal/domain/models"
	domrepo "FinSignal/internal/domain/repository"
	domsvc "FinSignal/internal/domain/service"
	"FinSignal/internal/handler/api"
	mid "FinSignal/internal/middleware"
	internalrepo "FinSignal/internal/repository"
	icache "FinSignal/internal/service/cache"
	"FinSignal/internal/service/dedup"
	"FinSignal/internal/service/indicatorfeed"
	"FinSignal/internal/services/engine"
	"FinSignal/internal/usecase"
	pkgcache "FinSignal/pkg/cache"
	pkgch "FinSignal/pkg/clickhouse"
	"FinSignal/pkg/config"
	pkgkafka "FinSignal/pkg/kafka"
	applogger "FinSignal/pkg/logger"
	"FinSignal/pkg/metrics"
	"FinSignal/pkg/queue"
	"FinSignal/pkg/server"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	lc := &applogger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
		Output: cfg.Logger.Output,
	}
	if lc.Level == "" {
		lc.Level = "info"
	}
	if lc.Format == "" {
		lc.Format = "console"
	}
	if lc.Output == "" {
		lc.Output = "stdout"
	}
	l, err := applogger.New(lc)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client. Table schemas are
// owned by the repositories that write them.
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
	return client, nil
}

// ProvideSignalStorage creates the ClickHouse signal store and ensures its
// tables exist.
func ProvideSignalStorage(chClient *pkgch.Client, lgr *applogger.Logger) (domrepo.SignalStorage, error) {
	store := internalrepo.NewCHSignalStore(chClient)
	store.SetLogger(lgr)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("signal storage: %w", err)
	}
	return store, nil
}

// ProvideRedisCache creates the shared Redis client wrapper, or nil when
// Redis is disabled.
func ProvideRedisCache(cfg *config.Config) (*pkgcache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	host, port, err := splitHostPort(cfg.Redis.Addr)
	if err != nil {
		return nil, fmt.Errorf("redis addr: %w", err)
	}
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(host),
		pkgcache.WithRedisPort(port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideCacheService exposes the key-value service backing distributed
// locks. Layered mode fronts Redis with a memory L1 for reads; TryLock goes
// to Redis either way.
func ProvideCacheService(cfg *config.Config, rc *pkgcache.RedisCache) pkgcache.Service {
	if rc == nil {
		return nil
	}
	if cfg.Cache.Backend == "layered" {
		return pkgcache.NewLayeredCache(rc)
	}
	return rc
}

// ProvideResponseCache picks the byte cache behind HTTP response caching.
func ProvideResponseCache(cfg *config.Config) icache.BytesCache {
	if cfg.Redis.Enabled && (cfg.Cache.Backend == "redis" || cfg.Cache.Backend == "layered") {
		return icache.NewRedisCache(icache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	return icache.NewTTLCache()
}

// ProvideZoneOrder builds the zone priority ladder from config, falling back
// to the built-in nine zones.
func ProvideZoneOrder(cfg *config.Config) (models.ZoneOrder, error) {
	order := models.DefaultZoneOrder()
	if len(cfg.Engine.ZoneOrder) > 0 {
		order = make(models.ZoneOrder, 0, len(cfg.Engine.ZoneOrder))
		for _, z := range cfg.Engine.ZoneOrder {
			order = append(order, models.Zone(z))
		}
	}
	if err := order.Validate(); err != nil {
		return nil, fmt.Errorf("zone order: %w", err)
	}
	return order, nil
}

// ProvideMarketResolver maps instruments onto market templates.
func ProvideMarketResolver(cfg *config.Config) domrepo.MarketResolver {
	return internalrepo.NewConfigMarketResolver(cfg)
}

// ProvideThresholdSource builds the zone threshold source. The config tree
// is fully in-memory; the ClickHouse source gets a TTL cache in front so the
// matcher does not query per reading.
func ProvideThresholdSource(
	cfg *config.Config,
	chClient *pkgch.Client,
	order models.ZoneOrder,
	lgr *applogger.Logger,
) (domrepo.ThresholdSource, error) {
	if cfg.Engine.Thresholds.Source == "clickhouse" {
		src := internalrepo.NewCHThresholdSource(chClient, order)
		src.SetLogger(lgr)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := src.Init(ctx); err != nil {
			return nil, fmt.Errorf("threshold source: %w", err)
		}
		return internalrepo.NewCachedThresholdSource(src, cfg.Engine.Thresholds.CacheTTL), nil
	}

	src, err := internalrepo.NewConfigThresholdSource(cfg, order)
	if err != nil {
		return nil, fmt.Errorf("threshold source: %w", err)
	}
	return src, nil
}

// ProvideZoneClassifier creates the zone matcher.
func ProvideZoneClassifier(
	cfg *config.Config,
	src domrepo.ThresholdSource,
	markets domrepo.MarketResolver,
	lgr *applogger.Logger,
) domsvc.ZoneClassifier {
	return engine.NewZoneMatcher(cfg, src, markets, lgr)
}

// ProvideTrendEvaluator creates the moving-average stack evaluator.
func ProvideTrendEvaluator(cfg *config.Config) domsvc.TrendEvaluator {
	return engine.NewTrendStack(cfg)
}

// ProvideTimingEvaluator creates the oscillator evaluator.
func ProvideTimingEvaluator(zones domsvc.ZoneClassifier) domsvc.TimingEvaluator {
	return engine.NewOscillatorTiming(zones)
}

// ProvideMomentumEvaluator creates the optional third vote. Returns nil when
// momentum is disabled so the engine falls back to two evaluators.
func ProvideMomentumEvaluator(cfg *config.Config, zones domsvc.ZoneClassifier) domsvc.MomentumEvaluator {
	if !cfg.Engine.MomentumEnabled {
		return nil
	}
	return engine.NewHistogramMomentum(zones)
}

// ProvideCombiner creates the hybrid combiner.
func ProvideCombiner(cfg *config.Config) domsvc.HybridCombiner {
	return engine.NewCombiner(cfg)
}

// ProvideAggregator creates the cross-timeframe aggregator.
func ProvideAggregator() domsvc.TimeframeAggregator {
	return engine.NewMajorityAggregator()
}

// ProvideEmissionGate creates the dedup cache over the configured store.
func ProvideEmissionGate(cfg *config.Config, svc pkgcache.Service, lgr *applogger.Logger) domsvc.EmissionGate {
	var store dedup.Store
	if cfg.Engine.Dedup.Backend == "redis" && svc != nil {
		store = dedup.NewRedisStore(svc)
	} else {
		store = dedup.NewMemoryStore(dedup.WithMaxEntries(cfg.Engine.Dedup.MaxEntries))
	}
	return dedup.New(store,
		dedup.WithTTL(cfg.Engine.Dedup.TTL),
		dedup.WithFailOpen(!cfg.Engine.Dedup.FailClosed),
		dedup.WithLogger(lgr),
	)
}

// ProvideHybridEngine creates the per-timeframe evaluation engine.
func ProvideHybridEngine(
	cfg *config.Config,
	trend domsvc.TrendEvaluator,
	timing domsvc.TimingEvaluator,
	momentum domsvc.MomentumEvaluator,
	combiner domsvc.HybridCombiner,
	m domrepo.Metrics,
) *usecase.HybridEngine {
	tfs := make([]domrepo.Timeframe, 0, len(cfg.Engine.Timeframes))
	for _, tf := range cfg.Engine.Timeframes {
		tfs = append(tfs, domrepo.Timeframe(tf))
	}
	return usecase.NewHybridEngine(trend, timing, momentum, combiner, m, tfs)
}

// ProvideKafkaProducer creates the signals producer when notifications go
// out over Kafka, nil otherwise.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if cfg.Notify.Backend != "kafka" {
		return nil, nil
	}
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

// ProvideNotifyQueue builds the Redis queue that carries emitted signals to
// the webhook workers. Nil unless notifications go through the queue.
func ProvideNotifyQueue(cfg *config.Config, lgr *applogger.Logger, rc *pkgcache.RedisCache) *queue.RedisQueue {
	if cfg.Notify.Backend != "queue" || rc == nil {
		return nil
	}
	workers := cfg.Notify.Workers
	if workers <= 0 {
		workers = 2
	}
	q := queue.NewRedisQueue(lgr, &queue.QueueConfig{
		Workers:    workers,
		RetryLimit: 5,
		RetryDelay: 15 * time.Second,
	}, rc.Client(), queue.WithKeyPrefix("finsignal:notify"))
	q.RegisterJobs(usecase.NewWebhookNotifyJobs(cfg, lgr))
	return q
}

// ProvideNotifier picks the notification backend.
func ProvideNotifier(cfg *config.Config, producer *pkgkafka.Producer, nq *queue.RedisQueue) domrepo.Notifier {
	switch cfg.Notify.Backend {
	case "kafka":
		return internalrepo.NewKafkaNotifier(producer, cfg.Kafka.SignalsTopic)
	case "queue":
		if nq != nil {
			return internalrepo.NewQueueNotifier(nq)
		}
		return internalrepo.NewNopNotifier()
	default:
		return internalrepo.NewNopNotifier()
	}
}

// ProvideSignalDispatcher creates the dispatch use case.
func ProvideSignalDispatcher(
	eng *usecase.HybridEngine,
	agg domsvc.TimeframeAggregator,
	gate domsvc.EmissionGate,
	storage domrepo.SignalStorage,
	notifier domrepo.Notifier,
	m domrepo.Metrics,
	cfg *config.Config,
) *usecase.SignalDispatcher {
	return usecase.NewSignalDispatcher(eng, agg, gate, storage, notifier, m, cfg)
}

// ProvideReadingsPipeline builds the intake middleware in front of the
// dispatcher. The WebSocket and Kafka paths share it. With a producer
// available, throttle and drop events aggregate into counted batches on the
// log topic instead of logging per reading.
func ProvideReadingsPipeline(
	cfg *config.Config,
	lgr *applogger.Logger,
	disp *usecase.SignalDispatcher,
	m domrepo.Metrics,
	producer *pkgkafka.Producer,
) *mid.ReadingsPipeline {
	opts := []mid.PipelineOption{
		mid.WithMaxRPS(50),
		mid.WithBufferSize(2000),
	}
	if producer != nil && cfg.Kafka.LogsTopic != "" {
		opts = append(opts, mid.WithDropLog(applogger.NewLogCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.LogsTopic,
			Publisher:      kafkaLogPublisher{producer},
			Logger:         lgr,
		})))
	}
	return mid.NewReadingsPipeline(disp, m, opts...)
}

// kafkaLogPublisher adapts the producer to the collector's publisher.
type kafkaLogPublisher struct {
	p *pkgkafka.Producer
}

func (k kafkaLogPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return k.p.Publish(ctx, topic, nil, payload)
}

// ProvideFeedStream creates the indicator feed WebSocket stream, or nil when
// intake runs over Kafka or is disabled.
func ProvideFeedStream(cfg *config.Config) domrepo.ReadingStream {
	if cfg.Intake.Backend != "websocket" {
		return nil
	}
	return indicatorfeed.New(
		cfg.Feed.Token,
		cfg.Feed.URL,
		cfg.Intake.Instruments,
		cfg.Feed.ReconnectDelay,
		cfg.Feed.PingInterval,
	)
}

// ProvideReadingsCollector creates the stream collector, or nil when no
// stream is configured.
func ProvideReadingsCollector(
	stream domrepo.ReadingStream,
	disp *usecase.SignalDispatcher,
	m domrepo.Metrics,
	pipe *mid.ReadingsPipeline,
) *usecase.ReadingsCollector {
	if stream == nil {
		return nil
	}
	return usecase.NewReadingsCollector(stream, disp, m, pipe)
}

// ProvideKafkaConsumer creates the readings consumer when intake runs over
// Kafka, nil otherwise.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if cfg.Intake.Backend != "kafka" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerAutoOffsetReset(cfg.Kafka.Consumer.AutoOffsetReset),
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

// ProvideKafkaReadingsHandler registers the handler for the readings topic.
// Nil when intake is not Kafka.
func ProvideKafkaReadingsHandler(cfg *config.Config, pipe *mid.ReadingsPipeline, m domrepo.Metrics) *usecase.KafkaReadingsHandler {
	if cfg.Intake.Backend != "kafka" {
		return nil
	}
	return usecase.NewKafkaReadingsHandler(cfg.Kafka.ReadingsTopic, pipe, m)
}

// ProvideSignalsHandler creates the HTTP handler with its response cache and
// optional stream health probe.
func ProvideSignalsHandler(
	cfg *config.Config,
	lgr *applogger.Logger,
	disp *usecase.SignalDispatcher,
	eng *usecase.HybridEngine,
	agg domsvc.TimeframeAggregator,
	storage domrepo.SignalStorage,
	zones domsvc.ZoneClassifier,
	respCache icache.BytesCache,
	stream domrepo.ReadingStream,
) *api.SignalsEchoHandler {
	h := api.NewSignalsEchoHandler(lgr, disp, eng, agg, storage, zones)
	h.SetCache(respCache)
	h.SetCacheTTL(cfg.Cache.ResponseTTL)
	if stream != nil {
		h.SetStream(stream)
	}
	return h
}

// ProvideApp assembles the application server.
func ProvideApp(
	cfg *config.Config,
	lgr *applogger.Logger,
	pipe *mid.ReadingsPipeline,
	collector *usecase.ReadingsCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaReadingsHandler,
	nq *queue.RedisQueue,
	chClient *pkgch.Client,
	rc *pkgcache.RedisCache,
	disp *usecase.SignalDispatcher,
	m domrepo.Metrics,
	handler *api.SignalsEchoHandler,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(usecase.NewConsumerMetricsHook(m))
	}
	var mh pkgkafka.MessageHandler
	if kh != nil {
		mh = kh
	}
	app := server.New(cfg, lgr, pipe, collector, consumer, mh, nq, chClient, rc, disp)
	app.SetHTTPHandler(handler)
	return app
}

func splitHostPort(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("redis port %q: %w", portStr, err)
	}
	return host, port, nil
}
