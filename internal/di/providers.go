package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"MarkovCast/internal/domain/repository"
	domsvc "MarkovCast/internal/domain/service"
	"MarkovCast/internal/handler/api"
	mid "MarkovCast/internal/middleware"
	internalrepo "MarkovCast/internal/repository"
	icache "MarkovCast/internal/service/cache"
	"MarkovCast/internal/service/finnhub"
	"MarkovCast/internal/services/forecast"
	"MarkovCast/internal/usecase"
	pkgcache "MarkovCast/pkg/cache"
	pkgch "MarkovCast/pkg/clickhouse"
	"MarkovCast/pkg/config"
	pkgkafka "MarkovCast/pkg/kafka"
	applogger "MarkovCast/pkg/logger"
	"MarkovCast/pkg/metrics"
	"MarkovCast/pkg/queue"
	"MarkovCast/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level := "info"
	if cfg.Environment == "development" {
		level = "debug"
	}
	return applogger.New(&applogger.Config{Level: level, Format: "console", Output: "stdout"})
}

// ProvideClickHouseClient creates a ClickHouse client and initializes the schema.
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

	// Initialize schema
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS markovcast",
		`CREATE TABLE IF NOT EXISTS markovcast.rt_ticks_raw (
			ts DateTime64(3), symbol LowCardinality(String), price Float64, volume Float64,
			source LowCardinality(String), event_id String, seq UInt64, org_id LowCardinality(String)
		) ENGINE=MergeTree ORDER BY (symbol, ts)`,
		`CREATE TABLE IF NOT EXISTS markovcast.rt_candles_1m (
			bucket DateTime, symbol LowCardinality(String),
			open Float64, high Float64, low Float64, close Float64, vol Float64,
			org_id LowCardinality(String)
		) ENGINE=ReplacingMergeTree ORDER BY (symbol, bucket)`,
		`CREATE MATERIALIZED VIEW IF NOT EXISTS markovcast.rt_candles_1m_mv
			TO markovcast.rt_candles_1m AS
			SELECT toStartOfMinute(ts) AS bucket, symbol,
				argMin(price, ts) AS open, max(price) AS high, min(price) AS low,
				argMax(price, ts) AS close, sum(volume) AS vol, any(org_id) AS org_id
			FROM markovcast.rt_ticks_raw GROUP BY symbol, bucket`,
		`CREATE TABLE IF NOT EXISTS markovcast.daily_bars (
			bucket Date, symbol LowCardinality(String),
			open Float64, high Float64, low Float64, close Float64, vol Float64,
			org_id LowCardinality(String)
		) ENGINE=ReplacingMergeTree ORDER BY (symbol, bucket)`,
		`CREATE TABLE IF NOT EXISTS markovcast.backtest_reports (
			id String, symbol LowCardinality(String), created_at DateTime, report String
		) ENGINE=MergeTree ORDER BY (id, created_at)`,
	}); err != nil {
		_ = client.Close() // cannot log here (DI layer no logger); propagate error
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
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

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideTickStorage creates ClickHouse storage repository.
func ProvideTickStorage(chClient *pkgch.Client, cfg *config.Config) repository.Storage {
	return internalrepo.NewClickHouseTickStore(chClient.DB(), cfg.ClickHouse.Database+".rt_ticks_raw")
}

// ProvideTickPublisher creates Kafka publisher repository.
func ProvideTickPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	return internalrepo.NewKafkaTickPublisher(producer, cfg.Kafka.Topic)
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

// ProvideKafkaTicksHandler registers handler for ticks topic.
func ProvideKafkaTicksHandler(store repository.Storage, metrics repository.Metrics, cfg *config.Config) *usecase.KafkaTicksHandler {
	return usecase.NewKafkaTicksHandler(cfg.Kafka.Topic, store, metrics)
}

// ProvideFinnhubStream creates Finnhub WebSocket stream.
func ProvideFinnhubStream(cfg *config.Config) repository.MarketStream {
	return finnhub.New(
		cfg.Finnhub.APIKey,
		cfg.Finnhub.WebSocketURL,
		cfg.Finnhub.Symbols,
		cfg.Finnhub.ReconnectDelay,
		cfg.Finnhub.PingInterval,
	)
}

// ProvideHistorySource creates the Finnhub REST candle fetcher.
func ProvideHistorySource(cfg *config.Config) repository.HistorySource {
	return finnhub.NewRESTClient(cfg.Finnhub.APIKey, cfg.Finnhub.RESTURL, cfg.Finnhub.RESTTimeout)
}

// ProvideTickProcessor creates tick processor use case.
func ProvideTickProcessor(
	pub repository.Publisher,
	store repository.Storage,
	metrics repository.Metrics,
	cfg *config.Config,
) *usecase.TickProcessor {
	return usecase.NewTickProcessor(
		pub,
		store,
		metrics,
		cfg.Backend.Type,
		cfg.Backend.BatchSize,
		cfg.Backend.BatchTimeout,
	)
}

// ProvideTickCollector creates tick collector use case.
func ProvideTickCollector(
	stream repository.MarketStream,
	processor *usecase.TickProcessor,
	metrics repository.Metrics,
) *usecase.TickCollector {
	// Build middleware pipeline between WebSocket and Kafka
	pipe := mid.NewRealtimePipeline(processor, metrics,
		mid.WithMaxRPS(50),
		mid.WithBufferSize(2000),
	)
	return usecase.NewTickCollector(stream, processor, metrics, pipe)
}

// ProvideRedisCache creates the shared Redis client, nil when disabled.
func ProvideRedisCache(cfg *config.Config) (*pkgcache.RedisCache, error) {
	if !cfg.Forecast.Redis.Enabled {
		return nil, nil
	}
	host, portStr, err := net.SplitHostPort(cfg.Forecast.Redis.Addr)
	if err != nil {
		return nil, fmt.Errorf("redis addr: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("redis port: %w", err)
	}
	return pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(host),
		pkgcache.WithRedisPort(port),
		pkgcache.WithRedisPassword(cfg.Forecast.Redis.Password),
		pkgcache.WithRedisDB(cfg.Forecast.Redis.DB),
	)
}

// ProvideStatusCache exposes job status storage: Redis when configured,
// in-process otherwise.
func ProvideStatusCache(rc *pkgcache.RedisCache) pkgcache.Service {
	if rc != nil {
		return rc
	}
	return pkgcache.NewMemoryCache()
}

// ProvideBytesCache creates the HTTP response cache.
func ProvideBytesCache(cfg *config.Config) icache.BytesCache {
	if cfg.Forecast.Redis.Enabled {
		return icache.NewRedisCache(icache.RedisConfig{
			Addr:     cfg.Forecast.Redis.Addr,
			Password: cfg.Forecast.Redis.Password,
			DB:       cfg.Forecast.Redis.DB,
		})
	}
	return icache.NewTTLCache()
}

// ProvideQueuePublisher creates the job queue publisher, nil when Redis is off.
func ProvideQueuePublisher(l *applogger.Logger, rc *pkgcache.RedisCache) queue.QueueService {
	if rc == nil {
		return nil
	}
	return queue.NewRedisPublisher(l, rc.Client())
}

// ProvideQueueConsumer creates the queue worker with the backtest job registered.
func ProvideQueueConsumer(
	l *applogger.Logger,
	cfg *config.Config,
	rc *pkgcache.RedisCache,
	job *usecase.BacktestJob,
) *queue.RedisQueue {
	if rc == nil {
		return nil
	}
	qc := &queue.QueueConfig{
		Workers:    cfg.Forecast.Queue.Workers,
		QueueSize:  cfg.Forecast.Queue.QueueSize,
		RetryLimit: cfg.Forecast.Queue.RetryLimit,
		RetryDelay: cfg.Forecast.Queue.RetryDelay,
	}
	return queue.NewRedisConsumer(l, qc, rc.Client(), []queue.Job{job})
}

// ProvideFeatureStore creates the candle repository.
func ProvideFeatureStore(chClient *pkgch.Client, l *applogger.Logger) *internalrepo.CHFeatureStore {
	fs := internalrepo.NewCHFeatureStore(chClient)
	fs.SetLogger(l)
	return fs
}

// ProvideCandleWriter exposes the feature store's write side.
func ProvideCandleWriter(fs *internalrepo.CHFeatureStore) repository.CandleWriter {
	return fs
}

// ProvideFeatureReader exposes the feature store's read side.
func ProvideFeatureReader(fs *internalrepo.CHFeatureStore) repository.FeatureStore {
	return fs
}

// ProvideBacktestArchive creates the ClickHouse report archive.
func ProvideBacktestArchive(chClient *pkgch.Client, l *applogger.Logger) repository.BacktestArchive {
	a := internalrepo.NewCHBacktestArchive(chClient)
	a.SetLogger(l)
	return a
}

// ProvidePriceLoader creates the daily close loader.
func ProvidePriceLoader(
	store repository.FeatureStore,
	source repository.HistorySource,
	writer repository.CandleWriter,
	l *applogger.Logger,
) *usecase.PriceLoader {
	return usecase.NewPriceLoader(store, source, writer, l)
}

// ProvideForecaster creates the Markov forecasting engine.
func ProvideForecaster(l *applogger.Logger) domsvc.Forecaster {
	return forecast.NewEngine(l)
}

// ProvideForecastUseCase creates the forecast use case.
func ProvideForecastUseCase(loader *usecase.PriceLoader, svc domsvc.Forecaster, l *applogger.Logger) *usecase.ForecastUseCase {
	return usecase.NewForecastUseCase(loader, svc, l)
}

// ProvideHistoryUseCase creates the history use case.
func ProvideHistoryUseCase(loader *usecase.PriceLoader) *usecase.HistoryUseCase {
	return usecase.NewHistoryUseCase(loader)
}

// ProvideBacktestUseCase creates the backtest use case.
func ProvideBacktestUseCase(
	loader *usecase.PriceLoader,
	svc domsvc.Forecaster,
	archive repository.BacktestArchive,
	q queue.QueueService,
	status pkgcache.Service,
	l *applogger.Logger,
) *usecase.BacktestUseCase {
	return usecase.NewBacktestUseCase(loader, svc, archive, q, status, l)
}

// ProvideBacktestJob creates the queue job wrapper.
func ProvideBacktestJob(uc *usecase.BacktestUseCase) *usecase.BacktestJob {
	return usecase.NewBacktestJob(uc)
}

// ProvideForecastHandler creates the HTTP handler with response caching.
func ProvideForecastHandler(
	l *applogger.Logger,
	fc *usecase.ForecastUseCase,
	bt *usecase.BacktestUseCase,
	hist *usecase.HistoryUseCase,
	bytes icache.BytesCache,
	cfg *config.Config,
) *api.ForecastHandler {
	ttl := api.CacheTTL{
		Forecast: cfg.Forecast.CacheTTL.Forecast,
		States:   cfg.Forecast.CacheTTL.States,
		Backtest: cfg.Forecast.CacheTTL.Backtest,
		History:  cfg.Forecast.CacheTTL.History,
	}
	if ttl.Forecast <= 0 {
		ttl.Forecast = 60 * time.Second
	}
	if ttl.States <= 0 {
		ttl.States = 5 * time.Minute
	}
	if ttl.Backtest <= 0 {
		ttl.Backtest = 10 * time.Minute
	}
	if ttl.History <= 0 {
		ttl.History = 60 * time.Second
	}
	return api.NewForecastHandler(l, fc, bt, hist, bytes, ttl)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	collector *usecase.TickCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaTicksHandler,
	chClient *pkgch.Client,
	handler *api.ForecastHandler,
	jobQueue *queue.RedisQueue,
	rc *pkgcache.RedisCache,
) *server.App {
	// Attach hook to consumer: example NoopHook for now; can be replaced via config
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	app := server.New(cfg, collector, consumer, kh, chClient)
	app.SetHTTPHandler(handler)
	app.SetJobQueue(jobQueue)
	app.SetRedis(rc)
	// attach tick processor to app for closing resources via collector
	if collector != nil {
		app.TickProc = collector.Processor()
	}
	return app
}
