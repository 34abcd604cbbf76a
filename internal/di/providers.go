package di

import (
	"context"
	"fmt"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/domain/repository"
	domsvc "MarketPulse/internal/domain/service"
	"MarketPulse/internal/handler/api"
	internalrepo "MarketPulse/internal/repository"
	"MarketPulse/internal/service/ratelimit"
	"MarketPulse/internal/services/comment"
	"MarketPulse/internal/services/scoring"
	"MarketPulse/internal/services/snapshot"
	"MarketPulse/internal/services/twse"
	"MarketPulse/internal/usecase"
	"MarketPulse/pkg/cache"
	pkgch "MarketPulse/pkg/clickhouse"
	"MarketPulse/pkg/config"
	pkgkafka "MarketPulse/pkg/kafka"
	applogger "MarketPulse/pkg/logger"
	"MarketPulse/pkg/metrics"
	"MarketPulse/pkg/queue"
	"MarketPulse/pkg/server"
)

// ProvideLogger creates the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New(nil)
}

// ProvideClickHouseClient creates a ClickHouse client and, when configured,
// creates the tables.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(cfg.ClickHouse.MaxOpenConns, cfg.ClickHouse.MaxIdleConns),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	if !cfg.ClickHouse.InitSchema {
		return client, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := internalrepo.NewCHBarStore(client.DB()).Init(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	l.Info("clickhouse schema ready", applogger.String("database", cfg.ClickHouse.Database))
	return client, nil
}

// ProvideBarStore creates the ClickHouse bar store.
func ProvideBarStore(ch *pkgch.Client, l *applogger.Logger) repository.BarStore {
	s := internalrepo.NewCHBarStore(ch.DB())
	s.SetLogger(l)
	return s
}

// ProvideScoreStore creates the ClickHouse score store.
func ProvideScoreStore(ch *pkgch.Client, l *applogger.Logger) repository.ScoreStore {
	s := internalrepo.NewCHScoreStore(ch.DB())
	s.SetLogger(l)
	return s
}

// ProvideReportStore creates the ClickHouse report store.
func ProvideReportStore(ch *pkgch.Client, l *applogger.Logger) repository.ReportStore {
	s := internalrepo.NewCHReportStore(ch.DB())
	s.SetLogger(l)
	return s
}

// ProvideRedisCache connects to Redis; nil when Redis is disabled.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideCache returns the response cache and run lock: Redis behind an
// in-process L1 when Redis is enabled, otherwise an in-memory cache.
func ProvideCache(rc *cache.RedisCache) cache.Service {
	if rc == nil {
		return cache.NewMemoryCache()
	}
	return cache.NewLayeredCache(rc)
}

// ProvideKafkaProducer creates a Kafka producer; nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Producer.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.Producer.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideEventPublisher publishes report events to Kafka, or drops them when
// Kafka is disabled.
func ProvideEventPublisher(producer *pkgkafka.Producer, cfg *config.Config, l *applogger.Logger) repository.EventPublisher {
	if producer == nil {
		return internalrepo.NoopPublisher{}
	}
	p := internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.EventTopic)
	p.SetLogger(l)
	return p
}

// ProvideBarSource creates the TWSE OpenAPI client.
func ProvideBarSource(cfg *config.Config, l *applogger.Logger, m repository.Metrics) domsvc.BarSource {
	c := twse.NewClient(cfg)
	c.SetLogger(l)
	c.SetMetrics(m)
	return c
}

// ProvideSnapshotFields parses the configured report snapshot fields.
func ProvideSnapshotFields(cfg *config.Config) (models.SnapshotFields, error) {
	return models.ParseSnapshotFields(cfg.Report.SnapshotFields)
}

// ProvideFetchBars creates the fetch use case.
func ProvideFetchBars(src domsvc.BarSource, bars repository.BarStore, m repository.Metrics, l *applogger.Logger) *usecase.FetchBarsUseCase {
	uc := usecase.NewFetchBarsUseCase(src, bars, m)
	uc.SetLogger(l)
	return uc
}

// ProvideDailyScoring creates the scoring use case.
func ProvideDailyScoring(bars repository.BarStore, scores repository.ScoreStore, reports repository.ReportStore, m repository.Metrics, l *applogger.Logger) *usecase.DailyScoringUseCase {
	uc := usecase.NewDailyScoringUseCase(bars, scores, reports, scoring.NewEngine(), m)
	uc.SetLogger(l)
	return uc
}

// ProvideComment creates the comment use case.
func ProvideComment(reports repository.ReportStore, m repository.Metrics, l *applogger.Logger) *usecase.CommentUseCase {
	uc := usecase.NewCommentUseCase(reports, comment.NewGenerator(), m)
	uc.SetLogger(l)
	return uc
}

// ProvideMarketSnapshot creates the snapshot use case.
func ProvideMarketSnapshot(bars repository.BarStore, scores repository.ScoreStore, reports repository.ReportStore, fields models.SnapshotFields, m repository.Metrics, l *applogger.Logger) *usecase.MarketSnapshotUseCase {
	uc := usecase.NewMarketSnapshotUseCase(bars, scores, reports, snapshot.NewAggregator(), fields, m)
	uc.SetLogger(l)
	return uc
}

// ProvideDailyPipeline creates the end-to-end daily run.
func ProvideDailyPipeline(
	cfg *config.Config,
	fetch *usecase.FetchBarsUseCase,
	bars repository.BarStore,
	scorer *usecase.DailyScoringUseCase,
	commenter *usecase.CommentUseCase,
	snaps *usecase.MarketSnapshotUseCase,
	pub repository.EventPublisher,
	c cache.Service,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.DailyPipeline {
	p := usecase.NewDailyPipeline(fetch, bars, scorer, commenter, snaps, pub, c, cfg.Report.RunLockTTL, m)
	p.SetLogger(l)
	return p
}

// ProvideReportQuery creates the cached read side.
func ProvideReportQuery(cfg *config.Config, bars repository.BarStore, scores repository.ScoreStore, reports repository.ReportStore, snaps *usecase.MarketSnapshotUseCase, c cache.Service, l *applogger.Logger) *usecase.ReportQueryUseCase {
	uc := usecase.NewReportQueryUseCase(bars, scores, reports, snaps, c, cfg.Report.CacheTTL)
	uc.SetLogger(l)
	return uc
}

// ProvideRunQueue creates the background run queue with the daily-run job
// registered; Redis-backed when Redis is enabled.
func ProvideRunQueue(cfg *config.Config, rc *cache.RedisCache, pipeline *usecase.DailyPipeline, l *applogger.Logger) queue.Queue {
	qcfg := &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		QueueSize:  cfg.Queue.Size,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}
	var q queue.Queue
	if rc != nil {
		var opts []queue.RedisQueueOption
		if cfg.Redis.Prefix != "" {
			opts = append(opts, queue.WithKeyPrefix(cfg.Redis.Prefix+":queue"))
		}
		q = queue.NewRedisQueue(l, qcfg, rc.Client(), opts...)
	} else {
		q = queue.NewMemoryQueue(l, qcfg)
	}
	job := usecase.NewRunJob(pipeline, cfg.Location())
	job.SetLogger(l)
	q.RegisterJob(job)
	return q
}

// ProvideRunDispatcher publishes run requests to Kafka when enabled, otherwise
// queues them.
func ProvideRunDispatcher(cfg *config.Config, producer *pkgkafka.Producer, q queue.Queue) usecase.RunDispatcher {
	if producer != nil {
		return usecase.NewKafkaRunDispatcher(producer, cfg.Kafka.RequestTopic)
	}
	return usecase.NewQueueRunDispatcher(q)
}

// ProvideKafkaConsumer creates the run-request consumer; nil when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.SetLogger(l)
	consumer.WithConsumerHook(pkgkafka.TraceHook())
	return consumer, nil
}

// ProvideKafkaRunHandler handles run requests from the request topic.
func ProvideKafkaRunHandler(cfg *config.Config, pipeline *usecase.DailyPipeline, l *applogger.Logger) *usecase.KafkaRunHandler {
	h := usecase.NewKafkaRunHandler(cfg.Kafka.RequestTopic, pipeline, cfg.Location())
	h.SetLogger(l)
	return h
}

// ProvideHTTPHandler creates the report API.
func ProvideHTTPHandler(cfg *config.Config, l *applogger.Logger, query *usecase.ReportQueryUseCase, dispatch usecase.RunDispatcher, ch *pkgch.Client) *api.ReportsEchoHandler {
	rl := ratelimit.New(cfg.Server.RunRateLimit.Capacity, cfg.Server.RunRateLimit.RefillPerSec)
	h := api.NewReportsEchoHandler(l, query, dispatch, rl, cfg.Location())
	h.SetHealthCheck(ch.Health)
	return h
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handler *api.ReportsEchoHandler,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaRunHandler,
	q queue.Queue,
	pub repository.EventPublisher,
	c cache.Service,
	ch *pkgch.Client,
) *server.App {
	app := server.New(cfg, l, handler, consumer, kh, q)
	app.OnClose("event publisher", pub)
	app.OnClose("cache", c)
	app.OnClose("clickhouse", ch)
	return app
}

// Toolkit exposes the use cases to one-shot CLI commands.
type Toolkit struct {
	Logger   *applogger.Logger
	Fetch    *usecase.FetchBarsUseCase
	Scoring  *usecase.DailyScoringUseCase
	Comment  *usecase.CommentUseCase
	Snapshot *usecase.MarketSnapshotUseCase
	Pipeline *usecase.DailyPipeline
	Location *time.Location

	pub repository.EventPublisher
	c   cache.Service
	ch  *pkgch.Client
}

// ProvideToolkit bundles the use cases and the resources they hold.
func ProvideToolkit(
	cfg *config.Config,
	l *applogger.Logger,
	fetch *usecase.FetchBarsUseCase,
	scorer *usecase.DailyScoringUseCase,
	commenter *usecase.CommentUseCase,
	snaps *usecase.MarketSnapshotUseCase,
	pipeline *usecase.DailyPipeline,
	pub repository.EventPublisher,
	c cache.Service,
	ch *pkgch.Client,
) *Toolkit {
	return &Toolkit{
		Logger:   l,
		Fetch:    fetch,
		Scoring:  scorer,
		Comment:  commenter,
		Snapshot: snaps,
		Pipeline: pipeline,
		Location: cfg.Location(),
		pub:      pub,
		c:        c,
		ch:       ch,
	}
}

// Close releases the publisher, cache and ClickHouse connection.
func (t *Toolkit) Close() {
	if err := t.pub.Close(); err != nil {
		t.Logger.Warn("event publisher close error", applogger.Error(err))
	}
	if err := t.c.Close(); err != nil {
		t.Logger.Warn("cache close error", applogger.Error(err))
	}
	if err := t.ch.Close(); err != nil {
		t.Logger.Warn("clickhouse close error", applogger.Error(err))
	}
}
