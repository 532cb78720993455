package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/trailshare/trailshare/config"
	"github.com/trailshare/trailshare/internal/api/rpc"
	"github.com/trailshare/trailshare/internal/broker/kafka"
	"github.com/trailshare/trailshare/internal/cache"
	"github.com/trailshare/trailshare/internal/cache/rediscache"
	"github.com/trailshare/trailshare/internal/services/tracks"
	"github.com/trailshare/trailshare/internal/storage/pgtrack"
)

type trailAPIApp struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   trailAPIOpts

	handler  http.Handler
	svc      *tracks.Service
	consumer *kafka.Consumer
	closeDB  func()
}

func mustBootstrapTrailAPI() *trailAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	httpAddr := cfg.TrailShare.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.TrailShare.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "trail-api"
	}
	topic := cfg.Kafka.TrackChangedTopicName
	if topic == "" {
		topic = "track.changed"
	}
	cacheTTL := time.Duration(cfg.TrailShare.TrackCacheTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}

	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
	st := mustOpenPostgresWithRetry(connString, 60*time.Second)

	var trackCache *rediscache.RedisCache
	var limiter *rediscache.RateLimiter
	if cfg.Redis.Host != "" {
		redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
		trackCache = rediscache.New(redisAddr)
		limiter = rediscache.NewRateLimiter(redisAddr)
	}

	var producer *kafka.Producer
	var consumer *kafka.Consumer
	if cfg.Kafka.Host != "" {
		brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
		producer = kafka.NewProducer(brokers)
		consumer = kafka.NewConsumer(brokers, topic, consumerGroup)
	}

	// Avoid handing typed nils to the service: it checks interfaces
	// against nil to decide whether a concern is enabled.
	var svcCache cache.BytesCache
	svcTTL := time.Duration(0)
	if trackCache != nil {
		svcCache = trackCache
		svcTTL = cacheTTL
	}
	var svcPub tracks.Publisher
	svcTopic := ""
	if producer != nil {
		svcPub = producer
		svcTopic = topic
	}
	svc := tracks.New(st, svcCache, svcTTL, svcPub, svcTopic)

	rpcOpts := rpc.Options{
		CORSAllowOrigin: cfg.TrailShare.CORSAllowOrigin,
		MaxBodyBytes:    cfg.TrailShare.MaxTrackBytes,
		StaticDir:       cfg.TrailShare.StaticDir,
		SwaggerPath:     os.Getenv("swaggerPath"),
	}
	if limiter != nil && cfg.TrailShare.RateLimitPerMinute > 0 {
		rpcOpts.RateLimiter = limiter
		rpcOpts.RateLimitPerMin = cfg.TrailShare.RateLimitPerMinute
	}
	handler := rpc.NewServer(svc, rpcOpts).Router()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &trailAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: trailAPIOpts{
			httpAddr:      httpAddr,
			topic:         topic,
			consumerGroup: consumerGroup,
		},
		handler:  handler,
		svc:      svc,
		consumer: consumer,
		closeDB:  st.Close,
	}
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgtrack.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgtrack.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *trailAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	if a.closeDB != nil {
		a.closeDB()
	}
}

func (a *trailAPIApp) Run() error {
	var consumer kafkaConsumer
	if a.consumer != nil {
		consumer = a.consumer
	}
	return runTrailAPI(a.ctx, a.opts, a.handler, a.svc, consumer)
}
