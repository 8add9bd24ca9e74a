package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"pricewatch/config"
	"pricewatch/internal/domain/repository"
	"pricewatch/internal/domain/service"
	"pricewatch/internal/domain/useCases"
	ws "pricewatch/internal/handlers/websocket"
	"pricewatch/internal/infrastructure/marketdata"
	"pricewatch/internal/infrastructure/queue"
	"pricewatch/internal/infrastructure/storage"
	"pricewatch/internal/infrastructure/store"
)

// AppContext holds all app dependencies
type AppContext struct {
	Config      *config.Config
	Store       repository.AlertStore
	History     repository.TriggerHistory // nil when ClickHouse is not configured
	Engine      useCases.AlertService
	Scheduler   *SweepScheduler
	Broadcaster *ws.WebSocketBroadcaster
	QuoteClient *marketdata.Client // short-TTL cache, feeds the engine
	ReadClient  *marketdata.Client // long-TTL cache, feeds the API reads

	kafkaNotifier *queue.KafkaNotifier
	log           zerolog.Logger
}

// NewApp initializes the app context with all dependencies. Optional
// backends degrade instead of failing startup: an unreachable Redis falls
// back to the in-memory store, and ClickHouse/Kafka are skipped when not
// configured or unavailable.
func NewApp(ctx context.Context, log zerolog.Logger, cfg *config.Config) (*AppContext, error) {
	app := &AppContext{Config: cfg, log: log}

	// Alert document store (Redis, with in-memory fallback)
	redisStore := store.NewRedisAlertStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := redisStore.Ping(pingCtx); err != nil {
		log.Warn().Err(err).Msg("redis unreachable, falling back to in-memory alert store")
		app.Store = store.NewMemoryAlertStore()
	} else {
		app.Store = redisStore
		log.Info().Str("addr", cfg.RedisAddr).Msg("redis alert store initialized")
	}

	// Trigger history (ClickHouse, optional)
	if cfg.ClickhouseAddr != "" {
		history, err := storage.NewClickHouseRepository(storage.ClickHouseConfig{
			Addr:     cfg.ClickhouseAddr,
			Username: cfg.ClickhouseUsername,
			Password: cfg.ClickhousePassword,
			Timeout:  cfg.ClickhouseTimeout,
		})
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to ClickHouse, continuing without trigger history")
		} else {
			app.History = history
			log.Info().Str("addr", cfg.ClickhouseAddr).Msg("ClickHouse trigger history initialized")
		}
	}

	// Market data: one shared limiter per upstream, two cache instances.
	limiter := marketdata.NewLimiter(cfg.RateMinInterval)
	clientCfg := marketdata.ClientConfig{
		BaseURL: cfg.UpstreamBaseURL,
		Timeout: cfg.UpstreamTimeout,
	}
	app.QuoteClient = marketdata.NewClient(clientCfg, marketdata.NewCache(cfg.QuoteCacheTTL), limiter, log)
	app.ReadClient = marketdata.NewClient(clientCfg, marketdata.NewCache(cfg.MarketCacheTTL), limiter, log)

	// Notification fan-out: websocket always, kafka when configured, and a
	// log trace regardless.
	app.Broadcaster = ws.NewWebSocketBroadcaster(log)
	notifiers := []useCases.Notifier{NewLogNotifier(log), app.Broadcaster}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic != "" {
		app.kafkaNotifier = queue.NewKafkaNotifier(queue.KafkaConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaTopic,
		}, log)
		notifiers = append(notifiers, app.kafkaNotifier)
		log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("kafka notifier initialized")
	}

	app.Engine = service.NewAlertEngine(
		app.Store,
		app.QuoteClient,
		NewFanoutNotifier(notifiers...),
		app.History,
		service.AlertEngineConfig{
			BatchSize:  cfg.SweepBatchSize,
			BatchDelay: cfg.SweepBatchDelay,
		},
		log,
	)
	app.Scheduler = NewSweepScheduler(app.Engine, cfg.SweepInterval, log)

	return app, nil
}

// Cleanup performs graceful shutdown of all components
func (a *AppContext) Cleanup(ctx context.Context) {
	if a.kafkaNotifier != nil {
		a.log.Info().Msg("closing kafka notifier")
		if err := a.kafkaNotifier.Close(); err != nil {
			a.log.Warn().Err(err).Msg("error closing kafka notifier")
		}
	}
	a.log.Info().Msg("all resources cleaned up")
}
