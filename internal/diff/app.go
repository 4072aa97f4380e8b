package diff

import (
	"context"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	"github.com/redis/go-redis/v9"

	"github.com/kart-io/revdiff/internal/diff/biz"
	"github.com/kart-io/revdiff/internal/diff/handler"
	"github.com/kart-io/revdiff/internal/diff/router"
	"github.com/kart-io/revdiff/internal/diff/store"
	"github.com/kart-io/revdiff/internal/pkg/extract"
	"github.com/kart-io/revdiff/pkg/app"
	"github.com/kart-io/revdiff/pkg/cache"
	"github.com/kart-io/revdiff/pkg/llm"
	"github.com/kart-io/revdiff/pkg/server"

	// Register gateway providers.
	_ "github.com/kart-io/revdiff/pkg/llm/ollama"
	_ "github.com/kart-io/revdiff/pkg/llm/openai"
)

const (
	appName        = "revdiff"
	appDescription = `revdiff — AI-assisted document version comparison service

This server provides:
  - AI-generated summaries of changes between document versions
  - Multi-tier caching of version metadata, extracted content and results
  - Per-user usage accounting, cost estimation and rate limiting`

	cacheNamespace = "revdiff"

	redisPingTimeout = 3 * time.Second
)

// NewApp creates the application instance.
func NewApp() *app.App {
	opts := NewOptions()

	return app.NewApp(
		app.WithName(appName),
		app.WithShortDescription("AI-assisted version comparison service"),
		app.WithDescription(appDescription),
		app.WithOptions(opts),
		app.WithRunFunc(func() error {
			return Run(opts)
		}),
	)
}

// Run runs the comparison service with the given options.
func Run(opts *Options) error {
	// 1. Initialize the logger.
	if err := opts.Log.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Infow("Starting comparison service", "service", appName)

	// 2. Open the database and run migrations.
	factory, err := store.NewFactory(opts.DB)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = factory.Close() }()
	logger.Infow("Storage initialized", "driver", opts.DB.Driver)

	// 3. Select the cache backend.
	cacheStore := newCacheStore(opts)
	defer func() { _ = cacheStore.Close() }()

	// 4. Construct the AI gateway.
	gateway, err := llm.NewGateway(opts.LLM.Provider, opts.LLM.ToConfigMap())
	if err != nil {
		return fmt.Errorf("failed to initialize AI gateway: %w", err)
	}
	logger.Infow("AI gateway initialized", "provider", gateway.Name(), "model", opts.LLM.Model)

	// 5. Wire the business layer.
	extractor := extract.NewTextExtractor(extract.NewFileStorage(opts.Diff.StorageRoot))
	tracker := biz.NewUsageTracker(factory.Usage(), cacheStore,
		biz.RateLimits{Daily: opts.Diff.DailyLimit, Hourly: opts.Diff.HourlyLimit},
		opts.Diff.StatsSnapshotTTL)
	statsService := biz.NewStatsService(factory.Usage(), cacheStore)
	comparisonService := biz.NewComparisonService(factory, extractor, gateway, tracker, cacheStore, opts.Diff)
	regenerator := biz.NewRegenerator(comparisonService, factory, opts.Diff.RegenWorkers)
	logger.Infow("Business layer initialized")

	// 6. Wire handlers and the server.
	cmpHandler := handler.NewComparisonHandler(comparisonService, regenerator)
	usageHandler := handler.NewUsageHandler(tracker, statsService)

	mgr := server.NewManager(opts.HTTP)
	mgr.AddRunnable(regenerator)
	router.Register(mgr, cmpHandler, usageHandler)

	// 7. Serve until signalled.
	logger.Infow("Comparison service is ready", "addr", opts.HTTP.Addr)
	return mgr.Run()
}

// newCacheStore returns the Redis-backed cache when enabled and reachable,
// falling back to the in-process store so the service can always start.
func newCacheStore(opts *Options) cache.Store {
	if !opts.Redis.Enabled {
		return cache.NewMemoryStore(time.Minute)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         opts.Redis.Addr(),
		Password:     opts.Redis.Password,
		DB:           opts.Redis.Database,
		MaxRetries:   opts.Redis.MaxRetries,
		PoolSize:     opts.Redis.PoolSize,
		MinIdleConns: opts.Redis.MinIdleConns,
		DialTimeout:  opts.Redis.DialTimeout,
		ReadTimeout:  opts.Redis.ReadTimeout,
		WriteTimeout: opts.Redis.WriteTimeout,
		PoolTimeout:  opts.Redis.PoolTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warnw("Redis unreachable, falling back to in-process cache", "addr", opts.Redis.Addr(), "err", err)
		_ = client.Close()
		return cache.NewMemoryStore(time.Minute)
	}

	logger.Infow("Redis cache initialized", "addr", opts.Redis.Addr())
	return cache.NewRedisStore(client, cacheNamespace)
}
