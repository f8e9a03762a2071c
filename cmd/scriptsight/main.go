package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Hussein-Mohammed/ScriptSight/internal/analytics"
	"github.com/Hussein-Mohammed/ScriptSight/internal/analytics/aggregator"
	"github.com/Hussein-Mohammed/ScriptSight/internal/cache"
	"github.com/Hussein-Mohammed/ScriptSight/internal/collection"
	"github.com/Hussein-Mohammed/ScriptSight/internal/export"
	"github.com/Hussein-Mohammed/ScriptSight/internal/query"
	"github.com/Hussein-Mohammed/ScriptSight/internal/server/handler"
	"github.com/Hussein-Mohammed/ScriptSight/pkg/config"
	"github.com/Hussein-Mohammed/ScriptSight/pkg/health"
	"github.com/Hussein-Mohammed/ScriptSight/pkg/kafka"
	"github.com/Hussein-Mohammed/ScriptSight/pkg/logger"
	"github.com/Hussein-Mohammed/ScriptSight/pkg/metrics"
	"github.com/Hussein-Mohammed/ScriptSight/pkg/middleware"
	"github.com/Hussein-Mohammed/ScriptSight/pkg/postgres"
	pkgredis "github.com/Hussein-Mohammed/ScriptSight/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting catalogue service", "port", cfg.Server.Port, "catalogue_dir", cfg.Catalogue.CatalogueDir)

	m := metrics.New()
	if cfg.Metrics.Enabled {
		stopMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = stopMetrics(shutdownCtx)
		}()
	}

	router, err := collection.NewRouter(cfg.Catalogue)
	if err != nil {
		slog.Error("failed to load catalogues", "error", err)
		os.Exit(1)
	}
	m.ActiveCollections.Set(float64(router.Count()))
	for _, info := range router.Collections() {
		m.CollectionPageCount.WithLabelValues(info.Name).Set(float64(info.PageCount))
		m.PagesLoadedTotal.WithLabelValues(info.Name).Add(float64(info.PageCount))
	}
	slog.Info("catalogues loaded", "collections", router.Count())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var queryCache *cache.QueryCache
	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, query caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, m, slog.Default())
		slog.Info("query cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	var ledger *export.Ledger
	pgClient, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, export ledger disabled", "error", err)
	} else {
		defer pgClient.Close()
		ledger, err = export.NewLedger(ctx, pgClient)
		if err != nil {
			slog.Error("failed to initialise export ledger", "error", err)
			os.Exit(1)
		}
		slog.Info("export ledger enabled", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	}

	analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
	defer analyticsProducer.Close()
	collector := analytics.NewCollector(analyticsProducer, 10000)
	collector.Start(ctx)
	defer collector.Close()
	slog.Info("analytics collector started", "topic", cfg.Kafka.Topics.AnalyticsEvents)

	agg := analytics.NewAggregator()
	analyticsConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, analytics.HandleEvent(agg))
	analyticsH := analytics.NewHandler(agg)
	go func() {
		if err := agg.Start(ctx, analyticsConsumer); err != nil {
			slog.Error("analytics aggregator error", "error", err)
		}
	}()

	if pgClient != nil {
		store, err := aggregator.NewStore(ctx, pgClient)
		if err != nil {
			slog.Warn("analytics snapshots disabled", "error", err)
		} else {
			store.StartPeriodicSave(ctx, agg, 5*time.Minute)
		}
	}

	checker := health.NewChecker()
	checker.Register("catalogues", func(ctx context.Context) health.ComponentHealth {
		if router.Count() > 0 {
			return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d collections loaded", router.Count())}
		}
		return health.ComponentHealth{Status: health.StatusDown, Message: "no collections"}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if pgClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := pgClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	evaluator := query.NewEvaluator(slog.Default())
	exporter := export.NewExporter(cfg.Export, ledger, m, slog.Default())
	h := handler.New(router, evaluator, queryCache, exporter, ledger, collector, m, cfg.Query)

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("catalogue service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("catalogue service stopped")
}
