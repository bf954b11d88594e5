package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mohammed-shakir/geoview/internal/aoi"
	"github.com/mohammed-shakir/geoview/internal/backend"
	_ "github.com/mohammed-shakir/geoview/internal/backend/engine"
	_ "github.com/mohammed-shakir/geoview/internal/backend/vector"
	"github.com/mohammed-shakir/geoview/internal/catalog"
	"github.com/mohammed-shakir/geoview/internal/core/config"
	"github.com/mohammed-shakir/geoview/internal/core/executor"
	"github.com/mohammed-shakir/geoview/internal/core/health"
	"github.com/mohammed-shakir/geoview/internal/core/httpclient"
	"github.com/mohammed-shakir/geoview/internal/core/observability"
	"github.com/mohammed-shakir/geoview/internal/core/ogc"
	"github.com/mohammed-shakir/geoview/internal/core/router"
	"github.com/mohammed-shakir/geoview/internal/core/server"
	"github.com/mohammed-shakir/geoview/internal/crs"
	"github.com/mohammed-shakir/geoview/internal/events"
	"github.com/mohammed-shakir/geoview/internal/legend"
	"github.com/mohammed-shakir/geoview/internal/logger"
	"github.com/mohammed-shakir/geoview/internal/metrics"
	"github.com/mohammed-shakir/geoview/internal/query"
	"github.com/mohammed-shakir/geoview/internal/querycache"
	"github.com/mohammed-shakir/geoview/internal/querycache/redisstore"
	"github.com/mohammed-shakir/geoview/internal/session"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	envFile := flag.String("env", ".env", "dotenv file loaded before the environment")
	catalogFlag := flag.String("catalog", "", "layer catalog path (overrides LAYER_CATALOG)")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		slog.Error("config", "err", err)
		return 1
	}
	if *catalogFlag != "" {
		cfg.LayerCatalog = strings.TrimSpace(*catalogFlag)
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		Backend:   cfg.MapBackend,
		Component: "geoviewd",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)
	crs.SetLogger(appLog.With("component", "crs"))

	appLog.Info("starting geoviewd",
		"addr", cfg.Addr,
		"version", Version,
		"geoserver", cfg.GeoServerURL,
		"backend", cfg.MapBackend,
		"catalog", cfg.LayerCatalog)

	cat, err := catalog.Load(cfg.LayerCatalog)
	if err != nil {
		appLog.Error("failed to load layer catalog", "err", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpClient := httpclient.NewOutbound(
		httpclient.WithTimeout(cfg.UpstreamTimeout),
		httpclient.WithUserAgent("geoview/"+Version),
		httpclient.WithMaxIdlePerHost(cfg.Query.Concurrency*4),
	)
	exec, err := executor.New(appLog, httpClient, ogc.OWSEndpoint(cfg.GeoServerURL))
	if err != nil {
		appLog.Error("failed to initialize executor", "err", err)
		return 1
	}

	var (
		source executor.Interface = exec
		cache  router.CacheInvalidator
		checks []health.Check
	)
	if cfg.Cache.Enabled {
		rc, err := redisstore.New(ctx, cfg.Cache.RedisAddr)
		if err != nil {
			appLog.Error("redis unavailable, query cache disabled", "addr", cfg.Cache.RedisAddr, "err", err)
		} else {
			defer func() { _ = rc.Close() }()
			cached, err := querycache.New(exec, rc, cfg.Cache.TTL, appLog)
			if err != nil {
				appLog.Error("query cache setup failed", "err", err)
				return 1
			}
			source, cache = cached, cached
			checks = append(checks, health.Check{Name: "redis", Fn: rc.Ping})
			appLog.Info("query cache enabled", "redis", cfg.Cache.RedisAddr, "ttl", cfg.Cache.TTL)
		}
	}

	b, err := backend.New(cfg.MapBackend, backend.Deps{
		Logger:  appLog,
		Legends: legend.NewFetcher(httpClient, cfg.LegendCache),
	})
	if err != nil {
		appLog.Error("map backend setup failed", "err", err)
		return 1
	}
	observability.SetBackend(string(b.Kind()))

	opts := session.Options{
		Max: cfg.SessionMax,
		Query: query.Config{
			ClickTolerancePx: cfg.Query.ClickTolerancePx,
			BoxSizePx:        cfg.Query.BoxSizePx,
			BoxMinZoom:       cfg.Query.BoxMinZoom,
			PageSize:         cfg.Query.PageSize,
			MaxPages:         cfg.Query.MaxPages,
			Concurrency:      cfg.Query.Concurrency,
		},
	}
	if cfg.Events.Enabled {
		pub, err := events.NewPublisher(config.Brokers(cfg.Events.Brokers), cfg.Events.Topic, cfg.Events.Queue, appLog)
		if err != nil {
			appLog.Error("kafka unavailable, selection events disabled", "brokers", cfg.Events.Brokers, "err", err)
		} else {
			defer func() { _ = pub.Close() }()
			opts.Observer = pub.Observer()
		}
	}

	store, err := session.NewStore(b, cat, source, opts, appLog)
	if err != nil {
		appLog.Error("session store setup failed", "err", err)
		return 1
	}
	api := router.New(store, aoi.New(cfg.WorkingCRS, appLog), appLog)
	if cache != nil {
		api.WithCache(cache)
	}

	prov := metrics.Init(metrics.Config{
		Enabled: cfg.Metrics.Enabled,
		Addr:    cfg.Metrics.Addr,
		Path:    cfg.Metrics.Path,
		Build: metrics.BuildInfo{
			Version:   Version,
			Revision:  os.Getenv("BUILD_REVISION"),
			Branch:    os.Getenv("BUILD_BRANCH"),
			BuildDate: os.Getenv("BUILD_DATE"),
		},
		Collectors: observability.Collectors(),
	})
	observability.ExposeBuildInfo(Version)

	srvOpts := server.Options{
		MetricsPath:    cfg.Metrics.Path,
		Checks:         checks,
		RequestTimeout: cfg.RequestTimeout,
	}
	switch {
	case !cfg.Metrics.Enabled:
		srvOpts.Metrics = http.NotFoundHandler()
	case cfg.Metrics.Addr != "" && cfg.Metrics.Addr != cfg.Addr:
		srvOpts.Metrics = http.NotFoundHandler()
		go serveMetrics(ctx, appLog, cfg.Metrics.Addr, cfg.Metrics.Path, prov.Handler())
	default:
		srvOpts.Metrics = prov.Handler()
	}

	handler := server.NewHandler(appLog, api, srvOpts)
	if err := server.Run(ctx, cfg, appLog, handler); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped", "sessions", store.Len())
	return 0
}

func serveMetrics(ctx context.Context, log *slog.Logger, addr, path string, h http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(path, h)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("metrics shutdown", "err", err)
		}
	}()
	log.Info("metrics listen", "addr", addr, "path", path)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("metrics server exited", "err", err)
	}
}
