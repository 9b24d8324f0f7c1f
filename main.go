// Command streamlytics is the main entrypoint for the Twitch streams ETL
// service. It:
//   - Loads configuration and initializes structured logging.
//   - Connects to Postgres and runs idempotent migrations.
//   - Starts the periodic ETL job: extract live streams from Helix, transform
//     them into normalized records, and append them to the historical store.
//   - Exposes a minimal HTTP server with /healthz, /readyz, /status, and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/streamlytics/config"
	"github.com/onnwee/streamlytics/db"
	"github.com/onnwee/streamlytics/extract"
	"github.com/onnwee/streamlytics/gamecache"
	"github.com/onnwee/streamlytics/pipeline"
	"github.com/onnwee/streamlytics/server"
	"github.com/onnwee/streamlytics/telemetry"
	"github.com/onnwee/streamlytics/transform"
	"github.com/onnwee/streamlytics/twitchapi"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	setupLogging()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.ValidateExtractReady(); err != nil {
		slog.Error("config incomplete", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("streamlytics", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// DB
	database, err := db.ConnectDSN(cfg.DBDsn)
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			slog.Error("failed to close database", slog.Any("err", err))
		}
	}()

	// Migrations: versioned files first, embedded SQL as the fallback for
	// deployments shipped without the migration directory.
	slog.Info("running database migrations", slog.String("component", "db_migrate"))
	if err := db.RunMigrations(database); err != nil {
		slog.Warn("versioned migrations failed, attempting fallback to embedded SQL",
			slog.Any("err", err), slog.String("component", "db_migrate"))
		if err := db.Migrate(context.Background(), database); err != nil {
			slog.Error("failed to migrate db (both versioned and embedded SQL failed)", slog.Any("err", err))
			os.Exit(1)
		}
		slog.Info("embedded SQL migration completed", slog.String("component", "db_migrate"))
	} else {
		slog.Info("versioned migrations completed", slog.String("component", "db_migrate"))
	}

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tokenSource := &twitchapi.TokenSource{ClientID: cfg.TwitchClientID, ClientSecret: cfg.TwitchClientSecret}

	// Best-effort: acquire an app access token up front so credential problems
	// surface at startup rather than mid-cycle.
	{
		tctx, cancel := context.WithTimeout(ctx, 8*time.Second)
		if tok, err := tokenSource.Get(tctx); err != nil {
			slog.Warn("twitch app token fetch failed", slog.Any("err", err))
		} else if len(tok) > 6 {
			slog.Info("twitch app token acquired", slog.String("tail", "***"+tok[len(tok)-6:]))
		}
		cancel()
	}

	helix := &twitchapi.HelixClient{AppTokenSource: tokenSource, ClientID: cfg.TwitchClientID}

	// Game reference cache: shared Redis when configured, in-process otherwise.
	var cache gamecache.Cache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		cache = gamecache.NewRedisCache(rdb, cfg.GameCacheTTL)
		slog.Info("game cache: redis", slog.String("addr", cfg.RedisAddr))
	} else {
		cache = gamecache.NewMemoryCache()
		slog.Info("game cache: in-memory")
	}
	var resolver transform.GameResolver = &gamecache.CachedResolver{Cache: cache, Next: helix}

	p := &pipeline.Pipeline{
		DB: database,
		Extractor: &extract.Extractor{
			Client:    helix,
			MaxPages:  cfg.MaxPages,
			PerPage:   cfg.PerPage,
			Languages: cfg.Languages,
			DataDir:   cfg.DataDir,
		},
		Resolver: resolver,
		DataDir:  cfg.DataDir,
	}
	go pipeline.StartETLJob(ctx, p, cfg.ETLInterval)

	// HTTP server (health/status/metrics)
	go func() {
		slog.Info("http server starting", slog.String("addr", cfg.HTTPAddr))
		if err := server.Start(ctx, database, cfg.HTTPAddr); err != nil {
			slog.Error("http server exited", slog.Any("err", err))
		}
	}()

	slog.Info("service started")
	<-ctx.Done()
	slog.Info("shutting down")
	// Give in-flight HTTP shutdown a moment before process exit.
	time.Sleep(200 * time.Millisecond)
}

// setupLogging configures slog from LOG_LEVEL and LOG_FORMAT.
// Defaults: level=info, format=text.
func setupLogging() {
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	var handler slog.Handler
	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()))
}
