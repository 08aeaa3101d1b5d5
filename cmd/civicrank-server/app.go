package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"civicrank/adapters/jsonfile"
	mem "civicrank/adapters/memory"
	redisAdapter "civicrank/adapters/redis"
	sqlxAdapter "civicrank/adapters/sqlx"
	"civicrank/analytics"
	"civicrank/api/httpapi"
	"civicrank/config"
	"civicrank/core"
	"civicrank/engine"
	"civicrank/gamify"
	"civicrank/integrations/webhook"
	"civicrank/jobs"
	"civicrank/leaderboard"
	"civicrank/realtime"
)

// App aggregates the assembled server components.
type App struct {
	Config      *config.Config
	Logger      *slog.Logger
	Hub         *realtime.Hub
	Leaderboard leaderboard.Board
	Service     *engine.Service
	Scheduler   *jobs.Scheduler
	Handler     http.Handler
	Server      *http.Server
}

// provideConfig reads an optional .env file, then CIVICRANK_CONFIG_FILE if set,
// then CIVICRANK_* overrides.
func provideConfig() (*config.Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if path := os.Getenv(config.EnvPrefix + "_CONFIG_FILE"); path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func provideLogger(cfg *config.Config) *slog.Logger {
	return setupLogging(cfg)
}

func provideHub() *realtime.Hub {
	return realtime.NewHub()
}

func provideLeaderboard() leaderboard.Board {
	return leaderboard.NewSkipList()
}

func provideStats() *analytics.PointStats {
	return analytics.NewPointStats()
}

func provideDAU(cfg *config.Config) *analytics.DAU {
	return analytics.NewDAU().WithRetention(cfg.Engine.DAURetentionDays)
}

// provideStorage opens the configured adapter. The cleanup closes connections.
func provideStorage(ctx context.Context, cfg *config.Config, log *slog.Logger) (engine.Storage, func(), error) {
	noop := func() {}
	switch cfg.Storage.Adapter {
	case "memory":
		return mem.New(), noop, nil
	case "file":
		s, err := jsonfile.New(cfg.Storage.File.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil
	case "redis":
		s, err := redisAdapter.New(cfg.Storage.Redis)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case "sql":
		s, err := sqlxAdapter.New(cfg.Storage.SQL)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Storage.Migrate {
			if err := s.Migrate(ctx); err != nil {
				_ = s.Close()
				return nil, nil, fmt.Errorf("migrate: %w", err)
			}
			log.Info("schema migrated", "driver", cfg.Storage.SQL.Driver)
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage adapter: %s", cfg.Storage.Adapter)
	}
}

// provideWebhook returns nil when no endpoints are configured.
func provideWebhook(cfg *config.Config, log *slog.Logger) *webhook.Sink {
	in := cfg.Integrations
	if len(in.WebhookEndpoints) == 0 {
		return nil
	}
	types := make([]core.EventType, 0, len(in.WebhookEvents))
	for _, t := range in.WebhookEvents {
		types = append(types, core.EventType(t))
	}
	return webhook.New(in.WebhookEndpoints,
		webhook.WithClient(&http.Client{Timeout: in.WebhookTimeout}),
		webhook.WithEvents(types...),
		webhook.WithLogger(log),
	)
}

func provideService(cfg *config.Config, log *slog.Logger, storage engine.Storage, hub *realtime.Hub, board leaderboard.Board, stats *analytics.PointStats, dau *analytics.DAU, sink *webhook.Sink) (*engine.Service, func()) {
	mode := engine.DispatchAsync
	if cfg.Engine.DispatchMode == "sync" {
		mode = engine.DispatchSync
	}
	opts := []gamify.Option{
		gamify.WithStorage(storage),
		gamify.WithDispatchMode(mode),
		gamify.WithLogger(log),
		gamify.WithLikeWindow(cfg.Engine.LikeWindow),
		gamify.WithRetention(cfg.Engine.Retention),
		gamify.WithTrendingWindows(cfg.Engine.TrendingWindow, cfg.Engine.RecentWindow),
		gamify.WithRealtime(hub),
		gamify.WithLeaderboard(board),
		gamify.WithAnalytics(dau, stats),
	}
	if sink != nil {
		opts = append(opts, gamify.WithWebhook(sink))
	}
	svc := gamify.New(opts...)
	return svc, svc.Close
}

// provideScheduler returns nil when background jobs are disabled.
func provideScheduler(cfg *config.Config, svc *engine.Service, log *slog.Logger) (*jobs.Scheduler, error) {
	if !cfg.Jobs.Enabled {
		return nil, nil
	}
	return jobs.NewScheduler(svc, cfg.Jobs.CleanupSchedule, log)
}

func provideHandler(cfg *config.Config, log *slog.Logger, svc *engine.Service, hub *realtime.Hub, board leaderboard.Board, stats *analytics.PointStats, dau *analytics.DAU) http.Handler {
	return httpapi.NewRouter(svc, httpapi.Deps{Hub: hub, Leaderboard: board, Stats: stats, DAU: dau}, httpapi.Options{
		PathPrefix:       cfg.Server.PathPrefix,
		AllowCORSOrigin:  cfg.Server.CORSOrigin,
		APIKeys:          cfg.Security.APIKeys,
		RateLimitEnabled: cfg.Security.EnableRateLimit,
		RateLimitRPM:     cfg.Security.RateLimit.RequestsPerMinute,
		RateLimitBurst:   cfg.Security.RateLimit.BurstSize,
		Logger:           log,
	})
}

func provideServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}

// setupLogging configures the logger based on configuration.
func setupLogging(cfg *config.Config) *slog.Logger {
	out := os.Stdout
	if cfg.Logging.Output == "stderr" {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}

	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}
	if len(cfg.Logging.Attributes) > 0 {
		handler = handler.WithAttrs(convertAttributes(cfg.Logging.Attributes))
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func convertAttributes(attrs map[string]string) []slog.Attr {
	result := make([]slog.Attr, 0, len(attrs))
	for k, v := range attrs {
		result = append(result, slog.String(k, v))
	}
	return result
}
