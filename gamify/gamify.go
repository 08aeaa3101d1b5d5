package gamify

import (
	"context"
	"log/slog"
	"time"

	mem "civicrank/adapters/memory"
	"civicrank/analytics"
	"civicrank/core"
	"civicrank/engine"
	"civicrank/integrations/webhook"
	"civicrank/leaderboard"
	"civicrank/realtime"
)

// Option configures the service builder.
type Option func(*config)

type config struct {
	storage engine.Storage
	mode    engine.DispatchMode
	opts    engine.Options
	hub     *realtime.Hub
	board   leaderboard.Board
	hooks   []analytics.Hook
	sink    *webhook.Sink
}

// WithStorage sets the persistence adapter.
func WithStorage(s engine.Storage) Option { return func(c *config) { c.storage = s } }

// WithDispatchMode selects sync or async event dispatch.
func WithDispatchMode(m engine.DispatchMode) Option { return func(c *config) { c.mode = m } }

func WithLogger(l *slog.Logger) Option { return func(c *config) { c.opts.Logger = l } }

// WithClock replaces the wall clock used for timestamps and windows.
func WithClock(now func() time.Time) Option { return func(c *config) { c.opts.Now = now } }

// WithLikeWindow sets how long like notifications keep coalescing.
func WithLikeWindow(d time.Duration) Option { return func(c *config) { c.opts.LikeWindow = d } }

// WithRetention sets the age after which notifications are swept.
func WithRetention(d time.Duration) Option { return func(c *config) { c.opts.Retention = d } }

// WithTrendingWindows sets the candidate window and the recency boost window.
func WithTrendingWindows(window, recent time.Duration) Option {
	return func(c *config) {
		c.opts.TrendingWindow = window
		c.opts.RecentWindow = recent
	}
}

// WithRealtime wires a realtime hub to receive all engine events.
func WithRealtime(h *realtime.Hub) Option { return func(c *config) { c.hub = h } }

// WithLeaderboard keeps b updated from awarded totals.
func WithLeaderboard(b leaderboard.Board) Option { return func(c *config) { c.board = b } }

// WithAnalytics registers hooks for every engine event.
func WithAnalytics(hooks ...analytics.Hook) Option {
	return func(c *config) { c.hooks = append(c.hooks, hooks...) }
}

// WithWebhook forwards events to an HTTP sink.
func WithWebhook(s *webhook.Sink) Option { return func(c *config) { c.sink = s } }

// New builds a configured engine service. If not provided, defaults are used:
//   - storage: in-memory
//   - dispatch: async
func New(opts ...Option) *engine.Service {
	cfg := &config{mode: engine.DispatchAsync}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.storage == nil {
		cfg.storage = mem.New()
	}
	bus := engine.NewEventBus(cfg.mode)
	svc := engine.NewService(cfg.storage, bus, cfg.opts)
	if cfg.hub != nil {
		svc.SubscribeAll(func(ctx context.Context, e core.Event) { cfg.hub.Broadcast(ctx, e) })
	}
	if cfg.board != nil {
		svc.Subscribe(core.EventPointsAwarded, leaderboard.Feed(cfg.board))
	}
	if len(cfg.hooks) > 0 {
		svc.SubscribeAll(analytics.Handler(analytics.NewBridge(cfg.hooks...)))
	}
	if cfg.sink != nil {
		svc.SubscribeAll(cfg.sink.Handler())
	}
	return svc
}
