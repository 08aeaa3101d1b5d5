package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"civicrank/core"
)

// Options tunes the engine. Zero values fall back to the defaults.
type Options struct {
	Logger         *slog.Logger
	Now            func() time.Time
	LikeWindow     time.Duration
	Retention      time.Duration
	TrendingWindow time.Duration
	RecentWindow   time.Duration
}

func DefaultOptions() Options {
	return Options{
		Logger:         slog.Default(),
		Now:            func() time.Time { return time.Now().UTC() },
		LikeWindow:     DefaultLikeWindow,
		Retention:      DefaultRetention,
		TrendingWindow: DefaultTrendingWindow,
		RecentWindow:   DefaultRecentWindow,
	}
}

// Service wires storage, the event bus and the engine components into one API.
type Service struct {
	storage  Storage
	bus      *EventBus
	log      *slog.Logger
	now      func() time.Time
	rules    *RuleResolver
	levels   *LevelProgression
	notifier *Notifier
	ledger   *Ledger
	trending *TrendingRanker
}

func NewService(storage Storage, bus *EventBus, opts Options) *Service {
	if storage == nil || bus == nil {
		panic("NewService requires non-nil storage and bus")
	}
	def := DefaultOptions()
	if opts.Logger == nil {
		opts.Logger = def.Logger
	}
	if opts.Now == nil {
		opts.Now = def.Now
	}
	s := &Service{storage: storage, bus: bus, log: opts.Logger, now: opts.Now}
	s.rules = NewRuleResolver(storage, opts.Logger)
	s.notifier = NewNotifier(storage, bus, opts.Logger, opts.Now, opts.LikeWindow, opts.Retention)
	s.levels = NewLevelProgression(storage, storage, s.notifier, bus, opts.Logger)
	s.ledger = NewLedger(storage, s.rules, s.levels, s.notifier, bus, opts.Logger, opts.Now)
	s.trending = NewTrendingRanker(storage, opts.Now, opts.TrendingWindow, opts.RecentWindow)
	return s
}

func (s *Service) Subscribe(typ core.EventType, handler Handler) func() {
	return s.bus.Subscribe(typ, handler)
}

func (s *Service) SubscribeAll(handler Handler) func() {
	return s.bus.SubscribeAll(handler)
}

func (s *Service) Publish(ctx context.Context, ev core.Event) {
	s.bus.Publish(ctx, ev)
}

func (s *Service) Notifier() *Notifier { return s.notifier }

func (s *Service) AwardPoints(ctx context.Context, req AwardRequest) (AwardResult, error) {
	return s.ledger.AwardPoints(ctx, req)
}

func (s *Service) ManualAdjustment(ctx context.Context, admin, user core.UserID, points int64, reason string) (AwardResult, error) {
	return s.ledger.ManualAdjustment(ctx, admin, user, points, reason)
}

func (s *Service) UserPointHistory(ctx context.Context, user core.UserID, limit int) ([]core.PointTransaction, error) {
	return s.ledger.UserPointHistory(ctx, user, limit)
}

func (s *Service) UpdateLevel(ctx context.Context, user core.UserID, points int64) (core.Level, bool, error) {
	return s.levels.UpdateLevel(ctx, user, points)
}

func (s *Service) EnsureDefaultLevels(ctx context.Context) ([]core.Level, error) {
	return s.levels.EnsureDefaultLevels(ctx)
}

func (s *Service) Levels(ctx context.Context) ([]core.Level, error) {
	return s.storage.ListLevels(ctx)
}

func (s *Service) Progress(ctx context.Context, points int64) (core.Progress, error) {
	return s.levels.Progress(ctx, points)
}

func (s *Service) UserProgress(ctx context.Context, user core.UserID) (core.User, core.Progress, error) {
	return s.levels.UserProgress(ctx, user)
}

func (s *Service) Trending(ctx context.Context, limit int) (TrendingResult, error) {
	return s.trending.Rank(ctx, limit)
}

func (s *Service) GetUser(ctx context.Context, user core.UserID) (core.User, error) {
	return s.storage.GetUser(ctx, user)
}

func (s *Service) FindUserByUsername(ctx context.Context, username string) (core.User, error) {
	return s.storage.FindUserByUsername(ctx, username)
}

func (s *Service) ListRules(ctx context.Context) ([]core.PointRule, error) {
	return s.storage.ListRules(ctx)
}

// SaveRule creates or updates a point rule.
func (s *Service) SaveRule(ctx context.Context, rule core.PointRule) (core.PointRule, error) {
	rule.EventType = strings.TrimSpace(rule.EventType)
	if rule.EventType == "" {
		return core.PointRule{}, ErrEmptyEventType
	}
	if rule.EventCondition != nil && strings.TrimSpace(*rule.EventCondition) == "" {
		rule.EventCondition = nil
	}
	now := s.now()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now
	if err := s.storage.SaveRule(ctx, &rule); err != nil {
		return core.PointRule{}, err
	}
	return rule, nil
}

func (s *Service) DeleteRule(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("rule id cannot be empty")
	}
	return s.storage.DeleteRule(ctx, id)
}

// CleanupOldNotifications drops notifications past the retention horizon.
func (s *Service) CleanupOldNotifications(ctx context.Context) (int64, error) {
	return s.notifier.CleanupOldNotifications(ctx)
}

func (s *Service) Close() { s.bus.Close() }
