package engine

import (
	"context"
	"fmt"
	"log/slog"

	"civicrank/core"
)

// LevelProgression maps point totals onto the level ladder.
type LevelProgression struct {
	users    UserStore
	levels   LevelStore
	notifier *Notifier
	bus      *EventBus
	log      *slog.Logger
}

func NewLevelProgression(users UserStore, levels LevelStore, notifier *Notifier, bus *EventBus, log *slog.Logger) *LevelProgression {
	if log == nil {
		log = slog.Default()
	}
	return &LevelProgression{users: users, levels: levels, notifier: notifier, bus: bus, log: log}
}

// UpdateLevel stores the level qualifying for points when it differs from the
// user's current level, then publishes a level_up event and notifies the user.
// It returns the stored level and whether it changed.
func (p *LevelProgression) UpdateLevel(ctx context.Context, user core.UserID, points int64) (core.Level, bool, error) {
	u, err := p.users.GetUser(ctx, user)
	if err != nil {
		return core.Level{}, false, err
	}
	return p.update(ctx, u, points)
}

func (p *LevelProgression) update(ctx context.Context, u core.User, points int64) (core.Level, bool, error) {
	ladder, err := p.levels.ListLevels(ctx)
	if err != nil {
		return core.Level{}, false, fmt.Errorf("list levels: %w", err)
	}
	level, ok := core.ResolveLevel(ladder, points)
	if !ok || level.ID == u.LevelID {
		return level, false, nil
	}
	if err := p.users.SetLevel(ctx, u.ID, level.ID); err != nil {
		return core.Level{}, false, fmt.Errorf("set level: %w", err)
	}

	p.log.InfoContext(ctx, "user level changed", "user_id", u.ID, "from", u.LevelID, "level", level.Name, "points", points)
	if p.bus != nil {
		p.bus.Publish(ctx, core.NewLevelUp(u.ID, level, points))
	}
	if p.notifier != nil {
		if _, err := p.notifier.SendLevelUp(ctx, u.ID, level); err != nil {
			p.log.WarnContext(ctx, "level-up notification failed", "user_id", u.ID, "error", err)
		}
	}
	return level, true, nil
}

// EnsureDefaultLevels inserts the default ladder entries whose names are missing.
// It returns the levels it created.
func (p *LevelProgression) EnsureDefaultLevels(ctx context.Context) ([]core.Level, error) {
	existing, err := p.levels.ListLevels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list levels: %w", err)
	}
	names := make(map[string]struct{}, len(existing))
	for _, l := range existing {
		names[l.Name] = struct{}{}
	}
	var missing []core.Level
	for _, l := range core.DefaultLevels {
		if _, ok := names[l.Name]; !ok {
			missing = append(missing, l)
		}
	}
	if len(missing) == 0 {
		return nil, nil
	}
	if err := p.levels.InsertLevels(ctx, missing); err != nil {
		return nil, fmt.Errorf("insert levels: %w", err)
	}
	return missing, nil
}

// Progress projects points onto the stored ladder.
func (p *LevelProgression) Progress(ctx context.Context, points int64) (core.Progress, error) {
	ladder, err := p.levels.ListLevels(ctx)
	if err != nil {
		return core.Progress{}, fmt.Errorf("list levels: %w", err)
	}
	return core.ComputeProgress(ladder, points), nil
}

// UserProgress projects a user's current total onto the ladder.
func (p *LevelProgression) UserProgress(ctx context.Context, user core.UserID) (core.User, core.Progress, error) {
	u, err := p.users.GetUser(ctx, user)
	if err != nil {
		return core.User{}, core.Progress{}, err
	}
	prog, err := p.Progress(ctx, u.CurrentPoints)
	return u, prog, err
}
