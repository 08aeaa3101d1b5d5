package leaderboard

import (
	"context"

	"civicrank/core"
)

// Entry is one citizen's standing on the points board.
type Entry struct {
	User   core.UserID `json:"user_id"`
	Points int64       `json:"points"`
	Rank   int         `json:"rank,omitempty"`
}

// Board abstracts leaderboard operations.
type Board interface {
	Update(user core.UserID, points int64)
	Remove(user core.UserID)
	TopN(n int) []Entry
	Range(offset, n int) []Entry
	Get(user core.UserID) (Entry, bool)
	Len() int
}

// Feed returns an event handler that keeps b in step with awarded totals.
// Register it for core.EventPointsAwarded on the engine bus.
func Feed(b Board) func(context.Context, core.Event) {
	return func(_ context.Context, ev core.Event) {
		if ev.Type != core.EventPointsAwarded || ev.UserID == "" {
			return
		}
		b.Update(ev.UserID, ev.Total)
	}
}

// Source lists stored users by current points, highest first.
type Source interface {
	TopUsers(ctx context.Context, limit int) ([]core.User, error)
}

// Seed loads up to limit stored totals into b and reports how many were loaded.
// Feed keeps the board current afterwards.
func Seed(ctx context.Context, b Board, src Source, limit int) (int, error) {
	users, err := src.TopUsers(ctx, limit)
	if err != nil {
		return 0, err
	}
	for _, u := range users {
		b.Update(u.ID, u.CurrentPoints)
	}
	return len(users), nil
}
