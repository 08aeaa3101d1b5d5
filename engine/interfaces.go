package engine

import (
	"context"
	"time"

	"civicrank/core"
)

// RuleStore persists point rules.
type RuleStore interface {
	// ActiveRules returns active rules matching eventType exactly; a nil condition
	// selects rules whose condition IS NULL. Results are ordered oldest first.
	ActiveRules(ctx context.Context, eventType string, condition *string) ([]core.PointRule, error)
	ListRules(ctx context.Context) ([]core.PointRule, error)
	SaveRule(ctx context.Context, rule *core.PointRule) error
	DeleteRule(ctx context.Context, id string) error
}

// LedgerStore is the append-only transaction log.
type LedgerStore interface {
	InsertTransaction(ctx context.Context, tx *core.PointTransaction) error
	// ListTransactions returns a user's transactions newest first.
	ListTransactions(ctx context.Context, user core.UserID, limit int) ([]core.PointTransaction, error)
	// LedgerTotals sums every stored transaction, with the per-type breakdown
	// ordered by points descending.
	LedgerTotals(ctx context.Context) (core.LedgerTotals, error)
}

// UserStore exposes the user columns the engine owns.
type UserStore interface {
	GetUser(ctx context.Context, id core.UserID) (core.User, error)
	FindUserByUsername(ctx context.Context, username string) (core.User, error)
	// FindUserByFullName matches a case-insensitive substring of the full name.
	FindUserByFullName(ctx context.Context, fragment string) (core.User, error)
	// IncrementPoints atomically adds delta to current_points and returns the new total.
	IncrementPoints(ctx context.Context, id core.UserID, delta int64) (int64, error)
	SetLevel(ctx context.Context, id core.UserID, levelID string) error
	SaveUser(ctx context.Context, u *core.User) error
	// TopUsers returns users by current points descending, then id.
	TopUsers(ctx context.Context, limit int) ([]core.User, error)
}

// LevelStore persists the level ladder.
type LevelStore interface {
	// ListLevels returns levels ascending by threshold.
	ListLevels(ctx context.Context) ([]core.Level, error)
	InsertLevels(ctx context.Context, levels []core.Level) error
}

// NotificationStore persists notifications.
type NotificationStore interface {
	InsertNotification(ctx context.Context, n *core.Notification) error
	UpdateNotification(ctx context.Context, n core.Notification) error
	// FindRecentLike returns the newest like notification for (user, forum) created at or after since.
	FindRecentLike(ctx context.Context, user core.UserID, forum core.ForumID, since time.Time) (core.Notification, error)
	ListNotifications(ctx context.Context, user core.UserID, limit int) ([]core.Notification, error)
	MarkRead(ctx context.Context, user core.UserID, id string, at time.Time) error
	MarkAllRead(ctx context.Context, user core.UserID, at time.Time) (int64, error)
	CountUnread(ctx context.Context, user core.UserID) (int64, error)
	DeleteNotificationsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ForumStore gives read access to posts.
type ForumStore interface {
	GetForum(ctx context.Context, id core.ForumID) (core.Forum, error)
	// RecentForums returns non-deleted posts created at or after since, newest first.
	RecentForums(ctx context.Context, since time.Time) ([]core.Forum, error)
	SaveForum(ctx context.Context, f *core.Forum) error
}

// Storage abstracts persistence for the whole engine.
type Storage interface {
	RuleStore
	LedgerStore
	UserStore
	LevelStore
	NotificationStore
	ForumStore
}
