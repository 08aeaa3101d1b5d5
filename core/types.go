package core

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// ErrNotFound is returned by stores when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrOverflow is returned when a points total would leave the int64 range.
var ErrOverflow = errors.New("points total overflow")

// ErrUnknownRole is returned when a role name is outside the closed set.
var ErrUnknownRole = errors.New("unknown role")

// UserID uniquely identifies a user.
type UserID string

// ForumID identifies a forum post (a filed report).
type ForumID string

// Role is the closed set of account roles.
type Role string

const (
	RoleUser     Role = "user"
	RoleEmployee Role = "karyawan"
	RoleAdmin    Role = "admin"
)

// ParseRole maps a stored role name onto the closed Role set.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleUser, RoleEmployee, RoleAdmin:
		return r, nil
	case "":
		return RoleUser, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

// Scan implements sql.Scanner so stored role names pass through ParseRole.
func (r *Role) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case nil:
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("%w: unsupported type %T", ErrUnknownRole, src)
	}
	parsed, err := ParseRole(raw)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// EarnsPoints reports whether automatic awards apply to the role.
// Staff roles never accrue gamification points.
func (r Role) EarnsPoints() bool {
	return r == RoleUser
}

// User is the slice of the user entity the engine reads and writes.
type User struct {
	ID            UserID    `json:"id" db:"id"`
	Username      string    `json:"username" db:"username"`
	FullName      string    `json:"full_name" db:"full_name"`
	Role          Role      `json:"role" db:"role"`
	CurrentPoints int64     `json:"current_points" db:"current_points"`
	LevelID       string    `json:"level_id,omitempty" db:"level_id"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// DisplayName prefers the full name and falls back to the username.
func (u User) DisplayName() string {
	if strings.TrimSpace(u.FullName) != "" {
		return u.FullName
	}
	if u.Username != "" {
		return u.Username
	}
	return "Seseorang"
}

// Handle prefers the username and falls back to the full name.
func (u User) Handle() string {
	if u.Username != "" {
		return u.Username
	}
	if strings.TrimSpace(u.FullName) != "" {
		return u.FullName
	}
	return "Seseorang"
}

// PointRule maps an event class onto a point value.
// A nil EventCondition matches only awards made without a condition.
type PointRule struct {
	ID             string    `json:"id" db:"id"`
	EventType      string    `json:"event_type" db:"event_type"`
	EventCondition *string   `json:"event_condition" db:"event_condition"`
	Points         int64     `json:"points" db:"points"`
	Description    string    `json:"description" db:"description"`
	IsActive       bool      `json:"is_active" db:"is_active"`
	CreatedBy      *UserID   `json:"created_by,omitempty" db:"created_by"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// Matches reports whether the rule applies to the given event.
func (r PointRule) Matches(eventType string, condition *string) bool {
	if !r.IsActive || r.EventType != eventType {
		return false
	}
	if condition == nil {
		return r.EventCondition == nil
	}
	return r.EventCondition != nil && *r.EventCondition == *condition
}

// RelatedIDs links a transaction to the content that triggered it.
type RelatedIDs struct {
	ForumID    *ForumID `json:"forum_id,omitempty"`
	CommentID  *string  `json:"comment_id,omitempty"`
	ReactionID *string  `json:"reaction_id,omitempty"`
}

// PointTransaction is an immutable ledger entry.
type PointTransaction struct {
	ID                string    `json:"id" db:"id"`
	UserID            UserID    `json:"user_id" db:"user_id"`
	Points            int64     `json:"points" db:"points"`
	EventType         string    `json:"event_type" db:"event_type"`
	EventCondition    *string   `json:"event_condition" db:"event_condition"`
	RelatedForumID    *ForumID  `json:"related_forum_id,omitempty" db:"related_forum_id"`
	RelatedCommentID  *string   `json:"related_comment_id,omitempty" db:"related_comment_id"`
	RelatedReactionID *string   `json:"related_reaction_id,omitempty" db:"related_reaction_id"`
	Description       string    `json:"description" db:"description"`
	AwardedBy         *UserID   `json:"awarded_by" db:"awarded_by"`
	RuleID            *string   `json:"rule_id" db:"rule_id"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

// EventTypeTotal sums the ledger for one event type.
type EventTypeTotal struct {
	EventType    string `json:"event_type" db:"event_type"`
	Points       int64  `json:"total_points" db:"total_points"`
	Transactions int64  `json:"transactions" db:"transactions"`
}

// LedgerTotals summarizes every stored transaction. Distributed is the net sum;
// Awarded and Deducted split it by sign.
type LedgerTotals struct {
	Distributed  int64            `json:"total_points_distributed" db:"distributed"`
	Awarded      int64            `json:"total_awarded" db:"awarded"`
	Deducted     int64            `json:"total_deducted" db:"deducted"`
	Transactions int64            `json:"total_transactions" db:"transactions"`
	ByEventType  []EventTypeTotal `json:"by_event_type" db:"-"`
}

// Add folds one transaction into the totals.
func (t *LedgerTotals) Add(tx PointTransaction) {
	t.Distributed += tx.Points
	t.Transactions++
	if tx.Points >= 0 {
		t.Awarded += tx.Points
	} else {
		t.Deducted -= tx.Points
	}
	for i := range t.ByEventType {
		if t.ByEventType[i].EventType == tx.EventType {
			t.ByEventType[i].Points += tx.Points
			t.ByEventType[i].Transactions++
			return
		}
	}
	t.ByEventType = append(t.ByEventType, EventTypeTotal{EventType: tx.EventType, Points: tx.Points, Transactions: 1})
}

// SortByPoints orders the per-type breakdown by points descending, then name.
func (t *LedgerTotals) SortByPoints() {
	sort.Slice(t.ByEventType, func(i, j int) bool {
		a, b := t.ByEventType[i], t.ByEventType[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		return a.EventType < b.EventType
	})
}

// SortUsersByPoints orders users by current points descending, then id.
func SortUsersByPoints(users []User) {
	sort.Slice(users, func(i, j int) bool {
		if users[i].CurrentPoints != users[j].CurrentPoints {
			return users[i].CurrentPoints > users[j].CurrentPoints
		}
		return users[i].ID < users[j].ID
	})
}

// Level is a named tier reached at a minimum point total.
type Level struct {
	ID          string `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Points      int64  `json:"points" db:"points"`
	Description string `json:"description" db:"description"`
}

// NotificationType enumerates notification kinds.
type NotificationType string

const (
	NotifyLike         NotificationType = "like"
	NotifyForumComment NotificationType = "forum_comment"
	NotifyMention      NotificationType = "mention"
	NotifyStatusChange NotificationType = "status_change"
	NotifySystem       NotificationType = "system"
	NotifyLevelUp      NotificationType = "level_up"
	NotifyPoints       NotificationType = "points"
)

// Notification is a message addressed to a single recipient.
// AggregateCount is the number of actors folded into a coalesced like notification.
type Notification struct {
	ID             string           `json:"id" db:"id"`
	UserID         UserID           `json:"user_id" db:"user_id"`
	ForumID        *ForumID         `json:"forum_id" db:"forum_id"`
	Title          string           `json:"title" db:"title"`
	Message        string           `json:"message" db:"message"`
	Type           NotificationType `json:"type" db:"type"`
	AggregateCount int              `json:"aggregate_count" db:"aggregate_count"`
	IsRead         bool             `json:"is_read" db:"is_read"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
	ReadAt         *time.Time       `json:"read_at,omitempty" db:"read_at"`
}

// Forum is the read-only view of a post consumed by ranking and ownership checks.
type Forum struct {
	ID           ForumID    `json:"id" db:"id"`
	UserID       UserID     `json:"user_id" db:"user_id"`
	Title        string     `json:"title" db:"title"`
	ViewsCount   int64      `json:"views_count" db:"views_count"`
	Upvotes      int64      `json:"upvotes" db:"upvotes"`
	Downvotes    int64      `json:"downvotes" db:"downvotes"`
	CommentCount int64      `json:"comment_count" db:"comment_count"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// NormalizeUserID trims user identifiers and rejects empty ones.
func NormalizeUserID(id UserID) (UserID, error) {
	s := strings.TrimSpace(string(id))
	if s == "" {
		return "", errors.New("empty user id")
	}
	return UserID(s), nil
}

// AddPoints adds delta to a points total, refusing to wrap around.
func AddPoints(total, delta int64) (int64, error) {
	if (delta > 0 && total > math.MaxInt64-delta) || (delta < 0 && total < math.MinInt64-delta) {
		return 0, ErrOverflow
	}
	return total + delta, nil
}

// StringPtr returns nil for empty strings.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
