package core

import "time"

// EventType enumerates domain events.
type EventType string

const (
	EventPointsAwarded EventType = "points_awarded"
	EventLevelUp       EventType = "level_up"
	EventNotification  EventType = "notification"
)

// Event represents an immutable domain event.
type Event struct {
	Type         EventType      `json:"type"`
	Time         time.Time      `json:"time"`
	UserID       UserID         `json:"user_id"`
	Source       string         `json:"source,omitempty"`
	Delta        int64          `json:"delta,omitempty"`
	Total        int64          `json:"total,omitempty"`
	Level        *Level         `json:"level,omitempty"`
	Notification *Notification  `json:"notification,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// NewPointsAwarded records a change of delta points caused by the source event type.
func NewPointsAwarded(user UserID, source string, delta, total int64) Event {
	return Event{Type: EventPointsAwarded, Time: time.Now().UTC(), UserID: user, Source: source, Delta: delta, Total: total}
}

func NewLevelUp(user UserID, level Level, total int64) Event {
	return Event{Type: EventLevelUp, Time: time.Now().UTC(), UserID: user, Level: &level, Total: total}
}

func NewNotificationEvent(n Notification) Event {
	return Event{Type: EventNotification, Time: time.Now().UTC(), UserID: n.UserID, Notification: &n}
}
