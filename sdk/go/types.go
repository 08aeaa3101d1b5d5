package sdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"civicrank/core"
	"civicrank/engine"
)

// AwardResult mirrors the engine's award outcome.
type AwardResult = engine.AwardResult

// TrendingResult mirrors the ranked trending response.
type TrendingResult = engine.TrendingResult

// AwardRequest is the body of POST /points/award.
type AwardRequest struct {
	UserID         string          `json:"user_id"`
	EventType      string          `json:"event_type"`
	EventCondition *string         `json:"event_condition,omitempty"`
	Related        core.RelatedIDs `json:"related"`
	AwardedBy      *string         `json:"awarded_by,omitempty"`
	Description    string          `json:"description,omitempty"`
}

// Adjustment is the response of POST /points/adjust.
type Adjustment struct {
	Result AwardResult `json:"result"`
	User   core.User   `json:"user"`
}

// UserProgress is the response of GET /users/:id/progress.
type UserProgress struct {
	User     core.User     `json:"user"`
	Progress core.Progress `json:"progress"`
}

// Inbox is the response of GET /users/:id/notifications.
type Inbox struct {
	Notifications []core.Notification `json:"notifications"`
	UnreadCount   int64               `json:"unread_count"`
}

// HealthStatus describes the /healthz response.
type HealthStatus struct {
	Status string                 `json:"status"`
	Checks map[string]interface{} `json:"checks"`
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("request failed: status %d", e.StatusCode)
	}
	return fmt.Sprintf("request failed: status %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func decodeJSON(resp *http.Response, target any) error {
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}
	if target == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

// ErrEmptyUserID is returned when user id is empty.
var ErrEmptyUserID = errors.New("user id is required")
