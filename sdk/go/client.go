package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"civicrank/core"
)

// Option configures the Client.
type Option func(*Client)

// Client provides typed access to the civicrank HTTP + WebSocket API.
type Client struct {
	baseURL    string
	wsURL      string
	httpClient *http.Client
	headers    http.Header
}

// NewClient constructs a new SDK client targeting the given baseURL (e.g., http://localhost:8080/api).
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("baseURL is required")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	c := &Client{
		baseURL:    baseURL,
		wsURL:      deriveWSURL(baseURL),
		httpClient: http.DefaultClient,
		headers:    make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithAuthToken adds an Authorization: Bearer token header to all requests (HTTP + WS).
func WithAuthToken(token string) Option {
	return func(c *Client) {
		if strings.TrimSpace(token) != "" {
			c.headers.Set("Authorization", "Bearer "+token)
		}
	}
}

// WithAPIKey adds an X-API-Key header.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		if strings.TrimSpace(key) != "" {
			c.headers.Set("X-API-Key", key)
		}
	}
}

// WithHeader sets an arbitrary header applied to HTTP and WS calls.
func WithHeader(k, v string) Option {
	return func(c *Client) {
		if k != "" {
			c.headers.Set(k, v)
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeJSON(resp, out)
}

func userPath(userID, suffix string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", ErrEmptyUserID
	}
	return "/users/" + url.PathEscape(userID) + suffix, nil
}

// AwardPoints applies the matching point rule for an event.
func (c *Client) AwardPoints(ctx context.Context, in AwardRequest) (AwardResult, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return AwardResult{}, ErrEmptyUserID
	}
	var out AwardResult
	err := c.do(ctx, http.MethodPost, "/points/award", in, &out)
	return out, err
}

// AdjustPoints applies an admin correction to the user with the given username.
func (c *Client) AdjustPoints(ctx context.Context, adminID, username string, points int64, reason string) (Adjustment, error) {
	body := map[string]any{"admin_id": adminID, "username": username, "points": points, "reason": reason}
	var out Adjustment
	err := c.do(ctx, http.MethodPost, "/points/adjust", body, &out)
	return out, err
}

// History lists a user's point transactions, newest first. A zero limit uses the server default.
func (c *Client) History(ctx context.Context, userID string, limit int) ([]core.PointTransaction, error) {
	p, err := userPath(userID, "/points")
	if err != nil {
		return nil, err
	}
	if limit > 0 {
		p += "?limit=" + strconv.Itoa(limit)
	}
	var out struct {
		Transactions []core.PointTransaction `json:"transactions"`
	}
	err = c.do(ctx, http.MethodGet, p, nil, &out)
	return out.Transactions, err
}

func (c *Client) Progress(ctx context.Context, userID string) (UserProgress, error) {
	p, err := userPath(userID, "/progress")
	if err != nil {
		return UserProgress{}, err
	}
	var out UserProgress
	err = c.do(ctx, http.MethodGet, p, nil, &out)
	return out, err
}

func (c *Client) Trending(ctx context.Context, limit int) (TrendingResult, error) {
	p := "/trending"
	if limit > 0 {
		p += "?limit=" + strconv.Itoa(limit)
	}
	var out TrendingResult
	err := c.do(ctx, http.MethodGet, p, nil, &out)
	return out, err
}

func (c *Client) Notifications(ctx context.Context, userID string, limit int) (Inbox, error) {
	p, err := userPath(userID, "/notifications")
	if err != nil {
		return Inbox{}, err
	}
	if limit > 0 {
		p += "?limit=" + strconv.Itoa(limit)
	}
	var out Inbox
	err = c.do(ctx, http.MethodGet, p, nil, &out)
	return out, err
}

// MarkAllRead marks every notification of the user read and returns how many changed.
func (c *Client) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	p, err := userPath(userID, "/notifications/read-all")
	if err != nil {
		return 0, err
	}
	var out struct {
		Updated int64 `json:"updated"`
	}
	err = c.do(ctx, http.MethodPost, p, nil, &out)
	return out.Updated, err
}

// Like records a like on a forum post and reports whether the owner was notified.
func (c *Client) Like(ctx context.Context, forumID, userID string) (bool, error) {
	if strings.TrimSpace(userID) == "" {
		return false, ErrEmptyUserID
	}
	var out struct {
		Sent bool `json:"sent"`
	}
	err := c.do(ctx, http.MethodPost, "/forums/"+url.PathEscape(forumID)+"/likes", map[string]string{"user_id": userID}, &out)
	return out.Sent, err
}

// Health calls /healthz and returns status + storage check.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	var hs HealthStatus
	err := c.do(ctx, http.MethodGet, "/healthz", nil, &hs)
	return hs, err
}

// SubscribeEvents connects to the WebSocket stream and emits core.Event values.
// A non-empty userID limits the stream to that user's events.
// The returned channel closes when ctx is done or the connection drops.
func (c *Client) SubscribeEvents(ctx context.Context, userID string) (<-chan core.Event, error) {
	if c.wsURL == "" {
		return nil, errors.New("wsURL is not set; ensure baseURL is http/https")
	}
	target := c.wsURL
	if userID != "" {
		target += "?user=" + url.QueryEscape(userID)
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, target, c.headers)
	if err != nil {
		return nil, err
	}

	out := make(chan core.Event, 32)
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	go func() {
		defer close(out)
		defer conn.Close()
		for {
			var evt core.Event
			if err := conn.ReadJSON(&evt); err != nil {
				return
			}
			select {
			case out <- evt:
			default:
				// drop if consumer is slow
			}
		}
	}()
	return out, nil
}

func (c *Client) applyHeaders(r *http.Request) {
	for k, vals := range c.headers {
		for _, v := range vals {
			r.Header.Add(k, v)
		}
	}
}

func deriveWSURL(httpBase string) string {
	u, err := url.Parse(httpBase)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		// leave as-is for custom schemes
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String()
}
