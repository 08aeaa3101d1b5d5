package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"civicrank/core"
)

// Sink posts domain events to configured HTTP endpoints.
// Delivery is synchronous; register it on an async bus to keep the award path fast.
type Sink struct {
	client    *http.Client
	endpoints []string
	types     map[core.EventType]struct{}
	log       *slog.Logger
}

// Option configures a Sink.
type Option func(*Sink)

// WithClient overrides the HTTP client (defaults to 2s timeout).
func WithClient(c *http.Client) Option {
	return func(s *Sink) {
		if c != nil {
			s.client = c
		}
	}
}

// WithEvents limits delivery to the given event types. Level-ups and point awards are sent by default.
func WithEvents(types ...core.EventType) Option {
	return func(s *Sink) {
		s.types = map[core.EventType]struct{}{}
		for _, t := range types {
			s.types[t] = struct{}{}
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Sink) {
		if l != nil {
			s.log = l
		}
	}
}

// New creates a webhook sink.
func New(endpoints []string, opts ...Option) *Sink {
	s := &Sink{
		client: &http.Client{Timeout: 2 * time.Second},
		log:    slog.Default(),
		types: map[core.EventType]struct{}{
			core.EventPointsAwarded: {},
			core.EventLevelUp:       {},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.endpoints = append([]string{}, endpoints...)
	return s
}

// OnEvent posts the event JSON to all endpoints. Failures are logged and never retried.
func (s *Sink) OnEvent(e core.Event) {
	s.Deliver(context.Background(), e)
}

// Deliver posts e and returns how many endpoints accepted it.
func (s *Sink) Deliver(ctx context.Context, e core.Event) int {
	if len(s.endpoints) == 0 {
		return 0
	}
	if _, ok := s.types[e.Type]; !ok {
		return 0
	}
	body, err := json.Marshal(e)
	if err != nil {
		s.log.Error("webhook encode failed", "type", e.Type, "error", err)
		return 0
	}
	delivered := 0
	for _, ep := range s.endpoints {
		if err := s.post(ctx, ep, e.Type, body); err != nil {
			s.log.Warn("webhook delivery failed", "endpoint", ep, "type", e.Type, "user", e.UserID, "error", err)
			continue
		}
		delivered++
	}
	return delivered
}

func (s *Sink) post(ctx context.Context, endpoint string, typ core.EventType, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Civicrank-Event", string(typ))
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Handler adapts the sink to the engine bus handler signature.
func (s *Sink) Handler() func(context.Context, core.Event) {
	return func(ctx context.Context, e core.Event) { s.Deliver(ctx, e) }
}
