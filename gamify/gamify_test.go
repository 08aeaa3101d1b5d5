package gamify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mem "civicrank/adapters/memory"
	"civicrank/analytics"
	"civicrank/core"
	"civicrank/engine"
	"civicrank/integrations/webhook"
	"civicrank/leaderboard"
	"civicrank/realtime"
)

func seed(t *testing.T, store *mem.Store, svc *engine.Service) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.SaveUser(ctx, &core.User{ID: "alice", Username: "alice", FullName: "Alice Wijaya", Role: core.RoleUser}))
	_, err := svc.EnsureDefaultLevels(ctx)
	require.NoError(t, err)
	_, err = svc.SaveRule(ctx, core.PointRule{EventType: "create_post", Points: 120, IsActive: true})
	require.NoError(t, err)
}

func TestNewWiresSubscribers(t *testing.T) {
	store := mem.New()
	hub := realtime.NewHub()
	board := leaderboard.NewSkipList()
	stats := analytics.NewPointStats()

	var hooks atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev core.Event
		_ = json.NewDecoder(r.Body).Decode(&ev)
		hooks.Add(1)
	}))
	defer srv.Close()

	clock := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	svc := New(
		WithStorage(store),
		WithDispatchMode(engine.DispatchSync),
		WithClock(func() time.Time { return clock }),
		WithRealtime(hub),
		WithLeaderboard(board),
		WithAnalytics(stats),
		WithWebhook(webhook.New([]string{srv.URL}, webhook.WithEvents(core.EventPointsAwarded))),
	)
	defer svc.Close()
	seed(t, store, svc)

	_, ch := hub.SubscribeUser(16, "alice")
	res, err := svc.AwardPoints(context.Background(), engine.AwardRequest{UserID: "alice", EventType: "create_post"})
	require.NoError(t, err)
	assert.Equal(t, int64(120), res.Points)

	e, ok := board.Get("alice")
	require.True(t, ok)
	assert.Equal(t, int64(120), e.Points)
	assert.Equal(t, int64(120), stats.Snapshot().TotalAwarded)
	assert.Equal(t, int32(1), hooks.Load())
	assert.NotEmpty(t, ch)
}

func TestNewDefaultsToMemoryAndAsync(t *testing.T) {
	svc := New()
	defer svc.Close()
	res, err := svc.AwardPoints(context.Background(), engine.AwardRequest{UserID: "ghost", EventType: "vote"})
	require.NoError(t, err)
	assert.Zero(t, res.Points)
	assert.Equal(t, "user not found", res.Message)
}
