package sdk

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mem "civicrank/adapters/memory"
	"civicrank/api/httpapi"
	"civicrank/core"
	"civicrank/engine"
	"civicrank/realtime"
)

type testServer struct {
	*httptest.Server
	hub *realtime.Hub
}

func newTestServer(t *testing.T, apiKeys ...string) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	store := mem.New()
	hub := realtime.NewHub()
	svc := engine.NewService(store, engine.NewEventBus(engine.DispatchSync), engine.Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	svc.SubscribeAll(func(ctx context.Context, e core.Event) { hub.Broadcast(ctx, e) })
	t.Cleanup(svc.Close)

	require.NoError(t, store.SaveUser(ctx, &core.User{ID: "u-alice", Username: "alice", FullName: "Alice", Role: core.RoleUser}))
	require.NoError(t, store.SaveUser(ctx, &core.User{ID: "u-budi", Username: "budi", FullName: "Budi", Role: core.RoleUser}))
	require.NoError(t, store.SaveForum(ctx, &core.Forum{ID: "f1", UserID: "u-alice", Title: "Banjir", CreatedAt: time.Now().UTC()}))
	_, err := svc.EnsureDefaultLevels(ctx)
	require.NoError(t, err)
	_, err = svc.SaveRule(ctx, core.PointRule{EventType: "create_post", Points: 10, IsActive: true})
	require.NoError(t, err)

	srv := httptest.NewServer(httpapi.NewRouter(svc, httpapi.Deps{Hub: hub}, httpapi.Options{PathPrefix: "/api", APIKeys: apiKeys}))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, hub: hub}
}

func TestClientPointsFlow(t *testing.T) {
	srv := newTestServer(t, "k1")
	client, err := NewClient(srv.URL+"/api", WithAPIKey("k1"))
	require.NoError(t, err)
	ctx := context.Background()

	res, err := client.AwardPoints(ctx, AwardRequest{UserID: "u-alice", EventType: "create_post"})
	require.NoError(t, err)
	assert.Equal(t, int64(10), res.Points)

	adj, err := client.AdjustPoints(ctx, "u-admin", "alice", -3, "duplikat")
	require.NoError(t, err)
	assert.Equal(t, int64(7), adj.Result.TotalPoints)

	_, err = client.AdjustPoints(ctx, "u-admin", "nobody", 5, "x")
	assert.True(t, IsNotFound(err))

	hist, err := client.History(ctx, "u-alice", 10)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "manual_adjustment", hist[0].EventType)

	prog, err := client.Progress(ctx, "u-alice")
	require.NoError(t, err)
	assert.Equal(t, int64(7), prog.User.CurrentPoints)
	require.NotNil(t, prog.Progress.Next)
	assert.Equal(t, int64(93), prog.Progress.PointsToNext)

	_, err = client.History(ctx, "", 0)
	assert.ErrorIs(t, err, ErrEmptyUserID)

	health, err := client.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
}

func TestClientRejectedWithoutKey(t *testing.T) {
	srv := newTestServer(t, "k1")
	client, err := NewClient(srv.URL + "/api")
	require.NoError(t, err)

	_, err = client.Trending(context.Background(), 0)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.StatusCode)
	assert.Equal(t, "unauthorized", apiErr.Code)
}

func TestClientNotifications(t *testing.T) {
	srv := newTestServer(t)
	client, err := NewClient(srv.URL + "/api")
	require.NoError(t, err)
	ctx := context.Background()

	sent, err := client.Like(ctx, "f1", "u-budi")
	require.NoError(t, err)
	assert.True(t, sent)

	inbox, err := client.Notifications(ctx, "u-alice", 0)
	require.NoError(t, err)
	require.Len(t, inbox.Notifications, 1)
	assert.Equal(t, "Budi menyukai laporan Anda", inbox.Notifications[0].Message)
	assert.Equal(t, int64(1), inbox.UnreadCount)

	n, err := client.MarkAllRead(ctx, "u-alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	tr, err := client.Trending(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, tr.Posts, 1)
}

func TestClientSubscribeEvents(t *testing.T) {
	srv := newTestServer(t)
	client, err := NewClient(srv.URL + "/api")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	events, err := client.SubscribeEvents(ctx, "u-alice")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return srv.hub.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	_, err = client.AwardPoints(ctx, AwardRequest{UserID: "u-alice", EventType: "create_post"})
	require.NoError(t, err)

	select {
	case evt := <-events:
		assert.Equal(t, core.UserID("u-alice"), evt.UserID)
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}

func TestDeriveWSURL(t *testing.T) {
	assert.Equal(t, "wss://civic.example/api/ws", deriveWSURL("https://civic.example/api"))
	assert.Equal(t, "ws://localhost:8080/ws", deriveWSURL("http://localhost:8080"))
}
