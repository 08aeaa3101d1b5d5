package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mem "civicrank/adapters/memory"
	"civicrank/core"
)

var _ Storage = (*mem.Store)(nil)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	svc   *Service
	store *mem.Store
	clock *testClock
	ctx   context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := mem.New()
	clock := &testClock{t: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
	svc := NewService(store, NewEventBus(DispatchSync), Options{Now: clock.Now})
	t.Cleanup(svc.Close)
	return &fixture{svc: svc, store: store, clock: clock, ctx: context.Background()}
}

func (f *fixture) user(t *testing.T, id core.UserID, username, fullName string, role core.Role) core.User {
	t.Helper()
	u := core.User{ID: id, Username: username, FullName: fullName, Role: role}
	require.NoError(t, f.store.SaveUser(f.ctx, &u))
	return u
}

func (f *fixture) rule(t *testing.T, eventType string, cond *string, points int64) core.PointRule {
	t.Helper()
	r, err := f.svc.SaveRule(f.ctx, core.PointRule{EventType: eventType, EventCondition: cond, Points: points, Description: eventType + " reward", IsActive: true})
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	return r
}

func (f *fixture) forum(t *testing.T, id core.ForumID, owner core.UserID) {
	t.Helper()
	require.NoError(t, f.store.SaveForum(f.ctx, &core.Forum{ID: id, UserID: owner, Title: "Jalan rusak", CreatedAt: f.clock.Now()}))
}

func TestServiceLevelUpEventOnAward(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.EnsureDefaultLevels(f.ctx)
	require.NoError(t, err)
	f.user(t, "u1", "budi", "Budi Santoso", core.RoleUser)
	_, _, err = f.svc.UpdateLevel(f.ctx, "u1", 0)
	require.NoError(t, err)
	f.rule(t, "create_post", nil, 120)

	var levelUps []core.Event
	f.svc.Subscribe(core.EventLevelUp, func(_ context.Context, e core.Event) { levelUps = append(levelUps, e) })

	res, err := f.svc.AwardPoints(f.ctx, AwardRequest{UserID: "u1", EventType: "create_post"})
	require.NoError(t, err)
	require.NotNil(t, res.Level)
	assert.Equal(t, "Level GatotKaca", res.Level.Name)
	require.Len(t, levelUps, 1)
	assert.Equal(t, int64(120), levelUps[0].Total)

	notes, _, err := f.svc.Notifier().Inbox(f.ctx, "u1", 0)
	require.NoError(t, err)
	var kinds []core.NotificationType
	for _, n := range notes {
		kinds = append(kinds, n.Type)
	}
	assert.Contains(t, kinds, core.NotifyLevelUp)
	assert.Contains(t, kinds, core.NotifyPoints)
}

func TestServiceRulesCRUD(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.SaveRule(f.ctx, core.PointRule{EventType: "  "})
	assert.ErrorIs(t, err, ErrEmptyEventType)

	blank := " "
	r, err := f.svc.SaveRule(f.ctx, core.PointRule{EventType: "vote", EventCondition: &blank, Points: 2, IsActive: true})
	require.NoError(t, err)
	assert.Nil(t, r.EventCondition)
	assert.NotEmpty(t, r.ID)

	rules, err := f.svc.ListRules(f.ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)

	require.NoError(t, f.svc.DeleteRule(f.ctx, r.ID))
	rules, err = f.svc.ListRules(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, rules)
	assert.Error(t, f.svc.DeleteRule(f.ctx, ""))
}

func TestRuleResolverOldestWins(t *testing.T) {
	f := newFixture(t)
	first := f.rule(t, "comment", nil, 5)
	f.rule(t, "comment", nil, 50)

	rule, ok, err := f.svc.rules.Resolve(f.ctx, "comment", nil)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first.ID, rule.ID)

	_, ok, err = f.svc.rules.Resolve(f.ctx, "unknown", nil)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = f.svc.rules.Resolve(f.ctx, "", nil)
	assert.ErrorIs(t, err, ErrEmptyEventType)
}

func TestRuleResolverZeroPointRuleIsNoRule(t *testing.T) {
	f := newFixture(t)
	f.rule(t, "view", nil, 0)
	_, ok, err := f.svc.rules.Resolve(f.ctx, "view", nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestServicePointStatisticsReadsStorage(t *testing.T) {
	f := newFixture(t)
	f.user(t, "u1", "budi", "", core.RoleUser)
	f.user(t, "u2", "siti", "", core.RoleUser)
	require.NoError(t, f.store.InsertTransaction(f.ctx, &core.PointTransaction{UserID: "u1", Points: 30, EventType: "create_post"}))
	require.NoError(t, f.store.InsertTransaction(f.ctx, &core.PointTransaction{UserID: "u2", Points: 5, EventType: "comment"}))
	_, err := f.store.IncrementPoints(f.ctx, "u1", 30)
	require.NoError(t, err)
	_, err = f.store.IncrementPoints(f.ctx, "u2", 5)
	require.NoError(t, err)

	f.rule(t, "comment", nil, 5)
	_, err = f.svc.AwardPoints(f.ctx, AwardRequest{UserID: "u2", EventType: "comment"})
	require.NoError(t, err)

	stats, err := f.svc.PointStatistics(f.ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(40), stats.Distributed)
	assert.Equal(t, int64(3), stats.Transactions)
	require.Len(t, stats.ByEventType, 2)
	assert.Equal(t, "create_post", stats.ByEventType[0].EventType)
	assert.Equal(t, int64(10), stats.ByEventType[1].Points)
	require.Len(t, stats.TopUsers, 2)
	assert.Equal(t, core.UserID("u1"), stats.TopUsers[0].ID)

	top, err := f.svc.TopUsers(f.ctx, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
}
