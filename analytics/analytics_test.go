package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civicrank/core"
)

func at(ev core.Event, t time.Time) core.Event {
	ev.Time = t
	return ev
}

func TestDAUCountsActorsPerDay(t *testing.T) {
	d := NewDAU()
	day1 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)

	d.OnEvent(at(core.NewPointsAwarded("alice", "create_post", 10, 10), day1))
	d.OnEvent(at(core.NewPointsAwarded("alice", "vote", 1, 11), day1))
	d.OnEvent(at(core.NewPointsAwarded("bob", "vote", 1, 1), day1))
	d.OnEvent(at(core.NewPointsAwarded("bob", "vote", 1, 2), day2))
	d.OnEvent(at(core.NewNotificationEvent(core.Notification{UserID: "carol"}), day1))

	assert.Equal(t, 2, d.Count("2024-05-01"))
	assert.Equal(t, 1, d.Count("2024-05-02"))
	assert.Equal(t, 0, d.Count("2024-05-03"))
}

func TestDAUPrunesOldDays(t *testing.T) {
	d := NewDAU().WithRetention(3)
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		d.OnEvent(at(core.NewPointsAwarded("alice", "vote", 1, int64(i+1)), start.AddDate(0, 0, i)))
	}
	assert.Equal(t, 3, d.Days())
	assert.Zero(t, d.Count("2024-05-02"))
	assert.Equal(t, 1, d.Count("2024-05-03"))
	assert.Equal(t, 1, d.CountAt(start.AddDate(0, 0, 4)))

	d.OnEvent(at(core.NewPointsAwarded("bob", "vote", 1, 1), start.AddDate(0, 1, 0)))
	assert.Equal(t, 1, d.Days())
}

func TestPointStatsSnapshot(t *testing.T) {
	p := NewPointStats()
	day := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	p.OnEvent(at(core.NewPointsAwarded("alice", "create_post", 10, 10), day))
	p.OnEvent(at(core.NewPointsAwarded("bob", "create_post", 10, 10), day))
	p.OnEvent(at(core.NewPointsAwarded("bob", "vote", 2, 12), day))
	p.OnEvent(at(core.NewPointsAwarded("alice", "manual_adjustment", -5, 5), day))
	p.OnEvent(core.NewLevelUp("bob", core.Level{Name: "Level GatotKaca", Points: 100}, 120))
	p.OnEvent(core.NewNotificationEvent(core.Notification{UserID: "bob", Type: core.NotifyLevelUp}))

	s := p.Snapshot()
	assert.Equal(t, int64(22), s.TotalAwarded)
	assert.Equal(t, int64(5), s.TotalDeducted)
	assert.Equal(t, int64(4), s.Transactions)
	assert.Equal(t, int64(1), s.LevelUps)
	assert.Equal(t, int64(1), s.Notifications)
	assert.Equal(t, int64(22), s.AwardedByDay["2024-05-01"])
	assert.Equal(t, int64(1), s.LevelReached["Level GatotKaca"])

	require.Len(t, s.BySource, 3)
	assert.Equal(t, SourceStats{Source: "create_post", Transactions: 2, Awarded: 20}, s.BySource[0])
	assert.Equal(t, "vote", s.BySource[1].Source)
	assert.Equal(t, SourceStats{Source: "manual_adjustment", Transactions: 1, Deducted: 5}, s.BySource[2])
}

func TestSnapshotIsDetached(t *testing.T) {
	p := NewPointStats()
	p.OnEvent(core.NewPointsAwarded("alice", "vote", 1, 1))
	s := p.Snapshot()
	s.AwardedByDay["x"] = 99
	assert.NotContains(t, p.Snapshot().AwardedByDay, "x")
}

func TestBridgeAndHandlerFanOut(t *testing.T) {
	dau := NewDAU()
	stats := NewPointStats()
	h := Handler(NewBridge(dau, stats))

	ev := core.NewPointsAwarded("alice", "create_post", 10, 10)
	h(context.Background(), ev)

	assert.Equal(t, 1, dau.Count(ev.Time.UTC().Format("2006-01-02")))
	assert.Equal(t, int64(10), stats.Snapshot().TotalAwarded)
}
