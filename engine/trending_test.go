package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civicrank/core"
)

func TestTrendingScoreExample(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	post := core.Forum{ViewsCount: 100, CommentCount: 5, Upvotes: 10, CreatedAt: now.Add(-24 * time.Hour)}

	score, recent := TrendingScore(post, now.Add(-DefaultRecentWindow))
	assert.True(t, recent)
	assert.Equal(t, int64(79), score)

	post.CreatedAt = now.Add(-5 * 24 * time.Hour)
	score, recent = TrendingScore(post, now.Add(-DefaultRecentWindow))
	assert.False(t, recent)
	assert.Equal(t, int64(66), score)
}

func TestTrendingRank(t *testing.T) {
	f := newFixture(t)
	now := f.clock.Now()
	deletedAt := now
	posts := []core.Forum{
		{ID: "old", ViewsCount: 10000, CreatedAt: now.Add(-8 * 24 * time.Hour)},
		{ID: "deleted", ViewsCount: 10000, CreatedAt: now.Add(-time.Hour), DeletedAt: &deletedAt},
		{ID: "mid", ViewsCount: 50, CreatedAt: now.Add(-4 * 24 * time.Hour)},
		{ID: "hot", ViewsCount: 200, CommentCount: 3, CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "tie-a", ViewsCount: 10, CreatedAt: now.Add(-3 * time.Hour)},
		{ID: "tie-b", ViewsCount: 10, CreatedAt: now.Add(-5 * time.Hour)},
	}
	for i := range posts {
		require.NoError(t, f.store.SaveForum(f.ctx, &posts[i]))
	}

	res, err := f.svc.Trending(f.ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Metadata.TotalChecked)
	assert.Equal(t, 3, res.Metadata.Returned)
	assert.Equal(t, now.Add(-7*24*time.Hour), res.Metadata.DateRange.PostsSince)
	assert.Equal(t, now.Add(-3*24*time.Hour), res.Metadata.DateRange.RecentBoostSince)

	var ids []core.ForumID
	for _, p := range res.Posts {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []core.ForumID{"hot", "mid", "tie-a"}, ids)
	assert.True(t, res.Posts[0].IsRecent)
	assert.False(t, res.Posts[1].IsRecent)
	for i := 1; i < len(res.Posts); i++ {
		assert.GreaterOrEqual(t, res.Posts[i-1].TrendingScore, res.Posts[i].TrendingScore)
	}
}

func TestTrendingDefaultsAndEmpty(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Trending(f.ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, res.Posts)
	assert.Zero(t, res.Metadata.TotalChecked)

	for i := 0; i < 12; i++ {
		require.NoError(t, f.store.SaveForum(f.ctx, &core.Forum{ID: core.ForumID(fmt.Sprintf("p%d", i)), ViewsCount: int64(i), CreatedAt: f.clock.Now()}))
	}
	res, err = f.svc.Trending(f.ctx, -1)
	require.NoError(t, err)
	assert.Len(t, res.Posts, DefaultTrendingLimit)
	assert.Equal(t, core.ForumID("p11"), res.Posts[0].ID)
}
