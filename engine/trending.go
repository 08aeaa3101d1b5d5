package engine

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"civicrank/core"
)

const (
	DefaultTrendingLimit  = 10
	DefaultTrendingWindow = 7 * 24 * time.Hour
	DefaultRecentWindow   = 3 * 24 * time.Hour

	viewWeight    = 0.6
	commentWeight = 0.3
	commentFactor = 3
	upvoteWeight  = 0.1
	recentBoost   = 1.2
)

// TrendingPost is a post annotated with its ranking score.
type TrendingPost struct {
	core.Forum
	TrendingScore int64 `json:"trending_score"`
	IsRecent      bool  `json:"is_recent"`
}

type DateRange struct {
	PostsSince       time.Time `json:"posts_since"`
	RecentBoostSince time.Time `json:"recent_boost_since"`
}

type TrendingMetadata struct {
	TotalChecked int       `json:"total_checked"`
	Returned     int       `json:"returned"`
	DateRange    DateRange `json:"date_range"`
}

type TrendingResult struct {
	Posts    []TrendingPost   `json:"posts"`
	Metadata TrendingMetadata `json:"metadata"`
}

// TrendingRanker scores recent posts by views, comments and upvotes.
type TrendingRanker struct {
	forums ForumStore
	now    func() time.Time
	window time.Duration
	recent time.Duration
}

func NewTrendingRanker(forums ForumStore, now func() time.Time, window, recent time.Duration) *TrendingRanker {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	if window <= 0 {
		window = DefaultTrendingWindow
	}
	if recent <= 0 {
		recent = DefaultRecentWindow
	}
	return &TrendingRanker{forums: forums, now: now, window: window, recent: recent}
}

// TrendingScore computes the rounded score of a post given the recency cutoff.
func TrendingScore(f core.Forum, recentSince time.Time) (int64, bool) {
	base := float64(f.ViewsCount)*viewWeight +
		float64(f.CommentCount*commentFactor)*commentWeight +
		float64(f.Upvotes)*upvoteWeight
	isRecent := !f.CreatedAt.Before(recentSince)
	if isRecent {
		base *= recentBoost
	}
	return int64(math.Round(base)), isRecent
}

// Rank returns at most limit posts from the trending window, highest score
// first. Equal scores keep the store's newest-first order.
func (t *TrendingRanker) Rank(ctx context.Context, limit int) (TrendingResult, error) {
	if limit <= 0 {
		limit = DefaultTrendingLimit
	}
	now := t.now()
	since := now.Add(-t.window)
	recentSince := now.Add(-t.recent)

	forums, err := t.forums.RecentForums(ctx, since)
	if err != nil {
		return TrendingResult{}, fmt.Errorf("recent forums: %w", err)
	}

	posts := make([]TrendingPost, 0, len(forums))
	for _, f := range forums {
		if f.DeletedAt != nil || f.CreatedAt.Before(since) {
			continue
		}
		score, isRecent := TrendingScore(f, recentSince)
		posts = append(posts, TrendingPost{Forum: f, TrendingScore: score, IsRecent: isRecent})
	}
	checked := len(posts)
	sort.SliceStable(posts, func(i, j int) bool { return posts[i].TrendingScore > posts[j].TrendingScore })
	if len(posts) > limit {
		posts = posts[:limit]
	}
	return TrendingResult{
		Posts: posts,
		Metadata: TrendingMetadata{
			TotalChecked: checked,
			Returned:     len(posts),
			DateRange:    DateRange{PostsSince: since, RecentBoostSince: recentSince},
		},
	}, nil
}
