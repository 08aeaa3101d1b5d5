package core

import (
	"math"
	"sort"
)

// DefaultLevels is the bootstrap ladder, ascending by threshold.
var DefaultLevels = []Level{
	{Name: "Level Gundala", Points: 0, Description: "Level pemula - Gundala"},
	{Name: "Level GatotKaca", Points: 100, Description: "Level menengah - GatotKaca"},
	{Name: "Level SriAsih", Points: 250, Description: "Level mahir - SriAsih"},
	{Name: "Level Godam", Points: 500, Description: "Level expert - Godam"},
	{Name: "Level Aquanus", Points: 1000, Description: "Level master - Aquanus"},
}

// SortLevels orders levels by ascending threshold in place.
func SortLevels(levels []Level) {
	sort.SliceStable(levels, func(i, j int) bool { return levels[i].Points < levels[j].Points })
}

// ResolveLevel returns the level with the greatest threshold not above points.
// Thresholds are inclusive.
func ResolveLevel(levels []Level, points int64) (Level, bool) {
	var (
		best  Level
		found bool
	)
	for _, l := range levels {
		if l.Points <= points && (!found || l.Points > best.Points) {
			best, found = l, true
		}
	}
	return best, found
}

// NextLevel returns the level with the smallest threshold above points.
func NextLevel(levels []Level, points int64) (Level, bool) {
	var (
		best  Level
		found bool
	)
	for _, l := range levels {
		if l.Points > points && (!found || l.Points < best.Points) {
			best, found = l, true
		}
	}
	return best, found
}

// Progress projects a point total onto the ladder.
type Progress struct {
	Current         *Level `json:"current"`
	Next            *Level `json:"next"`
	ProgressPercent int    `json:"progress"`
	PointsToNext    int64  `json:"points_to_next"`
}

// ComputeProgress reports how far points are between the current and next level.
func ComputeProgress(levels []Level, points int64) Progress {
	cur, hasCur := ResolveLevel(levels, points)
	next, hasNext := NextLevel(levels, points)

	var p Progress
	if hasNext {
		p.Next = &next
	}
	if !hasCur {
		if hasNext {
			p.PointsToNext = next.Points
		}
		return p
	}
	p.Current = &cur
	if !hasNext {
		p.ProgressPercent = 100
		return p
	}
	span := float64(next.Points - cur.Points)
	p.ProgressPercent = int(math.Round(100 * float64(points-cur.Points) / span))
	p.PointsToNext = next.Points - points
	return p
}
