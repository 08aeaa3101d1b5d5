package analytics

import (
	"sort"
	"sync"
	"time"

	"civicrank/core"
)

// Hook receives domain events for KPI aggregation.
type Hook interface {
	OnEvent(e core.Event)
}

func dayKey(t time.Time) string { return t.UTC().Format("2006-01-02") }

// DefaultDAURetention is how many days of active-user sets a DAU keeps.
const DefaultDAURetention = 7

// DAU tracks daily active earners. Only the newest Retention days are kept.
type DAU struct {
	mu        sync.Mutex
	days      map[string]map[core.UserID]struct{}
	retention int
}

func NewDAU() *DAU {
	return &DAU{days: map[string]map[core.UserID]struct{}{}, retention: DefaultDAURetention}
}

// WithRetention sets how many days are kept; values below one keep a single day.
func (d *DAU) WithRetention(days int) *DAU {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.retention = max(days, 1)
	return d
}

func (d *DAU) OnEvent(e core.Event) {
	// notifications are addressed to a user, not performed by one
	if e.Type == core.EventNotification || e.UserID == "" {
		return
	}
	day := dayKey(e.Time)
	d.mu.Lock()
	defer d.mu.Unlock()
	m := d.days[day]
	if m == nil {
		m = map[core.UserID]struct{}{}
		d.days[day] = m
		d.pruneLocked(e.Time)
	}
	m[e.UserID] = struct{}{}
}

// pruneLocked drops days older than the retention window ending at t.
func (d *DAU) pruneLocked(t time.Time) {
	cutoff := dayKey(t.AddDate(0, 0, -(d.retention - 1)))
	for k := range d.days {
		if k < cutoff {
			delete(d.days, k)
		}
	}
}

func (d *DAU) Count(day string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.days[day])
}

// CountAt returns the active earners on t's UTC day.
func (d *DAU) CountAt(t time.Time) int { return d.Count(dayKey(t)) }

// Days reports how many days are currently held.
func (d *DAU) Days() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.days)
}

// SourceStats summarises the points moved by one event type.
type SourceStats struct {
	Source       string `json:"source"`
	Transactions int64  `json:"transactions"`
	Awarded      int64  `json:"awarded"`
	Deducted     int64  `json:"deducted"`
}

// Stats is a point-in-time copy of the counters held by PointStats.
type Stats struct {
	TotalAwarded  int64            `json:"total_awarded"`
	TotalDeducted int64            `json:"total_deducted"`
	Transactions  int64            `json:"transactions"`
	LevelUps      int64            `json:"level_ups"`
	Notifications int64            `json:"notifications"`
	AwardedByDay  map[string]int64 `json:"awarded_by_day"`
	LevelReached  map[string]int64 `json:"level_reached"`
	BySource      []SourceStats    `json:"by_source"`
}

// PointStats aggregates points, level-ups and notifications from engine events.
type PointStats struct {
	mu            sync.RWMutex
	awarded       int64
	deducted      int64
	transactions  int64
	levelUps      int64
	notifications int64
	byDay         map[string]int64
	byLevel       map[string]int64
	bySource      map[string]*SourceStats
}

func NewPointStats() *PointStats {
	return &PointStats{
		byDay:    map[string]int64{},
		byLevel:  map[string]int64{},
		bySource: map[string]*SourceStats{},
	}
}

func (p *PointStats) OnEvent(e core.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch e.Type {
	case core.EventPointsAwarded:
		p.transactions++
		src := p.bySource[e.Source]
		if src == nil {
			src = &SourceStats{Source: e.Source}
			p.bySource[e.Source] = src
		}
		src.Transactions++
		if e.Delta >= 0 {
			p.awarded += e.Delta
			src.Awarded += e.Delta
			p.byDay[dayKey(e.Time)] += e.Delta
		} else {
			p.deducted += -e.Delta
			src.Deducted += -e.Delta
		}
	case core.EventLevelUp:
		p.levelUps++
		if e.Level != nil {
			p.byLevel[e.Level.Name]++
		}
	case core.EventNotification:
		p.notifications++
	}
}

// Snapshot copies the current counters. Sources are ordered by points awarded, highest first.
func (p *PointStats) Snapshot() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := Stats{
		TotalAwarded:  p.awarded,
		TotalDeducted: p.deducted,
		Transactions:  p.transactions,
		LevelUps:      p.levelUps,
		Notifications: p.notifications,
		AwardedByDay:  make(map[string]int64, len(p.byDay)),
		LevelReached:  make(map[string]int64, len(p.byLevel)),
		BySource:      make([]SourceStats, 0, len(p.bySource)),
	}
	for k, v := range p.byDay {
		out.AwardedByDay[k] = v
	}
	for k, v := range p.byLevel {
		out.LevelReached[k] = v
	}
	for _, s := range p.bySource {
		out.BySource = append(out.BySource, *s)
	}
	sort.Slice(out.BySource, func(i, j int) bool {
		a, b := out.BySource[i], out.BySource[j]
		if a.Awarded == b.Awarded {
			return a.Source < b.Source
		}
		return a.Awarded > b.Awarded
	})
	return out
}
