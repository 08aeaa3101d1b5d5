package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"civicrank/core"
)

// Snapshot is the full contents of a Store.
type Snapshot struct {
	Users         []core.User             `json:"users"`
	Rules         []core.PointRule        `json:"rules"`
	Transactions  []core.PointTransaction `json:"transactions"`
	Levels        []core.Level            `json:"levels"`
	Notifications []core.Notification     `json:"notifications"`
	Forums        []core.Forum            `json:"forums"`
}

// Store is a concurrent in-memory Storage implementation.
type Store struct {
	mu       sync.RWMutex
	users    map[core.UserID]core.User
	rules    map[string]core.PointRule
	txs      []core.PointTransaction
	levels   []core.Level
	notes    []core.Notification
	forums   map[core.ForumID]core.Forum
	onChange func(Snapshot) error
}

func New() *Store {
	return &Store{
		users:  map[core.UserID]core.User{},
		rules:  map[string]core.PointRule{},
		forums: map[core.ForumID]core.Forum{},
	}
}

// OnChange registers fn to run after every mutation, under the write lock.
// An error from fn is returned by the mutating call.
func (s *Store) OnChange(fn func(Snapshot) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Transactions:  append([]core.PointTransaction(nil), s.txs...),
		Levels:        append([]core.Level(nil), s.levels...),
		Notifications: append([]core.Notification(nil), s.notes...),
	}
	for _, u := range s.users {
		snap.Users = append(snap.Users, u)
	}
	sort.Slice(snap.Users, func(i, j int) bool { return snap.Users[i].ID < snap.Users[j].ID })
	for _, r := range s.rules {
		snap.Rules = append(snap.Rules, r)
	}
	sortRulesOldestFirst(snap.Rules)
	for _, f := range s.forums {
		snap.Forums = append(snap.Forums, f)
	}
	sort.Slice(snap.Forums, func(i, j int) bool { return snap.Forums[i].ID < snap.Forums[j].ID })
	return snap
}

// Restore replaces the store contents with snap.
func (s *Store) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = make(map[core.UserID]core.User, len(snap.Users))
	for _, u := range snap.Users {
		s.users[u.ID] = u
	}
	s.rules = make(map[string]core.PointRule, len(snap.Rules))
	for _, r := range snap.Rules {
		s.rules[r.ID] = r
	}
	s.forums = make(map[core.ForumID]core.Forum, len(snap.Forums))
	for _, f := range snap.Forums {
		s.forums[f.ID] = f
	}
	s.txs = append([]core.PointTransaction(nil), snap.Transactions...)
	s.levels = append([]core.Level(nil), snap.Levels...)
	core.SortLevels(s.levels)
	s.notes = append([]core.Notification(nil), snap.Notifications...)
}

// mutate runs fn under the write lock and then the change hook.
func (s *Store) mutate(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(); err != nil {
		return err
	}
	if s.onChange != nil {
		return s.onChange(s.snapshotLocked())
	}
	return nil
}

func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

func sortRulesOldestFirst(rules []core.PointRule) {
	sort.Slice(rules, func(i, j int) bool {
		if !rules[i].CreatedAt.Equal(rules[j].CreatedAt) {
			return rules[i].CreatedAt.Before(rules[j].CreatedAt)
		}
		return rules[i].ID < rules[j].ID
	})
}

// Rules

func (s *Store) ActiveRules(_ context.Context, eventType string, condition *string) ([]core.PointRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.PointRule
	for _, r := range s.rules {
		if r.Matches(eventType, condition) {
			out = append(out, r)
		}
	}
	sortRulesOldestFirst(out)
	return out, nil
}

func (s *Store) ListRules(_ context.Context) ([]core.PointRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.PointRule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, r)
	}
	sortRulesOldestFirst(out)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *Store) SaveRule(_ context.Context, rule *core.PointRule) error {
	return s.mutate(func() error {
		rule.ID = newID(rule.ID)
		s.rules[rule.ID] = *rule
		return nil
	})
}

func (s *Store) DeleteRule(_ context.Context, id string) error {
	return s.mutate(func() error {
		if _, ok := s.rules[id]; !ok {
			return core.ErrNotFound
		}
		delete(s.rules, id)
		return nil
	})
}

// Ledger

func (s *Store) InsertTransaction(_ context.Context, tx *core.PointTransaction) error {
	return s.mutate(func() error {
		tx.ID = newID(tx.ID)
		if tx.CreatedAt.IsZero() {
			tx.CreatedAt = time.Now().UTC()
		}
		s.txs = append(s.txs, *tx)
		return nil
	})
}

func (s *Store) ListTransactions(_ context.Context, user core.UserID, limit int) ([]core.PointTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.PointTransaction
	for i := len(s.txs) - 1; i >= 0; i-- {
		if s.txs[i].UserID == user {
			out = append(out, s.txs[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) LedgerTotals(_ context.Context) (core.LedgerTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var t core.LedgerTotals
	for _, tx := range s.txs {
		t.Add(tx)
	}
	t.SortByPoints()
	return t, nil
}

// Users

func (s *Store) GetUser(_ context.Context, id core.UserID) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, core.ErrNotFound
	}
	return u, nil
}

func (s *Store) FindUserByUsername(_ context.Context, username string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.sortedUsers() {
		if u.Username == username {
			return u, nil
		}
	}
	return core.User{}, core.ErrNotFound
}

func (s *Store) FindUserByFullName(_ context.Context, fragment string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	needle := strings.ToLower(fragment)
	if needle == "" {
		return core.User{}, core.ErrNotFound
	}
	for _, u := range s.sortedUsers() {
		if strings.Contains(strings.ToLower(u.FullName), needle) {
			return u, nil
		}
	}
	return core.User{}, core.ErrNotFound
}

func (s *Store) sortedUsers() []core.User {
	out := make([]core.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) TopUsers(_ context.Context, limit int) ([]core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.sortedUsers()
	core.SortUsersByPoints(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) IncrementPoints(_ context.Context, id core.UserID, delta int64) (int64, error) {
	var total int64
	err := s.mutate(func() error {
		u, ok := s.users[id]
		if !ok {
			return core.ErrNotFound
		}
		next, err := core.AddPoints(u.CurrentPoints, delta)
		if err != nil {
			return err
		}
		u.CurrentPoints = next
		u.UpdatedAt = time.Now().UTC()
		s.users[id] = u
		total = next
		return nil
	})
	return total, err
}

func (s *Store) SetLevel(_ context.Context, id core.UserID, levelID string) error {
	return s.mutate(func() error {
		u, ok := s.users[id]
		if !ok {
			return core.ErrNotFound
		}
		u.LevelID = levelID
		u.UpdatedAt = time.Now().UTC()
		s.users[id] = u
		return nil
	})
}

func (s *Store) SaveUser(_ context.Context, u *core.User) error {
	return s.mutate(func() error {
		u.ID = core.UserID(newID(string(u.ID)))
		if u.Role == "" {
			u.Role = core.RoleUser
		}
		if u.UpdatedAt.IsZero() {
			u.UpdatedAt = time.Now().UTC()
		}
		s.users[u.ID] = *u
		return nil
	})
}

// Levels

func (s *Store) ListLevels(_ context.Context) ([]core.Level, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Level(nil), s.levels...), nil
}

func (s *Store) InsertLevels(_ context.Context, levels []core.Level) error {
	return s.mutate(func() error {
		for i := range levels {
			levels[i].ID = newID(levels[i].ID)
			s.levels = append(s.levels, levels[i])
		}
		core.SortLevels(s.levels)
		return nil
	})
}

// Notifications

func (s *Store) InsertNotification(_ context.Context, n *core.Notification) error {
	return s.mutate(func() error {
		n.ID = newID(n.ID)
		if n.CreatedAt.IsZero() {
			n.CreatedAt = time.Now().UTC()
		}
		s.notes = append(s.notes, *n)
		return nil
	})
}

func (s *Store) UpdateNotification(_ context.Context, n core.Notification) error {
	return s.mutate(func() error {
		for i := range s.notes {
			if s.notes[i].ID == n.ID {
				s.notes[i] = n
				return nil
			}
		}
		return core.ErrNotFound
	})
}

func (s *Store) FindRecentLike(_ context.Context, user core.UserID, forum core.ForumID, since time.Time) (core.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		best  core.Notification
		found bool
	)
	for _, n := range s.notes {
		if n.Type != core.NotifyLike || n.UserID != user || n.ForumID == nil || *n.ForumID != forum {
			continue
		}
		if n.CreatedAt.Before(since) {
			continue
		}
		if !found || !n.CreatedAt.Before(best.CreatedAt) {
			best, found = n, true
		}
	}
	if !found {
		return core.Notification{}, core.ErrNotFound
	}
	return best, nil
}

func (s *Store) ListNotifications(_ context.Context, user core.UserID, limit int) ([]core.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Notification
	for i := len(s.notes) - 1; i >= 0; i-- {
		if s.notes[i].UserID == user {
			out = append(out, s.notes[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) MarkRead(_ context.Context, user core.UserID, id string, at time.Time) error {
	return s.mutate(func() error {
		for i := range s.notes {
			if s.notes[i].ID == id && s.notes[i].UserID == user {
				s.notes[i].IsRead = true
				s.notes[i].ReadAt = &at
				return nil
			}
		}
		return core.ErrNotFound
	})
}

func (s *Store) MarkAllRead(_ context.Context, user core.UserID, at time.Time) (int64, error) {
	var n int64
	err := s.mutate(func() error {
		for i := range s.notes {
			if s.notes[i].UserID == user && !s.notes[i].IsRead {
				s.notes[i].IsRead = true
				s.notes[i].ReadAt = &at
				n++
			}
		}
		return nil
	})
	return n, err
}

func (s *Store) CountUnread(_ context.Context, user core.UserID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, note := range s.notes {
		if note.UserID == user && !note.IsRead {
			n++
		}
	}
	return n, nil
}

func (s *Store) DeleteNotificationsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := s.mutate(func() error {
		kept := s.notes[:0]
		for _, note := range s.notes {
			if note.CreatedAt.Before(cutoff) {
				n++
				continue
			}
			kept = append(kept, note)
		}
		s.notes = kept
		return nil
	})
	return n, err
}

// Forums

func (s *Store) GetForum(_ context.Context, id core.ForumID) (core.Forum, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.forums[id]
	if !ok || f.DeletedAt != nil {
		return core.Forum{}, core.ErrNotFound
	}
	return f, nil
}

func (s *Store) RecentForums(_ context.Context, since time.Time) ([]core.Forum, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Forum
	for _, f := range s.forums {
		if f.DeletedAt == nil && !f.CreatedAt.Before(since) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) SaveForum(_ context.Context, f *core.Forum) error {
	return s.mutate(func() error {
		f.ID = core.ForumID(newID(string(f.ID)))
		if f.CreatedAt.IsZero() {
			f.CreatedAt = time.Now().UTC()
		}
		s.forums[f.ID] = *f
		return nil
	})
}

var _ interface {
	IncrementPoints(context.Context, core.UserID, int64) (int64, error)
	FindRecentLike(context.Context, core.UserID, core.ForumID, time.Time) (core.Notification, error)
	RecentForums(context.Context, time.Time) ([]core.Forum, error)
} = (*Store)(nil)
