package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"civicrank/core"
)

// Config holds Redis connection configuration
type Config struct {
	Addr         string        `mapstructure:"addr" json:"addr" split_words:"true"`
	Password     string        `mapstructure:"password" json:"password,omitempty" split_words:"true"`
	DB           int           `mapstructure:"db" json:"db" split_words:"true"`
	PoolSize     int           `mapstructure:"pool_size" json:"pool_size" split_words:"true"`
	MinIdleConns int           `mapstructure:"min_idle_conns" json:"min_idle_conns" split_words:"true"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout" json:"dial_timeout" split_words:"true"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" json:"read_timeout" split_words:"true"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" json:"write_timeout" split_words:"true"`
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Store implements the engine storage interfaces on Redis.
// Data structure:
// - user:{id} -> hash of user columns; current_points is incremented in place
// - users:by_username -> hash username -> id
// - users:all -> set of user ids
// - users:by_points -> zset of user ids scored by negated current_points
// - rule:{id} -> JSON PointRule; rules -> zset of ids scored by created_at
// - tx:{id} -> JSON PointTransaction; user:{id}:txs -> zset scored by created_at
// - ledger:totals -> hash of running sums, updated with each transaction
// - levels -> hash id -> JSON Level
// - notification:{id} -> JSON Notification; user:{id}:notifications -> zset scored by created_at
// - user:{id}:unread -> set of unread notification ids
// - notifications -> zset of every notification id scored by created_at
// - like:{user}:{forum} -> id of the latest like notification
// - forum:{id} -> JSON Forum; forums -> zset scored by created_at
type Store struct {
	client *redis.Client
}

// New creates a new Redis-backed storage with the provided configuration
func New(config Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{client: client}, nil
}

// NewWithClient creates a Store using an existing Redis client (useful for testing)
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

const (
	usersByUsernameKey = "users:by_username"
	usersAllKey        = "users:all"
	usersByPointsKey   = "users:by_points"
	ledgerTotalsKey    = "ledger:totals"
	rulesKey           = "rules"
	levelsKey          = "levels"
	notificationsKey   = "notifications"
	forumsKey          = "forums"
)

func userKey(id core.UserID) string                { return "user:" + string(id) }
func userTxsKey(id core.UserID) string             { return "user:" + string(id) + ":txs" }
func userNotesKey(id core.UserID) string           { return "user:" + string(id) + ":notifications" }
func userUnreadKey(id core.UserID) string          { return "user:" + string(id) + ":unread" }
func ruleKey(id string) string                     { return "rule:" + id }
func txKey(id string) string                       { return "tx:" + id }
func notificationKey(id string) string             { return "notification:" + id }
func forumKey(id core.ForumID) string              { return "forum:" + string(id) }
func likeKey(u core.UserID, f core.ForumID) string { return fmt.Sprintf("like:%s:%s", u, f) }

func score(t time.Time) float64 { return float64(t.UnixMilli()) }

func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

func (s *Store) getJSON(ctx context.Context, key string, v any) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return core.ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func mustJSON(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return b, nil
}

// Rules

func (s *Store) loadRules(ctx context.Context) ([]core.PointRule, error) {
	ids, err := s.client.ZRange(ctx, rulesKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	out := make([]core.PointRule, 0, len(ids))
	for _, id := range ids {
		var r core.PointRule
		if err := s.getJSON(ctx, ruleKey(id), &r); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// ActiveRules returns matching rules oldest first.
func (s *Store) ActiveRules(ctx context.Context, eventType string, condition *string) ([]core.PointRule, error) {
	all, err := s.loadRules(ctx)
	if err != nil {
		return nil, err
	}
	var out []core.PointRule
	for _, r := range all {
		if r.Matches(eventType, condition) {
			out = append(out, r)
		}
	}
	return out, nil
}

// ListRules returns every rule newest first.
func (s *Store) ListRules(ctx context.Context) ([]core.PointRule, error) {
	all, err := s.loadRules(ctx)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return all, nil
}

func (s *Store) SaveRule(ctx context.Context, rule *core.PointRule) error {
	rule.ID = newID(rule.ID)
	data, err := mustJSON(rule)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, ruleKey(rule.ID), data, 0)
		p.ZAdd(ctx, rulesKey, redis.Z{Score: score(rule.CreatedAt), Member: rule.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save rule: %w", err)
	}
	return nil
}

func (s *Store) DeleteRule(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, ruleKey(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return s.client.ZRem(ctx, rulesKey, id).Err()
}

// Ledger

func (s *Store) InsertTransaction(ctx context.Context, tx *core.PointTransaction) error {
	tx.ID = newID(tx.ID)
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	data, err := mustJSON(tx)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, txKey(tx.ID), data, 0)
		p.ZAdd(ctx, userTxsKey(tx.UserID), redis.Z{Score: score(tx.CreatedAt), Member: tx.ID})
		p.HIncrBy(ctx, ledgerTotalsKey, "distributed", tx.Points)
		p.HIncrBy(ctx, ledgerTotalsKey, "transactions", 1)
		if tx.Points >= 0 {
			p.HIncrBy(ctx, ledgerTotalsKey, "awarded", tx.Points)
		} else {
			p.HIncrBy(ctx, ledgerTotalsKey, "deducted", -tx.Points)
		}
		p.HIncrBy(ctx, ledgerTotalsKey, "points:"+tx.EventType, tx.Points)
		p.HIncrBy(ctx, ledgerTotalsKey, "count:"+tx.EventType, 1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// LedgerTotals reads the running sums kept by InsertTransaction.
func (s *Store) LedgerTotals(ctx context.Context) (core.LedgerTotals, error) {
	h, err := s.client.HGetAll(ctx, ledgerTotalsKey).Result()
	if err != nil {
		return core.LedgerTotals{}, fmt.Errorf("failed to read ledger totals: %w", err)
	}
	var t core.LedgerTotals
	byType := map[string]*core.EventTypeTotal{}
	entry := func(name string) *core.EventTypeTotal {
		e, ok := byType[name]
		if !ok {
			e = &core.EventTypeTotal{EventType: name}
			byType[name] = e
		}
		return e
	}
	for field, raw := range h {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return core.LedgerTotals{}, fmt.Errorf("parse ledger total %s: %w", field, err)
		}
		switch {
		case field == "distributed":
			t.Distributed = n
		case field == "awarded":
			t.Awarded = n
		case field == "deducted":
			t.Deducted = n
		case field == "transactions":
			t.Transactions = n
		case strings.HasPrefix(field, "points:"):
			entry(strings.TrimPrefix(field, "points:")).Points = n
		case strings.HasPrefix(field, "count:"):
			entry(strings.TrimPrefix(field, "count:")).Transactions = n
		}
	}
	for _, e := range byType {
		t.ByEventType = append(t.ByEventType, *e)
	}
	t.SortByPoints()
	return t, nil
}

func (s *Store) ListTransactions(ctx context.Context, user core.UserID, limit int) ([]core.PointTransaction, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	ids, err := s.client.ZRevRange(ctx, userTxsKey(user), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	out := make([]core.PointTransaction, 0, len(ids))
	for _, id := range ids {
		var tx core.PointTransaction
		if err := s.getJSON(ctx, txKey(id), &tx); err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

// Users

func userFields(u core.User) map[string]any {
	return map[string]any{
		"id":             string(u.ID),
		"username":       u.Username,
		"full_name":      u.FullName,
		"role":           string(u.Role),
		"current_points": u.CurrentPoints,
		"level_id":       u.LevelID,
		"updated_at":     u.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func userFromHash(h map[string]string) (core.User, error) {
	points, err := strconv.ParseInt(h["current_points"], 10, 64)
	if err != nil {
		return core.User{}, fmt.Errorf("parse current_points: %w", err)
	}
	role, err := core.ParseRole(h["role"])
	if err != nil {
		return core.User{}, err
	}
	u := core.User{
		ID:            core.UserID(h["id"]),
		Username:      h["username"],
		FullName:      h["full_name"],
		Role:          role,
		CurrentPoints: points,
		LevelID:       h["level_id"],
	}
	if ts := h["updated_at"]; ts != "" {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			u.UpdatedAt = t
		}
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id core.UserID) (core.User, error) {
	h, err := s.client.HGetAll(ctx, userKey(id)).Result()
	if err != nil {
		return core.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	if len(h) == 0 {
		return core.User{}, core.ErrNotFound
	}
	return userFromHash(h)
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (core.User, error) {
	id, err := s.client.HGet(ctx, usersByUsernameKey, username).Result()
	if errors.Is(err, redis.Nil) {
		return core.User{}, core.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("failed to find user: %w", err)
	}
	return s.GetUser(ctx, core.UserID(id))
}

// FindUserByFullName scans all users; acceptable for the small user counts
// this adapter targets.
func (s *Store) FindUserByFullName(ctx context.Context, fragment string) (core.User, error) {
	needle := strings.ToLower(fragment)
	if needle == "" {
		return core.User{}, core.ErrNotFound
	}
	ids, err := s.client.SMembers(ctx, usersAllKey).Result()
	if err != nil {
		return core.User{}, fmt.Errorf("failed to list users: %w", err)
	}
	sort.Strings(ids)
	for _, id := range ids {
		name, err := s.client.HGet(ctx, userKey(core.UserID(id)), "full_name").Result()
		if err != nil {
			continue
		}
		if strings.Contains(strings.ToLower(name), needle) {
			return s.GetUser(ctx, core.UserID(id))
		}
	}
	return core.User{}, core.ErrNotFound
}

// TopUsers reads the points index; negated scores put ties in id order.
func (s *Store) TopUsers(ctx context.Context, limit int) ([]core.User, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	ids, err := s.client.ZRange(ctx, usersByPointsKey, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list top users: %w", err)
	}
	out := make([]core.User, 0, len(ids))
	for _, id := range ids {
		u, err := s.GetUser(ctx, core.UserID(id))
		if errors.Is(err, core.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

// Lua script for atomic point increments on an existing user hash.
// HINCRBY rejects results outside the int64 range.
var incrementPointsScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[1]) == 0 then
		return redis.error_reply('not_found')
	end
	local total = redis.call('HINCRBY', KEYS[1], 'current_points', ARGV[1])
	redis.call('HSET', KEYS[1], 'updated_at', ARGV[2])
	redis.call('ZADD', KEYS[2], -total, ARGV[3])
	return total
`)

// IncrementPoints atomically adds delta to the user's current_points.
func (s *Store) IncrementPoints(ctx context.Context, id core.UserID, delta int64) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	result, err := incrementPointsScript.Run(ctx, s.client, []string{userKey(id), usersByPointsKey}, delta, now, string(id)).Result()
	if err != nil {
		if strings.Contains(err.Error(), "not_found") {
			return 0, core.ErrNotFound
		}
		if strings.Contains(err.Error(), "overflow") {
			return 0, core.ErrOverflow
		}
		return 0, fmt.Errorf("failed to increment points: %w", err)
	}
	total, ok := result.(int64)
	if !ok {
		return 0, errors.New("unexpected result type from Redis script")
	}
	return total, nil
}

func (s *Store) SetLevel(ctx context.Context, id core.UserID, levelID string) error {
	n, err := s.client.Exists(ctx, userKey(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to set level: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return s.client.HSet(ctx, userKey(id), "level_id", levelID, "updated_at", time.Now().UTC().Format(time.RFC3339Nano)).Err()
}

func (s *Store) SaveUser(ctx context.Context, u *core.User) error {
	u.ID = core.UserID(newID(string(u.ID)))
	if u.Role == "" {
		u.Role = core.RoleUser
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = time.Now().UTC()
	}
	prev, err := s.client.HGet(ctx, userKey(u.ID), "username").Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to save user: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, userKey(u.ID), userFields(*u))
		p.SAdd(ctx, usersAllKey, string(u.ID))
		p.ZAdd(ctx, usersByPointsKey, redis.Z{Score: -float64(u.CurrentPoints), Member: string(u.ID)})
		if prev != "" && prev != u.Username {
			p.HDel(ctx, usersByUsernameKey, prev)
		}
		if u.Username != "" {
			p.HSet(ctx, usersByUsernameKey, u.Username, string(u.ID))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// Levels

func (s *Store) ListLevels(ctx context.Context) ([]core.Level, error) {
	vals, err := s.client.HVals(ctx, levelsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list levels: %w", err)
	}
	out := make([]core.Level, 0, len(vals))
	for _, v := range vals {
		var l core.Level
		if err := json.Unmarshal([]byte(v), &l); err != nil {
			return nil, fmt.Errorf("decode level: %w", err)
		}
		out = append(out, l)
	}
	core.SortLevels(out)
	return out, nil
}

func (s *Store) InsertLevels(ctx context.Context, levels []core.Level) error {
	if len(levels) == 0 {
		return nil
	}
	fields := make([]any, 0, 2*len(levels))
	for i := range levels {
		levels[i].ID = newID(levels[i].ID)
		data, err := mustJSON(levels[i])
		if err != nil {
			return err
		}
		fields = append(fields, levels[i].ID, data)
	}
	if err := s.client.HSet(ctx, levelsKey, fields...).Err(); err != nil {
		return fmt.Errorf("failed to insert levels: %w", err)
	}
	return nil
}

// Notifications

func (s *Store) writeNotification(ctx context.Context, n core.Notification) error {
	data, err := mustJSON(n)
	if err != nil {
		return err
	}
	z := redis.Z{Score: score(n.CreatedAt), Member: n.ID}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, notificationKey(n.ID), data, 0)
		p.ZAdd(ctx, userNotesKey(n.UserID), z)
		p.ZAdd(ctx, notificationsKey, z)
		if n.IsRead {
			p.SRem(ctx, userUnreadKey(n.UserID), n.ID)
		} else {
			p.SAdd(ctx, userUnreadKey(n.UserID), n.ID)
		}
		if n.Type == core.NotifyLike && n.ForumID != nil {
			p.Set(ctx, likeKey(n.UserID, *n.ForumID), n.ID, 0)
		}
		return nil
	})
	return err
}

func (s *Store) InsertNotification(ctx context.Context, n *core.Notification) error {
	n.ID = newID(n.ID)
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if err := s.writeNotification(ctx, *n); err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

func (s *Store) UpdateNotification(ctx context.Context, n core.Notification) error {
	exists, err := s.client.Exists(ctx, notificationKey(n.ID)).Result()
	if err != nil {
		return fmt.Errorf("failed to update notification: %w", err)
	}
	if exists == 0 {
		return core.ErrNotFound
	}
	if err := s.writeNotification(ctx, n); err != nil {
		return fmt.Errorf("failed to update notification: %w", err)
	}
	return nil
}

func (s *Store) getNotification(ctx context.Context, id string) (core.Notification, error) {
	var n core.Notification
	err := s.getJSON(ctx, notificationKey(id), &n)
	return n, err
}

func (s *Store) FindRecentLike(ctx context.Context, user core.UserID, forum core.ForumID, since time.Time) (core.Notification, error) {
	id, err := s.client.Get(ctx, likeKey(user, forum)).Result()
	if errors.Is(err, redis.Nil) {
		return core.Notification{}, core.ErrNotFound
	}
	if err != nil {
		return core.Notification{}, fmt.Errorf("failed to find like: %w", err)
	}
	n, err := s.getNotification(ctx, id)
	if err != nil {
		return core.Notification{}, err
	}
	if n.CreatedAt.Before(since) {
		return core.Notification{}, core.ErrNotFound
	}
	return n, nil
}

func (s *Store) ListNotifications(ctx context.Context, user core.UserID, limit int) ([]core.Notification, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	ids, err := s.client.ZRevRange(ctx, userNotesKey(user), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	out := make([]core.Notification, 0, len(ids))
	for _, id := range ids {
		n, err := s.getNotification(ctx, id)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *Store) MarkRead(ctx context.Context, user core.UserID, id string, at time.Time) error {
	n, err := s.getNotification(ctx, id)
	if err != nil {
		return err
	}
	if n.UserID != user {
		return core.ErrNotFound
	}
	n.IsRead = true
	n.ReadAt = &at
	return s.writeNotification(ctx, n)
}

func (s *Store) MarkAllRead(ctx context.Context, user core.UserID, at time.Time) (int64, error) {
	ids, err := s.client.SMembers(ctx, userUnreadKey(user)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list unread: %w", err)
	}
	var marked int64
	for _, id := range ids {
		n, err := s.getNotification(ctx, id)
		if errors.Is(err, core.ErrNotFound) {
			s.client.SRem(ctx, userUnreadKey(user), id)
			continue
		}
		if err != nil {
			return marked, err
		}
		n.IsRead = true
		n.ReadAt = &at
		if err := s.writeNotification(ctx, n); err != nil {
			return marked, err
		}
		marked++
	}
	return marked, nil
}

func (s *Store) CountUnread(ctx context.Context, user core.UserID) (int64, error) {
	return s.client.SCard(ctx, userUnreadKey(user)).Result()
}

func (s *Store) DeleteNotificationsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ids, err := s.client.ZRangeByScore(ctx, notificationsKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to scan notifications: %w", err)
	}
	var deleted int64
	for _, id := range ids {
		n, err := s.getNotification(ctx, id)
		if err != nil && !errors.Is(err, core.ErrNotFound) {
			return deleted, err
		}
		_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, notificationKey(id))
			p.ZRem(ctx, notificationsKey, id)
			if n.UserID != "" {
				p.ZRem(ctx, userNotesKey(n.UserID), id)
				p.SRem(ctx, userUnreadKey(n.UserID), id)
			}
			return nil
		})
		if err != nil {
			return deleted, fmt.Errorf("failed to delete notification: %w", err)
		}
		if n.Type == core.NotifyLike && n.ForumID != nil {
			key := likeKey(n.UserID, *n.ForumID)
			if cur, _ := s.client.Get(ctx, key).Result(); cur == id {
				s.client.Del(ctx, key)
			}
		}
		deleted++
	}
	return deleted, nil
}

// Forums

func (s *Store) GetForum(ctx context.Context, id core.ForumID) (core.Forum, error) {
	var f core.Forum
	if err := s.getJSON(ctx, forumKey(id), &f); err != nil {
		return core.Forum{}, err
	}
	if f.DeletedAt != nil {
		return core.Forum{}, core.ErrNotFound
	}
	return f, nil
}

func (s *Store) RecentForums(ctx context.Context, since time.Time) ([]core.Forum, error) {
	ids, err := s.client.ZRevRangeByScore(ctx, forumsKey, &redis.ZRangeBy{
		Min: strconv.FormatInt(since.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list forums: %w", err)
	}
	out := make([]core.Forum, 0, len(ids))
	for _, id := range ids {
		var f core.Forum
		if err := s.getJSON(ctx, forumKey(core.ForumID(id)), &f); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if f.DeletedAt == nil && !f.CreatedAt.Before(since) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *Store) SaveForum(ctx context.Context, f *core.Forum) error {
	f.ID = core.ForumID(newID(string(f.ID)))
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	data, err := mustJSON(f)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, forumKey(f.ID), data, 0)
		p.ZAdd(ctx, forumsKey, redis.Z{Score: score(f.CreatedAt), Member: string(f.ID)})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save forum: %w", err)
	}
	return nil
}
