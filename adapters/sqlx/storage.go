package sqlx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"civicrank/core"
)

// Driver selects the database/sql driver and SQL dialect.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverPGX      Driver = "pgx"
	DriverMySQL    Driver = "mysql"
)

func (d Driver) postgres() bool { return d == DriverPostgres || d == DriverPGX }

// Config holds relational connection settings.
type Config struct {
	Driver          Driver        `mapstructure:"driver" json:"driver" split_words:"true"`
	DSN             string        `mapstructure:"dsn" json:"dsn,omitempty" split_words:"true"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" json:"max_open_conns" split_words:"true"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" json:"max_idle_conns" split_words:"true"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" json:"conn_max_lifetime" split_words:"true"`
}

func DefaultConfig() Config {
	return Config{
		Driver:          DriverPostgres,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

// Store implements the engine storage interfaces on a relational database.
type Store struct {
	db     *sqlx.DB
	driver Driver
}

// New opens and pings the database described by cfg.
func New(cfg Config) (*Store, error) {
	switch cfg.Driver {
	case DriverPostgres, DriverPGX, DriverMySQL:
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", cfg.Driver)
	}
	db, err := sqlx.Open(string(cfg.Driver), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}
	return NewWithDB(db, cfg.Driver), nil
}

// NewWithDB wraps an existing connection (useful for testing).
func NewWithDB(db *sqlx.DB, driver Driver) *Store {
	return &Store{db: db, driver: driver}
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) q(query string) string { return s.db.Rebind(query) }

func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	return err
}

func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// withTx runs fn in a transaction, rolling back when fn fails.
func (s *Store) withTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *Store) exists(ctx context.Context, tx *sqlx.Tx, table, id string) (bool, error) {
	var ok bool
	err := tx.GetContext(ctx, &ok, s.q("SELECT EXISTS(SELECT 1 FROM "+table+" WHERE id = ?)"), id)
	return ok, err
}

// Rules

const ruleColumns = "id, event_type, event_condition, points, description, is_active, created_by, created_at, updated_at"

func (s *Store) ActiveRules(ctx context.Context, eventType string, condition *string) ([]core.PointRule, error) {
	var (
		rules []core.PointRule
		err   error
	)
	base := "SELECT " + ruleColumns + " FROM point_rules WHERE is_active = TRUE AND event_type = ?"
	if condition == nil {
		err = s.db.SelectContext(ctx, &rules, s.q(base+" AND event_condition IS NULL ORDER BY created_at, id"), eventType)
	} else {
		err = s.db.SelectContext(ctx, &rules, s.q(base+" AND event_condition = ? ORDER BY created_at, id"), eventType, *condition)
	}
	if err != nil {
		return nil, fmt.Errorf("select rules: %w", err)
	}
	return rules, nil
}

func (s *Store) ListRules(ctx context.Context) ([]core.PointRule, error) {
	var rules []core.PointRule
	if err := s.db.SelectContext(ctx, &rules, "SELECT "+ruleColumns+" FROM point_rules ORDER BY created_at DESC, id DESC"); err != nil {
		return nil, fmt.Errorf("select rules: %w", err)
	}
	return rules, nil
}

func (s *Store) SaveRule(ctx context.Context, rule *core.PointRule) error {
	rule.ID = newID(rule.ID)
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		found, err := s.exists(ctx, tx, "point_rules", rule.ID)
		if err != nil {
			return err
		}
		if found {
			_, err = tx.NamedExecContext(ctx, `UPDATE point_rules SET event_type = :event_type, event_condition = :event_condition,
				points = :points, description = :description, is_active = :is_active, updated_at = :updated_at WHERE id = :id`, rule)
			return err
		}
		_, err = tx.NamedExecContext(ctx, `INSERT INTO point_rules (`+ruleColumns+`)
			VALUES (:id, :event_type, :event_condition, :points, :description, :is_active, :created_by, :created_at, :updated_at)`, rule)
		return err
	})
}

func (s *Store) DeleteRule(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.q("DELETE FROM point_rules WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	return affected(res)
}

// Ledger

const txColumns = "id, user_id, points, event_type, event_condition, related_forum_id, related_comment_id, related_reaction_id, description, awarded_by, rule_id, created_at"

func (s *Store) InsertTransaction(ctx context.Context, tx *core.PointTransaction) error {
	tx.ID = newID(tx.ID)
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO point_transactions (`+txColumns+`)
		VALUES (:id, :user_id, :points, :event_type, :event_condition, :related_forum_id, :related_comment_id,
		:related_reaction_id, :description, :awarded_by, :rule_id, :created_at)`, tx)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, user core.UserID, limit int) ([]core.PointTransaction, error) {
	var out []core.PointTransaction
	err := s.db.SelectContext(ctx, &out,
		s.q("SELECT "+txColumns+" FROM point_transactions WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?"),
		user, limit)
	if err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}
	return out, nil
}

func (s *Store) LedgerTotals(ctx context.Context) (core.LedgerTotals, error) {
	var t core.LedgerTotals
	err := s.db.GetContext(ctx, &t, `SELECT
		COALESCE(SUM(points), 0) AS distributed,
		COALESCE(SUM(CASE WHEN points > 0 THEN points ELSE 0 END), 0) AS awarded,
		COALESCE(SUM(CASE WHEN points < 0 THEN -points ELSE 0 END), 0) AS deducted,
		COUNT(*) AS transactions
		FROM point_transactions`)
	if err != nil {
		return core.LedgerTotals{}, fmt.Errorf("sum transactions: %w", err)
	}
	err = s.db.SelectContext(ctx, &t.ByEventType, `SELECT event_type, SUM(points) AS total_points, COUNT(*) AS transactions
		FROM point_transactions GROUP BY event_type ORDER BY total_points DESC, event_type`)
	if err != nil {
		return core.LedgerTotals{}, fmt.Errorf("sum transactions by type: %w", err)
	}
	return t, nil
}

// Users

const userColumns = "id, username, COALESCE(full_name, '') AS full_name, role, current_points, COALESCE(level_id, '') AS level_id, updated_at"

func (s *Store) getUserWhere(ctx context.Context, where string, arg any) (core.User, error) {
	var u core.User
	err := s.db.GetContext(ctx, &u, s.q("SELECT "+userColumns+" FROM users WHERE "+where), arg)
	if err != nil {
		return core.User{}, notFound(err)
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id core.UserID) (core.User, error) {
	return s.getUserWhere(ctx, "id = ?", id)
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (core.User, error) {
	return s.getUserWhere(ctx, "username = ? LIMIT 1", username)
}

func (s *Store) FindUserByFullName(ctx context.Context, fragment string) (core.User, error) {
	if fragment == "" {
		return core.User{}, core.ErrNotFound
	}
	return s.getUserWhere(ctx, "LOWER(full_name) LIKE ? ORDER BY id LIMIT 1", "%"+strings.ToLower(fragment)+"%")
}

func (s *Store) TopUsers(ctx context.Context, limit int) ([]core.User, error) {
	var out []core.User
	err := s.db.SelectContext(ctx, &out,
		s.q("SELECT "+userColumns+" FROM users ORDER BY current_points DESC, id LIMIT ?"), limit)
	if err != nil {
		return nil, fmt.Errorf("select top users: %w", err)
	}
	return out, nil
}

// IncrementPoints adds delta in a single UPDATE so concurrent awards never lose writes.
func (s *Store) IncrementPoints(ctx context.Context, id core.UserID, delta int64) (int64, error) {
	var total int64
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			s.q("UPDATE users SET current_points = current_points + ?, updated_at = ? WHERE id = ?"),
			delta, time.Now().UTC(), id)
		if err != nil {
			return err
		}
		if err := affected(res); err != nil {
			return err
		}
		return tx.GetContext(ctx, &total, s.q("SELECT current_points FROM users WHERE id = ?"), id)
	})
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return 0, fmt.Errorf("increment points: %w", err)
	}
	return total, err
}

func (s *Store) SetLevel(ctx context.Context, id core.UserID, levelID string) error {
	res, err := s.db.ExecContext(ctx, s.q("UPDATE users SET level_id = ?, updated_at = ? WHERE id = ?"), levelID, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set level: %w", err)
	}
	return affected(res)
}

func (s *Store) SaveUser(ctx context.Context, u *core.User) error {
	u.ID = core.UserID(newID(string(u.ID)))
	if u.Role == "" {
		u.Role = core.RoleUser
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = time.Now().UTC()
	}
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		found, err := s.exists(ctx, tx, "users", string(u.ID))
		if err != nil {
			return err
		}
		if found {
			_, err = tx.NamedExecContext(ctx, `UPDATE users SET username = :username, full_name = :full_name, role = :role,
				current_points = :current_points, updated_at = :updated_at WHERE id = :id`, u)
			return err
		}
		_, err = tx.NamedExecContext(ctx, `INSERT INTO users (id, username, full_name, role, current_points, updated_at)
			VALUES (:id, :username, :full_name, :role, :current_points, :updated_at)`, u)
		return err
	})
}

// Levels

func (s *Store) ListLevels(ctx context.Context) ([]core.Level, error) {
	var out []core.Level
	if err := s.db.SelectContext(ctx, &out, "SELECT id, name, points, COALESCE(description, '') AS description FROM levels ORDER BY points"); err != nil {
		return nil, fmt.Errorf("select levels: %w", err)
	}
	return out, nil
}

func (s *Store) InsertLevels(ctx context.Context, levels []core.Level) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		for i := range levels {
			levels[i].ID = newID(levels[i].ID)
			if _, err := tx.NamedExecContext(ctx,
				"INSERT INTO levels (id, name, points, description) VALUES (:id, :name, :points, :description)", levels[i]); err != nil {
				return fmt.Errorf("insert level %q: %w", levels[i].Name, err)
			}
		}
		return nil
	})
}

// Notifications

const notificationColumns = "id, user_id, forum_id, title, message, type, aggregate_count, is_read, created_at, read_at"

func (s *Store) InsertNotification(ctx context.Context, n *core.Notification) error {
	n.ID = newID(n.ID)
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO notifications (`+notificationColumns+`)
		VALUES (:id, :user_id, :forum_id, :title, :message, :type, :aggregate_count, :is_read, :created_at, :read_at)`, n)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *Store) UpdateNotification(ctx context.Context, n core.Notification) error {
	res, err := s.db.NamedExecContext(ctx, `UPDATE notifications SET title = :title, message = :message,
		aggregate_count = :aggregate_count, is_read = :is_read, read_at = :read_at, created_at = :created_at WHERE id = :id`, n)
	if err != nil {
		return fmt.Errorf("update notification: %w", err)
	}
	return affected(res)
}

func (s *Store) FindRecentLike(ctx context.Context, user core.UserID, forum core.ForumID, since time.Time) (core.Notification, error) {
	var n core.Notification
	err := s.db.GetContext(ctx, &n, s.q("SELECT "+notificationColumns+
		" FROM notifications WHERE user_id = ? AND forum_id = ? AND type = ? AND created_at >= ? ORDER BY created_at DESC LIMIT 1"),
		user, forum, core.NotifyLike, since)
	if err != nil {
		return core.Notification{}, notFound(err)
	}
	return n, nil
}

func (s *Store) ListNotifications(ctx context.Context, user core.UserID, limit int) ([]core.Notification, error) {
	var out []core.Notification
	err := s.db.SelectContext(ctx, &out,
		s.q("SELECT "+notificationColumns+" FROM notifications WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?"),
		user, limit)
	if err != nil {
		return nil, fmt.Errorf("select notifications: %w", err)
	}
	return out, nil
}

func (s *Store) MarkRead(ctx context.Context, user core.UserID, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, s.q("UPDATE notifications SET is_read = TRUE, read_at = ? WHERE id = ? AND user_id = ?"), at, id, user)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return affected(res)
}

func (s *Store) MarkAllRead(ctx context.Context, user core.UserID, at time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.q("UPDATE notifications SET is_read = TRUE, read_at = ? WHERE user_id = ? AND is_read = FALSE"), at, user)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) CountUnread(ctx context.Context, user core.UserID) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, s.q("SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = FALSE"), user); err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

func (s *Store) DeleteNotificationsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.q("DELETE FROM notifications WHERE created_at < ?"), cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete notifications: %w", err)
	}
	return res.RowsAffected()
}

// Forums

const forumColumns = "id, user_id, title, views_count, upvotes, downvotes, comment_count, created_at, deleted_at"

func (s *Store) GetForum(ctx context.Context, id core.ForumID) (core.Forum, error) {
	var f core.Forum
	err := s.db.GetContext(ctx, &f, s.q("SELECT "+forumColumns+" FROM forums WHERE id = ? AND deleted_at IS NULL"), id)
	if err != nil {
		return core.Forum{}, notFound(err)
	}
	return f, nil
}

func (s *Store) RecentForums(ctx context.Context, since time.Time) ([]core.Forum, error) {
	var out []core.Forum
	err := s.db.SelectContext(ctx, &out,
		s.q("SELECT "+forumColumns+" FROM forums WHERE deleted_at IS NULL AND created_at >= ? ORDER BY created_at DESC, id"), since)
	if err != nil {
		return nil, fmt.Errorf("select forums: %w", err)
	}
	return out, nil
}

func (s *Store) SaveForum(ctx context.Context, f *core.Forum) error {
	f.ID = core.ForumID(newID(string(f.ID)))
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		found, err := s.exists(ctx, tx, "forums", string(f.ID))
		if err != nil {
			return err
		}
		if found {
			_, err = tx.NamedExecContext(ctx, `UPDATE forums SET user_id = :user_id, title = :title, views_count = :views_count,
				upvotes = :upvotes, downvotes = :downvotes, comment_count = :comment_count, deleted_at = :deleted_at WHERE id = :id`, f)
			return err
		}
		_, err = tx.NamedExecContext(ctx, `INSERT INTO forums (`+forumColumns+`)
			VALUES (:id, :user_id, :title, :views_count, :upvotes, :downvotes, :comment_count, :created_at, :deleted_at)`, f)
		return err
	})
}
