package sqlx_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	libsqlx "github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	storage "civicrank/adapters/sqlx"
	"civicrank/core"
	"civicrank/engine"
)

var _ engine.Storage = (*storage.Store)(nil)

func newMockStore(t *testing.T) (*storage.Store, sqlmock.Sqlmock, func()) {
	return newMockStoreFor(t, "postgres", storage.DriverPostgres)
}

func newMockStoreFor(t *testing.T, driverName string, driver storage.Driver) (*storage.Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	xdb := storage.NewWithDB(libsqlx.NewDb(db, driverName), driver)
	cleanup := func() {
		_ = db.Close()
	}
	return xdb, mock, cleanup
}

func TestSQLMock_IncrementPoints(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	ctx := context.Background()
	user := core.UserID("u1")

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE users SET current_points = current_points \+ \$1, updated_at = \$2 WHERE id = \$3`).
		WithArgs(int64(10), sqlmock.AnyArg(), user).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT current_points FROM users WHERE id = \$1`).
		WithArgs(user).
		WillReturnRows(sqlmock.NewRows([]string{"current_points"}).AddRow(60))
	mock.ExpectCommit()

	total, err := store.IncrementPoints(ctx, user, 10)
	require.NoError(t, err)
	require.Equal(t, int64(60), total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_IncrementPoints_UnknownUser(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE users SET current_points`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := store.IncrementPoints(context.Background(), "ghost", 5)
	require.ErrorIs(t, err, core.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_IncrementPoints_MySQLBindvars(t *testing.T) {
	store, mock, cleanup := newMockStoreFor(t, "mysql", storage.DriverMySQL)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE users SET current_points = current_points \+ \?, updated_at = \? WHERE id = \?`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT current_points FROM users WHERE id = \?`).
		WillReturnRows(sqlmock.NewRows([]string{"current_points"}).AddRow(-5))
	mock.ExpectCommit()

	total, err := store.IncrementPoints(context.Background(), "u1", -5)
	require.NoError(t, err)
	require.Equal(t, int64(-5), total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_ActiveRules(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cols := []string{"id", "event_type", "event_condition", "points", "description", "is_active", "created_by", "created_at", "updated_at"}

	mock.ExpectQuery(`FROM point_rules WHERE is_active = TRUE AND event_type = \$1 AND event_condition IS NULL ORDER BY created_at, id`).
		WithArgs("create_post").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("r1", "create_post", nil, 10, "Membuat laporan", true, nil, created, created).
			AddRow("r2", "create_post", nil, 5, "Duplikat", true, "admin", created.Add(time.Hour), created))

	rules, err := store.ActiveRules(context.Background(), "create_post", nil)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	require.Equal(t, "r1", rules[0].ID)
	require.Nil(t, rules[0].EventCondition)
	require.Equal(t, int64(10), rules[0].Points)
	require.NotNil(t, rules[1].CreatedBy)
	require.Equal(t, core.UserID("admin"), *rules[1].CreatedBy)

	cond := "approved"
	mock.ExpectQuery(`AND event_condition = \$2 ORDER BY created_at, id`).
		WithArgs("create_post", cond).
		WillReturnRows(sqlmock.NewRows(cols))
	rules, err = store.ActiveRules(context.Background(), "create_post", &cond)
	require.NoError(t, err)
	require.Empty(t, rules)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_SaveRule_Insert(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	rule := core.PointRule{EventType: "comment", Points: 3, IsActive: true}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT EXISTS`).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`INSERT INTO point_rules`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, store.SaveRule(context.Background(), &rule))
	require.NotEmpty(t, rule.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_DeleteRule_NotFound(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectExec(`DELETE FROM point_rules WHERE id = \$1`).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.ErrorIs(t, store.DeleteRule(context.Background(), "missing"), core.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_InsertTransaction(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectExec(`INSERT INTO point_transactions`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	ruleID := "r1"
	tx := core.PointTransaction{UserID: "u1", Points: 10, EventType: "create_post", RuleID: &ruleID}
	require.NoError(t, store.InsertTransaction(context.Background(), &tx))
	require.NotEmpty(t, tx.ID)
	require.False(t, tx.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_LedgerTotals(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectQuery(`(?s)SELECT\s+COALESCE\(SUM\(points\), 0\) AS distributed,.*FROM point_transactions`).
		WillReturnRows(sqlmock.NewRows([]string{"distributed", "awarded", "deducted", "transactions"}).
			AddRow([]byte("18"), []byte("25"), []byte("7"), 4))
	mock.ExpectQuery(`SELECT event_type, SUM\(points\) AS total_points, COUNT\(\*\) AS transactions\s+FROM point_transactions GROUP BY event_type`).
		WillReturnRows(sqlmock.NewRows([]string{"event_type", "total_points", "transactions"}).
			AddRow("create_post", 20, 2).
			AddRow("comment", 5, 1).
			AddRow("manual_adjustment", -7, 1))

	totals, err := store.LedgerTotals(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(18), totals.Distributed)
	require.Equal(t, int64(25), totals.Awarded)
	require.Equal(t, int64(7), totals.Deducted)
	require.Equal(t, int64(4), totals.Transactions)
	require.Len(t, totals.ByEventType, 3)
	require.Equal(t, core.EventTypeTotal{EventType: "create_post", Points: 20, Transactions: 2}, totals.ByEventType[0])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_TopUsers(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectQuery(`FROM users ORDER BY current_points DESC, id LIMIT \$1`).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "full_name", "role", "current_points", "level_id", "updated_at"}).
			AddRow("u2", "siti", "", "user", 90, "", time.Now()).
			AddRow("u1", "budi", "", "user", 40, "", time.Now()))

	top, err := store.TopUsers(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	require.Equal(t, core.UserID("u2"), top[0].ID)
	require.Equal(t, int64(90), top[0].CurrentPoints)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_GetUser(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	ctx := context.Background()
	mock.ExpectQuery(`SELECT .* FROM users WHERE id = \$1`).
		WithArgs(core.UserID("u1")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "full_name", "role", "current_points", "level_id", "updated_at"}).
			AddRow("u1", "budi", "Budi Santoso", "karyawan", 120, "lvl-2", time.Now()))

	u, err := store.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, core.RoleEmployee, u.Role)
	require.Equal(t, int64(120), u.CurrentPoints)
	require.Equal(t, "lvl-2", u.LevelID)

	mock.ExpectQuery(`SELECT .* FROM users WHERE id = \$1`).
		WithArgs(core.UserID("ghost")).
		WillReturnError(sql.ErrNoRows)
	_, err = store.GetUser(ctx, "ghost")
	require.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_GetUser_NormalizesRole(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	ctx := context.Background()
	cols := []string{"id", "username", "full_name", "role", "current_points", "level_id", "updated_at"}
	mock.ExpectQuery(`SELECT .* FROM users WHERE id = \$1`).
		WithArgs(core.UserID("u1")).
		WillReturnRows(sqlmock.NewRows(cols).AddRow("u1", "budi", "", []byte("User "), 5, "", time.Now()))
	u, err := store.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, core.RoleUser, u.Role)
	require.True(t, u.Role.EarnsPoints())

	mock.ExpectQuery(`SELECT .* FROM users WHERE id = \$1`).
		WithArgs(core.UserID("u2")).
		WillReturnRows(sqlmock.NewRows(cols).AddRow("u2", "rina", "", "superuser", 0, "", time.Now()))
	_, err = store.GetUser(ctx, "u2")
	require.ErrorIs(t, err, core.ErrUnknownRole)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_FindUserByFullName(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectQuery(`FROM users WHERE LOWER\(full_name\) LIKE \$1`).
		WithArgs("%rahma%").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "full_name", "role", "current_points", "level_id", "updated_at"}).
			AddRow("u2", "siti", "Siti Rahma", "user", 0, "", time.Now()))

	u, err := store.FindUserByFullName(context.Background(), "Rahma")
	require.NoError(t, err)
	require.Equal(t, core.UserID("u2"), u.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_FindRecentLike(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	since := time.Now().Add(-time.Hour)
	mock.ExpectQuery(`FROM notifications WHERE user_id = \$1 AND forum_id = \$2 AND type = \$3 AND created_at >= \$4`).
		WithArgs(core.UserID("owner"), core.ForumID("f1"), core.NotifyLike, since).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "forum_id", "title", "message", "type", "aggregate_count", "is_read", "created_at", "read_at"}).
			AddRow("n1", "owner", "f1", "Andi", "Andi menyukai laporan Anda", "like", 1, false, time.Now(), nil))

	n, err := store.FindRecentLike(context.Background(), "owner", "f1", since)
	require.NoError(t, err)
	require.Equal(t, "n1", n.ID)
	require.NotNil(t, n.ForumID)
	require.Equal(t, core.ForumID("f1"), *n.ForumID)
	require.Nil(t, n.ReadAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_MarkReadAndCleanup(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now()

	mock.ExpectExec(`UPDATE notifications SET is_read = TRUE, read_at = \$1 WHERE id = \$2 AND user_id = \$3`).
		WithArgs(now, "n1", core.UserID("intruder")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.ErrorIs(t, store.MarkRead(ctx, "intruder", "n1", now), core.ErrNotFound)

	mock.ExpectExec(`UPDATE notifications SET is_read = TRUE, read_at = \$1 WHERE user_id = \$2 AND is_read = FALSE`).
		WithArgs(now, core.UserID("u1")).
		WillReturnResult(sqlmock.NewResult(0, 3))
	marked, err := store.MarkAllRead(ctx, "u1", now)
	require.NoError(t, err)
	require.Equal(t, int64(3), marked)

	cutoff := now.Add(-30 * 24 * time.Hour)
	mock.ExpectExec(`DELETE FROM notifications WHERE created_at < \$1`).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 7))
	deleted, err := store.DeleteNotificationsBefore(ctx, cutoff)
	require.NoError(t, err)
	require.Equal(t, int64(7), deleted)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_RecentForums(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	since := time.Now().Add(-7 * 24 * time.Hour)
	mock.ExpectQuery(`FROM forums WHERE deleted_at IS NULL AND created_at >= \$1 ORDER BY created_at DESC`).
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "title", "views_count", "upvotes", "downvotes", "comment_count", "created_at", "deleted_at"}).
			AddRow("f1", "u1", "Lampu jalan mati", 100, 10, 1, 5, time.Now(), nil))

	forums, err := store.RecentForums(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, forums, 1)
	require.Equal(t, int64(100), forums[0].ViewsCount)
	require.Equal(t, int64(5), forums[0].CommentCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_Migrate(t *testing.T) {
	for _, tc := range []struct {
		name   string
		driver storage.Driver
	}{{"postgres", storage.DriverPostgres}, {"mysql", storage.DriverMySQL}} {
		t.Run(tc.name, func(t *testing.T) {
			store, mock, cleanup := newMockStoreFor(t, tc.name, tc.driver)
			defer cleanup()

			for range store.Schema() {
				mock.ExpectExec(`CREATE`).WillReturnResult(sqlmock.NewResult(0, 0))
			}
			require.NoError(t, store.Migrate(context.Background()))
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
