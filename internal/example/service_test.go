package example

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/TechXTT/txctx"
	"github.com/TechXTT/txctx/pkg/migrate"
	"github.com/TechXTT/txctx/pkg/runtime"
)

func newDB(t *testing.T, opts ...txctx.Option) *txctx.DB {
	t.Helper()
	conn, dialect, err := runtime.Connect("sqlite", filepath.Join(t.TempDir(), "example.db")+"?_pragma=busy_timeout(5000)")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	db := txctx.New(runtime.Maker(conn, dialect), opts...)
	schema, err := Migrations(dialect)
	require.NoError(t, err)
	mgr, err := migrate.NewManager(db, schema)
	require.NoError(t, err)
	_, err = mgr.Up(context.Background())
	require.NoError(t, err)
	return db
}

func names(users []User) []string {
	out := make([]string, len(users))
	for i, u := range users {
		out[i] = u.Name
	}
	return out
}

func TestService_CreateAndUpdateWithRollback(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newDB(t), runtime.DialectSQLite, nil)

	users, err := svc.CreateAndListUsers(ctx, "Alice", "Bob")
	require.NoError(t, err)
	require.Equal(t, []string{"Alice", "Bob"}, names(users))
	require.Equal(t, `<User id=1 name="Alice">`, users[0].String())

	users, err = svc.UpdateUserAndRollback(ctx, users[0].ID, "Updated Alice")
	require.NoError(t, err)
	require.Equal(t, []string{"Alice", "Bob"}, names(users))
}

func TestService_FailedBatchInsertsNothing(t *testing.T) {
	ctx := context.Background()
	db := newDB(t)
	svc := NewService(db, runtime.DialectSQLite, nil)

	_, err := svc.CreateAndListUsers(ctx, "Alice")
	require.NoError(t, err)
	_, err = svc.CreateAndListUsers(ctx, "Carol", "Alice")
	require.ErrorContains(t, err, "insert user")
	require.Equal(t, txctx.KindEngine, txctx.Classify(err))

	users := NewUsers(db, runtime.DialectSQLite)
	require.NoError(t, db.Session(ctx, func(ctx context.Context, _ txctx.Session) error {
		n, err := users.CountUsers(ctx, "Carol")
		require.NoError(t, err)
		require.Zero(t, n)
		return nil
	}))
}

func TestUsers_RequireSessionUnlessAutoContext(t *testing.T) {
	ctx := context.Background()

	_, err := NewUsers(newDB(t), runtime.DialectSQLite).ListUsers(ctx)
	require.ErrorIs(t, err, txctx.ErrNoSession)

	users := NewUsers(newDB(t, txctx.WithAutoContextOnExecute(true)), runtime.DialectSQLite)
	u, err := users.InsertUser(ctx, "Dave")
	require.NoError(t, err)
	updated, err := users.UpdateUser(ctx, u.ID, "David")
	require.NoError(t, err)
	require.True(t, updated)
	updated, err = users.UpdateUser(ctx, u.ID+100, "Nobody")
	require.NoError(t, err)
	require.False(t, updated)

	list, err := users.ListUsers(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"David"}, names(list))
}

func TestUsers_InsertUserOnMySQLUsesLastInsertID(t *testing.T) {
	ctx := context.Background()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	mock.ExpectBegin()
	mock.ExpectExec(`^INSERT INTO users \(name\) VALUES \(\?\)$`).
		WithArgs("Alice").
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectCommit()

	db := txctx.New(runtime.Maker(conn, runtime.DialectMySQL))
	users := NewUsers(db, runtime.DialectMySQL)

	var u *User
	require.NoError(t, db.Transaction(ctx, func(ctx context.Context, _ txctx.Session) error {
		var err error
		u, err = users.InsertUser(ctx, "Alice")
		return err
	}))
	require.Equal(t, &User{ID: 7, Name: "Alice"}, u)
	require.NoError(t, mock.ExpectationsWereMet())
}
