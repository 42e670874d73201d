package txctx_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/TechXTT/txctx"
	"github.com/TechXTT/txctx/pkg/query"
	"github.com/TechXTT/txctx/pkg/runtime"
)

type entry struct {
	ID      int64  `db:"id"`
	Message string `db:"message"`
}

func openSQLite(t *testing.T, opts ...txctx.Option) *txctx.DB {
	t.Helper()
	conn, dialect, err := runtime.Connect("sqlite", filepath.Join(t.TempDir(), "txctx.db")+"?_pragma=busy_timeout(5000)")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	_, err = conn.Exec(`CREATE TABLE logs (id INTEGER PRIMARY KEY AUTOINCREMENT, message TEXT NOT NULL)`)
	require.NoError(t, err)
	return txctx.New(runtime.Maker(conn, dialect), opts...)
}

func insertLog(ctx context.Context, db *txctx.DB, message string) error {
	_, err := db.Insert(query.InsertInto("logs").Columns("message").Values(message)).Exec(ctx)
	return err
}

func messages(t *testing.T, ctx context.Context, db *txctx.DB) []string {
	t.Helper()
	var out []string
	require.NoError(t, db.NewSession(ctx, func(ctx context.Context, _ txctx.Session) error {
		res, err := db.Select(query.Select("logs", "id", "message").OrderBy("message")).Exec(ctx)
		if err != nil {
			return err
		}
		var entries []entry
		if err := res.ScanAll(&entries); err != nil {
			return err
		}
		for _, e := range entries {
			out = append(out, e.Message)
		}
		return nil
	}))
	return out
}

func TestSQLite_TransactionCommitsAndRollsBack(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)

	require.NoError(t, db.Transaction(ctx, func(ctx context.Context, _ txctx.Session) error {
		return insertLog(ctx, db, "kept")
	}))

	cause := errors.New("abort")
	err := db.Transaction(ctx, func(ctx context.Context, _ txctx.Session) error {
		if err := insertLog(ctx, db, "dropped"); err != nil {
			return err
		}
		return cause
	})
	require.Same(t, cause, err)
	require.Equal(t, []string{"kept"}, messages(t, ctx, db))
}

func TestSQLite_NestedTransactionUsesSavepoint(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)

	require.NoError(t, db.Transaction(ctx, func(ctx context.Context, s txctx.Session) error {
		require.NoError(t, insertLog(ctx, db, "outer"))
		err := db.Transaction(ctx, func(ctx context.Context, inner txctx.Session) error {
			require.Same(t, s, inner)
			require.True(t, inner.InNestedTransaction())
			require.NoError(t, insertLog(ctx, db, "inner"))
			return errors.New("force rollback inner")
		})
		require.Error(t, err)
		require.False(t, s.InNestedTransaction())
		return insertLog(ctx, db, "outer2")
	}))
	require.Equal(t, []string{"outer", "outer2"}, messages(t, ctx, db))
}

func TestSQLite_SessionDoesNotCommit(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)

	require.NoError(t, db.Session(ctx, func(ctx context.Context, s txctx.Session) error {
		require.NoError(t, s.Begin(ctx))
		return insertLog(ctx, db, "uncommitted")
	}))
	require.Empty(t, messages(t, ctx, db))
}

func TestSQLite_ConcurrentBranches(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)

	var mu sync.Mutex
	seen := map[string]bool{}
	branch := func(message string) func(context.Context) error {
		return func(ctx context.Context) error {
			return db.Session(ctx, func(ctx context.Context, s txctx.Session) error {
				id := s.(*runtime.Session).ID()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
				return db.Transaction(ctx, func(ctx context.Context, _ txctx.Session) error {
					return insertLog(ctx, db, message)
				})
			})
		}
	}
	require.NoError(t, txctx.Gather(ctx, branch("log1"), branch("log2"), branch("log3")))
	require.Len(t, seen, 3)
	require.Equal(t, []string{"log1", "log2", "log3"}, messages(t, ctx, db))
}

func TestSQLite_AutoContext(t *testing.T) {
	ctx := context.Background()

	_, err := openSQLite(t).Execute(ctx, query.Select("logs"))
	require.ErrorIs(t, err, txctx.ErrNoSession)

	db := openSQLite(t, txctx.WithAutoContextOnExecute(true))
	res, err := db.Insert(query.InsertInto("logs").Columns("message").Values("first").Returning("id", "message")).Exec(ctx)
	require.NoError(t, err)
	var created []entry
	require.NoError(t, res.ScanAll(&created))
	require.Equal(t, []entry{{ID: 1, Message: "first"}}, created)

	res, err = db.Update(query.Update("logs").Set("message", "changed").Where("id = ?", 1)).Exec(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, res.RowsAffected)

	ok, err := db.Exists(query.Select("logs").Where("message = ?", "changed")).Exec(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	res, err = db.Delete(query.DeleteFrom("logs").Where("id = ?", 1)).Exec(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, res.RowsAffected)

	n, err := db.Count(query.Select("logs")).Exec(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
	require.Nil(t, db.LookupSession(ctx))
}
