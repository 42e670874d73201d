// Package example is a small users service written against the ambient
// session API only. None of its functions take a session or transaction.
package example

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/TechXTT/txctx"
	"github.com/TechXTT/txctx/pkg/query"
	"github.com/TechXTT/txctx/pkg/runtime"
)

//go:embed migrations
var migrations embed.FS

// Migrations returns the schema for dialect.
func Migrations(dialect runtime.Dialect) (fs.FS, error) {
	return fs.Sub(migrations, "migrations/"+dialect.String())
}

type User struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

func (u User) String() string {
	return fmt.Sprintf("<User id=%d name=%q>", u.ID, u.Name)
}

// Users is the users table DAO. Every call runs on the caller's current session.
type Users struct {
	db      *txctx.DB
	dialect runtime.Dialect
}

func NewUsers(db *txctx.DB, dialect runtime.Dialect) *Users {
	return &Users{db: db, dialect: dialect}
}

func (u *Users) InsertUser(ctx context.Context, name string) (*User, error) {
	q := query.InsertInto("users").Columns("name").Values(name)
	// MySQL has no RETURNING; the driver reports the new id instead.
	if u.dialect == runtime.DialectMySQL {
		res, err := u.db.Insert(q).Exec(ctx)
		if err != nil {
			return nil, fmt.Errorf("insert user: %w", err)
		}
		return &User{ID: res.LastInsertID, Name: name}, nil
	}
	res, err := u.db.Insert(q.Returning("id", "name")).Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	var users []User
	if err := res.ScanAll(&users); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("insert user: no row returned")
	}
	return &users[0], nil
}

func (u *Users) ListUsers(ctx context.Context) ([]User, error) {
	res, err := u.db.Select(query.Select("users", "id", "name").OrderBy("id")).Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	var users []User
	if err := res.ScanAll(&users); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// UpdateUser renames a user and reports whether a row matched.
func (u *Users) UpdateUser(ctx context.Context, id int64, name string) (bool, error) {
	res, err := u.db.Update(query.Update("users").Set("name", name).Where("id = ?", id)).Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("update user %d: %w", id, err)
	}
	return res.RowsAffected > 0, nil
}

// CountUsers returns how many users have name.
func (u *Users) CountUsers(ctx context.Context, name string) (int64, error) {
	return u.db.Count(query.Select("users").Where("name = ?", name)).Exec(ctx)
}
