package example

import (
	"context"
	"errors"
	"log/slog"

	"github.com/TechXTT/txctx"
	"github.com/TechXTT/txctx/pkg/runtime"
)

var errForceRollback = errors.New("force rollback")

type Service struct {
	db     *txctx.DB
	users  *Users
	logger *slog.Logger
}

func NewService(db *txctx.DB, dialect runtime.Dialect, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{db: db, users: NewUsers(db, dialect), logger: logger}
}

// CreateAndListUsers inserts names in a single transaction, then lists all
// users in a fresh session.
func (s *Service) CreateAndListUsers(ctx context.Context, names ...string) ([]User, error) {
	err := s.db.Transaction(ctx, func(ctx context.Context, _ txctx.Session) error {
		for _, name := range names {
			u, err := s.users.InsertUser(ctx, name)
			if err != nil {
				return err
			}
			s.logger.InfoContext(ctx, "user inserted", "user", u.String())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.list(ctx)
}

// UpdateUserAndRollback renames a user inside a transaction that is then
// abandoned, and lists the users afterwards. The rename is never visible.
func (s *Service) UpdateUserAndRollback(ctx context.Context, id int64, name string) ([]User, error) {
	err := s.db.Transaction(ctx, func(ctx context.Context, _ txctx.Session) error {
		if _, err := s.users.UpdateUser(ctx, id, name); err != nil {
			return err
		}
		return errForceRollback
	})
	if !errors.Is(err, errForceRollback) {
		return nil, err
	}
	s.logger.InfoContext(ctx, "update rolled back", "user_id", id)
	return s.list(ctx)
}

func (s *Service) list(ctx context.Context) ([]User, error) {
	var users []User
	err := s.db.Session(ctx, func(ctx context.Context, _ txctx.Session) error {
		var err error
		users, err = s.users.ListUsers(ctx)
		return err
	}, txctx.ReuseIfExists(true))
	return users, err
}
