package cli

import (
	"github.com/spf13/cobra"

	"github.com/TechXTT/txctx/internal/example"
	"github.com/TechXTT/txctx/pkg/migrate"
)

// NewDemoCmd builds the `demo` command, which runs the users example
// against the configured database.
func NewDemoCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Create users in a transaction, then roll back an update",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()
			schema, err := example.Migrations(e.dialect)
			if err != nil {
				return err
			}
			mgr, err := migrate.NewManager(e.db, schema)
			if err != nil {
				return err
			}
			if _, err := mgr.Up(ctx); err != nil {
				return err
			}

			svc := example.NewService(e.db, e.dialect, e.logger)
			users, err := svc.CreateAndListUsers(ctx, "Alice", "Bob")
			if err != nil {
				return err
			}
			cmd.Println("Users after insert:", users)

			users, err = svc.UpdateUserAndRollback(ctx, users[0].ID, "Updated Alice")
			if err != nil {
				return err
			}
			cmd.Println("Users after rollback attempt:", users)
			return nil
		},
	}
}
