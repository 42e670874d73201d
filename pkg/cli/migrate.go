package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/TechXTT/txctx/pkg/migrate"
)

func NewMigrateCmd(g *globalFlags) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Run database migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.open(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			if dir == "" {
				dir = e.cfg.MigrationsDir
			}
			mgr, err := migrate.NewManager(e.db, os.DirFS(dir))
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			switch args[0] {
			case "up":
				applied, err := mgr.Up(ctx)
				if err != nil {
					return err
				}
				for _, mig := range applied {
					cmd.Printf("Applied %04d_%s.up.sql\n", mig.Version, mig.Name)
				}
				if len(applied) == 0 {
					cmd.Println("No pending migrations.")
				}
			case "down":
				mig, err := mgr.Down(ctx)
				if err != nil {
					return err
				}
				if mig == nil {
					cmd.Println("No migrations to roll back.")
					return nil
				}
				cmd.Printf("Rolled back %04d_%s.down.sql\n", mig.Version, mig.Name)
			case "status":
				status, err := mgr.Status(ctx)
				if err != nil {
					return err
				}
				for _, s := range status {
					state := "pending"
					if s.Applied {
						state = "applied"
					}
					cmd.Printf("%04d_%s: %s\n", s.Version, s.Name, state)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "migrations directory (default TXCTX_MIGRATIONS_DIR or migrations)")
	return cmd
}
