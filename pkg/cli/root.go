package cli

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/TechXTT/txctx"
	"github.com/TechXTT/txctx/pkg/config"
	"github.com/TechXTT/txctx/pkg/runtime"
)

var version = "v0.1.0"

type globalFlags struct {
	envFile string
	driver  string
	dsn     string
}

// env is everything a command needs to talk to the database.
type env struct {
	cfg     *config.Config
	conn    *sql.DB
	dialect runtime.Dialect
	db      *txctx.DB
	logger  *slog.Logger
}

func (e *env) Close() error {
	return e.conn.Close()
}

func (g *globalFlags) open(cmd *cobra.Command) (*env, error) {
	var files []string
	if g.envFile != "" {
		files = append(files, g.envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return nil, err
	}
	if g.driver != "" {
		cfg.Driver = g.driver
	}
	if g.dsn != "" {
		cfg.DSN = g.dsn
	}

	conn, dialect, err := runtime.Connect(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	conn.SetMaxOpenConns(cfg.MaxOpenConns)

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.Level()}))
	db := txctx.New(runtime.Maker(conn, dialect),
		txctx.WithLogger(logger),
		txctx.WithAutoContextOnExecute(cfg.AutoContextOnExecute),
		txctx.WithAutoContextForceTransaction(cfg.AutoContextForceTransaction),
	)
	return &env{cfg: cfg, conn: conn, dialect: dialect, db: db, logger: logger}, nil
}

// NewVersionCmd builds the `version` command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version)
		},
	}
}

// NewRootCmd builds the top-level `txctx` command.
func NewRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "txctx",
		Short:         "Scoped database sessions: migrations and demo",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.envFile, "env-file", "", "dotenv file to load (default .env)")
	root.PersistentFlags().StringVar(&g.driver, "driver", "", "database driver: sqlite, postgres or mysql")
	root.PersistentFlags().StringVar(&g.dsn, "dsn", "", "database DSN, overrides TXCTX_DSN")

	root.AddCommand(NewMigrateCmd(g))
	root.AddCommand(NewDemoCmd(g))
	root.AddCommand(NewVersionCmd())
	return root
}
