package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TXCTX_DSN", "file:app.db")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	require.Equal(t, "file:app.db", cfg.DSN)
	require.Equal(t, "migrations", cfg.MigrationsDir)
	require.Equal(t, 10, cfg.MaxOpenConns)
	require.False(t, cfg.AutoContextOnExecute)
	require.Equal(t, slog.LevelInfo, cfg.Level())
}

func TestLoad_DotenvAndOverrides(t *testing.T) {
	dotenv := writeFile(t, ".env", "TXCTX_DRIVER=postgres\nTXCTX_AUTO_CONTEXT=true\nTXCTX_LOG_LEVEL=debug\n")
	t.Setenv("TXCTX_DSN", "postgres://localhost/app")
	t.Setenv("TXCTX_MAX_OPEN_CONNS", "3")
	t.Setenv("TXCTX_DRIVER", "")
	t.Setenv("TXCTX_AUTO_CONTEXT", "")
	t.Setenv("TXCTX_LOG_LEVEL", "")
	os.Unsetenv("TXCTX_DRIVER")
	os.Unsetenv("TXCTX_AUTO_CONTEXT")
	os.Unsetenv("TXCTX_LOG_LEVEL")

	cfg, err := Load(dotenv)
	require.NoError(t, err)
	require.Equal(t, "postgres", cfg.Driver)
	require.True(t, cfg.AutoContextOnExecute)
	require.Equal(t, 3, cfg.MaxOpenConns)
	require.Equal(t, slog.LevelDebug, cfg.Level())
}

func TestLoad_InvalidValue(t *testing.T) {
	t.Setenv("TXCTX_MAX_OPEN_CONNS", "many")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.ErrorContains(t, err, "parse env:")
}

func TestLoad_DatasourceFromSchema(t *testing.T) {
	schema := writeFile(t, "schema.prisma", `datasource db {
  provider = "postgresql"
  url      = env("APP_DATABASE_URL")
}`)
	t.Setenv("TXCTX_DSN", "")
	t.Setenv("TXCTX_SCHEMA", schema)
	t.Setenv("APP_DATABASE_URL", "postgres://db/app")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	require.Equal(t, "postgres://db/app", cfg.DSN)
}

func TestDatasourceURL(t *testing.T) {
	literal := writeFile(t, "literal.prisma", `datasource db { url = "file:dev.db" }`)
	dsn, err := DatasourceURL(literal)
	require.NoError(t, err)
	require.Equal(t, "file:dev.db", dsn)

	missing := writeFile(t, "nourl.prisma", `generator client {}`)
	_, err = DatasourceURL(missing)
	require.ErrorContains(t, err, "could not parse datasource url")

	unset := writeFile(t, "unset.prisma", `datasource db { url = env("TXCTX_TEST_UNSET_URL") }`)
	_, err = DatasourceURL(unset)
	require.EqualError(t, err, "datasource env TXCTX_TEST_UNSET_URL is not set")
}
