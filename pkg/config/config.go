package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"regexp"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the database and scope settings shared by the CLI and services.
type Config struct {
	Driver        string `env:"TXCTX_DRIVER"`
	DSN           string `env:"TXCTX_DSN"`
	SchemaPath    string `env:"TXCTX_SCHEMA"`
	MigrationsDir string `env:"TXCTX_MIGRATIONS_DIR" envDefault:"migrations"`
	MaxOpenConns  int    `env:"TXCTX_MAX_OPEN_CONNS" envDefault:"10"`
	LogLevel      string `env:"TXCTX_LOG_LEVEL" envDefault:"info"`

	AutoContextOnExecute        bool `env:"TXCTX_AUTO_CONTEXT"`
	AutoContextForceTransaction bool `env:"TXCTX_AUTO_CONTEXT_FORCE_TX"`
}

// Load reads .env files (missing ones are skipped), then TXCTX_* variables.
// When no DSN is set and a schema file is, the datasource url is taken from
// the schema.
func Load(envFiles ...string) (*Config, error) {
	if err := loadDotenv(envFiles...); err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.DSN == "" && cfg.SchemaPath != "" {
		dsn, err := DatasourceURL(cfg.SchemaPath)
		if err != nil {
			return nil, err
		}
		cfg.DSN = dsn
	}
	return cfg, nil
}

func loadDotenv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

var datasourceURL = regexp.MustCompile(`url\s*=\s*(?:env\("([^"]+)"\)|"([^"]+)")`)

// DatasourceURL reads the datasource url from a Prisma-style schema file,
// resolving env("NAME") references.
func DatasourceURL(schemaFile string) (string, error) {
	data, err := os.ReadFile(schemaFile)
	if err != nil {
		return "", fmt.Errorf("read schema: %w", err)
	}
	m := datasourceURL.FindStringSubmatch(string(data))
	if len(m) != 3 {
		return "", fmt.Errorf("could not parse datasource url from schema: %s", schemaFile)
	}
	if m[1] == "" {
		return m[2], nil
	}
	dsn := os.Getenv(m[1])
	if dsn == "" {
		return "", fmt.Errorf("datasource env %s is not set", m[1])
	}
	return dsn, nil
}

// Level parses LogLevel, defaulting to info.
func (c *Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}
