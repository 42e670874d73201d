package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"

	"github.com/TechXTT/txctx"
	"github.com/TechXTT/txctx/pkg/query"
)

const versionTable = "schema_migrations"

// Migration holds one versioned migration
type Migration struct {
	Version int
	Name    string
	UpSQL   string
	DownSQL string
}

// Status is the applied state of one migration.
type Status struct {
	Migration
	Applied bool
}

// Manager applies and rolls back migrations. Each run is one transaction
// opened through db, so on SQLite and Postgres a failing migration leaves no
// partial state behind. MySQL commits DDL implicitly: statements of a failing
// run that came before the error stay applied there, and the version table
// only records the migrations that completed.
type Manager struct {
	db         *txctx.DB
	migrations []Migration
}

// NewManager loads migration files from the root of fsys.
func NewManager(db *txctx.DB, fsys fs.FS) (*Manager, error) {
	migrations, err := load(fsys)
	if err != nil {
		return nil, err
	}
	return &Manager{db: db, migrations: migrations}, nil
}

// Migrations returns the loaded migrations ordered by version.
func (m *Manager) Migrations() []Migration {
	return append([]Migration(nil), m.migrations...)
}

var fileName = regexp.MustCompile(`^(\d+)_(.+)\.(up|down)\.sql$`)

// load reads .up.sql/.down.sql files and organizes them by version
func load(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	tmp := map[int]*Migration{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		matches := fileName.FindStringSubmatch(e.Name())
		if len(matches) != 4 {
			continue
		}
		ver, err := strconv.Atoi(matches[1])
		if err != nil {
			return nil, fmt.Errorf("parse version of %s: %w", e.Name(), err)
		}
		data, err := fs.ReadFile(fsys, e.Name())
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		mig, exists := tmp[ver]
		if !exists {
			mig = &Migration{Version: ver, Name: matches[2]}
			tmp[ver] = mig
		} else if mig.Name != matches[2] {
			return nil, fmt.Errorf("version %d used by %s and %s", ver, mig.Name, matches[2])
		}
		if matches[3] == "up" {
			mig.UpSQL = string(data)
		} else {
			mig.DownSQL = string(data)
		}
	}

	versions := make([]int, 0, len(tmp))
	for v := range tmp {
		versions = append(versions, v)
	}
	sort.Ints(versions)
	out := make([]Migration, 0, len(versions))
	for _, v := range versions {
		out = append(out, *tmp[v])
	}
	return out, nil
}

func ensureVersionTable(ctx context.Context, db *txctx.DB) error {
	_, err := db.Execute(ctx, query.Raw(query.KindRaw,
		`CREATE TABLE IF NOT EXISTS `+versionTable+` (version INTEGER PRIMARY KEY)`))
	if err != nil {
		return fmt.Errorf("ensure version table: %w", err)
	}
	return nil
}

// currentVersion returns the highest applied migration version
func currentVersion(ctx context.Context, db *txctx.DB) (int, error) {
	res, err := db.Execute(ctx, query.Select(versionTable, "MAX(version) AS version"))
	if err != nil {
		return 0, fmt.Errorf("read current version: %w", err)
	}
	var rows []struct {
		Version sql.NullInt64
	}
	if err := res.ScanAll(&rows); err != nil {
		return 0, fmt.Errorf("read current version: %w", err)
	}
	if len(rows) == 0 || !rows[0].Version.Valid {
		return 0, nil
	}
	return int(rows[0].Version.Int64), nil
}

// run creates the version table before opening the transaction, since MySQL
// would commit it implicitly, then calls fn inside one transaction. Inside a
// caller's transaction both join it.
func (m *Manager) run(ctx context.Context, fn func(context.Context) error) error {
	if cur := m.db.LookupSession(ctx); cur != nil && cur.InTransaction() {
		return m.db.Transaction(ctx, func(ctx context.Context, _ txctx.Session) error {
			if err := ensureVersionTable(ctx, m.db); err != nil {
				return err
			}
			return fn(ctx)
		})
	}
	return m.db.Session(ctx, func(ctx context.Context, _ txctx.Session) error {
		if err := ensureVersionTable(ctx, m.db); err != nil {
			return err
		}
		return m.db.Transaction(ctx, func(ctx context.Context, _ txctx.Session) error {
			return fn(ctx)
		})
	}, txctx.ReuseIfExists(true))
}

// Up applies all pending migrations in one transaction and returns them.
func (m *Manager) Up(ctx context.Context) ([]Migration, error) {
	var applied []Migration
	err := m.run(ctx, func(ctx context.Context) error {
		current, err := currentVersion(ctx, m.db)
		if err != nil {
			return err
		}
		for _, mig := range m.migrations {
			if mig.Version <= current {
				continue
			}
			if _, err := m.db.Execute(ctx, query.Raw(query.KindRaw, mig.UpSQL)); err != nil {
				return fmt.Errorf("apply up %d: %w", mig.Version, err)
			}
			record := query.InsertInto(versionTable).Columns("version").Values(mig.Version)
			if _, err := m.db.Execute(ctx, record); err != nil {
				return fmt.Errorf("record version %d: %w", mig.Version, err)
			}
			applied = append(applied, mig)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return applied, nil
}

// Down rolls back the latest applied migration. It returns nil when nothing
// is applied.
func (m *Manager) Down(ctx context.Context) (*Migration, error) {
	var reverted *Migration
	err := m.run(ctx, func(ctx context.Context) error {
		current, err := currentVersion(ctx, m.db)
		if err != nil {
			return err
		}
		if current == 0 {
			return nil
		}
		var mig *Migration
		for i := len(m.migrations) - 1; i >= 0; i-- {
			if m.migrations[i].Version == current {
				mig = &m.migrations[i]
				break
			}
		}
		if mig == nil {
			return fmt.Errorf("migration not found for version %d", current)
		}
		if _, err := m.db.Execute(ctx, query.Raw(query.KindRaw, mig.DownSQL)); err != nil {
			return fmt.Errorf("apply down %d: %w", mig.Version, err)
		}
		forget := query.DeleteFrom(versionTable).Where("version = ?", mig.Version)
		if _, err := m.db.Execute(ctx, forget); err != nil {
			return fmt.Errorf("delete version %d: %w", mig.Version, err)
		}
		reverted = mig
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reverted, nil
}

// Status reports every known migration and whether it is applied.
func (m *Manager) Status(ctx context.Context) ([]Status, error) {
	var out []Status
	err := m.db.Session(ctx, func(ctx context.Context, _ txctx.Session) error {
		if err := ensureVersionTable(ctx, m.db); err != nil {
			return err
		}
		current, err := currentVersion(ctx, m.db)
		if err != nil {
			return err
		}
		for _, mig := range m.migrations {
			out = append(out, Status{Migration: mig, Applied: mig.Version <= current})
		}
		return nil
	}, txctx.ReuseIfExists(true))
	return out, err
}
