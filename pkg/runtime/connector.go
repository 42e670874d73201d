package runtime

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect selects driver specific SQL behaviour.
type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectPostgres
	DialectMySQL
)

func (d Dialect) String() string {
	switch d {
	case DialectPostgres:
		return "postgres"
	case DialectMySQL:
		return "mysql"
	default:
		return "sqlite"
	}
}

// DialectFor maps a driver name onto its dialect.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "postgres", "postgresql", "pq":
		return DialectPostgres, nil
	case "mysql":
		return DialectMySQL, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	}
	return 0, fmt.Errorf("unsupported driver %q", driver)
}

// DriverFromDSN guesses the driver from the shape of dsn.
func DriverFromDSN(dsn string) string {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "postgres"
	case strings.Contains(dsn, "@tcp("), strings.Contains(dsn, "@unix("), strings.HasPrefix(dsn, "mysql://"):
		return "mysql"
	default:
		return "sqlite"
	}
}

// Connect opens and pings a database connection pool for driver and dsn.
func Connect(driver, dsn string) (*sql.DB, Dialect, error) {
	// If the DSN is empty, throw an error.
	if dsn == "" {
		return nil, 0, fmt.Errorf("DSN is empty")
	}
	if driver == "" {
		driver = DriverFromDSN(dsn)
	}
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, 0, err
	}

	var driverName string
	switch dialect {
	case DialectPostgres:
		driverName = "postgres"
		dsn = postgresDSN(dsn)
	case DialectMySQL:
		driverName = "mysql"
		if dsn, err = mysqlDSN(dsn); err != nil {
			return nil, 0, err
		}
	default:
		driverName = "sqlite"
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, 0, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, 0, fmt.Errorf("ping database: %w", err)
	}
	return db, dialect, nil
}

// postgresDSN disables SSL mode by default if not specified.
func postgresDSN(dsn string) string {
	if strings.HasPrefix(dsn, "postgres") && strings.Contains(dsn, "://") && !strings.Contains(dsn, "sslmode=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn = dsn + sep + "sslmode=disable"
	}
	return dsn
}

// mysqlDSN validates dsn and turns on parseTime so DATETIME columns scan as time.Time.
func mysqlDSN(dsn string) (string, error) {
	dsn = strings.TrimPrefix(dsn, "mysql://")
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}
