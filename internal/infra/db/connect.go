package db

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// Dialect names a supported archive backend.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	MySQL    Dialect = "mysql"
	Postgres Dialect = "postgres"
)

// ParseDialect accepts the driver names used in config.
func ParseDialect(s string) (Dialect, error) {
	switch s {
	case "", "sqlite", "sqlite3":
		return SQLite, nil
	case "mysql":
		return MySQL, nil
	case "postgres", "postgresql", "pgsql":
		return Postgres, nil
	}
	return "", eris.Errorf("db: unsupported driver %q", s)
}

func (d Dialect) driverName() string {
	return string(d)
}

// Connect opens and pings the database for the dialect.
func Connect(ctx context.Context, d Dialect, dsn string) (*sql.DB, error) {
	db, err := sql.Open(d.driverName(), dsn)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: open", d)
	}

	if d == SQLite {
		// satu writer, WAL biar reader gak ke-block
		db.SetMaxOpenConns(1)
		for _, pragma := range []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA busy_timeout=5000",
			"PRAGMA synchronous=NORMAL",
		} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				db.Close()
				return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
			}
		}
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	// test ping
	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		db.Close()
		return nil, eris.Wrapf(err, "%s: ping", d)
	}
	return db, nil
}
