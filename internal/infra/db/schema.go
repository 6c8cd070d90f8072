package db

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
)

var migrations = map[Dialect][]string{
	SQLite: {`
CREATE TABLE IF NOT EXISTS repair_scans (
	id              TEXT PRIMARY KEY,
	device_id       TEXT NOT NULL,
	created_at      INTEGER NOT NULL,
	user_query      TEXT NOT NULL DEFAULT '',
	skill_level     TEXT NOT NULL,
	analysis        TEXT NOT NULL,
	media           TEXT NOT NULL,
	completed_steps TEXT NOT NULL DEFAULT '[]'
)`,
		`CREATE INDEX IF NOT EXISTS idx_repair_scans_device ON repair_scans(device_id, created_at)`,
	},
	MySQL: {`
CREATE TABLE IF NOT EXISTS repair_scans (
	id              VARCHAR(36) NOT NULL PRIMARY KEY,
	device_id       VARCHAR(64) NOT NULL,
	created_at      BIGINT NOT NULL,
	user_query      TEXT NOT NULL,
	skill_level     VARCHAR(32) NOT NULL,
	analysis        JSON NOT NULL,
	media           LONGTEXT NOT NULL,
	completed_steps JSON NOT NULL,
	INDEX idx_repair_scans_device (device_id, created_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	},
	Postgres: {`
CREATE TABLE IF NOT EXISTS repair_scans (
	id              VARCHAR(36) PRIMARY KEY,
	device_id       VARCHAR(64) NOT NULL,
	created_at      BIGINT NOT NULL,
	user_query      TEXT NOT NULL DEFAULT '',
	skill_level     VARCHAR(32) NOT NULL,
	analysis        JSONB NOT NULL,
	media           TEXT NOT NULL,
	completed_steps JSONB NOT NULL DEFAULT '[]'::jsonb
)`,
		`CREATE INDEX IF NOT EXISTS idx_repair_scans_device ON repair_scans(device_id, created_at)`,
	},
}

// Migrate creates the archive table when missing.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	stmts, ok := migrations[d]
	if !ok {
		return eris.Errorf("db: no migration for %q", d)
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return eris.Wrapf(err, "%s: migrate", d)
		}
	}
	return nil
}
