package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// kvMigrations holds the schema of the credential slot table.
//
//go:embed migrations/*.sql
var kvMigrations embed.FS

// kvMigrationsTable keeps the kv schema history apart from any other tool
// sharing the session database.
const kvMigrationsTable = "kv_schema_migrations"

// ErrDirtySchema means an earlier kv migration stopped halfway and the file
// needs manual repair before the credential can be read.
var ErrDirtySchema = errors.New("session database schema is dirty")

// migrateKV creates or upgrades the kv table in the session database at
// dbPath and returns the schema version now in place. It opens its own
// handle because closing the migrator closes the database it was given.
func migrateKV(dbPath string) (uint, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return 0, fmt.Errorf("open session database for migration: %w", err)
	}
	defer db.Close()

	target, err := sqlite.WithInstance(db, &sqlite.Config{MigrationsTable: kvMigrationsTable})
	if err != nil {
		return 0, fmt.Errorf("kv migration target: %w", err)
	}
	source, err := iofs.New(kvMigrations, "migrations")
	if err != nil {
		return 0, fmt.Errorf("kv migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", target)
	if err != nil {
		return 0, fmt.Errorf("kv migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		var dirty migrate.ErrDirty
		if errors.As(err, &dirty) {
			return uint(dirty.Version), fmt.Errorf("%w at version %d", ErrDirtySchema, dirty.Version)
		}
		return 0, fmt.Errorf("upgrade kv schema: %w", err)
	}
	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("read kv schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("%w at version %d", ErrDirtySchema, version)
	}
	return version, nil
}
