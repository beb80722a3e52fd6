// Package db opens the SQL database that can back the credential vault.
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Vault backends.
const (
	// DriverINI keeps the vault in an INI file next to the client.
	DriverINI = "ini"
	// DriverSQLite keeps the vault in a local SQLite file.
	DriverSQLite = "sqlite"
	// DriverPostgres keeps the vault in a PostgreSQL database. It is the
	// only backend that opens a network connection, and only when chosen.
	DriverPostgres = "postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS vault_entries (
    server_key TEXT PRIMARY KEY,
    username TEXT NOT NULL,
    password TEXT NOT NULL,
    updated_at BIGINT NOT NULL
);
`

// IsSQL reports whether driver is served by InitVault.
func IsSQL(driver string) bool {
	return driver == DriverSQLite || driver == DriverPostgres
}

// InitVault opens the database behind driver and dsn and creates the vault
// table when needed.
func InitVault(driver, dsn string) (*sql.DB, error) {
	if !IsSQL(driver) {
		return nil, fmt.Errorf("unsupported vault driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return db, nil
}
