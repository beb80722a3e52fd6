// Package repository provides the SQL implementation of the credential
// vault, usable with any database/sql driver registered by package db.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atinyakov/ServerSwitcher/internal/db"
	"github.com/atinyakov/ServerSwitcher/internal/models"
)

// SQLVault stores archived credentials in the vault_entries table.
type SQLVault struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
	// driver selects the placeholder style.
	driver string
	// now stamps updated_at.
	now func() time.Time
}

// NewSQLVault creates a new SQLVault using the provided *sql.DB opened with
// driver. conn must already hold the vault schema (see db.InitVault).
func NewSQLVault(conn *sql.DB, driver string) *SQLVault {
	return &SQLVault{DB: conn, driver: driver, now: time.Now}
}

// query rewrites $N placeholders to SQLite's numbered ?N form.
func (v *SQLVault) query(q string) string {
	if v.driver == db.DriverSQLite {
		return strings.ReplaceAll(q, "$", "?")
	}
	return q
}

// Lookup fetches the archived credentials for server.
//
//	ctx:    context for cancellation and deadlines
//	server: exact server address
//
// Returns nil without error when the server was never archived.
func (v *SQLVault) Lookup(ctx context.Context, server string) (*models.VaultEntry, error) {
	if server == models.HomeServer {
		return nil, nil
	}
	e := models.VaultEntry{Server: server}
	err := v.DB.QueryRowContext(ctx, v.query(`
		SELECT username, password FROM vault_entries WHERE server_key = $1
	`), server).Scan(&e.Username, &e.Password)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Lookup failed: %w", err)
	}
	return &e, nil
}

// Store inserts the entry, or overwrites the one already kept for
// e.Server. The home server is refused with models.ErrHomeServerKey.
//
//	ctx: context for cancellation and deadlines
//	e:   credentials to archive
func (v *SQLVault) Store(ctx context.Context, e models.VaultEntry) error {
	if e.Server == models.HomeServer {
		return models.ErrHomeServerKey
	}
	_, err := v.DB.ExecContext(ctx, v.query(`
		INSERT INTO vault_entries (server_key, username, password, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (server_key) DO UPDATE SET
			username = EXCLUDED.username,
			password = EXCLUDED.password,
			updated_at = EXCLUDED.updated_at
	`), e.Server, e.Username, e.Password, v.now().Unix())
	if err != nil {
		return fmt.Errorf("Store failed: %w", err)
	}
	return nil
}

// List returns all archived entries ordered by server address.
//
//	ctx: context for cancellation and deadlines
func (v *SQLVault) List(ctx context.Context) ([]models.VaultEntry, error) {
	rows, err := v.DB.QueryContext(ctx, `
		SELECT server_key, username, password FROM vault_entries ORDER BY server_key
	`)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	defer rows.Close()

	var entries []models.VaultEntry
	for rows.Next() {
		var e models.VaultEntry
		if err := rows.Scan(&e.Server, &e.Username, &e.Password); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return entries, nil
}
