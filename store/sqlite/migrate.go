/*
migrate.go - Explicit, ordered schema migrations

PURPOSE:
  The schema evolves through a fixed, ordered list of migrations applied
  once at startup. Applied versions are recorded in schema_migrations,
  so re-running New() is a no-op for already-applied steps and each step
  can be tested in isolation.

ADDING A MIGRATION:
  Append to the migrations slice with the next version number. Never
  edit or reorder an applied migration.
*/
package sqlite

import (
	"database/sql"
	"fmt"
)

type migration struct {
	version int
	name    string
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		name:    "till core tables",
		sql: `
		CREATE TABLE IF NOT EXISTS till_sessions (
			id TEXT PRIMARY KEY,
			is_open INTEGER NOT NULL DEFAULT 0,
			opened_at TEXT NOT NULL,
			opened_by TEXT NOT NULL,
			initial_amount TEXT NOT NULL,
			current_amount TEXT NOT NULL
		);

		-- CRITICAL: at most one open session, enforced at the store level
		-- as a backstop for the transactional re-check in the manager.
		CREATE UNIQUE INDEX IF NOT EXISTS idx_till_single_open
			ON till_sessions(is_open) WHERE is_open = 1;

		-- Append-only movement ledger. No UPDATE or DELETE ever touches it.
		CREATE TABLE IF NOT EXISTS cash_movements (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			amount TEXT NOT NULL,
			description TEXT,
			order_id TEXT,
			user_id TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_movements_created_at
			ON cash_movements(created_at);
		CREATE INDEX IF NOT EXISTS idx_movements_order
			ON cash_movements(order_id) WHERE order_id IS NOT NULL;

		CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			customer_id TEXT,
			user_id TEXT NOT NULL,
			table_number TEXT,
			status TEXT NOT NULL,
			total TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_orders_created_at
			ON orders(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_orders_status
			ON orders(status);

		CREATE TABLE IF NOT EXISTS order_items (
			id TEXT PRIMARY KEY,
			order_id TEXT NOT NULL,
			product_id TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			unit_price TEXT NOT NULL,
			FOREIGN KEY (order_id) REFERENCES orders (id)
		);

		CREATE INDEX IF NOT EXISTS idx_order_items_order
			ON order_items(order_id);
		`,
	},
	{
		version: 2,
		name:    "catalog, customers, users",
		sql: `
		CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT,
			price TEXT NOT NULL,
			category TEXT NOT NULL,
			active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_products_category
			ON products(category);

		CREATE TABLE IF NOT EXISTS customers (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			phone TEXT,
			email TEXT,
			address TEXT,
			notes TEXT,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_customers_name
			ON customers(name);

		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			active INTEGER NOT NULL DEFAULT 1,
			created_at TEXT NOT NULL
		);
		`,
	},
	{
		// The original schema grew this column in place; here it is an
		// ordered step like any other.
		version: 3,
		name:    "order item notes",
		sql:     `ALTER TABLE order_items ADD COLUMN notes TEXT;`,
	},
	{
		version: 4,
		name:    "movement type index",
		sql: `
		CREATE INDEX IF NOT EXISTS idx_movements_type
			ON cash_movements(type);
		`,
	},
}

// Migrate applies all pending migrations in order, each in its own
// transaction together with its schema_migrations record.
func Migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	for _, m := range migrations {
		applied, err := migrationApplied(db, m.version)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", m.version, m.name, err)
		}
		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
			m.version, m.name,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.version, err)
		}
	}
	return nil
}

func migrationApplied(db *sql.DB, version int) (bool, error) {
	var count int
	err := db.QueryRow(
		"SELECT COUNT(*) FROM schema_migrations WHERE version = ?", version,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check migration %d: %w", version, err)
	}
	return count > 0, nil
}
