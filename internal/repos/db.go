package repos

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	applog "xandcastle/internal/log"
)

// OpenDB connects with driver "sqlite" or "postgres", creates the schema and seeds the
// demo catalog when the products table is empty.
func OpenDB(driver, dsn string) (*sqlx.DB, error) {
	if driver == "" {
		driver = "sqlite"
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		// :memory: databases are per connection
		db.SetMaxOpenConns(1)
	}
	if err = db.Ping(); err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	if err := seedIfEmpty(db); err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}
	return db, nil
}

// Migrate creates missing tables for the connection's dialect. Idempotent.
func Migrate(db *sqlx.DB) error {
	var schema string
	switch db.DriverName() {
	case "sqlite":
		schema = sqliteSchema
	case "postgres":
		schema = postgresSchema
	default:
		return fmt.Errorf("unsupported db driver %q", db.DriverName())
	}
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Booleans are INTEGER 0/1 and timestamps RFC3339 TEXT in both dialects so rows scan the same way.
const sqliteSchema = `
PRAGMA foreign_keys = ON;

CREATE TABLE IF NOT EXISTS products(
  id TEXT PRIMARY KEY,
  printify_id TEXT NOT NULL,
  title TEXT NOT NULL,
  price NUMERIC NOT NULL DEFAULT 0 CHECK (price >= 0),
  visible INTEGER NOT NULL DEFAULT 1,
  inventory_json TEXT,
  last_synced_at TEXT,
  created_at TEXT DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_products_visible ON products(visible);

CREATE TABLE IF NOT EXISTS restock_notifications(
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL,
  product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
  variant_id INTEGER NOT NULL,
  variant_title TEXT NOT NULL,
  notified INTEGER NOT NULL DEFAULT 0,
  notified_at TEXT,
  created_at TEXT DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_restock_pending ON restock_notifications(product_id, variant_id, notified);
CREATE INDEX IF NOT EXISTS idx_restock_email ON restock_notifications(LOWER(email));
CREATE UNIQUE INDEX IF NOT EXISTS idx_restock_pending_once ON restock_notifications(LOWER(email), product_id, variant_id) WHERE notified = 0;

CREATE TABLE IF NOT EXISTS exchange_rates(
  base TEXT PRIMARY KEY,
  rates_json TEXT NOT NULL,
  fetched_at TEXT NOT NULL
);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS products(
  id TEXT PRIMARY KEY,
  printify_id TEXT NOT NULL,
  title TEXT NOT NULL,
  price NUMERIC NOT NULL DEFAULT 0 CHECK (price >= 0),
  visible INTEGER NOT NULL DEFAULT 1,
  inventory_json TEXT,
  last_synced_at TEXT,
  created_at TEXT DEFAULT to_char(now() AT TIME ZONE 'UTC', 'YYYY-MM-DD HH24:MI:SS')
);
CREATE INDEX IF NOT EXISTS idx_products_visible ON products(visible);

CREATE TABLE IF NOT EXISTS restock_notifications(
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL,
  product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
  variant_id INTEGER NOT NULL,
  variant_title TEXT NOT NULL,
  notified INTEGER NOT NULL DEFAULT 0,
  notified_at TEXT,
  created_at TEXT DEFAULT to_char(now() AT TIME ZONE 'UTC', 'YYYY-MM-DD HH24:MI:SS')
);
CREATE INDEX IF NOT EXISTS idx_restock_pending ON restock_notifications(product_id, variant_id, notified);
CREATE INDEX IF NOT EXISTS idx_restock_email ON restock_notifications(LOWER(email));
CREATE UNIQUE INDEX IF NOT EXISTS idx_restock_pending_once ON restock_notifications(LOWER(email), product_id, variant_id) WHERE notified = 0;

CREATE TABLE IF NOT EXISTS exchange_rates(
  base TEXT PRIMARY KEY,
  rates_json TEXT NOT NULL,
  fetched_at TEXT NOT NULL
);
`

func seedIfEmpty(db *sqlx.DB) error {
	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM products`); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	applog.Info(nil, "seed.products", map[string]any{"count": 3})

	tx, err := db.Beginx()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(tx.Rebind(`INSERT INTO products(id, printify_id, title, price, visible) VALUES
	  (?, ?, ?, ?, 1),
	  (?, ?, ?, ?, 1),
	  (?, ?, ?, ?, 1)`),
		"castle-hoodie", "64f1c0a2b3d4e5f601234567", "Castle Crest Hoodie", 54.00,
		"x-logo-tee", "64f1c0a2b3d4e5f601234568", "X Logo Tee", 28.00,
		"moat-cap", "64f1c0a2b3d4e5f601234569", "Moat Dad Cap", 24.00,
	); err != nil {
		return err
	}
	return tx.Commit()
}
