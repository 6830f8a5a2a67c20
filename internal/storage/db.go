package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// DB caches Cin7 reference data between runs. Batch state is never stored.
type DB struct {
	conn *sqlx.DB
}

// ProductRow is a cached catalogue product. Cost is kept as decimal text.
type ProductRow struct {
	Code      string `db:"code"`
	ProductID int    `db:"product_id"`
	Name      string `db:"name"`
	Cost      string `db:"cost"`
	Supplier  string `db:"supplier"`
	RawJSON   string `db:"raw_json"`
}

// SupplierRow is a cached supplier contact.
type SupplierRow struct {
	ID       int    `db:"id"`
	Name     string `db:"name"`
	JobTitle string `db:"job_title"`
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

// New wraps an existing connection without touching the schema.
func New(conn *sqlx.DB) *DB {
	return &DB{conn: conn}
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS products (
  code TEXT PRIMARY KEY,
  product_id INTEGER NOT NULL,
  name TEXT NOT NULL,
  cost TEXT NOT NULL,
  supplier TEXT NOT NULL,
  raw_json TEXT NOT NULL,
  synced_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_products_supplier ON products(supplier);

CREATE TABLE IF NOT EXISTS suppliers (
  id INTEGER PRIMARY KEY,
  name TEXT NOT NULL,
  job_title TEXT NOT NULL,
  synced_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

// ReplaceProducts swaps the whole product cache in one transaction.
func (d *DB) ReplaceProducts(ctx context.Context, products []ProductRow) error {
	tx, err := d.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM products`); err != nil {
		return fmt.Errorf("clear products: %w", err)
	}
	for _, p := range products {
		if _, err := tx.NamedExecContext(ctx, `
INSERT INTO products (code, product_id, name, cost, supplier, raw_json)
VALUES (:code, :product_id, :name, :cost, :supplier, :raw_json)
ON CONFLICT(code) DO NOTHING
`, p); err != nil {
			return fmt.Errorf("insert product %s: %w", p.Code, err)
		}
	}

	return tx.Commit()
}

func (d *DB) ListProducts(ctx context.Context) ([]ProductRow, error) {
	var out []ProductRow
	if err := d.conn.SelectContext(ctx, &out, `
SELECT code, product_id, name, cost, supplier, raw_json
FROM products ORDER BY rowid`); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return out, nil
}

func (d *DB) ReplaceSuppliers(ctx context.Context, suppliers []SupplierRow) error {
	tx, err := d.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM suppliers`); err != nil {
		return fmt.Errorf("clear suppliers: %w", err)
	}
	for _, s := range suppliers {
		if _, err := tx.NamedExecContext(ctx, `
INSERT INTO suppliers (id, name, job_title) VALUES (:id, :name, :job_title)
ON CONFLICT(id) DO UPDATE SET name = excluded.name, job_title = excluded.job_title
`, s); err != nil {
			return fmt.Errorf("insert supplier %d: %w", s.ID, err)
		}
	}

	return tx.Commit()
}

// ListSuppliers keeps the order the suppliers were cached in.
func (d *DB) ListSuppliers(ctx context.Context) ([]SupplierRow, error) {
	var out []SupplierRow
	if err := d.conn.SelectContext(ctx, &out, `SELECT id, name, job_title FROM suppliers ORDER BY rowid`); err != nil {
		return nil, fmt.Errorf("list suppliers: %w", err)
	}
	return out, nil
}

func (d *DB) SetMetadata(ctx context.Context, key, value string) error {
	_, err := d.conn.ExecContext(ctx, `
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

// GetMetadata returns nil when the key was never set.
func (d *DB) GetMetadata(ctx context.Context, key string) (*string, error) {
	var value string
	err := d.conn.GetContext(ctx, &value, `SELECT value FROM metadata WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get metadata %s: %w", key, err)
	}
	return &value, nil
}
