package storage

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"prodcat/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	conn, err := sql.Open("sqlite", path)
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

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	// Name uniqueness is deliberately advisory: the create_new resolution
	// policy inserts records that share a name.
	schema := `
CREATE TABLE IF NOT EXISTS products (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL,
  description TEXT NOT NULL,
  price REAL NOT NULL,
  quantity INTEGER NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_products_name_nocase ON products(name COLLATE NOCASE);
`

	_, err := d.conn.Exec(schema)
	return err
}

const productColumns = `id, name, description, price, quantity, createdAt, updatedAt`

func scanProduct(row interface{ Scan(...any) error }) (internal.Product, error) {
	var p internal.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Quantity, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (d *DB) queryProducts(query string, args ...any) ([]internal.Product, error) {
	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (d *DB) ListProducts() ([]internal.Product, error) {
	return d.queryProducts(`SELECT ` + productColumns + ` FROM products ORDER BY id ASC`)
}

func (d *DB) GetProductByID(id int64) (*internal.Product, error) {
	p, err := scanProduct(d.conn.QueryRow(`SELECT `+productColumns+` FROM products WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (d *DB) FilterByMinPrice(minPrice float64) ([]internal.Product, error) {
	return d.queryProducts(`SELECT `+productColumns+` FROM products WHERE price >= ? ORDER BY price ASC`, minPrice)
}

func (d *DB) ListLowStock(threshold int) ([]internal.Product, error) {
	return d.queryProducts(`SELECT `+productColumns+` FROM products WHERE quantity < ? ORDER BY quantity ASC`, threshold)
}

func (d *DB) ListTopStock(limit int) ([]internal.Product, error) {
	return d.queryProducts(`SELECT `+productColumns+` FROM products ORDER BY quantity DESC LIMIT ?`, limit)
}

// FindProductByNameCI looks a product up by name, case-insensitively, against
// committed state. When several records share a name the lowest id wins.
func (d *DB) FindProductByNameCI(name string) (*internal.Product, error) {
	p, err := scanProduct(d.conn.QueryRow(
		`SELECT `+productColumns+` FROM products WHERE name = ? COLLATE NOCASE ORDER BY id ASC LIMIT 1`,
		strings.TrimSpace(name)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (d *DB) CreateProduct(p internal.Product) (internal.Product, error) {
	result, err := d.conn.Exec(
		`INSERT INTO products (name, description, price, quantity) VALUES (?, ?, ?, ?)`,
		p.Name, p.Description, p.Price, p.Quantity)
	if err != nil {
		return internal.Product{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return internal.Product{}, err
	}
	created, err := d.GetProductByID(id)
	if err != nil {
		return internal.Product{}, err
	}
	if created == nil {
		return internal.Product{}, errors.New("failed to create product")
	}
	return *created, nil
}

func (d *DB) UpdateProduct(p internal.Product) (bool, error) {
	result, err := d.conn.Exec(
		`UPDATE products SET name = ?, description = ?, price = ?, quantity = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`,
		p.Name, p.Description, p.Price, p.Quantity, p.ID)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (d *DB) DeleteProduct(id int64) (bool, error) {
	result, err := d.conn.Exec(`DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
