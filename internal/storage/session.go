package storage

import (
	"database/sql"
	"errors"
	"strings"

	"prodcat/internal"
)

// WriteSession batches catalog writes into one transaction at a time. A
// transaction opens lazily on the first write and ends at Commit or Rollback;
// the next write opens a fresh one. Lookups made while a transaction is open
// read through it, so a session observes its own uncommitted inserts.
type WriteSession struct {
	db *DB
	tx *sql.Tx
}

func (d *DB) NewWriteSession() *WriteSession {
	return &WriteSession{db: d}
}

func (s *WriteSession) ensureTx() error {
	if s.tx != nil {
		return nil
	}
	tx, err := s.db.conn.Begin()
	if err != nil {
		return err
	}
	s.tx = tx
	return nil
}

func (s *WriteSession) FindByNameCI(name string) (*internal.Product, error) {
	if s.tx == nil {
		return s.db.FindProductByNameCI(name)
	}
	p, err := scanProduct(s.tx.QueryRow(
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

func (s *WriteSession) Insert(p internal.Product) (internal.Product, error) {
	if err := s.ensureTx(); err != nil {
		return internal.Product{}, err
	}
	result, err := s.tx.Exec(
		`INSERT INTO products (name, description, price, quantity) VALUES (?, ?, ?, ?)`,
		p.Name, p.Description, p.Price, p.Quantity)
	if err != nil {
		return internal.Product{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return internal.Product{}, err
	}
	p.ID = id
	return p, nil
}

func (s *WriteSession) Update(p internal.Product) error {
	if err := s.ensureTx(); err != nil {
		return err
	}
	_, err := s.tx.Exec(
		`UPDATE products SET description = ?, price = ?, quantity = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`,
		p.Description, p.Price, p.Quantity, p.ID)
	return err
}

// Commit finishes the open transaction. With no pending writes it is a no-op.
func (s *WriteSession) Commit() error {
	if s.tx == nil {
		return nil
	}
	err := s.tx.Commit()
	s.tx = nil
	return err
}

// Rollback discards pending writes. Safe to call with nothing open.
func (s *WriteSession) Rollback() error {
	if s.tx == nil {
		return nil
	}
	err := s.tx.Rollback()
	s.tx = nil
	return err
}
