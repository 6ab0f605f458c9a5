// Package kv provides the ordered per-mailbox key space backing every
// mailbox. Keys within one mailbox are ordered lexically, so range scans
// over a key prefix walk entries in a stable total order.
package kv

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

// ErrKeyNotFound is returned by Get when the key does not exist.
var ErrKeyNotFound = errors.New("kv: key not found")

const schema = `
CREATE TABLE IF NOT EXISTS kv (
    mailbox TEXT NOT NULL,
    k       TEXT NOT NULL,
    v       BLOB NOT NULL,
    PRIMARY KEY (mailbox, k)
);
`

type DB struct {
	*sqlx.DB
}

// Open opens the SQLite database at path and initializes the schema.
func Open(path string) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single connection
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if _, err := sqlDB.Exec(schema); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &DB{sqlDB}, nil
}

// Entry is one key-value pair from a mailbox key space.
type Entry struct {
	Key   string `db:"k"`
	Value []byte `db:"v"`
}

// ListOptions controls a range scan over one mailbox's keys.
type ListOptions struct {
	// Prefix restricts the scan to keys starting with this string.
	Prefix string
	// Start is the inclusive resume key. With Reverse set the scan begins
	// at the greatest key <= Start, otherwise at the smallest key >= Start.
	Start string
	// Limit caps the number of entries returned. Zero means no limit.
	Limit int
	// Reverse walks keys in descending order.
	Reverse bool
}

// Put writes a single key, replacing any existing value.
func (db *DB) Put(ctx context.Context, mailbox, key string, value []byte) error {
	return db.PutMany(ctx, mailbox, []Entry{{Key: key, Value: value}})
}

// PutMany writes all entries in one transaction.
func (db *DB) PutMany(ctx context.Context, mailbox string, entries []Entry) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin put: %w", err)
	}

	for _, e := range entries {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO kv (mailbox, k, v) VALUES (?, ?, ?)
			ON CONFLICT(mailbox, k) DO UPDATE SET v = excluded.v
		`, mailbox, e.Key, e.Value)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("put %q: %w", e.Key, err)
		}
	}

	return tx.Commit()
}

// Get returns the value stored under key, or ErrKeyNotFound.
func (db *DB) Get(ctx context.Context, mailbox, key string) ([]byte, error) {
	var value []byte
	err := db.GetContext(ctx, &value, `SELECT v FROM kv WHERE mailbox = ? AND k = ?`, mailbox, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	return value, nil
}

// List scans one mailbox's keys in lexical order.
func (db *DB) List(ctx context.Context, mailbox string, opts ListOptions) ([]Entry, error) {
	query := `SELECT k, v FROM kv WHERE mailbox = ?`
	args := []any{mailbox}

	if opts.Prefix != "" {
		query += ` AND k >= ?`
		args = append(args, opts.Prefix)
		if end := prefixEnd(opts.Prefix); end != "" {
			query += ` AND k < ?`
			args = append(args, end)
		}
	}
	if opts.Start != "" {
		if opts.Reverse {
			query += ` AND k <= ?`
		} else {
			query += ` AND k >= ?`
		}
		args = append(args, opts.Start)
	}
	if opts.Reverse {
		query += ` ORDER BY k DESC`
	} else {
		query += ` ORDER BY k ASC`
	}
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	var entries []Entry
	if err := db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list %q: %w", opts.Prefix, err)
	}
	return entries, nil
}

// Count returns the number of keys under prefix.
func (db *DB) Count(ctx context.Context, mailbox, prefix string) (int, error) {
	query := `SELECT COUNT(*) FROM kv WHERE mailbox = ? AND k >= ?`
	args := []any{mailbox, prefix}
	if end := prefixEnd(prefix); end != "" {
		query += ` AND k < ?`
		args = append(args, end)
	}

	var n int
	if err := db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, fmt.Errorf("count %q: %w", prefix, err)
	}
	return n, nil
}

// Delete removes keys in one transaction. Missing keys are tolerated, so
// the batch either applies fully or not at all.
func (db *DB) Delete(ctx context.Context, mailbox string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}

	for _, key := range keys {
		if _, err := tx.ExecContext(ctx, `DELETE FROM kv WHERE mailbox = ? AND k = ?`, mailbox, key); err != nil {
			tx.Rollback()
			return fmt.Errorf("delete %q: %w", key, err)
		}
	}

	return tx.Commit()
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.DB.Close()
}

// prefixEnd returns the smallest string greater than every string with the
// given prefix, or "" when no upper bound exists.
func prefixEnd(prefix string) string {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return string(b[:i+1])
		}
	}
	return ""
}
