// Package storage holds the per-account local data covered by backups.
//
// Each logical table is an ordered list of JSON rows kept in a SQLite
// database (modernc.org/sqlite, no cgo). Row order is insertion order.
package storage

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Logical tables of the local store, in export order.
const (
	TableConversations = "conversations"
	TableEvents        = "events"
	TableMessages      = "messages"
	TableUsers         = "users"
)

var tables = []string{TableConversations, TableEvents, TableMessages, TableUsers}

var (
	ErrUnknownTable = errors.New("unknown table")
	ErrInvalidRow   = errors.New("row is not valid JSON")
)

// ConversationStore is the local database of one account.
type ConversationStore struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at path. ":memory:" opens a private
// in-memory database.
func Open(path string) (*ConversationStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	// SQLite serializes writers anyway; a single connection also keeps
	// ":memory:" databases from splitting per connection.
	db.SetMaxOpenConns(1)

	for _, name := range tables {
		stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			payload TEXT NOT NULL
		)`, name)
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create table %s: %w", name, err)
		}
	}
	return &ConversationStore{db: db, path: path}, nil
}

// Close closes the database.
func (s *ConversationStore) Close() error {
	return s.db.Close()
}

// Path returns the database location.
func (s *ConversationStore) Path() string {
	return s.path
}

// ListTables returns the logical table names in export order.
func (s *ConversationStore) ListTables() []string {
	out := make([]string, len(tables))
	copy(out, tables)
	return out
}

// IsTable reports whether name is a logical table of the store.
func IsTable(name string) bool {
	for _, t := range tables {
		if t == name {
			return true
		}
	}
	return false
}

func checkTable(name string) error {
	if !IsTable(name) {
		return fmt.Errorf("%w: %q", ErrUnknownTable, name)
	}
	return nil
}

// Count returns the number of rows in table.
func (s *ConversationStore) Count(ctx context.Context, table string) (int, error) {
	if err := checkTable(table); err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

// StreamRows calls fn with consecutive batches of at most batch rows, in
// insertion order. Returning an error from fn stops the stream.
func (s *ConversationStore) StreamRows(ctx context.Context, table string, batch int, fn func(rows []string) error) error {
	if err := checkTable(table); err != nil {
		return err
	}
	if batch <= 0 {
		return fmt.Errorf("invalid batch size %d", batch)
	}

	query := fmt.Sprintf("SELECT seq, payload FROM %s WHERE seq > ? ORDER BY seq LIMIT ?", table)
	var last int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rows, lastSeq, err := s.page(ctx, query, last, batch)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", table, err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := fn(rows); err != nil {
			return err
		}
		if len(rows) < batch {
			return nil
		}
		last = lastSeq
	}
}

func (s *ConversationStore) page(ctx context.Context, query string, after int64, limit int) ([]string, int64, error) {
	rs, err := s.db.QueryContext(ctx, query, after, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rs.Close()

	var (
		out  []string
		last int64
	)
	for rs.Next() {
		var payload string
		if err := rs.Scan(&last, &payload); err != nil {
			return nil, 0, err
		}
		out = append(out, payload)
	}
	return out, last, rs.Err()
}

// InsertRows appends rows to table in one transaction. Every row must be a
// JSON document; it is stored compacted so it never contains a newline.
func (s *ConversationStore) InsertRows(ctx context.Context, table string, rows []string) error {
	if err := checkTable(table); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return insert(ctx, tx, table, rows)
	})
}

// ClearTable removes all rows of table.
func (s *ConversationStore) ClearTable(ctx context.Context, table string) error {
	if err := checkTable(table); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}
	return nil
}

// ReplaceTable swaps the content of table for rows atomically.
func (s *ConversationStore) ReplaceTable(ctx context.Context, table string, rows []string) error {
	if err := checkTable(table); err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
		return insert(ctx, tx, table, rows)
	})
}

// ReplaceTables swaps the content of every table in rows in one
// transaction, visiting tables in export order. Either all tables are
// replaced or none is.
func (s *ConversationStore) ReplaceTables(ctx context.Context, rows map[string][]string) error {
	for table := range rows {
		if err := checkTable(table); err != nil {
			return err
		}
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, table := range tables {
			r, ok := rows[table]
			if !ok {
				continue
			}
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
			if err := insert(ctx, tx, table, r); err != nil {
				return err
			}
		}
		return nil
	})
}

func insert(ctx context.Context, tx *sql.Tx, table string, rows []string) error {
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO "+table+"(payload) VALUES(?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert into %s: %w", table, err)
	}
	defer stmt.Close()

	var buf bytes.Buffer
	for i, row := range rows {
		buf.Reset()
		if err := json.Compact(&buf, []byte(row)); err != nil {
			return fmt.Errorf("%w: %s row %d: %v", ErrInvalidRow, table, i, err)
		}
		if _, err := stmt.ExecContext(ctx, buf.String()); err != nil {
			return fmt.Errorf("failed to insert into %s: %w", table, err)
		}
	}
	return nil
}

func (s *ConversationStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}
