// internal/state/sqlite.go
package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/kubeagentix/kubeagentix-ce-sub001/internal/types"
)

const kvSchema = `
CREATE TABLE IF NOT EXISTS kv (
	store TEXT NOT NULL,
	key   TEXT NOT NULL,
	value BLOB NOT NULL,
	PRIMARY KEY (store, key)
) WITHOUT ROWID;
`

// SQLiteBackend keeps every named store in one table of a SQLite database.
// Connections are pooled; each operation takes its own connection.
type SQLiteBackend struct {
	pool *sqlitex.Pool
	path string
}

// OpenSQLite opens (creating if needed) the database at path.
// poolSize <= 0 selects 4 connections. Use a pool size of 1 for ":memory:".
func OpenSQLite(path string, poolSize int) (*SQLiteBackend, error) {
	if path == "" {
		return nil, errors.New("sqlite backend: path is required")
	}
	if poolSize <= 0 {
		poolSize = 4
	}

	pool, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareConn,
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	slog.Debug("sqlite backend opened", "path", path, "pool_size", poolSize)
	return &SQLiteBackend{pool: pool, path: path}, nil
}

func prepareConn(conn *sqlite.Conn) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if err := sqlitex.ExecuteScript(conn, kvSchema, nil); err != nil {
		return fmt.Errorf("create kv schema: %w", err)
	}
	return nil
}

func columnBlob(stmt *sqlite.Stmt, col int) []byte {
	buf := make([]byte, stmt.ColumnLen(col))
	stmt.ColumnBytes(col, buf)
	return buf
}

// GetAll returns every key and value of store.
func (b *SQLiteBackend) GetAll(ctx context.Context, store string) (map[string][]byte, error) {
	conn, err := b.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("take sqlite conn: %w", err)
	}
	defer b.pool.Put(conn)

	out := make(map[string][]byte)
	err = sqlitex.Execute(conn, `SELECT key, value FROM kv WHERE store = ?`, &sqlitex.ExecOptions{
		Args: []any{store},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			out[stmt.ColumnText(0)] = columnBlob(stmt, 1)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("select store %s: %w", store, err)
	}
	return out, nil
}

// Get returns the value under key, or types.ErrNotFound.
func (b *SQLiteBackend) Get(ctx context.Context, store, key string) ([]byte, error) {
	conn, err := b.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("take sqlite conn: %w", err)
	}
	defer b.pool.Put(conn)

	var value []byte
	found := false
	err = sqlitex.Execute(conn, `SELECT value FROM kv WHERE store = ? AND key = ?`, &sqlitex.ExecOptions{
		Args: []any{store, key},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			value = columnBlob(stmt, 0)
			found = true
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("select %s/%s: %w", store, key, err)
	}
	if !found {
		return nil, fmt.Errorf("%s/%s: %w", store, key, types.ErrNotFound)
	}
	return value, nil
}

const upsertKV = `INSERT INTO kv (store, key, value) VALUES (?, ?, ?)
	ON CONFLICT (store, key) DO UPDATE SET value = excluded.value`

// Put writes value under key, replacing any previous value.
func (b *SQLiteBackend) Put(ctx context.Context, store, key string, value []byte) error {
	conn, err := b.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("take sqlite conn: %w", err)
	}
	defer b.pool.Put(conn)

	if err := sqlitex.Execute(conn, upsertKV, &sqlitex.ExecOptions{Args: []any{store, key, value}}); err != nil {
		return fmt.Errorf("upsert %s/%s: %w", store, key, err)
	}
	return nil
}

// PutAll writes all entries in a single transaction.
func (b *SQLiteBackend) PutAll(ctx context.Context, store string, entries map[string][]byte) (err error) {
	conn, err := b.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("take sqlite conn: %w", err)
	}
	defer b.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer endTransaction(&err)

	for key, value := range entries {
		if err := sqlitex.Execute(conn, upsertKV, &sqlitex.ExecOptions{Args: []any{store, key, value}}); err != nil {
			return fmt.Errorf("upsert %s/%s: %w", store, key, err)
		}
	}
	return nil
}

const insertAbsentKV = `INSERT INTO kv (store, key, value) VALUES (?, ?, ?)
	ON CONFLICT (store, key) DO NOTHING`

// PutAbsent writes the entries whose keys are not yet present, in a single
// transaction, and reports how many were written. Existing values are
// never replaced.
func (b *SQLiteBackend) PutAbsent(ctx context.Context, store string, entries map[string][]byte) (n int, err error) {
	conn, err := b.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("take sqlite conn: %w", err)
	}
	defer b.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer endTransaction(&err)

	for key, value := range entries {
		if err := sqlitex.Execute(conn, insertAbsentKV, &sqlitex.ExecOptions{Args: []any{store, key, value}}); err != nil {
			return 0, fmt.Errorf("insert %s/%s: %w", store, key, err)
		}
		n += conn.Changes()
	}
	return n, nil
}

// Delete removes key. Deleting an absent key is not an error.
func (b *SQLiteBackend) Delete(ctx context.Context, store, key string) error {
	conn, err := b.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("take sqlite conn: %w", err)
	}
	defer b.pool.Put(conn)

	if err := sqlitex.Execute(conn, `DELETE FROM kv WHERE store = ? AND key = ?`, &sqlitex.ExecOptions{Args: []any{store, key}}); err != nil {
		return fmt.Errorf("delete %s/%s: %w", store, key, err)
	}
	return nil
}

// Close closes the connection pool.
func (b *SQLiteBackend) Close() error {
	if err := b.pool.Close(); err != nil {
		return fmt.Errorf("close sqlite %s: %w", b.path, err)
	}
	return nil
}
