package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"catalog-go/internal/catalog"
	"catalog-go/internal/database/migrations"
)

// MemoryPath is the path that selects a private in-memory database.
const MemoryPath = ":memory:"

// SQLiteDatabase implements catalog.Store using SQLite.
//
// File databases use two connection pools: a single writer connection whose
// transactions take the write lock up front (BEGIN IMMEDIATE), and a pool of
// query-only readers that each see a WAL snapshot. Writers are therefore
// serialised and readers never observe a half-applied transaction.
//
// An in-memory database exists only on its one connection, so reader and
// writer share it.
type SQLiteDatabase struct {
	writer *sql.DB
	reader *sql.DB
	path   string
}

// NewSQLiteDatabase opens the database at path. path can be a file path or
// ":memory:" for an in-memory database.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	writer, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if path == MemoryPath {
		return &SQLiteDatabase{writer: writer, reader: writer, path: path}, nil
	}

	reader, err := openReader(path)
	if err != nil {
		writer.Close()
		return nil, err
	}
	return &SQLiteDatabase{writer: writer, reader: reader, path: path}, nil
}

// NewSQLiteDatabaseFromDB wraps an existing connection for both reads and writes.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteDatabaseFromDB(db *sql.DB) *SQLiteDatabase {
	return &SQLiteDatabase{writer: db, reader: db}
}

// OpenConnection opens a SQLite write connection with foreign keys enforced,
// WAL journaling and immediate transactions. The pool is limited to a single
// connection. path can be a file path or ":memory:".
func OpenConnection(path string) (*sql.DB, error) {
	params := []string{"_foreign_keys=on", "_txlock=immediate", "_busy_timeout=5000"}
	dsn := path
	if path != MemoryPath {
		params = append(params, "_journal_mode=WAL", "_synchronous=NORMAL")
		dsn = "file:" + path
	}

	db, err := sql.Open("sqlite3", dsn+"?"+strings.Join(params, "&"))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	// sql.Open is lazy; surface a bad path now rather than on first use.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	return db, nil
}

func openReader(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?_foreign_keys=on&_busy_timeout=5000&_query_only=true")
	if err != nil {
		return nil, fmt.Errorf("failed to open database reader: %w", err)
	}
	return db, nil
}

// View runs fn in a read transaction. fn sees one consistent snapshot.
func (s *SQLiteDatabase) View(ctx context.Context, fn func(catalog.Reader) error) error {
	tx, err := s.reader.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin read transaction", err)
	}
	defer tx.Rollback()

	return fn(&sqlTx{tx: tx})
}

// Update runs fn in a write transaction and commits if fn returns nil.
func (s *SQLiteDatabase) Update(ctx context.Context, fn func(catalog.Tx) error) error {
	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin write transaction", err)
	}
	defer tx.Rollback()

	if err := fn(&sqlTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapErr("commit", err)
	}
	return nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.writer)
}

// MigrateUp applies any pending schema migrations.
func (s *SQLiteDatabase) MigrateUp() error {
	return migrations.MigrateUp(s.writer)
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
func (s *SQLiteDatabase) BackupTo(ctx context.Context, destPath string) error {
	if _, err := s.writer.ExecContext(ctx, "VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Schema returns the CREATE statements of every table, index and trigger,
// excluding SQLite internals and the migration bookkeeping table.
func (s *SQLiteDatabase) Schema(ctx context.Context) (string, error) {
	rows, err := s.reader.QueryContext(ctx, `
		SELECT sql FROM sqlite_master
		WHERE sql IS NOT NULL
		  AND name NOT LIKE 'sqlite_%'
		  AND name != 'schema_migrations'
		ORDER BY CASE type WHEN 'table' THEN 0 WHEN 'index' THEN 1 ELSE 2 END, name`)
	if err != nil {
		return "", fmt.Errorf("querying schema: %w", err)
	}
	defer rows.Close()

	var b strings.Builder
	for rows.Next() {
		var stmt string
		if err := rows.Scan(&stmt); err != nil {
			return "", fmt.Errorf("scanning schema: %w", err)
		}
		b.WriteString(stmt)
		b.WriteString(";\n\n")
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("reading schema: %w", err)
	}
	return b.String(), nil
}

// Close closes the database connections.
func (s *SQLiteDatabase) Close() error {
	var errs []error
	if s.reader != nil && s.reader != s.writer {
		errs = append(errs, s.reader.Close())
	}
	if s.writer != nil {
		errs = append(errs, s.writer.Close())
	}
	return errors.Join(errs...)
}

// sqlTx implements catalog.Tx on a database/sql transaction. A read
// transaction is wrapped the same way; the query-only reader connection
// rejects any write attempted through it.
type sqlTx struct {
	tx *sql.Tx
}

// mapErr translates driver errors into catalog errors: missing rows become
// ErrNotFound, constraint violations become validation errors and everything
// else is a storage failure.
func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, catalog.ErrNotFound)
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return &catalog.ValidationError{Field: op, Reason: sqliteErr.Error()}
	}
	return storageErr(op, err)
}

func storageErr(op string, err error) error {
	return &catalog.StorageError{Op: op, Err: err}
}

// nullString maps "" to NULL for optional reference columns.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Compile-time checks
var (
	_ catalog.Store = (*SQLiteDatabase)(nil)
	_ catalog.Tx    = (*sqlTx)(nil)
)
