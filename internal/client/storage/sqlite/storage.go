// Package sqlite implements the offline record store on SQLite, as an
// alternative to the BoltDB backend for installations that already ship a
// SQLite runtime.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/johannes-schliephake/nextcloud-passwords-ios-sub000/internal/client/storage"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Storage is the SQLite-backed offline record store.
type Storage struct {
	db *sql.DB
}

// Compile-time check that Storage implements the record store boundary.
var _ storage.RecordStore = (*Storage)(nil)

// New opens the SQLite database at dbPath and applies pending migrations.
// Use ":memory:" for an in-memory database in tests.
func New(ctx context.Context, dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// SQLite with WAL supports multiple readers but a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA busy_timeout = 5000;",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &Storage{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) runMigrations() error {
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	goose.SetBaseFS(embedMigrations)
	if err := goose.Up(s.db, "migrations"); err != nil {
		return fmt.Errorf("goose up failed: %w", err)
	}
	return nil
}

// Put stores or replaces the offline record for the slot.
func (s *Storage) Put(ctx context.Context, slot string, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO offline_records (slot, data, updated_at)
		VALUES (?, ?, unixepoch())
		ON CONFLICT(slot) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, slot, data)
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

// Get retrieves the offline record for the slot.
func (s *Storage) Get(ctx context.Context, slot string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM offline_records WHERE slot = ?`, slot).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, storage.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load record: %w", err)
	}
	return data, nil
}

// Delete removes the offline record for the slot.
func (s *Storage) Delete(ctx context.Context, slot string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM offline_records WHERE slot = ?`, slot); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

// Slots lists all slot ids with a stored record.
func (s *Storage) Slots(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT slot FROM offline_records ORDER BY slot`)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var slots []string
	for rows.Next() {
		var slot string
		if err := rows.Scan(&slot); err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return slots, nil
}

// DeleteAll removes every offline record.
func (s *Storage) DeleteAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM offline_records`); err != nil {
		return fmt.Errorf("failed to delete records: %w", err)
	}
	return nil
}
