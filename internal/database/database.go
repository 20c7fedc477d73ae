package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"peregovorka/internal/domain"
	"peregovorka/internal/models"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// DB is the SQLite-backed domain.Repository.
type DB struct {
	*sql.DB
	path   string
	logger *zerolog.Logger
}

var _ domain.Repository = (*DB)(nil)

// NewDB opens the database at path and creates the schema.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if path != ":memory:" {
		// Создаем директорию для БД, если её нет
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: pragmas stick, ":memory:" stays a single database, writers never see SQLITE_BUSY.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if err := createTables(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	l := logger.With().Str("component", "database").Logger()
	l.Info().Str("path", path).Msg("database initialized")
	return &DB{DB: sqlDB, path: path, logger: &l}, nil
}

// Path is the file the database was opened from.
func (db *DB) Path() string {
	return db.path
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS rooms (
            name TEXT PRIMARY KEY,
            capacity INTEGER NOT NULL CHECK (capacity > 0)
        )`,
		`CREATE TABLE IF NOT EXISTS bookings (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            room_name TEXT NOT NULL REFERENCES rooms(name),
            user_id INTEGER NOT NULL,
            username TEXT NOT NULL,
            start_time TEXT NOT NULL,
            end_time TEXT NOT NULL,
            start_unix INTEGER NOT NULL,
            end_unix INTEGER NOT NULL,
            created_at TEXT NOT NULL,
            CHECK (end_unix > start_unix)
        )`,
		`CREATE TABLE IF NOT EXISTS admins (
            user_id INTEGER PRIMARY KEY,
            added_by INTEGER,
            added_at TEXT NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS settings (
            key TEXT PRIMARY KEY,
            value TEXT NOT NULL,
            updated_at TEXT NOT NULL
        )`,

		`CREATE INDEX IF NOT EXISTS idx_bookings_room_time ON bookings(room_name, end_unix, start_unix)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_user_time ON bookings(user_id, end_unix)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func isConstraint(err error, codes ...sqlite3.ErrNoExtended) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) || sqliteErr.Code != sqlite3.ErrConstraint {
		return false
	}
	if len(codes) == 0 {
		return true
	}
	for _, code := range codes {
		if sqliteErr.ExtendedCode == code {
			return true
		}
	}
	return false
}

func stamp(t time.Time) string {
	return t.UTC().Format(models.StampLayout)
}

func parseStamp(s string) (time.Time, error) {
	t, err := time.Parse(models.StampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func trimSQL(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}

func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
