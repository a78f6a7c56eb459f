package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// FileName is the database file inside the database directory.
const FileName = "freezedry.db"

// ArchiveDB is the SQLite store for cached responses and capture history.
type ArchiveDB struct {
	db     *sql.DB
	dbPath string
	maxAge time.Duration
}

// Options configures ArchiveDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging so history can be read while a
	// capture writes to the cache.
	EnableWAL bool

	// MaxAge is how long a cached response is served. Zero never expires.
	MaxAge time.Duration
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
		MaxAge:            24 * time.Hour,
	}
}

// Open opens or creates the database in dbDir.
func Open(dbDir string, opts Options) (*ArchiveDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	adb := &ArchiveDB{db: db, dbPath: dbPath, maxAge: opts.MaxAge}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if err := adb.createTables(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return adb, nil
}

// Path returns the database file path.
func (adb *ArchiveDB) Path() string {
	return adb.dbPath
}

// Close closes the database connection.
func (adb *ArchiveDB) Close() error {
	return adb.db.Close()
}

func (adb *ArchiveDB) createTables(ctx context.Context) error {
	schema := `
	-- Responses cache successful fetches by request URL
	CREATE TABLE IF NOT EXISTS responses (
		url TEXT PRIMARY KEY,
		final_url TEXT NOT NULL,
		status_code INTEGER NOT NULL,
		content_type TEXT,
		headers TEXT,
		body BLOB,
		digest TEXT,
		fetched_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_responses_fetched ON responses(fetched_at);

	-- Captures record every archive operation
	CREATE TABLE IF NOT EXISTS captures (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		mode TEXT,
		output_path TEXT,
		bytes INTEGER DEFAULT 0,
		digest TEXT,
		resources TEXT,
		failures TEXT,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_captures_url ON captures(url);
	CREATE INDEX IF NOT EXISTS idx_captures_started ON captures(started_at);
	`
	_, err := adb.db.ExecContext(ctx, schema)
	return err
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
}

// parseTimestamp parses a timestamp column, returning the zero time when no
// format matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// timestampLayout is fixed width so stored timestamps sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
