// Package storage provides SQLite persistence for the location catalog,
// forecast rows, users and their query history.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/garyellow/weamind-linebot-go/internal/config"
	_ "modernc.org/sqlite" // SQLite driver for database/sql
)

// DB wraps the SQLite database with a single writer connection and a reader pool.
type DB struct {
	mu     sync.RWMutex
	writer *sql.DB
	reader *sql.DB
	path   string
}

// New opens (or creates) the database at dbPath and initializes the schema.
// Use ":memory:" for an ephemeral database.
func New(ctx context.Context, dbPath string) (*DB, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	}

	writerDSN, readerDSN := buildDSNs(dbPath)

	writer, err := openConn(ctx, writerDSN, 1)
	if err != nil {
		return nil, fmt.Errorf("open writer: %w", err)
	}

	if err := InitSchema(ctx, writer); err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	reader := writer
	if readerDSN != writerDSN {
		reader, err = openConn(ctx, readerDSN, 8)
		if err != nil {
			_ = writer.Close()
			return nil, fmt.Errorf("open reader: %w", err)
		}
	}

	return &DB{
		writer: writer,
		reader: reader,
		path:   dbPath,
	}, nil
}

// NewTestDB creates an in-memory database for tests.
func NewTestDB() (*DB, error) {
	return New(context.Background(), ":memory:")
}

// buildDSNs returns writer and reader DSNs. In-memory databases share one
// connection so every query sees the same data.
func buildDSNs(dbPath string) (string, string) {
	if dbPath == ":memory:" || strings.Contains(dbPath, "mode=memory") {
		return dbPath, dbPath
	}
	pragmas := fmt.Sprintf("_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=synchronous(NORMAL)",
		config.DatabaseBusyTimeout.Milliseconds())
	readPragmas := fmt.Sprintf("_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", config.DatabaseBusyTimeout.Milliseconds())
	return "file:" + dbPath + "?" + pragmas, "file:" + dbPath + "?mode=ro&" + readPragmas
}

func openConn(ctx context.Context, dsn string, maxOpen int) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(maxOpen)
	conn.SetMaxIdleConns(maxOpen)
	conn.SetConnMaxLifetime(config.DatabaseConnMaxLifetime)

	if strings.HasPrefix(dsn, ":memory:") {
		// DSN pragmas only apply to file URIs
		if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return conn, nil
}

func (db *DB) r() *sql.DB {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.reader
}

func (db *DB) w() *sql.DB {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.writer
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Ping verifies both connections are alive.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.w().PingContext(ctx); err != nil {
		return fmt.Errorf("writer: %w", err)
	}
	if err := db.r().PingContext(ctx); err != nil {
		return fmt.Errorf("reader: %w", err)
	}
	return nil
}

// Close closes all connections. The pools stay in place, so later queries
// fail with "sql: database is closed".
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	var errs []error
	if db.reader != db.writer {
		errs = append(errs, db.reader.Close())
	}
	errs = append(errs, db.writer.Close())
	return errors.Join(errs...)
}

// SizeBytes returns the on-disk size of the main database file (0 for in-memory).
func (db *DB) SizeBytes() int64 {
	if db.path == ":memory:" {
		return 0
	}
	info, err := os.Stat(db.path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// CreateSnapshot writes a consistent copy of the database to destPath.
func (db *DB) CreateSnapshot(ctx context.Context, destPath string) error {
	if _, err := db.w().ExecContext(ctx, "VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("vacuum into %s: %w", destPath, err)
	}
	return nil
}

// Vacuum reclaims free pages after large deletions.
func (db *DB) Vacuum(ctx context.Context) error {
	_, err := db.w().ExecContext(ctx, "VACUUM")
	return err
}

// logSlow warns when an operation takes longer than threshold.
func logSlow(ctx context.Context, operation string, start time.Time, threshold time.Duration, attrs ...any) {
	if d := time.Since(start); d > threshold {
		args := append([]any{"operation", operation, "duration_ms", d.Milliseconds()}, attrs...)
		slog.WarnContext(ctx, "slow database operation", args...)
	}
}
