package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Open opens the SQLite database at path, creating its directory, and
// applies pending migrations.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		path = "./data/attendance.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	return open(ctx, fmt.Sprintf("file:%s?%s", path, pragmas))
}

// OpenMemory opens a private in-memory database with the production schema.
func OpenMemory(ctx context.Context, name string) (*sql.DB, error) {
	return open(ctx, fmt.Sprintf("file:%s?mode=memory&cache=shared&%s", name, pragmas))
}

const pragmas = "_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"

func open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}

	// single connection; writes are serialised through Worker anyway
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
