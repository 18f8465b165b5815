package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// normalizeSQLiteDSN turns a plain file path into the file: URI form
// modernc.org/sqlite expects, adding mode=rwc so the file is created on
// first open.
func normalizeSQLiteDSN(path string) string {
	if path == ":memory:" {
		return "file::memory:?cache=shared&_txlock=immediate"
	}
	if strings.HasPrefix(path, "file:") {
		return path
	}
	return fmt.Sprintf("file:%s?mode=rwc&_txlock=immediate", path)
}

// Open opens a SQLite database at path (or ":memory:"), applies the WAL
// pragmas, and runs migrations. One-writer-at-a-time matches the single-
// writer-per-turn rule the registry already assumes, so MaxOpenConns(1) for
// a file-backed store costs nothing extra in practice.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", normalizeSQLiteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA journal_mode = WAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlitestore: pragma %q: %w", p, err)
		}
	}

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
