package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStateRepository implements StateRepository over a single pure-Go
// modernc.org/sqlite connection, WAL mode, single writer. Schema is
// intentionally narrow: an indexed_files table keyed by absolute path, and
// a string key-value table for runtime state such as the embedding
// dimension/model an index was built with.
type SQLiteStateRepository struct {
	db *sql.DB
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS indexed_files (
	absolute_path TEXT PRIMARY KEY,
	last_modified_millis INTEGER NOT NULL,
	size_bytes INTEGER NOT NULL,
	indexed_at_unix_millis INTEGER NOT NULL,
	optional_sha256 TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS state_kv (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// NewSQLiteStateRepository opens (creating if necessary) the SQLite
// database at path. It runs an integrity check before applying the
// schema; a corrupt database file is moved aside rather than left to fail
// every subsequent open.
func NewSQLiteStateRepository(path string) (*SQLiteStateRepository, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: create state dir: %w", err)
		}
		if err := recoverIfCorrupt(path); err != nil {
			return nil, err
		}
	}

	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // single-writer: modernc.org/sqlite serializes otherwise-racy WAL writers

	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}

	return &SQLiteStateRepository{db: db}, nil
}

// recoverIfCorrupt runs PRAGMA integrity_check against an existing
// database file and renames it aside on failure, so NewSQLiteStateRepository
// can start fresh rather than erroring forever on a damaged file.
func recoverIfCorrupt(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil // let the real Open below surface the error
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil || result != "ok" {
		db.Close()
		corruptPath := path + ".corrupt." + fmt.Sprintf("%d", time.Now().UnixNano())
		return os.Rename(path, corruptPath)
	}

	return nil
}

// UpsertFile inserts or replaces a file's indexed state.
func (r *SQLiteStateRepository) UpsertFile(ctx context.Context, f IndexedFile) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO indexed_files (absolute_path, last_modified_millis, size_bytes, indexed_at_unix_millis, optional_sha256)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(absolute_path) DO UPDATE SET
			last_modified_millis = excluded.last_modified_millis,
			size_bytes = excluded.size_bytes,
			indexed_at_unix_millis = excluded.indexed_at_unix_millis,
			optional_sha256 = excluded.optional_sha256
	`, f.AbsolutePath, f.LastModifiedMillis, f.SizeBytes, f.IndexedAtUnixMilli, f.OptionalSHA256)
	if err != nil {
		return fmt.Errorf("store: upsert file: %w", err)
	}
	return nil
}

// GetFile returns the indexed state for absolutePath, or found=false if
// there is no row.
func (r *SQLiteStateRepository) GetFile(ctx context.Context, absolutePath string) (IndexedFile, bool, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT absolute_path, last_modified_millis, size_bytes, indexed_at_unix_millis, optional_sha256
		FROM indexed_files WHERE absolute_path = ?
	`, absolutePath)

	var f IndexedFile
	if err := row.Scan(&f.AbsolutePath, &f.LastModifiedMillis, &f.SizeBytes, &f.IndexedAtUnixMilli, &f.OptionalSHA256); err != nil {
		if err == sql.ErrNoRows {
			return IndexedFile{}, false, nil
		}
		return IndexedFile{}, false, fmt.Errorf("store: get file: %w", err)
	}
	return f, true, nil
}

// ListFiles returns every tracked file, used by ChangeDetector to diff
// against a fresh directory scan.
func (r *SQLiteStateRepository) ListFiles(ctx context.Context) ([]IndexedFile, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT absolute_path, last_modified_millis, size_bytes, indexed_at_unix_millis, optional_sha256
		FROM indexed_files
	`)
	if err != nil {
		return nil, fmt.Errorf("store: list files: %w", err)
	}
	defer rows.Close()

	var out []IndexedFile
	for rows.Next() {
		var f IndexedFile
		if err := rows.Scan(&f.AbsolutePath, &f.LastModifiedMillis, &f.SizeBytes, &f.IndexedAtUnixMilli, &f.OptionalSHA256); err != nil {
			return nil, fmt.Errorf("store: scan file row: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// DeleteFile removes a file's tracked state.
func (r *SQLiteStateRepository) DeleteFile(ctx context.Context, absolutePath string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM indexed_files WHERE absolute_path = ?`, absolutePath)
	if err != nil {
		return fmt.Errorf("store: delete file: %w", err)
	}
	return nil
}

// GetState reads a single string value from the key-value area.
func (r *SQLiteStateRepository) GetState(ctx context.Context, key string) (string, bool, error) {
	row := r.db.QueryRowContext(ctx, `SELECT value FROM state_kv WHERE key = ?`, key)
	var value string
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("store: get state: %w", err)
	}
	return value, true, nil
}

// SetState writes a single string value to the key-value area.
func (r *SQLiteStateRepository) SetState(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO state_kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("store: set state: %w", err)
	}
	return nil
}

// Close releases the underlying database connection.
func (r *SQLiteStateRepository) Close() error {
	return r.db.Close()
}

var _ StateRepository = (*SQLiteStateRepository)(nil)
