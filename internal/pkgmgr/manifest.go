package pkgmgr

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"github.com/papapumpkin/ccgtools/internal/hashfold"
	"github.com/papapumpkin/ccgtools/internal/ident"
)

const manifestSchema = `
CREATE TABLE IF NOT EXISTS outputs (
    tag        TEXT PRIMARY KEY,
    hash       TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Manifest records the hash of every output built so far, keyed by
// case-normalized tag. It lives in a local SQLite database in WAL mode.
type Manifest struct {
	db   *sql.DB
	path string
}

// OpenManifest opens or creates the manifest database at path.
func OpenManifest(ctx context.Context, path string) (*Manifest, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("manifest: create directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("manifest: open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("manifest: enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("manifest: set busy timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, manifestSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("manifest: create schema: %w", err)
	}
	return &Manifest{db: db, path: path}, nil
}

// Path returns the database file.
func (m *Manifest) Path() string { return m.path }

// Get returns the recorded hash for tag. The second result is false when
// the tag has never been built.
func (m *Manifest) Get(ctx context.Context, tag string) (hashfold.Hash, bool, error) {
	var raw string
	err := m.db.QueryRowContext(ctx, "SELECT hash FROM outputs WHERE tag = ?", ident.Normalize(tag)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return hashfold.Hash{}, false, nil
	}
	if err != nil {
		return hashfold.Hash{}, false, fmt.Errorf("manifest: get %q: %w", tag, err)
	}
	h, err := hashfold.Parse(raw)
	if err != nil {
		return hashfold.Hash{}, false, fmt.Errorf("manifest: get %q: %w", tag, err)
	}
	return h, true, nil
}

// Put records h for tag, replacing any earlier entry.
func (m *Manifest) Put(ctx context.Context, tag string, h hashfold.Hash) error {
	const q = `
		INSERT INTO outputs (tag, hash, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(tag) DO UPDATE SET hash = excluded.hash, updated_at = CURRENT_TIMESTAMP`
	if _, err := m.db.ExecContext(ctx, q, ident.Normalize(tag), h.String()); err != nil {
		return fmt.Errorf("manifest: put %q: %w", tag, err)
	}
	return nil
}

// All returns every recorded hash keyed by normalized tag.
func (m *Manifest) All(ctx context.Context) (map[string]hashfold.Hash, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT tag, hash FROM outputs ORDER BY tag")
	if err != nil {
		return nil, fmt.Errorf("manifest: query outputs: %w", err)
	}
	defer rows.Close()

	out := make(map[string]hashfold.Hash)
	for rows.Next() {
		var tag, raw string
		if err := rows.Scan(&tag, &raw); err != nil {
			return nil, fmt.Errorf("manifest: scan output: %w", err)
		}
		h, err := hashfold.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("manifest: output %q: %w", tag, err)
		}
		out[tag] = h
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("manifest: iterate outputs: %w", err)
	}
	return out, nil
}

// Close closes the database.
func (m *Manifest) Close() error {
	return m.db.Close()
}

// DeleteManifest removes the manifest database at path along with its WAL
// side files. A missing file is not an error.
func DeleteManifest(path string) error {
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("manifest: delete: %w", err)
		}
	}
	return nil
}
