// Package sqlitemigrate applies embedded SQL migration files to a sqlite
// database and records each applied file in a schema_migrations ledger.
package sqlitemigrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

const ledgerTable = "schema_migrations"

type migrationFile struct {
	// path locates the file inside the source filesystem.
	path string
	// key is the ledger name and stays stable across restarts.
	key string
}

// Apply runs every pending .sql file under root in lexical order. Each file
// runs in its own transaction and is recorded in the ledger, so applying the
// same filesystem twice is a no-op.
func Apply(ctx context.Context, db *sql.DB, fsys fs.FS, root string) error {
	if db == nil {
		return fmt.Errorf("sql db is required")
	}

	files, err := listMigrations(fsys, root)
	if err != nil {
		return err
	}

	if err := ensureLedger(ctx, db); err != nil {
		return err
	}

	for _, mf := range files {
		if err := applyOne(ctx, db, fsys, mf); err != nil {
			return err
		}
	}
	return nil
}

func listMigrations(fsys fs.FS, root string) ([]migrationFile, error) {
	dir := strings.TrimSpace(root)
	if dir == "" {
		dir = "."
	}

	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var files []migrationFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		mf := migrationFile{path: entry.Name(), key: entry.Name()}
		if dir != "." {
			mf.path = path.Join(dir, entry.Name())
			mf.key = mf.path
		}
		files = append(files, mf)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].key < files[j].key })
	return files, nil
}

func ensureLedger(ctx context.Context, db *sql.DB) error {
	createSQL := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
);
`, ledgerTable)
	if _, err := db.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("ensure migration ledger: %w", err)
	}
	return nil
}

func applyOne(ctx context.Context, db *sql.DB, fsys fs.FS, mf migrationFile) error {
	applied, err := isApplied(ctx, db, mf.key)
	if err != nil {
		return fmt.Errorf("check migration %s: %w", mf.key, err)
	}
	if applied {
		return nil
	}

	content, err := fs.ReadFile(fsys, mf.path)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", mf.key, err)
	}

	upSQL := ExtractUp(string(content))
	if strings.TrimSpace(upSQL) == "" {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", mf.key, err)
	}

	if _, err := tx.ExecContext(ctx, upSQL); err != nil && !isAlreadyExists(err) {
		_ = tx.Rollback()
		return fmt.Errorf("exec migration %s: %w", mf.key, err)
	}

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("INSERT OR IGNORE INTO %s (name, applied_at) VALUES (?, ?)", ledgerTable),
		mf.key,
		time.Now().UTC().UnixMilli(),
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record migration %s: %w", mf.key, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", mf.key, err)
	}
	return nil
}

// ExtractUp returns the SQL between the -- +migrate Up and -- +migrate Down
// markers. Files without markers are applied whole.
func ExtractUp(content string) string {
	const upMarker = "-- +migrate Up"
	const downMarker = "-- +migrate Down"

	start := strings.Index(content, upMarker)
	if start == -1 {
		return content
	}
	rest := content[start+len(upMarker):]
	if end := strings.Index(rest, downMarker); end != -1 {
		return rest[:end]
	}
	return rest
}

// isAlreadyExists reports whether err indicates DDL that already took effect.
func isAlreadyExists(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "duplicate column name")
}

func isApplied(ctx context.Context, db *sql.DB, key string) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx, "SELECT 1 FROM "+ledgerTable+" WHERE name = ?", key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
