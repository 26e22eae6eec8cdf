package migrations

import (
	"io/fs"
	"sort"
	"strings"
	"testing"
)

func TestOrderMigrationsEmbedded(t *testing.T) {
	entries, err := fs.ReadDir(OrdersFS, "orders")
	if err != nil {
		t.Fatalf("read order migrations: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("expected order migrations to be embedded")
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	if files[0] != "001_events.sql" {
		t.Fatalf("expected first order migration 001_events.sql, got %s", files[0])
	}
}

func TestOrderMigrationsDeclareUpSections(t *testing.T) {
	err := fs.WalkDir(OrdersFS, "orders", func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		content, err := fs.ReadFile(OrdersFS, path)
		if err != nil {
			t.Fatalf("read migration %s: %v", path, err)
		}
		if !strings.Contains(string(content), "-- +migrate Up") {
			t.Fatalf("migration %s is missing an Up section", path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk order migrations: %v", err)
	}
}
