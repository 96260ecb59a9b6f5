package store

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"testing/fstest"
)

func TestMigrationsHaveMatchingUpAndDownFiles(t *testing.T) {
	migrationsDir := filepath.Join("..", "..", "db", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}

	pattern := regexp.MustCompile(`^(\d+)_.*\.(up|down)\.sql$`)
	byVersion := map[string]map[string]bool{}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		match := pattern.FindStringSubmatch(name)
		if match == nil {
			continue
		}
		version := match[1]
		direction := match[2]
		if byVersion[version] == nil {
			byVersion[version] = map[string]bool{}
		}
		if byVersion[version][direction] {
			t.Fatalf("duplicate %s migration file for version %s", direction, version)
		}
		byVersion[version][direction] = true
	}

	if len(byVersion) == 0 {
		t.Fatal("no migrations discovered")
	}

	for version, dirs := range byVersion {
		if !dirs["up"] || !dirs["down"] {
			t.Fatalf("version %s must include both up and down files", version)
		}
	}
}

func TestInitMigrationIndexesEveryArrayField(t *testing.T) {
	sqlBytes, err := os.ReadFile(filepath.Join("..", "..", "db", "migrations", "0001_init.up.sql"))
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	sqlText := string(sqlBytes)

	for _, field := range []ArrayField{UserProjects, ProjectColumns, ProjectAssignees, ColumnTasks, TaskAssignees} {
		snippet := "ON " + string(field.Collection) + " USING GIN (" + field.Name + ")"
		if !strings.Contains(sqlText, snippet) {
			t.Fatalf("expected GIN index for %s (%q)", field, snippet)
		}
	}
}

func TestMigrationFilesSortedAndPaired(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_labels.up.sql":   {Data: []byte("SELECT 1")},
		"0002_labels.down.sql": {Data: []byte("SELECT 1")},
		"0001_init.up.sql":     {Data: []byte("SELECT 1")},
		"0001_init.down.sql":   {Data: []byte("SELECT 1")},
		"README.md":            {Data: []byte("notes")},
	}
	files, err := migrationFiles(fsys)
	if err != nil {
		t.Fatalf("migrationFiles() error = %v", err)
	}
	if len(files) != 2 || files[0] != "0001_init.up.sql" || files[1] != "0002_labels.up.sql" {
		t.Fatalf("unexpected files %v", files)
	}
}

func TestMigrationFilesRejectsMissingDown(t *testing.T) {
	fsys := fstest.MapFS{
		"0001_init.up.sql": {Data: []byte("SELECT 1")},
	}
	if _, err := migrationFiles(fsys); err == nil {
		t.Fatal("expected error for missing down file")
	}
	if _, err := migrationFiles(fstest.MapFS{}); err == nil {
		t.Fatal("expected error for empty dir")
	}
}

func TestRepoMigrationsAreDiscoverable(t *testing.T) {
	files, err := migrationFiles(os.DirFS(filepath.Join("..", "..", "db", "migrations")))
	if err != nil {
		t.Fatalf("migrationFiles() error = %v", err)
	}
	if files[0] != "0001_init.up.sql" {
		t.Fatalf("unexpected first migration %v", files)
	}
}
