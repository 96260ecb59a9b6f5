package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func openTestPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("TASKBOARD_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("TASKBOARD_TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	s, err := OpenPostgres(ctx, dsn, filepath.Join("..", "..", "db", "migrations"))
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if _, err := s.DB().ExecContext(ctx, `TRUNCATE users, projects, columns, tasks`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return s
}

func TestPostgresStoreContract(t *testing.T) {
	newStore := func(t *testing.T) Store { return openTestPostgres(t) }
	runStoreContract(t, newStore)
	runTxContract(t, newStore)
}
