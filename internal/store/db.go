package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// OpenPostgres connects, applies pending migrations from migrationsDir and
// returns the store. Close releases the pool.
func OpenPostgres(ctx context.Context, databaseURL, migrationsDir string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(20)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	applied, err := ApplyMigrations(ctx, db, os.DirFS(migrationsDir))
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	for _, version := range applied {
		log.Printf("store: applied migration %s", version)
	}
	return NewPostgresStore(db), nil
}

func (s *PostgresStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
