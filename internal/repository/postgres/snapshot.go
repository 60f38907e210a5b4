package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
)

// SnapshotStore persists each store's exported state as a JSON blob keyed by
// store name. One row per store; a save replaces the previous snapshot.
type SnapshotStore struct {
	db *sql.DB
}

// Open connects to Postgres, verifies the connection, and runs migrations.
func Open(dsn string) (*SnapshotStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	slog.Info("Database connected and migrated")
	return &SnapshotStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS snapshots (
			store TEXT PRIMARY KEY,
			payload JSONB NOT NULL,
			saved_at TIMESTAMP NOT NULL DEFAULT NOW()
		);
	`)
	return err
}

// Close releases the underlying connection pool.
func (s *SnapshotStore) Close() error {
	return s.db.Close()
}

// Save upserts the snapshot for one store.
func (s *SnapshotStore) Save(ctx context.Context, store string, state any) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot for %s: %w", store, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (store, payload, saved_at) VALUES ($1, $2, $3)
		ON CONFLICT (store) DO UPDATE SET payload = $2, saved_at = $3`,
		store, payload, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot for %s: %w", store, err)
	}
	return nil
}

// Load reads the snapshot for one store into out. Returns (false, nil) when
// no snapshot exists yet, e.g. on first boot.
func (s *SnapshotStore) Load(ctx context.Context, store string, out any) (bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, "SELECT payload FROM snapshots WHERE store = $1", store).Scan(&payload)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load snapshot for %s: %w", store, err)
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal snapshot for %s: %w", store, err)
	}
	return true, nil
}
