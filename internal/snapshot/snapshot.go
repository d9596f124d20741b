// Package snapshot keeps the last good API responses of the CLI in a local
// SQLite file so that listings stay readable while the API is down.
package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/resolver"
)

// ErrNotFound is returned when no snapshot exists for a key.
var ErrNotFound = errors.New("snapshot not found")

// Store reads and writes snapshots.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the snapshot database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("snapshot path must not be empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create snapshot dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot db: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma %q: %w", p, err)
		}
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS snapshots (
			key      TEXT PRIMARY KEY,
			payload  BLOB NOT NULL,
			saved_at INTEGER NOT NULL
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create snapshot schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores value as JSON under key, replacing any earlier snapshot.
func (s *Store) Save(ctx context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (key, payload, saved_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, saved_at = excluded.saved_at`,
		key, payload, s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", key, err)
	}
	return nil
}

// Load decodes the snapshot stored under key into dest and returns when it was saved.
func (s *Store) Load(ctx context.Context, key string, dest any) (time.Time, error) {
	var (
		payload []byte
		savedAt int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT payload, saved_at FROM snapshots WHERE key = ?`, key).Scan(&payload, &savedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, ErrNotFound
		}
		return time.Time{}, fmt.Errorf("load snapshot %s: %w", key, err)
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return time.Time{}, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	return time.Unix(0, savedAt), nil
}

// Keys returns every stored key with its save time.
func (s *Store) Keys(ctx context.Context) (map[string]time.Time, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, saved_at FROM snapshots`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	out := make(map[string]time.Time)
	for rows.Next() {
		var (
			key     string
			savedAt int64
		)
		if err := rows.Scan(&key, &savedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out[key] = time.Unix(0, savedAt)
	}
	return out, rows.Err()
}

// Source serves a stored list as a resolver tier. A nil store yields an
// empty tier so callers can wire it unconditionally.
func Source[T any](s *Store, name, key string) resolver.Source[T] {
	return resolver.Func(name, func(ctx context.Context) ([]T, error) {
		if s == nil {
			return nil, ErrNotFound
		}
		var items []T
		if _, err := s.Load(ctx, key, &items); err != nil {
			return nil, err
		}
		return items, nil
	})
}
