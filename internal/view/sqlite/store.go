package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"streamregistry/internal/domain"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS streams (
	name TEXT PRIMARY KEY,
	definition TEXT NOT NULL,
	updated_at_utc_ns INTEGER NOT NULL
);
`

// Store is the durable materialized view: one row per live stream, holding
// the latest changelog snapshot. Tombstones delete the row.
type Store struct {
	db *sql.DB
}

func NewStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir view dir: %w", err)
		}
	}
	db, err := openSQLite(path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Apply(ctx context.Context, ev domain.ChangeEvent) error {
	if ev.Stream == nil {
		_, err := s.db.ExecContext(ctx, `DELETE FROM streams WHERE name=?`, ev.Key)
		return err
	}
	payload, err := json.Marshal(ev.Stream)
	if err != nil {
		return fmt.Errorf("marshal stream %q: %w", ev.Key, err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO streams(name, definition, updated_at_utc_ns) VALUES(?, ?, ?)
ON CONFLICT(name) DO UPDATE SET definition=excluded.definition, updated_at_utc_ns=excluded.updated_at_utc_ns`,
		ev.Key, string(payload), time.Now().UTC().UnixNano())
	return err
}

func (s *Store) Lookup(ctx context.Context, name string) (domain.StreamDefinition, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT definition FROM streams WHERE name=?`, name)
	var payload string
	err := row.Scan(&payload)
	if err == sql.ErrNoRows {
		return domain.StreamDefinition{}, false, nil
	}
	if err != nil {
		return domain.StreamDefinition{}, false, err
	}
	var stream domain.StreamDefinition
	if err := json.Unmarshal([]byte(payload), &stream); err != nil {
		return domain.StreamDefinition{}, false, fmt.Errorf("unmarshal stream %q: %w", name, err)
	}
	return stream, true, nil
}

func (s *Store) All(ctx context.Context) ([]domain.StreamDefinition, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT definition FROM streams`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.StreamDefinition
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var stream domain.StreamDefinition
		if err := json.Unmarshal([]byte(payload), &stream); err != nil {
			return nil, err
		}
		out = append(out, stream)
	}
	return out, rows.Err()
}

func openSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return db, nil
}
