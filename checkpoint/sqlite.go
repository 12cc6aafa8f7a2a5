package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists snapshots to a local SQLite database so run
// prefixes survive process restarts.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the checkpoint database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening checkpoint db: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Setup implements core.CheckpointStore. Idempotent.
func (s *SQLiteStore) Setup(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	thread_id  TEXT NOT NULL,
	step       INTEGER NOT NULL,
	state      TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (thread_id, step)
);`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating checkpoint schema: %w", err)
	}
	return nil
}

// Save implements core.CheckpointStore. Re-saving a (thread, step) pair
// replaces the earlier snapshot.
func (s *SQLiteStore) Save(ctx context.Context, threadID string, step int, state any) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding checkpoint: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO checkpoints (thread_id, step, state) VALUES (?, ?, ?)`,
		threadID, step, string(raw))
	if err != nil {
		return fmt.Errorf("writing checkpoint %s/%d: %w", threadID, step, err)
	}
	return nil
}

// Load returns the snapshot stored for a step, or sql.ErrNoRows when the
// step was never checkpointed.
func (s *SQLiteStore) Load(ctx context.Context, threadID string, step int) ([]byte, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM checkpoints WHERE thread_id = ? AND step = ?`,
		threadID, step).Scan(&raw)
	if err != nil {
		return nil, err
	}
	return []byte(raw), nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }
