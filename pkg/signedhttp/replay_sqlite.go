package signedhttp

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const replaySchema = `
CREATE TABLE IF NOT EXISTS replay_entries (
	key           TEXT PRIMARY KEY,
	request_hash  TEXT NOT NULL,
	state         INTEGER NOT NULL,
	response      BLOB,
	expires_at_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS replay_entries_expiry ON replay_entries (expires_at_ms);
`

// SQLiteReplayStore persists replay state across restarts of a single-node
// responder.
type SQLiteReplayStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLiteReplayStore opens (and migrates) a SQLite-backed store at path.
// Use ":memory:" for an ephemeral store.
func OpenSQLiteReplayStore(path string) (*SQLiteReplayStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open replay db: %w", err)
	}
	store, err := NewSQLiteReplayStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLiteReplayStore wraps an existing database handle and ensures the
// schema.
func NewSQLiteReplayStore(db *sql.DB) (*SQLiteReplayStore, error) {
	if _, err := db.Exec(replaySchema); err != nil {
		return nil, fmt.Errorf("migrate replay db: %w", err)
	}
	return &SQLiteReplayStore{db: db}, nil
}

// WithClock overrides the clock for tests.
func (s *SQLiteReplayStore) WithClock(now func() time.Time) *SQLiteReplayStore {
	s.now = now
	return s
}

func (s *SQLiteReplayStore) nowMs() int64 {
	if s.now != nil {
		return s.now().UnixMilli()
	}
	return time.Now().UnixMilli()
}

// Close releases the database handle.
func (s *SQLiteReplayStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteReplayStore) BeginOrReplay(ctx context.Context, key, requestHash string, expiresAtMs int64) (BeginResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return BeginResult{}, fmt.Errorf("begin replay tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM replay_entries WHERE expires_at_ms < ?`, s.nowMs()); err != nil {
		return BeginResult{}, fmt.Errorf("purge replay entries: %w", err)
	}

	var (
		storedHash string
		state      int
		response   []byte
	)
	err = tx.QueryRowContext(ctx,
		`SELECT request_hash, state, response FROM replay_entries WHERE key = ?`, key).
		Scan(&storedHash, &state, &response)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO replay_entries (key, request_hash, state, expires_at_ms) VALUES (?, ?, 0, ?)`,
			key, requestHash, expiresAtMs); err != nil {
			return BeginResult{}, fmt.Errorf("reserve replay entry: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return BeginResult{}, fmt.Errorf("commit replay tx: %w", err)
		}
		return BeginResult{Outcome: BeginProceed}, nil

	case err != nil:
		return BeginResult{}, fmt.Errorf("query replay entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return BeginResult{}, fmt.Errorf("commit replay tx: %w", err)
	}

	if storedHash != requestHash {
		return BeginResult{Outcome: BeginConflict}, nil
	}
	if state == 1 {
		var stored StoredResponse
		if err := json.Unmarshal(response, &stored); err != nil {
			return BeginResult{}, fmt.Errorf("decode stored response: %w", err)
		}
		return BeginResult{Outcome: BeginReplay, Stored: &stored}, nil
	}
	return BeginResult{Outcome: BeginInFlight}, nil
}

func (s *SQLiteReplayStore) Complete(ctx context.Context, key, requestHash string, resp *StoredResponse) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal stored response: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO replay_entries (key, request_hash, state, response, expires_at_ms)
		VALUES (?, ?, 1, ?, ?)
		ON CONFLICT(key) DO UPDATE SET state = 1, response = excluded.response`,
		key, requestHash, payload, s.nowMs()+DefaultMaxValidityMs)
	if err != nil {
		return fmt.Errorf("complete replay entry: %w", err)
	}
	return nil
}

func (s *SQLiteReplayStore) Release(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM replay_entries WHERE key = ? AND state = 0`, key); err != nil {
		return fmt.Errorf("release replay entry: %w", err)
	}
	return nil
}
