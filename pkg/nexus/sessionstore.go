package nexus

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	_ "modernc.org/sqlite"
)

const sessionSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id          BLOB PRIMARY KEY,
	state       BLOB NOT NULL,
	checked_out INTEGER NOT NULL DEFAULT 0
);
`

// Session-store failure classes.
var (
	// ErrSessionNotFound marks session ids with no persisted state.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionCheckedOut marks acquisition of a session another holder has
	// not released yet. Serialized session state must have a single writer.
	ErrSessionCheckedOut = errors.New("session already checked out")
)

// SessionStore persists serialized crypto-session state across restarts,
// keyed by session id. Acquire/Release enforce a single holder per session
// so two processes cannot advance the same ratchet.
type SessionStore struct {
	db *sql.DB
}

// OpenSessionStore opens (and migrates) a SQLite-backed store at path. The
// file holds key material, so it is readable by the owner only. Use
// ":memory:" for an ephemeral store.
func OpenSessionStore(path string) (*SessionStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	store, err := NewSessionStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	if path != ":memory:" {
		if err := os.Chmod(path, 0o600); err != nil {
			store.Close()
			return nil, fmt.Errorf("restrict session db: %w", err)
		}
	}
	return store, nil
}

// NewSessionStore wraps an existing database handle and ensures the schema.
func NewSessionStore(db *sql.DB) (*SessionStore, error) {
	if _, err := db.Exec(sessionSchema); err != nil {
		return nil, fmt.Errorf("migrate session db: %w", err)
	}
	return &SessionStore{db: db}, nil
}

// Close releases the database handle.
func (s *SessionStore) Close() error {
	return s.db.Close()
}

// Put stores a session's serialized state, clearing any checkout.
func (s *SessionStore) Put(ctx context.Context, id, state []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, state, checked_out) VALUES (?, ?, 0)
		ON CONFLICT(id) DO UPDATE SET state = excluded.state, checked_out = 0`,
		id, state)
	if err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// Acquire checks a session out and returns its state. A second acquisition
// before Release fails with ErrSessionCheckedOut.
func (s *SessionStore) Acquire(ctx context.Context, id []byte) ([]byte, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin session tx: %w", err)
	}
	defer tx.Rollback()

	var (
		state      []byte
		checkedOut int
	)
	err = tx.QueryRowContext(ctx,
		`SELECT state, checked_out FROM sessions WHERE id = ?`, id).
		Scan(&state, &checkedOut)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, ErrSessionNotFound
	case err != nil:
		return nil, fmt.Errorf("query session: %w", err)
	}
	if checkedOut != 0 {
		return nil, ErrSessionCheckedOut
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET checked_out = 1 WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("check out session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit session tx: %w", err)
	}
	return state, nil
}

// Release writes a session's advanced state back and clears the checkout.
func (s *SessionStore) Release(ctx context.Context, id, state []byte) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET state = ?, checked_out = 0 WHERE id = ?`, state, id)
	if err != nil {
		return fmt.Errorf("release session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("release session: %w", err)
	}
	if affected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// Delete removes a session regardless of checkout state.
func (s *SessionStore) Delete(ctx context.Context, id []byte) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
