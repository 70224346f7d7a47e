package sync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteStore keeps synced ids in a SQLite database shared by all sessions
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLiteStore creates or opens the database at path. A file that is not a
// readable database is moved aside and replaced with an empty one.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	s := &SQLiteStore{path: path}
	err := s.open()
	if isCorrupt(err) {
		err = s.quarantine()
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) open() error {
	db, err := sql.Open("sqlite", s.path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return err
	}
	s.db = db
	if err := s.init(); err != nil {
		db.Close()
		s.db = nil
		return err
	}
	return nil
}

// quarantine moves the damaged database to <path>.corrupt-<unix ms> and starts over
func (s *SQLiteStore) quarantine() error {
	if s.db != nil {
		s.db.Close()
		s.db = nil
	}

	aside := fmt.Sprintf("%s.corrupt-%d", s.path, time.Now().UnixMilli())
	if err := os.Rename(s.path, aside); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to move corrupt state database: %w", err)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		os.Remove(s.path + suffix)
	}
	return s.open()
}

// isCorrupt reports whether err means the file is damaged or not a database
func isCorrupt(err error) bool {
	if err == nil {
		return false
	}
	var sqlErr *sqlite.Error
	if errors.As(err, &sqlErr) {
		switch sqlErr.Code() & 0xff {
		case sqlite3.SQLITE_NOTADB, sqlite3.SQLITE_CORRUPT:
			return true
		}
	}
	msg := err.Error()
	return strings.Contains(msg, "file is not a database") || strings.Contains(msg, "malformed")
}

func (s *SQLiteStore) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		last_sync_at INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS synced_records (
		session_id TEXT NOT NULL,
		record_id TEXT NOT NULL,
		PRIMARY KEY (session_id, record_id)
	);

	CREATE TABLE IF NOT EXISTS ended_sessions (
		session_id TEXT PRIMARY KEY,
		ended_at INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Load returns the session's synced ids; an unknown session is empty state.
// A database found corrupt while reading is replaced and yields empty state.
func (s *SQLiteStore) Load(ctx context.Context, sessionID string) (*SyncedState, error) {
	state, err := s.load(ctx, sessionID)
	if isCorrupt(err) {
		if rerr := s.quarantine(); rerr != nil {
			return nil, rerr
		}
		return &SyncedState{SessionID: sessionID, Synced: IDSet{}}, nil
	}
	return state, err
}

func (s *SQLiteStore) load(ctx context.Context, sessionID string) (*SyncedState, error) {
	state := &SyncedState{SessionID: sessionID, Synced: IDSet{}}
	if sessionID == "" {
		return state, nil
	}

	var lastSync int64
	err := s.db.QueryRowContext(ctx, `SELECT last_sync_at FROM sessions WHERE session_id = ?`, sessionID).Scan(&lastSync)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return nil, err
	case lastSync > 0:
		state.LastSyncAt = time.UnixMilli(lastSync).UTC()
	}

	var ended int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM ended_sessions WHERE session_id = ?`, sessionID).Scan(&ended); err != nil {
		return nil, err
	}
	state.Ended = ended > 0

	rows, err := s.db.QueryContext(ctx, `SELECT record_id FROM synced_records WHERE session_id = ?`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		state.Synced.Add(id)
	}
	return state, rows.Err()
}

// Save inserts the ids in one transaction. Existing ids are kept, so the set only grows.
func (s *SQLiteStore) Save(ctx context.Context, sessionID string, state *SyncedState) error {
	if sessionID == "" {
		return ErrNoSessionID
	}

	lastSync := time.Now().UTC()
	if state != nil && !state.LastSyncAt.IsZero() {
		lastSync = state.LastSyncAt
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (session_id, last_sync_at) VALUES (?, ?)
		ON CONFLICT(session_id) DO UPDATE SET last_sync_at = excluded.last_sync_at`,
		sessionID, lastSync.UnixMilli()); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM ended_sessions WHERE session_id = ?`, sessionID); err != nil {
		return err
	}

	if state != nil && len(state.Synced) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO synced_records (session_id, record_id) VALUES (?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for id := range state.Synced {
			if _, err := stmt.ExecContext(ctx, sessionID, id); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// Clear removes everything stored for the session and marks it ended
func (s *SQLiteStore) Clear(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrNoSessionID
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM synced_records WHERE session_id = ?`, sessionID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO ended_sessions (session_id, ended_at) VALUES (?, ?)
		ON CONFLICT(session_id) DO UPDATE SET ended_at = excluded.ended_at`,
		sessionID, time.Now().UnixMilli()); err != nil {
		return err
	}
	return tx.Commit()
}

// Sessions lists sessions that have been synced at least once since their last clear
func (s *SQLiteStore) Sessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT session_id FROM sessions ORDER BY last_sync_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
