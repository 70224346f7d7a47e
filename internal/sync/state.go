package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// ErrNoSessionID is returned when saving state without a session id
var ErrNoSessionID = errors.New("session id is required")

// Store persists synced ids per session. Load never fails on missing or
// corrupt data; it returns empty state instead. Save only ever grows the set.
type Store interface {
	Load(ctx context.Context, sessionID string) (*SyncedState, error)
	Save(ctx context.Context, sessionID string, state *SyncedState) error
	Clear(ctx context.Context, sessionID string) error
	Sessions(ctx context.Context) ([]string, error)
	Close() error
}

// OpenStore opens the store for backend under stateDir
func OpenStore(backend, stateDir string) (Store, error) {
	switch strings.ToLower(backend) {
	case "", BackendFile:
		return NewFileStore(stateDir), nil
	case BackendSQLite:
		return OpenSQLiteStore(filepath.Join(stateDir, "state.db"))
	default:
		return nil, fmt.Errorf("unknown state backend %q (use %s or %s)", backend, BackendFile, BackendSQLite)
	}
}

// stateFile is the on-disk form. A cleared session is stored as {}.
type stateFile struct {
	SessionID  string   `json:"sessionId,omitempty"`
	SyncedIDs  []string `json:"syncedIds,omitempty"`
	LastSyncAt string   `json:"lastSyncAt,omitempty"`
}

// FileStore keeps one JSON file per session under <dir>/sessions
type FileStore struct {
	dir string
}

// NewFileStore creates a file store rooted at stateDir
func NewFileStore(stateDir string) *FileStore {
	return &FileStore{dir: filepath.Join(stateDir, "sessions")}
}

// Path returns the state file for a session
func (s *FileStore) Path(sessionID string) string {
	return filepath.Join(s.dir, sanitizeID(sessionID)+".json")
}

// Load reads a session's state. Missing or unreadable files yield empty state.
func (s *FileStore) Load(ctx context.Context, sessionID string) (*SyncedState, error) {
	state := &SyncedState{SessionID: sessionID, Synced: IDSet{}}
	if sessionID == "" {
		return state, nil
	}

	sf, ok := s.read(sessionID)
	if !ok {
		return state, nil
	}
	state.Ended = sf.SessionID == "" && len(sf.SyncedIDs) == 0
	for _, id := range sf.SyncedIDs {
		state.Synced.Add(id)
	}
	if ts, err := time.Parse(time.RFC3339, sf.LastSyncAt); err == nil {
		state.LastSyncAt = ts
	}
	return state, nil
}

// Save writes the union of state and what is already on disk, so a slower
// concurrent invocation cannot shrink the set another one just wrote.
func (s *FileStore) Save(ctx context.Context, sessionID string, state *SyncedState) error {
	if sessionID == "" {
		return ErrNoSessionID
	}

	merged := IDSet{}
	if state != nil {
		merged = state.Synced.Union(nil)
	}
	if current, ok := s.read(sessionID); ok {
		for _, id := range current.SyncedIDs {
			merged.Add(id)
		}
	}

	lastSync := time.Now().UTC()
	if state != nil && !state.LastSyncAt.IsZero() {
		lastSync = state.LastSyncAt.UTC()
	}

	return s.write(sessionID, &stateFile{
		SessionID:  sessionID,
		SyncedIDs:  merged.Sorted(),
		LastSyncAt: lastSync.Format(time.RFC3339),
	})
}

// Clear resets a session to the empty object
func (s *FileStore) Clear(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrNoSessionID
	}
	return s.write(sessionID, &stateFile{})
}

// Sessions lists sessions with a state file, including cleared ones
func (s *FileStore) Sessions(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".json")
		if data, err := os.ReadFile(filepath.Join(s.dir, e.Name())); err == nil {
			var sf stateFile
			if json.Unmarshal(data, &sf) == nil && sf.SessionID != "" {
				id = sf.SessionID
			}
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) read(sessionID string) (*stateFile, bool) {
	data, err := os.ReadFile(s.Path(sessionID))
	if err != nil {
		return nil, false
	}
	var sf stateFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, false
	}
	return &sf, true
}

// write replaces the state file atomically: a crash leaves the old or the new file
func (s *FileStore) write(sessionID string, sf *stateFile) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to flush state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := os.Rename(tmpPath, s.Path(sessionID)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// sanitizeID maps a session id to a safe file name
func sanitizeID(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	name := b.String()
	if name == "" || strings.Trim(name, ".") == "" {
		return "_"
	}
	return name
}
