package sync

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/promptconduit/sessionsync/internal/envelope"
	"github.com/promptconduit/sessionsync/internal/git"
	"github.com/promptconduit/sessionsync/internal/redact"
	"github.com/promptconduit/sessionsync/internal/transcript"
)

// Transport delivers session upserts and record batches to the backend
type Transport interface {
	UpsertSession(ctx context.Context, session *envelope.Session) error
	UpsertBatch(ctx context.Context, batch *envelope.Batch) error
}

// Syncer runs one transcript sync: decode, diff against the store, send, persist
type Syncer struct {
	Store     Store
	Transport Transport
	Policy    Policy
	Redact    redact.Func
	BatchSize int
	Logger    *slog.Logger

	// Now is overridable in tests
	Now func() time.Time
}

// SyncRequest identifies the session and transcript to sync
type SyncRequest struct {
	SessionID      string
	TranscriptPath string
	Cwd            string
	DryRun         bool
}

// Sync sends the records of the transcript that have not been sent before.
// The synced set is saved after each successful batch; on the first failure
// the sync stops and ids of unsent records are never persisted.
func (s *Syncer) Sync(ctx context.Context, req SyncRequest) (*SyncResult, error) {
	log := s.logger()

	t, err := transcript.Decode(req.TranscriptPath)
	if err != nil {
		return nil, err
	}
	if t.Skipped > 0 {
		log.Debug("skipped malformed transcript lines", "path", req.TranscriptPath, "count", t.Skipped)
	}

	sessionID := resolveSessionID(req, t)
	if sessionID == "" {
		return nil, ErrNoSessionID
	}

	prev, err := s.Store.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load sync state: %w", err)
	}

	records, _ := ExtractNew(sessionID, t, prev.Synced, s.Policy, s.Redact)

	result := &SyncResult{
		SessionID:   sessionID,
		Found:       len(records),
		TotalSynced: prev.Len(),
		DryRun:      req.DryRun,
	}

	if len(records) == 0 {
		result.NoOp = true
		log.Debug("nothing new to sync", "session", sessionID, "synced", prev.Len())
		return result, nil
	}
	if req.DryRun {
		return result, nil
	}

	session := ComputeMetadata(sessionID, t, git.ResolveProject(projectDir(req, t)), s.Redact)

	sent := prev.Synced.Union(nil)
	size := s.BatchSize
	if size <= 0 {
		size = len(records)
	}

	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		chunk := records[start:end]

		messages := make([]envelope.Message, 0, len(chunk))
		for _, rec := range chunk {
			messages = append(messages, rec.Envelope(sessionID))
		}

		if err := s.Transport.UpsertBatch(ctx, envelope.NewBatch(session, messages)); err != nil {
			log.Warn("batch failed", "session", sessionID, "batch", result.Batches+1, "error", err)
			return result, err
		}

		for _, rec := range chunk {
			sent.Add(rec.ID)
		}
		result.Sent += len(chunk)
		result.Batches++

		if err := s.Store.Save(ctx, sessionID, &SyncedState{SessionID: sessionID, Synced: sent, LastSyncAt: s.now()}); err != nil {
			return result, fmt.Errorf("failed to save sync state: %w", err)
		}
		result.TotalSynced = len(sent)
	}

	log.Info("synced session", "session", sessionID, "records", result.Sent, "batches", result.Batches, "total", result.TotalSynced)
	return result, nil
}

func (s *Syncer) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.New(slog.DiscardHandler)
}

func (s *Syncer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// resolveSessionID prefers the hook's id, then the transcript's own, then the file name
func resolveSessionID(req SyncRequest, t *transcript.Transcript) string {
	if req.SessionID != "" {
		return req.SessionID
	}
	if t.Session != nil && t.Session.ID != "" {
		return t.Session.ID
	}
	return SessionIDFromPath(req.TranscriptPath)
}

func projectDir(req SyncRequest, t *transcript.Transcript) string {
	if t.Cwd != "" {
		return t.Cwd
	}
	return req.Cwd
}

// SessionIDFromPath returns the session id encoded in a transcript file name
func SessionIDFromPath(path string) string {
	if path == "" {
		return ""
	}
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}
