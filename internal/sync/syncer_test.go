package sync

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/promptconduit/sessionsync/internal/envelope"
	"github.com/promptconduit/sessionsync/internal/redact"
)

type fakeTransport struct {
	batches  []*envelope.Batch
	failFrom int // 1-based batch number that starts failing, 0 = never
}

func (f *fakeTransport) UpsertSession(ctx context.Context, s *envelope.Session) error {
	return nil
}

func (f *fakeTransport) UpsertBatch(ctx context.Context, b *envelope.Batch) error {
	if f.failFrom > 0 && len(f.batches)+1 >= f.failFrom {
		return errors.New("Sync failed: 500 - boom")
	}
	f.batches = append(f.batches, b)
	return nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sess-1.jsonl")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newSyncer(store Store, tr Transport, batchSize int) *Syncer {
	return &Syncer{
		Store:     store,
		Transport: tr,
		Policy:    Policy{IncludeToolCalls: true},
		Redact:    redact.String,
		BatchSize: batchSize,
	}
}

func TestSync_SendsThenNoOp(t *testing.T) {
	ctx := context.Background()
	path := writeFile(t, fixBugTranscript)
	stateDir := t.TempDir()
	transport := &fakeTransport{}

	res, err := newSyncer(NewFileStore(stateDir), transport, 100).Sync(ctx, SyncRequest{SessionID: "sess-1", TranscriptPath: path})
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if res.Sent != 3 || res.Batches != 1 || res.TotalSynced != 3 {
		t.Errorf("Unexpected result %+v", res)
	}
	if len(transport.batches) != 1 {
		t.Fatalf("Expected one batch, got %d", len(transport.batches))
	}
	b := transport.batches[0]
	if len(b.Sessions) != 1 || b.Sessions[0].Title != "Fix bug" || b.Sessions[0].MessageCount != 2 {
		t.Errorf("Expected session metadata in batch, got %+v", b.Sessions)
	}
	if len(b.Messages) != 3 || b.Messages[2].Parts[0].Type != envelope.PartToolUse {
		t.Errorf("Unexpected messages %+v", b.Messages)
	}

	// the next process sees the persisted set and has nothing to do
	res, err = newSyncer(NewFileStore(stateDir), transport, 100).Sync(ctx, SyncRequest{SessionID: "sess-1", TranscriptPath: path})
	if err != nil {
		t.Fatalf("Second sync failed: %v", err)
	}
	if !res.NoOp || len(transport.batches) != 1 {
		t.Errorf("Expected no-op, got %+v with %d batches", res, len(transport.batches))
	}
}

func TestSync_AppendedLinesOnly(t *testing.T) {
	ctx := context.Background()
	path := writeFile(t, fixBugTranscript)
	store := NewFileStore(t.TempDir())
	transport := &fakeTransport{}
	s := newSyncer(store, transport, 100)

	if _, err := s.Sync(ctx, SyncRequest{SessionID: "sess-1", TranscriptPath: path}); err != nil {
		t.Fatal(err)
	}

	f, _ := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	f.WriteString(`{"type":"user","uuid":"u2","timestamp":"2025-01-01T00:01:00Z","message":{"role":"user","content":"thanks"}}` + "\n")
	f.Close()

	res, err := s.Sync(ctx, SyncRequest{SessionID: "sess-1", TranscriptPath: path})
	if err != nil {
		t.Fatal(err)
	}
	if res.Sent != 1 || transport.batches[1].Messages[0].ExternalID != "u2" {
		t.Errorf("Expected only u2, got %+v", transport.batches[1].Messages)
	}
	if res.TotalSynced != 4 {
		t.Errorf("Expected 4 synced ids, got %d", res.TotalSynced)
	}
}

func TestSync_FailureDoesNotAdvance(t *testing.T) {
	ctx := context.Background()
	path := writeFile(t, fixBugTranscript)
	store := NewFileStore(t.TempDir())

	// batch size 1: first batch succeeds, second fails
	res, err := newSyncer(store, &fakeTransport{failFrom: 2}, 1).Sync(ctx, SyncRequest{SessionID: "sess-1", TranscriptPath: path})
	if err == nil {
		t.Fatal("Expected transport error")
	}
	if res.Sent != 1 {
		t.Errorf("Expected 1 sent before failure, got %d", res.Sent)
	}

	state, _ := store.Load(ctx, "sess-1")
	if state.Len() != 1 || !state.Synced.Has("u1") {
		t.Errorf("Expected only u1 persisted, got %v", state.Synced.Sorted())
	}

	// retry picks up exactly the unsent records
	transport := &fakeTransport{}
	res, err = newSyncer(store, transport, 100).Sync(ctx, SyncRequest{SessionID: "sess-1", TranscriptPath: path})
	if err != nil {
		t.Fatal(err)
	}
	if res.Sent != 2 {
		t.Errorf("Expected 2 records on retry, got %d", res.Sent)
	}
}

func TestSync_TotalFailurePersistsNothing(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(t.TempDir())

	_, err := newSyncer(store, &fakeTransport{failFrom: 1}, 100).
		Sync(ctx, SyncRequest{SessionID: "sess-1", TranscriptPath: writeFile(t, fixBugTranscript)})
	if err == nil {
		t.Fatal("Expected error")
	}
	if _, statErr := os.Stat(store.Path("sess-1")); !os.IsNotExist(statErr) {
		t.Error("Expected no state file after failed sync")
	}
}

func TestSync_DryRun(t *testing.T) {
	store := NewFileStore(t.TempDir())
	transport := &fakeTransport{}

	res, err := newSyncer(store, transport, 100).Sync(context.Background(),
		SyncRequest{SessionID: "sess-1", TranscriptPath: writeFile(t, fixBugTranscript), DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.Found != 3 || res.Sent != 0 || len(transport.batches) != 0 {
		t.Errorf("Unexpected dry run result %+v", res)
	}
	if state, _ := store.Load(context.Background(), "sess-1"); state.Len() != 0 {
		t.Error("Dry run must not persist state")
	}
}

func TestSync_MissingTranscript(t *testing.T) {
	transport := &fakeTransport{}
	res, err := newSyncer(NewFileStore(t.TempDir()), transport, 100).Sync(context.Background(),
		SyncRequest{SessionID: "sess-1", TranscriptPath: filepath.Join(t.TempDir(), "absent.jsonl")})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !res.NoOp || len(transport.batches) != 0 {
		t.Errorf("Expected no-op, got %+v", res)
	}
}

func TestSync_SessionIDFallbacks(t *testing.T) {
	transport := &fakeTransport{}
	s := newSyncer(NewFileStore(t.TempDir()), transport, 100)

	res, err := s.Sync(context.Background(), SyncRequest{TranscriptPath: writeFile(t, fixBugTranscript)})
	if err != nil {
		t.Fatal(err)
	}
	if res.SessionID != "sess-1" {
		t.Errorf("Expected id from session record, got %q", res.SessionID)
	}

	if _, err := s.Sync(context.Background(), SyncRequest{}); !errors.Is(err, ErrNoSessionID) {
		t.Errorf("Expected ErrNoSessionID, got %v", err)
	}
}

func TestSessionIDFromPath(t *testing.T) {
	if got := SessionIDFromPath("/x/y/abc-123.jsonl"); got != "abc-123" {
		t.Errorf("Unexpected id %q", got)
	}
}

func TestFindTranscripts(t *testing.T) {
	dir := t.TempDir()
	if paths, err := FindTranscripts(filepath.Join(dir, "missing")); err != nil || len(paths) != 0 {
		t.Errorf("Expected nothing for missing dir, got %v %v", paths, err)
	}

	proj := filepath.Join(dir, "-work-app")
	os.MkdirAll(proj, 0755)
	os.WriteFile(filepath.Join(proj, "a.jsonl"), []byte("{}\n"), 0644)
	os.WriteFile(filepath.Join(proj, "notes.txt"), []byte("x"), 0644)

	paths, err := FindTranscripts(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 1 || filepath.Base(paths[0]) != "a.jsonl" {
		t.Errorf("Unexpected transcripts %v", paths)
	}
}
