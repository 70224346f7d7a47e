package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcher_DebouncesTranscriptWrites(t *testing.T) {
	root := t.TempDir()
	project := filepath.Join(root, "-work-app")
	if err := os.MkdirAll(project, 0755); err != nil {
		t.Fatal(err)
	}

	calls := make(chan string, 10)
	w, err := New(root, 100*time.Millisecond, nil, func(path string) { calls <- path })
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer w.Close()
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(project, "s1.jsonl")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		f.WriteString(`{"type":"user"}` + "\n")
		time.Sleep(10 * time.Millisecond)
	}
	f.Close()

	// non-transcript files are ignored
	os.WriteFile(filepath.Join(project, "notes.txt"), []byte("x"), 0644)

	select {
	case got := <-calls:
		if got != path {
			t.Errorf("Expected %s, got %s", path, got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Timed out waiting for callback")
	}

	select {
	case extra := <-calls:
		t.Errorf("Expected a single debounced callback, got another for %s", extra)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_MissingRoot(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "missing"), time.Millisecond, nil, func(string) {}); err == nil {
		t.Error("Expected error for missing root")
	}
}

func TestWatcher_StartTwice(t *testing.T) {
	w, err := New(t.TempDir(), time.Millisecond, nil, func(string) {})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	if err := w.Start(); err == nil {
		t.Error("Expected error on second start")
	}
	w.Close()
	if err := w.Close(); err != nil {
		t.Errorf("Expected idempotent close, got %v", err)
	}
}
