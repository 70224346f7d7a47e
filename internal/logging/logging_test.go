package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_DisabledWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hook.log")

	log, closer := New(Options{LogFile: path})
	log.Info("hello")
	if err := closer(); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Expected no log file when debug is off")
	}
}

func TestNew_DebugAppendsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "hook.log")

	for i := 0; i < 2; i++ {
		log, closer := New(Options{Debug: true, LogFile: path})
		log.Debug("hook started", "event", "Stop")
		closer()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected log file: %v", err)
	}
	if got := strings.Count(string(data), "hook started"); got != 2 {
		t.Errorf("Expected 2 appended records, got %d:\n%s", got, data)
	}
	if !strings.Contains(string(data), "event=Stop") {
		t.Errorf("Expected structured attrs, got %s", data)
	}
}
