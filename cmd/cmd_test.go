package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/promptconduit/sessionsync/internal/client"
	"github.com/promptconduit/sessionsync/internal/sync"
)

func TestInstallHooks_PreservesOtherTools(t *testing.T) {
	settings := map[string]interface{}{
		"theme": "dark",
		"hooks": map[string]interface{}{
			"Stop": []interface{}{
				map[string]interface{}{
					"hooks": []interface{}{
						map[string]interface{}{"type": "command", "command": "other-tool notify"},
					},
				},
			},
		},
	}

	events := installHooks(settings, "/usr/local/bin/sessionsync")
	if len(events) != 5 {
		t.Fatalf("Expected 5 events installed, got %d", len(events))
	}

	hooks := settings["hooks"].(map[string]interface{})
	stop := hooks["Stop"].([]interface{})
	if len(stop) != 2 {
		t.Fatalf("Expected other tool's Stop hook kept alongside ours, got %d entries", len(stop))
	}
	if !containsOurHook(stop[1]) || containsOurHook(stop[0]) {
		t.Errorf("Expected our entry appended after the existing one: %v", stop)
	}

	post := hooks["PostToolUse"].([]interface{})[0].(map[string]interface{})
	if post["matcher"] != "*" {
		t.Errorf("Expected PostToolUse matcher '*', got %v", post["matcher"])
	}
	cmd := post["hooks"].([]interface{})[0].(map[string]interface{})["command"]
	if cmd != "/usr/local/bin/sessionsync hook PostToolUse" {
		t.Errorf("Unexpected command: %v", cmd)
	}
	if settings["theme"] != "dark" {
		t.Error("Expected unrelated settings untouched")
	}
}

func TestInstallHooks_Idempotent(t *testing.T) {
	settings := map[string]interface{}{}
	installHooks(settings, "/bin/sessionsync")
	installHooks(settings, "/opt/new path/sessionsync")

	hooks := settings["hooks"].(map[string]interface{})
	stop := hooks["Stop"].([]interface{})
	if len(stop) != 1 {
		t.Fatalf("Expected reinstall to replace our entry, got %d entries", len(stop))
	}
	cmd := stop[0].(map[string]interface{})["hooks"].([]interface{})[0].(map[string]interface{})["command"].(string)
	if !strings.HasPrefix(cmd, `"/opt/new path/sessionsync"`) {
		t.Errorf("Expected quoted new path, got %s", cmd)
	}
}

func TestUninstallHooks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	settings := map[string]interface{}{
		"hooks": map[string]interface{}{
			"Stop": []interface{}{
				map[string]interface{}{
					"hooks": []interface{}{
						map[string]interface{}{"type": "command", "command": "other-tool notify"},
					},
				},
			},
		},
	}
	installHooks(settings, "/bin/sessionsync")
	if err := writeSettings(path, settings); err != nil {
		t.Fatalf("writeSettings failed: %v", err)
	}

	loaded, err := readSettings(path)
	if err != nil {
		t.Fatalf("readSettings failed: %v", err)
	}
	if got := installedEvents(loaded); len(got) != 5 {
		t.Errorf("Expected 5 installed events, got %v", got)
	}

	if removed := uninstallHooks(loaded); removed != 5 {
		t.Errorf("Expected 5 events removed, got %d", removed)
	}
	hooks := loaded["hooks"].(map[string]interface{})
	if len(hooks) != 1 {
		t.Errorf("Expected only the other tool's Stop hook left, got %v", hooks)
	}
	if got := installedEvents(loaded); len(got) != 0 {
		t.Errorf("Expected nothing installed, got %v", got)
	}

	empty := map[string]interface{}{}
	installHooks(empty, "/bin/sessionsync")
	uninstallHooks(empty)
	if _, ok := empty["hooks"]; ok {
		t.Error("Expected empty hooks object removed")
	}
}

func TestReadSettings_Missing(t *testing.T) {
	settings, err := readSettings(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Expected no error for missing file, got %v", err)
	}
	if len(settings) != 0 {
		t.Errorf("Expected empty settings, got %v", settings)
	}
}

func TestSetConfigValue(t *testing.T) {
	fc := &client.FileConfig{}

	valid := map[string]string{
		"api_url":         "https://x.convex.cloud",
		"api_key":         "sk_test",
		"sync_thinking":   "true",
		"redact":          "false",
		"state_backend":   "SQLite",
		"batch_size":      "25",
		"timeout_seconds": "0",
		"max_input_bytes": "4096",
	}
	for k, v := range valid {
		if err := setConfigValue(fc, k, v); err != nil {
			t.Errorf("set %s=%s: unexpected error %v", k, v, err)
		}
	}

	if fc.APIURL != "https://x.convex.cloud" || fc.APIKey != "sk_test" {
		t.Errorf("Unexpected endpoint fields: %+v", fc)
	}
	if fc.SyncThinking == nil || !*fc.SyncThinking {
		t.Error("Expected sync_thinking true")
	}
	if fc.Redact == nil || *fc.Redact {
		t.Error("Expected redact false")
	}
	if fc.StateBackend != sync.BackendSQLite {
		t.Errorf("Expected sqlite backend, got %q", fc.StateBackend)
	}
	if fc.BatchSize == nil || *fc.BatchSize != 25 {
		t.Error("Expected batch_size 25")
	}
	if fc.MaxInputBytes == nil || *fc.MaxInputBytes != 4096 {
		t.Error("Expected max_input_bytes 4096")
	}

	invalid := [][2]string{
		{"nope", "1"},
		{"redact", "maybe"},
		{"state_backend", "redis"},
		{"batch_size", "0"},
		{"timeout_seconds", "-1"},
	}
	for _, kv := range invalid {
		if err := setConfigValue(fc, kv[0], kv[1]); err == nil {
			t.Errorf("set %s=%s: expected error", kv[0], kv[1])
		}
	}
}

func TestFilterTranscripts(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.jsonl")
	recent := filepath.Join(dir, "recent.jsonl")
	for _, p := range []string{old, recent} {
		if err := os.WriteFile(p, []byte("{}\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatal(err)
	}

	got, err := filterTranscripts([]string{recent, old}, "2024-01-01", 0)
	if err != nil {
		t.Fatalf("filterTranscripts failed: %v", err)
	}
	if len(got) != 1 || got[0] != recent {
		t.Errorf("Expected only the recent transcript, got %v", got)
	}

	got, _ = filterTranscripts([]string{recent, old}, "", 1)
	if len(got) != 1 || got[0] != recent {
		t.Errorf("Expected limit to keep the newest, got %v", got)
	}

	if _, err := filterTranscripts(nil, "01/02/2024", 0); err == nil {
		t.Error("Expected error for bad --since format")
	}
}

func TestFindSessionTranscript(t *testing.T) {
	dir := t.TempDir()
	project := filepath.Join(dir, "-home-me-proj")
	if err := os.MkdirAll(project, 0755); err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(project, "abc-123.jsonl")
	if err := os.WriteFile(want, []byte("{}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := findSessionTranscript(dir, "abc-123")
	if err != nil || got != want {
		t.Errorf("Expected %s, got %s (%v)", want, got, err)
	}
	if _, err := findSessionTranscript(dir, "missing"); err == nil {
		t.Error("Expected error for unknown session")
	}
}

func TestStateReport_YAML(t *testing.T) {
	state := &sync.SyncedState{
		SessionID:  "s1",
		Synced:     sync.NewIDSet("m2", "m1", "m1-tool-t1"),
		LastSyncAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	out, err := yaml.Marshal(newStateReport(sync.BackendFile, state))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var back map[string]interface{}
	if err := yaml.Unmarshal(out, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if back["session_id"] != "s1" || back["synced"] != 3 {
		t.Errorf("Unexpected report: %s", out)
	}
	if back["last_sync_at"] != "2026-03-01T12:00:00Z" {
		t.Errorf("Unexpected last_sync_at: %v", back["last_sync_at"])
	}
	ids := back["record_ids"].([]interface{})
	if ids[0] != "m1" || ids[1] != "m1-tool-t1" || ids[2] != "m2" {
		t.Errorf("Expected sorted ids, got %v", ids)
	}

	empty, _ := yaml.Marshal(newStateReport(sync.BackendFile, &sync.SyncedState{SessionID: "s2", Synced: sync.IDSet{}}))
	if strings.Contains(string(empty), "last_sync_at") {
		t.Errorf("Expected last_sync_at omitted for a never-synced session: %s", empty)
	}
}

func TestWithoutEnded(t *testing.T) {
	ctx := context.Background()
	store := sync.NewFileStore(t.TempDir())
	store.Save(ctx, "live", &sync.SyncedState{Synced: sync.NewIDSet("m1")})
	store.Save(ctx, "done", &sync.SyncedState{Synced: sync.NewIDSet("m1")})
	store.Clear(ctx, "done")

	paths := []string{"/p/live.jsonl", "/p/done.jsonl", "/p/new.jsonl"}
	kept, skipped, err := withoutEnded(ctx, store, paths)
	if err != nil {
		t.Fatalf("withoutEnded failed: %v", err)
	}
	if skipped != 1 {
		t.Errorf("Expected 1 ended session skipped, got %d", skipped)
	}
	if strings.Join(kept, ",") != "/p/live.jsonl,/p/new.jsonl" {
		t.Errorf("Unexpected transcripts kept: %v", kept)
	}
}

func TestIsOurHookCommand(t *testing.T) {
	tests := []struct {
		command string
		want    bool
	}{
		{"/usr/local/bin/sessionsync hook Stop", true},
		{`"/opt/new path/sessionsync" hook PostToolUse`, true},
		{"sessionsync hook SessionEnd", true},
		{"/home/me/sessionsync-notes/bin/notify hook Stop", false},
		{"/usr/local/bin/sessionsync status", false},
		{"echo sessionsync hook", false},
		{"/opt/mysessionsync hook Stop", false},
		{`"/unterminated/sessionsync hook Stop`, false},
	}
	for _, tt := range tests {
		if got := isOurHookCommand(tt.command); got != tt.want {
			t.Errorf("isOurHookCommand(%q) = %v, want %v", tt.command, got, tt.want)
		}
	}
}

func TestUninstallHooks_KeepsLookalikeUserHooks(t *testing.T) {
	userHook := map[string]interface{}{
		"hooks": []interface{}{
			map[string]interface{}{"type": "command", "command": "/home/me/sessionsync-backup/run.sh"},
		},
	}
	settings := map[string]interface{}{
		"hooks": map[string]interface{}{
			"Stop": []interface{}{userHook},
		},
	}
	installHooks(settings, "/bin/sessionsync")

	if removed := uninstallHooks(settings); removed != 5 {
		t.Errorf("Expected 5 events removed, got %d", removed)
	}
	stop, ok := settings["hooks"].(map[string]interface{})["Stop"].([]interface{})
	if !ok || len(stop) != 1 {
		t.Fatalf("Expected the user's Stop hook kept, got %v", settings["hooks"])
	}
}
