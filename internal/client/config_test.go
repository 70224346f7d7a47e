package client

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfigPath(t *testing.T) {
	// No XDG_CONFIG_HOME: ~/.config/sessionsync/config.toml
	t.Setenv(EnvXDGConfigHome, "")
	path := ConfigPath()
	home, _ := os.UserHomeDir()
	expectedDefault := filepath.Join(home, ".config", ConfigDirName, ConfigFileName)
	if path != expectedDefault {
		t.Errorf("Expected default %s, got %s", expectedDefault, path)
	}

	xdgDir := filepath.Join(t.TempDir(), "xdg-config")
	t.Setenv(EnvXDGConfigHome, xdgDir)

	path = ConfigPath()
	expectedCustom := filepath.Join(xdgDir, ConfigDirName, ConfigFileName)
	if path != expectedCustom {
		t.Errorf("Expected custom %s, got %s", expectedCustom, path)
	}
}

// isolate points config lookup at an empty temp dir and clears env overrides
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(EnvXDGConfigHome, dir)
	for _, key := range []string{
		EnvAPIKey, EnvAPIURL, EnvAutoSync, EnvSyncToolCalls, EnvSyncThinking, EnvRedact,
		EnvRealtimeEvents, EnvStateBackend, EnvStateDir, EnvTimeout, EnvCompress, EnvDebug, EnvLogFile,
	} {
		t.Setenv(key, "")
	}
	return dir
}

func TestLoadConfig_Defaults(t *testing.T) {
	dir := isolate(t)

	cfg := LoadConfig()
	if cfg.IsConfigured() {
		t.Error("Expected unconfigured by default")
	}
	if !cfg.AutoSync || !cfg.SyncToolCalls || !cfg.Redact {
		t.Errorf("Expected auto_sync, sync_tool_calls and redact on by default: %+v", cfg)
	}
	if cfg.SyncThinking || cfg.RealtimeEvents || cfg.Compress {
		t.Errorf("Expected thinking, realtime and compress off by default: %+v", cfg)
	}
	if cfg.BatchSize != DefaultBatchSize {
		t.Errorf("Expected batch size %d, got %d", DefaultBatchSize, cfg.BatchSize)
	}
	if cfg.StateBackend != DefaultStateBackend {
		t.Errorf("Expected file backend, got %q", cfg.StateBackend)
	}
	if cfg.StateDir != filepath.Join(dir, ConfigDirName, "state") {
		t.Errorf("Unexpected state dir %q", cfg.StateDir)
	}
	if cfg.TimeoutSeconds != 0 {
		t.Errorf("Expected no timeout by default, got %d", cfg.TimeoutSeconds)
	}
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	isolate(t)

	off := false
	batch := 25
	if err := SaveFileConfig(&FileConfig{
		APIURL:    "https://file.example.com",
		APIKey:    "file-key",
		AutoSync:  &off,
		BatchSize: &batch,
	}); err != nil {
		t.Fatalf("SaveFileConfig failed: %v", err)
	}

	cfg := LoadConfig()
	if cfg.APIURL != "https://file.example.com" || cfg.APIKey != "file-key" {
		t.Errorf("Expected file values, got %+v", cfg)
	}
	if cfg.AutoSync {
		t.Error("Expected auto_sync=false from file")
	}
	if !cfg.SyncToolCalls {
		t.Error("Unset key should keep its default")
	}
	if cfg.BatchSize != 25 {
		t.Errorf("Expected batch size 25, got %d", cfg.BatchSize)
	}

	t.Setenv(EnvAPIKey, "env-key")
	t.Setenv(EnvAutoSync, "true")
	t.Setenv(EnvTimeout, "7")

	cfg = LoadConfig()
	if cfg.APIKey != "env-key" {
		t.Errorf("Expected env key to win, got %q", cfg.APIKey)
	}
	if !cfg.AutoSync {
		t.Error("Expected env auto_sync to win")
	}
	if cfg.TimeoutSeconds != 7 {
		t.Errorf("Expected timeout 7, got %d", cfg.TimeoutSeconds)
	}
	if !cfg.IsConfigured() {
		t.Error("Expected configured")
	}
}

func TestLoadConfig_CorruptFileIgnored(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, ConfigDirName, ConfigFileName)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("api_url = [unterminated"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFileConfig(); err == nil {
		t.Error("Expected parse error from LoadFileConfig")
	}
	cfg := LoadConfig()
	if cfg.IsConfigured() || cfg.BatchSize != DefaultBatchSize {
		t.Errorf("Expected defaults with corrupt file, got %+v", cfg)
	}
}

func TestLoadConfig_ExpandsHome(t *testing.T) {
	isolate(t)
	t.Setenv(EnvStateDir, "~/sync-state")

	cfg := LoadConfig()
	home, _ := os.UserHomeDir()
	if cfg.StateDir != filepath.Join(home, "sync-state") {
		t.Errorf("Expected ~ expanded, got %q", cfg.StateDir)
	}
}

func TestSaveFileConfig_Permissions(t *testing.T) {
	isolate(t)
	if err := SaveFileConfig(&FileConfig{APIKey: "secret"}); err != nil {
		t.Fatalf("SaveFileConfig failed: %v", err)
	}
	info, err := os.Stat(ConfigPath())
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected 0600, got %v", info.Mode().Perm())
	}
}

func TestMaskAPIKey(t *testing.T) {
	if got := MaskAPIKey("abc"); got != "***" {
		t.Errorf("Expected ***, got %q", got)
	}
	if got := MaskAPIKey("sk-1234567890"); got != "***...7890" {
		t.Errorf("Expected ***...7890, got %q", got)
	}
}
